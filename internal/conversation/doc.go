// Package conversation holds the shared, ordered, size-bounded message
// log that every provider session in one logical conversation reads and
// appends to.
package conversation
