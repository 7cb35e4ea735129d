// Package store provides SQLite-backed persistence for conversations,
// messages, response ratings, and the model cost rate table.
package store
