// Package llm provides chat message types, streaming provider clients, and
// the Router that resolves logical provider names and drives the ordered
// backup chain when a backend fails mid-turn.
package llm
