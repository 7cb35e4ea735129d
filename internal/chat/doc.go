// Package chat is the orchestration core: it owns live sessions, runs
// turns against the provider router, assembles per-turn context, and
// streams results back over each session's connection.
//
// The registry owns one session per provider key and dispatches inbound
// control events. Each chat event runs as its own cancellable turn so
// ratings and history control on the same connection never wait on an
// in-flight stream. The conversation log and usage totals are the only
// shared mutable state; both serialize writers internally.
package chat
