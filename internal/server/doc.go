// Package server exposes the gateway over HTTP: the WebSocket chat
// endpoint, provider and health APIs, and conversation export. It owns
// the HTTP listener lifecycle; all chat semantics live in the chat
// package.
package server
