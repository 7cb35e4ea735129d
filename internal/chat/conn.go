// ABOUTME: Connection abstraction between the chat core and the transport
// ABOUTME: Send is best-effort; IsOpen gates streaming between chunks

package chat

import "context"

// Conn is the outbound side of one client connection. The transport
// layer adapts its socket type to this interface.
//
// Send marshals and delivers one event; failures mean the peer is gone
// and are safe to ignore mid-stream. IsOpen is checked between chunks
// to detect abandonment without an explicit cancellation signal from
// the client.
type Conn interface {
	Send(ctx context.Context, v any) error
	IsOpen() bool
}

// safeSend delivers an event if the connection is still open. Returns
// false when the peer is gone.
func safeSend(ctx context.Context, conn Conn, v any) bool {
	if !conn.IsOpen() {
		return false
	}
	return conn.Send(ctx, v) == nil
}
