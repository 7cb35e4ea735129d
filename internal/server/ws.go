// ABOUTME: WebSocket chat endpoint and the socket-to-Conn adapter
// ABOUTME: One read loop per connection; turns run on their own goroutines

package server

import (
	"context"
	"net/http"
	"sync/atomic"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/agentgaia/gaia-gateway/internal/chat"
)

// wsConn adapts a websocket connection to the chat.Conn interface. The
// open flag flips once the read loop observes closure, so in-flight
// turns can detect abandonment between chunks.
type wsConn struct {
	conn *websocket.Conn
	open atomic.Bool
}

func newWSConn(conn *websocket.Conn) *wsConn {
	c := &wsConn{conn: conn}
	c.open.Store(true)
	return c
}

func (c *wsConn) Send(ctx context.Context, v any) error {
	err := wsjson.Write(ctx, c.conn, v)
	if err != nil {
		c.open.Store(false)
	}
	return err
}

func (c *wsConn) IsOpen() bool {
	return c.open.Load()
}

func (c *wsConn) markClosed() {
	c.open.Store(false)
}

var _ chat.Conn = (*wsConn)(nil)

// handleChat upgrades the connection and runs its read loop. The
// provider query parameter selects which backend this socket drives.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	provider := r.URL.Query().Get("provider")
	if provider == "" {
		http.Error(w, "provider query parameter is required", http.StatusBadRequest)
		return
	}

	sock, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		// Browser clients connect cross-origin during development.
		InsecureSkipVerify: true,
	})
	if err != nil {
		s.logger.Error("websocket accept failed", "provider", provider, "error", err)
		return
	}

	conn := newWSConn(sock)
	session := s.registry.Connect(provider, conn)
	defer func() {
		conn.markClosed()
		s.registry.Disconnect(session)
		sock.CloseNow()
	}()

	ctx := r.Context()
	if err := conn.Send(ctx, chat.ConnectedEvent{Type: "connected", Provider: provider, Status: "ready"}); err != nil {
		return
	}

	for {
		_, data, err := sock.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
				s.logger.Info("websocket closed", "provider", provider)
			} else if ctx.Err() == nil {
				s.logger.Warn("websocket read failed", "provider", provider, "error", err)
			}
			return
		}
		s.registry.Dispatch(ctx, session, data)
	}
}
