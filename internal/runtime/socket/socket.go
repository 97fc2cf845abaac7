// Package socket abstracts the persistent push connection behind small
// interfaces so the connection manager can be driven by a fake transport in
// tests. The production implementation wraps gorilla/websocket.
package socket

import (
	"context"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
)

// FrameConn is one established push connection delivering text frames.
type FrameConn interface {
	// ReadMessage blocks until the next frame arrives. When the peer closes
	// the connection the returned error is a *CloseError carrying the close
	// code.
	ReadMessage() ([]byte, error)
	// WriteMessage sends one text frame.
	WriteMessage(data []byte) error
	// Close performs the closing handshake with the given code and reason.
	Close(code int, reason string) error
}

// Dialer establishes FrameConns. Implementations must honour the context
// deadline during the handshake.
type Dialer interface {
	DialContext(ctx context.Context, url string) (FrameConn, error)
}

// CloseError reports that the peer closed the connection.
type CloseError struct {
	Code   int
	Reason string
}

func (e *CloseError) Error() string {
	return fmt.Sprintf("socket: connection closed with code %d: %s", e.Code, e.Reason)
}

// DefaultHandshakeTimeout bounds the websocket upgrade.
const DefaultHandshakeTimeout = 45 * time.Second

// NewWebsocketDialer returns the production Dialer backed by
// gorilla/websocket.
func NewWebsocketDialer() Dialer {
	return &wsDialer{
		dialer: &websocket.Dialer{HandshakeTimeout: DefaultHandshakeTimeout},
	}
}

type wsDialer struct {
	dialer *websocket.Dialer
}

func (d *wsDialer) DialContext(ctx context.Context, url string) (FrameConn, error) {
	conn, resp, err := d.dialer.DialContext(ctx, url, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, err
	}
	return &wsConn{conn: conn}, nil
}

type wsConn struct {
	conn *websocket.Conn
}

func (c *wsConn) ReadMessage() ([]byte, error) {
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		if ce, ok := err.(*websocket.CloseError); ok {
			return nil, &CloseError{Code: ce.Code, Reason: ce.Text}
		}
		return nil, err
	}
	return data, nil
}

func (c *wsConn) WriteMessage(data []byte) error {
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *wsConn) Close(code int, reason string) error {
	deadline := time.Now().Add(time.Second)
	msg := websocket.FormatCloseMessage(code, reason)
	// Best effort: the close frame may fail on an already broken pipe.
	_ = c.conn.WriteControl(websocket.CloseMessage, msg, deadline)
	return c.conn.Close()
}
