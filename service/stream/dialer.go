package stream

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
)

// Conn is the subset of a websocket connection the listener uses.
// *websocket.Conn satisfies it.
type Conn interface {
	WriteJSON(v any) error
	ReadMessage() (messageType int, p []byte, err error)
	Close() error
}

// Dialer opens a new connection to the streaming endpoint.
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// WebsocketDialer dials real websocket connections.
type WebsocketDialer struct {
	dialer *websocket.Dialer
}

// NewWebsocketDialer returns a Dialer that bounds the opening handshake by
// handshakeTimeout. Zero means no timeout beyond the context.
func NewWebsocketDialer(handshakeTimeout time.Duration) *WebsocketDialer {
	return &WebsocketDialer{
		dialer: &websocket.Dialer{
			Proxy:            websocket.DefaultDialer.Proxy,
			HandshakeTimeout: handshakeTimeout,
		},
	}
}

func (d *WebsocketDialer) Dial(ctx context.Context, url string) (Conn, error) {
	conn, resp, err := d.dialer.DialContext(ctx, url, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, err
	}
	return conn, nil
}
