// Package transport is the client side of the robot WebSocket.
package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Default link timing and message size limits.
const (
	DefaultHandshakeTimeout = 5 * time.Second
	DefaultReadTimeout      = 15 * time.Second
	DefaultWriteWait        = 2 * time.Second
	maxMsgSize              = 1 << 14 // 16 KB
)

// Conn is one open robot connection.
type Conn interface {
	ReadMessage() ([]byte, error)
	WriteMessage(data []byte) error
	Close() error
}

// Dialer opens robot connections.
type Dialer interface {
	Dial(ctx context.Context, rawURL string) (Conn, error)
}

// WebSocketDialer dials the robot with gorilla/websocket.
type WebSocketDialer struct {
	HandshakeTimeout time.Duration
	// ReadTimeout bounds the silence between two inbound frames; 0 disables it.
	ReadTimeout time.Duration
	WriteWait   time.Duration
}

// NewWebSocketDialer returns a dialer with default timeouts.
func NewWebSocketDialer() *WebSocketDialer {
	return &WebSocketDialer{
		HandshakeTimeout: DefaultHandshakeTimeout,
		ReadTimeout:      DefaultReadTimeout,
		WriteWait:        DefaultWriteWait,
	}
}

func (d *WebSocketDialer) Dial(ctx context.Context, rawURL string) (Conn, error) {
	wsURL, err := ToWebsocketURL(rawURL)
	if err != nil {
		return nil, err
	}
	dialer := websocket.Dialer{
		Proxy:            nil,
		HandshakeTimeout: d.HandshakeTimeout,
	}
	c, resp, err := dialer.DialContext(ctx, wsURL, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", wsURL, err)
	}
	c.SetReadLimit(maxMsgSize)
	return &wsConn{conn: c, readTimeout: d.ReadTimeout, writeWait: d.WriteWait}, nil
}

type wsConn struct {
	conn        *websocket.Conn
	readTimeout time.Duration
	writeWait   time.Duration

	writeMu sync.Mutex
}

func (c *wsConn) ReadMessage() ([]byte, error) {
	if c.readTimeout > 0 {
		if err := c.conn.SetReadDeadline(time.Now().Add(c.readTimeout)); err != nil {
			return nil, err
		}
	}
	_, data, err := c.conn.ReadMessage()
	return data, err
}

// WriteMessage sends one text frame; gorilla allows a single concurrent writer.
func (c *wsConn) WriteMessage(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.writeWait > 0 {
		_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeWait))
	}
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *wsConn) Close() error {
	c.writeMu.Lock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(100 * time.Millisecond))
	_ = c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.writeMu.Unlock()
	return c.conn.Close()
}

// IsClosed reports whether err is an orderly end of the connection
// rather than a transport failure.
func IsClosed(err error) bool {
	if err == nil {
		return false
	}
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
		return true
	}
	return errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed)
}

// ToWebsocketURL maps http(s) to ws(s) and leaves ws URLs untouched.
func ToWebsocketURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported scheme %q in %q", u.Scheme, raw)
	}
	return u.String(), nil
}
