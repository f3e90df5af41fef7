package signaling

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/opd-ai/softphone/limits"
)

// Conn is an open connection to the signaling server. ReadFrame is called
// from a single reader goroutine; WriteFrame and Close may be called from
// any goroutine.
type Conn interface {
	ReadFrame() ([]byte, error)
	WriteFrame(data []byte) error
	Close() error
}

// Dialer opens connections to the signaling server.
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// WebSocketDialer connects over WebSocket, one text message per frame.
type WebSocketDialer struct {
	// WriteTimeout bounds each frame write. Zero means no deadline.
	WriteTimeout time.Duration
}

// NewWebSocketDialer returns a dialer with a 10 second write timeout.
func NewWebSocketDialer() *WebSocketDialer {
	return &WebSocketDialer{WriteTimeout: 10 * time.Second}
}

// Dial opens a WebSocket connection to url. The handshake is bounded by
// ctx.
func (d *WebSocketDialer) Dial(ctx context.Context, url string) (Conn, error) {
	logrus.WithFields(logrus.Fields{
		"function": "Dial",
		"url":      url,
	}).Debug("Dialing signaling server")

	ws, resp, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("websocket dial %s: %w", url, err)
	}
	ws.SetReadLimit(limits.MaxFrameSize)
	return &wsConn{ws: ws, writeTimeout: d.WriteTimeout}, nil
}

type wsConn struct {
	ws           *websocket.Conn
	writeTimeout time.Duration
	writeMu      sync.Mutex
}

// NewWebSocketConn wraps an established WebSocket connection, such as one
// accepted by a server-side upgrader.
func NewWebSocketConn(ws *websocket.Conn) Conn {
	ws.SetReadLimit(limits.MaxFrameSize)
	return &wsConn{ws: ws}
}

func (c *wsConn) ReadFrame() ([]byte, error) {
	for {
		kind, data, err := c.ws.ReadMessage()
		if err != nil {
			return nil, err
		}
		if kind == websocket.TextMessage || kind == websocket.BinaryMessage {
			return data, nil
		}
	}
}

func (c *wsConn) WriteFrame(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.writeTimeout > 0 {
		if err := c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
			return err
		}
		defer c.ws.SetWriteDeadline(time.Time{})
	}
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

func (c *wsConn) Close() error {
	return c.ws.Close()
}
