package protocol

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	apperr "github.com/aether-ai/mcpregd/internal/errors"
)

// WebSocketTransport carries JSON-RPC frames as text messages on a WebSocket
// connection.
type WebSocketTransport struct {
	endpoint string
	header   http.Header

	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool

	messageHandler func([]byte)
	errorHandler   func(error)
	closeHandler   func()
}

// NewWebSocketTransport creates a transport for the given ws:// or wss://
// endpoint. The header set (authentication) is sent with the handshake.
func NewWebSocketTransport(endpoint string, header http.Header) *WebSocketTransport {
	return &WebSocketTransport{
		endpoint: endpoint,
		header:   header,
	}
}

// Start dials the endpoint and begins reading frames.
func (t *WebSocketTransport) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.connected {
		return errors.New("websocket transport already started")
	}

	dialer := websocket.Dialer{}
	conn, resp, err := dialer.DialContext(ctx, t.endpoint, t.header)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("websocket dial rejected with status %d: %w", resp.StatusCode, err)
		}
		return fmt.Errorf("websocket dial failed: %w", err)
	}

	t.conn = conn
	t.connected = true

	go t.readLoop(conn)

	return nil
}

func (t *WebSocketTransport) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.mu.Lock()
			wasConnected := t.connected
			t.connected = false
			t.mu.Unlock()

			if wasConnected {
				if t.errorHandler != nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
					t.errorHandler(fmt.Errorf("websocket read failed: %w", err))
				}
				if t.closeHandler != nil {
					t.closeHandler()
				}
			}
			return
		}

		if t.messageHandler != nil {
			t.messageHandler(data)
		}
	}
}

// Send writes one text frame.
func (t *WebSocketTransport) Send(data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.connected || t.conn == nil {
		return apperr.ErrNotConnected
	}

	if err := t.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("websocket write failed: %w", err)
	}
	return nil
}

// Close tears the connection down. Idempotent.
func (t *WebSocketTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.connected {
		return nil
	}
	t.connected = false

	return t.conn.Close()
}

func (t *WebSocketTransport) SetMessageHandler(handler func([]byte)) { t.messageHandler = handler }
func (t *WebSocketTransport) SetErrorHandler(handler func(error))    { t.errorHandler = handler }
func (t *WebSocketTransport) SetCloseHandler(handler func())         { t.closeHandler = handler }
