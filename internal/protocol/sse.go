package protocol

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	apperr "github.com/aether-ai/mcpregd/internal/errors"
)

// SSETransport carries JSON-RPC over server-sent events: inbound frames arrive
// on a long-lived HTTP GET stream, outbound frames go out as individual HTTP
// POSTs to the same endpoint.
type SSETransport struct {
	endpoint string
	header   http.Header
	client   *http.Client

	mu        sync.Mutex
	cancel    context.CancelFunc
	connected bool

	messageHandler func([]byte)
	errorHandler   func(error)
	closeHandler   func()
}

// NewSSETransport creates a transport for the given SSE endpoint. The header
// set (authentication) is sent on both the stream request and every POST.
func NewSSETransport(endpoint string, header http.Header) *SSETransport {
	return &SSETransport{
		endpoint: endpoint,
		header:   header,
		client:   &http.Client{},
	}
}

// Start opens the event stream and returns once the server has accepted it.
func (t *SSETransport) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.connected {
		return errors.New("sse transport already started")
	}

	streamCtx, cancel := context.WithCancel(context.Background())

	req, err := http.NewRequestWithContext(streamCtx, http.MethodGet, t.endpoint, nil)
	if err != nil {
		cancel()
		return fmt.Errorf("failed to build stream request: %w", err)
	}
	for name, values := range t.header {
		req.Header[name] = values
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := t.client.Do(req)
	if err != nil {
		cancel()
		return fmt.Errorf("failed to open event stream: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		cancel()
		return fmt.Errorf("event stream rejected with status %d", resp.StatusCode)
	}

	t.cancel = cancel
	t.connected = true

	go t.readLoop(resp.Body)

	return nil
}

// readLoop parses the SSE wire format: data lines accumulate until a blank
// line dispatches the event.
func (t *SSETransport) readLoop(body io.ReadCloser) {
	defer body.Close()

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var data bytes.Buffer
	for scanner.Scan() {
		line := scanner.Text()

		switch {
		case line == "":
			if data.Len() > 0 {
				frame := make([]byte, data.Len())
				copy(frame, data.Bytes())
				data.Reset()
				if t.messageHandler != nil {
					t.messageHandler(frame)
				}
			}
		case strings.HasPrefix(line, "data:"):
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		default:
			// Comments (:) and event/id/retry fields are ignored.
		}
	}

	if err := scanner.Err(); err != nil && t.errorHandler != nil && !errors.Is(err, context.Canceled) {
		t.errorHandler(fmt.Errorf("event stream read failed: %w", err))
	}

	t.mu.Lock()
	wasConnected := t.connected
	t.connected = false
	t.mu.Unlock()

	if wasConnected && t.closeHandler != nil {
		t.closeHandler()
	}
}

// Send POSTs one frame to the endpoint.
func (t *SSETransport) Send(data []byte) error {
	t.mu.Lock()
	connected := t.connected
	t.mu.Unlock()
	if !connected {
		return apperr.ErrNotConnected
	}

	req, err := http.NewRequest(http.MethodPost, t.endpoint, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to build send request: %w", err)
	}
	for name, values := range t.header {
		req.Header[name] = values
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("send failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("send rejected with status %d", resp.StatusCode)
	}
	return nil
}

// Close cancels the event stream. Idempotent.
func (t *SSETransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.connected {
		return nil
	}
	t.connected = false

	if t.cancel != nil {
		t.cancel()
	}
	return nil
}

func (t *SSETransport) SetMessageHandler(handler func([]byte)) { t.messageHandler = handler }
func (t *SSETransport) SetErrorHandler(handler func(error))    { t.errorHandler = handler }
func (t *SSETransport) SetCloseHandler(handler func())         { t.closeHandler = handler }
