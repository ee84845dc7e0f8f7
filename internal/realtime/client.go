package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"

	"github.com/gorilla/websocket"
)

// ErrMalformedEvent marks a payload that arrived intact but did not decode.
// The connection is still usable; callers should drop the message and keep
// reading.
var ErrMalformedEvent = errors.New("realtime: malformed event")

// Conn is one live websocket session with the realtime API. Reads are
// single-consumer; writes are serialized internally so multiple goroutines
// may send.
type Conn struct {
	ws      *websocket.Conn
	writeMu sync.Mutex
}

// Dial opens the realtime websocket for the given model.
func Dial(ctx context.Context, baseURL, model, apiKey string) (*Conn, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("realtime: parse url: %w", err)
	}
	q := u.Query()
	q.Set("model", model)
	u.RawQuery = q.Encode()

	header := http.Header{}
	header.Set("Authorization", "Bearer "+apiKey)

	ws, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("realtime: dial failed with status %d: %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("realtime: dial failed: %w", err)
	}
	return &Conn{ws: ws}, nil
}

// NewConn wraps an already-established websocket, used by tests.
func NewConn(ws *websocket.Conn) *Conn {
	return &Conn{ws: ws}
}

// ReadEvent blocks for the next inbound event. A payload that fails to
// decode returns an error wrapping ErrMalformedEvent; only transport errors
// mean the stream is gone.
func (c *Conn) ReadEvent() (Event, error) {
	_, data, err := c.ws.ReadMessage()
	if err != nil {
		return Event{}, fmt.Errorf("realtime: read: %w", err)
	}
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	return ev, nil
}

// Send marshals and writes one message.
func (c *Conn) Send(msg any) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("realtime: encode message: %w", err)
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("realtime: write: %w", err)
	}
	return nil
}

// Close shuts the websocket down.
func (c *Conn) Close() error {
	return c.ws.Close()
}
