package hass

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/dokzlo13/wledbridge/internal/realtime"
)

// fakeConn is an in-memory Conn. Written messages are recorded and passed to
// onWrite, which may queue replies with push.
type fakeConn struct {
	inbox   [][]byte
	sent    []map[string]any
	onWrite func(c *fakeConn, msg map[string]any)
	closed  bool
}

func (c *fakeConn) ReadJSON(v any) error {
	if c.closed {
		return errors.New("use of closed connection")
	}
	if len(c.inbox) == 0 {
		return io.EOF
	}
	next := c.inbox[0]
	c.inbox = c.inbox[1:]
	return json.Unmarshal(next, v)
}

func (c *fakeConn) WriteJSON(v any) error {
	if c.closed {
		return errors.New("use of closed connection")
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var msg map[string]any
	if err := json.Unmarshal(raw, &msg); err != nil {
		return err
	}
	c.sent = append(c.sent, msg)
	if c.onWrite != nil {
		c.onWrite(c, msg)
	}
	return nil
}

func (c *fakeConn) SetReadDeadline(time.Time) error  { return nil }
func (c *fakeConn) SetWriteDeadline(time.Time) error { return nil }

func (c *fakeConn) Close() error {
	c.closed = true
	return nil
}

func (c *fakeConn) push(v any) {
	raw, _ := json.Marshal(v)
	c.inbox = append(c.inbox, raw)
}

// sentOfType returns the written messages with the given type.
func (c *fakeConn) sentOfType(typ string) []map[string]any {
	var out []map[string]any
	for _, m := range c.sent {
		if m["type"] == typ {
			out = append(out, m)
		}
	}
	return out
}

// fakeHub scripts a Home Assistant instance.
type fakeHub struct {
	token  string
	states []EntityState
	// failService makes call_service fail for these entities.
	failService map[string]bool
	// dropOnQuery closes the connection when get_states arrives.
	dropOnQuery bool
}

func (h *fakeHub) conn() *fakeConn {
	c := &fakeConn{onWrite: h.handle}
	c.push(Inbound{Type: TypeAuthRequired, HAVersion: "2024.6.0"})
	return c
}

func (h *fakeHub) handle(c *fakeConn, msg map[string]any) {
	id, _ := msg["id"].(float64)

	switch msg["type"] {
	case TypeAuth:
		if msg["access_token"] == h.token {
			c.push(Inbound{Type: TypeAuthOK})
		} else {
			c.push(Inbound{Type: TypeAuthInvalid, Message: "Invalid access token"})
		}
	case TypeGetStates:
		if h.dropOnQuery {
			c.closed = true
			return
		}
		// Unrelated traffic before the result must be skipped.
		c.push(map[string]any{"id": 99, "type": "event"})
		result, _ := json.Marshal(h.states)
		c.push(Inbound{ID: int(id), Type: TypeResult, Success: true, Result: result})
	case TypeCallService:
		target, _ := msg["target"].(map[string]any)
		entity, _ := target["entity_id"].(string)
		if h.failService[entity] {
			c.push(Inbound{ID: int(id), Type: TypeResult, Success: false, Error: &ResultError{Code: "not_found", Message: "Service not found"}})
			return
		}
		c.push(Inbound{ID: int(id), Type: TypeResult, Success: true})
	}
}

// fakeDialer hands out connections in order. A nil entry fails the dial.
type fakeDialer struct {
	conns []*fakeConn
	dials int
}

func (d *fakeDialer) Dial(context.Context) (Conn, error) {
	if d.dials >= len(d.conns) {
		return nil, errors.New("no more connections")
	}
	c := d.conns[d.dials]
	d.dials++
	if c == nil {
		return nil, errors.New("connection refused")
	}
	return c, nil
}

type recorded struct {
	entity  string
	outcome Outcome
	err     error
}

type fakeRecorder struct {
	mu      sync.Mutex
	entries []recorded
}

func (r *fakeRecorder) RecordDispatch(_ realtime.ColorEvent, entityID string, outcome Outcome, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, recorded{entity: entityID, outcome: outcome, err: err})
}
