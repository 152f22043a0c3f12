package hass

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dokzlo13/wledbridge/internal/color"
)

var (
	// ErrAuthInvalid is returned when the hub rejects the access token.
	ErrAuthInvalid = errors.New("hub rejected access token")
	// ErrWrongPhase is returned when an operation is attempted out of order.
	ErrWrongPhase = errors.New("operation not allowed in current session phase")
	// ErrSessionClosed is returned for any operation on a closed session.
	ErrSessionClosed = errors.New("session closed")
)

// Conn is the message transport to the hub. *websocket.Conn satisfies it.
type Conn interface {
	ReadJSON(v any) error
	WriteJSON(v any) error
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// Phase is the state of a Session.
type Phase int

const (
	PhaseUnauthenticated Phase = iota
	PhaseAuthenticated
	PhaseQuerying
	PhaseDispatching
	PhaseClosed
)

// String returns a human-readable name for the phase.
func (p Phase) String() string {
	switch p {
	case PhaseUnauthenticated:
		return "unauthenticated"
	case PhaseAuthenticated:
		return "authenticated"
	case PhaseQuerying:
		return "querying"
	case PhaseDispatching:
		return "dispatching"
	case PhaseClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Session drives the hub handshake over one connection:
//
//	unauthenticated -> authenticated -> querying -> authenticated
//	                                 -> dispatching -> authenticated
//
// Any transport failure moves the session to closed.
// A rejected command returns the session to authenticated.
type Session struct {
	conn   Conn
	phase  Phase
	nextID int
}

// NewSession wraps a freshly dialed connection.
func NewSession(conn Conn) *Session {
	return &Session{
		conn:   conn,
		phase:  PhaseUnauthenticated,
		nextID: 1,
	}
}

// Phase returns the current phase.
func (s *Session) Phase() Phase {
	return s.phase
}

// Authenticate performs the auth_required / auth / auth_ok exchange.
func (s *Session) Authenticate(ctx context.Context, token string) error {
	if err := s.expect(PhaseUnauthenticated); err != nil {
		return err
	}
	if err := s.prepare(ctx); err != nil {
		return err
	}

	var hello Inbound
	if err := s.read(&hello); err != nil {
		return err
	}
	if hello.Type != TypeAuthRequired {
		return s.fail(fmt.Errorf("unexpected greeting %q", hello.Type))
	}

	if err := s.write(AuthMessage{Type: TypeAuth, AccessToken: token}); err != nil {
		return err
	}

	var reply Inbound
	if err := s.read(&reply); err != nil {
		return err
	}
	switch reply.Type {
	case TypeAuthOK:
		s.phase = PhaseAuthenticated
		return nil
	case TypeAuthInvalid:
		return s.fail(fmt.Errorf("%w: %s", ErrAuthInvalid, reply.Message))
	default:
		return s.fail(fmt.Errorf("unexpected auth reply %q", reply.Type))
	}
}

// QueryEntity fetches all entity states and returns the one matching entityID.
// Returns nil without error if the hub does not know the entity.
func (s *Session) QueryEntity(ctx context.Context, entityID string) (*EntityState, error) {
	if err := s.expect(PhaseAuthenticated); err != nil {
		return nil, err
	}
	if err := s.prepare(ctx); err != nil {
		return nil, err
	}
	s.phase = PhaseQuerying

	id := s.allocID()
	if err := s.write(GetStatesMessage{ID: id, Type: TypeGetStates}); err != nil {
		return nil, err
	}

	result, err := s.awaitResult(id)
	if err != nil {
		return nil, err
	}

	var states []EntityState
	if err := json.Unmarshal(result, &states); err != nil {
		return nil, s.fail(fmt.Errorf("failed to decode states: %w", err))
	}

	s.phase = PhaseAuthenticated
	for i := range states {
		if states[i].EntityID == entityID {
			return &states[i], nil
		}
	}
	return nil, nil
}

// SetColor calls light.turn_on for entityID with the color and zero transition,
// then waits for the hub's acknowledgement.
func (s *Session) SetColor(ctx context.Context, entityID string, c color.RGB) error {
	if err := s.expect(PhaseAuthenticated); err != nil {
		return err
	}
	if err := s.prepare(ctx); err != nil {
		return err
	}
	s.phase = PhaseDispatching

	id := s.allocID()
	msg := CallServiceMessage{
		ID:      id,
		Type:    TypeCallService,
		Domain:  DomainLight,
		Service: ServiceTurnOn,
		Target:  Target{EntityID: entityID},
		ServiceData: ServiceData{
			RGBColor:   c.Ints(),
			Transition: 0,
		},
	}
	if err := s.write(msg); err != nil {
		return err
	}

	if _, err := s.awaitResult(id); err != nil {
		return err
	}
	s.phase = PhaseAuthenticated
	return nil
}

// Close closes the underlying connection.
func (s *Session) Close() error {
	if s.phase == PhaseClosed {
		return nil
	}
	s.phase = PhaseClosed
	return s.conn.Close()
}

// awaitResult reads until the result for id arrives. Unrelated messages are skipped.
// A result with success=false returns the session to authenticated.
func (s *Session) awaitResult(id int) (json.RawMessage, error) {
	for {
		var msg Inbound
		if err := s.read(&msg); err != nil {
			return nil, err
		}
		if msg.Type != TypeResult || msg.ID != id {
			continue
		}
		if !msg.Success {
			s.phase = PhaseAuthenticated
			if msg.Error != nil {
				return nil, fmt.Errorf("command %d failed: %w", id, msg.Error)
			}
			return nil, fmt.Errorf("command %d failed", id)
		}
		return msg.Result, nil
	}
}

func (s *Session) expect(phase Phase) error {
	if s.phase == PhaseClosed {
		return ErrSessionClosed
	}
	if s.phase != phase {
		return fmt.Errorf("%w: in %s, need %s", ErrWrongPhase, s.phase, phase)
	}
	return nil
}

// prepare applies the context deadline to the connection.
func (s *Session) prepare(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return s.fail(err)
	}
	deadline, _ := ctx.Deadline()
	if err := s.conn.SetReadDeadline(deadline); err != nil {
		return s.fail(err)
	}
	if err := s.conn.SetWriteDeadline(deadline); err != nil {
		return s.fail(err)
	}
	return nil
}

func (s *Session) read(v any) error {
	if err := s.conn.ReadJSON(v); err != nil {
		return s.fail(fmt.Errorf("read from hub: %w", err))
	}
	return nil
}

func (s *Session) write(v any) error {
	if err := s.conn.WriteJSON(v); err != nil {
		return s.fail(fmt.Errorf("write to hub: %w", err))
	}
	return nil
}

// fail closes the session and returns err.
func (s *Session) fail(err error) error {
	s.Close()
	return err
}

func (s *Session) allocID() int {
	id := s.nextID
	s.nextID++
	return id
}
