package hass

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/wledbridge/internal/realtime"
)

// Outcome is the result of dispatching one color event.
type Outcome string

const (
	OutcomeDispatched Outcome = "dispatched"
	OutcomeSkipped    Outcome = "skipped"
	OutcomeFailed     Outcome = "failed"
)

// Dialer opens hub connections.
type Dialer interface {
	Dial(ctx context.Context) (Conn, error)
}

// Recorder is notified of every dispatch outcome.
type Recorder interface {
	RecordDispatch(ev realtime.ColorEvent, entityID string, outcome Outcome, err error)
}

// Dispatcher turns color events into hub light commands, skipping lights
// that already show the target color. Failures are logged and dropped.
type Dispatcher struct {
	dialer   Dialer
	token    string
	timeout  time.Duration
	recorder Recorder
}

// NewDispatcher creates a dispatcher. timeout bounds each event, 0 disables it.
// recorder may be nil.
func NewDispatcher(dialer Dialer, token string, timeout time.Duration, recorder Recorder) *Dispatcher {
	return &Dispatcher{
		dialer:   dialer,
		token:    token,
		timeout:  timeout,
		recorder: recorder,
	}
}

// DispatchBatch handles the events of one frame in order over a shared session.
// A failure for one light does not stop the next; after a transport failure
// the next light dials a fresh session.
func (d *Dispatcher) DispatchBatch(ctx context.Context, events []realtime.ColorEvent) {
	var sess *Session
	defer func() {
		if sess != nil {
			sess.Close()
		}
	}()

	for _, ev := range events {
		if ctx.Err() != nil {
			return
		}
		sess = d.dispatch(ctx, sess, ev)
	}
}

// Dispatch handles a single event on its own session.
func (d *Dispatcher) Dispatch(ctx context.Context, ev realtime.ColorEvent) {
	d.DispatchBatch(ctx, []realtime.ColorEvent{ev})
}

// dispatch runs one event and returns the session to reuse, nil if it is gone.
func (d *Dispatcher) dispatch(ctx context.Context, sess *Session, ev realtime.ColorEvent) *Session {
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	entityID := EntityID(ev.Light)
	logger := log.With().
		Str("event_id", ev.ID).
		Str("entity", entityID).
		Str("color", ev.Color.Hex()).
		Logger()

	if sess == nil {
		var err error
		sess, err = d.open(ctx)
		if err != nil {
			logger.Error().Err(err).Msg("Hub session failed, dropping color")
			d.record(ev, entityID, OutcomeFailed, err)
			return nil
		}
	}

	outcome, err := d.apply(ctx, sess, entityID, ev)
	d.record(ev, entityID, outcome, err)

	switch outcome {
	case OutcomeSkipped:
		logger.Debug().Msg("Light already has color, skipping")
	case OutcomeDispatched:
		logger.Debug().Dur("latency", time.Since(ev.Timestamp)).Msg("Color dispatched")
	case OutcomeFailed:
		logger.Error().Err(err).Str("phase", sess.Phase().String()).Msg("Color dispatch failed, dropping")
	}

	if sess.Phase() == PhaseClosed {
		return nil
	}
	return sess
}

func (d *Dispatcher) open(ctx context.Context) (*Session, error) {
	conn, err := d.dialer.Dial(ctx)
	if err != nil {
		return nil, err
	}
	sess := NewSession(conn)
	if err := sess.Authenticate(ctx, d.token); err != nil {
		return nil, err
	}
	return sess, nil
}

// apply queries the entity and sets the color only if it differs.
func (d *Dispatcher) apply(ctx context.Context, sess *Session, entityID string, ev realtime.ColorEvent) (Outcome, error) {
	state, err := sess.QueryEntity(ctx, entityID)
	if err != nil {
		return OutcomeFailed, err
	}
	if state != nil {
		if current, ok := state.Color(); ok && current == ev.Color {
			return OutcomeSkipped, nil
		}
	}

	if err := sess.SetColor(ctx, entityID, ev.Color); err != nil {
		return OutcomeFailed, err
	}
	return OutcomeDispatched, nil
}

func (d *Dispatcher) record(ev realtime.ColorEvent, entityID string, outcome Outcome, err error) {
	if d.recorder != nil {
		d.recorder.RecordDispatch(ev, entityID, outcome, err)
	}
}
