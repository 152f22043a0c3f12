package realtime

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/wledbridge/internal/device"
)

// Sink receives the events admitted for one frame.
// It must not block; the listener calls it from the receive loop.
type Sink func(events []ColorEvent)

// Listener receives realtime frames over UDP and feeds admitted events to a sink.
type Listener struct {
	gate   *Gate
	status *device.Status
	sink   Sink
	now    func() time.Time
}

// NewListener creates a listener. status may be nil.
func NewListener(gate *Gate, status *device.Status, sink Sink) *Listener {
	return &Listener{
		gate:   gate,
		status: status,
		sink:   sink,
		now:    time.Now,
	}
}

// Listen binds the realtime port on all interfaces.
func Listen(port int) (net.PacketConn, error) {
	conn, err := net.ListenPacket("udp4", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, fmt.Errorf("failed to bind realtime port %d: %w", port, err)
	}
	log.Info().Int("port", port).Msg("Listening for realtime frames")
	return conn, nil
}

// Serve reads datagrams from conn until ctx is cancelled. conn is closed on return.
func (l *Listener) Serve(ctx context.Context, conn net.PacketConn) error {
	go func() {
		<-ctx.Done()
		conn.Close()
	}()
	defer conn.Close()

	buf := make([]byte, MaxDatagramSize)
	for {
		n, addr, err := conn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			log.Warn().Err(err).Msg("Realtime read failed")
			continue
		}
		l.HandleDatagram(buf[:n], addr)
	}
}

// HandleDatagram decodes and gates a single datagram.
// Malformed datagrams are dropped without error.
func (l *Listener) HandleDatagram(data []byte, from net.Addr) {
	frame, err := DecodeFrame(data)
	if err != nil {
		log.Trace().Err(err).Int("len", len(data)).Msg("Dropping realtime datagram")
		return
	}

	now := l.now()
	if l.status != nil {
		l.status.MarkLive(now)
	}

	events := l.gate.Admit(frame, now)
	if len(events) == 0 {
		return
	}

	log.Debug().
		Int("leds", len(frame.Pixels)).
		Str("color", frame.Representative().Hex()).
		Uint8("timeout", frame.Timeout).
		Uint16("start", frame.Start).
		Str("from", addrString(from)).
		Int("events", len(events)).
		Msg("Frame admitted")

	l.sink(events)
}

func addrString(addr net.Addr) string {
	if addr == nil {
		return ""
	}
	return addr.String()
}
