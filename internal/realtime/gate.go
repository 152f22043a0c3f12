package realtime

import (
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/dokzlo13/wledbridge/internal/color"
)

// ColorEvent asks the hub to set one light to one color.
type ColorEvent struct {
	ID        string
	Timestamp time.Time
	Color     color.RGB
	Light     string
}

// Gate turns a stream of frames into a bounded stream of color events.
// A frame passes only if its first pixel differs from the last dispatched
// color and at least the throttle interval has elapsed since the last dispatch.
//
// Gate is owned by a single goroutine and is not safe for concurrent use.
type Gate struct {
	lights  []string
	limiter *rate.Limiter

	lastColor color.RGB
	hasLast   bool
}

// NewGate creates a gate for the given ordered target lights.
// A zero interval disables rate limiting but keeps duplicate suppression.
func NewGate(lights []string, interval time.Duration) *Gate {
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	return &Gate{
		lights:  lights,
		limiter: rate.NewLimiter(limit, 1),
	}
}

// Admit decides whether the frame produces events at time now.
// On success it returns one event per target light, paired positionally with
// the frame's pixels, and records the dispatch. Lights without a matching
// pixel are skipped. Dedup compares the first pixel only, even with several lights.
func (g *Gate) Admit(frame Frame, now time.Time) []ColorEvent {
	first := frame.Representative()
	if g.hasLast && first == g.lastColor {
		return nil
	}
	if !g.limiter.AllowN(now, 1) {
		return nil
	}

	g.lastColor = first
	g.hasLast = true

	n := len(g.lights)
	if len(frame.Pixels) < n {
		n = len(frame.Pixels)
	}
	events := make([]ColorEvent, 0, n)
	for i := 0; i < n; i++ {
		events = append(events, ColorEvent{
			ID:        uuid.NewString(),
			Timestamp: now,
			Color:     frame.Pixels[i],
			Light:     g.lights[i],
		})
	}
	return events
}
