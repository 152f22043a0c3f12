package device

import (
	"sync/atomic"
	"time"
)

// DefaultLiveTimeout is how long the device stays live after the last frame.
const DefaultLiveTimeout = 2500 * time.Millisecond

// Status is the small mutable state of the emulated controller.
// The control-plane API writes power and brightness, the realtime listener
// marks the device live. Readers tolerate stale values, so every field is an atomic.
type Status struct {
	startTime   time.Time
	liveTimeout time.Duration

	on       atomic.Bool
	bri      atomic.Uint32
	lastLive atomic.Int64 // unix nanos of last frame or push notification, 0 = never
}

// NewStatus creates a Status that is powered on at full brightness.
func NewStatus(startTime time.Time, liveTimeout time.Duration) *Status {
	if liveTimeout <= 0 {
		liveTimeout = DefaultLiveTimeout
	}
	s := &Status{
		startTime:   startTime,
		liveTimeout: liveTimeout,
	}
	s.on.Store(true)
	s.bri.Store(255)
	return s
}

// On reports the power state.
func (s *Status) On() bool {
	return s.on.Load()
}

// SetOn sets the power state.
func (s *Status) SetOn(on bool) {
	s.on.Store(on)
}

// Brightness returns the brightness in [0,255].
func (s *Status) Brightness() uint8 {
	return uint8(s.bri.Load())
}

// SetBrightness stores v clamped to [0,255].
func (s *Status) SetBrightness(v int) {
	if v < 0 {
		v = 0
	}
	if v > 255 {
		v = 255
	}
	s.bri.Store(uint32(v))
}

// MarkLive records that pixel data is currently being received.
func (s *Status) MarkLive(now time.Time) {
	s.lastLive.Store(now.UnixNano())
}

// Live reports whether pixel data was received within the live timeout.
func (s *Status) Live(now time.Time) bool {
	last := s.lastLive.Load()
	if last == 0 {
		return false
	}
	return now.Sub(time.Unix(0, last)) < s.liveTimeout
}

// Uptime returns whole seconds since start.
func (s *Status) Uptime(now time.Time) int64 {
	return int64(now.Sub(s.startTime) / time.Second)
}
