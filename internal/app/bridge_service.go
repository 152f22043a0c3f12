package app

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/wledbridge/internal/config"
	"github.com/dokzlo13/wledbridge/internal/device"
	"github.com/dokzlo13/wledbridge/internal/eventbus"
	"github.com/dokzlo13/wledbridge/internal/hass"
	"github.com/dokzlo13/wledbridge/internal/realtime"
)

// BridgeService wires the realtime listener to the hub dispatcher through the event bus.
type BridgeService struct {
	cfg *config.Config

	Client     *hass.Client
	Dispatcher *hass.Dispatcher
	Gate       *realtime.Gate
	Listener   *realtime.Listener
	Bus        *eventbus.Bus[[]realtime.ColorEvent]

	// dispatchCancel aborts in-flight hub calls once the drain deadline has passed.
	// Dispatch outlives the app context so queued frames can drain on shutdown.
	dispatchCancel context.CancelFunc
	listenerDone   chan struct{}
}

// NewBridgeService creates the pipeline. recorder may be nil.
func NewBridgeService(cfg *config.Config, status *device.Status, recorder hass.Recorder) (*BridgeService, error) {
	client, err := hass.NewClient(cfg.Hub.Address, cfg.Hub.Secure, cfg.Hub.Timeout.Duration())
	if err != nil {
		return nil, err
	}

	dispatcher := hass.NewDispatcher(client, cfg.Hub.Token, cfg.Hub.Timeout.Duration(), recorder)

	dispatchCtx, dispatchCancel := context.WithCancel(context.Background())
	bus := eventbus.NewWithConfig[[]realtime.ColorEvent]("dispatch", func(events []realtime.ColorEvent) {
		dispatcher.DispatchBatch(dispatchCtx, events)
	}, 1, cfg.EventBus.GetQueueSize())

	gate := realtime.NewGate(cfg.Lights, cfg.GetThrottle())
	listener := realtime.NewListener(gate, status, func(events []realtime.ColorEvent) {
		bus.Publish(events)
	})

	return &BridgeService{
		cfg:            cfg,
		Client:         client,
		Dispatcher:     dispatcher,
		Gate:           gate,
		Listener:       listener,
		Bus:            bus,
		dispatchCancel: dispatchCancel,
	}, nil
}

// Start binds the realtime port and begins receiving frames.
// The port is bound before Start returns so a conflict is reported to the caller.
func (s *BridgeService) Start(ctx context.Context, onFatalError func(error)) error {
	conn, err := realtime.Listen(s.cfg.Realtime.Port)
	if err != nil {
		return err
	}

	log.Info().
		Str("hub", s.Client.URL()).
		Strs("lights", s.cfg.Lights).
		Dur("throttle", s.cfg.GetThrottle()).
		Msg("Bridging realtime frames to hub")

	s.listenerDone = make(chan struct{})
	go func() {
		defer close(s.listenerDone)
		if err := s.Listener.Serve(ctx, conn); err != nil {
			log.Error().Err(err).Msg("Realtime listener error")
			if onFatalError != nil {
				onFatalError(err)
			}
		}
	}()
	return nil
}

// Close waits for the listener, then drains queued frames within the shutdown timeout.
// The listener must stop first so nothing publishes while the bus closes.
func (s *BridgeService) Close() {
	if s.listenerDone != nil {
		<-s.listenerDone
	}
	if s.Bus != nil {
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.GetShutdownTimeout())
		defer cancel()
		s.Bus.Close(ctx)
		if dropped := s.Bus.Dropped(); dropped > 0 {
			log.Info().Uint64("dropped", dropped).Msg("Frames dropped while the hub was busy")
		}
	}
	s.dispatchCancel()
}
