package app

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/wledbridge/internal/api"
	"github.com/dokzlo13/wledbridge/internal/config"
	"github.com/dokzlo13/wledbridge/internal/device"
	"github.com/dokzlo13/wledbridge/internal/hass"
)

// Services is a container for all application services.
// It manages service initialization order and dependencies.
type Services struct {
	cfg *config.Config

	// Device model shared by discovery, the API and the realtime listener
	Identity device.Identity
	Status   *device.Status

	// Optional dispatch ledger (nil when disabled)
	Ledger *LedgerService

	Bridge    *BridgeService
	Discovery *DiscoveryService
	API       *APIService
}

// NewServices creates all services with proper dependency injection.
func NewServices(cfg *config.Config) (*Services, error) {
	s := &Services{cfg: cfg}

	s.Identity = buildIdentity(cfg)
	s.Status = device.NewStatus(time.Now(), cfg.Device.LiveTimeout.Duration())

	ledgerService, err := NewLedgerService(cfg)
	if err != nil {
		return nil, err
	}
	s.Ledger = ledgerService

	// Keep interfaces nil when the ledger is disabled
	var recorder hass.Recorder
	var history api.History
	if s.Ledger != nil {
		recorder = s.Ledger
		history = s.Ledger.Ledger
	}

	s.Bridge, err = NewBridgeService(cfg, s.Status, recorder)
	if err != nil {
		s.Close()
		return nil, err
	}

	s.Discovery = NewDiscoveryService(cfg, s.Identity)
	s.API = NewAPIService(cfg, s.Identity, s.Status, history)

	return s, nil
}

func buildIdentity(cfg *config.Config) device.Identity {
	ip := cfg.DeviceIP()
	if ip == nil {
		ip = device.LocalIP()
	}
	return device.Identity{
		IP:           ip,
		MAC:          cfg.Device.MAC,
		Name:         cfg.Device.Name,
		LEDCount:     cfg.Device.LEDCount,
		HTTPPort:     cfg.HTTP.Port,
		RealtimePort: cfg.Realtime.Port,
	}
}

// Start starts all services in the correct order.
// The realtime and HTTP sockets are bound synchronously; a bind failure is
// returned and the caller must cancel ctx and Close. onFatalError is called
// when a required listener fails after startup.
func (s *Services) Start(ctx context.Context, onFatalError func(error)) error {
	log.Info().
		Str("name", s.Identity.Name).
		Str("ip", s.Identity.IP.String()).
		Str("mac", s.Identity.MAC).
		Int("leds", s.Identity.LEDCount).
		Msg("Emulating WLED controller")

	if s.Ledger != nil {
		s.Ledger.Start(ctx)
	}
	if err := s.Bridge.Start(ctx, onFatalError); err != nil {
		return err
	}
	if err := s.API.Start(ctx, onFatalError); err != nil {
		return err
	}
	s.Discovery.Start(ctx)

	return nil
}

// Close releases all resources. The bridge drains before the ledger closes.
func (s *Services) Close() {
	if s.Discovery != nil {
		s.Discovery.Close()
	}
	if s.Bridge != nil {
		s.Bridge.Close()
	}
	if s.Ledger != nil {
		s.Ledger.Close()
	}
}
