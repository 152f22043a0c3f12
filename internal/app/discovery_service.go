package app

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/wledbridge/internal/config"
	"github.com/dokzlo13/wledbridge/internal/device"
	"github.com/dokzlo13/wledbridge/internal/discovery"
)

// DiscoveryService runs the mDNS announcement and the SSDP responder.
// Both are best effort: failures are logged and the bridge keeps running.
type DiscoveryService struct {
	cfg       *config.Config
	Announcer *discovery.Announcer
	Responder *discovery.Responder
}

// NewDiscoveryService creates the responders for identity.
func NewDiscoveryService(cfg *config.Config, identity device.Identity) *DiscoveryService {
	return &DiscoveryService{
		cfg:       cfg,
		Announcer: discovery.NewAnnouncer(identity),
		Responder: discovery.NewResponder(identity),
	}
}

// Start registers the mDNS record and starts answering SSDP searches.
func (s *DiscoveryService) Start(ctx context.Context) {
	if s.cfg.Discovery.MDNSEnabled() {
		// Errors are already logged by the announcer.
		_ = s.Announcer.Start()
	} else {
		log.Debug().Msg("mDNS announcement disabled")
	}

	if !s.cfg.Discovery.SSDPEnabled() {
		log.Debug().Msg("SSDP responder disabled")
		return
	}
	go func() {
		if err := s.Responder.ListenAndServe(ctx); err != nil {
			log.Warn().Err(err).Msg("SSDP responder unavailable, continuing without it")
		}
	}()
}

// Close unregisters the mDNS record.
func (s *DiscoveryService) Close() {
	s.Announcer.Stop()
}
