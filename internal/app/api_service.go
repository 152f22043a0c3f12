package app

import (
	"context"
	"net"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/wledbridge/internal/api"
	"github.com/dokzlo13/wledbridge/internal/config"
	"github.com/dokzlo13/wledbridge/internal/device"
)

// APIService wraps the control-plane HTTP server.
type APIService struct {
	cfg    *config.Config
	server *api.Server
	addr   net.Addr
}

// NewAPIService creates a new APIService. history may be nil.
func NewAPIService(cfg *config.Config, identity device.Identity, status *device.Status, history api.History) *APIService {
	server := api.NewServer(cfg.HTTP.Host, cfg.HTTP.Port, identity, status, history)
	return &APIService{
		cfg:    cfg,
		server: server,
	}
}

// Start binds the control-plane address and serves it in the background.
// The hub cannot adopt the device without it, so both a bind failure and a
// later serve failure are fatal.
func (s *APIService) Start(ctx context.Context, onFatalError func(error)) error {
	ln, err := s.server.Listen()
	if err != nil {
		return err
	}
	s.addr = ln.Addr()

	go func() {
		if err := s.server.Serve(ctx, ln, s.cfg.GetShutdownTimeout()); err != nil {
			log.Error().Err(err).Msg("Control-plane API error")
			if onFatalError != nil {
				onFatalError(err)
			}
		}
	}()
	return nil
}

// Addr returns the bound address, or nil before Start.
func (s *APIService) Addr() net.Addr {
	return s.addr
}
