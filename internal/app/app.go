package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/wledbridge/internal/config"
)

// App owns the bridge services and their lifecycle.
type App struct {
	services *Services

	ctx      context.Context
	cancel   context.CancelCauseFunc
	stopOnce sync.Once
}

// New creates the services without binding any sockets.
func New(cfg *config.Config) (*App, error) {
	services, err := NewServices(cfg)
	if err != nil {
		return nil, err
	}
	return &App{services: services}, nil
}

// Start binds the realtime and HTTP sockets and starts every service.
// On failure everything already started is torn down and the error is returned.
func (a *App) Start(ctx context.Context) error {
	a.ctx, a.cancel = context.WithCancelCause(ctx)

	onFatalError := func(err error) {
		log.Error().Err(err).Msg("Fatal error, initiating shutdown")
		a.cancel(err)
	}

	if err := a.services.Start(a.ctx, onFatalError); err != nil {
		a.cancel(err)
		a.Stop()
		return fmt.Errorf("start services: %w", err)
	}

	log.Info().Msg("wledbridge started")
	return nil
}

// Wait blocks until the app is cancelled. It returns the error that forced a
// shutdown, or nil when the parent context was cancelled or Stop was called.
func (a *App) Wait() error {
	if a.ctx == nil {
		return nil
	}
	<-a.ctx.Done()
	if cause := context.Cause(a.ctx); !errors.Is(cause, context.Canceled) {
		return cause
	}
	return nil
}

// Stop cancels the app and closes all services. Safe to call more than once.
func (a *App) Stop() {
	a.stopOnce.Do(func() {
		log.Info().Msg("Shutting down...")
		if a.cancel != nil {
			a.cancel(nil)
		}
		a.services.Close()
	})
}

// Run starts the app, waits for ctx or a fatal error, then stops it.
func (a *App) Run(ctx context.Context) error {
	if err := a.Start(ctx); err != nil {
		return err
	}
	err := a.Wait()
	a.Stop()
	return err
}

// SignalContext creates a context that is cancelled when SIGINT or SIGTERM is received.
func SignalContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		log.Warn().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	return ctx
}
