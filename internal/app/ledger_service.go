package app

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/wledbridge/internal/config"
	"github.com/dokzlo13/wledbridge/internal/db"
	"github.com/dokzlo13/wledbridge/internal/hass"
	"github.com/dokzlo13/wledbridge/internal/ledger"
	"github.com/dokzlo13/wledbridge/internal/realtime"
)

// LedgerService owns the database, records dispatch outcomes and prunes old entries.
type LedgerService struct {
	cfg    *config.Config
	DB     *db.DB
	Ledger *ledger.Ledger
}

// NewLedgerService opens the database. It returns nil when no database path is configured.
func NewLedgerService(cfg *config.Config) (*LedgerService, error) {
	if cfg.Database.Path == "" {
		log.Info().Msg("Dispatch ledger disabled (no database.path)")
		return nil, nil
	}

	database, err := db.Open(cfg.Database.Path)
	if err != nil {
		return nil, err
	}

	return &LedgerService{
		cfg:    cfg,
		DB:     database,
		Ledger: ledger.New(database.DB),
	}, nil
}

// RecordDispatch implements hass.Recorder.
func (s *LedgerService) RecordDispatch(ev realtime.ColorEvent, entityID string, outcome hass.Outcome, err error) {
	entry := ledger.Entry{
		Outcome:   ledger.Outcome(outcome),
		Timestamp: ev.Timestamp,
		EventID:   ev.ID,
		EntityID:  entityID,
		Color:     ev.Color.Hex(),
	}
	if err != nil {
		entry.Error = err.Error()
	}

	if appendErr := s.Ledger.Append(entry); appendErr != nil {
		log.Error().Err(appendErr).Str("event_id", ev.ID).Msg("Failed to write dispatch ledger entry")
	}
}

// Start begins the periodic cleanup.
func (s *LedgerService) Start(ctx context.Context) {
	go s.runCleanup(ctx)
}

// runCleanup periodically removes entries older than the retention period.
func (s *LedgerService) runCleanup(ctx context.Context) {
	retention := s.cfg.GetLedgerRetention()
	interval := s.cfg.Ledger.CleanupInterval.Duration()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.cleanup(retention)
		}
	}
}

func (s *LedgerService) cleanup(retention time.Duration) {
	deleted, err := s.Ledger.DeleteOlderThan(retention)
	if err != nil {
		log.Error().Err(err).Msg("Failed to cleanup old ledger entries")
	} else if deleted > 0 {
		log.Info().Int64("deleted", deleted).Dur("retention", retention).Msg("Cleaned up old ledger entries")
	}
}

// Close releases the database.
func (s *LedgerService) Close() {
	if s.DB != nil {
		s.DB.Close()
	}
}
