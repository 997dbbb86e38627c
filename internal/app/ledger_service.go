package app

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/lightctl/internal/config"
	"github.com/dokzlo13/lightctl/internal/ledger"
)

// LedgerCleanupService periodically drops ledger entries past retention.
type LedgerCleanupService struct {
	cfg    *config.Config
	ledger *ledger.Ledger
}

// NewLedgerCleanupService creates the cleanup service. l may be nil, in
// which case Start does nothing.
func NewLedgerCleanupService(cfg *config.Config, l *ledger.Ledger) *LedgerCleanupService {
	return &LedgerCleanupService{cfg: cfg, ledger: l}
}

// Start runs the cleanup loop until ctx is done.
func (s *LedgerCleanupService) Start(ctx context.Context) {
	if s.ledger == nil {
		return
	}
	go s.run(ctx)
}

func (s *LedgerCleanupService) retention() time.Duration {
	return time.Duration(s.cfg.Ledger.RetentionDays) * 24 * time.Hour
}

func (s *LedgerCleanupService) run(ctx context.Context) {
	// Once at startup, then on every tick
	s.cleanup(ctx)

	ticker := time.NewTicker(s.cfg.Ledger.CleanupInterval.Duration())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.cleanup(ctx)
		}
	}
}

func (s *LedgerCleanupService) cleanup(ctx context.Context) {
	retention := s.retention()
	deleted, err := s.ledger.DeleteOlderThan(ctx, retention)
	if err != nil {
		log.Error().Err(err).Msg("Failed to cleanup old ledger entries")
	} else if deleted > 0 {
		log.Info().Int64("deleted", deleted).Dur("retention", retention).Msg("Cleaned up old ledger entries")
	}
}
