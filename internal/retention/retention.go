// Package retention implements C10: a sweeper that periodically
// deletes frames (and, via cascade, their OCR text, embeddings, and
// tag links) older than the configured retention window.
package retention

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"screensearch/internal/store"
)

// Config tunes the sweep cadence and cutoff window.
type Config struct {
	RetentionDays int
	SweepInterval time.Duration
}

// DefaultConfig matches the original sweeper's cadence: check once a
// day, keep 30 days of history.
func DefaultConfig() Config {
	return Config{RetentionDays: 30, SweepInterval: 24 * time.Hour}
}

// Sweeper owns the periodic delete loop.
type Sweeper struct {
	cfg   Config
	store *store.Store
}

// New builds a Sweeper.
func New(cfg Config, s *store.Store) *Sweeper {
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = 24 * time.Hour
	}
	if cfg.RetentionDays <= 0 {
		cfg.RetentionDays = 30
	}
	return &Sweeper{cfg: cfg, store: s}
}

// Run sweeps once immediately, then every cfg.SweepInterval until ctx
// is cancelled. Sweeping on start means a process that was down past
// its retention window catches up right away instead of waiting a
// full interval.
func (s *Sweeper) Run(ctx context.Context) {
	s.sweep(ctx)

	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	settings, err := s.store.GetSettings(ctx)
	retentionDays := s.cfg.RetentionDays
	if err == nil && settings.RetentionDays > 0 {
		retentionDays = settings.RetentionDays // live setting overrides the startup config
	}

	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	n, err := s.store.DeleteOldFrames(ctx, cutoff)
	if err != nil {
		log.Error().Err(err).Msg("retention: sweep failed")
		return
	}
	if n > 0 {
		log.Info().Int64("deleted_frames", n).Time("cutoff", cutoff).Msg("retention: swept old frames")
	}
}
