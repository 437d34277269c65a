// Package retention runs the scheduled purge job that keeps storage bounded.
package retention

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/tidemark-ai/recollect/internal/db"
	"github.com/tidemark-ai/recollect/internal/logging"
)

// Config sizes the retention window
type Config struct {
	// CronSpec is the purge schedule (default hourly)
	CronSpec string `yaml:"cron_spec"`
	// ItemTTLHours is the age after which items are purged
	ItemTTLHours int `yaml:"item_ttl_hours"`
	// RunTTLHours is the age after which runs are purged. Longer than the
	// item TTL: runs are kept for debugging after their items are gone.
	RunTTLHours int `yaml:"run_ttl_hours"`
}

// DefaultConfig returns the default retention window
func DefaultConfig() Config {
	return Config{
		CronSpec:     "@hourly",
		ItemTTLHours: 72,
		RunTTLHours:  336,
	}
}

// Scheduler purges aged items and runs on an independent timer. It is the
// only writer that deletes rows; it may race context-pack reads for the same
// thread, which treat a vanished item as simply absent. Each purge is
// idempotent and safe to run concurrently from multiple processes.
type Scheduler struct {
	store *db.Store
	cfg   Config
	cron  *cron.Cron
}

// New creates a retention scheduler. store may be nil; purge then returns
// zero counts.
func New(store *db.Store, cfg Config) *Scheduler {
	if cfg.CronSpec == "" {
		cfg = DefaultConfig()
	}
	return &Scheduler{store: store, cfg: cfg}
}

// Start begins the periodic purge. Purge failures are logged and do not stop
// the scheduler; it runs again on the next tick regardless.
func (s *Scheduler) Start() error {
	s.cron = cron.New()
	_, err := s.cron.AddFunc(s.cfg.CronSpec, func() {
		if _, err := s.RunCleanupNow(context.Background()); err != nil {
			logging.Errorf("scheduled cleanup failed: %v", err)
		}
	})
	if err != nil {
		return err
	}
	s.cron.Start()
	logging.Infof("retention scheduler started (%s, item TTL %dh, run TTL %dh)",
		s.cfg.CronSpec, s.cfg.ItemTTLHours, s.cfg.RunTTLHours)
	return nil
}

// Stop halts the schedule and waits for a running purge to finish
func (s *Scheduler) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
}

// RunCleanupNow purges aged items and runs immediately and returns the total
// count of rows deleted. Exposed for manual/administrative invocation.
func (s *Scheduler) RunCleanupNow(ctx context.Context) (int64, error) {
	items, err := s.PurgeOldItems(ctx, time.Duration(s.cfg.ItemTTLHours)*time.Hour)
	if err != nil {
		return items, err
	}
	runs, err := s.PurgeOldRuns(ctx, time.Duration(s.cfg.RunTTLHours)*time.Hour)
	if err != nil {
		return items + runs, err
	}
	if items+runs > 0 {
		logging.Infof("cleanup removed %d items, %d runs", items, runs)
	}
	return items + runs, nil
}

// PurgeOldItems deletes items older than ttl and returns the count deleted.
// Thread rows and their summaries are untouched; the summarizer's verbatim
// window is sized so items have been folded into the summary before they
// age out.
func (s *Scheduler) PurgeOldItems(ctx context.Context, ttl time.Duration) (int64, error) {
	if s.store == nil {
		return 0, nil
	}
	return s.store.PurgeItemsOlderThan(ctx, ttl)
}

// PurgeOldRuns deletes run records older than ttl and returns the count
func (s *Scheduler) PurgeOldRuns(ctx context.Context, ttl time.Duration) (int64, error) {
	if s.store == nil {
		return 0, nil
	}
	return s.store.PurgeRunsOlderThan(ctx, ttl)
}
