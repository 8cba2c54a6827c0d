// Package retention prunes old worklog journal entries on a cron schedule.
package retention

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"branchclock-hq/branchclock/pkg/config"
	"branchclock-hq/branchclock/pkg/storage"
)

// Pruner deletes journal entries older than the retention period.
type Pruner struct {
	store    storage.Store
	days     int
	schedule string
	now      func() time.Time
	logger   *slog.Logger

	mu      sync.Mutex
	cron    *cron.Cron
	running bool
}

// NewPruner creates a pruner. Zero days keeps everything.
func NewPruner(store storage.Store, cfg config.RetentionConfig, logger *slog.Logger) *Pruner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pruner{
		store:    store,
		days:     cfg.Days,
		schedule: cfg.Schedule,
		now:      time.Now,
		logger:   logger.With("component", "storage.retention"),
	}
}

// Prune deletes entries logged before now minus the retention period.
func (p *Pruner) Prune(ctx context.Context) (int64, error) {
	if p.days <= 0 {
		return 0, nil
	}
	cutoff := p.now().AddDate(0, 0, -p.days)
	deleted, err := p.store.PruneEntries(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune journal: %w", err)
	}
	if deleted > 0 {
		p.logger.Info("pruned journal entries", "deleted_count", deleted, "cutoff", cutoff.Format(time.RFC3339))
	}
	return deleted, nil
}

// Start schedules Prune. An empty schedule or zero retention does nothing.
// Cancelling ctx stops the schedule.
func (p *Pruner) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return fmt.Errorf("retention scheduler already running")
	}
	if p.schedule == "" || p.days <= 0 {
		p.logger.Info("journal retention disabled")
		return nil
	}
	sched, err := cron.ParseStandard(p.schedule)
	if err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", p.schedule, err)
	}

	p.cron = cron.New()
	p.cron.Schedule(sched, cron.FuncJob(func() {
		if _, err := p.Prune(ctx); err != nil {
			p.logger.Error("scheduled pruning failed", "error", err)
		}
	}))
	p.cron.Start()
	p.running = true

	p.logger.Info("retention scheduler started", "schedule", p.schedule, "retention_days", p.days)

	go func() {
		<-ctx.Done()
		p.Stop()
	}()
	return nil
}

// Stop halts the schedule and waits for a running prune to finish.
func (p *Pruner) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return
	}
	<-p.cron.Stop().Done()
	p.running = false
	p.logger.Info("retention scheduler stopped")
}

// NextRun returns the next scheduled prune, or nil when not running.
func (p *Pruner) NextRun() *time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return nil
	}
	entries := p.cron.Entries()
	if len(entries) == 0 {
		return nil
	}
	next := entries[0].Next
	return &next
}
