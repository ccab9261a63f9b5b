package history

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// RetentionConfig configures retention pruning.
type RetentionConfig struct {
	// RetentionDays is the number of days to retain events.
	// 0 means keep events forever (no pruning).
	RetentionDays int

	// PruneSchedule is a cron expression for scheduling pruning,
	// e.g. "0 3 * * *" (daily at 3 AM). Empty disables the scheduler.
	PruneSchedule string
}

// DefaultRetentionConfig returns the default retention configuration.
func DefaultRetentionConfig() *RetentionConfig {
	return &RetentionConfig{
		RetentionDays: 30,
		PruneSchedule: "0 3 * * *",
	}
}

// Pruner enforces the retention policy on an event store, optionally on a
// cron schedule.
type Pruner struct {
	store  Store
	config *RetentionConfig
	cron   *cron.Cron
	logger *slog.Logger

	mu      sync.Mutex
	running bool
}

// NewPruner creates a retention pruner for store.
func NewPruner(store Store, config *RetentionConfig) *Pruner {
	if config == nil {
		config = DefaultRetentionConfig()
	}

	return &Pruner{
		store:  store,
		config: config,
		cron:   cron.New(),
		logger: slog.Default().With("component", "history.retention"),
	}
}

// Prune deletes events older than the retention period and returns how many
// were deleted. A zero retention period deletes nothing.
func (p *Pruner) Prune(ctx context.Context) (int, error) {
	if p.config.RetentionDays <= 0 {
		return 0, nil
	}

	cutoff := time.Now().AddDate(0, 0, -p.config.RetentionDays)
	deleted, err := p.store.Prune(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("retention prune failed: %w", err)
	}
	return deleted, nil
}

// Start begins scheduled pruning based on the configured cron expression.
// When the schedule is empty the scheduler does nothing.
func (p *Pruner) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.config.PruneSchedule == "" {
		p.logger.Info("prune schedule not configured, skipping scheduler")
		return nil
	}

	if _, err := cron.ParseStandard(p.config.PruneSchedule); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", p.config.PruneSchedule, err)
	}

	_, err := p.cron.AddFunc(p.config.PruneSchedule, func() {
		p.runPruning(ctx)
	})
	if err != nil {
		return fmt.Errorf("failed to schedule pruning: %w", err)
	}

	p.cron.Start()
	p.running = true

	p.logger.Info("retention scheduler started",
		"schedule", p.config.PruneSchedule,
		"retention_days", p.config.RetentionDays,
	)

	go func() {
		<-ctx.Done()
		p.Stop()
	}()

	return nil
}

// Stop stops the scheduler and waits for any running prune to finish.
func (p *Pruner) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		stopCtx := p.cron.Stop()
		<-stopCtx.Done()
		p.running = false
		p.logger.Info("retention scheduler stopped")
	}
}

// IsRunning reports whether the scheduler is running.
func (p *Pruner) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// runPruning executes one pruning cycle.
func (p *Pruner) runPruning(ctx context.Context) {
	deleted, err := p.Prune(ctx)
	if err != nil {
		p.logger.Error("scheduled pruning failed", "error", err)
		return
	}

	if deleted > 0 {
		p.logger.Info("scheduled pruning completed", "deleted_count", deleted)
	} else {
		p.logger.Debug("scheduled pruning completed, no events deleted")
	}
}
