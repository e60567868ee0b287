package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// DefaultMaintenanceInterval is how often the maintainer runs when no
// interval is configured.
const DefaultMaintenanceInterval = 1 * time.Hour

// Maintainer periodically checkpoints the WAL and refreshes the query planner
// statistics. It never deletes notifications.
type Maintainer struct {
	store    *Store
	interval time.Duration
}

// NewMaintainer creates a maintainer running every interval.
func NewMaintainer(store *Store, interval time.Duration) *Maintainer {
	if interval <= 0 {
		interval = DefaultMaintenanceInterval
	}
	return &Maintainer{
		store:    store,
		interval: interval,
	}
}

// Run starts the maintenance loop. It blocks until the context is cancelled.
func (m *Maintainer) Run(ctx context.Context) error {
	slog.Info("maintainer started", "interval", m.interval)

	// Run once at startup
	m.maintain(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("maintainer stopped")
			return ctx.Err()
		case <-ticker.C:
			m.maintain(ctx)
		}
	}
}

func (m *Maintainer) maintain(ctx context.Context) {
	res, err := m.checkpoint(ctx)
	if err != nil {
		slog.Error("maintenance failed", "error", err)
		return
	}
	slog.Debug("maintenance done", "wal_frames", res.logFrames, "checkpointed", res.checkpointed, "busy", res.busy)
}

type checkpointResult struct {
	busy         int
	logFrames    int
	checkpointed int
}

func (m *Maintainer) checkpoint(ctx context.Context) (checkpointResult, error) {
	var res checkpointResult
	if ctx.Err() != nil {
		return res, ctx.Err()
	}
	db, err := m.store.DB(ctx)
	if err != nil {
		return res, err
	}
	if _, err := db.ExecContext(ctx, "PRAGMA optimize"); err != nil {
		return res, fmt.Errorf("optimizing: %w", err)
	}
	err = db.QueryRowxContext(ctx, "PRAGMA wal_checkpoint(PASSIVE)").Scan(&res.busy, &res.logFrames, &res.checkpointed)
	if err != nil {
		return res, fmt.Errorf("checkpointing WAL: %w", err)
	}
	return res, nil
}
