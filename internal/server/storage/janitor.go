package storage

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// DatasetChecker reports whether a dataset row still exists.
type DatasetChecker interface {
	DatasetExists(ctx context.Context, id uuid.UUID) (bool, error)
}

// Janitor periodically removes archived CSV files whose dataset row no
// longer exists. A crash between a rolled-back create transaction and
// file cleanup can leave orphans behind; the janitor reclaims them.
type Janitor struct {
	repo     DatasetChecker
	store    Store
	interval time.Duration
	done     chan struct{}
}

// NewJanitor creates a new archive janitor.
func NewJanitor(repo DatasetChecker, store Store, interval time.Duration) *Janitor {
	return &Janitor{
		repo:     repo,
		store:    store,
		interval: interval,
		done:     make(chan struct{}),
	}
}

// Start begins the sweep loop in a background goroutine.
func (j *Janitor) Start(ctx context.Context) {
	slog.Info("archive janitor started", "interval", j.interval)

	go func() {
		ticker := time.NewTicker(j.interval)
		defer ticker.Stop()

		// Run once immediately on start
		j.sweep(ctx)

		for {
			select {
			case <-ticker.C:
				j.sweep(ctx)
			case <-ctx.Done():
				slog.Info("archive janitor stopping")
				close(j.done)
				return
			}
		}
	}()
}

// Wait blocks until the janitor has fully stopped.
func (j *Janitor) Wait() {
	<-j.done
}

func (j *Janitor) sweep(ctx context.Context) {
	ids, err := j.store.List()
	if err != nil {
		slog.Error("failed to list archive files", "error", err)
		return
	}

	var removed, failed int
	for _, raw := range ids {
		id, err := uuid.Parse(raw)
		if err != nil {
			// Not one of ours, leave it alone.
			continue
		}

		exists, err := j.repo.DatasetExists(ctx, id)
		if err != nil {
			slog.Error("failed to check dataset existence", "dataset_id", raw, "error", err)
			failed++
			continue
		}
		if exists {
			continue
		}

		if err := j.store.Delete(raw); err != nil {
			slog.Error("failed to delete orphaned archive file", "dataset_id", raw, "error", err)
			failed++
			continue
		}

		removed++
		slog.Info("removed orphaned archive file", "dataset_id", raw)
	}

	if removed > 0 || failed > 0 {
		slog.Info("janitor sweep complete", "removed", removed, "failed", failed)
	}
}
