package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/arena-wallet/internal/config"
	"github.com/shopspring/decimal"
)

// WinningsSource reports every user's approved prize total
type WinningsSource interface {
	WinningsTotals(ctx context.Context) (map[string]decimal.Decimal, error)
}

// WinningsStore holds the leaderboard that is rebuilt
type WinningsStore interface {
	Replace(ctx context.Context, totals map[string]decimal.Decimal) error
}

// SyncWorker periodically rebuilds the Redis winnings leaderboard from
// PostgreSQL. Settlement updates Redis incrementally; the rebuild repairs
// any increments lost while Redis was unavailable.
type SyncWorker struct {
	source  WinningsSource
	store   WinningsStore
	config  *config.SyncConfig
	logger  *slog.Logger
	stopCh  chan struct{}
	doneCh  chan struct{}
	mu      sync.Mutex
	running bool
}

// NewSyncWorker creates a new sync worker
func NewSyncWorker(
	source WinningsSource,
	store WinningsStore,
	cfg *config.SyncConfig,
	logger *slog.Logger,
) *SyncWorker {
	return &SyncWorker{
		source: source,
		store:  store,
		config: cfg,
		logger: logger,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Start begins the background sync process
func (w *SyncWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	w.logger.Info("sync worker started", "interval", w.config.Interval)

	go w.run(ctx)
	return nil
}

// Stop stops the background sync process
func (w *SyncWorker) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	w.mu.Lock()
	w.running = false
	w.mu.Unlock()

	w.logger.Info("sync worker stopped")
	return nil
}

// run is the main worker loop
func (w *SyncWorker) run(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

// SyncFromDatabase replaces the leaderboard with the totals in PostgreSQL
func (w *SyncWorker) SyncFromDatabase(ctx context.Context) error {
	startTime := time.Now()

	totals, err := w.source.WinningsTotals(ctx)
	if err != nil {
		return err
	}
	if err := w.store.Replace(ctx, totals); err != nil {
		return err
	}

	w.logger.Info("winnings leaderboard rebuilt",
		"duration", time.Since(startTime),
		"users", len(totals),
	)
	return nil
}

// IsRunning returns whether the worker is currently running
func (w *SyncWorker) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// RunOnce runs a single sync cycle and logs any failure
func (w *SyncWorker) RunOnce(ctx context.Context) {
	if err := w.SyncFromDatabase(ctx); err != nil {
		w.logger.Error("failed to rebuild winnings leaderboard", "error", err)
	}
}
