package snapshot

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/textindex/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/textindex/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/textindex/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/textindex/pkg/metrics"
)

// Store persists a single index snapshot. Load returns an error wrapping
// ErrSnapshotNotFound when nothing has been saved yet.
type Store interface {
	Save(ctx context.Context, snap *index.Snapshot) error
	Load(ctx context.Context) (*index.Snapshot, error)
	Close() error
}

// Open builds the store selected by cfg.Driver.
func Open(cfg config.SnapshotConfig) (Store, error) {
	switch cfg.Driver {
	case "", "file":
		return NewFileStore(cfg.Path, cfg.Compress), nil
	case "sqlite":
		return OpenSQLite(cfg.Path, cfg.Name, cfg.Compress)
	default:
		return nil, apperrors.Configf("unknown snapshot driver %q", cfg.Driver)
	}
}

// Source is what the flusher snapshots: an index that reports a generation
// and can export and restore itself.
type Source interface {
	Generation() uint64
	Snapshot() *index.Snapshot
	Restore(snap *index.Snapshot) error
}

// Flusher saves the source whenever its generation has moved since the last
// save, on a fixed interval and once more on shutdown.
type Flusher struct {
	store   Store
	source  Source
	metrics *metrics.Metrics
	logger  *slog.Logger

	mu        sync.Mutex
	savedGen  uint64
	haveSaved bool
}

func NewFlusher(store Store, source Source, m *metrics.Metrics) *Flusher {
	return &Flusher{
		store:   store,
		source:  source,
		metrics: m,
		logger:  slog.Default().With("component", "snapshot"),
	}
}

// Restore loads the stored snapshot into the source. A missing snapshot is
// not an error: it reports false and leaves the source empty.
func (f *Flusher) Restore(ctx context.Context) (bool, error) {
	snap, err := f.store.Load(ctx)
	if errors.Is(err, apperrors.ErrSnapshotNotFound) {
		f.logger.Info("no snapshot found, starting empty")
		return false, nil
	}
	if err == nil {
		err = f.source.Restore(snap)
	}
	f.metrics.ObserveSnapshot("load", err)
	if err != nil {
		return false, err
	}
	f.mu.Lock()
	f.savedGen, f.haveSaved = f.source.Generation(), true
	f.mu.Unlock()
	f.logger.Info("snapshot restored", "docs", snap.DocCount, "terms", len(snap.Terms))
	return true, nil
}

// Flush saves the source if it changed since the last save. It reports
// whether a snapshot was written.
func (f *Flusher) Flush(ctx context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	gen := f.source.Generation()
	if f.haveSaved && gen == f.savedGen {
		return false, nil
	}
	start := time.Now()
	snap := f.source.Snapshot()
	err := f.store.Save(ctx, snap)
	f.metrics.ObserveSnapshot("save", err)
	if err != nil {
		return false, err
	}
	f.savedGen, f.haveSaved = gen, true
	f.logger.Info("snapshot flushed",
		"generation", gen,
		"docs", snap.DocCount,
		"terms", len(snap.Terms),
		"latency_ms", time.Since(start).Milliseconds(),
	)
	return true, nil
}

// Run flushes every interval until ctx is cancelled, then flushes one last
// time with a fresh context. A non-positive interval only flushes on
// shutdown.
func (f *Flusher) Run(ctx context.Context, interval time.Duration) {
	var tick <-chan time.Time
	if interval > 0 {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		tick = ticker.C
	}
	for {
		select {
		case <-ctx.Done():
			f.logger.Info("flush loop stopping, performing final flush")
			finalCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			if _, err := f.Flush(finalCtx); err != nil {
				f.logger.Error("final flush failed", "error", err)
			}
			cancel()
			return
		case <-tick:
			if _, err := f.Flush(ctx); err != nil {
				f.logger.Error("periodic flush failed", "error", err)
			}
		}
	}
}
