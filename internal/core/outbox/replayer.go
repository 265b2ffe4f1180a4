package outbox

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/markdave123-py/dsa-galaxy/internal/core"
	"github.com/markdave123-py/dsa-galaxy/internal/metrics"
	"github.com/markdave123-py/dsa-galaxy/internal/models"
)

// Config controls how often and how widely the replayer works.
type Config struct {
	Interval    time.Duration
	Workers     int
	MaxAttempts int
	BatchSize   int
}

// Replayer re-applies message writes that failed after a completion succeeded.
// Records carry the original message id and timestamp, so a replay that races
// a late original write is a no-op and transcript order is preserved.
type Replayer struct {
	store   core.Store
	metrics metrics.Recorder
	logger  *slog.Logger
	cfg     Config
}

func NewReplayer(store core.Store, rec metrics.Recorder, logger *slog.Logger, cfg Config) *Replayer {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if rec == nil {
		rec = metrics.Nop{}
	}
	return &Replayer{store: store, metrics: rec, logger: logger, cfg: cfg}
}

// Start runs a replay pass every Interval until ctx is cancelled.
func (r *Replayer) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(r.cfg.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				r.logger.Info("outbox replayer shutting down")
				return
			case <-ticker.C:
				if _, err := r.RunOnce(ctx); err != nil {
					r.logger.Error("outbox replay pass failed", "error", err)
				}
			}
		}
	}()
}

// RunOnce replays one batch of pending records and returns how many were applied.
func (r *Replayer) RunOnce(ctx context.Context) (int, error) {
	pending, err := r.store.PendingOutbox(ctx, r.cfg.MaxAttempts, r.cfg.BatchSize)
	if err != nil {
		return 0, err
	}
	if len(pending) == 0 {
		return 0, nil
	}

	applied := make([]bool, len(pending))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Workers)
	for i := range pending {
		rec := pending[i]
		g.Go(func() error {
			applied[i] = r.replayOne(gctx, rec)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	n := 0
	for _, ok := range applied {
		if ok {
			n++
		}
	}
	r.logger.Info("outbox replay pass complete", "pending", len(pending), "applied", n)
	return n, nil
}

func (r *Replayer) replayOne(ctx context.Context, rec models.OutboxRecord) bool {
	msg := rec.Message()
	err := r.store.AppendMessage(ctx, rec.OwnerID, &msg)

	switch {
	case err == nil:
		r.metrics.RecordOutboxReplay(metrics.ReplayApplied)
	case errors.Is(err, models.ErrNotFound):
		// The session was deleted; nothing is left to write into.
		r.metrics.RecordOutboxReplay(metrics.ReplayDropped)
		r.logger.Warn("outbox record dropped, session gone",
			"outbox_id", rec.ID, "session_id", rec.SessionID, "message_id", rec.MessageID)
		err = nil
	default:
		r.metrics.RecordOutboxReplay(metrics.ReplayFailed)
		r.logger.Warn("outbox replay failed",
			"outbox_id", rec.ID, "session_id", rec.SessionID, "attempt", rec.Attempts+1, "error", err)
	}

	if rerr := r.store.ResolveOutbox(ctx, rec.ID, err); rerr != nil {
		r.logger.Error("outbox resolve failed", "outbox_id", rec.ID, "error", rerr)
		return false
	}
	return err == nil
}
