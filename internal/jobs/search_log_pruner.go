package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/Checker-Finance/price-finder/internal/metrics"
)

const prunerJob = "search_log_pruner"

// PrunedSubject carries a notice after each successful prune.
const PrunedSubject = "evt.price_finder.search_log.pruned.v1"

// DBExecutor defines minimal subset of pgxpool.Pool needed for execution.
type DBExecutor interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// EventPublisher publishes job notices; *publisher.Publisher satisfies it.
type EventPublisher interface {
	Publish(ctx context.Context, subject string, payload any, header nats.Header) error
}

// SearchLogPruner periodically deletes search log rows older than the retention window.
type SearchLogPruner struct {
	logger    *zap.Logger
	db        DBExecutor
	publisher EventPublisher
	retention time.Duration
	interval  time.Duration
	now       func() time.Time
	stopCh    chan struct{}
	stopOnce  sync.Once
}

// NewSearchLogPruner constructs the job. publisher may be nil.
func NewSearchLogPruner(logger *zap.Logger, db DBExecutor, pub EventPublisher, retention, interval time.Duration) *SearchLogPruner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SearchLogPruner{
		logger:    logger,
		db:        db,
		publisher: pub,
		retention: retention,
		interval:  interval,
		now:       time.Now,
		stopCh:    make(chan struct{}),
	}
}

// Start runs one prune immediately, then one per interval until stopped.
func (r *SearchLogPruner) Start(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info("search_log_pruner.started",
		zap.Duration("interval", r.interval),
		zap.Duration("retention", r.retention))

	_, _ = r.RunOnce(ctx)
	for {
		select {
		case <-ticker.C:
			_, _ = r.RunOnce(ctx)
		case <-r.stopCh:
			r.logger.Info("search_log_pruner.stopped (manual stop)")
			return
		case <-ctx.Done():
			r.logger.Info("search_log_pruner.stopped (context canceled)")
			return
		}
	}
}

// Stop halts the loop. Safe to call more than once.
func (r *SearchLogPruner) Stop() {
	r.stopOnce.Do(func() { close(r.stopCh) })
}

// RunOnce deletes expired rows and returns how many were removed.
func (r *SearchLogPruner) RunOnce(ctx context.Context) (int64, error) {
	start := r.now()
	cutoff := start.Add(-r.retention).UTC()

	tag, err := r.db.Exec(ctx, `DELETE FROM search_history WHERE searched_at < $1`, cutoff)
	if err != nil {
		r.logger.Error("search_log_pruner.prune_failed", zap.Error(err))
		metrics.IncError("jobs", "prune_failed")
		return 0, err
	}
	deleted := tag.RowsAffected()
	metrics.SetLastJobRun(prunerJob, start)

	if r.publisher != nil && deleted > 0 {
		event := map[string]any{
			"event":     PrunedSubject,
			"timestamp": r.now().UTC(),
			"cutoff":    cutoff,
			"deleted":   deleted,
		}
		if err := r.publisher.Publish(ctx, PrunedSubject, event, nil); err != nil {
			r.logger.Warn("search_log_pruner.nats_publish_failed", zap.Error(err))
		}
	}

	r.logger.Info("search_log_pruner.success",
		zap.Int64("deleted", deleted),
		zap.Time("cutoff", cutoff),
		zap.Duration("duration", time.Since(start)))
	return deleted, nil
}
