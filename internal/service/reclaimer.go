package service

import (
	"context"
	"fmt"
	"time"

	"github.com/markmate/upload-engine/internal/domain"
	"github.com/markmate/upload-engine/internal/observability"
	"github.com/markmate/upload-engine/internal/repository"
	"go.uber.org/zap"
)

const (
	defaultReclaimInterval = time.Minute
	defaultReclaimLimit    = 50
	reclaimErrorMessage    = "processing interrupted"
)

// Reclaimer periodically sweeps batches stuck in processing. A batch that has
// been processing longer than the threshold belonged to a worker that died
// mid-pass; it is failed so operators see it, and its untouched candidates
// stay pending. The sweep never re-enqueues: resubmission is an operator
// decision, not an automatic one.
type Reclaimer struct {
	batches   repository.BatchRepository
	threshold time.Duration
	interval  time.Duration
	limit     int
	logger    *zap.Logger
	metrics   *observability.Metrics
	now       func() time.Time
}

func NewReclaimer(
	batches repository.BatchRepository,
	threshold time.Duration,
	interval time.Duration,
	logger *zap.Logger,
) (*Reclaimer, error) {
	if batches == nil {
		return nil, fmt.Errorf("batch repository is required")
	}
	if threshold <= 0 {
		return nil, fmt.Errorf("reclaim threshold must be positive")
	}
	if interval <= 0 {
		interval = defaultReclaimInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Reclaimer{
		batches:   batches,
		threshold: threshold,
		interval:  interval,
		limit:     defaultReclaimLimit,
		logger:    logger,
		now:       time.Now,
	}, nil
}

func (r *Reclaimer) SetMetrics(metrics *observability.Metrics) {
	if r == nil {
		return
	}
	r.metrics = metrics
}

func (r *Reclaimer) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	// Sweep once at startup so batches stranded by the previous process do
	// not wait for the first ticker edge.
	if err := r.sweep(ctx); err != nil && ctx.Err() == nil {
		r.logger.Error("reclaimer initial sweep failed", zap.Error(err))
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := r.sweep(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				r.logger.Error("reclaimer sweep failed", zap.Error(err))
			}
		}
	}
}

func (r *Reclaimer) sweep(ctx context.Context) error {
	cutoff := r.now().UTC().Add(-r.threshold)
	stuck, err := r.batches.FindStuckProcessing(ctx, cutoff, r.limit)
	if err != nil {
		return fmt.Errorf("failed to find stuck batches: %w", err)
	}

	for i := range stuck {
		batch := &stuck[i]
		if err := r.batches.Finalize(ctx, batch.ID, domain.BatchStatusFailed, r.now().UTC(), reclaimErrorMessage); err != nil {
			r.logger.Error("failed to reclaim stuck batch",
				zap.String("batchId", batch.ID),
				zap.Error(err),
			)
			continue
		}

		if r.metrics != nil {
			r.metrics.IncBatchReclaimed()
		}
		r.logger.Warn("reclaimed stuck batch",
			zap.String("batchId", batch.ID),
			zap.Timep("startedAt", batch.StartedAt),
		)
	}

	return nil
}
