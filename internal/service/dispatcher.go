package service

import (
	"context"
	"fmt"

	"github.com/markmate/upload-engine/internal/observability"
	"github.com/markmate/upload-engine/internal/queue"
	"github.com/markmate/upload-engine/internal/ratelimit"
	"go.uber.org/zap"
)

// sessionOpenRateKey is the rate limiter resource guarding how often a new
// portal session may be opened.
const sessionOpenRateKey = "session-open"

// SessionGuard serializes portal sessions across worker processes. The
// dispatcher holds the guard for the full duration of a batch pass.
type SessionGuard interface {
	Acquire(ctx context.Context) error
	Release(ctx context.Context) error
}

// Dispatcher is the single consumer loop: it pulls batch jobs off the queue
// one at a time and runs each through the executor. At most one portal
// session exists at any moment because the loop never overlaps batches and
// the session guard extends that guarantee across processes.
type Dispatcher struct {
	consumer    queue.Consumer
	executor    *BatchExecutor
	rateLimiter ratelimit.RateLimiter
	guard       SessionGuard
	logger      *zap.Logger
}

func NewDispatcher(
	consumer queue.Consumer,
	executor *BatchExecutor,
	rateLimiter ratelimit.RateLimiter,
	guard SessionGuard,
	logger *zap.Logger,
) (*Dispatcher, error) {
	if consumer == nil {
		return nil, fmt.Errorf("consumer is required")
	}
	if executor == nil {
		return nil, fmt.Errorf("executor is required")
	}
	if rateLimiter == nil {
		return nil, fmt.Errorf("rate limiter is required")
	}
	if guard == nil {
		return nil, fmt.Errorf("session guard is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Dispatcher{
		consumer:    consumer,
		executor:    executor,
		rateLimiter: rateLimiter,
		guard:       guard,
		logger:      logger,
	}, nil
}

// Start consumes batch jobs until context cancellation.
func (d *Dispatcher) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	d.logger.Info("dispatcher started", zap.String("queue", queue.UploadQueueName))
	return d.consumer.Consume(ctx, d.handleMessage)
}

func (d *Dispatcher) handleMessage(ctx context.Context, msg queue.BatchMessage) error {
	if err := msg.Validate(); err != nil {
		// Malformed payloads can never succeed; ack and drop.
		d.logger.Warn("dropping invalid batch message", zap.Error(err))
		return nil
	}

	if msg.CorrelationID != "" {
		ctx = observability.WithCorrelationID(ctx, msg.CorrelationID)
	}
	logger := observability.WithContextLogger(d.logger, ctx).With(zap.String("batchId", msg.BatchID))

	// Throttle session opens before taking the guard so a burst of queued
	// batches drains at the configured pace.
	if err := d.rateLimiter.Wait(ctx, sessionOpenRateKey); err != nil {
		return fmt.Errorf("rate limiter wait failed: %w", err)
	}

	if err := d.guard.Acquire(ctx); err != nil {
		return fmt.Errorf("failed to acquire session guard: %w", err)
	}
	defer func() {
		if err := d.guard.Release(context.WithoutCancel(ctx)); err != nil {
			logger.Warn("failed to release session guard", zap.Error(err))
		}
	}()

	// Executor errors mean the batch was never claimed; surface them so the
	// message is redelivered. Everything else is recorded on the batch and
	// the loop moves on to the next job.
	if err := d.executor.Execute(ctx, msg.BatchID); err != nil {
		logger.Error("batch execution failed before claim", zap.Error(err))
		return err
	}

	return nil
}
