package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/markmate/upload-engine/internal/credentials"
	"github.com/markmate/upload-engine/internal/domain"
	"github.com/markmate/upload-engine/internal/observability"
	"github.com/markmate/upload-engine/internal/portal"
	"github.com/markmate/upload-engine/internal/repository"
	"go.uber.org/zap"
)

// BatchExecutor runs one queued batch end to end: it claims the batch, opens
// a portal session with the batch's credential, submits each pending candidate
// in spreadsheet order, and records the terminal batch status.
//
// Candidate-level failures are absorbed: the candidate is marked failed and
// the pass continues. Session-level failures abort the pass, fail the batch,
// and leave the remaining candidates pending.
type BatchExecutor struct {
	batches     repository.BatchRepository
	candidates  repository.CandidateRepository
	credentials credentials.Provider
	opener      portal.Opener
	logger      *zap.Logger
	metrics     *observability.Metrics
	now         func() time.Time
}

func NewBatchExecutor(
	batches repository.BatchRepository,
	candidates repository.CandidateRepository,
	creds credentials.Provider,
	opener portal.Opener,
	logger *zap.Logger,
) (*BatchExecutor, error) {
	if batches == nil {
		return nil, fmt.Errorf("batch repository is required")
	}
	if candidates == nil {
		return nil, fmt.Errorf("candidate repository is required")
	}
	if creds == nil {
		return nil, fmt.Errorf("credential provider is required")
	}
	if opener == nil {
		return nil, fmt.Errorf("portal opener is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &BatchExecutor{
		batches:     batches,
		candidates:  candidates,
		credentials: creds,
		opener:      opener,
		logger:      logger,
		now:         time.Now,
	}, nil
}

func (e *BatchExecutor) SetMetrics(metrics *observability.Metrics) {
	if e == nil {
		return
	}
	e.metrics = metrics
}

// Execute processes one batch. A non-nil error means the batch was never
// claimed and the message should be redelivered; every failure after the
// claim is recorded on the batch itself and absorbed.
func (e *BatchExecutor) Execute(ctx context.Context, batchID string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	startedAt := e.now().UTC()
	claimed, err := e.batches.MarkProcessing(ctx, batchID, startedAt)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			e.logger.Warn("batch not found during claim, skipping",
				zap.String("batchId", batchID),
			)
			return nil
		}
		return fmt.Errorf("failed to claim batch: %w", err)
	}
	if !claimed {
		// Redelivered message for a batch already claimed or finished.
		e.logger.Info("batch not pending, skipping redelivery",
			zap.String("batchId", batchID),
		)
		return nil
	}

	batch, err := e.batches.GetByID(ctx, batchID)
	if err != nil {
		e.failBatch(ctx, batchID, startedAt, fmt.Sprintf("failed to load batch: %v", err))
		return nil
	}

	pending, err := e.candidates.ListPendingByBatch(ctx, batchID)
	if err != nil {
		e.failBatch(ctx, batchID, startedAt, fmt.Sprintf("failed to load candidates: %v", err))
		return nil
	}

	// The plaintext credential is resolved here, used for the single Open
	// call below, and goes out of scope with this function.
	cred, err := e.credentials.Resolve(ctx, batch.CredentialID)
	if err != nil {
		e.logger.Error("credential resolution failed",
			zap.String("batchId", batchID),
			zap.String("credentialId", batch.CredentialID),
			zap.Error(err),
		)
		if e.metrics != nil {
			e.metrics.IncSessionOpenFailure("credential")
		}
		e.failBatch(ctx, batchID, startedAt, fmt.Sprintf("credential resolution failed: %v", err))
		return nil
	}

	session, err := e.opener.Open(ctx, cred)
	if err != nil {
		kind := portal.ErrorKind(err)
		e.logger.Error("portal session open failed",
			zap.String("batchId", batchID),
			zap.String("kind", string(kind)),
			zap.Error(err),
		)
		if e.metrics != nil {
			e.metrics.IncSessionOpenFailure(strings.ToLower(string(kind)))
		}
		e.failBatch(ctx, batchID, startedAt, fmt.Sprintf("session open failed: %v", err))
		return nil
	}
	defer e.closeSession(session, batchID)

	e.logger.Info("batch processing started",
		zap.String("batchId", batchID),
		zap.String("portalBatchId", batch.PortalBatchID),
		zap.Int("pendingCandidates", len(pending)),
	)

	for i := range pending {
		candidate := &pending[i]

		if ctx.Err() != nil {
			e.failBatch(ctx, batchID, startedAt, "processing canceled")
			return nil
		}

		outcome := e.submitCandidate(ctx, session, batch, candidate)

		if outcome.Kind == portal.OutcomeAccepted {
			if _, err := e.candidates.MarkSuccess(ctx, candidate.ID); err != nil {
				e.failBatch(ctx, batchID, startedAt, fmt.Sprintf("failed to record candidate success: %v", err))
				return nil
			}
			continue
		}

		if _, err := e.candidates.MarkFailed(ctx, candidate.ID, outcome.Reason); err != nil {
			e.failBatch(ctx, batchID, startedAt, fmt.Sprintf("failed to record candidate failure: %v", err))
			return nil
		}

		e.logger.Warn("candidate submission failed",
			zap.String("batchId", batchID),
			zap.String("candidateId", candidate.ID),
			zap.String("externalId", candidate.ExternalID),
			zap.String("outcome", string(outcome.Kind)),
			zap.String("reason", outcome.Reason),
		)

		if err := session.Recover(ctx); err != nil {
			e.logger.Error("session recovery failed, aborting batch",
				zap.String("batchId", batchID),
				zap.String("candidateId", candidate.ID),
				zap.Error(err),
			)
			e.failBatch(ctx, batchID, startedAt, fmt.Sprintf("session recovery failed: %v", err))
			return nil
		}
	}

	completedAt := e.now().UTC()
	if err := e.batches.Finalize(ctx, batchID, domain.BatchStatusComplete, completedAt, ""); err != nil {
		e.logger.Error("failed to finalize batch",
			zap.String("batchId", batchID),
			zap.Error(err),
		)
		return nil
	}

	if e.metrics != nil {
		e.metrics.IncBatchProcessed(string(domain.BatchStatusComplete))
		e.metrics.ObserveBatchDuration(completedAt.Sub(startedAt))
	}

	e.logger.Info("batch processing complete",
		zap.String("batchId", batchID),
		zap.Int("candidates", len(pending)),
		zap.Duration("duration", completedAt.Sub(startedAt)),
	)
	return nil
}

func (e *BatchExecutor) submitCandidate(
	ctx context.Context,
	session portal.Session,
	batch *domain.Batch,
	candidate *domain.Candidate,
) portal.Outcome {
	marks := make([]portal.MarkEntry, 0, len(candidate.Marks))
	for i := range candidate.Marks {
		marks = append(marks, portal.MarkEntry{
			NOSIdentifier:  candidate.Marks[i].NOSIdentifier,
			TheoryMarks:    candidate.Marks[i].TheoryMarks,
			PracticalMarks: candidate.Marks[i].PracticalMarks,
		})
	}

	submitStart := e.now()
	outcome := session.Submit(ctx, portal.Submission{
		ExternalID:    candidate.ExternalID,
		PortalBatchID: batch.PortalBatchID,
		Marks:         marks,
	})
	if e.metrics != nil {
		e.metrics.ObserveSubmitDuration(e.now().Sub(submitStart))
		e.metrics.IncCandidateOutcome(string(outcome.Kind))
	}
	return outcome
}

// failBatch records a terminal failure for the batch. Candidates keep whatever
// status they already reached; unprocessed ones stay pending.
func (e *BatchExecutor) failBatch(ctx context.Context, batchID string, startedAt time.Time, reason string) {
	completedAt := e.now().UTC()
	if err := e.batches.Finalize(ctx, batchID, domain.BatchStatusFailed, completedAt, reason); err != nil {
		e.logger.Error("failed to record batch failure",
			zap.String("batchId", batchID),
			zap.String("reason", reason),
			zap.Error(err),
		)
		return
	}

	if e.metrics != nil {
		e.metrics.IncBatchProcessed(string(domain.BatchStatusFailed))
		e.metrics.ObserveBatchDuration(completedAt.Sub(startedAt))
	}
}

func (e *BatchExecutor) closeSession(session portal.Session, batchID string) {
	if err := session.Close(); err != nil {
		e.logger.Warn("portal session close failed",
			zap.String("batchId", batchID),
			zap.Error(err),
		)
	}
}
