package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/markmate/upload-engine/internal/domain"
	"github.com/markmate/upload-engine/internal/excel"
	"github.com/markmate/upload-engine/internal/queue"
	"github.com/markmate/upload-engine/internal/repository"
	"go.uber.org/zap"
)

const maxBatchCandidates = 1000

// UploadRequest carries everything needed to queue one spreadsheet.
type UploadRequest struct {
	FileName      string
	PortalBatchID string
	CredentialID  string
	Data          []byte
}

// ValidationResult summarizes a workbook without persisting anything.
type ValidationResult struct {
	CandidateCount int      `json:"candidateCount"`
	NOSCount       int      `json:"nosCount"`
	Headers        []string `json:"headers"`
	Warnings       []string `json:"warnings"`
}

// UploadService turns uploaded spreadsheets into queued batches.
type UploadService struct {
	batches     repository.BatchRepository
	candidates  repository.CandidateRepository
	credentials repository.CredentialRepository
	publisher   queue.Publisher
	logger      *zap.Logger
}

func NewUploadService(
	batches repository.BatchRepository,
	candidates repository.CandidateRepository,
	credentials repository.CredentialRepository,
	publisher queue.Publisher,
	logger *zap.Logger,
) (*UploadService, error) {
	if batches == nil {
		return nil, fmt.Errorf("batch repository is required")
	}
	if candidates == nil {
		return nil, fmt.Errorf("candidate repository is required")
	}
	if credentials == nil {
		return nil, fmt.Errorf("credential repository is required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("publisher is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &UploadService{
		batches:     batches,
		candidates:  candidates,
		credentials: credentials,
		publisher:   publisher,
		logger:      logger,
	}, nil
}

// Validate parses the workbook and reports its shape without creating a batch.
func (s *UploadService) Validate(data []byte) (*ValidationResult, error) {
	workbook, err := excel.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	return &ValidationResult{
		CandidateCount: len(workbook.Rows),
		NOSCount:       workbook.NOSCount,
		Headers:        workbook.Headers,
		Warnings:       workbook.Warnings,
	}, nil
}

// CreateUpload parses the workbook, persists the batch with its candidates
// and marks, and enqueues the batch for the worker. The batch is created
// pending; a publish failure fails it immediately so it cannot strand.
func (s *UploadService) CreateUpload(ctx context.Context, req UploadRequest) (*domain.Batch, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	req.FileName = strings.TrimSpace(req.FileName)
	req.PortalBatchID = strings.TrimSpace(req.PortalBatchID)
	req.CredentialID = strings.TrimSpace(req.CredentialID)

	if req.FileName == "" {
		return nil, fmt.Errorf("%w: file name is required", domain.ErrValidation)
	}
	if req.PortalBatchID == "" {
		return nil, fmt.Errorf("%w: portal batch id is required", domain.ErrValidation)
	}
	if req.CredentialID == "" {
		return nil, fmt.Errorf("%w: credential id is required", domain.ErrValidation)
	}

	if _, err := s.credentials.GetByID(ctx, req.CredentialID); err != nil {
		return nil, fmt.Errorf("failed to verify credential: %w", err)
	}

	workbook, err := excel.Parse(req.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	if len(workbook.Rows) > maxBatchCandidates {
		return nil, fmt.Errorf("%w: batch exceeds %d candidates", domain.ErrValidation, maxBatchCandidates)
	}

	batch := &domain.Batch{
		ID:            uuid.NewString(),
		FileName:      req.FileName,
		PortalBatchID: req.PortalBatchID,
		CredentialID:  req.CredentialID,
		Status:        domain.BatchStatusPending,
	}
	if err := batch.Validate(); err != nil {
		return nil, err
	}

	candidates, err := candidatesFromWorkbook(batch.ID, workbook)
	if err != nil {
		return nil, err
	}

	if err := s.batches.Create(ctx, batch); err != nil {
		return nil, fmt.Errorf("failed to create batch: %w", err)
	}
	if err := s.candidates.CreateBatch(ctx, candidates); err != nil {
		return nil, fmt.Errorf("failed to create candidates: %w", err)
	}

	msg := queue.BatchMessage{
		BatchID:       batch.ID,
		CorrelationID: uuid.NewString(),
	}
	if err := s.publisher.Publish(ctx, msg); err != nil {
		s.logger.Error("failed to enqueue batch",
			zap.String("batchId", batch.ID),
			zap.Error(err),
		)
		if failErr := s.batches.Finalize(ctx, batch.ID, domain.BatchStatusFailed, nowUTC(), "failed to enqueue batch"); failErr != nil {
			s.logger.Error("failed to mark batch failed after enqueue error",
				zap.String("batchId", batch.ID),
				zap.Error(failErr),
			)
		}
		return nil, fmt.Errorf("failed to enqueue batch: %w", err)
	}

	s.logger.Info("batch queued",
		zap.String("batchId", batch.ID),
		zap.String("fileName", batch.FileName),
		zap.Int("candidates", len(candidates)),
		zap.Int("warnings", len(workbook.Warnings)),
	)
	return batch, nil
}

func nowUTC() time.Time { return time.Now().UTC() }

func candidatesFromWorkbook(batchID string, workbook *excel.Workbook) ([]*domain.Candidate, error) {
	candidates := make([]*domain.Candidate, 0, len(workbook.Rows))

	for i, row := range workbook.Rows {
		if strings.TrimSpace(row.ExternalID) == "" {
			return nil, fmt.Errorf("%w: row %d has no candidate id", domain.ErrValidation, row.RowNumber)
		}

		candidate := &domain.Candidate{
			ID:         uuid.NewString(),
			BatchID:    batchID,
			ExternalID: row.ExternalID,
			Name:       row.Name,
			RowIndex:   i,
			Status:     domain.CandidateStatusPending,
		}

		for _, mark := range row.Marks {
			candidate.Marks = append(candidate.Marks, domain.CandidateMark{
				ID:             uuid.NewString(),
				CandidateID:    candidate.ID,
				NOSIdentifier:  mark.NOSIdentifier,
				TheoryMarks:    mark.TheoryMarks,
				PracticalMarks: mark.PracticalMarks,
			})
		}

		if err := candidate.Validate(); err != nil {
			return nil, err
		}
		candidates = append(candidates, candidate)
	}

	return candidates, nil
}
