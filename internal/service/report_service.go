package service

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/markmate/upload-engine/internal/domain"
	"github.com/markmate/upload-engine/internal/repository"
	"go.uber.org/zap"
)

// DashboardStats is the aggregate view served to the operator dashboard.
type DashboardStats struct {
	TotalUploads       int64          `json:"totalUploads"`
	PendingUploads     int64          `json:"pendingUploads"`
	CompletedToday     int64          `json:"completedToday"`
	SuccessRate        float64        `json:"successRate"`
	AvgDurationSeconds float64        `json:"avgDurationSeconds"`
	RecentActivity     []domain.Batch `json:"recentActivity"`
}

// BatchSummary is one batch plus its candidate status breakdown.
type BatchSummary struct {
	Batch  domain.Batch           `json:"batch"`
	Counts []CandidateStatusCount `json:"counts"`
}

type CandidateStatusCount struct {
	Status domain.CandidateStatus `json:"status"`
	Count  int                    `json:"count"`
}

// ReportService answers read-only queries over batches and candidates.
type ReportService struct {
	batches    repository.BatchRepository
	candidates repository.CandidateRepository
	logger     *zap.Logger
	now        func() time.Time
}

func NewReportService(
	batches repository.BatchRepository,
	candidates repository.CandidateRepository,
	logger *zap.Logger,
) (*ReportService, error) {
	if batches == nil {
		return nil, fmt.Errorf("batch repository is required")
	}
	if candidates == nil {
		return nil, fmt.Errorf("candidate repository is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &ReportService{
		batches:    batches,
		candidates: candidates,
		logger:     logger,
		now:        time.Now,
	}, nil
}

func (s *ReportService) ListBatches(ctx context.Context, params repository.ListParams) ([]domain.Batch, int64, error) {
	return s.batches.List(ctx, params)
}

func (s *ReportService) ListCandidates(ctx context.Context, batchID string, params repository.CandidateListParams) ([]domain.Candidate, int64, error) {
	if strings.TrimSpace(batchID) == "" {
		return nil, 0, fmt.Errorf("%w: batch id is required", domain.ErrValidation)
	}
	if _, err := s.batches.GetByID(ctx, strings.TrimSpace(batchID)); err != nil {
		return nil, 0, err
	}
	return s.candidates.ListByBatch(ctx, strings.TrimSpace(batchID), params)
}

func (s *ReportService) GetBatchSummary(ctx context.Context, batchID string) (*BatchSummary, error) {
	if strings.TrimSpace(batchID) == "" {
		return nil, fmt.Errorf("%w: batch id is required", domain.ErrValidation)
	}

	batch, err := s.batches.GetByID(ctx, strings.TrimSpace(batchID))
	if err != nil {
		return nil, err
	}

	counts, err := s.candidates.StatusCounts(ctx, batch.ID)
	if err != nil {
		return nil, err
	}

	summary := &BatchSummary{Batch: *batch}
	for _, count := range counts {
		summary.Counts = append(summary.Counts, CandidateStatusCount{
			Status: count.Status,
			Count:  count.Count,
		})
	}
	return summary, nil
}

// GetActive returns the batch currently processing, or the most recently
// finished one when nothing is running. Nil means no batch has ever run.
func (s *ReportService) GetActive(ctx context.Context) (*BatchSummary, error) {
	batch, err := s.batches.FindActive(ctx)
	if err != nil {
		return nil, err
	}
	if batch == nil {
		return nil, nil
	}
	return s.GetBatchSummary(ctx, batch.ID)
}

func (s *ReportService) GetStats(ctx context.Context) (*DashboardStats, error) {
	now := s.now().UTC()
	raw, err := s.batches.Stats(ctx, now)
	if err != nil {
		return nil, err
	}

	stats := &DashboardStats{
		TotalUploads:   raw.TotalUploads,
		PendingUploads: raw.PendingUploads,
		CompletedToday: raw.CompletedToday,
	}
	if raw.FinishedUploads > 0 {
		stats.SuccessRate = float64(raw.CompletedUpload) / float64(raw.FinishedUploads)
		stats.AvgDurationSeconds = raw.TotalDuration.Seconds() / float64(raw.FinishedUploads)
	}

	recent, err := s.batches.RecentActivity(ctx, 3)
	if err != nil {
		return nil, err
	}
	stats.RecentActivity = recent

	return stats, nil
}

// ExportCSV streams every batch with its candidate status breakdown as CSV.
func (s *ReportService) ExportCSV(ctx context.Context, w io.Writer) error {
	writer := csv.NewWriter(w)

	header := []string{"batch_id", "file_name", "portal_batch_id", "status", "error", "started_at", "completed_at", "pending", "success", "failed"}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}

	const pageSize = 100
	for page := 1; ; page++ {
		batches, _, err := s.batches.List(ctx, repository.ListParams{Page: page, PageSize: pageSize})
		if err != nil {
			return fmt.Errorf("failed to list batches for export: %w", err)
		}
		if len(batches) == 0 {
			break
		}

		for i := range batches {
			record, err := s.exportRecord(ctx, &batches[i])
			if err != nil {
				return err
			}
			if err := writer.Write(record); err != nil {
				return fmt.Errorf("failed to write csv record: %w", err)
			}
		}

		if len(batches) < pageSize {
			break
		}
	}

	writer.Flush()
	return writer.Error()
}

func (s *ReportService) exportRecord(ctx context.Context, batch *domain.Batch) ([]string, error) {
	counts, err := s.candidates.StatusCounts(ctx, batch.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to count candidates for export: %w", err)
	}

	var pending, success, failed int
	for _, count := range counts {
		switch count.Status {
		case domain.CandidateStatusPending:
			pending = count.Count
		case domain.CandidateStatusSuccess:
			success = count.Count
		case domain.CandidateStatusFailed:
			failed = count.Count
		}
	}

	errorMessage := ""
	if batch.ErrorMessage != nil {
		errorMessage = *batch.ErrorMessage
	}

	return []string{
		batch.ID,
		batch.FileName,
		batch.PortalBatchID,
		string(batch.Status),
		errorMessage,
		formatTimestamp(batch.StartedAt),
		formatTimestamp(batch.CompletedAt),
		strconv.Itoa(pending),
		strconv.Itoa(success),
		strconv.Itoa(failed),
	}, nil
}

func formatTimestamp(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
