package repository

import (
	"context"

	"github.com/markmate/upload-engine/internal/domain"
	"gorm.io/gorm"
)

// StatusCount is one candidate-status bucket within a batch.
type StatusCount struct {
	Status domain.CandidateStatus `gorm:"column:status"`
	Count  int                    `gorm:"column:count"`
}

// CandidateListParams filters and paginates candidate listings for a batch.
type CandidateListParams struct {
	Search   string
	Status   *domain.CandidateStatus
	Page     int
	PageSize int
}

type CandidateRepository interface {
	CreateBatch(ctx context.Context, candidates []*domain.Candidate) error

	// ListPendingByBatch returns the batch's unprocessed candidates with
	// their marks loaded, in stored spreadsheet order.
	ListPendingByBatch(ctx context.Context, batchID string) ([]domain.Candidate, error)

	// MarkSuccess and MarkFailed record a candidate's terminal status. Both
	// only transition PENDING candidates: a candidate that already holds a
	// terminal status is left untouched and false is returned.
	MarkSuccess(ctx context.Context, id string) (bool, error)
	MarkFailed(ctx context.Context, id string, errorMessage string) (bool, error)

	StatusCounts(ctx context.Context, batchID string) ([]StatusCount, error)
	ListByBatch(ctx context.Context, batchID string, params CandidateListParams) ([]domain.Candidate, int64, error)
}

type GormCandidateRepo struct {
	db *gorm.DB
}

func NewGormCandidateRepo(db *gorm.DB) *GormCandidateRepo {
	return &GormCandidateRepo{db: db}
}

func (r *GormCandidateRepo) CreateBatch(ctx context.Context, candidates []*domain.Candidate) error {
	if len(candidates) == 0 {
		return nil
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		models := make([]CandidateModel, 0, len(candidates))
		for _, c := range candidates {
			if model := candidateModelFromDomain(c); model != nil {
				models = append(models, *model)
			}
		}
		if err := tx.CreateInBatches(&models, 100).Error; err != nil {
			return err
		}

		var marks []CandidateMarkModel
		for _, c := range candidates {
			if c == nil {
				continue
			}
			for i := range c.Marks {
				if model := markModelFromDomain(&c.Marks[i]); model != nil {
					marks = append(marks, *model)
				}
			}
		}
		if len(marks) == 0 {
			return nil
		}
		return tx.CreateInBatches(&marks, 200).Error
	})
}

func (r *GormCandidateRepo) ListPendingByBatch(ctx context.Context, batchID string) ([]domain.Candidate, error) {
	var models []CandidateModel
	err := r.db.WithContext(ctx).
		Where("batch_id = ? AND status = ?", batchID, domain.CandidateStatusPending).
		Order("row_index ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	candidates := make([]domain.Candidate, 0, len(models))
	for i := range models {
		candidate := *candidateModelToDomain(&models[i])

		var markModels []CandidateMarkModel
		err := r.db.WithContext(ctx).
			Where("candidate_id = ?", candidate.ID).
			Order("nos_identifier ASC").
			Find(&markModels).Error
		if err != nil {
			return nil, err
		}

		candidate.Marks = make([]domain.CandidateMark, 0, len(markModels))
		for j := range markModels {
			candidate.Marks = append(candidate.Marks, *markModelToDomain(&markModels[j]))
		}

		candidates = append(candidates, candidate)
	}

	return candidates, nil
}

func (r *GormCandidateRepo) MarkSuccess(ctx context.Context, id string) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&CandidateModel{}).
		Where("id = ? AND status = ?", id, domain.CandidateStatusPending).
		Update("status", domain.CandidateStatusSuccess)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *GormCandidateRepo) MarkFailed(ctx context.Context, id string, errorMessage string) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&CandidateModel{}).
		Where("id = ? AND status = ?", id, domain.CandidateStatusPending).
		Updates(map[string]any{
			"status":        domain.CandidateStatusFailed,
			"error_message": domain.TruncateError(errorMessage),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *GormCandidateRepo) StatusCounts(ctx context.Context, batchID string) ([]StatusCount, error) {
	var counts []StatusCount
	err := r.db.WithContext(ctx).
		Model(&CandidateModel{}).
		Select("status, COUNT(*) as count").
		Where("batch_id = ?", batchID).
		Group("status").
		Scan(&counts).Error
	if err != nil {
		return nil, err
	}
	return counts, nil
}

func (r *GormCandidateRepo) ListByBatch(ctx context.Context, batchID string, params CandidateListParams) ([]domain.Candidate, int64, error) {
	query := r.db.WithContext(ctx).
		Model(&CandidateModel{}).
		Where("batch_id = ?", batchID)

	if params.Search != "" {
		pattern := "%" + params.Search + "%"
		query = query.Where("external_id ILIKE ? OR name ILIKE ?", pattern, pattern)
	}
	if params.Status != nil {
		query = query.Where("status = ?", *params.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page := max(params.Page, 1)
	pageSize := params.PageSize
	if pageSize < 1 {
		pageSize = 10
	}
	pageSize = min(pageSize, 100)

	var models []CandidateModel
	err := query.
		Order("row_index ASC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&models).Error
	if err != nil {
		return nil, 0, err
	}

	candidates := make([]domain.Candidate, 0, len(models))
	for i := range models {
		candidates = append(candidates, *candidateModelToDomain(&models[i]))
	}

	return candidates, total, nil
}
