package repository

import (
	"context"
	"errors"
	"time"

	"github.com/markmate/upload-engine/internal/domain"
	"gorm.io/gorm"
)

// ListParams filters and paginates batch listings.
type ListParams struct {
	Search   string
	Status   *domain.BatchStatus
	Page     int
	PageSize int
}

// BatchStats aggregates batch history for reporting.
type BatchStats struct {
	TotalUploads    int64
	PendingUploads  int64
	CompletedToday  int64
	CompletedUpload int64
	FailedUploads   int64
	TotalDuration   time.Duration
	FinishedUploads int64
}

type BatchRepository interface {
	Create(ctx context.Context, b *domain.Batch) error
	GetByID(ctx context.Context, id string) (*domain.Batch, error)

	// MarkProcessing claims a pending batch for execution, recording the
	// start time. It returns false when the batch is not in PENDING state,
	// which makes redelivered queue messages a no-op.
	MarkProcessing(ctx context.Context, id string, startedAt time.Time) (bool, error)

	// Finalize records the terminal batch state. errorMessage is stored only
	// for failed batches and is truncated to the domain cap.
	Finalize(ctx context.Context, id string, status domain.BatchStatus, completedAt time.Time, errorMessage string) error

	List(ctx context.Context, params ListParams) ([]domain.Batch, int64, error)
	FindActive(ctx context.Context) (*domain.Batch, error)
	FindStuckProcessing(ctx context.Context, olderThan time.Time, limit int) ([]domain.Batch, error)
	Stats(ctx context.Context, now time.Time) (*BatchStats, error)
	RecentActivity(ctx context.Context, limit int) ([]domain.Batch, error)
}

type GormBatchRepo struct {
	db *gorm.DB
}

func NewGormBatchRepo(db *gorm.DB) *GormBatchRepo {
	return &GormBatchRepo{db: db}
}

func (r *GormBatchRepo) Create(ctx context.Context, b *domain.Batch) error {
	model := batchModelFromDomain(b)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	if b != nil {
		*b = *batchModelToDomain(model)
	}
	return nil
}

func (r *GormBatchRepo) GetByID(ctx context.Context, id string) (*domain.Batch, error) {
	var model BatchModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return batchModelToDomain(&model), nil
}

func (r *GormBatchRepo) MarkProcessing(ctx context.Context, id string, startedAt time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&BatchModel{}).
		Where("id = ? AND status = ?", id, domain.BatchStatusPending).
		Updates(map[string]any{
			"status":     domain.BatchStatusProcessing,
			"started_at": startedAt,
		})
	if result.Error != nil {
		return false, result.Error
	}
	if result.RowsAffected == 0 {
		var count int64
		if err := r.db.WithContext(ctx).
			Model(&BatchModel{}).
			Where("id = ?", id).
			Count(&count).Error; err != nil {
			return false, err
		}
		if count == 0 {
			return false, domain.ErrNotFound
		}
		return false, nil
	}
	return true, nil
}

func (r *GormBatchRepo) Finalize(ctx context.Context, id string, status domain.BatchStatus, completedAt time.Time, errorMessage string) error {
	if !status.IsTerminal() {
		return domain.ErrValidation
	}

	updates := map[string]any{
		"status":       status,
		"completed_at": completedAt,
	}
	if status == domain.BatchStatusFailed && errorMessage != "" {
		updates["error_message"] = domain.TruncateError(errorMessage)
	}

	result := r.db.WithContext(ctx).
		Model(&BatchModel{}).
		Where("id = ?", id).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *GormBatchRepo) List(ctx context.Context, params ListParams) ([]domain.Batch, int64, error) {
	query := r.db.WithContext(ctx).Model(&BatchModel{})

	if params.Search != "" {
		pattern := "%" + params.Search + "%"
		query = query.Where("file_name ILIKE ? OR portal_batch_id ILIKE ?", pattern, pattern)
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

	var models []BatchModel
	err := query.
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&models).Error
	if err != nil {
		return nil, 0, err
	}

	batches := make([]domain.Batch, 0, len(models))
	for i := range models {
		batches = append(batches, *batchModelToDomain(&models[i]))
	}

	return batches, total, nil
}

// FindActive returns the batch currently processing, falling back to the most
// recently finished one. Nil without error means no batch has ever run.
func (r *GormBatchRepo) FindActive(ctx context.Context) (*domain.Batch, error) {
	var model BatchModel
	err := r.db.WithContext(ctx).
		Where("status = ?", domain.BatchStatusProcessing).
		Order("started_at DESC").
		First(&model).Error
	if err == nil {
		return batchModelToDomain(&model), nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	err = r.db.WithContext(ctx).
		Where("status IN ?", []domain.BatchStatus{domain.BatchStatusComplete, domain.BatchStatusFailed}).
		Order("completed_at DESC").
		First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return batchModelToDomain(&model), nil
}

func (r *GormBatchRepo) FindStuckProcessing(ctx context.Context, olderThan time.Time, limit int) ([]domain.Batch, error) {
	var models []BatchModel
	err := r.db.WithContext(ctx).
		Where("status = ? AND started_at <= ?", domain.BatchStatusProcessing, olderThan).
		Order("started_at ASC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	batches := make([]domain.Batch, 0, len(models))
	for i := range models {
		batches = append(batches, *batchModelToDomain(&models[i]))
	}
	return batches, nil
}

func (r *GormBatchRepo) Stats(ctx context.Context, now time.Time) (*BatchStats, error) {
	stats := &BatchStats{}
	db := r.db.WithContext(ctx).Model(&BatchModel{})

	if err := db.Session(&gorm.Session{}).Count(&stats.TotalUploads).Error; err != nil {
		return nil, err
	}

	if err := db.Session(&gorm.Session{}).
		Where("status IN ?", []domain.BatchStatus{domain.BatchStatusPending, domain.BatchStatusProcessing}).
		Count(&stats.PendingUploads).Error; err != nil {
		return nil, err
	}

	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if err := db.Session(&gorm.Session{}).
		Where("status = ? AND completed_at >= ?", domain.BatchStatusComplete, today).
		Count(&stats.CompletedToday).Error; err != nil {
		return nil, err
	}

	var finished []BatchModel
	if err := db.Session(&gorm.Session{}).
		Where("status IN ?", []domain.BatchStatus{domain.BatchStatusComplete, domain.BatchStatusFailed}).
		Select("status", "started_at", "completed_at").
		Find(&finished).Error; err != nil {
		return nil, err
	}

	for i := range finished {
		stats.FinishedUploads++
		switch finished[i].Status {
		case domain.BatchStatusComplete:
			stats.CompletedUpload++
		case domain.BatchStatusFailed:
			stats.FailedUploads++
		}
		if finished[i].StartedAt != nil && finished[i].CompletedAt != nil {
			stats.TotalDuration += finished[i].CompletedAt.Sub(*finished[i].StartedAt)
		}
	}

	return stats, nil
}

func (r *GormBatchRepo) RecentActivity(ctx context.Context, limit int) ([]domain.Batch, error) {
	if limit < 1 {
		limit = 3
	}

	var models []BatchModel
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	batches := make([]domain.Batch, 0, len(models))
	for i := range models {
		batches = append(batches, *batchModelToDomain(&models[i]))
	}
	return batches, nil
}
