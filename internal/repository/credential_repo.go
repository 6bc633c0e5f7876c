package repository

import (
	"context"
	"errors"

	"github.com/markmate/upload-engine/internal/domain"
	"gorm.io/gorm"
)

type CredentialRepository interface {
	Create(ctx context.Context, c *domain.Credential) error
	GetByID(ctx context.Context, id string) (*domain.Credential, error)
	List(ctx context.Context) ([]domain.Credential, error)
	Delete(ctx context.Context, id string) error
}

type GormCredentialRepo struct {
	db *gorm.DB
}

func NewGormCredentialRepo(db *gorm.DB) *GormCredentialRepo {
	return &GormCredentialRepo{db: db}
}

func (r *GormCredentialRepo) Create(ctx context.Context, c *domain.Credential) error {
	model := credentialModelFromDomain(c)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	if c != nil {
		*c = *credentialModelToDomain(model)
	}
	return nil
}

func (r *GormCredentialRepo) GetByID(ctx context.Context, id string) (*domain.Credential, error) {
	var model CredentialModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return credentialModelToDomain(&model), nil
}

// List returns stored credentials without decrypting secrets. Callers that
// expose credentials must drop the EncryptedSecret field.
func (r *GormCredentialRepo) List(ctx context.Context) ([]domain.Credential, error) {
	var models []CredentialModel
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	credentials := make([]domain.Credential, 0, len(models))
	for i := range models {
		credentials = append(credentials, *credentialModelToDomain(&models[i]))
	}
	return credentials, nil
}

func (r *GormCredentialRepo) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Delete(&CredentialModel{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}
