package repository

import (
	"time"

	"github.com/markmate/upload-engine/internal/domain"
)

// BatchModel is the persistence model for the upload_batches table.
type BatchModel struct {
	ID            string             `gorm:"type:uuid;primaryKey"`
	FileName      string             `gorm:"type:varchar(255);not null"`
	PortalBatchID string             `gorm:"type:varchar(100);not null"`
	CredentialID  string             `gorm:"type:uuid;not null"`
	Status        domain.BatchStatus `gorm:"type:varchar(20);not null"`
	ErrorMessage  *string            `gorm:"type:varchar(255)"`
	StartedAt     *time.Time         `gorm:"type:timestamptz"`
	CompletedAt   *time.Time         `gorm:"type:timestamptz"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (BatchModel) TableName() string {
	return "upload_batches"
}

// CandidateModel is the persistence model for the candidates table.
type CandidateModel struct {
	ID           string                 `gorm:"type:uuid;primaryKey"`
	BatchID      string                 `gorm:"type:uuid;not null"`
	ExternalID   string                 `gorm:"type:varchar(100);not null"`
	Name         string                 `gorm:"type:varchar(255)"`
	RowIndex     int                    `gorm:"not null"`
	Status       domain.CandidateStatus `gorm:"type:varchar(20);not null"`
	ErrorMessage *string                `gorm:"type:varchar(255)"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (CandidateModel) TableName() string {
	return "candidates"
}

// CandidateMarkModel is the persistence model for candidate_marks.
type CandidateMarkModel struct {
	ID             string `gorm:"type:uuid;primaryKey"`
	CandidateID    string `gorm:"type:uuid;not null"`
	NOSIdentifier  string `gorm:"type:varchar(50);not null;column:nos_identifier"`
	TheoryMarks    *int   `gorm:"type:int"`
	PracticalMarks *int   `gorm:"type:int"`
	CreatedAt      time.Time
}

func (CandidateMarkModel) TableName() string {
	return "candidate_marks"
}

// CredentialModel is the persistence model for portal_credentials.
type CredentialModel struct {
	ID              string `gorm:"type:uuid;primaryKey"`
	Username        string `gorm:"type:varchar(255);not null"`
	EncryptedSecret string `gorm:"type:text;not null"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (CredentialModel) TableName() string {
	return "portal_credentials"
}

func batchModelFromDomain(b *domain.Batch) *BatchModel {
	if b == nil {
		return nil
	}

	return &BatchModel{
		ID:            b.ID,
		FileName:      b.FileName,
		PortalBatchID: b.PortalBatchID,
		CredentialID:  b.CredentialID,
		Status:        b.Status,
		ErrorMessage:  b.ErrorMessage,
		StartedAt:     b.StartedAt,
		CompletedAt:   b.CompletedAt,
		CreatedAt:     b.CreatedAt,
		UpdatedAt:     b.UpdatedAt,
	}
}

func batchModelToDomain(m *BatchModel) *domain.Batch {
	if m == nil {
		return nil
	}

	return &domain.Batch{
		ID:            m.ID,
		FileName:      m.FileName,
		PortalBatchID: m.PortalBatchID,
		CredentialID:  m.CredentialID,
		Status:        m.Status,
		ErrorMessage:  m.ErrorMessage,
		StartedAt:     m.StartedAt,
		CompletedAt:   m.CompletedAt,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}

func candidateModelFromDomain(c *domain.Candidate) *CandidateModel {
	if c == nil {
		return nil
	}

	return &CandidateModel{
		ID:           c.ID,
		BatchID:      c.BatchID,
		ExternalID:   c.ExternalID,
		Name:         c.Name,
		RowIndex:     c.RowIndex,
		Status:       c.Status,
		ErrorMessage: c.ErrorMessage,
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
	}
}

func candidateModelToDomain(m *CandidateModel) *domain.Candidate {
	if m == nil {
		return nil
	}

	return &domain.Candidate{
		ID:           m.ID,
		BatchID:      m.BatchID,
		ExternalID:   m.ExternalID,
		Name:         m.Name,
		RowIndex:     m.RowIndex,
		Status:       m.Status,
		ErrorMessage: m.ErrorMessage,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

func markModelFromDomain(m *domain.CandidateMark) *CandidateMarkModel {
	if m == nil {
		return nil
	}

	return &CandidateMarkModel{
		ID:             m.ID,
		CandidateID:    m.CandidateID,
		NOSIdentifier:  m.NOSIdentifier,
		TheoryMarks:    m.TheoryMarks,
		PracticalMarks: m.PracticalMarks,
		CreatedAt:      m.CreatedAt,
	}
}

func markModelToDomain(m *CandidateMarkModel) *domain.CandidateMark {
	if m == nil {
		return nil
	}

	return &domain.CandidateMark{
		ID:             m.ID,
		CandidateID:    m.CandidateID,
		NOSIdentifier:  m.NOSIdentifier,
		TheoryMarks:    m.TheoryMarks,
		PracticalMarks: m.PracticalMarks,
		CreatedAt:      m.CreatedAt,
	}
}

func credentialModelFromDomain(c *domain.Credential) *CredentialModel {
	if c == nil {
		return nil
	}

	return &CredentialModel{
		ID:              c.ID,
		Username:        c.Username,
		EncryptedSecret: c.EncryptedSecret,
		CreatedAt:       c.CreatedAt,
		UpdatedAt:       c.UpdatedAt,
	}
}

func credentialModelToDomain(m *CredentialModel) *domain.Credential {
	if m == nil {
		return nil
	}

	return &domain.Credential{
		ID:              m.ID,
		Username:        m.Username,
		EncryptedSecret: m.EncryptedSecret,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
}
