package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/markmate/upload-engine/internal/credentials"
	"github.com/markmate/upload-engine/internal/domain"
	"github.com/markmate/upload-engine/internal/repository"
	"go.uber.org/zap"
)

// CredentialService manages stored portal logins. Passwords are encrypted on
// the way in and never leave the service in any read path.
type CredentialService struct {
	credentials repository.CredentialRepository
	cipher      *credentials.Cipher
	logger      *zap.Logger
}

func NewCredentialService(
	repo repository.CredentialRepository,
	cipher *credentials.Cipher,
	logger *zap.Logger,
) (*CredentialService, error) {
	if repo == nil {
		return nil, fmt.Errorf("credential repository is required")
	}
	if cipher == nil {
		return nil, fmt.Errorf("cipher is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &CredentialService{
		credentials: repo,
		cipher:      cipher,
		logger:      logger,
	}, nil
}

func (s *CredentialService) Create(ctx context.Context, username, password string) (*domain.Credential, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, fmt.Errorf("%w: username is required", domain.ErrValidation)
	}
	if password == "" {
		return nil, fmt.Errorf("%w: password is required", domain.ErrValidation)
	}

	encrypted, err := s.cipher.Encrypt(password)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt credential: %w", err)
	}

	credential := &domain.Credential{
		ID:              uuid.NewString(),
		Username:        username,
		EncryptedSecret: encrypted,
	}
	if err := s.credentials.Create(ctx, credential); err != nil {
		return nil, err
	}

	s.logger.Info("credential stored", zap.String("credentialId", credential.ID))
	return scrubbed(credential), nil
}

// List returns stored credentials with secrets removed.
func (s *CredentialService) List(ctx context.Context) ([]domain.Credential, error) {
	stored, err := s.credentials.List(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]domain.Credential, 0, len(stored))
	for i := range stored {
		out = append(out, *scrubbed(&stored[i]))
	}
	return out, nil
}

func (s *CredentialService) Delete(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: credential id is required", domain.ErrValidation)
	}
	return s.credentials.Delete(ctx, strings.TrimSpace(id))
}

func scrubbed(c *domain.Credential) *domain.Credential {
	copied := *c
	copied.EncryptedSecret = ""
	return &copied
}
