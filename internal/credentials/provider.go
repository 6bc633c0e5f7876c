package credentials

import (
	"context"
	"fmt"

	"github.com/markmate/upload-engine/internal/portal"
	"github.com/markmate/upload-engine/internal/repository"
)

// Provider resolves a batch's credential reference to a plaintext portal
// login at the moment it is needed. The result is scoped to one session-open
// call and must never be logged or persisted.
type Provider interface {
	Resolve(ctx context.Context, credentialRef string) (portal.Credential, error)
}

type StoreProvider struct {
	credentials repository.CredentialRepository
	cipher      *Cipher
}

func NewStoreProvider(credentials repository.CredentialRepository, cipher *Cipher) (*StoreProvider, error) {
	if credentials == nil {
		return nil, fmt.Errorf("credential repository is required")
	}
	if cipher == nil {
		return nil, fmt.Errorf("cipher is required")
	}
	return &StoreProvider{credentials: credentials, cipher: cipher}, nil
}

func (p *StoreProvider) Resolve(ctx context.Context, credentialRef string) (portal.Credential, error) {
	stored, err := p.credentials.GetByID(ctx, credentialRef)
	if err != nil {
		return portal.Credential{}, err
	}

	password, err := p.cipher.Decrypt(stored.EncryptedSecret)
	if err != nil {
		return portal.Credential{}, fmt.Errorf("failed to decrypt credential %s: %w", credentialRef, err)
	}

	return portal.Credential{
		Username: stored.Username,
		Password: password,
	}, nil
}
