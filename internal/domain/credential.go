package domain

import (
	"fmt"
	"strings"
	"time"
)

// Credential is a stored portal login. EncryptedSecret is the AES-encrypted
// password; the plaintext only ever exists for the duration of a session open.
type Credential struct {
	ID              string
	Username        string
	EncryptedSecret string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (c *Credential) Validate() error {
	if strings.TrimSpace(c.Username) == "" {
		return fmt.Errorf("%w: credential username is required", ErrValidation)
	}
	if strings.TrimSpace(c.EncryptedSecret) == "" {
		return fmt.Errorf("%w: credential secret is required", ErrValidation)
	}
	return nil
}
