package domain

import (
	"fmt"
	"strings"
	"time"
)

// BatchStatus represents the lifecycle state of an upload batch.
type BatchStatus string

const (
	BatchStatusPending    BatchStatus = "PENDING"
	BatchStatusProcessing BatchStatus = "PROCESSING"
	BatchStatusComplete   BatchStatus = "COMPLETE"
	BatchStatusFailed     BatchStatus = "FAILED"
)

func (s BatchStatus) String() string { return string(s) }

func (s BatchStatus) IsValid() bool {
	switch s {
	case BatchStatusPending, BatchStatusProcessing, BatchStatusComplete, BatchStatusFailed:
		return true
	}
	return false
}

// IsTerminal reports whether the batch has reached a final state.
func (s BatchStatus) IsTerminal() bool {
	return s == BatchStatusComplete || s == BatchStatusFailed
}

func ParseBatchStatusFromString(s string) (BatchStatus, error) {
	st := BatchStatus(strings.ToUpper(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", fmt.Errorf("%w: invalid batch status %q", ErrValidation, s)
	}
	return st, nil
}

// MaxErrorMessageLen caps stored error messages for batches and candidates.
const MaxErrorMessageLen = 255

// TruncateError bounds an error message to MaxErrorMessageLen characters.
func TruncateError(msg string) string {
	runes := []rune(msg)
	if len(runes) <= MaxErrorMessageLen {
		return msg
	}
	return string(runes[:MaxErrorMessageLen])
}

// Batch is one uploaded unit of work: an ordered set of candidates submitted
// through a single portal session. The batch is the unit of queuing and of
// session lifetime.
type Batch struct {
	ID            string
	FileName      string
	PortalBatchID string
	CredentialID  string
	Status        BatchStatus
	ErrorMessage  *string
	StartedAt     *time.Time
	CompletedAt   *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (b *Batch) Validate() error {
	if strings.TrimSpace(b.FileName) == "" {
		return fmt.Errorf("%w: file name is required", ErrValidation)
	}
	if strings.TrimSpace(b.PortalBatchID) == "" {
		return fmt.Errorf("%w: portal batch id is required", ErrValidation)
	}
	if strings.TrimSpace(b.CredentialID) == "" {
		return fmt.Errorf("%w: credential id is required", ErrValidation)
	}
	if !b.Status.IsValid() {
		return fmt.Errorf("%w: invalid batch status %q", ErrValidation, b.Status)
	}
	if b.StartedAt != nil && b.CompletedAt != nil && b.CompletedAt.Before(*b.StartedAt) {
		return fmt.Errorf("%w: completedAt precedes startedAt", ErrValidation)
	}
	return nil
}
