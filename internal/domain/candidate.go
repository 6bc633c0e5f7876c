package domain

import (
	"fmt"
	"strings"
	"time"
)

// CandidateStatus represents the submission state of a single candidate.
// There is no processing sub-state: a candidate is submitted synchronously
// within the batch's single pass.
type CandidateStatus string

const (
	CandidateStatusPending CandidateStatus = "PENDING"
	CandidateStatusSuccess CandidateStatus = "SUCCESS"
	CandidateStatusFailed  CandidateStatus = "FAILED"
)

func (s CandidateStatus) String() string { return string(s) }

func (s CandidateStatus) IsValid() bool {
	switch s {
	case CandidateStatusPending, CandidateStatusSuccess, CandidateStatusFailed:
		return true
	}
	return false
}

func (s CandidateStatus) IsTerminal() bool {
	return s == CandidateStatusSuccess || s == CandidateStatusFailed
}

func ParseCandidateStatusFromString(s string) (CandidateStatus, error) {
	st := CandidateStatus(strings.ToUpper(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", fmt.Errorf("%w: invalid candidate status %q", ErrValidation, s)
	}
	return st, nil
}

// Candidate is one person-level record within a batch. ExternalID is the
// portal's identifier for the person; RowIndex preserves spreadsheet order.
type Candidate struct {
	ID           string
	BatchID      string
	ExternalID   string
	Name         string
	RowIndex     int
	Status       CandidateStatus
	ErrorMessage *string
	Marks        []CandidateMark
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (c *Candidate) Validate() error {
	if strings.TrimSpace(c.ExternalID) == "" {
		return fmt.Errorf("%w: candidate external id is required", ErrValidation)
	}
	if strings.TrimSpace(c.BatchID) == "" {
		return fmt.Errorf("%w: candidate batch id is required", ErrValidation)
	}
	if !c.Status.IsValid() {
		return fmt.Errorf("%w: invalid candidate status %q", ErrValidation, c.Status)
	}
	return nil
}

// CandidateMark is one NOS score pair in a candidate's submission payload.
// Marks are supplied at batch creation and immutable once processing starts.
type CandidateMark struct {
	ID             string
	CandidateID    string
	NOSIdentifier  string
	TheoryMarks    *int
	PracticalMarks *int
	CreatedAt      time.Time
}
