package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/markmate/upload-engine/internal/domain"
	"github.com/markmate/upload-engine/internal/portal"
	"go.uber.org/zap"
)

type executorHarness struct {
	batches    *fakeBatchRepo
	candidates *fakeCandidateRepo
	creds      *fakeCredentialProvider
	opener     *fakeOpener

	mu        sync.Mutex
	succeeded []string
	failed    map[string]string
	finalized *finalizeCall
}

type finalizeCall struct {
	status       domain.BatchStatus
	errorMessage string
}

func newExecutorHarness(t *testing.T, pending []domain.Candidate) *executorHarness {
	t.Helper()

	h := &executorHarness{
		failed: make(map[string]string),
	}

	h.batches = &fakeBatchRepo{
		getByIDFn: func(ctx context.Context, id string) (*domain.Batch, error) {
			return &domain.Batch{
				ID:            id,
				FileName:      "marks.xlsx",
				PortalBatchID: "PB-9",
				CredentialID:  "cred-1",
				Status:        domain.BatchStatusProcessing,
			}, nil
		},
		finalizeFn: func(ctx context.Context, id string, status domain.BatchStatus, completedAt time.Time, errorMessage string) error {
			h.mu.Lock()
			defer h.mu.Unlock()
			h.finalized = &finalizeCall{status: status, errorMessage: errorMessage}
			return nil
		},
	}
	h.candidates = &fakeCandidateRepo{
		listPendingByBatchFn: func(ctx context.Context, batchID string) ([]domain.Candidate, error) {
			return pending, nil
		},
		markSuccessFn: func(ctx context.Context, id string) (bool, error) {
			h.mu.Lock()
			defer h.mu.Unlock()
			h.succeeded = append(h.succeeded, id)
			return true, nil
		},
		markFailedFn: func(ctx context.Context, id string, errorMessage string) (bool, error) {
			h.mu.Lock()
			defer h.mu.Unlock()
			h.failed[id] = errorMessage
			return true, nil
		},
	}
	h.creds = &fakeCredentialProvider{}
	h.opener = &fakeOpener{}

	return h
}

func (h *executorHarness) executor(t *testing.T) *BatchExecutor {
	t.Helper()

	executor, err := NewBatchExecutor(h.batches, h.candidates, h.creds, h.opener, zap.NewNop())
	if err != nil {
		t.Fatalf("NewBatchExecutor() error = %v", err)
	}
	executor.now = func() time.Time { return time.Unix(1_750_000_000, 0) }
	return executor
}

func pendingCandidates(n int) []domain.Candidate {
	candidates := make([]domain.Candidate, 0, n)
	for i := 0; i < n; i++ {
		theory := 40 + i
		candidates = append(candidates, domain.Candidate{
			ID:         fmt.Sprintf("c%d", i+1),
			BatchID:    "b1",
			ExternalID: fmt.Sprintf("EXT-%d", i+1),
			Name:       fmt.Sprintf("Candidate %d", i+1),
			RowIndex:   i,
			Status:     domain.CandidateStatusPending,
			Marks: []domain.CandidateMark{
				{NOSIdentifier: "NOS1", TheoryMarks: &theory},
			},
		})
	}
	return candidates
}

func TestExecutorAllAccepted(t *testing.T) {
	t.Parallel()

	h := newExecutorHarness(t, pendingCandidates(3))

	var submitted []string
	h.opener.openFn = func(ctx context.Context, cred portal.Credential) (portal.Session, error) {
		return &fakeSession{
			submitFn: func(ctx context.Context, sub portal.Submission) portal.Outcome {
				submitted = append(submitted, sub.ExternalID)
				return portal.Accepted()
			},
		}, nil
	}

	if err := h.executor(t).Execute(context.Background(), "b1"); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	if got, want := strings.Join(submitted, ","), "EXT-1,EXT-2,EXT-3"; got != want {
		t.Fatalf("submitted order = %s, want %s", got, want)
	}
	if len(h.succeeded) != 3 {
		t.Fatalf("succeeded = %d, want 3", len(h.succeeded))
	}
	if h.finalized == nil || h.finalized.status != domain.BatchStatusComplete {
		t.Fatalf("finalized = %+v, want COMPLETE", h.finalized)
	}
}

func TestExecutorRejectionIsIsolated(t *testing.T) {
	t.Parallel()

	h := newExecutorHarness(t, pendingCandidates(3))

	var recovered int
	h.opener.openFn = func(ctx context.Context, cred portal.Credential) (portal.Session, error) {
		return &fakeSession{
			submitFn: func(ctx context.Context, sub portal.Submission) portal.Outcome {
				if sub.ExternalID == "EXT-2" {
					return portal.Rejected("marks out of range")
				}
				return portal.Accepted()
			},
			recoverFn: func(ctx context.Context) error {
				recovered++
				return nil
			},
		}, nil
	}

	if err := h.executor(t).Execute(context.Background(), "b1"); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	if len(h.succeeded) != 2 {
		t.Fatalf("succeeded = %v, want c1 and c3", h.succeeded)
	}
	if reason := h.failed["c2"]; reason != "marks out of range" {
		t.Fatalf("c2 failure reason = %q", reason)
	}
	if recovered != 1 {
		t.Fatalf("recover calls = %d, want 1", recovered)
	}
	// One bad row never fails the batch.
	if h.finalized == nil || h.finalized.status != domain.BatchStatusComplete {
		t.Fatalf("finalized = %+v, want COMPLETE", h.finalized)
	}
}

func TestExecutorTimeoutMarksCandidateFailed(t *testing.T) {
	t.Parallel()

	h := newExecutorHarness(t, pendingCandidates(2))

	h.opener.openFn = func(ctx context.Context, cred portal.Credential) (portal.Session, error) {
		return &fakeSession{
			submitFn: func(ctx context.Context, sub portal.Submission) portal.Outcome {
				if sub.ExternalID == "EXT-1" {
					return portal.TimedOut()
				}
				return portal.Accepted()
			},
		}, nil
	}

	if err := h.executor(t).Execute(context.Background(), "b1"); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	reason, ok := h.failed["c1"]
	if !ok || !strings.Contains(reason, "timed out") {
		t.Fatalf("c1 failure reason = %q, want timeout reason", reason)
	}
	if len(h.succeeded) != 1 {
		t.Fatalf("succeeded = %v, want c2 only", h.succeeded)
	}
	if h.finalized == nil || h.finalized.status != domain.BatchStatusComplete {
		t.Fatalf("finalized = %+v, want COMPLETE", h.finalized)
	}
}

func TestExecutorSessionOpenFailureFailsBatch(t *testing.T) {
	t.Parallel()

	h := newExecutorHarness(t, pendingCandidates(3))

	h.opener.openFn = func(ctx context.Context, cred portal.Credential) (portal.Session, error) {
		return nil, &portal.SessionError{
			Kind:       portal.ErrorKindAuth,
			StatusCode: 401,
			Message:    "invalid credentials",
		}
	}

	if err := h.executor(t).Execute(context.Background(), "b1"); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	if len(h.succeeded) != 0 || len(h.failed) != 0 {
		t.Fatalf("no candidate should change state, got success=%v failed=%v", h.succeeded, h.failed)
	}
	if h.finalized == nil || h.finalized.status != domain.BatchStatusFailed {
		t.Fatalf("finalized = %+v, want FAILED", h.finalized)
	}
	if !strings.Contains(h.finalized.errorMessage, "session open failed") {
		t.Fatalf("error message = %q", h.finalized.errorMessage)
	}
}

func TestExecutorCredentialResolutionFailureFailsBatch(t *testing.T) {
	t.Parallel()

	h := newExecutorHarness(t, pendingCandidates(1))

	h.creds.resolveFn = func(ctx context.Context, credentialRef string) (portal.Credential, error) {
		return portal.Credential{}, errors.New("credential store unavailable")
	}
	opened := false
	h.opener.openFn = func(ctx context.Context, cred portal.Credential) (portal.Session, error) {
		opened = true
		return &fakeSession{}, nil
	}

	if err := h.executor(t).Execute(context.Background(), "b1"); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	if opened {
		t.Fatal("session must not open without a resolved credential")
	}
	if h.finalized == nil || h.finalized.status != domain.BatchStatusFailed {
		t.Fatalf("finalized = %+v, want FAILED", h.finalized)
	}
}

func TestExecutorRecoveryFailureAbortsMidBatch(t *testing.T) {
	t.Parallel()

	h := newExecutorHarness(t, pendingCandidates(4))

	var submitted []string
	h.opener.openFn = func(ctx context.Context, cred portal.Credential) (portal.Session, error) {
		return &fakeSession{
			submitFn: func(ctx context.Context, sub portal.Submission) portal.Outcome {
				submitted = append(submitted, sub.ExternalID)
				if sub.ExternalID == "EXT-2" {
					return portal.Rejected("portal glitch")
				}
				return portal.Accepted()
			},
			recoverFn: func(ctx context.Context) error {
				return errors.New("session is gone")
			},
		}, nil
	}

	if err := h.executor(t).Execute(context.Background(), "b1"); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	// Processing stops at the unrecoverable candidate; c3 and c4 stay pending.
	if len(submitted) != 2 {
		t.Fatalf("submitted = %v, want stop after EXT-2", submitted)
	}
	if len(h.succeeded) != 1 {
		t.Fatalf("succeeded = %v, want c1 only", h.succeeded)
	}
	if h.finalized == nil || h.finalized.status != domain.BatchStatusFailed {
		t.Fatalf("finalized = %+v, want FAILED", h.finalized)
	}
	if !strings.Contains(h.finalized.errorMessage, "session recovery failed") {
		t.Fatalf("error message = %q", h.finalized.errorMessage)
	}
}

func TestExecutorRedeliveredMessageIsNoOp(t *testing.T) {
	t.Parallel()

	h := newExecutorHarness(t, pendingCandidates(2))
	h.batches.markProcessingFn = func(ctx context.Context, id string, startedAt time.Time) (bool, error) {
		return false, nil
	}
	opened := false
	h.opener.openFn = func(ctx context.Context, cred portal.Credential) (portal.Session, error) {
		opened = true
		return &fakeSession{}, nil
	}

	if err := h.executor(t).Execute(context.Background(), "b1"); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	if opened {
		t.Fatal("redelivery must not open a session")
	}
	if h.finalized != nil {
		t.Fatalf("redelivery must not finalize, got %+v", h.finalized)
	}
}

func TestExecutorUnknownBatchIsAcked(t *testing.T) {
	t.Parallel()

	h := newExecutorHarness(t, nil)
	h.batches.markProcessingFn = func(ctx context.Context, id string, startedAt time.Time) (bool, error) {
		return false, domain.ErrNotFound
	}

	if err := h.executor(t).Execute(context.Background(), "missing"); err != nil {
		t.Fatalf("Execute() error = %v, want nil for unknown batch", err)
	}
}

func TestExecutorClaimErrorIsRetryable(t *testing.T) {
	t.Parallel()

	h := newExecutorHarness(t, nil)
	h.batches.markProcessingFn = func(ctx context.Context, id string, startedAt time.Time) (bool, error) {
		return false, errors.New("connection refused")
	}

	err := h.executor(t).Execute(context.Background(), "b1")
	if err == nil {
		t.Fatal("Execute() should surface claim errors for redelivery")
	}
	if h.finalized != nil {
		t.Fatalf("unclaimed batch must not finalize, got %+v", h.finalized)
	}
}

func TestExecutorCloseErrorIsSwallowed(t *testing.T) {
	t.Parallel()

	h := newExecutorHarness(t, pendingCandidates(1))

	h.opener.openFn = func(ctx context.Context, cred portal.Credential) (portal.Session, error) {
		return &fakeSession{
			closeFn: func() error { return errors.New("logout 500") },
		}, nil
	}

	if err := h.executor(t).Execute(context.Background(), "b1"); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if h.finalized == nil || h.finalized.status != domain.BatchStatusComplete {
		t.Fatalf("finalized = %+v, want COMPLETE despite close error", h.finalized)
	}
}
