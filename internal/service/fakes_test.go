package service

import (
	"context"
	"time"

	"github.com/markmate/upload-engine/internal/domain"
	"github.com/markmate/upload-engine/internal/portal"
	"github.com/markmate/upload-engine/internal/queue"
	"github.com/markmate/upload-engine/internal/repository"
)

type fakeBatchRepo struct {
	createFn              func(ctx context.Context, b *domain.Batch) error
	getByIDFn             func(ctx context.Context, id string) (*domain.Batch, error)
	markProcessingFn      func(ctx context.Context, id string, startedAt time.Time) (bool, error)
	finalizeFn            func(ctx context.Context, id string, status domain.BatchStatus, completedAt time.Time, errorMessage string) error
	listFn                func(ctx context.Context, params repository.ListParams) ([]domain.Batch, int64, error)
	findActiveFn          func(ctx context.Context) (*domain.Batch, error)
	findStuckProcessingFn func(ctx context.Context, olderThan time.Time, limit int) ([]domain.Batch, error)
	statsFn               func(ctx context.Context, now time.Time) (*repository.BatchStats, error)
	recentActivityFn      func(ctx context.Context, limit int) ([]domain.Batch, error)
}

func (f *fakeBatchRepo) Create(ctx context.Context, b *domain.Batch) error {
	if f.createFn != nil {
		return f.createFn(ctx, b)
	}
	return nil
}

func (f *fakeBatchRepo) GetByID(ctx context.Context, id string) (*domain.Batch, error) {
	if f.getByIDFn != nil {
		return f.getByIDFn(ctx, id)
	}
	return nil, domain.ErrNotFound
}

func (f *fakeBatchRepo) MarkProcessing(ctx context.Context, id string, startedAt time.Time) (bool, error) {
	if f.markProcessingFn != nil {
		return f.markProcessingFn(ctx, id, startedAt)
	}
	return true, nil
}

func (f *fakeBatchRepo) Finalize(ctx context.Context, id string, status domain.BatchStatus, completedAt time.Time, errorMessage string) error {
	if f.finalizeFn != nil {
		return f.finalizeFn(ctx, id, status, completedAt, errorMessage)
	}
	return nil
}

func (f *fakeBatchRepo) List(ctx context.Context, params repository.ListParams) ([]domain.Batch, int64, error) {
	if f.listFn != nil {
		return f.listFn(ctx, params)
	}
	return nil, 0, nil
}

func (f *fakeBatchRepo) FindActive(ctx context.Context) (*domain.Batch, error) {
	if f.findActiveFn != nil {
		return f.findActiveFn(ctx)
	}
	return nil, nil
}

func (f *fakeBatchRepo) FindStuckProcessing(ctx context.Context, olderThan time.Time, limit int) ([]domain.Batch, error) {
	if f.findStuckProcessingFn != nil {
		return f.findStuckProcessingFn(ctx, olderThan, limit)
	}
	return nil, nil
}

func (f *fakeBatchRepo) Stats(ctx context.Context, now time.Time) (*repository.BatchStats, error) {
	if f.statsFn != nil {
		return f.statsFn(ctx, now)
	}
	return &repository.BatchStats{}, nil
}

func (f *fakeBatchRepo) RecentActivity(ctx context.Context, limit int) ([]domain.Batch, error) {
	if f.recentActivityFn != nil {
		return f.recentActivityFn(ctx, limit)
	}
	return nil, nil
}

type fakeCandidateRepo struct {
	createBatchFn        func(ctx context.Context, candidates []*domain.Candidate) error
	listPendingByBatchFn func(ctx context.Context, batchID string) ([]domain.Candidate, error)
	markSuccessFn        func(ctx context.Context, id string) (bool, error)
	markFailedFn         func(ctx context.Context, id string, errorMessage string) (bool, error)
	statusCountsFn       func(ctx context.Context, batchID string) ([]repository.StatusCount, error)
	listByBatchFn        func(ctx context.Context, batchID string, params repository.CandidateListParams) ([]domain.Candidate, int64, error)
}

func (f *fakeCandidateRepo) CreateBatch(ctx context.Context, candidates []*domain.Candidate) error {
	if f.createBatchFn != nil {
		return f.createBatchFn(ctx, candidates)
	}
	return nil
}

func (f *fakeCandidateRepo) ListPendingByBatch(ctx context.Context, batchID string) ([]domain.Candidate, error) {
	if f.listPendingByBatchFn != nil {
		return f.listPendingByBatchFn(ctx, batchID)
	}
	return nil, nil
}

func (f *fakeCandidateRepo) MarkSuccess(ctx context.Context, id string) (bool, error) {
	if f.markSuccessFn != nil {
		return f.markSuccessFn(ctx, id)
	}
	return true, nil
}

func (f *fakeCandidateRepo) MarkFailed(ctx context.Context, id string, errorMessage string) (bool, error) {
	if f.markFailedFn != nil {
		return f.markFailedFn(ctx, id, errorMessage)
	}
	return true, nil
}

func (f *fakeCandidateRepo) StatusCounts(ctx context.Context, batchID string) ([]repository.StatusCount, error) {
	if f.statusCountsFn != nil {
		return f.statusCountsFn(ctx, batchID)
	}
	return nil, nil
}

func (f *fakeCandidateRepo) ListByBatch(ctx context.Context, batchID string, params repository.CandidateListParams) ([]domain.Candidate, int64, error) {
	if f.listByBatchFn != nil {
		return f.listByBatchFn(ctx, batchID, params)
	}
	return nil, 0, nil
}

type fakeCredentialRepo struct {
	createFn  func(ctx context.Context, c *domain.Credential) error
	getByIDFn func(ctx context.Context, id string) (*domain.Credential, error)
	listFn    func(ctx context.Context) ([]domain.Credential, error)
	deleteFn  func(ctx context.Context, id string) error
}

func (f *fakeCredentialRepo) Create(ctx context.Context, c *domain.Credential) error {
	if f.createFn != nil {
		return f.createFn(ctx, c)
	}
	return nil
}

func (f *fakeCredentialRepo) GetByID(ctx context.Context, id string) (*domain.Credential, error) {
	if f.getByIDFn != nil {
		return f.getByIDFn(ctx, id)
	}
	return &domain.Credential{ID: id, Username: "examiner"}, nil
}

func (f *fakeCredentialRepo) List(ctx context.Context) ([]domain.Credential, error) {
	if f.listFn != nil {
		return f.listFn(ctx)
	}
	return nil, nil
}

func (f *fakeCredentialRepo) Delete(ctx context.Context, id string) error {
	if f.deleteFn != nil {
		return f.deleteFn(ctx, id)
	}
	return nil
}

type fakeCredentialProvider struct {
	resolveFn func(ctx context.Context, credentialRef string) (portal.Credential, error)
}

func (f *fakeCredentialProvider) Resolve(ctx context.Context, credentialRef string) (portal.Credential, error) {
	if f.resolveFn != nil {
		return f.resolveFn(ctx, credentialRef)
	}
	return portal.Credential{Username: "examiner", Password: "secret"}, nil
}

type fakeSession struct {
	submitFn  func(ctx context.Context, sub portal.Submission) portal.Outcome
	recoverFn func(ctx context.Context) error
	closeFn   func() error
}

func (f *fakeSession) Submit(ctx context.Context, sub portal.Submission) portal.Outcome {
	if f.submitFn != nil {
		return f.submitFn(ctx, sub)
	}
	return portal.Accepted()
}

func (f *fakeSession) Recover(ctx context.Context) error {
	if f.recoverFn != nil {
		return f.recoverFn(ctx)
	}
	return nil
}

func (f *fakeSession) Close() error {
	if f.closeFn != nil {
		return f.closeFn()
	}
	return nil
}

type fakeOpener struct {
	openFn func(ctx context.Context, cred portal.Credential) (portal.Session, error)
}

func (f *fakeOpener) Open(ctx context.Context, cred portal.Credential) (portal.Session, error) {
	if f.openFn != nil {
		return f.openFn(ctx, cred)
	}
	return &fakeSession{}, nil
}

type fakePublisher struct {
	publishFn func(ctx context.Context, msg queue.BatchMessage) error
}

func (f *fakePublisher) Publish(ctx context.Context, msg queue.BatchMessage) error {
	if f.publishFn != nil {
		return f.publishFn(ctx, msg)
	}
	return nil
}

func (f *fakePublisher) Close() error { return nil }

type fakeConsumer struct {
	consumeFn func(ctx context.Context, handler queue.MessageHandler) error
}

func (f *fakeConsumer) Consume(ctx context.Context, handler queue.MessageHandler) error {
	if f.consumeFn != nil {
		return f.consumeFn(ctx, handler)
	}
	return nil
}

func (f *fakeConsumer) Close() error { return nil }

type fakeRateLimiter struct {
	allowFn func(ctx context.Context, key string) (bool, error)
	waitFn  func(ctx context.Context, key string) error
}

func (f *fakeRateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	if f.allowFn != nil {
		return f.allowFn(ctx, key)
	}
	return true, nil
}

func (f *fakeRateLimiter) Wait(ctx context.Context, key string) error {
	if f.waitFn != nil {
		return f.waitFn(ctx, key)
	}
	return nil
}

type fakeGuard struct {
	acquireFn func(ctx context.Context) error
	releaseFn func(ctx context.Context) error
}

func (f *fakeGuard) Acquire(ctx context.Context) error {
	if f.acquireFn != nil {
		return f.acquireFn(ctx)
	}
	return nil
}

func (f *fakeGuard) Release(ctx context.Context) error {
	if f.releaseFn != nil {
		return f.releaseFn(ctx)
	}
	return nil
}
