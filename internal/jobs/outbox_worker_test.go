package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rajarshidattapy/R-Credit/internal/notify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeOutboxRepo struct {
	jobs      []OutboxJob
	doneIDs   []int64
	retryIDs  []int64
	retryAt   []time.Time
	failedIDs []int64
}

func (r *fakeOutboxRepo) ClaimPending(_ context.Context, _ int32) ([]OutboxJob, error) {
	return r.jobs, nil
}

func (r *fakeOutboxRepo) MarkDone(_ context.Context, jobID int64) error {
	r.doneIDs = append(r.doneIDs, jobID)
	return nil
}

func (r *fakeOutboxRepo) MarkRetry(_ context.Context, jobID int64, next time.Time, _ string) error {
	r.retryIDs = append(r.retryIDs, jobID)
	r.retryAt = append(r.retryAt, next)
	return nil
}

func (r *fakeOutboxRepo) MarkFailed(_ context.Context, jobID int64, _ string) error {
	r.failedIDs = append(r.failedIDs, jobID)
	return nil
}

type fakePublisher struct {
	sent []notify.Message
	err  error
}

func (p *fakePublisher) Publish(_ context.Context, msg notify.Message) error {
	if p.err != nil {
		return p.err
	}
	p.sent = append(p.sent, msg)
	return nil
}

func (p *fakePublisher) Close() error { return nil }

func TestWorkerRunOncePublishes(t *testing.T) {
	outbox := &fakeOutboxRepo{jobs: []OutboxJob{{ID: 1, Topic: "loan_repaid", IdentityID: "id-1", Attempts: 1, Payload: []byte(`{"loan_id":"loan-1"}`)}}}
	pub := &fakePublisher{}
	worker := NewWorker(outbox, pub, nil)

	require.NoError(t, worker.RunOnce(context.Background(), 10))
	assert.Equal(t, []int64{1}, outbox.doneIDs)
	require.Len(t, pub.sent, 1)
	assert.Equal(t, "loan_repaid", pub.sent[0].Topic)
	assert.Equal(t, "id-1", pub.sent[0].IdentityID)
}

func TestWorkerRunOnceRetriesOnPublishError(t *testing.T) {
	outbox := &fakeOutboxRepo{jobs: []OutboxJob{{ID: 1, Topic: "frozen_account", Attempts: 2, Payload: []byte(`{}`)}}}
	worker := NewWorker(outbox, &fakePublisher{err: errors.New("broker down")}, nil)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	worker.now = func() time.Time { return now }

	require.NoError(t, worker.RunOnce(context.Background(), 10))
	assert.Equal(t, []int64{1}, outbox.retryIDs)
	assert.Equal(t, now.Add(30*time.Second), outbox.retryAt[0])
	assert.Empty(t, outbox.doneIDs)
}

func TestWorkerRunOnceFailsAfterMaxAttempts(t *testing.T) {
	outbox := &fakeOutboxRepo{jobs: []OutboxJob{{ID: 9, Topic: "loan_defaulted", Attempts: 5, Payload: []byte(`{}`)}}}
	worker := NewWorker(outbox, &fakePublisher{err: errors.New("broker down")}, nil)

	require.NoError(t, worker.RunOnce(context.Background(), 10))
	assert.Equal(t, []int64{9}, outbox.failedIDs)
}

func TestWorkerUnsupportedTopicRetriesThenFails(t *testing.T) {
	outbox := &fakeOutboxRepo{jobs: []OutboxJob{
		{ID: 1, Topic: "register_loan", Attempts: 1, Payload: []byte(`{}`)},
		{ID: 2, Topic: "register_loan", Attempts: 5, Payload: []byte(`{}`)},
	}}
	pub := &fakePublisher{}
	worker := NewWorker(outbox, pub, nil)

	require.NoError(t, worker.RunOnce(context.Background(), 10))
	assert.Equal(t, []int64{1}, outbox.retryIDs)
	assert.Equal(t, []int64{2}, outbox.failedIDs)
	assert.Empty(t, pub.sent)
}

func TestWorkerInvalidPayloadFailsImmediately(t *testing.T) {
	outbox := &fakeOutboxRepo{jobs: []OutboxJob{{ID: 3, Topic: "loan_repaid", Attempts: 1, Payload: []byte(`{not json`)}}}
	worker := NewWorker(outbox, &fakePublisher{}, nil)

	require.NoError(t, worker.RunOnce(context.Background(), 10))
	assert.Equal(t, []int64{3}, outbox.failedIDs)
}
