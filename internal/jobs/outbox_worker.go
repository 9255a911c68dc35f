package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/rajarshidattapy/R-Credit/internal/notify"
)

var knownTopics = map[string]struct{}{
	"frozen_account":       {},
	"obligation_defaulted": {},
	"loan_disbursed":       {},
	"loan_repaid":          {},
	"loan_defaulted":       {},
}

type OutboxJob struct {
	ID          int64
	Topic       string
	IdentityID  string
	Payload     []byte
	Status      string
	Attempts    int32
	LastError   string
	AvailableAt time.Time
	CreatedAt   time.Time
}

// OutboxRepository hands out due jobs. ClaimPending moves the returned rows
// to processing and increments their attempt counter.
type OutboxRepository interface {
	ClaimPending(ctx context.Context, limit int32) ([]OutboxJob, error)
	MarkDone(ctx context.Context, jobID int64) error
	MarkRetry(ctx context.Context, jobID int64, nextAvailableAt time.Time, lastError string) error
	MarkFailed(ctx context.Context, jobID int64, lastError string) error
}

type Worker struct {
	outboxRepo   OutboxRepository
	publisher    notify.Publisher
	logger       *slog.Logger
	maxAttempts  int32
	now          func() time.Time
	retryBackoff func(attempt int32) time.Duration
}

func NewWorker(outboxRepo OutboxRepository, publisher notify.Publisher, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		outboxRepo:  outboxRepo,
		publisher:   publisher,
		logger:      logger,
		maxAttempts: 5,
		now:         func() time.Time { return time.Now().UTC() },
		retryBackoff: func(attempt int32) time.Duration {
			if attempt < 1 {
				attempt = 1
			}
			return time.Duration(attempt*15) * time.Second
		},
	}
}

func (w *Worker) RunOnce(ctx context.Context, batchSize int32) error {
	jobs, err := w.outboxRepo.ClaimPending(ctx, batchSize)
	if err != nil {
		return err
	}

	for _, job := range jobs {
		if err := w.processJob(ctx, job); err != nil {
			return err
		}
	}

	return nil
}

func (w *Worker) processJob(ctx context.Context, job OutboxJob) error {
	if _, ok := knownTopics[job.Topic]; !ok {
		return w.handleJobError(ctx, job, errors.New("unsupported_topic"))
	}
	if !json.Valid(job.Payload) {
		return w.outboxRepo.MarkFailed(ctx, job.ID, "invalid_payload")
	}

	err := w.publisher.Publish(ctx, notify.Message{
		ID:         job.ID,
		Topic:      job.Topic,
		IdentityID: job.IdentityID,
		Payload:    json.RawMessage(job.Payload),
		CreatedAt:  job.CreatedAt,
	})
	if err != nil {
		return w.handleJobError(ctx, job, err)
	}
	return w.outboxRepo.MarkDone(ctx, job.ID)
}

func (w *Worker) handleJobError(ctx context.Context, job OutboxJob, err error) error {
	msg := err.Error()
	if job.Attempts >= w.maxAttempts {
		w.logger.WarnContext(ctx, "outbox job failed", "job_id", job.ID, "topic", job.Topic, "attempts", job.Attempts, "error", msg)
		return w.outboxRepo.MarkFailed(ctx, job.ID, msg)
	}
	next := w.now().Add(w.retryBackoff(job.Attempts))
	return w.outboxRepo.MarkRetry(ctx, job.ID, next, msg)
}
