package memory

import (
	"context"
	"time"

	"github.com/rajarshidattapy/R-Credit/internal/jobs"
	"github.com/rajarshidattapy/R-Credit/internal/ws"
)

// processingLease is how long a claimed job stays invisible before another
// worker may claim it again.
const processingLease = 5 * time.Minute

type OutboxRepository struct {
	s *Store
}

func (r *OutboxRepository) Enqueue(_ context.Context, topic, identityID string, payload []byte) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	now := r.s.now()
	r.s.nextJobID++
	r.s.outbox = append(r.s.outbox, &jobs.OutboxJob{
		ID:          r.s.nextJobID,
		Topic:       topic,
		IdentityID:  identityID,
		Payload:     append([]byte(nil), payload...),
		Status:      "pending",
		AvailableAt: now,
		CreatedAt:   now,
	})
	return nil
}

func (r *OutboxRepository) ClaimPending(_ context.Context, limit int32) ([]jobs.OutboxJob, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	now := r.s.now()
	out := make([]jobs.OutboxJob, 0)
	for _, job := range r.s.outbox {
		if int32(len(out)) >= limit {
			break
		}
		claimable := job.Status == "pending" || job.Status == "processing"
		if !claimable || job.AvailableAt.After(now) {
			continue
		}
		job.Status = "processing"
		job.Attempts++
		job.AvailableAt = now.Add(processingLease)
		out = append(out, *job)
	}
	return out, nil
}

func (r *OutboxRepository) MarkDone(_ context.Context, jobID int64) error {
	return r.update(jobID, func(job *jobs.OutboxJob) {
		job.Status = "done"
		job.LastError = ""
	})
}

func (r *OutboxRepository) MarkRetry(_ context.Context, jobID int64, nextAvailableAt time.Time, lastError string) error {
	return r.update(jobID, func(job *jobs.OutboxJob) {
		job.Status = "pending"
		job.AvailableAt = nextAvailableAt
		job.LastError = lastError
	})
}

func (r *OutboxRepository) MarkFailed(_ context.Context, jobID int64, lastError string) error {
	return r.update(jobID, func(job *jobs.OutboxJob) {
		job.Status = "failed"
		job.LastError = lastError
	})
}

func (r *OutboxRepository) ListNotificationsSince(_ context.Context, lastID int64, limit int32) ([]ws.Notification, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	out := make([]ws.Notification, 0)
	for _, job := range r.s.outbox {
		if job.ID <= lastID {
			continue
		}
		if int32(len(out)) >= limit {
			break
		}
		out = append(out, ws.Notification{
			ID:         job.ID,
			Topic:      job.Topic,
			IdentityID: job.IdentityID,
			Payload:    job.Payload,
			CreatedAt:  job.CreatedAt,
		})
	}
	return out, nil
}

func (r *OutboxRepository) LatestNotificationID(context.Context) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.nextJobID, nil
}

// Jobs returns a copy of every job with the given topic, in insertion order.
func (r *OutboxRepository) Jobs(topic string) []jobs.OutboxJob {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	out := make([]jobs.OutboxJob, 0)
	for _, job := range r.s.outbox {
		if topic == "" || job.Topic == topic {
			out = append(out, *job)
		}
	}
	return out
}

func (r *OutboxRepository) update(jobID int64, fn func(job *jobs.OutboxJob)) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, job := range r.s.outbox {
		if job.ID == jobID {
			fn(job)
			return nil
		}
	}
	return nil
}
