package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rajarshidattapy/R-Credit/internal/db"
	"github.com/rajarshidattapy/R-Credit/internal/jobs"
)

type OutboxRepository struct {
	pool *pgxpool.Pool
}

func NewOutboxRepository(pool *pgxpool.Pool) *OutboxRepository {
	return &OutboxRepository{pool: pool}
}

// Enqueue writes through the caller's unit of work when there is one, so the
// notification commits together with the state change it describes.
func (r *OutboxRepository) Enqueue(ctx context.Context, topic, identityID string, payload []byte) error {
	q := `INSERT INTO outbox_jobs (topic, identity_id, payload, status) VALUES ($1, NULLIF($2, '')::uuid, $3::jsonb, 'pending')`
	_, err := db.Conn(ctx, r.pool).Exec(ctx, q, topic, identityID, payload)
	return err
}

// ClaimPending leases due jobs for five minutes. A worker that dies holding a
// lease leaves its jobs claimable again once the lease runs out.
func (r *OutboxRepository) ClaimPending(ctx context.Context, limit int32) ([]jobs.OutboxJob, error) {
	q := `
UPDATE outbox_jobs SET
  status = 'processing',
  attempts = attempts + 1,
  available_at = NOW() + INTERVAL '5 minutes',
  updated_at = NOW()
WHERE id IN (
  SELECT id FROM outbox_jobs
  WHERE status IN ('pending', 'processing') AND available_at <= NOW()
  ORDER BY id
  LIMIT $1
  FOR UPDATE SKIP LOCKED
)
RETURNING id, topic, COALESCE(identity_id::text, ''), payload, status, attempts, last_error, available_at, created_at
`
	rows, err := r.pool.Query(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]jobs.OutboxJob, 0)
	for rows.Next() {
		var job jobs.OutboxJob
		if err := rows.Scan(&job.ID, &job.Topic, &job.IdentityID, &job.Payload, &job.Status, &job.Attempts, &job.LastError, &job.AvailableAt, &job.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, job)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *OutboxRepository) MarkDone(ctx context.Context, jobID int64) error {
	_, err := r.pool.Exec(ctx, `UPDATE outbox_jobs SET status = 'done', last_error = '', updated_at = NOW() WHERE id = $1`, jobID)
	return err
}

func (r *OutboxRepository) MarkRetry(ctx context.Context, jobID int64, nextAvailableAt time.Time, lastError string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE outbox_jobs SET status = 'pending', available_at = $2, last_error = $3, updated_at = NOW() WHERE id = $1`,
		jobID, nextAvailableAt, lastError,
	)
	return err
}

func (r *OutboxRepository) MarkFailed(ctx context.Context, jobID int64, lastError string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE outbox_jobs SET status = 'failed', last_error = $2, updated_at = NOW() WHERE id = $1`,
		jobID, lastError,
	)
	return err
}
