package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rajarshidattapy/R-Credit/internal/ws"
)

// WSRepository reads outbox rows for the realtime notifier. It never changes
// job state; delivery to sinks belongs to the worker.
type WSRepository struct {
	pool *pgxpool.Pool
}

func NewWSRepository(pool *pgxpool.Pool) *WSRepository {
	return &WSRepository{pool: pool}
}

func (r *WSRepository) ListNotificationsSince(ctx context.Context, lastID int64, limit int32) ([]ws.Notification, error) {
	if limit <= 0 {
		limit = 100
	}
	q := `
SELECT id, topic, COALESCE(identity_id::text, ''), payload, created_at
FROM outbox_jobs
WHERE id > $1
ORDER BY id ASC
LIMIT $2
`
	rows, err := r.pool.Query(ctx, q, lastID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]ws.Notification, 0)
	for rows.Next() {
		var n ws.Notification
		if err := rows.Scan(&n.ID, &n.Topic, &n.IdentityID, &n.Payload, &n.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *WSRepository) LatestNotificationID(ctx context.Context) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(MAX(id), 0) FROM outbox_jobs`).Scan(&id)
	return id, err
}
