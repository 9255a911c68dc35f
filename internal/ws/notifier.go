package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"
)

// Notification is an outbox row as seen by the realtime fan-out.
type Notification struct {
	ID         int64
	Topic      string
	IdentityID string
	Payload    []byte
	CreatedAt  time.Time
}

type NotificationRepository interface {
	ListNotificationsSince(ctx context.Context, lastID int64, limit int32) ([]Notification, error)
	LatestNotificationID(ctx context.Context) (int64, error)
}

// Topics that change how investors should see an issuer.
var issuerTopics = map[string]struct{}{
	"frozen_account":       {},
	"loan_defaulted":       {},
	"obligation_defaulted": {},
}

func IdentityChannel(identityID string) string {
	return "identity:" + identityID
}

func IssuerChannel(identityID string) string {
	return "issuer:" + identityID
}

// Notifier fans outbox rows out to websocket channels. Ids come from a
// sequence, so a row can commit after a higher id is already visible. The
// watermark therefore only moves over contiguous ids; a gap is waited on for
// gapGrace before it is treated as a rolled-back id and skipped.
type Notifier struct {
	repo         NotificationRepository
	hub          *Hub
	logger       *slog.Logger
	pollInterval time.Duration
	gapGrace     time.Duration
	now          func() time.Time

	started   bool
	lastID    int64
	delivered map[int64]struct{}
	gapSince  time.Time
}

func NewNotifier(repo NotificationRepository, hub *Hub, pollInterval time.Duration, logger *slog.Logger) *Notifier {
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{
		repo:         repo,
		hub:          hub,
		logger:       logger,
		pollInterval: pollInterval,
		gapGrace:     30 * time.Second,
		now:          time.Now,
		delivered:    map[int64]struct{}{},
	}
}

// Run fans out notifications written after it started until ctx is done.
// Failed polls are logged and retried on the next tick.
func (n *Notifier) Run(ctx context.Context) error {
	ticker := time.NewTicker(n.pollInterval)
	defer ticker.Stop()

	if err := n.tick(ctx); err != nil {
		n.logger.WarnContext(ctx, "ws notifier poll failed", "err", err)
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := n.tick(ctx); err != nil {
				n.logger.WarnContext(ctx, "ws notifier poll failed", "err", err)
			}
		}
	}
}

func (n *Notifier) tick(ctx context.Context) error {
	if !n.started {
		latest, err := n.repo.LatestNotificationID(ctx)
		if err != nil {
			return err
		}
		n.lastID = latest
		n.started = true
	}

	items, err := n.repo.ListNotificationsSince(ctx, n.lastID, 100)
	if err != nil {
		return err
	}
	for _, item := range items {
		if _, ok := n.delivered[item.ID]; ok || item.ID <= n.lastID {
			continue
		}
		n.delivered[item.ID] = struct{}{}
		n.publish(item)
	}
	n.advance()
	return nil
}

func (n *Notifier) publish(item Notification) {
	if item.IdentityID == "" {
		return
	}
	data := json.RawMessage(item.Payload)
	if !json.Valid(data) {
		data = json.RawMessage(`{}`)
	}
	payload, _ := json.Marshal(map[string]any{
		"event":       item.Topic,
		"id":          item.ID,
		"recorded_at": item.CreatedAt.UTC().Format(time.RFC3339),
		"data":        data,
	})
	n.hub.Publish(IdentityChannel(item.IdentityID), payload)
	if _, ok := issuerTopics[item.Topic]; ok {
		n.hub.Publish(IssuerChannel(item.IdentityID), payload)
	}
}

func (n *Notifier) advance() {
	for {
		next := n.lastID + 1
		if _, ok := n.delivered[next]; !ok {
			break
		}
		delete(n.delivered, next)
		n.lastID = next
		n.gapSince = time.Time{}
	}
	if len(n.delivered) == 0 {
		n.gapSince = time.Time{}
		return
	}
	if n.gapSince.IsZero() {
		n.gapSince = n.now()
		return
	}
	if n.now().Sub(n.gapSince) < n.gapGrace {
		return
	}

	lowest := int64(0)
	for id := range n.delivered {
		if lowest == 0 || id < lowest {
			lowest = id
		}
	}
	n.lastID = lowest - 1
	n.gapSince = time.Time{}
	n.advance()
}
