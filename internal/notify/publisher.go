// Package notify delivers outbox notifications to downstream sinks.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/rajarshidattapy/R-Credit/internal/config"
)

// Message is one outbox row on its way out. ID is the outbox job id and is
// stable across redeliveries, so consumers dedupe on it.
type Message struct {
	ID         int64           `json:"id"`
	Topic      string          `json:"topic"`
	IdentityID string          `json:"identity_id,omitempty"`
	Payload    json.RawMessage `json:"payload"`
	CreatedAt  time.Time       `json:"created_at"`
}

type Publisher interface {
	Publish(ctx context.Context, msg Message) error
	Close() error
}

// LogPublisher writes every message to the structured log. It is the sink
// for local runs without a broker.
type LogPublisher struct {
	logger *slog.Logger
}

func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(ctx context.Context, msg Message) error {
	p.logger.InfoContext(ctx, "notification",
		"job_id", msg.ID,
		"topic", msg.Topic,
		"identity_id", msg.IdentityID,
		"payload", string(msg.Payload),
	)
	return nil
}

func (p *LogPublisher) Close() error {
	return nil
}

func NewPublisherFromConfig(cfg config.Config, logger *slog.Logger) (Publisher, error) {
	mode := strings.ToLower(strings.TrimSpace(cfg.NotifyMode))
	switch mode {
	case "", "log":
		return NewLogPublisher(logger), nil
	case "rabbitmq":
		if strings.TrimSpace(cfg.RabbitMQURL) == "" {
			return nil, fmt.Errorf("RABBITMQ_URL is required when NOTIFY_MODE=rabbitmq")
		}
		return DialRabbit(cfg.RabbitMQURL, cfg.RabbitMQExchange)
	default:
		return nil, fmt.Errorf("unsupported NOTIFY_MODE: %s", cfg.NotifyMode)
	}
}
