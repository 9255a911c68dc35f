package notify

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"

	amqp "github.com/rabbitmq/amqp091-go"
)

type amqpChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// RabbitPublisher publishes each message to a durable topic exchange with the
// outbox topic as routing key.
type RabbitPublisher struct {
	conn     *amqp.Connection
	ch       amqpChannel
	exchange string
}

func DialRabbit(url, exchange string) (*RabbitPublisher, error) {
	if exchange == "" {
		return nil, errors.New("rabbitmq exchange is required")
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	if err := ch.ExchangeDeclare(
		exchange, // name
		"topic",  // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	return &RabbitPublisher{conn: conn, ch: ch, exchange: exchange}, nil
}

func newRabbitPublisher(ch amqpChannel, exchange string) *RabbitPublisher {
	return &RabbitPublisher{ch: ch, exchange: exchange}
}

func (p *RabbitPublisher) Publish(ctx context.Context, msg Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return p.ch.PublishWithContext(ctx, p.exchange, msg.Topic, false, false, amqp.Publishing{
		ContentType:  "application/json",
		MessageId:    strconv.FormatInt(msg.ID, 10),
		Type:         msg.Topic,
		Body:         body,
		Timestamp:    msg.CreatedAt,
		DeliveryMode: amqp.Persistent,
	})
}

func (p *RabbitPublisher) Close() error {
	var err error
	if p.ch != nil {
		err = p.ch.Close()
	}
	if p.conn != nil {
		if cerr := p.conn.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
