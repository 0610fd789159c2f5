// Package mailer is the notification sink. The API process publishes
// email events to a durable RabbitMQ queue and moves on; the mailer
// worker (cmd/mailer) consumes the queue and delivers over SMTP.
package mailer

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"github.com/movenorth/booking-backend/internal/queue"
)

// Sink accepts email events for eventual delivery. Fire-and-forget:
// callers log failures but do not fail the request over them.
type Sink interface {
	Send(ctx context.Context, event queue.EmailEvent) error
}

// Publisher implements Sink over RabbitMQ.
type Publisher struct {
	ch        *amqp.Channel
	conn      *amqp.Connection
	queueName string
	log       zerolog.Logger
}

// NewPublisher dials the broker and declares the durable email queue.
func NewPublisher(url, queueName string, log zerolog.Logger) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("amqp channel: %w", err)
	}
	if _, err := ch.QueueDeclare(queueName, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("queue declare: %w", err)
	}
	return &Publisher{ch: ch, conn: conn, queueName: queueName, log: log}, nil
}

// Send publishes the event as a persistent message.
func (p *Publisher) Send(ctx context.Context, event queue.EmailEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal email event: %w", err)
	}
	err = p.ch.PublishWithContext(ctx, "", p.queueName, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish email event: %w", err)
	}
	p.log.Debug().Str("template", event.Template).Strs("recipients", event.Recipients).
		Msg("email event published")
	return nil
}

// Close releases the channel and connection.
func (p *Publisher) Close() error {
	_ = p.ch.Close()
	return p.conn.Close()
}
