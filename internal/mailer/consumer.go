package mailer

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/smtp"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"github.com/movenorth/booking-backend/internal/metrics"
	"github.com/movenorth/booking-backend/internal/queue"
)

// SMTPConfig holds the delivery settings for the mailer worker.
type SMTPConfig struct {
	Host string
	Port string
	User string
	Pass string
	From string
}

// Consumer drains the email queue and delivers messages over SMTP.
type Consumer struct {
	url       string
	queueName string
	smtp      SMTPConfig
	log       zerolog.Logger

	// send is swappable for tests; defaults to SMTP delivery.
	send func(ev queue.EmailEvent) error
}

func NewConsumer(url, queueName string, smtpCfg SMTPConfig, log zerolog.Logger) *Consumer {
	c := &Consumer{url: url, queueName: queueName, smtp: smtpCfg, log: log}
	c.send = c.deliver
	return c
}

// Run consumes the queue until the connection drops, reconnecting with
// backoff. It returns only on unrecoverable setup errors.
func (c *Consumer) Run() error {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(c.url)
		if err != nil {
			c.log.Warn().Err(err).Dur("backoff", backoff).Msg("mailer: broker dial failed")
			time.Sleep(backoff)
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		if err := c.consumeLoop(conn); err != nil {
			c.log.Warn().Err(err).Msg("mailer: consume loop ended, reconnecting")
			_ = conn.Close()
			time.Sleep(2 * time.Second)
		}
	}
}

func (c *Consumer) consumeLoop(conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(c.queueName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	if err := ch.Qos(10, 0, false); err != nil {
		c.log.Warn().Err(err).Msg("mailer: set QoS failed")
	}

	msgs, err := ch.Consume(c.queueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for d := range msgs {
		if err := c.handle(d.Body); err != nil {
			c.log.Error().Err(err).Msg("mailer: delivery failed")
			metrics.IncEmailEvent("unknown", "failed")
			_ = d.Nack(false, false) // drop, do not requeue into a tight loop
			continue
		}
		_ = d.Ack(false)
	}
	return errors.New("deliveries channel closed")
}

func (c *Consumer) handle(body []byte) error {
	var ev queue.EmailEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal email event: %w", err)
	}
	if len(ev.Recipients) == 0 {
		return errors.New("email event has no recipients")
	}
	if err := c.send(ev); err != nil {
		return err
	}
	metrics.IncEmailEvent(ev.Template, "delivered")
	return nil
}

func (c *Consumer) deliver(ev queue.EmailEvent) error {
	msg := strings.Join([]string{
		"From: " + c.smtp.From,
		"To: " + strings.Join(ev.Recipients, ", "),
		"Subject: " + ev.Subject,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=\"utf-8\"",
		"",
		Render(ev.Template, ev.Context),
	}, "\r\n")

	addr := c.smtp.Host + ":" + c.smtp.Port
	auth := smtp.PlainAuth("", c.smtp.User, c.smtp.Pass, c.smtp.Host)
	return smtp.SendMail(addr, auth, c.smtp.From, ev.Recipients, []byte(msg))
}
