package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/task-manager/internal/logger"
)

// AuditConsumer reads user events from the queue and appends one line per
// event to an audit log file.
type AuditConsumer struct {
	url   string
	queue string
	path  string
	log   *slog.Logger
}

// NewAuditConsumer returns a consumer writing to path.
func NewAuditConsumer(url, queue, path string, log *slog.Logger) *AuditConsumer {
	return &AuditConsumer{url: url, queue: queue, path: path, log: log.With(slog.String("component", "audit-consumer"))}
}

// Run connects to the broker and consumes until ctx is cancelled. Broken
// connections are retried with exponential backoff capped at 30s.
func (a *AuditConsumer) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(a.url)
		if err != nil {
			a.log.Warn("failed to dial broker", logger.Err(err), slog.Duration("retry_in", backoff))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = a.consumeLoop(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		a.log.Warn("consume loop ended, reconnecting", logger.Err(err))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}
}

func (a *AuditConsumer) consumeLoop(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		a.log.Warn("set QoS failed", logger.Err(err))
	}
	if _, err := ch.QueueDeclare(a.queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.Consume(a.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := a.handle(d.Body); err != nil {
				a.log.Error("handle message failed", logger.Err(err))
				_ = d.Nack(false, false) // reject, do not requeue to avoid tight loops
				continue
			}
			_ = d.Ack(false)
		}
	}
}

func (a *AuditConsumer) handle(body []byte) error {
	var ev UserEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if ev.Type == "" {
		return errors.New("event without type")
	}
	if err := os.MkdirAll(filepath.Dir(a.path), 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	f, err := os.OpenFile(a.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open audit log: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(FormatAuditLine(ev)); err != nil {
		return fmt.Errorf("write audit log: %w", err)
	}
	return nil
}

// FormatAuditLine renders ev as a single human-readable log line.
func FormatAuditLine(ev UserEvent) string {
	line := fmt.Sprintf("[%s] %s | user_id=%d | email=%q | role=%s",
		ev.OccurredAt.UTC().Format(time.RFC3339), ev.Type, ev.UserID, ev.Email, ev.Role)
	if ev.ActorID != 0 {
		line += fmt.Sprintf(" | actor_id=%d", ev.ActorID)
	}
	return line + "\n"
}
