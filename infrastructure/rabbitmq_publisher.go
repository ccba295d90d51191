package infrastructure

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/vitovidale/editia-orchestrator/config"
	"github.com/vitovidale/editia-orchestrator/domain"
	"github.com/vitovidale/editia-orchestrator/logging"
)

// RabbitMQPublisher publishes render events to a durable queue.
type RabbitMQPublisher struct {
	conn   *amqp.Connection
	queue  string
	logger *slog.Logger

	mu sync.Mutex
	ch *amqp.Channel
}

// DialRabbitMQ connects to the broker, retrying every five seconds, and
// declares the events queue.
func DialRabbitMQ(ctx context.Context, cfg config.Events, logger *slog.Logger) (*RabbitMQPublisher, error) {
	logger = logging.NewComponentLogger(logger, "events")
	attempts := cfg.ConnectAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var (
		conn *amqp.Connection
		err  error
	)
	for i := 1; i <= attempts; i++ {
		conn, err = amqp.Dial(cfg.RabbitMQURL)
		if err == nil {
			break
		}
		if i == attempts {
			return nil, fmt.Errorf("connect to rabbitmq after %d attempts: %w", attempts, err)
		}
		logger.Warn("rabbitmq not reachable, retrying",
			slog.Int("attempt", i),
			slog.Int("max_attempts", attempts),
			logging.Error(err),
		)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(5 * time.Second):
		}
	}

	p := &RabbitMQPublisher{conn: conn, queue: cfg.Queue, logger: logger}
	if _, err := p.channel(); err != nil {
		_ = conn.Close()
		return nil, err
	}
	logger.Info("rabbitmq connection established", slog.String("queue", cfg.Queue))
	return p, nil
}

// channel returns the shared channel, reopening it and redeclaring the queue
// after the broker closed it.
func (p *RabbitMQPublisher) channel() (*amqp.Channel, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch != nil && !p.ch.IsClosed() {
		return p.ch, nil
	}
	ch, err := p.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open a channel: %w", err)
	}
	_, err = ch.QueueDeclare(
		p.queue,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("failed to declare queue %q: %w", p.queue, err)
	}
	p.ch = ch
	return ch, nil
}

func (p *RabbitMQPublisher) PublishRenderEvent(ctx context.Context, event domain.RenderEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal render event: %w", err)
	}
	ch, err := p.channel()
	if err != nil {
		return err
	}
	err = ch.PublishWithContext(ctx, "", p.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    event.RequestID,
		Timestamp:    event.OccurredAt,
		Type:         "render." + string(event.RenderStatus),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("failed to publish render event: %w", err)
	}
	p.logger.Debug("render event published",
		slog.String(logging.FieldRequestID, event.RequestID),
		slog.String("render_status", string(event.RenderStatus)),
	)
	return nil
}

// Status reports the connection state for the health endpoint.
func (p *RabbitMQPublisher) Status() string {
	if p == nil || p.conn == nil || p.conn.IsClosed() {
		return "disconnected"
	}
	return "connected"
}

func (p *RabbitMQPublisher) Close() error {
	p.mu.Lock()
	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
	p.mu.Unlock()
	return p.conn.Close()
}

// NopPublisher drops events. It is used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) PublishRenderEvent(context.Context, domain.RenderEvent) error { return nil }

func (NopPublisher) Status() string { return "disabled" }

func (NopPublisher) Close() error { return nil }
