package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher sends a JSON event to the queue with the given name.
type Publisher interface {
	Publish(ctx context.Context, queueName string, event interface{}) error
}

// RabbitPublisher keeps one connection and reopens it after a failure.
// Errors are logged and returned; callers treat them as non-fatal.
type RabbitPublisher struct {
	url    string
	logger *slog.Logger

	mu       sync.Mutex
	conn     *amqp.Connection
	declared map[string]bool
}

func NewRabbitPublisher(url string, logger *slog.Logger) *RabbitPublisher {
	return &RabbitPublisher{url: url, logger: logger, declared: make(map[string]bool)}
}

func (p *RabbitPublisher) connection() (*amqp.Connection, error) {
	if p.conn != nil && !p.conn.IsClosed() {
		return p.conn, nil
	}
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq dial: %w", err)
	}
	p.conn = conn
	p.declared = make(map[string]bool)
	return conn, nil
}

func (p *RabbitPublisher) Publish(ctx context.Context, queueName string, event interface{}) error {
	body, err := json.Marshal(event)
	if err != nil {
		p.logger.Error("rabbitmq: marshal event failed", slog.String("queue", queueName), slog.Any("error", err))
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	conn, err := p.connection()
	if err != nil {
		p.logger.Error("rabbitmq: dial failed", slog.Any("error", err))
		return err
	}

	ch, err := conn.Channel()
	if err != nil {
		p.logger.Error("rabbitmq: channel open failed", slog.Any("error", err))
		return err
	}
	defer func() { _ = ch.Close() }()

	if !p.declared[queueName] {
		// durable, not auto-deleted, not exclusive
		if _, err := ch.QueueDeclare(queueName, true, false, false, false, nil); err != nil {
			p.logger.Error("rabbitmq: queue declare failed", slog.String("queue", queueName), slog.Any("error", err))
			return err
		}
		p.declared[queueName] = true
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", queueName, false, false, msg); err != nil {
		p.logger.Error("rabbitmq: publish failed", slog.String("queue", queueName), slog.Any("error", err))
		return err
	}
	return nil
}

func (p *RabbitPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn == nil || p.conn.IsClosed() {
		return nil
	}
	return p.conn.Close()
}

// NoopPublisher is used when RABBITMQ_URL is not configured.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, string, interface{}) error { return nil }
