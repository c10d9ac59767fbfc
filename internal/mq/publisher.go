package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher публикует сообщения в exchange движка.
type Publisher struct {
	conn   *Connection
	logger *slog.Logger
}

// NewPublisher создаёт публикатор и объявляет топологию.
func NewPublisher(conn *Connection, logger *slog.Logger) (*Publisher, error) {
	ch := conn.Channel()
	if ch == nil {
		return nil, fmt.Errorf("no amqp channel")
	}
	if err := DeclareTopology(ch); err != nil {
		return nil, err
	}
	return &Publisher{conn: conn, logger: logger}, nil
}

// PublishDispatch публикует запрос на выполнение атома.
func (p *Publisher) PublishDispatch(ctx context.Context, msg Dispatch) error {
	return p.publish(ctx, DispatchKey, TypeDispatch, msg)
}

// PublishStarted публикует событие начала выполнения.
func (p *Publisher) PublishStarted(ctx context.Context, msg Completion) error {
	return p.publish(ctx, EventsKey, TypeStarted, msg)
}

// PublishCompleted публикует событие завершения.
func (p *Publisher) PublishCompleted(ctx context.Context, msg Completion) error {
	return p.publish(ctx, EventsKey, TypeCompleted, msg)
}

func (p *Publisher) publish(ctx context.Context, key, msgType string, body any) error {
	ch := p.conn.Channel()
	if ch == nil {
		return fmt.Errorf("no amqp channel")
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", msgType, err)
	}

	err = ch.PublishWithContext(ctx, AtomsExchange, key, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Type:         msgType,
		Timestamp:    time.Now(),
		Body:         payload,
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", msgType, err)
	}

	p.logger.Debug("message published", "type", msgType, "routing_key", key)
	return nil
}
