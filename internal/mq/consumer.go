package mq

import (
	"context"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Handler обрабатывает одно сообщение. Ошибка приводит к reject без
// requeue — сообщение уходит в DLQ (если привязана).
type Handler func(ctx context.Context, msgType string, body []byte) error

// Consumer потребляет сообщения из одной очереди, переживая reconnect.
type Consumer struct {
	conn     *Connection
	queue    string
	tag      string
	prefetch int
	handler  Handler
	logger   *slog.Logger
}

// NewConsumer создаёт потребителя очереди queue.
func NewConsumer(conn *Connection, queue, tag string, prefetch int, handler Handler, logger *slog.Logger) *Consumer {
	if prefetch <= 0 {
		prefetch = 1
	}
	return &Consumer{
		conn:     conn,
		queue:    queue,
		tag:      tag,
		prefetch: prefetch,
		handler:  handler,
		logger:   logger,
	}
}

// Start запускает цикл потребления до отмены контекста.
// При потере соединения ждёт переподключения и подписывается заново.
func (c *Consumer) Start(ctx context.Context) error {
	for {
		if err := c.consume(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.logger.Warn("consume loop interrupted", "queue", c.queue, "error", err)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-c.conn.ReconnectNotify():
			c.logger.Info("resubscribing after reconnect", "queue", c.queue)
		}
	}
}

func (c *Consumer) consume(ctx context.Context) error {
	ch := c.conn.Channel()
	if ch == nil {
		return fmt.Errorf("no amqp channel")
	}

	if err := DeclareTopology(ch); err != nil {
		return err
	}
	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		return fmt.Errorf("set qos: %w", err)
	}

	deliveries, err := ch.Consume(c.queue, c.tag, false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", c.queue, err)
	}

	c.logger.Info("consuming", "queue", c.queue, "prefetch", c.prefetch)

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("delivery channel closed")
			}
			c.handle(ctx, d)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, d amqp.Delivery) {
	if err := c.handler(ctx, d.Type, d.Body); err != nil {
		c.logger.Error("message handling failed", "queue", c.queue, "type", d.Type, "error", err)
		if nackErr := d.Nack(false, false); nackErr != nil {
			c.logger.Error("nack failed", "error", nackErr)
		}
		return
	}
	if err := d.Ack(false); err != nil {
		c.logger.Error("ack failed", "error", err)
	}
}
