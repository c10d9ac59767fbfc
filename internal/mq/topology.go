package mq

import (
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Топология remote-режима.
const (
	// AtomsExchange — direct-exchange движка.
	AtomsExchange = "atomika.atoms"

	// DLQExchange — exchange мёртвых сообщений.
	DLQExchange = "atomika.dlq"

	// DispatchQueue — очередь запросов на выполнение (читают воркеры).
	DispatchQueue = "atoms.dispatch"

	// EventsQueue — очередь событий жизненного цикла (читает движок).
	EventsQueue = "atoms.events"

	// DLQQueue — очередь мёртвых запросов.
	DLQQueue = "atoms.dispatch.dlq"

	// DispatchKey — ключ маршрутизации запросов.
	DispatchKey = "dispatch"

	// EventsKey — ключ маршрутизации событий.
	EventsKey = "events"
)

// DeclareTopology объявляет exchange'и, очереди и привязки.
// Идемпотентна: повторное объявление с теми же параметрами безопасно.
func DeclareTopology(ch *amqp.Channel) error {
	if err := ch.ExchangeDeclare(AtomsExchange, "direct", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange %s: %w", AtomsExchange, err)
	}
	if err := ch.ExchangeDeclare(DLQExchange, "direct", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange %s: %w", DLQExchange, err)
	}

	// Запросы: при reject без requeue уходят в DLQ.
	dispatchArgs := amqp.Table{
		"x-dead-letter-exchange":    DLQExchange,
		"x-dead-letter-routing-key": DispatchKey,
	}
	if _, err := ch.QueueDeclare(DispatchQueue, true, false, false, false, dispatchArgs); err != nil {
		return fmt.Errorf("declare queue %s: %w", DispatchQueue, err)
	}
	if err := ch.QueueBind(DispatchQueue, DispatchKey, AtomsExchange, false, nil); err != nil {
		return fmt.Errorf("bind queue %s: %w", DispatchQueue, err)
	}

	if _, err := ch.QueueDeclare(EventsQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue %s: %w", EventsQueue, err)
	}
	if err := ch.QueueBind(EventsQueue, EventsKey, AtomsExchange, false, nil); err != nil {
		return fmt.Errorf("bind queue %s: %w", EventsQueue, err)
	}

	if _, err := ch.QueueDeclare(DLQQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue %s: %w", DLQQueue, err)
	}
	if err := ch.QueueBind(DLQQueue, DispatchKey, DLQExchange, false, nil); err != nil {
		return fmt.Errorf("bind queue %s: %w", DLQQueue, err)
	}

	return nil
}
