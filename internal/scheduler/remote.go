package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Atomika/internal/domain"
	"github.com/shaiso/Atomika/internal/mq"
	"github.com/shaiso/Atomika/internal/telemetry"
)

// Remote — планировщик, отправляющий атомы удалённым воркерам через
// RabbitMQ. Код атома по проводу не передаётся: воркер находит
// исполнителя в своём реестре по имени атома.
//
// Дубли и переупорядоченная доставка событий допустимы — движок
// применяет события завершения идемпотентно.
type Remote struct {
	flowID    uuid.UUID
	publisher *mq.Publisher
	consumer  *mq.Consumer
	logger    *slog.Logger

	completions chan Event

	startOnce sync.Once
	stopOnce  sync.Once
	cancel    context.CancelFunc
	done      chan struct{}
}

// NewRemote создаёт remote-планировщик для запуска flowID.
func NewRemote(conn *mq.Connection, flowID uuid.UUID, logger *slog.Logger) (*Remote, error) {
	publisher, err := mq.NewPublisher(conn, logger)
	if err != nil {
		return nil, fmt.Errorf("create publisher: %w", err)
	}

	r := &Remote{
		flowID:      flowID,
		publisher:   publisher,
		logger:      telemetry.WithFlowID(logger, flowID.String()),
		completions: make(chan Event, defaultQueueSize),
		done:        make(chan struct{}),
	}
	r.consumer = mq.NewConsumer(conn, mq.EventsQueue, "engine-"+flowID.String(), defaultQueueSize, r.handle, logger)
	return r, nil
}

// start запускает потребление событий при первом Dispatch.
func (r *Remote) start() {
	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel

	go func() {
		defer close(r.done)
		if err := r.consumer.Start(ctx); err != nil {
			r.logger.Error("event consumer stopped", "error", err)
		}
	}()
}

// handle транслирует событие воркера в событие планировщика.
// События чужих запусков подтверждаются и отбрасываются.
func (r *Remote) handle(ctx context.Context, msgType string, body []byte) error {
	var msg mq.Completion
	if err := json.Unmarshal(body, &msg); err != nil {
		return fmt.Errorf("unmarshal %s: %w", msgType, err)
	}
	if msg.FlowID != r.flowID {
		return nil
	}

	ev := Event{Atom: msg.Atom, Op: Op(msg.Op)}
	switch msgType {
	case mq.TypeStarted:
		ev.Type = EventStarted
	case mq.TypeCompleted:
		ev.Type = EventCompleted
		if msg.Error != "" {
			ev.Outcome.Failure = domain.NewFailure(msg.Atom, fmt.Errorf("%s", msg.Error))
		} else {
			ev.Outcome.Result = msg.Result
		}
	default:
		r.logger.Warn("unexpected message type", "type", msgType)
		return nil
	}

	select {
	case r.completions <- ev:
	case <-ctx.Done():
	}
	return nil
}

// Dispatch публикует пакет запросов в очередь воркеров.
func (r *Remote) Dispatch(ctx context.Context, batch []Request) error {
	r.startOnce.Do(r.start)

	for _, req := range batch {
		msg := mq.Dispatch{
			FlowID:      r.flowID,
			Atom:        req.Atom,
			Op:          string(req.Op),
			Inputs:      req.Inputs,
			RequestedAt: time.Now(),
		}
		if err := r.publisher.PublishDispatch(ctx, msg); err != nil {
			return fmt.Errorf("dispatch %s: %w", req.Atom, err)
		}
	}
	return nil
}

// Completions возвращает поток событий.
func (r *Remote) Completions() <-chan Event {
	return r.completions
}

// Stop останавливает потребление событий.
func (r *Remote) Stop() {
	r.stopOnce.Do(func() {
		if r.cancel != nil {
			r.cancel()
			<-r.done
		}
	})
}
