package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shaiso/Atomika/internal/mq"
	"github.com/shaiso/Atomika/internal/scheduler"
	"github.com/shaiso/Atomika/internal/telemetry"
)

// Default configuration values.
const (
	defaultPrefetch    = 5
	defaultExecTimeout = 5 * time.Minute
)

// Sink — публикация событий жизненного цикла атома.
// Реализуется mq.Publisher; в тестах подменяется дублёром.
type Sink interface {
	PublishStarted(ctx context.Context, msg mq.Completion) error
	PublishCompleted(ctx context.Context, msg mq.Completion) error
}

// Worker потребляет запросы atom.dispatch и выполняет атомы.
type Worker struct {
	name     string
	registry *Registry
	sink     Sink
	conn     *mq.Connection

	prefetch    int
	execTimeout time.Duration

	logger     *slog.Logger
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
}

// Config — конфигурация Worker.
type Config struct {
	// Name — имя воркера (попадает в события для диагностики).
	Name string

	// Registry — реестр исполнителей атомов.
	Registry *Registry

	// Sink — публикация событий (обычно mq.Publisher).
	Sink Sink

	// Conn — соединение с RabbitMQ.
	Conn *mq.Connection

	// Prefetch — количество неподтверждённых запросов на воркера.
	Prefetch int

	// ExecTimeout — таймаут выполнения одного атома.
	ExecTimeout time.Duration

	// Logger — структурированный логгер (nil — глобальный).
	Logger *slog.Logger
}

// New создаёт Worker.
func New(cfg Config) *Worker {
	prefetch := cfg.Prefetch
	if prefetch <= 0 {
		prefetch = defaultPrefetch
	}
	execTimeout := cfg.ExecTimeout
	if execTimeout <= 0 {
		execTimeout = defaultExecTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	registry := cfg.Registry
	if registry == nil {
		registry = NewRegistry()
	}

	return &Worker{
		name:        cfg.Name,
		registry:    registry,
		sink:        cfg.Sink,
		conn:        cfg.Conn,
		prefetch:    prefetch,
		execTimeout: execTimeout,
		logger:      logger,
	}
}

// Start запускает потребление очереди atoms.dispatch.
func (w *Worker) Start(ctx context.Context) error {
	if w.conn == nil {
		return fmt.Errorf("worker %s: no mq connection", w.name)
	}

	ctx, cancel := context.WithCancel(ctx)
	w.cancelFunc = cancel

	consumer := mq.NewConsumer(w.conn, mq.DispatchQueue, "worker-"+w.name, w.prefetch, w.HandleDispatch, w.logger)
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		if err := consumer.Start(ctx); err != nil {
			w.logger.Error("dispatch consumer stopped", "error", err)
		}
	}()

	w.logger.Info("worker started", "name", w.name, "atoms", w.registry.Names())
	return nil
}

// Stop останавливает воркер, дожидаясь атомов в полёте.
func (w *Worker) Stop() {
	if w.cancelFunc != nil {
		w.cancelFunc()
	}
	w.wg.Wait()
	w.logger.Info("worker stopped", "name", w.name)
}

// HandleDispatch обрабатывает один запрос atom.dispatch.
//
// Ошибка выполнения атома — не ошибка обработки: она публикуется в
// событии atom.completed, а запрос подтверждается. В DLQ уходят только
// нечитаемые сообщения.
func (w *Worker) HandleDispatch(ctx context.Context, msgType string, body []byte) error {
	if msgType != mq.TypeDispatch {
		w.logger.Warn("unexpected message type", "type", msgType)
		return nil
	}

	var msg mq.Dispatch
	if err := json.Unmarshal(body, &msg); err != nil {
		return fmt.Errorf("unmarshal dispatch: %w", err)
	}

	logger := telemetry.WithAtom(telemetry.WithFlowID(w.logger, msg.FlowID.String()), msg.Atom).With("op", msg.Op)
	logger.Info("atom dispatched to worker")

	started := mq.Completion{FlowID: msg.FlowID, Atom: msg.Atom, Op: msg.Op, Worker: w.name}
	if err := w.sink.PublishStarted(ctx, started); err != nil {
		return fmt.Errorf("publish started: %w", err)
	}

	execCtx, cancel := context.WithTimeout(ctx, w.execTimeout)
	result, execErr := w.execute(execCtx, msg)
	cancel()

	completion := mq.Completion{
		FlowID:     msg.FlowID,
		Atom:       msg.Atom,
		Op:         msg.Op,
		Worker:     w.name,
		FinishedAt: time.Now(),
	}
	if execErr != nil {
		completion.Error = execErr.Error()
		logger.Warn("atom failed on worker", "error", execErr)
	} else {
		completion.Result = result
	}

	if err := w.sink.PublishCompleted(ctx, completion); err != nil {
		return fmt.Errorf("publish completed: %w", err)
	}
	return nil
}

// execute находит исполнителя и выполняет запрошенную работу.
func (w *Worker) execute(ctx context.Context, msg mq.Dispatch) (map[string]any, error) {
	ex, err := w.registry.Get(msg.Atom)
	if err != nil {
		return nil, err
	}

	switch scheduler.Op(msg.Op) {
	case scheduler.OpRevert:
		if ex.Revert == nil {
			return nil, nil
		}
		return nil, ex.Revert(ctx, msg.Inputs)
	default:
		if ex.Execute == nil {
			return nil, nil
		}
		return ex.Execute(ctx, msg.Inputs)
	}
}
