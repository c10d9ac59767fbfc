package scheduler

import (
	"context"
	"sync"
)

// Default configuration values.
const (
	defaultWorkers   = 4
	defaultQueueSize = 256
)

// Local — планировщик на локальном пуле воркеров.
//
// С одним воркером это Serial-стратегия: атомы выполняются строго
// по одному, в порядке поступления (движок подаёт фронтир в
// топологическом порядке с tie-break по порядку объявления).
// С несколькими — Parallel: атомы без взаимного порядка выполняются
// конкурентно, ограничение — размер пула.
type Local struct {
	workers int

	queue       chan queued
	completions chan Event

	startOnce sync.Once
	stopOnce  sync.Once
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

type queued struct {
	ctx context.Context
	req Request
}

// NewSerial создаёт планировщик с одним воркером.
func NewSerial() *Local {
	return newLocal(1)
}

// NewParallel создаёт планировщик с пулом из workers воркеров
// (<= 0 — значение по умолчанию).
func NewParallel(workers int) *Local {
	if workers <= 0 {
		workers = defaultWorkers
	}
	return newLocal(workers)
}

func newLocal(workers int) *Local {
	return &Local{
		workers:     workers,
		queue:       make(chan queued, defaultQueueSize),
		completions: make(chan Event, defaultQueueSize),
	}
}

// start запускает воркеров при первом Dispatch.
func (l *Local) start() {
	ctx, cancel := context.WithCancel(context.Background())
	l.cancel = cancel

	for i := 0; i < l.workers; i++ {
		l.wg.Add(1)
		go func() {
			defer l.wg.Done()
			l.worker(ctx)
		}()
	}
}

func (l *Local) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case q, ok := <-l.queue:
			if !ok {
				return
			}

			l.emit(ctx, Event{Atom: q.req.Atom, Op: q.req.Op, Type: EventStarted})
			l.emit(ctx, run(q.ctx, q.req))
		}
	}
}

func (l *Local) emit(ctx context.Context, ev Event) {
	select {
	case l.completions <- ev:
	case <-ctx.Done():
	}
}

// Dispatch ставит пакет запросов в очередь пула.
func (l *Local) Dispatch(ctx context.Context, batch []Request) error {
	l.startOnce.Do(l.start)

	for _, req := range batch {
		select {
		case l.queue <- queued{ctx: ctx, req: req}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Completions возвращает поток событий.
func (l *Local) Completions() <-chan Event {
	return l.completions
}

// Stop останавливает пул, дожидаясь атомов в полёте.
func (l *Local) Stop() {
	l.stopOnce.Do(func() {
		close(l.queue)
		if l.cancel != nil {
			l.cancel()
		}
		l.wg.Wait()
	})
}
