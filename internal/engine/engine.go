package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shaiso/Atomika/internal/analyzer"
	"github.com/shaiso/Atomika/internal/compiler"
	"github.com/shaiso/Atomika/internal/domain"
	"github.com/shaiso/Atomika/internal/flow"
	"github.com/shaiso/Atomika/internal/notify"
	"github.com/shaiso/Atomika/internal/scheduler"
	"github.com/shaiso/Atomika/internal/storage"
	"github.com/shaiso/Atomika/internal/telemetry"
)

// Config — конфигурация движка.
type Config struct {
	// Graph — скомпилированный граф выполнения.
	Graph *compiler.Graph

	// Storage — хранилище состояния запуска.
	Storage storage.Storage

	// Scheduler — стратегия диспетчеризации атомов.
	Scheduler scheduler.Scheduler

	// Logger — структурированный логгер (nil — глобальный).
	Logger *slog.Logger
}

// Statistics — сводка по запуску.
type Statistics struct {
	// Total — всего атомов в графе.
	Total int

	// ByState — количество атомов в каждом состоянии.
	ByState map[domain.AtomState]int

	// FlowState — текущее состояние потока.
	FlowState domain.FlowState
}

// Engine — оркестратор одного запуска потока.
//
// Run и Rollback не реентерабельны: движок ведёт один запуск за раз.
// Suspend и Statistics безопасно звать из других горутин.
type Engine struct {
	graph  *compiler.Graph
	st     storage.Storage
	sched  scheduler.Scheduler
	an     *analyzer.Analyzer
	logger *slog.Logger

	mirror *mirror

	atomNotifier notify.Notifier
	flowNotifier notify.Notifier

	fsMu        sync.RWMutex
	flowState   domain.FlowState
	inFlight    int
	reverting   bool
	requested   bool
	rootFailure *domain.Failure
	fatal       error
	absorbing   map[string]*compiler.Node
	startedAt   map[string]time.Time

	suspendRequested atomic.Bool
}

// New создаёт движок.
func New(cfg Config) (*Engine, error) {
	if cfg.Graph == nil {
		return nil, fmt.Errorf("engine: graph is required")
	}
	if cfg.Storage == nil {
		return nil, fmt.Errorf("engine: storage is required")
	}
	if cfg.Scheduler == nil {
		return nil, fmt.Errorf("engine: scheduler is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Engine{
		graph:     cfg.Graph,
		st:        cfg.Storage,
		sched:     cfg.Scheduler,
		an:        analyzer.New(cfg.Graph),
		logger:    logger,
		mirror:    newMirror(),
		flowState: domain.FlowPending,
		absorbing: make(map[string]*compiler.Node),
		startedAt: make(map[string]time.Time),
	}, nil
}

// AtomNotifier — подписки на переходы состояний атомов.
func (e *Engine) AtomNotifier() *notify.Notifier { return &e.atomNotifier }

// FlowNotifier — подписки на переходы состояния потока.
func (e *Engine) FlowNotifier() *notify.Notifier { return &e.flowNotifier }

// Suspend запрашивает мягкую остановку: новые атомы не диспетчеризуются,
// атомы в полёте дорабатывают, итог Run — SUSPENDED. Возобновление —
// повторный Run на том же storage.
func (e *Engine) Suspend() {
	e.suspendRequested.Store(true)
}

// Statistics возвращает сводку по текущему состоянию запуска.
func (e *Engine) Statistics() Statistics {
	e.fsMu.RLock()
	fs := e.flowState
	e.fsMu.RUnlock()

	return Statistics{
		Total:     e.graph.Size(),
		ByState:   e.mirror.counts(),
		FlowState: fs,
	}
}

// Run выполняет поток до терминального состояния (или SUSPENDED).
//
// Запуск всегда начинается с возобновления: состояние поднимается из
// storage, поэтому свежий запуск и продолжение прерванного — один и
// тот же путь кода.
func (e *Engine) Run(ctx context.Context) (domain.FlowState, error) {
	if err := e.resume(ctx); err != nil {
		return e.flowState, err
	}
	return e.loop(ctx)
}

// Rollback откатывает всё, что успело выполниться. Итог — REVERTED.
func (e *Engine) Rollback(ctx context.Context) (domain.FlowState, error) {
	if err := e.resume(ctx); err != nil {
		return e.flowState, err
	}

	e.reverting = true
	e.requested = true
	for _, node := range e.graph.Nodes() {
		switch e.mirror.State(node.Name) {
		case domain.StateSuccess, domain.StateFailure:
			if err := e.setIntention(ctx, node.Name, domain.IntentionRevert); err != nil {
				return e.flowState, err
			}
		}
	}
	return e.loop(ctx)
}

// resume поднимает состояние запуска из storage и сверяет сигнатуру графа.
// Атомы, застрявшие в SCHEDULED/RUNNING после падения процесса,
// сбрасываются в PENDING: их события завершения потеряны.
func (e *Engine) resume(ctx context.Context) error {
	e.suspendRequested.Store(false)

	fs, err := e.st.FlowState(ctx)
	if err != nil {
		return fmt.Errorf("load flow state: %w", err)
	}
	e.fsMu.Lock()
	e.flowState = fs
	e.fsMu.Unlock()
	if err := e.setFlowState(ctx, domain.FlowResuming); err != nil {
		return err
	}

	saved, err := e.st.GraphSignature(ctx)
	if err != nil {
		return fmt.Errorf("load graph signature: %w", err)
	}
	switch saved {
	case "":
		if err := e.st.SaveGraphSignature(ctx, e.graph.Signature()); err != nil {
			return fmt.Errorf("save graph signature: %w", err)
		}
	case e.graph.Signature():
	default:
		return fmt.Errorf("%w: stored %s, compiled %s", ErrGraphMismatch, saved, e.graph.Signature())
	}

	for _, node := range e.graph.Nodes() {
		if err := e.st.EnsureAtom(ctx, node.Name); err != nil {
			return fmt.Errorf("ensure atom %s: %w", node.Name, err)
		}
		state, err := e.st.AtomState(ctx, node.Name)
		if err != nil {
			return fmt.Errorf("load state of %s: %w", node.Name, err)
		}
		intention, err := e.st.Intention(ctx, node.Name)
		if err != nil {
			return fmt.Errorf("load intention of %s: %w", node.Name, err)
		}

		if state == domain.StateScheduled || state == domain.StateRunning {
			e.logger.Info("resetting in-flight atom", "atom", node.Name, "state", state)
			if err := e.st.SetAtomState(ctx, node.Name, domain.StatePending); err != nil {
				return fmt.Errorf("reset %s: %w", node.Name, err)
			}
			state = domain.StatePending
		}

		e.mirror.init(node.Name, state, intention)
		// Прерванный откат продолжается как откат; исходная ошибка
		// поднимается из storage, чтобы итоговый FAILURE её нёс
		if intention == domain.IntentionRevert {
			e.reverting = true
			if e.rootFailure == nil {
				failure, err := e.st.Failure(ctx, node.Name)
				if err != nil && !errors.Is(err, storage.ErrNotFound) {
					return fmt.Errorf("load failure of %s: %w", node.Name, err)
				}
				e.rootFailure = failure
			}
		}
	}
	return nil
}

// loop — основной цикл: фронтир → диспетчеризация → ожидание событий.
func (e *Engine) loop(ctx context.Context) (domain.FlowState, error) {
	for {
		if ctx.Err() != nil {
			return e.flowState, ctx.Err()
		}

		if e.suspendRequested.Load() {
			if e.inFlight > 0 {
				if err := e.awaitEvent(ctx); err != nil {
					return e.flowState, err
				}
				continue
			}
			if err := e.setFlowState(ctx, domain.FlowSuspended); err != nil {
				return e.flowState, err
			}
			e.logger.Info("flow suspended")
			return domain.FlowSuspended, nil
		}

		if e.fatal != nil {
			if e.inFlight > 0 {
				if err := e.awaitEvent(ctx); err != nil {
					return e.flowState, err
				}
				continue
			}
			if err := e.setFlowState(ctx, domain.FlowFailure); err != nil {
				return e.flowState, err
			}
			telemetry.FlowsCompleted.WithLabelValues(string(domain.FlowFailure)).Inc()
			return domain.FlowFailure, e.fatal
		}

		next := domain.FlowScheduling
		if e.reverting {
			next = domain.FlowReverting
		}
		if err := e.setFlowState(ctx, next); err != nil {
			return e.flowState, err
		}

		dispatched, err := e.dispatchFrontiers(ctx)
		if err != nil {
			return e.flowState, err
		}

		if dispatched == 0 && e.inFlight == 0 {
			switch {
			case e.reverting && e.an.RevertComplete(e.mirror):
				return e.finishRevert(ctx)
			case !e.reverting && len(e.absorbing) == 0 && e.an.Complete(e.mirror):
				if err := e.setFlowState(ctx, domain.FlowSuccess); err != nil {
					return e.flowState, err
				}
				telemetry.FlowsCompleted.WithLabelValues(string(domain.FlowSuccess)).Inc()
				e.logger.Info("flow completed")
				return domain.FlowSuccess, nil
			default:
				return e.flowState, e.stallError()
			}
		}

		if !e.reverting {
			if err := e.setFlowState(ctx, domain.FlowWaiting); err != nil {
				return e.flowState, err
			}
		}
		if err := e.awaitEvent(ctx); err != nil {
			return e.flowState, err
		}
	}
}

// finishRevert завершает режим отката.
func (e *Engine) finishRevert(ctx context.Context) (domain.FlowState, error) {
	final := domain.FlowFailure
	if e.requested {
		final = domain.FlowReverted
	}
	if err := e.setFlowState(ctx, final); err != nil {
		return e.flowState, err
	}
	telemetry.FlowsCompleted.WithLabelValues(string(final)).Inc()

	if final == domain.FlowFailure {
		e.logger.Warn("flow failed, compensation complete", "cause", e.rootFailure)
		// Типизированный nil в интерфейсе error выглядел бы как ошибка
		if e.rootFailure == nil {
			return final, ErrMissingFailure
		}
		return final, e.rootFailure
	}
	e.logger.Info("flow rolled back")
	return final, nil
}

// dispatchFrontiers передаёт планировщику оба фронтира: исполняемый
// (вне режима отката) и откатываемый.
func (e *Engine) dispatchFrontiers(ctx context.Context) (int, error) {
	var reqs []scheduler.Request

	if !e.reverting {
		for _, node := range e.an.ExecutableFrontier(e.mirror) {
			inputs, err := e.bind(ctx, node)
			if err != nil {
				return 0, err
			}
			if err := e.transition(ctx, node.Name, domain.StateScheduled, nil); err != nil {
				return 0, err
			}
			req := scheduler.Request{Atom: node.Name, Op: scheduler.OpExecute, Inputs: inputs}
			if node.Task != nil {
				req.Execute = node.Task.Execute()
				req.Revert = node.Task.Revert()
			}
			reqs = append(reqs, req)
		}
	}

	for _, node := range e.an.RevertibleFrontier(e.mirror) {
		// Результаты поставщиков ещё на месте: предшественники
		// откатываются строго после зависимых
		inputs, err := e.bind(ctx, node)
		if err != nil {
			return 0, err
		}
		if err := e.transition(ctx, node.Name, domain.StateReverting, nil); err != nil {
			return 0, err
		}
		req := scheduler.Request{Atom: node.Name, Op: scheduler.OpRevert, Inputs: inputs}
		if node.Task != nil {
			req.Revert = node.Task.Revert()
		}
		reqs = append(reqs, req)
	}

	if len(reqs) == 0 {
		return 0, nil
	}
	if err := e.sched.Dispatch(ctx, reqs); err != nil {
		return 0, fmt.Errorf("dispatch: %w", err)
	}
	e.inFlight += len(reqs)
	return len(reqs), nil
}

// awaitEvent блокируется до первого события, затем неблокирующе
// выбирает накопившиеся.
func (e *Engine) awaitEvent(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case ev := <-e.sched.Completions():
		if err := e.apply(ctx, ev); err != nil {
			return err
		}
	}

	for {
		select {
		case ev := <-e.sched.Completions():
			if err := e.apply(ctx, ev); err != nil {
				return err
			}
		default:
			return nil
		}
	}
}

// apply применяет одно событие планировщика. События, не согласующиеся
// с текущим состоянием (дубли, переупорядоченная доставка), молча
// отбрасываются.
func (e *Engine) apply(ctx context.Context, ev scheduler.Event) error {
	node := e.graph.Node(ev.Atom)
	if node == nil {
		e.logger.Warn("event for unknown atom", "atom", ev.Atom)
		return nil
	}

	switch {
	case ev.Type == scheduler.EventStarted && ev.Op == scheduler.OpExecute:
		return e.applyStarted(ctx, node)
	case ev.Type == scheduler.EventCompleted && ev.Op == scheduler.OpExecute:
		return e.applyExecuted(ctx, node, ev.Outcome)
	case ev.Type == scheduler.EventCompleted && ev.Op == scheduler.OpRevert:
		return e.applyReverted(ctx, node, ev.Outcome)
	}
	return nil
}

func (e *Engine) applyStarted(ctx context.Context, node *compiler.Node) error {
	if e.mirror.State(node.Name) != domain.StateScheduled {
		return nil
	}
	if _, err := e.st.RecordAttempt(ctx, node.Name); err != nil {
		return fmt.Errorf("record attempt of %s: %w", node.Name, err)
	}
	if err := e.transition(ctx, node.Name, domain.StateRunning, nil); err != nil {
		return err
	}
	e.startedAt[node.Name] = time.Now()
	telemetry.AtomsInFlight.Inc()
	return nil
}

func (e *Engine) applyExecuted(ctx context.Context, node *compiler.Node, outcome scheduler.Outcome) error {
	state := e.mirror.State(node.Name)
	if state != domain.StateScheduled && state != domain.StateRunning {
		return nil
	}

	// Событие started потерялось (remote-доставка) — догоняем
	if state == domain.StateScheduled {
		if err := e.applyStarted(ctx, node); err != nil {
			return err
		}
	}

	e.inFlight--
	telemetry.AtomsInFlight.Dec()
	if started, ok := e.startedAt[node.Name]; ok {
		telemetry.AtomDuration.Observe(time.Since(started).Seconds())
		delete(e.startedAt, node.Name)
	}

	if outcome.Failure == nil {
		if err := e.st.SaveResult(ctx, node.Name, outcome.Result); err != nil {
			return fmt.Errorf("save result of %s: %w", node.Name, err)
		}
		if err := e.transition(ctx, node.Name, domain.StateSuccess, nil); err != nil {
			return err
		}
		telemetry.AtomsExecuted.Inc()

		// Поздний успех в откатываемой области компенсируется
		if e.reverting || e.absorbingOwner(node) != nil {
			return e.setIntention(ctx, node.Name, domain.IntentionRevert)
		}
		return nil
	}

	if err := e.st.SaveFailure(ctx, node.Name, outcome.Failure); err != nil {
		return fmt.Errorf("save failure of %s: %w", node.Name, err)
	}
	if err := e.transition(ctx, node.Name, domain.StateFailure, outcome.Failure); err != nil {
		return err
	}
	telemetry.AtomsFailed.Inc()
	e.logger.Warn("atom failed", "atom", node.Name, "error", outcome.Failure)

	if e.reverting || e.absorbingOwner(node) != nil {
		return e.setIntention(ctx, node.Name, domain.IntentionRevert)
	}
	return e.handleFailure(ctx, node, outcome.Failure)
}

func (e *Engine) applyReverted(ctx context.Context, node *compiler.Node, outcome scheduler.Outcome) error {
	if e.mirror.State(node.Name) != domain.StateReverting {
		return nil
	}
	e.inFlight--

	if outcome.Failure != nil {
		if err := e.st.SaveFailure(ctx, node.Name, outcome.Failure); err != nil {
			return fmt.Errorf("save failure of %s: %w", node.Name, err)
		}
		if err := e.transition(ctx, node.Name, domain.StateFailure, outcome.Failure); err != nil {
			return err
		}
		e.fatal = fmt.Errorf("%w: %s: %s", ErrRevertFailed, node.Name, outcome.Failure.Message)
		e.logger.Error("revert failed", "atom", node.Name, "error", outcome.Failure)
		return nil
	}

	if err := e.transition(ctx, node.Name, domain.StateReverted, nil); err != nil {
		return err
	}
	telemetry.AtomsReverted.Inc()

	// Атом откатной области retry готовится к повторному выполнению
	if r := e.absorbingOwner(node); r != nil {
		if err := e.transition(ctx, node.Name, domain.StatePending, nil); err != nil {
			return err
		}
		if err := e.setIntention(ctx, node.Name, domain.IntentionExecute); err != nil {
			return err
		}
		if err := e.st.SaveFailure(ctx, node.Name, nil); err != nil {
			return fmt.Errorf("clear failure of %s: %w", node.Name, err)
		}
		return e.maybeFinishRetry(ctx, r)
	}
	return nil
}

// handleFailure решает судьбу непоглощённой ошибки: ближайший
// retry-контроллер либо поглощает её, либо ошибка распространяется
// на весь поток.
func (e *Engine) handleFailure(ctx context.Context, node *compiler.Node, failure *domain.Failure) error {
	if retry := e.an.AbsorbingRetry(node); retry != nil {
		attempts, err := e.st.Attempts(ctx, node.Name)
		if err != nil {
			return fmt.Errorf("load attempts of %s: %w", node.Name, err)
		}
		if retry.Retry.Policy().Retries(attempts, failure) {
			return e.absorb(ctx, retry, node)
		}
		e.logger.Warn("retry budget exhausted", "retry", retry.Name, "atom", node.Name, "attempts", attempts)
	}
	return e.propagate(ctx, node, failure)
}

// absorb переводит retry-контроллер в RETRYING и помечает его область
// на откат; после отката область будет выполнена заново.
func (e *Engine) absorb(ctx context.Context, retry, failed *compiler.Node) error {
	if _, err := e.st.RecordAttempt(ctx, retry.Name); err != nil {
		return fmt.Errorf("record attempt of %s: %w", retry.Name, err)
	}
	if err := e.transition(ctx, retry.Name, domain.StateRetrying, nil); err != nil {
		return err
	}
	telemetry.RetriesAbsorbed.Inc()
	e.absorbing[retry.Name] = retry

	for _, n := range e.graph.ScopeNodes(retry) {
		switch e.mirror.State(n.Name) {
		case domain.StateSuccess, domain.StateFailure:
			if err := e.setIntention(ctx, n.Name, domain.IntentionRevert); err != nil {
				return err
			}
		}
	}

	e.logger.Info("failure absorbed by retry", "retry", retry.Name, "atom", failed.Name)
	return nil
}

// maybeFinishRetry завершает итерацию retry-контроллера, когда вся его
// область вернулась в PENDING/EXECUTE, и открывает её для повторного
// выполнения.
func (e *Engine) maybeFinishRetry(ctx context.Context, retry *compiler.Node) error {
	for _, n := range e.graph.ScopeNodes(retry) {
		if e.mirror.State(n.Name) != domain.StatePending {
			return nil
		}
		if e.mirror.Intention(n.Name) != domain.IntentionExecute {
			return nil
		}
	}
	delete(e.absorbing, retry.Name)
	e.logger.Info("retry scope reset", "retry", retry.Name)
	return e.transition(ctx, retry.Name, domain.StateSuccess, nil)
}

// propagate переводит движок в режим глобального отката: всё успевшее
// выполниться помечается на компенсацию, недостижимые атомы — IGNORED.
func (e *Engine) propagate(ctx context.Context, failed *compiler.Node, failure *domain.Failure) error {
	e.reverting = true
	if e.rootFailure == nil {
		e.rootFailure = failure
	}
	e.logger.Warn("failure propagates to flow", "atom", failed.Name)

	for _, node := range e.graph.Nodes() {
		switch e.mirror.State(node.Name) {
		case domain.StateSuccess, domain.StateFailure:
			if err := e.setIntention(ctx, node.Name, domain.IntentionRevert); err != nil {
				return err
			}
		}
	}

	for _, node := range e.an.Unreachable(e.mirror, failed) {
		if err := e.setIntention(ctx, node.Name, domain.IntentionIgnore); err != nil {
			return err
		}
		if err := e.transition(ctx, node.Name, domain.StateIgnored, nil); err != nil {
			return err
		}
	}
	return nil
}

// bind собирает входы атома по таблице связывания графа: для каждого
// требуемого символа берётся сохранённый результат атома-поставщика.
func (e *Engine) bind(ctx context.Context, node *compiler.Node) (map[string]any, error) {
	bindings := e.graph.Bindings(node.Name)
	if len(bindings) == 0 {
		return nil, nil
	}

	inputs := make(map[string]any, len(bindings))
	for symbol, provider := range bindings {
		result, err := e.st.Result(ctx, provider)
		if err != nil {
			return nil, fmt.Errorf("bind %s for %s: %w", symbol, node.Name, err)
		}
		value, ok := result[symbol]
		if !ok {
			return nil, fmt.Errorf("%w: %s from %s", ErrMissingResult, symbol, provider)
		}
		inputs[symbol] = value
	}
	return inputs, nil
}

// transition переводит атом в состояние to: сперва storage, затем
// зеркало. Переход в то же состояние — no-op, запрещённый — ошибка.
func (e *Engine) transition(ctx context.Context, name string, to domain.AtomState, failure *domain.Failure) error {
	from := e.mirror.State(name)
	ok, err := domain.CheckAtomTransition(from, to)
	if err != nil {
		return fmt.Errorf("atom %s: %w", name, err)
	}
	if !ok {
		return nil
	}

	if err := e.st.SetAtomState(ctx, name, to); err != nil {
		return fmt.Errorf("set state of %s: %w", name, err)
	}
	e.mirror.setState(name, to)
	e.atomNotifier.Notify(notify.Transition{
		Atom:    name,
		From:    string(from),
		To:      string(to),
		Failure: failure,
	})
	return nil
}

// setIntention записывает намерение атома: сперва storage, затем зеркало.
func (e *Engine) setIntention(ctx context.Context, name string, intention domain.Intention) error {
	if e.mirror.Intention(name) == intention {
		return nil
	}
	if err := e.st.SetIntention(ctx, name, intention); err != nil {
		return fmt.Errorf("set intention of %s: %w", name, err)
	}
	e.mirror.setIntention(name, intention)
	return nil
}

// setFlowState переводит поток в состояние to с проверкой по таблице
// переходов. Переход в то же состояние — no-op.
func (e *Engine) setFlowState(ctx context.Context, to domain.FlowState) error {
	ok, err := domain.CheckFlowTransition(e.flowState, to)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	if err := e.st.SaveFlowState(ctx, to); err != nil {
		return fmt.Errorf("save flow state: %w", err)
	}
	from := e.flowState
	e.fsMu.Lock()
	e.flowState = to
	e.fsMu.Unlock()
	e.flowNotifier.Notify(notify.Transition{From: string(from), To: string(to)})
	return nil
}

// absorbingOwner возвращает поглощающий retry-контроллер, в область
// которого входит узел (nil — узел вне активных областей).
func (e *Engine) absorbingOwner(node *compiler.Node) *compiler.Node {
	for _, retry := range e.absorbing {
		if node.InScope(retry) {
			return retry
		}
	}
	return nil
}

// stallError собирает диагностику: какие атомы застряли в PENDING.
func (e *Engine) stallError() error {
	var stuck []string
	for _, node := range e.graph.Nodes() {
		if e.mirror.State(node.Name) == domain.StatePending {
			stuck = append(stuck, node.Name)
		}
	}
	return fmt.Errorf("%w: pending atoms: %s", ErrStalled, strings.Join(stuck, ", "))
}

// CompileAndRun — удобная обёртка: компилирует поток и выполняет его
// на свежем in-memory storage с serial-планировщиком.
func CompileAndRun(ctx context.Context, f *flow.Flow) (domain.FlowState, error) {
	graph, err := compiler.Compile(f)
	if err != nil {
		return domain.FlowPending, err
	}
	sched := scheduler.NewSerial()
	defer sched.Stop()

	eng, err := New(Config{
		Graph:     graph,
		Storage:   storage.NewMemory(),
		Scheduler: sched,
	})
	if err != nil {
		return domain.FlowPending, err
	}
	return eng.Run(ctx)
}
