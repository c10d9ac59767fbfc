package scheduler

import (
	"context"

	"github.com/shaiso/Atomika/internal/domain"
	"github.com/shaiso/Atomika/internal/flow"
)

// Op — вид запрошенной работы.
type Op string

const (
	// OpExecute — выполнить атом.
	OpExecute Op = "execute"

	// OpRevert — откатить атом.
	OpRevert Op = "revert"
)

// Request — запрос на выполнение или откат одного атома.
type Request struct {
	// Atom — имя атома.
	Atom string

	// Op — вид работы.
	Op Op

	// Inputs — связанные входы: требуемый символ → значение.
	Inputs map[string]any

	// Execute — функция выполнения (nil в remote-режиме: выполнение
	// делает удалённый worker по имени атома).
	Execute flow.ExecuteFunc

	// Revert — функция отката (nil — откат тривиален).
	Revert flow.RevertFunc
}

// EventType — вид события от планировщика.
type EventType string

const (
	// EventStarted — выполнение атома началось.
	EventStarted EventType = "started"

	// EventCompleted — выполнение атома завершилось.
	EventCompleted EventType = "completed"
)

// Outcome — исход завершённой работы: либо Result, либо Failure.
type Outcome struct {
	Result  map[string]any
	Failure *domain.Failure
}

// Event — событие жизненного цикла атома от планировщика.
type Event struct {
	Atom    string
	Op      Op
	Type    EventType
	Outcome Outcome
}

// Scheduler — контракт диспетчеризации.
//
// Dispatch не блокируется на выполнении самих атомов. Планировщик
// никогда не запускает атом с незавершёнными предшественниками — он
// получает от движка уже отфильтрованный фронтир.
type Scheduler interface {
	// Dispatch ставит пакет запросов в выполнение.
	Dispatch(ctx context.Context, batch []Request) error

	// Completions — поток событий. События завершения для атома,
	// которого движок не ждёт, применяются идемпотентно (игнорируются).
	Completions() <-chan Event

	// Stop останавливает планировщик, дожидаясь атомов в полёте.
	Stop()
}

// run выполняет один запрос и возвращает событие завершения.
// Ошибка перехватывается на границе атома и превращается в Failure.
func run(ctx context.Context, req Request) Event {
	ev := Event{Atom: req.Atom, Op: req.Op, Type: EventCompleted}

	switch req.Op {
	case OpRevert:
		if req.Revert != nil {
			if err := req.Revert(ctx, req.Inputs); err != nil {
				ev.Outcome.Failure = domain.NewFailure(req.Atom, err)
			}
		}
	default:
		if req.Execute == nil {
			// Структурный атом без пользовательского кода
			return ev
		}
		result, err := req.Execute(ctx, req.Inputs)
		if err != nil {
			ev.Outcome.Failure = domain.NewFailure(req.Atom, err)
			return ev
		}
		ev.Outcome.Result = result
	}
	return ev
}
