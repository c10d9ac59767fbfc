package flow

import (
	"context"
)

// ExecuteFunc — функция выполнения атома.
// inputs содержит значения требуемых символов, связанные компилятором
// с результатами атомов-поставщиков. Возвращает map предоставляемых
// символов или ошибку.
type ExecuteFunc func(ctx context.Context, inputs map[string]any) (map[string]any, error)

// RevertFunc — компенсирующий откат ранее успешного атома.
// inputs — те же связанные входы, что и при выполнении.
type RevertFunc func(ctx context.Context, inputs map[string]any) error

// Member — элемент композиции: *Task, *Retry или *Flow.
type Member interface {
	member()
}

// Task — именованная единица работы.
type Task struct {
	name     string
	requires []string
	provides []string
	execute  ExecuteFunc
	revert   RevertFunc
}

// TaskConfig — конфигурация Task.
type TaskConfig struct {
	// Name — уникальное в пределах flow имя атома.
	Name string

	// Requires — упорядоченный список требуемых символов.
	Requires []string

	// Provides — упорядоченный список предоставляемых символов.
	Provides []string

	// Execute — функция выполнения. Для локальных планировщиков
	// обязательна; в remote-режиме выполнение делает worker по имени атома.
	Execute ExecuteFunc

	// Revert — компенсирующий откат (опционально).
	Revert RevertFunc
}

// NewTask создаёт Task.
func NewTask(cfg TaskConfig) *Task {
	return &Task{
		name:     cfg.Name,
		requires: append([]string(nil), cfg.Requires...),
		provides: append([]string(nil), cfg.Provides...),
		execute:  cfg.Execute,
		revert:   cfg.Revert,
	}
}

// Name возвращает имя атома.
func (t *Task) Name() string { return t.name }

// Requires возвращает требуемые символы.
func (t *Task) Requires() []string { return t.requires }

// Provides возвращает предоставляемые символы.
func (t *Task) Provides() []string { return t.provides }

// Execute возвращает функцию выполнения (может быть nil в remote-режиме).
func (t *Task) Execute() ExecuteFunc { return t.execute }

// Revert возвращает функцию отката (nil, если откат не определён).
func (t *Task) Revert() RevertFunc { return t.revert }

func (t *Task) member() {}

// RetryPolicy — политика повторов retry-контроллера.
type RetryPolicy struct {
	// MaxAttempts — общее число попыток выполнения дочернего подграфа
	// (включая первую). Значение <= 1 означает "без повторов".
	MaxAttempts int

	// RetryOn — предикат: повторять ли при данной ошибке.
	// nil — повторять при любой ошибке.
	RetryOn func(err error) bool
}

// Retries возвращает true, если политика разрешает повтор при ошибке err
// после attempts уже выполненных попыток.
func (p RetryPolicy) Retries(attempts int, err error) bool {
	if attempts >= p.MaxAttempts {
		return false
	}
	if p.RetryOn != nil && !p.RetryOn(err) {
		return false
	}
	return true
}

// Retry — контроллер повторов: владеет ограниченным дочерним подграфом
// и решает, повторять ли его при ошибке. Retry — граница распространения
// ошибок своих детей.
type Retry struct {
	name   string
	policy RetryPolicy
	child  *Flow
}

// RetryConfig — конфигурация Retry.
type RetryConfig struct {
	Name   string
	Policy RetryPolicy

	// Child — дочерний подграф, повторяемый как единое целое.
	Child *Flow
}

// NewRetry создаёт Retry.
func NewRetry(cfg RetryConfig) *Retry {
	return &Retry{
		name:   cfg.Name,
		policy: cfg.Policy,
		child:  cfg.Child,
	}
}

// Name возвращает имя контроллера.
func (r *Retry) Name() string { return r.name }

// Policy возвращает политику повторов.
func (r *Retry) Policy() RetryPolicy { return r.policy }

// Child возвращает дочерний подграф.
func (r *Retry) Child() *Flow { return r.child }

func (r *Retry) member() {}
