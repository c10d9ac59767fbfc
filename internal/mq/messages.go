package mq

import (
	"time"

	"github.com/google/uuid"
)

// Типы сообщений.
const (
	// TypeDispatch — запрос на выполнение или откат атома.
	TypeDispatch = "atom.dispatch"

	// TypeStarted — воркер начал выполнение атома.
	TypeStarted = "atom.started"

	// TypeCompleted — воркер завершил выполнение атома.
	TypeCompleted = "atom.completed"
)

// Dispatch — тело запроса на выполнение атома.
//
// Функции атома по очереди не передаются: воркер находит исполнителя
// в своём реестре по имени атома.
type Dispatch struct {
	// FlowID — идентификатор запуска потока.
	FlowID uuid.UUID `json:"flow_id"`

	// Atom — имя атома.
	Atom string `json:"atom"`

	// Op — вид работы: "execute" или "revert".
	Op string `json:"op"`

	// Inputs — связанные входы атома.
	Inputs map[string]any `json:"inputs,omitempty"`

	// Attempt — номер попытки (для логов воркера).
	Attempt int `json:"attempt,omitempty"`

	// RequestedAt — время постановки запроса.
	RequestedAt time.Time `json:"requested_at"`
}

// Completion — тело события жизненного цикла атома.
type Completion struct {
	// FlowID — идентификатор запуска потока.
	FlowID uuid.UUID `json:"flow_id"`

	// Atom — имя атома.
	Atom string `json:"atom"`

	// Op — вид работы, к которой относится событие.
	Op string `json:"op"`

	// Worker — имя воркера, выполнившего работу.
	Worker string `json:"worker,omitempty"`

	// Result — результат успешного выполнения.
	Result map[string]any `json:"result,omitempty"`

	// Error — текст ошибки (пусто при успехе).
	Error string `json:"error,omitempty"`

	// FinishedAt — время завершения.
	FinishedAt time.Time `json:"finished_at,omitempty"`
}
