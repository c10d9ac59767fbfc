package domain

import (
	"time"
)

// Failure — зафиксированная ошибка атома.
//
// Failure создаётся на границе атома: любая ошибка выполнения или отката
// перехватывается и превращается в Failure до того, как попадёт в
// state-машину. Сквозь run-loop ошибки атомов не пролетают.
type Failure struct {
	// Atom — имя атома, на котором произошла ошибка.
	Atom string `json:"atom"`

	// Message — текст ошибки.
	Message string `json:"message"`

	// At — момент фиксации.
	At time.Time `json:"at"`

	// cause — исходная ошибка. Не сериализуется: после рестарта
	// доступен только Message.
	cause error
}

// NewFailure создаёт Failure для атома из исходной ошибки.
func NewFailure(atom string, err error) *Failure {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return &Failure{
		Atom:    atom,
		Message: msg,
		At:      time.Now(),
		cause:   err,
	}
}

// Error реализует интерфейс error.
func (f *Failure) Error() string {
	return "atom " + f.Atom + ": " + f.Message
}

// Unwrap возвращает исходную ошибку (nil после восстановления из storage).
func (f *Failure) Unwrap() error {
	return f.cause
}
