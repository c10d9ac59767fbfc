package compiler

import (
	"errors"
	"strings"
)

// Ошибки компиляции. Все они фатальны и возвращаются до начала
// какого-либо выполнения.
var (
	// ErrMissingDependency — требуемый символ или адресат ребра
	// не имеет поставщика в видимой области.
	ErrMissingDependency = errors.New("missing dependency")

	// ErrDuplicateAtomName — несколько атомов с одним именем
	// в сплющенном графе.
	ErrDuplicateAtomName = errors.New("duplicate atom name")

	// ErrCyclicDependency — обнаружен цикл после вставки всех рёбер.
	ErrCyclicDependency = errors.New("cyclic dependency detected")

	// ErrEdgeOutsideGraph — явное ребро объявлено в композиции,
	// не являющейся KindGraph.
	ErrEdgeOutsideGraph = errors.New("explicit edge outside graph composition")

	// ErrEmptyAtomName — атом без имени.
	ErrEmptyAtomName = errors.New("atom has empty name")

	// ErrUnknownComposition — flow с неизвестным видом композиции.
	ErrUnknownComposition = errors.New("unknown composition kind")
)

// CompileError — ошибка компиляции с контекстом.
type CompileError struct {
	Atom    string // имя атома, где произошла ошибка (может быть пустым)
	Message string
	Err     error
}

// Error реализует интерфейс error.
func (e *CompileError) Error() string {
	if e.Atom != "" {
		return "atom " + e.Atom + ": " + e.Message
	}
	return e.Message
}

// Unwrap возвращает базовую ошибку.
func (e *CompileError) Unwrap() error {
	return e.Err
}

func newCompileError(atom, message string, err error) *CompileError {
	return &CompileError{Atom: atom, Message: message, Err: err}
}

// CycleError — ошибка цикла с именами атомов на цикле.
type CycleError struct {
	Atoms []string
}

// Error реализует интерфейс error.
func (e *CycleError) Error() string {
	return "cyclic dependency between atoms: " + strings.Join(e.Atoms, ", ")
}

// Unwrap возвращает ErrCyclicDependency.
func (e *CycleError) Unwrap() error {
	return ErrCyclicDependency
}
