package engine

import "errors"

// Ошибки движка.
var (
	// ErrGraphMismatch — сигнатура свежескомпилированного графа не
	// совпадает с сохранённой в storage: состояние принадлежит другой
	// структуре потока и возобновление небезопасно.
	ErrGraphMismatch = errors.New("graph signature mismatch")

	// ErrStalled — движку нечего диспетчеризовать, атомов в полёте нет,
	// но поток не завершён. Указывает на рассогласованное состояние в
	// storage.
	ErrStalled = errors.New("engine stalled")

	// ErrMissingResult — атом-поставщик завершился, но требуемого
	// символа в его результате нет.
	ErrMissingResult = errors.New("provider result missing required symbol")

	// ErrRevertFailed — компенсирующий откат атома завершился ошибкой.
	// Фатально: состояние внешних систем неизвестно, откат останавливается.
	ErrRevertFailed = errors.New("revert failed")

	// ErrMissingFailure — поток завершился откатом, но исходная ошибка
	// не была восстановлена из storage.
	ErrMissingFailure = errors.New("originating failure not recorded")
)
