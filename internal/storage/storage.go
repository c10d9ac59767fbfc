package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Atomika/internal/domain"
)

// Ошибки storage.
var (
	// ErrNotFound — атом или результат не найден.
	ErrNotFound = errors.New("not found")

	// ErrUnknownBackend — неизвестный вид бэкенда.
	ErrUnknownBackend = errors.New("unknown storage backend")
)

// Record — персистентная запись атома.
type Record struct {
	Name      string
	State     domain.AtomState
	Intention domain.Intention
	Attempts  int

	// Version — монотонный счётчик записи. Обновления одной записи
	// линеаризуемы: побеждает последняя запись.
	Version int64

	UpdatedAt time.Time
}

// Storage — интерфейс долговременного хранения состояния одного flow.
//
// Все операции ключуются именем атома. Обновления разных атомов могут
// идти конкурентно; обновления одного атома должны быть линеаризуемы.
// Для любого не-memory бэкенда операции durable-on-return.
type Storage interface {
	// EnsureAtom создаёт запись атома (PENDING, EXECUTE), если её ещё нет.
	EnsureAtom(ctx context.Context, name string) error

	// AtomState возвращает состояние атома.
	AtomState(ctx context.Context, name string) (domain.AtomState, error)

	// SetAtomState записывает состояние атома.
	SetAtomState(ctx context.Context, name string, state domain.AtomState) error

	// Intention возвращает намерение атома.
	Intention(ctx context.Context, name string) (domain.Intention, error)

	// SetIntention записывает намерение атома.
	SetIntention(ctx context.Context, name string, intention domain.Intention) error

	// SaveResult сохраняет результат успешного выполнения.
	SaveResult(ctx context.Context, name string, value map[string]any) error

	// Result возвращает сохранённый результат (ErrNotFound, если его нет).
	Result(ctx context.Context, name string) (map[string]any, error)

	// SaveFailure сохраняет зафиксированную ошибку атома.
	// nil очищает запись об ошибке (сброс перед повтором).
	SaveFailure(ctx context.Context, name string, failure *domain.Failure) error

	// Failure возвращает сохранённую ошибку (ErrNotFound, если её нет).
	Failure(ctx context.Context, name string) (*domain.Failure, error)

	// RecordAttempt увеличивает счётчик попыток и возвращает новое значение.
	RecordAttempt(ctx context.Context, name string) (int, error)

	// Attempts возвращает число зафиксированных попыток.
	Attempts(ctx context.Context, name string) (int, error)

	// Snapshot перечисляет все атомы с их текущими состояниями.
	// Используется при возобновлении и для диагностики stall.
	Snapshot(ctx context.Context) (map[string]domain.AtomState, error)

	// SaveGraphSignature сохраняет сигнатуру скомпилированного графа.
	SaveGraphSignature(ctx context.Context, signature string) error

	// GraphSignature возвращает сохранённую сигнатуру ("" — не сохранялась).
	GraphSignature(ctx context.Context) (string, error)

	// SaveFlowState записывает состояние flow в целом.
	SaveFlowState(ctx context.Context, state domain.FlowState) error

	// FlowState возвращает состояние flow (FlowPending, если не сохранялось).
	FlowState(ctx context.Context) (domain.FlowState, error)
}

// Kind — вид бэкенда.
type Kind string

const (
	// KindMemory — эталонный in-memory бэкенд (тестовый дублёр).
	KindMemory Kind = "memory"

	// KindPostgres — бэкенд на PostgreSQL.
	KindPostgres Kind = "postgres"
)

// Config — конфигурация для Open.
type Config struct {
	// Kind — вид бэкенда.
	Kind Kind

	// FlowID — идентификатор flow, областью которого ключуются записи.
	// Обязателен для KindPostgres.
	FlowID uuid.UUID

	// DSN — строка подключения (только KindPostgres).
	DSN string
}

// Open создаёт storage по конфигурации. Неизвестный Kind отвергается
// здесь, до первого использования.
func Open(ctx context.Context, cfg Config) (Storage, error) {
	switch cfg.Kind {
	case KindMemory:
		return NewMemory(), nil
	case KindPostgres:
		pool, err := NewPool(ctx, cfg.DSN)
		if err != nil {
			return nil, err
		}
		return NewPostgres(pool, cfg.FlowID), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Kind)
	}
}
