package storage

import (
	"context"
	"sync"
	"time"

	"github.com/shaiso/Atomika/internal/domain"
)

// Memory — эталонный in-memory бэкенд.
//
// Используется как тестовый дублёр и для одноразовых прогонов,
// которым не нужна переживаемость процесса. Контракт линеаризуемости
// обеспечивается одним мьютексом на весь набор записей.
type Memory struct {
	mu       sync.RWMutex
	records  map[string]*memRecord
	flow     domain.FlowState
	graphSig string
	version  int64
}

type memRecord struct {
	record   Record
	result   map[string]any
	hasRes   bool
	failure  *domain.Failure
}

// NewMemory создаёт пустой in-memory storage.
func NewMemory() *Memory {
	return &Memory{
		records: make(map[string]*memRecord),
		flow:    domain.FlowPending,
	}
}

func (m *Memory) get(name string) (*memRecord, error) {
	r, ok := m.records[name]
	if !ok {
		return nil, ErrNotFound
	}
	return r, nil
}

func (m *Memory) touch(r *memRecord) {
	m.version++
	r.record.Version = m.version
	r.record.UpdatedAt = time.Now()
}

// EnsureAtom создаёт запись атома, если её ещё нет.
func (m *Memory) EnsureAtom(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.records[name]; ok {
		return nil
	}
	r := &memRecord{
		record: Record{
			Name:      name,
			State:     domain.StatePending,
			Intention: domain.IntentionExecute,
		},
	}
	m.touch(r)
	m.records[name] = r
	return nil
}

// AtomState возвращает состояние атома.
func (m *Memory) AtomState(_ context.Context, name string) (domain.AtomState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, err := m.get(name)
	if err != nil {
		return "", err
	}
	return r.record.State, nil
}

// SetAtomState записывает состояние атома.
func (m *Memory) SetAtomState(_ context.Context, name string, state domain.AtomState) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, err := m.get(name)
	if err != nil {
		return err
	}
	r.record.State = state
	m.touch(r)
	return nil
}

// Intention возвращает намерение атома.
func (m *Memory) Intention(_ context.Context, name string) (domain.Intention, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, err := m.get(name)
	if err != nil {
		return "", err
	}
	return r.record.Intention, nil
}

// SetIntention записывает намерение атома.
func (m *Memory) SetIntention(_ context.Context, name string, intention domain.Intention) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, err := m.get(name)
	if err != nil {
		return err
	}
	r.record.Intention = intention
	m.touch(r)
	return nil
}

// SaveResult сохраняет результат выполнения атома.
func (m *Memory) SaveResult(_ context.Context, name string, value map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, err := m.get(name)
	if err != nil {
		return err
	}
	r.result = value
	r.hasRes = true
	m.touch(r)
	return nil
}

// Result возвращает сохранённый результат.
func (m *Memory) Result(_ context.Context, name string) (map[string]any, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, err := m.get(name)
	if err != nil {
		return nil, err
	}
	if !r.hasRes {
		return nil, ErrNotFound
	}
	return r.result, nil
}

// SaveFailure сохраняет (или при nil очищает) ошибку атома.
func (m *Memory) SaveFailure(_ context.Context, name string, failure *domain.Failure) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, err := m.get(name)
	if err != nil {
		return err
	}
	r.failure = failure
	m.touch(r)
	return nil
}

// Failure возвращает сохранённую ошибку атома.
func (m *Memory) Failure(_ context.Context, name string) (*domain.Failure, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, err := m.get(name)
	if err != nil {
		return nil, err
	}
	if r.failure == nil {
		return nil, ErrNotFound
	}
	return r.failure, nil
}

// RecordAttempt увеличивает счётчик попыток.
func (m *Memory) RecordAttempt(_ context.Context, name string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, err := m.get(name)
	if err != nil {
		return 0, err
	}
	r.record.Attempts++
	m.touch(r)
	return r.record.Attempts, nil
}

// Attempts возвращает число зафиксированных попыток.
func (m *Memory) Attempts(_ context.Context, name string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, err := m.get(name)
	if err != nil {
		return 0, err
	}
	return r.record.Attempts, nil
}

// Snapshot перечисляет все атомы с их состояниями.
func (m *Memory) Snapshot(_ context.Context) (map[string]domain.AtomState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap := make(map[string]domain.AtomState, len(m.records))
	for name, r := range m.records {
		snap[name] = r.record.State
	}
	return snap, nil
}

// SaveGraphSignature сохраняет сигнатуру графа.
func (m *Memory) SaveGraphSignature(_ context.Context, signature string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.graphSig = signature
	return nil
}

// GraphSignature возвращает сохранённую сигнатуру.
func (m *Memory) GraphSignature(_ context.Context) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.graphSig, nil
}

// SaveFlowState записывает состояние flow.
func (m *Memory) SaveFlowState(_ context.Context, state domain.FlowState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.flow = state
	return nil
}

// FlowState возвращает состояние flow.
func (m *Memory) FlowState(_ context.Context) (domain.FlowState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.flow, nil
}
