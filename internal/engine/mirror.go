package engine

import (
	"sync"

	"github.com/shaiso/Atomika/internal/domain"
)

// mirror — in-memory зеркало состояния атомов. Движок пишет сперва в
// storage, затем сюда, поэтому зеркало никогда не впереди storage.
// Реализует analyzer.View.
type mirror struct {
	mu         sync.RWMutex
	states     map[string]domain.AtomState
	intentions map[string]domain.Intention
}

func newMirror() *mirror {
	return &mirror{
		states:     make(map[string]domain.AtomState),
		intentions: make(map[string]domain.Intention),
	}
}

func (m *mirror) init(name string, state domain.AtomState, intention domain.Intention) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[name] = state
	m.intentions[name] = intention
}

// State возвращает состояние атома (PENDING для неизвестного).
func (m *mirror) State(name string) domain.AtomState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if s, ok := m.states[name]; ok {
		return s
	}
	return domain.StatePending
}

// Intention возвращает намерение атома (EXECUTE для неизвестного).
func (m *mirror) Intention(name string) domain.Intention {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if i, ok := m.intentions[name]; ok {
		return i
	}
	return domain.IntentionExecute
}

func (m *mirror) setState(name string, state domain.AtomState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[name] = state
}

func (m *mirror) setIntention(name string, intention domain.Intention) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.intentions[name] = intention
}

// counts возвращает количество атомов в каждом состоянии.
func (m *mirror) counts() map[domain.AtomState]int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[domain.AtomState]int)
	for _, s := range m.states {
		out[s]++
	}
	return out
}
