package worker

import (
	"fmt"
	"sync"

	"github.com/shaiso/Atomika/internal/flow"
)

// Executor — пара функций атома на стороне воркера.
type Executor struct {
	// Execute — функция выполнения (nil — структурный атом).
	Execute flow.ExecuteFunc

	// Revert — функция отката (nil — откат тривиален).
	Revert flow.RevertFunc
}

// Registry — реестр исполнителей по имени атома.
//
// Движок не передаёт код по проводу: воркер обязан знать все атомы
// потоков, которые он обслуживает.
type Registry struct {
	mu        sync.RWMutex
	executors map[string]Executor
}

// NewRegistry создаёт пустой реестр.
func NewRegistry() *Registry {
	return &Registry{executors: make(map[string]Executor)}
}

// Register добавляет исполнителя атома name.
func (r *Registry) Register(name string, ex Executor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.executors[name] = ex
}

// Get возвращает исполнителя атома name.
func (r *Registry) Get(name string) (Executor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ex, ok := r.executors[name]
	if !ok {
		return Executor{}, fmt.Errorf("%w: %s", ErrUnknownAtom, name)
	}
	return ex, nil
}

// Names возвращает имена зарегистрированных атомов.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.executors))
	for name := range r.executors {
		names = append(names, name)
	}
	return names
}
