// Package notify — подписки на переходы состояний.
//
// Движок держит два независимых нотификатора: для переходов атомов и
// для переходов всего потока. Подписка регистрируется на конкретное
// целевое состояние или на подстановку Any.
package notify

import (
	"sync"

	"github.com/shaiso/Atomika/internal/domain"
)

// Any подписывает на все переходы.
const Any = "*"

// Transition — одно изменение состояния.
type Transition struct {
	// Atom — имя атома (пусто для переходов потока).
	Atom string

	// From и To — состояния до и после.
	From string
	To   string

	// Failure — причина, если переход вызван ошибкой.
	Failure *domain.Failure
}

// Callback вызывается на зарегистрированный переход.
// Вызов синхронный, из горутины движка: долгие обработчики
// задерживают цикл выполнения.
type Callback func(t Transition)

type registration struct {
	id int
	cb Callback
}

// Notifier — реестр подписок на переходы.
// Нулевое значение готово к использованию.
type Notifier struct {
	mu     sync.RWMutex
	nextID int
	subs   map[string][]registration
}

// Register подписывает cb на переходы в состояние state (или Any).
// Возвращает идентификатор для Deregister.
func (n *Notifier) Register(state string, cb Callback) int {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.subs == nil {
		n.subs = make(map[string][]registration)
	}
	n.nextID++
	n.subs[state] = append(n.subs[state], registration{id: n.nextID, cb: cb})
	return n.nextID
}

// Deregister удаляет подписку по идентификатору.
// Неизвестный идентификатор — no-op.
func (n *Notifier) Deregister(id int) {
	n.mu.Lock()
	defer n.mu.Unlock()

	for state, regs := range n.subs {
		for i, reg := range regs {
			if reg.id == id {
				n.subs[state] = append(regs[:i:i], regs[i+1:]...)
				return
			}
		}
	}
}

// Notify вызывает подписки на t.To и подписки Any.
func (n *Notifier) Notify(t Transition) {
	n.mu.RLock()
	var cbs []Callback
	for _, reg := range n.subs[t.To] {
		cbs = append(cbs, reg.cb)
	}
	for _, reg := range n.subs[Any] {
		cbs = append(cbs, reg.cb)
	}
	n.mu.RUnlock()

	for _, cb := range cbs {
		cb(t)
	}
}
