package analyzer

import (
	"github.com/shaiso/Atomika/internal/compiler"
	"github.com/shaiso/Atomika/internal/domain"
)

// View — снимок состояния выполнения, по которому работает анализатор.
// Движок реализует View собственным in-memory зеркалом storage.
type View interface {
	State(name string) domain.AtomState
	Intention(name string) domain.Intention
}

// Analyzer вычисляет фронтиры по неизменяемому графу выполнения.
type Analyzer struct {
	graph *compiler.Graph
}

// New создаёт Analyzer для графа.
func New(graph *compiler.Graph) *Analyzer {
	return &Analyzer{graph: graph}
}

// ExecutableFrontier возвращает атомы, готовые к выполнению:
// состояние PENDING, намерение EXECUTE, все предшественники в SUCCESS.
// Порядок результата — топологический, с tie-break по порядку объявления.
func (a *Analyzer) ExecutableFrontier(v View) []*compiler.Node {
	var frontier []*compiler.Node

	for _, node := range a.graph.Order() {
		if v.State(node.Name) != domain.StatePending {
			continue
		}
		if v.Intention(node.Name) != domain.IntentionExecute {
			continue
		}
		if a.predecessorsDone(v, node) {
			frontier = append(frontier, node)
		}
	}
	return frontier
}

// RevertibleFrontier возвращает атомы, готовые к откату: состояние
// SUCCESS или FAILURE, намерение REVERT, все зависимые уже откачены,
// проигнорированы или так и не стартовали. Порядок — обратный
// топологический, то есть строгая инверсия порядка выполнения.
func (a *Analyzer) RevertibleFrontier(v View) []*compiler.Node {
	var frontier []*compiler.Node

	order := a.graph.Order()
	for i := len(order) - 1; i >= 0; i-- {
		node := order[i]

		state := v.State(node.Name)
		if state != domain.StateSuccess && state != domain.StateFailure {
			continue
		}
		if v.Intention(node.Name) != domain.IntentionRevert {
			continue
		}
		if a.dependentsSettled(v, node) {
			frontier = append(frontier, node)
		}
	}
	return frontier
}

// Unreachable возвращает атомы, путь к выполнению которых потерян из-за
// ошибки атома failed: все транзитивные зависимые в состоянии PENDING.
// Ни один предшественник такого атома уже не достигнет SUCCESS, поэтому
// он помечается IGNORED, а не остаётся PENDING навсегда.
func (a *Analyzer) Unreachable(v View, failed *compiler.Node) []*compiler.Node {
	seen := map[string]bool{failed.Name: true}
	queue := append([]*compiler.Node(nil), failed.Dependents...)

	var unreachable []*compiler.Node
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		if seen[node.Name] {
			continue
		}
		seen[node.Name] = true

		if v.State(node.Name) == domain.StatePending {
			unreachable = append(unreachable, node)
		}
		queue = append(queue, node.Dependents...)
	}
	return unreachable
}

// AbsorbingRetry возвращает retry-контроллер, поглощающий ошибку узла
// (nil — ошибка не поглощается и распространяется на весь flow).
func (a *Analyzer) AbsorbingRetry(node *compiler.Node) *compiler.Node {
	return node.Owner
}

// Complete возвращает true, когда каждый атом достиг SUCCESS.
func (a *Analyzer) Complete(v View) bool {
	for _, node := range a.graph.Nodes() {
		if v.State(node.Name) != domain.StateSuccess {
			return false
		}
	}
	return true
}

// RevertComplete возвращает true, когда откатывать больше нечего:
// ни один атом не остаётся в SUCCESS/FAILURE с намерением REVERT
// и ни один не находится в процессе отката.
func (a *Analyzer) RevertComplete(v View) bool {
	for _, node := range a.graph.Nodes() {
		switch v.State(node.Name) {
		case domain.StateReverting, domain.StateRetrying:
			return false
		case domain.StateSuccess, domain.StateFailure:
			if v.Intention(node.Name) == domain.IntentionRevert {
				return false
			}
		}
	}
	return true
}

// predecessorsDone проверяет, что все предшественники узла в SUCCESS.
func (a *Analyzer) predecessorsDone(v View, node *compiler.Node) bool {
	for _, dep := range node.DependsOn {
		if v.State(dep.Name) != domain.StateSuccess {
			return false
		}
	}
	return true
}

// dependentsSettled проверяет, что ни один зависимый узел не запускался
// либо уже откачен/проигнорирован.
func (a *Analyzer) dependentsSettled(v View, node *compiler.Node) bool {
	for _, dep := range node.Dependents {
		switch v.State(dep.Name) {
		case domain.StateReverted, domain.StateIgnored, domain.StatePending:
		default:
			return false
		}
	}
	return true
}
