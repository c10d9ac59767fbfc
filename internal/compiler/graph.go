package compiler

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"

	"github.com/shaiso/Atomika/internal/flow"
)

// Node — узел графа выполнения.
type Node struct {
	// Name — уникальное имя атома в графе.
	Name string

	// Task — определение задачи (nil для retry-узла).
	Task *flow.Task

	// Retry — retry-контроллер (nil для task-узла).
	Retry *flow.Retry

	// Owner — ближайший retry-контроллер, владеющий этим узлом
	// (nil — узел вне retry-области).
	Owner *Node

	// DependsOn — узлы, от которых зависит этот узел.
	DependsOn []*Node

	// Dependents — узлы, которые зависят от этого узла.
	Dependents []*Node

	// InDegree — количество входящих рёбер.
	InDegree int

	// index — порядок объявления, фиксирует детерминированный tie-break.
	index int
}

// IsRetry возвращает true для узла retry-контроллера.
func (n *Node) IsRetry() bool {
	return n.Retry != nil
}

// Requires возвращает требуемые символы узла.
func (n *Node) Requires() []string {
	if n.Task != nil {
		return n.Task.Requires()
	}
	return nil
}

// Provides возвращает предоставляемые символы узла.
func (n *Node) Provides() []string {
	if n.Task != nil {
		return n.Task.Provides()
	}
	return nil
}

// Index возвращает порядковый номер объявления узла.
func (n *Node) Index() int {
	return n.index
}

// InScope возвращает true, если узел принадлежит области retry-контроллера
// owner (непосредственно или через вложенные retry).
func (n *Node) InScope(owner *Node) bool {
	for o := n.Owner; o != nil; o = o.Owner {
		if o == owner {
			return true
		}
	}
	return false
}

// Graph — сплющенный граф выполнения. Неизменяем после компиляции;
// безопасно разделяется между горутинами.
type Graph struct {
	nodes map[string]*Node

	// byIndex — узлы в порядке объявления.
	byIndex []*Node

	// order — топологический порядок (tie-break по порядку объявления).
	order []*Node

	// bindings — таблица разрешения символов:
	// имя атома → требуемый символ → имя атома-поставщика.
	bindings map[string]map[string]string

	signature string
}

// Node возвращает узел по имени (nil, если не найден).
func (g *Graph) Node(name string) *Node {
	return g.nodes[name]
}

// Nodes возвращает все узлы в порядке объявления.
func (g *Graph) Nodes() []*Node {
	return g.byIndex
}

// Order возвращает топологически отсортированный список узлов.
// Порядок детерминирован: равные по зависимостям узлы идут
// в порядке объявления.
func (g *Graph) Order() []*Node {
	return g.order
}

// Size возвращает количество узлов.
func (g *Graph) Size() int {
	return len(g.nodes)
}

// Bindings возвращает таблицу связывания входов атома:
// требуемый символ → имя атома-поставщика.
func (g *Graph) Bindings(name string) map[string]string {
	return g.bindings[name]
}

// Signature — детерминированная сигнатура структуры графа.
// Сохраняется в storage; при возобновлении движок сверяет сигнатуру
// свежескомпилированного графа с сохранённой.
func (g *Graph) Signature() string {
	return g.signature
}

// ScopeNodes возвращает узлы, принадлежащие области retry-контроллера,
// в порядке объявления.
func (g *Graph) ScopeNodes(retry *Node) []*Node {
	var scoped []*Node
	for _, n := range g.byIndex {
		if n != retry && n.InScope(retry) {
			scoped = append(scoped, n)
		}
	}
	return scoped
}

// topologicalSort выполняет сортировку Кана. Среди готовых узлов всегда
// выбирается узел с минимальным порядком объявления, поэтому результат
// детерминирован для структурно равных графов.
func (g *Graph) topologicalSort() error {
	inDegree := make(map[string]int, len(g.nodes))
	for name, node := range g.nodes {
		inDegree[name] = node.InDegree
	}

	ready := make([]*Node, 0, len(g.nodes))
	for _, node := range g.byIndex {
		if node.InDegree == 0 {
			ready = append(ready, node)
		}
	}

	order := make([]*Node, 0, len(g.nodes))
	for len(ready) > 0 {
		// Узел с минимальным index
		minAt := 0
		for i, node := range ready {
			if node.index < ready[minAt].index {
				minAt = i
			}
		}
		node := ready[minAt]
		ready = append(ready[:minAt], ready[minAt+1:]...)
		order = append(order, node)

		for _, dep := range node.Dependents {
			inDegree[dep.Name]--
			if inDegree[dep.Name] == 0 {
				ready = append(ready, dep)
			}
		}
	}

	if len(order) != len(g.nodes) {
		// Не обработанные узлы лежат на цикле
		var onCycle []string
		for _, node := range g.byIndex {
			if inDegree[node.Name] > 0 {
				onCycle = append(onCycle, node.Name)
			}
		}
		return &CycleError{Atoms: onCycle}
	}

	g.order = order
	return nil
}

// addEdge добавляет ребро from → to, избегая дубликатов.
func addEdge(from, to *Node) {
	if from == to {
		return
	}
	for _, dep := range to.DependsOn {
		if dep == from {
			return
		}
	}
	from.Dependents = append(from.Dependents, to)
	to.DependsOn = append(to.DependsOn, from)
	to.InDegree++
}

// computeSignature хеширует структуру графа: имена узлов, рёбра и
// таблицу связывания, в отсортированном порядке.
func (g *Graph) computeSignature() {
	h := sha256.New()

	names := make([]string, 0, len(g.nodes))
	for name := range g.nodes {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		node := g.nodes[name]
		h.Write([]byte("node:" + name + "\n"))

		edges := make([]string, 0, len(node.DependsOn))
		for _, dep := range node.DependsOn {
			edges = append(edges, dep.Name)
		}
		sort.Strings(edges)
		for _, e := range edges {
			h.Write([]byte("edge:" + e + "->" + name + "\n"))
		}

		if b := g.bindings[name]; b != nil {
			symbols := make([]string, 0, len(b))
			for s := range b {
				symbols = append(symbols, s)
			}
			sort.Strings(symbols)
			for _, s := range symbols {
				h.Write([]byte("bind:" + name + ":" + s + "=" + b[s] + "\n"))
			}
		}
	}

	g.signature = hex.EncodeToString(h.Sum(nil))
}
