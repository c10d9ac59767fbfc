package compiler

import (
	"fmt"

	"github.com/shaiso/Atomika/internal/flow"
)

// Compile сплющивает композицию в граф выполнения.
//
// Алгоритм:
//  1. Рекурсивный обход в глубину: дети Linear получают последовательные
//     структурные рёбра в порядке объявления, дети Unordered — никаких,
//     дети Graph — явные рёбра, объявленные вызывающей стороной.
//  2. Второй проход добавляет рёбра данных: требуемый символ атома
//     связывается с ближайшим (самым внутренним по области видимости)
//     поставщиком этого символа.
//  3. Проверка цикла и построение детерминированного топологического
//     порядка.
//
// Compile — чистая функция: два вызова на структурно равных flow дают
// графы с одинаковыми множествами узлов, рёбер и одинаковой сигнатурой.
func Compile(f *flow.Flow) (*Graph, error) {
	c := &compilation{
		graph: &Graph{
			nodes:    make(map[string]*Node),
			bindings: make(map[string]map[string]string),
		},
	}

	root := newScope(nil)
	if _, err := c.flattenFlow(f, root, nil); err != nil {
		return nil, err
	}

	if err := c.bindSymbols(); err != nil {
		return nil, err
	}

	if err := c.graph.topologicalSort(); err != nil {
		return nil, err
	}

	c.graph.computeSignature()
	return c.graph, nil
}

// scope — область видимости символов одного уровня вложенности.
// Поставщик регистрируется в своей области и во всех объемлющих,
// поэтому поиск от внутренней области наружу находит самого
// "близкого" поставщика.
type scope struct {
	parent    *scope
	providers map[string][]*Node
}

func newScope(parent *scope) *scope {
	return &scope{parent: parent, providers: make(map[string][]*Node)}
}

// register регистрирует предоставляемые узлом символы в этой области
// и во всех объемлющих.
func (s *scope) register(node *Node) {
	for _, sym := range node.Provides() {
		for sc := s; sc != nil; sc = sc.parent {
			sc.providers[sym] = append(sc.providers[sym], node)
		}
	}
}

// resolve ищет поставщика символа, начиная с внутренней области.
// В пределах области побеждает раньше объявленный поставщик.
func (s *scope) resolve(sym string, self *Node) *Node {
	for sc := s; sc != nil; sc = sc.parent {
		for _, p := range sc.providers[sym] {
			if p != self {
				return p
			}
		}
	}
	return nil
}

// segment — входные и выходные узлы сплющенного фрагмента.
// Используется для сшивания фрагментов структурными рёбрами.
type segment struct {
	heads []*Node
	tails []*Node
}

func (s segment) empty() bool {
	return len(s.heads) == 0 && len(s.tails) == 0
}

type consumer struct {
	node  *Node
	scope *scope
}

type compilation struct {
	graph     *Graph
	consumers []consumer
	nextIndex int
}

// addNode создаёт узел и регистрирует его в графе.
func (c *compilation) addNode(name string, task *flow.Task, retry *flow.Retry, owner *Node) (*Node, error) {
	if name == "" {
		return nil, newCompileError("", "atom has empty name", ErrEmptyAtomName)
	}
	if _, exists := c.graph.nodes[name]; exists {
		return nil, newCompileError(name, "duplicate atom name in flattened graph", ErrDuplicateAtomName)
	}

	node := &Node{
		Name:  name,
		Task:  task,
		Retry: retry,
		Owner: owner,
		index: c.nextIndex,
	}
	c.nextIndex++
	c.graph.nodes[name] = node
	c.graph.byIndex = append(c.graph.byIndex, node)
	return node, nil
}

// flattenFlow сплющивает композицию в узлы и структурные рёбра.
func (c *compilation) flattenFlow(f *flow.Flow, parent *scope, owner *Node) (segment, error) {
	if f.Kind() != flow.KindGraph && len(f.Edges()) > 0 {
		return segment{}, newCompileError("", fmt.Sprintf("flow %q: explicit edges require graph composition", f.Name()), ErrEdgeOutsideGraph)
	}

	sc := newScope(parent)

	members := f.Members()
	segs := make([]segment, 0, len(members))
	names := make([]string, 0, len(members))

	for _, m := range members {
		seg, name, err := c.flattenMember(m, sc, owner)
		if err != nil {
			return segment{}, err
		}
		segs = append(segs, seg)
		names = append(names, name)
	}

	switch f.Kind() {
	case flow.KindLinear:
		return linkLinear(segs), nil
	case flow.KindUnordered:
		return linkUnordered(segs), nil
	case flow.KindGraph:
		return linkGraph(f, segs, names)
	default:
		return segment{}, newCompileError("", fmt.Sprintf("flow %q: unknown composition kind %q", f.Name(), f.Kind()), ErrUnknownComposition)
	}
}

// flattenMember сплющивает одного ребёнка композиции.
func (c *compilation) flattenMember(m flow.Member, sc *scope, owner *Node) (segment, string, error) {
	switch v := m.(type) {
	case *flow.Task:
		node, err := c.addNode(v.Name(), v, nil, owner)
		if err != nil {
			return segment{}, "", err
		}
		sc.register(node)
		if len(v.Requires()) > 0 {
			c.consumers = append(c.consumers, consumer{node: node, scope: sc})
		}
		return segment{heads: []*Node{node}, tails: []*Node{node}}, v.Name(), nil

	case *flow.Retry:
		node, err := c.addNode(v.Name(), nil, v, owner)
		if err != nil {
			return segment{}, "", err
		}

		// Дочерний подграф принадлежит области retry: его ошибки
		// поглощаются контроллером.
		child := segment{}
		if v.Child() != nil {
			child, err = c.flattenFlow(v.Child(), sc, node)
			if err != nil {
				return segment{}, "", err
			}
		}

		// Контроллер предшествует своим детям
		for _, head := range child.heads {
			addEdge(node, head)
		}

		tails := child.tails
		if len(tails) == 0 {
			tails = []*Node{node}
		}
		return segment{heads: []*Node{node}, tails: tails}, v.Name(), nil

	case *flow.Flow:
		seg, err := c.flattenFlow(v, sc, owner)
		if err != nil {
			return segment{}, "", err
		}
		return seg, v.Name(), nil

	default:
		return segment{}, "", newCompileError("", fmt.Sprintf("unsupported flow member %T", m), ErrEmptyAtomName)
	}
}

// linkLinear сшивает фрагменты последовательно в порядке объявления.
// Пустые фрагменты (вложенные flow без атомов) пропускаются.
func linkLinear(segs []segment) segment {
	var out segment
	var prev *segment

	for i := range segs {
		seg := &segs[i]
		if seg.empty() {
			continue
		}
		if prev == nil {
			out.heads = seg.heads
		} else {
			for _, tail := range prev.tails {
				for _, head := range seg.heads {
					addEdge(tail, head)
				}
			}
		}
		prev = seg
	}

	if prev != nil {
		out.tails = prev.tails
	}
	return out
}

// linkUnordered объединяет фрагменты без взаимного порядка.
func linkUnordered(segs []segment) segment {
	var out segment
	for _, seg := range segs {
		out.heads = append(out.heads, seg.heads...)
		out.tails = append(out.tails, seg.tails...)
	}
	return out
}

// linkGraph вставляет явные рёбра между именованными детьми.
// Входы фрагмента — дети без входящих явных рёбер, выходы — без исходящих.
func linkGraph(f *flow.Flow, segs []segment, names []string) (segment, error) {
	named := make(map[string]segment, len(names))
	for i, name := range names {
		if name != "" {
			named[name] = segs[i]
		}
	}

	hasIncoming := make(map[string]bool)
	hasOutgoing := make(map[string]bool)

	for _, e := range f.Edges() {
		from, ok := named[e.From]
		if !ok {
			return segment{}, newCompileError(e.From, fmt.Sprintf("edge %s -> %s references unknown member", e.From, e.To), ErrMissingDependency)
		}
		to, ok := named[e.To]
		if !ok {
			return segment{}, newCompileError(e.To, fmt.Sprintf("edge %s -> %s references unknown member", e.From, e.To), ErrMissingDependency)
		}

		for _, tail := range from.tails {
			for _, head := range to.heads {
				addEdge(tail, head)
			}
		}
		hasOutgoing[e.From] = true
		hasIncoming[e.To] = true
	}

	var out segment
	for i, name := range names {
		if !hasIncoming[name] {
			out.heads = append(out.heads, segs[i].heads...)
		}
		if !hasOutgoing[name] {
			out.tails = append(out.tails, segs[i].tails...)
		}
	}
	return out, nil
}

// bindSymbols добавляет рёбра данных: для каждого требуемого символа
// ищется поставщик в ближайшей объемлющей области.
func (c *compilation) bindSymbols() error {
	for _, cons := range c.consumers {
		node := cons.node
		for _, sym := range node.Requires() {
			provider := cons.scope.resolve(sym, node)
			if provider == nil {
				return newCompileError(node.Name, fmt.Sprintf("required symbol %q has no provider in scope", sym), ErrMissingDependency)
			}

			addEdge(provider, node)

			b := c.graph.bindings[node.Name]
			if b == nil {
				b = make(map[string]string)
				c.graph.bindings[node.Name] = b
			}
			b[sym] = provider.Name
		}
	}
	return nil
}
