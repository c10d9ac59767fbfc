package flow

// Kind — вид композиции.
type Kind string

const (
	// KindLinear — строгий последовательный порядок в порядке объявления.
	KindLinear Kind = "linear"

	// KindUnordered — без подразумеваемого порядка между детьми.
	KindUnordered Kind = "unordered"

	// KindGraph — явные рёбра зависимостей между именованными атомами.
	KindGraph Kind = "graph"
)

// Edge — явное ребро для композиции KindGraph: From должен завершиться
// до запуска To.
type Edge struct {
	From string
	To   string
}

// Flow — композиция атомов и вложенных flow.
type Flow struct {
	name    string
	kind    Kind
	members []Member
	edges   []Edge
}

// NewLinear создаёт последовательную композицию.
func NewLinear(name string) *Flow {
	return &Flow{name: name, kind: KindLinear}
}

// NewUnordered создаёт композицию без подразумеваемого порядка.
func NewUnordered(name string) *Flow {
	return &Flow{name: name, kind: KindUnordered}
}

// NewGraph создаёт композицию с явными рёбрами (см. Link).
func NewGraph(name string) *Flow {
	return &Flow{name: name, kind: KindGraph}
}

// Add добавляет детей в порядке объявления. Возвращает f для цепочек вызовов.
func (f *Flow) Add(members ...Member) *Flow {
	f.members = append(f.members, members...)
	return f
}

// Link объявляет явное ребро from → to. Имеет смысл только для KindGraph;
// компилятор отвергает рёбра в остальных видах композиции.
func (f *Flow) Link(from, to string) *Flow {
	f.edges = append(f.edges, Edge{From: from, To: to})
	return f
}

// Name возвращает имя композиции.
func (f *Flow) Name() string { return f.name }

// Kind возвращает вид композиции.
func (f *Flow) Kind() Kind { return f.kind }

// Members возвращает детей в порядке объявления.
func (f *Flow) Members() []Member { return f.members }

// Edges возвращает явные рёбра.
func (f *Flow) Edges() []Edge { return f.edges }

func (f *Flow) member() {}
