package compiler

import (
	"errors"
	"testing"

	"github.com/shaiso/Atomika/internal/flow"
)

func task(name string, requires, provides []string) *flow.Task {
	return flow.NewTask(flow.TaskConfig{Name: name, Requires: requires, Provides: provides})
}

func TestCompile_LinearChain(t *testing.T) {
	f := flow.NewLinear("chain").Add(
		task("A", nil, nil),
		task("B", nil, nil),
		task("C", nil, nil),
	)

	g, err := Compile(f)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if g.Size() != 3 {
		t.Errorf("expected 3 nodes, got %d", g.Size())
	}

	b := g.Node("B")
	if len(b.DependsOn) != 1 || b.DependsOn[0].Name != "A" {
		t.Error("B should depend on A")
	}
	c := g.Node("C")
	if len(c.DependsOn) != 1 || c.DependsOn[0].Name != "B" {
		t.Error("C should depend on B")
	}
}

func TestCompile_UnorderedNoEdges(t *testing.T) {
	f := flow.NewUnordered("par").Add(
		task("A", nil, nil),
		task("B", nil, nil),
		task("C", nil, nil),
	)

	g, err := Compile(f)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, n := range g.Nodes() {
		if n.InDegree != 0 {
			t.Errorf("node %s should have no dependencies, got %d", n.Name, n.InDegree)
		}
	}
}

func TestCompile_GraphExplicitEdges(t *testing.T) {
	// Ромб: A → B → D, A → C → D
	f := flow.NewGraph("diamond").
		Add(
			task("A", nil, nil),
			task("B", nil, nil),
			task("C", nil, nil),
			task("D", nil, nil),
		).
		Link("A", "B").
		Link("A", "C").
		Link("B", "D").
		Link("C", "D")

	g, err := Compile(f)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if g.Node("D").InDegree != 2 {
		t.Errorf("D should have inDegree 2, got %d", g.Node("D").InDegree)
	}
	if g.Node("A").InDegree != 0 {
		t.Error("A should have inDegree 0")
	}
}

func TestCompile_NestedComposition(t *testing.T) {
	// linear( A, unordered(B, C), D ): B и C между A и D, без взаимного порядка
	f := flow.NewLinear("outer").Add(
		task("A", nil, nil),
		flow.NewUnordered("mid").Add(
			task("B", nil, nil),
			task("C", nil, nil),
		),
		task("D", nil, nil),
	)

	g, err := Compile(f)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, name := range []string{"B", "C"} {
		n := g.Node(name)
		if len(n.DependsOn) != 1 || n.DependsOn[0].Name != "A" {
			t.Errorf("%s should depend only on A", name)
		}
	}

	d := g.Node("D")
	if len(d.DependsOn) != 2 {
		t.Errorf("D should depend on B and C, got %d deps", len(d.DependsOn))
	}
}

func TestCompile_DataEdges(t *testing.T) {
	// B требует символ x, который предоставляет A — неявное ребро A → B
	f := flow.NewUnordered("data").Add(
		task("A", nil, []string{"x"}),
		task("B", []string{"x"}, nil),
	)

	g, err := Compile(f)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	b := g.Node("B")
	if len(b.DependsOn) != 1 || b.DependsOn[0].Name != "A" {
		t.Error("data edge A -> B expected")
	}

	bindings := g.Bindings("B")
	if bindings["x"] != "A" {
		t.Errorf("symbol x should bind to A, got %q", bindings["x"])
	}
}

func TestCompile_InnermostProviderWins(t *testing.T) {
	// Символ x предоставляют outer-провайдер и провайдер в той же
	// вложенной области, что и потребитель. Побеждает внутренний.
	f := flow.NewLinear("outer").Add(
		task("outer_provider", nil, []string{"x"}),
		flow.NewLinear("inner").Add(
			task("inner_provider", nil, []string{"x"}),
			task("consumer", []string{"x"}, nil),
		),
	)

	g, err := Compile(f)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if g.Bindings("consumer")["x"] != "inner_provider" {
		t.Errorf("expected inner_provider, got %q", g.Bindings("consumer")["x"])
	}
}

func TestCompile_MissingDependency(t *testing.T) {
	f := flow.NewLinear("bad").Add(
		task("A", []string{"never_provided"}, nil),
	)

	_, err := Compile(f)
	if !errors.Is(err, ErrMissingDependency) {
		t.Errorf("expected ErrMissingDependency, got %v", err)
	}

	var ce *CompileError
	if !errors.As(err, &ce) || ce.Atom != "A" {
		t.Errorf("error should name atom A, got %v", err)
	}
}

func TestCompile_DuplicateAtomName(t *testing.T) {
	f := flow.NewLinear("dup").Add(
		task("A", nil, nil),
		flow.NewUnordered("sub").Add(
			task("A", nil, nil),
		),
	)

	_, err := Compile(f)
	if !errors.Is(err, ErrDuplicateAtomName) {
		t.Errorf("expected ErrDuplicateAtomName, got %v", err)
	}
}

func TestCompile_CycleNamesAtoms(t *testing.T) {
	f := flow.NewGraph("cycle").
		Add(
			task("A", nil, nil),
			task("B", nil, nil),
			task("C", nil, nil),
		).
		Link("A", "B").
		Link("B", "C").
		Link("C", "A")

	_, err := Compile(f)
	if !errors.Is(err, ErrCyclicDependency) {
		t.Fatalf("expected ErrCyclicDependency, got %v", err)
	}

	var cycle *CycleError
	if !errors.As(err, &cycle) {
		t.Fatalf("expected CycleError, got %T", err)
	}
	if len(cycle.Atoms) != 3 {
		t.Errorf("cycle should name 3 atoms, got %v", cycle.Atoms)
	}
}

func TestCompile_EdgeToUnknownMember(t *testing.T) {
	f := flow.NewGraph("bad").
		Add(task("A", nil, nil)).
		Link("A", "ghost")

	_, err := Compile(f)
	if !errors.Is(err, ErrMissingDependency) {
		t.Errorf("expected ErrMissingDependency, got %v", err)
	}
}

func TestCompile_EdgeOutsideGraph(t *testing.T) {
	f := flow.NewLinear("bad").
		Add(task("A", nil, nil), task("B", nil, nil)).
		Link("A", "B")

	_, err := Compile(f)
	if !errors.Is(err, ErrEdgeOutsideGraph) {
		t.Errorf("expected ErrEdgeOutsideGraph, got %v", err)
	}
}

func TestCompile_Idempotent(t *testing.T) {
	build := func() *flow.Flow {
		return flow.NewLinear("outer").Add(
			task("A", nil, []string{"x"}),
			flow.NewUnordered("mid").Add(
				task("B", []string{"x"}, nil),
				task("C", nil, nil),
			),
			task("D", nil, nil),
		)
	}

	g1, err := Compile(build())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	g2, err := Compile(build())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if g1.Signature() != g2.Signature() {
		t.Error("structurally equal flows should compile to equal signatures")
	}
	if g1.Size() != g2.Size() {
		t.Errorf("sizes differ: %d vs %d", g1.Size(), g2.Size())
	}

	// Топологический порядок тоже детерминирован
	o1, o2 := g1.Order(), g2.Order()
	for i := range o1 {
		if o1[i].Name != o2[i].Name {
			t.Fatalf("order differs at %d: %s vs %s", i, o1[i].Name, o2[i].Name)
		}
	}
}

func TestCompile_RetryScope(t *testing.T) {
	child := flow.NewLinear("child").Add(
		task("step1", nil, nil),
		task("step2", nil, nil),
	)
	f := flow.NewLinear("outer").Add(
		task("before", nil, nil),
		flow.NewRetry(flow.RetryConfig{
			Name:   "controller",
			Policy: flow.RetryPolicy{MaxAttempts: 3},
			Child:  child,
		}),
		task("after", nil, nil),
	)

	g, err := Compile(f)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctrl := g.Node("controller")
	if !ctrl.IsRetry() {
		t.Fatal("controller should be a retry node")
	}

	// Дети принадлежат области контроллера
	for _, name := range []string{"step1", "step2"} {
		n := g.Node(name)
		if n.Owner != ctrl {
			t.Errorf("%s should be owned by controller", name)
		}
	}
	if g.Node("before").Owner != nil || g.Node("after").Owner != nil {
		t.Error("atoms outside retry should have no owner")
	}

	// Контроллер предшествует первому ребёнку
	s1 := g.Node("step1")
	found := false
	for _, dep := range s1.DependsOn {
		if dep == ctrl {
			found = true
		}
	}
	if !found {
		t.Error("step1 should depend on controller")
	}

	// after зависит от хвоста дочернего подграфа
	after := g.Node("after")
	if len(after.DependsOn) != 1 || after.DependsOn[0].Name != "step2" {
		t.Errorf("after should depend on step2, got %v", after.DependsOn)
	}

	scoped := g.ScopeNodes(ctrl)
	if len(scoped) != 2 {
		t.Errorf("controller scope should contain 2 atoms, got %d", len(scoped))
	}
}

func TestCompile_OrderIsDeclarationStable(t *testing.T) {
	f := flow.NewUnordered("par").Add(
		task("zeta", nil, nil),
		task("alpha", nil, nil),
		task("beta", nil, nil),
	)

	g, err := Compile(f)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Без зависимостей порядок — порядок объявления, не алфавитный
	want := []string{"zeta", "alpha", "beta"}
	for i, n := range g.Order() {
		if n.Name != want[i] {
			t.Errorf("order[%d] = %s, want %s", i, n.Name, want[i])
		}
	}
}
