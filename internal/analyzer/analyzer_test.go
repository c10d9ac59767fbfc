package analyzer

import (
	"testing"

	"github.com/shaiso/Atomika/internal/compiler"
	"github.com/shaiso/Atomika/internal/domain"
	"github.com/shaiso/Atomika/internal/flow"
)

// mapView — тестовая реализация View поверх двух map.
type mapView struct {
	states     map[string]domain.AtomState
	intentions map[string]domain.Intention
}

func (v *mapView) State(name string) domain.AtomState {
	if s, ok := v.states[name]; ok {
		return s
	}
	return domain.StatePending
}

func (v *mapView) Intention(name string) domain.Intention {
	if i, ok := v.intentions[name]; ok {
		return i
	}
	return domain.IntentionExecute
}

func newView() *mapView {
	return &mapView{
		states:     make(map[string]domain.AtomState),
		intentions: make(map[string]domain.Intention),
	}
}

func compile(t *testing.T, f *flow.Flow) *compiler.Graph {
	t.Helper()
	g, err := compiler.Compile(f)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	return g
}

func task(name string) *flow.Task {
	return flow.NewTask(flow.TaskConfig{Name: name})
}

func names(nodes []*compiler.Node) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.Name
	}
	return out
}

func TestExecutableFrontier_Initial(t *testing.T) {
	g := compile(t, flow.NewLinear("chain").Add(task("A"), task("B"), task("C")))
	a := New(g)

	frontier := a.ExecutableFrontier(newView())
	if len(frontier) != 1 || frontier[0].Name != "A" {
		t.Errorf("initial frontier should be [A], got %v", names(frontier))
	}
}

func TestExecutableFrontier_AfterPredecessorSuccess(t *testing.T) {
	// Ромб: B и C оба зависят только от A
	g := compile(t, flow.NewGraph("diamond").
		Add(task("A"), task("B"), task("C"), task("D")).
		Link("A", "B").Link("A", "C").Link("B", "D").Link("C", "D"))
	a := New(g)

	v := newView()
	v.states["A"] = domain.StateSuccess

	frontier := a.ExecutableFrontier(v)
	if len(frontier) != 2 {
		t.Fatalf("expected frontier [B C], got %v", names(frontier))
	}
	if frontier[0].Name != "B" || frontier[1].Name != "C" {
		t.Errorf("frontier order should follow declaration, got %v", names(frontier))
	}
}

func TestExecutableFrontier_SkipsNonExecuteIntention(t *testing.T) {
	g := compile(t, flow.NewUnordered("par").Add(task("A"), task("B")))
	a := New(g)

	v := newView()
	v.intentions["A"] = domain.IntentionIgnore

	frontier := a.ExecutableFrontier(v)
	if len(frontier) != 1 || frontier[0].Name != "B" {
		t.Errorf("expected [B], got %v", names(frontier))
	}
}

func TestRevertibleFrontier_ReverseOrder(t *testing.T) {
	g := compile(t, flow.NewLinear("chain").Add(task("A"), task("B"), task("C")))
	a := New(g)

	v := newView()
	for _, name := range []string{"A", "B", "C"} {
		v.states[name] = domain.StateSuccess
		v.intentions[name] = domain.IntentionRevert
	}

	// Пока C не откачен, откатывать можно только C
	frontier := a.RevertibleFrontier(v)
	if len(frontier) != 1 || frontier[0].Name != "C" {
		t.Errorf("expected [C], got %v", names(frontier))
	}

	v.states["C"] = domain.StateReverted
	frontier = a.RevertibleFrontier(v)
	if len(frontier) != 1 || frontier[0].Name != "B" {
		t.Errorf("expected [B], got %v", names(frontier))
	}
}

func TestRevertibleFrontier_FailedAtomIsRevertible(t *testing.T) {
	g := compile(t, flow.NewLinear("chain").Add(task("A"), task("B")))
	a := New(g)

	v := newView()
	v.states["A"] = domain.StateSuccess
	v.intentions["A"] = domain.IntentionRevert
	v.states["B"] = domain.StateFailure
	v.intentions["B"] = domain.IntentionRevert

	frontier := a.RevertibleFrontier(v)
	if len(frontier) != 1 || frontier[0].Name != "B" {
		t.Errorf("failed atom should revert first, got %v", names(frontier))
	}
}

func TestUnreachable_TransitiveDependents(t *testing.T) {
	// A → B → C, D независим
	g := compile(t, flow.NewGraph("g").
		Add(task("A"), task("B"), task("C"), task("D")).
		Link("A", "B").Link("B", "C"))
	a := New(g)

	v := newView()
	v.states["A"] = domain.StateFailure

	unreachable := a.Unreachable(v, g.Node("A"))
	got := names(unreachable)
	if len(got) != 2 || got[0] != "B" || got[1] != "C" {
		t.Errorf("expected [B C], got %v", got)
	}
}

func TestUnreachable_SkipsStartedAtoms(t *testing.T) {
	// B уже выполняется: IGNORED его не касается
	g := compile(t, flow.NewGraph("g").
		Add(task("A"), task("B"), task("C")).
		Link("A", "C").Link("B", "C"))
	a := New(g)

	v := newView()
	v.states["A"] = domain.StateFailure
	v.states["B"] = domain.StateRunning

	unreachable := a.Unreachable(v, g.Node("A"))
	if len(unreachable) != 1 || unreachable[0].Name != "C" {
		t.Errorf("expected [C], got %v", names(unreachable))
	}
}

func TestAbsorbingRetry(t *testing.T) {
	child := flow.NewLinear("child").Add(task("step"))
	g := compile(t, flow.NewLinear("outer").Add(
		task("before"),
		flow.NewRetry(flow.RetryConfig{
			Name:   "ctrl",
			Policy: flow.RetryPolicy{MaxAttempts: 2},
			Child:  child,
		}),
	))
	a := New(g)

	if owner := a.AbsorbingRetry(g.Node("step")); owner == nil || owner.Name != "ctrl" {
		t.Error("step failure should be absorbed by ctrl")
	}
	if owner := a.AbsorbingRetry(g.Node("before")); owner != nil {
		t.Error("before is outside any retry scope")
	}
}

func TestComplete(t *testing.T) {
	g := compile(t, flow.NewUnordered("par").Add(task("A"), task("B")))
	a := New(g)

	v := newView()
	v.states["A"] = domain.StateSuccess
	if a.Complete(v) {
		t.Error("flow is not complete while B is pending")
	}

	v.states["B"] = domain.StateSuccess
	if !a.Complete(v) {
		t.Error("flow should be complete")
	}
}

func TestRevertComplete(t *testing.T) {
	g := compile(t, flow.NewLinear("chain").Add(task("A"), task("B")))
	a := New(g)

	v := newView()
	v.states["A"] = domain.StateSuccess
	v.intentions["A"] = domain.IntentionRevert
	v.states["B"] = domain.StateIgnored
	v.intentions["B"] = domain.IntentionIgnore

	if a.RevertComplete(v) {
		t.Error("A still awaits revert")
	}

	v.states["A"] = domain.StateReverted
	v.intentions["A"] = domain.IntentionIgnore
	if !a.RevertComplete(v) {
		t.Error("revert should be complete")
	}
}
