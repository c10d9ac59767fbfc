package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shaiso/Atomika/internal/flow"
)

func collect(t *testing.T, s Scheduler, completed int) []Event {
	t.Helper()

	var events []Event
	timeout := time.After(5 * time.Second)
	for n := 0; n < completed; {
		select {
		case ev := <-s.Completions():
			events = append(events, ev)
			if ev.Type == EventCompleted {
				n++
			}
		case <-timeout:
			t.Fatalf("timed out waiting for completions, got %d of %d", n, completed)
		}
	}
	return events
}

func TestSerial_PreservesDispatchOrder(t *testing.T) {
	s := NewSerial()
	defer s.Stop()

	var mu sync.Mutex
	var order []string
	exec := func(name string) flow.ExecuteFunc {
		return func(ctx context.Context, inputs map[string]any) (map[string]any, error) {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			return nil, nil
		}
	}

	batch := []Request{
		{Atom: "a", Op: OpExecute, Execute: exec("a")},
		{Atom: "b", Op: OpExecute, Execute: exec("b")},
		{Atom: "c", Op: OpExecute, Execute: exec("c")},
	}
	if err := s.Dispatch(context.Background(), batch); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	collect(t, s, 3)

	want := []string{"a", "b", "c"}
	for i, name := range want {
		if order[i] != name {
			t.Fatalf("execution order = %v, want %v", order, want)
		}
	}
}

func TestParallel_RunsConcurrently(t *testing.T) {
	s := NewParallel(3)
	defer s.Stop()

	// Каждый атом ждёт остальных: завершится только при
	// одновременном выполнении всех трёх.
	var wg sync.WaitGroup
	wg.Add(3)
	exec := func(ctx context.Context, inputs map[string]any) (map[string]any, error) {
		wg.Done()
		done := make(chan struct{})
		go func() { wg.Wait(); close(done) }()
		select {
		case <-done:
			return nil, nil
		case <-time.After(5 * time.Second):
			return nil, errors.New("peers never started")
		}
	}

	batch := []Request{
		{Atom: "a", Op: OpExecute, Execute: exec},
		{Atom: "b", Op: OpExecute, Execute: exec},
		{Atom: "c", Op: OpExecute, Execute: exec},
	}
	if err := s.Dispatch(context.Background(), batch); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	for _, ev := range collect(t, s, 3) {
		if ev.Type == EventCompleted && ev.Outcome.Failure != nil {
			t.Fatalf("atom %s failed: %v", ev.Atom, ev.Outcome.Failure)
		}
	}
}

func TestRun_ErrorBecomesFailure(t *testing.T) {
	req := Request{
		Atom: "boom",
		Op:   OpExecute,
		Execute: func(ctx context.Context, inputs map[string]any) (map[string]any, error) {
			return nil, fmt.Errorf("disk on fire")
		},
	}

	ev := run(context.Background(), req)
	if ev.Type != EventCompleted {
		t.Fatalf("event type = %s, want %s", ev.Type, EventCompleted)
	}
	if ev.Outcome.Failure == nil {
		t.Fatal("expected failure outcome")
	}
	if ev.Outcome.Failure.Atom != "boom" {
		t.Fatalf("failure atom = %s, want boom", ev.Outcome.Failure.Atom)
	}
}

func TestRun_StructuralAtomSucceeds(t *testing.T) {
	ev := run(context.Background(), Request{Atom: "retry-node", Op: OpExecute})
	if ev.Outcome.Failure != nil {
		t.Fatalf("structural atom failed: %v", ev.Outcome.Failure)
	}
}

func TestRun_RevertUsesRevertFunc(t *testing.T) {
	reverted := false
	req := Request{
		Atom: "a",
		Op:   OpRevert,
		Revert: func(ctx context.Context, inputs map[string]any) error {
			reverted = true
			return nil
		},
	}

	ev := run(context.Background(), req)
	if !reverted {
		t.Fatal("revert func was not called")
	}
	if ev.Outcome.Failure != nil {
		t.Fatalf("revert failed: %v", ev.Outcome.Failure)
	}
}

func TestLocal_EmitsStartedBeforeCompleted(t *testing.T) {
	s := NewSerial()
	defer s.Stop()

	err := s.Dispatch(context.Background(), []Request{{
		Atom: "a",
		Op:   OpExecute,
		Execute: func(ctx context.Context, inputs map[string]any) (map[string]any, error) {
			return map[string]any{"x": 1}, nil
		},
	}})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	events := collect(t, s, 1)
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if events[0].Type != EventStarted || events[1].Type != EventCompleted {
		t.Fatalf("event order = %s, %s", events[0].Type, events[1].Type)
	}
	if got := events[1].Outcome.Result["x"]; got != 1 {
		t.Fatalf("result x = %v, want 1", got)
	}
}
