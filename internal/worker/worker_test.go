package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"

	"github.com/shaiso/Atomika/internal/mq"
)

// fakeSink собирает опубликованные события вместо RabbitMQ.
type fakeSink struct {
	started   []mq.Completion
	completed []mq.Completion
}

func (s *fakeSink) PublishStarted(ctx context.Context, msg mq.Completion) error {
	s.started = append(s.started, msg)
	return nil
}

func (s *fakeSink) PublishCompleted(ctx context.Context, msg mq.Completion) error {
	s.completed = append(s.completed, msg)
	return nil
}

func dispatchBody(t *testing.T, msg mq.Dispatch) []byte {
	t.Helper()
	body, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal dispatch: %v", err)
	}
	return body
}

func TestRegistry_UnknownAtom(t *testing.T) {
	r := NewRegistry()
	if _, err := r.Get("nope"); !errors.Is(err, ErrUnknownAtom) {
		t.Fatalf("error = %v, want ErrUnknownAtom", err)
	}
}

func TestHandleDispatch_Success(t *testing.T) {
	r := NewRegistry()
	r.Register("greet", Executor{
		Execute: func(ctx context.Context, inputs map[string]any) (map[string]any, error) {
			return map[string]any{"greeting": "hello " + inputs["name"].(string)}, nil
		},
	})
	sink := &fakeSink{}
	w := New(Config{Name: "w1", Registry: r, Sink: sink})

	flowID := uuid.New()
	body := dispatchBody(t, mq.Dispatch{
		FlowID: flowID,
		Atom:   "greet",
		Op:     "execute",
		Inputs: map[string]any{"name": "world"},
	})

	if err := w.HandleDispatch(context.Background(), mq.TypeDispatch, body); err != nil {
		t.Fatalf("HandleDispatch: %v", err)
	}

	if len(sink.started) != 1 {
		t.Fatalf("started events = %d, want 1", len(sink.started))
	}
	if len(sink.completed) != 1 {
		t.Fatalf("completed events = %d, want 1", len(sink.completed))
	}
	done := sink.completed[0]
	if done.FlowID != flowID || done.Atom != "greet" {
		t.Fatalf("completion = %+v", done)
	}
	if done.Error != "" {
		t.Fatalf("unexpected error: %s", done.Error)
	}
	if done.Result["greeting"] != "hello world" {
		t.Fatalf("result = %v", done.Result)
	}
	if done.Worker != "w1" {
		t.Fatalf("worker = %s, want w1", done.Worker)
	}
}

func TestHandleDispatch_ExecutionFailureIsReported(t *testing.T) {
	r := NewRegistry()
	r.Register("boom", Executor{
		Execute: func(ctx context.Context, inputs map[string]any) (map[string]any, error) {
			return nil, fmt.Errorf("out of disk")
		},
	})
	sink := &fakeSink{}
	w := New(Config{Name: "w1", Registry: r, Sink: sink})

	body := dispatchBody(t, mq.Dispatch{FlowID: uuid.New(), Atom: "boom", Op: "execute"})

	// Ошибка атома не роняет обработку: запрос подтверждается
	if err := w.HandleDispatch(context.Background(), mq.TypeDispatch, body); err != nil {
		t.Fatalf("HandleDispatch: %v", err)
	}
	if len(sink.completed) != 1 || sink.completed[0].Error != "out of disk" {
		t.Fatalf("completed = %+v", sink.completed)
	}
}

func TestHandleDispatch_Revert(t *testing.T) {
	reverted := false
	r := NewRegistry()
	r.Register("a", Executor{
		Revert: func(ctx context.Context, inputs map[string]any) error {
			reverted = true
			return nil
		},
	})
	sink := &fakeSink{}
	w := New(Config{Name: "w1", Registry: r, Sink: sink})

	body := dispatchBody(t, mq.Dispatch{FlowID: uuid.New(), Atom: "a", Op: "revert"})
	if err := w.HandleDispatch(context.Background(), mq.TypeDispatch, body); err != nil {
		t.Fatalf("HandleDispatch: %v", err)
	}
	if !reverted {
		t.Fatal("revert was not called")
	}
	if sink.completed[0].Error != "" {
		t.Fatalf("unexpected error: %s", sink.completed[0].Error)
	}
}

func TestHandleDispatch_UnknownAtomReportsFailure(t *testing.T) {
	sink := &fakeSink{}
	w := New(Config{Name: "w1", Registry: NewRegistry(), Sink: sink})

	body := dispatchBody(t, mq.Dispatch{FlowID: uuid.New(), Atom: "ghost", Op: "execute"})
	if err := w.HandleDispatch(context.Background(), mq.TypeDispatch, body); err != nil {
		t.Fatalf("HandleDispatch: %v", err)
	}
	if len(sink.completed) != 1 || sink.completed[0].Error == "" {
		t.Fatalf("completed = %+v, want reported failure", sink.completed)
	}
}

func TestHandleDispatch_MalformedBodyRejected(t *testing.T) {
	sink := &fakeSink{}
	w := New(Config{Name: "w1", Registry: NewRegistry(), Sink: sink})

	if err := w.HandleDispatch(context.Background(), mq.TypeDispatch, []byte("{not json")); err == nil {
		t.Fatal("expected unmarshal error")
	}
	if len(sink.completed) != 0 {
		t.Fatalf("completed = %+v, want none", sink.completed)
	}
}
