package domain

import (
	"errors"
	"testing"
)

func TestCheckAtomTransition_SameState(t *testing.T) {
	ok, err := CheckAtomTransition(StateSuccess, StateSuccess)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("same-state transition should be silently ignored")
	}
}

func TestCheckAtomTransition_Allowed(t *testing.T) {
	cases := []struct {
		from, to AtomState
	}{
		{StatePending, StateScheduled},
		{StateScheduled, StateRunning},
		{StateRunning, StateSuccess},
		{StateRunning, StateFailure},
		{StateSuccess, StateReverting},
		{StateReverting, StateReverted},
		{StateFailure, StateRetrying},
		{StateReverted, StatePending},
		{StatePending, StateIgnored},
		// Восстановление после падения процесса
		{StateScheduled, StatePending},
		{StateRunning, StatePending},
	}

	for _, c := range cases {
		ok, err := CheckAtomTransition(c.from, c.to)
		if err != nil {
			t.Errorf("%s -> %s: unexpected error: %v", c.from, c.to, err)
		}
		if !ok {
			t.Errorf("%s -> %s: should be allowed", c.from, c.to)
		}
	}
}

func TestCheckAtomTransition_Disallowed(t *testing.T) {
	cases := []struct {
		from, to AtomState
	}{
		{StatePending, StateSuccess},
		{StateFailure, StateSuccess},
		{StateIgnored, StateRunning},
		{StateReverted, StateSuccess},
		{StateSuccess, StateScheduled},
	}

	for _, c := range cases {
		_, err := CheckAtomTransition(c.from, c.to)
		if !errors.Is(err, ErrInvalidTransition) {
			t.Errorf("%s -> %s: expected ErrInvalidTransition, got %v", c.from, c.to, err)
		}
	}
}

func TestCheckFlowTransition(t *testing.T) {
	// Повторный прогон завершённого flow разрешён
	if ok, err := CheckFlowTransition(FlowSuccess, FlowResuming); err != nil || !ok {
		t.Errorf("SUCCESS -> RESUMING should be allowed, got ok=%v err=%v", ok, err)
	}

	// Возобновление после suspend
	if ok, err := CheckFlowTransition(FlowSuspended, FlowResuming); err != nil || !ok {
		t.Errorf("SUSPENDED -> RESUMING should be allowed, got ok=%v err=%v", ok, err)
	}

	// Восстановление после падения процесса: долговечные промежуточные
	// состояния и FAILURE возобновляемы
	for _, from := range []FlowState{FlowScheduling, FlowWaiting, FlowReverting, FlowFailure} {
		if ok, err := CheckFlowTransition(from, FlowResuming); err != nil || !ok {
			t.Errorf("%s -> RESUMING should be allowed, got ok=%v err=%v", from, ok, err)
		}
	}

	// FAILURE — терминальное состояние
	if _, err := CheckFlowTransition(FlowFailure, FlowSuccess); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("FAILURE -> SUCCESS should be rejected, got %v", err)
	}

	// Переход в то же состояние игнорируется
	if ok, err := CheckFlowTransition(FlowWaiting, FlowWaiting); err != nil || ok {
		t.Errorf("same-state flow transition should be ignored, got ok=%v err=%v", ok, err)
	}
}

func TestAtomStateIsTerminal(t *testing.T) {
	terminal := []AtomState{StateSuccess, StateFailure, StateReverted, StateIgnored}
	for _, s := range terminal {
		if !s.IsTerminal() {
			t.Errorf("%s should be terminal", s)
		}
	}

	nonTerminal := []AtomState{StatePending, StateScheduled, StateRunning, StateReverting, StateRetrying}
	for _, s := range nonTerminal {
		if s.IsTerminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
}
