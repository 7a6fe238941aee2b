package scheduler

import (
	"errors"
	"testing"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to AlgState
		want     bool
	}{
		{Initial, ControlReady, true},
		{ControlReady, DataReady, true},
		{DataReady, Scheduled, true},
		{DataReady, Resourceless, true},
		{Resourceless, DataReady, true},
		{Scheduled, EvtAccepted, true},
		{Scheduled, EvtRejected, true},
		{Scheduled, Error, true},
		{Initial, DataReady, false},
		{EvtAccepted, Initial, false},
		{Error, Scheduled, false},
	}
	for _, c := range cases {
		if got := CanTransition(c.from, c.to); got != c.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", c.from, c.to, got, c.want)
		}
	}
}

func TestAlgStateSet_InitialState(t *testing.T) {
	s := NewAlgStateSet(4)
	if s.Len() != 4 {
		t.Fatalf("Len() = %d, want 4", s.Len())
	}
	for i := 0; i < 4; i++ {
		if got := s.StateOf(i); got != Initial {
			t.Errorf("StateOf(%d) = %s, want INITIAL", i, got)
		}
	}
	if got := s.SizeOfSubset(Initial); got != 4 {
		t.Errorf("SizeOfSubset(Initial) = %d, want 4", got)
	}
}

func TestAlgStateSet_SetValidTransition(t *testing.T) {
	s := NewAlgStateSet(3)
	if err := s.Set(1, ControlReady); err != nil {
		t.Fatalf("Set(1, ControlReady) failed: %v", err)
	}
	if got := s.StateOf(1); got != ControlReady {
		t.Errorf("StateOf(1) = %s, want CONTROLREADY", got)
	}
	if got := s.SizeOfSubset(Initial); got != 2 {
		t.Errorf("SizeOfSubset(Initial) = %d, want 2", got)
	}
	if got := s.SizeOfSubset(ControlReady); got != 1 {
		t.Errorf("SizeOfSubset(ControlReady) = %d, want 1", got)
	}
}

func TestAlgStateSet_SetInvalidTransition(t *testing.T) {
	s := NewAlgStateSet(2)
	err := s.Set(0, DataReady)
	if err == nil {
		t.Fatal("expected error for INITIAL -> DATAREADY, got nil")
	}
	if !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("error = %v, want wrapping ErrInvalidTransition", err)
	}
	if got := s.StateOf(0); got != Initial {
		t.Errorf("state mutated after failed transition: StateOf(0) = %s", got)
	}
}

func TestAlgStateSet_SetSameStateNoOp(t *testing.T) {
	s := NewAlgStateSet(1)
	if err := s.Set(0, Initial); err != nil {
		t.Fatalf("no-op transition returned error: %v", err)
	}
	if got := s.SizeOfSubset(Initial); got != 1 {
		t.Errorf("SizeOfSubset(Initial) = %d, want 1", got)
	}
}

func TestAlgStateSet_AlgsInStateIsSnapshot(t *testing.T) {
	s := NewAlgStateSet(3)
	_ = s.Set(0, ControlReady)
	_ = s.Set(1, ControlReady)

	snap := s.AlgsInState(ControlReady)
	if len(snap) != 2 {
		t.Fatalf("len(snap) = %d, want 2", len(snap))
	}

	_ = s.Set(2, ControlReady)
	if len(snap) != 2 {
		t.Errorf("snapshot mutated by later Set call: len = %d, want 2", len(snap))
	}
}

func TestAlgStateSet_RemoveFromMembersSwapWithLast(t *testing.T) {
	s := NewAlgStateSet(4)
	for i := 0; i < 4; i++ {
		_ = s.Set(i, ControlReady)
	}
	// Remove the first member (index 0) from CONTROLREADY; its swap-with-last
	// bookkeeping must keep every remaining member's position consistent so
	// subsequent removals don't corrupt an unrelated index.
	if err := s.Set(0, DataReady); err != nil {
		t.Fatalf("Set(0, DataReady) failed: %v", err)
	}
	for i := 1; i < 4; i++ {
		if got := s.StateOf(i); got != ControlReady {
			t.Errorf("StateOf(%d) = %s, want CONTROLREADY after sibling removal", i, got)
		}
	}
	if err := s.Set(3, DataReady); err != nil {
		t.Fatalf("Set(3, DataReady) failed: %v", err)
	}
	if got := s.StateOf(1); got != ControlReady {
		t.Errorf("StateOf(1) = %s, want CONTROLREADY", got)
	}
	if got := s.StateOf(2); got != ControlReady {
		t.Errorf("StateOf(2) = %s, want CONTROLREADY", got)
	}
}

func TestAlgStateSet_Reset(t *testing.T) {
	s := NewAlgStateSet(3)
	for i := 0; i < 3; i++ {
		_ = s.Set(i, ControlReady)
	}
	s.Reset()
	for i := 0; i < 3; i++ {
		if got := s.StateOf(i); got != Initial {
			t.Errorf("StateOf(%d) = %s after Reset, want INITIAL", i, got)
		}
	}
	if got := s.SizeOfSubset(Initial); got != 3 {
		t.Errorf("SizeOfSubset(Initial) = %d after Reset, want 3", got)
	}
	if got := s.SizeOfSubset(ControlReady); got != 0 {
		t.Errorf("SizeOfSubset(ControlReady) = %d after Reset, want 0", got)
	}
}

func TestAlgStateSet_ContainsAny(t *testing.T) {
	s := NewAlgStateSet(2)
	if s.ContainsAny(ControlReady, DataReady) {
		t.Error("ContainsAny true before any transition")
	}
	_ = s.Set(0, ControlReady)
	if !s.ContainsAny(ControlReady, DataReady) {
		t.Error("ContainsAny false after transitioning into one of the queried states")
	}
}
