package status

import (
	"testing"

	"github.com/avalanche-sched/avalanche/scheduler"
)

func newTestSQLiteService(t *testing.T) *SQLiteService {
	t.Helper()
	s, err := NewSQLiteService(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteService: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteService_RecordAndReadAlgResult(t *testing.T) {
	s := newTestSQLiteService(t)
	c := ec(0, 1, 1)
	s.RecordAlgResult("TrackFinder", c, false, true)

	got := s.AlgExecState("TrackFinder", c)
	if got.Failed || !got.FilterPassed {
		t.Errorf("AlgExecState = %+v, want {Failed:false FilterPassed:true}", got)
	}
}

func TestSQLiteService_RecordAlgResultUpserts(t *testing.T) {
	s := newTestSQLiteService(t)
	c := ec(0, 1, 1)
	s.RecordAlgResult("A", c, false, true)
	s.RecordAlgResult("A", c, true, false)

	got := s.AlgExecState("A", c)
	if !got.Failed || got.FilterPassed {
		t.Errorf("AlgExecState after second RecordAlgResult = %+v, want {Failed:true FilterPassed:false}", got)
	}
}

func TestSQLiteService_AlgExecStateUnrecorded(t *testing.T) {
	s := newTestSQLiteService(t)
	got := s.AlgExecState("Ghost", ec(0, 1, 1))
	if got.Failed || got.FilterPassed {
		t.Errorf("AlgExecState for unrecorded key = %+v, want zero value", got)
	}
}

func TestSQLiteService_EventStatusDefaultsSuccess(t *testing.T) {
	s := newTestSQLiteService(t)
	if got := s.EventStatus(ec(0, 1, 1)); got != scheduler.OutcomeSuccess {
		t.Errorf("EventStatus default = %v, want OutcomeSuccess", got)
	}
}

func TestSQLiteService_UpdateEventStatusOnlyNarrowsToFailure(t *testing.T) {
	s := newTestSQLiteService(t)
	c := ec(0, 1, 1)

	s.UpdateEventStatus(false, c)
	if got := s.EventStatus(c); got != scheduler.OutcomeSuccess {
		t.Errorf("EventStatus after UpdateEventStatus(false) = %v, want OutcomeSuccess", got)
	}

	s.UpdateEventStatus(true, c)
	if got := s.EventStatus(c); got != scheduler.OutcomeAlgorithmFailure {
		t.Errorf("EventStatus after UpdateEventStatus(true) = %v, want OutcomeAlgorithmFailure", got)
	}

	s.SetEventStatus(scheduler.OutcomeAlgStall, c)
	s.UpdateEventStatus(true, c)
	if got := s.EventStatus(c); got != scheduler.OutcomeAlgStall {
		t.Errorf("EventStatus = %v, want OutcomeAlgStall (UpdateEventStatus must not overwrite an existing outcome)", got)
	}
}

func TestSQLiteService_SetEventStatusOverwrites(t *testing.T) {
	s := newTestSQLiteService(t)
	c := ec(0, 1, 1)
	s.SetEventStatus(scheduler.OutcomeAlgStall, c)
	s.SetEventStatus(scheduler.OutcomeSuccess, c)
	if got := s.EventStatus(c); got != scheduler.OutcomeSuccess {
		t.Errorf("EventStatus = %v, want OutcomeSuccess", got)
	}
}

func TestSQLiteService_KeysDistinguishEpoch(t *testing.T) {
	s := newTestSQLiteService(t)
	c1 := ec(0, 1, 1)
	c2 := ec(0, 1, 2)
	s.RecordAlgResult("A", c1, true, false)
	s.RecordAlgResult("A", c2, false, true)

	if got := s.AlgExecState("A", c1); !got.Failed {
		t.Error("epoch 1 result should be unaffected by epoch 2's write")
	}
	if got := s.AlgExecState("A", c2); got.Failed {
		t.Error("epoch 2 result should be unaffected by epoch 1's write")
	}
}

func TestSQLiteService_CloseThenQueryErrors(t *testing.T) {
	s, err := NewSQLiteService(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteService: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	// A closed handle degrades to default-value reads, never a panic.
	if got := s.EventStatus(ec(0, 1, 1)); got != scheduler.OutcomeSuccess {
		t.Errorf("EventStatus after Close = %v, want OutcomeSuccess (default on query error)", got)
	}
}
