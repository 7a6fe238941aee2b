package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/avalanche-sched/avalanche/scheduler/refimpl"
	"github.com/avalanche-sched/avalanche/scheduler/status"
)

func TestOccupancySnapshot_AddCounts(t *testing.T) {
	states := NewAlgStateSet(4)
	_ = states.Set(0, ControlReady)
	_ = states.Set(1, ControlReady)
	_ = states.Set(1, DataReady)
	_ = states.Set(2, ControlReady)
	_ = states.Set(2, DataReady)
	_ = states.Set(2, Scheduled)
	// index 3 stays Initial.

	snap := &OccupancySnapshot{States: make([][numStates]int, 1)}
	snap.addCounts(0, states)

	if got := snap.States[0][Initial]; got != 1 {
		t.Errorf("States[0][Initial] = %d, want 1", got)
	}
	if got := snap.States[0][ControlReady]; got != 1 {
		t.Errorf("States[0][ControlReady] = %d, want 1", got)
	}
	if got := snap.States[0][DataReady]; got != 1 {
		t.Errorf("States[0][DataReady] = %d, want 1", got)
	}
	if got := snap.States[0][Scheduled]; got != 1 {
		t.Errorf("States[0][Scheduled] = %d, want 1", got)
	}
}

func TestOccupancySnapshot_AccumulateFoldsSubSlotsIntoStates(t *testing.T) {
	slot := NewEventSlot(0, 2)
	slot.Reset(&EventContext{SlotIndex: 0, EventNum: 1, Epoch: 1})
	_ = slot.AlgStates.Set(0, ControlReady)
	_ = slot.AlgStates.Set(1, ControlReady)

	sub, err := slot.AddSubSlot(3, "viewMaker", &EventContext{SlotIndex: 0, EventNum: 1, Epoch: 1}, false)
	if err != nil {
		t.Fatalf("AddSubSlot: %v", err)
	}
	_ = sub.AlgStates.Set(0, ControlReady)
	_ = sub.AlgStates.Set(0, DataReady)
	_ = sub.AlgStates.Set(1, ControlReady)

	var c Core
	snap := &OccupancySnapshot{
		States:        make([][numStates]int, 1),
		SubSlotStates: make([][][numStates]int, 1),
	}
	c.accumulateSnapshot(snap, slot)

	// States folds root + sub-slot counts together: 2 root CONTROLREADY plus
	// 1 sub-slot CONTROLREADY and 1 sub-slot DATAREADY.
	if got := snap.States[0][ControlReady]; got != 3 {
		t.Errorf("States[0][ControlReady] = %d, want 3 (root+sub-slot folded)", got)
	}
	if got := snap.States[0][DataReady]; got != 1 {
		t.Errorf("States[0][DataReady] = %d, want 1", got)
	}

	// SubSlotStates keeps the sub-slot's own counts unflattened.
	if len(snap.SubSlotStates[0]) != 1 {
		t.Fatalf("SubSlotStates[0] has %d entries, want 1", len(snap.SubSlotStates[0]))
	}
	subCounts := snap.SubSlotStates[0][0]
	if subCounts[ControlReady] != 1 || subCounts[DataReady] != 1 {
		t.Errorf("SubSlotStates[0][0] = %+v, want ControlReady:1 DataReady:1", subCounts)
	}
}

func TestCore_RecordOccupancyReflectsInFlightEvent(t *testing.T) {
	release := make(chan struct{})
	g, err := refimpl.NewLinearGraph("A")
	if err != nil {
		t.Fatalf("NewLinearGraph: %v", err)
	}
	pool := refimpl.NewPool()
	pool.Register(0, "A", func(_ context.Context, _ *EventContext) (bool, error) {
		<-release
		return true, nil
	}, 2)
	wb := refimpl.NewWhiteboard(2)
	statusSvc := status.NewMemoryService()

	core := New(g, pool, statusSvc, wb, nil,
		WithMaxEventsInFlight(2), WithThreadPoolSize(2), WithSnapshotInterval(0))
	if err := core.Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	defer func() { core.Deactivate(); core.Finalize() }()

	var mu sync.Mutex
	var sawScheduled bool
	core.RecordOccupancy(func(s OccupancySnapshot) {
		mu.Lock()
		defer mu.Unlock()
		if s.States[0][Scheduled] > 0 {
			sawScheduled = true
		}
	})

	if err := core.PushNewEvent(1); err != nil {
		t.Fatalf("PushNewEvent: %v", err)
	}
	// A reconciler pass samples a slot before scheduling its DATAREADY
	// algorithms, so the pass that dispatches event 1's A still sees it
	// DATAREADY; the pass run for event 2 samples slot 0 with A SCHEDULED.
	if err := core.PushNewEvent(2); err != nil {
		t.Fatalf("PushNewEvent: %v", err)
	}

	deadline := time.After(2 * time.Second)
poll:
	for {
		mu.Lock()
		done := sawScheduled
		mu.Unlock()
		if done {
			break
		}
		select {
		case <-deadline:
			break poll
		case <-time.After(2 * time.Millisecond):
		}
	}

	close(release)
	for i := 0; i < 2; i++ {
		if _, err := popWithTimeout(t, core, 2*time.Second); err != nil {
			t.Fatalf("PopFinishedEvent: %v", err)
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if !sawScheduled {
		t.Error("RecordOccupancy callback never observed a SCHEDULED algorithm while A was in flight")
	}
}
