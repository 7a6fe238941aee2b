package scheduler

import (
	"context"
	"fmt"

	"github.com/avalanche-sched/avalanche/scheduler/emit"
)

// TaskSpec records a scheduled algorithm invocation. It is constructed
// by the reconciler/SchedulerCore and consumed by exactly one worker; AlgPtr
// is populated once a resource-pool instance is acquired and is returned to
// the pool on sign-off.
type TaskSpec struct {
	AlgPtr     AlgorithmInstance
	AlgIndex   int
	AlgName    string
	Rank       int
	Blocking   bool
	SlotIndex  int
	ContextPtr *EventContext

	// subSlot is non-nil when this task runs against a sub-slot's
	// AlgStateSet rather than the parent slot's.
	subSlot *SubSlot
}

// algStates returns the AlgStateSet this task's algorithm lives in —
// either the owning slot's root set or a sub-slot's.
func (ts *TaskSpec) algStates(slot *EventSlot) *AlgStateSet {
	if ts.subSlot != nil {
		return ts.subSlot.AlgStates
	}
	return slot.AlgStates
}

// signoffResult carries what a finished TaskSpec needs to become a
// sign-off Action; it is what TaskDispatch hands to the ActionQueue.
type signoffResult struct {
	spec     TaskSpec
	execErr  error
	filterOK bool
	panicked bool
}

// TaskDispatch is the worker-side code invoked on the arena, or on a
// dedicated OS thread for a task flagged Blocking. Exactly one
// TaskDispatch exists per TaskSpec; Run is called at most once.
type TaskDispatch struct {
	core *Core
	spec TaskSpec
}

// Run executes the algorithm body under a recover guard, records the
// outcome through the execution-status service, returns the instance to the
// resource pool, and posts a sign-off Action onto the ActionQueue. It never
// propagates a panic or error back to the arena.
func (d *TaskDispatch) Run() {
	core := d.core
	spec := d.spec

	result := signoffResult{spec: spec}

	func() {
		defer func() {
			if r := recover(); r != nil {
				result.panicked = true
				result.execErr = fmt.Errorf("algorithm %s panicked: %v", spec.AlgName, r)
			}
		}()

		ctx := context.WithValue(context.Background(), ctxSlotKey{}, spec.SlotIndex)
		ok, err := spec.AlgPtr.Run(ctx, spec.ContextPtr)
		result.filterOK = ok
		result.execErr = err
	}()

	failed := result.execErr != nil
	core.status.RecordAlgResult(spec.AlgName, spec.ContextPtr, failed, result.filterOK)
	if failed {
		core.status.UpdateEventStatus(true, spec.ContextPtr)
	}

	if err := core.pool.Release(spec.AlgName, spec.AlgPtr); err != nil {
		core.emitter.Emit(emit.Event{
			Msg:    "resource_release_failed",
			NodeID: spec.AlgName,
			Meta:   map[string]interface{}{"error": err.Error()},
		})
	}

	core.actions.Push(func() error {
		return core.signoff(result)
	})
}

type ctxSlotKey struct{}
