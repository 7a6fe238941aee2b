package scheduler

import (
	"sort"
	"strconv"
	"time"

	"github.com/avalanche-sched/avalanche/scheduler/emit"
)

// iterate is the SlotReconciler pass: drain the retry queue, walk
// every occupied slot scheduling DATAREADY algorithms, test for completion
// and stall, and emit at most one occupancy snapshot. It only ever runs on
// the control thread and never blocks on a worker.
func (c *Core) iterate() {
	start := time.Now()

	// 1. Retry queue drain: only the entries present at the start of this
	// pass. Anything schedule() re-queues during the loop lands after the
	// drained prefix and is deferred to the next iterate() call.
	n := len(c.retryQueue)
	for i := 0; i < n; i++ {
		ts := c.retryQueue[0]
		c.retryQueue = c.retryQueue[1:]
		c.schedule(ts)
	}

	var snap *OccupancySnapshot
	takeSnapshot := c.cfg.SnapshotInterval >= 0 && time.Since(c.lastSnapshot) >= c.cfg.SnapshotInterval
	if takeSnapshot {
		snap = &OccupancySnapshot{
			Timestamp:     start,
			States:        make([][numStates]int, len(c.slots)),
			SubSlotStates: make([][][numStates]int, len(c.slots)),
		}
	}

	// 2. Per-slot loop.
	for _, slot := range c.slots {
		if slot.Context() == nil {
			continue
		}

		if snap != nil {
			c.accumulateSnapshot(snap, slot)
		}

		c.scheduleDataReady(slot.AlgStates, slot, nil)
		for _, sub := range slot.SubSlots() {
			c.scheduleDataReady(sub.AlgStates, slot, sub)
		}

		resolved := c.precedence.CFRulesResolved(slot)
		// Completion requires every one of these empty; the stall test
		// below deliberately omits CONTROLREADY — a
		// slot with only CONTROLREADY algorithms left has no SCHEDULED
		// work that could ever trigger another precedence.Iterate, so
		// those algorithms are as stuck as if they didn't exist.
		completionWork := slot.ContainsAnyIncludingSubSlots(ControlReady, DataReady, Scheduled, Resourceless)
		stallWork := slot.ContainsAnyIncludingSubSlots(DataReady, Scheduled, Resourceless)

		switch {
		case resolved && !completionWork && !slot.Complete():
			c.completeSlot(slot)
		case !stallWork && !slot.Complete():
			c.declareStall(slot)
		}
	}

	if snap != nil {
		c.lastSnapshot = start
		if c.occupancyCB != nil {
			c.occupancyCB(*snap)
		}
	}

	c.needsUpdate.Store(false)
	if c.metrics != nil {
		c.metrics.RecordIterateLatency(time.Since(start))
	}
}

// scheduleDataReady schedules every algorithm currently DATAREADY in states,
// applying rank-based ordering when OptimizationMode is enabled.
func (c *Core) scheduleDataReady(states *AlgStateSet, slot *EventSlot, sub *SubSlot) {
	ready := states.AlgsInState(DataReady)
	if c.cfg.OptimizationMode != "" {
		sort.SliceStable(ready, func(i, j int) bool {
			return c.priority(ready[i]) > c.priority(ready[j])
		})
	}

	ec := slot.Context()
	if sub != nil {
		ec = sub.Ctx
	}

	for _, algIndex := range ready {
		name := c.algName(int(algIndex))
		rank := 0
		if c.cfg.OptimizationMode != "" {
			rank = c.precedence.Priority(name)
		}
		blocking := c.cfg.EnablePreemptiveBlockingTasks && c.precedence.IsBlocking(name)

		ts := TaskSpec{
			AlgIndex:   int(algIndex),
			AlgName:    name,
			Rank:       rank,
			Blocking:   blocking,
			SlotIndex:  slot.Index,
			ContextPtr: ec,
			subSlot:    sub,
		}
		c.schedule(ts)
	}
}

func (c *Core) priority(algIndex int32) int {
	return c.precedence.Priority(c.algName(int(algIndex)))
}

// completeSlot runs when the slot's control-flow root has resolved and no
// algorithm remains in a non-terminal state.
func (c *Core) completeSlot(slot *EventSlot) {
	ctx := slot.Context()
	outcome := c.status.EventStatus(ctx)
	slot.markComplete()
	c.emitter.Emit(emit.Event{
		RunID:  ecLabel(ctx),
		NodeID: "",
		Msg:    "slot_complete",
		Meta:   map[string]interface{}{"outcome": outcomeName(outcome)},
	})
	if outcome == OutcomeSuccess {
		c.finished.push(ctx)
	} else {
		c.eventFailed(slot, ctx, outcome)
	}
}

// declareStall runs when no DATAREADY, SCHEDULED or RESOURCELESS work
// remains anywhere in the slot, but the control-flow root never resolved.
func (c *Core) declareStall(slot *EventSlot) {
	ctx := slot.Context()
	c.status.SetEventStatus(OutcomeAlgStall, ctx)
	if c.metrics != nil {
		c.metrics.IncrementStalls()
	}
	ev := emit.Event{RunID: ecLabel(ctx), Msg: "alg_stall"}
	if c.cfg.ShowControlFlow || c.cfg.ShowDataFlow || c.cfg.ShowDataDeps {
		ev.Meta = map[string]interface{}{"precedence_state": c.precedence.PrintState(slot)}
	}
	c.emitter.Emit(ev)
	slot.markComplete()
	c.eventFailed(slot, ctx, OutcomeAlgStall)
}

// eventFailed releases a slot's event context to the finished queue with a
// non-success status, same path for AlgorithmFailure and AlgStall.
func (c *Core) eventFailed(slot *EventSlot, ctx *EventContext, outcome EventOutcome) {
	c.status.SetEventStatus(outcome, ctx)
	c.finished.push(ctx)
}

func ecLabel(ec *EventContext) string {
	if ec == nil {
		return ""
	}
	return strconv.FormatInt(ec.EventNum, 10)
}

func outcomeName(o EventOutcome) string {
	switch o {
	case OutcomeSuccess:
		return "Success"
	case OutcomeAlgorithmFailure:
		return "AlgorithmFailure"
	case OutcomeAlgStall:
		return "AlgStall"
	default:
		return "Unknown"
	}
}

func (snap *OccupancySnapshot) addCounts(slotIdx int, states *AlgStateSet) {
	for st := 0; st < numStates; st++ {
		snap.States[slotIdx][st] += states.SizeOfSubset(AlgState(st))
	}
}

func (c *Core) accumulateSnapshot(snap *OccupancySnapshot, slot *EventSlot) {
	snap.addCounts(slot.Index, slot.AlgStates)
	subCounts := make([][numStates]int, len(slot.SubSlots()))
	for i, sub := range slot.SubSlots() {
		for st := 0; st < numStates; st++ {
			subCounts[i][st] = sub.AlgStates.SizeOfSubset(AlgState(st))
			snap.States[slot.Index][st] += subCounts[i][st]
		}
	}
	snap.SubSlotStates[slot.Index] = subCounts
}
