package scheduler

import "time"

// OccupancySnapshot captures per-slot, per-state algorithm populations at a
// single instant. Unlike a flat [slot][state] table, States also folds
// every sub-slot's population into the same per-state total; SubSlotStates
// keeps the breakdown per sub-slot for callers that want it unflattened.
type OccupancySnapshot struct {
	Timestamp time.Time

	// States[slot][state] = combined count across the slot and its
	// sub-slots.
	States [][numStates]int

	// SubSlotStates[slot][subslot][state] = count, unflattened.
	SubSlotStates [][][numStates]int
}

// OccupancyCallback receives snapshots produced by SlotReconciler.iterate
// when sampling is enabled via RecordOccupancy.
type OccupancyCallback func(OccupancySnapshot)
