package scheduler

import "sync/atomic"

// EventContext identifies one event as it flows through a slot: the slot it
// occupies, the event number assigned by the selector, and the epoch
// (incremented every time a slot is reused, so stale closures captured by a
// prior occupant can detect they no longer own the slot).
type EventContext struct {
	SlotIndex int
	EventNum  int64
	Epoch     uint64
}

// EventSlot owns one in-flight event's state: its context, its root
// AlgStateSet, any sub-slots produced by a view-maker node, and the
// completion flag. At most one thread — the control thread — ever mutates
// algsStates, allSubSlots, complete or eventContext.
type EventSlot struct {
	Index int

	ctx       *EventContext
	AlgStates *AlgStateSet

	// allSubSlots holds event views produced by a designated view-maker
	// node. Each sub-slot shares this slot's event-store partition but owns
	// its own AlgStateSet.
	allSubSlots []*SubSlot

	// disabledViewNodes records view-maker nodes that have been told they
	// produce no views for the current event, so downstream waiters can
	// proceed instead of blocking on a view that will never arrive.
	disabledViewNodes map[string]bool

	complete atomic.Bool
}

// SubSlot is a child slot created by a view-maker node for a subset of the
// event's data. It is itself slot-lite: its own context and AlgStateSet,
// sharing the parent's event-store partition.
type SubSlot struct {
	Ctx        *EventContext
	AlgStates  *AlgStateSet
	EntryPoint string // the control-flow node that created this sub-slot
}

// NewEventSlot allocates a slot for numAlgs algorithms.
func NewEventSlot(index, numAlgs int) *EventSlot {
	s := &EventSlot{
		Index:             index,
		AlgStates:         NewAlgStateSet(numAlgs),
		disabledViewNodes: make(map[string]bool),
	}
	s.complete.Store(true)
	return s
}

// Context returns the slot's current event context, or nil if none is
// installed (the slot is idle/complete).
func (s *EventSlot) Context() *EventContext { return s.ctx }

// Complete reports whether the slot has finished its current event.
func (s *EventSlot) Complete() bool { return s.complete.Load() }

// tryClaim atomically flips the slot from complete to occupied, returning
// false if it was already occupied. Concurrent PushNewEvent callers race to
// claim slots by index; only a CAS (rather than a plain Complete() check)
// keeps two callers from picking the same slot.
func (s *EventSlot) tryClaim() bool {
	return s.complete.CompareAndSwap(true, false)
}

// Reset clears the slot back to INITIAL, installs ctx, drops all sub-slots
// and disabled-view markers, and marks the slot incomplete. Only the
// control thread calls this.
func (s *EventSlot) Reset(ctx *EventContext) {
	s.AlgStates.Reset()
	s.allSubSlots = s.allSubSlots[:0]
	for k := range s.disabledViewNodes {
		delete(s.disabledViewNodes, k)
	}
	s.ctx = ctx
	s.complete.Store(false)
}

// markComplete transitions the slot into complete==true and releases the
// context reference: complete==true implies eventContext==nil or the
// context has already been handed to the finished queue.
func (s *EventSlot) markComplete() {
	s.ctx = nil
	s.complete.Store(true)
}

// AddSubSlot appends a new sub-slot for the given context and the
// view-maker node name that produced it. It fails with ErrNestedSubSlot if
// ctx itself looks like a sub-slot context (callers must not nest views).
func (s *EventSlot) AddSubSlot(numAlgs int, nodeName string, ctx *EventContext, nested bool) (*SubSlot, error) {
	if nested {
		return nil, ErrNestedSubSlot
	}
	sub := &SubSlot{
		Ctx:        ctx,
		AlgStates:  NewAlgStateSet(numAlgs),
		EntryPoint: nodeName,
	}
	s.allSubSlots = append(s.allSubSlots, sub)
	return sub, nil
}

// DisableSubSlots marks the view-maker node nodeName as producing no views
// for the current event, so downstream consumers waiting on it can proceed.
func (s *EventSlot) DisableSubSlots(nodeName string) {
	s.disabledViewNodes[nodeName] = true
}

// ViewDisabled reports whether nodeName was disabled via DisableSubSlots for
// the slot's current event.
func (s *EventSlot) ViewDisabled(nodeName string) bool {
	return s.disabledViewNodes[nodeName]
}

// SubSlots returns the slot's current sub-slots. Only ever read or mutated
// from the control thread, so no copy is needed.
func (s *EventSlot) SubSlots() []*SubSlot { return s.allSubSlots }

// ContainsAnyIncludingSubSlots reports whether the root AlgStateSet or any
// sub-slot's AlgStateSet contains an algorithm in one of the given states.
func (s *EventSlot) ContainsAnyIncludingSubSlots(states ...AlgState) bool {
	if s.AlgStates.ContainsAny(states...) {
		return true
	}
	for _, sub := range s.allSubSlots {
		if sub.AlgStates.ContainsAny(states...) {
			return true
		}
	}
	return false
}
