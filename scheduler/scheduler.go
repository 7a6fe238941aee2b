package scheduler

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/avalanche-sched/avalanche/scheduler/arena"
	"github.com/avalanche-sched/avalanche/scheduler/emit"
)

// runStatus is the control thread's lifecycle state.
type runStatus int32

const (
	statusOffline runStatus = iota
	statusActive
	statusInactive
	statusFailure
)

// finishedQueue is the bounded MPSC->SPSC handoff from the control thread to
// PopFinishedEvent callers: many control-thread completions in, one (or
// more) consumer goroutines calling PopFinishedEvent out.
type finishedQueue struct {
	mu   sync.Mutex
	cond *sync.Cond
	buf  []*EventContext
}

func newFinishedQueue() *finishedQueue {
	q := &finishedQueue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

func (q *finishedQueue) push(ec *EventContext) {
	q.mu.Lock()
	q.buf = append(q.buf, ec)
	q.mu.Unlock()
	q.cond.Signal()
}

func (q *finishedQueue) pop() *EventContext {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.buf) == 0 {
		q.cond.Wait()
	}
	ec := q.buf[0]
	q.buf = q.buf[1:]
	return ec
}

func (q *finishedQueue) tryPop() (*EventContext, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.buf) == 0 {
		return nil, false
	}
	ec := q.buf[0]
	q.buf = q.buf[1:]
	return ec, true
}

func (q *finishedQueue) wake() { q.cond.Broadcast() }

// Core is the avalanche scheduler core: the top-level service. It
// owns lifecycle (Initialize/Deactivate/Finalize), per-slot ingress
// (PushNewEvent), egress (PopFinishedEvent), and the control-thread loop.
type Core struct {
	cfg Config

	slots    []*EventSlot
	algNames []string
	algIndex map[string]int

	precedence PrecedenceClient
	pool       ResourcePool
	status     ExecutionStatusService
	whiteboard WhiteboardService
	arenaImpl  Arena

	emitter emit.Emitter
	metrics *PrometheusMetrics

	actions  *ActionQueue
	finished *finishedQueue

	freeSlots atomic.Int32

	retryQueue []TaskSpec

	algosInFlight     atomic.Int32
	blockingInFlight  atomic.Int32
	needsUpdate       atomic.Bool

	status32 atomic.Int32 // runStatus

	lastErrMu sync.Mutex
	lastErr   *SchedulerError

	lastSnapshot time.Time
	occupancyCB  OccupancyCallback
	occupancyMu  sync.Mutex

	activeEpoch atomic.Uint64
}

// New constructs a Core from its collaborators and configuration. It does
// not start the control thread — call Initialize for that.
func New(
	precedence PrecedenceClient,
	pool ResourcePool,
	status ExecutionStatusService,
	whiteboard WhiteboardService,
	emitter emit.Emitter,
	opts ...Option,
) *Core {
	cfg := DefaultConfig()
	for _, o := range opts {
		o(&cfg)
	}
	if emitter == nil {
		emitter = emit.NewNullEmitter()
	}

	c := &Core{
		cfg:        cfg,
		precedence: precedence,
		pool:       pool,
		status:     status,
		whiteboard: whiteboard,
		emitter:    emitter,
		actions:    NewActionQueue(),
		finished:   newFinishedQueue(),
		algIndex:   make(map[string]int),
	}
	return c
}

// WithMetricsCollector attaches Prometheus metrics collection.
func (c *Core) WithMetricsCollector(m *PrometheusMetrics) *Core {
	c.metrics = m
	return c
}

func (c *Core) onThreadLocalInit() {
	// Reserved hook: a real deployment would register per-worker-thread
	// initialization here (e.g. algorithm library thread-local context).
	// The reference collaborators in this repo need none.
}

func (c *Core) getStatus() runStatus { return runStatus(c.status32.Load()) }
func (c *Core) setStatus(s runStatus) { c.status32.Store(int32(s)) }

// Initialize resolves collaborators, builds the algorithm-index table from
// the resource pool's flat algorithm list, constructs
// MaxEventsInFlight event slots, and starts the control thread, blocking
// until it reaches ACTIVE (or FAILURE).
func (c *Core) Initialize() error {
	nodes := c.pool.FlatAlgList()
	c.algNames = make([]string, len(nodes))
	for _, n := range nodes {
		if n.AlgIndex >= len(c.algNames) {
			grown := make([]string, n.AlgIndex+1)
			copy(grown, c.algNames)
			c.algNames = grown
		}
		c.algNames[n.AlgIndex] = n.AlgName
		c.algIndex[n.AlgName] = n.AlgIndex
	}
	numAlgs := len(c.algNames)

	if c.cfg.CheckDeps {
		for _, name := range c.algNames {
			if _, ok := c.precedence.GetAlgorithmNode(name); !ok {
				return &SchedulerError{
					Code:    "ERR_CHECKDEPS",
					Message: "resource pool registers " + name + ", but the precedence graph has no such node",
				}
			}
		}
	}

	maxSlots := c.cfg.MaxEventsInFlight
	if maxSlots <= 0 {
		maxSlots = 1
	}
	if avail := c.whiteboard.NumberOfStores(); avail > 0 && maxSlots > avail {
		maxSlots = avail
	}
	c.slots = make([]*EventSlot, maxSlots)
	for i := range c.slots {
		c.slots[i] = NewEventSlot(i, numAlgs)
	}
	c.freeSlots.Store(int32(maxSlots))

	if c.cfg.ThreadPoolSize == -100 {
		c.arenaImpl = &inlineArenaAdapter{arena.NewInlinePool(c.onThreadLocalInit)}
	} else {
		size := c.cfg.ThreadPoolSize
		if size <= 0 {
			size = runtime.GOMAXPROCS(0)
		}
		c.arenaImpl = &poolArenaAdapter{arena.NewPool(size, c.onThreadLocalInit)}
	}

	started := make(chan error, 1)
	go c.controlLoop(started)
	return <-started
}

func (c *Core) algName(idx int) string {
	if idx >= 0 && idx < len(c.algNames) {
		return c.algNames[idx]
	}
	return fmt.Sprintf("alg#%d", idx)
}

// controlLoop is the control thread:
//
//	while active or queue not empty:
//	    action = queue.pop()
//	    action()
//	    if needsUpdate and queue.empty():
//	        iterate()
func (c *Core) controlLoop(started chan<- error) {
	c.setStatus(statusActive)
	started <- nil

	for {
		st := c.getStatus()
		if st != statusActive && c.actions.Empty() {
			return
		}

		action, err := c.actions.Pop()
		if err != nil {
			return
		}

		if err := action(); err != nil {
			c.fail(err)
		}

		if c.needsUpdate.Load() && c.actions.Empty() {
			c.iterate()
		}
	}
}

func (c *Core) fail(err error) {
	c.setStatus(statusFailure)
	se := &SchedulerError{Code: "ERR_FATAL", Message: "control-thread action failed", Cause: fmt.Errorf("%w: %w", ErrFatal, err)}
	c.lastErrMu.Lock()
	c.lastErr = se
	c.lastErrMu.Unlock()
	c.emitter.Emit(emit.Event{Msg: "fatal", Meta: map[string]interface{}{"error": se.Error()}})
}

// LastError returns the fatal error that stopped the control thread, or nil
// if the core has never failed. The returned error's Unwrap chain reaches
// both the ErrFatal sentinel and the original action error via
// errors.Is/errors.As.
func (c *Core) LastError() error {
	c.lastErrMu.Lock()
	defer c.lastErrMu.Unlock()
	if c.lastErr == nil {
		return nil
	}
	return c.lastErr
}

// Deactivate drains the action queue of any pending entries without
// executing them, then enqueues a final closure that flips status to
// INACTIVE. The control thread exits once that closure runs and the queue
// stays empty.
func (c *Core) Deactivate() {
	c.actions.Drain()
	c.actions.Push(func() error {
		c.setStatus(statusInactive)
		c.finished.wake()
		return nil
	})
}

// Finalize joins the control thread by blocking until status leaves ACTIVE.
// Since Go has no thread handles to join, this polls the status with a
// short backoff; real deployments with a dedicated OS thread would instead
// join it directly.
func (c *Core) Finalize() {
	for c.getStatus() == statusActive {
		time.Sleep(time.Millisecond)
	}
}

// FreeSlots returns the number of event slots currently available for a new
// event.
func (c *Core) FreeSlots() int { return int(c.freeSlots.Load()) }

// PushNewEvent ingresses one event context. It fails immediately
// with ErrInactive once the control thread has left ACTIVE, and with
// ErrNoCapacity if no free slot exists; otherwise it decrements
// freeSlots (the only place that happens) and enqueues an action that
// resets the target slot and kicks off precedence evaluation.
func (c *Core) PushNewEvent(eventNum int64) error {
	if c.getStatus() != statusActive {
		return ErrInactive
	}
	if c.freeSlots.Load() == 0 {
		if c.metrics != nil {
			c.metrics.IncrementBackpressure()
		}
		return ErrNoCapacity
	}
	slotIdx := c.claimSlot()
	if slotIdx < 0 {
		if c.metrics != nil {
			c.metrics.IncrementBackpressure()
		}
		return ErrNoCapacity
	}
	c.freeSlots.Add(-1)
	if c.metrics != nil {
		c.metrics.UpdateFreeSlots(int(c.freeSlots.Load()))
	}

	epoch := c.activeEpoch.Add(1)
	ctx := &EventContext{SlotIndex: slotIdx, EventNum: eventNum, Epoch: epoch}

	c.actions.Push(func() error {
		slot := c.slots[slotIdx]
		// claimSlot's CAS already keeps two PushNewEvent callers from
		// picking the same slot; this is a defensive check that the slot
		// markComplete released (ctx == nil) rather than one still
		// mid-event, since Reset below would otherwise silently drop a
		// context that was never handed to the finished queue.
		if slot.Context() != nil {
			return ErrSlotNotComplete
		}
		if err := c.whiteboard.SelectStore(slotIdx); err != nil {
			return err
		}
		slot.Reset(ctx)
		if _, err := c.precedence.Iterate(slot, PrecedenceCause{Root: true}); err != nil {
			return err
		}
		c.needsUpdate.Store(true)
		c.iterate()
		return nil
	})
	return nil
}

// claimSlot CASes the first free slot it finds from complete to occupied.
// The CAS (rather than a plain Complete() check) is what keeps two
// concurrent PushNewEvent callers from picking the same index; the scan
// itself is O(maxSlots), fine at the slot-pool scale this core targets.
func (c *Core) claimSlot() int {
	for _, s := range c.slots {
		if s.tryClaim() {
			return s.Index
		}
	}
	return -1
}

// PushNewEvents applies PushNewEvent to each event number in order, stopping
// at the first failure and returning it.
func (c *Core) PushNewEvents(eventNums []int64) error {
	for _, n := range eventNums {
		if err := c.PushNewEvent(n); err != nil {
			return err
		}
	}
	return nil
}

// PopFinishedEvent blocks for the next finished event context. It fails
// immediately if freeSlots == maxEventsInFlight (nothing in flight) or the
// scheduler is INACTIVE.
func (c *Core) PopFinishedEvent() (*EventContext, error) {
	if int(c.freeSlots.Load()) == len(c.slots) || c.getStatus() == statusInactive {
		return nil, ErrInactive
	}
	ec := c.finished.pop()
	if ec == nil {
		return nil, ErrInactive
	}
	c.freeSlots.Add(1)
	return ec, nil
}

// TryPopFinishedEvent is the non-blocking variant of PopFinishedEvent.
func (c *Core) TryPopFinishedEvent() (*EventContext, error) {
	ec, ok := c.finished.tryPop()
	if !ok {
		return nil, ErrEmpty
	}
	c.freeSlots.Add(1)
	return ec, nil
}

// ScheduleEventView enqueues an action that either appends a sub-slot to
// the source slot or, if subCtx is nil, disables the view-maker node so
// downstream waiters can proceed.
func (c *Core) ScheduleEventView(sourceSlotIndex int, nodeName string, subCtx *EventContext, nested bool) error {
	if nested {
		return ErrNestedSubSlot
	}
	c.actions.Push(func() error {
		slot := c.slots[sourceSlotIndex]
		if subCtx == nil {
			if c.cfg.SimulateExecution {
				if status, err := c.precedence.Simulate(slot); err != nil {
					return err
				} else if status == PrecedenceFailure {
					c.emitter.Emit(emit.Event{
						NodeID: nodeName,
						Msg:    "view_disable_would_stall",
						Meta:   map[string]interface{}{"precedence_state": c.precedence.PrintState(slot)},
					})
				}
			}
			slot.DisableSubSlots(nodeName)
			return nil
		}
		_, err := slot.AddSubSlot(len(c.algNames), nodeName, subCtx, false)
		return err
	})
	return nil
}

// RecordOccupancy installs (or disables, if cb is nil) the occupancy
// sampling callback used by iterate().
func (c *Core) RecordOccupancy(cb OccupancyCallback) {
	c.actions.Push(func() error {
		c.occupancyMu.Lock()
		c.occupancyCB = cb
		c.occupancyMu.Unlock()
		return nil
	})
}

// schedule dispatches one DATAREADY (or retried RESOURCELESS) algorithm;
// called only from the control thread (from iterate's per-slot loop or its
// retry-queue drain).
func (c *Core) schedule(ts TaskSpec) error {
	if ts.Blocking && int(c.blockingInFlight.Load()) >= c.cfg.MaxBlockingAlgosInFlight {
		c.retryQueue = append(c.retryQueue, ts)
		return nil
	}

	inst, ok := c.pool.Acquire(ts.AlgName)
	if !ok {
		slot := c.slots[ts.SlotIndex]
		if err := ts.algStates(slot).Set(ts.AlgIndex, Resourceless); err != nil {
			return err
		}
		c.retryQueue = append(c.retryQueue, ts)
		if c.metrics != nil {
			c.metrics.IncrementRetries()
		}
		return nil
	}
	ts.AlgPtr = inst

	slot := c.slots[ts.SlotIndex]
	states := ts.algStates(slot)
	// A retried algorithm is RESOURCELESS, and the FSM only lets it reach
	// SCHEDULED by way of DATAREADY.
	if states.StateOf(ts.AlgIndex) == Resourceless {
		if err := states.Set(ts.AlgIndex, DataReady); err != nil {
			return err
		}
	}
	if err := states.Set(ts.AlgIndex, Scheduled); err != nil {
		return err
	}

	dispatch := &TaskDispatch{core: c, spec: ts}
	c.emitter.Emit(emit.Event{NodeID: ts.AlgName, Msg: "task_scheduled"})

	if ts.Blocking {
		c.blockingInFlight.Add(1)
		go func() {
			defer c.blockingInFlight.Add(-1)
			dispatch.Run()
		}()
		return nil
	}

	c.algosInFlight.Add(1)
	if err := c.arenaImpl.Enqueue(dispatch); err != nil {
		c.algosInFlight.Add(-1)
		return err
	}
	return nil
}

// signoff is the control-thread action that follows a worker's completion.
// It is invoked via a queued Action posted by TaskDispatch.Run.
func (c *Core) signoff(r signoffResult) error {
	if !r.spec.Blocking {
		c.algosInFlight.Add(-1)
	}

	slot := c.slots[r.spec.SlotIndex]
	states := r.spec.algStates(slot)

	execState := c.status.AlgExecState(r.spec.AlgName, r.spec.ContextPtr)

	var newState AlgState
	switch {
	case execState.Failed:
		newState = Error
	case execState.FilterPassed:
		newState = EvtAccepted
	default:
		newState = EvtRejected
	}

	if err := states.Set(r.spec.AlgIndex, newState); err != nil {
		return err
	}

	c.emitter.Emit(emit.Event{
		NodeID: r.spec.AlgName,
		Msg:    "signoff",
		Meta:   map[string]interface{}{"state": newState.String()},
	})

	cause := PrecedenceCause{AlgIndex: r.spec.AlgIndex, Rejected: newState == EvtRejected}
	if _, err := c.precedence.Iterate(slot, cause); err != nil {
		return err
	}

	c.needsUpdate.Store(true)
	return nil
}

// inlineArenaAdapter / poolArenaAdapter bridge scheduler.Arena (which takes
// a scheduler.Task) to the arena package's own Task type. Both are the
// same single-method shape but Go requires identical named types to satisfy
// an interface method signature, hence the thin wrappers.
type poolArenaAdapter struct{ p *arena.Pool }

func (a *poolArenaAdapter) Enqueue(t Task) error { return a.p.Enqueue(t) }

type inlineArenaAdapter struct{ p *arena.InlinePool }

func (a *inlineArenaAdapter) Enqueue(t Task) error { return a.p.Enqueue(t) }
