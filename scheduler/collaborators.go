package scheduler

import "context"

// This file defines the interfaces to every external collaborator the core
// depends on. The core only ever calls through these interfaces; concrete
// implementations (a real precedence service wired to a physics framework, a
// real resource pool, …) live outside this package. scheduler/refimpl and
// scheduler/status ship reference implementations used by this package's own
// tests and by cmd/avalanche-demo.

// AlgorithmNode is the static, startup-time description of one algorithm in
// the precedence graph.
type AlgorithmNode struct {
	AlgIndex int
	AlgName  string
}

// PrecedenceStatus is the result of asking the precedence service to
// propagate a transition through a slot.
type PrecedenceStatus int

const (
	PrecedenceOK PrecedenceStatus = iota
	PrecedenceFailure
)

// PrecedenceCause identifies what triggered a call to Iterate.
type PrecedenceCause struct {
	// Root is true when the cause is the initial kick after a slot reset.
	Root bool
	// AlgIndex is set when the cause is a specific algorithm's sign-off.
	AlgIndex int
	// Rejected is true when the signing-off algorithm ended EVTREJECTED,
	// so the precedence service should short-circuit its downstream branch
	// instead of advancing it to CONTROLREADY/DATAREADY.
	Rejected bool
}

// PrecedenceClient is the thin adapter over the external precedence
// service. It is a pure pass-through: it never owns graph state
// itself, only translates the service's results into AlgStateSet
// transitions applied by its caller (the reconciler and SchedulerCore).
type PrecedenceClient interface {
	// Iterate asks the precedence service to propagate a transition
	// originating at cause through slot's (and its sub-slots') AlgStateSet,
	// advancing INITIAL->CONTROLREADY and CONTROLREADY->DATAREADY as
	// warranted by control- and data-flow.
	Iterate(slot *EventSlot, cause PrecedenceCause) (PrecedenceStatus, error)

	// CFRulesResolved reports whether slot's control-flow root has a
	// determined pass/fail outcome.
	CFRulesResolved(slot *EventSlot) bool

	// Priority returns the static dispatch rank for algName, used for
	// rank-based ordering when optimizationMode is enabled.
	Priority(algName string) int

	// IsBlocking reports whether algName must run on a dedicated OS thread
	// rather than the arena.
	IsBlocking(algName string) bool

	// GetAlgorithmNode resolves a name to its static node description.
	GetAlgorithmNode(name string) (AlgorithmNode, bool)

	// Simulate performs a dry-run precedence evaluation for slot without
	// mutating its AlgStateSet, reporting what would become ready. Used by
	// ScheduleEventView to decide if a view-maker's absence unblocks
	// anything.
	Simulate(slot *EventSlot) (PrecedenceStatus, error)

	// PrintState renders a human-readable dump of slot's control- and
	// data-flow state, used in stall and view-disable diagnostics.
	PrintState(slot *EventSlot) string
}

// AlgorithmInstance is an opaque handle to one instance of an algorithm
// checked out from the resource pool. The core never inspects it.
type AlgorithmInstance interface {
	// Run executes the algorithm body against ctx, returning whether the
	// event passed any internal filter. A non-nil error means the
	// algorithm's execution failed (ERROR state), distinct from a clean
	// filter rejection (ok==false, err==nil).
	Run(ctx context.Context, ec *EventContext) (ok bool, err error)
	Name() string
}

// ResourcePool is the external allocator of algorithm instances.
// Implementations must be internally thread-safe: Acquire/Release are
// called concurrently from the control thread (schedule) and from workers
// (dispatch's final release).
type ResourcePool interface {
	Acquire(algName string) (AlgorithmInstance, bool)
	Release(algName string, instance AlgorithmInstance) error
	FlatAlgList() []AlgorithmNode
}

// EventOutcome is the terminal per-event status recorded by the
// execution-status service.
type EventOutcome int

const (
	OutcomeSuccess EventOutcome = iota
	OutcomeAlgorithmFailure
	OutcomeAlgStall
)

// AlgExecState is the per-(alg,event) outcome recorded by a worker after
// running an algorithm, read back by signoff.
type AlgExecState struct {
	Failed       bool
	FilterPassed bool
}

// ExecutionStatusService is the external status collaborator. The
// reference implementations live in scheduler/status.
type ExecutionStatusService interface {
	// RecordAlgResult stores the outcome of one algorithm's execution for
	// ec, read back via AlgExecState by the control thread's signoff.
	RecordAlgResult(algName string, ec *EventContext, failed, filterPassed bool)

	UpdateEventStatus(failed bool, ec *EventContext)
	EventStatus(ec *EventContext) EventOutcome
	AlgExecState(algName string, ec *EventContext) AlgExecState
	SetEventStatus(kind EventOutcome, ec *EventContext)
}

// WhiteboardService is the external event-store (key/value) collaborator.
// The core only ever asks it how many partitions exist and which one a
// slot should use; algorithm I/O against the store itself is out of scope.
type WhiteboardService interface {
	NumberOfStores() int
	SelectStore(slotIndex int) error
	FreeSlots() int
}

// Task is the unit of work the work arena accepts. TaskDispatch.Run
// implements Task for non-blocking dispatch; Arena implementations
// (scheduler/arena) run Tasks on a bounded goroutine pool.
type Task interface {
	Run()
}

// Arena is the external work-arena collaborator: a thread pool the
// scheduler hands non-blocking TaskSpecs to.
type Arena interface {
	Enqueue(t Task) error
}
