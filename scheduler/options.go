package scheduler

import "time"

// Config holds a Core's static, read-at-initialize configuration.
//
// MaxEventsInFlight is normally derived from the event store's number of
// partitions (whiteboard stores); it is exposed here directly since the
// event store is an external collaborator the core only consumes through
// WhiteboardService.
type Config struct {
	MaxEventsInFlight int

	// ThreadPoolSize sizes the work arena. -100 selects an in-thread mode
	// that bypasses the arena and runs algorithms synchronously on the
	// control thread (useful for tests and single-threaded debugging).
	ThreadPoolSize int

	// OptimizationMode, when non-empty, enables rank-based dispatch
	// ordering (SlotReconciler sorts DATAREADY algorithms by
	// PrecedenceClient.Priority before scheduling). Empty disables it.
	OptimizationMode string

	EnablePreemptiveBlockingTasks bool
	MaxBlockingAlgosInFlight      int

	// CheckDeps, when true, makes Initialize fail if the resource pool
	// registers an algorithm the precedence graph doesn't know about.
	CheckDeps bool

	ShowControlFlow   bool
	ShowDataFlow      bool
	ShowDataDeps      bool

	// SimulateExecution, when true, makes ScheduleEventView dry-run the
	// precedence graph via PrecedenceClient.Simulate before disabling a
	// view-maker's sub-slots, logging a diagnostic if the disablement would
	// leave the event unable to progress.
	SimulateExecution bool

	// SnapshotInterval is the minimum wall-clock gap between occupancy
	// snapshots. A negative value disables sampling.
	SnapshotInterval time.Duration
}

// DefaultConfig returns the configuration applied when an option is left
// unset.
func DefaultConfig() Config {
	return Config{
		MaxEventsInFlight:        1,
		ThreadPoolSize:           0,
		MaxBlockingAlgosInFlight: 1,
		SnapshotInterval:         -1,
	}
}

// Option is a functional option for configuring a Core at construction.
type Option func(*Config)

// WithMaxEventsInFlight sets the number of reusable event slots.
func WithMaxEventsInFlight(n int) Option {
	return func(c *Config) { c.MaxEventsInFlight = n }
}

// WithThreadPoolSize configures the arena size; -100 selects in-thread mode.
func WithThreadPoolSize(n int) Option {
	return func(c *Config) { c.ThreadPoolSize = n }
}

// WithOptimizationMode enables rank-based dispatch ordering when mode is
// non-empty.
func WithOptimizationMode(mode string) Option {
	return func(c *Config) { c.OptimizationMode = mode }
}

// WithPreemptiveBlockingTasks toggles whether algorithms flagged blocking
// run on detached OS threads rather than the arena.
func WithPreemptiveBlockingTasks(enabled bool) Option {
	return func(c *Config) { c.EnablePreemptiveBlockingTasks = enabled }
}

// WithMaxBlockingAlgosInFlight caps concurrently running blocking tasks.
func WithMaxBlockingAlgosInFlight(n int) Option {
	return func(c *Config) { c.MaxBlockingAlgosInFlight = n }
}

// WithSnapshotInterval sets the minimum gap between occupancy snapshots.
// A negative duration disables sampling.
func WithSnapshotInterval(d time.Duration) Option {
	return func(c *Config) { c.SnapshotInterval = d }
}

// WithDiagnostics toggles the showControlFlow/showDataFlow/showDataDeps
// diagnostic flags; when any is set, the alg_stall event carries a
// PrintState dump of the stalled slot.
func WithDiagnostics(controlFlow, dataFlow, dataDeps bool) Option {
	return func(c *Config) {
		c.ShowControlFlow = controlFlow
		c.ShowDataFlow = dataFlow
		c.ShowDataDeps = dataDeps
	}
}

// WithCheckDeps makes Initialize validate that every algorithm the resource
// pool registers is also known to the precedence graph.
func WithCheckDeps(enabled bool) Option {
	return func(c *Config) { c.CheckDeps = enabled }
}

// WithSimulateExecution makes ScheduleEventView dry-run the precedence graph
// before disabling a view-maker's sub-slots.
func WithSimulateExecution(enabled bool) Option {
	return func(c *Config) { c.SimulateExecution = enabled }
}
