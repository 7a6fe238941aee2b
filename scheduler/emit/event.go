package emit

// Event represents an observability event emitted by the scheduler core.
//
// Events provide detailed insight into scheduling behavior:
//   - Task dispatch and sign-off
//   - Algorithm state transitions
//   - Stalls and fatal errors
//   - Occupancy and performance signals
//
// Events are emitted to an Emitter which can:
//   - Log to stdout/stderr
//   - Send to OpenTelemetry
//   - Store in time-series databases
//   - Trigger alerts
type Event struct {
	// RunID identifies the event (by event number) that this event
	// describes scheduling activity for.
	RunID string

	// Step is a caller-assigned sequence number for ordering events within
	// a run. The scheduler core never sets it, so it's always zero on
	// events the core emits directly; HistoryFilter's MinStep/MaxStep
	// range filtering remains available to emitters or wrappers that stamp
	// it themselves.
	Step int

	// NodeID identifies which algorithm emitted this event.
	// Empty string for slot-level events.
	NodeID string

	// Msg is a human-readable description of the event.
	Msg string

	// Meta contains additional structured data specific to this event.
	// Common keys:
	//   - "precedence_state": a PrintState dump attached to alg_stall events
	//     (when a Show* diagnostic flag is set) and view_disable_would_stall events
	//   - "outcome": the terminal EventOutcome attached to slot_complete
	//   - "error": error details attached to fatal events
	Meta map[string]interface{}
}
