// Package status provides execution-status service implementations: the
// external collaborator a Core reads back through after an algorithm
// finishes (AlgExecState) and the per-event terminal outcome
// (EventOutcome). MemoryService is the in-process reference backend;
// MySQLService and SQLiteService persist the same records to a relational
// table, using a small, domain-specific schema (no checkpoints, no replay,
// no idempotency keys — this is an audit ledger of algorithm outcomes, not
// resumable workflow state).
package status

import (
	"sync"

	"github.com/avalanche-sched/avalanche/scheduler"
)

type eventKey struct {
	slot  int
	event int64
	epoch uint64
}

func keyOf(ec *scheduler.EventContext) eventKey {
	return eventKey{slot: ec.SlotIndex, event: ec.EventNum, epoch: ec.Epoch}
}

type algKey struct {
	eventKey
	alg string
}

// MemoryService is an in-process ExecutionStatusService backed by two
// plain maps protected by a mutex. It is the reference implementation used
// by this package's own tests, the scheduler package's tests, and
// cmd/avalanche-demo.
type MemoryService struct {
	mu        sync.RWMutex
	algStates map[algKey]scheduler.AlgExecState
	events    map[eventKey]scheduler.EventOutcome
}

// NewMemoryService returns an empty MemoryService.
func NewMemoryService() *MemoryService {
	return &MemoryService{
		algStates: make(map[algKey]scheduler.AlgExecState),
		events:    make(map[eventKey]scheduler.EventOutcome),
	}
}

// RecordAlgResult implements scheduler.ExecutionStatusService.
func (m *MemoryService) RecordAlgResult(algName string, ec *scheduler.EventContext, failed, filterPassed bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.algStates[algKey{keyOf(ec), algName}] = scheduler.AlgExecState{Failed: failed, FilterPassed: filterPassed}
}

// UpdateEventStatus implements scheduler.ExecutionStatusService. It only
// ever narrows an event toward failure: a true failed never gets
// overwritten back to success by a later call.
func (m *MemoryService) UpdateEventStatus(failed bool, ec *scheduler.EventContext) {
	if !failed {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	k := keyOf(ec)
	if _, exists := m.events[k]; !exists {
		m.events[k] = scheduler.OutcomeAlgorithmFailure
	}
}

// EventStatus implements scheduler.ExecutionStatusService, defaulting to
// Success when nothing has recorded otherwise.
func (m *MemoryService) EventStatus(ec *scheduler.EventContext) scheduler.EventOutcome {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if o, ok := m.events[keyOf(ec)]; ok {
		return o
	}
	return scheduler.OutcomeSuccess
}

// AlgExecState implements scheduler.ExecutionStatusService.
func (m *MemoryService) AlgExecState(algName string, ec *scheduler.EventContext) scheduler.AlgExecState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.algStates[algKey{keyOf(ec), algName}]
}

// SetEventStatus implements scheduler.ExecutionStatusService, overwriting
// whatever outcome (if any) was previously recorded for ec.
func (m *MemoryService) SetEventStatus(kind scheduler.EventOutcome, ec *scheduler.EventContext) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events[keyOf(ec)] = kind
}

// Reset discards every recorded record by replacing both maps. Useful
// between test runs and between demo replays.
func (m *MemoryService) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.algStates = make(map[algKey]scheduler.AlgExecState)
	m.events = make(map[eventKey]scheduler.EventOutcome)
}
