// Package refimpl provides minimal, in-memory reference implementations of
// the scheduler's external collaborators (PrecedenceClient, ResourcePool):
// enough to drive a real Core through a configurable DAG of algorithms
// without any physics framework behind it. cmd/avalanche-demo and this
// package's own tests use it directly; a production deployment would
// replace it with an adapter to a real condition/precedence service.
package refimpl

import (
	"fmt"

	"github.com/avalanche-sched/avalanche/scheduler"
)

// NodeSpec describes one algorithm's static place in the graph at
// construction time.
type NodeSpec struct {
	Name string

	// ControlPreds/DataPreds name this node's control-flow and data-flow
	// predecessors. A node with no predecessors of either kind is an entry
	// point, made CONTROLREADY (and, lacking data predecessors, DATAREADY
	// too) as soon as Iterate is called with a Root cause.
	ControlPreds []string
	DataPreds    []string

	Rank     int
	Blocking bool
}

type node struct {
	NodeSpec
	index        int
	controlPreds []int
	dataPreds    []int
}

// Graph is a fixed, acyclic precedence graph over named algorithms,
// implementing scheduler.PrecedenceClient with AND-join control- and
// data-flow semantics: a node becomes CONTROLREADY once every control
// predecessor has reached a terminal state and none of them were rejected
// or errored; DATAREADY once every data predecessor additionally accepted
// (produced usable output). A node whose control predecessor rejected or
// errored is never advanced — it stays INITIAL for the rest of the event,
// which is how a filter-reject or a failure short-circuits its downstream
// branch.
//
// Graph only evaluates the slot's root AlgStateSet; sub-slots (event
// views) are outside this reference implementation's scope.
type Graph struct {
	nodes  []node
	byName map[string]int
}

// NewGraph builds a Graph from specs, which must be given in an order such
// that every predecessor appears (by name) somewhere in specs.
func NewGraph(specs []NodeSpec) (*Graph, error) {
	g := &Graph{byName: make(map[string]int, len(specs))}
	for i, sp := range specs {
		g.nodes = append(g.nodes, node{NodeSpec: sp, index: i})
		g.byName[sp.Name] = i
	}
	for i := range g.nodes {
		for _, name := range g.nodes[i].ControlPreds {
			idx, ok := g.byName[name]
			if !ok {
				return nil, fmt.Errorf("refimpl: unknown control predecessor %q for %q", name, g.nodes[i].Name)
			}
			g.nodes[i].controlPreds = append(g.nodes[i].controlPreds, idx)
		}
		for _, name := range g.nodes[i].DataPreds {
			idx, ok := g.byName[name]
			if !ok {
				return nil, fmt.Errorf("refimpl: unknown data predecessor %q for %q", name, g.nodes[i].Name)
			}
			g.nodes[i].dataPreds = append(g.nodes[i].dataPreds, idx)
		}
	}
	return g, nil
}

// NewLinearGraph is a convenience constructor for the common case: a
// straight-line chain of algorithms, each depending on the one before it
// for both control and data flow.
func NewLinearGraph(names ...string) (*Graph, error) {
	specs := make([]NodeSpec, len(names))
	for i, n := range names {
		sp := NodeSpec{Name: n, Rank: len(names) - i}
		if i > 0 {
			sp.ControlPreds = []string{names[i-1]}
			sp.DataPreds = []string{names[i-1]}
		}
		specs[i] = sp
	}
	return NewGraph(specs)
}

func (g *Graph) terminal(st scheduler.AlgState) bool {
	return st == scheduler.EvtAccepted || st == scheduler.EvtRejected || st == scheduler.Error
}

// Iterate implements scheduler.PrecedenceClient.
func (g *Graph) Iterate(slot *scheduler.EventSlot, _ scheduler.PrecedenceCause) (scheduler.PrecedenceStatus, error) {
	states := slot.AlgStates
	// Fixed-point: a node's new readiness can make its successors ready in
	// the same pass, so keep sweeping until nothing changes.
	for changed := true; changed; {
		changed = false
		for i := range g.nodes {
			switch states.StateOf(i) {
			case scheduler.Initial:
				if g.allAcceptedTerminal(states, g.nodes[i].controlPreds) {
					if err := states.Set(i, scheduler.ControlReady); err != nil {
						return scheduler.PrecedenceFailure, err
					}
					changed = true
				}
			case scheduler.ControlReady:
				if g.allAcceptedTerminal(states, g.nodes[i].dataPreds) {
					if err := states.Set(i, scheduler.DataReady); err != nil {
						return scheduler.PrecedenceFailure, err
					}
					changed = true
				}
			}
		}
	}
	return scheduler.PrecedenceOK, nil
}

// allAcceptedTerminal reports whether every predecessor index has reached
// EvtAccepted. Predecessors that rejected or errored make this false
// forever (their dependent never advances, which is the intended
// short-circuit), and an unfinished predecessor also makes it false for now.
func (g *Graph) allAcceptedTerminal(states *scheduler.AlgStateSet, preds []int) bool {
	for _, p := range preds {
		if states.StateOf(p) != scheduler.EvtAccepted {
			return false
		}
	}
	return true
}

// settled reports whether node i's control-flow outcome for this event is
// fully determined: either it has reached a terminal state, or it never
// will because an ancestor already rejected or errored.
func (g *Graph) settled(states *scheduler.AlgStateSet, i int) bool {
	st := states.StateOf(i)
	if g.terminal(st) {
		return true
	}
	if st != scheduler.Initial {
		// CONTROLREADY, DATAREADY, SCHEDULED, RESOURCELESS: still running.
		return false
	}
	if len(g.nodes[i].controlPreds) == 0 {
		return false
	}
	sawBlocked := false
	for _, p := range g.nodes[i].controlPreds {
		if !g.settled(states, p) {
			return false
		}
		if states.StateOf(p) != scheduler.EvtAccepted {
			sawBlocked = true
		}
	}
	return sawBlocked
}

// CFRulesResolved implements scheduler.PrecedenceClient: true once every
// node's control-flow fate is determined (see settled).
func (g *Graph) CFRulesResolved(slot *scheduler.EventSlot) bool {
	states := slot.AlgStates
	for i := range g.nodes {
		if !g.settled(states, i) {
			return false
		}
	}
	return true
}

// Priority implements scheduler.PrecedenceClient.
func (g *Graph) Priority(algName string) int {
	if i, ok := g.byName[algName]; ok {
		return g.nodes[i].Rank
	}
	return 0
}

// IsBlocking implements scheduler.PrecedenceClient.
func (g *Graph) IsBlocking(algName string) bool {
	if i, ok := g.byName[algName]; ok {
		return g.nodes[i].Blocking
	}
	return false
}

// GetAlgorithmNode implements scheduler.PrecedenceClient.
func (g *Graph) GetAlgorithmNode(name string) (scheduler.AlgorithmNode, bool) {
	i, ok := g.byName[name]
	if !ok {
		return scheduler.AlgorithmNode{}, false
	}
	return scheduler.AlgorithmNode{AlgIndex: i, AlgName: name}, true
}

// Simulate implements scheduler.PrecedenceClient by running Iterate against
// a scratch copy of slot's AlgStateSet, leaving slot itself untouched.
func (g *Graph) Simulate(slot *scheduler.EventSlot) (scheduler.PrecedenceStatus, error) {
	scratch := scheduler.NewAlgStateSet(len(g.nodes))
	for i := range g.nodes {
		if err := copyState(scratch, i, slot.AlgStates.StateOf(i)); err != nil {
			return scheduler.PrecedenceFailure, err
		}
	}
	scratchSlot := scheduler.NewEventSlot(slot.Index, len(g.nodes))
	scratchSlot.AlgStates = scratch
	return g.Iterate(scratchSlot, scheduler.PrecedenceCause{})
}

// copyState walks scratch's algorithm i from INITIAL to target by only
// legal transitions, since AlgStateSet.Set validates against the FSM table
// and target may be several hops from INITIAL.
func copyState(scratch *scheduler.AlgStateSet, i int, target scheduler.AlgState) error {
	path := map[scheduler.AlgState][]scheduler.AlgState{
		scheduler.ControlReady: {scheduler.ControlReady},
		scheduler.DataReady:    {scheduler.ControlReady, scheduler.DataReady},
		scheduler.Scheduled:    {scheduler.ControlReady, scheduler.DataReady, scheduler.Scheduled},
		scheduler.Resourceless: {scheduler.ControlReady, scheduler.DataReady, scheduler.Resourceless},
		scheduler.EvtAccepted:  {scheduler.ControlReady, scheduler.DataReady, scheduler.Scheduled, scheduler.EvtAccepted},
		scheduler.EvtRejected:  {scheduler.ControlReady, scheduler.DataReady, scheduler.Scheduled, scheduler.EvtRejected},
		scheduler.Error:        {scheduler.ControlReady, scheduler.DataReady, scheduler.Scheduled, scheduler.Error},
	}[target]
	for _, st := range path {
		if err := scratch.Set(i, st); err != nil {
			return err
		}
	}
	return nil
}

// PrintState implements scheduler.PrecedenceClient with a compact
// per-algorithm state dump.
func (g *Graph) PrintState(slot *scheduler.EventSlot) string {
	out := ""
	for i := range g.nodes {
		if i > 0 {
			out += ", "
		}
		out += fmt.Sprintf("%s=%s", g.nodes[i].Name, slot.AlgStates.StateOf(i))
	}
	return out
}
