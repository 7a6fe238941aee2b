package refimpl

import (
	"context"
	"sync"

	"github.com/avalanche-sched/avalanche/scheduler"
)

// Body is the user-supplied behavior of one algorithm instance.
type Body func(ctx context.Context, ec *scheduler.EventContext) (ok bool, err error)

// instance adapts a Body into scheduler.AlgorithmInstance.
type instance struct {
	name string
	body Body
}

func (i *instance) Run(ctx context.Context, ec *scheduler.EventContext) (bool, error) {
	return i.body(ctx, ec)
}

func (i *instance) Name() string { return i.name }

// Pool is a reference scheduler.ResourcePool: a fixed number of instances
// per algorithm, checked out on Acquire and returned on Release. Instances
// are stateless wrappers over the registered Body, so copiesPerAlg beyond 1
// only matters for testing concurrent-instance accounting, not behavior.
type Pool struct {
	mu        sync.Mutex
	available map[string][]*instance
	nodes     []scheduler.AlgorithmNode
	names     map[string]bool
}

// NewPool returns an empty Pool; Register adds each algorithm's instances.
func NewPool() *Pool {
	return &Pool{
		available: make(map[string][]*instance),
		names:     make(map[string]bool),
	}
}

// Register adds copiesPerAlg instances of algName backed by body to the
// pool. Register must be called for every node in the precedence graph
// before the Core using this Pool is Initialize()'d.
func (p *Pool) Register(algIndex int, algName string, body Body, copiesPerAlg int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if copiesPerAlg <= 0 {
		copiesPerAlg = 1
	}
	for i := 0; i < copiesPerAlg; i++ {
		p.available[algName] = append(p.available[algName], &instance{name: algName, body: body})
	}
	if !p.names[algName] {
		p.names[algName] = true
		p.nodes = append(p.nodes, scheduler.AlgorithmNode{AlgIndex: algIndex, AlgName: algName})
	}
}

// Acquire implements scheduler.ResourcePool.
func (p *Pool) Acquire(algName string) (scheduler.AlgorithmInstance, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	list := p.available[algName]
	if len(list) == 0 {
		return nil, false
	}
	last := len(list) - 1
	inst := list[last]
	p.available[algName] = list[:last]
	return inst, true
}

// Release implements scheduler.ResourcePool.
func (p *Pool) Release(algName string, inst scheduler.AlgorithmInstance) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	concrete, ok := inst.(*instance)
	if !ok {
		return nil
	}
	p.available[algName] = append(p.available[algName], concrete)
	return nil
}

// FlatAlgList implements scheduler.ResourcePool.
func (p *Pool) FlatAlgList() []scheduler.AlgorithmNode {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]scheduler.AlgorithmNode, len(p.nodes))
	copy(out, p.nodes)
	return out
}
