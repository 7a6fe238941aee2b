// Package main demonstrates the avalanche scheduler core against a small
// three-algorithm linear graph running entirely on in-memory reference
// collaborators.
package main

import (
	"context"
	"log"
	"math/rand"
	"time"

	"github.com/avalanche-sched/avalanche/scheduler"
	"github.com/avalanche-sched/avalanche/scheduler/emit"
	"github.com/avalanche-sched/avalanche/scheduler/refimpl"
	"github.com/avalanche-sched/avalanche/scheduler/status"
)

// TrackFinder, VertexFitter and Summary form a linear chain: each depends
// on the previous for both control and data flow.
func main() {
	graph, err := refimpl.NewLinearGraph("TrackFinder", "VertexFitter", "Summary")
	if err != nil {
		log.Fatalf("build graph: %v", err)
	}

	pool := refimpl.NewPool()
	pool.Register(0, "TrackFinder", fastBody(20*time.Millisecond), 2)
	pool.Register(1, "VertexFitter", fastBody(15*time.Millisecond), 2)
	pool.Register(2, "Summary", fastBody(5*time.Millisecond), 2)

	svc := status.NewMemoryService()
	wb := refimpl.NewWhiteboard(4)
	logger := emit.NewLogEmitter(nil, false)

	core := scheduler.New(graph, pool, svc, wb, logger,
		scheduler.WithMaxEventsInFlight(4),
		scheduler.WithThreadPoolSize(4),
		scheduler.WithSnapshotInterval(10*time.Millisecond),
	)

	if err := core.Initialize(); err != nil {
		log.Fatalf("initialize: %v", err)
	}

	core.RecordOccupancy(func(snap scheduler.OccupancySnapshot) {
		log.Printf("occupancy snapshot at %s: %+v", snap.Timestamp.Format(time.RFC3339Nano), snap.States)
	})

	popped := 0
	popOne := func() {
		ec, err := core.PopFinishedEvent()
		if err != nil {
			log.Fatalf("pop finished event: %v", err)
		}
		log.Printf("event %d finished (slot %d, epoch %d)", ec.EventNum, ec.SlotIndex, ec.Epoch)
		popped++
	}

	const numEvents = 10
	if err := pushEvents(core, numEvents, popOne); err != nil {
		log.Fatalf("push events: %v", err)
	}
	for popped < numEvents {
		popOne()
	}

	core.Deactivate()
	core.Finalize()
}

// pushEvents pushes n events; a slot is only freed when its finished event
// is popped, so popOne is called whenever the core is full.
func pushEvents(core *scheduler.Core, n int, popOne func()) error {
	for i := 0; i < n; i++ {
		for {
			err := core.PushNewEvent(int64(i))
			if err == nil {
				break
			}
			if err != scheduler.ErrNoCapacity {
				return err
			}
			popOne()
		}
	}
	return nil
}

func fastBody(base time.Duration) refimpl.Body {
	return func(_ context.Context, _ *scheduler.EventContext) (bool, error) {
		time.Sleep(base + time.Duration(rand.Intn(5))*time.Millisecond)
		return true, nil
	}
}
