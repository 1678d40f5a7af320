package cmd

import (
	"context"
	"math/rand"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/waitsampling-io/waitsampling"
)

// demoEvent is a synthetic wait event used by the simulated workload.
type demoEvent struct {
	code      uint32
	eventType string
	event     string
	// weight skews how often workers pick this event; maxWait bounds how
	// long they stay blocked on it.
	weight  int
	maxWait time.Duration
}

var demoEvents = []demoEvent{
	{0x01010000, "LWLock", "BufferMapping", 6, 2 * time.Millisecond},
	{0x01020000, "LWLock", "WALWrite", 4, 5 * time.Millisecond},
	{0x03010000, "Lock", "relation", 2, 20 * time.Millisecond},
	{0x05010000, "Client", "ClientRead", 8, 50 * time.Millisecond},
	{0x09010000, "IO", "DataFileRead", 5, 10 * time.Millisecond},
	{0x09020000, "IO", "WALSync", 3, 15 * time.Millisecond},
}

// DemoEventNamer resolves the synthetic wait-event codes emitted by the
// simulated workload.
func DemoEventNamer(code uint32) (string, string) {
	for _, e := range demoEvents {
		if e.code == code {
			return e.eventType, e.event
		}
	}
	return "", ""
}

// runWorkload drives n simulated workers that alternate between running
// and blocking on weighted random wait events until ctx is cancelled.
func runWorkload(ctx context.Context, reg *waitsampling.Registry, n int) {
	var totalWeight int
	for _, e := range demoEvents {
		totalWeight += e.weight
	}

	for i := 0; i < n; i++ {
		pid := int32(10000 + i)
		w, err := reg.Acquire(pid)
		if err != nil {
			log.WithError(err).Warn("could not register simulated worker")
			return
		}
		go simulateWorker(ctx, w, totalWeight)
	}
	log.WithField("workers", n).Info("simulated workload started")
}

func simulateWorker(ctx context.Context, w *waitsampling.Worker, totalWeight int) {
	defer w.Release()
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	for {
		// Running phase: a statement is active but nothing is blocked on.
		w.SetQueryID(rng.Uint64() >> 1)
		if !sleep(ctx, time.Duration(rng.Intn(5000))*time.Microsecond) {
			return
		}

		e := pickEvent(rng, totalWeight)
		w.StartWait(e.code)
		blocked := time.Duration(rng.Int63n(int64(e.maxWait)))
		if !sleep(ctx, blocked) {
			return
		}
		w.EndWait()
		w.ClearQueryID()
	}
}

func pickEvent(rng *rand.Rand, totalWeight int) demoEvent {
	x := rng.Intn(totalWeight)
	for _, e := range demoEvents {
		if x < e.weight {
			return e
		}
		x -= e.weight
	}
	return demoEvents[len(demoEvents)-1]
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
