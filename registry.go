// Package waitsampling provides a low-overhead sampling collector for
// worker wait events: a background loop periodically copies the wait state
// of every registered worker into a bounded history ring and a usage-ranked
// profile table, both of which can be read out while sampling continues.
package waitsampling

import (
	"sync"
	"sync/atomic"

	"emperror.dev/errors"
)

// ErrRegistryFull is returned by Acquire when every slot is taken.
var ErrRegistryFull = errors.New("waitsampling: no free worker slots")

// WaitSnapshot is a point-in-time copy of one worker slot. PID 0 marks an
// empty slot; WaitEvent 0 means the worker is not waiting.
type WaitSnapshot struct {
	PID       int32
	WaitEvent uint32
	QueryID   uint64
}

// slot fields are individually atomic so the sampler can read them without
// any coordination with the owning worker. A reader may observe a mix of
// old and new field values; that staleness is part of the contract.
type slot struct {
	pid       atomic.Int32
	waitEvent atomic.Uint32
	queryID   atomic.Uint64
}

// Registry is a fixed-size array of worker slots. Slot acquisition and
// release take a mutex, but publishing and sampling wait state are plain
// atomic stores and loads on independent fields.
//
// A released slot keeps its last pid until the slot is reused, so a
// sampler pass may briefly attribute an empty slot to a terminated worker.
// Closing that window would require an enumeration lock on the sampling
// path, which this design deliberately avoids; released slots always have
// a zero wait event and are therefore skipped by the probe.
type Registry struct {
	slots []slot

	mu   sync.Mutex
	free []int
}

// NewRegistry creates a registry with capacity for size workers.
func NewRegistry(size int) *Registry {
	if size < 1 {
		size = 1
	}
	free := make([]int, size)
	for i := range free {
		free[i] = size - 1 - i
	}
	return &Registry{
		slots: make([]slot, size),
		free:  free,
	}
}

// Size returns the number of slots, occupied or not.
func (r *Registry) Size() int { return len(r.slots) }

// Snapshot reads slot i without synchronization. The returned fields may
// be mutually inconsistent if the worker is publishing concurrently.
func (r *Registry) Snapshot(i int) WaitSnapshot {
	s := &r.slots[i]
	return WaitSnapshot{
		PID:       s.pid.Load(),
		WaitEvent: s.waitEvent.Load(),
		QueryID:   s.queryID.Load(),
	}
}

// Acquire claims a free slot for a worker with the given process
// identifier. The returned Worker must be released when the worker exits.
func (r *Registry) Acquire(pid int32) (*Worker, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.free) == 0 {
		return nil, ErrRegistryFull
	}
	i := r.free[len(r.free)-1]
	r.free = r.free[:len(r.free)-1]

	s := &r.slots[i]
	s.waitEvent.Store(0)
	s.queryID.Store(0)
	s.pid.Store(pid)
	return &Worker{reg: r, idx: i}, nil
}

// Worker is a handle to an acquired slot. Its methods are safe to call
// from the owning worker only; the sampler never calls them.
type Worker struct {
	reg *Registry
	idx int
}

// StartWait publishes the wait event the worker is about to block on.
func (w *Worker) StartWait(code uint32) {
	w.reg.slots[w.idx].waitEvent.Store(code)
}

// EndWait clears the published wait event.
func (w *Worker) EndWait() {
	w.reg.slots[w.idx].waitEvent.Store(0)
}

// SetQueryID publishes the identifier of the statement being executed.
func (w *Worker) SetQueryID(qid uint64) {
	w.reg.slots[w.idx].queryID.Store(qid)
}

// ClearQueryID resets the published query identifier.
func (w *Worker) ClearQueryID() {
	w.reg.slots[w.idx].queryID.Store(0)
}

// Release clears the wait state and returns the slot to the free list.
// The pid field intentionally keeps its last value until reuse.
func (w *Worker) Release() {
	s := &w.reg.slots[w.idx]
	s.waitEvent.Store(0)
	s.queryID.Store(0)

	w.reg.mu.Lock()
	w.reg.free = append(w.reg.free, w.idx)
	w.reg.mu.Unlock()
}
