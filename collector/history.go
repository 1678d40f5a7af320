package collector

import (
	"sync"
	"time"
)

// HistoryItem is one recorded wait observation. Items are immutable once
// written; a slot is only ever replaced wholesale when the cursor wraps.
type HistoryItem struct {
	PID       int32
	WaitEvent uint32
	QueryID   uint64
	SampledAt time.Time
}

// History is a fixed-capacity ring of wait observations with a
// monotonically increasing write cursor. The sampler writes under the
// exclusive lock; readers copy the contents under the shared lock.
type History struct {
	mu     sync.RWMutex
	items  []HistoryItem
	cursor uint64
}

// NewHistory creates a ring with the given capacity. The capacity is
// fixed for the life of the ring; changing it requires a new History.
func NewHistory(capacity int) *History {
	if capacity < 1 {
		capacity = 1
	}
	return &History{items: make([]HistoryItem, capacity)}
}

// Capacity returns the fixed slot count.
func (h *History) Capacity() int { return len(h.items) }

// Cursor returns the total number of items ever written.
func (h *History) Cursor() uint64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.cursor
}

// Len returns the number of live items, at most Capacity.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.lenLocked()
}

func (h *History) lenLocked() int {
	if h.cursor < uint64(len(h.items)) {
		return int(h.cursor)
	}
	return len(h.items)
}

// putLocked stores the item at the cursor slot and advances the cursor.
// The caller must hold the exclusive lock.
func (h *History) putLocked(item HistoryItem) {
	h.items[h.cursor%uint64(len(h.items))] = item
	h.cursor++
}

// Items returns a copy of the live items in chronological order,
// oldest first.
func (h *History) Items() []HistoryItem {
	h.mu.RLock()
	defer h.mu.RUnlock()

	n := h.lenLocked()
	out := make([]HistoryItem, 0, n)
	if h.cursor <= uint64(len(h.items)) {
		return append(out, h.items[:n]...)
	}
	pos := h.cursor % uint64(len(h.items))
	out = append(out, h.items[pos:]...)
	out = append(out, h.items[:pos]...)
	return out
}
