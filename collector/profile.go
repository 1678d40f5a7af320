package collector

import (
	"sort"
	"sync"
)

// Usage accounting constants. An entry starts at usageInit, gains
// usageIncrease per observation, and loses 1% of its score every time an
// eviction pass scans the table. Eviction removes at least
// deallocMinNum entries, or deallocPercent percent of the table,
// whichever is larger.
const (
	usageInit        = 1.0
	usageIncrease    = 1.0
	usageDecayFactor = 0.99
	deallocPercent   = 5
	deallocMinNum    = 10
)

// ProfileKey identifies one aggregation bucket. PID is zero unless
// per-process granularity is enabled; QueryID is zero unless query
// correlation is enabled.
type ProfileKey struct {
	PID       int32
	WaitEvent uint32
	QueryID   uint64
}

// ProfileEntry accumulates observations of a single key. Counter grows by
// one per observation; Usage ranks the entry for eviction.
type ProfileEntry struct {
	Key     ProfileKey
	Counter int64
	Usage   float64
}

// Profile is the capacity-bounded aggregation table. The capacity is
// enforced synchronously: an insertion into a full table evicts the
// least-used entries first, so the table never exceeds its bound.
type Profile struct {
	mu         sync.RWMutex
	maxEntries int
	entries    map[ProfileKey]*ProfileEntry
}

// NewProfile creates a table bounded to maxEntries entries.
func NewProfile(maxEntries int) *Profile {
	if maxEntries < 1 {
		maxEntries = 1
	}
	return &Profile{
		maxEntries: maxEntries,
		entries:    make(map[ProfileKey]*ProfileEntry),
	}
}

// Len returns the current entry count.
func (p *Profile) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.entries)
}

// observeLocked records one observation of key. The caller must hold the
// exclusive lock.
func (p *Profile) observeLocked(key ProfileKey) {
	if e, ok := p.entries[key]; ok {
		e.Counter++
		e.Usage += usageIncrease
		return
	}
	for len(p.entries) >= p.maxEntries {
		p.deallocLocked()
	}
	p.entries[key] = &ProfileEntry{Key: key, Counter: 1, Usage: usageInit}
}

// deallocLocked evicts the least-used entries. The decay factor is
// applied to every entry as part of the same scan, so scores age only
// when eviction pressure exists.
func (p *Profile) deallocLocked() {
	entries := make([]*ProfileEntry, 0, len(p.entries))
	for _, e := range p.entries {
		e.Usage *= usageDecayFactor
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Usage < entries[j].Usage
	})

	nvictims := len(entries) * deallocPercent / 100
	if nvictims < deallocMinNum {
		nvictims = deallocMinNum
	}
	if nvictims > len(entries) {
		nvictims = len(entries)
	}
	for _, e := range entries[:nvictims] {
		delete(p.entries, e.Key)
	}
}

// setMaxEntriesLocked applies a reloaded capacity. A shrunken capacity
// takes effect on the next insertion into a full table.
func (p *Profile) setMaxEntriesLocked(n int) {
	if n >= 1 {
		p.maxEntries = n
	}
}

// Entries returns a copy of the table contents in unspecified order.
func (p *Profile) Entries() []ProfileEntry {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]ProfileEntry, 0, len(p.entries))
	for _, e := range p.entries {
		out = append(out, *e)
	}
	return out
}

// Reset removes every entry.
func (p *Profile) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.entries = make(map[ProfileKey]*ProfileEntry)
}
