package collector

import (
	"time"

	"github.com/waitsampling-io/waitsampling"
)

// probeWaits performs one pass over all worker slots and writes the
// observed waits into the requested structures. Locks are always taken in
// the same order, profile first, history second; every other path that
// takes both must follow suit.
//
// The pass never blocks and does O(1) work per slot: slot reads are plain
// atomic loads, history writes are in-place overwrites, and the amortized
// cost of eviction is bounded by the batch victim count.
func (c *Collector) probeWaits(cfg waitsampling.Config, writeHistory, writeProfile bool, now time.Time) {
	if writeProfile {
		c.profile.mu.Lock()
	}
	if writeHistory {
		c.history.mu.Lock()
	}

	for i := 0; i < c.reg.Size(); i++ {
		s := c.reg.Snapshot(i)

		// An unoccupied slot, or one mid-handover, reads as pid 0.
		if s.PID == 0 {
			continue
		}
		// A worker that is not blocked contributes nothing.
		if s.WaitEvent == 0 {
			continue
		}

		var queryID uint64
		if cfg.PerQuery {
			queryID = s.QueryID
		}

		if writeHistory {
			c.history.putLocked(HistoryItem{
				PID:       s.PID,
				WaitEvent: s.WaitEvent,
				QueryID:   queryID,
				SampledAt: now,
			})
		}

		if writeProfile {
			key := ProfileKey{WaitEvent: s.WaitEvent, QueryID: queryID}
			if cfg.PerProcess {
				key.PID = s.PID
			}
			c.profile.observeLocked(key)
		}
	}

	if writeHistory {
		c.history.mu.Unlock()
	}
	if writeProfile {
		c.profile.mu.Unlock()
	}
}
