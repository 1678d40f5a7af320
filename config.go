package waitsampling

import (
	"time"

	"emperror.dev/errors"
)

// Default values match the original extension defaults: profiling every
// 10ms with per-process and per-query granularity, history disabled.
const (
	DefaultHistorySize       = 5000
	DefaultMaxProfileEntries = 5000
	DefaultProfilePeriod     = 10 * time.Millisecond

	// minTableSize is the lower bound for both the history ring capacity
	// and the profile table capacity.
	minTableSize = 100
)

// Config holds the collector tunables. HistoryPeriod and ProfilePeriod
// set the sampling cadence of each stream; a zero period disables the
// stream entirely. All fields except HistorySize may be changed on
// reload: the ring is sized once and is not resizable at runtime.
type Config struct {
	// HistoryPeriod is the interval between history samples.
	HistoryPeriod time.Duration `json:"history_period"`
	// ProfilePeriod is the interval between profile samples.
	ProfilePeriod time.Duration `json:"profile_period"`
	// HistorySize is the capacity of the history ring.
	HistorySize int `json:"history_size"`
	// MaxProfileEntries bounds the profile table size.
	MaxProfileEntries int `json:"max_profile_entries"`
	// PerProcess keys profile entries by process identifier. When false,
	// observations from all processes aggregate under pid 0.
	PerProcess bool `json:"per_process"`
	// PerQuery records the query-correlation identifier along with each
	// observation. When false, query identifiers are recorded as 0.
	PerQuery bool `json:"per_query"`
}

// DefaultConfig returns the configuration used when no overrides are given.
func DefaultConfig() Config {
	return Config{
		HistoryPeriod:     0,
		ProfilePeriod:     DefaultProfilePeriod,
		HistorySize:       DefaultHistorySize,
		MaxProfileEntries: DefaultMaxProfileEntries,
		PerProcess:        true,
		PerQuery:          true,
	}
}

// Validate reports configurations the collector cannot run with.
func (c Config) Validate() error {
	if c.HistoryPeriod < 0 || c.ProfilePeriod < 0 {
		return errors.New("waitsampling: sampling periods must not be negative")
	}
	if c.HistorySize < minTableSize {
		return errors.Errorf("waitsampling: history size %d is below the minimum of %d", c.HistorySize, minTableSize)
	}
	if c.MaxProfileEntries < minTableSize {
		return errors.Errorf("waitsampling: max profile entries %d is below the minimum of %d", c.MaxProfileEntries, minTableSize)
	}
	return nil
}
