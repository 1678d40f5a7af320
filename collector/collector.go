// Package collector implements the sampling core: a background loop that
// probes worker wait state on two independent cadences and aggregates the
// observations into a history ring and a profile table.
package collector

import (
	"context"
	"sync/atomic"
	"time"

	"emperror.dev/errors"
	log "github.com/sirupsen/logrus"

	"github.com/waitsampling-io/waitsampling"
)

// ErrSupervisorGone is returned by Run when the supervising process
// disappears. This is the only failure outcome of the loop; a context
// cancellation is a graceful stop.
var ErrSupervisorGone = errors.New("collector: supervising process is gone")

// supervisorPollInterval caps the sleep between supervisor liveness
// checks, so a dead supervisor is noticed even when both streams are
// disabled or sampling very slowly.
const supervisorPollInterval = time.Second

// ConfigSource supplies fresh configuration when a reload is requested.
// Load is called synchronously from the sampling loop at an iteration
// boundary, never mid-probe.
type ConfigSource interface {
	Load() (waitsampling.Config, error)
}

// Options configures a Collector.
type Options struct {
	// Registry is the worker enumeration source. Required.
	Registry *waitsampling.Registry
	// Config is the initial configuration. Zero value means defaults.
	Config waitsampling.Config
	// Source, when set, is consulted on Reload. Without a source, Reload
	// wakes the loop but keeps the current configuration.
	Source ConfigSource
	// SupervisorPID, when non-zero, is a process whose disappearance
	// terminates the loop with ErrSupervisorGone.
	SupervisorPID int32
}

// Collector owns the two shared structures and the loop that fills them.
// History and Profile remain readable after the loop stops.
type Collector struct {
	reg     *waitsampling.Registry
	history *History
	profile *Profile
	source  ConfigSource
	superv  int32

	cfg           atomic.Pointer[waitsampling.Config]
	reloadPending atomic.Bool
	latch         chan struct{}
}

// New validates the options and builds a collector. The history ring is
// sized from the initial configuration and keeps that capacity across
// reloads.
func New(opts Options) (*Collector, error) {
	if opts.Registry == nil {
		return nil, errors.New("collector: registry is required")
	}
	cfg := opts.Config
	if cfg == (waitsampling.Config{}) {
		cfg = waitsampling.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Collector{
		reg:     opts.Registry,
		history: NewHistory(cfg.HistorySize),
		profile: NewProfile(cfg.MaxProfileEntries),
		source:  opts.Source,
		superv:  opts.SupervisorPID,
		latch:   make(chan struct{}, 1),
	}
	c.cfg.Store(&cfg)
	return c, nil
}

// Registry returns the worker enumeration source.
func (c *Collector) Registry() *waitsampling.Registry { return c.reg }

// History returns the shared history ring.
func (c *Collector) History() *History { return c.history }

// Profile returns the shared profile table.
func (c *Collector) Profile() *Profile { return c.profile }

// Config returns the configuration currently in effect.
func (c *Collector) Config() waitsampling.Config { return *c.cfg.Load() }

// Reload asks the loop to refresh its configuration from the source at
// the next iteration boundary.
func (c *Collector) Reload() {
	c.reloadPending.Store(true)
	c.Wake()
}

// Wake interrupts the loop's current sleep. Multiple wakes before the
// loop runs collapse into one.
func (c *Collector) Wake() {
	select {
	case c.latch <- struct{}{}:
	default:
	}
}

// Run executes the sampling loop until ctx is cancelled (nil return) or
// the supervising process disappears (ErrSupervisorGone). Reload requests
// and cancellation are observed only at iteration boundaries; a probe
// pass always runs to completion once started.
func (c *Collector) Run(ctx context.Context) error {
	cfg := *c.cfg.Load()
	log.WithFields(log.Fields{
		"history_period": cfg.HistoryPeriod,
		"profile_period": cfg.ProfilePeriod,
	}).Info("wait sampling collector started")

	sched := newSchedule(cfg.HistoryPeriod, cfg.ProfilePeriod, time.Now())
	timer := time.NewTimer(time.Hour)
	stopTimer(timer)

	for {
		// Clear any already-pending wakeups before reacting, so a wake
		// arriving during this iteration is not lost.
		select {
		case <-c.latch:
		default:
		}

		if c.reloadPending.CompareAndSwap(true, false) {
			cfg = c.applyReload(cfg, &sched)
		}

		select {
		case <-ctx.Done():
			log.Info("wait sampling collector shutting down")
			return nil
		default:
		}

		if c.superv != 0 && !supervisorAlive(c.superv) {
			log.WithField("pid", c.superv).Error("supervisor vanished, terminating collector")
			return ErrSupervisorGone
		}

		now := time.Now()
		writeHistory, writeProfile := sched.tick(now)
		if writeHistory || writeProfile {
			c.probeWaits(cfg, writeHistory, writeProfile, now)
			sched.mark(now, writeHistory, writeProfile)
		}

		timeout, sampling := sched.timeout(time.Now())
		if c.superv != 0 && (!sampling || timeout > supervisorPollInterval) {
			timeout, sampling = supervisorPollInterval, true
		}

		if !sampling {
			// Both streams disabled: sleep until an external signal.
			select {
			case <-c.latch:
			case <-ctx.Done():
			}
			continue
		}

		timer.Reset(timeout)
		select {
		case <-c.latch:
			stopTimer(timer)
		case <-timer.C:
		case <-ctx.Done():
			stopTimer(timer)
		}
	}
}

// applyReload fetches fresh configuration and applies the hot-reloadable
// parts. The ring capacity is fixed at construction; a changed
// HistorySize is reported and ignored.
func (c *Collector) applyReload(cur waitsampling.Config, sched *schedule) waitsampling.Config {
	if c.source == nil {
		return cur
	}
	cfg, err := c.source.Load()
	if err != nil {
		log.WithError(err).Error("config reload failed, keeping current settings")
		return cur
	}
	if err := cfg.Validate(); err != nil {
		log.WithError(err).Error("reloaded config is invalid, keeping current settings")
		return cur
	}
	if cfg.HistorySize != cur.HistorySize {
		log.WithFields(log.Fields{
			"current":   cur.HistorySize,
			"requested": cfg.HistorySize,
		}).Warn("history size cannot change at runtime, ignoring")
		cfg.HistorySize = cur.HistorySize
	}

	sched.setPeriods(cfg.HistoryPeriod, cfg.ProfilePeriod)
	c.profile.mu.Lock()
	c.profile.setMaxEntriesLocked(cfg.MaxProfileEntries)
	c.profile.mu.Unlock()
	c.cfg.Store(&cfg)

	log.WithFields(log.Fields{
		"history_period":      cfg.HistoryPeriod,
		"profile_period":      cfg.ProfilePeriod,
		"max_profile_entries": cfg.MaxProfileEntries,
	}).Info("collector configuration reloaded")
	return cfg
}

func stopTimer(t *time.Timer) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
}
