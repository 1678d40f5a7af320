package collector

import (
	"context"
	"os"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waitsampling-io/waitsampling"
)

func testConfig() waitsampling.Config {
	cfg := waitsampling.DefaultConfig()
	cfg.HistoryPeriod = 2 * time.Millisecond
	cfg.ProfilePeriod = 2 * time.Millisecond
	cfg.HistorySize = 100
	cfg.MaxProfileEntries = 100
	return cfg
}

func newTestCollector(t *testing.T, cfg waitsampling.Config) (*Collector, *waitsampling.Registry) {
	t.Helper()
	reg := waitsampling.NewRegistry(16)
	c, err := New(Options{Registry: reg, Config: cfg})
	require.NoError(t, err)
	return c, reg
}

func TestNewValidatesOptions(t *testing.T) {
	_, err := New(Options{})
	assert.Error(t, err, "registry is required")

	reg := waitsampling.NewRegistry(4)
	bad := waitsampling.DefaultConfig()
	bad.HistorySize = 1
	_, err = New(Options{Registry: reg, Config: bad})
	assert.Error(t, err)

	c, err := New(Options{Registry: reg})
	require.NoError(t, err)
	assert.Equal(t, waitsampling.DefaultConfig(), c.Config())
}

func TestProbeSkipsIdleSlots(t *testing.T) {
	c, reg := newTestCollector(t, testConfig())

	// One worker registered but not waiting, plus all-empty slots.
	w, err := reg.Acquire(100)
	require.NoError(t, err)
	defer w.Release()

	c.probeWaits(c.Config(), true, true, time.Now())

	assert.Equal(t, uint64(0), c.History().Cursor())
	assert.Equal(t, 0, c.Profile().Len())
}

func TestProbeRecordsWaits(t *testing.T) {
	c, reg := newTestCollector(t, testConfig())

	w1, err := reg.Acquire(100)
	require.NoError(t, err)
	w1.SetQueryID(7)
	w1.StartWait(0xA1)

	w2, err := reg.Acquire(200)
	require.NoError(t, err)
	w2.StartWait(0xB2)

	now := time.Now()
	c.probeWaits(c.Config(), true, true, now)

	items := c.History().Items()
	require.Len(t, items, 2)
	byPid := make(map[int32]HistoryItem)
	for _, item := range items {
		assert.Equal(t, now, item.SampledAt)
		byPid[item.PID] = item
	}
	assert.Equal(t, uint32(0xA1), byPid[100].WaitEvent)
	assert.Equal(t, uint64(7), byPid[100].QueryID)
	assert.Equal(t, uint32(0xB2), byPid[200].WaitEvent)

	entries := c.Profile().Entries()
	require.Len(t, entries, 2)
}

func TestProbeHistoryOnly(t *testing.T) {
	c, reg := newTestCollector(t, testConfig())

	w, err := reg.Acquire(100)
	require.NoError(t, err)
	w.StartWait(0x1)

	c.probeWaits(c.Config(), true, false, time.Now())
	assert.Equal(t, uint64(1), c.History().Cursor())
	assert.Equal(t, 0, c.Profile().Len())
}

func TestProbeGranularityToggles(t *testing.T) {
	cfg := testConfig()
	cfg.PerProcess = false
	cfg.PerQuery = false
	c, reg := newTestCollector(t, cfg)

	// Two processes blocked on the same event with different query ids.
	w1, err := reg.Acquire(100)
	require.NoError(t, err)
	w1.SetQueryID(11)
	w1.StartWait(0xC3)

	w2, err := reg.Acquire(200)
	require.NoError(t, err)
	w2.SetQueryID(22)
	w2.StartWait(0xC3)

	c.probeWaits(cfg, false, true, time.Now())

	entries := c.Profile().Entries()
	require.Len(t, entries, 1, "observations must aggregate when per-process is off")
	assert.Equal(t, ProfileKey{PID: 0, WaitEvent: 0xC3, QueryID: 0}, entries[0].Key)
	assert.Equal(t, int64(2), entries[0].Counter)

	// With per-process granularity the same pair stays distinct.
	cfg.PerProcess = true
	cfg.PerQuery = true
	c2, reg2 := newTestCollector(t, cfg)

	v1, err := reg2.Acquire(100)
	require.NoError(t, err)
	v1.SetQueryID(11)
	v1.StartWait(0xC3)

	v2, err := reg2.Acquire(200)
	require.NoError(t, err)
	v2.SetQueryID(22)
	v2.StartWait(0xC3)

	c2.probeWaits(cfg, false, true, time.Now())

	entries = c2.Profile().Entries()
	require.Len(t, entries, 2)
	for _, e := range entries {
		assert.Equal(t, int64(1), e.Counter)
		assert.NotZero(t, e.Key.PID)
		assert.NotZero(t, e.Key.QueryID)
	}
}

func TestRunSamplesUntilCancelled(t *testing.T) {
	c, reg := newTestCollector(t, testConfig())

	w, err := reg.Acquire(100)
	require.NoError(t, err)
	defer w.Release()
	w.StartWait(0xD4)

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()

	require.NoError(t, c.Run(ctx))

	assert.Greater(t, c.History().Cursor(), uint64(0))
	assert.Equal(t, 1, c.Profile().Len())
	entries := c.Profile().Entries()
	assert.Greater(t, entries[0].Counter, int64(1))
}

func TestRunBothStreamsDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.HistoryPeriod = 0
	cfg.ProfilePeriod = 0
	c, _ := newTestCollector(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	// The loop parks on the latch; cancellation must still wake it.
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("collector did not stop after cancellation")
	}
	assert.Equal(t, uint64(0), c.History().Cursor())
}

type staticSource struct {
	cfg waitsampling.Config
}

func (s staticSource) Load() (waitsampling.Config, error) { return s.cfg, nil }

func TestReloadAppliesConfig(t *testing.T) {
	initial := testConfig()
	updated := initial
	updated.ProfilePeriod = 30 * time.Millisecond
	updated.MaxProfileEntries = 200
	updated.HistorySize = 9999 // must be ignored: the ring is fixed

	reg := waitsampling.NewRegistry(4)
	c, err := New(Options{
		Registry: reg,
		Config:   initial,
		Source:   staticSource{cfg: updated},
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	c.Reload()
	require.Eventually(t, func() bool {
		return c.Config().ProfilePeriod == 30*time.Millisecond
	}, time.Second, time.Millisecond)

	got := c.Config()
	assert.Equal(t, 200, got.MaxProfileEntries)
	assert.Equal(t, initial.HistorySize, got.HistorySize)
	assert.Equal(t, initial.HistorySize, c.History().Capacity())

	cancel()
	require.NoError(t, <-done)
}

func TestSupervisorAlive(t *testing.T) {
	assert.True(t, supervisorAlive(int32(os.Getpid())))
}

func TestRunDetectsDeadSupervisor(t *testing.T) {
	// Run a short-lived child and use its pid once it has exited.
	child := exec.Command("sleep", "0")
	require.NoError(t, child.Start())
	pid := int32(child.Process.Pid)
	require.NoError(t, child.Wait())

	reg := waitsampling.NewRegistry(4)
	c, err := New(Options{
		Registry:      reg,
		Config:        testConfig(),
		SupervisorPID: pid,
	})
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- c.Run(context.Background()) }()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrSupervisorGone)
	case <-time.After(5 * time.Second):
		t.Fatal("collector did not notice the dead supervisor")
	}
}
