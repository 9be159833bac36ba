package service

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"gamevisor/internal/models"
)

type fakeTable struct {
	mu    sync.Mutex
	stats map[int]ProcStat
}

func newFakeTable() *fakeTable {
	return &fakeTable{stats: make(map[int]ProcStat)}
}

func (f *fakeTable) set(pid int, st ProcStat) {
	f.mu.Lock()
	f.stats[pid] = st
	f.mu.Unlock()
}

func (f *fakeTable) Lookup(pid int) (ProcStat, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	st, ok := f.stats[pid]
	return st, ok
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	c.t = t
	c.mu.Unlock()
}

var t0 = time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)

func newTestSampler(table ProcessTable, stats func() GameStats, capacity int) (*MetricsSampler, *fakeClock) {
	clock := &fakeClock{t: t0}
	m := NewMetricsSampler(table, stats, time.Second, capacity, zap.NewNop().Sugar())
	m.now = clock.Now
	return m, clock
}

func TestSampleMissingPidIsZero(t *testing.T) {
	m, _ := newTestSampler(newFakeTable(), nil, 10)

	s := m.sample()
	assert.Zero(t, s.CPUUsage)
	assert.Zero(t, s.MemoryBytes)
	assert.Equal(t, 20.0, s.TPS)
	assert.Equal(t, t0, s.SampledAt)

	latest, ok := m.Latest()
	require.True(t, ok)
	assert.Equal(t, s, latest)
}

func TestSampleFoldsProcessAndGameStats(t *testing.T) {
	table := newFakeTable()
	table.set(42, ProcStat{CPUPercent: 37.5, MemoryBytes: 512 << 20})

	m, clock := newTestSampler(table, func() GameStats {
		return GameStats{Players: 3, TPS: 19.2, Entities: 100}
	}, 10)

	m.mu.Lock()
	m.pid = 42
	m.startedAt = t0
	m.mu.Unlock()

	clock.Set(t0.Add(90 * time.Second))
	s := m.sample()

	assert.Equal(t, 37.5, s.CPUUsage)
	assert.Equal(t, uint64(512<<20), s.MemoryBytes)
	assert.Equal(t, 3, s.PlayerCount)
	assert.Equal(t, 19.2, s.TPS)
	assert.Equal(t, 100, s.EntityCount)
	assert.Equal(t, uint64(90), s.UptimeSeconds)
}

func TestSampleUsesReportedTickTime(t *testing.T) {
	m, _ := newTestSampler(newFakeTable(), func() GameStats {
		return GameStats{Players: 2}
	}, 10)

	m.SetTickTime(80)
	m.SetWorldCounts(350, 441)

	s := m.sample()
	assert.Equal(t, 80.0, s.LastTickMS)
	assert.Equal(t, 12.5, s.TPS)
	assert.Equal(t, 350, s.EntityCount)
	assert.Equal(t, 441, s.ChunkCount)
	assert.Equal(t, 2, s.PlayerCount)

	// A fast tick never reports more than the nominal rate.
	m.SetTickTime(40)
	assert.Equal(t, models.DefaultTPS, m.sample().TPS)

	m.SetWorldCounts(-1, -1)
	s = m.sample()
	assert.Zero(t, s.EntityCount)
	assert.Zero(t, s.ChunkCount)
}

func TestHistoryIsBounded(t *testing.T) {
	m, clock := newTestSampler(newFakeTable(), nil, 1000)

	for i := 0; i < 1001; i++ {
		clock.Set(t0.Add(time.Duration(i) * time.Second))
		m.sample()
	}

	history := m.History()
	require.Len(t, history, 1000)
	assert.Equal(t, t0.Add(time.Second), history[0].SampledAt)
	assert.Equal(t, t0.Add(1000*time.Second), history[999].SampledAt)
}

func TestAverageAndPeakUseWindow(t *testing.T) {
	table := newFakeTable()
	m, clock := newTestSampler(table, nil, 100)

	m.mu.Lock()
	m.pid = 7
	m.mu.Unlock()

	for i, cpu := range []float64{10, 20, 30} {
		table.set(7, ProcStat{CPUPercent: cpu, MemoryBytes: uint64(cpu) * 1000})
		clock.Set(t0.Add(time.Duration(i) * time.Minute))
		m.sample()
	}

	avg, ok := m.Average(90 * time.Second)
	require.True(t, ok)
	assert.InDelta(t, 25.0, avg.CPUUsage, 1e-9)
	assert.Equal(t, uint64(25000), avg.MemoryBytes)
	assert.Equal(t, t0.Add(2*time.Minute), avg.SampledAt)

	peak, ok := m.Peak(90 * time.Second)
	require.True(t, ok)
	assert.Equal(t, 30.0, peak.CPUUsage)
	assert.Equal(t, uint64(30000), peak.MemoryBytes)

	all, ok := m.Average(time.Hour)
	require.True(t, ok)
	assert.InDelta(t, 20.0, all.CPUUsage, 1e-9)

	clock.Set(t0.Add(time.Hour))
	_, ok = m.Average(time.Minute)
	assert.False(t, ok)
	_, ok = m.Peak(time.Minute)
	assert.False(t, ok)
}

func TestSamplerStartStop(t *testing.T) {
	table := newFakeTable()
	table.set(99, ProcStat{CPUPercent: 1})

	m := NewMetricsSampler(table, nil, 5*time.Millisecond, 1000, zap.NewNop().Sugar())
	assert.False(t, m.Running())

	m.Start(99)
	assert.True(t, m.Running())

	assert.Eventually(t, func() bool {
		return len(m.History()) >= 2
	}, 2*time.Second, 5*time.Millisecond)

	m.Stop()
	assert.False(t, m.Running())

	n := len(m.History())
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, n, len(m.History()))

	// Stopping twice is harmless.
	m.Stop()
}
