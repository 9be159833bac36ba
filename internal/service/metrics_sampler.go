package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"gamevisor/internal/models"
)

// GameStats carries the in-game figures the process table cannot provide.
type GameStats struct {
	Players    int
	TPS        float64
	LastTickMS float64
	Entities   int
	Chunks     int
}

// MetricsSampler polls the process table once per interval while running and
// keeps a bounded history of samples.
type MetricsSampler struct {
	table    ProcessTable
	stats    func() GameStats
	interval time.Duration
	logger   *zap.SugaredLogger
	now      func() time.Time

	mu        sync.RWMutex
	history   *ring[models.MetricSample]
	pid       int
	startedAt time.Time
	cancel    context.CancelFunc
	done      chan struct{}

	// Reported by the game server itself.
	tickMS   float64
	entities int
	chunks   int
}

// NewMetricsSampler creates a stopped sampler. stats may be nil.
func NewMetricsSampler(table ProcessTable, stats func() GameStats, interval time.Duration, capacity int, logger *zap.SugaredLogger) *MetricsSampler {
	if interval <= 0 {
		interval = time.Second
	}
	return &MetricsSampler{
		table:    table,
		stats:    stats,
		interval: interval,
		logger:   logger,
		now:      time.Now,
		history:  newRing[models.MetricSample](capacity),
	}
}

// Start begins sampling pid. A sampler that is already running is restarted
// on the new pid.
func (m *MetricsSampler) Start(pid int) {
	m.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	m.mu.Lock()
	m.pid = pid
	m.startedAt = m.now()
	m.cancel = cancel
	m.done = done
	m.mu.Unlock()

	go m.run(ctx, done)
	m.logger.Debugw("metrics sampler started", "pid", pid, "interval", m.interval)
}

// Stop halts sampling and waits for the sampling goroutine to exit, which
// happens within one interval at most. History is kept.
func (m *MetricsSampler) Stop() {
	m.mu.Lock()
	cancel, done := m.cancel, m.done
	m.cancel, m.done = nil, nil
	m.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// SetTickTime records the duration of the last server tick. Until stats
// provide a TPS of their own, samples derive TPS from it, capped at
// models.DefaultTPS.
func (m *MetricsSampler) SetTickTime(ms float64) {
	if ms < 0 {
		ms = 0
	}
	m.mu.Lock()
	m.tickMS = ms
	m.mu.Unlock()
}

// SetWorldCounts records the loaded entity and chunk counts.
func (m *MetricsSampler) SetWorldCounts(entities, chunks int) {
	m.mu.Lock()
	m.entities = max(entities, 0)
	m.chunks = max(chunks, 0)
	m.mu.Unlock()
}

func (m *MetricsSampler) Running() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.cancel != nil
}

func (m *MetricsSampler) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.sample()
		}
	}
}

// sample takes one measurement. A pid missing from the process table yields
// a zero sample rather than an error.
func (m *MetricsSampler) sample() models.MetricSample {
	m.mu.RLock()
	pid, startedAt := m.pid, m.startedAt
	tickMS, entities, chunks := m.tickMS, m.entities, m.chunks
	m.mu.RUnlock()

	now := m.now()
	s := models.MetricSample{
		SampledAt:   now,
		TPS:         models.DefaultTPS,
		LastTickMS:  tickMS,
		EntityCount: entities,
		ChunkCount:  chunks,
	}
	if tickMS > 0 {
		s.TPS = min(models.DefaultTPS, 1000/tickMS)
	}
	if !startedAt.IsZero() && now.After(startedAt) {
		s.UptimeSeconds = uint64(now.Sub(startedAt) / time.Second)
	}

	if stat, ok := m.table.Lookup(pid); ok {
		s.CPUUsage = stat.CPUPercent
		s.MemoryBytes = stat.MemoryBytes
	} else {
		m.logger.Debugw("pid not in process table", "pid", pid)
	}

	if m.stats != nil {
		g := m.stats()
		s.PlayerCount = g.Players
		if g.TPS > 0 {
			s.TPS = g.TPS
		}
		if g.LastTickMS > 0 {
			s.LastTickMS = g.LastTickMS
		}
		if g.Entities > 0 {
			s.EntityCount = g.Entities
		}
		if g.Chunks > 0 {
			s.ChunkCount = g.Chunks
		}
	}

	m.mu.Lock()
	m.history.push(s)
	m.mu.Unlock()

	return s
}

func (m *MetricsSampler) Latest() (models.MetricSample, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.history.last()
}

func (m *MetricsSampler) History() []models.MetricSample {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.history.lastN(0)
}

func (m *MetricsSampler) window(d time.Duration) []models.MetricSample {
	cutoff := m.now().Add(-d)

	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []models.MetricSample
	m.history.each(func(s models.MetricSample) {
		if !s.SampledAt.Before(cutoff) {
			out = append(out, s)
		}
	})
	return out
}

// Average aggregates the samples taken within d of now. Uptime is that of
// the newest sample in the window.
func (m *MetricsSampler) Average(d time.Duration) (models.MetricSample, bool) {
	samples := m.window(d)
	if len(samples) == 0 {
		return models.MetricSample{}, false
	}

	var (
		cpu, tps, tick            float64
		mem                       uint64
		players, entities, chunks int
	)
	n := len(samples)
	for _, s := range samples {
		cpu += s.CPUUsage
		tps += s.TPS
		tick += s.LastTickMS
		mem += s.MemoryBytes
		players += s.PlayerCount
		entities += s.EntityCount
		chunks += s.ChunkCount
	}

	newest := samples[n-1]
	return models.MetricSample{
		SampledAt:     newest.SampledAt,
		CPUUsage:      cpu / float64(n),
		MemoryBytes:   mem / uint64(n),
		TPS:           tps / float64(n),
		PlayerCount:   players / n,
		UptimeSeconds: newest.UptimeSeconds,
		LastTickMS:    tick / float64(n),
		EntityCount:   entities / n,
		ChunkCount:    chunks / n,
	}, true
}

// Peak returns the per-field maximum over the samples taken within d of now.
func (m *MetricsSampler) Peak(d time.Duration) (models.MetricSample, bool) {
	samples := m.window(d)
	if len(samples) == 0 {
		return models.MetricSample{}, false
	}

	var p models.MetricSample
	for _, s := range samples {
		p.CPUUsage = max(p.CPUUsage, s.CPUUsage)
		p.MemoryBytes = max(p.MemoryBytes, s.MemoryBytes)
		p.TPS = max(p.TPS, s.TPS)
		p.PlayerCount = max(p.PlayerCount, s.PlayerCount)
		p.LastTickMS = max(p.LastTickMS, s.LastTickMS)
		p.EntityCount = max(p.EntityCount, s.EntityCount)
		p.ChunkCount = max(p.ChunkCount, s.ChunkCount)
	}

	newest := samples[len(samples)-1]
	p.SampledAt = newest.SampledAt
	p.UptimeSeconds = newest.UptimeSeconds
	return p, true
}
