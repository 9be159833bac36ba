package telemetry

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	prom "github.com/prometheus/client_golang/prometheus"

	"gamevisor/internal/models"
	"gamevisor/internal/service"
)

const namespace = "gamevisor"

// Snapshot is everything the poller exports for one server.
type Snapshot struct {
	Status              models.Status
	Sample              models.MetricSample
	HasSample           bool
	DroppedLogRecords   uint64
	Tasks               int
	UnreadNotifications int
	SecurityEvents      int
}

// SnapshotProvider provides current supervisor snapshots.
type SnapshotProvider interface {
	Snapshot() Snapshot
}

// ProviderFunc adapts a function to SnapshotProvider.
type ProviderFunc func() Snapshot

func (f ProviderFunc) Snapshot() Snapshot { return f() }

// FromSupervisor reads a snapshot from s.
func FromSupervisor(s *service.Supervisor) SnapshotProvider {
	return ProviderFunc(func() Snapshot {
		sample, ok := s.Metrics().Latest()
		return Snapshot{
			Status:              s.Status(),
			Sample:              sample,
			HasSample:           ok,
			DroppedLogRecords:   s.Logs().Dropped(),
			Tasks:               len(s.Scheduler().Tasks()),
			UnreadNotifications: len(s.Notifications().Unread()),
			SecurityEvents:      len(s.Security().Events()),
		}
	})
}

// SnapshotPoller periodically exports supervisor snapshots into Prometheus
// gauges labelled by server name.
type SnapshotPoller struct {
	interval time.Duration

	sourcesMu sync.RWMutex
	sources   map[string]SnapshotProvider

	up             *prom.GaugeVec
	playersOnline  *prom.GaugeVec
	tps            *prom.GaugeVec
	cpuPercent     *prom.GaugeVec
	memoryBytes    *prom.GaugeVec
	uptimeSeconds  *prom.GaugeVec
	lastTickMS     *prom.GaugeVec
	entities       *prom.GaugeVec
	chunks         *prom.GaugeVec
	droppedLogs    *prom.GaugeVec
	tasks          *prom.GaugeVec
	unread         *prom.GaugeVec
	securityEvents *prom.GaugeVec

	stateMu sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

func newGauge(name, help string) *prom.GaugeVec {
	return prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: namespace,
		Name:      name,
		Help:      help,
	}, []string{"server"})
}

// NewSnapshotPoller creates a snapshot poller and registers its collectors.
func NewSnapshotPoller(reg prom.Registerer, interval time.Duration) (*SnapshotPoller, error) {
	if reg == nil {
		reg = prom.DefaultRegisterer
	}
	if interval <= 0 {
		interval = time.Second
	}

	p := &SnapshotPoller{
		interval:       interval,
		sources:        make(map[string]SnapshotProvider),
		up:             newGauge("server_up", "Server process state (1=running, 0=stopped)."),
		playersOnline:  newGauge("players_online", "Players currently online."),
		tps:            newGauge("tps", "Server ticks per second."),
		cpuPercent:     newGauge("cpu_percent", "Server process CPU usage in percent."),
		memoryBytes:    newGauge("memory_bytes", "Server process resident memory in bytes."),
		uptimeSeconds:  newGauge("uptime_seconds", "Seconds since the server process started."),
		lastTickMS:     newGauge("last_tick_ms", "Duration of the last server tick in milliseconds."),
		entities:       newGauge("entities", "Loaded entity count."),
		chunks:         newGauge("chunks", "Loaded chunk count."),
		droppedLogs:    newGauge("log_records_dropped_total", "Console log records dropped by the log queue."),
		tasks:          newGauge("scheduled_tasks", "Registered scheduled tasks."),
		unread:         newGauge("notifications_unread", "Unread notifications."),
		securityEvents: newGauge("security_events", "Retained security events."),
	}

	for _, g := range []**prom.GaugeVec{
		&p.up, &p.playersOnline, &p.tps, &p.cpuPercent, &p.memoryBytes,
		&p.uptimeSeconds, &p.lastTickMS, &p.entities, &p.chunks,
		&p.droppedLogs, &p.tasks, &p.unread, &p.securityEvents,
	} {
		registered, err := registerCollector(reg, *g)
		if err != nil {
			return nil, err
		}
		*g = registered
	}

	return p, nil
}

// Add adds or replaces a snapshot provider by server name.
func (p *SnapshotPoller) Add(name string, provider SnapshotProvider) {
	if p == nil || provider == nil {
		return
	}
	name = normalizeLabel(name, "server")
	p.sourcesMu.Lock()
	p.sources[name] = provider
	p.sourcesMu.Unlock()
}

// Start begins periodic polling; repeated calls are no-ops.
func (p *SnapshotPoller) Start(ctx context.Context) {
	if p == nil {
		return
	}

	p.stateMu.Lock()
	if p.running {
		p.stateMu.Unlock()
		return
	}
	pollCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	p.running = true
	done := p.done
	p.stateMu.Unlock()

	go p.loop(pollCtx, done)
}

// Stop stops periodic polling; repeated calls are safe.
func (p *SnapshotPoller) Stop() {
	if p == nil {
		return
	}

	p.stateMu.Lock()
	if !p.running {
		p.stateMu.Unlock()
		return
	}
	cancel := p.cancel
	done := p.done
	p.stateMu.Unlock()

	cancel()
	<-done

	p.stateMu.Lock()
	p.running = false
	p.cancel = nil
	p.done = nil
	p.stateMu.Unlock()
}

func (p *SnapshotPoller) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.CollectOnce()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.CollectOnce()
		}
	}
}

// CollectOnce refreshes every gauge from the registered providers.
func (p *SnapshotPoller) CollectOnce() {
	p.sourcesMu.RLock()
	defer p.sourcesMu.RUnlock()

	for name, provider := range p.sources {
		snap := provider.Snapshot()
		st := snap.Status

		if st.IsRunning {
			p.up.WithLabelValues(name).Set(1)
		} else {
			p.up.WithLabelValues(name).Set(0)
		}
		p.playersOnline.WithLabelValues(name).Set(float64(st.PlayersOnline))
		p.tps.WithLabelValues(name).Set(st.TPS)
		p.cpuPercent.WithLabelValues(name).Set(st.CPUUsage)
		p.memoryBytes.WithLabelValues(name).Set(float64(st.MemoryUsage))

		if snap.HasSample && st.IsRunning {
			p.uptimeSeconds.WithLabelValues(name).Set(float64(snap.Sample.UptimeSeconds))
			p.lastTickMS.WithLabelValues(name).Set(snap.Sample.LastTickMS)
			p.entities.WithLabelValues(name).Set(float64(snap.Sample.EntityCount))
			p.chunks.WithLabelValues(name).Set(float64(snap.Sample.ChunkCount))
		} else {
			p.uptimeSeconds.WithLabelValues(name).Set(0)
			p.lastTickMS.WithLabelValues(name).Set(0)
			p.entities.WithLabelValues(name).Set(0)
			p.chunks.WithLabelValues(name).Set(0)
		}

		p.droppedLogs.WithLabelValues(name).Set(float64(snap.DroppedLogRecords))
		p.tasks.WithLabelValues(name).Set(float64(snap.Tasks))
		p.unread.WithLabelValues(name).Set(float64(snap.UnreadNotifications))
		p.securityEvents.WithLabelValues(name).Set(float64(snap.SecurityEvents))
	}
}

func normalizeLabel(v string, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func registerCollector[T prom.Collector](reg prom.Registerer, collector T) (T, error) {
	err := reg.Register(collector)
	if err == nil {
		return collector, nil
	}

	var alreadyRegisteredErr prom.AlreadyRegisteredError
	if errors.As(err, &alreadyRegisteredErr) {
		existing, ok := alreadyRegisteredErr.ExistingCollector.(T)
		if !ok {
			return collector, errors.Errorf("collector type mismatch for %T", collector)
		}
		return existing, nil
	}

	return collector, err
}
