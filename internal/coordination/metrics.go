package coordination

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes Prometheus collectors that report coordination-loop
// activity: tick phase durations, spawn/reap counters, and web population.
type Metrics struct {
	tickDuration   *prometheus.HistogramVec
	phaseFailures  *prometheus.CounterVec
	agentsSpawned  prometheus.Counter
	agentsReaped   prometheus.Counter
	signalsEmitted prometheus.Counter
	websActive     prometheus.Gauge
}

var (
	defaultMetricsOnce sync.Once
	sharedMetrics      *Metrics
)

// defaultMetrics returns the package-level metrics instance registered with
// the global Prometheus registry, created once to avoid duplicate
// registration panics when multiple webs' loops share a process.
func defaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		sharedMetrics = MustNewMetrics(prometheus.DefaultRegisterer)
	})
	return sharedMetrics
}

// MustNewMetrics constructs a Metrics instance against reg. Tests that need
// isolated collectors should pass a fresh prometheus.NewRegistry(). A
// collector that is already registered is reused; any other registration
// error panics, surfacing configuration bugs early.
func MustNewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	tickDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "arachnid",
			Subsystem: "coordination",
			Name:      "tick_phase_duration_seconds",
			Help:      "Duration spent in each coordination tick phase.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"phase", "status"},
	)
	phaseFailures := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "arachnid",
			Subsystem: "coordination",
			Name:      "tick_phase_failures_total",
			Help:      "Total number of tick phase runs that failed irrecoverably.",
		},
		[]string{"phase", "reason"},
	)
	agentsSpawned := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "arachnid",
			Subsystem: "coordination",
			Name:      "agents_spawned_total",
			Help:      "Total number of agents created by the spawn protocol.",
		},
	)
	agentsReaped := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "arachnid",
			Subsystem: "coordination",
			Name:      "agents_reaped_total",
			Help:      "Total number of agents wound down by web cancellation; health-driven wind-downs are not counted.",
		},
	)
	signalsEmitted := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "arachnid",
			Subsystem: "coordination",
			Name:      "signals_emitted_total",
			Help:      "Total number of signals created across all webs.",
		},
	)
	websActive := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "arachnid",
			Subsystem: "coordination",
			Name:      "webs_active",
			Help:      "Number of webs currently in the Running state.",
		},
	)

	collectors := []prometheus.Collector{tickDuration, phaseFailures, agentsSpawned, agentsReaped, signalsEmitted, websActive}
	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
				switch existing := already.ExistingCollector.(type) {
				case *prometheus.HistogramVec:
					tickDuration = existing
				case *prometheus.CounterVec:
					phaseFailures = existing
				case prometheus.Gauge:
					websActive = existing
				case prometheus.Counter:
					switch collector {
					case agentsSpawned:
						agentsSpawned = existing
					case agentsReaped:
						agentsReaped = existing
					case signalsEmitted:
						signalsEmitted = existing
					}
				}
				continue
			}
			panic(err)
		}
	}

	return &Metrics{
		tickDuration:   tickDuration,
		phaseFailures:  phaseFailures,
		agentsSpawned:  agentsSpawned,
		agentsReaped:   agentsReaped,
		signalsEmitted: signalsEmitted,
		websActive:     websActive,
	}
}

func (m *Metrics) observePhase(phase, status string, d time.Duration) {
	if m == nil || m.tickDuration == nil {
		return
	}
	m.tickDuration.WithLabelValues(phase, status).Observe(d.Seconds())
}

func (m *Metrics) incPhaseFailure(phase, reason string) {
	if m == nil || m.phaseFailures == nil {
		return
	}
	m.phaseFailures.WithLabelValues(phase, reason).Inc()
}

func (m *Metrics) incAgentsSpawned() {
	if m == nil || m.agentsSpawned == nil {
		return
	}
	m.agentsSpawned.Inc()
}

func (m *Metrics) incAgentsReaped() {
	if m == nil || m.agentsReaped == nil {
		return
	}
	m.agentsReaped.Inc()
}

func (m *Metrics) incSignalsEmitted() {
	if m == nil || m.signalsEmitted == nil {
		return
	}
	m.signalsEmitted.Inc()
}

func (m *Metrics) setWebsActive(n int) {
	if m == nil || m.websActive == nil {
		return
	}
	m.websActive.Set(float64(n))
}
