package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"yuanfang/internal/session"
)

// Metrics exposes Prometheus collectors for the turn pipeline. It satisfies
// session.Observer so the controller can report without importing this
// package's types.
type Metrics struct {
	turnStageDuration *prometheus.HistogramVec
	turnFailures      *prometheus.CounterVec
	toolInvocations   *prometheus.CounterVec
	toolDuration      *prometheus.HistogramVec
	sessionsActive    prometheus.Gauge
}

var _ session.Observer = (*Metrics)(nil)

var (
	defaultMetricsOnce sync.Once
	sharedMetrics      *Metrics
)

// DefaultMetrics returns the package-level metrics instance registered with
// the global Prometheus registry. The collectors are created only once so
// repeated controller construction never panics on duplicate registration.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		sharedMetrics = MustNewMetrics(prometheus.DefaultRegisterer)
	})
	return sharedMetrics
}

// MustNewMetrics constructs a Metrics instance on the provided registerer.
// Pass a fresh registry in tests. Registration errors other than
// AlreadyRegistered panic, mirroring promauto semantics.
func MustNewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	turnStageDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "yuanfang",
			Subsystem: "session",
			Name:      "turn_duration_seconds",
			Help:      "End-to-end turn duration by final stage.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"stage"},
	)
	turnFailures := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "yuanfang",
			Subsystem: "session",
			Name:      "turn_failures_total",
			Help:      "Turns that ended in the failed stage, by reason.",
		},
		[]string{"reason"},
	)
	toolInvocations := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "yuanfang",
			Subsystem: "tools",
			Name:      "invocations_total",
			Help:      "Tool invocations by tool name and terminal status.",
		},
		[]string{"tool", "status"},
	)
	toolDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "yuanfang",
			Subsystem: "tools",
			Name:      "invocation_duration_seconds",
			Help:      "Wall-clock duration of tool invocations.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"tool"},
	)
	sessionsActive := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "yuanfang",
			Subsystem: "session",
			Name:      "active",
			Help:      "Number of open sessions.",
		},
	)

	collectors := []prometheus.Collector{turnStageDuration, turnFailures, toolInvocations, toolDuration, sessionsActive}
	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
				switch collector {
				case turnStageDuration:
					turnStageDuration = already.ExistingCollector.(*prometheus.HistogramVec)
				case turnFailures:
					turnFailures = already.ExistingCollector.(*prometheus.CounterVec)
				case toolInvocations:
					toolInvocations = already.ExistingCollector.(*prometheus.CounterVec)
				case toolDuration:
					toolDuration = already.ExistingCollector.(*prometheus.HistogramVec)
				case sessionsActive:
					sessionsActive = already.ExistingCollector.(prometheus.Gauge)
				}
				continue
			}
			panic(err)
		}
	}

	return &Metrics{
		turnStageDuration: turnStageDuration,
		turnFailures:      turnFailures,
		toolInvocations:   toolInvocations,
		toolDuration:      toolDuration,
		sessionsActive:    sessionsActive,
	}
}

// ObserveStage records a completed turn's duration under its final stage.
func (m *Metrics) ObserveStage(stage session.Stage, elapsed time.Duration) {
	if m == nil || m.turnStageDuration == nil {
		return
	}
	m.turnStageDuration.WithLabelValues(string(stage)).Observe(elapsed.Seconds())
}

// TurnFailed counts a failed turn by reason.
func (m *Metrics) TurnFailed(reason string) {
	if m == nil || m.turnFailures == nil {
		return
	}
	m.turnFailures.WithLabelValues(reason).Inc()
}

// ToolInvoked counts a terminal tool invocation and records its duration.
func (m *Metrics) ToolInvoked(tool, status string, elapsed time.Duration) {
	if m == nil || m.toolInvocations == nil {
		return
	}
	m.toolInvocations.WithLabelValues(tool, status).Inc()
	m.toolDuration.WithLabelValues(tool).Observe(elapsed.Seconds())
}

// SessionOpened bumps the active session gauge.
func (m *Metrics) SessionOpened() {
	if m == nil || m.sessionsActive == nil {
		return
	}
	m.sessionsActive.Inc()
}

// SessionClosed drops the active session gauge.
func (m *Metrics) SessionClosed() {
	if m == nil || m.sessionsActive == nil {
		return
	}
	m.sessionsActive.Dec()
}
