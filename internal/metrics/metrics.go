package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics wraps Prometheus collectors for stackwatch.
type Metrics struct {
	registry                 *prometheus.Registry
	cycleDurationSeconds     prometheus.Histogram
	serviceState             *prometheus.GaugeVec
	alertsTotal              *prometheus.CounterVec
	alertsSuppressedTotal    prometheus.Counter
	restartAttemptsTotal     prometheus.Counter
	runtimeErrorsTotal       prometheus.Counter
	pendingUpdatesGauge      prometheus.Gauge
	bannedIPsGauge           *prometheus.GaugeVec
	lastSuccessfulCycleGauge prometheus.Gauge
}

// New initializes a Metrics registry with all collectors registered.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	m := &Metrics{
		registry: registry,
		cycleDurationSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "stackwatch_cycle_duration_seconds",
			Help:    "Duration of health check cycles in seconds.",
			Buckets: prometheus.DefBuckets,
		}),
		serviceState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "stackwatch_service_state",
			Help: "Current state per service (1 for the active state).",
		}, []string{"service", "state"}),
		alertsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stackwatch_alerts_total",
			Help: "Total alerts dispatched by category.",
		}, []string{"category"}),
		alertsSuppressedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stackwatch_alerts_suppressed_total",
			Help: "Total alerts suppressed by cooldown or missing endpoint.",
		}),
		restartAttemptsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stackwatch_restart_attempts_total",
			Help: "Total automatic restart attempts issued.",
		}),
		runtimeErrorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stackwatch_runtime_errors_total",
			Help: "Total container runtime query errors.",
		}),
		pendingUpdatesGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "stackwatch_pending_updates",
			Help: "Number of tracked images with an available update.",
		}),
		bannedIPsGauge: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "stackwatch_banned_ips",
			Help: "Currently banned IPs per intrusion-prevention jail.",
		}, []string{"jail"}),
		lastSuccessfulCycleGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "stackwatch_last_successful_cycle_timestamp",
			Help: "Unix timestamp of the last successful cycle.",
		}),
	}

	registry.MustRegister(
		m.cycleDurationSeconds,
		m.serviceState,
		m.alertsTotal,
		m.alertsSuppressedTotal,
		m.restartAttemptsTotal,
		m.runtimeErrorsTotal,
		m.pendingUpdatesGauge,
		m.bannedIPsGauge,
		m.lastSuccessfulCycleGauge,
	)

	return m
}

// Handler returns a Prometheus HTTP handler for this registry.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveCycleDuration records the duration of a completed cycle.
func (m *Metrics) ObserveCycleDuration(duration time.Duration) {
	if m == nil {
		return
	}
	m.cycleDurationSeconds.Observe(duration.Seconds())
}

// SetServiceState marks the active state for a service, clearing the
// other state labels.
func (m *Metrics) SetServiceState(service string, states []string, active string) {
	if m == nil {
		return
	}
	for _, candidate := range states {
		value := 0.0
		if candidate == active {
			value = 1.0
		}
		m.serviceState.WithLabelValues(service, candidate).Set(value)
	}
}

// IncAlerts increments the dispatched-alert counter for a category.
func (m *Metrics) IncAlerts(category string) {
	if m == nil {
		return
	}
	m.alertsTotal.WithLabelValues(category).Inc()
}

// IncAlertsSuppressed increments the suppressed-alert counter.
func (m *Metrics) IncAlertsSuppressed() {
	if m == nil {
		return
	}
	m.alertsSuppressedTotal.Inc()
}

// IncRestartAttempts increments the restart attempt counter.
func (m *Metrics) IncRestartAttempts() {
	if m == nil {
		return
	}
	m.restartAttemptsTotal.Inc()
}

// IncRuntimeErrors increments the runtime error counter.
func (m *Metrics) IncRuntimeErrors() {
	if m == nil {
		return
	}
	m.runtimeErrorsTotal.Inc()
}

// SetPendingUpdates records the size of the pending-update snapshot.
func (m *Metrics) SetPendingUpdates(count int) {
	if m == nil {
		return
	}
	m.pendingUpdatesGauge.Set(float64(count))
}

// SetBannedIPs records the banned-IP count for a jail.
func (m *Metrics) SetBannedIPs(jail string, count int) {
	if m == nil {
		return
	}
	m.bannedIPsGauge.WithLabelValues(jail).Set(float64(count))
}

// SetLastSuccessfulCycleTimestamp sets the last successful cycle time.
func (m *Metrics) SetLastSuccessfulCycleTimestamp(t time.Time) {
	if m == nil {
		return
	}
	m.lastSuccessfulCycleGauge.Set(float64(t.Unix()))
}
