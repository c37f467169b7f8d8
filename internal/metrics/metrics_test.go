package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsUpdates(t *testing.T) {
	m := New()

	m.ObserveCycleDuration(2 * time.Second)
	m.SetServiceState("radarr", []string{"healthy", "stopped"}, "stopped")
	m.IncAlerts("failure")
	m.IncAlerts("failure")
	m.IncAlertsSuppressed()
	m.IncRestartAttempts()
	m.IncRuntimeErrors()
	m.SetPendingUpdates(2)
	m.SetBannedIPs("sshd", 4)
	m.SetLastSuccessfulCycleTimestamp(time.Unix(100, 0))

	if got := testutil.ToFloat64(m.serviceState.WithLabelValues("radarr", "stopped")); got != 1 {
		t.Fatalf("expected stopped state 1, got %v", got)
	}
	if got := testutil.ToFloat64(m.serviceState.WithLabelValues("radarr", "healthy")); got != 0 {
		t.Fatalf("expected healthy state 0, got %v", got)
	}
	if got := testutil.ToFloat64(m.alertsTotal.WithLabelValues("failure")); got != 2 {
		t.Fatalf("expected alerts 2, got %v", got)
	}
	if got := testutil.ToFloat64(m.alertsSuppressedTotal); got != 1 {
		t.Fatalf("expected suppressed alerts 1, got %v", got)
	}
	if got := testutil.ToFloat64(m.restartAttemptsTotal); got != 1 {
		t.Fatalf("expected restart attempts 1, got %v", got)
	}
	if got := testutil.ToFloat64(m.runtimeErrorsTotal); got != 1 {
		t.Fatalf("expected runtime errors 1, got %v", got)
	}
	if got := testutil.ToFloat64(m.pendingUpdatesGauge); got != 2 {
		t.Fatalf("expected pending updates 2, got %v", got)
	}
	if got := testutil.ToFloat64(m.bannedIPsGauge.WithLabelValues("sshd")); got != 4 {
		t.Fatalf("expected banned ips 4, got %v", got)
	}
	if got := testutil.ToFloat64(m.lastSuccessfulCycleGauge); got != 100 {
		t.Fatalf("expected last successful cycle 100, got %v", got)
	}
	if count := testutil.CollectAndCount(m.cycleDurationSeconds); count == 0 {
		t.Fatalf("expected cycle duration histogram to be collected")
	}
}

func TestNilMetricsNoops(t *testing.T) {
	var m *Metrics
	m.ObserveCycleDuration(time.Second)
	m.SetServiceState("radarr", []string{"healthy"}, "healthy")
	m.IncAlerts("failure")
	m.IncAlertsSuppressed()
	m.IncRestartAttempts()
	m.IncRuntimeErrors()
	m.SetPendingUpdates(1)
	m.SetBannedIPs("sshd", 1)
	m.SetLastSuccessfulCycleTimestamp(time.Unix(1, 0))
	if m.Handler() == nil {
		t.Fatal("expected fallback handler for nil metrics")
	}
}
