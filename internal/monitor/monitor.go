// Package monitor drives the periodic sampling loop: it samples every
// tracked container, classifies transitions against persisted state,
// hands first failures to the remediation controller, emits coalesced
// alerts, runs the auxiliary checks, and persists the updated document.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/stackwatchd/stackwatch/internal/checks"
	"github.com/stackwatchd/stackwatch/internal/config"
	"github.com/stackwatchd/stackwatch/internal/health"
	"github.com/stackwatchd/stackwatch/internal/healthcheck"
	"github.com/stackwatchd/stackwatch/internal/metrics"
	"github.com/stackwatchd/stackwatch/internal/notify"
	"github.com/stackwatchd/stackwatch/internal/remediate"
	"github.com/stackwatchd/stackwatch/internal/runtime"
	"github.com/stackwatchd/stackwatch/internal/state"
	"github.com/stackwatchd/stackwatch/internal/transition"
	"github.com/stackwatchd/stackwatch/internal/updates"
)

// Ticker is the minimal interface needed for driving the monitor loop.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type timeTicker struct {
	ticker *time.Ticker
}

func (t timeTicker) C() <-chan time.Time {
	return t.ticker.C
}

func (t timeTicker) Stop() {
	t.ticker.Stop()
}

var serviceStates = []string{
	string(health.StateUnknown),
	string(health.StateHealthy),
	string(health.StateNoHealthcheck),
	string(health.StateStarting),
	string(health.StateUnhealthy),
	string(health.StateStopped),
}

// Monitor orchestrates the health and update cycles.
type Monitor struct {
	logger         zerolog.Logger
	client         runtime.Client
	store          state.Store
	dispatcher     *notify.Dispatcher
	services       []config.ServiceDescriptor
	checkInterval  time.Duration
	updateInterval time.Duration

	controller *remediate.Controller
	detector   *updates.Detector
	vpn        *checks.VPNChecker
	disk       *checks.DiskChecker
	bans       *checks.BanChecker
	tracker    *healthcheck.Tracker
	collector  *metrics.Metrics

	tickerFactory func(time.Duration) Ticker
	now           func() time.Time

	// terminalReported dedupes the repeated-failure escalation: the
	// classifier re-fires it every cycle a restarted service stays down,
	// but operators only need to hear about it once per episode.
	terminalReported map[string]bool
}

// Option customizes monitor behavior.
type Option func(*Monitor)

// WithController enables automatic remediation of first failures.
func WithController(controller *remediate.Controller) Option {
	return func(m *Monitor) {
		m.controller = controller
	}
}

// WithDetector enables the periodic image update cycle.
func WithDetector(detector *updates.Detector) Option {
	return func(m *Monitor) {
		m.detector = detector
	}
}

// WithVPNChecker adds the VPN connectivity and leak check to each cycle.
func WithVPNChecker(checker *checks.VPNChecker) Option {
	return func(m *Monitor) {
		m.vpn = checker
	}
}

// WithDiskChecker adds the media mount free-space check to each cycle.
func WithDiskChecker(checker *checks.DiskChecker) Option {
	return func(m *Monitor) {
		m.disk = checker
	}
}

// WithBanChecker adds the intrusion-prevention jail tally to each cycle.
func WithBanChecker(checker *checks.BanChecker) Option {
	return func(m *Monitor) {
		m.bans = checker
	}
}

// WithTracker wires cycle timing into the health endpoints.
func WithTracker(tracker *healthcheck.Tracker) Option {
	return func(m *Monitor) {
		m.tracker = tracker
	}
}

// WithMetrics wires cycle observations into Prometheus collectors.
func WithMetrics(collector *metrics.Metrics) Option {
	return func(m *Monitor) {
		m.collector = collector
	}
}

// WithTickerFactory overrides how tickers are created.
func WithTickerFactory(factory func(time.Duration) Ticker) Option {
	return func(m *Monitor) {
		m.tickerFactory = factory
	}
}

// WithClock overrides the time source (for tests).
func WithClock(now func() time.Time) Option {
	return func(m *Monitor) {
		m.now = now
	}
}

// New constructs a Monitor over the given runtime client, state store
// and alert dispatcher.
func New(logger zerolog.Logger, client runtime.Client, store state.Store, dispatcher *notify.Dispatcher, services []config.ServiceDescriptor, checkInterval, updateInterval time.Duration, opts ...Option) *Monitor {
	m := &Monitor{
		logger:         logger,
		client:         client,
		store:          store,
		dispatcher:     dispatcher,
		services:       services,
		checkInterval:  checkInterval,
		updateInterval: updateInterval,
		tickerFactory: func(d time.Duration) Ticker {
			return timeTicker{ticker: time.NewTicker(d)}
		},
		now:              time.Now,
		terminalReported: map[string]bool{},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Run starts both cycles and blocks until the context is canceled. The
// first health cycle runs immediately so a freshly started daemon reports
// without waiting a full interval.
func (m *Monitor) Run(ctx context.Context) error {
	if m.checkInterval <= 0 {
		return errors.New("check interval must be greater than zero")
	}
	if m.updateInterval <= 0 {
		return errors.New("update interval must be greater than zero")
	}

	if err := m.RunHealthCycle(ctx); err != nil {
		m.logger.Error().Err(err).Msg("initial health cycle failed")
	}
	if err := m.RunUpdateCycle(ctx); err != nil {
		m.logger.Error().Err(err).Msg("initial update cycle failed")
	}

	healthTicker := m.tickerFactory(m.checkInterval)
	defer healthTicker.Stop()
	updateTicker := m.tickerFactory(m.updateInterval)
	defer updateTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info().Msg("monitor stopped")
			return nil
		case <-healthTicker.C():
			if err := m.RunHealthCycle(ctx); err != nil {
				m.logger.Error().Err(err).Msg("health cycle failed")
			}
		case <-updateTicker.C():
			if err := m.RunUpdateCycle(ctx); err != nil {
				m.logger.Error().Err(err).Msg("update cycle failed")
			}
		}
	}
}

// RunHealthCycle samples every service once, classifies transitions,
// remediates, alerts, runs auxiliary checks, and persists state. A
// failure against one container never blocks the rest of the fleet.
func (m *Monitor) RunHealthCycle(ctx context.Context) error {
	start := m.now().UTC()

	doc, err := m.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load state: %w", err)
	}

	var failed, recovered []string

	for _, svc := range m.services {
		logger := m.logger.With().Str("service", svc.Name).Logger()

		record := doc.Service(svc.Name)
		status, err := m.client.Status(ctx, svc.ContainerID)
		if err != nil {
			logger.Warn().Err(err).Msg("container status query failed, skipping service this cycle")
			m.collector.IncRuntimeErrors()
			continue
		}

		current := health.Normalize(status)
		m.collector.SetServiceState(svc.Name, serviceStates, string(current))

		event := transition.Classify(record.State, current, record.RestartAttempted)
		logger.Debug().
			Str("previous", string(record.State)).
			Str("current", string(current)).
			Str("event", string(event)).
			Msg("service sampled")

		switch event {
		case transition.EventFirstFailure:
			failed = append(failed, fmt.Sprintf("%s (%s)", svc.Name, current))
			if m.controller != nil {
				outcome := m.controller.HandleFirstFailure(ctx, m.dispatcher, &doc, svc.Name, svc.ContainerID, &record)
				if outcome == remediate.OutcomeIssued {
					m.collector.IncRestartAttempts()
				}
			}

		case transition.EventRecoveryNatural:
			recovered = append(recovered, svc.Name)
			record.RestartAttempted = false
			delete(m.terminalReported, svc.Name)

		case transition.EventRecoveryPostRestart:
			record.RestartAttempted = false
			delete(m.terminalReported, svc.Name)
			m.dispatchCounted(ctx, &doc, notify.CategoryRestartSuccess,
				fmt.Sprintf("Restart verified: %s", svc.Name),
				fmt.Sprintf("%s is %s again after the automatic restart", svc.Name, current),
				notify.SeveritySuccess)

		case transition.EventRepeatedFailure:
			if !m.terminalReported[svc.Name] {
				m.terminalReported[svc.Name] = true
				m.dispatchCounted(ctx, &doc, notify.CategoryRestartFailed,
					fmt.Sprintf("Restart failed: %s", svc.Name),
					fmt.Sprintf("%s is still %s after an automatic restart; manual intervention required", svc.Name, current),
					notify.SeverityCritical)
			}
		}

		// A starting sample is transient: keep the stored state so the
		// eventual terminal sample classifies against the pre-restart state.
		if current != health.StateStarting {
			if current != record.State {
				record.State = current
				record.LastStateChange = start
			}
			doc.Services[svc.Name] = record
		} else if record.State != health.StateUnknown || record.RestartAttempted {
			doc.Services[svc.Name] = record
		}
	}

	if len(failed) > 0 {
		sort.Strings(failed)
		m.dispatchCounted(ctx, &doc, notify.CategoryFailure,
			failureSubject(len(failed)),
			strings.Join(failed, "\n"),
			notify.SeverityCritical)
	}
	if len(recovered) > 0 {
		sort.Strings(recovered)
		m.dispatchCounted(ctx, &doc, notify.CategoryRecovery,
			recoverySubject(len(recovered)),
			strings.Join(recovered, "\n"),
			notify.SeveritySuccess)
	}

	if m.vpn != nil {
		m.vpn.Check(ctx, m.dispatcher, &doc)
	}
	if m.disk != nil {
		m.disk.Check(ctx, m.dispatcher, &doc)
	}
	if m.bans != nil {
		counts, err := m.bans.Tally(ctx)
		if err != nil {
			m.logger.Warn().Err(err).Msg("ban tally failed")
		} else {
			for jail, count := range counts {
				m.collector.SetBannedIPs(jail, count)
			}
		}
	}

	if err := m.store.Save(ctx, doc); err != nil {
		return fmt.Errorf("save state: %w", err)
	}

	end := m.now().UTC()
	duration := end.Sub(start)
	m.tracker.RecordCycle(duration, len(m.services))
	m.collector.ObserveCycleDuration(duration)
	m.collector.SetLastSuccessfulCycleTimestamp(end)

	m.logger.Info().
		Int("services", len(m.services)).
		Int("failed", len(failed)).
		Int("recovered", len(recovered)).
		Dur("duration", duration).
		Msg("health cycle complete")
	return nil
}

// RunUpdateCycle refreshes the pending-update snapshot via the detector.
func (m *Monitor) RunUpdateCycle(ctx context.Context) error {
	if m.detector == nil {
		return nil
	}

	doc, err := m.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load state: %w", err)
	}

	count := m.detector.Run(ctx, m.dispatcher, &doc, m.services)
	m.collector.SetPendingUpdates(count)

	if err := m.store.Save(ctx, doc); err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	return nil
}

func (m *Monitor) dispatchCounted(ctx context.Context, doc *state.Document, category notify.Category, subject, body string, severity notify.Severity) {
	if m.dispatcher.Dispatch(ctx, doc, category, subject, body, severity) {
		m.collector.IncAlerts(string(category))
	} else {
		m.collector.IncAlertsSuppressed()
	}
}

func failureSubject(count int) string {
	if count == 1 {
		return "Service down"
	}
	return fmt.Sprintf("%d services down", count)
}

func recoverySubject(count int) string {
	if count == 1 {
		return "Service recovered"
	}
	return fmt.Sprintf("%d services recovered", count)
}
