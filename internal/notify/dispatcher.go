package notify

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/stackwatchd/stackwatch/internal/state"
)

// Category identifies an alert stream with its own cooldown lane.
type Category string

const (
	CategoryFailure  Category = "failure"
	CategoryRecovery Category = "recovery"
	CategoryDisk     Category = "disk"
	CategoryUpdate   Category = "update"
	CategoryVPN      Category = "vpn"
	CategoryVPNLeak  Category = "vpn_leak"

	// Restart lifecycle pseudo-categories bypass cooldown gating so
	// operators always see restart-specific context, even while the
	// coarse failure/recovery cooldowns are active.
	CategoryRestartAttempt Category = "restart_attempt"
	CategoryRestartSuccess Category = "restart_success"
	CategoryRestartFailed  Category = "restart_failed"
)

// bypassesCooldown reports whether the category skips cooldown gating.
func (c Category) bypassesCooldown() bool {
	switch c {
	case CategoryRestartAttempt, CategoryRestartSuccess, CategoryRestartFailed:
		return true
	}
	return false
}

const defaultFooter = "stackwatch fleet monitor"

// Dispatcher formats and emits alerts, enforcing a per-category cooldown
// persisted in the state document. Delivery is best-effort: failures are
// logged and never propagate into the monitoring cycle.
type Dispatcher struct {
	logger   zerolog.Logger
	notifier Notifier
	cooldown time.Duration
	footer   string
	now      func() time.Time
}

// DispatcherOption customizes Dispatcher behavior.
type DispatcherOption func(*Dispatcher)

// WithClock overrides the time source (for tests).
func WithClock(now func() time.Time) DispatcherOption {
	return func(d *Dispatcher) {
		d.now = now
	}
}

// NewDispatcher builds a dispatcher over the given notifier. A nil
// notifier turns every dispatch into a logged no-op.
func NewDispatcher(logger zerolog.Logger, notifier Notifier, cooldown time.Duration, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		logger:   logger,
		notifier: notifier,
		cooldown: cooldown,
		footer:   defaultFooter,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch emits one alert for the category, updating the category's
// cooldown record in doc on successful delivery. Returns true when the
// message was handed to the sink.
func (d *Dispatcher) Dispatch(ctx context.Context, doc *state.Document, category Category, subject, body string, severity Severity) bool {
	logger := d.logger.With().
		Str("category", string(category)).
		Str("subject", subject).
		Logger()

	if d.notifier == nil {
		logger.Info().Msg("no notification endpoint configured, alert dropped")
		return false
	}

	now := d.now().UTC()
	if !category.bypassesCooldown() {
		if record, ok := doc.Alerts[string(category)]; ok {
			elapsed := now.Sub(record.LastAlertTime)
			if elapsed < d.cooldown {
				logger.Debug().
					Dur("elapsed", elapsed).
					Dur("cooldown", d.cooldown).
					Msg("alert suppressed by cooldown")
				return false
			}
		}
	}

	msg := Message{
		Title:       subject,
		Description: body,
		Severity:    severity,
		Timestamp:   now,
		Footer:      d.footer,
	}

	if err := d.notifier.Send(ctx, msg); err != nil {
		logger.Warn().Err(err).Msg("notification delivery failed")
		return false
	}

	doc.Alerts[string(category)] = state.AlertCooldownRecord{LastAlertTime: now}
	logger.Info().Str("severity", string(severity)).Msg("alert dispatched")
	return true
}
