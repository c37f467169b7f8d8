// Package remediate implements the bounded auto-restart policy: at most
// one restart attempt per failure episode, gated by a per-service
// cooldown, with verification deferred to the next sampling cycle.
package remediate

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/stackwatchd/stackwatch/internal/notify"
	"github.com/stackwatchd/stackwatch/internal/runtime"
	"github.com/stackwatchd/stackwatch/internal/state"
)

// Outcome describes what the controller did with a first-failure event.
type Outcome string

const (
	// OutcomeDisabled means auto-restart is globally off; nothing issued.
	OutcomeDisabled Outcome = "disabled"
	// OutcomeDeferred means the restart cooldown has not elapsed.
	OutcomeDeferred Outcome = "deferred"
	// OutcomeIssued means a restart command was accepted by the runtime.
	OutcomeIssued Outcome = "issued"
	// OutcomeCommandFailed means the restart command itself was rejected.
	OutcomeCommandFailed Outcome = "command-failed"
)

// Controller consumes first-failure events and issues bounded restarts.
type Controller struct {
	logger   zerolog.Logger
	client   runtime.Client
	enabled  bool
	cooldown time.Duration
	now      func() time.Time
}

// Option customizes Controller behavior.
type Option func(*Controller)

// WithClock overrides the time source (for tests).
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		c.now = now
	}
}

// New constructs a Controller.
func New(logger zerolog.Logger, client runtime.Client, enabled bool, cooldown time.Duration, opts ...Option) *Controller {
	c := &Controller{
		logger:   logger,
		client:   client,
		enabled:  enabled,
		cooldown: cooldown,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// HandleFirstFailure decides whether to restart a freshly failed service.
// The record is mutated in place: a restart attempt stamps
// restart_attempted and last_restart_time regardless of whether the
// command itself succeeded, so the episode never gets a second attempt.
// A rejected command is escalated immediately through the dispatcher
// instead of waiting a cycle.
func (c *Controller) HandleFirstFailure(ctx context.Context, dispatcher *notify.Dispatcher, doc *state.Document, service, containerID string, record *state.ServiceRecord) Outcome {
	logger := c.logger.With().Str("service", service).Logger()

	if !c.enabled {
		logger.Debug().Msg("auto-restart disabled, skipping remediation")
		return OutcomeDisabled
	}

	now := c.now().UTC()
	if !record.LastRestartTime.IsZero() {
		elapsed := now.Sub(record.LastRestartTime)
		if elapsed < c.cooldown {
			logger.Info().
				Dur("elapsed", elapsed).
				Dur("cooldown", c.cooldown).
				Msg("restart cooldown active, deferring remediation")
			return OutcomeDeferred
		}
	}

	record.RestartAttempted = true
	record.LastRestartTime = now

	dispatcher.Dispatch(ctx, doc, notify.CategoryRestartAttempt,
		fmt.Sprintf("Restarting %s", service),
		fmt.Sprintf("%s went down; issuing automatic restart", service),
		notify.SeverityInfo)

	if err := c.client.Restart(ctx, containerID); err != nil {
		logger.Error().Err(err).Msg("restart command rejected")
		dispatcher.Dispatch(ctx, doc, notify.CategoryRestartFailed,
			fmt.Sprintf("Restart failed: %s", service),
			fmt.Sprintf("restart command was rejected by the runtime: %v", err),
			notify.SeverityCritical)
		return OutcomeCommandFailed
	}

	logger.Info().Msg("restart issued, verification on next cycle")
	return OutcomeIssued
}
