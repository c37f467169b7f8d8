package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/slack-go/slack"
)

// SlackNotifier mirrors alerts to a Slack incoming webhook. It is an
// optional secondary sink alongside the primary webhook.
type SlackNotifier struct {
	logger zerolog.Logger
	poster *httpPoster
}

// SlackOption customizes SlackNotifier behavior.
type SlackOption func(*timingConfig)

// WithSlackTiming overrides poster timing (primarily for testing).
func WithSlackTiming(timeout, rateInterval time.Duration, rateBurst int) SlackOption {
	return func(timing *timingConfig) {
		timing.timeout = timeout
		timing.rateInterval = rateInterval
		timing.rateBurst = rateBurst
	}
}

// NewSlackNotifier creates a Slack notifier, or nil when no webhook URL
// is configured.
func NewSlackNotifier(logger zerolog.Logger, webhookURL string, opts ...SlackOption) Notifier {
	if webhookURL == "" {
		return nil
	}

	timing := defaultTiming
	for _, opt := range opts {
		opt(&timing)
	}

	return &SlackNotifier{
		logger: logger,
		poster: newHTTPPoster(logger, "slack", webhookURL, "application/json", timing),
	}
}

// Send implements Notifier.
func (n *SlackNotifier) Send(ctx context.Context, msg Message) error {
	attachment := slack.Attachment{
		Color:      severityHex(msg.Severity),
		Title:      msg.Title,
		Text:       msg.Description,
		Footer:     msg.Footer,
		Ts:         json.Number(fmt.Sprintf("%d", msg.Timestamp.UTC().Unix())),
		MarkdownIn: []string{"text"},
	}

	payload, err := json.Marshal(slack.WebhookMessage{
		Text:        msg.Title,
		Attachments: []slack.Attachment{attachment},
	})
	if err != nil {
		return fmt.Errorf("marshal slack payload: %w", err)
	}
	if err := n.poster.post(ctx, payload); err != nil {
		return err
	}

	n.logger.Debug().Str("title", msg.Title).Msg("slack notification sent")
	return nil
}

func severityHex(s Severity) string {
	switch s {
	case SeveritySuccess:
		return "#2ecc71"
	case SeverityWarning:
		return "#e67e22"
	case SeverityCritical:
		return "#e74c3c"
	default:
		return "#3498db"
	}
}
