package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// webhookEmbed is the structured body posted to the notification sink.
type webhookEmbed struct {
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Color       int           `json:"color"`
	Timestamp   string        `json:"timestamp"`
	Footer      webhookFooter `json:"footer"`
}

type webhookFooter struct {
	Text string `json:"text"`
}

type webhookPayload struct {
	Embeds []webhookEmbed `json:"embeds"`
}

// WebhookNotifier delivers alerts to a Discord-compatible webhook as a
// single embed per message.
type WebhookNotifier struct {
	logger zerolog.Logger
	poster *httpPoster
}

// WebhookOption customizes WebhookNotifier behavior.
type WebhookOption func(*WebhookNotifier, *timingConfig)

// WithWebhookTiming overrides poster timing (primarily for testing).
func WithWebhookTiming(timeout, rateInterval time.Duration, rateBurst int) WebhookOption {
	return func(_ *WebhookNotifier, timing *timingConfig) {
		timing.timeout = timeout
		timing.rateInterval = rateInterval
		timing.rateBurst = rateBurst
	}
}

// NewWebhookNotifier creates a webhook notifier, or nil when no URL is
// configured.
func NewWebhookNotifier(logger zerolog.Logger, webhookURL string, opts ...WebhookOption) Notifier {
	if webhookURL == "" {
		return nil
	}

	notifier := &WebhookNotifier{logger: logger}
	timing := defaultTiming
	for _, opt := range opts {
		opt(notifier, &timing)
	}
	notifier.poster = newHTTPPoster(logger, "webhook", webhookURL, "application/json", timing)
	return notifier
}

// Send implements Notifier.
func (n *WebhookNotifier) Send(ctx context.Context, msg Message) error {
	payload := webhookPayload{
		Embeds: []webhookEmbed{
			{
				Title:       msg.Title,
				Description: msg.Description,
				Color:       msg.Severity.Color(),
				Timestamp:   msg.Timestamp.UTC().Format(time.RFC3339),
				Footer:      webhookFooter{Text: msg.Footer},
			},
		},
	}

	encoded, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}
	if err := n.poster.post(ctx, encoded); err != nil {
		return err
	}

	n.logger.Debug().Str("title", msg.Title).Msg("webhook notification sent")
	return nil
}
