// Package updates detects available image updates by comparing locally
// cached digests against the registry, and batches the findings into a
// single notification per cycle.
package updates

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/stackwatchd/stackwatch/internal/config"
	"github.com/stackwatchd/stackwatch/internal/notify"
	"github.com/stackwatchd/stackwatch/internal/registry"
	"github.com/stackwatchd/stackwatch/internal/runtime"
	"github.com/stackwatchd/stackwatch/internal/state"
)

const (
	digestPrefixLen  = 19
	changelogExcerpt = 400
)

// Detector compares image digests and assembles the pending-update
// snapshot.
type Detector struct {
	logger  zerolog.Logger
	client  runtime.Client
	fetcher *registry.Fetcher
}

// New constructs a Detector.
func New(logger zerolog.Logger, client runtime.Client, fetcher *registry.Fetcher) *Detector {
	return &Detector{
		logger:  logger,
		client:  client,
		fetcher: fetcher,
	}
}

// Run checks every tracked image, dispatches one batched notification
// when updates are found, and replaces the document's pending-update
// snapshot wholesale. Per-image failures are logged and skipped; they
// never abort the remaining images.
func (d *Detector) Run(ctx context.Context, dispatcher *notify.Dispatcher, doc *state.Document, services []config.ServiceDescriptor) int {
	pending := map[string]state.PendingUpdateRecord{}

	for _, service := range services {
		logger := d.logger.With().Str("service", service.Name).Str("image", service.Image).Logger()

		local, err := d.client.LocalImageDigest(ctx, service.Image)
		if err != nil {
			logger.Warn().Err(err).Msg("local digest lookup failed, skipping")
			continue
		}
		remote, err := d.client.RemoteImageDigest(ctx, service.Image)
		if err != nil {
			logger.Warn().Err(err).Msg("registry digest lookup failed, skipping")
			continue
		}
		if local == remote {
			continue
		}

		changelog := d.fetcher.Changelog(ctx, service.RegistryKind, service.Image, service.RegistryRepo)
		pending[service.Name] = state.PendingUpdateRecord{
			Image:           service.Image,
			CurrentDigest:   digestPrefix(local),
			AvailableDigest: digestPrefix(remote),
			Changelog:       truncate(changelog, changelogExcerpt),
		}
		logger.Info().
			Str("current", digestPrefix(local)).
			Str("available", digestPrefix(remote)).
			Msg("image update available")
	}

	doc.PendingUpdates = pending

	if len(pending) > 0 {
		names := make([]string, 0, len(pending))
		for _, service := range services {
			if _, ok := pending[service.Name]; ok {
				names = append(names, service.Name)
			}
		}
		dispatcher.Dispatch(ctx, doc, notify.CategoryUpdate,
			fmt.Sprintf("%d image update(s) available", len(pending)),
			formatBatch(services, pending),
			notify.SeverityInfo)
		d.logger.Info().Strs("services", names).Msg("update check complete")
	} else {
		d.logger.Info().Msg("all images current")
	}

	return len(pending)
}

// formatBatch renders one body section per pending update, in service
// table order.
func formatBatch(services []config.ServiceDescriptor, pending map[string]state.PendingUpdateRecord) string {
	var b strings.Builder
	for _, service := range services {
		record, ok := pending[service.Name]
		if !ok {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "**%s** (%s)\n%s → %s\n%s",
			service.Name, record.Image, record.CurrentDigest, record.AvailableDigest, record.Changelog)
	}
	return b.String()
}

func digestPrefix(digest string) string {
	if len(digest) <= digestPrefixLen {
		return digest
	}
	return digest[:digestPrefixLen]
}

// truncate cuts text at the byte limit without splitting a rune.
func truncate(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut] + "…"
}
