package checks

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/stackwatchd/stackwatch/internal/runtime"
)

// BanChecker tallies fail2ban bans per jail by running fail2ban-client
// inside the intrusion-prevention container. Purely observational: the
// totals go to logs and metrics, never to alerts.
type BanChecker struct {
	logger      zerolog.Logger
	client      runtime.Client
	containerID string
}

// NewBanChecker builds a ban checker. Returns nil when no container is
// configured, which disables the check.
func NewBanChecker(logger zerolog.Logger, client runtime.Client, containerID string) *BanChecker {
	if containerID == "" {
		return nil
	}
	return &BanChecker{
		logger:      logger,
		client:      client,
		containerID: containerID,
	}
}

// Tally returns the current banned-IP count per jail.
func (c *BanChecker) Tally(ctx context.Context) (map[string]int, error) {
	out, err := c.client.Exec(ctx, c.containerID, []string{"fail2ban-client", "status"})
	if err != nil {
		return nil, fmt.Errorf("query jail list: %w", err)
	}

	jails := parseJailList(out)
	counts := make(map[string]int, len(jails))
	total := 0

	for _, jail := range jails {
		out, err := c.client.Exec(ctx, c.containerID, []string{"fail2ban-client", "status", jail})
		if err != nil {
			c.logger.Warn().Err(err).Str("jail", jail).Msg("jail status query failed")
			continue
		}
		banned := parseBannedCount(out)
		counts[jail] = banned
		total += banned
	}

	c.logger.Info().
		Int("jails", len(jails)).
		Int("total_banned", total).
		Interface("per_jail", counts).
		Msg("intrusion-prevention ban tally")

	return counts, nil
}

// parseJailList extracts jail names from "fail2ban-client status" output.
func parseJailList(out string) []string {
	for _, line := range strings.Split(out, "\n") {
		idx := strings.Index(line, "Jail list:")
		if idx == -1 {
			continue
		}
		raw := strings.TrimSpace(line[idx+len("Jail list:"):])
		if raw == "" {
			return nil
		}
		parts := strings.Split(raw, ",")
		jails := make([]string, 0, len(parts))
		for _, part := range parts {
			if name := strings.TrimSpace(part); name != "" {
				jails = append(jails, name)
			}
		}
		return jails
	}
	return nil
}

// parseBannedCount extracts the currently banned count from a per-jail
// status output.
func parseBannedCount(out string) int {
	for _, line := range strings.Split(out, "\n") {
		idx := strings.Index(line, "Currently banned:")
		if idx == -1 {
			continue
		}
		raw := strings.TrimSpace(line[idx+len("Currently banned:"):])
		if count, err := strconv.Atoi(raw); err == nil {
			return count
		}
	}
	return 0
}
