// Package checks holds the auxiliary per-cycle checkers: VPN
// reachability and leak detection, disk space, and intrusion-prevention
// ban tallies. Each checker is independent and isolated; a failure in
// one never aborts the rest of the cycle.
package checks

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"

	"github.com/stackwatchd/stackwatch/internal/notify"
	"github.com/stackwatchd/stackwatch/internal/retry"
	"github.com/stackwatchd/stackwatch/internal/runtime"
	"github.com/stackwatchd/stackwatch/internal/state"
)

const (
	vpnIPAttempts   = 3
	vpnIPRetryDelay = 2 * time.Second
	ipBodyLimit     = 256
)

// VPNChecker verifies the VPN container is up, that its egress public IP
// resolves, and that the torrent client's public IP matches it. The
// torrent IP is sourced independently so a mismatch actually means
// traffic is bypassing the tunnel.
type VPNChecker struct {
	logger       zerolog.Logger
	client       runtime.Client
	httpClient   *http.Client
	containerID  string
	vpnIPURL     string
	torrentIPURL string
	attempts     uint
	retryDelay   time.Duration
}

// VPNOption customizes VPNChecker behavior.
type VPNOption func(*VPNChecker)

// WithVPNRetry overrides the IP lookup retry policy (for tests).
func WithVPNRetry(attempts uint, delay time.Duration) VPNOption {
	return func(c *VPNChecker) {
		c.attempts = attempts
		c.retryDelay = delay
	}
}

// NewVPNChecker builds a VPN checker. Returns nil when no VPN IP
// endpoint is configured, which disables the check.
func NewVPNChecker(logger zerolog.Logger, client runtime.Client, containerID, vpnIPURL, torrentIPURL string, opts ...VPNOption) *VPNChecker {
	if vpnIPURL == "" {
		return nil
	}

	httpClient := retryablehttp.NewClient()
	httpClient.RetryMax = 0
	httpClient.Logger = nil
	httpClient.HTTPClient = &http.Client{Timeout: 10 * time.Second}

	c := &VPNChecker{
		logger:       logger,
		client:       client,
		httpClient:   httpClient.StandardClient(),
		containerID:  containerID,
		vpnIPURL:     vpnIPURL,
		torrentIPURL: torrentIPURL,
		attempts:     vpnIPAttempts,
		retryDelay:   vpnIPRetryDelay,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Check runs the VPN reachability check and, when a torrent IP endpoint
// is configured, the leak comparison.
func (c *VPNChecker) Check(ctx context.Context, dispatcher *notify.Dispatcher, doc *state.Document) {
	if c.containerID != "" {
		status, err := c.client.Status(ctx, c.containerID)
		if err != nil || !status.Running {
			c.logger.Warn().Err(err).Str("container", c.containerID).Msg("vpn container not running")
			dispatcher.Dispatch(ctx, doc, notify.CategoryVPN,
				"VPN container down",
				fmt.Sprintf("container %s is not running; tunnel is offline", c.containerID),
				notify.SeverityCritical)
			return
		}
	}

	vpnIP, err := retry.Do(ctx, c.attempts, c.retryDelay, func(ctx context.Context) (string, error) {
		return c.fetchIP(ctx, c.vpnIPURL)
	})
	if err != nil {
		c.logger.Warn().Err(err).Msg("vpn public ip lookup failed after all attempts")
		dispatcher.Dispatch(ctx, doc, notify.CategoryVPN,
			"VPN public IP lookup failed",
			fmt.Sprintf("egress IP could not be resolved after %d attempts: %v", c.attempts, err),
			notify.SeverityCritical)
		return
	}
	c.logger.Debug().Str("vpn_ip", vpnIP).Msg("vpn egress ip resolved")

	if c.torrentIPURL == "" {
		return
	}

	torrentIP, err := c.fetchIP(ctx, c.torrentIPURL)
	if err != nil {
		c.logger.Warn().Err(err).Msg("torrent client ip lookup failed, skipping leak comparison")
		return
	}

	if torrentIP != vpnIP {
		c.logger.Error().
			Str("vpn_ip", vpnIP).
			Str("torrent_ip", torrentIP).
			Msg("torrent traffic is not egressing through the vpn")
		dispatcher.Dispatch(ctx, doc, notify.CategoryVPNLeak,
			"VPN leak detected",
			fmt.Sprintf("torrent client egress IP %s does not match VPN egress IP %s; traffic is bypassing the tunnel", torrentIP, vpnIP),
			notify.SeverityCritical)
	}
}

// fetchIP queries an IP-echo endpoint and validates the response.
func (c *VPNChecker) fetchIP(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ip lookup returned %s", resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, ipBodyLimit))
	if err != nil {
		return "", err
	}

	value := strings.TrimSpace(string(body))
	if net.ParseIP(value) == nil {
		return "", fmt.Errorf("ip lookup returned %q, not an address", value)
	}
	return value, nil
}
