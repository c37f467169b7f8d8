package config

import (
	"strings"
	"testing"
	"time"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("SW_COMPOSE_FILE", "compose.yml")
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.CheckInterval != 5*time.Minute {
		t.Fatalf("unexpected check interval %s", cfg.CheckInterval)
	}
	if cfg.UpdateInterval != 24*time.Hour {
		t.Fatalf("unexpected update interval %s", cfg.UpdateInterval)
	}
	if cfg.AlertCooldown != time.Hour {
		t.Fatalf("unexpected alert cooldown %s", cfg.AlertCooldown)
	}
	if cfg.RestartCooldown != 10*time.Minute {
		t.Fatalf("unexpected restart cooldown %s", cfg.RestartCooldown)
	}
	if cfg.AutoRestart {
		t.Fatal("auto-restart must default to off")
	}
	if cfg.DiskThresholdGB != 10 {
		t.Fatalf("unexpected disk threshold %f", cfg.DiskThresholdGB)
	}
	if cfg.StatePath != "logs/state.json" {
		t.Fatalf("unexpected state path %s", cfg.StatePath)
	}
}

func TestLoad_FullEnvironment(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("SW_WEBHOOK_URL", "https://discord.example/api/webhooks/1/abc")
	t.Setenv("SW_SLACK_WEBHOOK_URL", "https://hooks.slack.example/services/T/B/x")
	t.Setenv("SW_DOCKER_HOST", "tcp://docker-proxy:2375")
	t.Setenv("SW_CHECK_INTERVAL", "90s")
	t.Setenv("SW_UPDATE_INTERVAL", "12h")
	t.Setenv("SW_ALERT_COOLDOWN", "30m")
	t.Setenv("SW_AUTO_RESTART", "true")
	t.Setenv("SW_RESTART_COOLDOWN", "5m")
	t.Setenv("SW_DISK_THRESHOLD_GB", "25.5")
	t.Setenv("SW_MEDIA_MOUNT", "/mnt/media")
	t.Setenv("SW_VPN_CONTAINER", "gluetun")
	t.Setenv("SW_VPN_IP_URL", "http://gluetun:8000/v1/publicip/ip")
	t.Setenv("SW_TORRENT_IP_URL", "http://qbittorrent:8080/api/v2/app/networkAddress")
	t.Setenv("SW_FAIL2BAN_CONTAINER", "fail2ban")
	t.Setenv("SW_GITHUB_TOKEN", "ghp_example")
	t.Setenv("SW_HEALTH_PORT", "8080")
	t.Setenv("SW_METRICS_PORT", "9090")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.CheckInterval != 90*time.Second {
		t.Fatalf("unexpected check interval %s", cfg.CheckInterval)
	}
	if !cfg.AutoRestart {
		t.Fatal("expected auto-restart on")
	}
	if cfg.DiskThresholdGB != 25.5 {
		t.Fatalf("unexpected threshold %f", cfg.DiskThresholdGB)
	}
	if cfg.HealthPort != 8080 || cfg.MetricsPort != 9090 {
		t.Fatalf("unexpected ports %d/%d", cfg.HealthPort, cfg.MetricsPort)
	}
	if cfg.VPNContainer != "gluetun" {
		t.Fatalf("unexpected vpn container %s", cfg.VPNContainer)
	}
}

func TestLoad_ComposeFileRequired(t *testing.T) {
	if _, err := Load(); err == nil || !strings.Contains(err.Error(), "SW_COMPOSE_FILE") {
		t.Fatalf("expected missing compose file error, got %v", err)
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	cases := []struct {
		key   string
		value string
	}{
		{"SW_CHECK_INTERVAL", "soon"},
		{"SW_CHECK_INTERVAL", "-5m"},
		{"SW_AUTO_RESTART", "maybe"},
		{"SW_DISK_THRESHOLD_GB", "lots"},
		{"SW_DISK_THRESHOLD_GB", "0"},
		{"SW_WEBHOOK_URL", "not a url"},
		{"SW_HEALTH_PORT", "99999"},
	}

	for _, tc := range cases {
		t.Run(tc.key+"="+tc.value, func(t *testing.T) {
			setRequiredEnv(t)
			t.Setenv(tc.key, tc.value)
			if _, err := Load(); err == nil {
				t.Fatalf("expected error for %s=%s", tc.key, tc.value)
			}
		})
	}
}

func TestLoad_WhitespaceIsIgnored(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("SW_CHECK_INTERVAL", "  10m  ")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.CheckInterval != 10*time.Minute {
		t.Fatalf("unexpected interval %s", cfg.CheckInterval)
	}
}
