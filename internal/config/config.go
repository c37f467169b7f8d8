package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	envWebhookURL        = "SW_WEBHOOK_URL"
	envSlackWebhookURL   = "SW_SLACK_WEBHOOK_URL"
	envDockerHost        = "SW_DOCKER_HOST"
	envStatePath         = "SW_STATE_PATH"
	envComposeFile       = "SW_COMPOSE_FILE"
	envServicesFile      = "SW_SERVICES_FILE"
	envCheckInterval     = "SW_CHECK_INTERVAL"
	envUpdateInterval    = "SW_UPDATE_INTERVAL"
	envAlertCooldown     = "SW_ALERT_COOLDOWN"
	envAutoRestart       = "SW_AUTO_RESTART"
	envRestartCooldown   = "SW_RESTART_COOLDOWN"
	envDiskThresholdGB   = "SW_DISK_THRESHOLD_GB"
	envMediaMount        = "SW_MEDIA_MOUNT"
	envVPNContainer      = "SW_VPN_CONTAINER"
	envVPNIPURL          = "SW_VPN_IP_URL"
	envTorrentIPURL      = "SW_TORRENT_IP_URL"
	envFail2banContainer = "SW_FAIL2BAN_CONTAINER"
	envGitHubToken       = "SW_GITHUB_TOKEN"
	envHealthPort        = "SW_HEALTH_PORT"
	envMetricsPort       = "SW_METRICS_PORT"
	envLogLevel          = "SW_LOG_LEVEL"
)

const (
	defaultStatePath       = "logs/state.json"
	defaultCheckInterval   = 5 * time.Minute
	defaultUpdateInterval  = 24 * time.Hour
	defaultAlertCooldown   = time.Hour
	defaultRestartCooldown = 10 * time.Minute
	defaultDiskThresholdGB = 10
	defaultMediaMount      = "/data"
)

// Config describes runtime configuration loaded from the environment.
type Config struct {
	WebhookURL        string
	SlackWebhookURL   string
	DockerHost        string
	StatePath         string
	ComposeFile       string
	ServicesFile      string
	CheckInterval     time.Duration
	UpdateInterval    time.Duration
	AlertCooldown     time.Duration
	AutoRestart       bool
	RestartCooldown   time.Duration
	DiskThresholdGB   float64
	MediaMount        string
	VPNContainer      string
	VPNIPURL          string
	TorrentIPURL      string
	Fail2banContainer string
	GitHubToken       string
	HealthPort        int
	MetricsPort       int
	LogLevel          string
}

// Load reads configuration from environment variables and a local .env
// file if present. Existing environment variables take precedence over
// values in .env.
func Load() (Config, error) {
	if err := loadDotEnvIfPresent(".env"); err != nil {
		return Config{}, err
	}

	cfg := Config{
		StatePath:       defaultStatePath,
		CheckInterval:   defaultCheckInterval,
		UpdateInterval:  defaultUpdateInterval,
		AlertCooldown:   defaultAlertCooldown,
		RestartCooldown: defaultRestartCooldown,
		DiskThresholdGB: defaultDiskThresholdGB,
		MediaMount:      defaultMediaMount,
	}

	if value, ok := lookupTrimmed(envWebhookURL); ok {
		if err := validateURL(value, envWebhookURL); err != nil {
			return Config{}, err
		}
		cfg.WebhookURL = value
	}
	if value, ok := lookupTrimmed(envSlackWebhookURL); ok {
		if err := validateURL(value, envSlackWebhookURL); err != nil {
			return Config{}, err
		}
		cfg.SlackWebhookURL = value
	}
	if value, ok := lookupTrimmed(envDockerHost); ok {
		cfg.DockerHost = value
	}
	if value, ok := lookupTrimmed(envStatePath); ok {
		cfg.StatePath = value
	}
	if value, ok := lookupTrimmed(envComposeFile); ok {
		cfg.ComposeFile = value
	}
	if value, ok := lookupTrimmed(envServicesFile); ok {
		cfg.ServicesFile = value
	}

	var err error
	if cfg.CheckInterval, err = durationEnv(envCheckInterval, cfg.CheckInterval); err != nil {
		return Config{}, err
	}
	if cfg.UpdateInterval, err = durationEnv(envUpdateInterval, cfg.UpdateInterval); err != nil {
		return Config{}, err
	}
	if cfg.AlertCooldown, err = durationEnv(envAlertCooldown, cfg.AlertCooldown); err != nil {
		return Config{}, err
	}
	if cfg.RestartCooldown, err = durationEnv(envRestartCooldown, cfg.RestartCooldown); err != nil {
		return Config{}, err
	}

	if value, ok := lookupTrimmed(envAutoRestart); ok {
		enabled, err := strconv.ParseBool(value)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", envAutoRestart, err)
		}
		cfg.AutoRestart = enabled
	}

	if value, ok := lookupTrimmed(envDiskThresholdGB); ok {
		threshold, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", envDiskThresholdGB, err)
		}
		if threshold <= 0 {
			return Config{}, fmt.Errorf("%s must be greater than zero", envDiskThresholdGB)
		}
		cfg.DiskThresholdGB = threshold
	}

	if value, ok := lookupTrimmed(envMediaMount); ok {
		cfg.MediaMount = value
	}
	if value, ok := lookupTrimmed(envVPNContainer); ok {
		cfg.VPNContainer = value
	}
	if value, ok := lookupTrimmed(envVPNIPURL); ok {
		if err := validateURL(value, envVPNIPURL); err != nil {
			return Config{}, err
		}
		cfg.VPNIPURL = value
	}
	if value, ok := lookupTrimmed(envTorrentIPURL); ok {
		if err := validateURL(value, envTorrentIPURL); err != nil {
			return Config{}, err
		}
		cfg.TorrentIPURL = value
	}
	if value, ok := lookupTrimmed(envFail2banContainer); ok {
		cfg.Fail2banContainer = value
	}
	if value, ok := lookupTrimmed(envGitHubToken); ok {
		cfg.GitHubToken = value
	}

	if cfg.HealthPort, err = portEnv(envHealthPort); err != nil {
		return Config{}, err
	}
	if cfg.MetricsPort, err = portEnv(envMetricsPort); err != nil {
		return Config{}, err
	}

	if value, ok := lookupTrimmed(envLogLevel); ok {
		cfg.LogLevel = value
	}

	if cfg.ComposeFile == "" {
		return Config{}, errors.New("SW_COMPOSE_FILE is required")
	}

	return cfg, nil
}

func lookupTrimmed(key string) (string, bool) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return "", false
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return "", false
	}
	return value, true
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	value, ok := lookupTrimmed(key)
	if !ok {
		return fallback, nil
	}
	interval, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if interval <= 0 {
		return 0, fmt.Errorf("%s must be greater than zero", key)
	}
	return interval, nil
}

func portEnv(key string) (int, error) {
	value, ok := lookupTrimmed(key)
	if !ok {
		return 0, nil
	}
	port, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if port < 0 || port > 65535 {
		return 0, fmt.Errorf("%s must be a valid port", key)
	}
	return port, nil
}

func loadDotEnvIfPresent(path string) error {
	err := godotenv.Load(path)
	if err == nil {
		return nil
	}

	var pathErr *os.PathError
	if errors.As(err, &pathErr) && errors.Is(pathErr.Err, os.ErrNotExist) {
		return nil
	}

	return err
}

func validateURL(value, name string) error {
	parsed, err := url.Parse(value)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", name, err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("invalid %s: must include scheme and host", name)
	}
	return nil
}
