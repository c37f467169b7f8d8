package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/stackwatchd/stackwatch/internal/checks"
	"github.com/stackwatchd/stackwatch/internal/config"
	"github.com/stackwatchd/stackwatch/internal/healthcheck"
	"github.com/stackwatchd/stackwatch/internal/logging"
	"github.com/stackwatchd/stackwatch/internal/metrics"
	"github.com/stackwatchd/stackwatch/internal/monitor"
	"github.com/stackwatchd/stackwatch/internal/notify"
	"github.com/stackwatchd/stackwatch/internal/registry"
	"github.com/stackwatchd/stackwatch/internal/remediate"
	"github.com/stackwatchd/stackwatch/internal/runtime"
	"github.com/stackwatchd/stackwatch/internal/server"
	"github.com/stackwatchd/stackwatch/internal/state"
	"github.com/stackwatchd/stackwatch/internal/updates"
)

const dockerTimeout = 30 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		boot := logging.New()
		boot.Fatal().Err(err).Msg("configuration invalid")
	}

	logger := logging.NewWithLevel(cfg.LogLevel)
	logger.Info().
		Dur("check_interval", cfg.CheckInterval).
		Dur("update_interval", cfg.UpdateInterval).
		Bool("auto_restart", cfg.AutoRestart).
		Msg("stackwatch starting")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	services, err := config.LoadServices(ctx, cfg.ComposeFile, cfg.ServicesFile)
	if err != nil {
		logger.Fatal().Err(err).Msg("service table load failed")
	}
	logger.Info().Int("services", len(services)).Msg("service table loaded")

	client, err := runtime.NewDockerClient(cfg.DockerHost, dockerTimeout)
	if err != nil {
		logger.Fatal().Err(err).Msg("docker client init failed")
	}
	defer client.Close()

	if err := client.Ping(ctx); err != nil {
		logger.Fatal().Err(err).Msg("docker daemon unreachable")
	}

	store := state.NewFileStore(cfg.StatePath, logger)
	notifier := notify.NewMultiNotifier(
		notify.NewWebhookNotifier(logger, cfg.WebhookURL),
		notify.NewSlackNotifier(logger, cfg.SlackWebhookURL),
	)
	if notifier == nil {
		logger.Warn().Msg("no notification endpoints configured, alerts will be logged only")
	}
	dispatcher := notify.NewDispatcher(logger, notifier, cfg.AlertCooldown)

	collector := metrics.New()
	tracker := healthcheck.NewTracker()
	controller := remediate.New(logger, client, cfg.AutoRestart, cfg.RestartCooldown)
	fetcher := registry.NewFetcher(logger, cfg.GitHubToken)
	detector := updates.New(logger, client, fetcher)

	opts := []monitor.Option{
		monitor.WithController(controller),
		monitor.WithDetector(detector),
		monitor.WithTracker(tracker),
		monitor.WithMetrics(collector),
		monitor.WithDiskChecker(checks.NewDiskChecker(logger, cfg.MediaMount, cfg.DiskThresholdGB)),
	}
	if vpn := checks.NewVPNChecker(logger, client, cfg.VPNContainer, cfg.VPNIPURL, cfg.TorrentIPURL); vpn != nil {
		opts = append(opts, monitor.WithVPNChecker(vpn))
	}
	if bans := checks.NewBanChecker(logger, client, cfg.Fail2banContainer); bans != nil {
		opts = append(opts, monitor.WithBanChecker(bans))
	}

	server.Start(ctx, logger, cfg.CheckInterval, tracker, collector, cfg.HealthPort, cfg.MetricsPort)

	m := monitor.New(logger, client, store, dispatcher, services, cfg.CheckInterval, cfg.UpdateInterval, opts...)
	if err := m.Run(ctx); err != nil {
		logger.Fatal().Err(err).Msg("monitor exited with error")
	}
	logger.Info().Msg("stackwatch stopped")
}
