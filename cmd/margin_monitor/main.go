package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"margin_maker/internal/alert"
	"margin_maker/internal/bootstrap"
	"margin_maker/internal/config"
	"margin_maker/internal/core"
	"margin_maker/internal/infrastructure/health"
	"margin_maker/internal/infrastructure/metrics"
	"margin_maker/internal/monitor"
	"margin_maker/internal/oracle"
	"margin_maker/internal/store"
	"margin_maker/pkg/concurrency"
	httpclient "margin_maker/pkg/http"
	"margin_maker/pkg/telemetry"
)

var (
	// Version information (set via build flags)
	version   = "dev"
	buildTime = "unknown"
)

const serviceName = "margin_monitor"

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to configuration file")
	snapshotsPath := flag.String("snapshots", "configs/snapshots.yaml", "Path to the margin state file written by the chain reader")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s version %s (built %s)\n", serviceName, version, buildTime)
		os.Exit(0)
	}

	app, err := bootstrap.NewApp(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start: %v\n", err)
		os.Exit(1)
	}

	if err := run(app, *snapshotsPath); err != nil {
		app.Logger.Error("Margin monitor exited", "error", err)
		os.Exit(1)
	}
}

func run(app *bootstrap.App, snapshotsPath string) error {
	cfg, logger := app.Cfg, app.Logger
	logger.Info("Starting margin monitor",
		"version", version,
		"managers", len(cfg.Managers),
		"dry_run", cfg.App.DryRun,
		"poll_interval", cfg.PollInterval().String())

	var metricsHolder *telemetry.MetricsHolder
	if cfg.Telemetry.EnableMetrics {
		opts := telemetry.Options{
			ServiceName:      serviceName,
			Version:          version,
			Network:          cfg.App.Network.String(),
			TraceSampleRatio: cfg.Telemetry.TraceSampleRatio,
			ExportLogs:       cfg.Telemetry.ExportLogs,
		}
		if cfg.Telemetry.TraceFile != "" {
			f, err := os.OpenFile(cfg.Telemetry.TraceFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
			if err != nil {
				return fmt.Errorf("trace file: %w", err)
			}
			defer f.Close()
			opts.TraceWriter = f
		}
		tel, err := telemetry.Setup(opts)
		if err != nil {
			return fmt.Errorf("telemetry: %w", err)
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tel.Shutdown(ctx); err != nil {
				logger.Warn("Telemetry shutdown failed", "error", err)
			}
		}()
		metricsHolder = telemetry.GetGlobalMetrics()
	}

	ledger, err := store.Open(cfg.Store.Driver, cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("store: %w", err)
	}
	defer ledger.Close()

	priceOracle, err := newOracle(cfg, logger)
	if err != nil {
		return fmt.Errorf("oracle: %w", err)
	}

	executor, err := newExecutor(cfg, logger)
	if err != nil {
		return err
	}

	pool := concurrency.NewWorkerPool(concurrency.PoolConfig{
		Name:        "evaluation",
		MaxWorkers:  cfg.Concurrency.EvalPoolSize,
		MaxCapacity: cfg.Concurrency.EvalPoolBuffer,
		IdleTimeout: time.Minute,
	}, logger)
	defer pool.Stop()

	alerts := alert.NewAlertManager(logger, cfg.AlertInterval())
	if webhook := cfg.Alert.SlackWebhookURL.Reveal(); webhook != "" {
		alerts.AddChannel(alert.NewSlackChannel(webhook, httpclient.DefaultOptions))
		logger.Info("Slack alerts enabled", "host", cfg.Alert.SlackWebhookURL.Host())
	}
	defer alerts.Flush()

	managers := make(map[string]monitor.Pair, len(cfg.Managers))
	for _, m := range cfg.Managers {
		managers[m.Key] = monitor.Pair{Base: m.BaseAsset, Quote: m.QuoteAsset}
		logger.Info("Watching margin manager", "manager", m.Key, "address", m.Address, "pool", m.PoolKey)
	}

	mon, err := monitor.New(monitor.Options{
		Thresholds:     cfg.Risk.Thresholds,
		Cooldown:       cfg.Cooldown(),
		PollInterval:   cfg.PollInterval(),
		WithdrawExcess: cfg.Risk.WithdrawExcess,
		MinWithdraw:    cfg.Risk.MinWithdraw,
		Managers:       managers,
	}, monitor.Deps{
		Source:   monitor.NewFileSource(snapshotsPath, managers, logger),
		Oracle:   priceOracle,
		Executor: executor,
		Ledger:   ledger,
		Pool:     pool,
		Alerts:   alerts,
		Metrics:  metricsHolder,
		Logger:   logger,
	})
	if err != nil {
		return fmt.Errorf("monitor: %w", err)
	}

	runners := []bootstrap.Runner{mon}
	if cfg.Telemetry.EnableMetrics {
		hm := health.NewHealthManager(logger)
		hm.Register("monitor", mon.CheckHealth)
		runners = append(runners, metrics.NewServer(cfg.Telemetry.MetricsPort, hm, logger))
	}

	return app.Run(runners...)
}

func newOracle(cfg *config.Config, logger core.ILogger) (*oracle.HermesClient, error) {
	endpoint, err := cfg.OracleEndpoint()
	if err != nil {
		return nil, err
	}
	httpOpts := httpclient.DefaultOptions
	httpOpts.Timeout = cfg.OracleTimeout()
	httpOpts.MaxRetries = cfg.Oracle.MaxRetries

	return oracle.NewHermesClient(oracle.Options{
		Endpoint: endpoint,
		Network:  cfg.App.Network,
		HTTP:     httpOpts,
		// A price older than two polls no longer describes the position
		MaxAge: 2 * cfg.PollInterval(),
	}, logger)
}

var errNoExecutor = errors.New("no transaction executor is available for live mode; set app.dry_run: true")

// newExecutor returns the action sink. Transactions are built by an external
// signer, so only dry-run execution is wired in this binary.
func newExecutor(cfg *config.Config, logger core.ILogger) (core.IActionExecutor, error) {
	if !cfg.App.DryRun {
		return nil, errNoExecutor
	}
	return monitor.NewDryRunExecutor(logger), nil
}
