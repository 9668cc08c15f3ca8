package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"margin_maker/internal/config"
	"margin_maker/internal/core"
	"margin_maker/pkg/logging"

	"golang.org/x/sync/errgroup"
)

// App holds the loaded configuration and the process logger
type App struct {
	Cfg    *config.Config
	Logger core.ILogger
}

// NewApp loads and pre-flight checks the configuration, then builds the logger.
func NewApp(configPath string) (*App, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := checkPreFlight(cfg); err != nil {
		return nil, fmt.Errorf("pre-flight checks failed: %w", err)
	}

	logger, err := logging.New(logging.Options{
		Level:  cfg.System.LogLevel,
		Format: cfg.System.LogFormat,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}

	return &App{
		Cfg:    cfg,
		Logger: logger.WithField("network", cfg.App.Network.String()),
	}, nil
}

// Runner is a component that runs until its context is canceled.
type Runner interface {
	Run(ctx context.Context) error
}

// Run starts every runner and blocks until SIGINT/SIGTERM or the first failure.
func (a *App) Run(runners ...Runner) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return a.RunContext(ctx, runners...)
}

// RunContext is Run driven by an explicit context
func (a *App) RunContext(ctx context.Context, runners ...Runner) error {
	g, ctx := errgroup.WithContext(ctx)

	a.Logger.Info("starting application", "runners", len(runners))

	for _, r := range runners {
		g.Go(func() error {
			return r.Run(ctx)
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error("application stopped with error", "error", err)
		return err
	}

	a.Logger.Info("application shut down gracefully")
	return nil
}

// checkPreFlight performs environment checks beyond schema validation
func checkPreFlight(cfg *config.Config) error {
	if cfg.Store.Driver == "sqlite" {
		if err := checkParentDir(cfg.Store.Path); err != nil {
			return fmt.Errorf("store.path: %w", err)
		}
	}
	return nil
}

func checkParentDir(path string) error {
	dir := filepath.Dir(path)
	info, err := os.Stat(dir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}
	return nil
}
