package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/raphaelschols/ai-intel-hub/internal/cli"
	"github.com/raphaelschols/ai-intel-hub/internal/globaltime"
	"github.com/raphaelschols/ai-intel-hub/internal/pipeline"
)

func runLoop(args []string) int {
	fs := flag.NewFlagSet("loop", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	interval := fs.Duration("interval", 0, "Cycle interval (overrides LOOP_INTERVAL)")
	cycleTimeout := fs.Duration("cycle-timeout", 5*time.Minute, "Per-cycle timeout")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "loop does not accept positional arguments")
		return 2
	}

	cfg, logger, err := loadConfigAndLogger(envLoader)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	tick := *interval
	if tick <= 0 {
		tick = cfg.LoopInterval
	}
	if tick <= 0 {
		fmt.Fprintln(os.Stderr, "loop interval must be positive")
		return 2
	}

	pool, err := connectPool(cfg, 30*time.Second)
	if err != nil {
		logger.Error().Err(err).Msg("loop failed to connect to database")
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer pool.Close()

	service, err := buildService(cfg, pool, logger)
	if err != nil {
		logger.Error().Err(err).Msg("loop failed to build service")
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	go func() {
		<-sigCh
		logger.Info().Msg("shutdown signal received")
		cancel()
	}()

	logger.Info().Dur("interval", tick).Msg("collection loop started")

	// Run one cycle immediately, then on every tick.
	runOnce(ctx, service, *cycleTimeout, logger)

	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("collection loop stopped")
			return 0
		case <-ticker.C:
			runOnce(ctx, service, *cycleTimeout, logger)
		}
	}
}

func runOnce(ctx context.Context, service *pipeline.Service, timeout time.Duration, logger zerolog.Logger) {
	cycleCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	_, ranked, err := service.RunCycle(cycleCtx, globaltime.UTC())
	if err != nil {
		if errors.Is(err, pipeline.ErrCycleInProgress) {
			logger.Warn().Msg("previous cycle still running, skipping tick")
			return
		}
		logger.Error().Err(err).Msg("collection cycle failed")
		return
	}

	if _, err := service.EvaluateAndDispatch(cycleCtx, ranked, globaltime.UTC()); err != nil {
		logger.Error().Err(err).Msg("trigger evaluation failed")
	}
}
