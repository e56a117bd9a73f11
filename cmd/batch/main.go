package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"job-digest/internal/app"
	"job-digest/internal/config"
	"job-digest/internal/logging"
	"job-digest/internal/metrics"
	"job-digest/internal/scheduler"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to config file (falls back to CONFIG_PATH and defaults)")
		once       = flag.Bool("once", false, "run a single batch immediately and exit instead of scheduling")
		runDate    = flag.String("run-date", "", "run date for --once in YYYY-MM-DD form (defaults to today UTC)")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := logging.New(cfg.Logging)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	container, err := app.NewContainer(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build container")
	}
	defer func() {
		if err := container.Close(); err != nil {
			logger.Error().Err(err).Msg("cleanup error")
		}
	}()

	if cfg.Metrics.Enabled {
		go metrics.Serve(cfg.Metrics.Addr, container.Registry, logger)
	}

	if *once {
		date, err := resolveRunDate(*runDate)
		if err != nil {
			logger.Fatal().Err(err).Msg("invalid --run-date")
		}
		report, err := container.Orchestrator.Run(ctx, date)
		if err != nil {
			logger.Error().Err(err).Str("state", string(report.State)).Msg("run failed")
			os.Exit(1)
		}
		logger.Info().
			Str("state", string(report.State)).
			Int("users_processed", report.UsersProcessed).
			Int("users_failed", report.UsersFailed).
			Bool("trustworthy", report.Trustworthy).
			Msg("run finished")
		return
	}

	sched := scheduler.New(container.Orchestrator, cfg.App.CronSpec, logger)
	if err := sched.Start(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to start scheduler")
	}

	<-ctx.Done()
	logger.Info().Msg("shutting down")
	sched.Stop()
}

func resolveRunDate(s string) (time.Time, error) {
	if s == "" {
		return time.Now().UTC().Truncate(24 * time.Hour), nil
	}
	return time.Parse("2006-01-02", s)
}
