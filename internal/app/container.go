// Package app assembles the batch engine from configuration: database pool,
// Redis, repositories, caches, scoring engines, and the orchestrator.
package app

import (
	"context"
	"time"

	"job-digest/internal/batch"
	"job-digest/internal/config"
	"job-digest/internal/database"
	dbpostgres "job-digest/internal/database/postgres"
	"job-digest/internal/infrastructure/cache"
	"job-digest/internal/metrics"
	"job-digest/internal/personalize"
	"job-digest/internal/repository"
	"job-digest/internal/scoring"
	"job-digest/internal/selection"
	"job-digest/internal/stats"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

type Container struct {
	Config config.Config
	DB     database.DB
	Redis  *cache.Redis

	Orchestrator *batch.Orchestrator
	Metrics      *metrics.Metrics
	Registry     *prometheus.Registry
}

func NewContainer(ctx context.Context, cfg config.Config, logger zerolog.Logger) (*Container, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	db, err := dbpostgres.Connect(connectCtx, cfg.Database)
	if err != nil {
		return nil, err
	}

	redis := cache.NewRedis(cfg.Redis, logger)

	jobs := repository.NewPostgresJobRepository(db)
	users := repository.NewPostgresUserRepository(db)
	profiles := repository.NewPostgresProfileRepository(db)
	events := repository.NewPostgresEventRepository(db)
	keywords := repository.NewPostgresKeywordRepository(db)
	scores := repository.NewPostgresScoreRepository(db)
	selections := repository.NewPostgresSelectionRepository(db)
	areaStats := repository.NewPostgresAreaStatRepository(db)
	popStats := repository.NewPostgresPopularityRepository(db)

	area := stats.NewAreaStats(jobs, areaStats, cfg.Stats.MinSampleCount, logger)
	popularity := stats.NewPopularity(events, popStats, cfg.Stats.NeutralPopularity, logger)

	// Warm both caches from the last persisted snapshot so scoring has
	// data even before the first refresh phase completes.
	warmCtx, warmCancel := context.WithTimeout(ctx, 30*time.Second)
	defer warmCancel()
	if err := area.Load(warmCtx); err != nil {
		logger.Warn().Err(err).Msg("area stats warm load failed")
	}
	if err := popularity.Load(warmCtx); err != nil {
		logger.Warn().Err(err).Msg("popularity warm load failed")
	}

	retention := time.Duration(cfg.Stats.RetentionDays) * 24 * time.Hour
	personal := personalize.NewEngine(cfg.Personalization, retention, events, logger)

	rules, err := scoring.BuildRules(cfg.Rules)
	if err != nil {
		return nil, err
	}
	aggregator := scoring.NewAggregator(
		cfg.Scoring.BasicWeight,
		cfg.Scoring.RelevanceWeight,
		cfg.Scoring.PersonalizationWeight,
		rules,
	)

	selector, err := selection.New(cfg.Sections, cfg.Selection)
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	checkpoints := batch.NewRedisCheckpointStore(redis)

	orchestrator := batch.NewOrchestrator(cfg.Batch, cfg.Scoring, batch.Deps{
		Users:      users,
		Jobs:       jobs,
		Profiles:   profiles,
		Events:     events,
		Keywords:   keywords,
		Scores:     scores,
		Selections: selections,

		Area:       area,
		Popularity: popularity,
		Personal:   personal,
		Aggregator: aggregator,
		Selector:   selector,

		Checkpoints: checkpoints,
		Locker:      checkpoints,
		Metrics:     m,
	}, logger)

	return &Container{
		Config:       cfg,
		DB:           db,
		Redis:        redis,
		Orchestrator: orchestrator,
		Metrics:      m,
		Registry:     registry,
	}, nil
}

func (c *Container) Close() error {
	if c == nil {
		return nil
	}
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			return err
		}
	}
	if c.DB == nil {
		return nil
	}
	return c.DB.Close()
}
