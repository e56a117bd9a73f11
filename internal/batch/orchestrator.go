// Package batch drives the nightly run: refresh the caches, score every
// active user against the candidate catalog, select their final lists, and
// account for every failure along the way. Per-user errors are contained
// and counted; only threshold breaches abort the run.
package batch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"job-digest/internal/config"
	"job-digest/internal/domain/job"
	"job-digest/internal/domain/score"
	"job-digest/internal/domain/user"
	"job-digest/internal/metrics"
	"job-digest/internal/personalize"
	"job-digest/internal/repository"
	"job-digest/internal/scoring"
	"job-digest/internal/selection"
	"job-digest/internal/stats"

	"github.com/rs/zerolog"
)

// minFailureSample avoids aborting a run off the first unlucky user: the
// failure-rate threshold only applies once this many users have finished.
const minFailureSample = 20

type Orchestrator struct {
	cfg        config.BatchConfig
	scoringCfg config.ScoringConfig

	users      repository.UserRepository
	jobs       repository.JobRepository
	profiles   repository.ProfileRepository
	events     repository.EventRepository
	keywords   repository.KeywordRepository
	scores     repository.ScoreRepository
	selections repository.SelectionRepository

	area       *stats.AreaStats
	popularity *stats.Popularity
	personal   *personalize.Engine
	aggregator *scoring.Aggregator
	selector   *selection.Selector

	checkpoints CheckpointStore
	locker      RunLocker
	metrics     *metrics.Metrics
	log         zerolog.Logger
}

type Deps struct {
	Users      repository.UserRepository
	Jobs       repository.JobRepository
	Profiles   repository.ProfileRepository
	Events     repository.EventRepository
	Keywords   repository.KeywordRepository
	Scores     repository.ScoreRepository
	Selections repository.SelectionRepository

	Area       *stats.AreaStats
	Popularity *stats.Popularity
	Personal   *personalize.Engine
	Aggregator *scoring.Aggregator
	Selector   *selection.Selector

	Checkpoints CheckpointStore
	Locker      RunLocker
	Metrics     *metrics.Metrics
}

func NewOrchestrator(cfg config.BatchConfig, scoringCfg config.ScoringConfig, d Deps, logger zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		cfg:         cfg,
		scoringCfg:  scoringCfg,
		users:       d.Users,
		jobs:        d.Jobs,
		profiles:    d.Profiles,
		events:      d.Events,
		keywords:    d.Keywords,
		scores:      d.Scores,
		selections:  d.Selections,
		area:        d.Area,
		popularity:  d.Popularity,
		personal:    d.Personal,
		aggregator:  d.Aggregator,
		selector:    d.Selector,
		checkpoints: d.Checkpoints,
		locker:      d.Locker,
		metrics:     d.Metrics,
		log:         logger.With().Str("component", "orchestrator").Logger(),
	}
}

// Run executes one full batch for runDate under the configured wall-clock
// budget and returns the structured report the caller uses to judge the
// output. The returned error is non-nil only for systemic failures.
func (o *Orchestrator) Run(ctx context.Context, runDate time.Time) (RunReport, error) {
	report := RunReport{
		RunDate:   runDate,
		State:     StateRunning,
		StartedAt: time.Now().UTC(),
	}
	dateKey := runDate.Format("2006-01-02")
	log := o.log.With().Str("run_date", dateKey).Logger()

	ok, err := o.locker.TryLock(ctx, dateKey, o.cfg.TimeBudget+5*time.Minute)
	if err != nil {
		log.Warn().Err(err).Msg("run lock unavailable, proceeding unlocked")
	} else if !ok {
		report.State = StateIdle
		return report, ErrRunLocked
	}
	defer func() { _ = o.locker.Unlock(context.WithoutCancel(ctx), dateKey) }()

	runCtx, cancel := context.WithTimeout(ctx, o.cfg.TimeBudget)
	defer cancel()

	cp, resumed, err := o.checkpoints.Load(runCtx, dateKey)
	if err != nil {
		log.Warn().Err(err).Msg("checkpoint load failed, starting fresh")
	}
	if resumed {
		report.Resumed = true
		report.UsersProcessed = cp.UsersProcessed
		report.UsersFailed = cp.UsersFailed
		log.Info().Str("last_user", cp.LastUserID.String()).
			Int("processed", cp.UsersProcessed).Msg("resuming from checkpoint")
	}

	o.refreshCaches(runCtx, log)
	report.PhasesCompleted = append(report.PhasesCompleted, PhaseCacheRefresh)

	relevance, err := o.buildRelevanceScorer(runCtx, log)
	if err != nil {
		return o.finish(report, StateFailed, log), err
	}
	candidates, err := o.loadCandidates(runCtx)
	if err != nil {
		return o.finish(report, StateFailed, log),
			fmt.Errorf("loading candidate jobs: %w", err)
	}
	if report.UsersTotal, err = o.users.CountActive(runCtx); err != nil {
		return o.finish(report, StateFailed, log),
			fmt.Errorf("counting users: %w", err)
	}
	log.Info().Int("candidates", len(candidates)).Int("users", report.UsersTotal).Msg("scoring started")

	categoriesByJob := make(map[string][]string, len(candidates))
	for _, j := range candidates {
		categoriesByJob[j.ID.String()] = j.Categories
	}

	scored, abortErr := o.scoreAllUsers(runCtx, &report, cp, dateKey, candidates, categoriesByJob, relevance, runDate, log)
	if abortErr != nil {
		return o.finish(report, StateFailed, log), abortErr
	}

	if scored {
		report.PhasesCompleted = append(report.PhasesCompleted, PhaseScoring, PhaseSelection)
		if err := o.checkpoints.Clear(context.WithoutCancel(runCtx), dateKey); err != nil {
			log.Warn().Err(err).Msg("checkpoint clear failed")
		}
		return o.finish(report, StateCompleted, log), nil
	}

	// Budget ran out mid-way. Every user already processed has a complete,
	// consistent selection, so partial output stays trustworthy.
	if report.UsersProcessed == 0 {
		return o.finish(report, StateFailed, log), ErrBudgetExhausted
	}
	report.UsersRemaining = report.UsersTotal - report.UsersProcessed - report.UsersFailed
	return o.finish(report, StatePartiallyCompleted, log), nil
}

func (o *Orchestrator) finish(report RunReport, state State, log zerolog.Logger) RunReport {
	report.State = state
	report.FinishedAt = time.Now().UTC()
	report.Trustworthy = state == StateCompleted || state == StatePartiallyCompleted
	if n := report.UsersProcessed + report.UsersFailed; n > 0 {
		report.FailureRate = float64(report.UsersFailed) / float64(n)
	}
	if o.metrics != nil {
		o.metrics.RunsTotal.WithLabelValues(string(state)).Inc()
	}
	log.Info().
		Str("state", string(state)).
		Int("processed", report.UsersProcessed).
		Int("failed", report.UsersFailed).
		Float64("failure_rate", report.FailureRate).
		Dur("took", report.FinishedAt.Sub(report.StartedAt)).
		Msg("run finished")
	return report
}

// refreshCaches runs the single-writer refreshes before any scoring worker
// starts. A refresh failure is a resource error: the previous snapshot
// keeps serving and the run continues.
func (o *Orchestrator) refreshCaches(ctx context.Context, log zerolog.Logger) {
	refreshCtx, cancel := context.WithTimeout(ctx, o.cfg.RefreshDeadline)
	defer cancel()

	if err := o.area.Refresh(refreshCtx); err != nil {
		log.Warn().Err(err).Msg("area stats refresh failed, serving stale snapshot")
	}
	if err := o.popularity.Refresh(refreshCtx); err != nil {
		log.Warn().Err(err).Msg("popularity refresh failed, serving stale snapshot")
	}
	if err := o.personal.MaybeRetrain(ctx); err != nil {
		log.Warn().Err(err).Msg("model training failed, fallback path remains in use")
	}
}

func (o *Orchestrator) buildRelevanceScorer(ctx context.Context, log zerolog.Logger) (*scoring.RelevanceScorer, error) {
	kws, err := o.keywords.ListAll(ctx)
	if err != nil {
		// Without the corpus the relevance signal is zero for everyone; the
		// other two signals still rank. Resource error, not abort.
		log.Warn().Err(err).Msg("keyword corpus unavailable, relevance signal disabled")
		kws = nil
	}
	return scoring.NewRelevanceScorer(kws, o.scoringCfg.KeywordTopN), nil
}

func (o *Orchestrator) loadCandidates(ctx context.Context) ([]job.Job, error) {
	var out []job.Job
	offset := 0
	page := 1000
	for len(out) < o.cfg.CandidateLimit {
		limit := page
		if remaining := o.cfg.CandidateLimit - len(out); remaining < limit {
			limit = remaining
		}
		jobs, err := o.jobs.ListActive(ctx, limit, offset)
		if err != nil {
			return nil, err
		}
		out = append(out, jobs...)
		if len(jobs) < limit {
			break
		}
		offset += len(jobs)
	}
	return out, nil
}

// scoreAllUsers pages through active users in checkpointable batches,
// fanning each batch across the worker pool. Returns true when every user
// was visited before the budget ran out.
func (o *Orchestrator) scoreAllUsers(
	ctx context.Context,
	report *RunReport,
	cp Checkpoint,
	dateKey string,
	candidates []job.Job,
	categoriesByJob map[string][]string,
	relevance *scoring.RelevanceScorer,
	runDate time.Time,
	log zerolog.Logger,
) (bool, error) {
	afterID := cp.LastUserID

	for {
		if ctx.Err() != nil {
			return false, nil
		}

		page, err := o.users.ListActiveAfter(ctx, afterID, o.cfg.BatchSize)
		if err != nil {
			if ctx.Err() != nil {
				return false, nil
			}
			return false, fmt.Errorf("listing users: %w", err)
		}
		if len(page) == 0 {
			return true, nil
		}

		processed, failed := o.runBatch(ctx, page, candidates, categoriesByJob, relevance, runDate, report, log)
		report.UsersProcessed += processed
		report.UsersFailed += failed

		// A cancelled batch leaves tasks unrun: neither processed nor
		// failed. The checkpoint must stay at the last fully finished
		// batch or a resume would skip those users for good.
		if processed+failed < len(page) {
			return false, nil
		}
		afterID = page[len(page)-1].ID

		cpNew := Checkpoint{
			RunDate:        dateKey,
			LastUserID:     afterID,
			UsersProcessed: report.UsersProcessed,
			UsersFailed:    report.UsersFailed,
		}
		if err := o.checkpoints.Save(context.WithoutCancel(ctx), cpNew); err != nil {
			log.Warn().Err(err).Msg("checkpoint save failed, run not resumable")
		}

		done := report.UsersProcessed + report.UsersFailed
		if done >= minFailureSample {
			rate := float64(report.UsersFailed) / float64(done)
			if rate > o.cfg.FailureRateAbort {
				return false, fmt.Errorf("%w: %.1f%% of %d users", ErrFailureRate, rate*100, done)
			}
		}

		if len(page) < o.cfg.BatchSize {
			return ctx.Err() == nil, nil
		}
	}
}

func (o *Orchestrator) runBatch(
	ctx context.Context,
	users []user.User,
	candidates []job.Job,
	categoriesByJob map[string][]string,
	relevance *scoring.RelevanceScorer,
	runDate time.Time,
	report *RunReport,
	log zerolog.Logger,
) (processed, failed int) {
	pool := NewWorkerPool(o.cfg.Workers, o.cfg.QueueSize)
	results := pool.Run(ctx)

	var mu sync.Mutex
	go func() {
		defer pool.Close()
		for _, u := range users {
			u := u
			ok := pool.Submit(ctx, Task{
				UserID: u.ID,
				Run: func(taskCtx context.Context) error {
					nScores, nSel, err := o.scoreUserWithRetry(taskCtx, u, candidates, categoriesByJob, relevance, runDate)
					if err != nil {
						return err
					}
					mu.Lock()
					report.ScoresWritten += nScores
					report.SelectionsWritten += nSel
					mu.Unlock()
					return nil
				},
			})
			if !ok {
				return
			}
		}
	}()

	for res := range results {
		if res.Err != nil {
			failed++
			if o.metrics != nil {
				o.metrics.UsersFailed.Inc()
			}
			log.Warn().Err(res.Err).Str("user", res.UserID.String()).Msg("user skipped")
			continue
		}
		processed++
		if o.metrics != nil {
			o.metrics.UsersScored.Inc()
		}
	}
	return processed, failed
}

// scoreUserWithRetry applies the per-user deadline and the small retry
// budget. When the overall run budget is nearly gone retries are skipped:
// finishing everyone matters more than rescuing anyone.
func (o *Orchestrator) scoreUserWithRetry(
	ctx context.Context,
	u user.User,
	candidates []job.Job,
	categoriesByJob map[string][]string,
	relevance *scoring.RelevanceScorer,
	runDate time.Time,
) (int, int, error) {
	retries := o.cfg.MaxRetries
	if deadline, ok := ctx.Deadline(); ok {
		if time.Until(deadline) < o.cfg.TimeBudget/10 {
			retries = 0
		}
	}

	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return 0, 0, ctx.Err()
			case <-time.After(o.cfg.RetryBackoff * time.Duration(attempt)):
			}
		}
		userCtx, cancel := context.WithTimeout(ctx, o.cfg.UserDeadline)
		nScores, nSel, err := o.scoreUser(userCtx, u, candidates, categoriesByJob, relevance, runDate)
		cancel()
		if err == nil {
			return nScores, nSel, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}
	return 0, 0, lastErr
}

// scoreUser runs the full per-user pipeline: gather context, score every
// candidate through the three engines, aggregate, persist scores, select,
// persist the selection.
func (o *Orchestrator) scoreUser(
	ctx context.Context,
	u user.User,
	candidates []job.Job,
	categoriesByJob map[string][]string,
	relevance *scoring.RelevanceScorer,
	runDate time.Time,
) (int, int, error) {
	now := time.Now().UTC()

	profile, profileFound, err := o.profiles.FindByUserID(ctx, u.ID)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: profile for user %s: %v", ErrDataQuality, u.ID, err)
	}
	recent, err := o.events.RecentByUser(ctx, u.ID, now.AddDate(0, 0, -30))
	if err != nil {
		return 0, 0, fmt.Errorf("%w: recent events for user %s: %v", ErrDataQuality, u.ID, err)
	}
	recentCats := personalize.RecentCategories(recent, categoriesByJob)

	basicCfg := scoring.BasicConfig{
		WageWeight:       o.scoringCfg.WageWeight,
		FeeWeight:        o.scoringCfg.FeeWeight,
		PopularityWeight: o.scoringCfg.PopularityWeight,
		MinFee:           o.scoringCfg.MinFee,
		FeeCeiling:       o.scoringCfg.FeeCeiling,
		Accepted:         acceptedSet(o.scoringCfg.AcceptedCompensation),
	}
	rctx := scoring.RuleContext{
		Profile:      profile,
		ProfileFound: profileFound,
		Recent:       recent,
		Now:          now,
	}

	scoreRows := make([]score.Score, 0, len(candidates))
	selCandidates := make([]selection.Candidate, 0, len(candidates))
	start := time.Now()

	for _, j := range candidates {
		basic := scoring.Basic(basicCfg, j, o.popularity.Get(j.EmployerID), o.area.Get(j.Region))
		if basic.Disqualified {
			if o.metrics != nil {
				o.metrics.JobsDisqualified.Inc()
			}
			continue
		}

		rel := relevance.Score(j)
		pers, fallbackUsed := o.personal.Score(u.ID, j, profile, profileFound, recentCats)
		if o.metrics != nil {
			if fallbackUsed {
				o.metrics.FallbackScores.Inc()
			} else {
				o.metrics.ModelScores.Inc()
			}
		}

		composite := o.aggregator.Composite(basic.Score, rel, pers, rctx, j)
		scoreRows = append(scoreRows, score.Score{
			UserID:          u.ID,
			JobID:           j.ID,
			Basic:           basic.Score,
			Relevance:       rel,
			Personalization: pers,
			Composite:       composite,
			FallbackUsed:    fallbackUsed,
			ComputedAt:      now,
		})
		selCandidates = append(selCandidates, selection.Candidate{Job: j, Composite: composite})
	}

	if err := o.scores.UpsertBatch(ctx, scoreRows); err != nil {
		return 0, 0, fmt.Errorf("persisting scores for user %s: %w", u.ID, err)
	}

	selected := o.selector.Select(u, selCandidates, runDate, now)
	if err := o.selections.ReplaceForUser(ctx, u.ID, runDate, selected); err != nil {
		return 0, 0, fmt.Errorf("persisting selection for user %s: %w", u.ID, err)
	}

	if o.metrics != nil {
		o.metrics.UserScoreTime.Observe(time.Since(start).Seconds())
	}
	return len(scoreRows), len(selected), nil
}

func acceptedSet(types []string) map[job.CompensationType]bool {
	out := make(map[job.CompensationType]bool, len(types))
	for _, t := range types {
		out[job.CompensationType(t)] = true
	}
	return out
}
