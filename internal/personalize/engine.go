package personalize

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"job-digest/internal/config"
	"job-digest/internal/domain/event"
	"job-digest/internal/domain/job"
	"job-digest/internal/domain/user"
	"job-digest/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const trainEventPage = 5000

// Engine serves the personalization score. The active model is immutable
// and swapped atomically, so scoring workers never read a half-trained
// model; the lifecycle state is only touched under the mutex by the single
// training goroutine.
type Engine struct {
	cfg       config.PersonalizationConfig
	retention time.Duration
	events    repository.EventRepository
	log       zerolog.Logger

	model atomic.Pointer[Model]

	mu    sync.Mutex
	state State
}

func NewEngine(cfg config.PersonalizationConfig, retention time.Duration, events repository.EventRepository, logger zerolog.Logger) *Engine {
	return &Engine{
		cfg:       cfg,
		retention: retention,
		events:    events,
		log:       logger.With().Str("component", "personalize").Logger(),
		state:     StateUntrained,
	}
}

func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Score returns the personalization signal for one pair and whether the
// fallback path produced it. The flag is persisted with every score so
// audits can separate cold-start behavior from modeled behavior.
func (e *Engine) Score(userID uuid.UUID, j job.Job, profile user.Profile, profileFound bool, recentCategories map[string]bool) (float64, bool) {
	if m := e.model.Load(); m != nil {
		if s, ok := m.Predict(userID, j.ID); ok {
			return s, false
		}
	}
	return Fallback(profile, profileFound, recentCategories, j), true
}

// MaybeRetrain checks the retraining trigger: accumulated interactions since
// the last training exceeding the configured threshold mark the model stale
// and retrain it. With no model yet it always trains.
func (e *Engine) MaybeRetrain(ctx context.Context) error {
	m := e.model.Load()
	if m == nil {
		return e.Train(ctx)
	}

	n, err := e.events.CountSince(ctx, m.TrainedAt())
	if err != nil {
		return err
	}
	if n < e.cfg.RetrainThreshold {
		e.log.Debug().Int("new_events", n).Int("threshold", e.cfg.RetrainThreshold).Msg("model still fresh")
		return nil
	}

	e.mu.Lock()
	if e.state == StateActive {
		_ = e.transition(StateStale)
	}
	e.mu.Unlock()

	e.log.Info().Int("new_events", n).Msg("retraining triggered")
	return e.Train(ctx)
}

// Train builds a new model from the retained event history and swaps it in.
// A training failure leaves the prior model (if any) serving; the error is
// returned for logging and counting, never propagated as a batch abort.
func (e *Engine) Train(ctx context.Context) error {
	e.mu.Lock()
	hadModel := e.model.Load() != nil
	var target State
	if hadModel {
		if e.state == StateActive {
			_ = e.transition(StateStale)
		}
		target = StateRetraining
	} else {
		target = StateTraining
	}
	if err := e.transition(target); err != nil {
		e.mu.Unlock()
		return err
	}
	e.mu.Unlock()

	trainCtx := ctx
	if e.cfg.TrainDeadline > 0 {
		var cancel context.CancelFunc
		trainCtx, cancel = context.WithTimeout(ctx, e.cfg.TrainDeadline)
		defer cancel()
	}

	start := time.Now()
	model, err := e.train(trainCtx)

	e.mu.Lock()
	defer e.mu.Unlock()
	if err != nil {
		if hadModel {
			_ = e.transition(StateActive)
			e.log.Error().Err(err).Msg("retraining failed, prior model kept")
		} else {
			_ = e.transition(StateUntrained)
			e.log.Error().Err(err).Msg("training failed, no model active")
		}
		return err
	}

	e.model.Store(model)
	_ = e.transition(StateActive)
	e.log.Info().
		Int("events", model.eventCount).
		Int("users", len(model.userFactors)).
		Int("jobs", len(model.jobFactors)).
		Dur("took", time.Since(start)).
		Msg("model trained")
	return nil
}

func (e *Engine) train(ctx context.Context) (*Model, error) {
	since := time.Now().UTC().Add(-e.retention)

	var interactions []Interaction
	offset := 0
	for {
		page, err := e.events.ListSince(ctx, since, trainEventPage, offset)
		if err != nil {
			return nil, err
		}
		for _, in := range page {
			interactions = append(interactions, Interaction{
				UserID:     in.UserID,
				JobID:      in.JobID,
				Confidence: e.confidence(in.Type),
			})
		}
		if len(page) < trainEventPage {
			break
		}
		offset += trainEventPage
	}

	return TrainALS(ctx, TrainConfig{
		Factors:        e.cfg.Factors,
		Iterations:     e.cfg.Iterations,
		Regularization: e.cfg.Regularization,
		Alpha:          e.cfg.Alpha,
	}, interactions)
}

// confidence weights interaction strength: an application is far stronger
// evidence of interest than a view.
func (e *Engine) confidence(t event.Type) float64 {
	switch t {
	case event.TypeApply:
		return e.cfg.ApplyWeight
	case event.TypeFavorite:
		return e.cfg.FavoriteWeight
	case event.TypeClick:
		return e.cfg.ClickWeight
	default:
		return e.cfg.ViewWeight
	}
}
