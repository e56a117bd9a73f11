package repository

import (
	"context"
	"time"

	"job-digest/internal/database"
	"job-digest/internal/domain/score"

	"github.com/google/uuid"
)

type ScoreRepository interface {
	// UpsertBatch overwrites this run's scores for the given pairs. One row
	// per (user, job); prior values are replaced, not appended.
	UpsertBatch(ctx context.Context, scores []score.Score) error
}

type PostgresScoreRepository struct {
	db database.DB
}

func NewPostgresScoreRepository(db database.DB) *PostgresScoreRepository {
	return &PostgresScoreRepository{db: db}
}

func (r *PostgresScoreRepository) UpsertBatch(ctx context.Context, scores []score.Score) error {
	if len(scores) == 0 {
		return nil
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, s := range scores {
		if s.UserID == uuid.Nil || s.JobID == uuid.Nil {
			continue
		}
		if s.ComputedAt.IsZero() {
			s.ComputedAt = time.Now().UTC()
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO scores (user_id, job_id, basic_score, relevance_score,
				personalization_score, composite_score, fallback_used, computed_at)
			 VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
			 ON CONFLICT (user_id, job_id) DO UPDATE SET
				basic_score = EXCLUDED.basic_score,
				relevance_score = EXCLUDED.relevance_score,
				personalization_score = EXCLUDED.personalization_score,
				composite_score = EXCLUDED.composite_score,
				fallback_used = EXCLUDED.fallback_used,
				computed_at = EXCLUDED.computed_at`,
			s.UserID, s.JobID, s.Basic, s.Relevance,
			s.Personalization, s.Composite, s.FallbackUsed, s.ComputedAt,
		); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}
