package repository

import (
	"context"
	"time"

	"job-digest/internal/database"
	"job-digest/internal/domain/score"

	"github.com/google/uuid"
)

type SelectionRepository interface {
	// ReplaceForUser atomically swaps a user's selection for one run date.
	// Downstream email generation reads by (user_id, run_date) and must
	// never observe a half-written list.
	ReplaceForUser(ctx context.Context, userID uuid.UUID, runDate time.Time, rows []score.Selection) error
}

type PostgresSelectionRepository struct {
	db database.DB
}

func NewPostgresSelectionRepository(db database.DB) *PostgresSelectionRepository {
	return &PostgresSelectionRepository{db: db}
}

func (r *PostgresSelectionRepository) ReplaceForUser(ctx context.Context, userID uuid.UUID, runDate time.Time, rows []score.Selection) error {
	if userID == uuid.Nil {
		return nil
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx,
		`DELETE FROM selections WHERE user_id = $1 AND run_date = $2`,
		userID, runDate,
	); err != nil {
		return err
	}

	for _, s := range rows {
		if _, err := tx.Exec(ctx,
			`INSERT INTO selections (user_id, job_id, run_date, section,
				section_rank, composite_score, is_selected)
			 VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			s.UserID, s.JobID, s.RunDate, s.Section,
			s.Rank, s.Composite, s.IsSelected,
		); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}
