package repository

import (
	"context"

	"job-digest/internal/database"
	"job-digest/internal/domain/score"
)

type PopularityRepository interface {
	ListAll(ctx context.Context) ([]score.EmployerPopularity, error)
	UpsertAll(ctx context.Context, pops []score.EmployerPopularity) error
}

type PostgresPopularityRepository struct {
	db database.DB
}

func NewPostgresPopularityRepository(db database.DB) *PostgresPopularityRepository {
	return &PostgresPopularityRepository{db: db}
}

func (r *PostgresPopularityRepository) ListAll(ctx context.Context) ([]score.EmployerPopularity, error) {
	rows, err := r.db.Query(ctx,
		`SELECT employer_id, views_360d, apps_360d, views_30d, apps_30d,
		        views_7d, apps_7d, rate_360d, rate_30d, rate_7d,
		        popularity_score, popularity_rank, computed_at
		 FROM employer_popularity`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []score.EmployerPopularity
	for rows.Next() {
		var p score.EmployerPopularity
		if err := rows.Scan(
			&p.EmployerID, &p.Views360, &p.Apps360, &p.Views30, &p.Apps30,
			&p.Views7, &p.Apps7, &p.Rate360, &p.Rate30, &p.Rate7,
			&p.Score, &p.Rank, &p.ComputedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *PostgresPopularityRepository) UpsertAll(ctx context.Context, pops []score.EmployerPopularity) error {
	if len(pops) == 0 {
		return nil
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, p := range pops {
		if _, err := tx.Exec(ctx,
			`INSERT INTO employer_popularity (
				employer_id, views_360d, apps_360d, views_30d, apps_30d,
				views_7d, apps_7d, rate_360d, rate_30d, rate_7d,
				popularity_score, popularity_rank, computed_at)
			 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
			 ON CONFLICT (employer_id) DO UPDATE SET
				views_360d = EXCLUDED.views_360d,
				apps_360d = EXCLUDED.apps_360d,
				views_30d = EXCLUDED.views_30d,
				apps_30d = EXCLUDED.apps_30d,
				views_7d = EXCLUDED.views_7d,
				apps_7d = EXCLUDED.apps_7d,
				rate_360d = EXCLUDED.rate_360d,
				rate_30d = EXCLUDED.rate_30d,
				rate_7d = EXCLUDED.rate_7d,
				popularity_score = EXCLUDED.popularity_score,
				popularity_rank = EXCLUDED.popularity_rank,
				computed_at = EXCLUDED.computed_at`,
			p.EmployerID, p.Views360, p.Apps360, p.Views30, p.Apps30,
			p.Views7, p.Apps7, p.Rate360, p.Rate30, p.Rate7,
			p.Score, p.Rank, p.ComputedAt,
		); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}
