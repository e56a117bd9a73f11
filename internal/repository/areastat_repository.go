package repository

import (
	"context"

	"job-digest/internal/database"
	"job-digest/internal/domain/score"
)

type AreaStatRepository interface {
	ListAll(ctx context.Context) ([]score.AreaStat, error)
	UpsertAll(ctx context.Context, stats []score.AreaStat) error
}

type PostgresAreaStatRepository struct {
	db database.DB
}

func NewPostgresAreaStatRepository(db database.DB) *PostgresAreaStatRepository {
	return &PostgresAreaStatRepository{db: db}
}

func (r *PostgresAreaStatRepository) ListAll(ctx context.Context) ([]score.AreaStat, error) {
	rows, err := r.db.Query(ctx,
		`SELECT region, wage_mean, wage_stddev, sample_count, computed_at FROM area_stats`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []score.AreaStat
	for rows.Next() {
		var s score.AreaStat
		if err := rows.Scan(&s.Region, &s.Mean, &s.StdDev, &s.SampleCount, &s.ComputedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *PostgresAreaStatRepository) UpsertAll(ctx context.Context, stats []score.AreaStat) error {
	if len(stats) == 0 {
		return nil
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, s := range stats {
		if _, err := tx.Exec(ctx,
			`INSERT INTO area_stats (region, wage_mean, wage_stddev, sample_count, computed_at)
			 VALUES ($1,$2,$3,$4,$5)
			 ON CONFLICT (region) DO UPDATE SET
				wage_mean = EXCLUDED.wage_mean,
				wage_stddev = EXCLUDED.wage_stddev,
				sample_count = EXCLUDED.sample_count,
				computed_at = EXCLUDED.computed_at`,
			s.Region, s.Mean, s.StdDev, s.SampleCount, s.ComputedAt,
		); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}
