package repository

import (
	"context"

	"job-digest/internal/database"
	"job-digest/internal/domain/job"
)

type JobRepository interface {
	// ListActive scans active jobs in stable id order. Callers page with
	// limit/offset so the whole catalog is never held at once.
	ListActive(ctx context.Context, limit, offset int) ([]job.Job, error)
	CountActive(ctx context.Context) (int, error)
}

type PostgresJobRepository struct {
	db database.DB
}

func NewPostgresJobRepository(db database.DB) *PostgresJobRepository {
	return &PostgresJobRepository{db: db}
}

func (r *PostgresJobRepository) ListActive(ctx context.Context, limit, offset int) ([]job.Job, error) {
	if limit <= 0 {
		limit = 500
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := r.db.Query(ctx,
		`SELECT id, employer_id, region, locality, wage_min, wage_max,
		        compensation_type, fee, title, description, perks,
		        categories, high_benefit, posted_at, is_active
		 FROM jobs
		 WHERE is_active = TRUE
		 ORDER BY id
		 LIMIT $1 OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]job.Job, 0, limit)
	for rows.Next() {
		var j job.Job
		var compType string
		if err := rows.Scan(
			&j.ID, &j.EmployerID, &j.Region, &j.Locality, &j.WageMin, &j.WageMax,
			&compType, &j.Fee, &j.Title, &j.Description, &j.Perks,
			&j.Categories, &j.HighBenefit, &j.PostedAt, &j.IsActive,
		); err != nil {
			return nil, err
		}
		j.CompensationType = job.CompensationType(compType)
		out = append(out, j)
	}
	return out, rows.Err()
}

func (r *PostgresJobRepository) CountActive(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM jobs WHERE is_active = TRUE`).Scan(&n)
	return n, err
}
