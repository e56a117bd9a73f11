package repository

import (
	"context"

	"job-digest/internal/database"
	"job-digest/internal/domain/keyword"
)

type KeywordRepository interface {
	ListAll(ctx context.Context) ([]keyword.Keyword, error)
}

type PostgresKeywordRepository struct {
	db database.DB
}

func NewPostgresKeywordRepository(db database.DB) *PostgresKeywordRepository {
	return &PostgresKeywordRepository{db: db}
}

func (r *PostgresKeywordRepository) ListAll(ctx context.Context) ([]keyword.Keyword, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, term, search_volume, intent FROM demand_keywords ORDER BY search_volume DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []keyword.Keyword
	for rows.Next() {
		var k keyword.Keyword
		var intent string
		if err := rows.Scan(&k.ID, &k.Term, &k.SearchVolume, &intent); err != nil {
			return nil, err
		}
		k.Intent = keyword.Intent(intent)
		out = append(out, k)
	}
	return out, rows.Err()
}
