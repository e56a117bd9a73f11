package repository

import (
	"context"

	"job-digest/internal/database"
	"job-digest/internal/domain/user"

	"github.com/google/uuid"
)

type UserRepository interface {
	// ListActiveAfter pages active users by id keyset so a resumed run can
	// continue from the last checkpointed user without re-reading earlier
	// pages. Pass uuid.Nil to start from the beginning.
	ListActiveAfter(ctx context.Context, afterID uuid.UUID, limit int) ([]user.User, error)
	CountActive(ctx context.Context) (int, error)
}

type PostgresUserRepository struct {
	db database.DB
}

func NewPostgresUserRepository(db database.DB) *PostgresUserRepository {
	return &PostgresUserRepository{db: db}
}

func (r *PostgresUserRepository) ListActiveAfter(ctx context.Context, afterID uuid.UUID, limit int) ([]user.User, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := r.db.Query(ctx,
		`SELECT id, region, locality, is_active, created_at, last_activity_at
		 FROM users
		 WHERE is_active = TRUE AND id > $1
		 ORDER BY id
		 LIMIT $2`,
		afterID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]user.User, 0, limit)
	for rows.Next() {
		var u user.User
		if err := rows.Scan(&u.ID, &u.Region, &u.Locality, &u.IsActive, &u.CreatedAt, &u.LastActivityAt); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (r *PostgresUserRepository) CountActive(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE is_active = TRUE`).Scan(&n)
	return n, err
}
