package repository

import (
	"context"
	"encoding/json"

	"job-digest/internal/database"
	"job-digest/internal/domain/user"

	"github.com/google/uuid"
)

type ProfileRepository interface {
	FindByUserID(ctx context.Context, userID uuid.UUID) (user.Profile, bool, error)
}

type PostgresProfileRepository struct {
	db database.DB
}

func NewPostgresProfileRepository(db database.DB) *PostgresProfileRepository {
	return &PostgresProfileRepository{db: db}
}

func (r *PostgresProfileRepository) FindByUserID(ctx context.Context, userID uuid.UUID) (user.Profile, bool, error) {
	if userID == uuid.Nil {
		return user.Profile{}, false, nil
	}

	var p user.Profile
	var catJSON, regJSON []byte
	err := r.db.QueryRow(ctx,
		`SELECT user_id, category_weights, region_weights,
		        preferred_wage_min, preferred_wage_max,
		        view_count, application_count, last_interaction_at, computed_at
		 FROM user_profiles
		 WHERE user_id = $1`,
		userID,
	).Scan(
		&p.UserID, &catJSON, &regJSON,
		&p.PreferredWageMin, &p.PreferredWageMax,
		&p.ViewCount, &p.ApplicationCount, &p.LastInteractionAt, &p.ComputedAt,
	)
	if err != nil {
		if isNoRows(err) {
			return user.Profile{}, false, nil
		}
		return user.Profile{}, false, err
	}

	if len(catJSON) > 0 {
		if err := json.Unmarshal(catJSON, &p.CategoryWeights); err != nil {
			return user.Profile{}, false, err
		}
	}
	if len(regJSON) > 0 {
		if err := json.Unmarshal(regJSON, &p.RegionWeights); err != nil {
			return user.Profile{}, false, err
		}
	}
	return p, true, nil
}
