package repository

import (
	"context"
	"time"

	"job-digest/internal/database"
	"job-digest/internal/domain/event"

	"github.com/google/uuid"
)

// EmployerCounts is a windowed view/application tally for one employer.
type EmployerCounts struct {
	EmployerID uuid.UUID
	Views      int
	Apps       int
}

type EventRepository interface {
	// ListSince pages interactions newer than since in stable (occurred_at,
	// id) order. Used to build the training matrix.
	ListSince(ctx context.Context, since time.Time, limit, offset int) ([]event.Interaction, error)
	// CountSince feeds the retraining trigger.
	CountSince(ctx context.Context, since time.Time) (int, error)
	// EmployerCountsSince aggregates views/applications per employer within
	// one rolling window.
	EmployerCountsSince(ctx context.Context, since time.Time) ([]EmployerCounts, error)
	// RecentByUser returns a user's interactions newer than since, newest
	// first. Feeds the adjustment rules and the cold-start heuristic.
	RecentByUser(ctx context.Context, userID uuid.UUID, since time.Time) ([]event.Interaction, error)
}

type PostgresEventRepository struct {
	db database.DB
}

func NewPostgresEventRepository(db database.DB) *PostgresEventRepository {
	return &PostgresEventRepository{db: db}
}

func (r *PostgresEventRepository) ListSince(ctx context.Context, since time.Time, limit, offset int) ([]event.Interaction, error) {
	if limit <= 0 {
		limit = 5000
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := r.db.Query(ctx,
		`SELECT id, user_id, job_id, employer_id, event_type, occurred_at,
		        COALESCE(session_id, ''), COALESCE(device, '')
		 FROM interaction_events
		 WHERE occurred_at > $1
		 ORDER BY occurred_at, id
		 LIMIT $2 OFFSET $3`,
		since, limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanInteractions(rows)
}

func (r *PostgresEventRepository) CountSince(ctx context.Context, since time.Time) (int, error) {
	var n int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM interaction_events WHERE occurred_at > $1`, since,
	).Scan(&n)
	return n, err
}

func (r *PostgresEventRepository) EmployerCountsSince(ctx context.Context, since time.Time) ([]EmployerCounts, error) {
	rows, err := r.db.Query(ctx,
		`SELECT employer_id,
		        COUNT(*) FILTER (WHERE event_type = 'view'),
		        COUNT(*) FILTER (WHERE event_type = 'apply')
		 FROM interaction_events
		 WHERE occurred_at > $1
		 GROUP BY employer_id`,
		since,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []EmployerCounts
	for rows.Next() {
		var c EmployerCounts
		if err := rows.Scan(&c.EmployerID, &c.Views, &c.Apps); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *PostgresEventRepository) RecentByUser(ctx context.Context, userID uuid.UUID, since time.Time) ([]event.Interaction, error) {
	if userID == uuid.Nil {
		return nil, nil
	}

	rows, err := r.db.Query(ctx,
		`SELECT id, user_id, job_id, employer_id, event_type, occurred_at,
		        COALESCE(session_id, ''), COALESCE(device, '')
		 FROM interaction_events
		 WHERE user_id = $1 AND occurred_at > $2
		 ORDER BY occurred_at DESC, id DESC`,
		userID, since,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanInteractions(rows)
}

func scanInteractions(rows database.Rows) ([]event.Interaction, error) {
	var out []event.Interaction
	for rows.Next() {
		var in event.Interaction
		var evType string
		if err := rows.Scan(&in.ID, &in.UserID, &in.JobID, &in.EmployerID,
			&evType, &in.OccurredAt, &in.SessionID, &in.Device); err != nil {
			return nil, err
		}
		t, ok := event.ParseType(evType)
		if !ok {
			continue
		}
		in.Type = t
		out = append(out, in)
	}
	return out, rows.Err()
}
