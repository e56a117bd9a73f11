package stats

import (
	"context"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"job-digest/internal/domain/score"
	"job-digest/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Popularity serves blended employer engagement scores. The blend weighs
// long-term reliability (360-day application rate, 40 points) against
// short-term momentum (30-day and 7-day application volume, 30 points each).
type Popularity struct {
	events  repository.EventRepository
	store   repository.PopularityRepository
	neutral float64
	log     zerolog.Logger

	snap atomic.Pointer[popularitySnapshot]
}

type popularitySnapshot struct {
	byEmployer map[uuid.UUID]score.EmployerPopularity
}

func NewPopularity(events repository.EventRepository, store repository.PopularityRepository, neutral float64, logger zerolog.Logger) *Popularity {
	if neutral <= 0 {
		neutral = 30
	}
	c := &Popularity{
		events:  events,
		store:   store,
		neutral: neutral,
		log:     logger.With().Str("component", "popularity").Logger(),
	}
	c.snap.Store(&popularitySnapshot{byEmployer: map[uuid.UUID]score.EmployerPopularity{}})
	return c
}

// Get returns the cached popularity for an employer. Employers with no
// recorded views get a neutral score rather than zero so new postings are
// not penalized for being unknown.
func (c *Popularity) Get(employerID uuid.UUID) score.EmployerPopularity {
	if p, ok := c.snap.Load().byEmployer[employerID]; ok {
		return p
	}
	return score.EmployerPopularity{EmployerID: employerID, Score: c.neutral}
}

func (c *Popularity) Load(ctx context.Context) error {
	rows, err := c.store.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("load popularity: %w", err)
	}
	if len(rows) == 0 {
		return nil
	}
	c.snap.Store(buildPopularitySnapshot(rows))
	c.log.Info().Int("employers", len(rows)).Msg("popularity loaded from store")
	return nil
}

// Refresh recomputes all employers from interaction events within the three
// rolling windows and swaps the snapshot in.
func (c *Popularity) Refresh(ctx context.Context) error {
	now := time.Now().UTC()

	c360, err := c.events.EmployerCountsSince(ctx, now.AddDate(0, 0, -360))
	if err != nil {
		return fmt.Errorf("refresh popularity 360d: %w", err)
	}
	c30, err := c.events.EmployerCountsSince(ctx, now.AddDate(0, 0, -30))
	if err != nil {
		return fmt.Errorf("refresh popularity 30d: %w", err)
	}
	c7, err := c.events.EmployerCountsSince(ctx, now.AddDate(0, 0, -7))
	if err != nil {
		return fmt.Errorf("refresh popularity 7d: %w", err)
	}

	byEmployer := make(map[uuid.UUID]*score.EmployerPopularity)
	get := func(id uuid.UUID) *score.EmployerPopularity {
		p := byEmployer[id]
		if p == nil {
			p = &score.EmployerPopularity{EmployerID: id, ComputedAt: now}
			byEmployer[id] = p
		}
		return p
	}
	for _, cnt := range c360 {
		p := get(cnt.EmployerID)
		p.Views360, p.Apps360 = cnt.Views, cnt.Apps
	}
	for _, cnt := range c30 {
		p := get(cnt.EmployerID)
		p.Views30, p.Apps30 = cnt.Views, cnt.Apps
	}
	for _, cnt := range c7 {
		p := get(cnt.EmployerID)
		p.Views7, p.Apps7 = cnt.Views, cnt.Apps
	}

	rows := make([]score.EmployerPopularity, 0, len(byEmployer))
	for _, p := range byEmployer {
		p.Rate360 = rate(p.Apps360, p.Views360)
		p.Rate30 = rate(p.Apps30, p.Views30)
		p.Rate7 = rate(p.Apps7, p.Views7)
		if p.Views360 == 0 {
			p.Score = c.neutral
		} else {
			p.Score = BlendScore(p.Rate360, p.Apps30, p.Apps7)
		}
		rows = append(rows, *p)
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Score != rows[j].Score {
			return rows[i].Score > rows[j].Score
		}
		return rows[i].EmployerID.String() < rows[j].EmployerID.String()
	})
	for i := range rows {
		rows[i].Rank = i + 1
	}

	c.snap.Store(buildPopularitySnapshot(rows))
	c.log.Info().Int("employers", len(rows)).Msg("popularity refreshed")

	if err := c.store.UpsertAll(ctx, rows); err != nil {
		c.log.Warn().Err(err).Msg("persisting popularity failed")
	}
	return nil
}

// BlendScore combines the long-term application rate with capped short-term
// application volume: min(100, rate360*100*0.4 + min(30, apps30*0.5) +
// min(30, apps7*2)).
func BlendScore(rate360 float64, apps30, apps7 int) float64 {
	longTerm := rate360 * 100 * 0.4
	mid := float64(apps30) * 0.5
	if mid > 30 {
		mid = 30
	}
	recent := float64(apps7) * 2
	if recent > 30 {
		recent = 30
	}
	s := longTerm + mid + recent
	if s > 100 {
		s = 100
	}
	return s
}

func rate(apps, views int) float64 {
	if views <= 0 {
		return 0
	}
	return float64(apps) / float64(views)
}

func buildPopularitySnapshot(rows []score.EmployerPopularity) *popularitySnapshot {
	m := make(map[uuid.UUID]score.EmployerPopularity, len(rows))
	for _, p := range rows {
		m[p.EmployerID] = p
	}
	return &popularitySnapshot{byEmployer: m}
}
