// Package stats holds the two read-mostly caches the basic scorer depends
// on: wage distribution per area and engagement rates per employer. Both
// refresh by building a complete replacement snapshot and swapping it in
// atomically, so scoring workers never observe a half-updated cache. A
// failed refresh leaves the previous snapshot serving.
package stats

import (
	"context"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"job-digest/internal/domain/score"
	"job-digest/internal/repository"

	"github.com/rs/zerolog"
)

const jobScanPage = 1000

type AreaStats struct {
	jobs       repository.JobRepository
	store      repository.AreaStatRepository
	minSamples int
	log        zerolog.Logger

	snap atomic.Pointer[areaSnapshot]
}

type areaSnapshot struct {
	byRegion map[string]score.AreaStat
	global   score.AreaStat
}

func NewAreaStats(jobs repository.JobRepository, store repository.AreaStatRepository, minSamples int, logger zerolog.Logger) *AreaStats {
	if minSamples <= 0 {
		minSamples = 10
	}
	c := &AreaStats{
		jobs:       jobs,
		store:      store,
		minSamples: minSamples,
		log:        logger.With().Str("component", "area-stats").Logger(),
	}
	c.snap.Store(&areaSnapshot{byRegion: map[string]score.AreaStat{}})
	return c
}

// Get returns the wage distribution for region. Areas with fewer than the
// minimum sample count fall back to the global distribution so a handful of
// outlier postings cannot distort z-scores.
func (c *AreaStats) Get(region string) score.AreaStat {
	snap := c.snap.Load()
	s, ok := snap.byRegion[region]
	if !ok || s.SampleCount < c.minSamples {
		return snap.global
	}
	return s
}

// Load restores the last persisted snapshot, typically at process start so
// scoring can begin before the first refresh completes.
func (c *AreaStats) Load(ctx context.Context) error {
	rows, err := c.store.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("load area stats: %w", err)
	}
	if len(rows) == 0 {
		return nil
	}
	c.snap.Store(buildAreaSnapshot(rows))
	c.log.Info().Int("areas", len(rows)).Msg("area stats loaded from store")
	return nil
}

// Refresh recomputes all areas from the current active catalog and swaps the
// result in. On error the previous snapshot keeps serving.
func (c *AreaStats) Refresh(ctx context.Context) error {
	type agg struct {
		n     int
		sum   float64
		sumSq float64
	}
	byRegion := make(map[string]*agg)

	offset := 0
	for {
		page, err := c.jobs.ListActive(ctx, jobScanPage, offset)
		if err != nil {
			return fmt.Errorf("refresh area stats: %w", err)
		}
		for _, j := range page {
			w := j.NormalizedWage()
			if w <= 0 || j.Region == "" {
				continue
			}
			a := byRegion[j.Region]
			if a == nil {
				a = &agg{}
				byRegion[j.Region] = a
			}
			a.n++
			a.sum += w
			a.sumSq += w * w
		}
		if len(page) < jobScanPage {
			break
		}
		offset += jobScanPage
	}

	now := time.Now().UTC()
	rows := make([]score.AreaStat, 0, len(byRegion))
	for region, a := range byRegion {
		mean := a.sum / float64(a.n)
		variance := a.sumSq/float64(a.n) - mean*mean
		if variance < 0 {
			variance = 0
		}
		rows = append(rows, score.AreaStat{
			Region:      region,
			Mean:        mean,
			StdDev:      math.Sqrt(variance),
			SampleCount: a.n,
			ComputedAt:  now,
		})
	}

	c.snap.Store(buildAreaSnapshot(rows))
	c.log.Info().Int("areas", len(rows)).Msg("area stats refreshed")

	if err := c.store.UpsertAll(ctx, rows); err != nil {
		// Snapshot already swapped; persistence failure only costs the next
		// cold start its warm cache.
		c.log.Warn().Err(err).Msg("persisting area stats failed")
	}
	return nil
}

func buildAreaSnapshot(rows []score.AreaStat) *areaSnapshot {
	byRegion := make(map[string]score.AreaStat, len(rows))
	var totalN int
	var weightedMean, weightedVar float64
	for _, s := range rows {
		byRegion[s.Region] = s
		totalN += s.SampleCount
		weightedMean += s.Mean * float64(s.SampleCount)
		weightedVar += s.StdDev * s.StdDev * float64(s.SampleCount)
	}

	global := score.AreaStat{Region: "global"}
	if totalN > 0 {
		global.Mean = weightedMean / float64(totalN)
		global.StdDev = math.Sqrt(weightedVar / float64(totalN))
		global.SampleCount = totalN
	}
	return &areaSnapshot{byRegion: byRegion, global: global}
}
