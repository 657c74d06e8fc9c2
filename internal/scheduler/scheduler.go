// Package scheduler runs the background-refresh selection loop: it picks
// venues whose enrichment is missing or stale and enqueues background
// crawl jobs for them, stale-first, padding the batch with the most popular
// candidates even when they fall past the batch limit. Candidates come only
// from venues past the staleness cutoff, and a padded venue is still skipped
// when the freshness evaluator finds nothing missing or stale on it.
package scheduler

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"venuecrawl/internal/freshness"
	"venuecrawl/internal/model"
	"venuecrawl/internal/store"
)

// Store is the subset of *store.Store the scheduler depends on.
type Store interface {
	ListStaleOrMissing(ctx context.Context, cutoff time.Time, limit int) ([]model.Venue, error)
	GetEnrichment(ctx context.Context, placeID string) (model.Enrichment, error)
	EnqueueJob(ctx context.Context, placeID string, mode model.JobMode, priority int) (int64, error)
}

var _ Store = (*store.Store)(nil)

// Windows mirrors freshness.Windows so callers only need one config type
// in scope; scheduler never evaluates staleness itself beyond ordering.
type Windows = freshness.Windows

// Scheduler periodically selects venues due for a background refresh and
// enqueues a background-mode crawl job for each.
type Scheduler struct {
	store            Store
	windows          Windows
	batchSize        int
	topPopularityPct int
	staleCutoff      time.Duration
	logger           *slog.Logger
}

// New builds a Scheduler. staleCutoff bounds how far back ListStaleOrMissing
// looks for a last_enriched_at timestamp; it should be at least as large as
// the widest freshness window so nothing merely "fresh" is ever selected.
func New(st Store, windows Windows, batchSize, topPopularityPct int, staleCutoff time.Duration, logger *slog.Logger) *Scheduler {
	if batchSize <= 0 {
		batchSize = 100
	}
	if topPopularityPct <= 0 {
		topPopularityPct = 10
	}
	return &Scheduler{
		store:            st,
		windows:          windows,
		batchSize:        batchSize,
		topPopularityPct: topPopularityPct,
		staleCutoff:      staleCutoff,
		logger:           logger,
	}
}

// RunOnce selects one batch of due venues and enqueues a background job for
// each, returning the number of jobs enqueued. It never blocks past the
// given context's deadline.
func (s *Scheduler) RunOnce(ctx context.Context) (int, error) {
	candidates, err := s.store.ListStaleOrMissing(ctx, time.Now().Add(-s.staleCutoff), s.batchSize)
	if err != nil {
		return 0, err
	}

	selected := selectDue(candidates, s.topPopularityPct, s.batchSize)

	enqueued := 0
	for _, v := range selected {
		enrichment, err := s.store.GetEnrichment(ctx, v.PlaceID)
		if err != nil {
			enrichment = model.Enrichment{PlaceID: v.PlaceID}
		}
		result := freshness.Evaluate(v, enrichment, time.Now(), s.windows)
		if len(result.Missing) == 0 && len(result.Stale) == 0 {
			continue
		}
		if _, err := s.store.EnqueueJob(ctx, v.PlaceID, model.ModeBackground, priorityFor(v, result)); err != nil {
			s.logWarn("enqueue failed", "place_id", v.PlaceID, "error", err)
			continue
		}
		enqueued++
	}
	return enqueued, nil
}

// Run loops RunOnce on interval until ctx is canceled.
func (s *Scheduler) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		n, err := s.RunOnce(ctx)
		if err != nil {
			s.logWarn("scheduler pass failed", "error", err)
			continue
		}
		s.logInfo("scheduler pass complete", "enqueued", n)
	}
}

func (s *Scheduler) logInfo(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Info(msg, args...)
	}
}

func (s *Scheduler) logWarn(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Warn(msg, args...)
	}
}

// selectDue orders candidates stale-first (oldest last_enriched_at first,
// with never-enriched venues sorted ahead of everything else), then makes
// sure the top topPopularityPct% by popularity confidence are represented
// even if they would otherwise fall outside limit.
func selectDue(candidates []model.Venue, topPopularityPct, limit int) []model.Venue {
	ordered := make([]model.Venue, len(candidates))
	copy(ordered, candidates)
	sort.SliceStable(ordered, func(i, j int) bool {
		return staleRank(ordered[i]) < staleRank(ordered[j])
	})

	if limit >= len(ordered) {
		return withTopPopularity(ordered, ordered, topPopularityPct)
	}
	return withTopPopularity(ordered[:limit], ordered, topPopularityPct)
}

// staleRank gives never-enriched venues (LastEnrichedAt == nil) priority
// over everything else, then orders the rest oldest-first.
func staleRank(v model.Venue) int64 {
	if v.LastEnrichedAt == nil {
		return -1 << 62
	}
	return v.LastEnrichedAt.UnixNano()
}

// withTopPopularity appends any venue from the top topPopularityPct% of all
// by popularity confidence that isn't already present in selected.
func withTopPopularity(selected, all []model.Venue, topPopularityPct int) []model.Venue {
	byPopularity := make([]model.Venue, len(all))
	copy(byPopularity, all)
	sort.SliceStable(byPopularity, func(i, j int) bool {
		return popularity(byPopularity[i]) > popularity(byPopularity[j])
	})

	topN := len(byPopularity) * topPopularityPct / 100
	if topN == 0 && topPopularityPct > 0 && len(byPopularity) > 0 {
		topN = 1
	}

	present := make(map[string]bool, len(selected))
	for _, v := range selected {
		present[v.PlaceID] = true
	}

	out := make([]model.Venue, len(selected))
	copy(out, selected)
	for i := 0; i < topN; i++ {
		v := byPopularity[i]
		if !present[v.PlaceID] {
			out = append(out, v)
			present[v.PlaceID] = true
		}
	}
	return out
}

func popularity(v model.Venue) float64 {
	if v.PopularityConfidence == nil {
		return 0
	}
	return *v.PopularityConfidence
}

// priorityFor ranks never-enriched venues above merely-stale ones and
// popular venues above obscure ones, within the queue's 0..10 priority scale.
func priorityFor(v model.Venue, result freshness.Result) int {
	priority := 3
	if v.LastEnrichedAt == nil || len(result.Missing) > 0 {
		priority = 5
	}
	if popularity(v) >= 0.8 {
		priority++
	}
	if priority > 10 {
		priority = 10
	}
	return priority
}
