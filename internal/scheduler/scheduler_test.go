package scheduler

import (
	"context"
	"testing"
	"time"

	"venuecrawl/internal/freshness"
	"venuecrawl/internal/model"
)

type fakeStore struct {
	venues      []model.Venue
	enrichments map[string]model.Enrichment
	enqueued    []string
}

func (f *fakeStore) ListStaleOrMissing(ctx context.Context, cutoff time.Time, limit int) ([]model.Venue, error) {
	if limit < len(f.venues) {
		return f.venues[:limit], nil
	}
	return f.venues, nil
}

func (f *fakeStore) GetEnrichment(ctx context.Context, placeID string) (model.Enrichment, error) {
	if e, ok := f.enrichments[placeID]; ok {
		return e, nil
	}
	return model.Enrichment{PlaceID: placeID}, nil
}

func (f *fakeStore) EnqueueJob(ctx context.Context, placeID string, mode model.JobMode, priority int) (int64, error) {
	f.enqueued = append(f.enqueued, placeID)
	return int64(len(f.enqueued)), nil
}

var testWindows = freshness.Windows{OpeningHoursDays: 3, MenuContactPriceDays: 14, DescriptionFeaturesDays: 30}

func TestRunOnceEnqueuesNeverEnrichedVenuesFirst(t *testing.T) {
	fs := &fakeStore{venues: []model.Venue{
		{PlaceID: "never", CategoryName: "General"},
	}}
	sched := New(fs, testWindows, 10, 10, 60*24*time.Hour, nil)

	n, err := sched.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 job enqueued, got %d", n)
	}
	if len(fs.enqueued) != 1 || fs.enqueued[0] != "never" {
		t.Fatalf("expected 'never' enqueued, got %v", fs.enqueued)
	}
}

func TestRunOnceSkipsVenuesWithNothingMissingOrStale(t *testing.T) {
	now := time.Now()
	fs := &fakeStore{
		venues: []model.Venue{{PlaceID: "fresh", CategoryName: "General Store", Latitude: 1, Longitude: 1}},
		enrichments: map[string]model.Enrichment{
			"fresh": {
				PlaceID: "fresh", Contact: model.ContactDetails{Phone: "1"}, ContactUpdated: &now,
				Hours: model.Hours{"mon": {{Open: "09:00", Close: "17:00"}}}, HoursUpdated: &now,
				Description: "ok", DescriptionUpdated: &now,
			},
		},
	}
	sched := New(fs, testWindows, 10, 10, 60*24*time.Hour, nil)

	n, err := sched.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected 0 jobs enqueued for a fully-fresh venue, got %d", n)
	}
}

func TestSelectDueOrdersStaleFirst(t *testing.T) {
	old := time.Now().Add(-30 * 24 * time.Hour)
	recent := time.Now().Add(-1 * time.Hour)
	candidates := []model.Venue{
		{PlaceID: "recent", LastEnrichedAt: &recent},
		{PlaceID: "never"},
		{PlaceID: "old", LastEnrichedAt: &old},
	}

	out := selectDue(candidates, 0, 2)
	if len(out) != 2 {
		t.Fatalf("expected 2 selected, got %d", len(out))
	}
	if out[0].PlaceID != "never" || out[1].PlaceID != "old" {
		t.Fatalf("expected never-enriched then oldest first, got %v, %v", out[0].PlaceID, out[1].PlaceID)
	}
}

func TestSelectDueAlwaysIncludesTopPopularity(t *testing.T) {
	recent := time.Now().Add(-time.Minute)
	old := time.Now().Add(-30 * 24 * time.Hour)
	popular := 0.95
	candidates := []model.Venue{
		{PlaceID: "popular-but-fresh", LastEnrichedAt: &recent, PopularityConfidence: &popular},
		{PlaceID: "stale-1", LastEnrichedAt: &old},
		{PlaceID: "stale-2", LastEnrichedAt: &old},
	}

	out := selectDue(candidates, 34, 2)
	found := false
	for _, v := range out {
		if v.PlaceID == "popular-but-fresh" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected top-popularity venue to be included even beyond the batch limit, got %v", out)
	}
}
