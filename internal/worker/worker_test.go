package worker

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"venuecrawl/internal/db"
	"venuecrawl/internal/downloader"
	"venuecrawl/internal/enrichment"
	"venuecrawl/internal/extract"
	"venuecrawl/internal/model"
	"venuecrawl/internal/pipeline"
)

type fakeStore struct {
	venues       map[string]model.Venue
	enrichments  map[string]model.Enrichment
	pages        []model.ScrapedPage
	saved        *model.Enrichment
	touched      []string
	finishedOK   []int64
	finishedFail map[int64]string
	claims       []db.JobClaim
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		venues:       map[string]model.Venue{},
		enrichments:  map[string]model.Enrichment{},
		finishedFail: map[int64]string{},
	}
}

func (f *fakeStore) ClaimBatch(ctx context.Context, limit, perHostCap int) ([]db.JobClaim, error) {
	return f.claims, nil
}

func (f *fakeStore) GetVenue(ctx context.Context, placeID string) (model.Venue, error) {
	return f.venues[placeID], nil
}

func (f *fakeStore) GetEnrichment(ctx context.Context, placeID string) (model.Enrichment, error) {
	if e, ok := f.enrichments[placeID]; ok {
		return e, nil
	}
	return model.Enrichment{PlaceID: placeID}, nil
}

func (f *fakeStore) SaveEnrichment(ctx context.Context, e model.Enrichment) error {
	f.saved = &e
	f.enrichments[e.PlaceID] = e
	return nil
}

func (f *fakeStore) InsertScrapedPage(ctx context.Context, p model.ScrapedPage) (int64, error) {
	f.pages = append(f.pages, p)
	return int64(len(f.pages)), nil
}

func (f *fakeStore) TouchLastEnriched(ctx context.Context, placeID string) error {
	f.touched = append(f.touched, placeID)
	return nil
}

func (f *fakeStore) FinishSuccess(ctx context.Context, jobID int64) error {
	f.finishedOK = append(f.finishedOK, jobID)
	return nil
}

func (f *fakeStore) FinishFail(ctx context.Context, jobID int64, errMsg string) error {
	f.finishedFail[jobID] = errMsg
	return nil
}

func newTestPipeline() *pipeline.Pipeline {
	dl := downloader.New("test-bot/1.0", time.Second, time.Second, time.Second, 2_000_000, true, time.Hour)
	return pipeline.New(dl, 50, 3, 5000, pipeline.TTLConfig{HoursDays: 3, MenuContactPriceDays: 14, DescFeaturesDays: 30})
}

func TestRunJobSucceedsAndMarksTerminalState(t *testing.T) {
	longText := strings.Repeat("Welcome, visit us today for great food. ", 5)
	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(404) })
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<html><body><p>` + longText + ` Email us at hello@venue.test or call 555-123-4567.</p></body></html>`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	fs := newFakeStore()
	fs.venues["p1"] = model.Venue{PlaceID: "p1", Website: &srv.URL}
	fs.claims = []db.JobClaim{{JobID: 1, PlaceID: "p1", Mode: "realtime"}}

	w := New(fs, newTestPipeline(), nil, 2, nil)
	n, err := w.RunBatch(context.Background(), 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 job processed, got %d", n)
	}
	if len(fs.finishedOK) != 1 {
		t.Fatalf("expected job finished success, got fail=%v", fs.finishedFail)
	}
	if fs.saved == nil || fs.saved.Contact.Email == "" {
		t.Fatalf("expected saved enrichment to carry the extracted email, got %+v", fs.saved)
	}
	if len(fs.touched) != 1 {
		t.Fatalf("expected last_enriched_at touched once, got %d", len(fs.touched))
	}
}

func TestRunJobFailsWithNoWebsiteWhenRecovererAbsent(t *testing.T) {
	fs := newFakeStore()
	fs.venues["p1"] = model.Venue{PlaceID: "p1"}
	fs.claims = []db.JobClaim{{JobID: 2, PlaceID: "p1", Mode: "realtime"}}

	w := New(fs, newTestPipeline(), nil, 2, nil)
	if _, err := w.RunBatch(context.Background(), 10); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fs.finishedFail[2] != "no_website" {
		t.Fatalf("expected no_website failure, got %q (success=%v)", fs.finishedFail[2], fs.finishedOK)
	}
}

func TestRunJobConsultsRecovererWhenWebsiteMissing(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(404) })
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<html><body><p>` + strings.Repeat("hello world ", 20) + `</p></body></html>`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	fs := newFakeStore()
	fs.venues["p1"] = model.Venue{PlaceID: "p1"}
	fs.claims = []db.JobClaim{{JobID: 3, PlaceID: "p1", Mode: "realtime"}}

	recoverer := recovererFunc(func(ctx context.Context, placeID string) (string, bool) {
		return srv.URL, true
	})

	w := New(fs, newTestPipeline(), recoverer, 2, nil)
	if _, err := w.RunBatch(context.Background(), 10); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, failed := fs.finishedFail[3]; failed {
		t.Fatalf("expected recovered crawl not to fail with no_website, got %q", fs.finishedFail[3])
	}
	if len(fs.pages) == 0 {
		t.Fatal("expected at least one scraped page to be persisted via the recovered URL")
	}
}

func TestRunJobFailsWithNoEnrichmentWhenNothingChanges(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("User-agent: *\nDisallow: /\n"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	fs := newFakeStore()
	fs.venues["p1"] = model.Venue{PlaceID: "p1", Website: &srv.URL}
	fs.claims = []db.JobClaim{{JobID: 4, PlaceID: "p1", Mode: "realtime"}}

	w := New(fs, newTestPipeline(), nil, 2, nil)
	if _, err := w.RunBatch(context.Background(), 10); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fs.finishedFail[4] != "no_enrichment" {
		t.Fatalf("expected no_enrichment failure when robots blocks everything, got %q (success=%v)", fs.finishedFail[4], fs.finishedOK)
	}
}

func TestMergeHeuristicIntoUnionsHoursWithSchemaOrgOnSamePage(t *testing.T) {
	facts := enrichment.PageFacts{}
	schemaFacts := extract.SchemaOrgFacts{
		Hours: model.Hours{
			"mon": {{Open: "09:00", Close: "17:00"}},
		},
	}
	mergeSchemaOrgInto(&facts, schemaFacts)

	heuristicFacts := extract.HeuristicFacts{
		Hours: model.Hours{
			"mon": {{Open: "09:00", Close: "17:00"}}, // duplicate, should not double up
			"sat": {{Open: "10:00", Close: "14:00"}},
		},
	}
	mergeHeuristicInto(&facts, heuristicFacts)

	if len(facts.Hours["mon"]) != 1 {
		t.Fatalf("expected duplicate monday range deduped, got %+v", facts.Hours["mon"])
	}
	if len(facts.Hours["sat"]) != 1 || facts.Hours["sat"][0].Open != "10:00" {
		t.Fatalf("expected saturday hours from heuristic extraction preserved, got %+v", facts.Hours["sat"])
	}
	if len(facts.Hours["mon"]) == 0 || facts.Hours["mon"][0].Open != "09:00" {
		t.Fatalf("expected monday hours from schema.org preserved, got %+v", facts.Hours["mon"])
	}
}

type recovererFunc func(ctx context.Context, placeID string) (string, bool)

func (f recovererFunc) Recover(ctx context.Context, placeID string) (string, bool) {
	return f(ctx, placeID)
}
