// Package worker runs the claim-crawl-extract-merge-finish loop: it claims
// a batch of pending crawl jobs, runs the per-site pipeline for each, lifts
// facts out of every fetched page, merges them into the venue's enrichment
// record, and finishes the job with a terminal state.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"venuecrawl/internal/db"
	"venuecrawl/internal/enrichment"
	"venuecrawl/internal/extract"
	"venuecrawl/internal/metrics"
	"venuecrawl/internal/model"
	"venuecrawl/internal/pipeline"
	"venuecrawl/internal/store"
)

// HomepageRecoverer guesses a homepage URL for a venue that has none on
// record. It is an external collaborator (see model.RecoveryCandidate);
// the worker only consults it, never implements it.
type HomepageRecoverer interface {
	Recover(ctx context.Context, placeID string) (url string, ok bool)
}

// Store is the subset of *store.Store the worker depends on.
type Store interface {
	ClaimBatch(ctx context.Context, limit, perHostCap int) ([]db.JobClaim, error)
	GetVenue(ctx context.Context, placeID string) (model.Venue, error)
	GetEnrichment(ctx context.Context, placeID string) (model.Enrichment, error)
	SaveEnrichment(ctx context.Context, e model.Enrichment) error
	InsertScrapedPage(ctx context.Context, p model.ScrapedPage) (int64, error)
	TouchLastEnriched(ctx context.Context, placeID string) error
	FinishSuccess(ctx context.Context, jobID int64) error
	FinishFail(ctx context.Context, jobID int64, errMsg string) error
}

var _ Store = (*store.Store)(nil)

// Worker claims and executes crawl jobs one batch at a time.
type Worker struct {
	store      Store
	pipeline   *pipeline.Pipeline
	recoverer  HomepageRecoverer
	perHostCap int
	logger     *slog.Logger
}

// New builds a Worker. recoverer may be nil, in which case jobs for
// websiteless venues fail immediately with "no_website".
func New(st Store, pl *pipeline.Pipeline, recoverer HomepageRecoverer, perHostCap int, logger *slog.Logger) *Worker {
	if perHostCap <= 0 {
		perHostCap = 2
	}
	return &Worker{store: st, pipeline: pl, recoverer: recoverer, perHostCap: perHostCap, logger: logger}
}

// RunBatch claims up to limit pending jobs and runs each to completion
// sequentially, returning the number of jobs processed.
func (w *Worker) RunBatch(ctx context.Context, limit int) (int, error) {
	claims, err := w.store.ClaimBatch(ctx, limit, w.perHostCap)
	if err != nil {
		return 0, err
	}
	for _, claim := range claims {
		w.runJob(ctx, claim)
	}
	return len(claims), nil
}

// Run polls RunBatch on interval until ctx is canceled.
func (w *Worker) Run(ctx context.Context, interval time.Duration, batchSize int) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if _, err := w.RunBatch(ctx, batchSize); err != nil {
			w.logWarn("batch claim failed", "error", err)
		}
	}
}

// runJob executes one claimed job end to end. It always finishes the job
// with a terminal state, even when the pipeline or merge step panics with
// an uncaught error, per the "always transition to terminal" invariant.
func (w *Worker) runJob(ctx context.Context, claim db.JobClaim) {
	defer func() {
		if r := recover(); r != nil {
			w.finishFail(ctx, claim, "panic: "+formatRecover(r))
		}
	}()

	venue, err := w.store.GetVenue(ctx, claim.PlaceID)
	if err != nil {
		w.finishFail(ctx, claim, "venue lookup failed: "+err.Error())
		return
	}

	website := venue.Website
	if website == nil || *website == "" {
		recovered, ok := w.tryRecover(ctx, claim.PlaceID)
		if !ok {
			w.finishFail(ctx, claim, "no_website")
			return
		}
		website = &recovered
	}

	placeID := claim.PlaceID
	result := w.pipeline.CrawlSite(ctx, *website, &placeID, 0)

	for _, page := range result.Pages {
		if !w.pipeline.Downloader.StoreRawHTML {
			page.RawHTML = nil
		}
		if _, err := w.store.InsertScrapedPage(ctx, page); err != nil {
			w.logWarn("scraped page insert failed", "place_id", claim.PlaceID, "url", page.URL, "error", err)
		}
	}

	existing, err := w.store.GetEnrichment(ctx, claim.PlaceID)
	if err != nil {
		existing = model.Enrichment{PlaceID: claim.PlaceID}
	}

	pages := extractAllPages(result.Pages)
	merged := enrichment.Merge(existing, pages, time.Now())
	merged.PlaceID = claim.PlaceID

	if err := w.store.SaveEnrichment(ctx, merged); err != nil {
		w.finishFail(ctx, claim, "save enrichment failed: "+err.Error())
		return
	}
	if err := w.store.TouchLastEnriched(ctx, claim.PlaceID); err != nil {
		w.logWarn("touch last_enriched_at failed", "place_id", claim.PlaceID, "error", err)
	}

	if updatedFieldCount(existing, merged) == 0 {
		w.finishFail(ctx, claim, "no_enrichment")
		return
	}
	if err := w.store.FinishSuccess(ctx, claim.JobID); err != nil {
		w.logWarn("finish success failed", "job_id", claim.JobID, "error", err)
	}
	metrics.RecordJobOutcome(claim.Mode, "success")
}

func (w *Worker) tryRecover(ctx context.Context, placeID string) (string, bool) {
	if w.recoverer == nil {
		return "", false
	}
	return w.recoverer.Recover(ctx, placeID)
}

func (w *Worker) finishFail(ctx context.Context, claim db.JobClaim, reason string) {
	if err := w.store.FinishFail(ctx, claim.JobID, reason); err != nil {
		w.logWarn("finish fail failed", "job_id", claim.JobID, "error", err)
	}
	metrics.RecordJobOutcome(claim.Mode, "fail")
}

func (w *Worker) logWarn(msg string, args ...any) {
	if w.logger != nil {
		w.logger.Warn(msg, args...)
	}
}

// extractAllPages runs both extractors on every successfully fetched page
// and converts their output into enrichment.PageFacts.
func extractAllPages(pages []model.ScrapedPage) []enrichment.PageFacts {
	var out []enrichment.PageFacts
	for _, page := range pages {
		if page.Reason != model.ReasonOK {
			continue
		}
		facts := enrichment.PageFacts{PageType: page.PageType, URL: page.URL}

		if schemaFacts, err := extract.ParseSchemaOrg(rawHTMLOrEmpty(page)); err == nil {
			mergeSchemaOrgInto(&facts, schemaFacts)
		}

		heuristicFacts := extract.ExtractHeuristics(page.CleanedText, page.PageType)
		mergeHeuristicInto(&facts, heuristicFacts)

		out = append(out, facts)
	}
	return out
}

func rawHTMLOrEmpty(page model.ScrapedPage) string {
	if len(page.RawHTML) == 0 {
		return ""
	}
	return string(page.RawHTML)
}

// mergeSchemaOrgInto lifts schema.org facts into facts, preferring them
// over anything heuristic extraction fills in afterward since JSON-LD is
// structured and authoritative when present. Hours are the exception:
// mergeHeuristicInto unions its hours into whatever schema.org already
// set rather than deferring to it, since the two extractors can each
// catch ranges the other misses on the same page.
//
// amenityFeature has no distinct "features" vs "amenities" extractor in the
// facts it's lifted from, so the same tag list seeds both; the
// category-specific required-field check in internal/freshness is what
// actually differentiates their use per venue type.
func mergeSchemaOrgInto(facts *enrichment.PageFacts, s extract.SchemaOrgFacts) {
	if len(s.Hours) > 0 {
		facts.Hours = s.Hours
	}
	if s.HasContact {
		facts.Contact = s.Contact
	}
	if s.Description != "" {
		facts.Description = s.Description
	}
	if s.MenuURL != "" {
		facts.MenuURL = s.MenuURL
	}
	if s.PriceRange != "" {
		facts.PriceRange = s.PriceRange
	}
	if s.Fees != "" {
		facts.Fees = s.Fees
	}
	if len(s.Amenities) > 0 {
		facts.Amenities = s.Amenities
		facts.Features = s.Amenities
	}
}

func mergeHeuristicInto(facts *enrichment.PageFacts, h extract.HeuristicFacts) {
	if len(h.Hours) > 0 {
		facts.Hours = unionHours(facts.Hours, h.Hours)
	}
	if facts.Contact.Phone == "" {
		facts.Contact.Phone = h.Phone
	}
	if facts.Contact.Email == "" {
		facts.Contact.Email = h.Email
	}
	if facts.Description == "" {
		facts.Description = h.Description
	}
	if facts.Fees == "" {
		facts.Fees = h.Fees
	}
	if facts.PriceRange == "" {
		facts.PriceRange = h.PriceRange
	}
	if facts.MenuURL == "" {
		facts.MenuURL = h.MenuURL
	}
}

// unionHours merges two per-page Hours sets so schema.org and heuristic
// extraction on the same page both contribute rather than one discarding
// the other, deduping identical [day, open, close] ranges.
func unionHours(a, b model.Hours) model.Hours {
	out := model.Hours{}
	for day, ranges := range a {
		out[day] = append(out[day], ranges...)
	}
	for day, ranges := range b {
		for _, r := range ranges {
			out[day] = appendRangeIfNew(out[day], r)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func appendRangeIfNew(ranges []model.HourRange, r model.HourRange) []model.HourRange {
	for _, existing := range ranges {
		if existing.Open == r.Open && existing.Close == r.Close {
			return ranges
		}
	}
	return append(ranges, r)
}

// updatedFieldCount counts how many enrichment fields actually changed,
// used to decide success vs. "no_enrichment" failure per the worker
// loop's contract.
func updatedFieldCount(before, after model.Enrichment) int {
	count := 0
	if changed(before.HoursUpdated, after.HoursUpdated) {
		count++
	}
	if changed(before.ContactUpdated, after.ContactUpdated) {
		count++
	}
	if changed(before.DescriptionUpdated, after.DescriptionUpdated) {
		count++
	}
	if changed(before.FeaturesUpdated, after.FeaturesUpdated) {
		count++
	}
	if changed(before.MenuUpdated, after.MenuUpdated) {
		count++
	}
	if changed(before.PriceUpdated, after.PriceUpdated) {
		count++
	}
	if changed(before.FeesUpdated, after.FeesUpdated) {
		count++
	}
	if changed(before.AmenitiesUpdated, after.AmenitiesUpdated) {
		count++
	}
	return count
}

func changed(before, after *time.Time) bool {
	if after == nil {
		return false
	}
	if before == nil {
		return true
	}
	return !before.Equal(*after)
}

func formatRecover(r any) string {
	if err, ok := r.(error); ok {
		return err.Error()
	}
	return fmt.Sprintf("%v", r)
}
