// Package pipeline orchestrates a single site crawl: fetch the homepage,
// discover same-site target pages, fetch those targets in parallel, and
// quality-gate every page before it is handed off for persistence.
package pipeline

import (
	"context"
	"regexp"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"

	"venuecrawl/internal/downloader"
	"venuecrawl/internal/linkfinder"
	"venuecrawl/internal/metrics"
	"venuecrawl/internal/model"
)

// placeholderPatterns catches under-construction/coming-soon stand-in pages
// that otherwise clear the visible-text length check.
var placeholderPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)coming\s+soon`),
	regexp.MustCompile(`(?i)under\s+construction`),
	regexp.MustCompile(`(?i)maintenance\s+mode`),
	regexp.MustCompile(`(?i)site\s+is\s+being\s+built`),
}

func isPlaceholder(text string) bool {
	for _, p := range placeholderPatterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}

// abortReasons short-circuit target discovery entirely: there is no page to
// parse links from, or no time left to fetch them.
var abortReasons = map[model.ReasonCode]bool{
	model.ReasonRobotsDisallowed:   true,
	model.ReasonNetworkTimeout:     true,
	model.ReasonDNSFailure:         true,
	model.ReasonTLSError:           true,
	model.ReasonNetworkError:       true,
	model.ReasonTimeBudgetExceeded: true,
}

// TTLConfig maps page type to its freshness window.
type TTLConfig struct {
	HoursDays            int
	MenuContactPriceDays int
	DescFeaturesDays     int
}

func (c TTLConfig) forType(pt model.PageType) time.Duration {
	switch pt {
	case model.PageHours:
		return time.Duration(c.HoursDays) * 24 * time.Hour
	case model.PageMenu, model.PageContact, model.PageFees:
		return time.Duration(c.MenuContactPriceDays) * 24 * time.Hour
	default:
		return time.Duration(c.DescFeaturesDays) * 24 * time.Hour
	}
}

// Pipeline crawls one site within a strict wall-clock budget.
type Pipeline struct {
	Downloader      *downloader.Downloader
	MinVisibleChars int
	MaxTargets      int
	DefaultBudgetMs int
	TTL             TTLConfig
}

// New builds a Pipeline from config-sourced settings.
func New(dl *downloader.Downloader, minVisibleChars, maxTargets, defaultBudgetMs int, ttl TTLConfig) *Pipeline {
	return &Pipeline{
		Downloader:      dl,
		MinVisibleChars: minVisibleChars,
		MaxTargets:      maxTargets,
		DefaultBudgetMs: defaultBudgetMs,
		TTL:             ttl,
	}
}

// Result summarizes one site crawl, ready for persistence and merging.
type Result struct {
	BaseURL       string
	StartedAt     time.Time
	EndedAt       time.Time
	DurationMs    int
	Pages         []model.ScrapedPage
	FetchedCount  int
	AbortedCount  int
	ErrorsByClass map[model.ReasonCode]int
}

// CrawlSite fetches the homepage, discovers up to MaxTargets same-site
// target pages, and fetches those targets in parallel, all within
// budgetMs milliseconds of wall clock (falling back to DefaultBudgetMs
// when budgetMs <= 0). placeID may be nil when the venue isn't yet
// persisted at crawl time.
func (p *Pipeline) CrawlSite(ctx context.Context, baseURL string, placeID *string, budgetMs int) Result {
	started := time.Now()
	if budgetMs <= 0 {
		budgetMs = p.DefaultBudgetMs
	}
	deadline := started.Add(time.Duration(budgetMs) * time.Millisecond)
	ctx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	var pages []model.ScrapedPage

	home := p.Downloader.Fetch(ctx, baseURL)
	homeRecord := p.mkRecord(home, model.PageHomepage, model.SourceDirectURL, placeID)
	pages = append(pages, homeRecord)

	if abortReasons[homeRecord.Reason] {
		return p.summarize(baseURL, started, pages)
	}

	var targets []linkfinder.Candidate
	if (homeRecord.Reason == model.ReasonOK || homeRecord.Reason == model.ReasonThinContent) && len(home.RawHTML) > 0 {
		if found, err := linkfinder.DiscoverTargets(decodeHTML(home.RawHTML), home.FinalURL, p.MaxTargets); err == nil {
			targets = found
		}
	}

	if len(targets) == 0 || time.Now().After(deadline) {
		return p.summarize(baseURL, started, pages)
	}

	fetched := p.fetchTargetsParallel(ctx, targets, placeID)
	pages = append(pages, fetched...)

	return p.summarize(baseURL, started, pages)
}

// fetchTargetsParallel fetches every candidate concurrently via a bounded
// goroutine fan-out (not errgroup, to keep every result even on partial
// failure) and returns the resulting records in candidate order.
func (p *Pipeline) fetchTargetsParallel(ctx context.Context, targets []linkfinder.Candidate, placeID *string) []model.ScrapedPage {
	results := make([]model.ScrapedPage, len(targets))
	var wg sync.WaitGroup
	for i, cand := range targets {
		i, cand := i, cand
		wg.Add(1)
		go func() {
			defer wg.Done()
			pg := p.Downloader.Fetch(ctx, cand.URL)
			results[i] = p.mkRecord(pg, cand.PageType, model.SourceHeuristic, placeID)
		}()
	}
	wg.Wait()
	return results
}

// mkRecord applies the quality gate (overriding to thin_content when the
// fetch succeeded but the visible text is too short or looks like a
// coming-soon/under-construction placeholder) and assigns the page-type TTL.
func (p *Pipeline) mkRecord(pg downloader.Page, pageType model.PageType, method model.SourceMethod, placeID *string) model.ScrapedPage {
	reason := pg.Reason
	text := strings.TrimSpace(pg.CleanedText)
	if reason == model.ReasonOK && len(text) < p.MinVisibleChars {
		reason = model.ReasonThinContent
	}
	if reason == model.ReasonOK && isPlaceholder(text) {
		reason = model.ReasonThinContent
	}
	metrics.RecordFetchReason(string(reason))

	var validUntil *time.Time
	cleaned := ""
	if reason == model.ReasonOK {
		cleaned = pg.CleanedText
		vu := pg.FetchedAt.Add(p.TTL.forType(pageType))
		validUntil = &vu
	}

	return model.ScrapedPage{
		PlaceID:       placeID,
		URL:           pg.URL,
		FinalURL:      pg.FinalURL,
		PageType:      pageType,
		FetchedAt:     pg.FetchedAt,
		ValidUntil:    validUntil,
		HTTPStatus:    pg.HTTPStatus,
		ContentType:   pg.ContentType,
		ContentHash:   pg.ContentHash,
		CleanedText:   cleaned,
		RawHTML:       pg.RawHTML,
		SourceMethod:  method,
		RedirectChain: pg.RedirectChain,
		Reason:        reason,
		SizeBytes:     pg.SizeBytes,
		DurationMs:    pg.DurationMs,
		FirstByteMs:   pg.FirstByteMs,
	}
}

func (p *Pipeline) summarize(baseURL string, started time.Time, pages []model.ScrapedPage) Result {
	ended := time.Now()
	errs := map[model.ReasonCode]int{}
	fetched := 0
	aborted := 0
	for _, pg := range pages {
		if pg.Reason != model.ReasonOK {
			errs[pg.Reason]++
		}
		if pg.HTTPStatus == 200 {
			fetched++
		}
		if pg.Reason == model.ReasonTimeBudgetExceeded || pg.Reason == model.ReasonNetworkTimeout {
			aborted++
		}
	}
	return Result{
		BaseURL:       baseURL,
		StartedAt:     started,
		EndedAt:       ended,
		DurationMs:    int(ended.Sub(started).Milliseconds()),
		Pages:         pages,
		FetchedCount:  fetched,
		AbortedCount:  aborted,
		ErrorsByClass: errs,
	}
}

// decodeHTML assumes UTF-8, falling back to Latin-1 when the bytes aren't
// valid UTF-8 (a handful of older venue sites still serve unlabeled Latin-1).
func decodeHTML(raw []byte) string {
	if utf8.Valid(raw) {
		return string(raw)
	}
	decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(raw)
	if err != nil {
		return string(raw)
	}
	return string(decoded)
}
