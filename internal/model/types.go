// Package model holds the domain types shared across the crawl pipeline,
// independent of how they are persisted.
package model

import "time"

// HourRange is an [openHHMM, closeHHMM] pair, both zero-padded 24h strings.
type HourRange struct {
	Open  string `json:"open"`
	Close string `json:"close"`
}

// Hours maps a weekday abbreviation (mon..sun) to its ordered opening ranges.
type Hours map[string][]HourRange

// Weekdays is the canonical day order, used whenever hours need deterministic iteration.
var Weekdays = []string{"mon", "tue", "wed", "thu", "fri", "sat", "sun"}

// ContactDetails is the contact sub-record of an Enrichment row.
type ContactDetails struct {
	Phone   string   `json:"phone,omitempty"`
	Email   string   `json:"email,omitempty"`
	Website string   `json:"website,omitempty"`
	Social  []string `json:"social,omitempty"`
}

// Venue is a place of interest, owned by upstream ingestion; the core only
// reads it and touches LastEnrichedAt.
type Venue struct {
	PlaceID              string
	Name                 string
	CategoryName         string
	Latitude             float64
	Longitude            float64
	PopularityConfidence *float64
	Website              *string
	LastEnrichedAt       *time.Time
}

// Enrichment is the merged, per-field-timestamped fact sheet for one venue.
type Enrichment struct {
	PlaceID string

	Hours          Hours
	HoursUpdated   *time.Time
	Contact        ContactDetails
	ContactUpdated *time.Time

	Description        string
	DescriptionUpdated *time.Time

	Features        []string
	FeaturesUpdated *time.Time

	MenuURL     string
	MenuUpdated *time.Time

	PriceRange   string
	PriceUpdated *time.Time

	Fees        string
	FeesUpdated *time.Time

	Amenities        []string
	AmenitiesUpdated *time.Time

	Sources []string
}

// JobMode distinguishes an on-demand crawl from a background refresh.
type JobMode string

const (
	ModeRealtime   JobMode = "realtime"
	ModeBackground JobMode = "background"
)

// JobState is the crawl job's lifecycle state.
type JobState string

const (
	JobPending JobState = "pending"
	JobRunning JobState = "running"
	JobSuccess JobState = "success"
	JobFail    JobState = "fail"
)

// MaxErrorLen truncates CrawlJob.Error to keep failure text bounded in storage.
const MaxErrorLen = 2000

// CrawlJob is one row of the durable job queue.
type CrawlJob struct {
	JobID      int64
	PlaceID    string
	Mode       JobMode
	Priority   int
	State      JobState
	CreatedAt  time.Time
	StartedAt  *time.Time
	FinishedAt *time.Time
	Error      string
}

// PageType is the role a fetched page plays in a site crawl.
type PageType string

const (
	PageHomepage PageType = "homepage"
	PageHours    PageType = "hours"
	PageMenu     PageType = "menu"
	PageContact  PageType = "contact"
	PageAbout    PageType = "about"
	PageFees     PageType = "fees"
	PageOther    PageType = "other"
)

// SourceMethod records how a page's URL was obtained.
type SourceMethod string

const (
	SourceDirectURL SourceMethod = "direct_url"
	SourceSearchAPI SourceMethod = "search_api"
	SourceHeuristic SourceMethod = "heuristic"
)

// ReasonCode is the closed set of fetch outcomes.
type ReasonCode string

const (
	ReasonOK                 ReasonCode = "ok"
	ReasonRobotsDisallowed   ReasonCode = "robots_disallowed"
	ReasonInvalidMIME        ReasonCode = "invalid_mime"
	ReasonNon200Status       ReasonCode = "non_200_status"
	ReasonSizeLimitExceeded  ReasonCode = "size_limit_exceeded"
	ReasonNetworkTimeout     ReasonCode = "network_timeout"
	ReasonDNSFailure         ReasonCode = "dns_failure"
	ReasonTLSError           ReasonCode = "tls_error"
	ReasonNetworkError       ReasonCode = "network_error"
	ReasonTimeBudgetExceeded ReasonCode = "time_budget_exceeded"
	ReasonThinContent        ReasonCode = "thin_content"
)

// ScrapedPage is one row of the append-only fetch-attempt audit log.
type ScrapedPage struct {
	PageID        int64
	PlaceID       *string
	URL           string
	FinalURL      string
	PageType      PageType
	FetchedAt     time.Time
	ValidUntil    *time.Time
	HTTPStatus    int
	ContentType   string
	ContentHash   string
	CleanedText   string
	RawHTML       []byte
	SourceMethod  SourceMethod
	RedirectChain []string
	Reason        ReasonCode
	SizeBytes     int
	DurationMs    int
	FirstByteMs   int
}

// RecoveryCandidate is a homepage URL suggested by an external collaborator
// for a venue that has none on record.
type RecoveryCandidate struct {
	PlaceID string
	URL     string
	Method  SourceMethod
}
