// Package db is a hand-written query layer shaped like a sqlc-generated
// package (Models + Queries + Params structs), wrapping a *sql.DB for the
// venues/enrichment/scraped_pages/crawl_jobs tables.
package db

import (
	"database/sql"
	"time"

	"github.com/sqlc-dev/pqtype"
)

type Venue struct {
	PlaceID              string
	Name                 string
	CategoryName         string
	Latitude              float64
	Longitude             float64
	PopularityConfidence sql.NullFloat64
	Website              sql.NullString
	LastEnrichedAt       sql.NullTime
}

type Enrichment struct {
	PlaceID            string
	Hours              pqtype.NullRawMessage
	HoursUpdated       sql.NullTime
	ContactDetails     pqtype.NullRawMessage
	ContactUpdated     sql.NullTime
	Description        sql.NullString
	DescriptionUpdated sql.NullTime
	Features           pqtype.NullRawMessage
	FeaturesUpdated    sql.NullTime
	MenuURL            sql.NullString
	MenuUpdated        sql.NullTime
	PriceRange         sql.NullString
	PriceUpdated       sql.NullTime
	Fees               sql.NullString
	FeesUpdated        sql.NullTime
	Amenities          pqtype.NullRawMessage
	AmenitiesUpdated   sql.NullTime
	Sources            pqtype.NullRawMessage
}

type ScrapedPage struct {
	PageID        int64
	PlaceID       sql.NullString
	URL           string
	FinalURL      string
	PageType      string
	FetchedAt     time.Time
	ValidUntil    sql.NullTime
	HTTPStatus    int32
	ContentType   string
	ContentHash   string
	CleanedText   string
	RawHTML       []byte
	SourceMethod  string
	RedirectChain pqtype.NullRawMessage
	Reason        string
	SizeBytes     int32
	DurationMs    int32
	FirstByteMs   int32
}

type CrawlJob struct {
	JobID      int64
	PlaceID    string
	Mode       string
	Priority   int32
	State      string
	CreatedAt  time.Time
	StartedAt  sql.NullTime
	FinishedAt sql.NullTime
	Error      sql.NullString
}
