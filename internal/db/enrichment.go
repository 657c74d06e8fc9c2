package db

import (
	"context"
	"database/sql"

	"github.com/sqlc-dev/pqtype"
)

// GetEnrichment fetches the enrichment row for a place, if one exists.
func (q *Queries) GetEnrichment(ctx context.Context, placeID string) (Enrichment, error) {
	var e Enrichment
	err := q.db.QueryRowContext(ctx, `
		SELECT place_id, hours, hours_updated, contact_details, contact_updated,
		       description, description_updated, features, features_updated,
		       menu_url, menu_updated, price_range, price_updated,
		       fees, fees_updated, amenities, amenities_updated, sources
		FROM enrichment WHERE place_id = $1`, placeID,
	).Scan(&e.PlaceID, &e.Hours, &e.HoursUpdated, &e.ContactDetails, &e.ContactUpdated,
		&e.Description, &e.DescriptionUpdated, &e.Features, &e.FeaturesUpdated,
		&e.MenuURL, &e.MenuUpdated, &e.PriceRange, &e.PriceUpdated,
		&e.Fees, &e.FeesUpdated, &e.Amenities, &e.AmenitiesUpdated, &e.Sources)
	return e, err
}

// UpsertEnrichmentParams carries the full set of mergeable columns; callers
// pass only the fields that changed with their own timestamp, leaving the
// others as their previous (already-fetched) value so the upsert never
// clobbers untouched fields.
type UpsertEnrichmentParams struct {
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

// UpsertEnrichment writes the full merged record, creating the row on first write.
func (q *Queries) UpsertEnrichment(ctx context.Context, p UpsertEnrichmentParams) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO enrichment (
			place_id, hours, hours_updated, contact_details, contact_updated,
			description, description_updated, features, features_updated,
			menu_url, menu_updated, price_range, price_updated,
			fees, fees_updated, amenities, amenities_updated, sources
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)
		ON CONFLICT (place_id) DO UPDATE SET
			hours = EXCLUDED.hours,
			hours_updated = EXCLUDED.hours_updated,
			contact_details = EXCLUDED.contact_details,
			contact_updated = EXCLUDED.contact_updated,
			description = EXCLUDED.description,
			description_updated = EXCLUDED.description_updated,
			features = EXCLUDED.features,
			features_updated = EXCLUDED.features_updated,
			menu_url = EXCLUDED.menu_url,
			menu_updated = EXCLUDED.menu_updated,
			price_range = EXCLUDED.price_range,
			price_updated = EXCLUDED.price_updated,
			fees = EXCLUDED.fees,
			fees_updated = EXCLUDED.fees_updated,
			amenities = EXCLUDED.amenities,
			amenities_updated = EXCLUDED.amenities_updated,
			sources = EXCLUDED.sources`,
		p.PlaceID, p.Hours, p.HoursUpdated, p.ContactDetails, p.ContactUpdated,
		p.Description, p.DescriptionUpdated, p.Features, p.FeaturesUpdated,
		p.MenuURL, p.MenuUpdated, p.PriceRange, p.PriceUpdated,
		p.Fees, p.FeesUpdated, p.Amenities, p.AmenitiesUpdated, p.Sources)
	return err
}

// InsertScrapedPageParams is the write shape for the append-only audit log.
type InsertScrapedPageParams struct {
	PlaceID       sql.NullString
	URL           string
	FinalURL      string
	PageType      string
	FetchedAt     sql.NullTime
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

// InsertScrapedPage appends one fetch-attempt row and returns its page ID.
func (q *Queries) InsertScrapedPage(ctx context.Context, p InsertScrapedPageParams) (int64, error) {
	var id int64
	err := q.db.QueryRowContext(ctx, `
		INSERT INTO scraped_pages (
			place_id, url, final_url, page_type, fetched_at, valid_until,
			http_status, content_type, content_hash, cleaned_text, raw_html,
			source_method, redirect_chain, reason, size_bytes, duration_ms, first_byte_ms
		) VALUES ($1,$2,$3,$4,COALESCE($5, NOW()),$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
		RETURNING page_id`,
		p.PlaceID, p.URL, p.FinalURL, p.PageType, p.FetchedAt, p.ValidUntil,
		p.HTTPStatus, p.ContentType, p.ContentHash, p.CleanedText, p.RawHTML,
		p.SourceMethod, p.RedirectChain, p.Reason, p.SizeBytes, p.DurationMs, p.FirstByteMs,
	).Scan(&id)
	return id, err
}

// ListScrapedPagesByPlace returns the fetch-attempt history for a venue, most recent first.
func (q *Queries) ListScrapedPagesByPlace(ctx context.Context, placeID string, limit int32) ([]ScrapedPage, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT page_id, place_id, url, final_url, page_type, fetched_at, valid_until,
		       http_status, content_type, content_hash, cleaned_text, raw_html,
		       source_method, redirect_chain, reason, size_bytes, duration_ms, first_byte_ms
		FROM scraped_pages WHERE place_id = $1
		ORDER BY fetched_at DESC LIMIT $2`, placeID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ScrapedPage
	for rows.Next() {
		var p ScrapedPage
		if err := rows.Scan(&p.PageID, &p.PlaceID, &p.URL, &p.FinalURL, &p.PageType, &p.FetchedAt, &p.ValidUntil,
			&p.HTTPStatus, &p.ContentType, &p.ContentHash, &p.CleanedText, &p.RawHTML,
			&p.SourceMethod, &p.RedirectChain, &p.Reason, &p.SizeBytes, &p.DurationMs, &p.FirstByteMs); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
