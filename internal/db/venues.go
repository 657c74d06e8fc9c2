package db

import (
	"context"
	"database/sql"
)

type Queries struct {
	db *sql.DB
}

func New(conn *sql.DB) *Queries {
	return &Queries{db: conn}
}

// GetVenue fetches a venue row by its place ID.
func (q *Queries) GetVenue(ctx context.Context, placeID string) (Venue, error) {
	var v Venue
	err := q.db.QueryRowContext(ctx, `
		SELECT place_id, name, category_name, latitude, longitude,
		       popularity_confidence, website, last_enriched_at
		FROM venues WHERE place_id = $1`, placeID,
	).Scan(&v.PlaceID, &v.Name, &v.CategoryName, &v.Latitude, &v.Longitude,
		&v.PopularityConfidence, &v.Website, &v.LastEnrichedAt)
	return v, err
}

// TouchLastEnriched stamps last_enriched_at to now() after a successful crawl.
func (q *Queries) TouchLastEnriched(ctx context.Context, placeID string) error {
	_, err := q.db.ExecContext(ctx, `UPDATE venues SET last_enriched_at = NOW() WHERE place_id = $1`, placeID)
	return err
}

// ListStaleOrMissing returns venues with no enrichment row, or whose
// last_enriched_at is older than the given cutoff, ordered popularity-first.
// Used by the background scheduler's selection query.
func (q *Queries) ListStaleOrMissing(ctx context.Context, cutoff sql.NullTime, limit int32) ([]Venue, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT v.place_id, v.name, v.category_name, v.latitude, v.longitude,
		       v.popularity_confidence, v.website, v.last_enriched_at
		FROM venues v
		LEFT JOIN enrichment e ON e.place_id = v.place_id
		WHERE e.place_id IS NULL OR v.last_enriched_at IS NULL OR v.last_enriched_at < $1
		ORDER BY v.popularity_confidence DESC NULLS LAST, v.last_enriched_at ASC NULLS FIRST
		LIMIT $2`, cutoff, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Venue
	for rows.Next() {
		var v Venue
		if err := rows.Scan(&v.PlaceID, &v.Name, &v.CategoryName, &v.Latitude, &v.Longitude,
			&v.PopularityConfidence, &v.Website, &v.LastEnrichedAt); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
