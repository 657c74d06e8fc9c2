// Package store wraps the database/sql pool behind domain-shaped methods,
// translating between the nullable db row types and the model package.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/sqlc-dev/pqtype"

	"venuecrawl/internal/db"
	"venuecrawl/internal/model"
)

// Store wraps access to the database via the hand-written query layer.
type Store struct {
	DB *sql.DB
	q  *db.Queries
}

// New creates a new Store that uses a shared *sql.DB with pooling.
func New(database *sql.DB) *Store {
	return &Store{DB: database, q: db.New(database)}
}

// GetVenue fetches a venue by place ID.
func (s *Store) GetVenue(ctx context.Context, placeID string) (model.Venue, error) {
	row, err := s.q.GetVenue(ctx, placeID)
	if err != nil {
		return model.Venue{}, err
	}
	return venueFromRow(row), nil
}

func venueFromRow(row db.Venue) model.Venue {
	v := model.Venue{
		PlaceID:      row.PlaceID,
		Name:         row.Name,
		CategoryName: row.CategoryName,
		Latitude:     row.Latitude,
		Longitude:    row.Longitude,
	}
	if row.PopularityConfidence.Valid {
		p := row.PopularityConfidence.Float64
		v.PopularityConfidence = &p
	}
	if row.Website.Valid {
		w := row.Website.String
		v.Website = &w
	}
	if row.LastEnrichedAt.Valid {
		t := row.LastEnrichedAt.Time
		v.LastEnrichedAt = &t
	}
	return v
}

// TouchLastEnriched stamps a venue's last_enriched_at to now.
func (s *Store) TouchLastEnriched(ctx context.Context, placeID string) error {
	return s.q.TouchLastEnriched(ctx, placeID)
}

// ListStaleOrMissing returns venues due for a background refresh, most
// popular and most stale first; used by the scheduler.
func (s *Store) ListStaleOrMissing(ctx context.Context, cutoff time.Time, limit int) ([]model.Venue, error) {
	rows, err := s.q.ListStaleOrMissing(ctx, sql.NullTime{Time: cutoff, Valid: true}, int32(limit))
	if err != nil {
		return nil, err
	}
	out := make([]model.Venue, 0, len(rows))
	for _, r := range rows {
		out = append(out, venueFromRow(r))
	}
	return out, nil
}

// GetEnrichment fetches the enrichment record for a place, if any.
// sql.ErrNoRows means no enrichment has been written yet.
func (s *Store) GetEnrichment(ctx context.Context, placeID string) (model.Enrichment, error) {
	row, err := s.q.GetEnrichment(ctx, placeID)
	if err != nil {
		return model.Enrichment{}, err
	}
	return enrichmentFromRow(row)
}

func enrichmentFromRow(row db.Enrichment) (model.Enrichment, error) {
	e := model.Enrichment{PlaceID: row.PlaceID}

	if row.Hours.Valid {
		if err := json.Unmarshal(row.Hours.RawMessage, &e.Hours); err != nil {
			return e, err
		}
	}
	if row.ContactDetails.Valid {
		if err := json.Unmarshal(row.ContactDetails.RawMessage, &e.Contact); err != nil {
			return e, err
		}
	}
	if row.Features.Valid {
		if err := json.Unmarshal(row.Features.RawMessage, &e.Features); err != nil {
			return e, err
		}
	}
	if row.Amenities.Valid {
		if err := json.Unmarshal(row.Amenities.RawMessage, &e.Amenities); err != nil {
			return e, err
		}
	}
	if row.Sources.Valid {
		if err := json.Unmarshal(row.Sources.RawMessage, &e.Sources); err != nil {
			return e, err
		}
	}

	e.Description = row.Description.String
	e.MenuURL = row.MenuURL.String
	e.PriceRange = row.PriceRange.String
	e.Fees = row.Fees.String

	e.HoursUpdated = nullTimePtr(row.HoursUpdated)
	e.ContactUpdated = nullTimePtr(row.ContactUpdated)
	e.DescriptionUpdated = nullTimePtr(row.DescriptionUpdated)
	e.FeaturesUpdated = nullTimePtr(row.FeaturesUpdated)
	e.MenuUpdated = nullTimePtr(row.MenuUpdated)
	e.PriceUpdated = nullTimePtr(row.PriceUpdated)
	e.FeesUpdated = nullTimePtr(row.FeesUpdated)
	e.AmenitiesUpdated = nullTimePtr(row.AmenitiesUpdated)

	return e, nil
}

func nullTimePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

// SaveEnrichment persists the full merged record, upserting on place_id.
func (s *Store) SaveEnrichment(ctx context.Context, e model.Enrichment) error {
	hours, err := json.Marshal(e.Hours)
	if err != nil {
		return err
	}
	contact, err := json.Marshal(e.Contact)
	if err != nil {
		return err
	}
	features, err := json.Marshal(e.Features)
	if err != nil {
		return err
	}
	amenities, err := json.Marshal(e.Amenities)
	if err != nil {
		return err
	}
	sources, err := json.Marshal(e.Sources)
	if err != nil {
		return err
	}

	return s.q.UpsertEnrichment(ctx, db.UpsertEnrichmentParams{
		PlaceID:            e.PlaceID,
		Hours:              rawMessage(hours),
		HoursUpdated:       timeToNull(e.HoursUpdated),
		ContactDetails:     rawMessage(contact),
		ContactUpdated:     timeToNull(e.ContactUpdated),
		Description:        sql.NullString{String: e.Description, Valid: e.Description != ""},
		DescriptionUpdated: timeToNull(e.DescriptionUpdated),
		Features:           rawMessage(features),
		FeaturesUpdated:    timeToNull(e.FeaturesUpdated),
		MenuURL:            sql.NullString{String: e.MenuURL, Valid: e.MenuURL != ""},
		MenuUpdated:        timeToNull(e.MenuUpdated),
		PriceRange:         sql.NullString{String: e.PriceRange, Valid: e.PriceRange != ""},
		PriceUpdated:       timeToNull(e.PriceUpdated),
		Fees:               sql.NullString{String: e.Fees, Valid: e.Fees != ""},
		FeesUpdated:        timeToNull(e.FeesUpdated),
		Amenities:          rawMessage(amenities),
		AmenitiesUpdated:   timeToNull(e.AmenitiesUpdated),
		Sources:            rawMessage(sources),
	})
}

func rawMessage(b []byte) pqtype.NullRawMessage {
	return pqtype.NullRawMessage{RawMessage: b, Valid: len(b) > 0 && string(b) != "null"}
}

func timeToNull(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

// InsertScrapedPage appends one fetch-attempt row to the audit log.
func (s *Store) InsertScrapedPage(ctx context.Context, p model.ScrapedPage) (int64, error) {
	var placeID sql.NullString
	if p.PlaceID != nil {
		placeID = sql.NullString{String: *p.PlaceID, Valid: true}
	}
	redirects, err := json.Marshal(p.RedirectChain)
	if err != nil {
		return 0, err
	}

	return s.q.InsertScrapedPage(ctx, db.InsertScrapedPageParams{
		PlaceID:       placeID,
		URL:           p.URL,
		FinalURL:      p.FinalURL,
		PageType:      string(p.PageType),
		FetchedAt:     sql.NullTime{Time: p.FetchedAt, Valid: !p.FetchedAt.IsZero()},
		ValidUntil:    timeToNull(p.ValidUntil),
		HTTPStatus:    int32(p.HTTPStatus),
		ContentType:   p.ContentType,
		ContentHash:   p.ContentHash,
		CleanedText:   p.CleanedText,
		RawHTML:       p.RawHTML,
		SourceMethod:  string(p.SourceMethod),
		RedirectChain: rawMessage(redirects),
		Reason:        string(p.Reason),
		SizeBytes:     int32(p.SizeBytes),
		DurationMs:    int32(p.DurationMs),
		FirstByteMs:   int32(p.FirstByteMs),
	})
}

// EnqueueJob creates (or reuses) a pending job for a place+mode pair.
func (s *Store) EnqueueJob(ctx context.Context, placeID string, mode model.JobMode, priority int) (int64, error) {
	return s.q.EnqueueJob(ctx, placeID, string(mode), int32(priority))
}

// ClaimBatch atomically claims up to limit pending jobs, respecting the
// per-host running cap.
func (s *Store) ClaimBatch(ctx context.Context, limit, perHostCap int) ([]db.JobClaim, error) {
	return s.q.ClaimBatch(ctx, int32(limit), int32(perHostCap))
}

// FinishSuccess marks a running job as succeeded.
func (s *Store) FinishSuccess(ctx context.Context, jobID int64) error {
	return s.q.FinishSuccess(ctx, jobID)
}

// FinishFail marks a running job as failed, truncating the error text.
func (s *Store) FinishFail(ctx context.Context, jobID int64, errMsg string) error {
	if len(errMsg) > model.MaxErrorLen {
		errMsg = errMsg[:model.MaxErrorLen]
	}
	return s.q.FinishFail(ctx, jobID, errMsg)
}

// GetJobStatus fetches a job's current state for the status endpoint.
func (s *Store) GetJobStatus(ctx context.Context, jobID int64) (model.CrawlJob, error) {
	row, err := s.q.GetJobStatus(ctx, jobID)
	if err != nil {
		return model.CrawlJob{}, err
	}
	j := model.CrawlJob{
		JobID:     row.JobID,
		PlaceID:   row.PlaceID,
		Mode:      model.JobMode(row.Mode),
		Priority:  int(row.Priority),
		State:     model.JobState(row.State),
		CreatedAt: row.CreatedAt,
		Error:     row.Error.String,
	}
	if row.StartedAt.Valid {
		t := row.StartedAt.Time
		j.StartedAt = &t
	}
	if row.FinishedAt.Valid {
		t := row.FinishedAt.Time
		j.FinishedAt = &t
	}
	return j, nil
}

// QueueDepth returns the number of jobs per state, for metrics.
func (s *Store) QueueDepth(ctx context.Context) (map[string]int64, error) {
	return s.q.QueueDepth(ctx)
}

// PruneStuck resets jobs stuck running past the threshold back to pending.
func (s *Store) PruneStuck(ctx context.Context, maxRunningMinutes int) (int64, error) {
	return s.q.PruneStuck(ctx, maxRunningMinutes)
}
