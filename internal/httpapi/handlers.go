package httpapi

import (
	"database/sql"
	"errors"

	"github.com/gofiber/fiber/v2"

	"venuecrawl/internal/model"
	"venuecrawl/internal/store"
)

// ScrapeRequest enqueues one or more crawl jobs.
type ScrapeRequest struct {
	PlaceIDs []string `json:"place_ids"`
	Mode     string   `json:"mode"`
	Priority int      `json:"priority"`
}

// ScrapeResponse returns the enqueued job IDs.
type ScrapeResponse struct {
	JobIDs []int64 `json:"job_ids,omitempty"`
	Error  string  `json:"error,omitempty"`
}

func scrapeHandler(c *fiber.Ctx) error {
	st := c.Locals("store").(*store.Store)

	var req ScrapeRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ScrapeResponse{Error: "malformed JSON body"})
	}
	if len(req.PlaceIDs) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(ScrapeResponse{Error: "place_ids must not be empty"})
	}

	mode := model.JobMode(req.Mode)
	if mode != model.ModeRealtime && mode != model.ModeBackground {
		mode = model.ModeRealtime
	}

	jobIDs := make([]int64, 0, len(req.PlaceIDs))
	for _, placeID := range req.PlaceIDs {
		jobID, err := st.EnqueueJob(c.Context(), placeID, mode, req.Priority)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(ScrapeResponse{Error: err.Error()})
		}
		jobIDs = append(jobIDs, jobID)
	}

	return c.Status(fiber.StatusOK).JSON(ScrapeResponse{JobIDs: jobIDs})
}

// ScrapeStatusResponse reports a job's current lifecycle state, including
// the latest enrichment snapshot once the job has succeeded.
type ScrapeStatusResponse struct {
	JobID      int64             `json:"job_id"`
	State      model.JobState    `json:"state"`
	StartedAt  *string           `json:"started_at,omitempty"`
	FinishedAt *string           `json:"finished_at,omitempty"`
	Error      string            `json:"error,omitempty"`
	Enrichment *model.Enrichment `json:"enrichment,omitempty"`
}

func scrapeStatusHandler(c *fiber.Ctx) error {
	st := c.Locals("store").(*store.Store)

	jobID, err := c.ParamsInt("job_id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid job_id"})
	}

	job, err := st.GetJobStatus(c.Context(), int64(jobID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "job not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	resp := ScrapeStatusResponse{
		JobID: job.JobID,
		State: job.State,
		Error: job.Error,
	}
	if job.StartedAt != nil {
		s := job.StartedAt.UTC().Format("2006-01-02T15:04:05Z")
		resp.StartedAt = &s
	}
	if job.FinishedAt != nil {
		s := job.FinishedAt.UTC().Format("2006-01-02T15:04:05Z")
		resp.FinishedAt = &s
	}

	if job.State == model.JobSuccess {
		if e, err := st.GetEnrichment(c.Context(), job.PlaceID); err == nil {
			resp.Enrichment = &e
		}
	}

	return c.Status(fiber.StatusOK).JSON(resp)
}
