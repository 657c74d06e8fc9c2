package db

import (
	"context"
	"database/sql"
)

// EnqueueJob inserts a pending job, or returns the existing pending job's ID
// for the same (place_id, mode) pair (dedupe invariant).
func (q *Queries) EnqueueJob(ctx context.Context, placeID, mode string, priority int32) (int64, error) {
	var id int64
	err := q.db.QueryRowContext(ctx, `
		SELECT job_id FROM crawl_jobs
		WHERE place_id = $1 AND mode = $2 AND state = 'pending'
		ORDER BY priority DESC, job_id ASC LIMIT 1`, placeID, mode).Scan(&id)
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		return 0, err
	}

	err = q.db.QueryRowContext(ctx, `
		INSERT INTO crawl_jobs (place_id, mode, priority, state, created_at)
		VALUES ($1, $2, $3, 'pending', NOW())
		RETURNING job_id`, placeID, mode, priority).Scan(&id)
	return id, err
}

// JobClaim is a claimed job plus the venue website needed to start the pipeline.
type JobClaim struct {
	JobID    int64
	PlaceID  string
	Mode     string
	Priority int32
	Website  sql.NullString
}

// ClaimBatch atomically claims up to limit pending jobs and marks them
// running, skipping hosts already at their running-job cap.
//
// The eligible set is computed once, then locked with FOR UPDATE SKIP LOCKED
// in the `locked` CTE, and the UPDATE joins against `locked` (not merely
// `eligible`) so the skip-locked row lock is actually the thing that gets
// updated; two concurrent claimers can never mark the same job running.
func (q *Queries) ClaimBatch(ctx context.Context, limit int32, perHostCap int32) ([]JobClaim, error) {
	if perHostCap < 1 {
		perHostCap = 1
	}

	rows, err := q.db.QueryContext(ctx, `
		WITH pending AS (
		  SELECT cj.job_id, cj.place_id, cj.mode, cj.priority, v.website,
		         lower(split_part(split_part(regexp_replace(COALESCE(v.website, ''), '^https?://', ''), '/', 1), ':', 1)) AS host
		  FROM crawl_jobs cj
		  LEFT JOIN venues v ON v.place_id = cj.place_id
		  WHERE cj.state = 'pending'
		),
		running_counts AS (
		  SELECT lower(split_part(split_part(regexp_replace(COALESCE(v.website, ''), '^https?://', ''), '/', 1), ':', 1)) AS host,
		         COUNT(*) AS running_now
		  FROM crawl_jobs cj
		  JOIN venues v ON v.place_id = cj.place_id
		  WHERE cj.state = 'running'
		  GROUP BY 1
		),
		eligible AS (
		  SELECT p.*
		  FROM pending p
		  LEFT JOIN running_counts r ON p.host = r.host
		  WHERE p.website IS NULL OR COALESCE(r.running_now, 0) < $1
		  ORDER BY p.priority DESC, p.job_id ASC
		  LIMIT $2
		),
		locked AS (
		  SELECT c.job_id
		  FROM crawl_jobs c
		  JOIN eligible e ON e.job_id = c.job_id
		  WHERE c.state = 'pending'
		  ORDER BY c.job_id
		  FOR UPDATE OF c SKIP LOCKED
		)
		UPDATE crawl_jobs cj
		SET state = 'running', started_at = NOW(), finished_at = NULL, error = NULL
		FROM locked l
		JOIN eligible e ON e.job_id = l.job_id
		WHERE cj.job_id = l.job_id
		RETURNING cj.job_id, e.place_id, e.mode, e.priority, e.website`,
		perHostCap, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []JobClaim
	for rows.Next() {
		var c JobClaim
		if err := rows.Scan(&c.JobID, &c.PlaceID, &c.Mode, &c.Priority, &c.Website); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// FinishSuccess marks a running job as succeeded. It is a no-op (0 rows
// affected) if the job was not in the running state, so a worker can never
// resurrect a job another worker has already finished.
func (q *Queries) FinishSuccess(ctx context.Context, jobID int64) error {
	_, err := q.db.ExecContext(ctx, `
		UPDATE crawl_jobs SET state='success', finished_at=NOW(), error=NULL
		WHERE job_id=$1 AND state='running'`, jobID)
	return err
}

// FinishFail marks a running job as failed with a truncated error string.
func (q *Queries) FinishFail(ctx context.Context, jobID int64, errMsg string) error {
	_, err := q.db.ExecContext(ctx, `
		UPDATE crawl_jobs SET state='fail', finished_at=NOW(), error=$2
		WHERE job_id=$1 AND state='running'`, jobID, errMsg)
	return err
}

// GetJobStatus fetches a single job row by ID.
func (q *Queries) GetJobStatus(ctx context.Context, jobID int64) (CrawlJob, error) {
	var j CrawlJob
	err := q.db.QueryRowContext(ctx, `
		SELECT job_id, place_id, mode, priority, state, created_at, started_at, finished_at, error
		FROM crawl_jobs WHERE job_id = $1`, jobID,
	).Scan(&j.JobID, &j.PlaceID, &j.Mode, &j.Priority, &j.State, &j.CreatedAt, &j.StartedAt, &j.FinishedAt, &j.Error)
	return j, err
}

// QueueDepth returns the number of jobs per state, for metrics and ops.
func (q *Queries) QueueDepth(ctx context.Context) (map[string]int64, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT state, COUNT(*) FROM crawl_jobs GROUP BY state`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]int64)
	for rows.Next() {
		var state string
		var n int64
		if err := rows.Scan(&state, &n); err != nil {
			return nil, err
		}
		out[state] = n
	}
	return out, rows.Err()
}

// PruneStuck resets jobs that have been running longer than maxRunningMinutes
// back to pending, for an ops runbook to call after a crash.
func (q *Queries) PruneStuck(ctx context.Context, maxRunningMinutes int) (int64, error) {
	res, err := q.db.ExecContext(ctx, `
		UPDATE crawl_jobs
		SET state='pending', started_at=NULL, finished_at=NULL, error='reset_stuck'
		WHERE state='running' AND started_at < NOW() - ($1 || ' minutes')::interval`, maxRunningMinutes)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
