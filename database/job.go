package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/billsdeck/ledgersync/internal/apierror"
	"github.com/billsdeck/ledgersync/model"
)

const jobColumns = `job_id, user_id, organization_id, platform, transaction_ids, status, attempts, max_attempts, next_run_at, progress, success_count, error_count, skipped_count, total_count, error, locked_at, created_at, started_at, completed_at`

// CreateSyncJob atomically inserts one job and one item per transaction id.
// The job arrives with status queued and total_count equal to the item count.
func (d Datasource) CreateSyncJob(ctx context.Context, job *model.SyncJob) (*model.SyncJob, []*model.SyncJobItem, error) {
	ctx, span := otel.Tracer("sync.store").Start(ctx, "Creating sync job")
	defer span.End()

	job.JobID = GenerateUUIDWithSuffix("job")
	job.Status = model.JobStatusQueued
	job.TotalCount = len(job.TransactionIDs)
	job.CreatedAt = time.Now()
	if job.MaxAttempts <= 0 {
		job.MaxAttempts = 3
	}
	job.NextRunAt = job.CreatedAt

	idsJSON, err := json.Marshal(job.TransactionIDs)
	if err != nil {
		return nil, nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to marshal transaction ids", err)
	}

	tx, err := d.Conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO sync_jobs(job_id,user_id,organization_id,platform,transaction_ids,status,max_attempts,next_run_at,total_count,created_at) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		job.JobID, job.UserID, job.OrganizationID, job.Platform, idsJSON, job.Status, job.MaxAttempts, job.NextRunAt, job.TotalCount, job.CreatedAt,
	)
	if err != nil {
		return nil, nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to record sync job", err)
	}

	items := make([]*model.SyncJobItem, 0, len(job.TransactionIDs))
	for _, tid := range job.TransactionIDs {
		item := &model.SyncJobItem{
			ItemID:      GenerateUUIDWithSuffix("item"),
			JobID:       job.JobID,
			ReferenceID: tid,
			Status:      model.ItemStatusQueued,
			CreatedAt:   job.CreatedAt,
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO sync_job_items(item_id,job_id,reference_id,status,created_at) VALUES ($1,$2,$3,$4,$5)`,
			item.ItemID, item.JobID, item.ReferenceID, item.Status, item.CreatedAt,
		)
		if err != nil {
			return nil, nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to record sync job item", err)
		}
		items = append(items, item)
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to commit sync job", err)
	}

	return job, items, nil
}

func (d Datasource) GetSyncJob(ctx context.Context, jobID string) (*model.SyncJob, error) {
	row := d.Conn.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT %s
		FROM sync_jobs
		WHERE job_id = $1
	`, jobColumns), jobID)

	job, err := scanJob(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Job with ID '%s' not found", jobID), err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve sync job", err)
	}
	return job, nil
}

func (d Datasource) GetJobItems(ctx context.Context, jobID string) ([]*model.SyncJobItem, error) {
	rows, err := d.Conn.QueryContext(ctx, `
		SELECT item_id, job_id, reference_id, external_id, status, result, error, created_at
		FROM sync_job_items
		WHERE job_id = $1
		ORDER BY id ASC
	`, jobID)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve job items", err)
	}
	defer rows.Close()

	var items []*model.SyncJobItem
	for rows.Next() {
		item := &model.SyncJobItem{}
		var externalID, errMsg sql.NullString
		var resultJSON []byte
		err = rows.Scan(&item.ItemID, &item.JobID, &item.ReferenceID, &externalID, &item.Status, &resultJSON, &errMsg, &item.CreatedAt)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan job item", err)
		}
		item.ExternalID = externalID.String
		item.Error = errMsg.String
		if len(resultJSON) > 0 {
			if err := json.Unmarshal(resultJSON, &item.Result); err != nil {
				return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to unmarshal item result", err)
			}
		}
		items = append(items, item)
	}

	if err = rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Error occurred while iterating over job items", err)
	}
	return items, nil
}

// ClaimJobs atomically claims up to limit eligible jobs. Eligible means queued,
// or failed with attempts left and next_run_at due. Rows locked by a concurrent
// claimer are skipped, so two workers never select the same job. Claiming
// locks the row, moves it to processing and consumes an attempt.
func (d Datasource) ClaimJobs(ctx context.Context, limit int) ([]*model.SyncJob, error) {
	ctx, span := otel.Tracer("sync.store").Start(ctx, "Claiming sync jobs")
	defer span.End()

	rows, err := d.Conn.QueryContext(ctx, fmt.Sprintf(`
		UPDATE sync_jobs
		SET locked_at = NOW(),
		    status = 'processing',
		    attempts = attempts + 1,
		    started_at = COALESCE(started_at, NOW())
		WHERE job_id IN (
			SELECT job_id FROM sync_jobs
			WHERE locked_at IS NULL
			  AND (
			    status = 'queued'
			    OR (status = 'failed' AND attempts < max_attempts AND next_run_at <= NOW())
			  )
			ORDER BY created_at ASC
			FOR UPDATE SKIP LOCKED
			LIMIT $1
		)
		RETURNING %s
	`, jobColumns), limit)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to claim sync jobs", err)
	}
	defer rows.Close()

	var jobs []*model.SyncJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan claimed job", err)
		}
		jobs = append(jobs, job)
	}

	if err = rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Error occurred while iterating over claimed jobs", err)
	}
	return jobs, nil
}

// ResetStuckJobs unlocks jobs that have sat in processing past the inactivity
// window, failing them so the retry path can pick them up again.
func (d Datasource) ResetStuckJobs(ctx context.Context, window time.Duration, nextRunAt time.Time) (int64, error) {
	result, err := d.Conn.ExecContext(ctx, `
		UPDATE sync_jobs
		SET status = 'failed',
		    locked_at = NULL,
		    next_run_at = $2,
		    error = 'worker timed out'
		WHERE status = 'processing'
		  AND locked_at IS NOT NULL
		  AND locked_at < NOW() - ($1 * INTERVAL '1 second')
	`, int64(window.Seconds()), nextRunAt)
	if err != nil {
		return 0, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to reset stuck jobs", err)
	}
	return result.RowsAffected()
}

func (d Datasource) UpdateJobProgress(ctx context.Context, jobID string, progress, successCount, errorCount int) error {
	_, err := d.Conn.ExecContext(ctx, `
		UPDATE sync_jobs
		SET progress = $2, success_count = $3, error_count = $4
		WHERE job_id = $1
	`, jobID, progress, successCount, errorCount)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to update job progress", err)
	}
	return nil
}

// CompleteJob stamps a terminal status reached through the item loop. The lock
// is released and progress pinned to 100.
func (d Datasource) CompleteJob(ctx context.Context, jobID, status string, successCount, errorCount int) error {
	result, err := d.Conn.ExecContext(ctx, `
		UPDATE sync_jobs
		SET status = $2, success_count = $3, error_count = $4,
		    progress = 100, locked_at = NULL, completed_at = NOW()
		WHERE job_id = $1
	`, jobID, status, successCount, errorCount)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to complete job", err)
	}
	return requireRow(result, jobID)
}

// FailJob records an infrastructure or auth failure. The lock is released;
// whether the job runs again is decided by the claimer against attempts and
// nextRunAt.
func (d Datasource) FailJob(ctx context.Context, jobID, errMsg string, nextRunAt time.Time) error {
	result, err := d.Conn.ExecContext(ctx, `
		UPDATE sync_jobs
		SET status = 'failed', error = $2, next_run_at = $3, locked_at = NULL, completed_at = NOW()
		WHERE job_id = $1
	`, jobID, errMsg, nextRunAt)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to fail job", err)
	}
	return requireRow(result, jobID)
}

func (d Datasource) MarkItemProcessing(ctx context.Context, itemID string) error {
	_, err := d.Conn.ExecContext(ctx, `
		UPDATE sync_job_items SET status = 'processing' WHERE item_id = $1
	`, itemID)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to mark item processing", err)
	}
	return nil
}

// CompleteItem records a successful item. A completed item always carries the
// remote record id.
func (d Datasource) CompleteItem(ctx context.Context, itemID, externalID string, result map[string]interface{}) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to marshal item result", err)
	}
	_, err = d.Conn.ExecContext(ctx, `
		UPDATE sync_job_items
		SET status = 'completed', external_id = $2, result = $3, error = NULL
		WHERE item_id = $1
	`, itemID, externalID, resultJSON)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to complete item", err)
	}
	return nil
}

func (d Datasource) FailItem(ctx context.Context, itemID, errMsg string) error {
	_, err := d.Conn.ExecContext(ctx, `
		UPDATE sync_job_items SET status = 'failed', error = $2 WHERE item_id = $1
	`, itemID, errMsg)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to fail item", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanJob(row rowScanner) (*model.SyncJob, error) {
	job := &model.SyncJob{}
	var idsJSON []byte
	var errMsg sql.NullString
	var lockedAt, startedAt, completedAt sql.NullTime
	err := row.Scan(
		&job.JobID, &job.UserID, &job.OrganizationID, &job.Platform, &idsJSON,
		&job.Status, &job.Attempts, &job.MaxAttempts, &job.NextRunAt,
		&job.Progress, &job.SuccessCount, &job.ErrorCount, &job.SkippedCount, &job.TotalCount,
		&errMsg, &lockedAt, &job.CreatedAt, &startedAt, &completedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(idsJSON, &job.TransactionIDs); err != nil {
		return nil, err
	}
	job.Error = errMsg.String
	if lockedAt.Valid {
		job.LockedAt = &lockedAt.Time
	}
	if startedAt.Valid {
		job.StartedAt = &startedAt.Time
	}
	if completedAt.Valid {
		job.CompletedAt = &completedAt.Time
	}
	return job, nil
}

func requireRow(result sql.Result, jobID string) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Job with ID '%s' not found", jobID), nil)
	}
	return nil
}
