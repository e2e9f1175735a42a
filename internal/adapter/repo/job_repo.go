package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"gamechar/internal/domain"
	"gamechar/internal/infra"
	"gamechar/internal/sqlinline"
)

// JobRepositoryPG implements domain.JobRepository on the character_jobs table.
type JobRepositoryPG struct {
	sql infra.SQLExecutor
}

// NewJobRepository creates a new job repository backed by PostgreSQL.
func NewJobRepository(sql infra.SQLExecutor) *JobRepositoryPG {
	return &JobRepositoryPG{sql: sql}
}

// EnsureSchema creates the tables when they do not exist yet.
func (r *JobRepositoryPG) EnsureSchema(ctx context.Context) error {
	if _, err := r.sql.Exec(ctx, sqlinline.QEnsureSchema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// Save upserts the job metadata. Image buffers are not persisted.
func (r *JobRepositoryPG) Save(ctx context.Context, job *domain.Job) error {
	var reason, message string
	if job.Failure != nil {
		reason, message = string(job.Failure.Reason), job.Failure.Message
	}
	var stagingURL, deleteURL string
	if job.Staging != nil {
		stagingURL, deleteURL = job.Staging.PublicURL, job.Staging.RevocationToken
	}
	var delivery []byte
	if job.Delivery != nil {
		raw, err := json.Marshal(job.Delivery)
		if err != nil {
			return fmt.Errorf("encode delivery: %w", err)
		}
		delivery = raw
	}
	updatedAt := job.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}
	_, err := r.sql.Exec(ctx, sqlinline.QUpsertCharacterJob,
		job.ID.String(),
		string(job.Style),
		string(job.Phase),
		reason,
		message,
		stagingURL,
		deleteURL,
		job.StagingRevoked,
		job.CleanupWarning,
		job.Description,
		job.GeneratedImageURL,
		delivery,
		job.CreatedAt,
		updatedAt,
	)
	return err
}

// Current returns the most recently created job.
func (r *JobRepositoryPG) Current(ctx context.Context) (*domain.Job, error) {
	return scanJob(r.sql.QueryRow(ctx, sqlinline.QSelectCurrentCharacterJob))
}

// GetByID fetches a job by its identifier.
func (r *JobRepositoryPG) GetByID(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	return scanJob(r.sql.QueryRow(ctx, sqlinline.QSelectCharacterJobByID, id.String()))
}

// ListUnrevoked returns jobs whose staging handle still needs a revoke.
func (r *JobRepositoryPG) ListUnrevoked(ctx context.Context, limit int) ([]*domain.Job, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.sql.Query(ctx, sqlinline.QSelectUnrevokedCharacterJobs, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []*domain.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return jobs, nil
}

// Delete removes a job record.
func (r *JobRepositoryPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.sql.Exec(ctx, sqlinline.QDeleteCharacterJob, id.String())
	return err
}

func scanJob(row pgx.Row) (*domain.Job, error) {
	var (
		job                   domain.Job
		id                    string
		style, phase          string
		reason, message       string
		stagingURL, deleteURL string
		delivery              []byte
	)
	if err := row.Scan(
		&id,
		&style,
		&phase,
		&reason,
		&message,
		&stagingURL,
		&deleteURL,
		&job.StagingRevoked,
		&job.CleanupWarning,
		&job.Description,
		&job.GeneratedImageURL,
		&delivery,
		&job.CreatedAt,
		&job.UpdatedAt,
	); err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}

	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("parse job id: %w", err)
	}
	job.ID = parsed
	job.Style = domain.Style(style)
	job.Phase = domain.Phase(phase)
	if reason != "" {
		job.Failure = &domain.Failure{Reason: domain.FailureReason(reason), Message: message}
	}
	if stagingURL != "" || deleteURL != "" {
		job.Staging = &domain.StagingHandle{PublicURL: stagingURL, RevocationToken: deleteURL}
	}
	if len(delivery) > 0 {
		var d domain.DeliveryResult
		if err := json.Unmarshal(delivery, &d); err != nil {
			return nil, fmt.Errorf("decode delivery: %w", err)
		}
		job.Delivery = &d
	}
	return &job, nil
}

var _ domain.JobRepository = (*JobRepositoryPG)(nil)
