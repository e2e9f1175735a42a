package domain

import (
	"context"

	"github.com/google/uuid"
)

// JobRepository persists job metadata. Image bytes are never stored.
type JobRepository interface {
	// Save inserts or updates the record for job.ID.
	Save(ctx context.Context, job *Job) error
	// Current returns the most recently created job, or ErrNotFound.
	Current(ctx context.Context) (*Job, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Job, error)
	// ListUnrevoked returns jobs that still own a staging handle which has not
	// been revoked, oldest first.
	ListUnrevoked(ctx context.Context, limit int) ([]*Job, error)
	Delete(ctx context.Context, id uuid.UUID) error
}
