package pipeline

import (
	"context"
	"fmt"
	"time"

	"gamechar/internal/domain"
	"gamechar/internal/infra"
)

// Revoker deletes a staged image.
type Revoker interface {
	Revoke(ctx context.Context, handle domain.StagingHandle) bool
}

// ReapOptions tunes a sweep over persisted jobs.
type ReapOptions struct {
	// MinAge skips records updated more recently than this, so a live
	// process keeps ownership of its running job.
	MinAge        time.Duration
	Batch         int
	RevokeTimeout time.Duration
	Now           func() time.Time
	Logger        *infra.Logger
}

// ReapReport summarizes one sweep.
type ReapReport struct {
	Scanned     int
	Revoked     int
	Failed      int
	Interrupted int
}

// Reap revokes the staging handles of persisted jobs that no process will
// finish. Non-terminal records are failed as interrupted first. Every handle
// is attempted once; the record is marked revoked whatever the outcome.
func Reap(ctx context.Context, repo domain.JobRepository, revoker Revoker, opts ReapOptions) (ReapReport, error) {
	if opts.Batch <= 0 {
		opts.Batch = 50
	}
	if opts.RevokeTimeout <= 0 {
		opts.RevokeTimeout = DefaultTimeouts().Revoke
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		l := infra.DiscardLogger()
		logger = &l
	}

	var report ReapReport
	jobs, err := repo.ListUnrevoked(ctx, opts.Batch)
	if err != nil {
		return report, fmt.Errorf("pipeline: list unrevoked jobs: %w", err)
	}
	cutoff := opts.Now().Add(-opts.MinAge)
	for _, job := range jobs {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Scanned++
		if job.Staging == nil || job.StagingRevoked || job.UpdatedAt.After(cutoff) {
			continue
		}
		if !job.Phase.Terminal() {
			job.Failure = &domain.Failure{Reason: domain.FailureInterrupted, Message: "reaped after the owning process stopped in phase " + string(job.Phase)}
			job.Phase = domain.PhaseFailed
			report.Interrupted++
		}

		rctx, cancel := context.WithTimeout(ctx, opts.RevokeTimeout)
		ok := revoker.Revoke(rctx, *job.Staging)
		cancel()
		revocationsTotal.WithLabelValues(outcome(ok)).Inc()
		job.StagingRevoked = true
		if ok {
			report.Revoked++
		} else {
			report.Failed++
			job.CleanupWarning = fmt.Sprintf("%v: %s", domain.ErrCleanup, job.Staging.PublicURL)
		}
		job.UpdatedAt = opts.Now()
		if err := repo.Save(ctx, job); err != nil {
			return report, fmt.Errorf("pipeline: save reaped job %s: %w", job.ID, err)
		}
		logger.Info().Str("job_id", job.ID.String()).Bool("revoked", ok).Msg("pipeline: reaped staging handle")
	}
	return report, nil
}
