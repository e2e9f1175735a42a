package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"gamechar/internal/domain"
)

type countingRevoker struct {
	ok    bool
	calls int
}

func (r *countingRevoker) Revoke(ctx context.Context, handle domain.StagingHandle) bool {
	r.calls++
	return r.ok
}

func stagedJob(phase domain.Phase, updated time.Time) *domain.Job {
	return &domain.Job{
		ID:        uuid.New(),
		Style:     domain.StylePixelArt,
		Phase:     phase,
		Staging:   &domain.StagingHandle{PublicURL: "https://i.ibb.co/z.png", RevocationToken: "https://ibb.co/z/del"},
		CreatedAt: updated,
		UpdatedAt: updated,
	}
}

func TestReapRevokesStaleHandles(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	stale := stagedJob(domain.PhaseAnalyzed, now.Add(-time.Hour))
	doneStale := stagedJob(domain.PhaseComposited, now.Add(-2*time.Hour))
	fresh := stagedJob(domain.PhaseStaged, now.Add(-time.Minute))
	repo := newMemRepo(stale, doneStale, fresh)
	revoker := &countingRevoker{ok: true}

	report, err := Reap(context.Background(), repo, revoker, ReapOptions{MinAge: 10 * time.Minute, Now: func() time.Time { return now }})
	if err != nil {
		t.Fatalf("Reap error: %v", err)
	}
	if report.Scanned != 3 || report.Revoked != 2 || report.Interrupted != 1 || report.Failed != 0 {
		t.Fatalf("report = %+v", report)
	}
	if revoker.calls != 2 {
		t.Fatalf("revoke calls = %d, want 2", revoker.calls)
	}
	got, _ := repo.GetByID(context.Background(), stale.ID)
	if got.Phase != domain.PhaseFailed || got.Failure.Reason != domain.FailureInterrupted || !got.StagingRevoked {
		t.Fatalf("stale job = %+v", got)
	}
	got, _ = repo.GetByID(context.Background(), fresh.ID)
	if got.StagingRevoked || got.Phase != domain.PhaseStaged {
		t.Fatalf("fresh job touched: %+v", got)
	}

	report, err = Reap(context.Background(), repo, revoker, ReapOptions{MinAge: 10 * time.Minute, Now: func() time.Time { return now }})
	if err != nil {
		t.Fatalf("second Reap error: %v", err)
	}
	if report.Revoked != 0 || revoker.calls != 2 {
		t.Fatalf("second sweep revoked again: %+v, calls %d", report, revoker.calls)
	}
}

func TestReapRecordsFailedRevoke(t *testing.T) {
	now := time.Now()
	job := stagedJob(domain.PhaseFailed, now.Add(-time.Hour))
	repo := newMemRepo(job)

	report, err := Reap(context.Background(), repo, &countingRevoker{ok: false}, ReapOptions{})
	if err != nil {
		t.Fatalf("Reap error: %v", err)
	}
	if report.Failed != 1 {
		t.Fatalf("report = %+v", report)
	}
	got, _ := repo.GetByID(context.Background(), job.ID)
	if !got.StagingRevoked || got.CleanupWarning == "" {
		t.Fatalf("job = %+v, want revoked with warning", got)
	}
}

func TestReapSaveError(t *testing.T) {
	repo := newMemRepo(stagedJob(domain.PhaseFailed, time.Now().Add(-time.Hour)))
	repo.err = errors.New("db down")
	if _, err := Reap(context.Background(), repo, &countingRevoker{ok: true}, ReapOptions{}); err == nil {
		t.Fatalf("expected save error")
	}
}
