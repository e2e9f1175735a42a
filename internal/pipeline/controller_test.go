package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"gamechar/internal/delivery"
	"gamechar/internal/domain"
	"gamechar/internal/providers/vision"
)

type fakeStager struct {
	mu          sync.Mutex
	err         error
	revokeOK    bool
	stageCalls  int
	revokeCalls int
	revokeCtxOK bool
}

func (f *fakeStager) Stage(ctx context.Context, image []byte) (domain.StagingHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stageCalls++
	if f.err != nil {
		return domain.StagingHandle{}, fmt.Errorf("%w: imgbb: %w", domain.ErrStaging, f.err)
	}
	return domain.StagingHandle{PublicURL: "https://i.ibb.co/a/photo.png", RevocationToken: "https://ibb.co/a/delete"}, nil
}

func (f *fakeStager) Revoke(ctx context.Context, handle domain.StagingHandle) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.revokeCalls++
	f.revokeCtxOK = ctx.Err() == nil
	return f.revokeOK
}

type fakeAnalyzer struct {
	desc    string
	err     error
	calls   int
	lastRef vision.ImageRef
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, ref vision.ImageRef) (string, error) {
	f.calls++
	f.lastRef = ref
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return f.desc, f.err
}

type fakeSynth struct {
	url       string
	err       error
	calls     int
	lastStyle domain.Style
	lastDesc  string
}

func (f *fakeSynth) Synthesize(ctx context.Context, style domain.Style, description string) (string, error) {
	f.calls++
	f.lastStyle, f.lastDesc = style, description
	return f.url, f.err
}

type fakeCompositor struct {
	data      []byte
	err       error
	calls     int
	lastImage string
	lastMark  string
}

func (f *fakeCompositor) Composite(ctx context.Context, imageURL, watermarkURL string) ([]byte, error) {
	f.calls++
	f.lastImage, f.lastMark = imageURL, watermarkURL
	return f.data, f.err
}

type fakeEmailer struct {
	err   error
	calls int
	to    string
	style domain.Style
}

func (f *fakeEmailer) Send(ctx context.Context, to string, image []byte, style domain.Style) error {
	f.calls++
	f.to, f.style = to, style
	return f.err
}

type fakeDrive struct {
	calls int
}

func (f *fakeDrive) Upload(ctx context.Context, image []byte) (delivery.Upload, error) {
	f.calls++
	return delivery.Upload{FileID: "f1.png", ShareLink: "https://drive.example/f1.png"}, nil
}

type harness struct {
	stager *fakeStager
	vision *fakeAnalyzer
	synth  *fakeSynth
	comp   *fakeCompositor
	ctrl   *Controller
}

func newHarness(t *testing.T, mutate func(*Options)) *harness {
	t.Helper()
	h := &harness{
		stager: &fakeStager{revokeOK: true},
		vision: &fakeAnalyzer{desc: "young woman with short black hair, wearing a silver elven circlet"},
		synth:  &fakeSynth{url: "https://images.example/generated.png"},
		comp:   &fakeCompositor{data: []byte("final-png")},
	}
	opts := Options{
		Stager:       h.stager,
		Analyzer:     h.vision,
		Synthesizer:  h.synth,
		Compositor:   h.comp,
		WatermarkURL: "https://example.com/logo.png",
	}
	if mutate != nil {
		mutate(&opts)
	}
	ctrl, err := NewController(opts)
	if err != nil {
		t.Fatalf("NewController error: %v", err)
	}
	h.ctrl = ctrl
	return h
}

func (h *harness) providerCalls() int {
	return h.stager.stageCalls + h.stager.revokeCalls + h.vision.calls + h.synth.calls + h.comp.calls
}

func photo(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 40, 30))
	img.Set(1, 1, color.RGBA{R: 200, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return buf.Bytes()
}

func TestRunCompletesAndRevokesOnce(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	job, err := h.ctrl.Submit(ctx, photo(t), "pixel-art")
	if err != nil {
		t.Fatalf("Submit error: %v", err)
	}
	if job.Phase != domain.PhaseIdle || len(job.Preview) == 0 {
		t.Fatalf("submitted job = phase %s, preview %d bytes", job.Phase, len(job.Preview))
	}
	if h.providerCalls() != 0 {
		t.Fatalf("Submit made %d provider calls", h.providerCalls())
	}

	phase, err := h.ctrl.Run(ctx)
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if phase != domain.PhaseComposited {
		t.Fatalf("phase = %s, want composited", phase)
	}
	if h.stager.revokeCalls != 1 {
		t.Fatalf("revoke calls = %d, want 1", h.stager.revokeCalls)
	}
	if h.synth.lastStyle != domain.StylePixelArt || h.synth.lastDesc != h.vision.desc {
		t.Fatalf("synthesize got (%s, %q)", h.synth.lastStyle, h.synth.lastDesc)
	}
	if h.vision.lastRef.URL != "https://i.ibb.co/a/photo.png" || len(h.vision.lastRef.Data) == 0 {
		t.Fatalf("analyzer ref = %+v", h.vision.lastRef)
	}
	if h.comp.lastImage != h.synth.url || h.comp.lastMark != "https://example.com/logo.png" {
		t.Fatalf("composite got (%q, %q)", h.comp.lastImage, h.comp.lastMark)
	}

	img, err := h.ctrl.FinalImage(ctx)
	if err != nil || string(img) != "final-png" {
		t.Fatalf("FinalImage = %q, %v", img, err)
	}
	snap, err := h.ctrl.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot error: %v", err)
	}
	if snap.OriginalImage != nil || snap.Preview != nil {
		t.Fatalf("input bytes retained after completion")
	}
	if !snap.StagingRevoked || snap.CleanupWarning != "" {
		t.Fatalf("staging revoked = %v, warning = %q", snap.StagingRevoked, snap.CleanupWarning)
	}
}

func TestAdvanceIsIdempotentOnTerminalJob(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	if _, err := h.ctrl.Submit(ctx, photo(t), "3d-render"); err != nil {
		t.Fatalf("Submit error: %v", err)
	}
	if _, err := h.ctrl.Run(ctx); err != nil {
		t.Fatalf("Run error: %v", err)
	}
	before := h.providerCalls()
	for i := 0; i < 5; i++ {
		phase, err := h.ctrl.Advance(ctx)
		if err != nil || phase != domain.PhaseComposited {
			t.Fatalf("Advance = %s, %v", phase, err)
		}
	}
	if after := h.providerCalls(); after != before {
		t.Fatalf("provider calls went from %d to %d", before, after)
	}
}

func TestAdvanceStepsOnePhaseAtATime(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	if _, err := h.ctrl.Submit(ctx, photo(t), "2d-illustration"); err != nil {
		t.Fatalf("Submit error: %v", err)
	}
	want := []domain.Phase{domain.PhaseStaged, domain.PhaseAnalyzed, domain.PhaseSynthesized, domain.PhaseComposited}
	for i, w := range want {
		phase, err := h.ctrl.Advance(ctx)
		if err != nil {
			t.Fatalf("Advance %d error: %v", i, err)
		}
		if phase != w || h.ctrl.Phase(ctx) != w {
			t.Fatalf("Advance %d phase = %s, want %s", i, phase, w)
		}
	}
	if h.stager.stageCalls != 1 || h.vision.calls != 1 || h.synth.calls != 1 || h.comp.calls != 1 {
		t.Fatalf("calls = stage %d, analyze %d, synth %d, comp %d", h.stager.stageCalls, h.vision.calls, h.synth.calls, h.comp.calls)
	}
}

func TestStagingErrorStopsPipeline(t *testing.T) {
	h := newHarness(t, nil)
	h.stager.err = errors.New("503 service unavailable")
	ctx := context.Background()
	if _, err := h.ctrl.Submit(ctx, photo(t), "pixel-art"); err != nil {
		t.Fatalf("Submit error: %v", err)
	}
	phase, err := h.ctrl.Run(ctx)
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if phase != domain.PhaseFailed {
		t.Fatalf("phase = %s, want failed", phase)
	}
	snap, _ := h.ctrl.Snapshot(ctx)
	if snap.Failure == nil || snap.Failure.Reason != domain.FailureStaging {
		t.Fatalf("failure = %+v, want staging", snap.Failure)
	}
	if h.vision.calls != 0 || h.synth.calls != 0 || h.comp.calls != 0 || h.stager.revokeCalls != 0 {
		t.Fatalf("unexpected calls after staging error: analyze %d synth %d comp %d revoke %d",
			h.vision.calls, h.synth.calls, h.comp.calls, h.stager.revokeCalls)
	}
	if _, err := h.ctrl.FinalImage(ctx); !errors.Is(err, domain.ErrNotCompleted) {
		t.Fatalf("FinalImage error = %v, want ErrNotCompleted", err)
	}
}

func TestLaterStepFailuresRevokeExactlyOnce(t *testing.T) {
	cases := []struct {
		name   string
		setup  func(h *harness)
		reason domain.FailureReason
	}{
		{name: "analysis error", setup: func(h *harness) { h.vision.err = errors.New("timeout") }, reason: domain.FailureAnalysis},
		{name: "empty description", setup: func(h *harness) { h.vision.desc = "   " }, reason: domain.FailureAnalysis},
		{name: "synthesis refusal", setup: func(h *harness) { h.synth.err = errors.New("content_policy_violation") }, reason: domain.FailureSynthesis},
		{name: "composition error", setup: func(h *harness) { h.comp.err = errors.New("decode watermark") }, reason: domain.FailureComposition},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t, nil)
			tc.setup(h)
			ctx := context.Background()
			if _, err := h.ctrl.Submit(ctx, photo(t), "pixel-art"); err != nil {
				t.Fatalf("Submit error: %v", err)
			}
			phase, err := h.ctrl.Run(ctx)
			if err != nil {
				t.Fatalf("Run error: %v", err)
			}
			for i := 0; i < 3; i++ {
				_, _ = h.ctrl.Advance(ctx)
			}
			if phase != domain.PhaseFailed {
				t.Fatalf("phase = %s, want failed", phase)
			}
			snap, _ := h.ctrl.Snapshot(ctx)
			if snap.Failure == nil || snap.Failure.Reason != tc.reason {
				t.Fatalf("failure = %+v, want %s", snap.Failure, tc.reason)
			}
			if h.stager.revokeCalls != 1 {
				t.Fatalf("revoke calls = %d, want 1", h.stager.revokeCalls)
			}
			if snap.FinalImage != nil {
				t.Fatalf("failed job carries a final image")
			}
		})
	}
}

func TestAnalysisFailureSkipsSynthesis(t *testing.T) {
	h := newHarness(t, nil)
	h.vision.err = errors.New("boom")
	ctx := context.Background()
	_, _ = h.ctrl.Submit(ctx, photo(t), "pixel-art")
	_, _ = h.ctrl.Run(ctx)
	if h.synth.calls != 0 || h.comp.calls != 0 {
		t.Fatalf("synth calls = %d, comp calls = %d, want 0", h.synth.calls, h.comp.calls)
	}
}

func TestRevokeFailureIsAWarning(t *testing.T) {
	h := newHarness(t, nil)
	h.stager.revokeOK = false
	ctx := context.Background()
	_, _ = h.ctrl.Submit(ctx, photo(t), "pixel-art")
	phase, err := h.ctrl.Run(ctx)
	if err != nil || phase != domain.PhaseComposited {
		t.Fatalf("Run = %s, %v; want composited", phase, err)
	}
	_, _ = h.ctrl.Advance(ctx)
	snap, _ := h.ctrl.Snapshot(ctx)
	if snap.CleanupWarning == "" {
		t.Fatalf("missing cleanup warning")
	}
	if h.stager.revokeCalls != 1 {
		t.Fatalf("revoke calls = %d, want 1", h.stager.revokeCalls)
	}
}

func TestCancelledCallerStillRevokes(t *testing.T) {
	h := newHarness(t, nil)
	if _, err := h.ctrl.Submit(context.Background(), photo(t), "pixel-art"); err != nil {
		t.Fatalf("Submit error: %v", err)
	}
	if _, err := h.ctrl.Advance(context.Background()); err != nil {
		t.Fatalf("Advance error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	phase, err := h.ctrl.Advance(ctx)
	if err != nil {
		t.Fatalf("Advance error: %v", err)
	}
	if phase != domain.PhaseFailed {
		t.Fatalf("phase = %s, want failed", phase)
	}
	if h.stager.revokeCalls != 1 || !h.stager.revokeCtxOK {
		t.Fatalf("revoke calls = %d, ctx live = %v", h.stager.revokeCalls, h.stager.revokeCtxOK)
	}
}

func TestSubmitRejectsJobInFlight(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	first, err := h.ctrl.Submit(ctx, photo(t), "pixel-art")
	if err != nil {
		t.Fatalf("Submit error: %v", err)
	}
	if _, err := h.ctrl.Advance(ctx); err != nil {
		t.Fatalf("Advance error: %v", err)
	}
	if _, err := h.ctrl.Submit(ctx, photo(t), "3d-render"); !errors.Is(err, domain.ErrJobInFlight) {
		t.Fatalf("Submit error = %v, want ErrJobInFlight", err)
	}
	snap, _ := h.ctrl.Snapshot(ctx)
	if snap.ID != first.ID || snap.Style != domain.StylePixelArt {
		t.Fatalf("in-flight job replaced: %+v", snap)
	}

	if _, err := h.ctrl.Run(ctx); err != nil {
		t.Fatalf("Run error: %v", err)
	}
	second, err := h.ctrl.Submit(ctx, photo(t), "3d-render")
	if err != nil {
		t.Fatalf("Submit after completion error: %v", err)
	}
	if second.ID == first.ID {
		t.Fatalf("new job reused id")
	}
	if _, err := h.ctrl.FinalImage(ctx); !errors.Is(err, domain.ErrNotCompleted) {
		t.Fatalf("FinalImage after resubmit error = %v, want ErrNotCompleted", err)
	}
}

func TestSubmitValidatesInput(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	if _, err := h.ctrl.Submit(ctx, nil, "pixel-art"); !errors.Is(err, domain.ErrEmptyImage) {
		t.Fatalf("Submit(nil) error = %v", err)
	}
	if _, err := h.ctrl.Submit(ctx, photo(t), "watercolor"); !errors.Is(err, domain.ErrUnknownStyle) {
		t.Fatalf("Submit(watercolor) error = %v", err)
	}
	if h.ctrl.Phase(ctx) != domain.PhaseIdle {
		t.Fatalf("phase = %s, want idle", h.ctrl.Phase(ctx))
	}
	if _, err := h.ctrl.Advance(ctx); !errors.Is(err, domain.ErrNoJob) {
		t.Fatalf("Advance without job error = %v, want ErrNoJob", err)
	}
}

func TestDeliveryUnavailableWithoutChannel(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	_, _ = h.ctrl.Submit(ctx, photo(t), "pixel-art")
	_, _ = h.ctrl.Run(ctx)

	if caps := h.ctrl.Capabilities(); caps.Email || caps.Drive {
		t.Fatalf("capabilities = %+v, want none", caps)
	}
	if _, err := h.ctrl.RequestDelivery(ctx, domain.DeliveryEmail, "a@example.com"); !errors.Is(err, domain.ErrDeliveryUnavailable) {
		t.Fatalf("RequestDelivery error = %v, want ErrDeliveryUnavailable", err)
	}
	snap, _ := h.ctrl.Snapshot(ctx)
	if snap.Delivery != nil {
		t.Fatalf("delivery recorded without a channel: %+v", snap.Delivery)
	}
}

func TestEmailDeliveryFailureKeepsJobAndAllowsRetry(t *testing.T) {
	mailer := &fakeEmailer{err: fmt.Errorf("%w: smtp: 535", domain.ErrDelivery)}
	h := newHarness(t, func(o *Options) { o.Emailer = mailer })
	ctx := context.Background()
	_, _ = h.ctrl.Submit(ctx, photo(t), "pixel-art")

	if _, err := h.ctrl.RequestDelivery(ctx, domain.DeliveryEmail, "a@example.com"); !errors.Is(err, domain.ErrNotCompleted) {
		t.Fatalf("early delivery error = %v, want ErrNotCompleted", err)
	}
	if mailer.calls != 0 {
		t.Fatalf("mailer called before completion")
	}
	_, _ = h.ctrl.Run(ctx)

	res, err := h.ctrl.RequestDelivery(ctx, domain.DeliveryEmail, "a@example.com")
	if !errors.Is(err, domain.ErrDelivery) || res.OK {
		t.Fatalf("RequestDelivery = %+v, %v; want delivery error", res, err)
	}
	if h.ctrl.Phase(ctx) != domain.PhaseComposited {
		t.Fatalf("phase changed to %s after delivery failure", h.ctrl.Phase(ctx))
	}

	mailer.err = nil
	res, err = h.ctrl.RequestDelivery(ctx, domain.DeliveryEmail, "a@example.com")
	if err != nil || !res.OK {
		t.Fatalf("retry = %+v, %v", res, err)
	}
	if mailer.calls != 2 || mailer.style != domain.StylePixelArt {
		t.Fatalf("mailer calls = %d, style = %s", mailer.calls, mailer.style)
	}
	snap, _ := h.ctrl.Snapshot(ctx)
	if snap.Delivery == nil || !snap.Delivery.OK || snap.Delivery.Kind != domain.DeliveryEmail {
		t.Fatalf("recorded delivery = %+v", snap.Delivery)
	}
}

func TestDriveDeliveryRecordsShareLink(t *testing.T) {
	drive := &fakeDrive{}
	h := newHarness(t, func(o *Options) { o.Drive = drive })
	ctx := context.Background()
	_, _ = h.ctrl.Submit(ctx, photo(t), "pixel-art")
	_, _ = h.ctrl.Run(ctx)

	res, err := h.ctrl.RequestDelivery(ctx, domain.DeliveryDrive, "")
	if err != nil {
		t.Fatalf("RequestDelivery error: %v", err)
	}
	if res.FileID != "f1.png" || res.ShareLink != "https://drive.example/f1.png" {
		t.Fatalf("result = %+v", res)
	}
	if !h.ctrl.Capabilities().Drive {
		t.Fatalf("drive capability not reported")
	}
}

func TestRecoverFailsInterruptedJob(t *testing.T) {
	store := NewMemoryStore()
	now := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	persisted := &domain.Job{
		ID:      uuid.New(),
		Style:   domain.StylePixelArt,
		Phase:   domain.PhaseAnalyzed,
		Staging: &domain.StagingHandle{PublicURL: "https://i.ibb.co/x.png", RevocationToken: "https://ibb.co/x/del"},
	}
	_ = store.Save(context.Background(), persisted)

	h := newHarness(t, func(o *Options) {
		o.Store = store
		o.Now = func() time.Time { return now }
	})
	job, err := h.ctrl.Recover(context.Background())
	if err != nil {
		t.Fatalf("Recover error: %v", err)
	}
	if job.Phase != domain.PhaseFailed || job.Failure == nil || job.Failure.Reason != domain.FailureInterrupted {
		t.Fatalf("recovered job = %+v", job)
	}
	if h.stager.revokeCalls != 1 || !job.StagingRevoked {
		t.Fatalf("revoke calls = %d, revoked = %v", h.stager.revokeCalls, job.StagingRevoked)
	}
	if _, err := h.ctrl.Recover(context.Background()); err != nil {
		t.Fatalf("second Recover error: %v", err)
	}
	if h.stager.revokeCalls != 1 {
		t.Fatalf("second Recover revoked again")
	}
	if h.synth.calls != 0 {
		t.Fatalf("Recover called synthesizer")
	}
}

func TestRecoverWithoutJob(t *testing.T) {
	h := newHarness(t, nil)
	job, err := h.ctrl.Recover(context.Background())
	if err != nil || job != nil {
		t.Fatalf("Recover = %+v, %v; want nil, nil", job, err)
	}
}

func TestNewControllerRequiresProviders(t *testing.T) {
	if _, err := NewController(Options{WatermarkURL: "x"}); err == nil {
		t.Fatalf("expected error without providers")
	}
}

type blockingAnalyzer struct {
	started chan struct{}
	release chan struct{}
}

func (b *blockingAnalyzer) Analyze(ctx context.Context, ref vision.ImageRef) (string, error) {
	close(b.started)
	select {
	case <-b.release:
		return "old man with a white beard", nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func TestSubmitDoesNotWaitForRunningStep(t *testing.T) {
	analyzer := &blockingAnalyzer{started: make(chan struct{}), release: make(chan struct{})}
	h := newHarness(t, func(o *Options) { o.Analyzer = analyzer })
	ctx := context.Background()
	if _, err := h.ctrl.Submit(ctx, photo(t), "pixel-art"); err != nil {
		t.Fatalf("Submit error: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := h.ctrl.Run(ctx)
		done <- err
	}()
	<-analyzer.started

	result := make(chan error, 1)
	go func() {
		_, err := h.ctrl.Submit(ctx, photo(t), "3d-render")
		result <- err
	}()
	select {
	case err := <-result:
		if !errors.Is(err, domain.ErrJobInFlight) {
			t.Fatalf("Submit error = %v, want ErrJobInFlight", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Submit blocked while analysis was running")
	}

	close(analyzer.release)
	if err := <-done; err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if h.stager.revokeCalls != 1 {
		t.Fatalf("revoke calls = %d, want 1", h.stager.revokeCalls)
	}
}

type blockingEmailer struct {
	started chan struct{}
	release chan struct{}
}

func (b *blockingEmailer) Send(ctx context.Context, to string, image []byte, style domain.Style) error {
	close(b.started)
	<-b.release
	return nil
}

func TestSubmitDoesNotWaitForDelivery(t *testing.T) {
	mailer := &blockingEmailer{started: make(chan struct{}), release: make(chan struct{})}
	h := newHarness(t, func(o *Options) { o.Emailer = mailer })
	ctx := context.Background()
	if _, err := h.ctrl.Submit(ctx, photo(t), "pixel-art"); err != nil {
		t.Fatalf("Submit error: %v", err)
	}
	if _, err := h.ctrl.Run(ctx); err != nil {
		t.Fatalf("Run error: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := h.ctrl.RequestDelivery(ctx, domain.DeliveryEmail, "player@example.com")
		done <- err
	}()
	<-mailer.started

	if _, err := h.ctrl.Submit(ctx, photo(t), "3d-render"); !errors.Is(err, domain.ErrJobInFlight) {
		t.Fatalf("Submit during delivery error = %v, want ErrJobInFlight", err)
	}
	close(mailer.release)
	if err := <-done; err != nil {
		t.Fatalf("RequestDelivery error: %v", err)
	}
	if _, err := h.ctrl.Submit(ctx, photo(t), "3d-render"); err != nil {
		t.Fatalf("Submit after delivery error: %v", err)
	}
}

func TestRecoverFailsCompositedJobWithoutImage(t *testing.T) {
	store := NewMemoryStore()
	persisted := &domain.Job{
		ID:                uuid.New(),
		Style:             domain.StylePixelArt,
		Phase:             domain.PhaseComposited,
		Description:       "girl with red pigtails",
		GeneratedImageURL: "https://images.example/generated.png",
		Staging:           &domain.StagingHandle{PublicURL: "https://i.ibb.co/x.png", RevocationToken: "https://ibb.co/x/del"},
		StagingRevoked:    true,
	}
	_ = store.Save(context.Background(), persisted)

	h := newHarness(t, func(o *Options) { o.Store = store })
	ctx := context.Background()
	job, err := h.ctrl.Recover(ctx)
	if err != nil {
		t.Fatalf("Recover error: %v", err)
	}
	if job.Phase != domain.PhaseFailed || job.Failure == nil || job.Failure.Reason != domain.FailureInterrupted {
		t.Fatalf("recovered job = %+v", job)
	}
	if h.stager.revokeCalls != 0 {
		t.Fatalf("revoke calls = %d, want 0 for a revoked handle", h.stager.revokeCalls)
	}
	if got := h.ctrl.Phase(ctx); got != domain.PhaseFailed {
		t.Fatalf("Phase = %s, want failed", got)
	}
	if _, err := h.ctrl.FinalImage(ctx); !errors.Is(err, domain.ErrNotCompleted) {
		t.Fatalf("FinalImage error = %v, want ErrNotCompleted", err)
	}
	if _, err := h.ctrl.Submit(ctx, photo(t), "3d-render"); err != nil {
		t.Fatalf("Submit after recovery error: %v", err)
	}
}
