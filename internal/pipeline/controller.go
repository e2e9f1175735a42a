package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"gamechar/internal/composite"
	"gamechar/internal/delivery"
	"gamechar/internal/domain"
	"gamechar/internal/infra"
	"gamechar/internal/providers/vision"
)

// Stager publishes the input photo at a temporary public URL and revokes it.
type Stager interface {
	Stage(ctx context.Context, image []byte) (domain.StagingHandle, error)
	Revoke(ctx context.Context, handle domain.StagingHandle) bool
}

// Synthesizer generates a portrait for a style and description.
type Synthesizer interface {
	Synthesize(ctx context.Context, style domain.Style, description string) (string, error)
}

// Compositor stamps the watermark onto a generated portrait.
type Compositor interface {
	Composite(ctx context.Context, imageURL, watermarkURL string) ([]byte, error)
}

// Timeouts bounds each external call.
type Timeouts struct {
	Staging     time.Duration
	Analysis    time.Duration
	Synthesis   time.Duration
	Composition time.Duration
	Delivery    time.Duration
	Revoke      time.Duration
}

// DefaultTimeouts returns the per-call limits used when none are configured.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Staging:     30 * time.Second,
		Analysis:    90 * time.Second,
		Synthesis:   120 * time.Second,
		Composition: 45 * time.Second,
		Delivery:    60 * time.Second,
		Revoke:      15 * time.Second,
	}
}

func (t Timeouts) withDefaults() Timeouts {
	d := DefaultTimeouts()
	if t.Staging <= 0 {
		t.Staging = d.Staging
	}
	if t.Analysis <= 0 {
		t.Analysis = d.Analysis
	}
	if t.Synthesis <= 0 {
		t.Synthesis = d.Synthesis
	}
	if t.Composition <= 0 {
		t.Composition = d.Composition
	}
	if t.Delivery <= 0 {
		t.Delivery = d.Delivery
	}
	if t.Revoke <= 0 {
		t.Revoke = d.Revoke
	}
	return t
}

// Options wires a Controller. Emailer and Drive are optional; a nil channel is
// reported as unavailable.
type Options struct {
	Stager       Stager
	Analyzer     vision.Analyzer
	Synthesizer  Synthesizer
	Compositor   Compositor
	Emailer      delivery.Emailer
	Drive        delivery.Drive
	Store        Store
	Catalog      *domain.StyleCatalog
	WatermarkURL string
	PreviewSize  int
	Timeouts     Timeouts
	Logger       *infra.Logger
	Now          func() time.Time
}

// Capabilities lists the delivery channels that are configured.
type Capabilities struct {
	Email bool `json:"email"`
	Drive bool `json:"drive"`
}

// Controller owns the session's job. Advance calls are serialized so no two
// steps ever run at once; readers see the last saved record.
type Controller struct {
	stager       Stager
	analyzer     vision.Analyzer
	synthesizer  Synthesizer
	compositor   Compositor
	emailer      delivery.Emailer
	drive        delivery.Drive
	store        Store
	catalog      *domain.StyleCatalog
	watermarkURL string
	previewSize  int
	timeouts     Timeouts
	logger       *infra.Logger
	now          func() time.Time

	mu sync.Mutex
}

func NewController(opts Options) (*Controller, error) {
	if opts.Stager == nil || opts.Analyzer == nil || opts.Synthesizer == nil || opts.Compositor == nil {
		return nil, errors.New("pipeline: stager, analyzer, synthesizer and compositor are required")
	}
	if strings.TrimSpace(opts.WatermarkURL) == "" {
		return nil, errors.New("pipeline: watermark url is required")
	}
	c := &Controller{
		stager:       opts.Stager,
		analyzer:     opts.Analyzer,
		synthesizer:  opts.Synthesizer,
		compositor:   opts.Compositor,
		emailer:      opts.Emailer,
		drive:        opts.Drive,
		store:        opts.Store,
		catalog:      opts.Catalog,
		watermarkURL: opts.WatermarkURL,
		previewSize:  opts.PreviewSize,
		timeouts:     opts.Timeouts.withDefaults(),
		logger:       opts.Logger,
		now:          opts.Now,
	}
	if c.store == nil {
		c.store = NewMemoryStore()
	}
	if c.catalog == nil {
		c.catalog = domain.DefaultStyleCatalog()
	}
	if c.previewSize <= 0 {
		c.previewSize = composite.DefaultPreviewSize
	}
	if c.logger == nil {
		l := infra.DiscardLogger()
		c.logger = &l
	}
	if c.now == nil {
		c.now = time.Now
	}
	return c, nil
}

// Capabilities reports which delivery channels may be offered to the user.
func (c *Controller) Capabilities() Capabilities {
	return Capabilities{Email: c.emailer != nil, Drive: c.drive != nil}
}

// Styles lists the selectable styles.
func (c *Controller) Styles() []domain.StyleInfo {
	return c.catalog.List()
}

// Submit starts a new job for image in the named style. The previous job is
// discarded when it is terminal; a job still in flight makes Submit fail with
// domain.ErrJobInFlight. Submit never waits behind a running step or
// delivery: it fails with domain.ErrJobInFlight instead. Submit issues no
// provider calls.
func (c *Controller) Submit(ctx context.Context, image []byte, style string) (*domain.Job, error) {
	if len(image) == 0 {
		return nil, domain.ErrEmptyImage
	}
	resolved, err := c.catalog.Resolve(style)
	if err != nil {
		return nil, err
	}

	if prev, err := c.store.Load(ctx); err == nil && !prev.Phase.Terminal() {
		return nil, domain.ErrJobInFlight
	}
	if !c.mu.TryLock() {
		return nil, domain.ErrJobInFlight
	}
	defer c.mu.Unlock()

	prev, err := c.store.Load(ctx)
	switch {
	case errors.Is(err, domain.ErrNoJob):
	case err != nil:
		return nil, err
	case !prev.Phase.Terminal():
		return nil, domain.ErrJobInFlight
	case prev.NeedsCleanup():
		c.cleanup(ctx, prev)
		if err := c.store.Save(context.WithoutCancel(ctx), prev); err != nil {
			return nil, err
		}
	}

	job := domain.NewJob(image, resolved, c.now())
	if preview, err := composite.Thumbnail(image, c.previewSize); err != nil {
		c.logger.Warn().Err(err).Str("job_id", job.ID.String()).Msg("pipeline: preview unavailable")
	} else {
		job.Preview = preview
	}
	if err := c.store.Clear(ctx); err != nil {
		return nil, err
	}
	if err := c.store.Save(ctx, job); err != nil {
		return nil, err
	}
	c.logger.Info().Str("job_id", job.ID.String()).Str("style", string(resolved)).Int("bytes", len(image)).Msg("pipeline: job submitted")
	return job.Clone(), nil
}

// Advance applies the next step the stored record has not yet reached and
// saves the result. On a terminal record it only finishes a pending staging
// revoke, so repeated calls issue no further provider requests. Step failures
// are recorded on the job, not returned.
func (c *Controller) Advance(ctx context.Context) (phase domain.Phase, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	job, err := c.store.Load(ctx)
	if err != nil {
		return domain.PhaseIdle, err
	}
	if job.Phase.Terminal() && !job.NeedsCleanup() {
		return job.Phase, nil
	}

	defer func() {
		c.cleanup(ctx, job)
		if job.Phase.Terminal() {
			job.OriginalImage = nil
			job.Preview = nil
		}
		job.UpdatedAt = c.now()
		if serr := c.store.Save(context.WithoutCancel(ctx), job); serr != nil && err == nil {
			err = serr
		}
		phase = job.Phase
	}()

	if job.Phase.Terminal() {
		return job.Phase, nil
	}
	return job.Phase, c.step(ctx, job)
}

// Run advances the job until it is terminal.
func (c *Controller) Run(ctx context.Context) (domain.Phase, error) {
	for {
		phase, err := c.Advance(ctx)
		if err != nil || phase.Terminal() {
			return phase, err
		}
	}
}

// Phase returns the phase of the current job, or idle when there is none.
func (c *Controller) Phase(ctx context.Context) domain.Phase {
	job, err := c.store.Load(ctx)
	if err != nil {
		return domain.PhaseIdle
	}
	return job.Phase
}

// Snapshot returns a copy of the current job record.
func (c *Controller) Snapshot(ctx context.Context) (*domain.Job, error) {
	return c.store.Load(ctx)
}

// FinalImage returns the composited portrait of a completed job.
func (c *Controller) FinalImage(ctx context.Context) ([]byte, error) {
	job, err := c.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	if job.Phase != domain.PhaseComposited || len(job.FinalImage) == 0 {
		return nil, domain.ErrNotCompleted
	}
	return job.FinalImage, nil
}

// Preview returns the thumbnail of the submitted photo while the job runs.
func (c *Controller) Preview(ctx context.Context) ([]byte, error) {
	job, err := c.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	if len(job.Preview) == 0 {
		return nil, domain.ErrNotFound
	}
	return job.Preview, nil
}

// RequestDelivery sends the final image by email (target is the address) or
// uploads it to the drive folder. The outcome is recorded on the job; a
// failure never changes the job phase, so the user may retry.
func (c *Controller) RequestDelivery(ctx context.Context, kind domain.DeliveryKind, target string) (domain.DeliveryResult, error) {
	switch kind {
	case domain.DeliveryEmail:
		if c.emailer == nil {
			return domain.DeliveryResult{}, fmt.Errorf("%w: email", domain.ErrDeliveryUnavailable)
		}
	case domain.DeliveryDrive:
		if c.drive == nil {
			return domain.DeliveryResult{}, fmt.Errorf("%w: drive", domain.ErrDeliveryUnavailable)
		}
	default:
		return domain.DeliveryResult{}, fmt.Errorf("%w: unknown kind %q", domain.ErrDeliveryUnavailable, kind)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	job, err := c.store.Load(ctx)
	if err != nil {
		return domain.DeliveryResult{}, err
	}
	if job.Phase != domain.PhaseComposited || len(job.FinalImage) == 0 {
		return domain.DeliveryResult{}, domain.ErrNotCompleted
	}

	dctx, cancel := context.WithTimeout(ctx, c.timeouts.Delivery)
	defer cancel()

	result := domain.DeliveryResult{Kind: kind, Target: target}
	var derr error
	switch kind {
	case domain.DeliveryEmail:
		derr = c.emailer.Send(dctx, target, job.FinalImage, job.Style)
	case domain.DeliveryDrive:
		var up delivery.Upload
		up, derr = c.drive.Upload(dctx, job.FinalImage)
		result.FileID, result.ShareLink = up.FileID, up.ShareLink
		result.Target = up.ShareLink
	}
	if derr != nil && !errors.Is(derr, domain.ErrDelivery) {
		derr = fmt.Errorf("%w: %w", domain.ErrDelivery, derr)
	}
	result.OK = derr == nil
	result.At = c.now()
	if derr != nil {
		result.Message = derr.Error()
	}
	deliveriesTotal.WithLabelValues(string(kind), outcome(result.OK)).Inc()

	log := c.logger.Info()
	if derr != nil {
		log = c.logger.Warn().Err(derr)
	}
	log.Str("job_id", job.ID.String()).Str("kind", string(kind)).Bool("ok", result.OK).Msg("pipeline: delivery attempted")

	job.Delivery = &result
	job.UpdatedAt = c.now()
	if err := c.store.Save(context.WithoutCancel(ctx), job); err != nil {
		return result, err
	}
	return result, derr
}

// Recover finishes a record left behind by a previous process. A job that is
// not terminal but has lost its photo bytes can never progress, and a
// composited job without its portrait cannot be shown or delivered, so both
// are failed as interrupted; the staging handle is then revoked once.
func (c *Controller) Recover(ctx context.Context) (*domain.Job, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	job, err := c.store.Load(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrNoJob) {
			return nil, nil
		}
		return nil, err
	}
	changed := false
	switch {
	case !job.Phase.Terminal() && len(job.OriginalImage) == 0:
		c.logger.Warn().Str("job_id", job.ID.String()).Str("phase", string(job.Phase)).Msg("pipeline: failing interrupted job")
		job.Failure = &domain.Failure{Reason: domain.FailureInterrupted, Message: "process restarted while the job was " + string(job.Phase)}
		job.Phase = domain.PhaseFailed
		changed = true
	case job.Phase == domain.PhaseComposited && len(job.FinalImage) == 0:
		// Only metadata is persisted, so the portrait did not survive.
		c.logger.Warn().Str("job_id", job.ID.String()).Msg("pipeline: final image lost on restart")
		job.Failure = &domain.Failure{Reason: domain.FailureInterrupted, Message: "process restarted after the portrait was composited; the image was not kept"}
		job.Phase = domain.PhaseFailed
		changed = true
	}
	if job.NeedsCleanup() {
		c.cleanup(ctx, job)
		changed = true
	}
	if changed {
		job.UpdatedAt = c.now()
		if err := c.store.Save(context.WithoutCancel(ctx), job); err != nil {
			return nil, err
		}
	}
	return job.Clone(), nil
}

// step runs the provider call for the job's current phase.
func (c *Controller) step(ctx context.Context, job *domain.Job) error {
	from := job.Phase
	name := string(failureFor(from))
	log := c.logger.With().Str("job_id", job.ID.String()).Str("step", name).Logger()
	start := time.Now()

	ev, err := c.call(ctx, job)
	stepSeconds.WithLabelValues(name).Observe(time.Since(start).Seconds())
	stepsTotal.WithLabelValues(name, outcome(err == nil)).Inc()
	if err != nil {
		ev = EventFailed
		job.Failure = &domain.Failure{Reason: failureFor(from), Message: err.Error()}
		log.Warn().Err(err).Dur("took", time.Since(start)).Msg("pipeline: step failed")
	}

	next, terr := Transition(from, ev)
	if terr != nil {
		return terr
	}
	job.Phase = next
	if err == nil {
		log.Info().Str("phase", string(next)).Dur("took", time.Since(start)).Msg("pipeline: step done")
	}
	return nil
}

// call performs one provider call and stores its output on the job.
func (c *Controller) call(ctx context.Context, job *domain.Job) (Event, error) {
	switch job.Phase {
	case domain.PhaseIdle:
		if len(job.OriginalImage) == 0 {
			return "", fmt.Errorf("%w: %w", domain.ErrStaging, domain.ErrEmptyImage)
		}
		sctx, cancel := context.WithTimeout(ctx, c.timeouts.Staging)
		defer cancel()
		handle, err := c.stager.Stage(sctx, job.OriginalImage)
		if err != nil {
			return "", wrapStep(domain.ErrStaging, err)
		}
		job.Staging = &handle
		return EventStaged, nil

	case domain.PhaseStaged:
		if job.Staging == nil {
			return "", fmt.Errorf("%w: no staging handle", domain.ErrAnalysis)
		}
		actx, cancel := context.WithTimeout(ctx, c.timeouts.Analysis)
		defer cancel()
		ref := vision.ImageRef{URL: job.Staging.PublicURL, Data: job.OriginalImage}
		desc, err := c.analyzer.Analyze(actx, ref)
		if err != nil {
			return "", wrapStep(domain.ErrAnalysis, err)
		}
		if strings.TrimSpace(desc) == "" {
			return "", fmt.Errorf("%w: empty description", domain.ErrAnalysis)
		}
		job.Description = strings.TrimSpace(desc)
		return EventAnalyzed, nil

	case domain.PhaseAnalyzed:
		sctx, cancel := context.WithTimeout(ctx, c.timeouts.Synthesis)
		defer cancel()
		url, err := c.synthesizer.Synthesize(sctx, job.Style, job.Description)
		if err != nil {
			return "", wrapStep(domain.ErrSynthesis, err)
		}
		if strings.TrimSpace(url) == "" {
			return "", fmt.Errorf("%w: empty image url", domain.ErrSynthesis)
		}
		job.GeneratedImageURL = url
		return EventSynthesized, nil

	case domain.PhaseSynthesized:
		cctx, cancel := context.WithTimeout(ctx, c.timeouts.Composition)
		defer cancel()
		data, err := c.compositor.Composite(cctx, job.GeneratedImageURL, c.watermarkURL)
		if err != nil {
			return "", wrapStep(domain.ErrComposition, err)
		}
		if len(data) == 0 {
			return "", fmt.Errorf("%w: empty output", domain.ErrComposition)
		}
		job.FinalImage = data
		return EventComposited, nil
	}
	return "", fmt.Errorf("%w: no step for %s", ErrIllegalTransition, job.Phase)
}

// cleanup revokes the staging handle of a terminal job exactly once. It uses
// a context detached from the caller so cancellation cannot skip it, and a
// failed revoke is kept as a warning next to the job outcome.
func (c *Controller) cleanup(ctx context.Context, job *domain.Job) {
	if !job.NeedsCleanup() {
		return
	}
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeouts.Revoke)
	defer cancel()

	ok := c.stager.Revoke(rctx, *job.Staging)
	job.StagingRevoked = true
	revocationsTotal.WithLabelValues(outcome(ok)).Inc()
	if !ok {
		job.CleanupWarning = fmt.Sprintf("%v: %s", domain.ErrCleanup, job.Staging.PublicURL)
		c.logger.Warn().Str("job_id", job.ID.String()).Str("url", job.Staging.PublicURL).Msg("pipeline: staging revoke failed")
		return
	}
	c.logger.Info().Str("job_id", job.ID.String()).Msg("pipeline: staging revoked")
}

func wrapStep(sentinel, err error) error {
	if errors.Is(err, sentinel) {
		return err
	}
	return fmt.Errorf("%w: %w", sentinel, err)
}
