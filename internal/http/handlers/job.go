package handlers

import (
	"bytes"
	"io"
	"net/http"
	"strings"
	"time"

	"gamechar/internal/delivery"
	"gamechar/internal/domain"
	"gamechar/internal/messages"
	"gamechar/internal/middleware"
)

type failureView struct {
	Reason  string `json:"reason"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

type jobView struct {
	ID                string                 `json:"id"`
	Style             string                 `json:"style"`
	Phase             string                 `json:"phase"`
	Terminal          bool                   `json:"terminal"`
	Failure           *failureView           `json:"failure,omitempty"`
	CleanupWarning    string                 `json:"cleanup_warning,omitempty"`
	Description       string                 `json:"description,omitempty"`
	GeneratedImageURL string                 `json:"generated_image_url,omitempty"`
	HasFinalImage     bool                   `json:"has_final_image"`
	HasPreview        bool                   `json:"has_preview"`
	Delivery          *domain.DeliveryResult `json:"delivery,omitempty"`
	CreatedAt         time.Time              `json:"created_at"`
	UpdatedAt         time.Time              `json:"updated_at"`
}

func newJobView(job *domain.Job, locale string) jobView {
	v := jobView{
		ID:                job.ID.String(),
		Style:             string(job.Style),
		Phase:             string(job.Phase),
		Terminal:          job.Phase.Terminal(),
		Description:       job.Description,
		GeneratedImageURL: job.GeneratedImageURL,
		HasFinalImage:     job.Phase == domain.PhaseComposited && len(job.FinalImage) > 0,
		HasPreview:        len(job.Preview) > 0,
		Delivery:          job.Delivery,
		CreatedAt:         job.CreatedAt,
		UpdatedAt:         job.UpdatedAt,
	}
	if job.Failure != nil {
		v.Failure = &failureView{
			Reason:  string(job.Failure.Reason),
			Message: messages.Failure(locale, job.Failure.Reason),
			Detail:  job.Failure.Message,
		}
	}
	if job.CleanupWarning != "" {
		v.CleanupWarning = messages.Text(locale, messages.KeyCleanupWarning)
	}
	return v
}

// SubmitJob accepts a multipart photo upload and runs the pipeline in the
// background. The response carries the new idle job.
func (a *App) SubmitJob(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, a.MaxUploadBytes+1<<20)
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		a.badRequest(w, r, "invalid_form")
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, _, err := r.FormFile("image")
	if err != nil {
		a.error(w, r, domain.ErrEmptyImage)
		return
	}
	defer file.Close()
	var buf bytes.Buffer
	n, err := io.Copy(&buf, io.LimitReader(file, a.MaxUploadBytes+1))
	if err != nil {
		a.badRequest(w, r, "invalid_form")
		return
	}
	if n > a.MaxUploadBytes {
		a.json(w, http.StatusRequestEntityTooLarge, errorResponse{
			Error:   "image_too_large",
			Message: messages.Text(middleware.LocaleFromContext(r.Context()), messages.KeyInvalidRequest),
		})
		return
	}

	job, err := a.Pipeline.Submit(r.Context(), buf.Bytes(), strings.TrimSpace(r.FormValue("style")))
	if err != nil {
		a.error(w, r, err)
		return
	}

	a.runs.Add(1)
	go func(id string) {
		defer a.runs.Done()
		phase, err := a.Pipeline.Run(a.base)
		if err != nil {
			a.Logger.Error().Err(err).Str("job_id", id).Msg("pipeline run stopped")
			return
		}
		a.Logger.Info().Str("job_id", id).Str("phase", string(phase)).Msg("pipeline run finished")
	}(job.ID.String())

	a.json(w, http.StatusAccepted, newJobView(job, middleware.LocaleFromContext(r.Context())))
}

// GetJob returns the current job record.
func (a *App) GetJob(w http.ResponseWriter, r *http.Request) {
	job, err := a.Pipeline.Snapshot(r.Context())
	if err != nil {
		a.error(w, r, err)
		return
	}
	a.json(w, http.StatusOK, newJobView(job, middleware.LocaleFromContext(r.Context())))
}

// AdvanceJob applies the next pending step synchronously. It is safe to call
// while a background run is active; both are serialized by the controller.
func (a *App) AdvanceJob(w http.ResponseWriter, r *http.Request) {
	if _, err := a.Pipeline.Advance(r.Context()); err != nil {
		a.error(w, r, err)
		return
	}
	a.GetJob(w, r)
}

// JobImage streams the final PNG of a completed job.
func (a *App) JobImage(w http.ResponseWriter, r *http.Request) {
	data, err := a.Pipeline.FinalImage(r.Context())
	if err != nil {
		a.error(w, r, err)
		return
	}
	name := "game-character.png"
	if job, err := a.Pipeline.Snapshot(r.Context()); err == nil {
		name = delivery.AttachmentName(job.Style)
	}
	if r.URL.Query().Get("download") != "" {
		w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	}
	a.png(w, data)
}

// JobPreview streams the thumbnail of the submitted photo.
func (a *App) JobPreview(w http.ResponseWriter, r *http.Request) {
	data, err := a.Pipeline.Preview(r.Context())
	if err != nil {
		a.error(w, r, err)
		return
	}
	a.png(w, data)
}

func (a *App) png(w http.ResponseWriter, data []byte) {
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
