// Package handlers implements the kiosk HTTP API on top of the pipeline
// controller.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"

	"gamechar/internal/delivery"
	"gamechar/internal/domain"
	"gamechar/internal/infra"
	"gamechar/internal/messages"
	"gamechar/internal/middleware"
	"gamechar/internal/pipeline"
)

// Pipeline is the part of the controller the handlers drive.
type Pipeline interface {
	Submit(ctx context.Context, image []byte, style string) (*domain.Job, error)
	Advance(ctx context.Context) (domain.Phase, error)
	Run(ctx context.Context) (domain.Phase, error)
	Snapshot(ctx context.Context) (*domain.Job, error)
	FinalImage(ctx context.Context) ([]byte, error)
	Preview(ctx context.Context) ([]byte, error)
	RequestDelivery(ctx context.Context, kind domain.DeliveryKind, target string) (domain.DeliveryResult, error)
	Capabilities() pipeline.Capabilities
	Styles() []domain.StyleInfo
}

var _ Pipeline = (*pipeline.Controller)(nil)

// App holds handler dependencies.
type App struct {
	Pipeline       Pipeline
	Logger         *infra.Logger
	MaxUploadBytes int64

	// base is the parent of background pipeline runs; cancelling it on
	// shutdown fails the running step, which still revokes staging.
	base    context.Context
	stopAll context.CancelFunc
	runs    sync.WaitGroup
}

func NewApp(p Pipeline, logger *infra.Logger, maxUploadBytes int64) *App {
	if logger == nil {
		l := infra.DiscardLogger()
		logger = &l
	}
	if maxUploadBytes <= 0 {
		maxUploadBytes = 20 << 20
	}
	base, cancel := context.WithCancel(context.Background())
	return &App{Pipeline: p, Logger: logger, MaxUploadBytes: maxUploadBytes, base: base, stopAll: cancel}
}

// Shutdown cancels background runs and waits for them to finish their
// cleanup, or for ctx to expire.
func (a *App) Shutdown(ctx context.Context) error {
	a.stopAll()
	done := make(chan struct{})
	go func() {
		a.runs.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// error writes a localized JSON error for err, choosing status and code from
// the domain sentinel it wraps.
func (a *App) error(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		a.Logger.Error().Err(err).Str("request_id", middleware.RequestIDFromContext(r.Context())).Msg("request failed")
	}
	a.json(w, status, errorResponse{Error: code, Message: messages.Error(middleware.LocaleFromContext(r.Context()), err)})
}

func (a *App) badRequest(w http.ResponseWriter, r *http.Request, code string) {
	a.json(w, http.StatusBadRequest, errorResponse{
		Error:   code,
		Message: messages.Text(middleware.LocaleFromContext(r.Context()), messages.KeyInvalidRequest),
	})
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrJobInFlight):
		return http.StatusConflict, "job_in_flight"
	case errors.Is(err, domain.ErrNotCompleted):
		return http.StatusConflict, "not_completed"
	case errors.Is(err, domain.ErrEmptyImage):
		return http.StatusBadRequest, "empty_image"
	case errors.Is(err, domain.ErrUnknownStyle):
		return http.StatusBadRequest, "unknown_style"
	case errors.Is(err, delivery.ErrInvalidRecipient):
		return http.StatusBadRequest, "invalid_recipient"
	case errors.Is(err, domain.ErrNoJob):
		return http.StatusNotFound, "no_job"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrDeliveryUnavailable):
		return http.StatusServiceUnavailable, "delivery_unavailable"
	case errors.Is(err, domain.ErrDelivery):
		return http.StatusBadGateway, "delivery_failed"
	default:
		return http.StatusInternalServerError, "internal"
	}
}
