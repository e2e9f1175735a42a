package domain

import "errors"

var (
	ErrNotFound = errors.New("not found")

	// Pipeline step failures. Providers wrap these with %w.
	ErrStaging     = errors.New("staging failed")
	ErrAnalysis    = errors.New("analysis failed")
	ErrSynthesis   = errors.New("synthesis failed")
	ErrComposition = errors.New("composition failed")
	ErrDelivery    = errors.New("delivery failed")

	// ErrCleanup is a warning: it is reported next to a job outcome, never instead of it.
	ErrCleanup = errors.New("staging cleanup failed")

	ErrJobInFlight         = errors.New("a job is already in progress")
	ErrNoJob               = errors.New("no job submitted")
	ErrNotCompleted        = errors.New("job has not completed")
	ErrDeliveryUnavailable = errors.New("delivery channel unavailable")
	ErrUnknownStyle        = errors.New("unknown style")
	ErrEmptyImage          = errors.New("image is empty")
)
