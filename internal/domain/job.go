package domain

import (
	"time"

	"github.com/google/uuid"
)

// Phase enumerates the job lifecycle states. Values are stable and persisted.
type Phase string

const (
	PhaseIdle        Phase = "idle"
	PhaseStaged      Phase = "staged"
	PhaseAnalyzed    Phase = "analyzed"
	PhaseSynthesized Phase = "synthesized"
	PhaseComposited  Phase = "composited"
	PhaseFailed      Phase = "failed"
)

// Terminal reports whether the phase takes no further automatic action.
func (p Phase) Terminal() bool {
	return p == PhaseComposited || p == PhaseFailed
}

// FailureReason tags the pipeline step that aborted a job.
type FailureReason string

const (
	FailureStaging     FailureReason = "staging"
	FailureAnalysis    FailureReason = "analysis"
	FailureSynthesis   FailureReason = "synthesis"
	FailureComposition FailureReason = "composition"
	// FailureInterrupted marks a job whose process died before it reached a
	// terminal phase.
	FailureInterrupted FailureReason = "interrupted"
)

// Failure is the explicit reason carried by a failed job.
type Failure struct {
	Reason  FailureReason `json:"reason"`
	Message string        `json:"message"`
}

// StagingHandle is the public URL of a staged input image and the token that
// revokes it.
type StagingHandle struct {
	PublicURL       string `json:"public_url"`
	RevocationToken string `json:"revocation_token"`
}

// DeliveryKind enumerates supported delivery channels.
type DeliveryKind string

const (
	DeliveryEmail DeliveryKind = "email"
	DeliveryDrive DeliveryKind = "drive"
)

// DeliveryResult is the outcome of the last delivery attempt.
type DeliveryResult struct {
	Kind      DeliveryKind `json:"kind"`
	OK        bool         `json:"ok"`
	Target    string       `json:"target,omitempty"`
	Message   string       `json:"message,omitempty"`
	FileID    string       `json:"file_id,omitempty"`
	ShareLink string       `json:"share_link,omitempty"`
	At        time.Time    `json:"at"`
}

// Job is the unit of work for one submitted photograph. OriginalImage and
// FinalImage live in process memory only and are never persisted.
type Job struct {
	ID                uuid.UUID
	Style             Style
	Phase             Phase
	Failure           *Failure
	Staging           *StagingHandle
	StagingRevoked    bool
	CleanupWarning    string
	Description       string
	GeneratedImageURL string
	Delivery          *DeliveryResult
	CreatedAt         time.Time
	UpdatedAt         time.Time

	OriginalImage []byte
	Preview       []byte
	FinalImage    []byte
}

// NewJob creates an idle job for the given photo bytes and style.
func NewJob(image []byte, style Style, now time.Time) *Job {
	return &Job{
		ID:            uuid.New(),
		Style:         style,
		Phase:         PhaseIdle,
		OriginalImage: image,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// NeedsCleanup reports whether a staged resource still has to be revoked.
func (j *Job) NeedsCleanup() bool {
	return j != nil && j.Phase.Terminal() && j.Staging != nil && !j.StagingRevoked
}

// Clone returns a copy safe to hand to readers outside the controller lock.
// Byte buffers are shared; they are never mutated in place.
func (j *Job) Clone() *Job {
	if j == nil {
		return nil
	}
	c := *j
	if j.Failure != nil {
		f := *j.Failure
		c.Failure = &f
	}
	if j.Staging != nil {
		s := *j.Staging
		c.Staging = &s
	}
	if j.Delivery != nil {
		d := *j.Delivery
		c.Delivery = &d
	}
	return &c
}
