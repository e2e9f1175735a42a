// Package pipeline drives one portrait job through staging, analysis,
// synthesis and compositing, and owns the staging cleanup guarantee.
package pipeline

import (
	"errors"
	"fmt"

	"gamechar/internal/domain"
)

// Event is the outcome of one pipeline step.
type Event string

const (
	EventStaged      Event = "staged"
	EventAnalyzed    Event = "analyzed"
	EventSynthesized Event = "synthesized"
	EventComposited  Event = "composited"
	EventFailed      Event = "failed"
)

// ErrIllegalTransition is returned for an event the phase does not accept.
var ErrIllegalTransition = errors.New("illegal transition")

var forward = map[domain.Phase]struct {
	event Event
	next  domain.Phase
}{
	domain.PhaseIdle:        {EventStaged, domain.PhaseStaged},
	domain.PhaseStaged:      {EventAnalyzed, domain.PhaseAnalyzed},
	domain.PhaseAnalyzed:    {EventSynthesized, domain.PhaseSynthesized},
	domain.PhaseSynthesized: {EventComposited, domain.PhaseComposited},
}

// Transition is the pure state function of the job lifecycle. Terminal
// phases accept no events.
func Transition(from domain.Phase, ev Event) (domain.Phase, error) {
	step, ok := forward[from]
	if !ok {
		return from, fmt.Errorf("%w: %s on %s", ErrIllegalTransition, ev, from)
	}
	switch ev {
	case step.event:
		return step.next, nil
	case EventFailed:
		return domain.PhaseFailed, nil
	default:
		return from, fmt.Errorf("%w: %s on %s", ErrIllegalTransition, ev, from)
	}
}

// failureFor names the failure reason of the step that runs in phase p.
func failureFor(p domain.Phase) domain.FailureReason {
	switch p {
	case domain.PhaseIdle:
		return domain.FailureStaging
	case domain.PhaseStaged:
		return domain.FailureAnalysis
	case domain.PhaseAnalyzed:
		return domain.FailureSynthesis
	default:
		return domain.FailureComposition
	}
}
