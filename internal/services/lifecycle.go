package services

import (
	"fmt"
	"time"

	"confidential-market/internal/models"
)

// Event drives a market from one phase to the next.
type Event string

const (
	EventClose         Event = "close"
	EventRequestReveal Event = "request_reveal"
	EventResolve       Event = "resolve"
	EventTimeout       Event = "timeout"
	EventCancel        Event = "cancel"
)

// transitions is the complete phase graph. Terminal phases have no entry.
var transitions = map[models.MarketPhase]map[Event]models.MarketPhase{
	models.PhaseOpen: {
		EventClose:         models.PhaseClosed,
		EventRequestReveal: models.PhaseRevealRequested,
		EventCancel:        models.PhaseCancelled,
	},
	models.PhaseClosed: {
		EventRequestReveal: models.PhaseRevealRequested,
		EventCancel:        models.PhaseCancelled,
	},
	models.PhaseRevealRequested: {
		EventResolve: models.PhaseResolved,
		EventTimeout: models.PhaseRefundEligible,
		EventCancel:  models.PhaseCancelled,
	},
}

// NextPhase returns the phase ev leads to from `from`.
func NextPhase(from models.MarketPhase, ev Event) (models.MarketPhase, bool) {
	to, ok := transitions[from][ev]
	return to, ok
}

// transition is the only place a market's phase is written after creation.
// An invalid edge leaves the market untouched.
func transition(m *models.Market, ev Event, at time.Time) error {
	to, ok := NextPhase(m.Phase, ev)
	if !ok {
		return fmt.Errorf("%w: cannot %s a %s market", ErrInvalidPhase, ev, m.Phase)
	}
	m.Phase = to
	switch to {
	case models.PhaseClosed:
		m.ClosedAt = &at
	case models.PhaseRevealRequested:
		if m.ClosedAt == nil {
			m.ClosedAt = &at
		}
	case models.PhaseResolved:
		m.ResolvedAt = &at
	case models.PhaseRefundEligible, models.PhaseCancelled:
		m.RefundEligibleAt = &at
	}
	return nil
}
