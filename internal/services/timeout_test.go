package services

import (
	"testing"
	"time"

	"confidential-market/internal/models"
)

func TestSecondsUntilTimeoutPure(t *testing.T) {
	requested := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	timeout := 24 * time.Hour

	tests := []struct {
		name  string
		phase models.MarketPhase
		now   time.Time
		want  int64
		out   bool
	}{
		{"just requested", models.PhaseRevealRequested, requested, 86400, false},
		{"partial second rounds up", models.PhaseRevealRequested, requested.Add(500 * time.Millisecond), 86400, false},
		{"one second left", models.PhaseRevealRequested, requested.Add(timeout - time.Second), 1, false},
		{"at deadline", models.PhaseRevealRequested, requested.Add(timeout), 0, true},
		{"past deadline", models.PhaseRevealRequested, requested.Add(48 * time.Hour), 0, true},
		{"resolved", models.PhaseResolved, requested.Add(48 * time.Hour), NoRevealOutstanding, false},
		{"open", models.PhaseOpen, requested, NoRevealOutstanding, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &models.Market{Phase: tt.phase, RevealRequestedAt: &requested}
			if got := SecondsUntilTimeout(m, tt.now, timeout); got != tt.want {
				t.Errorf("expected %d seconds, got %d", tt.want, got)
			}
			if got := IsTimedOut(m, tt.now, timeout); got != tt.out {
				t.Errorf("expected timed out %v, got %v", tt.out, got)
			}
		})
	}
}

func TestSweepQueries(t *testing.T) {
	env := newTestEnv(t, defaultSettings())
	env.createBelief("early", 1)
	env.clock.Advance(30 * time.Minute)
	env.createBelief("late", 1)
	env.clock.Advance(31 * time.Minute)

	expired, err := env.markets.ExpiredOpenMarkets(env.ctx, 10)
	if err != nil {
		t.Fatalf("expired: %v", err)
	}
	if len(expired) != 1 || expired[0].ID != "early" {
		t.Fatalf("expected only early to be expired, got %d", len(expired))
	}

	if _, err := env.reveal.RequestReveal(env.ctx, "early", organizer); err != nil {
		t.Fatalf("request reveal: %v", err)
	}
	stalled, _ := env.markets.StalledReveals(env.ctx, 10)
	if len(stalled) != 0 {
		t.Fatalf("expected no stalled reveals yet, got %d", len(stalled))
	}

	env.clock.Advance(24 * time.Hour)
	stalled, _ = env.markets.StalledReveals(env.ctx, 10)
	if len(stalled) != 1 || stalled[0].ID != "early" {
		t.Fatalf("expected early to be stalled, got %d", len(stalled))
	}
}
