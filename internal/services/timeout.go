package services

import (
	"context"
	"fmt"
	"math"
	"time"

	"confidential-market/internal/models"
	"confidential-market/internal/repository"

	"go.uber.org/zap"
)

// NoRevealOutstanding is returned by SecondsUntilTimeout when no reveal
// request is waiting for a callback.
const NoRevealOutstanding int64 = -1

// IsTimedOut reports whether the market's reveal request has been waiting
// for at least timeout.
func IsTimedOut(m *models.Market, now time.Time, timeout time.Duration) bool {
	if m.Phase != models.PhaseRevealRequested || m.RevealRequestedAt == nil {
		return false
	}
	return !now.Before(m.RevealRequestedAt.Add(timeout))
}

// SecondsUntilTimeout returns the whole seconds left before ForceTimeout
// becomes possible, 0 once it is, or NoRevealOutstanding.
func SecondsUntilTimeout(m *models.Market, now time.Time, timeout time.Duration) int64 {
	if m.Phase != models.PhaseRevealRequested || m.RevealRequestedAt == nil {
		return NoRevealOutstanding
	}
	remaining := m.RevealRequestedAt.Add(timeout).Sub(now)
	if remaining <= 0 {
		return 0
	}
	return int64(math.Ceil(remaining.Seconds()))
}

// SecondsUntilTimeout looks up a market and reports its timeout countdown.
func (s *MarketService) SecondsUntilTimeout(ctx context.Context, marketID string) (int64, error) {
	m, err := s.GetMarket(ctx, marketID)
	if err != nil {
		return 0, err
	}
	return SecondsUntilTimeout(m, s.now(), s.settings.RevealTimeout), nil
}

// IsTimedOut looks up a market and evaluates the timeout predicate.
func (s *MarketService) IsTimedOut(ctx context.Context, marketID string) (bool, error) {
	m, err := s.GetMarket(ctx, marketID)
	if err != nil {
		return false, err
	}
	return IsTimedOut(m, s.now(), s.settings.RevealTimeout), nil
}

// ForceTimeout moves a stalled market onto the refund path. Anyone may call
// it; the predicate is re-checked under the market lock.
func (s *MarketService) ForceTimeout(ctx context.Context, marketID string) (*models.Market, error) {
	m, err := s.mutate(ctx, marketID, false, func(tx *repository.Repository, m *models.Market) error {
		if m.Phase != models.PhaseRevealRequested {
			return fmt.Errorf("%w: market is %s", ErrInvalidPhase, m.Phase)
		}
		if !IsTimedOut(m, s.now(), s.settings.RevealTimeout) {
			return ErrTimeoutNotReached
		}
		return transition(m, EventTimeout, s.now())
	})
	if err != nil {
		return nil, err
	}
	s.logger.Warn("reveal timed out, market refundable",
		zap.String("market_id", marketID),
		zap.Uint64("request_id", m.RevealRequestID),
	)
	return m, nil
}

// ExpiredOpenMarkets lists open markets whose submission window has ended.
func (s *MarketService) ExpiredOpenMarkets(ctx context.Context, limit int) ([]*models.Market, error) {
	return s.repo.ListExpiredOpenMarkets(ctx, s.now(), limit)
}

// StalledReveals lists markets whose reveal has waited past the timeout.
func (s *MarketService) StalledReveals(ctx context.Context, limit int) ([]*models.Market, error) {
	return s.repo.ListStalledReveals(ctx, s.now().Add(-s.settings.RevealTimeout), limit)
}
