package services

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"

	"confidential-market/internal/confidential"
	"confidential-market/internal/models"
	"confidential-market/internal/oracle"
	"confidential-market/internal/repository"

	"go.uber.org/zap"
)

// RevealService asks the decryption oracle for a market's totals and
// accepts the verified answer.
type RevealService struct {
	repo          *repository.Repository
	markets       *MarketService
	oracle        oracle.Oracle
	verifier      oracle.Verifier
	oracleAccount string
	logger        *zap.Logger
}

func NewRevealService(
	repo *repository.Repository,
	markets *MarketService,
	o oracle.Oracle,
	verifier oracle.Verifier,
	oracleAccount string,
	logger *zap.Logger,
) *RevealService {
	return &RevealService{
		repo:          repo,
		markets:       markets,
		oracle:        o,
		verifier:      verifier,
		oracleAccount: oracleAccount,
		logger:        logger,
	}
}

// RequestReveal submits the market's encrypted totals for decryption and
// returns without waiting for the result. An open market whose window has
// ended is closed first.
func (s *RevealService) RequestReveal(ctx context.Context, marketID, caller string) (*models.Market, error) {
	m, err := s.markets.mutate(ctx, marketID, false, func(tx *repository.Repository, m *models.Market) error {
		now := s.markets.now()
		if !m.Variant.Permissionless() && caller != m.Organizer {
			return ErrUnauthorized
		}
		if m.HasRevealRequest() {
			return ErrAlreadyRequested
		}
		if m.Phase == models.PhaseOpen {
			if now.Before(m.ClosesAt) {
				return ErrMarketStillOpen
			}
			if err := transition(m, EventClose, now); err != nil {
				return err
			}
		}
		if _, ok := NextPhase(m.Phase, EventRequestReveal); !ok {
			return fmt.Errorf("%w: cannot request reveal of a %s market", ErrInvalidPhase, m.Phase)
		}

		handles, err := confidential.ParseHandles(m.EncryptedTotals)
		if err != nil {
			return fmt.Errorf("stored totals corrupt: %w", err)
		}
		acc := s.markets.accumulator(tx)
		for _, h := range handles {
			if err := acc.AuthorizeAccess(ctx, h, s.oracleAccount); err != nil {
				return err
			}
		}

		requestID, err := s.oracle.RequestDecryption(ctx, handles)
		if err != nil {
			return fmt.Errorf("failed to request decryption: %w", err)
		}
		req := &models.RevealRequest{
			RequestID:   requestID,
			MarketID:    m.ID,
			Handles:     m.EncryptedTotals,
			RequestedAt: now,
		}
		if err := tx.CreateRevealRequest(ctx, req); err != nil {
			return fmt.Errorf("failed to store reveal request: %w", err)
		}

		m.RevealRequestID = requestID
		m.RevealRequestedAt = &now
		return transition(m, EventRequestReveal, now)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("reveal requested",
		zap.String("market_id", m.ID),
		zap.Uint64("request_id", m.RevealRequestID),
	)
	return m, nil
}

// HandleCallback accepts the oracle's answer for requestID. Any failure
// leaves the market unchanged and still eligible for timeout.
func (s *RevealService) HandleCallback(ctx context.Context, requestID uint64, clearValues, proof []byte) error {
	req, err := s.repo.GetRevealRequest(ctx, requestID)
	if repository.IsNotFound(err) {
		return ErrUnknownRequest
	}
	if err != nil {
		return fmt.Errorf("failed to get reveal request: %w", err)
	}
	if req.Consumed {
		return ErrUnknownRequest
	}

	m, err := s.markets.mutate(ctx, req.MarketID, false, func(tx *repository.Repository, m *models.Market) error {
		current, err := tx.GetRevealRequest(ctx, requestID)
		if err != nil {
			return fmt.Errorf("failed to reload reveal request: %w", err)
		}
		if current.Consumed {
			return ErrUnknownRequest
		}
		if m.Phase != models.PhaseRevealRequested {
			return fmt.Errorf("%w: market is %s", ErrInvalidPhase, m.Phase)
		}
		if m.RevealRequestID != requestID {
			return ErrUnknownRequest
		}

		handles, err := confidential.ParseHandles(current.Handles)
		if err != nil {
			return fmt.Errorf("stored handles corrupt: %w", err)
		}
		if err := s.verifier.Verify(requestID, handles, clearValues, proof); err != nil {
			return fmt.Errorf("%w: %v", ErrProofInvalid, err)
		}
		totals, err := oracle.DecodeClearValues(clearValues, len(handles))
		if err != nil {
			return err
		}

		now := s.markets.now()
		winner, tie := deriveOutcome(totals)
		m.RevealedTotals = totals
		m.WinningCategory = winner
		m.Tie = tie

		ok, err := tx.ConsumeRevealRequest(ctx, requestID, now)
		if err != nil {
			return fmt.Errorf("failed to consume reveal request: %w", err)
		}
		if !ok {
			return ErrUnknownRequest
		}
		return transition(m, EventResolve, now)
	})
	if err != nil {
		s.logger.Warn("callback rejected", zap.Uint64("request_id", requestID), zap.Error(err))
		return err
	}

	s.logger.Info("market resolved",
		zap.String("market_id", m.ID),
		zap.Uint64("request_id", requestID),
		zap.Uint64s("totals", m.RevealedTotals),
		zap.Bool("tie", m.Tie),
	)
	return nil
}

// deriveOutcome picks the category with the largest total. Equal maxima are a tie.
func deriveOutcome(totals []uint64) (*models.Category, bool) {
	if len(totals) == 0 {
		return nil, false
	}
	best := 0
	tie := false
	for i := 1; i < len(totals); i++ {
		switch {
		case totals[i] > totals[best]:
			best = i
			tie = false
		case totals[i] == totals[best]:
			tie = true
		}
	}
	if tie {
		return nil, true
	}
	c := models.Category(best)
	return &c, false
}

// HandleCallbackHex accepts a callback whose payloads arrive hex encoded.
func (s *RevealService) HandleCallbackHex(ctx context.Context, req *models.OracleCallbackRequest) error {
	clearValues, err := decodeHex(req.ClearValues)
	if err != nil {
		return fmt.Errorf("%w: clear values are not hex", ErrMalformedClearValues)
	}
	proof, err := decodeHex(req.Proof)
	if err != nil {
		return fmt.Errorf("%w: proof is not hex", ErrProofInvalid)
	}
	return s.HandleCallback(ctx, req.RequestID, clearValues, proof)
}

func decodeHex(s string) ([]byte, error) {
	return hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(s), "0x"))
}

var _ oracle.CallbackSink = (*RevealService)(nil)
