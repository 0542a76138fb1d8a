package services

import (
	"context"
	"fmt"
	"math/big"

	"confidential-market/internal/models"
	"confidential-market/internal/repository"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// SettlementService pays winners and refunds stakes. Each claim runs in one
// transaction: guards, then the claimed flag, then the vault transfer. A
// failed transfer rolls the claimed flag back with it.
type SettlementService struct {
	markets *MarketService
	vault   Vault
	logger  *zap.Logger
}

func NewSettlementService(markets *MarketService, vault Vault, logger *zap.Logger) *SettlementService {
	return &SettlementService{
		markets: markets,
		vault:   vault,
		logger:  logger,
	}
}

// ComputePayout returns prizePool*f*stake / (winningTotal*f), truncated.
//
// The privacy factor f multiplies numerator and denominator alike and
// therefore cancels: the payout is the same for every f.
func ComputePayout(prizePool, stake int64, winningTotal, privacyFactor uint64) (int64, error) {
	if winningTotal == 0 {
		return 0, ErrZeroWinningTotal
	}
	if privacyFactor == 0 {
		privacyFactor = 1
	}
	f := decimal.NewFromBigInt(new(big.Int).SetUint64(privacyFactor), 0)
	numerator := decimal.NewFromInt(prizePool).Mul(f).Mul(decimal.NewFromInt(stake))
	denominator := decimal.NewFromBigInt(new(big.Int).SetUint64(winningTotal), 0).Mul(f)

	quotient, _ := numerator.QuoRem(denominator, 0)
	if !quotient.BigInt().IsInt64() {
		return 0, fmt.Errorf("%w: payout %s overflows", ErrPayoutExceedsPool, quotient)
	}
	return quotient.IntPart(), nil
}

type claimFunc func(tx *repository.Repository, m *models.Market, p *models.Participation) (int64, error)

// claim runs the shared claim pipeline.
func (s *SettlementService) claim(
	ctx context.Context,
	marketID, participant string,
	kind models.ClaimKind,
	entryType models.LedgerEntryType,
	amountFor claimFunc,
) (*models.ClaimResponse, error) {
	ledger := s.markets.ledger
	var resp *models.ClaimResponse

	_, err := s.markets.mutate(ctx, marketID, false, func(tx *repository.Repository, m *models.Market) error {
		p, err := ledger.Get(ctx, tx, m.ID, participant)
		if err != nil {
			return err
		}
		if p.Claimed {
			return ErrAlreadyClaimed
		}

		amount, err := amountFor(tx, m, p)
		if err != nil {
			return err
		}
		if s.markets.settings.EnforcePoolCap && m.PaidOut+amount > m.PrizePool {
			return fmt.Errorf("%w: paid %d + %d > pool %d", ErrPayoutExceedsPool, m.PaidOut, amount, m.PrizePool)
		}

		if err := ledger.MarkClaimed(ctx, tx, m.ID, participant, kind, amount, s.markets.now()); err != nil {
			return err
		}

		var ref string
		if amount > 0 {
			ref, err = s.vault.Transfer(ctx, tx, m.ID, participant, amount, entryType)
			if err != nil {
				return fmt.Errorf("failed to transfer %s: %w", kind, err)
			}
		}
		m.PaidOut += amount

		resp = &models.ClaimResponse{
			MarketID:    m.ID,
			Participant: participant,
			Kind:        kind,
			Amount:      amount,
			Reference:   ref,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("claim paid",
		zap.String("market_id", marketID),
		zap.String("participant", participant),
		zap.String("kind", string(kind)),
		zap.Int64("amount", resp.Amount),
	)
	return resp, nil
}

// ClaimPayout pays a winning participant their share of the prize pool.
func (s *SettlementService) ClaimPayout(ctx context.Context, marketID, participant string) (*models.ClaimResponse, error) {
	return s.claim(ctx, marketID, participant, models.ClaimPayout, models.LedgerPayout,
		func(tx *repository.Repository, m *models.Market, p *models.Participation) (int64, error) {
			if m.Phase != models.PhaseResolved {
				return 0, fmt.Errorf("%w: market is %s", ErrInvalidPhase, m.Phase)
			}
			if m.Tie || m.WinningCategory == nil {
				return 0, ErrTieUseRefund
			}
			winner := *m.WinningCategory
			stake, err := s.markets.ledger.StakeInCategory(ctx, tx, m.ID, p.Participant, winner)
			if err != nil {
				return 0, err
			}
			if stake == 0 {
				return 0, ErrNotWinner
			}
			if int(winner) >= len(m.RevealedTotals) {
				return 0, fmt.Errorf("%w: no revealed total for category %d", ErrZeroWinningTotal, winner)
			}
			return ComputePayout(m.PrizePool, stake, m.RevealedTotals[winner], m.PrivacyFactor)
		})
}

// ClaimTieRefund returns the stake of a participant in a tied market.
func (s *SettlementService) ClaimTieRefund(ctx context.Context, marketID, participant string) (*models.ClaimResponse, error) {
	return s.claim(ctx, marketID, participant, models.ClaimTieRefund, models.LedgerTieRefund,
		func(tx *repository.Repository, m *models.Market, p *models.Participation) (int64, error) {
			if m.Phase != models.PhaseResolved {
				return 0, fmt.Errorf("%w: market is %s", ErrInvalidPhase, m.Phase)
			}
			if !m.Tie {
				return 0, ErrNotTie
			}
			return p.Stake, nil
		})
}

// ClaimRecoveryRefund returns the stake of a participant in a timed-out or
// cancelled market, whatever their category.
func (s *SettlementService) ClaimRecoveryRefund(ctx context.Context, marketID, participant string) (*models.ClaimResponse, error) {
	return s.claim(ctx, marketID, participant, models.ClaimRecoveryRefund, models.LedgerRecoveryRefund,
		func(tx *repository.Repository, m *models.Market, p *models.Participation) (int64, error) {
			if !m.Phase.Refundable() {
				return 0, fmt.Errorf("%w: market is %s", ErrInvalidPhase, m.Phase)
			}
			return p.Stake, nil
		})
}
