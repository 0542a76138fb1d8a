package services

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"regexp"
	"strconv"
	"strings"
	"time"

	"confidential-market/internal/confidential"
	"confidential-market/internal/lock"
	"confidential-market/internal/models"
	"confidential-market/internal/repository"

	"go.uber.org/zap"
)

// ContractAccount is the access-control identity of the settlement venue
// itself. Every total handle is authorized for it.
const ContractAccount = "settlement-venue"

var marketIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// Vault moves native currency in and out of custody inside the caller's transaction.
type Vault interface {
	Deposit(ctx context.Context, repo *repository.Repository, marketID, account string, amount int64, kind models.LedgerEntryType) error
	Transfer(ctx context.Context, repo *repository.Repository, marketID, account string, amount int64, kind models.LedgerEntryType) (string, error)
}

// Settings are the venue rules the lifecycle enforces.
type Settings struct {
	MinDuration    time.Duration
	MaxDuration    time.Duration
	RevealTimeout  time.Duration
	EnforcePoolCap bool
	// PrivacyFactor fixes the per-market factor; 0 draws one at random.
	PrivacyFactor uint64
}

// MarketService owns the market lifecycle: creation, submissions, closing,
// cancellation and the timeout check. Every mutation runs under the market
// lock inside one database transaction.
type MarketService struct {
	repo     *repository.Repository
	backend  confidential.Backend
	ledger   *ParticipationLedger
	vault    Vault
	locker   lock.Locker
	settings Settings
	now      func() time.Time
	logger   *zap.Logger
}

func NewMarketService(
	repo *repository.Repository,
	backend confidential.Backend,
	vault Vault,
	locker lock.Locker,
	settings Settings,
	logger *zap.Logger,
) *MarketService {
	return &MarketService{
		repo:     repo,
		backend:  backend,
		ledger:   NewParticipationLedger(),
		vault:    vault,
		locker:   locker,
		settings: settings,
		now:      func() time.Time { return time.Now().UTC() },
		logger:   logger,
	}
}

// SetClock replaces the time source.
func (s *MarketService) SetClock(now func() time.Time) {
	s.now = now
}

// accumulator returns an accumulator whose ciphertexts are written through
// tx when the backend keeps its state in the database.
func (s *MarketService) accumulator(tx *repository.Repository) *confidential.Accumulator {
	if b, ok := s.backend.(confidential.Binder); ok {
		return confidential.NewAccumulator(b.Bind(tx))
	}
	return confidential.NewAccumulator(s.backend)
}

func marketLockKey(id string) string {
	return "market:" + id
}

// locked runs fn while holding key.
func (s *MarketService) locked(ctx context.Context, key string, fn func() error) error {
	release, err := s.locker.Lock(ctx, key)
	if err != nil {
		return fmt.Errorf("failed to acquire lock %s: %w", key, err)
	}
	defer release()
	return fn()
}

// mutate loads the market under its lock in a transaction, applies fn and
// saves the result. Nothing is written when fn fails.
func (s *MarketService) mutate(
	ctx context.Context,
	marketID string,
	allowPaused bool,
	fn func(tx *repository.Repository, m *models.Market) error,
) (*models.Market, error) {
	var out *models.Market
	err := s.locked(ctx, marketLockKey(marketID), func() error {
		return s.repo.Transaction(ctx, func(tx *repository.Repository) error {
			if !allowPaused {
				if err := ensureNotPaused(ctx, tx); err != nil {
					return err
				}
			}
			m, err := tx.GetMarketForUpdate(ctx, marketID)
			if repository.IsNotFound(err) {
				return ErrMarketNotFound
			}
			if err != nil {
				return fmt.Errorf("failed to get market: %w", err)
			}
			if err := fn(tx, m); err != nil {
				return err
			}
			if err := tx.SaveMarket(ctx, m); err != nil {
				return fmt.Errorf("failed to save market: %w", err)
			}
			out = m
			return nil
		})
	})
	return out, err
}

func ensureNotPaused(ctx context.Context, repo *repository.Repository) error {
	settings, err := repo.GetVenueSettings(ctx)
	if err != nil {
		return fmt.Errorf("failed to get venue settings: %w", err)
	}
	if settings.Paused {
		return ErrPaused
	}
	return nil
}

// CreateMarket opens a new market. Belief markets carry the caller as
// organizer and a caller-chosen id; energy rounds are numbered sequentially.
func (s *MarketService) CreateMarket(ctx context.Context, organizer string, req *models.CreateMarketRequest) (*models.Market, error) {
	variant := req.Variant
	if variant == "" {
		variant = models.VariantBelief
	}
	if !variant.Valid() {
		return nil, ErrInvalidVariant
	}
	if variant == models.VariantBelief && !marketIDPattern.MatchString(req.ID) {
		return nil, ErrInvalidMarketID
	}
	if variant == models.VariantEnergy && req.ID != "" {
		return nil, fmt.Errorf("%w: energy round ids are assigned", ErrInvalidMarketID)
	}
	if req.DurationSeconds <= 0 {
		return nil, ErrInvalidDuration
	}
	duration := time.Duration(req.DurationSeconds) * time.Second
	if duration < s.settings.MinDuration || duration > s.settings.MaxDuration {
		return nil, fmt.Errorf("%w: %s not within [%s, %s]", ErrInvalidDuration, duration, s.settings.MinDuration, s.settings.MaxDuration)
	}
	if req.StakeUnit <= 0 {
		return nil, ErrInvalidStake
	}
	if variant == models.VariantEnergy {
		organizer = ""
	}

	factor := s.settings.PrivacyFactor
	if factor == 0 {
		var err error
		if factor, err = drawPrivacyFactor(); err != nil {
			return nil, err
		}
	}

	key := marketLockKey(req.ID)
	if variant == models.VariantEnergy {
		key = "rounds"
	}

	var market *models.Market
	err := s.locked(ctx, key, func() error {
		return s.repo.Transaction(ctx, func(tx *repository.Repository) error {
			venue, err := tx.GetVenueSettings(ctx)
			if err != nil {
				return fmt.Errorf("failed to get venue settings: %w", err)
			}
			if venue.Paused {
				return ErrPaused
			}
			if req.FeePaid != venue.CreationFee {
				return fmt.Errorf("%w: paid %d, fee is %d", ErrIncorrectFee, req.FeePaid, venue.CreationFee)
			}

			id := req.ID
			if variant == models.VariantEnergy {
				round, err := tx.NextRound(ctx)
				if err != nil {
					return fmt.Errorf("failed to allocate round: %w", err)
				}
				id = "round-" + strconv.FormatInt(round, 10)
			}
			exists, err := tx.MarketExists(ctx, id)
			if err != nil {
				return fmt.Errorf("failed to check market id: %w", err)
			}
			if exists {
				return ErrMarketExists
			}

			acc := s.accumulator(tx)
			totals, err := acc.InitTotals(ctx, variant.Categories())
			if err != nil {
				return fmt.Errorf("failed to init totals: %w", err)
			}
			for _, h := range totals {
				if err := acc.AuthorizeAccess(ctx, h, ContractAccount); err != nil {
					return err
				}
			}

			now := s.now()
			market = &models.Market{
				ID:              id,
				Variant:         variant,
				Organizer:       organizer,
				Title:           strings.TrimSpace(req.Title),
				OpenedAt:        now,
				ClosesAt:        now.Add(duration),
				StakeUnit:       req.StakeUnit,
				EncryptedTotals: confidential.HandleStrings(totals),
				PrivacyFactor:   factor,
				Phase:           models.PhaseOpen,
			}
			if err := tx.CreateMarket(ctx, market); err != nil {
				return fmt.Errorf("failed to create market: %w", err)
			}

			if req.FeePaid > 0 {
				if err := s.vault.Deposit(ctx, tx, id, organizer, req.FeePaid, models.LedgerCreationFee); err != nil {
					return fmt.Errorf("failed to collect creation fee: %w", err)
				}
				if err := tx.AddFeesAccrued(ctx, req.FeePaid); err != nil {
					return fmt.Errorf("failed to accrue fee: %w", err)
				}
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("market created",
		zap.String("market_id", market.ID),
		zap.String("variant", string(market.Variant)),
		zap.Time("closes_at", market.ClosesAt),
		zap.Int64("stake_unit", market.StakeUnit),
	)
	return market, nil
}

func drawPrivacyFactor() (uint64, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1<<32-1))
	if err != nil {
		return 0, fmt.Errorf("failed to draw privacy factor: %w", err)
	}
	return n.Uint64() + 1, nil
}

// parseCategory accepts a category name of the variant or its index.
func parseCategory(v models.MarketVariant, raw string) (models.Category, error) {
	if c, ok := v.ParseCategory(strings.ToUpper(strings.TrimSpace(raw))); ok {
		return c, nil
	}
	if n, err := strconv.Atoi(raw); err == nil && n >= 0 && n < v.Categories() {
		return models.Category(n), nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidCategory, raw)
}

// Submit routes a confidential contribution into the market totals and
// escrows the stake.
func (s *MarketService) Submit(ctx context.Context, marketID, participant string, req *models.SubmitRequest) (*models.Participation, error) {
	input, err := confidential.ParseHandle(req.Handle)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	proof, err := decodeHex(req.InputProof)
	if err != nil {
		return nil, fmt.Errorf("%w: input proof: %v", ErrInvalidInput, err)
	}

	var participation *models.Participation
	_, err = s.mutate(ctx, marketID, false, func(tx *repository.Repository, m *models.Market) error {
		if m.Phase != models.PhaseOpen {
			return fmt.Errorf("%w: market is %s", ErrInvalidPhase, m.Phase)
		}
		now := s.now()
		if now.Before(m.OpenedAt) || !now.Before(m.ClosesAt) {
			return ErrSubmissionWindowClosed
		}
		if req.Payment != m.StakeUnit {
			return fmt.Errorf("%w: paid %d, stake is %d", ErrIncorrectStake, req.Payment, m.StakeUnit)
		}
		category, err := parseCategory(m.Variant, req.Category)
		if err != nil {
			return err
		}
		existing, err := s.ledger.Admit(ctx, tx, m.ID, participant, PolicyFor(m.Variant))
		if err != nil {
			return err
		}

		acc := s.accumulator(tx)
		delta, err := acc.VerifyInput(ctx, input, proof, participant)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		totals, err := confidential.ParseHandles(m.EncryptedTotals)
		if err != nil {
			return fmt.Errorf("stored totals corrupt: %w", err)
		}
		next, err := acc.Route(ctx, totals, int(category), delta)
		if err != nil {
			return fmt.Errorf("failed to accumulate submission: %w", err)
		}
		for _, h := range next {
			if err := acc.AuthorizeAccess(ctx, h, ContractAccount); err != nil {
				return err
			}
		}

		participation, err = s.ledger.RecordSubmission(ctx, tx, existing, m.ID, participant, category, req.Payment, input.String())
		if err != nil {
			return err
		}
		if err := s.vault.Deposit(ctx, tx, m.ID, participant, req.Payment, models.LedgerDeposit); err != nil {
			return fmt.Errorf("failed to escrow stake: %w", err)
		}

		m.EncryptedTotals = confidential.HandleStrings(next)
		m.PrizePool += req.Payment
		if existing == nil {
			m.Participants++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("submission accepted",
		zap.String("market_id", marketID),
		zap.String("participant", participant),
		zap.Int64("stake", req.Payment),
	)
	return participation, nil
}

// Close ends the submission window of a market whose close time has passed.
// Anyone may call it.
func (s *MarketService) Close(ctx context.Context, marketID string) (*models.Market, error) {
	m, err := s.mutate(ctx, marketID, false, func(tx *repository.Repository, m *models.Market) error {
		if m.Phase == models.PhaseOpen && s.now().Before(m.ClosesAt) {
			return ErrMarketStillOpen
		}
		return transition(m, EventClose, s.now())
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("market closed", zap.String("market_id", marketID))
	return m, nil
}

// cancel forces a market onto the refund path. Only the admin service calls it.
func (s *MarketService) cancel(ctx context.Context, marketID string, fn func(tx *repository.Repository, m *models.Market) error) (*models.Market, error) {
	return s.mutate(ctx, marketID, true, func(tx *repository.Repository, m *models.Market) error {
		if err := transition(m, EventCancel, s.now()); err != nil {
			return err
		}
		return fn(tx, m)
	})
}

// GetMarket retrieves a market by id
func (s *MarketService) GetMarket(ctx context.Context, marketID string) (*models.Market, error) {
	m, err := s.repo.GetMarket(ctx, marketID)
	if repository.IsNotFound(err) {
		return nil, ErrMarketNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get market: %w", err)
	}
	return m, nil
}

// ListMarkets lists markets, newest first
func (s *MarketService) ListMarkets(
	ctx context.Context,
	phase models.MarketPhase,
	variant models.MarketVariant,
	limit, offset int,
) ([]*models.Market, int64, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.ListMarkets(ctx, phase, variant, limit, offset)
}

// RevealedTotals returns the plain totals of a resolved market.
func (s *MarketService) RevealedTotals(ctx context.Context, marketID string) (*models.Market, error) {
	m, err := s.GetMarket(ctx, marketID)
	if err != nil {
		return nil, err
	}
	if m.Phase != models.PhaseResolved {
		return nil, fmt.Errorf("%w: totals are revealed only once resolved", ErrInvalidPhase)
	}
	return m, nil
}

// ListParticipations returns every participation in a market.
func (s *MarketService) ListParticipations(ctx context.Context, marketID string) ([]*models.Participation, error) {
	if _, err := s.GetMarket(ctx, marketID); err != nil {
		return nil, err
	}
	return s.repo.ListParticipations(ctx, marketID)
}

// GetParticipation returns the participation or ErrNotParticipated.
func (s *MarketService) GetParticipation(ctx context.Context, marketID, participant string) (*models.Participation, error) {
	if _, err := s.GetMarket(ctx, marketID); err != nil {
		return nil, err
	}
	return s.ledger.Get(ctx, s.repo, marketID, participant)
}

// ToResponse builds the public view of a market.
func (s *MarketService) ToResponse(m *models.Market) models.MarketResponse {
	return models.MarketResponse{
		ID:                  m.ID,
		Variant:             string(m.Variant),
		Organizer:           m.Organizer,
		Title:               m.Title,
		Phase:               string(m.Phase),
		OpenedAt:            m.OpenedAt,
		ClosesAt:            m.ClosesAt,
		StakeUnit:           m.StakeUnit,
		PrizePool:           m.PrizePool,
		PaidOut:             m.PaidOut,
		Participants:        m.Participants,
		EncryptedTotals:     m.EncryptedTotals,
		RevealRequestID:     m.RevealRequestID,
		RevealRequestedAt:   m.RevealRequestedAt,
		SecondsUntilTimeout: SecondsUntilTimeout(m, s.now(), s.settings.RevealTimeout),
	}
}
