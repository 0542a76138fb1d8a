package services

import (
	"context"
	"fmt"

	"confidential-market/internal/models"
	"confidential-market/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type AdminService struct {
	repo    *repository.Repository
	markets *MarketService
	vault   Vault
	logger  *zap.Logger
}

func NewAdminService(repo *repository.Repository, markets *MarketService, vault Vault, logger *zap.Logger) *AdminService {
	return &AdminService{
		repo:    repo,
		markets: markets,
		vault:   vault,
		logger:  logger,
	}
}

// BootstrapAdmins registers the configured admin wallets
func (s *AdminService) BootstrapAdmins(ctx context.Context, wallets []string) error {
	for _, w := range wallets {
		if err := s.repo.EnsureAdmin(ctx, &models.AdminUser{Wallet: w, Role: models.RoleSuperAdmin}); err != nil {
			return fmt.Errorf("failed to register admin %s: %w", w, err)
		}
	}
	if len(wallets) > 0 {
		s.logger.Info("admins registered", zap.Int("count", len(wallets)))
	}
	return nil
}

// IsAdmin checks if a wallet is an admin
func (s *AdminService) IsAdmin(ctx context.Context, wallet string) (bool, error) {
	_, err := s.repo.GetAdmin(ctx, wallet)
	if repository.IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to get admin: %w", err)
	}
	return true, nil
}

func (s *AdminService) requireAdmin(ctx context.Context, repo *repository.Repository, wallet string) error {
	_, err := repo.GetAdmin(ctx, wallet)
	if repository.IsNotFound(err) {
		return ErrUnauthorized
	}
	if err != nil {
		return fmt.Errorf("failed to get admin: %w", err)
	}
	return nil
}

// logAction records an admin action in the caller's transaction
func logAction(ctx context.Context, repo *repository.Repository, admin, action, target string, details models.JSONB) error {
	entry := &models.AdminLog{
		ID:      uuid.New(),
		Admin:   admin,
		Action:  action,
		Target:  target,
		Details: details,
	}
	if err := repo.CreateAdminLog(ctx, entry); err != nil {
		return fmt.Errorf("failed to log admin action: %w", err)
	}
	return nil
}

// Pause stops every non-admin state-changing operation
func (s *AdminService) Pause(ctx context.Context, admin string) error {
	return s.setPaused(ctx, admin, true)
}

// Unpause resumes normal operation
func (s *AdminService) Unpause(ctx context.Context, admin string) error {
	return s.setPaused(ctx, admin, false)
}

func (s *AdminService) setPaused(ctx context.Context, admin string, paused bool) error {
	action := "UNPAUSE"
	if paused {
		action = "PAUSE"
	}
	err := s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		if err := s.requireAdmin(ctx, tx, admin); err != nil {
			return err
		}
		if err := tx.SetPaused(ctx, paused); err != nil {
			return fmt.Errorf("failed to set pause flag: %w", err)
		}
		return logAction(ctx, tx, admin, action, "venue", nil)
	})
	if err != nil {
		return err
	}
	s.logger.Warn("venue pause changed", zap.Bool("paused", paused), zap.String("admin", admin))
	return nil
}

// SetCreationFee changes the fee required to create a market
func (s *AdminService) SetCreationFee(ctx context.Context, admin string, fee int64) error {
	if fee < 0 {
		return fmt.Errorf("%w: fee must not be negative", ErrIncorrectFee)
	}
	err := s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		if err := s.requireAdmin(ctx, tx, admin); err != nil {
			return err
		}
		if err := tx.SetCreationFee(ctx, fee); err != nil {
			return fmt.Errorf("failed to set creation fee: %w", err)
		}
		return logAction(ctx, tx, admin, "SET_CREATION_FEE", "venue", models.JSONB{"fee": fee})
	})
	if err != nil {
		return err
	}
	s.logger.Info("creation fee changed", zap.Int64("fee", fee), zap.String("admin", admin))
	return nil
}

// WithdrawFees pays accrued creation fees out of the vault
func (s *AdminService) WithdrawFees(ctx context.Context, admin, to string, amount int64) (string, error) {
	if amount <= 0 {
		return "", ErrInvalidAmount
	}
	if to == "" {
		to = admin
	}
	var ref string
	err := s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		if err := s.requireAdmin(ctx, tx, admin); err != nil {
			return err
		}
		ok, err := tx.WithdrawFees(ctx, amount)
		if err != nil {
			return fmt.Errorf("failed to debit fees: %w", err)
		}
		if !ok {
			return ErrInsufficientFees
		}
		ref, err = s.vault.Transfer(ctx, tx, "", to, amount, models.LedgerFeeWithdrawal)
		if err != nil {
			return fmt.Errorf("failed to transfer fees: %w", err)
		}
		return logAction(ctx, tx, admin, "WITHDRAW_FEES", to, models.JSONB{"amount": amount, "reference": ref})
	})
	if err != nil {
		return "", err
	}
	s.logger.Info("fees withdrawn", zap.Int64("amount", amount), zap.String("to", to))
	return ref, nil
}

// CancelMarket forces a market onto the refund path. It works while paused.
func (s *AdminService) CancelMarket(ctx context.Context, admin, marketID string) (*models.Market, error) {
	if err := s.requireAdmin(ctx, s.repo, admin); err != nil {
		return nil, err
	}
	m, err := s.markets.cancel(ctx, marketID, func(tx *repository.Repository, m *models.Market) error {
		return logAction(ctx, tx, admin, "CANCEL_MARKET", m.ID, models.JSONB{"prize_pool": m.PrizePool})
	})
	if err != nil {
		return nil, err
	}
	s.logger.Warn("market cancelled", zap.String("market_id", marketID), zap.String("admin", admin))
	return m, nil
}

// GetVenue returns the venue settings
func (s *AdminService) GetVenue(ctx context.Context) (*models.VenueSettings, error) {
	return s.repo.GetVenueSettings(ctx)
}

// GetAdminLogs gets admin action logs
func (s *AdminService) GetAdminLogs(ctx context.Context, limit, offset int) ([]*models.AdminLog, int64, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return s.repo.ListAdminLogs(ctx, limit, offset)
}
