package blockchain

import (
	"context"
	"errors"
	"fmt"

	"confidential-market/internal/models"
	"confidential-market/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrInsufficientFunds = errors.New("vault: insufficient funds")
	ErrInvalidAmount     = errors.New("vault: amount must be positive")
	ErrWrongDirection    = errors.New("vault: entry type does not match the movement")
)

// Vault is the custody account holding every stake and fee. Movements are
// written through the repository passed in, so they join the caller's
// transaction.
type Vault struct {
	logger *zap.Logger
}

// NewVault creates the custody vault
func NewVault(logger *zap.Logger) *Vault {
	return &Vault{logger: logger}
}

// Deposit credits the vault with funds received from account
func (v *Vault) Deposit(
	ctx context.Context,
	repo *repository.Repository,
	marketID, account string,
	amount int64,
	kind models.LedgerEntryType,
) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	if kind.Outflow() {
		return fmt.Errorf("%w: %s is not a deposit", ErrWrongDirection, kind)
	}
	if _, err := repo.AdjustVaultBalance(ctx, amount); err != nil {
		return fmt.Errorf("failed to credit vault: %w", err)
	}
	entry := &models.LedgerEntry{
		ID:       uuid.New(),
		MarketID: marketID,
		Account:  account,
		Type:     kind,
		Amount:   amount,
	}
	if err := repo.CreateLedgerEntry(ctx, entry); err != nil {
		return fmt.Errorf("failed to record deposit: %w", err)
	}
	return nil
}

// Transfer pays amount out of the vault to account and returns the ledger
// reference of the movement
func (v *Vault) Transfer(
	ctx context.Context,
	repo *repository.Repository,
	marketID, account string,
	amount int64,
	kind models.LedgerEntryType,
) (string, error) {
	if amount <= 0 {
		return "", ErrInvalidAmount
	}
	if !kind.Outflow() {
		return "", fmt.Errorf("%w: %s is not a payout", ErrWrongDirection, kind)
	}
	ok, err := repo.AdjustVaultBalance(ctx, -amount)
	if err != nil {
		return "", fmt.Errorf("failed to debit vault: %w", err)
	}
	if !ok {
		return "", ErrInsufficientFunds
	}
	entry := &models.LedgerEntry{
		ID:       uuid.New(),
		MarketID: marketID,
		Account:  account,
		Type:     kind,
		Amount:   amount,
	}
	if err := repo.CreateLedgerEntry(ctx, entry); err != nil {
		return "", fmt.Errorf("failed to record transfer: %w", err)
	}

	v.logger.Info("vault transfer",
		zap.String("market_id", marketID),
		zap.String("to", account),
		zap.String("type", string(kind)),
		zap.Int64("amount", amount),
	)
	return entry.ID.String(), nil
}

// Balance returns the current vault balance
func (v *Vault) Balance(ctx context.Context, repo *repository.Repository) (int64, error) {
	settings, err := repo.GetVenueSettings(ctx)
	if err != nil {
		return 0, err
	}
	return settings.VaultBalance, nil
}
