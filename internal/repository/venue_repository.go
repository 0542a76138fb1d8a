package repository

import (
	"context"

	"confidential-market/internal/models"

	"gorm.io/gorm"
)

// GetVenueSettings returns the settings row, creating it on first use
func (r *Repository) GetVenueSettings(ctx context.Context) (*models.VenueSettings, error) {
	settings := models.VenueSettings{ID: models.VenueSettingsID, NextRound: 1}
	err := r.db.WithContext(ctx).
		Where("id = ?", models.VenueSettingsID).
		FirstOrCreate(&settings).Error
	if err != nil {
		return nil, err
	}
	return &settings, nil
}

// SetPaused updates the pause flag
func (r *Repository) SetPaused(ctx context.Context, paused bool) error {
	if _, err := r.GetVenueSettings(ctx); err != nil {
		return err
	}
	return r.db.WithContext(ctx).
		Model(&models.VenueSettings{}).
		Where("id = ?", models.VenueSettingsID).
		Update("paused", paused).Error
}

// SetCreationFee updates the market creation fee
func (r *Repository) SetCreationFee(ctx context.Context, fee int64) error {
	if _, err := r.GetVenueSettings(ctx); err != nil {
		return err
	}
	return r.db.WithContext(ctx).
		Model(&models.VenueSettings{}).
		Where("id = ?", models.VenueSettingsID).
		Update("creation_fee", fee).Error
}

// AddFeesAccrued credits collected fees
func (r *Repository) AddFeesAccrued(ctx context.Context, amount int64) error {
	if _, err := r.GetVenueSettings(ctx); err != nil {
		return err
	}
	return r.db.WithContext(ctx).
		Model(&models.VenueSettings{}).
		Where("id = ?", models.VenueSettingsID).
		Update("fees_accrued", gorm.Expr("fees_accrued + ?", amount)).Error
}

// WithdrawFees debits unwithdrawn fees. It reports false when fewer than
// amount fees are available.
func (r *Repository) WithdrawFees(ctx context.Context, amount int64) (bool, error) {
	if _, err := r.GetVenueSettings(ctx); err != nil {
		return false, err
	}
	res := r.db.WithContext(ctx).
		Model(&models.VenueSettings{}).
		Where("id = ? AND fees_accrued - fees_withdrawn >= ?", models.VenueSettingsID, amount).
		Update("fees_withdrawn", gorm.Expr("fees_withdrawn + ?", amount))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// AdjustVaultBalance applies delta to the vault balance. A debit that would
// make the balance negative is not applied and reports false.
func (r *Repository) AdjustVaultBalance(ctx context.Context, delta int64) (bool, error) {
	if _, err := r.GetVenueSettings(ctx); err != nil {
		return false, err
	}
	res := r.db.WithContext(ctx).
		Model(&models.VenueSettings{}).
		Where("id = ? AND vault_balance + ? >= 0", models.VenueSettingsID, delta).
		Update("vault_balance", gorm.Expr("vault_balance + ?", delta))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// NextRound allocates the next sequential round number
func (r *Repository) NextRound(ctx context.Context) (int64, error) {
	settings, err := r.GetVenueSettings(ctx)
	if err != nil {
		return 0, err
	}
	res := r.db.WithContext(ctx).
		Model(&models.VenueSettings{}).
		Where("id = ? AND next_round = ?", models.VenueSettingsID, settings.NextRound).
		Update("next_round", settings.NextRound+1)
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected != 1 {
		return 0, ErrConflict
	}
	return settings.NextRound, nil
}

// CreateLedgerEntry appends a vault movement
func (r *Repository) CreateLedgerEntry(ctx context.Context, entry *models.LedgerEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

// ListLedgerEntries returns a market's vault movements in order
func (r *Repository) ListLedgerEntries(ctx context.Context, marketID string) ([]*models.LedgerEntry, error) {
	var out []*models.LedgerEntry
	err := r.db.WithContext(ctx).
		Where("market_id = ?", marketID).
		Order("created_at ASC").
		Find(&out).Error
	return out, err
}
