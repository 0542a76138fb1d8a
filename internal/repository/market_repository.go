package repository

import (
	"context"
	"time"

	"confidential-market/internal/models"

	"gorm.io/gorm/clause"
)

// CreateMarket inserts a new market
func (r *Repository) CreateMarket(ctx context.Context, market *models.Market) error {
	return r.db.WithContext(ctx).Create(market).Error
}

// MarketExists reports whether id is taken
func (r *Repository) MarketExists(ctx context.Context, id string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Market{}).Where("id = ?", id).Count(&count).Error
	return count > 0, err
}

// GetMarket retrieves a market by ID
func (r *Repository) GetMarket(ctx context.Context, id string) (*models.Market, error) {
	var market models.Market
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&market).Error
	if err != nil {
		return nil, err
	}
	return &market, nil
}

// GetMarketForUpdate retrieves a market with a row lock on postgres
func (r *Repository) GetMarketForUpdate(ctx context.Context, id string) (*models.Market, error) {
	var market models.Market
	query := r.db.WithContext(ctx)
	if r.db.Dialector.Name() == "postgres" {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	err := query.Where("id = ?", id).First(&market).Error
	if err != nil {
		return nil, err
	}
	return &market, nil
}

// SaveMarket writes every column of the market
func (r *Repository) SaveMarket(ctx context.Context, market *models.Market) error {
	return r.db.WithContext(ctx).Save(market).Error
}

// ListMarkets returns markets filtered by phase and variant, newest first
func (r *Repository) ListMarkets(
	ctx context.Context,
	phase models.MarketPhase,
	variant models.MarketVariant,
	limit, offset int,
) ([]*models.Market, int64, error) {
	var markets []*models.Market
	var total int64

	query := r.db.WithContext(ctx).Model(&models.Market{})
	if phase != "" {
		query = query.Where("phase = ?", phase)
	}
	if variant != "" {
		query = query.Where("variant = ?", variant)
	}
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := query.
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&markets).Error
	return markets, total, err
}

// ListExpiredOpenMarkets returns open markets whose window closed at or before now
func (r *Repository) ListExpiredOpenMarkets(ctx context.Context, now time.Time, limit int) ([]*models.Market, error) {
	var markets []*models.Market
	err := r.db.WithContext(ctx).
		Where("phase = ? AND closes_at <= ?", models.PhaseOpen, now).
		Order("closes_at ASC").
		Limit(limit).
		Find(&markets).Error
	return markets, err
}

// ListStalledReveals returns markets whose reveal request was issued at or before cutoff
func (r *Repository) ListStalledReveals(ctx context.Context, cutoff time.Time, limit int) ([]*models.Market, error) {
	var markets []*models.Market
	err := r.db.WithContext(ctx).
		Where("phase = ? AND reveal_requested_at <= ?", models.PhaseRevealRequested, cutoff).
		Order("reveal_requested_at ASC").
		Limit(limit).
		Find(&markets).Error
	return markets, err
}
