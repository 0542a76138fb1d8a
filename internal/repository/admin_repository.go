package repository

import (
	"context"

	"confidential-market/internal/models"

	"gorm.io/gorm/clause"
)

// GetAdmin retrieves an admin by wallet
func (r *Repository) GetAdmin(ctx context.Context, wallet string) (*models.AdminUser, error) {
	var admin models.AdminUser
	err := r.db.WithContext(ctx).Where("wallet = ?", wallet).First(&admin).Error
	if err != nil {
		return nil, err
	}
	return &admin, nil
}

// EnsureAdmin inserts an admin unless the wallet is already registered
func (r *Repository) EnsureAdmin(ctx context.Context, admin *models.AdminUser) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "wallet"}}, DoNothing: true}).
		Create(admin).Error
}

// CreateAdminLog records an admin action
func (r *Repository) CreateAdminLog(ctx context.Context, log *models.AdminLog) error {
	return r.db.WithContext(ctx).Create(log).Error
}

// ListAdminLogs returns the latest admin actions
func (r *Repository) ListAdminLogs(ctx context.Context, limit, offset int) ([]*models.AdminLog, int64, error) {
	var logs []*models.AdminLog
	var total int64
	query := r.db.WithContext(ctx).Model(&models.AdminLog{})
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := query.Order("created_at DESC").Limit(limit).Offset(offset).Find(&logs).Error
	return logs, total, err
}
