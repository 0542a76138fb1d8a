package repository

import (
	"context"
	"time"

	"confidential-market/internal/models"
)

// CreateLoginChallenge stores a fresh login nonce
func (r *Repository) CreateLoginChallenge(ctx context.Context, challenge *models.LoginChallenge) error {
	return r.db.WithContext(ctx).Create(challenge).Error
}

// GetLoginChallenge loads a login nonce
func (r *Repository) GetLoginChallenge(ctx context.Context, nonce string) (*models.LoginChallenge, error) {
	var challenge models.LoginChallenge
	if err := r.db.WithContext(ctx).Where("nonce = ?", nonce).First(&challenge).Error; err != nil {
		return nil, err
	}
	return &challenge, nil
}

// UseLoginChallenge marks an unexpired nonce of wallet as used. It reports
// false when the nonce is unknown, expired or already used.
func (r *Repository) UseLoginChallenge(ctx context.Context, nonce, wallet string, now time.Time) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.LoginChallenge{}).
		Where("nonce = ? AND wallet = ? AND used_at IS NULL AND expires_at > ?", nonce, wallet, now).
		Update("used_at", now)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// DeleteExpiredLoginChallenges removes nonces that expired before now
func (r *Repository) DeleteExpiredLoginChallenges(ctx context.Context, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Where("expires_at <= ?", now).Delete(&models.LoginChallenge{})
	return result.RowsAffected, result.Error
}
