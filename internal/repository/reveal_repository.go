package repository

import (
	"context"
	"time"

	"confidential-market/internal/models"
)

// CreateRevealRequest stores the correlation record for an oracle request
func (r *Repository) CreateRevealRequest(ctx context.Context, req *models.RevealRequest) error {
	return r.db.WithContext(ctx).Create(req).Error
}

// GetRevealRequest retrieves a reveal request by its oracle-assigned id
func (r *Repository) GetRevealRequest(ctx context.Context, requestID uint64) (*models.RevealRequest, error) {
	var req models.RevealRequest
	err := r.db.WithContext(ctx).Where("request_id = ?", requestID).First(&req).Error
	if err != nil {
		return nil, err
	}
	return &req, nil
}

// ConsumeRevealRequest marks a request consumed. It reports false when the
// request was already consumed.
func (r *Repository) ConsumeRevealRequest(ctx context.Context, requestID uint64, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.RevealRequest{}).
		Where("request_id = ? AND consumed = ?", requestID, false).
		Updates(map[string]interface{}{"consumed": true, "consumed_at": at})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
