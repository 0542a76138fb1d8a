package repository

import (
	"context"
	"time"

	"confidential-market/internal/models"
)

// GetParticipation retrieves the record for (marketID, participant)
func (r *Repository) GetParticipation(ctx context.Context, marketID, participant string) (*models.Participation, error) {
	var p models.Participation
	err := r.db.WithContext(ctx).
		Where("market_id = ? AND participant = ?", marketID, participant).
		First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// SaveParticipation creates or updates a participation
func (r *Repository) SaveParticipation(ctx context.Context, p *models.Participation) error {
	return r.db.WithContext(ctx).Save(p).Error
}

// ListParticipations returns all participations of a market
func (r *Repository) ListParticipations(ctx context.Context, marketID string) ([]*models.Participation, error) {
	var out []*models.Participation
	err := r.db.WithContext(ctx).
		Where("market_id = ?", marketID).
		Order("id ASC").
		Find(&out).Error
	return out, err
}

// MarkClaimed flips claimed from false to true. It reports false when the
// participation was already claimed or does not exist.
func (r *Repository) MarkClaimed(
	ctx context.Context,
	marketID, participant string,
	kind models.ClaimKind,
	amount int64,
	at time.Time,
) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Participation{}).
		Where("market_id = ? AND participant = ? AND claimed = ?", marketID, participant, false).
		Updates(map[string]interface{}{
			"claimed":        true,
			"claim_kind":     kind,
			"claimed_amount": amount,
			"claimed_at":     at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// CreateSubmission records one accepted contribution
func (r *Repository) CreateSubmission(ctx context.Context, s *models.Submission) error {
	return r.db.WithContext(ctx).Create(s).Error
}

// ListSubmissions returns a participant's submissions in order
func (r *Repository) ListSubmissions(ctx context.Context, marketID, participant string) ([]*models.Submission, error) {
	var out []*models.Submission
	err := r.db.WithContext(ctx).
		Where("market_id = ? AND participant = ?", marketID, participant).
		Order("created_at ASC").
		Find(&out).Error
	return out, err
}

// SumStakeInCategory totals a participant's stake submitted under category
func (r *Repository) SumStakeInCategory(ctx context.Context, marketID, participant string, category models.Category) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&models.Submission{}).
		Select("COALESCE(SUM(stake), 0)").
		Where("market_id = ? AND participant = ? AND category = ?", marketID, participant, category).
		Scan(&total).Error
	return total, err
}
