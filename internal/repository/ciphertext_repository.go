package repository

import (
	"context"
	"fmt"
	"strconv"

	"confidential-market/internal/confidential"
	"confidential-market/internal/models"

	"gorm.io/gorm/clause"
)

// PutCiphertext stores a confidential value under its handle
func (r *Repository) PutCiphertext(ctx context.Context, h confidential.Handle, rec confidential.Record) error {
	return r.db.WithContext(ctx).Create(&models.Ciphertext{
		Handle:    h.String(),
		Plaintext: strconv.FormatUint(rec.Value, 10),
		IsBool:    rec.Bool,
	}).Error
}

// GetCiphertext loads the value behind a handle
func (r *Repository) GetCiphertext(ctx context.Context, h confidential.Handle) (confidential.Record, error) {
	var ct models.Ciphertext
	err := r.db.WithContext(ctx).Where("handle = ?", h.String()).First(&ct).Error
	if IsNotFound(err) {
		return confidential.Record{}, confidential.ErrUnknownHandle
	}
	if err != nil {
		return confidential.Record{}, err
	}
	v, err := strconv.ParseUint(ct.Plaintext, 10, 64)
	if err != nil {
		return confidential.Record{}, fmt.Errorf("repository: ciphertext %s: %w", ct.Handle, err)
	}
	return confidential.Record{Value: v, Bool: ct.IsBool}, nil
}

// GrantAccess adds account to a handle's access list
func (r *Repository) GrantAccess(ctx context.Context, h confidential.Handle, account string) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.CiphertextGrant{Handle: h.String(), Account: account}).Error
}

// HasAccess reports whether account is on a handle's access list
func (r *Repository) HasAccess(ctx context.Context, h confidential.Handle, account string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.CiphertextGrant{}).
		Where("handle = ? AND account = ?", h.String(), account).
		Count(&count).Error
	return count > 0, err
}

var _ confidential.Store = (*Repository)(nil)
