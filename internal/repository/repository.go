package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

// ErrConflict is returned when a guarded update lost a race.
var ErrConflict = errors.New("repository: concurrent update")

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// IsNotFound reports whether err is a missing-row error.
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

// Transaction runs fn against a repository bound to one database
// transaction. Any error returned by fn rolls the transaction back.
func (r *Repository) Transaction(ctx context.Context, fn func(tx *Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Repository{db: tx})
	})
}
