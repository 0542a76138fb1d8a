package models

import (
	"time"

	"github.com/google/uuid"
)

type ClaimKind string

const (
	ClaimPayout         ClaimKind = "PAYOUT"
	ClaimTieRefund      ClaimKind = "TIE_REFUND"
	ClaimRecoveryRefund ClaimKind = "RECOVERY_REFUND"
)

// Participation is one entity's involvement in one market
type Participation struct {
	ID            uint       `gorm:"primaryKey" json:"-"`
	MarketID      string     `gorm:"size:64;not null;uniqueIndex:idx_participation_market_participant" json:"market_id"`
	Participant   string     `gorm:"size:64;not null;uniqueIndex:idx_participation_market_participant;index" json:"participant"`
	Contributed   bool       `gorm:"not null;default:false" json:"contributed"`
	Category      *Category  `json:"category,omitempty"` // first submitted category
	Stake         int64      `gorm:"not null;default:0" json:"stake"`
	Submissions   int        `gorm:"not null;default:0" json:"submissions"`
	Claimed       bool       `gorm:"not null;default:false" json:"claimed"`
	ClaimKind     ClaimKind  `gorm:"size:20" json:"claim_kind,omitempty"`
	ClaimedAmount int64      `gorm:"not null;default:0" json:"claimed_amount"`
	ClaimedAt     *time.Time `json:"claimed_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func (Participation) TableName() string {
	return "participations"
}

// Submission is one accepted confidential contribution. Energy rounds allow many per participant.
type Submission struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	MarketID    string    `gorm:"size:64;not null;index:idx_submission_market_participant" json:"market_id"`
	Participant string    `gorm:"size:64;not null;index:idx_submission_market_participant" json:"participant"`
	Category    Category  `gorm:"not null" json:"category"`
	Stake       int64     `gorm:"not null" json:"stake"`
	InputHandle string    `gorm:"size:64;not null" json:"input_handle"`
	CreatedAt   time.Time `json:"created_at"`
}

func (Submission) TableName() string {
	return "submissions"
}

// ClaimResponse reports the result of a successful claim
type ClaimResponse struct {
	MarketID    string    `json:"market_id"`
	Participant string    `json:"participant"`
	Kind        ClaimKind `json:"kind"`
	Amount      int64     `json:"amount"`
	Reference   string    `json:"reference"`
}
