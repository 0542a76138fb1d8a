package models

import (
	"time"
)

// MarketPhase is the lifecycle phase of a market.
type MarketPhase string

const (
	PhaseOpen            MarketPhase = "OPEN"
	PhaseClosed          MarketPhase = "CLOSED"
	PhaseRevealRequested MarketPhase = "REVEAL_REQUESTED"
	PhaseResolved        MarketPhase = "RESOLVED"
	PhaseRefundEligible  MarketPhase = "REFUND_ELIGIBLE"
	PhaseCancelled       MarketPhase = "CANCELLED"
)

// Terminal reports whether no transition may leave the phase.
func (p MarketPhase) Terminal() bool {
	return p == PhaseResolved || p == PhaseRefundEligible || p == PhaseCancelled
}

// Refundable reports whether recovery refunds are payable in this phase.
// Cancelled is an alias of RefundEligible.
func (p MarketPhase) Refundable() bool {
	return p == PhaseRefundEligible || p == PhaseCancelled
}

// MarketVariant selects the venue rules a market follows.
type MarketVariant string

const (
	// VariantBelief: organizer-created market, one vote per participant.
	VariantBelief MarketVariant = "BELIEF"
	// VariantEnergy: permissionless sequential trading rounds, many offers/demands per participant.
	VariantEnergy MarketVariant = "ENERGY"
)

// Valid reports whether v is a known variant.
func (v MarketVariant) Valid() bool {
	return v == VariantBelief || v == VariantEnergy
}

// Categories returns the number of category totals a market of this variant keeps.
func (v MarketVariant) Categories() int {
	return 2
}

// Permissionless reports whether anyone may request the reveal.
func (v MarketVariant) Permissionless() bool {
	return v == VariantEnergy
}

// Category is the plaintext tag of a submission. Only the quantity is confidential.
type Category int16

const (
	CategoryYes Category = 0
	CategoryNo  Category = 1

	CategoryOffer  Category = 0
	CategoryDemand Category = 1
)

// CategoryName returns the display name of c under variant v.
func (v MarketVariant) CategoryName(c Category) string {
	switch v {
	case VariantEnergy:
		switch c {
		case CategoryOffer:
			return "OFFER"
		case CategoryDemand:
			return "DEMAND"
		}
	default:
		switch c {
		case CategoryYes:
			return "YES"
		case CategoryNo:
			return "NO"
		}
	}
	return "UNKNOWN"
}

// ParseCategory maps a display name back to a category for variant v.
func (v MarketVariant) ParseCategory(name string) (Category, bool) {
	for c := Category(0); int(c) < v.Categories(); c++ {
		if v.CategoryName(c) == name {
			return c, true
		}
	}
	return 0, false
}

// Market represents one trading/voting round
type Market struct {
	ID                string        `gorm:"primaryKey;size:64" json:"id"`
	Variant           MarketVariant `gorm:"size:20;not null;index" json:"variant"`
	Organizer         string        `gorm:"size:64;index" json:"organizer"` // empty for permissionless rounds
	Title             string        `gorm:"size:500" json:"title"`
	OpenedAt          time.Time     `gorm:"not null" json:"opened_at"`
	ClosesAt          time.Time     `gorm:"not null;index" json:"closes_at"`
	StakeUnit         int64         `gorm:"not null" json:"stake_unit"`
	PrizePool         int64         `gorm:"not null;default:0" json:"prize_pool"`
	PaidOut           int64         `gorm:"not null;default:0" json:"paid_out"`
	Participants      int64         `gorm:"not null;default:0" json:"participants"`
	EncryptedTotals   []string      `gorm:"serializer:json" json:"encrypted_totals"`
	RevealedTotals    []uint64      `gorm:"serializer:json" json:"revealed_totals,omitempty"`
	WinningCategory   *Category     `json:"winning_category,omitempty"`
	Tie               bool          `gorm:"default:false" json:"tie"`
	PrivacyFactor     uint64        `gorm:"not null" json:"-"`
	Phase             MarketPhase   `gorm:"size:30;not null;default:OPEN;index" json:"phase"`
	RevealRequestID   uint64        `gorm:"index" json:"reveal_request_id,omitempty"`
	RevealRequestedAt *time.Time    `json:"reveal_requested_at,omitempty"`
	ClosedAt          *time.Time    `json:"closed_at,omitempty"`
	ResolvedAt        *time.Time    `json:"resolved_at,omitempty"`
	RefundEligibleAt  *time.Time    `json:"refund_eligible_at,omitempty"`
	CreatedAt         time.Time     `json:"created_at"`
	UpdatedAt         time.Time     `json:"updated_at"`
}

// TableName specifies the table name for Market model
func (Market) TableName() string {
	return "markets"
}

// HasRevealRequest reports whether a reveal request has been issued.
func (m *Market) HasRevealRequest() bool {
	return m.RevealRequestID != 0 && m.RevealRequestedAt != nil
}

// CreateMarketRequest represents a request to create a new market
type CreateMarketRequest struct {
	ID              string        `json:"id"`
	Variant         MarketVariant `json:"variant"`
	Title           string        `json:"title"`
	DurationSeconds int64         `json:"duration_seconds" binding:"required,gt=0"`
	StakeUnit       int64         `json:"stake_unit" binding:"required,gt=0"`
	FeePaid         int64         `json:"fee_paid"`
}

// SubmitRequest represents a confidential submission to an open market
type SubmitRequest struct {
	Category   string `json:"category" binding:"required"`
	Handle     string `json:"handle" binding:"required"`      // base58 confidential input handle
	InputProof string `json:"input_proof" binding:"required"` // hex validity proof for the handle
	Payment    int64  `json:"payment" binding:"required,gt=0"`
}

// MarketResponse is the public view of a market
type MarketResponse struct {
	ID                  string     `json:"id"`
	Variant             string     `json:"variant"`
	Organizer           string     `json:"organizer"`
	Title               string     `json:"title"`
	Phase               string     `json:"phase"`
	OpenedAt            time.Time  `json:"opened_at"`
	ClosesAt            time.Time  `json:"closes_at"`
	StakeUnit           int64      `json:"stake_unit"`
	PrizePool           int64      `json:"prize_pool"`
	PaidOut             int64      `json:"paid_out"`
	Participants        int64      `json:"participants"`
	EncryptedTotals     []string   `json:"encrypted_totals"`
	RevealRequestID     uint64     `json:"reveal_request_id,omitempty"`
	RevealRequestedAt   *time.Time `json:"reveal_requested_at,omitempty"`
	SecondsUntilTimeout int64      `json:"seconds_until_timeout"`
}
