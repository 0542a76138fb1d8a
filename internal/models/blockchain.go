package models

import (
	"time"

	"github.com/google/uuid"
)

type LedgerEntryType string

const (
	LedgerDeposit        LedgerEntryType = "DEPOSIT"
	LedgerCreationFee    LedgerEntryType = "CREATION_FEE"
	LedgerPayout         LedgerEntryType = "PAYOUT"
	LedgerTieRefund      LedgerEntryType = "TIE_REFUND"
	LedgerRecoveryRefund LedgerEntryType = "RECOVERY_REFUND"
	LedgerFeeWithdrawal  LedgerEntryType = "FEE_WITHDRAWAL"
)

// Outflow reports whether the entry moves funds out of the vault.
func (t LedgerEntryType) Outflow() bool {
	switch t {
	case LedgerPayout, LedgerTieRefund, LedgerRecoveryRefund, LedgerFeeWithdrawal:
		return true
	}
	return false
}

// LedgerEntry is one movement of native currency into or out of the custody vault
type LedgerEntry struct {
	ID        uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	MarketID  string          `gorm:"size:64;index" json:"market_id"`
	Account   string          `gorm:"size:64;not null;index" json:"account"`
	Type      LedgerEntryType `gorm:"size:30;not null;index" json:"type"`
	Amount    int64           `gorm:"not null" json:"amount"`
	CreatedAt time.Time       `json:"created_at"`
}

func (LedgerEntry) TableName() string {
	return "ledger_entries"
}

// VenueSettings is the single-row venue state: pause flag, fees and vault balance
type VenueSettings struct {
	ID            uint      `gorm:"primaryKey" json:"-"`
	Paused        bool      `gorm:"not null;default:false" json:"paused"`
	CreationFee   int64     `gorm:"not null;default:0" json:"creation_fee"`
	FeesAccrued   int64     `gorm:"not null;default:0" json:"fees_accrued"`
	FeesWithdrawn int64     `gorm:"not null;default:0" json:"fees_withdrawn"`
	VaultBalance  int64     `gorm:"not null;default:0" json:"vault_balance"`
	NextRound     int64     `gorm:"not null;default:1" json:"next_round"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (VenueSettings) TableName() string {
	return "venue_settings"
}

// VenueSettingsID is the primary key of the single settings row.
const VenueSettingsID = 1
