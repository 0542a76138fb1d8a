package models

import (
	"time"
)

// RevealRequest correlates an oracle-assigned request identity with a market
type RevealRequest struct {
	RequestID   uint64     `gorm:"primaryKey;autoIncrement:false" json:"request_id"`
	MarketID    string     `gorm:"size:64;not null;index" json:"market_id"`
	Handles     []string   `gorm:"serializer:json" json:"handles"`
	RequestedAt time.Time  `gorm:"not null" json:"requested_at"`
	Consumed    bool       `gorm:"not null;default:false" json:"consumed"`
	ConsumedAt  *time.Time `json:"consumed_at,omitempty"`
}

func (RevealRequest) TableName() string {
	return "reveal_requests"
}

// OracleCallbackRequest is the relay payload delivered by the decryption oracle
type OracleCallbackRequest struct {
	RequestID   uint64 `json:"request_id" binding:"required"`
	ClearValues string `json:"clear_values" binding:"required"` // hex
	Proof       string `json:"proof" binding:"required"`        // hex
}
