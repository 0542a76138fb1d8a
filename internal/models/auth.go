package models

import (
	"time"
)

// LoginChallenge is a single-use nonce a wallet signs to log in
type LoginChallenge struct {
	Nonce     string     `gorm:"primaryKey;size:64" json:"nonce"`
	Wallet    string     `gorm:"size:64;not null;index" json:"wallet"`
	ExpiresAt time.Time  `gorm:"not null;index" json:"expires_at"`
	UsedAt    *time.Time `json:"used_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

func (LoginChallenge) TableName() string {
	return "login_challenges"
}

// ChallengeRequest asks for a login challenge
type ChallengeRequest struct {
	WalletAddress string `json:"wallet_address" binding:"required"`
}

// ChallengeResponse is the message to sign and its nonce
type ChallengeResponse struct {
	Nonce     string    `json:"nonce"`
	Message   string    `json:"message"`
	ExpiresAt time.Time `json:"expires_at"`
}

// WalletLoginRequest presents the signed challenge
type WalletLoginRequest struct {
	WalletAddress string `json:"wallet_address" binding:"required"`
	Nonce         string `json:"nonce" binding:"required"`
	Signature     string `json:"signature" binding:"required"`
}
