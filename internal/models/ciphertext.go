package models

import (
	"time"
)

// Ciphertext is a value held by the stand-in coprocessor behind its handle.
// Plaintext is the decimal form of a uint64.
type Ciphertext struct {
	Handle    string    `gorm:"primaryKey;size:64" json:"handle"`
	Plaintext string    `gorm:"size:20;not null" json:"-"`
	IsBool    bool      `gorm:"not null;default:false" json:"is_bool"`
	CreatedAt time.Time `json:"created_at"`
}

func (Ciphertext) TableName() string {
	return "ciphertexts"
}

// CiphertextGrant lets an account compute on and request decryption of a handle
type CiphertextGrant struct {
	Handle    string    `gorm:"primaryKey;size:64" json:"handle"`
	Account   string    `gorm:"primaryKey;size:128" json:"account"`
	CreatedAt time.Time `json:"created_at"`
}

func (CiphertextGrant) TableName() string {
	return "ciphertext_grants"
}

// RegisterInputRequest asks the stand-in coprocessor to encrypt a value for the caller
type RegisterInputRequest struct {
	Value *uint64 `json:"value" binding:"required"`
}

// RegisterInputResponse carries the input handle and its validity proof
type RegisterInputResponse struct {
	Handle     string `json:"handle"`
	InputProof string `json:"input_proof"` // hex
}
