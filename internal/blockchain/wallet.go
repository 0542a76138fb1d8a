package blockchain

import (
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// AuthMessage opens every login challenge a wallet signs.
const AuthMessage = "Sign this message to authenticate with the confidential market"

var (
	ErrInvalidWallet    = errors.New("wallet: invalid address")
	ErrInvalidSignature = errors.New("wallet: invalid signature")
)

// ParseWallet validates a base58 Solana wallet address
func ParseWallet(address string) (solana.PublicKey, error) {
	pk, err := solana.PublicKeyFromBase58(address)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("%w: %v", ErrInvalidWallet, err)
	}
	if pk.IsZero() {
		return solana.PublicKey{}, ErrInvalidWallet
	}
	return pk, nil
}

// ValidateWalletAddress reports whether address is a Solana public key
func ValidateWalletAddress(address string) bool {
	_, err := ParseWallet(address)
	return err == nil
}

// VerifyWalletSignature checks a base58 ed25519 signature of message by wallet
func VerifyWalletSignature(wallet string, message []byte, signature string) error {
	pk, err := ParseWallet(wallet)
	if err != nil {
		return err
	}
	sig, err := solana.SignatureFromBase58(signature)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	if !sig.Verify(pk, message) {
		return ErrInvalidSignature
	}
	return nil
}
