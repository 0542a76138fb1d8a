package services

import (
	"context"
	"fmt"
	"time"

	"confidential-market/internal/blockchain"
	"confidential-market/internal/models"
	"confidential-market/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AuthService issues single-use login challenges and checks the wallet
// signatures over them.
type AuthService struct {
	repo   *repository.Repository
	ttl    time.Duration
	now    func() time.Time
	logger *zap.Logger
}

func NewAuthService(repo *repository.Repository, ttl time.Duration, logger *zap.Logger) *AuthService {
	return &AuthService{
		repo:   repo,
		ttl:    ttl,
		now:    func() time.Time { return time.Now().UTC() },
		logger: logger,
	}
}

// SetClock replaces the time source.
func (s *AuthService) SetClock(now func() time.Time) {
	s.now = now
}

// ChallengeMessage is the exact text a wallet signs to answer a challenge.
func ChallengeMessage(wallet, nonce string, expiresAt time.Time) string {
	return fmt.Sprintf("%s\nWallet: %s\nNonce: %s\nExpires At: %s",
		blockchain.AuthMessage, wallet, nonce, expiresAt.UTC().Format(time.RFC3339))
}

// IssueChallenge creates a nonce for wallet valid for the configured TTL.
func (s *AuthService) IssueChallenge(ctx context.Context, wallet string) (*models.ChallengeResponse, error) {
	if _, err := blockchain.ParseWallet(wallet); err != nil {
		return nil, err
	}
	now := s.now()
	if _, err := s.repo.DeleteExpiredLoginChallenges(ctx, now); err != nil {
		s.logger.Warn("failed to prune login challenges", zap.Error(err))
	}

	challenge := &models.LoginChallenge{
		Nonce:     uuid.NewString(),
		Wallet:    wallet,
		ExpiresAt: now.Add(s.ttl).Truncate(time.Second),
	}
	if err := s.repo.CreateLoginChallenge(ctx, challenge); err != nil {
		return nil, fmt.Errorf("failed to store login challenge: %w", err)
	}
	return &models.ChallengeResponse{
		Nonce:     challenge.Nonce,
		Message:   ChallengeMessage(wallet, challenge.Nonce, challenge.ExpiresAt),
		ExpiresAt: challenge.ExpiresAt,
	}, nil
}

// Login checks the signature over an outstanding challenge and consumes it.
// A challenge answers exactly one login.
func (s *AuthService) Login(ctx context.Context, req *models.WalletLoginRequest) error {
	if _, err := blockchain.ParseWallet(req.WalletAddress); err != nil {
		return err
	}
	challenge, err := s.repo.GetLoginChallenge(ctx, req.Nonce)
	if repository.IsNotFound(err) {
		return ErrLoginRejected
	}
	if err != nil {
		return fmt.Errorf("failed to get login challenge: %w", err)
	}
	if challenge.Wallet != req.WalletAddress {
		return ErrLoginRejected
	}

	message := ChallengeMessage(challenge.Wallet, challenge.Nonce, challenge.ExpiresAt)
	if err := blockchain.VerifyWalletSignature(req.WalletAddress, []byte(message), req.Signature); err != nil {
		s.logger.Debug("wallet login rejected", zap.String("wallet", req.WalletAddress), zap.Error(err))
		return fmt.Errorf("%w: %v", ErrLoginRejected, err)
	}

	used, err := s.repo.UseLoginChallenge(ctx, req.Nonce, req.WalletAddress, s.now())
	if err != nil {
		return fmt.Errorf("failed to consume login challenge: %w", err)
	}
	if !used {
		return ErrLoginRejected
	}
	return nil
}
