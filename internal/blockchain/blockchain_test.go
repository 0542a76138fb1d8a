package blockchain

import (
	"context"
	"errors"
	"testing"

	"confidential-market/internal/models"
	"confidential-market/internal/repository"

	"github.com/gagliardetto/solana-go"
	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupRepo(t *testing.T) *repository.Repository {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(&models.VenueSettings{}, &models.LedgerEntry{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return repository.NewRepository(db)
}

func TestVaultDepositAndTransfer(t *testing.T) {
	repo := setupRepo(t)
	vault := NewVault(zap.NewNop())
	ctx := context.Background()

	if err := vault.Deposit(ctx, repo, "m1", "alice", 100, models.LedgerDeposit); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if err := vault.Deposit(ctx, repo, "m1", "bob", 0, models.LedgerDeposit); !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("expected ErrInvalidAmount, got %v", err)
	}

	ref, err := vault.Transfer(ctx, repo, "m1", "alice", 60, models.LedgerPayout)
	if err != nil || ref == "" {
		t.Fatalf("transfer: %v", err)
	}
	if _, err := vault.Transfer(ctx, repo, "m1", "bob", 41, models.LedgerPayout); !errors.Is(err, ErrInsufficientFunds) {
		t.Errorf("expected ErrInsufficientFunds, got %v", err)
	}

	if err := vault.Deposit(ctx, repo, "m1", "alice", 5, models.LedgerPayout); !errors.Is(err, ErrWrongDirection) {
		t.Errorf("expected ErrWrongDirection for payout deposit, got %v", err)
	}
	if _, err := vault.Transfer(ctx, repo, "m1", "alice", 5, models.LedgerDeposit); !errors.Is(err, ErrWrongDirection) {
		t.Errorf("expected ErrWrongDirection for deposit transfer, got %v", err)
	}

	balance, _ := vault.Balance(ctx, repo)
	if balance != 40 {
		t.Errorf("expected balance 40, got %d", balance)
	}
	entries, _ := repo.ListLedgerEntries(ctx, "m1")
	if len(entries) != 2 {
		t.Errorf("expected 2 ledger entries, got %d", len(entries))
	}
}

func TestWalletSignature(t *testing.T) {
	key, err := solana.NewRandomPrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	wallet := key.PublicKey().String()
	sig, err := key.Sign([]byte(AuthMessage))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	if err := VerifyWalletSignature(wallet, []byte(AuthMessage), sig.String()); err != nil {
		t.Errorf("expected valid signature, got %v", err)
	}
	if err := VerifyWalletSignature(wallet, []byte("other"), sig.String()); !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("expected ErrInvalidSignature, got %v", err)
	}
	if err := VerifyWalletSignature("not-a-wallet", []byte(AuthMessage), sig.String()); !errors.Is(err, ErrInvalidWallet) {
		t.Errorf("expected ErrInvalidWallet, got %v", err)
	}
	if !ValidateWalletAddress(wallet) || ValidateWalletAddress("0x123") {
		t.Error("unexpected wallet validation result")
	}
}
