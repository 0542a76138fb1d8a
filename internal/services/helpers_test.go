package services

import (
	"context"
	"encoding/hex"
	"errors"
	"sync"
	"testing"
	"time"

	"confidential-market/internal/blockchain"
	"confidential-market/internal/confidential"
	"confidential-market/internal/lock"
	"confidential-market/internal/models"
	"confidential-market/internal/oracle"
	"confidential-market/internal/repository"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	testOracleAccount = "oracle"
	organizer         = "organizer"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// recordingOracle assigns sequential request ids and remembers the handles.
type recordingOracle struct {
	mu       sync.Mutex
	next     uint64
	requests map[uint64][]confidential.Handle
	err      error
}

func (o *recordingOracle) RequestDecryption(ctx context.Context, handles []confidential.Handle) (uint64, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.err != nil {
		return 0, o.err
	}
	o.next++
	o.requests[o.next] = handles
	return o.next, nil
}

// failingVault accepts deposits and fails every transfer.
type failingVault struct {
	*blockchain.Vault
}

func (failingVault) Transfer(ctx context.Context, repo *repository.Repository, marketID, account string, amount int64, kind models.LedgerEntryType) (string, error) {
	return "", errors.New("transfer rejected")
}

type testEnv struct {
	t          testing.TB
	ctx        context.Context
	repo       *repository.Repository
	backend    *confidential.PlaintextBackend
	vault      *blockchain.Vault
	clock      *testClock
	oracle     *recordingOracle
	signer     *oracle.ProofSigner
	verifier   *oracle.ThresholdVerifier
	settings   Settings
	markets    *MarketService
	reveal     *RevealService
	settlement *SettlementService
	admin      *AdminService
}

func defaultSettings() Settings {
	return Settings{
		MinDuration:    time.Minute,
		MaxDuration:    7 * 24 * time.Hour,
		RevealTimeout:  24 * time.Hour,
		EnforcePoolCap: true,
		PrivacyFactor:  0,
	}
}

func newTestEnv(t testing.TB, settings Settings) *testEnv {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to connect database: %v", err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	err = db.AutoMigrate(
		&models.Market{},
		&models.Participation{},
		&models.Submission{},
		&models.RevealRequest{},
		&models.LedgerEntry{},
		&models.VenueSettings{},
		&models.AdminUser{},
		&models.AdminLog{},
		&models.Ciphertext{},
		&models.CiphertextGrant{},
		&models.LoginChallenge{},
	)
	if err != nil {
		t.Fatalf("failed to migrate database: %v", err)
	}

	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	domain := oracle.DefaultDomain(31337, "0x00000000000000000000000000000000000000aa")
	signer, err := oracle.NewProofSigner([]string{hex.EncodeToString(crypto.FromECDSA(key))}, domain)
	if err != nil {
		t.Fatalf("failed to create signer: %v", err)
	}
	verifier, err := oracle.NewThresholdVerifier(signer.Addresses(), 1, domain)
	if err != nil {
		t.Fatalf("failed to create verifier: %v", err)
	}

	vault := blockchain.NewVault(zap.NewNop())
	clock := &testClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	e := &testEnv{
		t:        t,
		ctx:      context.Background(),
		repo:     repository.NewRepository(db),
		vault:    vault,
		clock:    clock,
		oracle:   &recordingOracle{requests: make(map[uint64][]confidential.Handle)},
		signer:   signer,
		verifier: verifier,
		settings: settings,
	}
	e.wire()
	return e
}

// wire builds a fresh backend and services over the env's database, as a
// restarted process would.
func (e *testEnv) wire() {
	log := zap.NewNop()
	e.backend = confidential.NewPlaintextBackend([]byte("test-secret"), e.repo)
	e.markets = NewMarketService(e.repo, e.backend, e.vault, lock.NewKeyedMutex(), e.settings, log)
	e.markets.SetClock(e.clock.Now)
	e.reveal = NewRevealService(e.repo, e.markets, e.oracle, e.verifier, testOracleAccount, log)
	e.settlement = NewSettlementService(e.markets, e.vault, log)
	e.admin = NewAdminService(e.repo, e.markets, e.vault, log)
}

func (e *testEnv) createBelief(id string, stake int64) *models.Market {
	e.t.Helper()
	m, err := e.markets.CreateMarket(e.ctx, organizer, &models.CreateMarketRequest{
		ID:              id,
		Variant:         models.VariantBelief,
		DurationSeconds: 3600,
		StakeUnit:       stake,
	})
	if err != nil {
		e.t.Fatalf("create market: %v", err)
	}
	return m
}

func (e *testEnv) submitRequest(participant, category string, value uint64, payment int64) *models.SubmitRequest {
	e.t.Helper()
	h, proof, err := e.backend.Encrypt(e.ctx, participant, value)
	if err != nil {
		e.t.Fatalf("encrypt: %v", err)
	}
	return &models.SubmitRequest{
		Category:   category,
		Handle:     h.String(),
		InputProof: hex.EncodeToString(proof),
		Payment:    payment,
	}
}

func (e *testEnv) submit(marketID, participant, category string, value uint64, payment int64) {
	e.t.Helper()
	if _, err := e.markets.Submit(e.ctx, marketID, participant, e.submitRequest(participant, category, value, payment)); err != nil {
		e.t.Fatalf("submit %s: %v", participant, err)
	}
}

// closeAndRequest moves past the close time and requests the reveal.
func (e *testEnv) closeAndRequest(marketID, caller string) *models.Market {
	e.t.Helper()
	e.clock.Advance(time.Hour)
	m, err := e.reveal.RequestReveal(e.ctx, marketID, caller)
	if err != nil {
		e.t.Fatalf("request reveal: %v", err)
	}
	return m
}

// oracleAnswer plays the oracle: it decrypts the requested handles and signs the result.
func (e *testEnv) oracleAnswer(requestID uint64) ([]byte, []byte) {
	e.t.Helper()
	e.oracle.mu.Lock()
	handles := e.oracle.requests[requestID]
	e.oracle.mu.Unlock()
	values := make([]uint64, len(handles))
	for i, h := range handles {
		v, err := e.backend.Decrypt(e.ctx, h, testOracleAccount)
		if err != nil {
			e.t.Fatalf("oracle decrypt: %v", err)
		}
		values[i] = v
	}
	clearValues := oracle.EncodeClearValues(values)
	proof, err := e.signer.Sign(requestID, handles, clearValues)
	if err != nil {
		e.t.Fatalf("oracle sign: %v", err)
	}
	return clearValues, proof
}

func (e *testEnv) resolve(m *models.Market) *models.Market {
	e.t.Helper()
	clearValues, proof := e.oracleAnswer(m.RevealRequestID)
	if err := e.reveal.HandleCallback(e.ctx, m.RevealRequestID, clearValues, proof); err != nil {
		e.t.Fatalf("callback: %v", err)
	}
	return e.market(m.ID)
}

func (e *testEnv) market(id string) *models.Market {
	e.t.Helper()
	m, err := e.markets.GetMarket(e.ctx, id)
	if err != nil {
		e.t.Fatalf("get market: %v", err)
	}
	return m
}

func (e *testEnv) fundVault(amount int64) {
	e.t.Helper()
	if err := e.vault.Deposit(e.ctx, e.repo, "", "treasury", amount, models.LedgerDeposit); err != nil {
		e.t.Fatalf("fund vault: %v", err)
	}
}

func (e *testEnv) vaultBalance() int64 {
	e.t.Helper()
	b, err := e.vault.Balance(e.ctx, e.repo)
	if err != nil {
		e.t.Fatalf("vault balance: %v", err)
	}
	return b
}

func expectErr(t *testing.T, err, want error) {
	t.Helper()
	if !errors.Is(err, want) {
		t.Fatalf("expected %v, got %v", want, err)
	}
}

const testAdmin = "admin-wallet"

func (e *testEnv) bootstrapAdmin() string {
	e.t.Helper()
	if err := e.admin.BootstrapAdmins(e.ctx, []string{testAdmin}); err != nil {
		e.t.Fatalf("bootstrap admin: %v", err)
	}
	return testAdmin
}
