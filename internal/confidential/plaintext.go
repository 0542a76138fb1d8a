package confidential

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"math"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// PlaintextBackend is a Backend that keeps values in the clear behind random
// handles in a Store. It stands in for the confidential coprocessor; it also
// plays the client side (Encrypt) and the decryption side (Decrypt) of the
// protocol.
type PlaintextBackend struct {
	records Store
	secret  []byte
}

// NewPlaintextBackend creates a backend over store, or over a MemoryStore
// when store is nil. secret keys the input proofs.
func NewPlaintextBackend(secret []byte, store Store) *PlaintextBackend {
	if len(secret) == 0 {
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			panic(fmt.Sprintf("confidential: read random secret: %v", err))
		}
	}
	if store == nil {
		store = NewMemoryStore()
	}
	return &PlaintextBackend{
		records: store,
		secret:  append([]byte(nil), secret...),
	}
}

// Bind returns a backend over store that shares this backend's input-proof key.
func (b *PlaintextBackend) Bind(store Store) Backend {
	return &PlaintextBackend{records: store, secret: b.secret}
}

func (b *PlaintextBackend) put(ctx context.Context, rec Record) (Handle, error) {
	var h Handle
	if _, err := rand.Read(h[:]); err != nil {
		return Handle{}, fmt.Errorf("confidential: new handle: %w", err)
	}
	if err := b.records.PutCiphertext(ctx, h, rec); err != nil {
		return Handle{}, fmt.Errorf("confidential: store ciphertext: %w", err)
	}
	return h, nil
}

func (b *PlaintextBackend) TrivialEncrypt(ctx context.Context, value uint64) (Handle, error) {
	return b.put(ctx, Record{Value: value})
}

func (b *PlaintextBackend) TrivialBool(ctx context.Context, value bool) (Handle, error) {
	return b.put(ctx, Record{Bool: true, Value: boolToUint(value)})
}

func (b *PlaintextBackend) Add(ctx context.Context, x, y Handle) (Handle, error) {
	cx, err := b.records.GetCiphertext(ctx, x)
	if err != nil {
		return Handle{}, err
	}
	cy, err := b.records.GetCiphertext(ctx, y)
	if err != nil {
		return Handle{}, err
	}
	if cx.Bool || cy.Bool {
		return Handle{}, ErrTypeMismatch
	}
	if cx.Value > math.MaxUint64-cy.Value {
		return Handle{}, ErrOverflow
	}
	return b.put(ctx, Record{Value: cx.Value + cy.Value})
}

func (b *PlaintextBackend) Select(ctx context.Context, pred, ifTrue, ifFalse Handle) (Handle, error) {
	cp, err := b.records.GetCiphertext(ctx, pred)
	if err != nil {
		return Handle{}, err
	}
	if !cp.Bool {
		return Handle{}, ErrTypeMismatch
	}
	ct, err := b.records.GetCiphertext(ctx, ifTrue)
	if err != nil {
		return Handle{}, err
	}
	cf, err := b.records.GetCiphertext(ctx, ifFalse)
	if err != nil {
		return Handle{}, err
	}
	if ct.Bool != cf.Bool {
		return Handle{}, ErrTypeMismatch
	}
	chosen := cf
	if cp.Value == 1 {
		chosen = ct
	}
	return b.put(ctx, chosen)
}

// Encrypt is the client-side stand-in: it registers value for owner and
// returns the input handle and its validity proof.
func (b *PlaintextBackend) Encrypt(ctx context.Context, owner string, value uint64) (Handle, []byte, error) {
	h, err := b.put(ctx, Record{Value: value})
	if err != nil {
		return Handle{}, nil, err
	}
	return h, b.inputProof(h, owner), nil
}

func (b *PlaintextBackend) inputProof(h Handle, owner string) []byte {
	return ethcrypto.Keccak256(b.secret, h[:], []byte(owner))
}

func (b *PlaintextBackend) VerifyInput(ctx context.Context, input Handle, proof []byte, owner string) (Handle, error) {
	ct, err := b.records.GetCiphertext(ctx, input)
	if err != nil {
		return Handle{}, err
	}
	if ct.Bool {
		return Handle{}, ErrTypeMismatch
	}
	if subtle.ConstantTimeCompare(proof, b.inputProof(input, owner)) != 1 {
		return Handle{}, ErrInvalidInputProof
	}
	return input, nil
}

func (b *PlaintextBackend) Allow(ctx context.Context, h Handle, account string) error {
	if _, err := b.records.GetCiphertext(ctx, h); err != nil {
		return err
	}
	return b.records.GrantAccess(ctx, h, account)
}

func (b *PlaintextBackend) IsAllowed(ctx context.Context, h Handle, account string) bool {
	ok, err := b.records.HasAccess(ctx, h, account)
	return err == nil && ok
}

// Decrypt returns the plaintext of h to a requester holding access.
func (b *PlaintextBackend) Decrypt(ctx context.Context, h Handle, requester string) (uint64, error) {
	ct, err := b.records.GetCiphertext(ctx, h)
	if err != nil {
		return 0, err
	}
	ok, err := b.records.HasAccess(ctx, h, requester)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, ErrAccessDenied
	}
	return ct.Value, nil
}

func boolToUint(v bool) uint64 {
	if v {
		return 1
	}
	return 0
}

var (
	_ Backend = (*PlaintextBackend)(nil)
	_ Binder  = (*PlaintextBackend)(nil)
)
