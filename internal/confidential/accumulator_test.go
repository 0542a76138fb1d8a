package confidential

import (
	"context"
	"errors"
	"math"
	"testing"
)

const oracleAccount = "oracle"

func reveal(t *testing.T, b *PlaintextBackend, h Handle) uint64 {
	t.Helper()
	ctx := context.Background()
	if err := b.Allow(ctx, h, oracleAccount); err != nil {
		t.Fatalf("allow failed: %v", err)
	}
	v, err := b.Decrypt(ctx, h, oracleAccount)
	if err != nil {
		t.Fatalf("decrypt failed: %v", err)
	}
	return v
}

func TestAccumulatorAddIsOrderIndependent(t *testing.T) {
	ctx := context.Background()
	values := []uint64{7, 100, 3, 0, 42}

	sum := func(order []int) uint64 {
		b := NewPlaintextBackend([]byte("secret"), nil)
		acc := NewAccumulator(b)
		total, err := acc.Init(ctx)
		if err != nil {
			t.Fatalf("init failed: %v", err)
		}
		for _, i := range order {
			in, _, err := b.Encrypt(ctx, "alice", values[i])
			if err != nil {
				t.Fatalf("encrypt failed: %v", err)
			}
			total, err = acc.Add(ctx, total, in)
			if err != nil {
				t.Fatalf("add failed: %v", err)
			}
		}
		return reveal(t, b, total)
	}

	forward := sum([]int{0, 1, 2, 3, 4})
	backward := sum([]int{4, 3, 2, 1, 0})
	if forward != 152 || backward != 152 {
		t.Errorf("expected 152 both ways, got %d and %d", forward, backward)
	}
}

func TestSelectAdd(t *testing.T) {
	ctx := context.Background()
	b := NewPlaintextBackend(nil, nil)
	acc := NewAccumulator(b)

	total, _ := b.TrivialEncrypt(ctx, 10)
	delta, _ := b.TrivialEncrypt(ctx, 5)

	tests := []struct {
		name string
		pred bool
		want uint64
	}{
		{"predicate true adds", true, 15},
		{"predicate false keeps", false, 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pred, _ := b.TrivialBool(ctx, tt.pred)
			got, err := acc.SelectAdd(ctx, total, pred, delta)
			if err != nil {
				t.Fatalf("SelectAdd failed: %v", err)
			}
			if got == total {
				t.Errorf("expected a fresh handle")
			}
			if v := reveal(t, b, got); v != tt.want {
				t.Errorf("expected %d, got %d", tt.want, v)
			}
		})
	}
}

func TestRouteTouchesEveryTotal(t *testing.T) {
	ctx := context.Background()
	b := NewPlaintextBackend(nil, nil)
	acc := NewAccumulator(b)

	totals, err := acc.InitTotals(ctx, 2)
	if err != nil {
		t.Fatalf("InitTotals failed: %v", err)
	}
	in, _, _ := b.Encrypt(ctx, "bob", 60)
	next, err := acc.Route(ctx, totals, 0, in)
	if err != nil {
		t.Fatalf("Route failed: %v", err)
	}
	for i := range totals {
		if next[i] == totals[i] {
			t.Errorf("total %d kept its handle", i)
		}
	}
	if v := reveal(t, b, next[0]); v != 60 {
		t.Errorf("category 0: expected 60, got %d", v)
	}
	if v := reveal(t, b, next[1]); v != 0 {
		t.Errorf("category 1: expected 0, got %d", v)
	}

	if _, err := acc.Route(ctx, totals, 2, in); err == nil {
		t.Errorf("expected out of range category to fail")
	}
}

func TestVerifyInput(t *testing.T) {
	ctx := context.Background()
	b := NewPlaintextBackend([]byte("k"), nil)
	h, proof, err := b.Encrypt(ctx, "alice", 9)
	if err != nil {
		t.Fatalf("encrypt failed: %v", err)
	}

	if got, err := b.VerifyInput(ctx, h, proof, "alice"); err != nil || got != h {
		t.Fatalf("expected valid input, got %v %v", got, err)
	}
	if _, err := b.VerifyInput(ctx, h, proof, "mallory"); !errors.Is(err, ErrInvalidInputProof) {
		t.Errorf("expected ErrInvalidInputProof for wrong owner, got %v", err)
	}
	if _, err := b.VerifyInput(ctx, Handle{1}, proof, "alice"); !errors.Is(err, ErrUnknownHandle) {
		t.Errorf("expected ErrUnknownHandle, got %v", err)
	}
}

func TestDecryptRequiresAccess(t *testing.T) {
	ctx := context.Background()
	b := NewPlaintextBackend(nil, nil)
	h, _ := b.TrivialEncrypt(ctx, 1)
	if _, err := b.Decrypt(ctx, h, oracleAccount); !errors.Is(err, ErrAccessDenied) {
		t.Fatalf("expected ErrAccessDenied, got %v", err)
	}
	acc := NewAccumulator(b)
	if err := acc.AuthorizeAccess(ctx, h, "market", oracleAccount); err != nil {
		t.Fatalf("AuthorizeAccess failed: %v", err)
	}
	if !b.IsAllowed(ctx, h, "market") {
		t.Errorf("expected market account to be allowed")
	}
	if v, err := b.Decrypt(ctx, h, oracleAccount); err != nil || v != 1 {
		t.Errorf("expected 1, got %d %v", v, err)
	}
}

func TestAddOverflowAndTypes(t *testing.T) {
	ctx := context.Background()
	b := NewPlaintextBackend(nil, nil)
	big, _ := b.TrivialEncrypt(ctx, math.MaxUint64)
	one, _ := b.TrivialEncrypt(ctx, 1)
	if _, err := b.Add(ctx, big, one); !errors.Is(err, ErrOverflow) {
		t.Errorf("expected ErrOverflow, got %v", err)
	}
	flag, _ := b.TrivialBool(ctx, true)
	if _, err := b.Add(ctx, flag, one); !errors.Is(err, ErrTypeMismatch) {
		t.Errorf("expected ErrTypeMismatch, got %v", err)
	}
	if _, err := b.Select(ctx, one, one, one); !errors.Is(err, ErrTypeMismatch) {
		t.Errorf("expected ErrTypeMismatch for non-boolean predicate, got %v", err)
	}
}

func TestHandleTextRoundTrip(t *testing.T) {
	h := Handle{0xde, 0xad, 0xbe, 0xef}
	got, err := ParseHandle(h.String())
	if err != nil || got != h {
		t.Fatalf("expected %v, got %v %v", h, got, err)
	}
	if _, err := ParseHandle("abc"); !errors.Is(err, ErrMalformedHandle) {
		t.Errorf("expected ErrMalformedHandle, got %v", err)
	}
}

func TestBindMovesStateToStore(t *testing.T) {
	ctx := context.Background()
	shared := NewMemoryStore()
	b := NewPlaintextBackend([]byte("k"), NewMemoryStore())
	bound := b.Bind(shared)

	h, err := bound.TrivialEncrypt(ctx, 5)
	if err != nil {
		t.Fatalf("encrypt failed: %v", err)
	}
	if _, err := shared.GetCiphertext(ctx, h); err != nil {
		t.Fatalf("expected ciphertext in bound store, got %v", err)
	}
	if _, err := b.Decrypt(ctx, h, oracleAccount); !errors.Is(err, ErrUnknownHandle) {
		t.Errorf("expected ErrUnknownHandle outside the bound store, got %v", err)
	}

	// A backend over the same store with the same key accepts inputs
	// registered before it existed.
	in, proof, err := NewPlaintextBackend([]byte("k"), shared).Encrypt(ctx, "alice", 3)
	if err != nil {
		t.Fatalf("encrypt failed: %v", err)
	}
	if _, err := bound.VerifyInput(ctx, in, proof, "alice"); err != nil {
		t.Errorf("expected input to verify, got %v", err)
	}
	if err := bound.Allow(ctx, Handle{9}, oracleAccount); !errors.Is(err, ErrUnknownHandle) {
		t.Errorf("expected ErrUnknownHandle, got %v", err)
	}
}
