// Package confidential provides running totals over opaque numeric handles.
//
// Arithmetic is delegated to a Backend (a confidential coprocessor in production).
// The Accumulator composes backend operations into the add/select-add primitives
// the market needs, so no operand is ever decrypted while totals are built.
package confidential

import (
	"context"
	"errors"
	"fmt"

	"github.com/mr-tron/base58"
)

var (
	ErrUnknownHandle     = errors.New("confidential: unknown handle")
	ErrTypeMismatch      = errors.New("confidential: operand type mismatch")
	ErrOverflow          = errors.New("confidential: addition overflows uint64")
	ErrInvalidInputProof = errors.New("confidential: invalid input proof")
	ErrAccessDenied      = errors.New("confidential: access denied")
	ErrMalformedHandle   = errors.New("confidential: malformed handle")
)

// HandleSize is the byte length of a handle.
const HandleSize = 32

// Handle is an opaque reference to a confidential value.
type Handle [HandleSize]byte

// String returns the base58 text form of the handle.
func (h Handle) String() string {
	return base58.Encode(h[:])
}

// IsZero reports whether the handle is unset.
func (h Handle) IsZero() bool {
	return h == Handle{}
}

// ParseHandle decodes the base58 text form of a handle.
func ParseHandle(s string) (Handle, error) {
	var h Handle
	raw, err := base58.Decode(s)
	if err != nil {
		return h, fmt.Errorf("%w: %v", ErrMalformedHandle, err)
	}
	if len(raw) != HandleSize {
		return h, fmt.Errorf("%w: got %d bytes", ErrMalformedHandle, len(raw))
	}
	copy(h[:], raw)
	return h, nil
}

// ParseHandles decodes a list of base58 handles.
func ParseHandles(ss []string) ([]Handle, error) {
	out := make([]Handle, len(ss))
	for i, s := range ss {
		h, err := ParseHandle(s)
		if err != nil {
			return nil, err
		}
		out[i] = h
	}
	return out, nil
}

// HandleStrings encodes a list of handles.
func HandleStrings(hs []Handle) []string {
	out := make([]string, len(hs))
	for i, h := range hs {
		out[i] = h.String()
	}
	return out
}

// Backend is the confidential coprocessor. Implementations must never expose
// plaintext through these methods.
type Backend interface {
	// TrivialEncrypt wraps a public constant as a confidential integer.
	TrivialEncrypt(ctx context.Context, value uint64) (Handle, error)
	// TrivialBool wraps a public constant as a confidential boolean.
	TrivialBool(ctx context.Context, value bool) (Handle, error)
	// Add returns a handle to a+b.
	Add(ctx context.Context, a, b Handle) (Handle, error)
	// Select returns a handle to ifTrue when pred holds, ifFalse otherwise.
	Select(ctx context.Context, pred, ifTrue, ifFalse Handle) (Handle, error)
	// VerifyInput checks the validity proof binding an externally encrypted
	// input to its owner and returns the handle usable in computation.
	VerifyInput(ctx context.Context, input Handle, proof []byte, owner string) (Handle, error)
	// Allow grants account permission to use and request decryption of h.
	Allow(ctx context.Context, h Handle, account string) error
	// IsAllowed reports whether account may use h.
	IsAllowed(ctx context.Context, h Handle, account string) bool
}

// Binder is a Backend whose state lives in a Store and can be moved onto
// another one, typically the caller's open transaction.
type Binder interface {
	Bind(store Store) Backend
}
