// Package oracle is the boundary to the external decryption oracle: the
// request side (Oracle), the response side (CallbackSink), the clear-value
// wire format and the verification of decryption proofs.
package oracle

import (
	"context"
	"errors"
	"math"

	"confidential-market/internal/confidential"
)

var (
	ErrProofInvalid         = errors.New("oracle: decryption proof invalid")
	ErrMalformedProof       = errors.New("oracle: malformed proof")
	ErrMalformedClearValues = errors.New("oracle: malformed clear values")
	ErrNoHandles            = errors.New("oracle: no handles to decrypt")
	ErrQueueFull            = errors.New("oracle: request queue full")
	ErrRequestFailed        = errors.New("oracle: decryption request failed")
)

// MaxRequestID is the largest request id a signed 64-bit column can hold.
const MaxRequestID = math.MaxInt64

// Oracle accepts decryption requests. RequestDecryption returns as soon as
// the oracle has assigned a request identity; the clear values arrive later
// through a CallbackSink.
type Oracle interface {
	RequestDecryption(ctx context.Context, handles []confidential.Handle) (uint64, error)
}

// CallbackSink is the single entry point for oracle responses.
type CallbackSink interface {
	HandleCallback(ctx context.Context, requestID uint64, clearValues, proof []byte) error
}

// Verifier checks that clearValues are the decryption of handles for requestID.
type Verifier interface {
	Verify(requestID uint64, handles []confidential.Handle, clearValues, proof []byte) error
}
