package confidential

import (
	"context"
	"fmt"
)

// Accumulator maintains running totals over confidential values.
type Accumulator struct {
	backend Backend
}

// NewAccumulator creates an accumulator over the given backend.
func NewAccumulator(backend Backend) *Accumulator {
	return &Accumulator{backend: backend}
}

// Init returns a handle to zero.
func (a *Accumulator) Init(ctx context.Context) (Handle, error) {
	return a.backend.TrivialEncrypt(ctx, 0)
}

// InitTotals returns n zero handles.
func (a *Accumulator) InitTotals(ctx context.Context, n int) ([]Handle, error) {
	totals := make([]Handle, n)
	for i := range totals {
		h, err := a.Init(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to init total %d: %w", i, err)
		}
		totals[i] = h
	}
	return totals, nil
}

// Add returns a handle to total + delta.
func (a *Accumulator) Add(ctx context.Context, total, delta Handle) (Handle, error) {
	return a.backend.Add(ctx, total, delta)
}

// SelectAdd returns a handle to total + delta when pred holds and to total otherwise.
// Both branches are computed, so the operation itself reveals nothing about pred.
func (a *Accumulator) SelectAdd(ctx context.Context, total, pred, delta Handle) (Handle, error) {
	sum, err := a.backend.Add(ctx, total, delta)
	if err != nil {
		return Handle{}, err
	}
	return a.backend.Select(ctx, pred, sum, total)
}

// Route adds delta into totals[category] and leaves the others unchanged in
// value. Every total receives a fresh handle.
func (a *Accumulator) Route(ctx context.Context, totals []Handle, category int, delta Handle) ([]Handle, error) {
	if category < 0 || category >= len(totals) {
		return nil, fmt.Errorf("confidential: category %d out of range", category)
	}
	out := make([]Handle, len(totals))
	for i, total := range totals {
		pred, err := a.backend.TrivialBool(ctx, i == category)
		if err != nil {
			return nil, err
		}
		next, err := a.SelectAdd(ctx, total, pred, delta)
		if err != nil {
			return nil, fmt.Errorf("failed to update total %d: %w", i, err)
		}
		out[i] = next
	}
	return out, nil
}

// AuthorizeAccess grants each account access to h. A handle must be
// authorized for the oracle before it can be submitted for decryption.
func (a *Accumulator) AuthorizeAccess(ctx context.Context, h Handle, accounts ...string) error {
	for _, account := range accounts {
		if err := a.backend.Allow(ctx, h, account); err != nil {
			return fmt.Errorf("failed to authorize %s: %w", account, err)
		}
	}
	return nil
}

// VerifyInput validates an externally encrypted input for owner.
func (a *Accumulator) VerifyInput(ctx context.Context, input Handle, proof []byte, owner string) (Handle, error) {
	return a.backend.VerifyInput(ctx, input, proof, owner)
}
