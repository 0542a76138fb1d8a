package services

import (
	"errors"

	"confidential-market/internal/oracle"
)

// Validation errors
var (
	ErrInvalidMarketID = errors.New("invalid market id")
	ErrInvalidVariant  = errors.New("invalid market variant")
	ErrInvalidDuration = errors.New("market duration out of range")
	ErrInvalidStake    = errors.New("stake unit must be positive")
	ErrInvalidCategory = errors.New("invalid category")
	ErrIncorrectFee    = errors.New("creation fee paid does not match the configured fee")
	ErrIncorrectStake  = errors.New("payment does not match the stake unit")
	ErrInvalidInput    = errors.New("invalid confidential input")
	ErrInvalidAmount   = errors.New("amount must be positive")
)

// State errors
var (
	ErrMarketNotFound         = errors.New("market not found")
	ErrMarketExists           = errors.New("market id already used")
	ErrInvalidPhase           = errors.New("operation not allowed in current market phase")
	ErrSubmissionWindowClosed = errors.New("submission window is closed")
	ErrMarketStillOpen        = errors.New("market submission window has not ended")
	ErrTimeoutNotReached      = errors.New("reveal timeout not yet reached")
	ErrPaused                 = errors.New("venue is paused")
	ErrInsufficientFees       = errors.New("not enough accrued fees")
)

// Authorization errors
var (
	ErrUnauthorized  = errors.New("caller not authorized for this operation")
	ErrLoginRejected = errors.New("login challenge invalid, expired or already used")
)

// Idempotence errors
var (
	ErrAlreadySubmitted = errors.New("participant already submitted to this market")
	ErrAlreadyClaimed   = errors.New("participation already claimed")
	ErrAlreadyRequested = errors.New("reveal already requested")
)

// External verification errors
var (
	ErrUnknownRequest       = errors.New("unknown or consumed reveal request")
	ErrProofInvalid         = oracle.ErrProofInvalid
	ErrMalformedClearValues = oracle.ErrMalformedClearValues
)

// Settlement errors
var (
	ErrNotParticipated = errors.New("participant has no participation in this market")
	ErrNotWinner       = errors.New("participant is not a winner")
	ErrTieUseRefund    = errors.New("market ended in a tie, use the tie refund")
	ErrNotTie          = errors.New("market did not end in a tie")
)

// Arithmetic invariant violations
var (
	ErrZeroWinningTotal  = errors.New("winning category has zero revealed total")
	ErrPayoutExceedsPool = errors.New("payout would exceed the prize pool")
)
