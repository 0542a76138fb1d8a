package handlers

import (
	"errors"
	"net/http"

	"confidential-market/internal/blockchain"
	"confidential-market/internal/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var errorStatus = []struct {
	status int
	errs   []error
}{
	{http.StatusBadRequest, []error{
		services.ErrInvalidMarketID,
		services.ErrInvalidVariant,
		services.ErrInvalidDuration,
		services.ErrInvalidStake,
		services.ErrInvalidCategory,
		services.ErrIncorrectFee,
		services.ErrIncorrectStake,
		services.ErrInvalidInput,
		services.ErrInvalidAmount,
		blockchain.ErrInvalidWallet,
	}},
	{http.StatusUnauthorized, []error{
		services.ErrLoginRejected,
	}},
	{http.StatusForbidden, []error{
		services.ErrUnauthorized,
	}},
	{http.StatusNotFound, []error{
		services.ErrMarketNotFound,
		services.ErrNotParticipated,
	}},
	{http.StatusConflict, []error{
		services.ErrMarketExists,
		services.ErrInvalidPhase,
		services.ErrSubmissionWindowClosed,
		services.ErrMarketStillOpen,
		services.ErrTimeoutNotReached,
		services.ErrInsufficientFees,
		services.ErrAlreadySubmitted,
		services.ErrAlreadyClaimed,
		services.ErrAlreadyRequested,
		services.ErrNotWinner,
		services.ErrTieUseRefund,
		services.ErrNotTie,
	}},
	{http.StatusUnprocessableEntity, []error{
		services.ErrUnknownRequest,
		services.ErrProofInvalid,
		services.ErrMalformedClearValues,
	}},
	{http.StatusServiceUnavailable, []error{
		services.ErrPaused,
	}},
}

// statusFor maps a service error to its HTTP status. Unknown errors,
// arithmetic invariant violations included, are internal errors.
func statusFor(err error) int {
	for _, group := range errorStatus {
		for _, target := range group.errs {
			if errors.Is(err, target) {
				return group.status
			}
		}
	}
	return http.StatusInternalServerError
}

// respondError writes err with its mapped status. Internal errors are logged
// and hidden from the caller.
func respondError(c *gin.Context, logger *zap.Logger, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.Error("request failed",
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
		c.JSON(status, gin.H{"error": "internal error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
