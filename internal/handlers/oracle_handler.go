package handlers

import (
	"net/http"

	"confidential-market/internal/models"
	"confidential-market/internal/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// OracleHandler receives decryption results relayed from the oracle gateway.
// The threshold proof authenticates the payload, so the route needs no token.
type OracleHandler struct {
	reveal *services.RevealService
	logger *zap.Logger
}

func NewOracleHandler(reveal *services.RevealService, logger *zap.Logger) *OracleHandler {
	return &OracleHandler{reveal: reveal, logger: logger}
}

// Callback applies a decryption result
// POST /api/oracle/callback
func (h *OracleHandler) Callback(c *gin.Context) {
	var req models.OracleCallbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.reveal.HandleCallbackHex(c.Request.Context(), &req); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"request_id": req.RequestID, "status": "resolved"})
}
