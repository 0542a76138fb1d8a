package handlers

import (
	"context"
	"encoding/hex"
	"net/http"

	"confidential-market/internal/confidential"
	"confidential-market/internal/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// InputEncrypter registers a client value with the confidential backend
type InputEncrypter interface {
	Encrypt(ctx context.Context, owner string, value uint64) (confidential.Handle, []byte, error)
}

// InputHandler is the client-side encryption service of the stand-in
// backend. It sees the plaintext, so it is only mounted when no external
// encryption client is in use.
type InputHandler struct {
	inputs InputEncrypter
	logger *zap.Logger
}

func NewInputHandler(inputs InputEncrypter, logger *zap.Logger) *InputHandler {
	return &InputHandler{inputs: inputs, logger: logger}
}

// RegisterInput encrypts a value for the caller and returns the handle with its input proof
// POST /api/inputs
func (h *InputHandler) RegisterInput(c *gin.Context) {
	wallet, ok := requireWallet(c)
	if !ok {
		return
	}
	var req models.RegisterInputRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	handle, proof, err := h.inputs.Encrypt(c.Request.Context(), wallet, *req.Value)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, models.RegisterInputResponse{
		Handle:     handle.String(),
		InputProof: hex.EncodeToString(proof),
	})
}
