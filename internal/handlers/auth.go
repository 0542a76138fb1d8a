package handlers

import (
	"net/http"

	"confidential-market/internal/auth"
	"confidential-market/internal/models"
	"confidential-market/internal/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AuthHandler handles authentication endpoints
type AuthHandler struct {
	logins *services.AuthService
	admins *services.AdminService
	logger *zap.Logger
}

func NewAuthHandler(logins *services.AuthService, admins *services.AdminService, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		logins: logins,
		admins: admins,
		logger: logger,
	}
}

// Challenge issues a single-use message for a wallet to sign
// POST /auth/challenge
func (h *AuthHandler) Challenge(c *gin.Context) {
	var req models.ChallengeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	challenge, err := h.logins.IssueChallenge(c.Request.Context(), req.WalletAddress)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, challenge)
}

// WalletLogin authenticates a Solana wallet by its signature over an issued challenge.
// POST /auth/wallet
func (h *AuthHandler) WalletLogin(c *gin.Context) {
	var req models.WalletLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	if err := h.logins.Login(ctx, &req); err != nil {
		respondError(c, h.logger, err)
		return
	}

	isAdmin, err := h.admins.IsAdmin(ctx, req.WalletAddress)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	token, err := auth.GenerateToken(req.WalletAddress, isAdmin)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":  token,
		"wallet": req.WalletAddress,
		"admin":  isAdmin,
	})
}

// GetMe returns the authenticated wallet
// GET /auth/me
func (h *AuthHandler) GetMe(c *gin.Context) {
	wallet, ok := auth.GetWallet(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"wallet": wallet,
		"admin":  auth.IsAdmin(c),
	})
}
