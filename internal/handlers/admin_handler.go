package handlers

import (
	"net/http"
	"strconv"

	"confidential-market/internal/auth"
	"confidential-market/internal/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type AdminHandler struct {
	admin  *services.AdminService
	logger *zap.Logger
}

func NewAdminHandler(admin *services.AdminService, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{admin: admin, logger: logger}
}

// AdminMiddleware checks the wallet against the admin table. The token's
// admin flag is not trusted on its own.
func (h *AdminHandler) AdminMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		wallet, ok := auth.GetWallet(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		isAdmin, err := h.admin.IsAdmin(c.Request.Context(), wallet)
		if err != nil {
			respondError(c, h.logger, err)
			c.Abort()
			return
		}
		if !isAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Not an admin"})
			return
		}
		c.Next()
	}
}

// Pause stops state-changing operations
// POST /api/admin/pause
func (h *AdminHandler) Pause(c *gin.Context) {
	wallet, _ := auth.GetWallet(c)
	if err := h.admin.Pause(c.Request.Context(), wallet); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"paused": true})
}

// Unpause resumes state-changing operations
// POST /api/admin/unpause
func (h *AdminHandler) Unpause(c *gin.Context) {
	wallet, _ := auth.GetWallet(c)
	if err := h.admin.Unpause(c.Request.Context(), wallet); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"paused": false})
}

// SetCreationFee changes the market creation fee
// PUT /api/admin/fee
func (h *AdminHandler) SetCreationFee(c *gin.Context) {
	wallet, _ := auth.GetWallet(c)
	var req struct {
		Fee *int64 `json:"fee" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.admin.SetCreationFee(c.Request.Context(), wallet, *req.Fee); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"creation_fee": *req.Fee})
}

// WithdrawFees pays out accrued creation fees
// POST /api/admin/withdraw
func (h *AdminHandler) WithdrawFees(c *gin.Context) {
	wallet, _ := auth.GetWallet(c)
	var req struct {
		To     string `json:"to"`
		Amount int64  `json:"amount" binding:"required,gt=0"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ref, err := h.admin.WithdrawFees(c.Request.Context(), wallet, req.To, req.Amount)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"amount": req.Amount, "reference": ref})
}

// CancelMarket moves a market onto the refund path
// POST /api/admin/markets/:id/cancel
func (h *AdminHandler) CancelMarket(c *gin.Context) {
	wallet, _ := auth.GetWallet(c)
	m, err := h.admin.CancelMarket(c.Request.Context(), wallet, c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"market_id": m.ID, "phase": m.Phase})
}

// GetVenue returns pause state and fee accounting
// GET /api/admin/venue
func (h *AdminHandler) GetVenue(c *gin.Context) {
	venue, err := h.admin.GetVenue(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, venue)
}

// GetAdminLogs returns admin action logs
// GET /api/admin/logs
func (h *AdminHandler) GetAdminLogs(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	logs, total, err := h.admin.GetAdminLogs(c.Request.Context(), limit, offset)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"data":   logs,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}
