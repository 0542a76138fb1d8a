package handlers

import (
	"net/http"
	"time"

	"confidential-market/internal/auth"

	"github.com/gin-gonic/gin"
)

// Handlers groups everything the router mounts. Inputs is optional; nil
// leaves input registration to an external encryption client.
type Handlers struct {
	Auth    *AuthHandler
	Markets *MarketHandler
	Oracle  *OracleHandler
	Admin   *AdminHandler
	Inputs  *InputHandler
}

// RegisterRoutes mounts the HTTP API on router
func RegisterRoutes(router *gin.Engine, h Handlers) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	router.POST("/auth/challenge", h.Auth.Challenge)
	router.POST("/auth/wallet", h.Auth.WalletLogin)
	router.GET("/auth/me", auth.AuthMiddleware(), h.Auth.GetMe)

	// Public market routes
	router.GET("/api/markets", h.Markets.GetMarkets)
	router.GET("/api/markets/:id", h.Markets.GetMarket)
	router.GET("/api/markets/:id/totals", h.Markets.GetTotals)
	router.GET("/api/markets/:id/timeout", h.Markets.GetTimeout)
	router.GET("/api/markets/:id/participants", h.Markets.GetParticipations)
	router.GET("/api/markets/:id/participants/:participant", h.Markets.GetParticipation)

	// Oracle relay
	router.POST("/api/oracle/callback", h.Oracle.Callback)

	api := router.Group("/api")
	api.Use(auth.AuthMiddleware())
	{
		api.POST("/markets", h.Markets.CreateMarket)
		api.POST("/markets/:id/submissions", h.Markets.Submit)
		api.POST("/markets/:id/close", h.Markets.Close)
		api.POST("/markets/:id/reveal", h.Markets.RequestReveal)
		api.POST("/markets/:id/timeout", h.Markets.ForceTimeout)
		api.POST("/markets/:id/claims/payout", h.Markets.ClaimPayout)
		api.POST("/markets/:id/claims/tie-refund", h.Markets.ClaimTieRefund)
		api.POST("/markets/:id/claims/recovery-refund", h.Markets.ClaimRecoveryRefund)
		if h.Inputs != nil {
			api.POST("/inputs", h.Inputs.RegisterInput)
		}
	}

	admin := router.Group("/api/admin")
	admin.Use(auth.AuthMiddleware())
	admin.Use(h.Admin.AdminMiddleware())
	{
		admin.GET("/venue", h.Admin.GetVenue)
		admin.GET("/logs", h.Admin.GetAdminLogs)
		admin.POST("/pause", h.Admin.Pause)
		admin.POST("/unpause", h.Admin.Unpause)
		admin.PUT("/fee", h.Admin.SetCreationFee)
		admin.POST("/withdraw", h.Admin.WithdrawFees)
		admin.POST("/markets/:id/cancel", h.Admin.CancelMarket)
	}
}
