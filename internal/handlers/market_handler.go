package handlers

import (
	"context"
	"net/http"
	"strconv"

	"confidential-market/internal/auth"
	"confidential-market/internal/models"
	"confidential-market/internal/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// MarketHandler serves the market lifecycle, reveal and claim endpoints
type MarketHandler struct {
	markets    *services.MarketService
	reveal     *services.RevealService
	settlement *services.SettlementService
	logger     *zap.Logger
}

func NewMarketHandler(
	markets *services.MarketService,
	reveal *services.RevealService,
	settlement *services.SettlementService,
	logger *zap.Logger,
) *MarketHandler {
	return &MarketHandler{
		markets:    markets,
		reveal:     reveal,
		settlement: settlement,
		logger:     logger,
	}
}

// requireWallet returns the authenticated wallet or writes 401.
func requireWallet(c *gin.Context) (string, bool) {
	wallet, ok := auth.GetWallet(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
	}
	return wallet, ok
}

// GetMarkets lists markets
// GET /api/markets?phase=OPEN&variant=BELIEF&limit=20&offset=0
func (h *MarketHandler) GetMarkets(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	phase := models.MarketPhase(c.Query("phase"))
	variant := models.MarketVariant(c.Query("variant"))

	markets, total, err := h.markets.ListMarkets(c.Request.Context(), phase, variant, limit, offset)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	data := make([]models.MarketResponse, 0, len(markets))
	for _, m := range markets {
		data = append(data, h.markets.ToResponse(m))
	}
	c.JSON(http.StatusOK, gin.H{
		"data":   data,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}

// GetMarket returns one market
// GET /api/markets/:id
func (h *MarketHandler) GetMarket(c *gin.Context) {
	m, err := h.markets.GetMarket(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, h.markets.ToResponse(m))
}

// GetTotals returns the revealed totals of a resolved market
// GET /api/markets/:id/totals
func (h *MarketHandler) GetTotals(c *gin.Context) {
	m, err := h.markets.RevealedTotals(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"market_id":        m.ID,
		"totals":           m.RevealedTotals,
		"winning_category": m.WinningCategory,
		"tie":              m.Tie,
	})
}

// GetTimeout reports how long until the reveal can be forced to time out
// GET /api/markets/:id/timeout
func (h *MarketHandler) GetTimeout(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")
	secs, err := h.markets.SecondsUntilTimeout(ctx, id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	timedOut, err := h.markets.IsTimedOut(ctx, id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"market_id":             id,
		"seconds_until_timeout": secs,
		"timed_out":             timedOut,
	})
}

// GetParticipations lists the participants of a market
// GET /api/markets/:id/participants
func (h *MarketHandler) GetParticipations(c *gin.Context) {
	ps, err := h.markets.ListParticipations(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": ps, "total": len(ps)})
}

// GetParticipation returns a participant's record in a market
// GET /api/markets/:id/participants/:participant
func (h *MarketHandler) GetParticipation(c *gin.Context) {
	p, err := h.markets.GetParticipation(c.Request.Context(), c.Param("id"), c.Param("participant"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// CreateMarket opens a market organized by the caller
// POST /api/markets
func (h *MarketHandler) CreateMarket(c *gin.Context) {
	wallet, ok := requireWallet(c)
	if !ok {
		return
	}
	var req models.CreateMarketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	m, err := h.markets.CreateMarket(c.Request.Context(), wallet, &req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, h.markets.ToResponse(m))
}

// Submit records the caller's confidential submission
// POST /api/markets/:id/submissions
func (h *MarketHandler) Submit(c *gin.Context) {
	wallet, ok := requireWallet(c)
	if !ok {
		return
	}
	var req models.SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	p, err := h.markets.Submit(c.Request.Context(), c.Param("id"), wallet, &req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

// Close ends the submission window of an expired market
// POST /api/markets/:id/close
func (h *MarketHandler) Close(c *gin.Context) {
	m, err := h.markets.Close(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, h.markets.ToResponse(m))
}

// RequestReveal asks the oracle to decrypt the market totals
// POST /api/markets/:id/reveal
func (h *MarketHandler) RequestReveal(c *gin.Context) {
	wallet, ok := requireWallet(c)
	if !ok {
		return
	}
	m, err := h.reveal.RequestReveal(c.Request.Context(), c.Param("id"), wallet)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusAccepted, h.markets.ToResponse(m))
}

// ForceTimeout moves a stalled reveal onto the refund path
// POST /api/markets/:id/timeout
func (h *MarketHandler) ForceTimeout(c *gin.Context) {
	m, err := h.markets.ForceTimeout(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, h.markets.ToResponse(m))
}

type claimFunc func(ctx context.Context, marketID, participant string) (*models.ClaimResponse, error)

func (h *MarketHandler) claim(c *gin.Context, fn claimFunc) {
	wallet, ok := requireWallet(c)
	if !ok {
		return
	}
	resp, err := fn(c.Request.Context(), c.Param("id"), wallet)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ClaimPayout pays the caller's winning share
// POST /api/markets/:id/claims/payout
func (h *MarketHandler) ClaimPayout(c *gin.Context) {
	h.claim(c, h.settlement.ClaimPayout)
}

// ClaimTieRefund refunds the caller's stake in a tied market
// POST /api/markets/:id/claims/tie-refund
func (h *MarketHandler) ClaimTieRefund(c *gin.Context) {
	h.claim(c, h.settlement.ClaimTieRefund)
}

// ClaimRecoveryRefund refunds the caller's stake after a timeout or cancellation
// POST /api/markets/:id/claims/recovery-refund
func (h *MarketHandler) ClaimRecoveryRefund(c *gin.Context) {
	h.claim(c, h.settlement.ClaimRecoveryRefund)
}
