package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"lucky-rounds-backend/internal/ledger"
	"lucky-rounds-backend/internal/models"
	"lucky-rounds-backend/internal/services"
)

// AdminHandler hosts the operator surface. Every route behind it requires
// the admin role; balance adjustments still go through the ledger so they
// leave audit records like any other mutation.
type AdminHandler struct {
	ledger  *ledger.Ledger
	redis   *services.RedisService
	instant *services.InstantGames
}

func NewAdminHandler(l *ledger.Ledger, redis *services.RedisService, instant *services.InstantGames) *AdminHandler {
	return &AdminHandler{
		ledger:  l,
		redis:   redis,
		instant: instant,
	}
}

// AdjustBalance credits or debits a user's wallet outside any game, recorded
// as a deposit or withdrawal.
func (h *AdminHandler) AdjustBalance(c *gin.Context) {
	var req models.AdminAdjustRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}
	kind := models.TransactionTypeDeposit
	if req.Amount < 0 {
		kind = models.TransactionTypeWithdraw
	}

	balance, err := h.ledger.Apply(c.Request.Context(), req.UserID, req.Amount, kind, ledger.Metadata{})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"adjustment": gin.H{
			"user_id": req.UserID,
			"amount":  req.Amount,
			"kind":    kind,
			"balance": balance,
		},
	})
}

// RotateSeed retires the instant-games server seed. The revealed seed lets
// players verify every play made under the old commitment.
func (h *AdminHandler) RotateSeed(c *gin.Context) {
	revealed, newHash, err := h.instant.RotateSeed()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to rotate seed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"rotation": gin.H{
			"revealed_seed":        revealed,
			"new_server_seed_hash": newHash,
		},
	})
}

// SetSetting writes a live operator setting (house_edge:<game>, min_bet,
// max_bet, daily_loss_limit). Takes effect on the next fresh read.
func (h *AdminHandler) SetSetting(c *gin.Context) {
	var req struct {
		Value string `json:"value" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}

	name := c.Param("name")
	if err := h.redis.SetSetting(c.Request.Context(), name, req.Value); err != nil {
		writeError(c, &models.PersistenceError{Op: "setting write", Err: err})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"setting": gin.H{
			"name":  name,
			"value": req.Value,
		},
	})
}
