package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"lucky-rounds-backend/internal/models"
	"lucky-rounds-backend/internal/services"
)

type UserHandler struct {
	redis *services.RedisService
}

func NewUserHandler(redis *services.RedisService) *UserHandler {
	return &UserHandler{redis: redis}
}

// GetCurrentUser returns the authenticated user's wallet state. The wallet
// is created with the starting balance on first sight.
func (h *UserHandler) GetCurrentUser(c *gin.Context) {
	userID := c.GetInt64("user_id")

	wallet, err := h.redis.GetWallet(c.Request.Context(), userID)
	if err != nil {
		writeError(c, &models.PersistenceError{Op: "wallet read", Err: err})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"user": gin.H{
			"user_id":       wallet.UserID,
			"balance":       wallet.Balance,
			"total_wagered": wallet.TotalWagered,
			"total_won":     wallet.TotalWon,
			"client_seed":   wallet.ClientSeed,
			"nonce":         wallet.Nonce,
		},
	})
}

// UpdateClientSeed lets a player pick their own client seed for instant
// plays. The nonce sequence restarts at zero under the new seed.
func (h *UserHandler) UpdateClientSeed(c *gin.Context) {
	userID := c.GetInt64("user_id")

	var req struct {
		ClientSeed string `json:"client_seed"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}

	seed := req.ClientSeed
	if seed == "" {
		var err error
		seed, err = models.GenerateClientSeed()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate seed"})
			return
		}
	}
	if len(seed) > 64 {
		writeError(c, models.NewValidationError("client_seed", "must be at most 64 characters"))
		return
	}

	if err := h.redis.SetClientSeed(c.Request.Context(), userID, seed); err != nil {
		writeError(c, &models.PersistenceError{Op: "client seed update", Err: err})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"client_seed": seed,
		"nonce":       0,
	})
}
