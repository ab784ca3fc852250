package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"lucky-rounds-backend/internal/fair"
	"lucky-rounds-backend/internal/models"
	"lucky-rounds-backend/internal/scheduler"
	"lucky-rounds-backend/internal/services"
	"lucky-rounds-backend/internal/store"
)

type GameHandler struct {
	crash    *scheduler.Scheduler
	instant  *services.InstantGames
	redis    *services.RedisService
	db       store.DB
	settings *services.Settings
}

func NewGameHandler(crash *scheduler.Scheduler, instant *services.InstantGames, redis *services.RedisService, db store.DB, settings *services.Settings) *GameHandler {
	return &GameHandler{
		crash:    crash,
		instant:  instant,
		redis:    redis,
		db:       db,
		settings: settings,
	}
}

// writeError maps the typed error taxonomy onto HTTP statuses. Persistence
// details never reach the client.
func writeError(c *gin.Context, err error) {
	var validationErr *models.ValidationError
	if errors.As(err, &validationErr) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": validationErr.Error(),
		})
		return
	}

	var stateErr *models.StateError
	if errors.As(err, &stateErr) {
		c.JSON(http.StatusConflict, gin.H{
			"error":   stateErr.Code,
			"details": stateErr.Message,
		})
		return
	}

	var persistenceErr *models.PersistenceError
	if errors.As(err, &persistenceErr) {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "Service temporarily unavailable",
		})
		return
	}

	c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error"})
}

func (h *GameHandler) PlaceBet(c *gin.Context) {
	userID := c.GetInt64("user_id")

	var req models.BetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}

	participant, balance, err := h.crash.PlaceBet(c.Request.Context(), userID, req.Amount)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"bet": gin.H{
			"round_id":  participant.RoundID,
			"stake":     participant.Stake,
			"status":    participant.Status,
			"placed_at": participant.PlacedAt,
		},
		"balance": balance,
	})
}

func (h *GameHandler) Cashout(c *gin.Context) {
	userID := c.GetInt64("user_id")

	var req models.CashoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}

	participant, err := h.crash.Cashout(c.Request.Context(), userID, req.Multiplier)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"cashout": gin.H{
			"round_id":   participant.RoundID,
			"multiplier": participant.CashoutMultiplier,
			"payout":     participant.Payout,
			"status":     participant.Status,
		},
	})
}

// GetCurrentRound is the public round snapshot; the target and server seed
// stay hidden until the round has ended.
func (h *GameHandler) GetCurrentRound(c *gin.Context) {
	round, err := h.crash.CurrentRound(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"round":   round,
	})
}

func (h *GameHandler) GetRoundHistory(c *gin.Context) {
	limit := parseLimit(c, 20, 100)

	rounds, err := h.db.RecentRounds(models.GameTypeCrash, limit)
	if err != nil {
		writeError(c, &models.PersistenceError{Op: "round history", Err: err})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"rounds":  rounds,
		"count":   len(rounds),
	})
}

func (h *GameHandler) GetRound(c *gin.Context) {
	round, err := h.db.GetRound(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Round not found"})
		return
	}

	participants, err := h.db.GetParticipants(round.ID)
	if err != nil {
		writeError(c, &models.PersistenceError{Op: "round participants", Err: err})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"round":        round,
		"participants": participants,
	})
}

func (h *GameHandler) GetBalance(c *gin.Context) {
	userID := c.GetInt64("user_id")

	wallet, err := h.redis.GetWallet(c.Request.Context(), userID)
	if err != nil {
		writeError(c, &models.PersistenceError{Op: "wallet read", Err: err})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"balance": gin.H{
			"balance":       wallet.Balance,
			"total_wagered": wallet.TotalWagered,
			"total_won":     wallet.TotalWon,
			"client_seed":   wallet.ClientSeed,
			"nonce":         wallet.Nonce,
		},
	})
}

func (h *GameHandler) GetTransactions(c *gin.Context) {
	userID := c.GetInt64("user_id")
	limit := parseLimit(c, 50, 100)

	transactions, err := h.db.UserTransactions(userID, limit)
	if err != nil {
		writeError(c, &models.PersistenceError{Op: "transaction history", Err: err})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"transactions": transactions,
		"count":        len(transactions),
	})
}

func (h *GameHandler) PlayDice(c *gin.Context) {
	userID := c.GetInt64("user_id")

	var req models.DicePlayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}
	if err := req.Validate(h.settings.MinBet(c.Request.Context()), h.settings.MaxBet(c.Request.Context())); err != nil {
		writeError(c, err)
		return
	}

	result, err := h.instant.PlayDice(c.Request.Context(), userID, &req)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"result":  result,
	})
}

func (h *GameHandler) PlayCoinFlip(c *gin.Context) {
	userID := c.GetInt64("user_id")

	var req models.CoinFlipPlayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}
	if err := req.Validate(h.settings.MinBet(c.Request.Context()), h.settings.MaxBet(c.Request.Context())); err != nil {
		writeError(c, err)
		return
	}

	result, err := h.instant.PlayCoinFlip(c.Request.Context(), userID, &req)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"result":  result,
	})
}

func (h *GameHandler) PlayColor(c *gin.Context) {
	userID := c.GetInt64("user_id")

	var req models.ColorPlayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}
	if err := req.Validate(h.settings.MinBet(c.Request.Context()), h.settings.MaxBet(c.Request.Context())); err != nil {
		writeError(c, err)
		return
	}

	result, err := h.instant.PlayColor(c.Request.Context(), userID, &req)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"result":  result,
	})
}

// GetVerificationData hands the client everything it needs to verify its own
// plays: the live commitment plus the wallet's seed pair state.
func (h *GameHandler) GetVerificationData(c *gin.Context) {
	userID := c.GetInt64("user_id")

	wallet, err := h.redis.GetWallet(c.Request.Context(), userID)
	if err != nil {
		writeError(c, &models.PersistenceError{Op: "wallet read", Err: err})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"server_seed_hash": h.instant.SeedHash(),
			"client_seed":      wallet.ClientSeed,
			"next_nonce":       wallet.Nonce,
		},
	})
}

// VerifyGame re-derives a past result from revealed seeds. Pure computation;
// it never touches a balance.
func (h *GameHandler) VerifyGame(c *gin.Context) {
	var req models.VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}
	if !req.GameType.Valid() {
		writeError(c, models.NewValidationError("game_type", "unknown game type"))
		return
	}

	verification := gin.H{
		"game_type":        req.GameType,
		"server_seed":      req.ServerSeed,
		"server_seed_hash": fair.HashSeed(req.ServerSeed),
		"client_seed":      req.ClientSeed,
		"nonce":            req.Nonce,
	}

	switch req.GameType {
	case models.GameTypeCrash:
		target, valid := fair.VerifyCrash(req.ServerSeed, req.ClientSeed, req.Nonce, req.HouseEdge, req.Claimed)
		verification["target"] = target
		verification["valid"] = valid

	case models.GameTypeDice:
		roll, valid := fair.VerifyDice(req.ServerSeed, req.ClientSeed, req.Nonce, int(req.Claimed))
		verification["roll"] = roll
		verification["valid"] = valid

	case models.GameTypeCoinFlip:
		if req.ClaimedOutcome == "" {
			writeError(c, models.NewValidationError("claimed_outcome", "claimed side is required"))
			return
		}
		side, win := fair.VerifyCoinFlip(req.ServerSeed, req.ClientSeed, req.Nonce, req.HouseEdge)
		verification["side"] = side
		verification["win"] = win
		verification["valid"] = side == req.ClaimedOutcome

	case models.GameTypeColor:
		if req.ClaimedOutcome == "" {
			writeError(c, models.NewValidationError("claimed_outcome", "claimed color is required"))
			return
		}
		color, valid := fair.VerifyColor(req.ServerSeed, req.ClientSeed, req.Nonce, req.ClaimedOutcome)
		verification["color"] = color
		verification["valid"] = valid
	}

	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"verification": verification,
	})
}

func parseLimit(c *gin.Context, fallback, max int) int {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(fallback)))
	if err != nil || limit <= 0 || limit > max {
		return fallback
	}
	return limit
}
