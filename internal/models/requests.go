package models

import "math"

type BetRequest struct {
	Amount float64 `json:"amount" binding:"required"`
}

type CashoutRequest struct {
	Multiplier float64 `json:"multiplier"`
}

type DicePlayRequest struct {
	Amount float64 `json:"amount" binding:"required"`
	Target int     `json:"target" binding:"required,min=2,max=99"`
	Over   bool    `json:"over"`
}

type CoinFlipPlayRequest struct {
	Amount float64 `json:"amount" binding:"required"`
	Choice string  `json:"choice" binding:"required"` // heads or tails
}

type ColorPlayRequest struct {
	Amount float64 `json:"amount" binding:"required"`
	Color  string  `json:"color" binding:"required"` // red, black or green
}

type AdminAdjustRequest struct {
	UserID int64   `json:"user_id" binding:"required"`
	Amount float64 `json:"amount" binding:"required"`
}

type VerifyRequest struct {
	GameType   GameType `json:"game_type" binding:"required"`
	ServerSeed string   `json:"server_seed" binding:"required"`
	ClientSeed string   `json:"client_seed" binding:"required"`
	Nonce      int64    `json:"nonce"`
	HouseEdge  float64  `json:"house_edge"`
	// Claimed is the numeric result being checked: the crash target or the
	// dice roll. Coinflip and color claims are strings and go in
	// ClaimedOutcome instead.
	Claimed        float64 `json:"claimed"`
	ClaimedOutcome string  `json:"claimed_outcome"`
}

// ValidateAmount rejects non-finite, non-positive or out-of-limit stakes.
func ValidateAmount(amount, minBet, maxBet float64) error {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return NewValidationError("amount", "must be a finite number")
	}
	if amount <= 0 {
		return NewValidationError("amount", "must be positive")
	}
	if amount < minBet {
		return NewValidationError("amount", "below minimum bet")
	}
	if amount > maxBet {
		return NewValidationError("amount", "above maximum bet")
	}
	return nil
}

func (r *DicePlayRequest) Validate(minBet, maxBet float64) error {
	if err := ValidateAmount(r.Amount, minBet, maxBet); err != nil {
		return err
	}
	if r.Target < 2 || r.Target > 99 {
		return NewValidationError("target", "must be between 2 and 99")
	}
	return nil
}

func (r *CoinFlipPlayRequest) Validate(minBet, maxBet float64) error {
	if err := ValidateAmount(r.Amount, minBet, maxBet); err != nil {
		return err
	}
	if r.Choice != "heads" && r.Choice != "tails" {
		return NewValidationError("choice", "must be heads or tails")
	}
	return nil
}

func (r *ColorPlayRequest) Validate(minBet, maxBet float64) error {
	if err := ValidateAmount(r.Amount, minBet, maxBet); err != nil {
		return err
	}
	switch r.Color {
	case "red", "black", "green":
		return nil
	}
	return NewValidationError("color", "must be red, black or green")
}
