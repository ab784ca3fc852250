package models

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// Wallet is the balance record owned exclusively by the stake ledger. The
// seeds drive the instant games (dice, coinflip, color); the shared crash
// rounds carry their own per-round seeds.
type Wallet struct {
	UserID       int64   `json:"user_id"`
	Balance      float64 `json:"balance"`
	TotalWagered float64 `json:"total_wagered"`
	TotalWon     float64 `json:"total_won"`

	ClientSeed string `json:"client_seed"`
	Nonce      int64  `json:"nonce"`
}

// Balances are in cents: 100 = $1.00.
const DefaultStartingBalance = 10000

func NewWallet(userID int64) (*Wallet, error) {
	clientSeed, err := GenerateClientSeed()
	if err != nil {
		return nil, err
	}

	return &Wallet{
		UserID:     userID,
		Balance:    DefaultStartingBalance,
		ClientSeed: clientSeed,
		Nonce:      0,
	}, nil
}

func GenerateClientSeed() (string, error) {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate client seed: %w", err)
	}
	return hex.EncodeToString(bytes), nil
}
