package models

import "time"

// OutcomeDetail is the structured audit payload attached to a transaction:
// everything needed to re-derive the result after the seeds are revealed.
type OutcomeDetail struct {
	ServerSeed     string  `json:"server_seed,omitempty"`
	ServerSeedHash string  `json:"server_seed_hash,omitempty"`
	ClientSeed     string  `json:"client_seed,omitempty"`
	Nonce          int64   `json:"nonce,omitempty"`
	Outcome        string  `json:"outcome,omitempty"`
	Multiplier     float64 `json:"multiplier,omitempty"`
}

// Transaction is one append-only ledger row. Never mutated after creation;
// every balance change corresponds to exactly one of these.
type Transaction struct {
	ID            int64           `json:"id"`
	UserID        int64           `json:"user_id"`
	Kind          TransactionType `json:"kind"`
	Amount        float64         `json:"amount"`
	GameType      GameType        `json:"game_type,omitempty"`
	RoundID       string          `json:"round_id,omitempty"`
	BalanceBefore float64         `json:"balance_before"`
	BalanceAfter  float64         `json:"balance_after"`
	Detail        *OutcomeDetail  `json:"detail,omitempty"`
	Status        string          `json:"status"`
	CreatedAt     time.Time       `json:"created_at"`
}

// A transaction row starts pending, before the balance mutation it records.
// It is finalized to completed once the mutation lands, or to flagged when
// the mutation failed and the row describes money that never moved.
const (
	TransactionStatusPending   = "pending"
	TransactionStatusCompleted = "completed"
	TransactionStatusFlagged   = "flagged"
)
