package store

import (
	"lucky-rounds-backend/internal/models"
)

// DB is the durable audit store behind the engine: rounds and participants
// written out at settlement, plus the append-only transaction log the stake
// ledger writes through. The engine only needs durable appends and
// single-row reads; the storage engine itself is not its concern.
type DB interface {
	Close() error
	Migrate() error

	SaveRound(round *models.Round) error
	UpdateRound(round *models.Round) error
	GetRound(id string) (*models.Round, error)
	RecentRounds(gameType models.GameType, limit int) ([]*models.Round, error)
	LastRoundNumber(gameType models.GameType) (int64, error)

	SaveParticipants(roundID string, participants []*models.Participant) error
	GetParticipants(roundID string) ([]*models.Participant, error)

	AppendTransaction(tx *models.Transaction) error
	// FinalizeTransaction flips a pending record once the balance mutation it
	// describes has landed (completed) or definitively failed (flagged).
	FinalizeTransaction(id int64, before, after float64, status string) error
	UserTransactions(userID int64, limit int) ([]*models.Transaction, error)
	// DailyNetLoss is the user's net wagering loss for the current UTC day:
	// stakes debited minus winnings credited. Used by the daily loss ceiling.
	DailyNetLoss(userID int64) (float64, error)
}
