package models

type GameType string

const (
	GameTypeCrash    GameType = "crash"
	GameTypeDice     GameType = "dice"
	GameTypeCoinFlip GameType = "coinflip"
	GameTypeColor    GameType = "color"
)

func (g GameType) Valid() bool {
	switch g {
	case GameTypeCrash, GameTypeDice, GameTypeCoinFlip, GameTypeColor:
		return true
	}
	return false
}

// RoundPhase is the lifecycle of a shared crash round. Phases only ever
// advance in declaration order.
type RoundPhase string

const (
	PhaseBetting  RoundPhase = "betting"
	PhaseFlying   RoundPhase = "flying"
	PhaseSettling RoundPhase = "settling"
	PhaseEnded    RoundPhase = "ended"
)

type ParticipantStatus string

const (
	ParticipantActive    ParticipantStatus = "active"
	ParticipantCashedOut ParticipantStatus = "cashed_out"
	ParticipantLost      ParticipantStatus = "lost"
)

type TransactionType string

const (
	TransactionTypeBet      TransactionType = "bet"
	TransactionTypeWin      TransactionType = "win"
	TransactionTypeLoss     TransactionType = "loss"
	TransactionTypeDeposit  TransactionType = "deposit"
	TransactionTypeWithdraw TransactionType = "withdrawal"
)
