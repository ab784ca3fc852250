package models

import "time"

// Round is one cycle of the crash game, shared by every participant. The
// scheduler is the only writer; once Phase reaches PhaseEnded the round is
// immutable and kept for audit.
type Round struct {
	ID       string   `json:"id"`
	GameType GameType `json:"game_type"`
	Number   int64    `json:"number"`

	Phase      RoundPhase `json:"phase"`
	Target     float64    `json:"target,omitempty"` // hidden until ended
	Multiplier float64    `json:"multiplier"`       // live value during flight

	ServerSeed     string  `json:"server_seed,omitempty"` // revealed at ended
	ServerSeedHash string  `json:"server_seed_hash"`
	ClientSeed     string  `json:"client_seed"`
	HouseEdge      float64 `json:"house_edge"`

	BetCount     int     `json:"bet_count"`
	TotalWagered float64 `json:"total_wagered"`
	TotalPaidOut float64 `json:"total_paid_out"`

	// Flagged marks a round whose settlement hit a ledger failure and needs
	// manual reconciliation. Settlement is never retried automatically.
	Flagged bool `json:"flagged,omitempty"`

	CreatedAt       time.Time `json:"created_at"`
	FlightStartedAt time.Time `json:"flight_started_at,omitempty"`
	SettledAt       time.Time `json:"settled_at,omitempty"`
	EndedAt         time.Time `json:"ended_at,omitempty"`
}

// Participant is one user's stake in one round. At most one row per
// (round, user); created by a bet, mutated at most once by a cashout,
// finalized by settlement.
type Participant struct {
	RoundID string `json:"round_id"`
	UserID  int64  `json:"user_id"`

	Stake             float64           `json:"stake"`
	CashoutMultiplier float64           `json:"cashout_multiplier,omitempty"`
	CashedOutAt       time.Time         `json:"cashed_out_at,omitempty"`
	Payout            float64           `json:"payout"`
	Status            ParticipantStatus `json:"status"`

	PlacedAt time.Time `json:"placed_at"`
}
