// Package registry does the per-round participant bookkeeping: one row per
// (round, user), created by a bet, mutated at most once by a cashout. A
// Registry is owned by its round's scheduler goroutine and is not safe for
// concurrent use on its own.
package registry

import (
	"context"
	"time"

	"lucky-rounds-backend/internal/games"
	"lucky-rounds-backend/internal/ledger"
	"lucky-rounds-backend/internal/models"
)

// Ledger is the slice of the stake ledger the registry needs for debiting
// stakes.
type Ledger interface {
	Apply(ctx context.Context, userID int64, amount float64, kind models.TransactionType, meta ledger.Metadata) (float64, error)
}

type Registry struct {
	round        *models.Round
	participants map[int64]*models.Participant
	ledger       Ledger
}

func New(round *models.Round, l Ledger) *Registry {
	return &Registry{
		round:        round,
		participants: make(map[int64]*models.Participant),
		ledger:       l,
	}
}

// PlaceBet debits the stake and creates the participant row. The debit comes
// first: a ledger failure must prevent the row from existing. The uniqueness
// check on (round, user) is the only defense against double-staking.
func (r *Registry) PlaceBet(ctx context.Context, userID int64, amount float64) (*models.Participant, float64, error) {
	if r.round.Phase != models.PhaseBetting {
		return nil, 0, models.NewStateError(models.ReasonBetWindowClosed, "bets are only accepted during the betting window")
	}
	if _, exists := r.participants[userID]; exists {
		return nil, 0, models.NewStateError(models.ReasonAlreadyPlacedBet, "already placed a bet in this round")
	}

	balance, err := r.ledger.Apply(ctx, userID, -amount, models.TransactionTypeBet, ledger.Metadata{
		GameType: r.round.GameType,
		RoundID:  r.round.ID,
		Detail: &models.OutcomeDetail{
			ServerSeedHash: r.round.ServerSeedHash,
			ClientSeed:     r.round.ClientSeed,
			Nonce:          r.round.Number,
		},
	})
	if err != nil {
		return nil, 0, err
	}

	participant := &models.Participant{
		RoundID:  r.round.ID,
		UserID:   userID,
		Stake:    amount,
		Status:   models.ParticipantActive,
		PlacedAt: time.Now(),
	}
	r.participants[userID] = participant

	r.round.BetCount++
	r.round.TotalWagered += amount

	return participant, balance, nil
}

// Cashout locks in a payout at the given multiplier. The ledger credit is
// deferred to settlement; the row only records what the participant is owed.
func (r *Registry) Cashout(_ context.Context, userID int64, multiplier float64) (*models.Participant, error) {
	if r.round.Phase != models.PhaseFlying {
		return nil, models.NewStateError(models.ReasonCashoutClosed, "cashouts are only accepted during flight")
	}

	participant, exists := r.participants[userID]
	if !exists {
		return nil, models.NewStateError(models.ReasonNoActiveStake, "no stake in this round")
	}
	if participant.Status == models.ParticipantCashedOut {
		return nil, models.NewStateError(models.ReasonAlreadyCashedOut, "already cashed out")
	}
	if participant.Status != models.ParticipantActive {
		return nil, models.NewStateError(models.ReasonNoActiveStake, "stake is no longer active")
	}
	if multiplier >= r.round.Target {
		return nil, models.NewStateError(models.ReasonTooLate, "target already reached")
	}

	participant.Status = models.ParticipantCashedOut
	participant.CashoutMultiplier = multiplier
	participant.CashedOutAt = time.Now()
	participant.Payout = games.CrashPayout(participant.Stake, multiplier, true)

	return participant, nil
}

func (r *Registry) Participant(userID int64) (*models.Participant, bool) {
	p, ok := r.participants[userID]
	return p, ok
}

// Participants returns the rows in no particular order.
func (r *Registry) Participants() []*models.Participant {
	out := make([]*models.Participant, 0, len(r.participants))
	for _, p := range r.participants {
		out = append(out, p)
	}
	return out
}
