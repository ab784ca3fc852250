package models

import "fmt"

// ValidationError rejects malformed or out-of-range input before any state
// is touched.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// StateError reason codes. Each distinguishable rejection gets its own code
// so clients can act on it.
const (
	ReasonNoActiveRound    = "no_active_round"
	ReasonBetWindowClosed  = "bet_window_closed"
	ReasonAlreadyPlacedBet = "already_placed_bet"
	ReasonCashoutClosed    = "cashout_closed"
	ReasonNoActiveStake    = "no_active_stake"
	ReasonAlreadyCashedOut = "already_cashed_out"
	ReasonTooLate          = "too_late"
)

// StateError rejects an operation inconsistent with the current round phase
// or participant status. Nothing is mutated.
type StateError struct {
	Code    string
	Message string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func NewStateError(code, message string) *StateError {
	return &StateError{Code: code, Message: message}
}

// PersistenceError surfaces an exhausted retry against the underlying store.
// Callers must propagate it, never swallow it.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failure in %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// ConsistencyError marks a round whose settlement hit a ledger failure
// mid-walk. The round is flagged for manual reconciliation; retrying the
// walk risks double-crediting participants that were already paid.
type ConsistencyError struct {
	RoundID string
	Err     error
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("settlement inconsistency in round %s: %v", e.RoundID, e.Err)
}

func (e *ConsistencyError) Unwrap() error { return e.Err }
