// Package ledger owns every balance mutation. A mutation is an atomic
// balance change in the wallet store plus one append-only audit record;
// nothing else in the system is allowed to touch a balance.
package ledger

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"lucky-rounds-backend/internal/models"
)

const (
	maxAttempts    = 3
	initialBackoff = 50 * time.Millisecond
)

// WalletStore is the atomic single-row balance mutation the ledger builds
// on. Implemented by services.RedisService.
type WalletStore interface {
	ApplyBalance(ctx context.Context, userID int64, amount float64, kind models.TransactionType) (before, after float64, err error)
}

// AuditLog is the durable append-only transaction log. Implemented by
// store.SQLiteDB.
type AuditLog interface {
	AppendTransaction(tx *models.Transaction) error
	FinalizeTransaction(id int64, before, after float64, status string) error
	DailyNetLoss(userID int64) (float64, error)
}

// Policy supplies the live wagering limits, read fresh per operation.
// Implemented by services.Settings.
type Policy interface {
	MinBet(ctx context.Context) float64
	MaxBet(ctx context.Context) float64
	DailyLossLimit(ctx context.Context) float64
}

// Metadata travels with a mutation into its audit record.
type Metadata struct {
	GameType models.GameType
	RoundID  string
	Detail   *models.OutcomeDetail
}

type Ledger struct {
	wallets WalletStore
	audit   AuditLog
	policy  Policy

	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

func New(wallets WalletStore, audit AuditLog, policy Policy) *Ledger {
	return &Ledger{
		wallets: wallets,
		audit:   audit,
		policy:  policy,
		locks:   make(map[int64]*sync.Mutex),
	}
}

func (l *Ledger) userLock(userID int64) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()

	lock, ok := l.locks[userID]
	if !ok {
		lock = &sync.Mutex{}
		l.locks[userID] = lock
	}
	return lock
}

// Apply performs one ledger mutation: policy check, pending audit record,
// atomic balance change (debits floor-clamped at zero), then the record is
// finalized with the captured balances. Serialized per user so a limit check
// and its debit can never interleave with another request's. Returns the new
// balance.
//
// The record goes in before the money moves. If the append fails the balance
// is untouched; if the mutation fails the record is finalized as flagged; if
// only the finalize fails, the pending record still names the user, kind and
// amount for reconciliation. No ordering leaves a moved balance with no row
// at all.
func (l *Ledger) Apply(ctx context.Context, userID int64, amount float64, kind models.TransactionType, meta Metadata) (float64, error) {
	lock := l.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	if kind == models.TransactionTypeBet {
		if err := l.checkBetPolicy(ctx, userID, -amount); err != nil {
			return 0, err
		}
	}

	tx := &models.Transaction{
		UserID:    userID,
		Kind:      kind,
		Amount:    amount,
		GameType:  meta.GameType,
		RoundID:   meta.RoundID,
		Detail:    meta.Detail,
		Status:    models.TransactionStatusPending,
		CreatedAt: time.Now(),
	}

	err := l.retry(ctx, "transaction append", func() error {
		return l.audit.AppendTransaction(tx)
	})
	if err != nil {
		return 0, err
	}

	var before, after float64
	err = l.retry(ctx, "balance update", func() error {
		var err error
		before, after, err = l.wallets.ApplyBalance(ctx, userID, amount, kind)
		return err
	})
	if err != nil {
		if markErr := l.audit.FinalizeTransaction(tx.ID, 0, 0, models.TransactionStatusFlagged); markErr != nil {
			log.Printf("LEDGER: record %d stuck pending after failed mutation: user=%d kind=%s amount=%.2f: %v",
				tx.ID, userID, kind, amount, markErr)
		}
		return 0, err
	}

	tx.BalanceBefore = before
	tx.BalanceAfter = after
	tx.Status = models.TransactionStatusCompleted

	err = l.retry(ctx, "transaction finalize", func() error {
		return l.audit.FinalizeTransaction(tx.ID, before, after, models.TransactionStatusCompleted)
	})
	if err != nil {
		// The balance moved and the pending record carries the amount; an
		// operator reconciles it from this log line.
		log.Printf("LEDGER: record %d left pending after balance move: user=%d kind=%s amount=%.2f: %v",
			tx.ID, userID, kind, amount, err)
		return after, err
	}

	return after, nil
}

// checkBetPolicy validates the stake against the live limits. Runs under
// the user's lock, so the read-then-decide against daily history cannot race
// the debit it guards.
func (l *Ledger) checkBetPolicy(ctx context.Context, userID int64, stake float64) error {
	if err := models.ValidateAmount(stake, l.policy.MinBet(ctx), l.policy.MaxBet(ctx)); err != nil {
		return err
	}

	lost, err := l.audit.DailyNetLoss(userID)
	if err != nil {
		return &models.PersistenceError{Op: "daily loss lookup", Err: err}
	}
	if limit := l.policy.DailyLossLimit(ctx); lost+stake > limit {
		return models.NewValidationError("amount", fmt.Sprintf("daily loss ceiling of %.0f reached", limit))
	}

	return nil
}

// retry runs op with bounded exponential backoff. Exhaustion surfaces as a
// PersistenceError; it is never swallowed here.
func (l *Ledger) retry(ctx context.Context, op string, fn func() error) error {
	backoff := initialBackoff
	var err error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if attempt == maxAttempts {
			break
		}

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return &models.PersistenceError{Op: op, Err: ctx.Err()}
		}
		backoff *= 2
	}

	return &models.PersistenceError{Op: op, Err: err}
}
