package services_test

import (
	"context"
	"errors"
	"strconv"
	"testing"

	"lucky-rounds-backend/internal/fair"
	"lucky-rounds-backend/internal/ledger"
	"lucky-rounds-backend/internal/models"
	"lucky-rounds-backend/internal/services"
)

type fakeNonces struct {
	clientSeed string
	next       int64
	err        error
}

func (f *fakeNonces) AdvanceNonce(context.Context, int64) (string, int64, error) {
	if f.err != nil {
		return "", 0, f.err
	}
	nonce := f.next
	f.next++
	return f.clientSeed, nonce, nil
}

type instantLedgerCall struct {
	amount float64
	kind   models.TransactionType
	detail *models.OutcomeDetail
}

type fakeInstantLedger struct {
	balance float64
	calls   []instantLedgerCall
	winErr  error
}

func (f *fakeInstantLedger) Apply(_ context.Context, _ int64, amount float64, kind models.TransactionType, meta ledger.Metadata) (float64, error) {
	if kind == models.TransactionTypeWin && f.winErr != nil {
		return 0, f.winErr
	}
	f.balance += amount
	f.calls = append(f.calls, instantLedgerCall{amount: amount, kind: kind, detail: meta.Detail})
	return f.balance, nil
}

type fixedEdge struct{ edge float64 }

func (f fixedEdge) HouseEdge(context.Context, models.GameType) float64 { return f.edge }

func newTestInstant(t *testing.T, nonces *fakeNonces, l *fakeInstantLedger) *services.InstantGames {
	t.Helper()
	g, err := services.NewInstantGames(nonces, l, fixedEdge{edge: 1.0})
	if err != nil {
		t.Fatalf("NewInstantGames: %v", err)
	}
	return g
}

func TestPlayDiceMoneyFlow(t *testing.T) {
	nonces := &fakeNonces{clientSeed: "client-seed-a"}
	l := &fakeInstantLedger{balance: 1000}
	g := newTestInstant(t, nonces, l)

	res, err := g.PlayDice(context.Background(), 1, &models.DicePlayRequest{Amount: 100, Target: 50, Over: true})
	if err != nil {
		t.Fatalf("PlayDice: %v", err)
	}

	if res.GameType != models.GameTypeDice || res.Nonce != 0 || res.ClientSeed != "client-seed-a" {
		t.Fatalf("result metadata = %+v", res)
	}
	if res.ServerSeedHash != g.SeedHash() {
		t.Fatal("result does not carry the current seed commitment")
	}

	roll, err := strconv.Atoi(res.Outcome)
	if err != nil || roll < 1 || roll > 100 {
		t.Fatalf("outcome %q is not a valid roll", res.Outcome)
	}

	if len(l.calls) < 2 {
		t.Fatalf("ledger calls = %d, want debit plus result record", len(l.calls))
	}
	if l.calls[0].kind != models.TransactionTypeBet || l.calls[0].amount != -100 {
		t.Fatalf("first ledger call = %+v, want -100 bet", l.calls[0])
	}

	win := roll > 50
	if res.Win != win {
		t.Fatalf("win = %v for roll %d over 50", res.Win, roll)
	}
	if win {
		wantPayout := 100 * (99.0 / 50.0)
		if res.Payout != wantPayout {
			t.Fatalf("payout = %v, want %v", res.Payout, wantPayout)
		}
		if l.calls[1].kind != models.TransactionTypeWin || l.calls[1].amount != wantPayout {
			t.Fatalf("second ledger call = %+v, want +%v win", l.calls[1], wantPayout)
		}
	} else {
		if res.Payout != 0 {
			t.Fatalf("losing payout = %v, want 0", res.Payout)
		}
		if l.calls[1].kind != models.TransactionTypeLoss || l.calls[1].amount != 0 {
			t.Fatalf("second ledger call = %+v, want zero-amount loss record", l.calls[1])
		}
	}

	if l.calls[0].detail == nil || l.calls[0].detail.Nonce != 0 {
		t.Fatalf("debit detail = %+v", l.calls[0].detail)
	}
	if l.calls[0].detail.ServerSeed != "" {
		t.Fatal("detail leaked the live server seed")
	}
}

func TestPlaysConsumeDistinctNonces(t *testing.T) {
	nonces := &fakeNonces{clientSeed: "client-seed-b"}
	l := &fakeInstantLedger{balance: 1000}
	g := newTestInstant(t, nonces, l)

	first, err := g.PlayColor(context.Background(), 1, &models.ColorPlayRequest{Amount: 10, Color: fair.ColorRed})
	if err != nil {
		t.Fatalf("PlayColor: %v", err)
	}
	second, err := g.PlayColor(context.Background(), 1, &models.ColorPlayRequest{Amount: 10, Color: fair.ColorRed})
	if err != nil {
		t.Fatalf("PlayColor: %v", err)
	}

	if first.Nonce == second.Nonce {
		t.Fatalf("both plays used nonce %d", first.Nonce)
	}
}

func TestPlayCoinFlipOutcomeVerifiable(t *testing.T) {
	nonces := &fakeNonces{clientSeed: "client-seed-c"}
	l := &fakeInstantLedger{balance: 1000}
	g := newTestInstant(t, nonces, l)

	res, err := g.PlayCoinFlip(context.Background(), 1, &models.CoinFlipPlayRequest{Amount: 50, Choice: "heads"})
	if err != nil {
		t.Fatalf("PlayCoinFlip: %v", err)
	}
	if res.Outcome != "heads" && res.Outcome != "tails" {
		t.Fatalf("outcome = %q", res.Outcome)
	}
	if res.Win && res.Payout != 100 {
		t.Fatalf("winning payout = %v, want 100", res.Payout)
	}

	// The revealed seed from a rotation must re-derive the earlier result.
	revealed, newHash, err := g.RotateSeed()
	if err != nil {
		t.Fatalf("RotateSeed: %v", err)
	}
	if fair.HashSeed(revealed) != res.ServerSeedHash {
		t.Fatal("revealed seed does not match the commitment the play was made under")
	}
	if newHash == res.ServerSeedHash {
		t.Fatal("rotation kept the same commitment")
	}

	side, gate := fair.VerifyCoinFlip(revealed, res.ClientSeed, res.Nonce, 1.0)
	if side != res.Outcome {
		t.Fatalf("re-derived side %q, play reported %q", side, res.Outcome)
	}
	if wantWin := side == "heads" && gate; wantWin != res.Win {
		t.Fatalf("re-derived win %v, play reported %v", wantWin, res.Win)
	}
}

func TestPlayDiceNonceFailureStopsBeforeDebit(t *testing.T) {
	nonces := &fakeNonces{err: errors.New("redis down")}
	l := &fakeInstantLedger{balance: 1000}
	g := newTestInstant(t, nonces, l)

	_, err := g.PlayDice(context.Background(), 1, &models.DicePlayRequest{Amount: 100, Target: 50, Over: true})
	var perr *models.PersistenceError
	if !errors.As(err, &perr) {
		t.Fatalf("got %v, want persistence error", err)
	}
	if len(l.calls) != 0 {
		t.Fatalf("ledger called %d times despite nonce failure", len(l.calls))
	}
}

func TestPlayWinCreditFailureSurfaces(t *testing.T) {
	nonces := &fakeNonces{clientSeed: "client-seed-d"}
	failing := errors.New("append failed")

	// Loop nonces until a winning play comes up, then make the credit fail.
	for i := 0; i < 200; i++ {
		l := &fakeInstantLedger{balance: 1000, winErr: failing}
		g := newTestInstant(t, nonces, l)

		res, err := g.PlayColor(context.Background(), 1, &models.ColorPlayRequest{Amount: 10, Color: fair.ColorRed})
		if err != nil {
			if !errors.Is(err, failing) {
				t.Fatalf("unexpected error: %v", err)
			}
			// The debit must stand even though the credit failed.
			if len(l.calls) != 1 || l.calls[0].kind != models.TransactionTypeBet {
				t.Fatalf("ledger calls = %+v", l.calls)
			}
			return
		}
		if res.Win {
			t.Fatal("winning play succeeded despite failing credit")
		}
	}
	t.Fatal("no winning color play in 200 attempts")
}
