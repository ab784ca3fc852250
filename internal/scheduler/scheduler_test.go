package scheduler_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"lucky-rounds-backend/internal/ledger"
	"lucky-rounds-backend/internal/models"
	"lucky-rounds-backend/internal/scheduler"
)

type fakeLedger struct {
	mu      sync.Mutex
	applies []appliedOp
	winErr  error
}

type appliedOp struct {
	userID int64
	amount float64
	kind   models.TransactionType
}

func (f *fakeLedger) Apply(_ context.Context, userID int64, amount float64, kind models.TransactionType, _ ledger.Metadata) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if kind == models.TransactionTypeWin && f.winErr != nil {
		return 0, f.winErr
	}
	f.applies = append(f.applies, appliedOp{userID: userID, amount: amount, kind: kind})
	return 1000 + amount, nil
}

func (f *fakeLedger) byKind(kind models.TransactionType) []appliedOp {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []appliedOp
	for _, a := range f.applies {
		if a.kind == kind {
			out = append(out, a)
		}
	}
	return out
}

type fakeStore struct {
	mu           sync.Mutex
	saved        []*models.Round
	updated      []*models.Round
	participants map[string][]*models.Participant
}

func newFakeStore() *fakeStore {
	return &fakeStore{participants: make(map[string][]*models.Participant)}
}

func (f *fakeStore) SaveRound(round *models.Round) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	snapshot := *round
	f.saved = append(f.saved, &snapshot)
	return nil
}

func (f *fakeStore) UpdateRound(round *models.Round) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	snapshot := *round
	f.updated = append(f.updated, &snapshot)
	return nil
}

func (f *fakeStore) SaveParticipants(roundID string, participants []*models.Participant) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*models.Participant, 0, len(participants))
	for _, p := range participants {
		snapshot := *p
		out = append(out, &snapshot)
	}
	f.participants[roundID] = out
	return nil
}

func (f *fakeStore) LastRoundNumber(models.GameType) (int64, error) { return 0, nil }

func (f *fakeStore) lastSaved() *models.Round {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.saved) == 0 {
		return nil
	}
	return f.saved[len(f.saved)-1]
}

func (f *fakeStore) savedParticipants(roundID string) []*models.Participant {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.participants[roundID]
}

func (f *fakeStore) updatedRound(id string) *models.Round {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.updated {
		if r.ID == id {
			return r
		}
	}
	return nil
}

type fakeSettings struct{ edge float64 }

func (f fakeSettings) HouseEdge(context.Context, models.GameType) float64 { return f.edge }

type event struct {
	name    string
	roundID string
	target  float64
}

// chanNotifier turns every notification into an event on a channel so tests
// can wait for phase transitions instead of sleeping.
type chanNotifier struct{ events chan event }

func newChanNotifier() *chanNotifier {
	return &chanNotifier{events: make(chan event, 256)}
}

func (n *chanNotifier) RoundStarted(roundID string, _ int64, _ time.Duration) {
	n.events <- event{name: "round_started", roundID: roundID}
}

func (n *chanNotifier) FlightStarted(roundID string) {
	n.events <- event{name: "flight_started", roundID: roundID}
}

func (n *chanNotifier) MultiplierTick(string, float64) {}

func (n *chanNotifier) RoundEnded(roundID string, target float64, _ string) {
	n.events <- event{name: "round_ended", roundID: roundID, target: target}
}

func (n *chanNotifier) PlayerBet(roundID string, _ int64, _ float64) {
	n.events <- event{name: "player_bet", roundID: roundID}
}

func (n *chanNotifier) PlayerCashout(roundID string, _ int64, _, _ float64) {
	n.events <- event{name: "player_cashout", roundID: roundID}
}

func (n *chanNotifier) wait(t *testing.T, name string) event {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case e := <-n.events:
			if e.name == name {
				return e
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %q event", name)
		}
	}
}

func testConfig() scheduler.Config {
	return scheduler.Config{
		BettingWindow:  120 * time.Millisecond,
		FlightMin:      350 * time.Millisecond,
		FlightMax:      600 * time.Millisecond,
		RoundPause:     50 * time.Millisecond,
		MultiplierRate: 1.0,
	}
}

func startScheduler(t *testing.T, l *fakeLedger, db *fakeStore) (*scheduler.Scheduler, *chanNotifier) {
	t.Helper()

	notifier := newChanNotifier()
	s, err := scheduler.New(models.GameTypeCrash, testConfig(), l, db, fakeSettings{edge: 1.0}, notifier)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	return s, notifier
}

func TestRoundPhaseSequence(t *testing.T) {
	s, notifier := startScheduler(t, &fakeLedger{}, newFakeStore())

	first := notifier.wait(t, "round_started")
	notifier.wait(t, "flight_started")
	ended := notifier.wait(t, "round_ended")
	if ended.roundID != first.roundID {
		t.Fatalf("round ended with id %s, started with %s", ended.roundID, first.roundID)
	}
	if ended.target < 1.00 || ended.target > 5.00 {
		t.Fatalf("revealed target %v out of range", ended.target)
	}

	second := notifier.wait(t, "round_started")
	if second.roundID == first.roundID {
		t.Fatal("next round reused the previous round id")
	}

	ctx := context.Background()
	round, err := s.CurrentRound(ctx)
	if err != nil {
		t.Fatalf("CurrentRound: %v", err)
	}
	if round.Number < 2 {
		t.Fatalf("round number = %d, want >= 2", round.Number)
	}
}

func TestSnapshotHidesTargetBeforeEnd(t *testing.T) {
	db := newFakeStore()
	s, notifier := startScheduler(t, &fakeLedger{}, db)

	notifier.wait(t, "round_started")

	round, err := s.CurrentRound(context.Background())
	if err != nil {
		t.Fatalf("CurrentRound: %v", err)
	}
	if round.Phase != models.PhaseBetting {
		t.Fatalf("phase = %s, want %s", round.Phase, models.PhaseBetting)
	}
	if round.Target != 0 || round.ServerSeed != "" {
		t.Fatalf("snapshot leaked target=%v serverSeed=%q before the round ended", round.Target, round.ServerSeed)
	}
	if round.ServerSeedHash == "" {
		t.Fatal("snapshot is missing the server seed hash commitment")
	}

	if saved := db.lastSaved(); saved == nil || saved.Target == 0 {
		t.Fatal("persisted round should carry the real target")
	}
}

func TestBetRejectedAfterBettingWindow(t *testing.T) {
	s, notifier := startScheduler(t, &fakeLedger{}, newFakeStore())

	notifier.wait(t, "flight_started")

	_, _, err := s.PlaceBet(context.Background(), 1, 50)
	var stateErr *models.StateError
	if !errors.As(err, &stateErr) || stateErr.Code != models.ReasonBetWindowClosed {
		t.Fatalf("bet after window: got %v, want state error %s", err, models.ReasonBetWindowClosed)
	}
}

func TestCashoutCreditsOnlyAtSettlement(t *testing.T) {
	l := &fakeLedger{}
	db := newFakeStore()
	s, notifier := startScheduler(t, l, db)

	ctx := context.Background()

	// Rounds with a target at the very bottom of the range leave no room
	// to cash out below it; wait for one with headroom.
	var started event
	for {
		started = notifier.wait(t, "round_started")
		if db.lastSaved().Target >= 1.50 {
			break
		}
	}

	participant, _, err := s.PlaceBet(ctx, 7, 100)
	if err != nil {
		t.Fatalf("PlaceBet: %v", err)
	}
	if participant.Stake != 100 {
		t.Fatalf("stake = %v, want 100", participant.Stake)
	}
	if got := l.byKind(models.TransactionTypeBet); len(got) != 1 || got[0].amount != -100 {
		t.Fatalf("bet debits = %+v, want one -100", got)
	}

	notifier.wait(t, "flight_started")

	cashed, err := s.Cashout(ctx, 7, 1.25)
	if err != nil {
		t.Fatalf("Cashout: %v", err)
	}
	if cashed.Payout != 125 {
		t.Fatalf("payout = %v, want 125", cashed.Payout)
	}
	if wins := l.byKind(models.TransactionTypeWin); len(wins) != 0 {
		t.Fatalf("win credited before settlement: %+v", wins)
	}

	notifier.wait(t, "round_ended")

	wins := l.byKind(models.TransactionTypeWin)
	if len(wins) != 1 || wins[0].amount != 125 || wins[0].userID != 7 {
		t.Fatalf("settlement credits = %+v, want one +125 for user 7", wins)
	}

	ended := db.updatedRound(started.roundID)
	if ended == nil {
		t.Fatal("ended round was not persisted")
	}
	if ended.TotalPaidOut != 125 || ended.TotalWagered != 100 {
		t.Fatalf("aggregates: paid=%v wagered=%v, want 125/100", ended.TotalPaidOut, ended.TotalWagered)
	}

	saved := db.savedParticipants(started.roundID)
	if len(saved) != 1 || saved[0].Status != models.ParticipantCashedOut {
		t.Fatalf("persisted participants = %+v", saved)
	}
}

func TestUncashedStakeIsLost(t *testing.T) {
	l := &fakeLedger{}
	db := newFakeStore()
	s, notifier := startScheduler(t, l, db)

	started := notifier.wait(t, "round_started")
	if _, _, err := s.PlaceBet(context.Background(), 3, 40); err != nil {
		t.Fatalf("PlaceBet: %v", err)
	}

	notifier.wait(t, "round_ended")

	if wins := l.byKind(models.TransactionTypeWin); len(wins) != 0 {
		t.Fatalf("lost stake produced a credit: %+v", wins)
	}

	saved := db.savedParticipants(started.roundID)
	if len(saved) != 1 || saved[0].Status != models.ParticipantLost {
		t.Fatalf("persisted participants = %+v, want one lost row", saved)
	}
	if ended := db.updatedRound(started.roundID); ended == nil || ended.TotalPaidOut != 0 {
		t.Fatal("lost round should have zero total paid out")
	}
}

func TestConcurrentBetsSameUser(t *testing.T) {
	l := &fakeLedger{}
	s, notifier := startScheduler(t, l, newFakeStore())

	notifier.wait(t, "round_started")

	const attempts = 8
	errs := make(chan error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := s.PlaceBet(context.Background(), 42, 10)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var ok, dup int
	for err := range errs {
		if err == nil {
			ok++
			continue
		}
		var stateErr *models.StateError
		if errors.As(err, &stateErr) && stateErr.Code == models.ReasonAlreadyPlacedBet {
			dup++
		}
	}
	if ok != 1 {
		t.Fatalf("successful bets = %d, want exactly 1", ok)
	}
	if dup != attempts-1 {
		t.Fatalf("duplicate rejections = %d, want %d", dup, attempts-1)
	}
	if debits := l.byKind(models.TransactionTypeBet); len(debits) != 1 {
		t.Fatalf("ledger debits = %d, want 1", len(debits))
	}
}

func TestSettlementLedgerFailureFlagsRound(t *testing.T) {
	l := &fakeLedger{winErr: errors.New("redis down")}
	db := newFakeStore()
	s, notifier := startScheduler(t, l, db)

	ctx := context.Background()

	var started event
	for {
		started = notifier.wait(t, "round_started")
		if db.lastSaved().Target >= 1.50 {
			break
		}
	}

	if _, _, err := s.PlaceBet(ctx, 5, 100); err != nil {
		t.Fatalf("PlaceBet: %v", err)
	}
	notifier.wait(t, "flight_started")
	if _, err := s.Cashout(ctx, 5, 1.10); err != nil {
		t.Fatalf("Cashout: %v", err)
	}

	notifier.wait(t, "round_ended")

	ended := db.updatedRound(started.roundID)
	if ended == nil {
		t.Fatal("ended round was not persisted")
	}
	if !ended.Flagged {
		t.Fatal("round with a failed settlement credit must be flagged")
	}
	if ended.TotalPaidOut != 0 {
		t.Fatalf("failed credit counted toward payouts: %v", ended.TotalPaidOut)
	}
}

func TestCashoutAtOrAboveTargetRejected(t *testing.T) {
	db := newFakeStore()
	s, notifier := startScheduler(t, &fakeLedger{}, db)

	ctx := context.Background()
	notifier.wait(t, "round_started")
	target := db.lastSaved().Target

	if _, _, err := s.PlaceBet(ctx, 9, 20); err != nil {
		t.Fatalf("PlaceBet: %v", err)
	}
	notifier.wait(t, "flight_started")

	_, err := s.Cashout(ctx, 9, target+0.5)
	var stateErr *models.StateError
	if !errors.As(err, &stateErr) || stateErr.Code != models.ReasonTooLate {
		t.Fatalf("cashout above target: got %v, want state error %s", err, models.ReasonTooLate)
	}
}
