// Package scheduler drives the continuous crash game through its phases:
// BETTING -> FLYING -> SETTLING -> ENDED, then a fixed pause before the next
// round. One Scheduler runs per game type; its Run loop is the single owner
// of the active round and its registry, so every bet, cashout and timer event
// is processed one at a time with no shared mutable state.
package scheduler

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"lucky-rounds-backend/internal/fair"
	"lucky-rounds-backend/internal/ledger"
	"lucky-rounds-backend/internal/models"
	"lucky-rounds-backend/internal/registry"
)

const tickInterval = 100 * time.Millisecond

// Notifier receives the externally visible events. Only phase transitions
// and spectator notices leave the scheduler; the target never does before
// the round ends.
type Notifier interface {
	RoundStarted(roundID string, number int64, bettingWindow time.Duration)
	FlightStarted(roundID string)
	MultiplierTick(roundID string, multiplier float64)
	RoundEnded(roundID string, target float64, serverSeed string)
	PlayerBet(roundID string, userID int64, amount float64)
	PlayerCashout(roundID string, userID int64, multiplier, payout float64)
}

// Store is the audit persistence the scheduler writes rounds through.
type Store interface {
	SaveRound(round *models.Round) error
	UpdateRound(round *models.Round) error
	SaveParticipants(roundID string, participants []*models.Participant) error
	LastRoundNumber(gameType models.GameType) (int64, error)
}

// Settings supplies the live house edge, read fresh for every round.
type Settings interface {
	HouseEdge(ctx context.Context, game models.GameType) float64
}

type Config struct {
	BettingWindow  time.Duration
	FlightMin      time.Duration
	FlightMax      time.Duration
	RoundPause     time.Duration
	MultiplierRate float64 // multiplier growth per second during flight
}

type Scheduler struct {
	gameType models.GameType
	cfg      Config
	ledger   registry.Ledger
	db       Store
	settings Settings
	notifier Notifier

	ops chan op

	// Everything below is owned by the Run goroutine.
	round       *models.Round
	reg         *registry.Registry
	roundNumber int64
	timer       *time.Timer
	timerRound  int64
	timerPhase  models.RoundPhase
	ticker      *time.Ticker
}

func New(gameType models.GameType, cfg Config, l registry.Ledger, db Store, settings Settings, notifier Notifier) (*Scheduler, error) {
	last, err := db.LastRoundNumber(gameType)
	if err != nil {
		return nil, err
	}

	return &Scheduler{
		gameType:    gameType,
		cfg:         cfg,
		ledger:      l,
		db:          db,
		settings:    settings,
		notifier:    notifier,
		ops:         make(chan op, 64),
		roundNumber: last,
	}, nil
}

type opKind int

const (
	opBet opKind = iota
	opCashout
	opStatus
)

type op struct {
	kind       opKind
	userID     int64
	amount     float64
	multiplier float64
	resp       chan opResult
}

type opResult struct {
	participant *models.Participant
	round       *models.Round
	balance     float64
	err         error
}

// Run owns the round state machine until the context is cancelled. Pending
// timers are stopped on shutdown; an op already picked up is always
// completed first.
func (s *Scheduler) Run(ctx context.Context) {
	s.startRound(ctx)

	for {
		var timerC, tickC <-chan time.Time
		if s.timer != nil {
			timerC = s.timer.C
		}
		if s.ticker != nil {
			tickC = s.ticker.C
		}

		select {
		case <-ctx.Done():
			s.stopTimer()
			s.stopTicker()
			return
		case o := <-s.ops:
			s.handleOp(ctx, o)
		case <-timerC:
			s.timer = nil
			s.onTimer(ctx)
		case <-tickC:
			s.onTick(ctx)
		}
	}
}

// PlaceBet stakes amount on the current round. Once the op is accepted by
// the loop it always completes, even if the caller's context is cancelled
// while waiting for the result.
func (s *Scheduler) PlaceBet(ctx context.Context, userID int64, amount float64) (*models.Participant, float64, error) {
	res := s.submit(ctx, op{kind: opBet, userID: userID, amount: amount})
	return res.participant, res.balance, res.err
}

// Cashout locks in the payout at the requested multiplier; zero means the
// current live multiplier.
func (s *Scheduler) Cashout(ctx context.Context, userID int64, multiplier float64) (*models.Participant, error) {
	res := s.submit(ctx, op{kind: opCashout, userID: userID, multiplier: multiplier})
	return res.participant, res.err
}

// CurrentRound returns a snapshot safe to show to clients: the target and
// server seed are stripped until the round has ended.
func (s *Scheduler) CurrentRound(ctx context.Context) (*models.Round, error) {
	res := s.submit(ctx, op{kind: opStatus})
	return res.round, res.err
}

func (s *Scheduler) submit(ctx context.Context, o op) opResult {
	o.resp = make(chan opResult, 1)

	select {
	case s.ops <- o:
	case <-ctx.Done():
		return opResult{err: ctx.Err()}
	}

	select {
	case res := <-o.resp:
		return res
	case <-ctx.Done():
		// The loop will still complete the op; only the caller gave up.
		return opResult{err: ctx.Err()}
	}
}

func (s *Scheduler) handleOp(ctx context.Context, o op) {
	if s.round == nil {
		o.resp <- opResult{err: models.NewStateError(models.ReasonNoActiveRound, "no round is active")}
		return
	}

	switch o.kind {
	case opBet:
		participant, balance, err := s.reg.PlaceBet(ctx, o.userID, o.amount)
		if err == nil {
			s.notifier.PlayerBet(s.round.ID, o.userID, o.amount)
		}
		o.resp <- opResult{participant: participant, balance: balance, err: err}

	case opCashout:
		multiplier := o.multiplier
		if multiplier <= 0 {
			multiplier = s.round.Multiplier
		}
		participant, err := s.reg.Cashout(ctx, o.userID, multiplier)
		if err == nil {
			s.notifier.PlayerCashout(s.round.ID, o.userID, multiplier, participant.Payout)
		}
		o.resp <- opResult{participant: participant, err: err}

	case opStatus:
		o.resp <- opResult{round: s.snapshot()}
	}
}

func (s *Scheduler) snapshot() *models.Round {
	snapshot := *s.round
	if snapshot.Phase != models.PhaseEnded {
		snapshot.Target = 0
		snapshot.ServerSeed = ""
	}
	return &snapshot
}

func (s *Scheduler) startRound(ctx context.Context) {
	serverSeed, err := fair.NewServerSeed()
	if err != nil {
		log.Printf("SCHEDULER: cannot generate server seed, retrying next cycle: %v", err)
		s.armTimer(s.cfg.RoundPause, models.PhaseEnded)
		return
	}
	clientSeed, err := fair.NewClientSeed()
	if err != nil {
		log.Printf("SCHEDULER: cannot generate client seed, retrying next cycle: %v", err)
		s.armTimer(s.cfg.RoundPause, models.PhaseEnded)
		return
	}

	s.roundNumber++
	houseEdge := s.settings.HouseEdge(ctx, s.gameType)

	// The target is fixed here and stays server-internal until the round
	// has ended; clients only ever see the streamed live multiplier.
	target := fair.CrashTarget(fair.Derive(serverSeed, clientSeed, s.roundNumber), houseEdge)

	s.round = &models.Round{
		ID:             uuid.New().String(),
		GameType:       s.gameType,
		Number:         s.roundNumber,
		Phase:          models.PhaseBetting,
		Target:         target,
		Multiplier:     1.0,
		ServerSeed:     serverSeed,
		ServerSeedHash: fair.HashSeed(serverSeed),
		ClientSeed:     clientSeed,
		HouseEdge:      houseEdge,
		CreatedAt:      time.Now(),
	}
	s.reg = registry.New(s.round, s.ledger)

	if err := s.db.SaveRound(s.round); err != nil {
		log.Printf("SCHEDULER: failed to persist round %s: %v", s.round.ID, err)
	}

	s.notifier.RoundStarted(s.round.ID, s.round.Number, s.cfg.BettingWindow)
	s.armTimer(s.cfg.BettingWindow, models.PhaseBetting)
}

func (s *Scheduler) onTimer(ctx context.Context) {
	if s.round == nil {
		s.startRound(ctx)
		return
	}
	// Edge-triggered: a timer armed for a round or phase the scheduler has
	// already moved past is a no-op.
	if s.timerRound != s.roundNumber || s.round.Phase != s.timerPhase {
		return
	}

	switch s.round.Phase {
	case models.PhaseBetting:
		s.startFlight()
	case models.PhaseFlying:
		s.settle(ctx)
	case models.PhaseEnded:
		s.startRound(ctx)
	}
}

func (s *Scheduler) startFlight() {
	s.round.Phase = models.PhaseFlying
	s.round.FlightStartedAt = time.Now()

	s.notifier.FlightStarted(s.round.ID)

	s.armTimer(s.flightDuration(), models.PhaseFlying)
	s.ticker = time.NewTicker(tickInterval)
}

// flightDuration derives the flight length from the hidden target via the
// multiplier growth rate, clamped so rounds can neither end instantly nor
// run unboundedly long.
func (s *Scheduler) flightDuration() time.Duration {
	d := time.Duration((s.round.Target - 1.0) / s.cfg.MultiplierRate * float64(time.Second))
	if d < s.cfg.FlightMin {
		d = s.cfg.FlightMin
	}
	if d > s.cfg.FlightMax {
		d = s.cfg.FlightMax
	}
	return d
}

func (s *Scheduler) onTick(ctx context.Context) {
	if s.round == nil || s.round.Phase != models.PhaseFlying {
		return
	}

	s.round.Multiplier += s.cfg.MultiplierRate * tickInterval.Seconds()
	if s.round.Multiplier >= s.round.Target {
		s.round.Multiplier = s.round.Target
		s.settle(ctx)
		return
	}

	s.notifier.MultiplierTick(s.round.ID, s.round.Multiplier)
}

// settle finalizes every participant: cashed-out rows are credited through
// the ledger, remaining active rows become losses (their stake was debited
// at bet time). A ledger failure flags the round for manual reconciliation
// instead of retrying; a blind retry could double-credit rows that were
// already paid.
func (s *Scheduler) settle(ctx context.Context) {
	s.stopTimer()
	s.stopTicker()

	s.round.Phase = models.PhaseSettling
	s.round.SettledAt = time.Now()

	for _, p := range s.reg.Participants() {
		switch p.Status {
		case models.ParticipantCashedOut:
			_, err := s.ledger.Apply(ctx, p.UserID, p.Payout, models.TransactionTypeWin, ledger.Metadata{
				GameType: s.gameType,
				RoundID:  s.round.ID,
				Detail: &models.OutcomeDetail{
					ServerSeed:     s.round.ServerSeed,
					ServerSeedHash: s.round.ServerSeedHash,
					ClientSeed:     s.round.ClientSeed,
					Nonce:          s.round.Number,
					Multiplier:     p.CashoutMultiplier,
				},
			})
			if err != nil {
				s.round.Flagged = true
				cerr := &models.ConsistencyError{RoundID: s.round.ID, Err: err}
				log.Printf("SCHEDULER: %v (user=%d payout=%.2f), round flagged for reconciliation", cerr, p.UserID, p.Payout)
				continue
			}
			s.round.TotalPaidOut += p.Payout

		case models.ParticipantActive:
			p.Status = models.ParticipantLost
		}
	}

	s.round.Phase = models.PhaseEnded
	s.round.EndedAt = time.Now()

	if err := s.db.UpdateRound(s.round); err != nil {
		log.Printf("SCHEDULER: failed to persist ended round %s: %v", s.round.ID, err)
	}
	if err := s.db.SaveParticipants(s.round.ID, s.reg.Participants()); err != nil {
		log.Printf("SCHEDULER: failed to persist participants of round %s: %v", s.round.ID, err)
	}

	s.notifier.RoundEnded(s.round.ID, s.round.Target, s.round.ServerSeed)
	s.armTimer(s.cfg.RoundPause, models.PhaseEnded)
}

// armTimer keeps the invariant of exactly one outstanding timer, tagged with
// the round and phase it was armed for.
func (s *Scheduler) armTimer(d time.Duration, phase models.RoundPhase) {
	s.stopTimer()
	s.timer = time.NewTimer(d)
	s.timerRound = s.roundNumber
	s.timerPhase = phase
}

func (s *Scheduler) stopTimer() {
	if s.timer == nil {
		return
	}
	if !s.timer.Stop() {
		select {
		case <-s.timer.C:
		default:
		}
	}
	s.timer = nil
}

func (s *Scheduler) stopTicker() {
	if s.ticker == nil {
		return
	}
	s.ticker.Stop()
	s.ticker = nil
}
