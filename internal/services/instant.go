package services

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"sync"

	"lucky-rounds-backend/internal/fair"
	"lucky-rounds-backend/internal/games"
	"lucky-rounds-backend/internal/ledger"
	"lucky-rounds-backend/internal/models"
)

// NonceSource claims the caller's next (client seed, nonce) pair.
type NonceSource interface {
	AdvanceNonce(ctx context.Context, userID int64) (string, int64, error)
}

// StakeLedger is the slice of the ledger instant plays move money through.
type StakeLedger interface {
	Apply(ctx context.Context, userID int64, amount float64, kind models.TransactionType, meta ledger.Metadata) (float64, error)
}

// EdgeSource supplies the live house edge per game.
type EdgeSource interface {
	HouseEdge(ctx context.Context, game models.GameType) float64
}

// InstantGames resolves single-request plays (dice, coinflip, color) inside
// one call. Results derive from the engine server seed and the caller's
// wallet seed pair; the server seed stays hidden until it is rotated, only
// its hash is published with each result.
type InstantGames struct {
	mu         sync.RWMutex
	serverSeed string
	seedHash   string

	nonces   NonceSource
	ledger   StakeLedger
	settings EdgeSource
}

// InstantResult is what the player gets back: the outcome plus everything
// needed to verify it once the server seed is revealed.
type InstantResult struct {
	GameType       models.GameType `json:"game_type"`
	ServerSeedHash string          `json:"server_seed_hash"`
	ClientSeed     string          `json:"client_seed"`
	Nonce          int64           `json:"nonce"`
	Outcome        string          `json:"outcome"`
	Win            bool            `json:"win"`
	Payout         float64         `json:"payout"`
	Balance        float64         `json:"balance"`
}

func NewInstantGames(nonces NonceSource, l StakeLedger, settings EdgeSource) (*InstantGames, error) {
	seed, err := fair.NewServerSeed()
	if err != nil {
		return nil, fmt.Errorf("failed to generate engine seed: %w", err)
	}

	return &InstantGames{
		serverSeed: seed,
		seedHash:   fair.HashSeed(seed),
		nonces:     nonces,
		ledger:     l,
		settings:   settings,
	}, nil
}

// SeedHash is the current commitment players verify future plays against.
func (g *InstantGames) SeedHash() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.seedHash
}

// RotateSeed retires the current server seed and returns it, now revealable,
// together with the new commitment. Plays after the rotation derive from the
// new seed.
func (g *InstantGames) RotateSeed() (revealed, newHash string, err error) {
	next, err := fair.NewServerSeed()
	if err != nil {
		return "", "", fmt.Errorf("failed to rotate engine seed: %w", err)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	revealed = g.serverSeed
	g.serverSeed = next
	g.seedHash = fair.HashSeed(next)
	return revealed, g.seedHash, nil
}

func (g *InstantGames) seeds() (string, string) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.serverSeed, g.seedHash
}

func (g *InstantGames) PlayDice(ctx context.Context, userID int64, req *models.DicePlayRequest) (*InstantResult, error) {
	serverSeed, seedHash := g.seeds()

	clientSeed, nonce, err := g.nonces.AdvanceNonce(ctx, userID)
	if err != nil {
		return nil, &models.PersistenceError{Op: "advance nonce", Err: err}
	}

	u := fair.Derive(serverSeed, clientSeed, nonce)
	roll := fair.DiceRoll(u)
	win := fair.DiceWin(roll, req.Target, req.Over)
	chance := fair.DiceWinChance(req.Target, req.Over)
	payout := games.DicePayout(req.Amount, chance, win)

	return g.resolve(ctx, userID, models.GameTypeDice, req.Amount, payout, win, &models.OutcomeDetail{
		ServerSeedHash: seedHash,
		ClientSeed:     clientSeed,
		Nonce:          nonce,
		Outcome:        strconv.Itoa(roll),
		Multiplier:     99.0 / chance,
	})
}

func (g *InstantGames) PlayCoinFlip(ctx context.Context, userID int64, req *models.CoinFlipPlayRequest) (*InstantResult, error) {
	serverSeed, seedHash := g.seeds()
	houseEdge := g.settings.HouseEdge(ctx, models.GameTypeCoinFlip)

	clientSeed, nonce, err := g.nonces.AdvanceNonce(ctx, userID)
	if err != nil {
		return nil, &models.PersistenceError{Op: "advance nonce", Err: err}
	}

	// Two draws from the same nonce's stream: the side, then the win gate
	// that carries the house edge.
	draws := fair.Floats(serverSeed, clientSeed, nonce, 2)
	side := fair.CoinSide(draws[0])
	win := side == req.Choice && fair.CoinWinGate(draws[1], houseEdge)
	payout := games.CoinFlipPayout(req.Amount, win)

	return g.resolve(ctx, userID, models.GameTypeCoinFlip, req.Amount, payout, win, &models.OutcomeDetail{
		ServerSeedHash: seedHash,
		ClientSeed:     clientSeed,
		Nonce:          nonce,
		Outcome:        side,
		Multiplier:     2.0,
	})
}

func (g *InstantGames) PlayColor(ctx context.Context, userID int64, req *models.ColorPlayRequest) (*InstantResult, error) {
	serverSeed, seedHash := g.seeds()

	clientSeed, nonce, err := g.nonces.AdvanceNonce(ctx, userID)
	if err != nil {
		return nil, &models.PersistenceError{Op: "advance nonce", Err: err}
	}

	color, multiplier := fair.ColorDraw(fair.Derive(serverSeed, clientSeed, nonce))
	win := color == req.Color
	payout := games.ColorPayout(req.Amount, multiplier, win)

	return g.resolve(ctx, userID, models.GameTypeColor, req.Amount, payout, win, &models.OutcomeDetail{
		ServerSeedHash: seedHash,
		ClientSeed:     clientSeed,
		Nonce:          nonce,
		Outcome:        color,
		Multiplier:     multiplier,
	})
}

// resolve runs the shared money flow: debit the stake, then either credit
// the payout or append a zero-amount loss record so the play is auditable
// either way.
func (g *InstantGames) resolve(ctx context.Context, userID int64, game models.GameType, stake, payout float64, win bool, detail *models.OutcomeDetail) (*InstantResult, error) {
	meta := ledger.Metadata{GameType: game, Detail: detail}

	balance, err := g.ledger.Apply(ctx, userID, -stake, models.TransactionTypeBet, meta)
	if err != nil {
		return nil, err
	}

	if win {
		balance, err = g.ledger.Apply(ctx, userID, payout, models.TransactionTypeWin, meta)
		if err != nil {
			log.Printf("INSTANT: win credit failed, user=%d game=%s nonce=%d payout=%.2f: %v", userID, game, detail.Nonce, payout, err)
			return nil, err
		}
	} else {
		if _, err := g.ledger.Apply(ctx, userID, 0, models.TransactionTypeLoss, meta); err != nil {
			// The stake debit is already audited; a missing loss marker
			// does not change anyone's balance.
			log.Printf("INSTANT: loss record failed, user=%d game=%s nonce=%d: %v", userID, game, detail.Nonce, err)
		}
	}

	return &InstantResult{
		GameType:       game,
		ServerSeedHash: detail.ServerSeedHash,
		ClientSeed:     detail.ClientSeed,
		Nonce:          detail.Nonce,
		Outcome:        detail.Outcome,
		Win:            win,
		Payout:         payout,
		Balance:        balance,
	}, nil
}
