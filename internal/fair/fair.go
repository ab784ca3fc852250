// Package fair implements the provably-fair result generator shared by all
// game types. Outcomes are pure functions of (server seed, client seed,
// nonce): the server commits to the seed through its SHA-256 hash before the
// round, and reveals it afterwards so anyone can recompute the result.
package fair

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
)

// CrashTolerance is the maximum acceptable drift when verifying a claimed
// crash multiplier against a recomputed one. Discrete outcomes must match
// exactly.
const CrashTolerance = 0.01

func NewServerSeed() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate server seed: %w", err)
	}
	return hex.EncodeToString(bytes), nil
}

func NewClientSeed() (string, error) {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate client seed: %w", err)
	}
	return hex.EncodeToString(bytes), nil
}

// HashSeed is the pre-round commitment for a server seed.
func HashSeed(seed string) string {
	sum := sha256.Sum256([]byte(seed))
	return hex.EncodeToString(sum[:])
}

// Floats derives count uniform values in [0,1) from the seed pair. Each
// HMAC-SHA256 block is keyed by the server seed over "clientSeed:nonce:block"
// and consumed four bytes per float, so draws beyond the first are
// independent of it without burning another nonce.
func Floats(serverSeed, clientSeed string, nonce int64, count int) []float64 {
	floats := make([]float64, count)

	var buf [sha256.Size]byte
	block := 0
	cursor := sha256.Size // force a fill on first use

	next := func() byte {
		if cursor >= sha256.Size {
			h := hmac.New(sha256.New, []byte(serverSeed))
			fmt.Fprintf(h, "%s:%d:%d", clientSeed, nonce, block)
			copy(buf[:], h.Sum(nil))
			block++
			cursor = 0
		}
		b := buf[cursor]
		cursor++
		return b
	}

	for i := range floats {
		v := 0.0
		div := 256.0
		for j := 0; j < 4; j++ {
			v += float64(next()) / div
			div *= 256.0
		}
		floats[i] = v
	}

	return floats
}

// Derive returns the single uniform value in [0,1) for the seed pair.
// Deterministic: identical inputs always yield a bit-identical result.
func Derive(serverSeed, clientSeed string, nonce int64) float64 {
	return Floats(serverSeed, clientSeed, nonce, 1)[0]
}

// CrashTarget maps a uniform value to the round's crash multiplier.
// The house-edge exponent pushes mass toward low multipliers, then piecewise
// bands shape the distribution: roughly 40% below 2.2x, 35% in 2.2-4.0x,
// 20% in 4.0-4.8x and 5% in 4.8-5.0x. houseEdge is a percentage.
func CrashTarget(u, houseEdge float64) float64 {
	if u < 0 {
		u = 0
	}
	if u >= 1 {
		u = math.Nextafter(1, 0)
	}

	biased := math.Pow(u, 1.0+houseEdge/10.0)

	var target float64
	switch {
	case biased < 0.40:
		target = 1.00 + biased/0.40*1.2
	case biased < 0.75:
		target = 2.2 + (biased-0.40)/0.35*1.8
	case biased < 0.95:
		target = 4.0 + (biased-0.75)/0.20*0.8
	default:
		target = 4.8 + (biased-0.95)/0.05*0.2
	}

	target = math.Floor(target*100) / 100
	if target < 1.0 {
		target = 1.0
	}
	if target > 5.0 {
		target = 5.0
	}
	return target
}

// DiceRoll maps a uniform value to an integer roll in [1,100].
func DiceRoll(u float64) int {
	roll := int(u*100) + 1
	if roll > 100 {
		roll = 100
	}
	return roll
}

// DiceWin reports whether the roll beats the target in the chosen direction.
func DiceWin(roll, target int, over bool) bool {
	if over {
		return roll > target
	}
	return roll < target
}

// DiceWinChance is the win probability in percent for a target/direction
// pair, used by the payout formula stake * (99 / chance).
func DiceWinChance(target int, over bool) float64 {
	if over {
		return float64(100 - target)
	}
	return float64(target - 1)
}

// CoinSide maps the first draw to heads or tails.
func CoinSide(u float64) string {
	if u < 0.5 {
		return "heads"
	}
	return "tails"
}

// CoinWinGate is the second, independent draw: a matching choice only pays
// if the gate passes. This is where the house edge lives in an otherwise
// symmetric game; houseEdge is a percentage.
func CoinWinGate(u, houseEdge float64) bool {
	return u >= houseEdge/100.0
}

// Color categories with fixed payout multipliers.
const (
	ColorRed   = "red"
	ColorBlack = "black"
	ColorGreen = "green"
)

// ColorDraw maps a uniform value to a weighted color category and its payout
// multiplier: red 45% at 2x, black 45% at 2x, green 10% at 5x.
func ColorDraw(u float64) (string, float64) {
	switch {
	case u < 0.45:
		return ColorRed, 2.0
	case u < 0.90:
		return ColorBlack, 2.0
	default:
		return ColorGreen, 5.0
	}
}

// VerifyCrash recomputes the crash target from revealed seeds and checks the
// claimed value within CrashTolerance.
func VerifyCrash(serverSeed, clientSeed string, nonce int64, houseEdge, claimed float64) (float64, bool) {
	target := CrashTarget(Derive(serverSeed, clientSeed, nonce), houseEdge)
	return target, math.Abs(target-claimed) <= CrashTolerance
}

// VerifyDice recomputes the roll from revealed seeds; discrete outcomes must
// match exactly.
func VerifyDice(serverSeed, clientSeed string, nonce int64, claimed int) (int, bool) {
	roll := DiceRoll(Derive(serverSeed, clientSeed, nonce))
	return roll, roll == claimed
}

// VerifyColor recomputes the color category from revealed seeds.
func VerifyColor(serverSeed, clientSeed string, nonce int64, claimed string) (string, bool) {
	color, _ := ColorDraw(Derive(serverSeed, clientSeed, nonce))
	return color, color == claimed
}

// VerifyCoinFlip recomputes both draws from revealed seeds and reports the
// side and whether a matching choice would have paid.
func VerifyCoinFlip(serverSeed, clientSeed string, nonce int64, houseEdge float64) (string, bool) {
	draws := Floats(serverSeed, clientSeed, nonce, 2)
	return CoinSide(draws[0]), CoinWinGate(draws[1], houseEdge)
}
