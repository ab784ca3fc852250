package games_test

import (
	"math"
	"testing"

	"lucky-rounds-backend/internal/games"
)

func TestCrashPayout(t *testing.T) {
	if got := games.CrashPayout(100, 2.0, true); got != 200 {
		t.Errorf("crash payout = %v, want 200", got)
	}
	if got := games.CrashPayout(100, 2.0, false); got != 0 {
		t.Errorf("crash payout without cashout = %v, want 0", got)
	}
}

func TestDicePayout(t *testing.T) {
	// Threshold 50, direction over: win chance 50, payout stake * (99/50).
	got := games.DicePayout(100, 50, true)
	want := 100 * (99.0 / 50.0)
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("dice payout = %v, want %v", got, want)
	}
	if games.DicePayout(100, 50, false) != 0 {
		t.Error("losing dice play must pay 0")
	}
	if games.DicePayout(100, 0, true) != 0 {
		t.Error("zero win chance must pay 0")
	}
}

func TestCoinFlipPayout(t *testing.T) {
	if got := games.CoinFlipPayout(50, true); got != 100 {
		t.Errorf("coinflip payout = %v, want 100", got)
	}
	if games.CoinFlipPayout(50, false) != 0 {
		t.Error("losing flip must pay 0")
	}
}

func TestColorPayout(t *testing.T) {
	if got := games.ColorPayout(20, 5.0, true); got != 100 {
		t.Errorf("green payout = %v, want 100", got)
	}
	if games.ColorPayout(20, 5.0, false) != 0 {
		t.Error("losing color must pay 0")
	}
}
