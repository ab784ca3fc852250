// Package games holds the pure payout calculators. Nothing here touches the
// ledger or the registry; callers feed in an outcome and a stake and get a
// payout back.
package games

// CrashPayout pays stake times the locked-in multiplier for a participant
// who cashed out before the target, and nothing otherwise.
func CrashPayout(stake, cashoutMultiplier float64, cashedOut bool) float64 {
	if !cashedOut {
		return 0
	}
	return stake * cashoutMultiplier
}

// DicePayout pays stake * (99 / winChance) on a win. winChance is the win
// probability in percent, so the 99 numerator carries the 1% house edge.
func DicePayout(stake, winChance float64, win bool) float64 {
	if !win || winChance <= 0 {
		return 0
	}
	return stake * (99.0 / winChance)
}

// CoinFlipPayout pays even money on a win.
func CoinFlipPayout(stake float64, win bool) float64 {
	if !win {
		return 0
	}
	return stake * 2
}

// ColorPayout pays stake times the drawn category's fixed multiplier.
func ColorPayout(stake, categoryMultiplier float64, win bool) float64 {
	if !win {
		return 0
	}
	return stake * categoryMultiplier
}
