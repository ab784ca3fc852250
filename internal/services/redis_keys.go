package services

const (
	KeyWallet    = "wallet:%d"
	KeyRateLimit = "ratelimit:%d:%s"
	KeySetting   = "settings:%s"

	DefaultRateLimitBets    = 30 // max bets per minute
	DefaultRateLimitCashout = 60 // max cashouts per minute
)
