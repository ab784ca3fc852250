package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Env  string
	Port string

	RedisURL  string
	RedisPass string
	RedisDB   int

	DBPath string

	JWTSecret string

	// Round timing for the continuous crash game.
	BettingWindow  time.Duration
	FlightMin      time.Duration
	FlightMax      time.Duration
	RoundPause     time.Duration
	MultiplierRate float64 // multiplier growth per second during flight

	// Defaults for the settings collaborator; live values are read fresh
	// from Redis and fall back to these.
	HouseEdge      float64 // percent
	MinBet         float64
	MaxBet         float64
	DailyLossLimit float64
}

func Load() (*Config, error) {
	cfg := &Config{
		Env:       getEnv("ENV", "development"),
		Port:      getEnv("PORT", "8080"),
		RedisURL:  getEnv("REDIS_URL", "localhost:6379"),
		RedisPass: getEnv("REDIS_PASSWORD", ""),
		DBPath:    getEnv("DB_PATH", "./wagering.db"),
		JWTSecret: getEnv("JWT_SECRET", ""),

		BettingWindow:  getDuration("BETTING_WINDOW", 10*time.Second),
		FlightMin:      getDuration("FLIGHT_MIN", 2*time.Second),
		FlightMax:      getDuration("FLIGHT_MAX", 10*time.Second),
		RoundPause:     getDuration("ROUND_PAUSE", 5*time.Second),
		MultiplierRate: getFloat("MULTIPLIER_RATE", 0.5),

		HouseEdge:      getFloat("HOUSE_EDGE", 1.0),
		MinBet:         getFloat("MIN_BET", 1),
		MaxBet:         getFloat("MAX_BET", 10000),
		DailyLossLimit: getFloat("DAILY_LOSS_LIMIT", 50000),
	}

	db, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}
	cfg.RedisDB = db

	if cfg.Env == "production" && cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required in production")
	}
	if cfg.JWTSecret == "" {
		cfg.JWTSecret = "dev-secret-do-not-use"
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
