package services

import (
	"context"
	"fmt"
	"strconv"

	"lucky-rounds-backend/internal/config"
	"lucky-rounds-backend/internal/models"
)

// Settings is the external settings collaborator: house edge, bet limits and
// the daily loss ceiling live in Redis so operators can change them without a
// restart. Every accessor reads fresh and falls back to the config defaults.
type Settings struct {
	redis *RedisService
	cfg   *config.Config
}

func NewSettings(redis *RedisService, cfg *config.Config) *Settings {
	return &Settings{redis: redis, cfg: cfg}
}

func (s *Settings) float(ctx context.Context, name string, fallback float64) float64 {
	value, ok, err := s.redis.GetSetting(ctx, name)
	if err != nil || !ok {
		return fallback
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return f
}

// HouseEdge is the edge percentage for a game type, overridable per game
// via settings:house_edge:<game>.
func (s *Settings) HouseEdge(ctx context.Context, game models.GameType) float64 {
	return s.float(ctx, fmt.Sprintf("house_edge:%s", game), s.cfg.HouseEdge)
}

func (s *Settings) MinBet(ctx context.Context) float64 {
	return s.float(ctx, "min_bet", s.cfg.MinBet)
}

func (s *Settings) MaxBet(ctx context.Context) float64 {
	return s.float(ctx, "max_bet", s.cfg.MaxBet)
}

func (s *Settings) DailyLossLimit(ctx context.Context) float64 {
	return s.float(ctx, "daily_loss_limit", s.cfg.DailyLossLimit)
}
