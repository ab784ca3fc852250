package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"lucky-rounds-backend/internal/config"
	"lucky-rounds-backend/internal/models"
)

// RedisService owns the hot wallet state. All balance mutation goes through
// a single Lua script so a read-modify-write can never interleave with
// another request's.
type RedisService struct {
	client *redis.Client
}

func NewRedisService(cfg *config.Config) (*RedisService, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisURL,
		Password: cfg.RedisPass,
		DB:       cfg.RedisDB,
	})

	if _, err := client.Ping(context.Background()).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisService{client: client}, nil
}

func (s *RedisService) Close() error {
	return s.client.Close()
}

func (s *RedisService) GetWallet(ctx context.Context, userID int64) (*models.Wallet, error) {
	key := fmt.Sprintf(KeyWallet, userID)

	data, err := s.client.Get(ctx, key).Result()
	if err == redis.Nil {
		wallet, err := models.NewWallet(userID)
		if err != nil {
			return nil, err
		}
		if err := s.SaveWallet(ctx, wallet); err != nil {
			return nil, fmt.Errorf("failed to create wallet: %w", err)
		}
		return wallet, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get wallet: %w", err)
	}

	var wallet models.Wallet
	if err := json.Unmarshal([]byte(data), &wallet); err != nil {
		return nil, fmt.Errorf("failed to unmarshal wallet: %w", err)
	}

	return &wallet, nil
}

func (s *RedisService) SaveWallet(ctx context.Context, wallet *models.Wallet) error {
	key := fmt.Sprintf(KeyWallet, wallet.UserID)

	data, err := json.Marshal(wallet)
	if err != nil {
		return fmt.Errorf("failed to marshal wallet: %w", err)
	}

	return s.client.Set(ctx, key, data, 0).Err()
}

// applyBalanceScript mutates the balance in one atomic step. Debits are
// floor-clamped at zero rather than rejected; the caller gets both the
// before and after values for the audit record.
var applyBalanceScript = redis.NewScript(`
	local key = KEYS[1]
	local amount = tonumber(ARGV[1])
	local kind = ARGV[2]

	local data = redis.call("GET", key)
	if not data then
		return redis.error_reply("wallet not found")
	end

	local wallet = cjson.decode(data)
	local before = wallet.balance
	local after = before + amount
	if after < 0 then
		after = 0
	end
	wallet.balance = after

	if kind == "bet" and amount < 0 then
		wallet.total_wagered = wallet.total_wagered + (-amount)
	elseif kind == "win" then
		wallet.total_won = wallet.total_won + amount
	end

	redis.call("SET", key, cjson.encode(wallet))
	return cjson.encode({before, after})
`)

// ApplyBalance applies a signed amount to the user's balance and returns the
// balance before and after. The wallet is created first if missing.
func (s *RedisService) ApplyBalance(ctx context.Context, userID int64, amount float64, kind models.TransactionType) (float64, float64, error) {
	if _, err := s.GetWallet(ctx, userID); err != nil {
		return 0, 0, err
	}

	key := fmt.Sprintf(KeyWallet, userID)
	raw, err := applyBalanceScript.Run(ctx, s.client, []string{key}, amount, string(kind)).Result()
	if err != nil {
		return 0, 0, fmt.Errorf("balance script failed: %w", err)
	}

	encoded, ok := raw.(string)
	if !ok {
		return 0, 0, fmt.Errorf("unexpected balance script reply %T", raw)
	}

	var balances [2]float64
	if err := json.Unmarshal([]byte(encoded), &balances); err != nil {
		return 0, 0, fmt.Errorf("failed to decode balance reply: %w", err)
	}

	return balances[0], balances[1], nil
}

// advanceNonceScript consumes the wallet's current nonce for an instant play
// and returns the seed pair the play must be derived from.
var advanceNonceScript = redis.NewScript(`
	local key = KEYS[1]

	local data = redis.call("GET", key)
	if not data then
		return redis.error_reply("wallet not found")
	end

	local wallet = cjson.decode(data)
	local nonce = wallet.nonce
	wallet.nonce = nonce + 1

	redis.call("SET", key, cjson.encode(wallet))
	return cjson.encode({wallet.client_seed, nonce})
`)

// AdvanceNonce atomically claims the wallet's next nonce, so two concurrent
// instant plays can never derive from the same one.
func (s *RedisService) AdvanceNonce(ctx context.Context, userID int64) (string, int64, error) {
	if _, err := s.GetWallet(ctx, userID); err != nil {
		return "", 0, err
	}

	key := fmt.Sprintf(KeyWallet, userID)
	raw, err := advanceNonceScript.Run(ctx, s.client, []string{key}).Result()
	if err != nil {
		return "", 0, fmt.Errorf("nonce script failed: %w", err)
	}

	encoded, ok := raw.(string)
	if !ok {
		return "", 0, fmt.Errorf("unexpected nonce script reply %T", raw)
	}

	var reply []json.RawMessage
	if err := json.Unmarshal([]byte(encoded), &reply); err != nil || len(reply) != 2 {
		return "", 0, fmt.Errorf("failed to decode nonce reply: %v", err)
	}

	var seed string
	if err := json.Unmarshal(reply[0], &seed); err != nil {
		return "", 0, fmt.Errorf("failed to decode client seed: %w", err)
	}
	var nonce int64
	if err := json.Unmarshal(reply[1], &nonce); err != nil {
		return "", 0, fmt.Errorf("failed to decode nonce: %w", err)
	}

	return seed, nonce, nil
}

func (s *RedisService) CheckRateLimit(ctx context.Context, userID int64, action string, limit int, window time.Duration) (bool, error) {
	key := fmt.Sprintf(KeyRateLimit, userID, action)

	count, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check rate limit: %w", err)
	}

	if count == 1 {
		s.client.Expire(ctx, key, window)
	}

	return count <= int64(limit), nil
}

// GetSetting reads a live setting value. Settings are never cached here; the
// ledger and the scheduler read them fresh per operation.
func (s *RedisService) GetSetting(ctx context.Context, name string) (string, bool, error) {
	key := fmt.Sprintf(KeySetting, name)

	value, err := s.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read setting %s: %w", name, err)
	}
	return value, true, nil
}

// SetSetting writes a live setting value. Readers pick it up on their next
// fresh read.
func (s *RedisService) SetSetting(ctx context.Context, name, value string) error {
	key := fmt.Sprintf(KeySetting, name)
	if err := s.client.Set(ctx, key, value, 0).Err(); err != nil {
		return fmt.Errorf("failed to write setting %s: %w", name, err)
	}
	return nil
}

// setClientSeedScript swaps the wallet's client seed and resets the nonce in
// the same step, so a concurrent instant play cannot observe a torn pair.
var setClientSeedScript = redis.NewScript(`
	local key = KEYS[1]
	local seed = ARGV[1]

	local data = redis.call("GET", key)
	if not data then
		return redis.error_reply("wallet not found")
	end

	local wallet = cjson.decode(data)
	wallet.client_seed = seed
	wallet.nonce = 0

	redis.call("SET", key, cjson.encode(wallet))
	return "OK"
`)

// SetClientSeed replaces the user's client seed and restarts the nonce
// sequence under it.
func (s *RedisService) SetClientSeed(ctx context.Context, userID int64, seed string) error {
	if _, err := s.GetWallet(ctx, userID); err != nil {
		return err
	}

	key := fmt.Sprintf(KeyWallet, userID)
	if err := setClientSeedScript.Run(ctx, s.client, []string{key}, seed).Err(); err != nil {
		return fmt.Errorf("client seed script failed: %w", err)
	}
	return nil
}

func (s *RedisService) DeleteWallet(ctx context.Context, userID int64) error {
	key := fmt.Sprintf(KeyWallet, userID)
	return s.client.Del(ctx, key).Err()
}

func (s *RedisService) ClearRateLimit(ctx context.Context, userID int64, action string) error {
	key := fmt.Sprintf(KeyRateLimit, userID, action)
	return s.client.Del(ctx, key).Err()
}
