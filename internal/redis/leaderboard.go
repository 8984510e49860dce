package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/arena-wallet/internal/config"
	"github.com/arena-wallet/internal/domain"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

const winningsKey = "leaderboard:winnings"

// NewClient connects to Redis and verifies the connection
func NewClient(cfg *config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	// Test connection
	if err := client.Ping(context.Background()).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}
	return client, nil
}

// Leaderboard keeps all-time prize winnings in a sorted set. Postgres stays
// the source of truth; the set is rebuilt from it by the sync worker.
type Leaderboard struct {
	client *redis.Client
	logger *slog.Logger
}

// NewLeaderboard creates a winnings leaderboard on client
func NewLeaderboard(client *redis.Client, logger *slog.Logger) *Leaderboard {
	return &Leaderboard{
		client: client,
		logger: logger,
	}
}

// AddWinnings moves a user's winnings by delta, which may be negative
func (l *Leaderboard) AddWinnings(ctx context.Context, userID string, delta decimal.Decimal) error {
	if delta.IsZero() {
		return nil
	}
	if err := l.client.ZIncrBy(ctx, winningsKey, delta.InexactFloat64(), userID).Err(); err != nil {
		return fmt.Errorf("incrementing winnings: %w", err)
	}
	return nil
}

// Top returns the n biggest winners, highest first
func (l *Leaderboard) Top(ctx context.Context, n int) ([]domain.WinningsEntry, error) {
	results, err := l.client.ZRevRangeByScoreWithScores(ctx, winningsKey, &redis.ZRangeBy{
		Min:   "(0",
		Max:   "+inf",
		Count: int64(n),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("getting top winners: %w", err)
	}

	entries := make([]domain.WinningsEntry, len(results))
	for i, result := range results {
		entries[i] = domain.WinningsEntry{
			Rank:     int64(i + 1),
			UserID:   result.Member.(string),
			Winnings: toMoney(result.Score),
		}
	}
	return entries, nil
}

// Rank returns a user's position and winnings
func (l *Leaderboard) Rank(ctx context.Context, userID string) (*domain.WinningsEntry, error) {
	pipe := l.client.Pipeline()
	rankCmd := pipe.ZRevRank(ctx, winningsKey, userID)
	scoreCmd := pipe.ZScore(ctx, winningsKey, userID)
	if _, err := pipe.Exec(ctx); err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("getting winnings rank: %w", err)
	}

	return &domain.WinningsEntry{
		Rank:     rankCmd.Val() + 1,
		UserID:   userID,
		Winnings: toMoney(scoreCmd.Val()),
	}, nil
}

// Replace swaps the whole leaderboard for totals in one MULTI block
func (l *Leaderboard) Replace(ctx context.Context, totals map[string]decimal.Decimal) error {
	pipe := l.client.TxPipeline()
	pipe.Del(ctx, winningsKey)
	if len(totals) > 0 {
		members := make([]redis.Z, 0, len(totals))
		for userID, total := range totals {
			members = append(members, redis.Z{Score: total.InexactFloat64(), Member: userID})
		}
		pipe.ZAdd(ctx, winningsKey, members...)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("replacing winnings: %w", err)
	}

	l.logger.Debug("winnings leaderboard replaced", "users", len(totals))
	return nil
}

// Count returns the number of users on the leaderboard
func (l *Leaderboard) Count(ctx context.Context) (int64, error) {
	count, err := l.client.ZCard(ctx, winningsKey).Result()
	if err != nil {
		return 0, fmt.Errorf("getting count: %w", err)
	}
	return count, nil
}

func toMoney(score float64) decimal.Decimal {
	return decimal.NewFromFloat(score).Round(2)
}
