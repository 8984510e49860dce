package redis

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"

	"github.com/arena-wallet/internal/domain"
)

func setupRedis(t *testing.T) *redis.Client {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping redis test in short mode")
	}
	ctx := context.Background()

	container, err := tcredis.Run(ctx, "redis:7-alpine",
		testcontainers.CustomizeRequest(testcontainers.GenericContainerRequest{
			ContainerRequest: testcontainers.ContainerRequest{
				Labels: map[string]string{"test": "arena-redis"},
			},
		}),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("Warning: failed to terminate redis container: %v", err)
		}
	})

	uri, err := container.ConnectionString(ctx)
	require.NoError(t, err)
	opts, err := redis.ParseURL(uri)
	require.NoError(t, err)

	client := redis.NewClient(opts)
	t.Cleanup(func() { client.Close() })
	require.NoError(t, client.Ping(ctx).Err())
	return client
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestLeaderboard(t *testing.T) {
	client := setupRedis(t)
	board := NewLeaderboard(client, discard())
	ctx := context.Background()

	require.NoError(t, board.AddWinnings(ctx, "alpha", decimal.RequireFromString("530")))
	require.NoError(t, board.AddWinnings(ctx, "bravo", decimal.RequireFromString("10.50")))
	require.NoError(t, board.AddWinnings(ctx, "charlie", decimal.RequireFromString("40")))
	require.NoError(t, board.AddWinnings(ctx, "alpha", decimal.RequireFromString("-500")))

	top, err := board.Top(ctx, 10)
	require.NoError(t, err)
	require.Len(t, top, 3)
	assert.Equal(t, "charlie", top[0].UserID)
	assert.Equal(t, int64(1), top[0].Rank)
	assert.Equal(t, "alpha", top[1].UserID)
	assert.True(t, top[1].Winnings.Equal(decimal.NewFromInt(30)))
	assert.True(t, top[2].Winnings.Equal(decimal.RequireFromString("10.5")))

	t.Run("zero balances drop off the board", func(t *testing.T) {
		require.NoError(t, board.AddWinnings(ctx, "bravo", decimal.RequireFromString("-10.50")))
		top, err := board.Top(ctx, 10)
		require.NoError(t, err)
		assert.Len(t, top, 2)
	})

	t.Run("rank", func(t *testing.T) {
		entry, err := board.Rank(ctx, "alpha")
		require.NoError(t, err)
		assert.Equal(t, int64(2), entry.Rank)

		_, err = board.Rank(ctx, "nobody")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("replace", func(t *testing.T) {
		require.NoError(t, board.Replace(ctx, map[string]decimal.Decimal{
			"delta": decimal.NewFromInt(1000),
		}))
		count, err := board.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)

		require.NoError(t, board.Replace(ctx, nil))
		count, err = board.Count(ctx)
		require.NoError(t, err)
		assert.Zero(t, count)
	})
}

func TestCache(t *testing.T) {
	client := setupRedis(t)
	cache := NewCache(client, discard())
	ctx := context.Background()

	type tournament struct {
		ID    string `json:"id"`
		Title string `json:"title"`
	}

	var got tournament
	found, err := cache.Get(ctx, domain.TournamentKey("t1"), &got)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, cache.Set(ctx, domain.TournamentKey("t1"), tournament{ID: "t1", Title: "Scrims"}, time.Minute))
	require.NoError(t, cache.Set(ctx, domain.KeyTournaments, []tournament{{ID: "t1"}}, time.Minute))

	found, err = cache.Get(ctx, domain.TournamentKey("t1"), &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "Scrims", got.Title)

	require.NoError(t, cache.Invalidate(ctx, domain.KeyTournaments, domain.TournamentKey("t1")))
	found, err = cache.Get(ctx, domain.TournamentKey("t1"), &got)
	require.NoError(t, err)
	assert.False(t, found)

	t.Run("undecodable entries are dropped", func(t *testing.T) {
		require.NoError(t, client.Set(ctx, cachePrefix+"broken", "{not json", time.Minute).Err())
		found, err := cache.Get(ctx, "broken", &got)
		require.NoError(t, err)
		assert.False(t, found)
		assert.Zero(t, client.Exists(ctx, cachePrefix+"broken").Val())
	})

	t.Run("expiry", func(t *testing.T) {
		require.NoError(t, cache.Set(ctx, "short", 1, time.Second))
		ttl := client.TTL(ctx, cachePrefix+"short").Val()
		assert.Positive(t, ttl)
	})

	assert.NoError(t, cache.Invalidate(ctx))
}
