// Package testutil starts a disposable Postgres for integration tests and
// seeds it with profiles and tournaments.
package testutil

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/arena-wallet/internal/domain"
	"github.com/arena-wallet/internal/postgres"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
)

// TestDatabase is a migrated Postgres container with a repository on top
type TestDatabase struct {
	Container *tcpostgres.PostgresContainer
	Repo      *postgres.Repository
	Pool      *pgxpool.Pool
	URL       string
}

// Logger discards output so test runs stay readable
func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// SetupTestDatabase starts a Postgres container and applies the migrations.
// Skipped with -short.
func SetupTestDatabase(t *testing.T) *TestDatabase {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping database test in short mode")
	}
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("arena_test"),
		tcpostgres.WithUsername("test_user"),
		tcpostgres.WithPassword("test_password"),
		tcpostgres.BasicWaitStrategies(),
		testcontainers.CustomizeRequest(testcontainers.GenericContainerRequest{
			ContainerRequest: testcontainers.ContainerRequest{
				Labels: map[string]string{
					"test":      "arena-repository",
					"test-name": t.Name(),
				},
			},
		}),
	)
	require.NoError(t, err)

	td := &TestDatabase{Container: container}
	t.Cleanup(func() { td.cleanup(t) })

	td.URL, err = container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	require.NoError(t, postgres.RunMigrations(td.URL))

	td.Repo, err = postgres.NewRepositoryWithURL(ctx, td.URL, Logger())
	require.NoError(t, err)

	td.Pool, err = pgxpool.New(ctx, td.URL)
	require.NoError(t, err)

	return td
}

func (td *TestDatabase) cleanup(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if td.Pool != nil {
		td.Pool.Close()
	}
	if td.Repo != nil {
		td.Repo.Close()
	}
	if td.Container != nil {
		if err := td.Container.Terminate(ctx); err != nil {
			t.Logf("Warning: failed to terminate test container: %v", err)
		}
	}
}

// CreateUser inserts a player profile holding balance
func (td *TestDatabase) CreateUser(t *testing.T, username, balance string) string {
	return td.createProfile(t, username, balance, domain.RoleUser)
}

// CreateAdmin inserts an admin profile with an empty wallet
func (td *TestDatabase) CreateAdmin(t *testing.T, username string) string {
	return td.createProfile(t, username, "0", domain.RoleAdmin)
}

func (td *TestDatabase) createProfile(t *testing.T, username, balance string, role domain.Role) string {
	t.Helper()
	ctx := context.Background()

	id := uuid.NewString()
	_, err := td.Repo.UpsertProfile(ctx, id, domain.UpsertProfileRequest{
		Username: username,
		Email:    username + "@example.com",
	})
	require.NoError(t, err)

	_, err = td.Pool.Exec(ctx, `UPDATE profiles SET balance = $2, role = $3 WHERE id = $1`,
		id, decimal.RequireFromString(balance), string(role))
	require.NoError(t, err)
	return id
}

// Balance reads a user's current balance
func (td *TestDatabase) Balance(t *testing.T, userID string) decimal.Decimal {
	t.Helper()
	p, err := td.Repo.GetProfile(context.Background(), userID)
	require.NoError(t, err)
	return p.Balance
}

// TournamentOption customises a seeded tournament
type TournamentOption func(*domain.Tournament)

// WithPrizePool sets the prize pool
func WithPrizePool(amount string) TournamentOption {
	return func(t *domain.Tournament) { t.PrizePool = decimal.RequireFromString(amount) }
}

// WithPerKill sets the per-kill reward
func WithPerKill(amount string) TournamentOption {
	return func(t *domain.Tournament) {
		t.PerKillReward = decimal.NewNullDecimal(decimal.RequireFromString(amount))
	}
}

// WithRule adds a rank prize
func WithRule(rank int, amount string) TournamentOption {
	return func(t *domain.Tournament) {
		t.PrizeRules = append(t.PrizeRules, domain.PrizeRule{Rank: rank, Amount: decimal.RequireFromString(amount)})
	}
}

// CreateTournament inserts an upcoming tournament
func (td *TestDatabase) CreateTournament(t *testing.T, entryFee string, maxPlayers int, opts ...TournamentOption) *domain.Tournament {
	t.Helper()
	tournament := &domain.Tournament{
		Title:      "Friday Night Scrims",
		Game:       "BGMI",
		EntryFee:   decimal.RequireFromString(entryFee),
		StartDate:  time.Now().Add(24 * time.Hour).UTC(),
		MaxPlayers: maxPlayers,
		Status:     domain.StatusUpcoming,
	}
	for _, opt := range opts {
		opt(tournament)
	}
	require.NoError(t, td.Repo.CreateTournament(context.Background(), tournament))
	return tournament
}

// SetStatus forces a tournament's status
func (td *TestDatabase) SetStatus(t *testing.T, tournamentID string, status domain.TournamentStatus) {
	t.Helper()
	require.NoError(t, td.Repo.SetTournamentStatus(context.Background(), tournamentID, status, nil))
}

// CountTransactions counts a user's transactions of typ in status
func (td *TestDatabase) CountTransactions(t *testing.T, userID string, typ domain.TransactionType, status domain.TransactionStatus) int {
	t.Helper()
	var n int
	err := td.Pool.QueryRow(context.Background(), `
		SELECT COUNT(*) FROM transactions WHERE user_id = $1 AND type = $2 AND status = $3`,
		userID, string(typ), string(status)).Scan(&n)
	require.NoError(t, err)
	return n
}
