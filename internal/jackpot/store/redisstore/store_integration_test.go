package redisstore

import (
	"context"
	"flag"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/radieske/jackpot-platform-poc/internal/jackpot/domain"
	"github.com/radieske/jackpot-platform-poc/internal/jackpot/engine"
	"github.com/radieske/jackpot-platform-poc/internal/jackpot/store/storetest"
	"github.com/radieske/jackpot-platform-poc/internal/shared/cache"
)

var testRDB *redis.Client

// TestMain sobe um Redis compartilhado para o pacote
func TestMain(m *testing.M) {
	flag.Parse()

	var terminate func()
	if !testing.Short() {
		ctx := context.Background()
		var addr string
		addr, terminate = setupContainer(ctx)
		if addr != "" {
			var err error
			testRDB, err = cache.ConnectRedis(ctx, addr)
			if err != nil {
				fmt.Printf("WARNING: Failed to connect to test redis: %v\n", err)
			}
		}
	}

	code := m.Run()

	if testRDB != nil {
		testRDB.Close()
	}
	if terminate != nil {
		terminate()
	}
	os.Exit(code)
}

func setupContainer(ctx context.Context) (string, func()) {
	defer func() {
		if r := recover(); r != nil {
			fmt.Printf("Recovered from panic in setupContainer: %v\n", r)
		}
	}()

	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		fmt.Printf("WARNING: Failed to start redis container: %v\n", err)
		return "", func() {}
	}

	addr, err := c.Endpoint(ctx, "")
	if err != nil {
		fmt.Printf("WARNING: Failed to get redis endpoint: %v\n", err)
		_ = c.Terminate(ctx)
		return "", func() {}
	}

	return addr, func() {
		if err := c.Terminate(ctx); err != nil {
			fmt.Printf("Failed to terminate container: %v\n", err)
		}
	}
}

func requireRedis(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	if testRDB == nil {
		t.Skip("Skipping integration test: redis not available")
	}
}

func TestStore_Integration(t *testing.T) {
	requireRedis(t)

	storetest.Run(t, func(t *testing.T) engine.Store {
		require.NoError(t, testRDB.FlushDB(context.Background()).Err())
		return New(testRDB)
	})
}

func TestStore_WatchConflictIsRetried(t *testing.T) {
	requireRedis(t)
	ctx := context.Background()
	require.NoError(t, testRDB.FlushDB(ctx).Err())

	s := New(testRDB)
	j := storetest.NewJackpot("100", domain.ContributionFixed, domain.RewardFixed)
	require.NoError(t, s.CreateJackpot(ctx, j))

	calls := 0
	err := s.WithinJackpot(ctx, j.ID, func(ctx context.Context, r engine.Repos) error {
		calls++
		got, err := r.Jackpots.Get(ctx, j.ID)
		if err != nil {
			return err
		}
		if calls == 1 {
			// escrita externa entre o WATCH e o EXEC
			require.NoError(t, testRDB.Set(ctx, jackpotKey(j.ID), mustJSON(t, got), 0).Err())
		}
		got.Name = "renamed"
		return r.Jackpots.Put(ctx, got)
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)

	got, err := s.GetJackpot(ctx, j.ID)
	require.NoError(t, err)
	assert.Equal(t, "renamed", got.Name)
}

func TestStore_ConflictAfterMaxAttempts(t *testing.T) {
	requireRedis(t)
	ctx := context.Background()
	require.NoError(t, testRDB.FlushDB(ctx).Err())

	s := New(testRDB)
	s.MaxAttempts = 2
	j := storetest.NewJackpot("100", domain.ContributionFixed, domain.RewardFixed)
	require.NoError(t, s.CreateJackpot(ctx, j))

	err := s.WithinJackpot(ctx, j.ID, func(ctx context.Context, r engine.Repos) error {
		got, err := r.Jackpots.Get(ctx, j.ID)
		if err != nil {
			return err
		}
		require.NoError(t, testRDB.Set(ctx, jackpotKey(j.ID), mustJSON(t, got), 0).Err())
		return r.Jackpots.Put(ctx, got)
	})
	assert.ErrorIs(t, err, domain.ErrConflict)
}
