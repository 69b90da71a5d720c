package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("SERVICE_NAME", "jackpot-worker")

	cfg := Load()

	assert.Equal(t, "jackpot-worker", cfg.ServiceName)
	assert.Equal(t, StorePostgres, cfg.StoreBackend)
	assert.Equal(t, 5, cfg.StoreMaxAttempts)
	assert.Equal(t, "jackpot-bets", cfg.TopicJackpotBets)
	assert.Equal(t, "jackpot-bets-dlq", cfg.TopicJackpotBetsDLQ)
	assert.Equal(t, "9097", cfg.MetricsPort)
	assert.Empty(t, cfg.HTTPPort)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("SERVICE_NAME", "jackpot-service")
	t.Setenv("STORE_BACKEND", "Redis")
	t.Setenv("STORE_MAX_ATTEMPTS", "9")
	t.Setenv("KAFKA_BROKERS", "a:9092, b:9092,")
	t.Setenv("SIM_JACKPOT_IDS", "j1,,j2")
	t.Setenv("SIM_RATE", "not-a-number")

	cfg := Load()

	assert.Equal(t, StoreRedis, cfg.StoreBackend)
	assert.Equal(t, 9, cfg.StoreMaxAttempts)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.Brokers())
	assert.Equal(t, []string{"j1", "j2"}, cfg.SimJackpotIDs)
	assert.Equal(t, 5, cfg.SimRate)
	assert.Equal(t, "8083", cfg.HTTPPort)
}

func TestLoadService_DefaultName(t *testing.T) {
	t.Setenv("SERVICE_NAME", "")
	require.NoError(t, os.Unsetenv("SERVICE_NAME")) // t.Setenv restaura no fim

	cfg := LoadService("bet-simulator")
	assert.Equal(t, "bet-simulator", cfg.ServiceName)
	assert.Equal(t, "9094", cfg.MetricsPort)

	t.Setenv("SERVICE_NAME", "jackpot-service")
	cfg = LoadService("bet-simulator")
	assert.Equal(t, "jackpot-service", cfg.ServiceName)
}
