package engine_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radieske/jackpot-platform-poc/internal/jackpot/domain"
	"github.com/radieske/jackpot-platform-poc/internal/jackpot/engine"
)

func TestWinChance(t *testing.T) {
	tests := []struct {
		name       string
		jackpot    *domain.Jackpot
		wantChance string
		wantForced bool
	}{
		{"fixed", jackpot("1000", "9000", "", domain.RewardFixed), "0.01", false},
		{"unknown is fixed", jackpot("1000", "", "", "ALWAYS"), "0.01", false},
		{"variable at initial", jackpot("1000", "", "", domain.RewardVariable), "0.006", false},
		{"variable ratio 5", jackpot("1000", "5000", "", domain.RewardVariable), "0.01", false},
		{"variable just below limit", jackpot("1000", "9999.99", "", domain.RewardVariable), "0.015", false},
		{"variable at limit", jackpot("1000", "10000", "", domain.RewardVariable), "1", true},
		{"variable above limit", jackpot("1000", "25000", "", domain.RewardVariable), "1", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chance, forced, err := engine.WinChance(tt.jackpot)
			require.NoError(t, err)
			assert.True(t, chance.Equal(dec(tt.wantChance)), "got %s want %s", chance, tt.wantChance)
			assert.Equal(t, tt.wantForced, forced)
		})
	}
}

func TestEvaluator_FixedThreshold(t *testing.T) {
	j := jackpot("1000", "", "", domain.RewardFixed)

	won, err := engine.NewEvaluator(engine.FixedSource(0.0099)).Evaluate(j)
	require.NoError(t, err)
	assert.True(t, won)

	won, err = engine.NewEvaluator(engine.FixedSource(0.01)).Evaluate(j)
	require.NoError(t, err)
	assert.False(t, won)
}

func TestEvaluator_VariableThreshold(t *testing.T) {
	j := jackpot("1000", "1000", "", domain.RewardVariable)

	won, err := engine.NewEvaluator(engine.FixedSource(0.0059)).Evaluate(j)
	require.NoError(t, err)
	assert.True(t, won)

	won, err = engine.NewEvaluator(engine.FixedSource(0.006)).Evaluate(j)
	require.NoError(t, err)
	assert.False(t, won)
}

func TestEvaluator_ForcedWinStillConsumesOneDraw(t *testing.T) {
	src := engine.NewSeqSource(0.99)
	j := jackpot("1000", "10000", "", domain.RewardVariable)

	won, err := engine.NewEvaluator(src).Evaluate(j)
	require.NoError(t, err)
	assert.True(t, won)
	assert.Equal(t, 1, src.Calls())
}

func TestEvaluator_OneDrawPerEvaluation(t *testing.T) {
	src := engine.NewSeqSource(0.5, 0.001, 0.5)
	ev := engine.NewEvaluator(src)
	j := jackpot("1000", "", "", domain.RewardFixed)

	var got []bool
	for i := 0; i < 3; i++ {
		won, err := ev.Evaluate(j)
		require.NoError(t, err)
		got = append(got, won)
	}
	assert.Equal(t, []bool{false, true, false}, got)
	assert.Equal(t, 3, src.Calls())
}

func TestEvaluator_InvalidPoolDoesNotDraw(t *testing.T) {
	src := engine.NewSeqSource(0)
	_, err := engine.NewEvaluator(src).Evaluate(jackpot("0", "", "", domain.RewardVariable))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Equal(t, 0, src.Calls())
}

func TestSeededSource_Reproducible(t *testing.T) {
	a, b := engine.NewSeededSource(42), engine.NewSeededSource(42)
	for i := 0; i < 10; i++ {
		x, y := a.Float64(), b.Float64()
		assert.Equal(t, x, y)
		assert.GreaterOrEqual(t, x, 0.0)
		assert.Less(t, x, 1.0)
	}
}
