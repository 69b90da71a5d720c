package engine_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radieske/jackpot-platform-poc/internal/jackpot/domain"
	"github.com/radieske/jackpot-platform-poc/internal/jackpot/engine"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func jackpot(initial, current string, ct domain.ContributionType, rt domain.RewardType) *domain.Jackpot {
	j := &domain.Jackpot{ID: "jp", InitialPool: dec(initial), ContributionType: ct, RewardType: rt}
	if current != "" {
		j.CurrentPool = decimal.NewNullDecimal(dec(current))
	}
	return j
}

func TestContribution(t *testing.T) {
	tests := []struct {
		name    string
		jackpot *domain.Jackpot
		stake   string
		want    string
	}{
		{"fixed", jackpot("1000", "5000", domain.ContributionFixed, ""), "100", "10"},
		{"empty type is fixed", jackpot("1000", "", "", ""), "50", "5"},
		{"unknown type is fixed", jackpot("1000", "", "PERCENT", ""), "50", "5"},
		{"variable at initial pool", jackpot("1000", "1000", domain.ContributionVariable, ""), "100", "15"},
		{"variable with absent current pool", jackpot("1000", "", domain.ContributionVariable, ""), "100", "15"},
		// ratio 2.00 -> 0.20 - 0.10
		{"variable doubled pool", jackpot("1000", "2000", domain.ContributionVariable, ""), "100", "10"},
		// ratio 1.23 -> 0.20 - 0.0615
		{"variable rounds ratio", jackpot("1000", "1234.9", domain.ContributionVariable, ""), "100", "13.85"},
		// ratio 4.00 -> 0 -> piso
		{"variable floor", jackpot("1000", "4000", domain.ContributionVariable, ""), "100", "5"},
		{"variable far above floor", jackpot("1000", "9000", domain.ContributionVariable, ""), "100", "5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := engine.Contribution(tt.jackpot, dec(tt.stake))
			require.NoError(t, err)
			assert.True(t, got.Equal(dec(tt.want)), "got %s want %s", got, tt.want)
		})
	}
}

func TestContribution_IsDeterministic(t *testing.T) {
	j := jackpot("1000", "1500", domain.ContributionVariable, "")
	a, err := engine.Contribution(j, dec("33.33"))
	require.NoError(t, err)
	b, err := engine.Contribution(j, dec("33.33"))
	require.NoError(t, err)
	assert.True(t, a.Equal(b))
	assert.True(t, j.Pool().Equal(dec("1500")), "calculator must not mutate the jackpot")
}

func TestContribution_RejectsInvalidInput(t *testing.T) {
	_, err := engine.Contribution(jackpot("1000", "", "", ""), decimal.Zero)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = engine.Contribution(jackpot("1000", "", "", ""), dec("-1"))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = engine.Contribution(jackpot("0", "", domain.ContributionVariable, ""), dec("10"))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = engine.Contribution(nil, dec("10"))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
