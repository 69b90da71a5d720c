package engine_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radieske/jackpot-platform-poc/internal/jackpot/domain"
	"github.com/radieske/jackpot-platform-poc/internal/jackpot/engine"
	"github.com/radieske/jackpot-platform-poc/internal/jackpot/store/memory"
)

func setupReward(t *testing.T, rt domain.RewardType, src engine.RandomSource) (*memory.Store, *domain.Jackpot, *engine.RewardService) {
	t.Helper()
	s := memory.New()
	j := seedJackpot(t, s, "1000", domain.ContributionFixed, rt)

	p := engine.NewProcessor(s, nil)
	_, err := p.Process(context.Background(), bet("b1", j.ID, "100"))
	require.NoError(t, err)
	_, err = p.Process(context.Background(), bet("b2", j.ID, "50"))
	require.NoError(t, err)

	svc := engine.NewRewardService(s, engine.NewEvaluator(src), nil)
	svc.Clock = clock
	return s, j, svc
}

func TestRewardService_WinPaysAndResets(t *testing.T) {
	ctx := context.Background()
	s, j, svc := setupReward(t, domain.RewardFixed, engine.FixedSource(0.001))

	out, err := svc.Evaluate(ctx, "b1")
	require.NoError(t, err)
	assert.True(t, out.Won)
	assert.False(t, out.Replayed)
	assert.True(t, out.Amount.Equal(dec("1015")))
	assert.Equal(t, fixedNow, out.GrantedAt)
	require.NotNil(t, out.Reward)
	assert.Equal(t, "b1", out.Reward.BetID)
	assert.Equal(t, "user-1", out.Reward.UserID)
	assert.True(t, out.Pool.Equal(dec("1000")))

	got, err := s.GetJackpot(ctx, j.ID)
	require.NoError(t, err)
	assert.True(t, got.Pool().Equal(j.InitialPool))
}

func TestRewardService_LossLeavesPool(t *testing.T) {
	ctx := context.Background()
	s, j, svc := setupReward(t, domain.RewardFixed, engine.FixedSource(0.5))

	out, err := svc.Evaluate(ctx, "b1")
	require.NoError(t, err)
	assert.False(t, out.Won)
	assert.Nil(t, out.Reward)
	assert.True(t, out.Amount.IsZero())

	got, err := s.GetJackpot(ctx, j.ID)
	require.NoError(t, err)
	assert.True(t, got.Pool().Equal(dec("1015")))
}

func TestRewardService_RepeatedCallsDrawOnce(t *testing.T) {
	ctx := context.Background()
	// primeira chamada perde; se houvesse novo sorteio a segunda ganharia
	src := engine.NewSeqSource(0.5, 0.0)
	_, _, svc := setupReward(t, domain.RewardFixed, src)

	first, err := svc.Evaluate(ctx, "b1")
	require.NoError(t, err)
	assert.False(t, first.Won)

	for i := 0; i < 3; i++ {
		again, err := svc.Evaluate(ctx, "b1")
		require.NoError(t, err)
		assert.False(t, again.Won)
		assert.True(t, again.Replayed)
	}
	assert.Equal(t, 1, src.Calls())
}

func TestRewardService_WinIsReplayed(t *testing.T) {
	ctx := context.Background()
	src := engine.NewSeqSource(0.0, 0.99)
	s, j, svc := setupReward(t, domain.RewardFixed, src)

	first, err := svc.Evaluate(ctx, "b1")
	require.NoError(t, err)
	require.True(t, first.Won)

	again, err := svc.Evaluate(ctx, "b1")
	require.NoError(t, err)
	assert.True(t, again.Won)
	assert.True(t, again.Replayed)
	assert.Equal(t, first.Reward.ID, again.Reward.ID)
	assert.True(t, again.Amount.Equal(first.Amount))
	assert.Equal(t, 1, src.Calls())

	// a outra aposta sorteia normalmente contra o pote já zerado
	other, err := svc.Evaluate(ctx, "b2")
	require.NoError(t, err)
	assert.False(t, other.Won)

	got, err := s.GetJackpot(ctx, j.ID)
	require.NoError(t, err)
	assert.True(t, got.Pool().Equal(dec("1000")))
}

func TestRewardService_ForcedWinAtLimit(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	j := seedJackpot(t, s, "10", domain.ContributionFixed, domain.RewardVariable)

	// 10 + 900 × 0.10 = 100 = 10 × inicial
	p := engine.NewProcessor(s, nil)
	_, err := p.Process(ctx, bet("big", j.ID, "900"))
	require.NoError(t, err)

	svc := engine.NewRewardService(s, engine.NewEvaluator(engine.FixedSource(0.999)), nil)
	out, err := svc.Evaluate(ctx, "big")
	require.NoError(t, err)
	assert.True(t, out.Won)
	assert.True(t, out.Amount.Equal(dec("100")))
}

func TestRewardService_Errors(t *testing.T) {
	ctx := context.Background()
	s, j, svc := setupReward(t, domain.RewardFixed, engine.FixedSource(0.5))

	_, err := svc.Evaluate(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrBetNotFound)

	_, err = svc.Evaluate(ctx, "")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	require.NoError(t, s.DeleteJackpot(ctx, j.ID))
	_, err = svc.Evaluate(ctx, "b1")
	assert.ErrorIs(t, err, domain.ErrJackpotNotFound)
}
