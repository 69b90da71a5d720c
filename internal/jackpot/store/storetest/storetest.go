// Package storetest contém a suíte comum que todo backend de engine.Store deve passar.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radieske/jackpot-platform-poc/internal/jackpot/domain"
	"github.com/radieske/jackpot-platform-poc/internal/jackpot/engine"
	"github.com/radieske/jackpot-platform-poc/pkg/contracts/events"
)

var baseTime = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

// NewJackpot monta um jackpot com ID aleatório e pote igual ao inicial.
func NewJackpot(initial string, ct domain.ContributionType, rt domain.RewardType) *domain.Jackpot {
	pool := decimal.RequireFromString(initial)
	return &domain.Jackpot{
		ID:               uuid.NewString(),
		Name:             "test-" + initial,
		InitialPool:      pool,
		CurrentPool:      decimal.NewNullDecimal(pool),
		ContributionType: ct,
		RewardType:       rt,
		CreatedAt:        baseTime,
		UpdatedAt:        baseTime,
	}
}

// Run executa a suíte contra um Store novo por subteste.
func Run(t *testing.T, newStore func(t *testing.T) engine.Store) {
	t.Run("CreateAndGet", func(t *testing.T) { testCreateAndGet(t, newStore(t)) })
	t.Run("CommitMakesWritesVisible", func(t *testing.T) { testCommit(t, newStore(t)) })
	t.Run("ErrorDiscardsWrites", func(t *testing.T) { testRollback(t, newStore(t)) })
	t.Run("BetPutIsInsertIfAbsent", func(t *testing.T) { testBetInsertIfAbsent(t, newStore(t)) })
	t.Run("RewardsAndEvaluations", func(t *testing.T) { testRewards(t, newStore(t)) })
	t.Run("MissingJackpot", func(t *testing.T) { testMissingJackpot(t, newStore(t)) })
	t.Run("Delete", func(t *testing.T) { testDelete(t, newStore(t)) })
	t.Run("ConcurrentContributions", func(t *testing.T) { testConcurrentContributions(t, newStore(t)) })
	t.Run("ConcurrentEvaluationsPayOnce", func(t *testing.T) { testConcurrentEvaluations(t, newStore(t)) })
}

func testCreateAndGet(t *testing.T, s engine.Store) {
	ctx := context.Background()
	j := NewJackpot("1000", domain.ContributionVariable, domain.RewardFixed)
	require.NoError(t, s.CreateJackpot(ctx, j))

	got, err := s.GetJackpot(ctx, j.ID)
	require.NoError(t, err)
	assert.Equal(t, j.ID, got.ID)
	assert.Equal(t, j.Name, got.Name)
	assert.True(t, got.InitialPool.Equal(j.InitialPool))
	assert.True(t, got.Pool().Equal(j.InitialPool))
	assert.Equal(t, domain.ContributionVariable, got.ContributionType)
	assert.Equal(t, domain.RewardFixed, got.RewardType)
	assert.True(t, got.CreatedAt.Equal(baseTime))

	err = s.CreateJackpot(ctx, j)
	assert.ErrorIs(t, err, domain.ErrConflict)

	_, err = s.GetJackpot(ctx, uuid.NewString())
	assert.ErrorIs(t, err, domain.ErrJackpotNotFound)

	list, err := s.ListJackpots(ctx)
	require.NoError(t, err)
	ids := make([]string, 0, len(list))
	for _, l := range list {
		ids = append(ids, l.ID)
	}
	assert.Contains(t, ids, j.ID)
}

func contribute(t *testing.T, s engine.Store, jackpotID, betID, amount string, at time.Time) {
	t.Helper()
	err := s.WithinJackpot(context.Background(), jackpotID, func(ctx context.Context, r engine.Repos) error {
		j, err := r.Jackpots.Get(ctx, jackpotID)
		if err != nil {
			return err
		}
		c := domain.Contribution{JackpotID: jackpotID, BetID: betID, Amount: decimal.RequireFromString(amount), CreatedAt: at}
		if err := r.Bets.Put(ctx, &domain.Bet{ID: betID, UserID: "u1", JackpotID: jackpotID, Amount: decimal.NewFromInt(10), CreatedAt: at}); err != nil {
			return err
		}
		if err := r.Jackpots.AppendContribution(ctx, c); err != nil {
			return err
		}
		j.Contribute(c, at)
		return r.Jackpots.Put(ctx, j)
	})
	require.NoError(t, err)
}

func testCommit(t *testing.T, s engine.Store) {
	ctx := context.Background()
	j := NewJackpot("100", domain.ContributionFixed, domain.RewardFixed)
	require.NoError(t, s.CreateJackpot(ctx, j))

	contribute(t, s, j.ID, "bet-b", "1.5", baseTime.Add(time.Second))
	contribute(t, s, j.ID, "bet-a", "2", baseTime.Add(2*time.Second))

	got, err := s.GetJackpot(ctx, j.ID)
	require.NoError(t, err)
	assert.True(t, got.Pool().Equal(decimal.RequireFromString("103.5")), "pool=%s", got.Pool())

	cs, err := s.Contributions(ctx, j.ID)
	require.NoError(t, err)
	require.Len(t, cs, 2)
	// ordem de aplicação, não alfabética
	assert.Equal(t, "bet-b", cs[0].BetID)
	assert.Equal(t, "bet-a", cs[1].BetID)
	assert.True(t, cs[0].Amount.Equal(decimal.RequireFromString("1.5")))

	bet, err := s.GetBet(ctx, "bet-a")
	require.NoError(t, err)
	assert.Equal(t, j.ID, bet.JackpotID)

	err = s.WithinJackpot(ctx, j.ID, func(ctx context.Context, r engine.Repos) error {
		ok, err := r.Jackpots.HasContribution(ctx, j.ID, "bet-a")
		require.NoError(t, err)
		assert.True(t, ok)
		ok, err = r.Jackpots.HasContribution(ctx, j.ID, "bet-z")
		require.NoError(t, err)
		assert.False(t, ok)
		return nil
	})
	require.NoError(t, err)
}

func testRollback(t *testing.T, s engine.Store) {
	ctx := context.Background()
	j := NewJackpot("100", domain.ContributionFixed, domain.RewardFixed)
	require.NoError(t, s.CreateJackpot(ctx, j))

	boom := errors.New("boom")
	err := s.WithinJackpot(ctx, j.ID, func(ctx context.Context, r engine.Repos) error {
		jp, err := r.Jackpots.Get(ctx, j.ID)
		require.NoError(t, err)
		c := domain.Contribution{JackpotID: j.ID, BetID: "lost", Amount: decimal.NewFromInt(5), CreatedAt: baseTime}
		require.NoError(t, r.Bets.Put(ctx, &domain.Bet{ID: "lost", UserID: "u", JackpotID: j.ID, Amount: decimal.NewFromInt(50), CreatedAt: baseTime}))
		require.NoError(t, r.Jackpots.AppendContribution(ctx, c))
		jp.Contribute(c, baseTime)
		require.NoError(t, r.Jackpots.Put(ctx, jp))
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := s.GetJackpot(ctx, j.ID)
	require.NoError(t, err)
	assert.True(t, got.Pool().Equal(decimal.NewFromInt(100)))

	cs, err := s.Contributions(ctx, j.ID)
	require.NoError(t, err)
	assert.Empty(t, cs)

	_, err = s.GetBet(ctx, "lost")
	assert.ErrorIs(t, err, domain.ErrBetNotFound)
}

func testBetInsertIfAbsent(t *testing.T, s engine.Store) {
	ctx := context.Background()
	j := NewJackpot("100", domain.ContributionFixed, domain.RewardFixed)
	require.NoError(t, s.CreateJackpot(ctx, j))

	put := func(amount int64) {
		err := s.WithinJackpot(ctx, j.ID, func(ctx context.Context, r engine.Repos) error {
			return r.Bets.Put(ctx, &domain.Bet{ID: "bet-1", UserID: "u", JackpotID: j.ID, Amount: decimal.NewFromInt(amount), CreatedAt: baseTime})
		})
		require.NoError(t, err)
	}
	put(10)
	put(99)

	b, err := s.GetBet(ctx, "bet-1")
	require.NoError(t, err)
	assert.True(t, b.Amount.Equal(decimal.NewFromInt(10)))
}

func testRewards(t *testing.T, s engine.Store) {
	ctx := context.Background()
	j := NewJackpot("100", domain.ContributionFixed, domain.RewardFixed)
	require.NoError(t, s.CreateJackpot(ctx, j))

	err := s.WithinJackpot(ctx, j.ID, func(ctx context.Context, r engine.Repos) error {
		_, err := r.Rewards.GetByBet(ctx, "bet-1")
		assert.ErrorIs(t, err, domain.ErrRewardNotFound)
		_, err = r.Rewards.GetEvaluation(ctx, "bet-1")
		assert.ErrorIs(t, err, domain.ErrEvaluationNotFound)

		rw := &domain.Reward{ID: uuid.NewString(), BetID: "bet-1", JackpotID: j.ID, UserID: "u", Amount: decimal.RequireFromString("123.45"), GrantedAt: baseTime}
		if err := r.Rewards.Put(ctx, rw); err != nil {
			return err
		}
		return r.Rewards.PutEvaluation(ctx, &domain.Evaluation{BetID: "bet-1", JackpotID: j.ID, UserID: "u", Won: true, EvaluatedAt: baseTime})
	})
	require.NoError(t, err)

	err = s.WithinJackpot(ctx, j.ID, func(ctx context.Context, r engine.Repos) error {
		rw, err := r.Rewards.GetByBet(ctx, "bet-1")
		require.NoError(t, err)
		assert.True(t, rw.Amount.Equal(decimal.RequireFromString("123.45")))
		assert.Equal(t, "u", rw.UserID)

		ev, err := r.Rewards.GetEvaluation(ctx, "bet-1")
		require.NoError(t, err)
		assert.True(t, ev.Won)

		// segundo prêmio para a mesma aposta é rejeitado
		err = r.Rewards.Put(ctx, &domain.Reward{ID: uuid.NewString(), BetID: "bet-1", JackpotID: j.ID, UserID: "u", Amount: decimal.NewFromInt(1), GrantedAt: baseTime})
		assert.ErrorIs(t, err, domain.ErrConflict)
		return nil
	})
	require.NoError(t, err)
}

func testMissingJackpot(t *testing.T, s engine.Store) {
	id := uuid.NewString()
	err := s.WithinJackpot(context.Background(), id, func(ctx context.Context, r engine.Repos) error {
		_, err := r.Jackpots.Get(ctx, id)
		return err
	})
	assert.ErrorIs(t, err, domain.ErrJackpotNotFound)
}

func testDelete(t *testing.T, s engine.Store) {
	ctx := context.Background()
	j := NewJackpot("100", domain.ContributionFixed, domain.RewardFixed)
	require.NoError(t, s.CreateJackpot(ctx, j))
	contribute(t, s, j.ID, "bet-del", "1", baseTime)

	require.NoError(t, s.DeleteJackpot(ctx, j.ID))

	_, err := s.GetJackpot(ctx, j.ID)
	assert.ErrorIs(t, err, domain.ErrJackpotNotFound)
	assert.ErrorIs(t, s.DeleteJackpot(ctx, j.ID), domain.ErrJackpotNotFound)
}

// retryConflict repete como o worker faria numa reentrega.
func retryConflict(fn func() error) error {
	for {
		err := fn()
		if !errors.Is(err, domain.ErrConflict) {
			return err
		}
	}
}

func testConcurrentContributions(t *testing.T, s engine.Store) {
	ctx := context.Background()
	j := NewJackpot("1000", domain.ContributionFixed, domain.RewardFixed)
	require.NoError(t, s.CreateJackpot(ctx, j))
	other := NewJackpot("500", domain.ContributionFixed, domain.RewardFixed)
	require.NoError(t, s.CreateJackpot(ctx, other))

	p := engine.NewProcessor(s, nil)

	const bets = 30
	var wg sync.WaitGroup
	applied := make(chan bool, bets*3)
	errs := make(chan error, bets*3)

	for i := 0; i < bets; i++ {
		ev := events.BetPlaced{
			BetRequestID: fmt.Sprintf("bet-%d", i),
			UserID:       "u",
			JackpotID:    j.ID,
			BetAmount:    decimal.NewFromInt(10),
			CreatedAt:    baseTime,
		}
		// cada aposta chega duas vezes
		for k := 0; k < 2; k++ {
			wg.Add(1)
			go func(ev events.BetPlaced) {
				defer wg.Done()
				err := retryConflict(func() error {
					res, err := p.Process(ctx, ev)
					if err == nil {
						applied <- res.Applied
					}
					return err
				})
				if err != nil {
					errs <- err
				}
			}(ev)
		}
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := retryConflict(func() error {
				_, err := p.Process(ctx, events.BetPlaced{
					BetRequestID: fmt.Sprintf("other-%d", i),
					UserID:       "u",
					JackpotID:    other.ID,
					BetAmount:    decimal.NewFromInt(10),
				})
				return err
			})
			if err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(applied)
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	n := 0
	for a := range applied {
		if a {
			n++
		}
	}
	assert.Equal(t, bets, n, "each bet applied exactly once")

	got, err := s.GetJackpot(ctx, j.ID)
	require.NoError(t, err)
	// 1000 + 30 × (10 × 0.10)
	assert.True(t, got.Pool().Equal(decimal.NewFromInt(1030)), "pool=%s", got.Pool())

	cs, err := s.Contributions(ctx, j.ID)
	require.NoError(t, err)
	assert.Len(t, cs, bets)

	o, err := s.GetJackpot(ctx, other.ID)
	require.NoError(t, err)
	assert.True(t, o.Pool().Equal(decimal.NewFromInt(530)), "pool=%s", o.Pool())
}

func testConcurrentEvaluations(t *testing.T, s engine.Store) {
	ctx := context.Background()
	j := NewJackpot("100", domain.ContributionFixed, domain.RewardFixed)
	require.NoError(t, s.CreateJackpot(ctx, j))

	p := engine.NewProcessor(s, nil)
	const bets = 10
	for i := 0; i < bets; i++ {
		_, err := p.Process(ctx, events.BetPlaced{
			BetRequestID: fmt.Sprintf("bet-%d", i),
			UserID:       fmt.Sprintf("user-%d", i),
			JackpotID:    j.ID,
			BetAmount:    decimal.NewFromInt(100),
		})
		require.NoError(t, err)
	}

	// todas ganhariam; a primeira a pegar o lock leva o pote de 200
	svc := engine.NewRewardService(s, engine.NewEvaluator(engine.FixedSource(0)), nil)

	var wg sync.WaitGroup
	outs := make(chan engine.Outcome, bets*2)
	errs := make(chan error, bets*2)
	for i := 0; i < bets; i++ {
		for k := 0; k < 2; k++ {
			wg.Add(1)
			go func(id string) {
				defer wg.Done()
				err := retryConflict(func() error {
					out, err := svc.Evaluate(ctx, id)
					if err == nil {
						outs <- out
					}
					return err
				})
				if err != nil {
					errs <- err
				}
			}(fmt.Sprintf("bet-%d", i))
		}
	}
	wg.Wait()
	close(outs)
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	total := decimal.Zero
	fresh := 0
	for o := range outs {
		require.True(t, o.Won)
		if !o.Replayed {
			fresh++
			total = total.Add(o.Amount)
		}
	}
	assert.Equal(t, bets, fresh, "one draw per bet")
	// a primeira vitória paga 200, as seguintes pagam só o inicial
	assert.True(t, total.Equal(decimal.NewFromInt(200+100*(bets-1))), "total=%s", total)

	got, err := s.GetJackpot(ctx, j.ID)
	require.NoError(t, err)
	assert.True(t, got.Pool().Equal(decimal.NewFromInt(100)))
}
