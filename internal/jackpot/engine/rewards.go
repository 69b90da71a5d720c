package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/radieske/jackpot-platform-poc/internal/jackpot/domain"
)

// Outcome é o resultado da avaliação de uma aposta.
// Replayed indica que o resultado veio de uma avaliação anterior.
type Outcome struct {
	BetID     string
	JackpotID string
	UserID    string
	Won       bool
	Amount    decimal.Decimal
	GrantedAt time.Time
	Pool      decimal.Decimal
	Replayed  bool
	Reward    *domain.Reward
}

// RewardService avalia apostas e paga o pote ao vencedor.
// Cada aposta é sorteada uma única vez; chamadas seguintes repetem o resultado.
type RewardService struct {
	store Store
	eval  *Evaluator
	log   *zap.Logger
	Clock Clock
}

func NewRewardService(store Store, eval *Evaluator, log *zap.Logger) *RewardService {
	if eval == nil {
		eval = NewEvaluator(nil)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &RewardService{store: store, eval: eval, log: log, Clock: systemClock}
}

func (s *RewardService) Evaluate(ctx context.Context, betID string) (Outcome, error) {
	if betID == "" {
		return Outcome{}, domain.Invalid("betId is required")
	}

	bet, err := s.store.GetBet(ctx, betID)
	if err != nil {
		return Outcome{}, fmt.Errorf("load bet %s: %w", betID, err)
	}

	var out Outcome
	err = s.store.WithinJackpot(ctx, bet.JackpotID, func(ctx context.Context, r Repos) error {
		out = Outcome{BetID: bet.ID, JackpotID: bet.JackpotID, UserID: bet.UserID}

		j, err := r.Jackpots.Get(ctx, bet.JackpotID)
		if err != nil {
			return fmt.Errorf("load jackpot %s: %w", bet.JackpotID, err)
		}
		out.Pool = j.Pool()

		rw, err := r.Rewards.GetByBet(ctx, bet.ID)
		switch {
		case err == nil:
			out.Won, out.Replayed, out.Reward = true, true, rw
			out.Amount, out.GrantedAt = rw.Amount, rw.GrantedAt
			return nil
		case !errors.Is(err, domain.ErrRewardNotFound):
			return fmt.Errorf("load reward %s: %w", bet.ID, err)
		}

		prev, err := r.Rewards.GetEvaluation(ctx, bet.ID)
		switch {
		case err == nil:
			out.Won, out.Replayed = prev.Won, true
			return nil
		case !errors.Is(err, domain.ErrEvaluationNotFound):
			return fmt.Errorf("load evaluation %s: %w", bet.ID, err)
		}

		won, err := s.eval.Evaluate(j)
		if err != nil {
			return err
		}
		now := s.Clock()

		if won {
			paid := j.Reset(now)
			if err := r.Jackpots.Put(ctx, j); err != nil {
				return fmt.Errorf("reset jackpot %s: %w", j.ID, err)
			}
			rw := &domain.Reward{
				ID:        uuid.NewString(),
				BetID:     bet.ID,
				JackpotID: j.ID,
				UserID:    bet.UserID,
				Amount:    paid,
				GrantedAt: now,
			}
			if err := r.Rewards.Put(ctx, rw); err != nil {
				return fmt.Errorf("save reward %s: %w", bet.ID, err)
			}
			out.Won, out.Reward = true, rw
			out.Amount, out.GrantedAt = paid, now
			out.Pool = j.Pool()
		}

		return r.Rewards.PutEvaluation(ctx, &domain.Evaluation{
			BetID:       bet.ID,
			JackpotID:   j.ID,
			UserID:      bet.UserID,
			Won:         won,
			EvaluatedAt: now,
		})
	})
	if err != nil {
		return Outcome{}, err
	}

	if out.Won && !out.Replayed {
		s.log.Info("jackpot won",
			zap.String("jackpot_id", out.JackpotID),
			zap.String("bet_id", out.BetID),
			zap.String("user_id", out.UserID),
			zap.String("amount", out.Amount.String()))
	}
	return out, nil
}
