package engine

import (
	"context"

	"github.com/radieske/jackpot-platform-poc/internal/jackpot/domain"
)

// Os getters devolvem os sentinelas de domain (ErrJackpotNotFound, ErrBetNotFound,
// ErrRewardNotFound, ErrEvaluationNotFound) quando o registro não existe.

type JackpotStore interface {
	Get(ctx context.Context, id string) (*domain.Jackpot, error)
	Put(ctx context.Context, j *domain.Jackpot) error
	HasContribution(ctx context.Context, jackpotID, betID string) (bool, error)
	AppendContribution(ctx context.Context, c domain.Contribution) error
}

// BetStore grava apostas uma única vez; Put de um ID existente é no-op.
type BetStore interface {
	Get(ctx context.Context, id string) (*domain.Bet, error)
	Put(ctx context.Context, b *domain.Bet) error
}

type RewardStore interface {
	GetByBet(ctx context.Context, betID string) (*domain.Reward, error)
	Put(ctx context.Context, r *domain.Reward) error
	GetEvaluation(ctx context.Context, betID string) (*domain.Evaluation, error)
	PutEvaluation(ctx context.Context, e *domain.Evaluation) error
}

// Repos agrupa os repositórios visíveis dentro de uma unidade atômica.
type Repos struct {
	Jackpots JackpotStore
	Bets     BetStore
	Rewards  RewardStore
}

// UnitOfWork serializa o acesso por jackpot. Escritas feitas em fn só ficam
// visíveis se fn retornar nil. Jackpots diferentes não disputam o mesmo lock.
// Implementações otimistas repetem um número limitado de vezes e então
// devolvem domain.ErrConflict.
type UnitOfWork interface {
	WithinJackpot(ctx context.Context, jackpotID string, fn func(ctx context.Context, r Repos) error) error
}

// Store é o backend completo usado pelos serviços.
type Store interface {
	UnitOfWork

	CreateJackpot(ctx context.Context, j *domain.Jackpot) error
	GetJackpot(ctx context.Context, id string) (*domain.Jackpot, error)
	ListJackpots(ctx context.Context) ([]domain.Jackpot, error)
	DeleteJackpot(ctx context.Context, id string) error
	Contributions(ctx context.Context, jackpotID string) ([]domain.Contribution, error)
	GetBet(ctx context.Context, id string) (*domain.Bet, error)
}
