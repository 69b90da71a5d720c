package engine

import (
	"github.com/shopspring/decimal"

	"github.com/radieske/jackpot-platform-poc/internal/jackpot/domain"
)

var (
	fixedWinChance      = decimal.RequireFromString("0.01")
	variableWinBase     = decimal.RequireFromString("0.005")
	variableWinStep     = decimal.RequireFromString("0.001")
	maxWinChance        = decimal.NewFromInt(1)
	poolLimitMultiplier = decimal.NewFromInt(10)
)

// WinChance devolve a probabilidade de prêmio para o estado atual do pote.
// forced indica que o limite (10x o inicial) foi atingido e o prêmio é garantido.
func WinChance(j *domain.Jackpot) (chance decimal.Decimal, forced bool, err error) {
	if err := validatePool(j); err != nil {
		return decimal.Zero, false, err
	}
	if j.RewardType != domain.RewardVariable {
		return fixedWinChance, false, nil
	}

	if j.Pool().GreaterThanOrEqual(j.InitialPool.Mul(poolLimitMultiplier)) {
		return maxWinChance, true, nil
	}

	chance = variableWinBase.Add(j.PoolRatio().Mul(variableWinStep))
	if chance.GreaterThan(maxWinChance) {
		chance = maxWinChance
	}
	return chance, false, nil
}

// Evaluator decide se uma aposta ganha. Consome exatamente um sorteio por chamada,
// mesmo quando o prêmio é forçado, para manter a sequência reproduzível.
type Evaluator struct {
	src RandomSource
}

func NewEvaluator(src RandomSource) *Evaluator {
	if src == nil {
		src = NewRandomSource()
	}
	return &Evaluator{src: src}
}

func (e *Evaluator) Evaluate(j *domain.Jackpot) (bool, error) {
	chance, forced, err := WinChance(j)
	if err != nil {
		return false, err
	}
	r := e.src.Float64()
	if forced {
		return true, nil
	}
	return r < chance.InexactFloat64(), nil
}
