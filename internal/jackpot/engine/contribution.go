package engine

import (
	"github.com/shopspring/decimal"

	"github.com/radieske/jackpot-platform-poc/internal/jackpot/domain"
)

var (
	fixedContributionRate    = decimal.RequireFromString("0.10")
	variableContributionBase = decimal.RequireFromString("0.20")
	variableContributionStep = decimal.RequireFromString("0.05")
	minContributionRate      = decimal.RequireFromString("0.05")
)

// ContributionRate devolve o percentual da aposta que vai para o pote.
// Tipo ausente ou desconhecido usa a taxa fixa.
func ContributionRate(j *domain.Jackpot) (decimal.Decimal, error) {
	if err := validatePool(j); err != nil {
		return decimal.Zero, err
	}
	if j.ContributionType != domain.ContributionVariable {
		return fixedContributionRate, nil
	}

	// cai conforme o pote cresce, com piso de 5%
	rate := variableContributionBase.Sub(j.PoolRatio().Mul(variableContributionStep))
	if rate.LessThan(minContributionRate) {
		rate = minContributionRate
	}
	return rate, nil
}

// Contribution calcula a contribuição de uma aposta. Função pura.
func Contribution(j *domain.Jackpot, stake decimal.Decimal) (decimal.Decimal, error) {
	if !stake.IsPositive() {
		return decimal.Zero, domain.Invalid("stake must be positive, got %s", stake)
	}
	rate, err := ContributionRate(j)
	if err != nil {
		return decimal.Zero, err
	}
	return stake.Mul(rate), nil
}

func validatePool(j *domain.Jackpot) error {
	if j == nil {
		return domain.Invalid("jackpot is required")
	}
	if !j.InitialPool.IsPositive() {
		return domain.Invalid("jackpot %s initial pool must be positive, got %s", j.ID, j.InitialPool)
	}
	return nil
}
