package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ContributionType define como a aposta alimenta o pote.
type ContributionType string

const (
	ContributionFixed    ContributionType = "FIXED"
	ContributionVariable ContributionType = "VARIABLE"
)

// RewardType define como a chance de prêmio é calculada.
type RewardType string

const (
	RewardFixed    RewardType = "FIXED"
	RewardVariable RewardType = "VARIABLE"
)

// ParseContributionType normaliza o valor recebido. Vazio é aceito e cai na regra FIXED.
func ParseContributionType(s string) (ContributionType, bool) {
	switch t := ContributionType(strings.ToUpper(strings.TrimSpace(s))); t {
	case "", ContributionFixed, ContributionVariable:
		return t, true
	}
	return "", false
}

// ParseRewardType normaliza o valor recebido. Vazio é aceito e cai na regra FIXED.
func ParseRewardType(s string) (RewardType, bool) {
	switch t := RewardType(strings.ToUpper(strings.TrimSpace(s))); t {
	case "", RewardFixed, RewardVariable:
		return t, true
	}
	return "", false
}

// Jackpot é o pote compartilhado.
// CurrentPool só muda via Contribute ou Reset; inválido significa "ainda não definido".
type Jackpot struct {
	ID               string              `json:"jackpotId"`
	Name             string              `json:"name"`
	InitialPool      decimal.Decimal     `json:"initialPool"`
	CurrentPool      decimal.NullDecimal `json:"currentPool"`
	ContributionType ContributionType    `json:"contributionType,omitempty"`
	RewardType       RewardType          `json:"rewardType,omitempty"`
	CreatedAt        time.Time           `json:"createdAt"`
	UpdatedAt        time.Time           `json:"updatedAt"`
}

// Pool retorna o valor atual, ou o inicial quando o atual não existe.
func (j *Jackpot) Pool() decimal.Decimal {
	if j.CurrentPool.Valid {
		return j.CurrentPool.Decimal
	}
	return j.InitialPool
}

// PoolRatio = pool / inicial, arredondado em 2 casas (half-up).
// O chamador garante InitialPool > 0.
func (j *Jackpot) PoolRatio() decimal.Decimal {
	return j.Pool().DivRound(j.InitialPool, 2)
}

// Contribute soma a contribuição ao pote.
func (j *Jackpot) Contribute(c Contribution, at time.Time) {
	j.CurrentPool = decimal.NewNullDecimal(j.Pool().Add(c.Amount))
	j.UpdatedAt = at
}

// Reset zera o pote para o valor inicial e devolve o montante pago.
func (j *Jackpot) Reset(at time.Time) decimal.Decimal {
	paid := j.Pool()
	j.CurrentPool = decimal.NewNullDecimal(j.InitialPool)
	j.UpdatedAt = at
	return paid
}

// Bet é imutável depois de gravada.
type Bet struct {
	ID        string          `json:"betId"`
	UserID    string          `json:"userId"`
	JackpotID string          `json:"jackpotId"`
	Amount    decimal.Decimal `json:"betAmount"`
	CreatedAt time.Time       `json:"createdAt"`
}

// Contribution pertence ao jackpot; BetID é único dentro do jackpot.
type Contribution struct {
	JackpotID string          `json:"jackpotId"`
	BetID     string          `json:"betId"`
	Amount    decimal.Decimal `json:"contributionAmount"`
	CreatedAt time.Time       `json:"createdAt"`
}

// Reward é criado no máximo uma vez por aposta vencedora.
type Reward struct {
	ID        string          `json:"rewardId"`
	BetID     string          `json:"betId"`
	JackpotID string          `json:"jackpotId"`
	UserID    string          `json:"userId"`
	Amount    decimal.Decimal `json:"amount"`
	GrantedAt time.Time       `json:"grantedAt"`
}

// Evaluation registra o resultado do sorteio de uma aposta (ganho ou perda),
// para que consultas repetidas não sorteiem de novo.
type Evaluation struct {
	BetID       string    `json:"betId"`
	JackpotID   string    `json:"jackpotId"`
	UserID      string    `json:"userId"`
	Won         bool      `json:"won"`
	EvaluatedAt time.Time `json:"evaluatedAt"`
}
