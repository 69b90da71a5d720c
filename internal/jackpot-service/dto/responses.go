package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/radieske/jackpot-platform-poc/internal/jackpot/domain"
)

const (
	MessageWon  = "Congratulations! You have won the jackpot!"
	MessageLost = "Sorry, no reward this time. Better luck next time!"
)

type PlaceBetResponse struct {
	BetID  string `json:"betId"`
	Status string `json:"status"` // PENDING: a contribuição é aplicada pelo worker
}

type RewardResponse struct {
	BetID     string          `json:"betId"`
	JackpotID string          `json:"jackpotId"`
	UserID    string          `json:"userId"`
	Won       bool            `json:"won"`
	Amount    decimal.Decimal `json:"amount"`
	GrantedAt *time.Time      `json:"grantedAt,omitempty"`
	Message   string          `json:"message"`
}

type JackpotResponse struct {
	JackpotID        string          `json:"jackpotId"`
	Name             string          `json:"name"`
	InitialPool      decimal.Decimal `json:"initialPool"`
	CurrentPool      decimal.Decimal `json:"currentPool"`
	ContributionType string          `json:"contributionType"`
	RewardType       string          `json:"rewardType"`
	CreatedAt        time.Time       `json:"createdAt"`
	UpdatedAt        time.Time       `json:"updatedAt"`
}

// FromJackpot preenche os tipos vazios com FIXED, que é a regra aplicada
func FromJackpot(j domain.Jackpot) JackpotResponse {
	ct, rt := string(j.ContributionType), string(j.RewardType)
	if ct == "" {
		ct = string(domain.ContributionFixed)
	}
	if rt == "" {
		rt = string(domain.RewardFixed)
	}
	return JackpotResponse{
		JackpotID:        j.ID,
		Name:             j.Name,
		InitialPool:      j.InitialPool,
		CurrentPool:      j.Pool(),
		ContributionType: ct,
		RewardType:       rt,
		CreatedAt:        j.CreatedAt,
		UpdatedAt:        j.UpdatedAt,
	}
}

type ContributionResponse struct {
	BetID              string          `json:"betId"`
	ContributionAmount decimal.Decimal `json:"contributionAmount"`
	CreatedAt          time.Time       `json:"createdAt"`
}

type ErrorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}
