package dto

import "github.com/shopspring/decimal"

type PlaceBetRequest struct {
	UserID    string          `json:"userId" validate:"required,max=64"`
	JackpotID string          `json:"jackpotId" validate:"required,max=64"`
	BetAmount decimal.Decimal `json:"betAmount" validate:"gt=0"`
}

type CreateJackpotRequest struct {
	Name             string          `json:"name" validate:"required,max=128"`
	InitialPool      decimal.Decimal `json:"initialPool" validate:"gt=0"`
	ContributionType string          `json:"contributionType" validate:"omitempty,oneof=FIXED VARIABLE fixed variable"`
	RewardType       string          `json:"rewardType" validate:"omitempty,oneof=FIXED VARIABLE fixed variable"`
}
