package events

import (
	"time"

	"github.com/shopspring/decimal"
)

// Evento emitido pelo jackpot-service quando uma aposta ganha o pote.
type RewardGranted struct {
	RewardID  string          `json:"rewardId"`
	BetID     string          `json:"betId"`
	JackpotID string          `json:"jackpotId"`
	UserID    string          `json:"userId"`
	Amount    decimal.Decimal `json:"amount"`
	GrantedAt time.Time       `json:"grantedAt"`
}
