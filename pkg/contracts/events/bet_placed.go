package events

import (
	"time"

	"github.com/shopspring/decimal"
)

// BetPlaced é publicado no tópico "jackpot-bets" a cada aposta aceita.
// Entrega at-least-once: o consumidor deduplica por BetRequestID.
type BetPlaced struct {
	BetRequestID string          `json:"betRequestId"`
	UserID       string          `json:"userId"`
	JackpotID    string          `json:"jackpotId"`
	BetAmount    decimal.Decimal `json:"betAmount"`
	CreatedAt    time.Time       `json:"createdAt"`
}
