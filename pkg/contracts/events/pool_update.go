package events

import (
	"time"

	"github.com/shopspring/decimal"
)

// Motivos de alteração do pote
const (
	PoolReasonContribution = "CONTRIBUTION"
	PoolReasonReset        = "RESET"
)

// PoolUpdate é enviado via Redis Pub/Sub para o feed WebSocket.
// Delta é a contribuição aplicada (ou o valor pago, no reset).
type PoolUpdate struct {
	JackpotID   string          `json:"jackpotId"`
	Delta       decimal.Decimal `json:"delta"`
	CurrentPool decimal.Decimal `json:"currentPool"`
	Reason      string          `json:"reason"`
	BetID       string          `json:"betId,omitempty"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}
