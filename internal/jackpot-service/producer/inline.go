package producer

import (
	"context"

	"github.com/radieske/jackpot-platform-poc/internal/jackpot/engine"
	"github.com/radieske/jackpot-platform-poc/pkg/contracts/events"
)

// InlinePublisher aplica a aposta direto no engine, sem Kafka.
// Usado com STORE_BACKEND=memory, onde o worker não enxerga o mesmo estado
type InlinePublisher struct {
	Engine *engine.Processor
	OnPool func(ctx context.Context, u events.PoolUpdate) // opcional
}

func (p *InlinePublisher) PublishBetPlaced(ctx context.Context, e events.BetPlaced) error {
	res, err := p.Engine.Process(ctx, e)
	if err != nil {
		return err
	}
	if res.Applied && p.OnPool != nil {
		p.OnPool(ctx, events.PoolUpdate{
			JackpotID:   e.JackpotID,
			Delta:       res.Contribution.Amount,
			CurrentPool: res.Pool,
			Reason:      events.PoolReasonContribution,
			BetID:       e.BetRequestID,
			UpdatedAt:   res.Contribution.CreatedAt,
		})
	}
	return nil
}
