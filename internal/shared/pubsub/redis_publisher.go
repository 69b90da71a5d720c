package pubsub

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/radieske/jackpot-platform-poc/pkg/contracts/events"
)

// RedisBroadcaster publica atualizações de pote num canal Redis
// consumido pelo hub WebSocket do jackpot-service.
type RedisBroadcaster struct {
	r       *redis.Client
	channel string
}

func NewRedisBroadcaster(r *redis.Client, channel string) *RedisBroadcaster {
	return &RedisBroadcaster{r: r, channel: channel}
}

func (b *RedisBroadcaster) Publish(ctx context.Context, payload []byte) error {
	return b.r.Publish(ctx, b.channel, payload).Err()
}

// PublishPool envia o novo valor do pote
func (b *RedisBroadcaster) PublishPool(ctx context.Context, u events.PoolUpdate) error {
	payload, err := json.Marshal(WSUpdate{JackpotID: u.JackpotID, Payload: u})
	if err != nil {
		return fmt.Errorf("marshal pool update: %w", err)
	}
	return b.Publish(ctx, payload)
}

// WSUpdate é o envelope lido pelo hub para rotear por jackpot
type WSUpdate struct {
	JackpotID string            `json:"jackpotId"`
	Payload   events.PoolUpdate `json:"payload"`
}
