package producer

import (
	"context"

	"github.com/segmentio/kafka-go"

	sharedkafka "github.com/radieske/jackpot-platform-poc/internal/shared/kafka"
	"github.com/radieske/jackpot-platform-poc/pkg/contracts/events"
)

// KafkaPublisher publica apostas e prêmios; a chave é o jackpotId
// para manter a ordem por jackpot dentro da partição
type KafkaPublisher struct {
	Bets    *kafka.Writer
	Rewards *kafka.Writer // opcional
}

func NewKafkaPublisher(bets, rewards *kafka.Writer) *KafkaPublisher {
	return &KafkaPublisher{Bets: bets, Rewards: rewards}
}

func (p *KafkaPublisher) PublishBetPlaced(ctx context.Context, e events.BetPlaced) error {
	return sharedkafka.WriteJSON(ctx, p.Bets, e.JackpotID, e)
}

func (p *KafkaPublisher) PublishRewardGranted(ctx context.Context, e events.RewardGranted) error {
	if p.Rewards == nil {
		return nil
	}
	return sharedkafka.WriteJSON(ctx, p.Rewards, e.JackpotID, e)
}
