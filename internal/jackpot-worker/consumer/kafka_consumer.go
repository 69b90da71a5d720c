package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/radieske/jackpot-platform-poc/internal/jackpot/domain"
	"github.com/radieske/jackpot-platform-poc/internal/jackpot/engine"
	"github.com/radieske/jackpot-platform-poc/pkg/contracts/events"
)

// Reader é o subconjunto do *kafka.Reader usado aqui (commit explícito)
type Reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

// Writer é o subconjunto do *kafka.Writer usado para a DLQ
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// Engine aplica o evento de aposta ao jackpot
type Engine interface {
	Process(ctx context.Context, ev events.BetPlaced) (engine.Result, error)
}

// ErrNoDLQ: sem DLQ uma aposta rejeitada seria commitada e perdida
var ErrNoDLQ = errors.New("consumer: dead-letter writer is required")

// Processor consome apostas do Kafka e aplica as contribuições nos jackpots.
// A mensagem só é commitada depois de processada ou gravada na DLQ.
// Callbacks de métricas podem ser usadas para monitoramento de cada etapa
type Processor struct {
	Log        *zap.Logger
	Reader     Reader
	Engine     Engine
	DLQ        Writer
	MaxRetries int
	Backoff    func(attempt int) time.Duration

	OnConsumed  func()                                // métricas (counter++)
	OnApplied   func(events.BetPlaced, engine.Result) // métricas + broadcast do pote
	OnDuplicate func()                                // métricas
	OnError     func(string)                          // métricas por fase
}

// Run inicia o loop principal de consumo; retorna quando ctx é cancelado
func (p *Processor) Run(ctx context.Context) error {
	if p.DLQ == nil {
		return ErrNoDLQ
	}
	for {
		m, err := p.Reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err() // encerra se o contexto for cancelado
			}
			p.Log.Warn("kafka fetch failed", zap.Error(err))
			p.fail("fetch")
			if !sleep(ctx, 500*time.Millisecond) {
				return ctx.Err()
			}
			continue
		}

		if p.OnConsumed != nil {
			p.OnConsumed()
		}

		if err := p.handle(ctx, m); err != nil {
			// contexto cancelado no meio: não commita, a mensagem volta na próxima partida
			return err
		}

		if err := p.Reader.CommitMessages(ctx, m); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.Log.Warn("kafka commit failed", zap.Int64("offset", m.Offset), zap.Error(err))
			p.fail("commit")
		}
	}
}

// handle só devolve erro quando ctx foi cancelado; nesse caso a mensagem não é commitada
func (p *Processor) handle(ctx context.Context, m kafka.Message) error {
	var ev events.BetPlaced
	if err := json.Unmarshal(m.Value, &ev); err != nil {
		p.Log.Warn("invalid message", zap.Int64("offset", m.Offset), zap.Error(err))
		p.fail("decode")
		return p.deadLetter(ctx, m, "decode", err)
	}

	var (
		res engine.Result
		err error
	)
	for attempt := 0; ; attempt++ {
		res, err = p.Engine.Process(ctx, ev)
		if err == nil {
			break
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !retryable(err) {
			p.Log.Warn("bet rejected",
				zap.String("bet_id", ev.BetRequestID),
				zap.String("jackpot_id", ev.JackpotID),
				zap.Error(err))
			p.fail("process")
			return p.deadLetter(ctx, m, "process", err)
		}
		if attempt >= p.MaxRetries {
			p.Log.Error("bet failed after retries",
				zap.String("bet_id", ev.BetRequestID),
				zap.Int("attempts", attempt+1),
				zap.Error(err))
			p.fail("process")
			return p.deadLetter(ctx, m, "process", err)
		}
		p.fail("retry")
		if !sleep(ctx, p.backoff(attempt)) {
			return ctx.Err()
		}
	}

	if res.Applied {
		if p.OnApplied != nil {
			p.OnApplied(ev, res)
		}
	} else if p.OnDuplicate != nil {
		p.OnDuplicate()
	}
	return nil
}

// retryable: jackpot inexistente e evento inválido não mudam com nova tentativa
func retryable(err error) bool {
	return !errors.Is(err, domain.ErrNotFound) && !errors.Is(err, domain.ErrInvalidInput)
}

func (p *Processor) backoff(attempt int) time.Duration {
	if p.Backoff != nil {
		return p.Backoff(attempt)
	}
	return time.Duration(300*(attempt+1)) * time.Millisecond
}

// deadLetter insiste até gravar na DLQ; só desiste com ctx cancelado
func (p *Processor) deadLetter(ctx context.Context, m kafka.Message, stage string, cause error) error {
	dlq := kafka.Message{
		Key:   m.Key,
		Value: m.Value,
		Time:  time.Now(),
		Headers: []kafka.Header{
			{Key: "x-stage", Value: []byte(stage)},
			{Key: "x-error", Value: []byte(cause.Error())},
			{Key: "x-source-topic", Value: []byte(m.Topic)},
		},
	}
	for attempt := 0; ; attempt++ {
		err := p.DLQ.WriteMessages(ctx, dlq)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		p.Log.Error("dlq write failed",
			zap.Int64("offset", m.Offset),
			zap.Int("attempt", attempt+1),
			zap.Error(err))
		p.fail("dlq")
		if !sleep(ctx, min(p.backoff(attempt), maxDLQBackoff)) {
			return ctx.Err()
		}
	}
}

const maxDLQBackoff = 5 * time.Second

func (p *Processor) fail(stage string) {
	if p.OnError != nil {
		p.OnError(stage)
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
