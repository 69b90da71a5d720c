package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/radieske/jackpot-platform-poc/internal/jackpot/domain"
	"github.com/radieske/jackpot-platform-poc/pkg/contracts/events"
)

// Clock permite fixar o horário nos testes.
type Clock func() time.Time

func systemClock() time.Time { return time.Now().UTC() }

// Result descreve o efeito de um BetPlaced no pote.
// Applied=false indica reentrega de uma aposta já contabilizada.
type Result struct {
	Applied      bool
	Contribution domain.Contribution
	Pool         decimal.Decimal
}

// Processor aplica eventos de aposta ao jackpot, no máximo uma vez por aposta.
type Processor struct {
	uow   UnitOfWork
	log   *zap.Logger
	Clock Clock
}

func NewProcessor(uow UnitOfWork, log *zap.Logger) *Processor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Processor{uow: uow, log: log, Clock: systemClock}
}

// Process grava a aposta, calcula a contribuição e soma ao pote dentro da
// mesma unidade atômica do jackpot. Erros de store voltam sem retry.
func (p *Processor) Process(ctx context.Context, ev events.BetPlaced) (Result, error) {
	if err := validateBetPlaced(ev); err != nil {
		return Result{}, err
	}

	var res Result
	err := p.uow.WithinJackpot(ctx, ev.JackpotID, func(ctx context.Context, r Repos) error {
		res = Result{}

		j, err := r.Jackpots.Get(ctx, ev.JackpotID)
		if err != nil {
			return fmt.Errorf("load jackpot %s: %w", ev.JackpotID, err)
		}

		// reentrega do mesmo evento
		dup, err := r.Jackpots.HasContribution(ctx, j.ID, ev.BetRequestID)
		if err != nil {
			return fmt.Errorf("check contribution %s: %w", ev.BetRequestID, err)
		}
		if dup {
			res.Pool = j.Pool()
			return nil
		}

		// o mesmo betRequestId não pode contribuir para outro jackpot
		prev, err := r.Bets.Get(ctx, ev.BetRequestID)
		switch {
		case err == nil && prev.JackpotID != j.ID:
			return domain.Invalid("bet %s already belongs to jackpot %s", ev.BetRequestID, prev.JackpotID)
		case err != nil && !errors.Is(err, domain.ErrBetNotFound):
			return fmt.Errorf("load bet %s: %w", ev.BetRequestID, err)
		}

		amount, err := Contribution(j, ev.BetAmount)
		if err != nil {
			return err
		}

		now := p.Clock()
		createdAt := ev.CreatedAt
		if createdAt.IsZero() {
			createdAt = now
		}

		bet := &domain.Bet{
			ID:        ev.BetRequestID,
			UserID:    ev.UserID,
			JackpotID: j.ID,
			Amount:    ev.BetAmount,
			CreatedAt: createdAt,
		}
		if err := r.Bets.Put(ctx, bet); err != nil {
			return fmt.Errorf("save bet %s: %w", bet.ID, err)
		}

		c := domain.Contribution{JackpotID: j.ID, BetID: bet.ID, Amount: amount, CreatedAt: now}
		if err := r.Jackpots.AppendContribution(ctx, c); err != nil {
			return fmt.Errorf("append contribution %s: %w", bet.ID, err)
		}
		j.Contribute(c, now)
		if err := r.Jackpots.Put(ctx, j); err != nil {
			return fmt.Errorf("save jackpot %s: %w", j.ID, err)
		}

		res = Result{Applied: true, Contribution: c, Pool: j.Pool()}
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	if res.Applied {
		p.log.Debug("contribution applied",
			zap.String("jackpot_id", ev.JackpotID),
			zap.String("bet_id", ev.BetRequestID),
			zap.String("amount", res.Contribution.Amount.String()),
			zap.String("pool", res.Pool.String()))
	} else {
		p.log.Warn("duplicate bet ignored",
			zap.String("jackpot_id", ev.JackpotID),
			zap.String("bet_id", ev.BetRequestID))
	}
	return res, nil
}

func validateBetPlaced(ev events.BetPlaced) error {
	switch {
	case strings.TrimSpace(ev.BetRequestID) == "":
		return domain.Invalid("betRequestId is required")
	case strings.TrimSpace(ev.UserID) == "":
		return domain.Invalid("userId is required")
	case strings.TrimSpace(ev.JackpotID) == "":
		return domain.Invalid("jackpotId is required")
	case !ev.BetAmount.IsPositive():
		return domain.Invalid("betAmount must be positive, got %s", ev.BetAmount)
	}
	return nil
}
