package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/radieske/jackpot-platform-poc/internal/jackpot/domain"
)

// NewJackpot são os dados aceitos na criação de um jackpot.
type NewJackpot struct {
	Name             string
	InitialPool      decimal.Decimal
	ContributionType string
	RewardType       string
}

// Catalog cuida do cadastro de jackpots.
type Catalog struct {
	store Store
	Clock Clock
}

func NewCatalog(store Store) *Catalog {
	return &Catalog{store: store, Clock: systemClock}
}

func (c *Catalog) Create(ctx context.Context, in NewJackpot) (*domain.Jackpot, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, domain.Invalid("name is required")
	}
	if !in.InitialPool.IsPositive() {
		return nil, domain.Invalid("initialPool must be positive, got %s", in.InitialPool)
	}
	ct, ok := domain.ParseContributionType(in.ContributionType)
	if !ok {
		return nil, domain.Invalid("unknown contributionType %q", in.ContributionType)
	}
	rt, ok := domain.ParseRewardType(in.RewardType)
	if !ok {
		return nil, domain.Invalid("unknown rewardType %q", in.RewardType)
	}
	if ct == "" {
		ct = domain.ContributionFixed
	}
	if rt == "" {
		rt = domain.RewardFixed
	}

	now := c.Clock()
	j := &domain.Jackpot{
		ID:               uuid.NewString(),
		Name:             name,
		InitialPool:      in.InitialPool,
		CurrentPool:      decimal.NewNullDecimal(in.InitialPool),
		ContributionType: ct,
		RewardType:       rt,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := c.store.CreateJackpot(ctx, j); err != nil {
		return nil, fmt.Errorf("create jackpot: %w", err)
	}
	return j, nil
}

func (c *Catalog) List(ctx context.Context) ([]domain.Jackpot, error) {
	return c.store.ListJackpots(ctx)
}

func (c *Catalog) Get(ctx context.Context, id string) (*domain.Jackpot, error) {
	return c.store.GetJackpot(ctx, id)
}

func (c *Catalog) Delete(ctx context.Context, id string) error {
	return c.store.DeleteJackpot(ctx, id)
}

// Contributions lista as contribuições na ordem em que foram aplicadas.
func (c *Catalog) Contributions(ctx context.Context, id string) ([]domain.Contribution, error) {
	if _, err := c.store.GetJackpot(ctx, id); err != nil {
		return nil, err
	}
	return c.store.Contributions(ctx, id)
}
