package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/radieske/jackpot-platform-poc/internal/jackpot/domain"
	"github.com/radieske/jackpot-platform-poc/internal/jackpot/engine"
	"github.com/radieske/jackpot-platform-poc/internal/shared/concurrency"
)

// Store mantém tudo em memória. Um mutex por jackpot serializa as unidades de
// trabalho; mu protege os mapas durante leitura e commit.
type Store struct {
	locks *concurrency.LockManager

	mu       sync.RWMutex
	jackpots map[string]domain.Jackpot
	contribs map[string][]domain.Contribution
	seen     map[string]map[string]struct{} // jackpotId -> betIds
	bets     map[string]domain.Bet
	rewards  map[string]domain.Reward     // por betId
	evals    map[string]domain.Evaluation // por betId
}

var _ engine.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		locks:    concurrency.NewLockManager(),
		jackpots: map[string]domain.Jackpot{},
		contribs: map[string][]domain.Contribution{},
		seen:     map[string]map[string]struct{}{},
		bets:     map[string]domain.Bet{},
		rewards:  map[string]domain.Reward{},
		evals:    map[string]domain.Evaluation{},
	}
}

func (s *Store) WithinJackpot(ctx context.Context, jackpotID string, fn func(ctx context.Context, r engine.Repos) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	// só jackpots existentes ganham mutex
	if !s.exists(jackpotID) {
		return domain.ErrJackpotNotFound
	}
	return s.locks.WithLock(jackpotID, func() error {
		if err := ctx.Err(); err != nil {
			return err
		}
		// removido enquanto esperava o lock
		if !s.exists(jackpotID) {
			s.locks.Remove(jackpotID)
			return domain.ErrJackpotNotFound
		}
		t := &tx{s: s, jackpotID: jackpotID, bets: map[string]domain.Bet{}, rewards: map[string]domain.Reward{}, evals: map[string]domain.Evaluation{}}
		if err := fn(ctx, engine.Repos{
			Jackpots: jackpotRepo{t},
			Bets:     betRepo{t},
			Rewards:  rewardRepo{t},
		}); err != nil {
			return err // descarta o que foi preparado
		}
		t.commit()
		return nil
	})
}

func (s *Store) CreateJackpot(ctx context.Context, j *domain.Jackpot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jackpots[j.ID]; ok {
		return fmt.Errorf("jackpot %s already exists: %w", j.ID, domain.ErrConflict)
	}
	s.jackpots[j.ID] = *j
	return nil
}

func (s *Store) GetJackpot(ctx context.Context, id string) (*domain.Jackpot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.jackpots[id]
	if !ok {
		return nil, domain.ErrJackpotNotFound
	}
	return &j, nil
}

func (s *Store) ListJackpots(ctx context.Context) ([]domain.Jackpot, error) {
	s.mu.RLock()
	out := make([]domain.Jackpot, 0, len(s.jackpots))
	for _, j := range s.jackpots {
		out = append(out, j)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(a, b int) bool {
		if out[a].CreatedAt.Equal(out[b].CreatedAt) {
			return out[a].ID < out[b].ID
		}
		return out[a].CreatedAt.Before(out[b].CreatedAt)
	})
	return out, nil
}

// DeleteJackpot remove o jackpot e suas contribuições. Apostas e prêmios ficam como histórico.
func (s *Store) DeleteJackpot(ctx context.Context, id string) error {
	if !s.exists(id) {
		return domain.ErrJackpotNotFound
	}
	return s.locks.WithLock(id, func() error {
		s.mu.Lock()
		defer s.mu.Unlock()
		if _, ok := s.jackpots[id]; !ok {
			return domain.ErrJackpotNotFound
		}
		delete(s.jackpots, id)
		delete(s.contribs, id)
		delete(s.seen, id)
		s.locks.Remove(id)
		return nil
	})
}

func (s *Store) exists(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.jackpots[id]
	return ok
}

func (s *Store) Contributions(ctx context.Context, jackpotID string) ([]domain.Contribution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Contribution(nil), s.contribs[jackpotID]...), nil
}

func (s *Store) GetBet(ctx context.Context, id string) (*domain.Bet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.bets[id]
	if !ok {
		return nil, domain.ErrBetNotFound
	}
	return &b, nil
}

// tx acumula as escritas de uma unidade de trabalho.
type tx struct {
	s         *Store
	jackpotID string

	jackpot  *domain.Jackpot
	contribs []domain.Contribution
	bets     map[string]domain.Bet
	rewards  map[string]domain.Reward
	evals    map[string]domain.Evaluation
}

func (t *tx) commit() {
	s := t.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if t.jackpot != nil {
		s.jackpots[t.jackpot.ID] = *t.jackpot
	}
	if len(t.contribs) > 0 {
		ids := s.seen[t.jackpotID]
		if ids == nil {
			ids = map[string]struct{}{}
			s.seen[t.jackpotID] = ids
		}
		for _, c := range t.contribs {
			ids[c.BetID] = struct{}{}
		}
		s.contribs[t.jackpotID] = append(s.contribs[t.jackpotID], t.contribs...)
	}
	for id, b := range t.bets {
		if _, ok := s.bets[id]; !ok {
			s.bets[id] = b
		}
	}
	for id, r := range t.rewards {
		s.rewards[id] = r
	}
	for id, e := range t.evals {
		s.evals[id] = e
	}
}

func (t *tx) checkJackpot(id string) error {
	if id != t.jackpotID {
		return fmt.Errorf("jackpot %s outside unit of work for %s: %w", id, t.jackpotID, domain.ErrInvalidInput)
	}
	return nil
}

type jackpotRepo struct{ t *tx }

func (r jackpotRepo) Get(ctx context.Context, id string) (*domain.Jackpot, error) {
	if err := r.t.checkJackpot(id); err != nil {
		return nil, err
	}
	if r.t.jackpot != nil {
		j := *r.t.jackpot
		return &j, nil
	}
	return r.t.s.GetJackpot(ctx, id)
}

func (r jackpotRepo) Put(ctx context.Context, j *domain.Jackpot) error {
	if err := r.t.checkJackpot(j.ID); err != nil {
		return err
	}
	cp := *j
	r.t.jackpot = &cp
	return nil
}

func (r jackpotRepo) HasContribution(ctx context.Context, jackpotID, betID string) (bool, error) {
	if err := r.t.checkJackpot(jackpotID); err != nil {
		return false, err
	}
	for _, c := range r.t.contribs {
		if c.BetID == betID {
			return true, nil
		}
	}
	r.t.s.mu.RLock()
	defer r.t.s.mu.RUnlock()
	_, ok := r.t.s.seen[jackpotID][betID]
	return ok, nil
}

func (r jackpotRepo) AppendContribution(ctx context.Context, c domain.Contribution) error {
	if err := r.t.checkJackpot(c.JackpotID); err != nil {
		return err
	}
	dup, err := r.HasContribution(ctx, c.JackpotID, c.BetID)
	if err != nil {
		return err
	}
	if dup {
		return fmt.Errorf("contribution %s already applied: %w", c.BetID, domain.ErrConflict)
	}
	r.t.contribs = append(r.t.contribs, c)
	return nil
}

type betRepo struct{ t *tx }

func (r betRepo) Get(ctx context.Context, id string) (*domain.Bet, error) {
	if b, ok := r.t.bets[id]; ok {
		return &b, nil
	}
	return r.t.s.GetBet(ctx, id)
}

func (r betRepo) Put(ctx context.Context, b *domain.Bet) error {
	if _, err := r.Get(ctx, b.ID); err == nil {
		return nil
	}
	r.t.bets[b.ID] = *b
	return nil
}

type rewardRepo struct{ t *tx }

func (r rewardRepo) GetByBet(ctx context.Context, betID string) (*domain.Reward, error) {
	if rw, ok := r.t.rewards[betID]; ok {
		return &rw, nil
	}
	s := r.t.s
	s.mu.RLock()
	defer s.mu.RUnlock()
	rw, ok := s.rewards[betID]
	if !ok {
		return nil, domain.ErrRewardNotFound
	}
	return &rw, nil
}

func (r rewardRepo) Put(ctx context.Context, rw *domain.Reward) error {
	if _, err := r.GetByBet(ctx, rw.BetID); err == nil {
		return fmt.Errorf("reward for bet %s already exists: %w", rw.BetID, domain.ErrConflict)
	}
	r.t.rewards[rw.BetID] = *rw
	return nil
}

func (r rewardRepo) GetEvaluation(ctx context.Context, betID string) (*domain.Evaluation, error) {
	if e, ok := r.t.evals[betID]; ok {
		return &e, nil
	}
	s := r.t.s
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.evals[betID]
	if !ok {
		return nil, domain.ErrEvaluationNotFound
	}
	return &e, nil
}

func (r rewardRepo) PutEvaluation(ctx context.Context, e *domain.Evaluation) error {
	r.t.evals[e.BetID] = *e
	return nil
}
