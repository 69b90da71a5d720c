package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/radieske/jackpot-platform-poc/internal/jackpot/domain"
	"github.com/radieske/jackpot-platform-poc/internal/jackpot/engine"
)

const jackpotsSet = "jackpots"

func jackpotKey(id string) string { return "jackpot:" + id }
func contribKey(id string) string { return "jackpot:" + id + ":contributions" }
func contribOrderKey(id string) string { return "jackpot:" + id + ":contrib_order" }
func betKey(id string) string { return "bet:" + id }
func rewardKey(betID string) string { return "reward:bet:" + betID }
func evaluationKey(betID string) string { return "evaluation:bet:" + betID }

// Store implementa engine.Store sobre Redis com transações otimistas:
// toda chave lida dentro da unidade entra no WATCH e as escritas vão num MULTI/EXEC.
type Store struct {
	rdb *redis.Client

	MaxAttempts int
}

var _ engine.Store = (*Store)(nil)

func New(rdb *redis.Client) *Store {
	return &Store{rdb: rdb, MaxAttempts: 5}
}

func (s *Store) WithinJackpot(ctx context.Context, jackpotID string, fn func(ctx context.Context, r engine.Repos) error) error {
	attempts := s.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	for attempt := 1; ; attempt++ {
		err := s.rdb.Watch(ctx, func(tx *redis.Tx) error {
			u := newUnit(tx, jackpotID)
			if err := fn(ctx, engine.Repos{Jackpots: jackpotRepo{u}, Bets: betRepo{u}, Rewards: rewardRepo{u}}); err != nil {
				return err
			}
			_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				return u.flush(ctx, pipe)
			})
			return err
		}, jackpotKey(jackpotID))

		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
		if attempt >= attempts {
			return fmt.Errorf("jackpot %s changed during %d attempts: %w", jackpotID, attempt, domain.ErrConflict)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * 5 * time.Millisecond):
		}
	}
}

func (s *Store) CreateJackpot(ctx context.Context, j *domain.Jackpot) error {
	payload, err := json.Marshal(j)
	if err != nil {
		return fmt.Errorf("marshal jackpot: %w", err)
	}
	ok, err := s.rdb.SetNX(ctx, jackpotKey(j.ID), payload, 0).Result()
	if err != nil {
		return fmt.Errorf("create jackpot: %w", err)
	}
	if !ok {
		return fmt.Errorf("jackpot %s already exists: %w", j.ID, domain.ErrConflict)
	}
	if err := s.rdb.SAdd(ctx, jackpotsSet, j.ID).Err(); err != nil {
		return fmt.Errorf("index jackpot: %w", err)
	}
	return nil
}

func (s *Store) GetJackpot(ctx context.Context, id string) (*domain.Jackpot, error) {
	var j domain.Jackpot
	if err := getJSON(ctx, s.rdb, jackpotKey(id), &j); err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrJackpotNotFound
		}
		return nil, fmt.Errorf("get jackpot: %w", err)
	}
	return &j, nil
}

func (s *Store) ListJackpots(ctx context.Context) ([]domain.Jackpot, error) {
	ids, err := s.rdb.SMembers(ctx, jackpotsSet).Result()
	if err != nil {
		return nil, fmt.Errorf("list jackpots: %w", err)
	}
	if len(ids) == 0 {
		return []domain.Jackpot{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = jackpotKey(id)
	}
	vals, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("load jackpots: %w", err)
	}

	out := make([]domain.Jackpot, 0, len(vals))
	for _, v := range vals {
		str, ok := v.(string)
		if !ok {
			continue // removido entre SMEMBERS e MGET
		}
		var j domain.Jackpot
		if err := json.Unmarshal([]byte(str), &j); err != nil {
			return nil, fmt.Errorf("decode jackpot: %w", err)
		}
		out = append(out, j)
	}
	sort.Slice(out, func(a, b int) bool {
		if out[a].CreatedAt.Equal(out[b].CreatedAt) {
			return out[a].ID < out[b].ID
		}
		return out[a].CreatedAt.Before(out[b].CreatedAt)
	})
	return out, nil
}

// DeleteJackpot remove o jackpot e as contribuições. Apostas e prêmios ficam.
func (s *Store) DeleteJackpot(ctx context.Context, id string) error {
	var deleted int64
	err := s.rdb.Watch(ctx, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, jackpotKey(id)).Result()
		if err != nil {
			return err
		}
		if n == 0 {
			return domain.ErrJackpotNotFound
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, jackpotKey(id), contribKey(id), contribOrderKey(id))
			pipe.SRem(ctx, jackpotsSet, id)
			return nil
		})
		deleted = n
		return err
	}, jackpotKey(id))
	if errors.Is(err, redis.TxFailedErr) {
		return fmt.Errorf("jackpot %s changed during delete: %w", id, domain.ErrConflict)
	}
	if err != nil {
		return err
	}
	if deleted == 0 {
		return domain.ErrJackpotNotFound
	}
	return nil
}

func (s *Store) Contributions(ctx context.Context, jackpotID string) ([]domain.Contribution, error) {
	order, err := s.rdb.LRange(ctx, contribOrderKey(jackpotID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list contributions: %w", err)
	}
	out := make([]domain.Contribution, 0, len(order))
	if len(order) == 0 {
		return out, nil
	}
	vals, err := s.rdb.HMGet(ctx, contribKey(jackpotID), order...).Result()
	if err != nil {
		return nil, fmt.Errorf("load contributions: %w", err)
	}
	for _, v := range vals {
		str, ok := v.(string)
		if !ok {
			continue
		}
		var c domain.Contribution
		if err := json.Unmarshal([]byte(str), &c); err != nil {
			return nil, fmt.Errorf("decode contribution: %w", err)
		}
		out = append(out, c)
	}
	return out, nil
}

func (s *Store) GetBet(ctx context.Context, id string) (*domain.Bet, error) {
	var b domain.Bet
	if err := getJSON(ctx, s.rdb, betKey(id), &b); err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrBetNotFound
		}
		return nil, fmt.Errorf("get bet: %w", err)
	}
	return &b, nil
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func getJSON(ctx context.Context, c getter, key string, v any) error {
	raw, err := c.Get(ctx, key).Bytes()
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}

// unit guarda as escritas preparadas até o EXEC
type unit struct {
	tx        *redis.Tx
	jackpotID string

	jackpot  *domain.Jackpot
	contribs []domain.Contribution
	bets     map[string]domain.Bet
	rewards  map[string]domain.Reward
	evals    map[string]domain.Evaluation
}

func newUnit(tx *redis.Tx, jackpotID string) *unit {
	return &unit{
		tx:        tx,
		jackpotID: jackpotID,
		bets:      map[string]domain.Bet{},
		rewards:   map[string]domain.Reward{},
		evals:     map[string]domain.Evaluation{},
	}
}

// read faz WATCH da chave antes de ler, para que uma escrita concorrente aborte o EXEC
func (u *unit) read(ctx context.Context, key string, v any) error {
	if err := u.tx.Watch(ctx, key).Err(); err != nil {
		return err
	}
	return getJSON(ctx, u.tx, key, v)
}

func (u *unit) checkJackpot(id string) error {
	if id != u.jackpotID {
		return fmt.Errorf("jackpot %s outside unit of work for %s: %w", id, u.jackpotID, domain.ErrInvalidInput)
	}
	return nil
}

func (u *unit) flush(ctx context.Context, pipe redis.Pipeliner) error {
	if u.jackpot != nil {
		payload, err := json.Marshal(u.jackpot)
		if err != nil {
			return err
		}
		pipe.Set(ctx, jackpotKey(u.jackpot.ID), payload, 0)
	}
	for _, c := range u.contribs {
		payload, err := json.Marshal(c)
		if err != nil {
			return err
		}
		pipe.HSet(ctx, contribKey(c.JackpotID), c.BetID, payload)
		pipe.RPush(ctx, contribOrderKey(c.JackpotID), c.BetID)
	}
	for id, b := range u.bets {
		payload, err := json.Marshal(b)
		if err != nil {
			return err
		}
		pipe.SetNX(ctx, betKey(id), payload, 0)
	}
	for id, rw := range u.rewards {
		payload, err := json.Marshal(rw)
		if err != nil {
			return err
		}
		pipe.Set(ctx, rewardKey(id), payload, 0)
	}
	for id, e := range u.evals {
		payload, err := json.Marshal(e)
		if err != nil {
			return err
		}
		pipe.Set(ctx, evaluationKey(id), payload, 0)
	}
	return nil
}

type jackpotRepo struct{ u *unit }

func (r jackpotRepo) Get(ctx context.Context, id string) (*domain.Jackpot, error) {
	if err := r.u.checkJackpot(id); err != nil {
		return nil, err
	}
	if r.u.jackpot != nil {
		j := *r.u.jackpot
		return &j, nil
	}
	var j domain.Jackpot
	if err := r.u.read(ctx, jackpotKey(id), &j); err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrJackpotNotFound
		}
		return nil, fmt.Errorf("get jackpot: %w", err)
	}
	return &j, nil
}

func (r jackpotRepo) Put(ctx context.Context, j *domain.Jackpot) error {
	if err := r.u.checkJackpot(j.ID); err != nil {
		return err
	}
	cp := *j
	r.u.jackpot = &cp
	return nil
}

func (r jackpotRepo) HasContribution(ctx context.Context, jackpotID, betID string) (bool, error) {
	if err := r.u.checkJackpot(jackpotID); err != nil {
		return false, err
	}
	for _, c := range r.u.contribs {
		if c.BetID == betID {
			return true, nil
		}
	}
	key := contribKey(jackpotID)
	if err := r.u.tx.Watch(ctx, key).Err(); err != nil {
		return false, err
	}
	ok, err := r.u.tx.HExists(ctx, key, betID).Result()
	if err != nil {
		return false, fmt.Errorf("check contribution: %w", err)
	}
	return ok, nil
}

func (r jackpotRepo) AppendContribution(ctx context.Context, c domain.Contribution) error {
	if err := r.u.checkJackpot(c.JackpotID); err != nil {
		return err
	}
	dup, err := r.HasContribution(ctx, c.JackpotID, c.BetID)
	if err != nil {
		return err
	}
	if dup {
		return fmt.Errorf("contribution %s already applied: %w", c.BetID, domain.ErrConflict)
	}
	r.u.contribs = append(r.u.contribs, c)
	return nil
}

type betRepo struct{ u *unit }

func (r betRepo) Get(ctx context.Context, id string) (*domain.Bet, error) {
	if b, ok := r.u.bets[id]; ok {
		return &b, nil
	}
	var b domain.Bet
	if err := r.u.read(ctx, betKey(id), &b); err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrBetNotFound
		}
		return nil, fmt.Errorf("get bet: %w", err)
	}
	return &b, nil
}

// Put não sobrescreve (SETNX no flush)
func (r betRepo) Put(ctx context.Context, b *domain.Bet) error {
	if _, ok := r.u.bets[b.ID]; ok {
		return nil
	}
	r.u.bets[b.ID] = *b
	return nil
}

type rewardRepo struct{ u *unit }

func (r rewardRepo) GetByBet(ctx context.Context, betID string) (*domain.Reward, error) {
	if rw, ok := r.u.rewards[betID]; ok {
		return &rw, nil
	}
	var rw domain.Reward
	if err := r.u.read(ctx, rewardKey(betID), &rw); err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrRewardNotFound
		}
		return nil, fmt.Errorf("get reward: %w", err)
	}
	return &rw, nil
}

func (r rewardRepo) Put(ctx context.Context, rw *domain.Reward) error {
	_, err := r.GetByBet(ctx, rw.BetID)
	switch {
	case err == nil:
		return fmt.Errorf("reward for bet %s already exists: %w", rw.BetID, domain.ErrConflict)
	case !errors.Is(err, domain.ErrRewardNotFound):
		return err
	}
	r.u.rewards[rw.BetID] = *rw
	return nil
}

func (r rewardRepo) GetEvaluation(ctx context.Context, betID string) (*domain.Evaluation, error) {
	if e, ok := r.u.evals[betID]; ok {
		return &e, nil
	}
	var e domain.Evaluation
	if err := r.u.read(ctx, evaluationKey(betID), &e); err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrEvaluationNotFound
		}
		return nil, fmt.Errorf("get evaluation: %w", err)
	}
	return &e, nil
}

func (r rewardRepo) PutEvaluation(ctx context.Context, e *domain.Evaluation) error {
	r.u.evals[e.BetID] = *e
	return nil
}
