package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/radieske/jackpot-platform-poc/internal/jackpot/domain"
	"github.com/radieske/jackpot-platform-poc/internal/jackpot/engine"
)

// Códigos do Postgres que indicam disputa de lock e podem ser repetidos
const (
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeLockNotAvailable     = "55P03"
)

// Store implementa engine.Store sobre Postgres.
// WithinJackpot abre uma transação e trava a linha do jackpot (FOR UPDATE).
type Store struct {
	db *sql.DB

	MaxAttempts int
	LockTimeout time.Duration
}

var _ engine.Store = (*Store)(nil)

func New(db *sql.DB) *Store {
	return &Store{db: db, MaxAttempts: 5, LockTimeout: 2 * time.Second}
}

// querier cobre *sql.DB e *sql.Tx
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) WithinJackpot(ctx context.Context, jackpotID string, fn func(ctx context.Context, r engine.Repos) error) error {
	attempts := s.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	for attempt := 1; ; attempt++ {
		err := s.runTx(ctx, jackpotID, fn)
		if err == nil || !retryable(err) {
			return err
		}
		if attempt >= attempts {
			return fmt.Errorf("jackpot %s busy after %d attempts (%v): %w", jackpotID, attempt, err, domain.ErrConflict)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * 20 * time.Millisecond):
		}
	}
}

func (s *Store) runTx(ctx context.Context, jackpotID string, fn func(ctx context.Context, r engine.Repos) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if s.LockTimeout > 0 {
		if _, err := tx.ExecContext(ctx, fmt.Sprintf(`SET LOCAL lock_timeout = '%dms'`, s.LockTimeout.Milliseconds())); err != nil {
			return fmt.Errorf("set lock_timeout: %w", err)
		}
	}

	// lock pessimista na linha do jackpot
	var id string
	err = tx.QueryRowContext(ctx, `SELECT id FROM jackpots WHERE id=$1 FOR UPDATE`, jackpotID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrJackpotNotFound
	}
	if err != nil {
		return fmt.Errorf("lock jackpot %s: %w", jackpotID, err)
	}

	r := repos{q: tx, jackpotID: jackpotID}
	if err := fn(ctx, engine.Repos{Jackpots: jackpotRepo{r}, Bets: betRepo{r}, Rewards: rewardRepo{r}}); err != nil {
		return err
	}
	return tx.Commit()
}

func retryable(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	switch pqErr.Code {
	case codeSerializationFailure, codeDeadlockDetected, codeLockNotAvailable:
		return true
	}
	return false
}

func (s *Store) CreateJackpot(ctx context.Context, j *domain.Jackpot) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO jackpots(id, name, initial_pool, current_pool, contribution_type, reward_type, created_at, updated_at)
		VALUES($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (id) DO NOTHING`,
		j.ID, j.Name, j.InitialPool, j.CurrentPool, string(j.ContributionType), string(j.RewardType), j.CreatedAt, j.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert jackpot: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("jackpot %s already exists: %w", j.ID, domain.ErrConflict)
	}
	return nil
}

func (s *Store) GetJackpot(ctx context.Context, id string) (*domain.Jackpot, error) {
	return getJackpot(ctx, s.db, id)
}

func (s *Store) ListJackpots(ctx context.Context) ([]domain.Jackpot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, initial_pool, current_pool, contribution_type, reward_type, created_at, updated_at
		FROM jackpots ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list jackpots: %w", err)
	}
	defer rows.Close()

	var out []domain.Jackpot
	for rows.Next() {
		j, err := scanJackpot(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *j)
	}
	return out, rows.Err()
}

// DeleteJackpot remove o jackpot; contribuições caem em cascata, apostas e prêmios ficam.
func (s *Store) DeleteJackpot(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM jackpots WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete jackpot: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrJackpotNotFound
	}
	return nil
}

func (s *Store) Contributions(ctx context.Context, jackpotID string) ([]domain.Contribution, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT jackpot_id, bet_id, amount, created_at
		FROM jackpot_contributions WHERE jackpot_id=$1 ORDER BY seq`, jackpotID)
	if err != nil {
		return nil, fmt.Errorf("list contributions: %w", err)
	}
	defer rows.Close()

	out := []domain.Contribution{}
	for rows.Next() {
		var c domain.Contribution
		if err := rows.Scan(&c.JackpotID, &c.BetID, &c.Amount, &c.CreatedAt); err != nil {
			return nil, err
		}
		c.CreatedAt = c.CreatedAt.UTC()
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) GetBet(ctx context.Context, id string) (*domain.Bet, error) {
	return getBet(ctx, s.db, id)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanJackpot(sc scanner) (*domain.Jackpot, error) {
	var (
		j      domain.Jackpot
		ct, rt string
	)
	if err := sc.Scan(&j.ID, &j.Name, &j.InitialPool, &j.CurrentPool, &ct, &rt, &j.CreatedAt, &j.UpdatedAt); err != nil {
		return nil, err
	}
	j.ContributionType = domain.ContributionType(ct)
	j.RewardType = domain.RewardType(rt)
	j.CreatedAt, j.UpdatedAt = j.CreatedAt.UTC(), j.UpdatedAt.UTC()
	return &j, nil
}

func getJackpot(ctx context.Context, q querier, id string) (*domain.Jackpot, error) {
	j, err := scanJackpot(q.QueryRowContext(ctx, `
		SELECT id, name, initial_pool, current_pool, contribution_type, reward_type, created_at, updated_at
		FROM jackpots WHERE id=$1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrJackpotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get jackpot: %w", err)
	}
	return j, nil
}

func getBet(ctx context.Context, q querier, id string) (*domain.Bet, error) {
	var b domain.Bet
	err := q.QueryRowContext(ctx, `SELECT id, user_id, jackpot_id, amount, created_at FROM bets WHERE id=$1`, id).
		Scan(&b.ID, &b.UserID, &b.JackpotID, &b.Amount, &b.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrBetNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get bet: %w", err)
	}
	b.CreatedAt = b.CreatedAt.UTC()
	return &b, nil
}

// repos são as visões da transação corrente
type repos struct {
	q         querier
	jackpotID string
}

func (r repos) checkJackpot(id string) error {
	if id != r.jackpotID {
		return fmt.Errorf("jackpot %s outside unit of work for %s: %w", id, r.jackpotID, domain.ErrInvalidInput)
	}
	return nil
}

type jackpotRepo struct{ repos }

func (r jackpotRepo) Get(ctx context.Context, id string) (*domain.Jackpot, error) {
	if err := r.checkJackpot(id); err != nil {
		return nil, err
	}
	return getJackpot(ctx, r.q, id)
}

func (r jackpotRepo) Put(ctx context.Context, j *domain.Jackpot) error {
	if err := r.checkJackpot(j.ID); err != nil {
		return err
	}
	res, err := r.q.ExecContext(ctx, `
		UPDATE jackpots SET name=$2, current_pool=$3, contribution_type=$4, reward_type=$5, updated_at=$6
		WHERE id=$1`,
		j.ID, j.Name, j.CurrentPool, string(j.ContributionType), string(j.RewardType), j.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update jackpot: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrJackpotNotFound
	}
	return nil
}

func (r jackpotRepo) HasContribution(ctx context.Context, jackpotID, betID string) (bool, error) {
	if err := r.checkJackpot(jackpotID); err != nil {
		return false, err
	}
	var ok bool
	err := r.q.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM jackpot_contributions WHERE jackpot_id=$1 AND bet_id=$2)`,
		jackpotID, betID).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("check contribution: %w", err)
	}
	return ok, nil
}

func (r jackpotRepo) AppendContribution(ctx context.Context, c domain.Contribution) error {
	if err := r.checkJackpot(c.JackpotID); err != nil {
		return err
	}
	res, err := r.q.ExecContext(ctx, `
		INSERT INTO jackpot_contributions(jackpot_id, bet_id, amount, created_at)
		VALUES($1,$2,$3,$4)
		ON CONFLICT (jackpot_id, bet_id) DO NOTHING`,
		c.JackpotID, c.BetID, c.Amount, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert contribution: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("contribution %s already applied: %w", c.BetID, domain.ErrConflict)
	}
	return nil
}

type betRepo struct{ repos }

func (r betRepo) Get(ctx context.Context, id string) (*domain.Bet, error) {
	return getBet(ctx, r.q, id)
}

// Put é idempotente: a primeira gravação vence
func (r betRepo) Put(ctx context.Context, b *domain.Bet) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO bets(id, user_id, jackpot_id, amount, created_at)
		VALUES($1,$2,$3,$4,$5)
		ON CONFLICT (id) DO NOTHING`,
		b.ID, b.UserID, b.JackpotID, b.Amount, b.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert bet: %w", err)
	}
	return nil
}

type rewardRepo struct{ repos }

func (r rewardRepo) GetByBet(ctx context.Context, betID string) (*domain.Reward, error) {
	var rw domain.Reward
	err := r.q.QueryRowContext(ctx, `
		SELECT id, bet_id, jackpot_id, user_id, amount, granted_at FROM rewards WHERE bet_id=$1`, betID).
		Scan(&rw.ID, &rw.BetID, &rw.JackpotID, &rw.UserID, &rw.Amount, &rw.GrantedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrRewardNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get reward: %w", err)
	}
	rw.GrantedAt = rw.GrantedAt.UTC()
	return &rw, nil
}

func (r rewardRepo) Put(ctx context.Context, rw *domain.Reward) error {
	res, err := r.q.ExecContext(ctx, `
		INSERT INTO rewards(id, bet_id, jackpot_id, user_id, amount, granted_at)
		VALUES($1,$2,$3,$4,$5,$6)
		ON CONFLICT (bet_id) DO NOTHING`,
		rw.ID, rw.BetID, rw.JackpotID, rw.UserID, rw.Amount, rw.GrantedAt)
	if err != nil {
		return fmt.Errorf("insert reward: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("reward for bet %s already exists: %w", rw.BetID, domain.ErrConflict)
	}
	return nil
}

func (r rewardRepo) GetEvaluation(ctx context.Context, betID string) (*domain.Evaluation, error) {
	var e domain.Evaluation
	err := r.q.QueryRowContext(ctx, `
		SELECT bet_id, jackpot_id, user_id, won, evaluated_at FROM reward_evaluations WHERE bet_id=$1`, betID).
		Scan(&e.BetID, &e.JackpotID, &e.UserID, &e.Won, &e.EvaluatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrEvaluationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get evaluation: %w", err)
	}
	e.EvaluatedAt = e.EvaluatedAt.UTC()
	return &e, nil
}

func (r rewardRepo) PutEvaluation(ctx context.Context, e *domain.Evaluation) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO reward_evaluations(bet_id, jackpot_id, user_id, won, evaluated_at)
		VALUES($1,$2,$3,$4,$5)
		ON CONFLICT (bet_id) DO UPDATE SET won=EXCLUDED.won, evaluated_at=EXCLUDED.evaluated_at`,
		e.BetID, e.JackpotID, e.UserID, e.Won, e.EvaluatedAt)
	if err != nil {
		return fmt.Errorf("insert evaluation: %w", err)
	}
	return nil
}
