package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/radieske/jackpot-platform-poc/internal/jackpot/domain"
	"github.com/radieske/jackpot-platform-poc/internal/jackpot/engine"
	"github.com/radieske/jackpot-platform-poc/internal/jackpot/store/memory"
	"github.com/radieske/jackpot-platform-poc/pkg/contracts/events"
)

// fakeReader entrega as mensagens em ordem e cancela o contexto quando acabam
type fakeReader struct {
	mu        sync.Mutex
	msgs      []kafka.Message
	committed []int64
	cancel    context.CancelFunc
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.msgs) == 0 {
		r.mu.Unlock()
		r.cancel()
		<-ctx.Done()
		return kafka.Message{}, ctx.Err()
	}
	m := r.msgs[0]
	r.msgs = r.msgs[1:]
	r.mu.Unlock()
	return m, nil
}

func (r *fakeReader) CommitMessages(ctx context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

// fakeWriter falha as primeiras `failures` escritas (-1 = sempre) e chama onFail a cada falha
type fakeWriter struct {
	mu       sync.Mutex
	msgs     []kafka.Message
	failures int
	calls    int
	onFail   func(calls int)
}

func (w *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls++
	if w.failures < 0 || w.calls <= w.failures {
		if w.onFail != nil {
			w.onFail(w.calls)
		}
		return errors.New("broker unavailable")
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func header(m kafka.Message, key string) string {
	for _, h := range m.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

// scriptedEngine devolve os erros da fila e depois delega
type scriptedEngine struct {
	errs  []error
	calls int
	next  Engine
}

func (e *scriptedEngine) Process(ctx context.Context, ev events.BetPlaced) (engine.Result, error) {
	e.calls++
	if len(e.errs) > 0 {
		err := e.errs[0]
		e.errs = e.errs[1:]
		return engine.Result{}, err
	}
	if e.next == nil {
		return engine.Result{Applied: true}, nil
	}
	return e.next.Process(ctx, ev)
}

func msg(t *testing.T, offset int64, ev events.BetPlaced) kafka.Message {
	t.Helper()
	b, err := json.Marshal(ev)
	require.NoError(t, err)
	return kafka.Message{Topic: "jackpot-bets", Offset: offset, Key: []byte(ev.JackpotID), Value: b}
}

func newProcessor(r *fakeReader, e Engine, dlq *fakeWriter) (*Processor, map[string]int) {
	stats := map[string]int{}
	var mu sync.Mutex
	inc := func(k string) {
		mu.Lock()
		stats[k]++
		mu.Unlock()
	}
	return &Processor{
		Log:         zap.NewNop(),
		Reader:      r,
		Engine:      e,
		DLQ:         dlq,
		MaxRetries:  2,
		Backoff:     func(int) time.Duration { return time.Millisecond },
		OnConsumed:  func() { inc("consumed") },
		OnApplied:   func(events.BetPlaced, engine.Result) { inc("applied") },
		OnDuplicate: func() { inc("duplicate") },
		OnError:     func(stage string) { inc("error:" + stage) },
	}, stats
}

func TestProcessor_AppliesAndDeduplicates(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := memory.New()
	c := engine.NewCatalog(s)
	j, err := c.Create(ctx, engine.NewJackpot{Name: "main", InitialPool: decimal.NewFromInt(1000)})
	require.NoError(t, err)

	ev := events.BetPlaced{BetRequestID: "b1", UserID: "u1", JackpotID: j.ID, BetAmount: decimal.NewFromInt(100)}
	r := &fakeReader{cancel: cancel, msgs: []kafka.Message{msg(t, 1, ev), msg(t, 2, ev)}}
	dlq := &fakeWriter{}
	p, stats := newProcessor(r, engine.NewProcessor(s, nil), dlq)

	err = p.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	assert.Equal(t, []int64{1, 2}, r.committed)
	assert.Equal(t, 2, stats["consumed"])
	assert.Equal(t, 1, stats["applied"])
	assert.Equal(t, 1, stats["duplicate"])
	assert.Empty(t, dlq.msgs)

	got, err := s.GetJackpot(context.Background(), j.ID)
	require.NoError(t, err)
	assert.True(t, got.Pool().Equal(decimal.NewFromInt(1010)))
}

func TestProcessor_DecodeErrorGoesToDLQ(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bad := kafka.Message{Topic: "jackpot-bets", Offset: 7, Value: []byte("{not json")}
	r := &fakeReader{cancel: cancel, msgs: []kafka.Message{bad}}
	dlq := &fakeWriter{}
	eng := &scriptedEngine{}
	p, stats := newProcessor(r, eng, dlq)

	_ = p.Run(ctx)

	assert.Equal(t, 0, eng.calls)
	assert.Equal(t, []int64{7}, r.committed)
	require.Len(t, dlq.msgs, 1)
	assert.Equal(t, "decode", header(dlq.msgs[0], "x-stage"))
	assert.Equal(t, "jackpot-bets", header(dlq.msgs[0], "x-source-topic"))
	assert.Equal(t, 1, stats["error:decode"])
}

func TestProcessor_MissingJackpotIsNotRetried(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ev := events.BetPlaced{BetRequestID: "b1", UserID: "u1", JackpotID: "gone", BetAmount: decimal.NewFromInt(10)}
	r := &fakeReader{cancel: cancel, msgs: []kafka.Message{msg(t, 3, ev)}}
	dlq := &fakeWriter{}
	eng := &scriptedEngine{errs: []error{domain.ErrJackpotNotFound}}
	p, stats := newProcessor(r, eng, dlq)

	_ = p.Run(ctx)

	assert.Equal(t, 1, eng.calls)
	assert.Equal(t, []int64{3}, r.committed)
	require.Len(t, dlq.msgs, 1)
	assert.Contains(t, header(dlq.msgs[0], "x-error"), "not found")
	assert.Equal(t, 0, stats["error:retry"])
}

func TestProcessor_TransientErrorIsRetried(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ev := events.BetPlaced{BetRequestID: "b1", UserID: "u1", JackpotID: "jp", BetAmount: decimal.NewFromInt(10)}
	r := &fakeReader{cancel: cancel, msgs: []kafka.Message{msg(t, 4, ev)}}
	dlq := &fakeWriter{}
	eng := &scriptedEngine{errs: []error{domain.ErrConflict, errors.New("conn reset")}}
	p, stats := newProcessor(r, eng, dlq)

	_ = p.Run(ctx)

	assert.Equal(t, 3, eng.calls)
	assert.Equal(t, 2, stats["error:retry"])
	assert.Equal(t, 1, stats["applied"])
	assert.Empty(t, dlq.msgs)
	assert.Equal(t, []int64{4}, r.committed)
}

func TestProcessor_RetriesExhaustedGoesToDLQ(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ev := events.BetPlaced{BetRequestID: "b1", UserID: "u1", JackpotID: "jp", BetAmount: decimal.NewFromInt(10)}
	r := &fakeReader{cancel: cancel, msgs: []kafka.Message{msg(t, 5, ev)}}
	dlq := &fakeWriter{}
	boom := errors.New("db down")
	eng := &scriptedEngine{errs: []error{boom, boom, boom, boom}}
	p, stats := newProcessor(r, eng, dlq)

	_ = p.Run(ctx)

	assert.Equal(t, 3, eng.calls) // 1 + MaxRetries
	require.Len(t, dlq.msgs, 1)
	assert.Equal(t, "process", header(dlq.msgs[0], "x-stage"))
	assert.Equal(t, 1, stats["error:process"])
	assert.Equal(t, []int64{5}, r.committed)
}

func TestProcessor_DLQFailureKeepsOffsetUncommitted(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ev := events.BetPlaced{BetRequestID: "b1", UserID: "u1", JackpotID: "gone", BetAmount: decimal.NewFromInt(10)}
	r := &fakeReader{cancel: cancel, msgs: []kafka.Message{msg(t, 7, ev), msg(t, 8, ev)}}
	// DLQ fora do ar até o processo ser encerrado
	dlq := &fakeWriter{failures: -1, onFail: func(calls int) {
		if calls == 3 {
			cancel()
		}
	}}
	eng := &scriptedEngine{errs: []error{domain.ErrJackpotNotFound}}
	p, stats := newProcessor(r, eng, dlq)

	err := p.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	assert.Empty(t, r.committed)
	assert.Empty(t, dlq.msgs)
	assert.GreaterOrEqual(t, stats["error:dlq"], 2)
	// a mensagem seguinte nem chegou a ser lida
	assert.Len(t, r.msgs, 1)
}

func TestProcessor_DLQRecoversThenCommits(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bad := kafka.Message{Topic: "jackpot-bets", Offset: 9, Value: []byte("garbage")}
	r := &fakeReader{cancel: cancel, msgs: []kafka.Message{bad}}
	dlq := &fakeWriter{failures: 2}
	p, stats := newProcessor(r, &scriptedEngine{}, dlq)

	_ = p.Run(ctx)

	assert.Equal(t, 3, dlq.calls)
	require.Len(t, dlq.msgs, 1)
	assert.Equal(t, "decode", header(dlq.msgs[0], "x-stage"))
	assert.Equal(t, 2, stats["error:dlq"])
	assert.Equal(t, []int64{9}, r.committed)
}

func TestProcessor_RequiresDLQ(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ev := events.BetPlaced{BetRequestID: "b1", UserID: "u1", JackpotID: "gone", BetAmount: decimal.NewFromInt(10)}
	r := &fakeReader{cancel: cancel, msgs: []kafka.Message{msg(t, 8, ev)}}
	p, _ := newProcessor(r, &scriptedEngine{errs: []error{domain.ErrJackpotNotFound}}, nil)
	p.DLQ = nil

	err := p.Run(ctx)
	assert.ErrorIs(t, err, ErrNoDLQ)
	assert.Empty(t, r.committed)
	assert.Len(t, r.msgs, 1)
}
