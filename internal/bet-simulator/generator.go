package simulator

import (
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/radieske/jackpot-platform-poc/pkg/contracts/events"
)

const recentSize = 50

// Generator produz apostas aleatórias para os jackpots informados.
// Uma fração (dupRatio) reenvia uma aposta recente para exercitar a deduplicação
type Generator struct {
	mu       sync.Mutex
	rnd      *rand.Rand
	jackpots []string
	users    []string
	dupRatio float64
	recent   []events.BetPlaced
	now      func() time.Time
}

func NewGenerator(seed uint64, jackpots []string, users int, dupRatio float64) *Generator {
	if users <= 0 {
		users = 1
	}
	us := make([]string, users)
	for i := range us {
		us[i] = fmt.Sprintf("user-%03d", i+1)
	}
	return &Generator{
		rnd:      rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		jackpots: jackpots,
		users:    us,
		dupRatio: dupRatio,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Next devolve a próxima aposta; dup indica reenvio de uma aposta já gerada
func (g *Generator) Next() (ev events.BetPlaced, dup bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if len(g.recent) > 0 && g.rnd.Float64() < g.dupRatio {
		return g.recent[g.rnd.IntN(len(g.recent))], true
	}

	ev = events.BetPlaced{
		BetRequestID: uuid.NewString(),
		UserID:       g.users[g.rnd.IntN(len(g.users))],
		JackpotID:    g.jackpots[g.rnd.IntN(len(g.jackpots))],
		BetAmount:    decimal.New(int64(100+g.rnd.IntN(9901)), -2), // 1.00 a 100.00
		CreatedAt:    g.now(),
	}

	if len(g.recent) < recentSize {
		g.recent = append(g.recent, ev)
	} else {
		g.recent[g.rnd.IntN(recentSize)] = ev
	}
	return ev, false
}
