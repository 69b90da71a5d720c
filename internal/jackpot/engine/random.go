package engine

import (
	"math/rand/v2"
	"sync"
)

// RandomSource fornece sorteios uniformes em [0,1).
// Não é criptograficamente seguro.
type RandomSource interface {
	Float64() float64
}

type globalSource struct{}

func (globalSource) Float64() float64 { return rand.Float64() }

// NewRandomSource usa o gerador global do runtime (seguro para uso concorrente).
func NewRandomSource() RandomSource { return globalSource{} }

type seededSource struct {
	mu sync.Mutex
	r  *rand.Rand
}

func (s *seededSource) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.r.Float64()
}

// NewSeededSource gera uma sequência reproduzível a partir da seed.
func NewSeededSource(seed uint64) RandomSource {
	return &seededSource{r: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// FixedSource devolve sempre o mesmo valor. Útil em testes.
type FixedSource float64

func (f FixedSource) Float64() float64 { return float64(f) }

// SeqSource devolve os valores em ordem e repete o último quando acabam.
type SeqSource struct {
	mu     sync.Mutex
	values []float64
	calls  int
}

func NewSeqSource(values ...float64) *SeqSource {
	return &SeqSource{values: values}
}

func (s *SeqSource) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.calls
	s.calls++
	if len(s.values) == 0 {
		return 0
	}
	if i >= len(s.values) {
		i = len(s.values) - 1
	}
	return s.values[i]
}

// Calls informa quantos sorteios já foram consumidos.
func (s *SeqSource) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}
