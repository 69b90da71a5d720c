package concurrency

import (
	"sync"
)

// LockManager guarda um mutex por chave (ex.: jackpotId).
// Quem cria a chave é responsável por chamar Remove quando ela deixa de existir.
type LockManager struct {
	locks sync.Map
}

func NewLockManager() *LockManager {
	return &LockManager{}
}

// GetLock devolve sempre o mesmo mutex para a mesma chave.
func (lm *LockManager) GetLock(key string) *sync.Mutex {
	lock, _ := lm.locks.LoadOrStore(key, &sync.Mutex{})
	return lock.(*sync.Mutex)
}

// WithLock executa fn com o lock da chave.
func (lm *LockManager) WithLock(key string, fn func() error) error {
	mu := lm.GetLock(key)
	mu.Lock()
	defer mu.Unlock()
	return fn()
}

// Remove descarta o mutex da chave. Quem já obteve o mutex continua com ele.
func (lm *LockManager) Remove(key string) {
	lm.locks.Delete(key)
}

// Len conta as chaves registradas.
func (lm *LockManager) Len() int {
	n := 0
	lm.locks.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
