package payments

import (
	"errors"
	"sync"
	"time"
)

var ErrLockTimeout = errors.New("could not acquire lock for transaction")

// LockManager serializes reconciliation work per checkout reference so a
// callback and a poll for the same payment never interleave. Entries are
// reference-counted and removed once the last holder releases.
type LockManager struct {
	mu    sync.Mutex
	locks map[string]*lockEntry
}

type lockEntry struct {
	ch      chan struct{}
	waiters int
}

func NewLockManager() *LockManager {
	return &LockManager{locks: make(map[string]*lockEntry)}
}

func (m *LockManager) get(key string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.locks[key]
	if !ok {
		e = &lockEntry{ch: make(chan struct{}, 1)}
		e.ch <- struct{}{}
		m.locks[key] = e
	}
	e.waiters++
	return e
}

func (m *LockManager) put(key string, e *lockEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.waiters--
	if e.waiters == 0 {
		delete(m.locks, key)
	}
}

// WithLock runs fn while holding the per-key lock, giving up after timeout.
func (m *LockManager) WithLock(key string, timeout time.Duration, fn func() error) error {
	e := m.get(key)
	defer m.put(key, e)
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-e.ch:
	case <-t.C:
		return ErrLockTimeout
	}
	defer func() { e.ch <- struct{}{} }()
	return fn()
}
