package payments

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWithLockSerializes(t *testing.T) {
	m := NewLockManager()
	var inside, maxInside int
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := m.WithLock("checkout-1", time.Second, func() error {
				mu.Lock()
				inside++
				if inside > maxInside {
					maxInside = inside
				}
				mu.Unlock()
				time.Sleep(5 * time.Millisecond)
				mu.Lock()
				inside--
				mu.Unlock()
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, maxInside, "two holders inside the same lock")
}

func TestWithLockTimeout(t *testing.T) {
	m := NewLockManager()
	started := make(chan struct{})
	release := make(chan struct{})
	go func() {
		m.WithLock("checkout-2", time.Second, func() error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started
	err := m.WithLock("checkout-2", 50*time.Millisecond, func() error { return nil })
	assert.ErrorIs(t, err, ErrLockTimeout)
	close(release)
}

func TestWithLockIndependentKeys(t *testing.T) {
	m := NewLockManager()
	started := make(chan struct{})
	release := make(chan struct{})
	go func() {
		m.WithLock("checkout-3", time.Second, func() error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started
	err := m.WithLock("checkout-4", 50*time.Millisecond, func() error { return nil })
	assert.NoError(t, err, "unrelated key should not block")
	close(release)
}

func TestLockEntryCleanedUp(t *testing.T) {
	m := NewLockManager()
	err := m.WithLock("checkout-5", time.Second, func() error { return nil })
	assert.NoError(t, err)
	m.mu.Lock()
	defer m.mu.Unlock()
	assert.Empty(t, m.locks, "released lock entries should be removed")
}
