package distributed

import (
	"context"
	"fmt"
	"sync"
	"time"
)

type keySlot struct {
	ch   chan struct{}
	refs int // holders plus waiters
}

// KeyedMutex is the single-process counterpart of RedisLocker. A key's slot
// is dropped once nobody holds or waits on it.
type KeyedMutex struct {
	mu    sync.Mutex
	slots map[string]*keySlot
	wait  time.Duration
}

func NewKeyedMutex(wait time.Duration) *KeyedMutex {
	return &KeyedMutex{slots: make(map[string]*keySlot), wait: wait}
}

func (m *KeyedMutex) acquire(key string) *keySlot {
	m.mu.Lock()
	defer m.mu.Unlock()
	slot, ok := m.slots[key]
	if !ok {
		slot = &keySlot{ch: make(chan struct{}, 1)}
		m.slots[key] = slot
	}
	slot.refs++
	return slot
}

func (m *KeyedMutex) release(key string, slot *keySlot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	slot.refs--
	if slot.refs == 0 {
		delete(m.slots, key)
	}
}

func (m *KeyedMutex) Lock(ctx context.Context, key string) (func(), error) {
	slot := m.acquire(key)
	timer := time.NewTimer(m.wait)
	defer timer.Stop()

	select {
	case slot.ch <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-slot.ch
				m.release(key, slot)
			})
		}, nil
	case <-timer.C:
		m.release(key, slot)
		return nil, fmt.Errorf("%s: %w", key, ErrNotAcquired)
	case <-ctx.Done():
		m.release(key, slot)
		return nil, ctx.Err()
	}
}

// Keys reports how many keys are currently held or awaited.
func (m *KeyedMutex) Keys() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.slots)
}
