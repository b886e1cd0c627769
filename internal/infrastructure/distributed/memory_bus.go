package distributed

import (
	"context"
	"path"
	"sync"
)

type memorySub struct {
	pattern string
	handler func(channel string, payload []byte)
}

// MemoryBus delivers synchronously within one process. Patterns use
// path.Match syntax, which covers the "chat.room.*" form.
type MemoryBus struct {
	mu   sync.RWMutex
	subs map[int]memorySub
	next int
}

func NewMemoryBus() *MemoryBus {
	return &MemoryBus{subs: make(map[int]memorySub)}
}

func (b *MemoryBus) Publish(ctx context.Context, channel string, payload []byte) error {
	b.mu.RLock()
	targets := make([]memorySub, 0, len(b.subs))
	for _, s := range b.subs {
		targets = append(targets, s)
	}
	b.mu.RUnlock()

	for _, s := range targets {
		if ok, _ := path.Match(s.pattern, channel); ok {
			s.handler(channel, payload)
		}
	}
	return nil
}

func (b *MemoryBus) Subscribe(ctx context.Context, pattern string, handler func(channel string, payload []byte)) error {
	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = memorySub{pattern: pattern, handler: handler}
	b.mu.Unlock()

	<-ctx.Done()

	b.mu.Lock()
	delete(b.subs, id)
	b.mu.Unlock()
	return ctx.Err()
}

// Subscribers reports how many subscriptions are live.
func (b *MemoryBus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

func (b *MemoryBus) Close() error {
	return nil
}
