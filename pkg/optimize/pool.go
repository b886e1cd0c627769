package optimize

import (
	"bytes"
	"sync"
)

// BufferPool recycles encoding buffers for outbound frames.
type BufferPool struct {
	pool    sync.Pool
	maxSize int
}

// NewBufferPool returns a pool that drops buffers grown beyond maxSize
// instead of keeping them alive.
func NewBufferPool(maxSize int) *BufferPool {
	return &BufferPool{
		maxSize: maxSize,
		pool: sync.Pool{
			New: func() interface{} {
				return new(bytes.Buffer)
			},
		},
	}
}

func (p *BufferPool) Get() *bytes.Buffer {
	return p.pool.Get().(*bytes.Buffer)
}

func (p *BufferPool) Put(b *bytes.Buffer) {
	if b == nil || (p.maxSize > 0 && b.Cap() > p.maxSize) {
		return
	}
	b.Reset()
	p.pool.Put(b)
}
