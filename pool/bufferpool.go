// File: pool/bufferpool.go
// Author: momentics <momentics@gmail.com>
//
// BufferPool buckets allocations into power-of-two size classes, each
// backed by its own sync.Pool, and tracks allocation/reuse counts with
// atomics so Stats() never contends with Get/Put.

package pool

import (
	"sync"
	"sync/atomic"

	"github.com/momentics/deskstream-ws/api"
)

const (
	minClassShift = 7  // 128 bytes
	maxClassShift = 20 // 1 MiB
)

// BufferPool is a size-classed buffer pool. A buffer goes back to the
// pool on its first Release; later Release calls are no-ops.
type BufferPool struct {
	classes [maxClassShift - minClassShift + 1]sync.Pool

	totalAlloc int64
	totalFree  int64
	inUse      int64
}

// NewBufferPool constructs an empty BufferPool.
func NewBufferPool() *BufferPool {
	p := &BufferPool{}
	for i := range p.classes {
		shift := minClassShift + i
		size := 1 << uint(shift)
		p.classes[i].New = func() any {
			return make([]byte, size)
		}
	}
	return p
}

func classIndex(size int) int {
	shift := minClassShift
	for (1 << uint(shift)) < size {
		shift++
	}
	if shift > maxClassShift {
		shift = maxClassShift
	}
	return shift - minClassShift
}

// Get returns a Buffer with capacity at least size.
func (p *BufferPool) Get(size int) api.Buffer {
	idx := classIndex(size)
	raw := p.classes[idx].Get().([]byte)
	if cap(raw) < size {
		raw = make([]byte, size)
	}
	atomic.AddInt64(&p.totalAlloc, 1)
	atomic.AddInt64(&p.inUse, 1)
	return &pooledBuffer{pool: p, class: idx, data: raw[:size]}
}

// Put returns buffer to the pool; further use of buffer is invalid.
func (p *BufferPool) Put(b api.Buffer) {
	b.Release()
}

// Stats reports current allocation counters.
func (p *BufferPool) Stats() api.BufferPoolStats {
	return api.BufferPoolStats{
		TotalAlloc: atomic.LoadInt64(&p.totalAlloc),
		TotalFree:  atomic.LoadInt64(&p.totalFree),
		InUse:      atomic.LoadInt64(&p.inUse),
	}
}

type pooledBuffer struct {
	pool     *BufferPool
	class    int
	data     []byte
	released bool
}

func (b *pooledBuffer) Bytes() []byte { return b.data }

func (b *pooledBuffer) Slice(from, to int) api.Buffer {
	return &subBuffer{parent: b, data: b.data[from:to]}
}

func (b *pooledBuffer) Copy() []byte {
	out := make([]byte, len(b.data))
	copy(out, b.data)
	return out
}

func (b *pooledBuffer) Release() {
	if b.released {
		return
	}
	b.released = true
	b.pool.classes[b.class].Put(b.data[:cap(b.data)])
	atomic.AddInt64(&b.pool.totalFree, 1)
	atomic.AddInt64(&b.pool.inUse, -1)
}

// subBuffer is a zero-copy view into a pooledBuffer. Release is a no-op:
// only releasing the parent returns memory to the pool, avoiding a
// double-free race between a slice and its parent.
type subBuffer struct {
	parent *pooledBuffer
	data   []byte
}

func (s *subBuffer) Bytes() []byte                { return s.data }
func (s *subBuffer) Slice(from, to int) api.Buffer { return &subBuffer{parent: s.parent, data: s.data[from:to]} }
func (s *subBuffer) Copy() []byte {
	out := make([]byte, len(s.data))
	copy(out, s.data)
	return out
}
func (s *subBuffer) Release() {}
