// File: channel/pipe.go
// Author: momentics <momentics@gmail.com>
//
// Per-ChannelClient outgoing item pipe, backed by eapache/queue's ring
// buffer. The queue only supports append-at-tail/remove-at-head; head
// insertion (used to jump a control item, e.g. a migrate-ready marker,
// ahead of already-queued data) is implemented by rebuilding the ring,
// which is fine since head insertion is rare compared to tail pushes.

package channel

import (
	"sync"

	"github.com/eapache/queue"
)

// PipeItem is an opaque unit of outgoing work. Its concrete shape is
// supplied by the ClientHooks.SendItem implementation; the pipe itself
// never inspects it.
type PipeItem any

type outgoingPipe struct {
	mu sync.Mutex
	q  *queue.Queue
}

func newOutgoingPipe() *outgoingPipe {
	return &outgoingPipe{q: queue.New()}
}

func (p *outgoingPipe) PushBack(item PipeItem) {
	p.mu.Lock()
	p.q.Add(item)
	p.mu.Unlock()
}

func (p *outgoingPipe) PushFront(item PipeItem) {
	p.mu.Lock()
	defer p.mu.Unlock()
	old := p.q
	p.q = queue.New()
	p.q.Add(item)
	for old.Length() > 0 {
		p.q.Add(old.Remove())
	}
}

func (p *outgoingPipe) Pop() (PipeItem, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.q.Length() == 0 {
		return nil, false
	}
	return p.q.Remove(), true
}

func (p *outgoingPipe) Peek() (PipeItem, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.q.Length() == 0 {
		return nil, false
	}
	return p.q.Peek(), true
}

func (p *outgoingPipe) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.q.Length()
}
