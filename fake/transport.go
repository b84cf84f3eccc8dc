// Package fake
// Author: momentics <momentics@gmail.com>
//
// Fake api.Transport implementation for testing the framing core without
// a real socket. Reads are served from a queue of byte chunks so tests can
// exercise arbitrary fragmentation of the wire representation of a frame;
// writes are recorded so tests can assert on emitted bytes.

package fake

import (
	"sync"

	"github.com/momentics/deskstream-ws/api"
)

// Transport is a fake implementation of api.Transport for testing.
type Transport struct {
	mu sync.Mutex

	recvChunks [][]byte
	recvErr    error
	sent       []byte

	writeErr  error
	writevErr error
	closed    bool

	// maxWriteLen, when non-zero, truncates every Write/Writev call to at
	// most this many bytes, to exercise partial-write resumption.
	maxWriteLen int
}

// NewTransport creates a new fake transport with no queued data.
func NewTransport() *Transport {
	return &Transport{}
}

// QueueRead appends a chunk to be returned by a future Read call.
func (t *Transport) QueueRead(chunk []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	cp := make([]byte, len(chunk))
	copy(cp, chunk)
	t.recvChunks = append(t.recvChunks, cp)
}

// SetRecvError makes every Read after the queued chunks are drained
// return err.
func (t *Transport) SetRecvError(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.recvErr = err
}

// SetMaxWriteLen caps the number of bytes accepted per Write/Writev call.
func (t *Transport) SetMaxWriteLen(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.maxWriteLen = n
}

// Read implements api.Transport.
func (t *Transport) Read(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.recvChunks) == 0 {
		if t.recvErr != nil {
			return 0, t.recvErr
		}
		return 0, api.ErrWouldBlock
	}
	chunk := t.recvChunks[0]
	n := copy(p, chunk)
	if n == len(chunk) {
		t.recvChunks = t.recvChunks[1:]
	} else {
		t.recvChunks[0] = chunk[n:]
	}
	return n, nil
}

// Write implements api.Transport.
func (t *Transport) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.writeErr != nil {
		return 0, t.writeErr
	}
	n := len(p)
	if t.maxWriteLen > 0 && n > t.maxWriteLen {
		n = t.maxWriteLen
	}
	t.sent = append(t.sent, p[:n]...)
	return n, nil
}

// Writev implements api.Transport by concatenating iovs and delegating
// to the same truncation logic as Write.
func (t *Transport) Writev(iovs [][]byte) (int, error) {
	t.mu.Lock()
	if t.writevErr != nil {
		t.mu.Unlock()
		return 0, t.writevErr
	}
	t.mu.Unlock()

	var joined []byte
	for _, iov := range iovs {
		joined = append(joined, iov...)
	}
	return t.Write(joined)
}

// SetWriteError makes future Write calls fail with err.
func (t *Transport) SetWriteError(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.writeErr = err
}

// SetWritevError makes future Writev calls fail with err.
func (t *Transport) SetWritevError(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.writevErr = err
}

// RemainingQueuedBytes sums the length of every chunk still queued for a
// future Read, letting a test verify how much of a queued backlog a
// bounded drain actually consumed.
func (t *Transport) RemainingQueuedBytes() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	total := 0
	for _, chunk := range t.recvChunks {
		total += len(chunk)
	}
	return total
}

// Sent returns a copy of everything written so far.
func (t *Transport) Sent() []byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]byte, len(t.sent))
	copy(out, t.sent)
	return out
}

// Close marks the fake transport closed. It does not itself change Read
// or Write behavior; tests drive that via SetRecvError/SetWriteError.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	return nil
}
