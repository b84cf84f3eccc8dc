// File: pool/hooks.go
// Author: momentics <momentics@gmail.com>
//
// RecvBufAllocator adapts a BufferPool's Get/Put pair to the
// AllocRecvBuf/ReleaseRecvBuf shape channel.ClientHooks requires, so a
// caller's hooks implementation can embed it instead of hand-rolling
// per-message allocation.

package pool

import "github.com/momentics/deskstream-ws/api"

// RecvBufAllocator embeds into a channel.ClientHooks implementation to
// back its receive buffers with a size-classed BufferPool.
type RecvBufAllocator struct {
	Pool *BufferPool
}

// AllocRecvBuf satisfies channel.ClientHooks.
func (a RecvBufAllocator) AllocRecvBuf(size int) api.Buffer { return a.Pool.Get(size) }

// ReleaseRecvBuf satisfies channel.ClientHooks.
func (a RecvBufAllocator) ReleaseRecvBuf(b api.Buffer) { a.Pool.Put(b) }
