// Package pool
// Author: momentics <momentics@gmail.com>
//
// A sync.Pool-backed, size-classed BufferPool implementation of
// api.BufferPool. RecvBufAllocator adapts it to channel.ClientHooks'
// AllocRecvBuf/ReleaseRecvBuf pair, so a hooks implementation can embed
// it to back receive buffers with pooled, size-classed allocations
// instead of a fresh make([]byte, n) per inbound message.
package pool
