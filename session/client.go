// File: session/client.go
// Author: momentics <momentics@gmail.com>
//
// Client aggregates every channel.ChannelClient membership belonging to
// one remote-desktop connection and coordinates the seamless and
// semi-seamless migration handshake across them (spec section 4.7).

package session

import (
	"fmt"
	"log"
	"sync"
	"sync/atomic"

	"github.com/momentics/deskstream-ws/affinity"
	"github.com/momentics/deskstream-ws/api"
	"github.com/momentics/deskstream-ws/channel"
)

// Client is the per-connection aggregate root.
type Client struct {
	mu       sync.Mutex
	channels []*channel.ChannelClient

	threadID uint64
	refCount int32

	dispatcher Dispatcher

	duringTargetMigrate bool
	seamlessMigrate     bool
	numMigratedChannels int
}

// NewClient constructs a Client with a starting refcount of 1, owned by
// the caller. dispatcher may be nil, in which case migration-complete
// notifications run synchronously on the calling goroutine.
func NewClient(dispatcher Dispatcher) *Client {
	if dispatcher == nil {
		dispatcher = noopDispatcher{}
	}
	return &Client{
		threadID:   affinity.CurrentThreadID(),
		refCount:   1,
		dispatcher: dispatcher,
	}
}

// Ref increments the strong reference count.
func (c *Client) Ref() { atomic.AddInt32(&c.refCount, 1) }

// Unref decrements the strong reference count and reports whether this
// call dropped it to zero.
func (c *Client) Unref() bool {
	return atomic.AddInt32(&c.refCount, -1) == 0
}

// ThreadID returns the OS thread identifier recorded at construction.
func (c *Client) ThreadID() uint64 { return c.threadID }

// AddChannel registers rcc under this client. If a target migration is
// in progress, it immediately attempts to transition the new channel
// client into awaiting-migration-data state.
func (c *Client) AddChannel(rcc *channel.ChannelClient) {
	c.checkThread()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.channels = append([]*channel.ChannelClient{rcc}, c.channels...)
	if c.duringTargetMigrate && rcc.TryBeginMigrateReceive() {
		c.numMigratedChannels++
	}
}

// GetChannel returns the channel client bound to the given channel
// type/id pair, or nil if this client has no such membership.
func (c *Client) GetChannel(chType, id uint32) *channel.ChannelClient {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, rcc := range c.channels {
		if ch := rcc.Channel(); ch != nil && ch.Type == chType && ch.ID == id {
			return rcc
		}
	}
	return nil
}

// Channels returns a snapshot of the current channel memberships.
func (c *Client) Channels() []*channel.ChannelClient {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*channel.ChannelClient, len(c.channels))
	copy(out, c.channels)
	return out
}

// SetMigrationSeamless marks this client as undergoing a seamless
// (not semi-seamless) target migration and attempts to transition
// every already-registered channel client into migrate-receive state.
func (c *Client) SetMigrationSeamless() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.duringTargetMigrate = true
	c.seamlessMigrate = true
	c.numMigratedChannels = 0
	for _, rcc := range c.channels {
		if rcc.TryBeginMigrateReceive() {
			c.numMigratedChannels++
		}
	}
}

// SemiSeamlessMigrateComplete finalizes a semi-seamless target
// migration. It is a program error to call this while a seamless
// migration is in progress, or when no migration is in progress at
// all; both are reported as errors rather than a hard crash.
func (c *Client) SemiSeamlessMigrateComplete() error {
	c.mu.Lock()
	if !c.duringTargetMigrate || c.seamlessMigrate {
		c.mu.Unlock()
		return api.NewError(api.ErrCodeInternal, "session: SemiSeamlessMigrateComplete called outside a semi-seamless migration")
	}
	c.duringTargetMigrate = false
	c.numMigratedChannels = 0
	for _, rcc := range c.channels {
		rcc.NotifySemiSeamlessMigrationComplete()
	}
	c.mu.Unlock()

	c.dispatcher.Post(func() {})
	return nil
}

// SeamlessMigrationDoneForChannel is called by a ChannelClient once it
// finishes receiving its migration data. It decrements the outstanding
// count and, when every channel has reported completion, clears the
// migration state and notifies the dispatcher. It reports whether this
// call was the one that completed the migration. It satisfies
// channel.ClientHandle.
func (c *Client) SeamlessMigrationDoneForChannel() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.duringTargetMigrate {
		return false
	}
	if c.numMigratedChannels > 0 {
		c.numMigratedChannels--
	}
	if c.numMigratedChannels != 0 {
		return false
	}
	c.duringTargetMigrate = false
	c.seamlessMigrate = false
	c.dispatcher.Post(func() {})
	return true
}

// Migrate runs the owning channel's migrate callback for every channel
// client this client holds.
func (c *Client) Migrate() {
	c.checkThread()
	for _, rcc := range c.Channels() {
		if ch := rcc.Channel(); ch != nil {
			ch.Migrate(rcc)
		}
	}
}

// Destroy disconnects every channel client this client holds, then
// unrefs the client itself (spec section 4.7, "finally, unref the
// client"). It is a fatal assertion (spec section 7's "program
// assertion" error kind) for a channel client to still have queued
// outgoing items, or a send still in flight, at destroy time, since
// either would silently drop data.
func (c *Client) Destroy() {
	c.checkThread()
	for _, rcc := range c.Channels() {
		ch := rcc.Channel()
		if ch == nil {
			continue
		}
		ch.Disconnect(rcc)
		if !rcc.PipeEmpty() {
			panic(fmt.Sprintf("session: channel client destroyed with %d items still queued", rcc.PipeLen()))
		}
		if !rcc.NoItemBeingSent() {
			panic("session: channel client destroyed with a send still in flight")
		}
	}
	c.mu.Lock()
	c.channels = nil
	c.mu.Unlock()

	if c.Unref() {
		log.Printf("session: client fully released")
	}
}

func (c *Client) checkThread() {
	if id := affinity.CurrentThreadID(); id != 0 && c.threadID != 0 && id != c.threadID {
		log.Printf("session: client mutated off owning thread (owner=%d, caller=%d)", c.threadID, id)
	}
}
