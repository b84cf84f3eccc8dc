// File: channel/hooks.go
// Author: momentics <momentics@gmail.com>
//
// The per-Channel vtable of hooks a caller must supply, and the
// connect/disconnect/migrate callback trio a Channel dispatches against
// its ChannelClients. Splitting these out mirrors how the frame codec
// separates "what bytes mean" from "how a stream drives them" — here,
// what a message means is the caller's business, how it gets pumped is
// ours.

package channel

import "github.com/momentics/deskstream-ws/api"

// Parser turns a raw inbound byte slice into a caller-defined item and
// reports how many bytes of raw it consumed. Receive calls Parse again on
// the bytes after the consumed ones until the read is used up; it stops at
// the first error or zero consumed count, and the bytes left at that point
// are dropped, not carried over to the next Receive.
type Parser interface {
	Parse(raw []byte) (item any, consumed int, err error)
}

// ClientHooks is the vtable a caller must fully populate before
// constructing a Channel, mirroring the "required field" vtable pattern
// spec section 4.5 calls for. HandleMigrateData is only required when
// the channel's migration flags request a data handoff.
type ClientHooks interface {
	ConfigSocket(rcc *ChannelClient) error
	OnDisconnect(rcc *ChannelClient)
	AllocRecvBuf(size int) api.Buffer
	ReleaseRecvBuf(b api.Buffer)
	HandleMessage(rcc *ChannelClient, raw []byte) error
	HandleParsed(rcc *ChannelClient, item any) error
	SendItem(rcc *ChannelClient, item any) ([]byte, error)
	Parser() Parser
}

// MigrateDataHandler is implemented by ClientHooks that also support
// receiving migration payload for a channel client transitioning in
// from a prior session (spec section 4.7).
type MigrateDataHandler interface {
	HandleMigrateData(rcc *ChannelClient, data []byte) error
}

// ClientHandle is the narrow view of a session-level Client that a
// ChannelClient needs, kept here instead of importing the session
// package to avoid a cycle: session.Client implements this interface
// implicitly.
type ClientHandle interface {
	SeamlessMigrationDoneForChannel() bool
}

// ClientCallbacks are the three connect/disconnect/migrate lifecycle
// callbacks a Channel dispatches. Connect defaults to aborting the
// connection unless the channel is the main channel (IsMain); Disconnect
// defaults to unlinking the client from the channel and invoking
// OnDisconnect; Migrate defaults to a logged no-op.
type ClientCallbacks struct {
	Connect    func(rcc *ChannelClient) error
	Disconnect func(rcc *ChannelClient)
	Migrate    func(rcc *ChannelClient)
}
