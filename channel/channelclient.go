// File: channel/channelclient.go
// Author: momentics <momentics@gmail.com>
//
// ChannelClient is one endpoint's membership in a Channel: the transport
// stream, the outgoing item pipe, and the negotiated capability bits.
// It holds a strong reference to its Channel and a narrow ClientHandle
// back-reference to its owning session Client (spec section 3).

package channel

import (
	"log"

	"github.com/momentics/deskstream-ws/affinity"
	"github.com/momentics/deskstream-ws/api"
	"github.com/momentics/deskstream-ws/wsproto"
)

// ChannelClient binds one connected endpoint to a Channel.
type ChannelClient struct {
	channel *Channel
	client  ClientHandle

	stream    *wsproto.Stream
	transport api.Transport

	pipe *outgoingPipe

	remoteCommonCaps CapSet
	remoteChannelCaps CapSet

	blocking        bool
	noItemBeingSent bool
	destroying      bool
	migrateReady    bool
}

// NewChannelClient constructs a client bound to ch over stream/transport,
// with an empty outgoing pipe and no negotiated remote capabilities yet.
// It configures stream from ch's metrics registry and config store, so a
// Channel built with WithMetrics/WithConfig actually drives the Stream
// it hands out.
func NewChannelClient(ch *Channel, client ClientHandle, stream *wsproto.Stream, transport api.Transport) *ChannelClient {
	if ch != nil {
		if ch.metrics != nil {
			stream.SetMetrics(ch.metrics)
		}
		if ch.cfg != nil {
			stream.SetDrainBudget(ch.cfg.drainBudget())
		}
	}
	return &ChannelClient{
		channel:         ch,
		client:          client,
		stream:          stream,
		transport:       transport,
		pipe:            newOutgoingPipe(),
		noItemBeingSent: true,
	}
}

// Channel returns the owning Channel.
func (rcc *ChannelClient) Channel() *Channel { return rcc.channel }

// Stream returns the underlying framing stream.
func (rcc *ChannelClient) Stream() *wsproto.Stream { return rcc.stream }

// Transport returns the raw transport, for callers that need RawFD.
func (rcc *ChannelClient) Transport() api.Transport { return rcc.transport }

// PipeLen reports the number of items queued for outbound send.
func (rcc *ChannelClient) PipeLen() int { return rcc.pipe.Len() }

// PipeEmpty reports whether the outgoing pipe has drained.
func (rcc *ChannelClient) PipeEmpty() bool { return rcc.pipe.Len() == 0 }

// NoItemBeingSent reports whether this client currently has no item
// mid-flight through Channel.Send/Push, the per-client counterpart to
// Channel.NoItemBeingSent's aggregate query.
func (rcc *ChannelClient) NoItemBeingSent() bool { return rcc.noItemBeingSent }

// Enqueue appends item to the tail of the outgoing pipe.
func (rcc *ChannelClient) Enqueue(item PipeItem) { rcc.pipe.PushBack(item) }

// EnqueueFront pushes item ahead of everything already queued.
func (rcc *ChannelClient) EnqueueFront(item PipeItem) { rcc.pipe.PushFront(item) }

// SetRemoteCommonCap / SetRemoteCap record capabilities the remote peer
// advertised during negotiation, consumed by Channel's TestRemote* ops.
func (rcc *ChannelClient) SetRemoteCommonCap(bit int) { rcc.remoteCommonCaps.Set(bit) }
func (rcc *ChannelClient) SetRemoteCap(bit int)       { rcc.remoteChannelCaps.Set(bit) }

func (rcc *ChannelClient) hasRemoteCommonCap(bit int) bool { return rcc.remoteCommonCaps.Test(bit) }
func (rcc *ChannelClient) hasRemoteCap(bit int) bool       { return rcc.remoteChannelCaps.Test(bit) }

// SetBlocking marks whether the transport is currently backpressured.
func (rcc *ChannelClient) SetBlocking(v bool) { rcc.blocking = v }

// IsBlocking reports whether the outbound transport is backpressured.
func (rcc *ChannelClient) IsBlocking() bool { return rcc.blocking }

// MarkDestroying flags this client as being torn down, so late-arriving
// broadcast fan-out passes skip it.
func (rcc *ChannelClient) MarkDestroying() { rcc.destroying = true }

// Destroying reports whether MarkDestroying has been called.
func (rcc *ChannelClient) Destroying() bool { return rcc.destroying }

// TryBeginMigrateReceive attempts to transition this client into
// awaiting-migration-data state. It succeeds only when the owning
// channel's hooks implement MigrateDataHandler and the channel's
// migration flags request a data handoff (spec section 4.7).
func (rcc *ChannelClient) TryBeginMigrateReceive() bool {
	if rcc.channel == nil || rcc.channel.migrationFlags&MigrationFlagRequiresData == 0 {
		return false
	}
	if _, ok := rcc.channel.hooks.(MigrateDataHandler); !ok {
		return false
	}
	rcc.migrateReady = true
	return true
}

// MigrateReady reports whether TryBeginMigrateReceive has succeeded.
func (rcc *ChannelClient) MigrateReady() bool { return rcc.migrateReady }

// NotifySemiSeamlessMigrationComplete clears any pending migrate-receive
// state for this client, called by the owning Client for every channel
// membership once a semi-seamless target migration finishes (spec
// section 4.7).
func (rcc *ChannelClient) NotifySemiSeamlessMigrationComplete() {
	rcc.migrateReady = false
}

// DeliverMigrateData feeds a migration payload chunk into the channel's
// hooks and, once the handler is satisfied, notifies the owning Client.
func (rcc *ChannelClient) DeliverMigrateData(data []byte) error {
	handler, ok := rcc.channel.hooks.(MigrateDataHandler)
	if !ok {
		return api.NewError(api.ErrCodeNotSupported, "channel: hooks do not implement MigrateDataHandler")
	}
	if err := handler.HandleMigrateData(rcc, data); err != nil {
		return err
	}
	rcc.migrateReady = false
	if rcc.client != nil {
		rcc.client.SeamlessMigrationDoneForChannel()
	}
	return nil
}

// checkThread logs (never panics) when called from a goroutine other
// than the channel's recorded owning thread, per spec section 5's
// "assert, don't crash" tolerance for off-thread iteration.
func (rcc *ChannelClient) checkThread() {
	if rcc.channel == nil {
		return
	}
	if id := affinity.CurrentThreadID(); id != 0 && rcc.channel.threadID != 0 && id != rcc.channel.threadID {
		log.Printf("channel: channel client mutated off owning thread (owner=%d, caller=%d)", rcc.channel.threadID, id)
	}
}
