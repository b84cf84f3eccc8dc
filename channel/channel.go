// File: channel/channel.go
// Author: momentics <momentics@gmail.com>
//
// Channel is the fan-out registry for one logical remote-desktop
// virtual channel: a non-owning membership list of ChannelClients plus
// the negotiated common/channel-specific capability bitsets (spec
// section 3, 4.5).

package channel

import (
	"log"

	"github.com/momentics/deskstream-ws/affinity"
	"github.com/momentics/deskstream-ws/control"
)

// Migration flag bits, OR-combined into Channel.migrationFlags.
const (
	MigrationFlagSeamless     uint32 = 1 << iota // channel supports seamless migration
	MigrationFlagRequiresData                    // channel needs a data handoff during migration
)

// Channel is one virtual channel's client registry.
type Channel struct {
	Type uint32
	ID   uint32

	HandleAcks bool
	IsMain     bool

	migrationFlags uint32
	commonCaps     CapSet
	channelCaps    CapSet

	threadID uint64

	hooks     ClientHooks
	callbacks ClientCallbacks

	metrics *control.MetricsRegistry
	cfg     *Options

	clients []*ChannelClient
}

// NewChannel constructs a Channel with a fully populated ClientHooks
// vtable. It panics if a required hook is missing, matching the
// teacher's fail-fast construction-time validation style; a channel
// that isn't wired correctly should never reach the event loop.
func NewChannel(chType, id uint32, hooks ClientHooks, opts ...Option) *Channel {
	if hooks == nil {
		panic("channel: hooks must not be nil")
	}
	o := defaultOptions()
	for _, apply := range opts {
		apply(o)
	}

	ch := &Channel{
		Type:      chType,
		ID:        id,
		IsMain:    o.isMain,
		hooks:     hooks,
		callbacks: o.callbacks,
		metrics:   o.metrics,
		cfg:       o,
		threadID:  affinity.CurrentThreadID(),
	}
	if o.migrationFlags&MigrationFlagRequiresData != 0 {
		if _, ok := hooks.(MigrateDataHandler); !ok {
			panic("channel: migration flag requires a MigrateDataHandler implementation")
		}
	}
	ch.migrationFlags = o.migrationFlags
	if ch.callbacks.Connect == nil && !ch.IsMain {
		ch.callbacks.Connect = defaultConnectAbort
	}
	if ch.callbacks.Disconnect == nil {
		ch.callbacks.Disconnect = ch.defaultDisconnect
	}
	if ch.callbacks.Migrate == nil {
		ch.callbacks.Migrate = defaultMigrateNoop
	}
	return ch
}

func defaultConnectAbort(rcc *ChannelClient) error {
	return errChannelConnectRefused
}

func defaultMigrateNoop(rcc *ChannelClient) {
	log.Printf("channel: no migrate callback configured for channel type=%d id=%d", rcc.channel.Type, rcc.channel.ID)
}

func (ch *Channel) defaultDisconnect(rcc *ChannelClient) {
	ch.Remove(rcc)
	ch.hooks.OnDisconnect(rcc)
}

// Add prepends rcc to the client list (most-recently-connected first),
// matching the teacher's head-insertion registry pattern.
func (ch *Channel) Add(rcc *ChannelClient) {
	ch.checkThread()
	ch.clients = append([]*ChannelClient{rcc}, ch.clients...)
}

// Remove unlinks rcc without releasing it; callers still holding a
// reference remain valid.
func (ch *Channel) Remove(rcc *ChannelClient) {
	ch.checkThread()
	for i, c := range ch.clients {
		if c == rcc {
			ch.clients = append(ch.clients[:i], ch.clients[i+1:]...)
			return
		}
	}
}

// snapshot copies the current client list so broadcast operations can
// tolerate Add/Remove from within a per-client callback (spec section 4.6).
func (ch *Channel) snapshot() []*ChannelClient {
	out := make([]*ChannelClient, len(ch.clients))
	copy(out, ch.clients)
	return out
}

// SetCommonCap / SetCap grow and set a bit in the channel-wide or
// per-channel-type capability bitset.
func (ch *Channel) SetCommonCap(bit int) { ch.commonCaps.Set(bit) }
func (ch *Channel) SetCap(bit int)       { ch.channelCaps.Set(bit) }

// TestRemoteCommonCap reports whether every currently connected client
// advertised bit in its remote common capabilities. Vacuously true when
// there are no clients, matching the empty-AND identity.
func (ch *Channel) TestRemoteCommonCap(bit int) bool {
	for _, c := range ch.clients {
		if !c.hasRemoteCommonCap(bit) {
			return false
		}
	}
	return true
}

// TestRemoteCap is TestRemoteCommonCap's channel-specific counterpart.
func (ch *Channel) TestRemoteCap(bit int) bool {
	for _, c := range ch.clients {
		if !c.hasRemoteCap(bit) {
			return false
		}
	}
	return true
}

// Apply invokes fn for every currently connected client, over a
// snapshot so fn may Add/Remove clients.
func (ch *Channel) Apply(fn func(rcc *ChannelClient)) {
	for _, c := range ch.snapshot() {
		fn(c)
	}
}

// ApplyData is Apply with a caller-supplied context value threaded
// through, avoiding a closure allocation at each call site.
func (ch *Channel) ApplyData(fn func(rcc *ChannelClient, data any), data any) {
	for _, c := range ch.snapshot() {
		fn(c, data)
	}
}

// Connect runs the channel's connect callback for a newly joined client
// and, on success, registers it.
func (ch *Channel) Connect(rcc *ChannelClient) error {
	if ch.callbacks.Connect != nil {
		if err := ch.callbacks.Connect(rcc); err != nil {
			return err
		}
	}
	if err := ch.hooks.ConfigSocket(rcc); err != nil {
		return err
	}
	ch.Add(rcc)
	return nil
}

// Disconnect runs the channel's disconnect callback for rcc.
func (ch *Channel) Disconnect(rcc *ChannelClient) {
	rcc.MarkDestroying()
	ch.callbacks.Disconnect(rcc)
}

// Migrate runs the channel's migrate callback for rcc.
func (ch *Channel) Migrate(rcc *ChannelClient) {
	ch.callbacks.Migrate(rcc)
}

func (ch *Channel) checkThread() {
	if id := affinity.CurrentThreadID(); id != 0 && ch.threadID != 0 && id != ch.threadID {
		log.Printf("channel: registry mutated off owning thread (owner=%d, caller=%d)", ch.threadID, id)
	}
}
