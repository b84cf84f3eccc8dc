// File: channel/broadcast.go
// Author: momentics <momentics@gmail.com>
//
// Fan-out operations that drive every connected ChannelClient through
// the same receive/send/push cycle, plus the pipe-population and
// aggregate-query helpers spec section 4.6 groups under "broadcast".

package channel

import "github.com/momentics/deskstream-ws/api"

// Receive pumps one Stream.Read cycle per connected client, feeding the
// bytes through the configured Parser (if any) or straight to
// HandleMessage otherwise.
func (ch *Channel) Receive() {
	for _, rcc := range ch.snapshot() {
		if rcc.Destroying() {
			continue
		}
		ch.receiveOne(rcc)
	}
}

func (ch *Channel) receiveOne(rcc *ChannelClient) {
	buf := ch.hooks.AllocRecvBuf(4096)
	defer ch.hooks.ReleaseRecvBuf(buf)

	n, err := rcc.stream.Read(buf.Bytes())
	if n > 0 {
		raw := buf.Bytes()[:n]
		if p := ch.hooks.Parser(); p != nil {
			for len(raw) > 0 {
				item, consumed, perr := p.Parse(raw)
				if perr != nil || consumed == 0 {
					break
				}
				if item != nil {
					_ = ch.hooks.HandleParsed(rcc, item)
				}
				raw = raw[consumed:]
			}
		} else {
			_ = ch.hooks.HandleMessage(rcc, raw)
		}
		if ch.metrics != nil {
			ch.metrics.Add("channel.bytes_received", int64(n))
		}
	}
	if err != nil && !api.IsRetryable(err) {
		rcc.SetBlocking(false)
		ch.Disconnect(rcc)
	}
}

// Send pops one queued item per client and writes its serialized form.
func (ch *Channel) Send() {
	for _, rcc := range ch.snapshot() {
		if rcc.Destroying() {
			continue
		}
		ch.sendOne(rcc)
	}
}

func (ch *Channel) sendOne(rcc *ChannelClient) {
	item, ok := rcc.pipe.Peek()
	if !ok {
		rcc.noItemBeingSent = true
		return
	}
	payload, err := ch.hooks.SendItem(rcc, item)
	if err != nil {
		_, _ = rcc.pipe.Pop()
		rcc.noItemBeingSent = true
		return
	}
	n, werr := rcc.stream.Write(payload)
	if n == len(payload) {
		_, _ = rcc.pipe.Pop()
		rcc.SetBlocking(false)
		rcc.noItemBeingSent = true
	} else {
		rcc.SetBlocking(true)
		rcc.noItemBeingSent = false
	}
	if werr != nil && !api.IsRetryable(werr) {
		ch.Disconnect(rcc)
		return
	}
	if ch.metrics != nil {
		ch.metrics.Add("channel.bytes_sent", int64(n))
	}
}

// Push flushes any client currently backpressured, without dequeuing a
// new item.
func (ch *Channel) Push() {
	for _, rcc := range ch.snapshot() {
		if !rcc.IsBlocking() {
			continue
		}
		ch.sendOne(rcc)
	}
}

// InitOutgoingWindow resets per-client backpressure tracking, called
// after a channel-wide flow control renegotiation.
func (ch *Channel) InitOutgoingWindow() {
	for _, rcc := range ch.clients {
		rcc.SetBlocking(false)
	}
}

// PipesAddType enqueues a bare typed marker item to every client's
// outgoing pipe.
func (ch *Channel) PipesAddType(itemType uint32) {
	for _, rcc := range ch.snapshot() {
		rcc.Enqueue(itemType)
	}
}

// PipesAddEmptyMsg enqueues an empty message of msgType to every client.
func (ch *Channel) PipesAddEmptyMsg(msgType uint32) {
	for _, rcc := range ch.snapshot() {
		rcc.Enqueue(struct{ MsgType uint32 }{MsgType: msgType})
	}
}

// PipesNewAdd invokes creator once per connected client, in list order,
// passing a monotonically increasing index starting at 0. A nil return
// from creator skips that client. head selects front-of-queue insertion
// over the default tail append; pushAfter immediately attempts to flush
// the newly queued item. It returns the number of clients that received
// an item.
func (ch *Channel) PipesNewAdd(creator func(rcc *ChannelClient, idx int) PipeItem, head, pushAfter bool) int {
	count := 0
	for idx, rcc := range ch.snapshot() {
		item := creator(rcc, idx)
		if item == nil {
			continue
		}
		if head {
			rcc.EnqueueFront(item)
		} else {
			rcc.Enqueue(item)
		}
		count++
		if pushAfter {
			ch.sendOne(rcc)
		}
	}
	return count
}

// MaxPipeSize returns the largest outgoing pipe depth across clients.
func (ch *Channel) MaxPipeSize() int {
	max := 0
	for _, rcc := range ch.clients {
		if n := rcc.PipeLen(); n > max {
			max = n
		}
	}
	return max
}

// MinPipeSize returns the smallest outgoing pipe depth, or 0 when there
// are no clients.
func (ch *Channel) MinPipeSize() int {
	if len(ch.clients) == 0 {
		return 0
	}
	min := ch.clients[0].PipeLen()
	for _, rcc := range ch.clients[1:] {
		if n := rcc.PipeLen(); n < min {
			min = n
		}
	}
	return min
}

// SumPipesSize returns the total queued items across every client.
func (ch *Channel) SumPipesSize() int {
	sum := 0
	for _, rcc := range ch.clients {
		sum += rcc.PipeLen()
	}
	return sum
}

// FirstSocket returns the raw file descriptor of the first connected
// client's transport, or -1 if there are no clients or the transport
// does not expose one.
func (ch *Channel) FirstSocket() int64 {
	if len(ch.clients) == 0 {
		return -1
	}
	if rfd, ok := ch.clients[0].Transport().(api.RawFDTransport); ok {
		return int64(rfd.RawFD())
	}
	return -1
}

// AllBlocked reports whether every client is currently backpressured.
// Vacuously true when there are no clients.
func (ch *Channel) AllBlocked() bool {
	for _, rcc := range ch.clients {
		if !rcc.IsBlocking() {
			return false
		}
	}
	return true
}

// AnyBlocked reports whether at least one client is backpressured.
func (ch *Channel) AnyBlocked() bool {
	for _, rcc := range ch.clients {
		if rcc.IsBlocking() {
			return true
		}
	}
	return false
}

// NoItemBeingSent reports whether every client's outgoing pipe is
// currently idle. Vacuously true when there are no clients.
func (ch *Channel) NoItemBeingSent() bool {
	for _, rcc := range ch.clients {
		if !rcc.noItemBeingSent {
			return false
		}
	}
	return true
}
