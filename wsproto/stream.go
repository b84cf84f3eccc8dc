// File: wsproto/stream.go
// Author: momentics <momentics@gmail.com>
//
// Stream is a stateful, non-blocking WebSocket read/write path over an
// injected api.Transport. It has no internal retry or spin loop: transport
// calls that return api.ErrWouldBlock or api.ErrInterrupted simply return
// control to the caller, which is expected to re-invoke Read/Write/Writev
// once the transport is ready again (spec.md sections 4.3, 4.4, 5).

package wsproto

import (
	"log"

	"github.com/momentics/deskstream-ws/api"
	"github.com/momentics/deskstream-ws/control"
)

// Stream encapsulates a full-duplex, server-role WebSocket session over
// a single api.Transport, after a successful handshake.
type Stream struct {
	transport api.Transport
	metrics   *control.MetricsRegistry

	// inbound
	frame   Frame
	discard [256]byte

	// outbound
	outHeader       [MaxHeaderLen]byte
	outHeaderLen    int
	outHeaderPos    int
	writeRemainder  int64
	pendingCloseAck bool

	closed       bool
	closePending bool

	// drainBudget overrides drainOnCloseBudget when positive, letting a
	// caller tune how much of a still-sending peer's tail is discarded.
	drainBudget int
}

// NewStream constructs a Stream over an already-upgraded transport.
func NewStream(t api.Transport) *Stream {
	return &Stream{transport: t}
}

// SetMetrics attaches a metrics registry; nil disables instrumentation.
func (s *Stream) SetMetrics(m *control.MetricsRegistry) { s.metrics = m }

// SetDrainBudget overrides the number of bytes drainOnClose reads in a
// single call; n<=0 restores the default drainOnCloseBudget.
func (s *Stream) SetDrainBudget(n int) { s.drainBudget = n }

// Closed reports whether the stream has fully torn down.
func (s *Stream) Closed() bool { return s.closed }

// Read fills buf with decoded, unmasked application payload bytes. It
// returns the number of bytes delivered, 0 on orderly close, or a
// negative-signalling error otherwise (spec.md section 4.3).
func (s *Stream) Read(buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		if s.closed || s.closePending {
			s.drainOnClose()
			return total, nil
		}

		if !s.frame.Ready() {
			n, err := s.transportRead(s.frame.headerWindow())
			if n > 0 {
				s.frame.advanceHeader(n)
			}
			if err != nil {
				if err == api.ErrTransportEOF {
					continue
				}
				if api.IsRetryable(err) {
					if total > 0 {
						return total, nil
					}
					return total, err
				}
				s.closed = true
				return total, err
			}
			if BytesNeeded(&s.frame) == 0 {
				if perr := ParseHeader(&s.frame); perr != nil {
					s.closed = true
					return total, perr
				}
			}
			continue
		}

		switch s.frame.Opcode {
		case OpcodeClose:
			s.closePending = true
			s.frame.reset()
			s.stageCloseAck()
			_ = s.drivePendingHeader()
			if total > 0 {
				return total, nil
			}
			return 0, nil

		case OpcodeBinary:
			remaining := s.frame.ExpectedLen - s.frame.Relayed
			want := int64(len(buf) - total)
			if want > remaining {
				want = remaining
			}
			if want == 0 {
				s.frame.reset()
				continue
			}
			n, err := s.transportRead(buf[total : total+int(want)])
			if n > 0 {
				ApplyMask(buf[total:total+n], &s.frame)
				total += n
				if s.metrics != nil {
					s.metrics.Add("stream.bytes_received", int64(n))
				}
			}
			if s.frame.Relayed == s.frame.ExpectedLen {
				s.frame.reset()
				if s.metrics != nil {
					s.metrics.Add("stream.frames_received", 1)
				}
			}
			if err != nil {
				if err == api.ErrTransportEOF {
					continue
				}
				if api.IsRetryable(err) {
					if total > 0 {
						return total, nil
					}
					return total, err
				}
				s.closed = true
				return total, err
			}

		default:
			log.Printf("wsproto: discarding frame with opcode %#x", s.frame.Opcode)
			remaining := s.frame.ExpectedLen - s.frame.Relayed
			if remaining == 0 {
				s.frame.reset()
				continue
			}
			want := remaining
			if want > int64(len(s.discard)) {
				want = int64(len(s.discard))
			}
			n, err := s.transportRead(s.discard[:want])
			if n > 0 {
				s.frame.Relayed += int64(n)
			}
			if s.frame.Relayed == s.frame.ExpectedLen {
				s.frame.reset()
			}
			if err != nil {
				if err == api.ErrTransportEOF {
					continue
				}
				if api.IsRetryable(err) {
					if total > 0 {
						return total, nil
					}
					return total, err
				}
				s.closed = true
				return total, err
			}
		}
	}
	return total, nil
}

// Write sends a single application payload as one binary final frame,
// resuming a partially flushed header or payload from a prior call
// (spec.md section 4.4).
func (s *Stream) Write(buf []byte) (int, error) {
	if s.closed {
		return 0, api.ErrBrokenPipe
	}
	if err := s.drivePendingHeader(); err != nil {
		return 0, err
	}
	if s.outHeaderPos < s.outHeaderLen {
		// Header still incomplete; caller must retry without new data.
		return 0, nil
	}

	if s.writeRemainder > 0 {
		n := len(buf)
		if int64(n) > s.writeRemainder {
			n = int(s.writeRemainder)
		}
		written, err := s.transport.Write(buf[:n])
		s.writeRemainder -= int64(written)
		if err != nil && !api.IsRetryable(err) {
			s.closed = true
		}
		return written, err
	}

	if s.closePending && !s.pendingCloseAck {
		s.stageCloseAck()
		if err := s.drivePendingHeader(); err != nil {
			return 0, err
		}
		return 0, nil
	}

	hdr, used := FillOutHeader(int64(len(buf)))
	copy(s.outHeader[:], hdr)
	s.outHeaderLen = used
	s.outHeaderPos = 0
	s.writeRemainder = int64(len(buf))

	if err := s.drivePendingHeader(); err != nil {
		return 0, err
	}
	if s.outHeaderPos < s.outHeaderLen {
		return 0, nil
	}

	n := len(buf)
	if int64(n) > s.writeRemainder {
		n = int(s.writeRemainder)
	}
	written, err := s.transport.Write(buf[:n])
	s.writeRemainder -= int64(written)
	if s.metrics != nil && written > 0 {
		s.metrics.Add("stream.bytes_sent", int64(written))
	}
	if err != nil && !api.IsRetryable(err) {
		s.closed = true
	}
	return written, err
}

// Writev behaves like Write but accepts a scatter list of payload
// segments, prepending the frame header as a synthetic leading iovec so
// the transport issues a single writev syscall (spec.md section 4.4).
func (s *Stream) Writev(iovs [][]byte) (int, error) {
	if s.closed {
		return 0, api.ErrBrokenPipe
	}
	if err := s.drivePendingHeader(); err != nil {
		return 0, err
	}
	if s.outHeaderPos < s.outHeaderLen {
		return 0, nil
	}

	if s.writeRemainder > 0 {
		clipped := make([][]byte, 0, len(iovs))
		left := s.writeRemainder
		for _, iov := range iovs {
			if left == 0 {
				break
			}
			if int64(len(iov)) > left {
				iov = iov[:left]
			}
			clipped = append(clipped, iov)
			left -= int64(len(iov))
		}
		n, err := s.transport.Writev(clipped)
		s.writeRemainder -= int64(n)
		if err != nil && !api.IsRetryable(err) {
			s.closed = true
		}
		return n, err
	}

	if s.closePending && !s.pendingCloseAck {
		s.stageCloseAck()
		if err := s.drivePendingHeader(); err != nil {
			return 0, err
		}
		return 0, nil
	}

	var total int64
	for _, iov := range iovs {
		total += int64(len(iov))
	}
	hdr, used := FillOutHeader(total)
	copy(s.outHeader[:], hdr)
	s.outHeaderLen = used
	s.outHeaderPos = 0
	s.writeRemainder = total

	full := make([][]byte, 0, len(iovs)+1)
	full = append(full, s.outHeader[:used])
	full = append(full, iovs...)

	n, err := s.transport.Writev(full)
	if n <= used {
		s.outHeaderPos = n
		if err != nil && !api.IsRetryable(err) {
			s.closed = true
			return 0, err
		}
		return 0, nil
	}

	s.outHeaderPos = used
	surplus := n - used
	s.writeRemainder -= int64(surplus)
	if s.metrics != nil {
		s.metrics.Add("stream.bytes_sent", int64(surplus))
	}
	if err != nil && !api.IsRetryable(err) {
		s.closed = true
	}
	return surplus, err
}

// drivePendingHeader finishes writing a partially-flushed outgoing
// header (or close acknowledgement) before any further payload leaves.
func (s *Stream) drivePendingHeader() error {
	if s.outHeaderPos >= s.outHeaderLen {
		return nil
	}
	n, err := s.transport.Write(s.outHeader[s.outHeaderPos:s.outHeaderLen])
	s.outHeaderPos += n
	if s.outHeaderPos == s.outHeaderLen && s.pendingCloseAck {
		s.pendingCloseAck = false
		s.closed = true
	}
	if err != nil {
		if api.IsRetryable(err) {
			return nil
		}
		s.closed = true
		return err
	}
	return nil
}

// stageCloseAck queues the exact 2-byte {0x88, 0x00} close acknowledgement
// as the next outgoing header, per spec.md section 6.
func (s *Stream) stageCloseAck() {
	s.outHeader[0] = FinBit | OpcodeClose
	s.outHeader[1] = 0
	s.outHeaderLen = 2
	s.outHeaderPos = 0
	s.writeRemainder = 0
	s.pendingCloseAck = true
}

// drainOnClose reads and discards up to drainOnCloseBudget bytes so a
// half-closed peer that keeps sending cannot livelock the caller's poll
// loop (spec.md section 4.3 step 1).
func (s *Stream) drainOnClose() {
	budget := s.drainBudget
	if budget <= 0 {
		budget = drainOnCloseBudget
	}
	scratch := make([]byte, budget)
	_, _ = s.transport.Read(scratch)
}

// transportRead wraps transport.Read, translating a (0, nil) orderly-EOF
// return into api.ErrTransportEOF and marking the stream closed, per
// spec.md section 7.
func (s *Stream) transportRead(dst []byte) (int, error) {
	if len(dst) == 0 {
		return 0, nil
	}
	n, err := s.transport.Read(dst)
	if err == nil && n == 0 {
		s.closed = true
		return 0, api.ErrTransportEOF
	}
	return n, err
}
