package laika

/*------------------------------------------------------------------
 *
 * Purpose:	Bridge between the host serial stream and the radio
 *		packet path.
 *
 * Description:	Two rings meet here.  Host bytes land in the rx ring
 *		from the serial interrupt; the foreground tick drains
 *		them into a payload under construction and promotes it
 *		to "ready" when it fills, when the host pauses for the
 *		configured gap, or on an explicit flush.  Decoded radio
 *		payloads go the other way into the tx ring, from which
 *		the serial transmit side drains them byte by byte.
 *
 *		Exactly one completed payload is held at a time.  While
 *		it waits for the scheduler the drain stops, the rx ring
 *		fills, and SerialHasRoom eventually deasserts toward the
 *		host.  That is the whole back-pressure story; nothing
 *		ever blocks.
 *
 *		An in-band escape character gives the host a command
 *		channel without a second wire: '!' followed by one
 *		command byte.  Escape decoding happens in the interrupt
 *		context as bytes arrive.  Commands that need to touch
 *		foreground-owned state (flush, clear) only set atomic
 *		request flags; the tick services them.
 *
 *---------------------------------------------------------------*/

import (
	"sync/atomic"

	"github.com/charmbracelet/log"
)

const (
	// defaultFlowCredits is how many ready payloads are held back
	// after the peer reports congestion before the bridge resumes
	// sending regardless.  The peer not draining forever must not
	// deadlock the link.
	defaultFlowCredits = 8

	// serialCTSThreshold is the rx headroom in bytes below which
	// the bridge tells the host to stop sending.
	serialCTSThreshold = 17
)

type SerialBridge struct {
	rx     *RingBuffer // host -> air
	tx     *RingBuffer // air -> host
	guard  *InterruptGuard
	counts *ErrorCounts
	logger *log.Logger
	params Params

	// Foreground-owned packetization state.
	building []byte
	ready    []byte
	gap      int
	credits  int

	// Interrupt-owned escape decoder state.
	inEscape bool

	// Cross-context request flags.
	flushReq   atomic.Bool
	clearReq   atomic.Bool
	peerNoRoom atomic.Bool

	heartbeat func()
	reinit    func()
}

func NewSerialBridge(params Params, rx *RingBuffer, tx *RingBuffer, guard *InterruptGuard, counts *ErrorCounts, logger *log.Logger) *SerialBridge {
	params.Clamp()
	return &SerialBridge{
		rx:      rx,
		tx:      tx,
		guard:   guard,
		counts:  counts,
		logger:  logger,
		params:  params,
		credits: defaultFlowCredits,
	}
}

// OnHeartbeat registers the handler for the '!h' escape.  The handler
// runs in the interrupt context and must not block.
func (s *SerialBridge) OnHeartbeat(f func()) {
	s.heartbeat = f
}

// OnReinit registers the handler for the '!Y' escape, same contract.
func (s *SerialBridge) OnReinit(f func()) {
	s.reinit = f
}

/*
 * Interrupt-context entry points.  The caller holds the interrupt
 * guard around each call.
 */

// HandleSerialByte accepts one byte from the host, decoding the escape
// channel inline.  Data bytes that do not fit are dropped and counted.
func (s *SerialBridge) HandleSerialByte(c byte) {
	if s.inEscape {
		s.inEscape = false
		switch c {
		case '!':
			s.flushReq.Store(true)
		case '.':
			s.rx.TryPush('!')
		case 'h':
			if s.heartbeat != nil {
				s.heartbeat()
			}
		case 'C':
			s.clearReq.Store(true)
		case 'V':
			s.tx.TryPush('1')
		case 'Y':
			if s.reinit != nil {
				s.reinit()
			}
		default:
			s.tx.TryPush('E')
		}
		return
	}

	if c == '!' {
		s.inEscape = true
		return
	}
	s.rx.TryPush(c)
}

// DrainHostByte hands the serial transmitter its next byte toward the
// host, if one is queued.
func (s *SerialBridge) DrainHostByte() (byte, bool) {
	return s.tx.TryPop()
}

// SerialHasRoom drives the hardware flow-control line toward the host:
// true while the rx ring has comfortable headroom.
func (s *SerialBridge) SerialHasRoom() bool {
	return s.rx.Free() > serialCTSThreshold
}

/*
 * Foreground entry points.
 */

// TickDrain services escape requests and moves host bytes into the
// payload under construction.  Called once per tick, before the
// scheduler runs.
func (s *SerialBridge) TickDrain() {
	if s.clearReq.CompareAndSwap(true, false) {
		s.building = nil
		s.ready = nil
		s.gap = 0
		s.rx.Reset()
		s.logger.Debug("cleared buffered outbound data")
	}

	var drained = false
	for s.ready == nil && len(s.building) < s.params.MaxPayload {
		var c, ok = s.rx.TryPop()
		if !ok {
			break
		}
		s.building = append(s.building, c)
		drained = true
	}
	if drained {
		s.gap = 0
	} else if len(s.building) > 0 {
		s.gap++
	}

	var flush = s.flushReq.CompareAndSwap(true, false)

	if s.ready != nil || len(s.building) == 0 {
		return
	}
	if len(s.building) >= s.params.MaxPayload ||
		flush ||
		s.gap >= s.params.PacketGapTicks {
		s.ready = s.building
		s.building = nil
		s.gap = 0
	}
}

// PollOutbound returns the completed payload if flow control permits.
// While the peer reports no room, up to defaultFlowCredits payloads
// are held back; after that the bridge sends anyway rather than stall
// forever on a peer that never recovers.
func (s *SerialBridge) PollOutbound() []byte {
	if s.ready == nil {
		return nil
	}

	if s.peerNoRoom.Load() {
		if s.credits > 0 {
			s.credits--
			return nil
		}
	} else {
		s.credits = defaultFlowCredits
	}

	var p = s.ready
	s.ready = nil
	return p
}

// AcceptInbound pushes a decoded payload toward the host.  What does
// not fit in the tx ring is dropped and counted; the radio cannot be
// asked to slow down after the fact.
//
// The tx insert cursor is also written by escape replies from the
// interrupt context, so this producer takes the guard.
func (s *SerialBridge) AcceptInbound(payload []byte) {
	defer s.guard.Block()()
	s.tx.PushSlice(payload)
}

// SetPeerNoRoom records the peer's flow-control state as learned out
// of band (heartbeats, the control surface above us).
func (s *SerialBridge) SetPeerNoRoom(v bool) {
	s.peerNoRoom.Store(v)
}

// Reinit drops all buffered data and packetization state.  Foreground
// only; ring resets exclude the interrupt side via the guard.
func (s *SerialBridge) Reinit() {
	s.building = nil
	s.ready = nil
	s.gap = 0
	s.credits = defaultFlowCredits
	s.inEscape = false
	s.flushReq.Store(false)
	s.clearReq.Store(false)
	s.peerNoRoom.Store(false)
	s.rx.Reset()
	s.tx.Reset()
}
