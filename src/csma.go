package laika

/*------------------------------------------------------------------
 *
 * Purpose:	Channel access scheduler: carrier sense, transmit
 *		slotting, duty cycle and backoff.
 *
 * Description:	The scheduler is a tick-driven state machine with
 *		three states:
 *
 *		    LISTEN          - watching the channel, counting
 *		                      consecutive clear ticks
 *		    TRANSMIT_WINDOW - this tick may transmit
 *		    BACKOFF         - lost the channel, waiting a
 *		                      randomized number of ticks
 *
 *		A transmit opportunity requires all of: a frame waiting,
 *		the channel clear for a minimum run of ticks (with the
 *		optional RSSI listen-before-talk threshold), the node's
 *		slot in the TDM rotation if slotting is enabled, and
 *		headroom left in the duty-cycle window.  Losing the
 *		channel while waiting triggers a randomized backoff so
 *		two nodes that collided do not collide again in
 *		lockstep.
 *
 *		All scheduler state belongs to the foreground tick
 *		context.  The only cross-context inputs are the one-shot
 *		heartbeat request flag, which is an atomic so the serial
 *		interrupt can set it, and the host link, which manages
 *		its own safety.
 *
 *---------------------------------------------------------------*/

import (
	"encoding/binary"
	"math/rand"
	"sync/atomic"

	"github.com/charmbracelet/log"
)

type schedulerState int

const (
	stateListen schedulerState = iota
	stateTransmitWindow
	stateBackoff
)

const (
	// ticksPerSlot is the width of one TDM slot.
	ticksPerSlot = 4

	// minClearTicks is how many consecutive clear ticks the channel
	// must show before a transmission may start.
	minClearTicks = 2

	// dutyWindowTicks is the accounting window for the duty-cycle
	// budget; transmit tick counts reset when it rolls over.
	dutyWindowTicks = 200

	// airBytesPerTick sizes the per-frame airtime cost: how many
	// coded bytes the radio moves in one tick.
	airBytesPerTick = 256
)

// HostLink is the serial side as the scheduler sees it: a source of
// outbound payloads and a sink for decoded inbound ones.
type HostLink interface {
	// PollOutbound returns the next payload ready for the air, or
	// nil.  A returned payload is consumed.
	PollOutbound() []byte

	// AcceptInbound hands a decoded payload toward the host.
	AcceptInbound(payload []byte)
}

// Scheduler owns channel access for one node.
type Scheduler struct {
	params     Params
	radio      Radio
	framer     *Framer
	link       HostLink
	dispatcher Dispatcher
	counts     *ErrorCounts
	logger     *log.Logger

	state      schedulerState
	tick       uint32
	clearTicks int
	txTicks    int
	backoff    int
	rng        *rand.Rand

	seq          byte
	pending      *Packet
	pendingReply *Packet
	lastRSSI     uint8
	lastSlot     int

	heartbeatReq atomic.Bool
}

func NewScheduler(params Params, radio Radio, framer *Framer, link HostLink, dispatcher Dispatcher, counts *ErrorCounts, logger *log.Logger) *Scheduler {
	params.Clamp()
	// Seeding from the node's identity keeps backoff sequences
	// distinct between nodes but reproducible for one node.
	var seed = int64(params.NetworkID)<<8 | int64(params.NodeID)
	return &Scheduler{
		params:     params,
		radio:      radio,
		framer:     framer,
		link:       link,
		dispatcher: dispatcher,
		counts:     counts,
		logger:     logger,
		rng:        rand.New(rand.NewSource(seed)),
		lastSlot:   -1,
	}
}

// RequestHeartbeat arms the one-shot heartbeat flag.  Safe from any
// context; the report goes out at the next transmit opportunity.
func (s *Scheduler) RequestHeartbeat() {
	s.heartbeatReq.Store(true)
}

// CancelHeartbeat disarms a pending heartbeat request.
func (s *Scheduler) CancelHeartbeat() {
	s.heartbeatReq.Store(false)
}

// UpdateParams replaces the runtime parameters, clamped.
func (s *Scheduler) UpdateParams(p Params) {
	p.Clamp()
	s.params = p
}

// Tick advances the scheduler by one time step.  Foreground only.
func (s *Scheduler) Tick() {
	s.tick++
	if s.tick%dutyWindowTicks == 0 {
		s.txTicks = 0
	}
	s.followSlotChannel()

	s.pollReceive()
	s.fillPending()

	switch s.state {
	case stateListen:
		s.tickListen()
	case stateTransmitWindow:
		s.tickTransmit()
	case stateBackoff:
		s.backoff--
		if s.backoff <= 0 {
			s.state = stateListen
			s.clearTicks = 0
		}
	}
}

// pollReceive pulls at most one block per tick off the radio and
// routes the decoded packet.
func (s *Scheduler) pollReceive() {
	var block = s.radio.ReceiveNonblocking()
	if block == nil {
		return
	}

	var p, corrected, err = s.framer.Deframe(block)
	if corrected > 0 {
		s.counts.CorrectedBlocks.Increment()
	}
	if err != nil {
		// Beyond the correction radius.  Counted and dropped;
		// recovery is the sender's retransmission problem, not
		// ours.
		s.counts.Uncorrectable.Increment()
		s.logger.Debug("discarding uncorrectable block")
		return
	}

	if p.NetworkID != s.params.NetworkID {
		s.logger.Debug("ignoring frame from foreign network",
			"network", p.NetworkID)
		return
	}

	switch p.Type {
	case PacketData:
		s.link.AcceptInbound(p.Payload)

	case PacketHeartbeat:
		if report, err := DecodeTimingReport(p.Payload); err == nil {
			s.logger.Info("peer heartbeat",
				"node", p.NodeID,
				"tick", report.Tick,
				"duty", report.DutyUsed,
				"rssi", report.LastRSSI)
		}

	case PacketRemoteAT:
		if s.dispatcher == nil {
			return
		}
		var reply = s.dispatcher.Dispatch(p.Payload)
		if reply == nil {
			return
		}
		// The reply gets its own slot so a frame already waiting
		// for the channel does not cost us the answer.  One deep;
		// a newer reply supersedes an unsent one.
		s.pendingReply = s.buildPacket(PacketRemoteATReply, reply)

	case PacketRemoteATReply:
		// Replies surface on the host serial stream.
		s.link.AcceptInbound(p.Payload)

	default:
		s.logger.Debug("ignoring unknown packet type", "type", p.Type)
	}
}

// fillPending loads the next outbound frame if the single transmit
// queue position is open.  Command replies and a requested heartbeat
// outrank host data.
func (s *Scheduler) fillPending() {
	if s.pending != nil {
		return
	}

	if s.pendingReply != nil {
		s.pending = s.pendingReply
		s.pendingReply = nil
		return
	}

	if s.heartbeatReq.CompareAndSwap(true, false) {
		s.pending = s.buildPacket(PacketHeartbeat, s.timingReport().Encode())
		return
	}

	var payload = s.link.PollOutbound()
	if payload != nil {
		s.pending = s.buildPacket(PacketData, payload)
	}
}

func (s *Scheduler) buildPacket(t PacketType, payload []byte) *Packet {
	s.seq++
	return &Packet{
		Type:      t,
		NodeID:    s.params.NodeID,
		Seq:       s.seq,
		NetworkID: s.params.NetworkID,
		Payload:   payload,
	}
}

func (s *Scheduler) tickListen() {
	s.lastRSSI = s.radio.ReadRSSI()

	if !s.channelClear() {
		s.clearTicks = 0
		if s.pending != nil {
			// Someone else holds the channel; spread out before
			// trying again rather than pouncing in lockstep.
			s.enterBackoff()
		}
		return
	}

	s.clearTicks++
	if s.pending == nil {
		return
	}
	if s.clearTicks < minClearTicks {
		return
	}
	if !s.slotOpen() {
		return
	}
	if !s.dutyAllows(s.frameCost()) {
		s.enterBackoff()
		return
	}
	s.state = stateTransmitWindow
}

func (s *Scheduler) tickTransmit() {
	s.state = stateListen
	s.clearTicks = 0

	if s.pending == nil {
		return
	}

	var block, err = s.framer.Frame(s.pending)
	if err != nil {
		// Cannot happen for payloads the link layer built, but a
		// frame that will not encode must not wedge the queue.
		s.logger.Error("dropping unframeable packet", "err", err)
		s.pending = nil
		return
	}

	if !s.radio.Transmit(block) {
		// Hardware refused.  The frame stays queued for the next
		// window; hardware trouble is not an airtime expense.
		s.logger.Warn("transmit failed, will retry")
		return
	}

	s.txTicks += s.frameCost()
	s.logger.Debug("transmitted frame",
		"type", s.pending.Type, "seq", s.pending.Seq)
	s.pending = nil
}

// channelClear applies carrier detect plus the optional RSSI
// listen-before-talk threshold.
func (s *Scheduler) channelClear() bool {
	if !s.radio.ChannelClear() {
		return false
	}
	if s.params.LBTRssi != 0 && s.lastRSSI >= s.params.LBTRssi {
		return false
	}
	return true
}

// followSlotChannel retunes the radio as the TDM rotation advances, so
// the whole network hops together.  No-op with slotting disabled.
func (s *Scheduler) followSlotChannel() {
	if s.params.TDMSlots == 0 {
		return
	}
	var current = int((s.tick / ticksPerSlot) % uint32(s.params.TDMSlots))
	if current != s.lastSlot {
		s.lastSlot = current
		s.radio.SetChannel(current)
	}
}

// slotOpen reports whether the current tick falls in this node's TDM
// slot.  The slot index derives from the network id so cooperating
// nodes configured onto different networks interleave instead of
// colliding.
func (s *Scheduler) slotOpen() bool {
	if s.params.TDMSlots == 0 {
		return true
	}
	var slots = uint32(s.params.TDMSlots)
	var current = (s.tick / ticksPerSlot) % slots
	return current == uint32(s.params.NetworkID)%slots
}

// frameCost is the airtime of one frame in ticks.
func (s *Scheduler) frameCost() int {
	return (FECEncodedSize + airBytesPerTick - 1) / airBytesPerTick
}

// dutyAllows checks the transmit budget: spent ticks plus the new
// frame must stay within the configured percentage of the window.
func (s *Scheduler) dutyAllows(cost int) bool {
	if s.params.DutyCycle == 0 {
		return true
	}
	return (s.txTicks+cost)*100 <= int(s.params.DutyCycle)*dutyWindowTicks
}

func (s *Scheduler) enterBackoff() {
	var slots = s.params.TDMSlots
	if slots < 2 {
		slots = 4
	}
	s.backoff = ticksPerSlot * (1 + s.rng.Intn(slots))
	s.state = stateBackoff
}

// Reinit drops in-flight state and returns the machine to LISTEN.
// Parameters, sequence numbering and statistics survive.
func (s *Scheduler) Reinit() {
	s.state = stateListen
	s.clearTicks = 0
	s.txTicks = 0
	s.backoff = 0
	s.pending = nil
	s.pendingReply = nil
	s.heartbeatReq.Store(false)
}

// timingReport snapshots the scheduler for a heartbeat frame.
func (s *Scheduler) timingReport() TimingReport {
	var slot = uint8(0)
	if s.params.TDMSlots != 0 {
		slot = uint8((s.tick / ticksPerSlot) % uint32(s.params.TDMSlots))
	}
	var dutyUsed = uint8(0)
	if s.txTicks > 0 {
		dutyUsed = uint8(s.txTicks * 100 / dutyWindowTicks)
	}
	return TimingReport{
		Tick:             s.tick,
		Slot:             slot,
		DutyUsed:         dutyUsed,
		LastRSSI:         s.lastRSSI,
		SerialRxOverflow: s.counts.SerialRxOverflow.Value(),
		SerialTxOverflow: s.counts.SerialTxOverflow.Value(),
		CorrectedBlocks:  s.counts.CorrectedBlocks.Value(),
		Uncorrectable:    s.counts.Uncorrectable.Value(),
	}
}

// TimingReport is the heartbeat payload: a compact snapshot of link
// timing and error statistics.
type TimingReport struct {
	Tick             uint32
	Slot             uint8
	DutyUsed         uint8
	LastRSSI         uint8
	SerialRxOverflow uint16
	SerialTxOverflow uint16
	CorrectedBlocks  uint16
	Uncorrectable    uint16
}

const timingReportSize = 15

func (r TimingReport) Encode() []byte {
	var out = make([]byte, timingReportSize)
	binary.BigEndian.PutUint32(out[0:4], r.Tick)
	out[4] = r.Slot
	out[5] = r.DutyUsed
	out[6] = r.LastRSSI
	binary.BigEndian.PutUint16(out[7:9], r.SerialRxOverflow)
	binary.BigEndian.PutUint16(out[9:11], r.SerialTxOverflow)
	binary.BigEndian.PutUint16(out[11:13], r.CorrectedBlocks)
	binary.BigEndian.PutUint16(out[13:15], r.Uncorrectable)
	return out
}

func DecodeTimingReport(p []byte) (TimingReport, error) {
	if len(p) < timingReportSize {
		return TimingReport{}, ErrBadHeaderLength
	}
	return TimingReport{
		Tick:             binary.BigEndian.Uint32(p[0:4]),
		Slot:             p[4],
		DutyUsed:         p[5],
		LastRSSI:         p[6],
		SerialRxOverflow: binary.BigEndian.Uint16(p[7:9]),
		SerialTxOverflow: binary.BigEndian.Uint16(p[9:11]),
		CorrectedBlocks:  binary.BigEndian.Uint16(p[11:13]),
		Uncorrectable:    binary.BigEndian.Uint16(p[13:15]),
	}, nil
}
