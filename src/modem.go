package laika

/*------------------------------------------------------------------
 *
 * Purpose:	Top-level assembly of one modem: rings, bridge, framer
 *		and scheduler wired together, with the two execution
 *		contexts kept honest at the boundary.
 *
 * Description:	Everything below runs in one of two contexts.  The
 *		foreground context is whoever calls Tick, once per time
 *		step.  The interrupt context is whoever feeds
 *		HandleSerialByte and drains DrainHostByte; those entry
 *		points take the interrupt guard briefly so that
 *		foreground operations which must exclude them (ring
 *		resets during reinit) actually can.
 *
 *		Reinit requests can originate in the interrupt context
 *		('!Y' on the escape channel) but reinitialization itself
 *		only ever runs at the top of a tick, where the
 *		foreground owns everything.
 *
 *---------------------------------------------------------------*/

import (
	"fmt"
	"sync/atomic"

	"github.com/charmbracelet/log"
)

const (
	serialRxRingSize = 256
	serialTxRingSize = 512
)

type Modem struct {
	Params Params

	guard  InterruptGuard
	counts ErrorCounts

	rxRing *RingBuffer
	txRing *RingBuffer

	bridge    *SerialBridge
	framer    *Framer
	scheduler *Scheduler

	reinitReq atomic.Bool

	logger *log.Logger
}

// NewModem assembles a modem around the given radio driver.  dispatcher
// may be nil if remote commands are not served.
func NewModem(params Params, radio Radio, dispatcher Dispatcher, logger *log.Logger) (*Modem, error) {
	params.Clamp()

	var codec, err = NewRSCodec()
	if err != nil {
		return nil, fmt.Errorf("assembling modem: %w", err)
	}

	var m = &Modem{
		Params: params,
		framer: NewFramer(codec),
		logger: logger,
	}
	m.rxRing = NewRingBuffer(serialRxRingSize, &m.guard, &m.counts.SerialRxOverflow)
	m.txRing = NewRingBuffer(serialTxRingSize, &m.guard, &m.counts.SerialTxOverflow)
	m.bridge = NewSerialBridge(params, m.rxRing, m.txRing, &m.guard, &m.counts, logger)
	m.scheduler = NewScheduler(params, radio, m.framer, m.bridge, dispatcher, &m.counts, logger)

	m.bridge.OnHeartbeat(m.scheduler.RequestHeartbeat)
	m.bridge.OnReinit(m.RequestReinit)

	return m, nil
}

// Tick advances the modem one time step: service any pending reinit,
// drain the serial side, then run the channel scheduler.  Must be
// called from a single goroutine.
func (m *Modem) Tick() {
	if m.reinitReq.CompareAndSwap(true, false) {
		m.reinit()
	}
	m.bridge.TickDrain()
	m.scheduler.Tick()
}

// HandleSerialByte accepts one byte from the host serial line.
// Interrupt context.
func (m *Modem) HandleSerialByte(c byte) {
	defer m.guard.Block()()
	m.bridge.HandleSerialByte(c)
}

// DrainHostByte supplies the next byte owed to the host serial line.
// Interrupt context.
func (m *Modem) DrainHostByte() (byte, bool) {
	defer m.guard.Block()()
	return m.bridge.DrainHostByte()
}

// SerialHasRoom reports whether the host may keep sending.
func (m *Modem) SerialHasRoom() bool {
	return m.bridge.SerialHasRoom()
}

// RequestHeartbeat arms a one-shot status report transmission.
func (m *Modem) RequestHeartbeat() {
	m.scheduler.RequestHeartbeat()
}

// RequestReinit schedules a reinitialization for the next tick.  Safe
// from any context.
func (m *Modem) RequestReinit() {
	m.reinitReq.Store(true)
}

// SetPeerNoRoom records peer congestion for outbound flow control.
func (m *Modem) SetPeerNoRoom(v bool) {
	m.bridge.SetPeerNoRoom(v)
}

// Counts exposes the statistics counters for the observability sink.
func (m *Modem) Counts() *ErrorCounts {
	return &m.counts
}

func (m *Modem) reinit() {
	m.logger.Info("reinitializing link state")
	m.bridge.Reinit()
	m.scheduler.Reinit()
}
