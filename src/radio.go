package laika

/*------------------------------------------------------------------
 *
 * Purpose:	Capability interfaces toward the hardware below and the
 *		command interpreter above.
 *
 * Description:	The scheduler never touches a transceiver directly; it
 *		drives whatever implements Radio.  Real hardware, the
 *		UDP air link, and the scripted radios in the tests all
 *		satisfy the same five calls.  None of them may block:
 *		the scheduler runs on a fixed tick and a stalled driver
 *		call would stall the whole link.
 *
 *---------------------------------------------------------------*/

// Radio is the transceiver the scheduler drives.
type Radio interface {
	// ChannelClear reports whether the receiver currently sees an
	// idle channel.
	ChannelClear() bool

	// ReadRSSI returns the current received signal strength, 0 for
	// no signal.
	ReadRSSI() uint8

	// Transmit sends one coded block.  False means the hardware
	// refused or failed the transmission; the caller retries on a
	// later transmit opportunity.
	Transmit(block []byte) bool

	// ReceiveNonblocking returns one received coded block, or nil
	// if nothing has arrived.
	ReceiveNonblocking() []byte

	// SetChannel retunes the transceiver.
	SetChannel(ch int)
}

// Dispatcher executes a remote command payload and returns the reply
// to send back, nil for no reply.  Implemented outside the link layer;
// the scheduler only carries the bytes.
type Dispatcher interface {
	Dispatch(payload []byte) []byte
}
