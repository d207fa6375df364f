package laika

/*------------------------------------------------------------------
 *
 * Purpose:	Saturating error and statistics counters.
 *
 * Description:	Counters are incremented from both the interrupt
 *		context (serial byte handlers) and the foreground
 *		control loop, so they are atomics.  They saturate at
 *		0xFFFF rather than wrapping: a counter that rolls over
 *		to a small number would misreport a badly misbehaving
 *		link as a healthy one.
 *
 *---------------------------------------------------------------*/

import "sync/atomic"

const SatCounterMax = 0xFFFF

// SatCounter is a 16-bit saturating event counter, safe for concurrent
// increment from either execution context.
type SatCounter struct {
	v atomic.Uint32
}

// Increment adds one, sticking at SatCounterMax.
func (c *SatCounter) Increment() {
	for {
		var cur = c.v.Load()
		if cur >= SatCounterMax {
			return
		}
		if c.v.CompareAndSwap(cur, cur+1) {
			return
		}
	}
}

func (c *SatCounter) Value() uint16 {
	return uint16(c.v.Load())
}

func (c *SatCounter) Reset() {
	c.v.Store(0)
}

// ErrorCounts groups the process-wide statistics the external
// observability sink reads.  Matches the error_counts struct kept by
// the serial and packet layers of the firmware this is modeled on.
type ErrorCounts struct {
	SerialRxOverflow SatCounter // host bytes dropped, serial rx ring full
	SerialTxOverflow SatCounter // radio payload bytes dropped, serial tx ring full
	CorrectedBlocks  SatCounter // blocks decoded with one or more corrected errors
	Uncorrectable    SatCounter // blocks discarded, errors beyond the correction radius
}
