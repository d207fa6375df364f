package laika

/*------------------------------------------------------------------
 *
 * Purpose:	Fixed-capacity byte FIFO shared between the serial
 *		interrupt context and the foreground control loop.
 *
 * Description:	Single producer, single consumer.  The insert cursor
 *		is written only by the producer role and the remove
 *		cursor only by the consumer role, which is what makes
 *		the buffer safe without a lock; the cursors are atomics
 *		so the publish of a written byte is ordered before the
 *		cursor advance becomes visible to the other side.
 *
 *		One byte of capacity is sacrificed to tell full apart
 *		from empty: the buffer is full when the next insert
 *		position would land on the remove cursor.
 *
 *		Nothing here blocks or allocates.  A push into a full
 *		buffer drops the byte and bumps a saturating overflow
 *		counter, because the radio side cannot afford to wait
 *		for the host to drain.
 *
 *---------------------------------------------------------------*/

import "sync/atomic"

type RingBuffer struct {
	buf      []byte
	insert   atomic.Uint32 // producer-owned
	remove   atomic.Uint32 // consumer-owned
	guard    *InterruptGuard
	overflow *SatCounter
}

// NewRingBuffer allocates a buffer able to hold capacity-1 bytes.
// guard protects cross-cursor operations (Reset); overflow counts
// dropped bytes and may be shared with other buffers' statistics.
func NewRingBuffer(capacity int, guard *InterruptGuard, overflow *SatCounter) *RingBuffer {
	if capacity < 2 {
		capacity = 2
	}
	return &RingBuffer{
		buf:      make([]byte, capacity),
		guard:    guard,
		overflow: overflow,
	}
}

func (b *RingBuffer) Capacity() int {
	return len(b.buf)
}

func (b *RingBuffer) next(cursor uint32) uint32 {
	cursor++
	if cursor == uint32(len(b.buf)) {
		return 0
	}
	return cursor
}

// Used returns the number of bytes currently queued.
func (b *RingBuffer) Used() int {
	var i = b.insert.Load()
	var r = b.remove.Load()
	if i >= r {
		return int(i - r)
	}
	return len(b.buf) - int(r) + int(i)
}

// Free returns how many more bytes TryPush will accept.
func (b *RingBuffer) Free() int {
	return len(b.buf) - 1 - b.Used()
}

// TryPush appends one byte.  Producer role only.  Returns false (and
// counts the drop) if the buffer is full; never blocks, never grows.
func (b *RingBuffer) TryPush(c byte) bool {
	var i = b.insert.Load()
	var n = b.next(i)
	if n == b.remove.Load() {
		b.overflow.Increment()
		return false
	}
	b.buf[i] = c
	b.insert.Store(n)
	return true
}

// TryPop removes one byte.  Consumer role only.
func (b *RingBuffer) TryPop() (byte, bool) {
	var r = b.remove.Load()
	if r == b.insert.Load() {
		return 0, false
	}
	var c = b.buf[r]
	b.remove.Store(b.next(r))
	return c, true
}

// Peek returns the byte at offset positions past the remove cursor
// without consuming it.  Consumer role only.
func (b *RingBuffer) Peek(offset int) (byte, bool) {
	if offset < 0 || offset >= b.Used() {
		return 0, false
	}
	var r = int(b.remove.Load())
	return b.buf[(r+offset)%len(b.buf)], true
}

// PushSlice appends as much of p as fits, in at most two contiguous
// copies around the wrap point, and returns the number of bytes
// accepted.  Bytes that do not fit are dropped and the overflow
// counter is bumped once, the same policy the firmware uses when
// writing a decoded packet toward a slow host.
func (b *RingBuffer) PushSlice(p []byte) int {
	var count = len(p)
	var space = b.Free()
	if count > space {
		count = space
		b.overflow.Increment()
	}
	if count == 0 {
		return 0
	}

	var i = int(b.insert.Load())

	// Copy to the end of the backing array, then wrap for the rest.
	var n1 = count
	if n1 > len(b.buf)-i {
		n1 = len(b.buf) - i
	}
	copy(b.buf[i:], p[:n1])
	if count > n1 {
		copy(b.buf, p[n1:count])
	}

	b.insert.Store(uint32((i + count) % len(b.buf)))
	return count
}

// PopInto fills p with up to len(p) queued bytes and returns how many
// were copied.  Consumer role only.
func (b *RingBuffer) PopInto(p []byte) int {
	var count = len(p)
	var avail = b.Used()
	if count > avail {
		count = avail
	}
	if count == 0 {
		return 0
	}

	var r = int(b.remove.Load())

	var n1 = count
	if n1 > len(b.buf)-r {
		n1 = len(b.buf) - r
	}
	copy(p[:n1], b.buf[r:r+n1])
	if count > n1 {
		copy(p[n1:count], b.buf)
	}

	b.remove.Store(uint32((r + count) % len(b.buf)))
	return count
}

// Reset zeroes both cursors, discarding contents.  This touches the
// cursor of both roles so it runs under the interrupt guard.
func (b *RingBuffer) Reset() {
	defer b.guard.Block()()
	b.insert.Store(0)
	b.remove.Store(0)
}
