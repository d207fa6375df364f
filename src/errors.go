package laika

/*------------------------------------------------------------------
 *
 * Purpose:	Error taxonomy for the link engine.
 *
 * Description:	Everything here is a sentinel so callers can test with
 *		errors.Is.  The non-fatal ones (buffer full/empty, busy
 *		channel, exhausted duty cycle) are recovered locally via
 *		counters and retry; ErrInvalidBlockSize indicates a
 *		mismatch between payload sizing and the FEC block table
 *		and is treated as a configuration error, not something
 *		to limp past with corrupted indexing.
 *
 *---------------------------------------------------------------*/

import "errors"

var ErrBufferFull = errors.New("ring buffer full")

var ErrBufferEmpty = errors.New("ring buffer empty")

var ErrFrameUncorrectable = errors.New("frame uncorrectable: errors exceed FEC correction radius")

var ErrChannelBusy = errors.New("channel busy")

var ErrDutyCycleExhausted = errors.New("duty cycle budget exhausted")

var ErrInvalidBlockSize = errors.New("invalid interleave block size")

var ErrPayloadTooLarge = errors.New("payload exceeds maximum packet payload")

var ErrBadHeaderLength = errors.New("header length field exceeds payload capacity")
