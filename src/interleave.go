package laika

/*------------------------------------------------------------------
 *
 * Purpose:	Bit interleaving for FEC-coded radio blocks.
 *
 * Description:	A noise burst on air corrupts a run of adjacent bits.
 *		The block code downstream corrects byte errors, so a
 *		burst is cheapest to repair when its bits land in many
 *		different bytes rather than clustering in a few.  The
 *		interleaver scatters logical bit i of an n-byte block to
 *		physical position
 *
 *			(i * stride) mod (n * 8)
 *
 *		with one stride per supported block size, chosen offline
 *		so that the mapping is a bijection (stride coprime with
 *		n*8) and short bursts spread as widely as possible.
 *		De-interleaving walks the same mapping in the other
 *		direction.
 *
 *		Block sizes are multiples of 3 bytes from 3 to 255,
 *		matching the sizing granularity of the coded frames.
 *		Anything else is rejected up front; a wrong stride would
 *		corrupt data silently, which is far worse than an error.
 *
 *---------------------------------------------------------------*/

// interleaveStride holds one stride per 3-byte block-size step.  Index
// k serves blocks of n = 3*k bytes.  Entry 0 is a placeholder; there is
// no zero-byte block.
var interleaveStride = [86]uint16{
	0, 5, 7, 11, 13, 37, 19, 65, // n=0..21
	29, 83, 37, 35, 89, 67, 103, 83, // n=24..45
	59, 157, 199, 175, 103, 155, 203, 127, // n=48..69
	221, 277, 83, 149, 103, 107, 277, 343, // n=72..93
	295, 365, 125, 323, 199, 341, 281, 71, // n=96..117
	221, 151, 155, 397, 487, 83, 509, 173, // n=120..141
	443, 271, 461, 377, 95, 293, 199, 203, // n=144..165
	517, 631, 535, 653, 221, 563, 343, 349, // n=168..189
	473, 119, 365, 247, 251, 637, 517, 655, // n=192..213
	797, 269, 683, 277, 701, 569, 287, 437, // n=216..237
	443, 299, 757, 919, 775, 941, // n=240..255
}

// strideFor validates the block size and returns its stride.
func strideFor(n int) (int, error) {
	if n <= 0 || n > 255 || n%3 != 0 {
		return 0, ErrInvalidBlockSize
	}
	return int(interleaveStride[n/3]), nil
}

func interleaveGetBit(buf []byte, physical int) byte {
	return (buf[physical>>3] >> (physical & 7)) & 1
}

func interleaveSetBit(buf []byte, physical int, bit byte) {
	var mask = byte(1) << (physical & 7)
	if bit != 0 {
		buf[physical>>3] |= mask
	} else {
		buf[physical>>3] &^= mask
	}
}

// InterleaveSetByte writes logical byte position pos of an n-byte
// block, scattering its eight bits to their physical positions in buf.
func InterleaveSetByte(buf []byte, n int, pos int, c byte) error {
	var stride, err = strideFor(n)
	if err != nil {
		return err
	}
	var nbits = n * 8
	for i := 0; i < 8; i++ {
		var physical = ((pos*8 + i) * stride) % nbits
		interleaveSetBit(buf, physical, (c>>i)&1)
	}
	return nil
}

// InterleaveGetByte gathers logical byte position pos back out of the
// scattered physical positions in buf.
func InterleaveGetByte(buf []byte, n int, pos int) (byte, error) {
	var stride, err = strideFor(n)
	if err != nil {
		return 0, err
	}
	var nbits = n * 8
	var c byte
	for i := 0; i < 8; i++ {
		var physical = ((pos*8 + i) * stride) % nbits
		c |= interleaveGetBit(buf, physical) << i
	}
	return c, nil
}

// InterleaveBlock scatters src into a freshly allocated block of the
// same size.  len(src) must be a supported block size.
func InterleaveBlock(src []byte) ([]byte, error) {
	var n = len(src)
	if _, err := strideFor(n); err != nil {
		return nil, err
	}
	var out = make([]byte, n)
	for pos := 0; pos < n; pos++ {
		InterleaveSetByte(out, n, pos, src[pos])
	}
	return out, nil
}

// DeinterleaveBlock is the inverse of InterleaveBlock.
func DeinterleaveBlock(src []byte) ([]byte, error) {
	var n = len(src)
	if _, err := strideFor(n); err != nil {
		return nil, err
	}
	var out = make([]byte, n)
	for pos := 0; pos < n; pos++ {
		var c, _ = InterleaveGetByte(src, n, pos)
		out[pos] = c
	}
	return out, nil
}
