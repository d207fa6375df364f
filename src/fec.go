package laika

/*------------------------------------------------------------------
 *
 * Purpose:	Forward error correction for radio blocks.
 *
 * Description:	A systematic Reed-Solomon code doubles each 96-byte
 *		block to 192 bytes and corrects up to 48 byte errors at
 *		unknown positions on decode.  The algebra lives in
 *		github.com/vivint/infectious; this file adapts its
 *		share-oriented API to the flat byte blocks the framer
 *		works in, treating each output byte as a one-byte share.
 *
 *		The codec sits behind a small interface so tests can
 *		substitute a pass-through or a deliberately lossy one.
 *
 *---------------------------------------------------------------*/

import (
	"fmt"

	"github.com/vivint/infectious"
)

const (
	// FECDataSize is the number of plaintext bytes per coded block.
	FECDataSize = 96

	// FECEncodedSize is the on-air size of a coded block.
	FECEncodedSize = 192

	// FECCorrectableBytes is the maximum number of corrupted bytes
	// a block can carry and still decode, (N - K) / 2.
	FECCorrectableBytes = (FECEncodedSize - FECDataSize) / 2
)

// FECCodec encodes fixed-size data blocks for transmission and decodes
// received blocks, reporting how many byte errors were repaired.
type FECCodec interface {
	DataSize() int
	EncodedSize() int
	Encode(data []byte) ([]byte, error)

	// Decode returns the recovered data block and the number of
	// byte positions that had to be corrected.  A block with more
	// errors than the code can repair fails with
	// ErrFrameUncorrectable.
	Decode(block []byte) ([]byte, int, error)
}

type rsCodec struct {
	fec *infectious.FEC
}

// NewRSCodec builds the standard 96/192 Reed-Solomon codec.
func NewRSCodec() (FECCodec, error) {
	var fec, err = infectious.NewFEC(FECDataSize, FECEncodedSize)
	if err != nil {
		return nil, fmt.Errorf("building reed-solomon codec: %w", err)
	}
	return &rsCodec{fec: fec}, nil
}

func (c *rsCodec) DataSize() int {
	return FECDataSize
}

func (c *rsCodec) EncodedSize() int {
	return FECEncodedSize
}

func (c *rsCodec) Encode(data []byte) ([]byte, error) {
	if len(data) != FECDataSize {
		return nil, fmt.Errorf("encode: block is %d bytes, want %d: %w",
			len(data), FECDataSize, ErrInvalidBlockSize)
	}

	var out = make([]byte, FECEncodedSize)
	var err = c.fec.Encode(data, func(s infectious.Share) {
		out[s.Number] = s.Data[0]
	})
	if err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	return out, nil
}

func (c *rsCodec) Decode(block []byte) ([]byte, int, error) {
	if len(block) != FECEncodedSize {
		return nil, 0, fmt.Errorf("decode: block is %d bytes, want %d: %w",
			len(block), FECEncodedSize, ErrInvalidBlockSize)
	}

	var shares = make([]infectious.Share, FECEncodedSize)
	var backing = make([]byte, FECEncodedSize)
	for i := range shares {
		backing[i] = block[i]
		shares[i] = infectious.Share{Number: i, Data: backing[i : i+1]}
	}

	// Correct repairs the shares in place.
	if err := c.fec.Correct(shares); err != nil {
		return nil, 0, fmt.Errorf("decode: %w", ErrFrameUncorrectable)
	}

	var corrected = 0
	for i := range shares {
		if shares[i].Data[0] != block[i] {
			corrected++
		}
	}

	// Systematic code: shares 0..K-1 are the original data bytes.
	var data = make([]byte, FECDataSize)
	for i := 0; i < FECDataSize; i++ {
		data[i] = shares[i].Data[0]
	}
	return data, corrected, nil
}
