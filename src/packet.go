package laika

/*------------------------------------------------------------------
 *
 * Purpose:	Packet framing: header layout and the transform
 *		pipeline between packets and on-air blocks.
 *
 * Description:	Every packet rides in one fixed-size coded block.  The
 *		plaintext layout is a 6-byte header followed by the
 *		payload, zero-padded out to the FEC data size:
 *
 *			[0]	packet type
 *			[1]	sending node id
 *			[2]	sequence number
 *			[3]	true payload length
 *			[4:6]	network id, big endian
 *
 *		The header travels inside the FEC-protected region, so
 *		a frame either decodes with a trustworthy header or is
 *		rejected whole.  The length field exists because of the
 *		padding: without it a receiver cannot tell payload from
 *		pad.  Transmit runs pad, interleave, encode; receive
 *		runs decode, de-interleave, parse.
 *
 *---------------------------------------------------------------*/

import (
	"encoding/binary"
	"fmt"
)

type PacketType byte

const (
	PacketData PacketType = iota
	PacketHeartbeat
	PacketRemoteAT
	PacketRemoteATReply
)

const (
	// HeaderSize is the fixed per-packet overhead inside the coded
	// block.
	HeaderSize = 6

	// MaxPayloadSize is the largest payload one frame can carry.
	MaxPayloadSize = FECDataSize - HeaderSize
)

// Packet is one link-layer frame, either side of the air interface.
type Packet struct {
	Type      PacketType
	NodeID    byte
	Seq       byte
	NetworkID uint16
	Payload   []byte
}

// Framer turns packets into interleaved coded blocks and back.
type Framer struct {
	codec FECCodec
}

func NewFramer(codec FECCodec) *Framer {
	return &Framer{codec: codec}
}

// Frame builds the on-air block for p.
func (f *Framer) Frame(p *Packet) ([]byte, error) {
	if len(p.Payload) > MaxPayloadSize {
		return nil, fmt.Errorf("frame: payload %d bytes, max %d: %w",
			len(p.Payload), MaxPayloadSize, ErrPayloadTooLarge)
	}

	var plain = make([]byte, f.codec.DataSize())
	plain[0] = byte(p.Type)
	plain[1] = p.NodeID
	plain[2] = p.Seq
	plain[3] = byte(len(p.Payload))
	binary.BigEndian.PutUint16(plain[4:6], p.NetworkID)
	copy(plain[HeaderSize:], p.Payload)

	var scattered, err = InterleaveBlock(plain)
	if err != nil {
		return nil, fmt.Errorf("frame: %w", err)
	}
	return f.codec.Encode(scattered)
}

// Deframe recovers the packet from a received block, reporting the
// number of byte errors the code repaired.  The length field is
// validated against the payload capacity; a header that survived FEC
// but claims an impossible length means the block was corrupted beyond
// what the code noticed, and the frame is rejected.
func (f *Framer) Deframe(block []byte) (*Packet, int, error) {
	var scattered, corrected, err = f.codec.Decode(block)
	if err != nil {
		return nil, 0, err
	}

	plain, err := DeinterleaveBlock(scattered)
	if err != nil {
		return nil, 0, fmt.Errorf("deframe: %w", err)
	}

	var length = int(plain[3])
	if length > MaxPayloadSize {
		return nil, corrected, fmt.Errorf("deframe: length %d: %w",
			length, ErrBadHeaderLength)
	}

	var p = &Packet{
		Type:      PacketType(plain[0]),
		NodeID:    plain[1],
		Seq:       plain[2],
		NetworkID: binary.BigEndian.Uint16(plain[4:6]),
		Payload:   append([]byte(nil), plain[HeaderSize:HeaderSize+length]...),
	}
	return p, corrected, nil
}
