package laika

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func newTestFramer(t require.TestingT) *Framer {
	var codec, err = NewRSCodec()
	require.NoError(t, err)
	return NewFramer(codec)
}

func Test_Framer_RoundTrip(t *testing.T) {
	var f = newTestFramer(t)

	rapid.Check(t, func(t *rapid.T) {
		var p = &Packet{
			Type:      PacketType(rapid.ByteRange(0, 3).Draw(t, "type")),
			NodeID:    rapid.Byte().Draw(t, "node"),
			Seq:       rapid.Byte().Draw(t, "seq"),
			NetworkID: rapid.Uint16().Draw(t, "network"),
			Payload:   rapid.SliceOfN(rapid.Byte(), 0, MaxPayloadSize).Draw(t, "payload"),
		}

		var block, err = f.Frame(p)
		require.NoError(t, err)
		assert.Equal(t, FECEncodedSize, len(block))

		out, corrected, err := f.Deframe(block)
		require.NoError(t, err)
		assert.Equal(t, 0, corrected)
		assert.Equal(t, p.Type, out.Type)
		assert.Equal(t, p.NodeID, out.NodeID)
		assert.Equal(t, p.Seq, out.Seq)
		assert.Equal(t, p.NetworkID, out.NetworkID)
		assert.Equal(t, append([]byte{}, p.Payload...), append([]byte{}, out.Payload...))
	})
}

// A payload ending in zero bytes must come back at its true length; the
// length field is what separates payload from block padding.
func Test_Framer_PreservesTrailingZeros(t *testing.T) {
	var f = newTestFramer(t)

	var p = &Packet{
		Type:      PacketData,
		NetworkID: 25,
		Payload:   []byte{'A', 0, 0, 0},
	}

	var block, err = f.Frame(p)
	require.NoError(t, err)

	out, _, err := f.Deframe(block)
	require.NoError(t, err)
	assert.Equal(t, 4, len(out.Payload))
	assert.Equal(t, []byte{'A', 0, 0, 0}, out.Payload)
}

func Test_Framer_CorrectsCorruption(t *testing.T) {
	var f = newTestFramer(t)

	var p = &Packet{
		Type:      PacketData,
		NodeID:    7,
		Seq:       42,
		NetworkID: 25,
		Payload:   []byte("the quick brown fox"),
	}
	var block, err = f.Frame(p)
	require.NoError(t, err)

	var corrupt = append([]byte(nil), block...)
	for i := 0; i < FECCorrectableBytes; i++ {
		corrupt[i*4] ^= 0xFF
	}

	out, corrected, err := f.Deframe(corrupt)
	require.NoError(t, err)
	assert.Equal(t, FECCorrectableBytes, corrected)
	assert.Equal(t, p.Payload, out.Payload)
	assert.Equal(t, p.NetworkID, out.NetworkID)
}

func Test_Framer_RejectsUncorrectable(t *testing.T) {
	var f = newTestFramer(t)

	var block, err = f.Frame(&Packet{Type: PacketData, NetworkID: 25, Payload: []byte("hi")})
	require.NoError(t, err)

	var corrupt = append([]byte(nil), block...)
	for i := 0; i < FECCorrectableBytes+20; i++ {
		corrupt[i] ^= 0x81
	}

	_, _, err = f.Deframe(corrupt)
	assert.ErrorIs(t, err, ErrFrameUncorrectable)
}

func Test_Framer_RejectsOversizedPayload(t *testing.T) {
	var f = newTestFramer(t)

	var _, err = f.Frame(&Packet{Payload: make([]byte, MaxPayloadSize+1)})
	assert.ErrorIs(t, err, ErrPayloadTooLarge)
}

// A block that decodes cleanly but carries an impossible length field
// is rejected rather than read past the payload region.
func Test_Framer_RejectsBadHeaderLength(t *testing.T) {
	var codec, err = NewRSCodec()
	require.NoError(t, err)
	var f = NewFramer(codec)

	var plain = make([]byte, FECDataSize)
	plain[0] = byte(PacketData)
	plain[3] = 200 // length beyond payload capacity
	binary.BigEndian.PutUint16(plain[4:6], 25)

	scattered, err := InterleaveBlock(plain)
	require.NoError(t, err)
	block, err := codec.Encode(scattered)
	require.NoError(t, err)

	_, _, err = f.Deframe(block)
	assert.ErrorIs(t, err, ErrBadHeaderLength)
}
