package laika

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func Test_RSCodec_CleanRoundTrip(t *testing.T) {
	var codec, err = NewRSCodec()
	require.NoError(t, err)

	rapid.Check(t, func(t *rapid.T) {
		var data = rapid.SliceOfN(rapid.Byte(), FECDataSize, FECDataSize).Draw(t, "data")

		var block, err = codec.Encode(data)
		require.NoError(t, err)
		assert.Equal(t, FECEncodedSize, len(block))

		out, corrected, err := codec.Decode(block)
		require.NoError(t, err)
		assert.Equal(t, 0, corrected, "clean block needs no correction")
		assert.Equal(t, data, out)
	})
}

func Test_RSCodec_CorrectsUpToRadius(t *testing.T) {
	var codec, err = NewRSCodec()
	require.NoError(t, err)

	var data = make([]byte, FECDataSize)
	for i := range data {
		data[i] = byte(i * 11)
	}
	var block, encErr = codec.Encode(data)
	require.NoError(t, encErr)

	var cases = []struct {
		name   string
		errors int
	}{
		{"one error", 1},
		{"half the radius", FECCorrectableBytes / 2},
		{"exactly the radius", FECCorrectableBytes},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var corrupt = append([]byte(nil), block...)
			// Spread the corruption so it is not mistaken for a
			// burst test; positions 3 apart stay in range.
			for i := 0; i < tc.errors; i++ {
				corrupt[i*3] ^= 0xA5
			}

			var out, corrected, err = codec.Decode(corrupt)
			require.NoError(t, err)
			assert.Equal(t, tc.errors, corrected)
			assert.Equal(t, data, out)
		})
	}
}

func Test_RSCodec_RejectsBeyondRadius(t *testing.T) {
	var codec, err = NewRSCodec()
	require.NoError(t, err)

	var data = make([]byte, FECDataSize)
	var block, encErr = codec.Encode(data)
	require.NoError(t, encErr)

	var corrupt = append([]byte(nil), block...)
	for i := 0; i < FECCorrectableBytes+12; i++ {
		corrupt[i] ^= 0x5A
	}

	var _, _, decErr = codec.Decode(corrupt)
	assert.ErrorIs(t, decErr, ErrFrameUncorrectable)
}

func Test_RSCodec_RejectsWrongSizes(t *testing.T) {
	var codec, err = NewRSCodec()
	require.NoError(t, err)

	_, err = codec.Encode(make([]byte, FECDataSize-1))
	assert.ErrorIs(t, err, ErrInvalidBlockSize)

	_, _, err = codec.Decode(make([]byte, FECEncodedSize+1))
	assert.ErrorIs(t, err, ErrInvalidBlockSize)
}
