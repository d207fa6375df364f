package laika

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// Every supported block size must scatter bits with a true permutation:
// each physical position hit exactly once.
func Test_interleaveMappingIsBijective(t *testing.T) {
	for n := 3; n <= 255; n += 3 {
		var stride, err = strideFor(n)
		require.NoError(t, err, "n=%d", n)

		var nbits = n * 8
		var seen = make([]bool, nbits)
		for i := 0; i < nbits; i++ {
			var physical = (i * stride) % nbits
			assert.Falsef(t, seen[physical], "n=%d: physical bit %d hit twice", n, physical)
			seen[physical] = true
		}
	}
}

func Test_InterleaveRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		var n = rapid.IntRange(1, 85).Draw(t, "sizeIndex") * 3
		var in = rapid.SliceOfN(rapid.Byte(), n, n).Draw(t, "in")

		var scattered, err = InterleaveBlock(in)
		require.NoError(t, err)
		assert.Equal(t, n, len(scattered))

		out, err := DeinterleaveBlock(scattered)
		require.NoError(t, err)
		assert.Equal(t, in, out)
	})
}

func Test_InterleaveByteAccessors(t *testing.T) {
	const n = 96

	var block = make([]byte, n)
	for pos := 0; pos < n; pos++ {
		require.NoError(t, InterleaveSetByte(block, n, pos, byte(pos*7+1)))
	}
	for pos := 0; pos < n; pos++ {
		var c, err = InterleaveGetByte(block, n, pos)
		require.NoError(t, err)
		assert.Equal(t, byte(pos*7+1), c)
	}
}

// A short burst of adjacent physical bits must land in distinct logical
// bytes, which is the whole point of interleaving.
func Test_interleaveSpreadsBursts(t *testing.T) {
	const n = 96

	var clean = make([]byte, n)
	var scattered, err = InterleaveBlock(clean)
	require.NoError(t, err)

	// Corrupt 8 adjacent physical bits.
	scattered[10] ^= 0xFF

	recovered, err := DeinterleaveBlock(scattered)
	require.NoError(t, err)

	var dirtyBytes = 0
	for _, c := range recovered {
		if c != 0 {
			dirtyBytes++
		}
	}
	assert.Equal(t, 8, dirtyBytes, "each burst bit should land in its own byte")
}

func Test_interleaveRejectsBadSizes(t *testing.T) {
	var cases = []struct {
		name string
		n    int
	}{
		{"zero", 0},
		{"negative", -3},
		{"not a multiple of three", 4},
		{"too large", 258},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var _, err = strideFor(tc.n)
			assert.ErrorIs(t, err, ErrInvalidBlockSize)
		})
	}

	var _, err = InterleaveBlock(make([]byte, 7))
	assert.ErrorIs(t, err, ErrInvalidBlockSize)
	_, err = DeinterleaveBlock(make([]byte, 7))
	assert.ErrorIs(t, err, ErrInvalidBlockSize)
}
