package storage

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

// Property 6: round-trip byte fidelity.
func TestWriteReadBytesRoundTrip(t *testing.T) {
	sizes := []uint8{Size1, Size2, Size4, Size8}
	r := rand.New(rand.NewSource(1))

	for _, size := range sizes {
		buf := make([]byte, 8)
		for i := 0; i < 200; i++ {
			v := r.Uint64()
			WriteBytes(size, v, buf)
			got := ReadBytes(size, buf)

			var mask uint64
			if size == Size8 {
				mask = ^uint64(0)
			} else {
				mask = (uint64(1) << (8 * size)) - 1
			}
			assert.Equal(t, v&mask, got)
		}
	}
}

func TestPadUpToSize(t *testing.T) {
	assert.Equal(t, uint32(0), PadUpToSize(8, 0))
	assert.Equal(t, uint32(8), PadUpToSize(8, 1))
	assert.Equal(t, uint32(8), PadUpToSize(8, 8))
	assert.Equal(t, uint32(16), PadUpToSize(8, 9))
	assert.Equal(t, uint32(4), PadUpToSize(4, 3))
}

func TestValidAttrSize(t *testing.T) {
	for _, s := range []uint8{1, 2, 4, 8} {
		assert.True(t, ValidAttrSize(s))
	}
	for _, s := range []uint8{0, 3, 5, 6, 7, 16} {
		assert.False(t, ValidAttrSize(s))
	}
}
