package encoding

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func countSet(t *testing.T, v []float64) int {
	t.Helper()
	n := 0
	for _, x := range v {
		switch x {
		case 0:
		case 1:
			n++
		default:
			t.Fatalf("unexpected value %v in encoding", x)
		}
	}
	return n
}

func TestEncodeSetBits(t *testing.T) {
	for _, text := range []string{"", "a", "hello there", strings.Repeat("x", 31), strings.Repeat("y", 32), strings.Repeat("z", 100), "ÅÄÖ åäö ✓"} {
		v := Encode(text)
		require.Len(t, v, InputSize)
		assert.Equal(t, min(InputBytes, len(text)), countSet(t, v), "text %q", text)
	}
}

func TestEncodeDeterministic(t *testing.T) {
	text := "Nobody expects the Spanish inquisition"
	assert.Equal(t, Encode(text), Encode(text))
}

func TestEncodeTruncates(t *testing.T) {
	assert.Equal(t, Encode(strings.Repeat("A", 32)), Encode(strings.Repeat("A", 40)))
	assert.NotEqual(t, Encode(strings.Repeat("A", 31)), Encode(strings.Repeat("A", 32)))
}

func TestEncodeEmpty(t *testing.T) {
	assert.Equal(t, make([]float64, InputSize), Encode(""))
}

func TestEncodePositions(t *testing.T) {
	v := Encode("ab")
	assert.Equal(t, 1.0, v[0*Bins+'a'])
	assert.Equal(t, 1.0, v[1*Bins+'b'])
	// Absent positions are not the same as a zero byte.
	assert.Equal(t, 0.0, v[2*Bins+0])

	withNul := Encode("ab\x00")
	assert.Equal(t, 1.0, withNul[2*Bins+0])
}

func TestEncodeMultiByteIsByteWise(t *testing.T) {
	// "é" is 0xC3 0xA9 in UTF-8.
	v := Encode("é")
	assert.Equal(t, 1.0, v[0*Bins+0xC3])
	assert.Equal(t, 1.0, v[1*Bins+0xA9])
	assert.Equal(t, 2, countSet(t, v))

	// 31 ASCII bytes followed by a two byte rune: only its first byte fits.
	text := strings.Repeat("a", 31) + "é"
	v = Encode(text)
	assert.Equal(t, 1.0, v[31*Bins+0xC3])
	assert.Equal(t, InputBytes, countSet(t, v))
}

func TestEncodeIntoClearsBuffer(t *testing.T) {
	buf := Encode(strings.Repeat("q", 32))
	EncodeInto(buf, "q")
	assert.Equal(t, Encode("q"), buf)
	assert.Panics(t, func() { EncodeInto(make([]float64, 10), "q") })
}
