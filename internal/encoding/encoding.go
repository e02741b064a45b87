// Package encoding turns a message into the fixed-width one-hot vector the network reads.
//
// Every one of the first InputBytes bytes of the message selects one of 256 bins in its own
// block of the vector. Bytes are used as-is, so a multi-byte UTF-8 character occupies several
// positions and truncation may cut it in half. Positions past the end of a short message are
// left empty, which is distinct from a zero byte.
package encoding

import "fmt"

const (
	// InputBytes is the number of leading bytes of a message that are encoded.
	InputBytes = 32
	// Bins is the number of distinct byte values per position.
	Bins = 256
	// InputSize is the length of an encoded vector.
	InputSize = InputBytes * Bins
)

// Encode returns a freshly allocated vector for text.
func Encode(text string) []float64 {
	v := make([]float64, InputSize)
	EncodeInto(v, text)
	return v
}

// EncodeInto writes the encoding of text into dst, which must have length InputSize.
func EncodeInto(dst []float64, text string) {
	if len(dst) != InputSize {
		panic(fmt.Sprintf("encoding: destination has length %d, want %d", len(dst), InputSize))
	}
	clear(dst)
	n := min(len(text), InputBytes)
	for i := 0; i < n; i++ {
		dst[i*Bins+int(text[i])] = 1
	}
}
