package layer

import (
	"math/rand"
	"testing"

	"github.com/ravensaid/ravensaid/internal/activations"
)

// oneHotInput mimics an encoded 32-byte message: 32 set bits out of 8192.
func oneHotInput() []float64 {
	x := make([]float64, 32*256)
	for i := 0; i < 32; i++ {
		x[i*256+rand.Intn(256)] = 1
	}
	return x
}

func BenchmarkDenseForward(b *testing.B) {
	layer := NewDense(8192, 64, activations.Linear{})
	input := oneHotInput()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		layer.Forward(input)
	}
}

func BenchmarkDenseBackward(b *testing.B) {
	layer := NewDense(8192, 64, activations.Linear{})
	grad := make([]float64, 64)
	for i := range grad {
		grad[i] = rand.NormFloat64()
	}
	layer.Forward(oneHotInput())
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		layer.Backward(grad)
	}
}

func BenchmarkDenseFull(b *testing.B) {
	layer := NewDense(8192, 64, activations.Tanh{})
	input := oneHotInput()
	grad := make([]float64, 64)
	for i := range grad {
		grad[i] = rand.NormFloat64()
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		layer.Forward(input)
		layer.Backward(grad)
	}
}
