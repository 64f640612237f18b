package vectorstore

import (
	"math"
	"math/rand"
	"testing"
)

func TestSimilarityIdentical(t *testing.T) {
	vectors := [][]float32{
		{1, 0},
		{0.5, 0.5, 0.5},
		{-1, 2, -3, 4},
		{0.001, 0.002},
	}
	for _, v := range vectors {
		got := Similarity(v, v)
		if math.Abs(float64(got)-1.0) > 1e-6 {
			t.Errorf("Similarity(%v, %v) = %v, want 1.0", v, v, got)
		}
	}
}

func TestSimilaritySymmetryAndRange(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 100; i++ {
		a := make([]float32, 8)
		b := make([]float32, 8)
		for j := range a {
			a[j] = rng.Float32()*2 - 1
			b[j] = rng.Float32()*2 - 1
		}
		ab := Similarity(a, b)
		ba := Similarity(b, a)
		if ab != ba {
			t.Fatalf("Similarity not symmetric: %v vs %v", ab, ba)
		}
		if ab < 0 || ab > 1 {
			t.Fatalf("Similarity(%v, %v) = %v, want in [0,1]", a, b, ab)
		}
	}
}

func TestSimilaritySignNormalized(t *testing.T) {
	a := []float32{1, 0}
	b := []float32{-1, 0}
	got := Similarity(a, b)
	if math.Abs(float64(got)-1.0) > 1e-6 {
		t.Errorf("Similarity of anti-correlated vectors = %v, want 1.0", got)
	}
}

func TestSimilarityEdgeCases(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float32
	}{
		{"length mismatch", []float32{1, 0}, []float32{1, 0, 0}, 0},
		{"zero vector", []float32{0, 0}, []float32{1, 0}, 0},
		{"both zero", []float32{0, 0}, []float32{0, 0}, 0},
		{"empty", nil, nil, 0},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Similarity(tt.a, tt.b); got != tt.want {
				t.Errorf("Similarity(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}
