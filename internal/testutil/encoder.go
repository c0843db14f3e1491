package testutil

import (
	"context"
	"hash/fnv"
	"math"
)

// FakeEncoder is a deterministic, offline stand-in for the Gemini embedder.
// Identical text always yields the identical unit vector, and different texts
// almost always differ, which is all the pipeline and search tests need.
type FakeEncoder struct {
	// Dimension of produced vectors. Zero means 768.
	Dimension int

	// Err, when set, is returned from every Encode call.
	Err error

	// Vectors, when set, overrides the derived vector for exact texts.
	Vectors map[string][]float32
}

// Encode derives a unit vector from a hash of the text.
func (f *FakeEncoder) Encode(_ context.Context, text string) ([]float32, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	if v, ok := f.Vectors[text]; ok {
		return v, nil
	}

	dim := f.Dimension
	if dim == 0 {
		dim = 768
	}

	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	seed := h.Sum64()

	vec := make([]float32, dim)
	var sum float64
	for i := range vec {
		// xorshift keeps the sequence deterministic per seed
		seed ^= seed << 13
		seed ^= seed >> 7
		seed ^= seed << 17
		v := float64(int64(seed%2000)-1000) / 1000
		vec[i] = float32(v)
		sum += v * v
	}
	norm := math.Sqrt(sum)
	if norm == 0 {
		vec[0] = 1
		return vec, nil
	}
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
	return vec, nil
}
