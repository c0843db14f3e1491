// Package embed maps complaint text to fixed-dimension dense vectors.
package embed

import (
	"context"
	"fmt"
	"math"

	"github.com/firebase/genkit/go/ai"
)

// Encoder converts text into a dense vector. Implementations must be
// deterministic for identical input and safe for concurrent use; the model
// behind an Encoder is expensive to initialize and is constructed once at
// application startup.
type Encoder interface {
	Encode(ctx context.Context, text string) ([]float32, error)
}

// GenkitEncoder adapts a Genkit ai.Embedder to the Encoder interface.
// Gemini embedding models are Matryoshka-trained, so a longer raw vector is
// truncated to the requested dimension and re-normalized.
type GenkitEncoder struct {
	embedder  ai.Embedder
	dimension int
}

// NewGenkitEncoder wraps a Genkit embedder. dimension is the vector size the
// store expects; 0 keeps the model's native output.
func NewGenkitEncoder(embedder ai.Embedder, dimension int) *GenkitEncoder {
	return &GenkitEncoder{embedder: embedder, dimension: dimension}
}

// Encode generates the embedding for text.
func (e *GenkitEncoder) Encode(ctx context.Context, text string) ([]float32, error) {
	resp, err := e.embedder.Embed(ctx, &ai.EmbedRequest{
		Input: []*ai.Document{
			ai.DocumentFromText(text, nil),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("embed failed: %w", err)
	}

	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Embedding) == 0 {
		return nil, fmt.Errorf("no embeddings returned")
	}

	vec := resp.Embeddings[0].Embedding
	if e.dimension > 0 {
		if len(vec) < e.dimension {
			return nil, fmt.Errorf("model returned %d dimensions, store needs %d", len(vec), e.dimension)
		}
		if len(vec) > e.dimension {
			vec = renormalize(vec[:e.dimension])
		}
	}
	return vec, nil
}

// renormalize rescales a truncated vector back to unit length so cosine
// distances stay comparable.
func renormalize(vec []float32) []float32 {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return vec
	}
	norm := math.Sqrt(sum)
	out := make([]float32, len(vec))
	for i, v := range vec {
		out[i] = float32(float64(v) / norm)
	}
	return out
}
