// Package hash provides a deterministic, dependency-free embeddings.Provider.
//
// It hashes tokens from the input text into a fixed-width float32 vector using
// the FNV-1a hash function, then L2-normalises the result. There is no model
// behind it and no network call — semantically related strings are not
// guaranteed to land near each other, but identical or overlapping-token
// strings reliably produce similar vectors. It exists as a zero-configuration
// default so the discovery service works out of the box before an operator
// wires up a real embedding backend such as ollama or openai.
package hash

import (
	"context"
	"hash/fnv"
	"math"
	"strings"

	"github.com/MrWong99/mcpgateway/pkg/provider/embeddings"
)

// DefaultDimensions is the vector length produced when no dimension is
// specified at construction time.
const DefaultDimensions = 256

// Ensure Provider implements the embeddings.Provider interface at compile time.
var _ embeddings.Provider = (*Provider)(nil)

// Provider implements embeddings.Provider using token hashing. It is safe for
// concurrent use — it holds no mutable state.
type Provider struct {
	dimensions int
}

// New constructs a Provider with the given vector dimension. A dimensions
// value <= 0 falls back to DefaultDimensions.
func New(dimensions int) *Provider {
	if dimensions <= 0 {
		dimensions = DefaultDimensions
	}
	return &Provider{dimensions: dimensions}
}

// Embed implements embeddings.Provider. It fails only when ctx is already
// done and never blocks on ctx — the only cancellation check is a single
// up-front look, matching the expectations of callers that always pass a
// context.
func (p *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return p.vector(text), nil
}

// EmbedBatch implements embeddings.Provider by hashing each text independently.
func (p *Provider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = p.vector(t)
	}
	return out, nil
}

// Dimensions implements embeddings.Provider.
func (p *Provider) Dimensions() int {
	return p.dimensions
}

// ModelID implements embeddings.Provider.
func (p *Provider) ModelID() string {
	return "hash-fnv1a"
}

// vector hashes each whitespace-separated token of text into a bucket of the
// output vector, accumulates a signed weight per bucket based on the hash's
// low bit, and L2-normalises the result so cosine similarity is well-behaved.
func (p *Provider) vector(text string) []float32 {
	vec := make([]float32, p.dimensions)
	tokens := strings.Fields(strings.ToLower(text))
	if len(tokens) == 0 {
		return vec
	}

	for _, tok := range tokens {
		h := fnv.New64a()
		_, _ = h.Write([]byte(tok))
		sum := h.Sum64()
		bucket := int(sum % uint64(p.dimensions))
		if sum&1 == 0 {
			vec[bucket] += 1
		} else {
			vec[bucket] -= 1
		}
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec
	}
	norm = math.Sqrt(norm)
	for i, v := range vec {
		vec[i] = float32(float64(v) / norm)
	}
	return vec
}
