package embeddings

import (
	"context"

	"github.com/MrWong99/mcpgateway/internal/resilience"
)

// FallbackProvider chains a primary Provider with ordered fallbacks behind a
// per-entry circuit breaker, so a flaky or unreachable embedding backend
// (e.g. a local Ollama instance that isn't running) degrades to the next
// configured provider instead of failing discovery outright.
//
// Dimensions and ModelID report the primary's values: callers must not mix
// vectors produced under a fallback with ones produced by the primary unless
// both share the same dimensionality, same as any other Provider swap.
type FallbackProvider struct {
	group *resilience.FallbackGroup[Provider]
	dims  int
	model string
}

// FallbackEntry names a fallback Provider for NewFallback.
type FallbackEntry struct {
	Name     string
	Provider Provider
}

// NewFallback builds a FallbackProvider trying primary first, then each
// fallback in order. cfg configures the circuit breaker applied to every
// entry; the zero value uses resilience's default thresholds.
func NewFallback(primaryName string, primary Provider, cfg resilience.FallbackConfig, fallbacks ...FallbackEntry) *FallbackProvider {
	fp := &FallbackProvider{
		group: resilience.NewFallbackGroup(primary, primaryName, cfg),
		dims:  primary.Dimensions(),
		model: primary.ModelID(),
	}
	for _, f := range fallbacks {
		fp.group.AddFallback(f.Name, f.Provider)
	}
	return fp
}

var _ Provider = (*FallbackProvider)(nil)

func (fp *FallbackProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	return resilience.ExecuteWithResult(fp.group, func(p Provider) ([]float32, error) {
		return p.Embed(ctx, text)
	})
}

func (fp *FallbackProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return resilience.ExecuteWithResult(fp.group, func(p Provider) ([][]float32, error) {
		return p.EmbedBatch(ctx, texts)
	})
}

func (fp *FallbackProvider) Dimensions() int { return fp.dims }

func (fp *FallbackProvider) ModelID() string { return fp.model }
