// Package discovery implements semantic tool search over the tool registry
// (C5): candidates are filtered by tag, embedded lazily through an
// [embeddings.Provider], scored by cosine similarity with a tag-overlap bonus,
// and returned in deterministic rank order.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/MrWong99/mcpgateway/internal/registry"
	"github.com/MrWong99/mcpgateway/pkg/provider/embeddings"
)

// ErrEmptyQuery is returned when Query.Text is empty.
var ErrEmptyQuery = errors.New("discovery: query text must not be empty")

// ErrEmbedFailed wraps any error the embeddings provider returns while
// embedding the query text.
var ErrEmbedFailed = errors.New("discovery: failed to embed query")

const (
	// DefaultLimit is applied when Query.Limit is zero.
	DefaultLimit = 10
	// MaxLimit is the hard ceiling on Query.Limit.
	MaxLimit = 50
	// tagBonus is added to the cosine score for each tag a candidate shares
	// with the query.
	tagBonus = 0.2
)

// Query describes a single discovery request.
type Query struct {
	// Text is the search text. Required, non-empty.
	Text string
	// Context is optional extra text appended to Text before embedding.
	Context string
	// Tags, if non-empty, restricts candidates to tools whose tag set
	// intersects this set.
	Tags []string
	// Limit bounds the number of results, 1..MaxLimit. Zero means DefaultLimit.
	Limit int
}

// Result is a single scored match.
type Result struct {
	ToolID          string   `json:"tool_id"`
	Name            string   `json:"name"`
	Description     string   `json:"description"`
	Score           float64  `json:"score"`
	MatchedTags     []string `json:"matched_tags,omitempty"`
	EstimatedTokens int      `json:"estimated_tokens"`
}

// Service performs discovery queries against a registry using an embeddings
// provider for both query and (lazily cached) tool vectors.
type Service struct {
	registry  *registry.Registry
	embedder  embeddings.Provider
}

// New builds a discovery Service.
func New(reg *registry.Registry, embedder embeddings.Provider) *Service {
	return &Service{registry: reg, embedder: embedder}
}

// Discover runs the C5 algorithm: filter by tag, ensure embeddings, score,
// sort, and truncate to the requested limit.
//
// An empty registry yields an empty, non-error result. A query that fails to
// embed returns a wrapped ErrEmbedFailed.
func (s *Service) Discover(ctx context.Context, q Query) ([]Result, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, ErrEmptyQuery
	}
	limit := q.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	candidates := s.candidates(q.Tags)
	if len(candidates) == 0 {
		return nil, nil
	}

	if err := s.ensureEmbeddings(ctx, candidates); err != nil {
		return nil, err
	}

	queryText := q.Text
	if q.Context != "" {
		queryText = queryText + " " + q.Context
	}
	queryVec, err := s.embedder.Embed(ctx, queryText)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbedFailed, err)
	}

	queryTags := make(map[string]struct{}, len(q.Tags))
	for _, t := range q.Tags {
		queryTags[strings.ToLower(t)] = struct{}{}
	}

	results := make([]Result, 0, len(candidates))
	for _, t := range candidates {
		matched := intersect(queryTags, t.Tags)
		score := cosine(queryVec, t.Embedding()) + tagBonus*float64(len(matched))
		if math.IsNaN(score) {
			score = 0
		}
		results = append(results, Result{
			ToolID:          t.ID,
			Name:            t.Name,
			Description:     t.Description,
			Score:           score,
			MatchedTags:     matched,
			EstimatedTokens: t.EstimatedTokens,
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ToolID < results[j].ToolID
	})

	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// candidates returns every tool when tags is empty, otherwise only tools
// whose tag set intersects tags.
func (s *Service) candidates(tags []string) []*registry.Tool {
	all := s.registry.All()
	if len(tags) == 0 {
		return all
	}
	want := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		want[strings.ToLower(t)] = struct{}{}
	}
	out := make([]*registry.Tool, 0, len(all))
	for _, t := range all {
		if len(intersect(want, t.Tags)) > 0 {
			out = append(out, t)
		}
	}
	return out
}

// ensureEmbeddings computes and caches an embedding for every candidate that
// doesn't already have one.
func (s *Service) ensureEmbeddings(ctx context.Context, candidates []*registry.Tool) error {
	var missing []*registry.Tool
	for _, t := range candidates {
		if t.Embedding() == nil {
			missing = append(missing, t)
		}
	}
	if len(missing) == 0 {
		return nil
	}

	texts := make([]string, len(missing))
	for i, t := range missing {
		texts[i] = t.Name + " " + t.Description + " " + strings.Join(t.TagSlice(), " ")
	}
	vecs, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrEmbedFailed, err)
	}
	for i, t := range missing {
		t.SetEmbedding(vecs[i])
	}
	return nil
}

// intersect returns the sorted keys present in both want and tags.
func intersect(want map[string]struct{}, tags map[string]struct{}) []string {
	if len(want) == 0 || len(tags) == 0 {
		return nil
	}
	var out []string
	for tag := range tags {
		if _, ok := want[tag]; ok {
			out = append(out, tag)
		}
	}
	sort.Strings(out)
	return out
}

// cosine computes cosine similarity between two equal-length vectors. Returns
// 0 if either vector is empty/zero-norm or the lengths mismatch.
func cosine(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
