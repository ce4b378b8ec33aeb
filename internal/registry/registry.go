// Package registry is the in-memory store of tools aggregated from every
// connected backend MCP server.
//
// A [Registry] is a copy-on-write map keyed by the tool's fully-qualified id
// ("<server>_<tool_name>"). Writers replace an entire server's tool set in one
// atomic step; readers always observe either the pre- or post-replacement
// state for that server, never a mixture. The registry does not know how to
// compute embeddings — it stores whatever C5 (discovery) writes back and
// treats the vector as opaque, evicting it whenever the owning tool record is
// replaced.
package registry

import (
	"sort"
	"sync"
)

// Tool is a single unit of exposure aggregated from a backend MCP server.
type Tool struct {
	// ID is the globally unique identifier, canonical form "<server>_<name>".
	ID string
	// Server is the name of the owning backend.
	Server string
	// Name is the tool name as exposed by the backend.
	Name string
	// Description is free text used for embedding and user display.
	Description string
	// Parameters is the JSON-Schema-shaped input description.
	Parameters map[string]any
	// Tags is the set of lowercase tags derived from description/config.
	Tags map[string]struct{}
	// EstimatedTokens is a non-negative heuristic cost.
	EstimatedTokens int

	mu        sync.Mutex
	embedding []float32
}

// TagSlice returns the tool's tags as a sorted slice, for deterministic output.
func (t *Tool) TagSlice() []string {
	out := make([]string, 0, len(t.Tags))
	for tag := range t.Tags {
		out = append(out, tag)
	}
	sort.Strings(out)
	return out
}

// clone returns a shallow copy of t suitable for inserting into a new
// generation of the registry. The embedding cache is NOT copied: a freshly
// replaced tool starts with no cached embedding, per the "replace destroys
// the cache" rule.
func (t *Tool) clone() *Tool {
	tags := make(map[string]struct{}, len(t.Tags))
	for k := range t.Tags {
		tags[k] = struct{}{}
	}
	return &Tool{
		ID:              t.ID,
		Server:          t.Server,
		Name:            t.Name,
		Description:     t.Description,
		Parameters:      t.Parameters,
		Tags:            tags,
		EstimatedTokens: t.EstimatedTokens,
	}
}

// Embedding returns the cached embedding vector, or nil if none has been
// computed yet. Safe for concurrent use.
func (t *Tool) Embedding() []float32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.embedding
}

// SetEmbedding stores the embedding vector on the tool record. Safe for
// concurrent use; last writer wins, which is fine since the vector is a pure
// function of the tool's own (immutable) fields.
func (t *Tool) SetEmbedding(v []float32) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.embedding = v
}

// generation is one immutable snapshot of the registry's contents.
type generation struct {
	tools    map[string]*Tool   // id -> tool
	byServer map[string][]string // server -> sorted ids
}

func emptyGeneration() *generation {
	return &generation{
		tools:    make(map[string]*Tool),
		byServer: make(map[string][]string),
	}
}

// Registry is the concurrent-safe, copy-on-write tool catalog.
//
// The zero value is not usable; create instances with [New].
type Registry struct {
	mu  sync.Mutex // serializes writers; readers take it to load gen, so a read waits while a write holds it
	gen *generation
}

// New creates an empty, ready-to-use Registry.
func New() *Registry {
	return &Registry{gen: emptyGeneration()}
}

// ReplaceServer atomically replaces every tool owned by server with tools.
// Readers observe either the complete pre-replacement or complete
// post-replacement set for server — never a mix. Tool ids belonging to other
// servers are untouched.
//
// ReplaceServer validates that every tool's Server field matches server;
// callers that violate this have a bug, so it panics rather than silently
// dropping tools (this mirrors the registry's id-uniqueness invariant, which
// is a programmer contract, not a runtime possibility to recover from).
func (r *Registry) ReplaceServer(server string, tools []*Tool) {
	next := make([]*Tool, len(tools))
	for i, t := range tools {
		if t.Server != server {
			panic("registry: tool " + t.ID + " does not belong to server " + server)
		}
		next[i] = t.clone()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	old := r.gen
	g := &generation{
		tools:    make(map[string]*Tool, len(old.tools)),
		byServer: make(map[string][]string, len(old.byServer)),
	}
	for id, t := range old.tools {
		if t.Server == server {
			continue
		}
		g.tools[id] = t
	}
	for s, ids := range old.byServer {
		if s == server {
			continue
		}
		g.byServer[s] = ids
	}

	ids := make([]string, 0, len(next))
	for _, t := range next {
		g.tools[t.ID] = t
		ids = append(ids, t.ID)
	}
	sort.Strings(ids)
	if len(ids) > 0 {
		g.byServer[server] = ids
	}

	r.gen = g
}

// RemoveServer atomically removes every tool owned by server.
func (r *Registry) RemoveServer(server string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	old := r.gen
	g := &generation{
		tools:    make(map[string]*Tool, len(old.tools)),
		byServer: make(map[string][]string, len(old.byServer)),
	}
	for id, t := range old.tools {
		if t.Server == server {
			continue
		}
		g.tools[id] = t
	}
	for s, ids := range old.byServer {
		if s == server {
			continue
		}
		g.byServer[s] = ids
	}
	r.gen = g
}

// Get returns the tool with the given id, or (nil, false) if unknown.
func (r *Registry) Get(id string) (*Tool, bool) {
	r.mu.Lock()
	g := r.gen
	r.mu.Unlock()
	t, ok := g.tools[id]
	return t, ok
}

// All returns every tool currently in the registry. The returned slice is a
// stable snapshot: subsequent writes do not affect it. Order is by id
// ascending for determinism.
func (r *Registry) All() []*Tool {
	r.mu.Lock()
	g := r.gen
	r.mu.Unlock()

	ids := make([]string, 0, len(g.tools))
	for id := range g.tools {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]*Tool, len(ids))
	for i, id := range ids {
		out[i] = g.tools[id]
	}
	return out
}

// ByServer returns every tool currently owned by server, in id order.
func (r *Registry) ByServer(server string) []*Tool {
	r.mu.Lock()
	g := r.gen
	r.mu.Unlock()

	ids := g.byServer[server]
	out := make([]*Tool, 0, len(ids))
	for _, id := range ids {
		if t, ok := g.tools[id]; ok {
			out = append(out, t)
		}
	}
	return out
}

// CountByServer returns the number of tools currently registered for each
// server that has at least one tool.
func (r *Registry) CountByServer() map[string]int {
	r.mu.Lock()
	g := r.gen
	r.mu.Unlock()

	out := make(map[string]int, len(g.byServer))
	for s, ids := range g.byServer {
		out[s] = len(ids)
	}
	return out
}

// Len returns the total number of tools across all servers.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.gen.tools)
}
