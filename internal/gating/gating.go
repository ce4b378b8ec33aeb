// Package gating implements the token/count budget selection pass (C6):
// given a candidate set of tools, greedily accept as many as fit under a
// token budget and a count ceiling, in candidate order.
package gating

import (
	"github.com/MrWong99/mcpgateway/internal/registry"
)

const (
	// DefaultMaxTools is used when Request.MaxTools is zero.
	DefaultMaxTools = 10
	// DefaultContextTokens is used when Request.ContextTokens is zero.
	DefaultContextTokens = 2000
)

// Request describes a single provisioning request.
type Request struct {
	// ToolIDs, if non-empty, restricts selection to exactly these ids (unknown
	// ids are skipped). Otherwise the candidate pool is registry-ordered.
	ToolIDs []string
	// MaxTools bounds the accepted count. Zero means DefaultMaxTools; any
	// requested value is clamped to the Service's hardMaxTools ceiling (see New).
	MaxTools int
	// ContextTokens bounds the accepted token sum. Zero means
	// DefaultContextTokens; clamped to the Service's hardMaxTokens ceiling.
	ContextTokens int
}

// Accepted is a single tool selected for provisioning, shaped for MCP export.
type Accepted struct {
	ToolID      string         `json:"tool_id"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters,omitempty"`
	TokenCount  int            `json:"token_count"`
}

// Result is the outcome of a single Provision call.
type Result struct {
	Accepted     []Accepted
	TotalTokens  int
	GatingApplied bool
}

// Service selects tools for provisioning under a token/count budget.
type Service struct {
	registry       *registry.Registry
	hardMaxTools   int
	hardMaxTokens  int
}

// New builds a gating Service. hardMaxTools/hardMaxTokens are the configured
// ceilings a caller's requested MaxTools/ContextTokens may never exceed; zero
// means "use the package default as the ceiling too".
func New(reg *registry.Registry, hardMaxTools, hardMaxTokens int) *Service {
	if hardMaxTools <= 0 {
		hardMaxTools = DefaultMaxTools
	}
	if hardMaxTokens <= 0 {
		hardMaxTokens = DefaultContextTokens
	}
	return &Service{registry: reg, hardMaxTools: hardMaxTools, hardMaxTokens: hardMaxTokens}
}

// Provision runs the C6 selection algorithm. It returns ErrBudgetExceeded
// when candidates exist but none fits under the resolved budget.
func (s *Service) Provision(req Request) (Result, error) {
	maxTools := req.MaxTools
	if maxTools <= 0 {
		maxTools = DefaultMaxTools
	}
	if maxTools > s.hardMaxTools {
		maxTools = s.hardMaxTools
	}

	contextTokens := req.ContextTokens
	if contextTokens <= 0 {
		contextTokens = DefaultContextTokens
	}
	if contextTokens > s.hardMaxTokens {
		contextTokens = s.hardMaxTokens
	}

	candidates := s.candidatePool(req.ToolIDs, maxTools)

	var (
		accepted        []Accepted
		accumulatedTokens int
	)
	for _, t := range candidates {
		if len(accepted) >= maxTools {
			break
		}
		if accumulatedTokens+t.EstimatedTokens > contextTokens {
			continue
		}
		accumulatedTokens += t.EstimatedTokens
		accepted = append(accepted, Accepted{
			ToolID:      t.ID,
			Name:        t.Name,
			Description: t.Description,
			Parameters:  t.Parameters,
			TokenCount:  t.EstimatedTokens,
		})
	}

	if len(accepted) == 0 && len(candidates) > 0 {
		return Result{GatingApplied: true}, ErrBudgetExceeded
	}
	return Result{Accepted: accepted, TotalTokens: accumulatedTokens, GatingApplied: true}, nil
}

// candidatePool resolves the ordered candidate list per spec §4.5: exactly
// the requested ids (skipping unknown ones) when provided, otherwise the
// registry-ordered tool set truncated to 2*maxTools.
func (s *Service) candidatePool(toolIDs []string, maxTools int) []*registry.Tool {
	if len(toolIDs) > 0 {
		out := make([]*registry.Tool, 0, len(toolIDs))
		for _, id := range toolIDs {
			if t, ok := s.registry.Get(id); ok {
				out = append(out, t)
			}
		}
		return out
	}

	all := s.registry.All()
	limit := 2 * maxTools
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all
}
