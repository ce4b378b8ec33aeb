package client

import (
	"encoding/json"
	"math"
	"strings"

	"github.com/MrWong99/mcpgateway/internal/registry"
)

// toolDescriptor is the transport-agnostic shape of a tool as enumerated
// from a backend, decoupled from the MCP SDK's concrete Tool type so that
// conversion and filtering logic can be unit tested without a live session.
type toolDescriptor struct {
	Name        string
	Description string
	InputSchema map[string]any
}

// stopWords are filtered out of description-derived tags: common English
// function words carry no discovery signal.
var stopWords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "with": {}, "that": {}, "this": {},
	"from": {}, "into": {}, "your": {}, "will": {}, "can": {}, "are": {},
	"using": {}, "use": {}, "has": {}, "have": {}, "its": {}, "you": {},
	"not": {}, "but": {}, "all": {}, "any": {}, "was": {}, "were": {},
}

// deriveTags extracts lowercase keyword tags from a tool's description.
// Words shorter than 4 characters and common stop words are dropped.
func deriveTags(description string) map[string]struct{} {
	tags := make(map[string]struct{})
	for _, raw := range strings.FieldsFunc(description, func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('A' <= r && r <= 'Z') && !('0' <= r && r <= '9')
	}) {
		word := strings.ToLower(raw)
		if len(word) < 4 {
			continue
		}
		if _, stop := stopWords[word]; stop {
			continue
		}
		tags[word] = struct{}{}
	}
	return tags
}

// estimatedTokens implements the heuristic cost function: a base cost plus a
// share of the description and serialized-schema lengths. A nil schema
// contributes nothing.
func estimatedTokens(description string, schema map[string]any) int {
	var schemaLen int
	if schema != nil {
		schemaBytes, _ := json.Marshal(schema)
		schemaLen = len(schemaBytes)
	}
	return 50 + ceilDiv(len(description), 4) + ceilDiv(schemaLen, 4) + 20
}

func ceilDiv(n, d int) int {
	if n <= 0 {
		return 0
	}
	return int(math.Ceil(float64(n) / float64(d)))
}

// matchesFilter reports whether toolName passes cfg's ToolFilter: for "allow"
// mode an empty list means allow-all, otherwise toolName must match an entry;
// for "deny" mode toolName must NOT match any entry. Matching is
// case-insensitive and supports a single leading/trailing/both '*' wildcard.
func matchesFilter(filter ToolFilter, toolName string) bool {
	matched := matchesAny(filter.List, toolName)
	switch filter.effectiveMode() {
	case FilterDeny:
		return !matched
	default: // allow
		if len(filter.List) == 0 {
			return true
		}
		return matched
	}
}

func matchesAny(patterns []string, name string) bool {
	lname := strings.ToLower(name)
	for _, p := range patterns {
		if globMatch(strings.ToLower(p), lname) {
			return true
		}
	}
	return false
}

// globMatch supports '*' as a wildcard anywhere in pattern, compiled into a
// simple prefix/suffix/contains/exact check — sufficient for the single
// wildcard use case the spec describes (e.g. "*screenshot*").
func globMatch(pattern, name string) bool {
	if pattern == "*" {
		return true
	}
	if !strings.Contains(pattern, "*") {
		return pattern == name
	}
	parts := strings.Split(pattern, "*")
	if len(parts) == 2 {
		prefix, suffix := parts[0], parts[1]
		switch {
		case prefix == "" && suffix == "":
			return true
		case prefix == "":
			return strings.HasSuffix(name, suffix)
		case suffix == "":
			return strings.HasPrefix(name, prefix)
		default:
			return strings.HasPrefix(name, prefix) && strings.HasSuffix(name, suffix) && len(name) >= len(prefix)+len(suffix)
		}
	}
	// More than one '*': fall back to treating it as "contains every segment
	// in order", which covers the documented single-wildcard case and degrades
	// gracefully for pathological patterns.
	idx := 0
	for i, seg := range parts {
		if seg == "" {
			continue
		}
		pos := strings.Index(name[idx:], seg)
		if pos < 0 {
			return false
		}
		if i == 0 && pos != 0 {
			return false
		}
		idx += pos + len(seg)
	}
	if last := parts[len(parts)-1]; last != "" && !strings.HasSuffix(name, last) {
		return false
	}
	return true
}

// toTool converts a descriptor enumerated from server into a registry.Tool,
// applying the id convention "<server>_<name>".
func toTool(server string, d toolDescriptor) *registry.Tool {
	return &registry.Tool{
		ID:              server + "_" + d.Name,
		Server:          server,
		Name:            d.Name,
		Description:     d.Description,
		Parameters:      d.InputSchema,
		Tags:            deriveTags(d.Description),
		EstimatedTokens: estimatedTokens(d.Description, d.InputSchema),
	}
}
