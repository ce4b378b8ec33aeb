package client

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

// CallResult is the outcome of a single tool invocation.
type CallResult struct {
	// Content is the tool's result payload, already flattened to text.
	Content string
	// IsError indicates an application-level error reported by the tool
	// itself, as opposed to a transport/protocol failure.
	IsError bool
}

// session is the minimal capability set the Client Manager needs from a live
// backend connection. It exists so that reconcile/filter/status logic can be
// exercised in tests against a fake, without a real subprocess or socket.
//
// The production implementation, sdkSession, wraps an *mcpsdk.ClientSession.
type session interface {
	ListTools(ctx context.Context) ([]toolDescriptor, error)
	CallTool(ctx context.Context, name string, args map[string]any) (*CallResult, error)
	Close() error
}

// connector opens a new session for the given backend config. The default,
// sdkConnect, builds the appropriate transport and connects through the
// shared MCP SDK client; tests substitute a fake connector.
type connector func(ctx context.Context, sdkClient *mcpsdk.Client, cfg BackendConfig) (session, error)

// sdkSession adapts an *mcpsdk.ClientSession to the session interface.
type sdkSession struct {
	inner *mcpsdk.ClientSession
}

func (s *sdkSession) ListTools(ctx context.Context) ([]toolDescriptor, error) {
	var out []toolDescriptor
	for tool, err := range s.inner.Tools(ctx, nil) {
		if err != nil {
			return nil, fmt.Errorf("%w: list tools: %v", ErrProtocol, err)
		}
		out = append(out, toolDescriptor{
			Name:        tool.Name,
			Description: tool.Description,
			InputSchema: schemaToMap(tool.InputSchema),
		})
	}
	return out, nil
}

func (s *sdkSession) CallTool(ctx context.Context, name string, args map[string]any) (*CallResult, error) {
	res, err := s.inner.CallTool(ctx, &mcpsdk.CallToolParams{Name: name, Arguments: args})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransportFailed, err)
	}
	var sb strings.Builder
	for _, c := range res.Content {
		if tc, ok := c.(*mcpsdk.TextContent); ok {
			sb.WriteString(tc.Text)
		}
	}
	return &CallResult{Content: sb.String(), IsError: res.IsError}, nil
}

func (s *sdkSession) Close() error {
	return s.inner.Close()
}

// schemaToMap normalizes an arbitrary schema value (already a map, or any
// JSON-marshalable type) into map[string]any.
func schemaToMap(schema any) map[string]any {
	if schema == nil {
		return map[string]any{"type": "object"}
	}
	if m, ok := schema.(map[string]any); ok {
		return m
	}
	data, err := json.Marshal(schema)
	if err != nil {
		return map[string]any{"type": "object"}
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return map[string]any{"type": "object"}
	}
	return m
}
