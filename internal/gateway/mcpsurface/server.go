// Package mcpsurface implements the Gateway Surface's MCP face (C9): a single
// MCP endpoint publishing the same six operations as the HTTP face
// (discover_tools, provision_tools, execute_tool, register_mcp_server,
// list_mcp_servers, remove_mcp_server), backed by the same Proxy Service.
//
// This is the mirror image of internal/client, which uses the same SDK as a
// client; here the gateway is the server.
package mcpsurface

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	googlejsonschema "github.com/google/jsonschema-go/jsonschema"
	invopop "github.com/invopop/jsonschema"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/MrWong99/mcpgateway/internal/client"
	"github.com/MrWong99/mcpgateway/internal/discovery"
	"github.com/MrWong99/mcpgateway/internal/gating"
	"github.com/MrWong99/mcpgateway/internal/proxy"
)

// Server serves the MCP face of the gateway: a single mcpsdk.Server exposing
// six tools, all delegating to a proxy.Service.
type Server struct {
	proxy  *proxy.Service
	server *mcpsdk.Server
}

// New builds the MCP surface and registers every tool against px.
func New(px *proxy.Service) (*Server, error) {
	s := &Server{
		proxy: px,
		server: mcpsdk.NewServer(&mcpsdk.Implementation{
			Name:    "mcpgateway",
			Version: "1.0.0",
		}, nil),
	}
	if err := s.registerTools(); err != nil {
		return nil, fmt.Errorf("mcpsurface: register tools: %w", err)
	}
	return s, nil
}

// Handler returns the http.Handler serving the MCP endpoint (streamable HTTP
// transport), suitable for mounting at the configured path (default /mcp).
func (s *Server) Handler() http.Handler {
	return mcpsdk.NewStreamableHTTPHandler(func(*http.Request) *mcpsdk.Server {
		return s.server
	}, nil)
}

func (s *Server) registerTools() error {
	registerers := []func() error{
		s.registerDiscoverTools,
		s.registerProvisionTools,
		s.registerExecuteTool,
		s.registerRegisterServer,
		s.registerListServers,
		s.registerRemoveServer,
	}
	for _, reg := range registerers {
		if err := reg(); err != nil {
			return err
		}
	}
	return nil
}

// ─── discover_tools ──────────────────────────────────────────────────────────

type discoverToolsInput struct {
	Query   string   `json:"query" jsonschema_description:"Search text describing the desired capability."`
	Context string   `json:"context,omitempty" jsonschema_description:"Additional context appended to the query before embedding."`
	Tags    []string `json:"tags,omitempty" jsonschema_description:"Restrict candidates to tools carrying any of these tags."`
	Limit   int      `json:"limit,omitempty" jsonschema_description:"Maximum number of results, default 10."`
}

type discoverToolsOutput struct {
	Tools []discovery.Result `json:"tools"`
}

func (s *Server) registerDiscoverTools() error {
	tool, err := newTool[discoverToolsInput]("discover_tools", "Search the tool catalog by semantic query and optional tags.")
	if err != nil {
		return err
	}
	mcpsdk.AddTool(s.server, tool, func(ctx context.Context, _ *mcpsdk.CallToolRequest, in discoverToolsInput) (*mcpsdk.CallToolResult, discoverToolsOutput, error) {
		results, err := s.proxy.DiscoverTools(ctx, discovery.Query{
			Text:    in.Query,
			Context: in.Context,
			Tags:    in.Tags,
			Limit:   in.Limit,
		})
		if err != nil {
			return errorResult(err), discoverToolsOutput{}, nil
		}
		out := discoverToolsOutput{Tools: results}
		return textResult(out), out, nil
	})
	return nil
}

// ─── provision_tools ─────────────────────────────────────────────────────────

type provisionToolsInput struct {
	ToolIDs       []string `json:"tool_ids,omitempty" jsonschema_description:"Restrict provisioning to exactly these tool ids."`
	MaxTools      int      `json:"max_tools,omitempty" jsonschema_description:"Maximum number of tools to accept, default 10."`
	ContextTokens int      `json:"context_tokens,omitempty" jsonschema_description:"Token budget for the accepted set, default 2000."`
}

type provisionToolsOutput struct {
	Tools         []gating.Accepted `json:"tools"`
	TotalTokens   int               `json:"total_tokens"`
	GatingApplied bool              `json:"gating_applied"`
}

func (s *Server) registerProvisionTools() error {
	tool, err := newTool[provisionToolsInput]("provision_tools", "Select a tool set under a token/count budget and record it as provisioned.")
	if err != nil {
		return err
	}
	mcpsdk.AddTool(s.server, tool, func(_ context.Context, _ *mcpsdk.CallToolRequest, in provisionToolsInput) (*mcpsdk.CallToolResult, provisionToolsOutput, error) {
		result, err := s.proxy.ProvisionTools(gating.Request{
			ToolIDs:       in.ToolIDs,
			MaxTools:      in.MaxTools,
			ContextTokens: in.ContextTokens,
		})
		if err != nil {
			return errorResult(err), provisionToolsOutput{}, nil
		}
		out := provisionToolsOutput{
			Tools:         result.Accepted,
			TotalTokens:   result.TotalTokens,
			GatingApplied: result.GatingApplied,
		}
		return textResult(out), out, nil
	})
	return nil
}

// ─── execute_tool ────────────────────────────────────────────────────────────

type executeToolInput struct {
	ToolID    string         `json:"tool_id" jsonschema_description:"Canonical tool id, '<server>_<tool_name>'."`
	Arguments map[string]any `json:"arguments,omitempty" jsonschema_description:"Arguments passed through to the backend tool unchanged."`
}

type executeToolOutput struct {
	Content string `json:"content"`
	IsError bool   `json:"is_error"`
}

func (s *Server) registerExecuteTool() error {
	tool, err := newTool[executeToolInput]("execute_tool", "Invoke a registered tool on its owning backend and return its result.")
	if err != nil {
		return err
	}
	mcpsdk.AddTool(s.server, tool, func(ctx context.Context, _ *mcpsdk.CallToolRequest, in executeToolInput) (*mcpsdk.CallToolResult, executeToolOutput, error) {
		res, err := s.proxy.ExecuteTool(ctx, in.ToolID, in.Arguments)
		if err != nil {
			return errorResult(err), executeToolOutput{}, nil
		}
		out := executeToolOutput{Content: res.Content, IsError: res.IsError}
		return textResult(out), out, nil
	})
	return nil
}

// ─── register_mcp_server ─────────────────────────────────────────────────────

type registerServerInput struct {
	Name   string               `json:"name" jsonschema_description:"Unique backend name."`
	Config client.BackendConfig `json:"config" jsonschema_description:"Backend connection configuration."`
}

func (s *Server) registerRegisterServer() error {
	tool, err := newTool[registerServerInput]("register_mcp_server", "Register and connect a new backend MCP server.")
	if err != nil {
		return err
	}
	mcpsdk.AddTool(s.server, tool, func(ctx context.Context, _ *mcpsdk.CallToolRequest, in registerServerInput) (*mcpsdk.CallToolResult, client.ServerStatus, error) {
		in.Config.Name = in.Name
		status, err := s.proxy.RegisterServer(ctx, in.Config)
		if err != nil {
			return errorResult(err), client.ServerStatus{}, nil
		}
		return textResult(status), status, nil
	})
	return nil
}

// ─── list_mcp_servers ────────────────────────────────────────────────────────

type listServersInput struct{}

type listServersOutput struct {
	Servers []client.ServerStatus `json:"servers"`
}

func (s *Server) registerListServers() error {
	tool, err := newTool[listServersInput]("list_mcp_servers", "List every known backend server and its connection status.")
	if err != nil {
		return err
	}
	mcpsdk.AddTool(s.server, tool, func(_ context.Context, _ *mcpsdk.CallToolRequest, _ listServersInput) (*mcpsdk.CallToolResult, listServersOutput, error) {
		out := listServersOutput{Servers: s.proxy.ListServers()}
		return textResult(out), out, nil
	})
	return nil
}

// ─── remove_mcp_server ───────────────────────────────────────────────────────

type removeServerInput struct {
	Name string `json:"name" jsonschema_description:"Backend name to disconnect and forget."`
}

type removeServerOutput struct {
	Removed bool `json:"removed"`
}

func (s *Server) registerRemoveServer() error {
	tool, err := newTool[removeServerInput]("remove_mcp_server", "Disconnect and forget a backend server.")
	if err != nil {
		return err
	}
	mcpsdk.AddTool(s.server, tool, func(_ context.Context, _ *mcpsdk.CallToolRequest, in removeServerInput) (*mcpsdk.CallToolResult, removeServerOutput, error) {
		if err := s.proxy.RemoveServer(in.Name); err != nil {
			return errorResult(err), removeServerOutput{}, nil
		}
		out := removeServerOutput{Removed: true}
		return textResult(out), out, nil
	})
	return nil
}

// ─── schema bridging & result helpers ───────────────────────────────────────

// newTool builds an *mcpsdk.Tool with an input schema reflected from In via
// invopop/jsonschema, bridged into the go-sdk's own schema representation by
// marshalling to JSON and unmarshalling into it — the two packages describe
// the same JSON Schema wire format under different Go types.
func newTool[In any](name, description string) (*mcpsdk.Tool, error) {
	var zero In
	reflector := invopop.Reflector{
		DoNotReference:            true,
		ExpandedStruct:            true,
		AllowAdditionalProperties: true,
	}
	raw := reflector.Reflect(zero)
	b, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("reflect schema for %s: %w", name, err)
	}

	var schema googlejsonschema.Schema
	if err := json.Unmarshal(b, &schema); err != nil {
		return nil, fmt.Errorf("bridge schema for %s: %w", name, err)
	}

	return &mcpsdk.Tool{
		Name:        name,
		Description: description,
		InputSchema: &schema,
	}, nil
}

// textResult renders v as a single JSON text content block. The MCP surface
// also returns structured output (the generic Out return value), so this is
// the human-readable companion rather than the primary payload.
func textResult(v any) *mcpsdk.CallToolResult {
	b, err := json.Marshal(v)
	if err != nil {
		return &mcpsdk.CallToolResult{
			Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: err.Error()}},
			IsError: true,
		}
	}
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: string(b)}},
	}
}

// errorResult renders a gateway-layer error (unknown tool, not provisioned,
// not connected, ...) as an MCP tool-level error rather than a protocol
// error, matching spec.md's "backend errors propagate with their ToolError
// code and message" contract.
func errorResult(err error) *mcpsdk.CallToolResult {
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: err.Error()}},
		IsError: true,
	}
}
