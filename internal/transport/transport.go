// Package transport builds the three uniform MCP session transports the
// gateway speaks to backends over: stdio subprocess, Server-Sent Events, and
// streamable HTTP.
//
// Rather than hand-rolling JSON-RPC framing, id correlation, and subprocess
// lifecycle management, this package builds a [mcpsdk.Transport] from the
// official MCP Go SDK for each backend — the same SDK the gateway uses to
// serve its own upstream-facing MCP endpoint. The SDK owns id allocation,
// pending-request correlation, banner-line tolerance on stdio, and
// SIGTERM/SIGKILL process teardown; this package only knows how to pick the
// right adapter and validate the fields each one requires.
package transport

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

// Kind selects the wire transport used to reach a backend MCP server.
type Kind string

const (
	Stdio          Kind = "stdio"
	SSE            Kind = "sse"
	StreamableHTTP Kind = "streamable-http"
)

// IsValid reports whether k is a recognized transport kind.
func (k Kind) IsValid() bool {
	switch k {
	case Stdio, SSE, StreamableHTTP:
		return true
	default:
		return false
	}
}

// Config describes how to reach one backend over its chosen transport.
// Exactly the fields relevant to Kind are consulted; the rest are ignored.
type Config struct {
	// Name identifies the backend in logs and error messages.
	Name string
	Kind Kind

	// stdio
	Command string
	Args    []string
	Env     map[string]string

	// sse / streamable-http
	URL     string
	Headers map[string]string
}

// Build constructs the [mcpsdk.Transport] described by cfg. The returned
// transport has not yet been connected — callers pass it to an
// [mcpsdk.Client]'s Connect method.
func Build(ctx context.Context, cfg Config) (mcpsdk.Transport, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("transport: backend config must have a non-empty name")
	}
	if !cfg.Kind.IsValid() {
		return nil, fmt.Errorf("transport: %w: %q for backend %q", ErrUnknownKind, cfg.Kind, cfg.Name)
	}

	switch cfg.Kind {
	case Stdio:
		return buildStdio(ctx, cfg)
	case SSE:
		return buildSSE(cfg)
	case StreamableHTTP:
		return buildStreamableHTTP(cfg)
	default:
		return nil, fmt.Errorf("transport: %w: %q", ErrUnknownKind, cfg.Kind)
	}
}

func buildStdio(ctx context.Context, cfg Config) (mcpsdk.Transport, error) {
	executable := cfg.Command
	args := cfg.Args
	if executable == "" {
		return nil, fmt.Errorf("transport: stdio backend %q requires a non-empty command", cfg.Name)
	}
	if len(args) == 0 {
		// Allow "command --flag value" as a single string, same convention the
		// rest of the fleet uses for stdio backends configured by hand.
		parts := strings.Fields(executable)
		executable, args = parts[0], parts[1:]
	}

	cmd := exec.CommandContext(ctx, executable, args...)
	for k, v := range cfg.Env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}
	return &mcpsdk.CommandTransport{Command: cmd}, nil
}

func buildSSE(cfg Config) (mcpsdk.Transport, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("transport: sse backend %q requires a non-empty url", cfg.Name)
	}
	return &mcpsdk.SSEClientTransport{Endpoint: cfg.URL, HTTPClient: headerInjectingClient(cfg.Headers)}, nil
}

func buildStreamableHTTP(cfg Config) (mcpsdk.Transport, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("transport: streamable-http backend %q requires a non-empty url", cfg.Name)
	}
	return &mcpsdk.StreamableClientTransport{Endpoint: cfg.URL, HTTPClient: headerInjectingClient(cfg.Headers)}, nil
}
