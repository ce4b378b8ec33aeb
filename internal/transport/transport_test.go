package transport_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrWong99/mcpgateway/internal/transport"
)

func TestKindIsValid(t *testing.T) {
	assert.True(t, transport.Stdio.IsValid())
	assert.True(t, transport.SSE.IsValid())
	assert.True(t, transport.StreamableHTTP.IsValid())
	assert.False(t, transport.Kind("carrier-pigeon").IsValid())
}

func TestBuildRejectsUnknownKind(t *testing.T) {
	_, err := transport.Build(context.Background(), transport.Config{Name: "x", Kind: "carrier-pigeon"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, transport.ErrUnknownKind))
}

func TestBuildRequiresCommandForStdio(t *testing.T) {
	_, err := transport.Build(context.Background(), transport.Config{Name: "x", Kind: transport.Stdio})
	require.Error(t, err)
}

func TestBuildRequiresURLForSSE(t *testing.T) {
	_, err := transport.Build(context.Background(), transport.Config{Name: "x", Kind: transport.SSE})
	require.Error(t, err)
}

func TestBuildRequiresURLForStreamableHTTP(t *testing.T) {
	_, err := transport.Build(context.Background(), transport.Config{Name: "x", Kind: transport.StreamableHTTP})
	require.Error(t, err)
}

func TestBuildStdioSplitsCommandString(t *testing.T) {
	tr, err := transport.Build(context.Background(), transport.Config{
		Name:    "dice",
		Kind:    transport.Stdio,
		Command: "/usr/bin/true --flag value",
	})
	require.NoError(t, err)
	require.NotNil(t, tr)
}

func TestBuildSSEAndStreamableHTTPSucceedWithURL(t *testing.T) {
	_, err := transport.Build(context.Background(), transport.Config{
		Name: "exa", Kind: transport.SSE, URL: "https://example.invalid/mcp", Headers: map[string]string{"X-Key": "v"},
	})
	require.NoError(t, err)

	_, err = transport.Build(context.Background(), transport.Config{
		Name: "ctx7", Kind: transport.StreamableHTTP, URL: "https://example.invalid/mcp",
	})
	require.NoError(t, err)
}
