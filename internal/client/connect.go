package client

import (
	"context"
	"fmt"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/MrWong99/mcpgateway/internal/transport"
)

// sdkConnect is the production connector: it builds the transport named by
// cfg and connects it through the shared SDK client.
func sdkConnect(ctx context.Context, sdkClient *mcpsdk.Client, cfg BackendConfig) (session, error) {
	tr, err := transport.Build(ctx, transport.Config{
		Name:    cfg.Name,
		Kind:    cfg.Transport,
		Command: cfg.Command,
		Args:    cfg.Args,
		Env:     cfg.Env,
		URL:     cfg.URL,
		Headers: cfg.Headers,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransportFailed, err)
	}

	s, err := sdkClient.Connect(ctx, tr, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: connect to %q: %v", ErrTransportFailed, cfg.Name, err)
	}
	return &sdkSession{inner: s}, nil
}
