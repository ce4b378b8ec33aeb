package app_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"

	"github.com/MrWong99/mcpgateway/internal/app"
	"github.com/MrWong99/mcpgateway/internal/client"
	"github.com/MrWong99/mcpgateway/internal/config"
	"github.com/MrWong99/mcpgateway/internal/observe"
	"github.com/MrWong99/mcpgateway/internal/transport"
	"github.com/MrWong99/mcpgateway/pkg/provider/embeddings/mock"
)

// testConfig returns a minimal config with one disabled backend, so New
// never attempts a real network connection during tests.
func testConfig() *config.Config {
	return &config.Config{
		Gateway: config.GatewayConfig{
			Port:                8001,
			Host:                "127.0.0.1",
			LogLevel:            "info",
			MaxTokensPerRequest: 2000,
			MaxToolsPerRequest:  10,
		},
		Backends: map[string]client.BackendConfig{
			"exa": {
				Transport: transport.StreamableHTTP,
				URL:       "http://127.0.0.1:0/mcp",
				Enabled:   false,
			},
		},
	}
}

func newTestApp(t *testing.T) *app.App {
	t.Helper()
	cfg := testConfig()
	provider := &mock.Provider{EmbedResult: []float32{1, 0, 0}}

	metrics, err := observe.NewMetrics(otel.GetMeterProvider())
	require.NoError(t, err)

	a, err := app.New(context.Background(), cfg, "",
		app.WithEmbeddingProvider(provider),
		app.WithMetrics(metrics),
	)
	require.NoError(t, err)
	require.NotNil(t, a)

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = a.Shutdown(ctx)
	})
	return a
}

func TestNewWiresAllSubsystems(t *testing.T) {
	a := newTestApp(t)

	assert.NotNil(t, a.Registry())
	assert.NotNil(t, a.Manager())
	assert.NotNil(t, a.Proxy())
	assert.NotNil(t, a.HTTPHandler())
	assert.NotNil(t, a.MCPHandler())
}

func TestHTTPHandlerServesHealth(t *testing.T) {
	a := newTestApp(t)

	srv := httptest.NewServer(a.HTTPHandler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.NotEqual(t, http.StatusNotFound, resp.StatusCode)
}

func TestShutdownIsIdempotent(t *testing.T) {
	a := newTestApp(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, a.Shutdown(ctx))
	require.NoError(t, a.Shutdown(ctx))
}
