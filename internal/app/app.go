// Package app wires every gateway subsystem into a running application.
//
// App owns the full lifecycle: New creates and connects all subsystems
// (registry, client manager, discovery, gating, proxy, gateway surfaces,
// config watcher), and Shutdown tears everything down in reverse order.
//
// For testing, inject doubles via functional options (WithEmbeddingProvider,
// WithMetrics). When an option is not provided, New builds a real
// implementation from cfg.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/MrWong99/mcpgateway/internal/client"
	"github.com/MrWong99/mcpgateway/internal/config"
	"github.com/MrWong99/mcpgateway/internal/discovery"
	"github.com/MrWong99/mcpgateway/internal/gateway"
	"github.com/MrWong99/mcpgateway/internal/gateway/mcpsurface"
	"github.com/MrWong99/mcpgateway/internal/gating"
	"github.com/MrWong99/mcpgateway/internal/health"
	"github.com/MrWong99/mcpgateway/internal/observe"
	"github.com/MrWong99/mcpgateway/internal/proxy"
	"github.com/MrWong99/mcpgateway/internal/registry"
	"github.com/MrWong99/mcpgateway/pkg/provider/embeddings"
	"github.com/MrWong99/mcpgateway/pkg/provider/embeddings/hash"
)

// App owns all subsystem lifetimes and orchestrates the gateway.
type App struct {
	cfg *config.Config

	registry  *registry.Registry
	manager   *client.Manager
	discovery *discovery.Service
	gating    *gating.Service
	proxy     *proxy.Service
	metrics   *observe.Metrics

	httpServer *gateway.Server
	mcpServer  *mcpsurface.Server
	watcher    *config.Watcher

	embedder embeddings.Provider

	// closers are called in reverse order during Shutdown.
	closers []func() error

	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithEmbeddingProvider injects an embeddings provider instead of the
// built-in hash default.
func WithEmbeddingProvider(p embeddings.Provider) Option {
	return func(a *App) { a.embedder = p }
}

// WithMetrics injects a Metrics instance instead of observe.DefaultMetrics().
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// New wires every subsystem together: registry, client manager, discovery,
// gating, proxy, both gateway surfaces, and (if enabled) the config watcher.
// configPath is the file New watches for hot reload when
// cfg.Gateway.WatchEnabled() is true; it is ignored otherwise.
//
// Backend connections are attempted synchronously for every enabled backend
// in cfg; a connection failure is logged but does not abort startup — the
// client manager's supervisor goroutines keep retrying in the background.
func New(ctx context.Context, cfg *config.Config, configPath string, opts ...Option) (*App, error) {
	a := &App{cfg: cfg}
	for _, o := range opts {
		o(a)
	}
	if a.embedder == nil {
		a.embedder = hash.New(hash.DefaultDimensions)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	a.registry = registry.New()
	a.manager = client.New(a.registry)
	a.discovery = discovery.New(a.registry, a.embedder)
	a.gating = gating.New(a.registry, cfg.Gateway.MaxToolsPerRequest, cfg.Gateway.MaxTokensPerRequest)
	a.proxy = proxy.New(a.registry, a.discovery, a.gating, a.manager,
		proxy.WithRequireProvisioning(cfg.Gateway.RequireProvisioning),
	)

	a.connectBackends(ctx)
	a.closers = append(a.closers, a.manager.Close)

	healthHandler := a.buildHealthHandler()
	a.httpServer = gateway.New(a.proxy, healthHandler, a.metrics)

	mcpSrv, err := mcpsurface.New(a.proxy)
	if err != nil {
		return nil, fmt.Errorf("app: build mcp surface: %w", err)
	}
	a.mcpServer = mcpSrv

	if configPath != "" && cfg.Gateway.WatchEnabled() {
		if err := a.startWatcher(configPath); err != nil {
			return nil, fmt.Errorf("app: start config watcher: %w", err)
		}
	}

	return a, nil
}

// connectBackends issues an initial Connect for every enabled backend. Errors
// are logged per-backend but never abort startup — a backend that cannot be
// reached yet will keep retrying via its supervisor goroutine.
func (a *App) connectBackends(ctx context.Context) {
	for name, b := range a.cfg.Backends {
		if !b.Enabled {
			continue
		}
		b.Name = name
		if err := a.manager.Connect(ctx, b); err != nil {
			slog.Warn("initial backend connect failed, will retry in background", "backend", name, "err", err)
		}
	}
}

// buildHealthHandler wires one health.Checker per configured backend,
// reporting connected status from the client manager.
func (a *App) buildHealthHandler() *health.Handler {
	var checkers []health.Checker
	for name := range a.cfg.Backends {
		backendName := name
		checkers = append(checkers, health.Checker{
			Name: backendName,
			Check: func(_ context.Context) error {
				for _, st := range a.manager.Statuses() {
					if st.Name == backendName {
						if !st.Connected {
							return fmt.Errorf("backend %q not connected", backendName)
						}
						return nil
					}
				}
				return fmt.Errorf("backend %q unknown", backendName)
			},
		})
	}
	return health.New(checkers...)
}

// startWatcher starts the config file watcher, reconciling the client
// manager whenever the backend set changes.
func (a *App) startWatcher(configPath string) error {
	w, err := config.NewWatcher(configPath, func(old, new *config.Config) {
		diff := config.Diff(old, new)
		if diff.BackendsChanged {
			cfgs := make([]client.BackendConfig, 0, len(new.Backends))
			for name, b := range new.Backends {
				b.Name = name
				cfgs = append(cfgs, b)
			}
			if err := a.manager.Reconcile(context.Background(), cfgs); err != nil {
				slog.Warn("config reconcile error", "err", err)
			}
		}
		if diff.LogLevelChanged {
			slog.Info("log level changed", "new_level", diff.NewLogLevel)
		}
	})
	if err != nil {
		return err
	}
	a.watcher = w
	a.closers = append(a.closers, func() error { w.Stop(); return nil })
	return nil
}

// ─── Accessors ───────────────────────────────────────────────────────────────

// Registry returns the tool registry.
func (a *App) Registry() *registry.Registry { return a.registry }

// Manager returns the client manager.
func (a *App) Manager() *client.Manager { return a.manager }

// Proxy returns the proxy service.
func (a *App) Proxy() *proxy.Service { return a.proxy }

// HTTPHandler returns the HTTP face's http.Handler, ready to serve.
func (a *App) HTTPHandler() http.Handler { return a.httpServer.Handler() }

// MCPHandler returns the MCP face's http.Handler, ready to serve at the
// configured MCP endpoint path.
func (a *App) MCPHandler() http.Handler { return a.mcpServer.Handler() }

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown tears down all subsystems in reverse-init order. It respects the
// context deadline: if ctx expires before all closers finish, remaining
// closers are skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))
		for i := len(a.closers) - 1; i >= 0; i-- {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", i+1)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := a.closers[i](); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}
		slog.Info("shutdown complete")
	})
	return shutdownErr
}
