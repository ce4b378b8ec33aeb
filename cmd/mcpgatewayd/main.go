// Command mcpgatewayd is the main entry point for the MCP gateway.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/MrWong99/mcpgateway/internal/app"
	"github.com/MrWong99/mcpgateway/internal/config"
	"github.com/MrWong99/mcpgateway/internal/resilience"
	"github.com/MrWong99/mcpgateway/pkg/provider/embeddings"
	"github.com/MrWong99/mcpgateway/pkg/provider/embeddings/hash"
	"github.com/MrWong99/mcpgateway/pkg/provider/embeddings/ollama"
	"github.com/MrWong99/mcpgateway/pkg/provider/embeddings/openai"
)

// maxPortAttempts bounds the "+1…+24" port-binding retry range from spec §6.
const maxPortAttempts = 24

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ─────────────────────────────────────────────────────────────
	configPath := flag.String("config", envOr("CONFIG_PATH", "config.yaml"), "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ───────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "mcpgatewayd: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "mcpgatewayd: %v\n", err)
		}
		return 1
	}

	portExplicit := applyEnvOverrides(cfg)

	// ── Logger ────────────────────────────────────────────────────────────────
	logger := newLogger(cfg.Gateway.LogLevel)
	slog.SetDefault(logger)

	slog.Info("mcpgatewayd starting",
		"config", *configPath,
		"host", cfg.Gateway.Host,
		"port", cfg.Gateway.Port,
		"log_level", cfg.Gateway.LogLevel,
		"backends", len(cfg.Backends),
	)

	// ── Application wiring ────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg, *configPath, app.WithEmbeddingProvider(buildEmbedder()))
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}

	mux := http.NewServeMux()
	mux.Handle("/mcp", application.MCPHandler())
	mux.Handle("/", application.HTTPHandler())

	ln, addr, err := listenWithRetry(cfg.Gateway.Host, cfg.Gateway.Port, portExplicit)
	if err != nil {
		slog.Error("failed to bind listen address", "err", err)
		return 1
	}

	srv := &http.Server{Handler: mux}
	serveErrs := make(chan error, 1)
	go func() {
		slog.Info("gateway ready", "addr", addr, "mcp_path", "/mcp")
		serveErrs <- srv.Serve(ln)
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutdown signal received, stopping…")
	case err := <-serveErrs:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("serve error", "err", err)
		}
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("http server shutdown error", "err", err)
	}
	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// applyEnvOverrides layers HOST/PORT/LOG_LEVEL env vars on top of the loaded
// config, per spec §6. Returns whether PORT was explicitly set — the port
// retry loop only kicks in when it was not.
func applyEnvOverrides(cfg *config.Config) (portExplicit bool) {
	if h, ok := os.LookupEnv("HOST"); ok && h != "" {
		cfg.Gateway.Host = h
	}
	if p, ok := os.LookupEnv("PORT"); ok && p != "" {
		if v, err := strconv.Atoi(p); err == nil {
			cfg.Gateway.Port = v
			portExplicit = true
		}
	}
	if l, ok := os.LookupEnv("LOG_LEVEL"); ok && l != "" {
		cfg.Gateway.LogLevel = l
	}
	return portExplicit
}

// listenWithRetry binds host:port. If the port is occupied and it was not
// explicitly set via PORT, it tries up to maxPortAttempts subsequent ports.
func listenWithRetry(host string, port int, portExplicit bool) (net.Listener, string, error) {
	attempts := 1
	if !portExplicit {
		attempts = maxPortAttempts + 1
	}
	var lastErr error
	for i := 0; i < attempts; i++ {
		addr := net.JoinHostPort(host, strconv.Itoa(port+i))
		ln, err := net.Listen("tcp", addr)
		if err == nil {
			if i > 0 {
				slog.Warn("configured port was occupied, bound alternate port", "configured_port", port, "bound_port", port+i)
			}
			return ln, addr, nil
		}
		lastErr = err
	}
	return nil, "", fmt.Errorf("bind %s:%d (and %d subsequent ports): %w", host, port, attempts-1, lastErr)
}

// buildEmbedder assembles the discovery service's embedding provider.
// OLLAMA_URL and OPENAI_API_KEY are optional env vars that, when set, are
// layered in front of the dependency-free hash provider as a
// [embeddings.FallbackProvider]: if a configured ML backend is unreachable,
// discovery degrades to token-hash similarity instead of failing outright.
func buildEmbedder() embeddings.Provider {
	fallbackHash := hash.New(hash.DefaultDimensions)

	var entries []embeddings.FallbackEntry
	var primary embeddings.Provider = fallbackHash
	primaryName := "hash"

	if url, ok := os.LookupEnv("OLLAMA_URL"); ok && url != "" {
		model := envOr("OLLAMA_EMBED_MODEL", "nomic-embed-text")
		if p, err := ollama.New(url, model); err != nil {
			slog.Warn("failed to construct ollama embedding provider, skipping", "err", err)
		} else {
			primary, primaryName = p, "ollama"
			entries = append(entries, embeddings.FallbackEntry{Name: "hash", Provider: fallbackHash})
		}
	}

	if key, ok := os.LookupEnv("OPENAI_API_KEY"); ok && key != "" {
		if p, err := openai.New(key, ""); err != nil {
			slog.Warn("failed to construct openai embedding provider, skipping", "err", err)
		} else if primaryName == "hash" {
			primary, primaryName = p, "openai"
			entries = append(entries, embeddings.FallbackEntry{Name: "hash", Provider: fallbackHash})
		} else {
			entries = append([]embeddings.FallbackEntry{{Name: "openai", Provider: p}}, entries...)
		}
	}

	if len(entries) == 0 {
		return fallbackHash
	}
	slog.Info("embedding provider configured", "primary", primaryName, "fallbacks", len(entries))
	return embeddings.NewFallback(primaryName, primary, resilience.FallbackConfig{}, entries...)
}

func envOr(name, fallback string) string {
	if v, ok := os.LookupEnv(name); ok && v != "" {
		return v
	}
	return fallback
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
