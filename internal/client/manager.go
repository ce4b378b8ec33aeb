// Package client owns every live session to a backend MCP server: connect,
// reconnect with backoff and circuit-breaking, health checks, tool-call
// dispatch, and graceful teardown. It is the Client Manager (C4): the only
// writer of [registry.Tool] records (via bulk per-server replace) and the
// exclusive owner of [ServerStatus].
package client

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/mcpgateway/internal/registry"
	"github.com/MrWong99/mcpgateway/internal/resilience"
)

// defaultMaxErrorsPerMinute sets the threshold of each backend's circuit
// breaker: 2x this many consecutive failed connection attempts open it and
// throttle the backend for 30s before the next attempt. The breaker counts
// consecutive failures; it keeps no per-minute error window.
const defaultMaxErrorsPerMinute = 10

// backend holds everything the manager tracks for one desired server.
type backend struct {
	mu sync.Mutex

	cfg     BackendConfig
	sess    session
	status  ServerStatus
	breaker *resilience.CircuitBreaker

	healthFails int
	cancel      context.CancelFunc
}

// Manager owns the map of backend name -> live session and drives
// connect/reconnect/health-check lifecycles in background goroutines.
//
// The zero value is not usable; create instances with [New].
type Manager struct {
	mu       sync.RWMutex
	backends map[string]*backend

	reconcileMu sync.Mutex

	registry  *registry.Registry
	sdkClient *mcpsdk.Client
	connect   connector
}

// Option configures a Manager at construction time.
type Option func(*Manager)

// WithConnector overrides how the manager opens new sessions. Used by tests
// to substitute a fake backend without a real subprocess or socket.
func WithConnector(c connector) Option {
	return func(m *Manager) { m.connect = c }
}

// New creates a ready-to-use Manager backed by reg.
func New(reg *registry.Registry, opts ...Option) *Manager {
	m := &Manager{
		backends: make(map[string]*backend),
		registry: reg,
		sdkClient: mcpsdk.NewClient(
			&mcpsdk.Implementation{Name: "mcpgateway", Version: "1.0.0"},
			nil,
		),
		connect: sdkConnect,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func newBreaker(name string) *resilience.CircuitBreaker {
	return resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		Name:         name,
		MaxFailures:  2 * defaultMaxErrorsPerMinute,
		ResetTimeout: 30 * time.Second,
	})
}

// Connect registers (or reconnects) the backend described by cfg. If cfg is
// disabled, the backend is recorded as desired but not connected. Returns the
// error from the initial connection attempt, if any; background retries
// continue regardless.
func (m *Manager) Connect(ctx context.Context, cfg BackendConfig) error {
	cfg = cfg.withDefaults()

	m.mu.Lock()
	b, exists := m.backends[cfg.Name]
	if !exists {
		b = &backend{breaker: newBreaker(cfg.Name)}
		m.backends[cfg.Name] = b
	}
	m.mu.Unlock()

	b.mu.Lock()
	b.cfg = cfg
	b.status.Name = cfg.Name
	b.status.Enabled = cfg.Enabled
	b.mu.Unlock()

	if !cfg.Enabled {
		b.mu.Lock()
		if b.cancel != nil {
			b.cancel()
			b.cancel = nil
		}
		if b.sess != nil {
			_ = b.sess.Close()
			b.sess = nil
		}
		b.status.Connected = false
		b.mu.Unlock()
		m.registry.RemoveServer(cfg.Name)
		return nil
	}

	err := m.connectBackend(ctx, b)
	m.ensureSupervisor(b)
	return err
}

// Disconnect closes the named backend's session, removes its tools from the
// registry, and stops its background supervisor.
func (m *Manager) Disconnect(name string) error {
	m.mu.Lock()
	b, ok := m.backends[name]
	if ok {
		delete(m.backends, name)
	}
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownBackend, name)
	}

	b.mu.Lock()
	if b.cancel != nil {
		b.cancel()
	}
	if b.sess != nil {
		_ = b.sess.Close()
	}
	b.sess = nil
	b.mu.Unlock()

	m.registry.RemoveServer(name)
	return nil
}

// Reconcile brings the live set of backends in line with cfgs: missing
// backends are connected, extras are disconnected, and backends whose
// adapter-relevant fields (transport/command/args/env/url/headers) changed
// are reconnected. Backends that are otherwise unchanged are left untouched
// even if non-connection fields (tool filter, health, options) differ — the
// new values are simply recorded for the next reconnect.
//
// Reconcile is serialized: overlapping calls apply in arrival order.
func (m *Manager) Reconcile(ctx context.Context, cfgs []BackendConfig) error {
	m.reconcileMu.Lock()
	defer m.reconcileMu.Unlock()

	desired := make(map[string]BackendConfig, len(cfgs))
	for _, c := range cfgs {
		desired[c.Name] = c.withDefaults()
	}

	m.mu.RLock()
	var toRemove []string
	for name := range m.backends {
		if _, ok := desired[name]; !ok {
			toRemove = append(toRemove, name)
		}
	}
	m.mu.RUnlock()

	for _, name := range toRemove {
		_ = m.Disconnect(name)
	}

	var errs []error
	for _, cfg := range cfgs {
		cfg = cfg.withDefaults()

		m.mu.RLock()
		b, exists := m.backends[cfg.Name]
		m.mu.RUnlock()

		if exists {
			b.mu.Lock()
			prior := b.cfg
			wasEnabled := prior.Enabled
			b.mu.Unlock()

			unchanged := connectionEquivalent(prior, cfg) && wasEnabled == cfg.Enabled && wasEnabled
			if unchanged {
				b.mu.Lock()
				b.cfg = cfg
				b.mu.Unlock()
				continue
			}
		}

		if err := m.Connect(ctx, cfg); err != nil {
			errs = append(errs, fmt.Errorf("reconcile %q: %w", cfg.Name, err))
		}
	}
	return errors.Join(errs...)
}

// Call dispatches a tool invocation to the named backend. Returns
// [ErrNotConnected] if the backend is unknown or not currently connected.
func (m *Manager) Call(ctx context.Context, server, tool string, args map[string]any) (*CallResult, error) {
	m.mu.RLock()
	b, ok := m.backends[server]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotConnected, server)
	}

	b.mu.Lock()
	sess := b.sess
	cfg := b.cfg
	connected := b.status.Connected
	b.mu.Unlock()

	if !connected || sess == nil {
		return nil, fmt.Errorf("%w: %q", ErrNotConnected, server)
	}

	cctx := ctx
	if cfg.Options.TimeoutS > 0 {
		var cancel context.CancelFunc
		cctx, cancel = context.WithTimeout(ctx, time.Duration(cfg.Options.TimeoutS)*time.Second)
		defer cancel()
	}

	result, err := sess.CallTool(cctx, tool, args)
	if err != nil {
		switch {
		case errors.Is(cctx.Err(), context.DeadlineExceeded):
			return nil, fmt.Errorf("%w: %v", ErrTimeout, err)
		case errors.Is(cctx.Err(), context.Canceled):
			return nil, fmt.Errorf("%w: %v", ErrCancelled, err)
		}
		b.mu.Lock()
		b.status.Connected = false
		b.status.ErrorMessage = err.Error()
		b.mu.Unlock()
		return nil, err
	}
	return result, nil
}

// Statuses returns the current [ServerStatus] of every known backend, sorted
// by name.
func (m *Manager) Statuses() []ServerStatus {
	m.mu.RLock()
	names := make([]string, 0, len(m.backends))
	for n := range m.backends {
		names = append(names, n)
	}
	m.mu.RUnlock()
	sort.Strings(names)

	out := make([]ServerStatus, 0, len(names))
	for _, n := range names {
		m.mu.RLock()
		b := m.backends[n]
		m.mu.RUnlock()

		b.mu.Lock()
		out = append(out, b.status)
		b.mu.Unlock()
	}
	return out
}

// Close shuts down every backend session in parallel and stops all
// background supervisors. After Close returns the Manager must not be used.
func (m *Manager) Close() error {
	m.mu.Lock()
	backends := make([]*backend, 0, len(m.backends))
	for _, b := range m.backends {
		backends = append(backends, b)
	}
	m.backends = make(map[string]*backend)
	m.mu.Unlock()

	var g errgroup.Group
	for _, b := range backends {
		b := b
		g.Go(func() error {
			b.mu.Lock()
			defer b.mu.Unlock()
			if b.cancel != nil {
				b.cancel()
			}
			var err error
			if b.sess != nil {
				err = b.sess.Close()
			}
			b.sess = nil
			return err
		})
	}
	return g.Wait()
}

// connectBackend performs a single connection attempt: build/open the
// session, enumerate tools, apply the tool filter, and publish the result to
// the registry atomically. Failure updates status but never panics the
// caller's goroutine.
func (m *Manager) connectBackend(ctx context.Context, b *backend) error {
	b.mu.Lock()
	cfg := b.cfg
	b.mu.Unlock()

	cctx, cancel := context.WithTimeout(ctx, time.Duration(cfg.Options.TimeoutS)*time.Second)
	defer cancel()

	sess, err := m.connect(cctx, m.sdkClient, cfg)
	if err != nil {
		b.mu.Lock()
		b.status.Connected = false
		b.status.ErrorMessage = err.Error()
		b.status.HealthStatus = HealthUnknown
		b.mu.Unlock()
		return err
	}

	descriptors, err := sess.ListTools(cctx)
	if err != nil {
		_ = sess.Close()
		b.mu.Lock()
		b.status.Connected = false
		b.status.ErrorMessage = err.Error()
		b.mu.Unlock()
		return err
	}

	var tools []*registry.Tool
	for _, d := range descriptors {
		if !matchesFilter(cfg.ToolFilter, d.Name) {
			continue
		}
		tools = append(tools, toTool(cfg.Name, d))
	}
	m.registry.ReplaceServer(cfg.Name, tools)

	b.mu.Lock()
	if b.sess != nil && b.sess != sess {
		_ = b.sess.Close()
	}
	b.sess = sess
	b.status.Connected = true
	b.status.LastSeen = time.Now()
	b.status.ErrorMessage = ""
	b.status.ToolCount = len(tools)
	b.status.HealthStatus = HealthHealthy
	b.healthFails = 0
	b.mu.Unlock()

	return nil
}

// ensureSupervisor starts the background reconnect/health-check goroutine
// for b, if one is not already running.
func (m *Manager) ensureSupervisor(b *backend) {
	b.mu.Lock()
	if b.cancel != nil {
		b.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	b.cancel = cancel
	b.mu.Unlock()

	go m.supervise(ctx, b)
}

// supervise runs for the lifetime of a backend: while disconnected it
// retries with exponential backoff (2s, 4s, 8s, capped at
// options.retry_count attempts, then a 60s long-term cadence); while
// connected it runs periodic health checks when enabled.
func (m *Manager) supervise(ctx context.Context, b *backend) {
	attempts := 0
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		b.mu.Lock()
		cfg := b.cfg
		connected := b.status.Connected
		b.mu.Unlock()

		if !cfg.Enabled {
			return
		}

		if !connected {
			err := b.breaker.Execute(func() error {
				return m.connectBackend(ctx, b)
			})
			if err != nil {
				attempts++
				if !sleepOrDone(ctx, backoffDelay(attempts, cfg.Options.RetryCount)) {
					return
				}
				continue
			}
			attempts = 0
			continue
		}

		if !cfg.Health.Enabled {
			if !sleepOrDone(ctx, time.Duration(cfg.Health.IntervalS)*time.Second) {
				return
			}
			continue
		}

		if !sleepOrDone(ctx, time.Duration(cfg.Health.IntervalS)*time.Second) {
			return
		}
		m.healthCheck(ctx, b)
	}
}

// healthCheck probes a connected backend with a lightweight tools/list call.
// Three consecutive failures mark the backend unhealthy and close its
// session so the next supervisor iteration reconnects.
func (m *Manager) healthCheck(ctx context.Context, b *backend) {
	b.mu.Lock()
	sess := b.sess
	cfg := b.cfg
	b.mu.Unlock()
	if sess == nil {
		return
	}

	hctx, cancel := context.WithTimeout(ctx, time.Duration(cfg.Health.TimeoutS)*time.Second)
	_, err := sess.ListTools(hctx)
	cancel()

	b.mu.Lock()
	defer b.mu.Unlock()
	b.status.LastHealthCheck = time.Now()
	if err != nil {
		b.healthFails++
		if b.healthFails >= 3 {
			b.status.HealthStatus = HealthUnhealthy
			b.status.Connected = false
			b.status.ErrorMessage = err.Error()
			_ = sess.Close()
			b.sess = nil
		}
		return
	}
	b.healthFails = 0
	b.status.HealthStatus = HealthHealthy
}

// backoffDelay computes the reconnect delay for the given 1-indexed attempt
// number. The first min(attempt, retryCount) attempts use the short
// 2s/4s/8s... sequence; beyond retryCount it settles at a 60s cadence.
func backoffDelay(attempt, retryCount int) time.Duration {
	short := []time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second}
	if attempt <= retryCount && attempt <= len(short) {
		return short[attempt-1]
	}
	return 60 * time.Second
}

// sleepOrDone waits for d or ctx cancellation, whichever comes first.
// Returns false if ctx was cancelled.
func sleepOrDone(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
