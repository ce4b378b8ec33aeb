// Package proxy implements the Proxy Service (C7): the single business-logic
// layer behind both the HTTP and MCP gateway surfaces. It wraps discovery,
// gating, and the client manager, and owns the process-global ProvisionedSet.
package proxy

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/MrWong99/mcpgateway/internal/client"
	"github.com/MrWong99/mcpgateway/internal/discovery"
	"github.com/MrWong99/mcpgateway/internal/gating"
	"github.com/MrWong99/mcpgateway/internal/registry"
)

// backendManager is the subset of *client.Manager the proxy depends on. A
// narrow interface keeps Service unit-testable against a fake.
type backendManager interface {
	Connect(ctx context.Context, cfg client.BackendConfig) error
	Disconnect(name string) error
	Call(ctx context.Context, server, tool string, args map[string]any) (*client.CallResult, error)
	Statuses() []client.ServerStatus
}

// Service implements every C7 operation.
//
// ProvisionedSet tracking is process-global per the spec's Open Question
// resolution: one Service instance owns one set, shared by every caller.
type Service struct {
	registry  *registry.Registry
	discovery *discovery.Service
	gating    *gating.Service
	manager   backendManager

	requireProvisioning bool

	mu          sync.Mutex
	provisioned map[string]struct{}
}

// Option configures a Service at construction time.
type Option func(*Service)

// WithRequireProvisioning turns on execute_tool enforcement against the
// ProvisionedSet (gateway.require_provisioning config key).
func WithRequireProvisioning(v bool) Option {
	return func(s *Service) { s.requireProvisioning = v }
}

// New builds a proxy Service.
func New(reg *registry.Registry, disc *discovery.Service, gate *gating.Service, mgr backendManager, opts ...Option) *Service {
	s := &Service{
		registry:    reg,
		discovery:   disc,
		gating:      gate,
		manager:     mgr,
		provisioned: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DiscoverTools is a thin wrapper around the Discovery Service.
func (s *Service) DiscoverTools(ctx context.Context, q discovery.Query) ([]discovery.Result, error) {
	return s.discovery.Discover(ctx, q)
}

// ProvisionTools runs the Gating Service and records the accepted set as the
// client's ProvisionedSet; ExecuteTool consults that set only when
// provisioning enforcement is on. Returns
// ErrBudgetExceeded when candidates exist but none fits the requested budget.
func (s *Service) ProvisionTools(req gating.Request) (gating.Result, error) {
	result, err := s.gating.Provision(req)
	if err != nil {
		return result, fmt.Errorf("%w: %v", ErrBudgetExceeded, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range result.Accepted {
		s.provisioned[a.ToolID] = struct{}{}
	}
	return result, nil
}

// ExecuteTool looks up tool_id in the registry, enforces provisioning if
// enabled, splits the id into (server, tool name) using the tool's own known
// server field (avoiding ambiguity from servers whose name contains "_"), and
// delegates the call to the client manager.
func (s *Service) ExecuteTool(ctx context.Context, toolID string, arguments map[string]any) (*client.CallResult, error) {
	t, ok := s.registry.Get(toolID)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTool, toolID)
	}

	if s.requireProvisioning {
		s.mu.Lock()
		_, ok := s.provisioned[toolID]
		s.mu.Unlock()
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrNotProvisioned, toolID)
		}
	}

	toolName := strings.TrimPrefix(toolID, t.Server+"_")
	res, err := s.manager.Call(ctx, t.Server, toolName, arguments)
	if err != nil {
		return nil, err
	}
	if res.IsError {
		return nil, fmt.Errorf("%w: %s", client.ErrToolError, res.Content)
	}
	return res, nil
}

// RegisterServer adds a new backend to the desired set via the client
// manager's connect path. Returns ErrServerExists if the name is already
// known.
func (s *Service) RegisterServer(ctx context.Context, cfg client.BackendConfig) (client.ServerStatus, error) {
	for _, st := range s.manager.Statuses() {
		if st.Name == cfg.Name {
			return client.ServerStatus{}, fmt.Errorf("%w: %q", ErrServerExists, cfg.Name)
		}
	}
	if err := s.manager.Connect(ctx, cfg); err != nil {
		return client.ServerStatus{}, err
	}
	for _, st := range s.manager.Statuses() {
		if st.Name == cfg.Name {
			return st, nil
		}
	}
	return client.ServerStatus{Name: cfg.Name}, nil
}

// ListServers returns the current status of every known backend.
func (s *Service) ListServers() []client.ServerStatus {
	return s.manager.Statuses()
}

// RemoveServer disconnects and forgets a backend. Returns ErrUnknownServer if
// the name is not known.
func (s *Service) RemoveServer(name string) error {
	if err := s.manager.Disconnect(name); err != nil {
		return fmt.Errorf("%w: %v", ErrUnknownServer, err)
	}
	return nil
}
