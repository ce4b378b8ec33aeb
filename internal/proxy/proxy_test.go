package proxy

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrWong99/mcpgateway/internal/client"
	"github.com/MrWong99/mcpgateway/internal/discovery"
	"github.com/MrWong99/mcpgateway/internal/gating"
	"github.com/MrWong99/mcpgateway/internal/registry"
	"github.com/MrWong99/mcpgateway/pkg/provider/embeddings/mock"
)

type fakeManager struct {
	mu        sync.Mutex
	statuses  []client.ServerStatus
	connected map[string]client.BackendConfig
	callFn    func(server, tool string) (*client.CallResult, error)
	calls     []string
}

func (f *fakeManager) Connect(_ context.Context, cfg client.BackendConfig) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.connected == nil {
		f.connected = make(map[string]client.BackendConfig)
	}
	f.connected[cfg.Name] = cfg
	f.statuses = append(f.statuses, client.ServerStatus{Name: cfg.Name, Enabled: true, Connected: true})
	return nil
}

func (f *fakeManager) Disconnect(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.connected[name]; !ok {
		return errors.New("not found")
	}
	delete(f.connected, name)
	for i, st := range f.statuses {
		if st.Name == name {
			f.statuses = append(f.statuses[:i], f.statuses[i+1:]...)
			break
		}
	}
	return nil
}

func (f *fakeManager) Call(_ context.Context, server, tool string, _ map[string]any) (*client.CallResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, server+"/"+tool)
	f.mu.Unlock()
	if f.callFn != nil {
		return f.callFn(server, tool)
	}
	return &client.CallResult{Content: "ok"}, nil
}

func (f *fakeManager) Statuses() []client.ServerStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]client.ServerStatus, len(f.statuses))
	copy(out, f.statuses)
	return out
}

func newService(reg *registry.Registry, mgr backendManager, opts ...Option) *Service {
	disc := discovery.New(reg, &mock.Provider{EmbedResult: []float32{1, 0}, EmbedBatchResult: [][]float32{{1, 0}}})
	gate := gating.New(reg, 10, 2000)
	return New(reg, disc, gate, mgr, opts...)
}

func TestExecuteToolSplitsIDUsingKnownServerPrefix(t *testing.T) {
	reg := registry.New()
	// Server name itself contains an underscore, which would make a naive
	// first-"_"-split ambiguous; the proxy must use the tool's known Server
	// field instead.
	reg.ReplaceServer("my_server", []*registry.Tool{
		{ID: "my_server_do_thing", Server: "my_server", Name: "do_thing"},
	})
	mgr := &fakeManager{}
	s := newService(reg, mgr)

	_, err := s.ExecuteTool(context.Background(), "my_server_do_thing", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"my_server/do_thing"}, mgr.calls)
}

func TestExecuteToolUnknownToolID(t *testing.T) {
	s := newService(registry.New(), &fakeManager{})
	_, err := s.ExecuteTool(context.Background(), "missing", nil)
	assert.ErrorIs(t, err, ErrUnknownTool)
}

func TestExecuteToolEnforcesProvisioningWhenEnabled(t *testing.T) {
	reg := registry.New()
	reg.ReplaceServer("srv", []*registry.Tool{{ID: "srv_a", Server: "srv", Name: "a", EstimatedTokens: 10}})
	mgr := &fakeManager{}
	s := newService(reg, mgr, WithRequireProvisioning(true))

	_, err := s.ExecuteTool(context.Background(), "srv_a", nil)
	assert.ErrorIs(t, err, ErrNotProvisioned)

	s.ProvisionTools(gating.Request{ToolIDs: []string{"srv_a"}})
	_, err = s.ExecuteTool(context.Background(), "srv_a", nil)
	assert.NoError(t, err)
}

func TestExecuteToolConvertsBackendToolErrorIntoErrToolError(t *testing.T) {
	reg := registry.New()
	reg.ReplaceServer("srv", []*registry.Tool{{ID: "srv_a", Server: "srv", Name: "a"}})
	mgr := &fakeManager{callFn: func(string, string) (*client.CallResult, error) {
		return &client.CallResult{Content: "boom", IsError: true}, nil
	}}
	s := newService(reg, mgr)

	_, err := s.ExecuteTool(context.Background(), "srv_a", nil)
	assert.ErrorIs(t, err, client.ErrToolError)
}

func TestRegisterServerRejectsDuplicateName(t *testing.T) {
	mgr := &fakeManager{}
	s := newService(registry.New(), mgr)

	_, err := s.RegisterServer(context.Background(), client.BackendConfig{Name: "exa"})
	require.NoError(t, err)

	_, err = s.RegisterServer(context.Background(), client.BackendConfig{Name: "exa"})
	assert.ErrorIs(t, err, ErrServerExists)
}

func TestRegisterThenRemoveServerRoundTrips(t *testing.T) {
	mgr := &fakeManager{}
	s := newService(registry.New(), mgr)

	before := s.ListServers()
	_, err := s.RegisterServer(context.Background(), client.BackendConfig{Name: "exa"})
	require.NoError(t, err)
	require.NoError(t, s.RemoveServer("exa"))
	after := s.ListServers()

	assert.Equal(t, before, after)
}

func TestRemoveServerUnknownName(t *testing.T) {
	s := newService(registry.New(), &fakeManager{})
	err := s.RemoveServer("missing")
	assert.ErrorIs(t, err, ErrUnknownServer)
}
