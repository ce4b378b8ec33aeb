package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrWong99/mcpgateway/internal/client"
	"github.com/MrWong99/mcpgateway/internal/config"
)

func TestDiffDetectsLogLevelChange(t *testing.T) {
	old := &config.Config{Gateway: config.GatewayConfig{LogLevel: "info"}, Backends: map[string]client.BackendConfig{}}
	new := &config.Config{Gateway: config.GatewayConfig{LogLevel: "debug"}, Backends: map[string]client.BackendConfig{}}

	d := config.Diff(old, new)
	require.True(t, d.LogLevelChanged)
	assert.Equal(t, "debug", d.NewLogLevel)
}

func TestDiffDetectsAddedRemovedAndReconnectBackends(t *testing.T) {
	old := &config.Config{Backends: map[string]client.BackendConfig{
		"exa":  {Name: "exa", Command: "exa-mcp-server"},
		"gone": {Name: "gone", Command: "old"},
	}}
	new := &config.Config{Backends: map[string]client.BackendConfig{
		"exa": {Name: "exa", Command: "exa-mcp-server-v2"}, // command changed -> reconnect
		"new": {Name: "new", Command: "brand-new"},
	}}

	d := config.Diff(old, new)
	require.True(t, d.BackendsChanged)

	byName := make(map[string]config.BackendDiff, len(d.BackendChanges))
	for _, bd := range d.BackendChanges {
		byName[bd.Name] = bd
	}

	assert.True(t, byName["exa"].Reconnect)
	assert.True(t, byName["gone"].Removed)
	assert.True(t, byName["new"].Added)
}

func TestDiffIgnoresUnchangedBackends(t *testing.T) {
	same := client.BackendConfig{Name: "exa", Command: "exa-mcp-server", Enabled: true}
	old := &config.Config{Backends: map[string]client.BackendConfig{"exa": same}}
	new := &config.Config{Backends: map[string]client.BackendConfig{"exa": same}}

	d := config.Diff(old, new)
	assert.False(t, d.BackendsChanged)
	assert.Empty(t, d.BackendChanges)
}
