package config

import "github.com/MrWong99/mcpgateway/internal/client"

// ConfigDiff describes what changed between two gateway configs.
type ConfigDiff struct {
	BackendsChanged bool
	BackendChanges  []BackendDiff
	LogLevelChanged bool
	NewLogLevel     string
}

// BackendDiff describes what changed for a single backend between two configs.
type BackendDiff struct {
	Name    string
	Added   bool
	Removed bool
	// Reconnect is true if any adapter-relevant field changed (transport,
	// command/args/env, url/headers) or the enabled flag changed — per §4.2's
	// reconcile contract, these
	// require tearing down and re-establishing the session. Other changes
	// (tool_filter, health, options) are applied without reconnecting.
	Reconnect bool
}

// Diff compares old and new configs and returns what changed, suitable for
// deciding what [client.Manager.Reconcile] needs to do.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Gateway.LogLevel != new.Gateway.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Gateway.LogLevel
	}

	for name, oldB := range old.Backends {
		newB, exists := new.Backends[name]
		if !exists {
			d.BackendChanges = append(d.BackendChanges, BackendDiff{Name: name, Removed: true})
			d.BackendsChanged = true
			continue
		}
		if backendNeedsReconnect(oldB, newB) {
			d.BackendChanges = append(d.BackendChanges, BackendDiff{Name: name, Reconnect: true})
			d.BackendsChanged = true
		}
	}
	for name := range new.Backends {
		if _, exists := old.Backends[name]; !exists {
			d.BackendChanges = append(d.BackendChanges, BackendDiff{Name: name, Added: true})
			d.BackendsChanged = true
		}
	}

	return d
}

func backendNeedsReconnect(a, b client.BackendConfig) bool {
	if a.Transport != b.Transport {
		return true
	}
	if a.Command != b.Command || a.URL != b.URL {
		return true
	}
	if a.Enabled != b.Enabled {
		return true
	}
	return !stringSlicesEq(a.Args, b.Args) || !stringMapsEq(a.Env, b.Env) || !stringMapsEq(a.Headers, b.Headers)
}

func stringSlicesEq(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func stringMapsEq(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if bv, ok := b[k]; !ok || bv != v {
			return false
		}
	}
	return true
}
