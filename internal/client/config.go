package client

import "github.com/MrWong99/mcpgateway/internal/transport"

// ToolFilter restricts which tools a backend exposes into the registry.
// Matching is case-insensitive; List entries may use a leading and/or
// trailing '*' wildcard (e.g. "*screenshot*").
type ToolFilter struct {
	// Mode is "allow" or "deny". The zero value behaves as "allow".
	Mode string   `yaml:"mode" json:"mode"`
	List []string `yaml:"list" json:"list"`
}

// FilterMode constants.
const (
	FilterAllow = "allow"
	FilterDeny  = "deny"
)

// effectiveMode returns f.Mode defaulted to FilterAllow.
func (f ToolFilter) effectiveMode() string {
	if f.Mode == "" {
		return FilterAllow
	}
	return f.Mode
}

// HealthConfig controls periodic liveness probing of a connected backend.
type HealthConfig struct {
	Enabled   bool `yaml:"enabled" json:"enabled"`
	IntervalS int  `yaml:"interval_s" json:"interval_s"`
	TimeoutS  int  `yaml:"timeout_s" json:"timeout_s"`
}

// OptionsConfig holds per-backend timeout and retry tuning.
type OptionsConfig struct {
	TimeoutS   int `yaml:"timeout_s" json:"timeout_s"`
	RetryCount int `yaml:"retry_count" json:"retry_count"`
}

// BackendConfig is the declarative description of one backend MCP server,
// per the gateway's configuration schema. Name is populated by the config
// loader from the backends.<name> map key, not from a yaml field.
type BackendConfig struct {
	Name      string         `yaml:"-" json:"name,omitempty"`
	Transport transport.Kind `yaml:"transport" json:"transport"`

	// stdio
	Command string            `yaml:"command" json:"command,omitempty"`
	Args    []string          `yaml:"args" json:"args,omitempty"`
	Env     map[string]string `yaml:"env" json:"env,omitempty"`

	// sse / streamable-http
	URL     string            `yaml:"url" json:"url,omitempty"`
	Headers map[string]string `yaml:"headers" json:"headers,omitempty"`

	Enabled bool `yaml:"enabled" json:"enabled"`

	ToolFilter ToolFilter    `yaml:"tool_filter" json:"tool_filter"`
	Health     HealthConfig  `yaml:"health" json:"health"`
	Options    OptionsConfig `yaml:"options" json:"options"`
}

const (
	defaultTimeoutS       = 10
	defaultRetryCount     = 3
	defaultHealthInterval = 30
	defaultHealthTimeout  = 10
)

// withDefaults returns a copy of cfg with zero-valued tunables replaced by
// their documented defaults.
func (cfg BackendConfig) withDefaults() BackendConfig {
	if cfg.Options.TimeoutS <= 0 {
		cfg.Options.TimeoutS = defaultTimeoutS
	}
	if cfg.Options.RetryCount <= 0 {
		cfg.Options.RetryCount = defaultRetryCount
	}
	if cfg.Health.IntervalS <= 0 {
		cfg.Health.IntervalS = defaultHealthInterval
	}
	if cfg.Health.TimeoutS <= 0 {
		cfg.Health.TimeoutS = defaultHealthTimeout
	}
	return cfg
}

// connectionEquivalent reports whether two configs would produce the same
// live connection, i.e. whether [Manager.Reconcile] may leave an existing
// session untouched rather than reconnecting.
func connectionEquivalent(a, b BackendConfig) bool {
	if a.Transport != b.Transport {
		return false
	}
	if a.Command != b.Command || !stringSlicesEqual(a.Args, b.Args) || !stringMapsEqual(a.Env, b.Env) {
		return false
	}
	if a.URL != b.URL || !stringMapsEqual(a.Headers, b.Headers) {
		return false
	}
	return true
}

func stringSlicesEqual(a, b []string) bool {
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

func stringMapsEqual(a, b map[string]string) bool {
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
