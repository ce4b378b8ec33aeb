// Package config provides the configuration schema, env-substituting loader,
// and polling file watcher for the MCP gateway.
package config

import (
	"github.com/MrWong99/mcpgateway/internal/client"
)

// Config is the root configuration structure for the gateway.
type Config struct {
	Gateway  GatewayConfig                    `yaml:"gateway"`
	Backends map[string]client.BackendConfig `yaml:"backends"`
}

// GatewayConfig holds the gateway.* keys from §6 of the external-interfaces
// reference.
type GatewayConfig struct {
	// Port is the TCP port to bind. Default 8001.
	Port int `yaml:"port"`
	// Host is the bind address. Default "0.0.0.0".
	Host string `yaml:"host"`
	// LogLevel is one of debug/info/warning/error.
	LogLevel string `yaml:"log_level"`
	// MaxTokensPerRequest is the hard ceiling for gating. Default 2000.
	MaxTokensPerRequest int `yaml:"max_tokens_per_request"`
	// MaxToolsPerRequest is the hard ceiling for gating. Default 10.
	MaxToolsPerRequest int `yaml:"max_tools_per_request"`
	// ConfigWatchEnabled turns on reload-on-file-change. Default true.
	ConfigWatchEnabled *bool `yaml:"config_watch_enabled"`
	// HealthCheckIntervalS is the default backend health interval. Default 30.
	HealthCheckIntervalS int `yaml:"health_check_interval_s"`
	// ConnectionTimeoutS is the default per-request deadline. Default 10.
	ConnectionTimeoutS int `yaml:"connection_timeout_s"`
	// RequireProvisioning enforces ProvisionedSet for execute_tool. Default false.
	RequireProvisioning bool `yaml:"require_provisioning"`
}

const (
	DefaultPort                = 8001
	DefaultHost                = "0.0.0.0"
	DefaultLogLevel            = "info"
	DefaultMaxTokensPerRequest = 2000
	DefaultMaxToolsPerRequest  = 10
	DefaultHealthIntervalS     = 30
	DefaultConnectionTimeoutS  = 10
)

// withDefaults returns a copy of g with zero-valued fields replaced by their
// documented defaults.
func (g GatewayConfig) withDefaults() GatewayConfig {
	if g.Port == 0 {
		g.Port = DefaultPort
	}
	if g.Host == "" {
		g.Host = DefaultHost
	}
	if g.LogLevel == "" {
		g.LogLevel = DefaultLogLevel
	}
	if g.MaxTokensPerRequest == 0 {
		g.MaxTokensPerRequest = DefaultMaxTokensPerRequest
	}
	if g.MaxToolsPerRequest == 0 {
		g.MaxToolsPerRequest = DefaultMaxToolsPerRequest
	}
	if g.ConfigWatchEnabled == nil {
		enabled := true
		g.ConfigWatchEnabled = &enabled
	}
	if g.HealthCheckIntervalS == 0 {
		g.HealthCheckIntervalS = DefaultHealthIntervalS
	}
	if g.ConnectionTimeoutS == 0 {
		g.ConnectionTimeoutS = DefaultConnectionTimeoutS
	}
	return g
}

// WatchEnabled reports whether config-file hot-reload is turned on.
func (g GatewayConfig) WatchEnabled() bool {
	return g.ConfigWatchEnabled == nil || *g.ConfigWatchEnabled
}

// ValidLogLevels lists the accepted gateway.log_level values.
var ValidLogLevels = []string{"debug", "info", "warning", "error"}
