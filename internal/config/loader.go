package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"slices"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/MrWong99/mcpgateway/internal/client"
	"github.com/MrWong99/mcpgateway/internal/transport"
)

// ErrUnresolvedVariable is wrapped into the returned error when a `${NAME}`
// reference has no environment value and no `:-default` fallback.
var ErrUnresolvedVariable = errors.New("config: unresolved environment variable")

// rawBackendConfig mirrors client.BackendConfig but uses *bool for fields
// that need a tri-state (unset vs. explicitly false) to apply the spec's
// documented defaults correctly.
type rawBackendConfig struct {
	Transport string            `yaml:"transport"`
	Command   string            `yaml:"command"`
	Args      []string          `yaml:"args"`
	Env       map[string]string `yaml:"env"`
	URL       string            `yaml:"url"`
	Headers   map[string]string `yaml:"headers"`
	Enabled   *bool             `yaml:"enabled"`

	ToolFilter struct {
		Mode string   `yaml:"mode"`
		List []string `yaml:"list"`
	} `yaml:"tool_filter"`

	Health struct {
		Enabled   *bool `yaml:"enabled"`
		IntervalS int   `yaml:"interval_s"`
		TimeoutS  int   `yaml:"timeout_s"`
	} `yaml:"health"`

	Options struct {
		TimeoutS   int `yaml:"timeout_s"`
		RetryCount int `yaml:"retry_count"`
	} `yaml:"options"`
}

type rawConfig struct {
	Gateway  GatewayConfig                `yaml:"gateway"`
	Backends map[string]rawBackendConfig `yaml:"backends"`
}

// Load reads the YAML configuration file at path, substitutes environment
// variables, and returns a validated [Config].
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	cfg, err := parse(data)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, substitutes environment
// variables, and validates the result. Useful in tests.
func LoadFromReader(r io.Reader) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("config: read: %w", err)
	}
	return parse(data)
}

func parse(data []byte) (*Config, error) {
	expanded, err := expandEnv(data)
	if err != nil {
		return nil, err
	}

	var raw rawConfig
	dec := yaml.NewDecoder(newBytesReader(expanded))
	dec.KnownFields(true)
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}

	cfg := &Config{
		Gateway:  raw.Gateway.withDefaults(),
		Backends: make(map[string]client.BackendConfig, len(raw.Backends)),
	}
	for name, rb := range raw.Backends {
		cfg.Backends[name] = toBackendConfig(name, rb)
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func toBackendConfig(name string, rb rawBackendConfig) client.BackendConfig {
	enabled := true
	if rb.Enabled != nil {
		enabled = *rb.Enabled
	}
	healthEnabled := true
	if rb.Health.Enabled != nil {
		healthEnabled = *rb.Health.Enabled
	}

	return client.BackendConfig{
		Name:      name,
		Transport: transport.Kind(rb.Transport),
		Command:   rb.Command,
		Args:      rb.Args,
		Env:       rb.Env,
		URL:       rb.URL,
		Headers:   rb.Headers,
		Enabled:   enabled,
		ToolFilter: client.ToolFilter{
			Mode: rb.ToolFilter.Mode,
			List: rb.ToolFilter.List,
		},
		Health: client.HealthConfig{
			Enabled:   healthEnabled,
			IntervalS: rb.Health.IntervalS,
			TimeoutS:  rb.Health.TimeoutS,
		},
		Options: client.OptionsConfig{
			TimeoutS:   rb.Options.TimeoutS,
			RetryCount: rb.Options.RetryCount,
		},
	}
}

// Validate checks that cfg contains a coherent set of values. It returns a
// joined error listing every validation failure found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Gateway.LogLevel != "" && !slices.Contains(ValidLogLevels, cfg.Gateway.LogLevel) {
		errs = append(errs, fmt.Errorf("gateway.log_level %q is invalid; valid values: %v", cfg.Gateway.LogLevel, ValidLogLevels))
	}
	if cfg.Gateway.Port < 0 || cfg.Gateway.Port > 65535 {
		errs = append(errs, fmt.Errorf("gateway.port %d is out of range", cfg.Gateway.Port))
	}

	names := make([]string, 0, len(cfg.Backends))
	for name := range cfg.Backends {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		b := cfg.Backends[name]
		prefix := fmt.Sprintf("backends.%s", name)
		if !b.Transport.IsValid() {
			errs = append(errs, fmt.Errorf("%s.transport %q is invalid; valid values: stdio, sse, streamable-http", prefix, b.Transport))
			continue
		}
		if b.Transport == transport.Stdio && b.Command == "" {
			errs = append(errs, fmt.Errorf("%s.command is required when transport is stdio", prefix))
		}
		if (b.Transport == transport.SSE || b.Transport == transport.StreamableHTTP) && b.URL == "" {
			errs = append(errs, fmt.Errorf("%s.url is required when transport is %s", prefix, b.Transport))
		}
		mode := b.ToolFilter.Mode
		if mode != "" && mode != client.FilterAllow && mode != client.FilterDeny {
			errs = append(errs, fmt.Errorf("%s.tool_filter.mode %q is invalid; valid values: allow, deny", prefix, mode))
		}
	}

	return errors.Join(errs...)
}

// envRefPattern matches ${NAME} or ${NAME:-default}.
var envRefPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(:-([^}]*))?\}`)

// expandEnv substitutes ${NAME} and ${NAME:-default} references anywhere in
// the raw YAML bytes, before parsing. An unresolvable reference with no
// default form is a hard error, per spec §4.7.
func expandEnv(data []byte) ([]byte, error) {
	var firstErr error
	out := envRefPattern.ReplaceAllFunc(data, func(match []byte) []byte {
		groups := envRefPattern.FindSubmatch(match)
		name := string(groups[1])
		hasDefault := len(groups[2]) > 0
		def := string(groups[3])

		if v, ok := os.LookupEnv(name); ok {
			return []byte(v)
		}
		if hasDefault {
			return []byte(def)
		}
		if firstErr == nil {
			firstErr = fmt.Errorf("%w: %q", ErrUnresolvedVariable, name)
		}
		return match
	})
	if firstErr != nil {
		return nil, firstErr
	}
	return out, nil
}

// bytesReaderImpl wraps a byte slice in a minimal io.Reader, avoiding a
// second copy of the expanded config.
type bytesReaderImpl struct {
	data []byte
	pos  int
}

func newBytesReader(b []byte) io.Reader {
	return &bytesReaderImpl{data: b}
}

func (r *bytesReaderImpl) Read(p []byte) (int, error) {
	if r.pos >= len(r.data) {
		return 0, io.EOF
	}
	n := copy(p, r.data[r.pos:])
	r.pos += n
	return n, nil
}
