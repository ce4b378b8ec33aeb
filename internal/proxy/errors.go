package proxy

import "errors"

// Error kinds surfaced to the gateway surfaces (C9), per the spec's error
// taxonomy. Each maps to a specific HTTP status in the HTTP face.
var (
	ErrUnknownTool    = errors.New("proxy: unknown tool")
	ErrNotProvisioned = errors.New("proxy: tool not provisioned")
	ErrBudgetExceeded = errors.New("proxy: no tool fits the requested budget")
	ErrServerExists   = errors.New("proxy: server already registered")
	ErrUnknownServer  = errors.New("proxy: unknown server")
)
