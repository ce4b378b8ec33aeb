package client

import "time"

// HealthStatus is the observed health of a connected backend.
type HealthStatus string

const (
	HealthHealthy   HealthStatus = "healthy"
	HealthUnhealthy HealthStatus = "unhealthy"
	HealthUnknown   HealthStatus = "unknown"
)

// ServerStatus is the observable, read-only state of one backend connection.
// It is owned exclusively by the [Manager] and read by the gateway surface
// for status endpoints.
type ServerStatus struct {
	Name            string       `json:"name"`
	Enabled         bool         `json:"enabled"`
	Connected       bool         `json:"connected"`
	LastSeen        time.Time    `json:"last_seen,omitzero"`
	ErrorMessage    string       `json:"error_message,omitempty"`
	ToolCount       int          `json:"tool_count"`
	HealthStatus    HealthStatus `json:"health_status"`
	LastHealthCheck time.Time    `json:"last_health_check,omitzero"`
}
