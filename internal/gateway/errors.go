package gateway

import (
	"errors"
	"net/http"

	"github.com/MrWong99/mcpgateway/internal/client"
	"github.com/MrWong99/mcpgateway/internal/discovery"
	"github.com/MrWong99/mcpgateway/internal/proxy"
)

// statusFor maps a proxy/client/discovery error to the HTTP status code the
// spec assigns to its kind. Unrecognised errors map to 500.
func statusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, proxy.ErrUnknownTool),
		errors.Is(err, proxy.ErrNotProvisioned),
		errors.Is(err, proxy.ErrBudgetExceeded),
		errors.Is(err, discovery.ErrEmptyQuery):
		return http.StatusBadRequest
	case errors.Is(err, client.ErrNotConnected), errors.Is(err, client.ErrUnknownBackend):
		return http.StatusServiceUnavailable
	case errors.Is(err, client.ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, client.ErrToolError):
		return http.StatusBadGateway
	case errors.Is(err, proxy.ErrServerExists):
		return http.StatusConflict
	case errors.Is(err, proxy.ErrUnknownServer):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
