package client

import "errors"

// Error taxonomy surfaced by the Client Manager. Transport and protocol
// failures are handled locally (reconnect, circuit-break, mark unhealthy)
// and only ever reach a caller as one of these terminal sentinels.
var (
	// ErrNotConnected is returned by Call when the named backend has no live
	// session (unknown name, or known but not currently connected).
	ErrNotConnected = errors.New("client: backend not connected")

	// ErrTransportFailed wraps connect/send/receive failures against a backend.
	ErrTransportFailed = errors.New("client: transport failed")

	// ErrProtocol wraps malformed or out-of-spec JSON-RPC/MCP framing.
	ErrProtocol = errors.New("client: protocol error")

	// ErrTimeout is returned when a call's effective deadline is exceeded.
	ErrTimeout = errors.New("client: timeout")

	// ErrCancelled is returned when a call is aborted by the caller or shutdown.
	ErrCancelled = errors.New("client: cancelled")

	// ErrToolError wraps a typed application-level error returned by a backend
	// tool call (as opposed to a transport/protocol failure).
	ErrToolError = errors.New("client: tool returned an error")

	// ErrUnknownBackend is returned by Disconnect for a name that is not
	// known. Call reports unknown names as ErrNotConnected instead.
	ErrUnknownBackend = errors.New("client: unknown backend")

	// ErrAlreadyExists names a backend that is already registered. No Manager
	// method returns it; Connect on a known name reconnects that backend.
	ErrAlreadyExists = errors.New("client: backend already registered")
)
