package transport

import "errors"

// ErrUnknownKind is returned by [Build] when a backend config names a
// transport kind that is not one of stdio, sse, streamable-http.
var ErrUnknownKind = errors.New("unknown transport kind")
