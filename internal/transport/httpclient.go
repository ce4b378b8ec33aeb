package transport

import "net/http"

// headerRoundTripper injects a fixed set of headers into every request it
// forwards, ahead of the configured transport's own RoundTripper.
type headerRoundTripper struct {
	headers map[string]string
	next    http.RoundTripper
}

func (rt *headerRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	if len(rt.headers) > 0 {
		req = req.Clone(req.Context())
		for k, v := range rt.headers {
			req.Header.Set(k, v)
		}
	}
	return rt.next.RoundTrip(req)
}

// headerInjectingClient returns an *http.Client that attaches headers to
// every outbound request, or nil when there are no headers to attach (the
// SDK falls back to its own default client in that case).
func headerInjectingClient(headers map[string]string) *http.Client {
	if len(headers) == 0 {
		return nil
	}
	base := http.DefaultTransport
	return &http.Client{Transport: &headerRoundTripper{headers: headers, next: base}}
}
