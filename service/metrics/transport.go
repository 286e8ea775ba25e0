package metrics

import (
	"net/http"
	"time"
)

// RoundTripper wraps an http.RoundTripper and records outbound request metrics.
// The client parameter should be a constant identifier for the upstream (e.g., "subscription_api").
// If next is nil, http.DefaultTransport is used.
func RoundTripper(m *Metrics, client string, next http.RoundTripper) http.RoundTripper {
	if next == nil {
		next = http.DefaultTransport
	}
	return roundTripperFunc(func(r *http.Request) (*http.Response, error) {
		start := time.Now()

		resp, err := next.RoundTrip(r)

		// Transport errors have no status code
		statusCode := 0
		if resp != nil {
			statusCode = resp.StatusCode
		}

		duration := time.Since(start).Seconds()
		if m != nil {
			m.RecordHTTPClientRequest(client, r.Method, statusCode, duration)
		}
		return resp, err
	})
}

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}
