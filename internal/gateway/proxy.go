package gateway

import (
	"context"
	"net"
	"net/http"
)

// Request headers passed through to upstream services.
var forwardedRequestHeaders = []string{
	"Content-Type",
	"Authorization",
	"X-Admin-Actor",
	"User-Agent",
	"Traceparent",
	"Tracestate",
	RequestIDHeader,
}

// Response headers copied back to the client.
var forwardedResponseHeaders = []string{
	"Content-Type",
	"Retry-After",
	"WWW-Authenticate",
	"X-RateLimit-Limit",
	"X-RateLimit-Remaining",
	"X-RateLimit-Reset",
}

type ServiceProxy struct {
	baseURL string
	client  *http.Client
}

func NewServiceProxy(baseURL string, client *http.Client) *ServiceProxy {
	return &ServiceProxy{
		baseURL: baseURL,
		client:  client,
	}
}

// ForwardRequest replays r against the upstream at path, keeping the query
// string and appending the caller's address to X-Forwarded-For.
func (p *ServiceProxy) ForwardRequest(ctx context.Context, r *http.Request, path string) (*http.Response, error) {
	target := p.baseURL + path
	if r.URL.RawQuery != "" {
		target += "?" + r.URL.RawQuery
	}

	req, err := http.NewRequestWithContext(ctx, r.Method, target, r.Body)
	if err != nil {
		return nil, err
	}
	req.ContentLength = r.ContentLength

	for _, name := range forwardedRequestHeaders {
		if v := r.Header.Get(name); v != "" {
			req.Header.Set(name, v)
		}
	}
	req.Header.Set("X-Forwarded-For", forwardedFor(r))

	return p.client.Do(req)
}

func forwardedFor(r *http.Request) string {
	client, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		client = r.RemoteAddr
	}
	if prior := r.Header.Get("X-Forwarded-For"); prior != "" {
		return prior + ", " + client
	}
	return client
}
