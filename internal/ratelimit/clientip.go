package ratelimit

import (
	"context"
	"net"
	"net/http"
	"strings"
)

type clientIPKey struct{}

// IPResolver derives the client address from the connection and the
// X-Forwarded-For chain. Only hops appended by trusted proxies are believed;
// anything further left was supplied by the client.
type IPResolver struct {
	trustedProxies int
}

// NewIPResolver trusts that many proxies in front of the service. Zero means
// clients connect directly and forwarding headers are never read.
func NewIPResolver(trustedProxies int) *IPResolver {
	if trustedProxies < 0 {
		trustedProxies = 0
	}
	return &IPResolver{trustedProxies: trustedProxies}
}

// Resolve walks the chain [X-Forwarded-For..., RemoteAddr] from the right,
// skipping one hop per trusted proxy.
func (ip *IPResolver) Resolve(r *http.Request) string {
	chain := []string{}
	if ip.trustedProxies > 0 {
		for _, hop := range r.Header.Values("X-Forwarded-For") {
			for _, part := range strings.Split(hop, ",") {
				if part = strings.TrimSpace(part); part != "" {
					chain = append(chain, part)
				}
			}
		}
	}
	chain = append(chain, remoteHost(r))

	idx := len(chain) - 1 - ip.trustedProxies
	if idx < 0 {
		idx = 0
	}
	return chain[idx]
}

// Middleware stores the resolved address for ClientIP.
func (ip *IPResolver) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := context.WithValue(r.Context(), clientIPKey{}, ip.Resolve(r))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ClientIP returns the address stored by IPResolver.Middleware, falling back
// to the connection's remote host. Forwarding headers are never read here.
func ClientIP(r *http.Request) string {
	if v, ok := r.Context().Value(clientIPKey{}).(string); ok && v != "" {
		return v
	}
	return remoteHost(r)
}

func remoteHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
