// Package auth guards the administrative routes with a shared bearer token.
package auth

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/joao-fontenele/storefront-orderflow/internal/audit"
	"github.com/joao-fontenele/storefront-orderflow/internal/domain"
)

const (
	ActorHeader  = "X-Admin-Actor"
	DefaultActor = "admin"
)

type actorKey struct{}

type Recorder interface {
	Record(ctx context.Context, entry domain.AuditLogEntry)
}

type Guard struct {
	token  []byte
	audit  Recorder
	logger *slog.Logger
}

// NewGuard with an empty token rejects every request.
func NewGuard(token string, recorder Recorder, logger *slog.Logger) *Guard {
	if token == "" {
		logger.Warn("ADMIN_TOKEN is not set; admin routes will reject all requests")
	}
	return &Guard{token: []byte(token), audit: recorder, logger: logger}
}

func (g *Guard) Require(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !g.authorized(r) {
			g.logger.Warn("admin access denied", "path", r.URL.Path, "method", r.Method)
			g.audit.Record(r.Context(), audit.WithRequest(domain.AuditLogEntry{
				Action:       domain.AuditAuthAdminAccessDenied,
				Severity:     domain.SeverityWarning,
				ResourceType: domain.ResourceEndpoint,
				ResourceID:   r.Method + " " + r.URL.Path,
			}, r))

			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("WWW-Authenticate", `Bearer realm="admin"`)
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized"})
			return
		}

		actor := strings.TrimSpace(r.Header.Get(ActorHeader))
		if actor == "" {
			actor = DefaultActor
		}
		next(w, r.WithContext(WithActor(r.Context(), actor)))
	}
}

func (g *Guard) authorized(r *http.Request) bool {
	if len(g.token) == 0 {
		return false
	}
	scheme, presented, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(strings.TrimSpace(presented)), g.token) == 1
}

func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFrom returns the authenticated admin name, or DefaultActor.
func ActorFrom(ctx context.Context) string {
	if actor, ok := ctx.Value(actorKey{}).(string); ok && actor != "" {
		return actor
	}
	return DefaultActor
}
