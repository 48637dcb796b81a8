package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/bimhub/bimhub/internal/logger"
	"github.com/bimhub/bimhub/pkg/auth"
	"github.com/bimhub/bimhub/pkg/authz"
)

// GetPrincipal retrieves the authenticated principal from the request
// context. The second return is false in routes without the Auth
// middleware.
func GetPrincipal(ctx context.Context) (authz.Principal, bool) {
	p, ok := ctx.Value(principalContextKey).(authz.Principal)
	return p, ok
}

// WithPrincipal stores a principal in the context. Exposed for handler
// tests that exercise handlers without the middleware stack.
func WithPrincipal(ctx context.Context, p authz.Principal) context.Context {
	return context.WithValue(ctx, principalContextKey, p)
}

// extractBearerToken extracts the token from a Bearer Authorization header.
// Returns the token string and true if successful, or empty string and false if not.
func extractBearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", false
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}

	return parts[1], true
}

// writeUnauthenticated writes a 401 in the platform error shape. The
// handlers package owns the full error mapping; this local copy avoids
// an import cycle.
func writeUnauthenticated(w http.ResponseWriter, r *http.Request, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"code":    "unauthenticated",
		"message": message,
		"traceId": CorrelationID(r.Context()),
	})
}

// Auth validates the bearer credential in the Authorization header.
// Personal access tokens resolve through the store; everything else
// parses as a signed access token. The resulting principal is stored in
// the request context and added to the logging scope.
func Auth(tokens *auth.TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := extractBearerToken(r)
			if !ok {
				writeUnauthenticated(w, r, "Authorization header required")
				return
			}

			var principal authz.Principal
			if auth.IsPAT(raw) {
				pat, err := tokens.VerifyPAT(r.Context(), raw, ClientIP(r))
				if err != nil {
					writeUnauthenticated(w, r, "Invalid or expired token")
					return
				}
				principal = authz.Principal{
					UserID:      pat.UserID,
					WorkspaceID: pat.WorkspaceID,
					Scopes:      []string(pat.Scopes),
				}
			} else {
				claims, err := tokens.JWT().ValidateAccessToken(raw)
				if err != nil {
					writeUnauthenticated(w, r, "Invalid or expired token")
					return
				}
				principal = authz.Principal{
					UserID:      claims.Subject,
					WorkspaceID: claims.WorkspaceID,
					Scopes:      claims.Scopes(),
				}
			}

			ctx := WithPrincipal(r.Context(), principal)
			if lc := logger.FromContext(ctx); lc != nil {
				ctx = logger.WithContext(ctx, lc.WithPrincipal(principal.UserID, principal.WorkspaceID))
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
