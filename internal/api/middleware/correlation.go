// Package middleware provides HTTP middleware for the BimHub API:
// request correlation and bearer token authentication.
package middleware

import (
	"context"
	"net"
	"net/http"

	"github.com/google/uuid"

	"github.com/bimhub/bimhub/internal/logger"
	"github.com/bimhub/bimhub/internal/telemetry"
)

// Correlation headers echoed on every response.
const (
	HeaderCorrelationID = "X-Correlation-ID"
	HeaderRequestID     = "X-Request-ID"
)

// Context key type for request-scoped values
type contextKey string

const (
	correlationContextKey contextKey = "correlation_id"
	principalContextKey   contextKey = "principal"
)

// CorrelationID retrieves the request correlation id from the context.
// Returns "" outside the correlation middleware.
func CorrelationID(ctx context.Context) string {
	id, _ := ctx.Value(correlationContextKey).(string)
	return id
}

// Correlation assigns every request a correlation identifier, sourced in
// priority order from X-Correlation-ID, X-Request-ID, the active trace
// id, or a freshly generated value. The identifier is echoed in both
// response headers and carried into the logging context.
func Correlation(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(HeaderCorrelationID)
		if id == "" {
			id = r.Header.Get(HeaderRequestID)
		}
		if id == "" {
			id = telemetry.TraceID(r.Context())
		}
		if id == "" {
			id = uuid.New().String()
		}

		w.Header().Set(HeaderCorrelationID, id)
		w.Header().Set(HeaderRequestID, id)

		ctx := context.WithValue(r.Context(), correlationContextKey, id)
		ctx = logger.WithContext(ctx, logger.NewLogContext(id, r.Method, r.URL.Path, ClientIP(r)))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ClientIP returns the client address without the port. The RealIP
// middleware has already rewritten RemoteAddr when a proxy header is
// present.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
