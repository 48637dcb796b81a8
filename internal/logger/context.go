package logger

import (
	"context"
	"time"
)

// contextKey is a private type for context keys to avoid collisions
type contextKey struct{}

var logContextKey = contextKey{}

// LogContext holds request-scoped logging context. The correlation
// middleware populates it; authenticated handlers add the principal.
type LogContext struct {
	CorrelationID string    // request correlation id (client-supplied or generated)
	RequestID     string    // alias of the correlation id, echoed as X-Request-ID
	RequestMethod string    // HTTP method
	RequestPath   string    // HTTP path
	ClientIP      string    // client IP address (without port)
	UserID        string    // authenticated user, once resolved
	WorkspaceID   string    // tenant of the token, once resolved
	StartTime     time.Time // for duration calculation
}

// WithContext returns a new context carrying the LogContext.
func WithContext(ctx context.Context, lc *LogContext) context.Context {
	return context.WithValue(ctx, logContextKey, lc)
}

// FromContext retrieves the LogContext, or nil if not present.
func FromContext(ctx context.Context) *LogContext {
	if ctx == nil {
		return nil
	}
	lc, _ := ctx.Value(logContextKey).(*LogContext)
	return lc
}

// NewLogContext creates a LogContext for one HTTP request.
func NewLogContext(correlationID, method, path, clientIP string) *LogContext {
	return &LogContext{
		CorrelationID: correlationID,
		RequestID:     correlationID,
		RequestMethod: method,
		RequestPath:   path,
		ClientIP:      clientIP,
		StartTime:     time.Now(),
	}
}

// Clone creates a copy of the LogContext.
func (lc *LogContext) Clone() *LogContext {
	if lc == nil {
		return nil
	}
	copied := *lc
	return &copied
}

// WithPrincipal returns a copy with the authenticated principal set.
func (lc *LogContext) WithPrincipal(userID, workspaceID string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.UserID = userID
		clone.WorkspaceID = workspaceID
	}
	return clone
}

// DurationMs returns the duration since StartTime in milliseconds.
func (lc *LogContext) DurationMs() float64 {
	if lc == nil || lc.StartTime.IsZero() {
		return 0
	}
	return float64(time.Since(lc.StartTime).Microseconds()) / 1000.0
}
