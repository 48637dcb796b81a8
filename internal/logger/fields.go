package logger

import "log/slog"

// Standard field keys for structured logging. Use these consistently
// so log aggregation can query across components.
const (
	// Request correlation
	KeyCorrelationID = "correlation_id"
	KeyRequestID     = "request_id"
	KeyRequestMethod = "method"
	KeyRequestPath   = "path"
	KeyClientIP      = "client_ip"
	KeyStatus        = "status"
	KeyDurationMs    = "duration_ms"

	// Tenancy
	KeyUserID      = "user_id"
	KeyWorkspaceID = "workspace_id"
	KeyProjectID   = "project_id"

	// Domain entities
	KeyFileID         = "file_id"
	KeySessionID      = "session_id"
	KeyModelID        = "model_id"
	KeyModelVersionID = "model_version_id"
	KeyJobID          = "job_id"
	KeyJobType        = "job_type"

	// Storage
	KeyStoreType = "store_type"
	KeyKey       = "key"
	KeyBucket    = "bucket"
	KeySize      = "size"

	// OAuth
	KeyClientID = "client_id"
	KeyScope    = "scope"

	KeyError = "error"
)

// Type-safe attribute constructors for the common fields.

func CorrelationID(id string) slog.Attr { return slog.String(KeyCorrelationID, id) }
func UserID(id string) slog.Attr        { return slog.String(KeyUserID, id) }
func WorkspaceID(id string) slog.Attr   { return slog.String(KeyWorkspaceID, id) }
func ProjectID(id string) slog.Attr     { return slog.String(KeyProjectID, id) }
func FileID(id string) slog.Attr        { return slog.String(KeyFileID, id) }
func SessionID(id string) slog.Attr     { return slog.String(KeySessionID, id) }
func ModelVersionID(id string) slog.Attr {
	return slog.String(KeyModelVersionID, id)
}
func JobID(id string) slog.Attr    { return slog.String(KeyJobID, id) }
func Key(k string) slog.Attr       { return slog.String(KeyKey, k) }
func Size(n int64) slog.Attr       { return slog.Int64(KeySize, n) }
func ClientID(id string) slog.Attr { return slog.String(KeyClientID, id) }
func Status(code int) slog.Attr    { return slog.Int(KeyStatus, code) }

// DurationMs returns a slog.Attr for duration in milliseconds.
func DurationMs(ms float64) slog.Attr { return slog.Float64(KeyDurationMs, ms) }

// Err returns a slog.Attr for an error; empty for nil.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}
