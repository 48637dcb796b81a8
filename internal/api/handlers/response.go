// Package handlers implements the HTTP handlers for the BimHub API.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/bimhub/bimhub/internal/api/middleware"
	"github.com/bimhub/bimhub/internal/logger"
	"github.com/bimhub/bimhub/pkg/authz"
	"github.com/bimhub/bimhub/pkg/content"
	"github.com/bimhub/bimhub/pkg/models"
	"github.com/bimhub/bimhub/pkg/upload"
)

// Error codes surfaced in ErrorResponse.Code.
const (
	CodeNotFound        = "not_found"
	CodeConflict        = "conflict"
	CodeAlreadyExists   = "already_exists"
	CodeValidation      = "validation"
	CodeUnauthenticated = "unauthenticated"
	CodeForbidden       = "forbidden"
	CodeCrossWorkspace  = "cross_workspace"
	CodeNotSupported    = "not_supported"
	CodeTransient       = "transient"
	CodeInternal        = "internal"
)

// ErrorResponse is the wire shape for API errors. OAuth endpoints use
// the RFC 6749 shape instead.
type ErrorResponse struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Errors  map[string]string `json:"errors,omitempty"`
	TraceID string            `json:"traceId,omitempty"`
}

// WriteError writes an ErrorResponse with the request correlation id.
func WriteError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	WriteJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
		TraceID: middleware.CorrelationID(r.Context()),
	})
}

// BadRequest writes a 400 validation error.
func BadRequest(w http.ResponseWriter, r *http.Request, message string) {
	WriteError(w, r, http.StatusBadRequest, CodeValidation, message)
}

// NotSupported writes a 400 for operations the backend cannot perform.
func NotSupported(w http.ResponseWriter, r *http.Request, message string) {
	WriteError(w, r, http.StatusBadRequest, CodeNotSupported, message)
}

// Unauthorized writes a 401 error.
func Unauthorized(w http.ResponseWriter, r *http.Request, message string) {
	WriteError(w, r, http.StatusUnauthorized, CodeUnauthenticated, message)
}

// Forbidden writes a 403 error.
func Forbidden(w http.ResponseWriter, r *http.Request, message string) {
	WriteError(w, r, http.StatusForbidden, CodeForbidden, message)
}

// CrossWorkspace writes a 403 for tenant isolation violations. The
// message is fixed so the response does not reveal whether the resource
// exists.
func CrossWorkspace(w http.ResponseWriter, r *http.Request) {
	WriteError(w, r, http.StatusForbidden, CodeCrossWorkspace, "Access denied")
}

// NotFound writes a 404 error.
func NotFound(w http.ResponseWriter, r *http.Request, message string) {
	WriteError(w, r, http.StatusNotFound, CodeNotFound, message)
}

// Conflict writes a 409 error.
func Conflict(w http.ResponseWriter, r *http.Request, message string) {
	WriteError(w, r, http.StatusConflict, CodeConflict, message)
}

// AlreadyExists writes a 409 for duplicate unique constraints.
func AlreadyExists(w http.ResponseWriter, r *http.Request, message string) {
	WriteError(w, r, http.StatusConflict, CodeAlreadyExists, message)
}

// Unavailable writes a 503 for retriable downstream failures.
func Unavailable(w http.ResponseWriter, r *http.Request, message string) {
	WriteError(w, r, http.StatusServiceUnavailable, CodeTransient, message)
}

// InternalServerError writes a 500 error. The underlying cause is
// logged, never sent to the client.
func InternalServerError(w http.ResponseWriter, r *http.Request, err error) {
	logger.ErrorCtx(r.Context(), "Request failed", "error", err)
	WriteError(w, r, http.StatusInternalServerError, CodeInternal, "An internal error occurred")
}

// WriteDomainError maps component errors to their wire codes. Handlers
// call this for any error that crossed a store, content, upload, or
// authorization boundary.
func WriteDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, models.ErrUserNotFound),
		errors.Is(err, models.ErrWorkspaceNotFound),
		errors.Is(err, models.ErrProjectNotFound),
		errors.Is(err, models.ErrMembershipNotFound),
		errors.Is(err, models.ErrInviteNotFound),
		errors.Is(err, models.ErrFileNotFound),
		errors.Is(err, models.ErrUploadSessionNotFound),
		errors.Is(err, models.ErrModelNotFound),
		errors.Is(err, models.ErrModelVersionNotFound),
		errors.Is(err, models.ErrJobNotFound),
		errors.Is(err, models.ErrElementNotFound),
		errors.Is(err, models.ErrOAuthAppNotFound),
		errors.Is(err, models.ErrPATNotFound):
		NotFound(w, r, capitalize(err.Error()))

	case errors.Is(err, models.ErrDuplicateUser),
		errors.Is(err, models.ErrDuplicateWorkspace),
		errors.Is(err, models.ErrDuplicateProject),
		errors.Is(err, models.ErrDuplicateMembership),
		errors.Is(err, models.ErrDuplicateFile),
		errors.Is(err, models.ErrDuplicateModel),
		errors.Is(err, models.ErrDuplicateVersion),
		errors.Is(err, models.ErrDuplicateOAuthApp):
		AlreadyExists(w, r, capitalize(err.Error()))

	case errors.Is(err, models.ErrInvalidSessionState),
		errors.Is(err, models.ErrInvalidVersionState),
		errors.Is(err, models.ErrLastOwner),
		errors.Is(err, models.ErrInviteExpired),
		errors.Is(err, models.ErrPATRevoked),
		errors.Is(err, content.ErrAlreadyExists),
		errors.Is(err, upload.ErrWrongMode),
		errors.Is(err, upload.ErrContentMissing):
		Conflict(w, r, capitalize(err.Error()))

	case errors.Is(err, models.ErrUnknownScope),
		errors.Is(err, models.ErrInvalidRole),
		errors.Is(err, content.ErrInvalidKey):
		BadRequest(w, r, capitalize(err.Error()))

	case errors.Is(err, upload.ErrNotSupported):
		NotSupported(w, r, capitalize(err.Error()))

	case errors.Is(err, authz.ErrCrossWorkspace):
		CrossWorkspace(w, r)

	case errors.Is(err, authz.ErrInsufficientScope):
		Forbidden(w, r, "Token is missing a required scope")

	case errors.Is(err, authz.ErrInsufficientRole):
		Forbidden(w, r, "Role does not permit this operation")

	case errors.Is(err, authz.ErrNotMember):
		Forbidden(w, r, "Not a member")

	case errors.Is(err, content.ErrTransient):
		Unavailable(w, r, "Storage backend is temporarily unavailable")

	default:
		InternalServerError(w, r, err)
	}
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// WriteJSONOK writes a 200 OK JSON response.
func WriteJSONOK(w http.ResponseWriter, data any) {
	WriteJSON(w, http.StatusOK, data)
}

// WriteJSONCreated writes a 201 Created JSON response.
func WriteJSONCreated(w http.ResponseWriter, data any) {
	WriteJSON(w, http.StatusCreated, data)
}

// WriteNoContent writes a 204 No Content response.
func WriteNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	if s[0] >= 'a' && s[0] <= 'z' {
		return string(s[0]-'a'+'A') + s[1:]
	}
	return s
}
