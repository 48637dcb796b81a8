// Package oauth implements the authorization-code grant with PKCE:
// client registry checks, authorization codes, and the token endpoint
// exchange logic. Errors follow the RFC 6749 wire shape.
package oauth

import "fmt"

// RFC 6749 error codes.
const (
	ErrorCodeInvalidRequest       = "invalid_request"
	ErrorCodeInvalidClient        = "invalid_client"
	ErrorCodeInvalidGrant         = "invalid_grant"
	ErrorCodeUnauthorizedClient   = "unauthorized_client"
	ErrorCodeUnsupportedGrantType = "unsupported_grant_type"
	ErrorCodeUnsupportedResponse  = "unsupported_response_type"
	ErrorCodeInvalidScope         = "invalid_scope"
	ErrorCodeAccessDenied         = "access_denied"
	ErrorCodeServerError          = "server_error"
)

// Error is an OAuth protocol error in the RFC 6749 JSON shape.
type Error struct {
	Code        string `json:"error"`
	Description string `json:"error_description,omitempty"`
	URI         string `json:"error_uri,omitempty"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Description == "" {
		return e.Code
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// NewError creates a protocol error.
func NewError(code, description string) *Error {
	return &Error{Code: code, Description: description}
}

// AuthorizeError is a failure of the authorization endpoint. Before the
// client and redirect URI are verified the error must be rendered to the
// user; afterwards it is redirected back to the client with the state.
type AuthorizeError struct {
	Err *Error

	// RedirectURI is empty when the error must be rendered, never
	// redirected.
	RedirectURI string

	// State is echoed back on redirects.
	State string
}

// Error implements the error interface.
func (e *AuthorizeError) Error() string {
	return e.Err.Error()
}

// Unwrap exposes the protocol error for errors.As.
func (e *AuthorizeError) Unwrap() error {
	return e.Err
}

// Redirectable reports whether the error may be sent back to the client.
func (e *AuthorizeError) Redirectable() bool {
	return e.RedirectURI != ""
}

func renderError(code, description string) *AuthorizeError {
	return &AuthorizeError{Err: NewError(code, description)}
}

func redirectError(redirectURI, state, code, description string) *AuthorizeError {
	return &AuthorizeError{
		Err:         NewError(code, description),
		RedirectURI: redirectURI,
		State:       state,
	}
}
