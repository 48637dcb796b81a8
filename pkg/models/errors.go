package models

import "errors"

// Common errors for control plane operations.
var (
	// User errors
	ErrUserNotFound  = errors.New("user not found")
	ErrDuplicateUser = errors.New("user already exists")

	// Workspace errors
	ErrWorkspaceNotFound  = errors.New("workspace not found")
	ErrDuplicateWorkspace = errors.New("workspace already exists")

	// Project errors
	ErrProjectNotFound  = errors.New("project not found")
	ErrDuplicateProject = errors.New("project already exists")

	// Membership errors
	ErrMembershipNotFound  = errors.New("membership not found")
	ErrDuplicateMembership = errors.New("membership already exists")
	ErrInvalidRole         = errors.New("invalid role")
	ErrLastOwner           = errors.New("workspace must keep at least one owner")

	// Invite errors
	ErrInviteNotFound = errors.New("invite not found")
	ErrInviteExpired  = errors.New("invite has expired")

	// File errors
	ErrFileNotFound  = errors.New("file not found")
	ErrDuplicateFile = errors.New("file already exists")

	// Upload session errors
	ErrUploadSessionNotFound = errors.New("upload session not found")
	ErrInvalidSessionState   = errors.New("upload session is not in a valid state")

	// Model errors
	ErrModelNotFound        = errors.New("model not found")
	ErrDuplicateModel       = errors.New("model already exists")
	ErrModelVersionNotFound = errors.New("model version not found")
	ErrDuplicateVersion     = errors.New("model version number already exists")
	ErrInvalidVersionState  = errors.New("model version is not in a valid state")

	// Processing errors
	ErrJobNotFound = errors.New("processing job not found")

	// IFC element errors
	ErrElementNotFound = errors.New("ifc element not found")

	// OAuth errors
	ErrOAuthAppNotFound   = errors.New("oauth app not found")
	ErrDuplicateOAuthApp  = errors.New("oauth app already exists")
	ErrAuthCodeNotFound   = errors.New("authorization code not found")
	ErrRefreshNotFound    = errors.New("refresh token not found")
	ErrTokenReuseDetected = errors.New("refresh token reuse detected")

	// PAT errors
	ErrPATNotFound = errors.New("personal access token not found")
	ErrPATRevoked  = errors.New("personal access token is revoked")

	// Scope errors
	ErrUnknownScope = errors.New("unknown scope")
)
