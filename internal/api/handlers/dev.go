package handlers

import (
	"net/http"
	"time"

	"github.com/bimhub/bimhub/internal/logger"
	"github.com/bimhub/bimhub/pkg/auth"
	"github.com/bimhub/bimhub/pkg/models"
	"github.com/bimhub/bimhub/pkg/store"
)

// DevTokenHandler mints unrestricted tokens without an OAuth dance.
// Routed only when dev mode is enabled; never in production.
type DevTokenHandler struct {
	store  store.Store
	tokens *auth.TokenService
}

// NewDevTokenHandler creates a dev token handler.
func NewDevTokenHandler(st store.Store, tokens *auth.TokenService) *DevTokenHandler {
	return &DevTokenHandler{store: st, tokens: tokens}
}

// DevTokenRequest is the request body for POST /dev/token.
type DevTokenRequest struct {
	Subject     string   `json:"subject"`
	Email       string   `json:"email,omitempty"`
	DisplayName string   `json:"display_name,omitempty"`
	Scopes      []string `json:"scopes,omitempty"`
}

// Mint handles POST /dev/token.
// Creates the user on first sight and issues a token pair without a
// workspace binding, so the token can reach every workspace its user
// is a member of.
func (h *DevTokenHandler) Mint(w http.ResponseWriter, r *http.Request) {
	var req DevTokenRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if req.Subject == "" {
		BadRequest(w, r, "Subject is required")
		return
	}

	scopes := req.Scopes
	if len(scopes) == 0 {
		scopes = models.AllScopes()
	} else if err := models.ValidateScopes(scopes); err != nil {
		WriteDomainError(w, r, err)
		return
	}

	user, err := h.store.EnsureUser(r.Context(), req.Subject, req.Email, req.DisplayName)
	if err != nil {
		WriteDomainError(w, r, err)
		return
	}
	if err := h.store.UpdateLastLogin(r.Context(), user.ID, time.Now()); err != nil {
		logger.WarnCtx(r.Context(), "failed to record last login", "user_id", user.ID, "error", err)
	}

	pair, err := h.tokens.IssueTokenPair(r.Context(), user.ID, "", "", "", scopes, requestMeta(r))
	if err != nil {
		InternalServerError(w, r, err)
		return
	}
	WriteJSONOK(w, pair)
}
