package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/bimhub/bimhub/internal/logger"
	"github.com/bimhub/bimhub/pkg/authz"
	"github.com/bimhub/bimhub/pkg/content"
	"github.com/bimhub/bimhub/pkg/models"
	"github.com/bimhub/bimhub/pkg/store"
)

// VersionHandler handles model version, geometry, and property
// endpoints.
type VersionHandler struct {
	store   store.Store
	content content.Store
	checker *authz.Checker
}

// NewVersionHandler creates a version handler.
func NewVersionHandler(st store.Store, cs content.Store, checker *authz.Checker) *VersionHandler {
	return &VersionHandler{store: st, content: cs, checker: checker}
}

// resolveVersion loads the version, walks up to its project, and runs
// the authorization check.
func (h *VersionHandler) resolveVersion(w http.ResponseWriter, r *http.Request, p authz.Principal,
	scopes authz.ScopeRequirement, minRole models.ProjectRole) (*models.ModelVersion, bool) {

	id := chi.URLParam(r, "id")
	version, err := h.store.GetModelVersion(r.Context(), id)
	if err != nil {
		WriteDomainError(w, r, maskExistence(p, err))
		return nil, false
	}
	model, err := h.store.GetModel(r.Context(), version.ModelID)
	if err != nil {
		WriteDomainError(w, r, maskExistence(p, err))
		return nil, false
	}
	if _, ok := checkProject(w, r, h.checker, p, model.ProjectID, scopes, minRole); !ok {
		return nil, false
	}
	return version, true
}

// Get handles GET /versions/{id}.
func (h *VersionHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	version, ok := h.resolveVersion(w, r, p, authz.RequireAny(models.ScopeModelsRead), models.ProjectRoleViewer)
	if !ok {
		return
	}
	WriteJSONOK(w, version)
}

// WexBim handles GET /versions/{id}/wexbim.
// Streams the converted geometry. Versions that are not Ready yet
// answer with a conflict so clients can poll.
func (h *VersionHandler) WexBim(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	version, ok := h.resolveVersion(w, r, p,
		authz.RequireAny(models.ScopeModelsRead, models.ScopeFilesRead), models.ProjectRoleViewer)
	if !ok {
		return
	}

	if version.Status != models.VersionStatusReady || version.WexBimFileID == nil {
		WriteDomainError(w, r, models.ErrInvalidVersionState)
		return
	}

	file, err := h.store.GetFile(r.Context(), *version.WexBimFileID)
	if err != nil {
		WriteDomainError(w, r, maskExistence(p, err))
		return
	}

	rc, err := h.content.OpenRead(r.Context(), file.StorageKey)
	if err != nil {
		WriteDomainError(w, r, err)
		return
	}
	if rc == nil {
		WriteDomainError(w, r, maskExistence(p, models.ErrFileNotFound))
		return
	}
	defer func() { _ = rc.Close() }()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Length", strconv.FormatInt(file.SizeBytes, 10))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.Name))
	if _, err := io.Copy(w, rc); err != nil {
		logger.WarnCtx(r.Context(), "wexbim download interrupted", "version_id", version.ID, "error", err)
	}
}

// Properties handles GET /versions/{id}/properties.
// Without filters it pages through the extracted elements. The label
// query parameter looks up a single element by entity label or IFC
// global id; type filters by IFC type name.
func (h *VersionHandler) Properties(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	version, ok := h.resolveVersion(w, r, p, authz.RequireAny(models.ScopeModelsRead), models.ProjectRoleViewer)
	if !ok {
		return
	}

	page, pageSize := pageParams(r)
	q := r.URL.Query()

	if label := q.Get("label"); label != "" {
		element, err := h.lookupElement(r, version.ID, label)
		if err != nil {
			if errors.Is(err, models.ErrElementNotFound) {
				WriteJSONOK(w, PagedList{Items: []*models.IfcElement{}, Page: page, PageSize: pageSize, Total: 0})
				return
			}
			WriteDomainError(w, r, err)
			return
		}
		WriteJSONOK(w, PagedList{Items: []*models.IfcElement{element}, Page: page, PageSize: pageSize, Total: 1})
		return
	}

	elements, total, err := h.store.ListIfcElements(r.Context(), version.ID, q.Get("type"), (page-1)*pageSize, pageSize)
	if err != nil {
		WriteDomainError(w, r, err)
		return
	}
	WriteJSONOK(w, PagedList{Items: elements, Page: page, PageSize: pageSize, Total: total})
}

// lookupElement resolves a label filter. Numeric labels address the
// IFC entity label, anything else is treated as a global id.
func (h *VersionHandler) lookupElement(r *http.Request, versionID, label string) (*models.IfcElement, error) {
	if n, err := strconv.Atoi(label); err == nil {
		return h.store.GetIfcElementByLabel(r.Context(), versionID, n)
	}
	return h.store.GetIfcElementByGlobalID(r.Context(), versionID, label)
}
