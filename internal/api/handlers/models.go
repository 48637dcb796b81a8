package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/bimhub/bimhub/pkg/authz"
	"github.com/bimhub/bimhub/pkg/models"
	"github.com/bimhub/bimhub/pkg/processing"
	"github.com/bimhub/bimhub/pkg/store"
)

// ModelHandler handles model and model version creation endpoints.
type ModelHandler struct {
	store   store.Store
	checker *authz.Checker
	queue   processing.Queue
}

// NewModelHandler creates a model handler.
func NewModelHandler(st store.Store, checker *authz.Checker, queue processing.Queue) *ModelHandler {
	return &ModelHandler{store: st, checker: checker, queue: queue}
}

// CreateModelRequest is the request body for POST /projects/{id}/models.
type CreateModelRequest struct {
	Name string `json:"name"`
}

// Create handles POST /projects/{id}/models.
func (h *ModelHandler) Create(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	projectID := chi.URLParam(r, "id")
	if _, ok := checkProject(w, r, h.checker, p, projectID, authz.RequireAny(models.ScopeModelsWrite), models.ProjectRoleEditor); !ok {
		return
	}

	var req CreateModelRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if req.Name == "" {
		BadRequest(w, r, "Name is required")
		return
	}

	model := &models.Model{
		ProjectID: projectID,
		Name:      req.Name,
	}
	if _, err := h.store.CreateModel(r.Context(), model); err != nil {
		WriteDomainError(w, r, err)
		return
	}
	WriteJSONCreated(w, model)
}

// List handles GET /projects/{id}/models.
func (h *ModelHandler) List(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	projectID := chi.URLParam(r, "id")
	if _, ok := checkProject(w, r, h.checker, p, projectID, authz.RequireAny(models.ScopeModelsRead), models.ProjectRoleViewer); !ok {
		return
	}

	items, err := h.store.ListModels(r.Context(), projectID)
	if err != nil {
		WriteDomainError(w, r, err)
		return
	}
	page, pageSize := pageParams(r)
	paged, total := pageOf(items, page, pageSize)
	WriteJSONOK(w, PagedList{Items: paged, Page: page, PageSize: pageSize, Total: total})
}

// resolveModel loads the model and authorizes the caller against its
// project.
func (h *ModelHandler) resolveModel(w http.ResponseWriter, r *http.Request, p authz.Principal,
	scopes authz.ScopeRequirement, minRole models.ProjectRole) (*models.Model, bool) {

	id := chi.URLParam(r, "id")
	model, err := h.store.GetModel(r.Context(), id)
	if err != nil {
		WriteDomainError(w, r, maskExistence(p, err))
		return nil, false
	}
	if _, ok := checkProject(w, r, h.checker, p, model.ProjectID, scopes, minRole); !ok {
		return nil, false
	}
	return model, true
}

// Get handles GET /models/{id}.
func (h *ModelHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	model, ok := h.resolveModel(w, r, p, authz.RequireAny(models.ScopeModelsRead), models.ProjectRoleViewer)
	if !ok {
		return
	}
	WriteJSONOK(w, model)
}

// Delete handles DELETE /models/{id}.
func (h *ModelHandler) Delete(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	model, ok := h.resolveModel(w, r, p, authz.RequireAny(models.ScopeModelsWrite), models.ProjectRoleAdmin)
	if !ok {
		return
	}
	if err := h.store.DeleteModel(r.Context(), model.ID); err != nil {
		WriteDomainError(w, r, err)
		return
	}
	WriteNoContent(w)
}

// CreateVersionRequest is the request body for POST /models/{id}/versions.
type CreateVersionRequest struct {
	IfcFileID string `json:"ifc_file_id"`
}

// CreateVersionResponse pairs the new version with its conversion job.
type CreateVersionResponse struct {
	Version *models.ModelVersion  `json:"version"`
	Job     *models.ProcessingJob `json:"job"`
}

// CreateVersion handles POST /models/{id}/versions.
// The source file must belong to the same project, carry the IFC
// category, and not be deleted. The conversion job is enqueued before
// the response is written.
func (h *ModelHandler) CreateVersion(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	model, ok := h.resolveModel(w, r, p, authz.RequireAny(models.ScopeModelsWrite), models.ProjectRoleEditor)
	if !ok {
		return
	}

	var req CreateVersionRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if req.IfcFileID == "" {
		BadRequest(w, r, "ifc_file_id is required")
		return
	}

	file, err := h.store.GetFile(r.Context(), req.IfcFileID)
	if err != nil {
		WriteDomainError(w, r, maskExistence(p, err))
		return
	}
	if file.ProjectID != model.ProjectID {
		BadRequest(w, r, "File belongs to a different project")
		return
	}
	if file.Category != models.FileCategoryIfc {
		BadRequest(w, r, "File is not an IFC source file")
		return
	}
	if file.IsDeleted {
		BadRequest(w, r, "File has been deleted")
		return
	}

	version := &models.ModelVersion{
		ModelID:   model.ID,
		IfcFileID: file.ID,
	}
	if _, err := h.store.CreateModelVersion(r.Context(), version); err != nil {
		WriteDomainError(w, r, err)
		return
	}

	job, err := enqueueConversion(r.Context(), h.store, h.queue, version.ID)
	if err != nil {
		WriteDomainError(w, r, err)
		return
	}
	WriteJSONCreated(w, CreateVersionResponse{Version: version, Job: job})
}

// ListVersions handles GET /models/{id}/versions.
func (h *ModelHandler) ListVersions(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	model, ok := h.resolveModel(w, r, p, authz.RequireAny(models.ScopeModelsRead), models.ProjectRoleViewer)
	if !ok {
		return
	}

	versions, err := h.store.ListModelVersions(r.Context(), model.ID)
	if err != nil {
		WriteDomainError(w, r, err)
		return
	}
	page, pageSize := pageParams(r)
	paged, total := pageOf(versions, page, pageSize)
	WriteJSONOK(w, PagedList{Items: paged, Page: page, PageSize: pageSize, Total: total})
}
