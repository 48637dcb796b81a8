package handlers

import (
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

// FileHandler handles file metadata and content endpoints.
type FileHandler struct {
	store   store.Store
	content content.Store
	checker *authz.Checker
}

// NewFileHandler creates a file handler.
func NewFileHandler(st store.Store, cs content.Store, checker *authz.Checker) *FileHandler {
	return &FileHandler{store: st, content: cs, checker: checker}
}

// resolveFile loads the file and authorizes the caller against its
// project. Soft-deleted files are reported as missing.
func (h *FileHandler) resolveFile(w http.ResponseWriter, r *http.Request, p authz.Principal,
	scopes authz.ScopeRequirement, minRole models.ProjectRole) (*models.File, bool) {

	id := chi.URLParam(r, "id")
	file, err := h.store.GetFile(r.Context(), id)
	if err != nil {
		WriteDomainError(w, r, maskExistence(p, err))
		return nil, false
	}
	if _, ok := checkProject(w, r, h.checker, p, file.ProjectID, scopes, minRole); !ok {
		return nil, false
	}
	if file.IsDeleted {
		WriteDomainError(w, r, maskExistence(p, models.ErrFileNotFound))
		return nil, false
	}
	return file, true
}

// Get handles GET /files/{id}.
func (h *FileHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	file, ok := h.resolveFile(w, r, p, authz.RequireAny(models.ScopeFilesRead), models.ProjectRoleViewer)
	if !ok {
		return
	}
	WriteJSONOK(w, file)
}

// Content handles GET /files/{id}/content.
// Streams the stored bytes with the recorded content type.
func (h *FileHandler) Content(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	file, ok := h.resolveFile(w, r, p, authz.RequireAny(models.ScopeFilesRead), models.ProjectRoleViewer)
	if !ok {
		return
	}

	rc, err := h.content.OpenRead(r.Context(), file.StorageKey)
	if err != nil {
		WriteDomainError(w, r, err)
		return
	}
	if rc == nil {
		// Metadata row without bytes behind it, the blob was removed
		// out of band.
		WriteDomainError(w, r, maskExistence(p, models.ErrFileNotFound))
		return
	}
	defer func() { _ = rc.Close() }()

	contentType := file.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.FormatInt(file.SizeBytes, 10))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.Name))
	if _, err := io.Copy(w, rc); err != nil {
		logger.WarnCtx(r.Context(), "file download interrupted", "file_id", file.ID, "error", err)
	}
}

// List handles GET /projects/{id}/files.
// Supports an optional category filter.
func (h *FileHandler) List(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	projectID := chi.URLParam(r, "id")
	if _, ok := checkProject(w, r, h.checker, p, projectID, authz.RequireAny(models.ScopeFilesRead), models.ProjectRoleViewer); !ok {
		return
	}

	category := r.URL.Query().Get("category")
	if category != "" && !models.FileCategory(category).IsValid() {
		BadRequest(w, r, "Unknown file category")
		return
	}

	page, pageSize := pageParams(r)
	files, total, err := h.store.ListFiles(r.Context(), projectID, models.FileCategory(category), (page-1)*pageSize, pageSize)
	if err != nil {
		WriteDomainError(w, r, err)
		return
	}
	WriteJSONOK(w, PagedList{Items: files, Page: page, PageSize: pageSize, Total: total})
}

// Delete handles DELETE /files/{id}.
// Soft deletes the record and returns the updated metadata. Deleting
// an already deleted file is a no-op returning the current record.
func (h *FileHandler) Delete(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	file, err := h.store.GetFile(r.Context(), id)
	if err != nil {
		WriteDomainError(w, r, maskExistence(p, err))
		return
	}
	if _, ok := checkProject(w, r, h.checker, p, file.ProjectID, authz.RequireAny(models.ScopeFilesWrite), models.ProjectRoleEditor); !ok {
		return
	}

	if !file.IsDeleted {
		if err := h.store.SoftDeleteFile(r.Context(), id); err != nil {
			WriteDomainError(w, r, err)
			return
		}
		file, err = h.store.GetFile(r.Context(), id)
		if err != nil {
			WriteDomainError(w, r, err)
			return
		}
	}
	WriteJSONOK(w, file)
}
