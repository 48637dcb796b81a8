package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/bimhub/bimhub/pkg/authz"
	"github.com/bimhub/bimhub/pkg/models"
	"github.com/bimhub/bimhub/pkg/processing"
	"github.com/bimhub/bimhub/pkg/processing/ifc"
	"github.com/bimhub/bimhub/pkg/store"
	"github.com/bimhub/bimhub/pkg/upload"
)

// UploadHandler handles upload session endpoints.
type UploadHandler struct {
	store    store.Store
	checker  *authz.Checker
	uploads  *upload.Coordinator
	queue    processing.Queue
	maxBytes int64
}

// NewUploadHandler creates an upload handler. maxBytes limits proxied
// upload bodies; zero means unlimited.
func NewUploadHandler(st store.Store, checker *authz.Checker, uploads *upload.Coordinator, queue processing.Queue, maxBytes int64) *UploadHandler {
	return &UploadHandler{
		store:    st,
		checker:  checker,
		uploads:  uploads,
		queue:    queue,
		maxBytes: maxBytes,
	}
}

// ReserveUploadRequest is the request body for POST /projects/{id}/uploads.
type ReserveUploadRequest struct {
	FileName          string `json:"file_name"`
	ContentType       string `json:"content_type,omitempty"`
	ExpectedSizeBytes *int64 `json:"expected_size_bytes,omitempty"`
	Mode              string `json:"mode,omitempty"`
}

// ReserveUploadResponse returns the session and, for direct-to-blob
// reservations, the presigned upload URL.
type ReserveUploadResponse struct {
	Session   *models.UploadSession `json:"session"`
	UploadURL string                `json:"upload_url,omitempty"`
}

// Reserve handles POST /projects/{id}/uploads.
func (h *UploadHandler) Reserve(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	projectID := chi.URLParam(r, "id")
	project, ok := checkProject(w, r, h.checker, p, projectID, authz.RequireAny(models.ScopeFilesWrite), models.ProjectRoleEditor)
	if !ok {
		return
	}

	var req ReserveUploadRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if req.FileName == "" {
		BadRequest(w, r, "file_name is required")
		return
	}
	if req.ExpectedSizeBytes != nil && *req.ExpectedSizeBytes < 0 {
		BadRequest(w, r, "expected_size_bytes must not be negative")
		return
	}

	mode := models.UploadModeServerProxy
	switch req.Mode {
	case "", "server_proxy":
	case "direct_to_blob":
		mode = models.UploadModeDirectToBlob
	default:
		BadRequest(w, r, "Mode must be 'server_proxy' or 'direct_to_blob'")
		return
	}

	session, err := h.uploads.Reserve(r.Context(), upload.ReserveRequest{
		WorkspaceID:       project.WorkspaceID,
		ProjectID:         projectID,
		FileName:          req.FileName,
		ContentType:       req.ContentType,
		ExpectedSizeBytes: req.ExpectedSizeBytes,
		Mode:              mode,
	})
	if err != nil {
		WriteDomainError(w, r, err)
		return
	}

	WriteJSONCreated(w, ReserveUploadResponse{Session: session, UploadURL: session.DirectUploadURL})
}

// Get handles GET /projects/{id}/uploads/{sessionId}.
func (h *UploadHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	projectID := chi.URLParam(r, "id")
	if _, ok := checkProject(w, r, h.checker, p, projectID, authz.RequireAny(models.ScopeFilesRead), models.ProjectRoleViewer); !ok {
		return
	}

	session, err := h.uploads.Get(r.Context(), projectID, chi.URLParam(r, "sessionId"))
	if err != nil {
		WriteDomainError(w, r, maskExistence(p, err))
		return
	}
	WriteJSONOK(w, session)
}

// Content handles POST /projects/{id}/uploads/{sessionId}/content.
// Accepts multipart/form-data and streams the file part through the
// server into the session's temporary key.
func (h *UploadHandler) Content(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	projectID := chi.URLParam(r, "id")
	if _, ok := checkProject(w, r, h.checker, p, projectID, authz.RequireAny(models.ScopeFilesWrite), models.ProjectRoleEditor); !ok {
		return
	}

	if h.maxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)
	}

	part, err := filePart(r)
	if err != nil {
		BadRequest(w, r, "Request must be multipart/form-data with a file part")
		return
	}
	defer func() { _ = part.Close() }()

	session, err := h.uploads.UploadContent(r.Context(), projectID, chi.URLParam(r, "sessionId"), part)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			BadRequest(w, r, "Upload exceeds the configured size limit")
			return
		}
		WriteDomainError(w, r, maskExistence(p, err))
		return
	}
	WriteJSONOK(w, session)
}

// filePart returns the first file part of a multipart request.
func filePart(r *http.Request) (io.ReadCloser, error) {
	mr, err := r.MultipartReader()
	if err != nil {
		return nil, err
	}
	for {
		part, err := mr.NextPart()
		if err != nil {
			return nil, err
		}
		if part.FileName() != "" || part.FormName() == "file" {
			return part, nil
		}
		_ = part.Close()
	}
}

// CommitUploadRequest is the request body for POST /projects/{id}/uploads/{sessionId}/commit.
type CommitUploadRequest struct {
	Category string `json:"category,omitempty"`
	Checksum string `json:"checksum,omitempty"`

	// CreateModelVersion requests a new model version for IFC uploads.
	// Either ModelID names an existing model or ModelName creates one.
	CreateModelVersion bool   `json:"create_model_version,omitempty"`
	ModelID            string `json:"model_id,omitempty"`
	ModelName          string `json:"model_name,omitempty"`
}

// CommitUploadResponse is the response for a commit. ModelVersion and
// Job are set when the commit created a version and enqueued its
// conversion.
type CommitUploadResponse struct {
	File         *models.File          `json:"file"`
	ModelVersion *models.ModelVersion  `json:"model_version,omitempty"`
	Job          *models.ProcessingJob `json:"job,omitempty"`
}

// Commit handles POST /projects/{id}/uploads/{sessionId}/commit.
// Commit is idempotent: repeating it returns the same file.
func (h *UploadHandler) Commit(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	projectID := chi.URLParam(r, "id")
	if _, ok := checkProject(w, r, h.checker, p, projectID, authz.RequireAny(models.ScopeFilesWrite), models.ProjectRoleEditor); !ok {
		return
	}

	var req CommitUploadRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	category := models.FileCategory(req.Category)
	if req.Category != "" && !category.IsValid() {
		BadRequest(w, r, "Unknown file category")
		return
	}
	if req.CreateModelVersion && category != models.FileCategoryIfc {
		BadRequest(w, r, "Model versions can only be created from IFC uploads")
		return
	}

	file, err := h.uploads.Commit(r.Context(), projectID, chi.URLParam(r, "sessionId"), upload.CommitOptions{
		Category: category,
		Checksum: req.Checksum,
	})
	if err != nil {
		WriteDomainError(w, r, maskExistence(p, err))
		return
	}

	response := CommitUploadResponse{File: file}
	if req.CreateModelVersion {
		version, job, err := h.createVersion(r, projectID, file, req)
		if err != nil {
			WriteDomainError(w, r, err)
			return
		}
		response.ModelVersion = version
		response.Job = job
	}

	WriteJSONOK(w, response)
}

// createVersion resolves or creates the target model and enqueues the
// conversion for a freshly committed IFC file.
func (h *UploadHandler) createVersion(r *http.Request, projectID string, file *models.File, req CommitUploadRequest) (*models.ModelVersion, *models.ProcessingJob, error) {
	ctx := r.Context()

	modelID := req.ModelID
	if modelID == "" {
		name := req.ModelName
		if name == "" {
			name = file.Name
		}
		model := &models.Model{ProjectID: projectID, Name: name}
		if _, err := h.store.CreateModel(ctx, model); err != nil {
			return nil, nil, err
		}
		modelID = model.ID
	} else {
		model, err := h.store.GetModel(ctx, modelID)
		if err != nil {
			return nil, nil, err
		}
		if model.ProjectID != projectID {
			return nil, nil, models.ErrModelNotFound
		}
	}

	version := &models.ModelVersion{
		ModelID:   modelID,
		IfcFileID: file.ID,
	}
	if _, err := h.store.CreateModelVersion(ctx, version); err != nil {
		return nil, nil, err
	}

	job, err := enqueueConversion(ctx, h.store, h.queue, version.ID)
	if err != nil {
		return nil, nil, err
	}
	return version, job, nil
}

// enqueueConversion persists the job record and hands the envelope to
// the queue. The durable row and the envelope share one job id so the
// ledger and the job record tell the same story.
func enqueueConversion(ctx context.Context, st store.Store, queue processing.Queue, versionID string) (*models.ProcessingJob, error) {
	job := &models.ProcessingJob{
		ModelVersionID: versionID,
		JobType:        ifc.JobTypeConvert,
	}
	if _, err := st.CreateProcessingJob(ctx, job); err != nil {
		return nil, err
	}

	env, err := processing.NewEnvelopeWithID(job.ID, ifc.JobTypeConvert, &ifc.ConvertPayload{ModelVersionID: versionID})
	if err != nil {
		return nil, err
	}
	if err := queue.Enqueue(ctx, env); err != nil {
		return nil, err
	}
	return job, nil
}
