package ifc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/bimhub/bimhub/pkg/content"
	"github.com/bimhub/bimhub/pkg/content/keys"
	"github.com/bimhub/bimhub/pkg/models"
	"github.com/bimhub/bimhub/pkg/processing"
	"github.com/bimhub/bimhub/pkg/store"
)

// JobTypeConvert is the queue job type handled by the orchestrator.
const JobTypeConvert = "ifc.convert"

// ConvertPayload is the envelope payload for a conversion job.
type ConvertPayload struct {
	ModelVersionID string `json:"modelVersionId"`
}

// Conversion stages and their stable percentages.
const (
	stageOpening      = "Opening"
	stageProcessing   = "Processing"
	stageGeometry     = "Geometry"
	stageTessellation = "Tessellation"
	stageFinalizing   = "Finalizing"
	stageComplete     = "Complete"
)

var stagePercent = map[string]int{
	stageOpening:      0,
	stageProcessing:   20,
	stageGeometry:     30,
	stageTessellation: 70,
	stageFinalizing:   95,
	stageComplete:     100,
}

// OrchestratorConfig contains orchestrator configuration.
type OrchestratorConfig struct {
	// Store is the entity store.
	Store store.Store

	// Content is the content store artifacts are written to.
	Content content.Store

	// Provider names the content backend on artifact File records.
	Provider string

	// Engine performs geometry and property extraction.
	Engine Engine

	// Notifier receives stage progress. Optional.
	Notifier processing.Notifier

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Orchestrator runs the IFC conversion pipeline for one model version
// per job. It implements processing.Handler.
type Orchestrator struct {
	store    store.Store
	content  content.Store
	provider string
	engine   Engine
	notifier processing.Notifier
	logger   *slog.Logger
}

// NewOrchestrator creates a conversion orchestrator.
func NewOrchestrator(cfg OrchestratorConfig) *Orchestrator {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Notifier == nil {
		cfg.Notifier = processing.NewLogNotifier(cfg.Logger)
	}
	return &Orchestrator{
		store:    cfg.Store,
		content:  cfg.Content,
		provider: cfg.Provider,
		engine:   cfg.Engine,
		notifier: cfg.Notifier,
		logger:   cfg.Logger,
	}
}

// Register binds the orchestrator to its job type.
func (o *Orchestrator) Register(registry *processing.Registry) error {
	return registry.Register(JobTypeConvert,
		func() any { return &ConvertPayload{} },
		o)
}

// Handle converts the model version named by the payload.
func (o *Orchestrator) Handle(ctx context.Context, jobID string, payload any) error {
	convert, ok := payload.(*ConvertPayload)
	if !ok {
		return fmt.Errorf("unexpected payload type %T", payload)
	}
	if convert.ModelVersionID == "" {
		return fmt.Errorf("payload has no model version id")
	}

	run := &conversionRun{
		o:         o,
		jobID:     jobID,
		versionID: convert.ModelVersionID,
		logger:    o.logger.With("job_id", jobID, "model_version_id", convert.ModelVersionID),
	}
	return run.execute(ctx)
}

// conversionRun carries the per-job state, including the artifact keys
// written so far so a failure cleans up exactly what this run produced.
type conversionRun struct {
	o           *Orchestrator
	jobID       string
	versionID   string
	logger      *slog.Logger
	writtenKeys []string
}

func (r *conversionRun) execute(ctx context.Context) error {
	o := r.o

	version, err := o.store.GetModelVersion(ctx, r.versionID)
	if err != nil {
		return r.fail(ctx, fmt.Errorf("failed to load model version: %w", err))
	}
	source, err := o.store.GetFile(ctx, version.IfcFileID)
	if err != nil {
		return r.fail(ctx, fmt.Errorf("failed to load source file: %w", err))
	}
	project, err := o.store.GetProject(ctx, source.ProjectID)
	if err != nil {
		return r.fail(ctx, fmt.Errorf("failed to load project: %w", err))
	}

	if err := o.store.TransitionModelVersion(ctx, version.ID,
		models.VersionStatusPending, models.VersionStatusProcessing); err != nil {
		// Another worker owns the version or it is already terminal.
		return fmt.Errorf("version not in pending state: %w", err)
	}
	if err := o.store.StartProcessingJob(ctx, r.jobID, time.Now()); err != nil &&
		!errors.Is(err, models.ErrJobNotFound) {
		r.logger.Warn("failed to mark job row running", "error", err)
	}
	r.progress(ctx, stageOpening, "opening source file")

	sourcePath, cleanup, err := r.spoolSource(ctx, source)
	if err != nil {
		return r.fail(ctx, err)
	}
	defer cleanup()
	r.progress(ctx, stageProcessing, "source ready")

	r.progress(ctx, stageGeometry, "generating geometry")
	wexBim, err := o.engine.GenerateWexBIM(ctx, sourcePath)
	if err != nil {
		return r.fail(ctx, fmt.Errorf("geometry generation failed: %w", err))
	}

	r.progress(ctx, stageTessellation, "extracting properties")
	elements, err := o.engine.ExtractElements(ctx, sourcePath)
	if err != nil {
		return r.fail(ctx, fmt.Errorf("property extraction failed: %w", err))
	}

	wexBimFile, err := r.writeArtifact(ctx, project, source,
		keys.ArtifactWexBim, ".wexbim", "application/octet-stream",
		models.FileCategoryWexBim, models.FileLinkDerivedFrom, wexBim)
	if err != nil {
		return r.fail(ctx, err)
	}
	propertiesJSON, err := json.Marshal(elements)
	if err != nil {
		return r.fail(ctx, fmt.Errorf("failed to serialize property index: %w", err))
	}
	propertiesFile, err := r.writeArtifact(ctx, project, source,
		keys.ArtifactProperties, ".json", "application/json",
		models.FileCategoryProperties, models.FileLinkPropertiesOf, propertiesJSON)
	if err != nil {
		return r.fail(ctx, err)
	}

	r.progress(ctx, stageFinalizing, "indexing elements")
	if err := o.store.ReplaceIfcElements(ctx, version.ID, elements); err != nil {
		return r.fail(ctx, fmt.Errorf("failed to index elements: %w", err))
	}

	now := time.Now()
	if err := o.store.FinalizeModelVersion(ctx, version.ID, wexBimFile.ID, propertiesFile.ID, now); err != nil {
		return r.fail(ctx, fmt.Errorf("failed to finalize version: %w", err))
	}
	if err := o.store.CompleteProcessingJob(ctx, r.jobID, now); err != nil &&
		!errors.Is(err, models.ErrJobNotFound) {
		r.logger.Warn("failed to mark job row completed", "error", err)
	}

	o.notifier.Publish(ctx, processing.ProcessingProgress{
		JobID:           r.jobID,
		ModelVersionID:  r.versionID,
		Stage:           stageComplete,
		PercentComplete: stagePercent[stageComplete],
		Message:         fmt.Sprintf("indexed %d elements", len(elements)),
		IsComplete:      true,
		IsSuccess:       true,
		Timestamp:       time.Now(),
	})
	r.logger.Info("conversion complete", "elements", len(elements))
	return nil
}

// spoolSource materializes the source bytes into a scoped temporary
// file. The engine reads it twice, so a plain stream is not enough. The
// cleanup function always removes the file.
func (r *conversionRun) spoolSource(ctx context.Context, source *models.File) (string, func(), error) {
	rc, err := r.o.content.OpenRead(ctx, source.StorageKey)
	if err != nil {
		return "", nil, fmt.Errorf("failed to open source content: %w", err)
	}
	if rc == nil {
		return "", nil, fmt.Errorf("source content is missing from storage")
	}
	defer rc.Close()

	tmp, err := os.CreateTemp("", "bimhub-ifc-*"+filepath.Ext(source.Name))
	if err != nil {
		return "", nil, fmt.Errorf("failed to create scratch file: %w", err)
	}
	cleanup := func() {
		if err := os.Remove(tmp.Name()); err != nil && !os.IsNotExist(err) {
			r.logger.Warn("failed to remove scratch file", "path", tmp.Name(), "error", err)
		}
	}
	if _, err := io.Copy(tmp, rc); err != nil {
		tmp.Close()
		cleanup()
		return "", nil, fmt.Errorf("failed to spool source content: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("failed to close scratch file: %w", err)
	}
	return tmp.Name(), cleanup, nil
}

// writeArtifact stores one derived blob, records its File row, and
// links it to the source file.
func (r *conversionRun) writeArtifact(ctx context.Context, project *models.Project, source *models.File,
	artifactType, ext, contentType string, category models.FileCategory,
	linkType models.FileLinkType, data []byte) (*models.File, error) {

	key := keys.ForArtifact(project.WorkspaceID, project.ID, artifactType, ext)
	if err := r.o.content.Put(ctx, key, bytes.NewReader(data), contentType); err != nil {
		return nil, fmt.Errorf("failed to write %s artifact: %w", artifactType, err)
	}
	r.writtenKeys = append(r.writtenKeys, key)

	file := &models.File{
		ProjectID:       project.ID,
		Name:            source.Name + ext,
		ContentType:     contentType,
		SizeBytes:       int64(len(data)),
		Category:        category,
		StorageProvider: r.o.provider,
		StorageKey:      key,
	}
	if _, err := r.o.store.CreateFile(ctx, file); err != nil {
		return nil, fmt.Errorf("failed to record %s artifact: %w", artifactType, err)
	}
	if _, err := r.o.store.CreateFileLink(ctx, &models.FileLink{
		SourceFileID: file.ID,
		TargetFileID: source.ID,
		LinkType:     linkType,
	}); err != nil {
		return nil, fmt.Errorf("failed to link %s artifact: %w", artifactType, err)
	}
	return file, nil
}

// fail moves the version to Failed, removes the artifacts this run
// wrote, and publishes the terminal event. Keys from other runs of the
// same project are untouched.
func (r *conversionRun) fail(ctx context.Context, cause error) error {
	o := r.o
	now := time.Now()

	for _, key := range r.writtenKeys {
		if _, err := o.content.Delete(ctx, key); err != nil {
			r.logger.Warn("failed to remove orphaned artifact", "key", key, "error", err)
		}
	}
	if err := o.store.FailModelVersion(ctx, r.versionID, cause.Error(), now); err != nil &&
		!errors.Is(err, models.ErrInvalidVersionState) &&
		!errors.Is(err, models.ErrModelVersionNotFound) {
		r.logger.Error("failed to mark version failed", "error", err)
	}
	if err := o.store.FailProcessingJob(ctx, r.jobID, cause.Error(), now); err != nil &&
		!errors.Is(err, models.ErrJobNotFound) {
		r.logger.Warn("failed to mark job row failed", "error", err)
	}

	o.notifier.Publish(ctx, processing.ProcessingProgress{
		JobID:          r.jobID,
		ModelVersionID: r.versionID,
		Stage:          "Failed",
		IsComplete:     true,
		IsSuccess:      false,
		ErrorMessage:   cause.Error(),
		Timestamp:      now,
	})
	r.logger.Warn("conversion failed", "error", cause)
	return cause
}

// progress publishes a stage event.
func (r *conversionRun) progress(ctx context.Context, stage, message string) {
	r.o.notifier.Publish(ctx, processing.ProcessingProgress{
		JobID:           r.jobID,
		ModelVersionID:  r.versionID,
		Stage:           stage,
		PercentComplete: stagePercent[stage],
		Message:         message,
		Timestamp:       time.Now(),
	})
}
