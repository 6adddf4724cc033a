package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/veranemoloko/bookvault/internal/domain"
	errpkg "github.com/veranemoloko/bookvault/internal/errors"
)

// ArchiveServiceI defines the archive operations exposed over HTTP.
type ArchiveServiceI interface {
	RequestDownload(workID string, skipExisting bool) (domain.DownloadResult, error)
	ListTasks() []domain.TaskSnapshot
	GetTask(workID string) (domain.TaskSnapshot, error)
	ArchiveRoot() string
	ListArchivedWorkIDs() ([]string, error)
	WorkMetadata(workID string) (*domain.Work, error)
	Chapter(workID, chapterID string) (domain.ChapterView, error)
}

// ResourceServiceI defines the resource cache operations exposed over HTTP.
type ResourceServiceI interface {
	Sync(ctx context.Context) (domain.SyncReport, error)
	LoadManifest() (domain.ResourceManifest, error)
	ResourcePath(rel string) (string, error)
	HasResource(rel string) bool
}

// ArchiveHandler handles HTTP requests for downloads and the local archive.
type ArchiveHandler struct {
	archive   ArchiveServiceI
	resources ResourceServiceI
	logger    *slog.Logger
}

// NewArchiveHandler creates a new ArchiveHandler.
func NewArchiveHandler(archive ArchiveServiceI, resources ResourceServiceI, logger *slog.Logger) *ArchiveHandler {
	return &ArchiveHandler{
		archive:   archive,
		resources: resources,
		logger:    logger,
	}
}

// RequestDownload handles POST /works/{workID}/download.
func (h *ArchiveHandler) RequestDownload(w http.ResponseWriter, r *http.Request) {
	workID := chi.URLParam(r, "workID")

	var req domain.DownloadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		h.logger.Warn("failed to decode request", "error", err)
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	skip := true
	if req.SkipExisting != nil {
		skip = *req.SkipExisting
	}

	result, err := h.archive.RequestDownload(workID, skip)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	if !result.Accepted {
		writeJSON(w, http.StatusConflict, result)
		return
	}

	h.logger.Info("download accepted", "work_id", workID, "run_id", result.Task.RunID)
	writeJSON(w, http.StatusAccepted, result)
}

// ListTasks handles GET /tasks.
func (h *ArchiveHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.archive.ListTasks())
}

// GetTask handles GET /tasks/{workID}.
func (h *ArchiveHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	snap, err := h.archive.GetTask(chi.URLParam(r, "workID"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// ListArchive handles GET /archive.
func (h *ArchiveHandler) ListArchive(w http.ResponseWriter, r *http.Request) {
	ids, err := h.archive.ListArchivedWorkIDs()
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, domain.ArchiveListing{
		Root:  h.archive.ArchiveRoot(),
		Works: ids,
	})
}

// GetWork handles GET /archive/{workID}.
func (h *ArchiveHandler) GetWork(w http.ResponseWriter, r *http.Request) {
	work, err := h.archive.WorkMetadata(chi.URLParam(r, "workID"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, work)
}

// GetChapter handles GET /archive/{workID}/chapters/{chapterID}.
func (h *ArchiveHandler) GetChapter(w http.ResponseWriter, r *http.Request) {
	view, err := h.archive.Chapter(chi.URLParam(r, "workID"), chi.URLParam(r, "chapterID"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// SyncResources handles POST /resources/sync.
func (h *ArchiveHandler) SyncResources(w http.ResponseWriter, r *http.Request) {
	report, err := h.resources.Sync(r.Context())
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// GetManifest handles GET /resources/manifest.
func (h *ArchiveHandler) GetManifest(w http.ResponseWriter, r *http.Request) {
	manifest, err := h.resources.LoadManifest()
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, manifest)
}

// GetResource handles GET /resources/*.
func (h *ArchiveHandler) GetResource(w http.ResponseWriter, r *http.Request) {
	rel := chi.URLParam(r, "*")

	p, err := h.resources.ResourcePath(rel)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	if !h.resources.HasResource(rel) {
		h.writeServiceError(w, errpkg.NotFound("resource", rel))
		return
	}
	http.ServeFile(w, r, p)
}

func (h *ArchiveHandler) writeServiceError(w http.ResponseWriter, err error) {
	writeServiceError(w, h.logger, err)
}

func writeServiceError(w http.ResponseWriter, logger *slog.Logger, err error) {
	switch {
	case errpkg.IsValidation(err):
		writeError(w, http.StatusBadRequest, err.Error())
	case errpkg.IsNotFound(err):
		writeError(w, http.StatusNotFound, err.Error())
	case errpkg.IsTransport(err):
		logger.Warn("upstream request failed", "error", err)
		writeError(w, http.StatusBadGateway, err.Error())
	case errors.Is(err, errpkg.ErrShuttingDown):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		logger.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func writeRawJSON(w http.ResponseWriter, body json.RawMessage) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		slog.Error("failed to write response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{
		"error": message,
	})
}
