package handlers

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/mkallaste/podforge/internal/queue"
	"github.com/mkallaste/podforge/internal/registry"
)

const maxUploadBytes = 32 << 20 // 32MB

// Enqueuer is the narrow slice of the queue client the handler needs.
type Enqueuer interface {
	EnqueuePodcastGenerate(payload queue.PodcastGeneratePayload) error
}

type PodcastHandler struct {
	reg       registry.Registry
	enqueuer  Enqueuer
	uploadDir string
}

func NewPodcastHandler(reg registry.Registry, enqueuer Enqueuer, uploadDir string) *PodcastHandler {
	return &PodcastHandler{reg: reg, enqueuer: enqueuer, uploadDir: uploadDir}
}

// Submit accepts a PDF, writes the PENDING record, enqueues the job and
// returns 202 with the job id. Admission failures happen before any
// record or file exists.
func (h *PodcastHandler) Submit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid multipart form"})
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "file required"})
		return
	}
	defer file.Close()

	if !isPDF(header.Filename, header.Header.Get("Content-Type")) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid file type, only PDFs are accepted"})
		return
	}

	jobID := uuid.New().String()

	// Job-scoped name avoids collisions in the shared upload dir.
	inputPath := filepath.Join(h.uploadDir, jobID+"_"+filepath.Base(header.Filename))
	if err := saveUpload(file, inputPath); err != nil {
		slog.Error("failed to save upload", "job_id", jobID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "could not save uploaded file"})
		return
	}

	rec := registry.Record{Status: registry.StatusPending, Message: "Job accepted, waiting to start..."}
	if err := h.reg.Put(r.Context(), jobID, rec); err != nil {
		slog.Warn("failed to write pending record", "job_id", jobID, "error", err)
	}

	if err := h.enqueuer.EnqueuePodcastGenerate(queue.PodcastGeneratePayload{
		JobID:            jobID,
		InputPath:        inputPath,
		OriginalFilename: header.Filename,
	}); err != nil {
		slog.Error("failed to enqueue job", "job_id", jobID, "error", err)
		if rmErr := os.Remove(inputPath); rmErr != nil {
			slog.Warn("failed to remove orphaned upload", "path", inputPath, "error", rmErr)
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "could not start job"})
		return
	}

	slog.Info("podcast job accepted", "job_id", jobID, "filename", header.Filename)
	writeJSON(w, http.StatusAccepted, map[string]string{
		"message": "podcast generation started",
		"job_id":  jobID,
	})
}

// Status returns the current registry record for a job.
func (h *PodcastHandler) Status(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "id")

	rec, found, err := h.reg.Get(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, registry.ErrUnavailable) {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "job status store is unavailable"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if !found {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "job not found or status expired"})
		return
	}

	writeJSON(w, http.StatusOK, rec)
}

// Download streams the finished artifact. Anything but a genuinely
// completed job is refused.
func (h *PodcastHandler) Download(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "id")

	rec, found, err := h.reg.Get(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, registry.ErrUnavailable) {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "job status store is unavailable"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if !found {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "job not found or status expired"})
		return
	}

	switch rec.Status {
	case registry.StatusCompleted:
		if rec.ResultPath == "" {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "result file not recorded"})
			return
		}
		if _, err := os.Stat(rec.ResultPath); err != nil {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "result file not found on server"})
			return
		}
		w.Header().Set("Content-Type", "audio/wav")
		w.Header().Set("Content-Disposition", `attachment; filename="`+filepath.Base(rec.ResultPath)+`"`)
		http.ServeFile(w, r, rec.ResultPath)
	case registry.StatusFailed:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "job failed: " + rec.Error})
	default:
		writeJSON(w, http.StatusConflict, map[string]string{"error": "job is still processing (status: " + rec.Status + ")"})
	}
}

func isPDF(filename, contentType string) bool {
	if contentType == "application/pdf" {
		return true
	}
	return strings.EqualFold(filepath.Ext(filename), ".pdf")
}

func saveUpload(src io.Reader, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	f, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := io.Copy(f, src); err != nil {
		os.Remove(dst)
		return err
	}
	return nil
}
