package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/dgallion1/docslot/internal/engine"
	"github.com/dgallion1/docslot/internal/pipeline"
	"github.com/dgallion1/docslot/internal/preview"
	"github.com/dgallion1/docslot/internal/store"
)

// jobOptions reads processing_mode and custom_json from a parsed form.
func jobOptions(r *http.Request) (pipeline.Mode, engine.Inputs, error) {
	mode, err := pipeline.ParseMode(r.FormValue("processing_mode"))
	if err != nil {
		return "", engine.Inputs{}, err
	}
	in, err := pipeline.ParseInputs(r.FormValue("custom_json"))
	if err != nil {
		return "", engine.Inputs{}, fmt.Errorf("invalid custom_json: %w", err)
	}
	return mode, in, nil
}

func pollURL(jobID string) string {
	return "/api/documents/jobs/" + jobID
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	// Limit total request size.
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+1024*1024) // extra 1MB for form overhead

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	files := r.MultipartForm.File["file"]
	if len(files) == 0 {
		jsonError(w, "file is required", http.StatusBadRequest)
		return
	}
	mode, in, err := jobOptions(r)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	name, data, err := readUpload(files[0], s.cfg.MaxUploadBytes)
	if err != nil {
		jsonError(w, err.Error(), uploadStatus(err))
		return
	}

	job := pipeline.NewJob(name, mode, data, in)
	if err := s.orchestrator.Submit(job); err != nil {
		jsonError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"job_id":   job.ID,
		"status":   pipeline.StatusQueued,
		"mode":     job.Mode,
		"poll_url": pollURL(job.ID),
	})
}

func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes*10+10*1024*1024)

	if err := r.ParseMultipartForm(64 << 20); err != nil {
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		jsonError(w, "at least one file is required", http.StatusBadRequest)
		return
	}
	mode, in, err := jobOptions(r)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	results := make([]map[string]any, 0, len(files))
	for _, fh := range files {
		name, data, err := readUpload(fh, s.cfg.MaxUploadBytes)
		if err != nil {
			results = append(results, map[string]any{"file_name": name, "error": err.Error()})
			continue
		}

		job := pipeline.NewJob(name, mode, data, in)
		if err := s.orchestrator.Submit(job); err != nil {
			results = append(results, map[string]any{"file_name": name, "job_id": job.ID, "error": err.Error()})
			continue
		}
		results = append(results, map[string]any{
			"file_name": name,
			"job_id":    job.ID,
			"status":    pipeline.StatusQueued,
			"poll_url":  pollURL(job.ID),
		})
	}

	writeJSON(w, http.StatusAccepted, map[string]any{"jobs": results})
}

func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	job := s.orchestrator.GetJob(chi.URLParam(r, "jobID"))
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, job.Snapshot())
}

// completedOutput loads the stored output of a finished job, writing the
// error response itself when there is none.
func (s *Server) completedOutput(w http.ResponseWriter, r *http.Request) *store.Output {
	job := s.orchestrator.GetJob(chi.URLParam(r, "jobID"))
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return nil
	}
	snap := job.Snapshot()
	if snap.Status != pipeline.StatusCompleted {
		jsonError(w, fmt.Sprintf("job is %s", snap.Status), http.StatusConflict)
		return nil
	}
	id, _ := job.Output()
	out, err := s.orchestrator.Store().GetOutput(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		jsonError(w, "output expired", http.StatusGone)
		return nil
	}
	if err != nil {
		s.log.Error("load output failed", "job_id", job.ID, "error", err)
		jsonError(w, "failed to load output", http.StatusInternalServerError)
		return nil
	}
	return out
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	out := s.completedOutput(w, r)
	if out == nil {
		return
	}
	writeDocx(w, out.FileName, out.Document)
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	out := s.completedOutput(w, r)
	if out == nil {
		return
	}
	page, err := preview.Render(out.Document, strings.TrimSuffix(out.FileName, ".docx"))
	if err != nil {
		jsonError(w, "preview failed: "+err.Error(), engineStatus(err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(page)
}
