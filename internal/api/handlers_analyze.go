package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dgallion1/docslot/internal/engine"
	"github.com/dgallion1/docslot/internal/pipeline"
	"github.com/dgallion1/docslot/internal/store"
)

// handleAnalyze tags an uploaded document and keeps it until values for
// its placeholders arrive on the process endpoint.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+1024*1024)

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
	name, data, err := readUpload(files[0], s.cfg.MaxUploadBytes)
	if err != nil {
		jsonError(w, err.Error(), uploadStatus(err))
		return
	}

	det, err := s.orchestrator.Engine().DetectSlots(r.Context(), data)
	if err != nil {
		s.log.Warn("analyze failed", "file", name, "error", err)
		jsonError(w, err.Error(), engineStatus(err))
		return
	}

	a := &store.Analysis{FileName: name, Document: det.Document, Tags: det.Tags(), Prompts: det.Prompts}
	if err := s.orchestrator.Store().SaveAnalysis(r.Context(), a); err != nil {
		s.log.Error("save analysis failed", "file", name, "error", err)
		jsonError(w, "failed to store analysis", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"id":           a.ID,
		"file_name":    name,
		"placeholders": det.Prompts,
		"slots":        det.Slots,
		"anomalies":    det.Anomalies,
		"message":      strconv.Itoa(len(det.Slots)) + " placeholders detected",
	})
}

type processRequest struct {
	Mode string `json:"mode"`
	engine.Inputs
}

// handleProcess fills a stored analysis and returns the finished document.
func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	a, err := s.orchestrator.Store().GetAnalysis(ctx, chi.URLParam(r, "analysisID"))
	if errors.Is(err, store.ErrNotFound) {
		jsonError(w, "analysis not found", http.StatusNotFound)
		return
	}
	if err != nil {
		jsonError(w, "failed to load analysis", http.StatusInternalServerError)
		return
	}

	var req processRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4<<20)).Decode(&req); err != nil {
		jsonError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.Mode == "" {
		req.Mode = string(pipeline.ModeManual)
	}
	mode, err := pipeline.ParseMode(req.Mode)
	if err != nil || mode == pipeline.ModeAuto {
		jsonError(w, "mode must be manual or ai", http.StatusBadRequest)
		return
	}

	eng := s.orchestrator.Engine()
	in := req.Inputs
	if mode == pipeline.ModeAI {
		generated, err := eng.GenerateValues(ctx, a.Document, a.Tags)
		if err != nil {
			s.log.Warn("generate values failed", "analysis_id", a.ID, "error", err)
			jsonError(w, err.Error(), engineStatus(err))
			return
		}
		in.Values = pipeline.MergeValues(generated, in.Values)
	}

	res, err := eng.InjectAndFinish(ctx, a.Document, in)
	if err != nil {
		jsonError(w, err.Error(), engineStatus(err))
		return
	}

	out := &store.Output{AnalysisID: a.ID, FileName: pipeline.OutputName(a.FileName, time.Now()), Document: res.Document}
	if err := s.orchestrator.Store().SaveOutput(ctx, out); err != nil {
		s.log.Error("save output failed", "analysis_id", a.ID, "error", err)
		jsonError(w, "failed to store output", http.StatusInternalServerError)
		return
	}

	w.Header().Set("X-Docslot-Output-Id", out.ID)
	w.Header().Set("X-Docslot-Injected", strconv.Itoa(res.Stats.Injected))
	w.Header().Set("X-Docslot-Violations", strconv.Itoa(len(res.Violations)))
	writeDocx(w, out.FileName, res.Document)
}
