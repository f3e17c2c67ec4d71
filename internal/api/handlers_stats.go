package api

import (
	"net/http"
)

func (s *Server) handleLLMStats(w http.ResponseWriter, r *http.Request) {
	if s.llm == nil || s.llm.Stats() == nil {
		jsonError(w, "llm stats unavailable", http.StatusServiceUnavailable)
		return
	}

	stats := s.llm.Stats()
	writeJSON(w, http.StatusOK, map[string]any{
		"model":        s.llm.Model(),
		"stats":        stats.Snapshot(),
		"by_operation": stats.ByOperation(),
	})
}
