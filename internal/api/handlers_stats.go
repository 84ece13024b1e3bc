package api

import "net/http"

func (s *Server) handleCompileStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"queue_depth": s.orchestrator.QueueDepth(),
		"documents":   len(s.orchestrator.List()),
		"stats":       s.orchestrator.Stats(),
	})
}
