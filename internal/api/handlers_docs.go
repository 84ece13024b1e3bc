package api

import (
	"net/http"
	"strconv"

	"github.com/dgallion1/plandag/internal/pipeline"
	"github.com/go-chi/chi/v5"
)

// handleCreateDocument starts a session with its first snapshot. A doc_id
// in the body continues an existing session instead.
func (s *Server) handleCreateDocument(w http.ResponseWriter, r *http.Request) {
	src, rerr := s.readSource(w, r)
	if rerr != nil {
		jsonError(w, rerr.msg, rerr.code)
		return
	}
	s.submit(w, src)
}

// handleUpdateDocument records a new snapshot from the editor.
func (s *Server) handleUpdateDocument(w http.ResponseWriter, r *http.Request) {
	src, rerr := s.readSource(w, r)
	if rerr != nil {
		jsonError(w, rerr.msg, rerr.code)
		return
	}
	src.DocID = chi.URLParam(r, "docID")
	s.submit(w, src)
}

func (s *Server) submit(w http.ResponseWriter, src *source) {
	snap, err := s.orchestrator.Submit(pipeline.Submission{
		DocID:    src.DocID,
		Title:    src.Title,
		Filename: src.Filename,
		Data:     src.Data,
		Now:      src.Now,
	})
	if err != nil {
		jsonError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"doc_id":   snap.ID,
		"revision": snap.Revision,
		"status":   snap.Status,
		"poll_url": "/api/documents/" + snap.ID,
	})
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"documents": s.orchestrator.List()})
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	doc := s.orchestrator.Get(chi.URLParam(r, "docID"))
	if doc == nil {
		jsonError(w, "document not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, doc.Snapshot())
}

// handleGetDAG returns the last valid graph, which may be older than the
// latest revision when that one failed to compile.
func (s *Server) handleGetDAG(w http.ResponseWriter, r *http.Request) {
	doc := s.orchestrator.Get(chi.URLParam(r, "docID"))
	if doc == nil {
		jsonError(w, "document not found", http.StatusNotFound)
		return
	}
	dag, rev := doc.DAG()
	if dag == nil {
		jsonError(w, "document has no compiled graph", http.StatusNotFound)
		return
	}
	w.Header().Set("X-Plan-Revision", strconv.Itoa(rev))
	writeDAG(w, r, dag)
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	if !s.orchestrator.Delete(r.Context(), chi.URLParam(r, "docID")) {
		jsonError(w, "document not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
