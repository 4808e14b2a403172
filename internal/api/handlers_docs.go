package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/dgallion1/pagechunk/internal/pipeline"
	"github.com/dgallion1/pagechunk/internal/store"
)

// handleListDocuments lists stored documents, newest first.
func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	if s.docs == nil {
		jsonError(w, "result store disabled", http.StatusServiceUnavailable)
		return
	}
	limit := queryInt(r, "limit", 50)
	offset := queryInt(r, "offset", 0)

	docs, err := s.docs.List(r.Context(), limit, offset)
	if err != nil {
		s.log.Error().Err(err).Msg("list documents")
		jsonError(w, "failed to list documents", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"documents": docs,
		"limit":     limit,
		"offset":    offset,
	})
}

// handleGetDocument returns the stored chunking output.
func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	if s.docs == nil {
		jsonError(w, "result store disabled", http.StatusServiceUnavailable)
		return
	}
	rec, err := s.docs.Get(r.Context(), chi.URLParam(r, "docID"))
	if errors.Is(err, store.ErrNotFound) {
		jsonError(w, "document not found", http.StatusNotFound)
		return
	}
	if err != nil {
		s.log.Error().Err(err).Msg("get document")
		jsonError(w, "failed to read document", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(rec.Output)
}

// handleDeleteDocument removes a document from the result store and its
// published chunks from pathstore.
func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	if s.docs == nil && s.nodes == nil {
		jsonError(w, "no document storage configured", http.StatusServiceUnavailable)
		return
	}
	ctx := r.Context()
	docID := chi.URLParam(r, "docID")

	storeDeleted := false
	if s.docs != nil {
		switch err := s.docs.Delete(ctx, docID); {
		case err == nil:
			storeDeleted = true
		case !errors.Is(err, store.ErrNotFound):
			s.log.Error().Err(err).Str("doc_id", docID).Msg("delete stored document")
			jsonError(w, "failed to delete document", http.StatusInternalServerError)
			return
		}
	}

	nodesDeleted := false
	if s.nodes != nil {
		if err := s.nodes.DeleteNode(ctx, pipeline.DocumentKey(s.cfg.Pathstore.Prefix, docID), true); err != nil {
			s.log.Error().Err(err).Str("doc_id", docID).Msg("delete published chunks")
			jsonError(w, "failed to delete published chunks", http.StatusBadGateway)
			return
		}
		nodesDeleted = true
	}

	if s.nodes == nil && !storeDeleted {
		jsonError(w, "document not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"doc_id":            docID,
		"store_deleted":     storeDeleted,
		"published_deleted": nodesDeleted,
	})
}

// handleDocumentChunks lists the chunks published for a document.
func (s *Server) handleDocumentChunks(w http.ResponseWriter, r *http.Request) {
	if s.nodes == nil {
		jsonError(w, "publishing disabled", http.StatusServiceUnavailable)
		return
	}
	docID := chi.URLParam(r, "docID")
	nodes, err := s.nodes.ListChildren(r.Context(), pipeline.DocumentKey(s.cfg.Pathstore.Prefix, docID)+"/chunks", queryInt(r, "limit", 500))
	if err != nil {
		s.log.Error().Err(err).Str("doc_id", docID).Msg("list published chunks")
		jsonError(w, "failed to list chunks", http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"doc_id": docID,
		"chunks": nodes,
	})
}

func queryInt(r *http.Request, key string, fallback int) int {
	if v := r.URL.Query().Get(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			return n
		}
	}
	return fallback
}
