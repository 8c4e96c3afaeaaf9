package api

import (
	"errors"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"

	"github.com/seantiz/babelpdf/internal/model"
	"github.com/seantiz/babelpdf/internal/store"
)

// historyResponse wraps a list of history entries.
type historyResponse struct {
	History []*model.HistoryEntry `json:"history"`
}

func (s *Server) handleListHistory(w http.ResponseWriter, r *http.Request) {
	u := userFrom(r)

	entries, err := s.store.ListHistory(r.Context(), u.ID)
	if err != nil {
		s.logger.Error("list history", "user_id", u.ID, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to list history")
		return
	}
	if entries == nil {
		entries = []*model.HistoryEntry{}
	}

	s.writeJSON(w, http.StatusOK, historyResponse{History: entries})
}

func (s *Server) handleListAllHistory(w http.ResponseWriter, r *http.Request) {
	entries, err := s.store.ListAllHistory(r.Context())
	if err != nil {
		s.logger.Error("list all history", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to list history")
		return
	}
	if entries == nil {
		entries = []*model.HistoryEntry{}
	}

	s.writeJSON(w, http.StatusOK, historyResponse{History: entries})
}

func (s *Server) handleHistoryDownload(w http.ResponseWriter, r *http.Request) {
	variant := chi.URLParam(r, "variant")
	if variant != model.VariantMono && variant != model.VariantDual {
		s.writeError(w, http.StatusBadRequest, "variant must be mono or dual")
		return
	}

	h, ok := s.loadHistory(w, r)
	if !ok {
		return
	}

	path := h.VariantPath(variant)
	if path == "" {
		s.writeError(w, http.StatusNotFound, "requested output not available")
		return
	}

	s.serveArtifact(w, r, path, downloadName(h.Filename, variant))
}

func (s *Server) handleDeleteHistory(w http.ResponseWriter, r *http.Request) {
	h, ok := s.loadHistory(w, r)
	if !ok {
		return
	}

	// Remove the files first; a dangling file is better than a history row
	// pointing at nothing.
	s.removeEntryFiles(h)

	if err := s.store.DeleteHistory(r.Context(), h.ID); err != nil {
		s.logger.Error("delete history entry", "history_id", h.ID, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to delete history entry")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]string{"message": "history entry deleted"})
}

func (s *Server) handleDeleteUserHistory(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")

	entries, err := s.store.DeleteUserHistory(r.Context(), userID)
	if err != nil {
		s.logger.Error("delete user history", "user_id", userID, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to delete history")
		return
	}
	for _, h := range entries {
		s.removeEntryFiles(h)
	}

	s.writeJSON(w, http.StatusOK, map[string]int{"deleted": len(entries)})
}

// loadHistory fetches the history entry named by the id URL param and
// enforces ownership the same way loadJob does.
func (s *Server) loadHistory(w http.ResponseWriter, r *http.Request) (*model.HistoryEntry, bool) {
	u := userFrom(r)
	id := chi.URLParam(r, "id")

	h, err := s.store.GetHistory(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "history entry not found")
		return nil, false
	}
	if err != nil {
		s.logger.Error("get history entry", "history_id", id, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get history entry")
		return nil, false
	}
	if h.UserID != u.ID && !u.IsAdmin() {
		s.writeError(w, http.StatusForbidden, "access denied")
		return nil, false
	}
	return h, true
}

// removeEntryFiles deletes the output files referenced by a history entry.
// Best-effort: already-gone files are fine, other failures are logged.
func (s *Server) removeEntryFiles(h *model.HistoryEntry) {
	for _, path := range []string{h.MonoPath, h.DualPath} {
		if path == "" {
			continue
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			s.logger.Error("remove output file", "path", path, "error", err)
		}
	}
}
