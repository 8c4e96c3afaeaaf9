package api

import (
	"errors"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"

	"github.com/seantiz/babelpdf/internal/store"
)

// userListResponse wraps the per-user statistics list.
type userListResponse struct {
	Users []store.UserStats `json:"users"`
}

// adminSettingsRequest is the JSON body for PATCH /admin/settings. Absent
// fields leave the current value untouched.
type adminSettingsRequest struct {
	AllowRegistration *bool `json:"allow_registration"`
}

type adminSettingsResponse struct {
	AllowRegistration bool `json:"allow_registration"`
}

func (s *Server) handleAdminUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.store.GetUserStats(r.Context())
	if err != nil {
		s.logger.Error("get user stats", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get user stats")
		return
	}
	if users == nil {
		users = []store.UserStats{}
	}

	s.writeJSON(w, http.StatusOK, userListResponse{Users: users})
}

func (s *Server) handleAdminStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.GetSystemStats(r.Context())
	if err != nil {
		s.logger.Error("get system stats", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get system stats")
		return
	}

	s.writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleAdminSettings(w http.ResponseWriter, r *http.Request) {
	var req adminSettingsRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if req.AllowRegistration != nil {
		s.allowRegistration.Store(*req.AllowRegistration)
		s.logger.Info("registration toggle changed",
			"allow_registration", *req.AllowRegistration,
			"changed_by", userFrom(r).Username)
	}

	s.writeJSON(w, http.StatusOK, adminSettingsResponse{
		AllowRegistration: s.allowRegistration.Load(),
	})
}

func (s *Server) handleToggleUser(w http.ResponseWriter, r *http.Request) {
	admin := userFrom(r)
	id := chi.URLParam(r, "id")

	if id == admin.ID {
		s.writeError(w, http.StatusBadRequest, "cannot change your own account")
		return
	}

	u, err := s.store.GetUser(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "user not found")
		return
	}
	if err != nil {
		s.logger.Error("get user for toggle", "user_id", id, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get user")
		return
	}

	active := !u.IsActive
	if err := s.store.SetUserActive(r.Context(), id, active); err != nil {
		s.logger.Error("toggle user", "user_id", id, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to update user")
		return
	}

	// A disabled account must not keep a live session.
	if !active {
		if err := s.sessions.Clear(id); err != nil {
			s.logger.Error("clear session for disabled user", "user_id", id, "error", err)
		}
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"id":        id,
		"is_active": active,
	})
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	admin := userFrom(r)
	id := chi.URLParam(r, "id")

	if id == admin.ID {
		s.writeError(w, http.StatusBadRequest, "cannot delete your own account")
		return
	}

	u, err := s.store.GetUser(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "user not found")
		return
	}
	if err != nil {
		s.logger.Error("get user for delete", "user_id", id, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get user")
		return
	}

	entries, err := s.store.DeleteUserHistory(r.Context(), id)
	if err != nil {
		s.logger.Error("delete user history", "user_id", id, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to delete user")
		return
	}
	for _, h := range entries {
		s.removeEntryFiles(h)
	}

	if err := s.store.DeleteUser(r.Context(), id); err != nil {
		s.logger.Error("delete user", "user_id", id, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to delete user")
		return
	}

	if err := s.sessions.Clear(id); err != nil {
		s.logger.Error("clear session for deleted user", "user_id", id, "error", err)
	}
	for _, dir := range []string{
		s.layout.UserConfigDir(id),
		s.layout.UploadsDir(id),
		s.layout.UserOutputsDir(id),
	} {
		if err := os.RemoveAll(dir); err != nil {
			s.logger.Error("remove user directory", "dir", dir, "error", err)
		}
	}

	s.logger.Info("user deleted", "user_id", id, "username", u.Username, "deleted_by", admin.Username)

	s.writeJSON(w, http.StatusOK, map[string]string{"message": "user deleted"})
}
