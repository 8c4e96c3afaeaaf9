package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/seantiz/babelpdf/internal/auth"
	"github.com/seantiz/babelpdf/internal/model"
	"github.com/seantiz/babelpdf/internal/settings"
	"github.com/seantiz/babelpdf/internal/store"
)

// credentialsRequest is the JSON body for POST /auth/setup, /auth/register,
// and /auth/login.
type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// refreshRequest is the JSON body for POST /auth/refresh.
type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// changePasswordRequest is the JSON body for POST /auth/change-password.
type changePasswordRequest struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

// tokenResponse returns a fresh token pair along with the account it
// belongs to.
type tokenResponse struct {
	AccessToken  string      `json:"access_token"`
	RefreshToken string      `json:"refresh_token"`
	TokenType    string      `json:"token_type"`
	User         *model.User `json:"user"`
}

// authStatusResponse reports whether initial setup has run and whether
// self-service registration is open.
type authStatusResponse struct {
	Initialized       bool `json:"initialized"`
	AllowRegistration bool `json:"allow_registration"`
}

func (s *Server) handleAuthStatus(w http.ResponseWriter, r *http.Request) {
	initialized, err := s.store.AdminExists(r.Context())
	if err != nil {
		s.logger.Error("check admin exists", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to check auth status")
		return
	}

	s.writeJSON(w, http.StatusOK, authStatusResponse{
		Initialized:       initialized,
		AllowRegistration: s.allowRegistration.Load(),
	})
}

func (s *Server) handleSetup(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Username == "" || req.Password == "" {
		s.writeError(w, http.StatusBadRequest, "username and password are required")
		return
	}

	initialized, err := s.store.AdminExists(r.Context())
	if err != nil {
		s.logger.Error("check admin exists", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to check setup state")
		return
	}
	if initialized {
		s.writeError(w, http.StatusBadRequest, "system is already initialized")
		return
	}

	u, err := s.createAccount(r, req, model.RoleAdmin)
	if err != nil {
		if errors.Is(err, store.ErrDuplicateUsername) {
			s.writeError(w, http.StatusBadRequest, "username already taken")
			return
		}
		s.logger.Error("create admin account", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to create account")
		return
	}

	s.issueTokens(w, http.StatusCreated, u)
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Username == "" || req.Password == "" {
		s.writeError(w, http.StatusBadRequest, "username and password are required")
		return
	}

	initialized, err := s.store.AdminExists(r.Context())
	if err != nil {
		s.logger.Error("check admin exists", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to check setup state")
		return
	}
	if !initialized {
		s.writeError(w, http.StatusBadRequest, "complete initial setup first")
		return
	}
	if !s.allowRegistration.Load() {
		s.writeError(w, http.StatusForbidden, "registration is disabled")
		return
	}

	u, err := s.createAccount(r, req, model.RoleUser)
	if err != nil {
		if errors.Is(err, store.ErrDuplicateUsername) {
			s.writeError(w, http.StatusBadRequest, "username already taken")
			return
		}
		s.logger.Error("create user account", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to create account")
		return
	}

	s.issueTokens(w, http.StatusCreated, u)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	u, err := s.store.GetUserByUsername(r.Context(), req.Username)
	if errors.Is(err, store.ErrNotFound) {
		s.writeError(w, http.StatusUnauthorized, "invalid username or password")
		return
	}
	if err != nil {
		s.logger.Error("look up user for login", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to log in")
		return
	}
	if !auth.CheckPassword(req.Password, u.PasswordHash) {
		s.writeError(w, http.StatusUnauthorized, "invalid username or password")
		return
	}
	if !u.IsActive {
		s.writeError(w, http.StatusForbidden, "account is disabled")
		return
	}

	now := time.Now().UTC()
	if err := s.store.UpdateLastLogin(r.Context(), u.ID, now); err != nil {
		s.logger.Error("update last login", "user_id", u.ID, "error", err)
	} else {
		u.LastLogin = &now
	}

	s.issueTokens(w, http.StatusOK, u)
}

// handleRefresh accepts the refresh token either as the bearer credential
// or as a JSON body field.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	req.RefreshToken = bearerToken(r)
	if req.RefreshToken == "" {
		if err := decodeBody(w, r, &req); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
	}
	if req.RefreshToken == "" {
		s.writeError(w, http.StatusBadRequest, "refresh token is required")
		return
	}

	claims, err := s.tokens.Decode(req.RefreshToken, auth.TokenTypeRefresh)
	if err != nil {
		s.writeError(w, http.StatusUnauthorized, "invalid or expired refresh token")
		return
	}

	// Only the most recently issued refresh token is honored; logout and
	// rotation both invalidate older ones.
	saved, err := s.sessions.Load(claims.Subject)
	if err != nil || saved != req.RefreshToken {
		s.writeError(w, http.StatusUnauthorized, "refresh token is no longer valid")
		return
	}

	u, err := s.store.GetUser(r.Context(), claims.Subject)
	if errors.Is(err, store.ErrNotFound) {
		s.writeError(w, http.StatusUnauthorized, "account no longer exists")
		return
	}
	if err != nil {
		s.logger.Error("load user for refresh", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to refresh tokens")
		return
	}
	if !u.IsActive {
		s.writeError(w, http.StatusUnauthorized, "account is disabled")
		return
	}

	s.issueTokens(w, http.StatusOK, u)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	u := userFrom(r)
	if err := s.sessions.Clear(u.ID); err != nil {
		s.logger.Error("clear session", "user_id", u.ID, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to log out")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// handleChangePassword verifies the current password, replaces the hash,
// and clears the session so every issued refresh token dies with the old
// credential.
func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	u := userFrom(r)

	var req changePasswordRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.NewPassword == "" {
		s.writeError(w, http.StatusBadRequest, "new password is required")
		return
	}
	if !auth.CheckPassword(req.OldPassword, u.PasswordHash) {
		s.writeError(w, http.StatusBadRequest, "current password is incorrect")
		return
	}

	hash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		s.logger.Error("hash new password", "user_id", u.ID, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to change password")
		return
	}
	if err := s.store.UpdatePassword(r.Context(), u.ID, hash); err != nil {
		s.logger.Error("update password", "user_id", u.ID, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to change password")
		return
	}
	if err := s.sessions.Clear(u.ID); err != nil {
		s.logger.Error("clear session after password change", "user_id", u.ID, "error", err)
	}

	s.writeJSON(w, http.StatusOK, map[string]string{
		"message": "password changed, log in again",
	})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, userFrom(r))
}

// createAccount hashes the password, inserts the user, and seeds its
// default configuration (database row plus file mirror).
func (s *Server) createAccount(r *http.Request, req credentialsRequest, role string) (*model.User, error) {
	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	u := &model.User{
		ID:           model.NewID(),
		Username:     req.Username,
		PasswordHash: hash,
		Role:         role,
		IsActive:     true,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.store.CreateUser(r.Context(), u); err != nil {
		return nil, err
	}

	doc := settings.Default()
	raw, err := doc.Encode()
	if err != nil {
		return nil, err
	}
	if err := s.store.PutConfig(r.Context(), u.ID, raw); err != nil {
		return nil, err
	}
	if err := settings.Mirror(s.layout.SettingsFile(u.ID), doc); err != nil {
		s.logger.Error("mirror default settings", "user_id", u.ID, "error", err)
	}

	return u, nil
}

// issueTokens mints a token pair for the user, persists the session file,
// and writes the token response.
func (s *Server) issueTokens(w http.ResponseWriter, status int, u *model.User) {
	access, err := s.tokens.IssueAccess(u.ID)
	if err != nil {
		s.logger.Error("issue access token", "user_id", u.ID, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to issue tokens")
		return
	}
	refresh, err := s.tokens.IssueRefresh(u.ID)
	if err != nil {
		s.logger.Error("issue refresh token", "user_id", u.ID, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to issue tokens")
		return
	}
	if err := s.sessions.Save(u.ID, refresh); err != nil {
		s.logger.Error("save session", "user_id", u.ID, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to persist session")
		return
	}

	s.writeJSON(w, status, tokenResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "bearer",
		User:         u,
	})
}
