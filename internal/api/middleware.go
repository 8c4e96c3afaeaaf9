package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/seantiz/babelpdf/internal/auth"
	"github.com/seantiz/babelpdf/internal/model"
	"github.com/seantiz/babelpdf/internal/store"
)

type contextKey string

const userContextKey contextKey = "user"

// bearerToken extracts the token from an Authorization: Bearer header.
// Returns "" when the header is missing or malformed.
func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(h) <= len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
		return ""
	}
	return h[len(prefix):]
}

// requireUser authenticates the request with an access token and loads the
// account into the request context. Missing, invalid, or expired tokens and
// disabled accounts all yield 401.
func (s *Server) requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tok := bearerToken(r)
		if tok == "" {
			s.writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}

		claims, err := s.tokens.Decode(tok, auth.TokenTypeAccess)
		if err != nil {
			s.writeError(w, http.StatusUnauthorized, "invalid or expired token")
			return
		}

		u, err := s.store.GetUser(r.Context(), claims.Subject)
		if errors.Is(err, store.ErrNotFound) {
			s.writeError(w, http.StatusUnauthorized, "account no longer exists")
			return
		}
		if err != nil {
			s.logger.Error("load user for auth", "error", err)
			s.writeError(w, http.StatusInternalServerError, "failed to authenticate")
			return
		}
		if !u.IsActive {
			s.writeError(w, http.StatusUnauthorized, "account is disabled")
			return
		}

		ctx := context.WithValue(r.Context(), userContextKey, u)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireAdmin rejects non-admin accounts. Must run after requireUser.
func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u := userFrom(r)
		if u == nil || !u.IsAdmin() {
			s.writeError(w, http.StatusForbidden, "admin access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// userFrom returns the authenticated user placed in the context by
// requireUser, or nil on unauthenticated requests.
func userFrom(r *http.Request) *model.User {
	u, _ := r.Context().Value(userContextKey).(*model.User)
	return u
}
