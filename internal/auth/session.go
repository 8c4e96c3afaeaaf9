package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ErrNoSession is returned when no session file exists for a user.
var ErrNoSession = errors.New("no session")

// sessionFile is the JSON document persisted per user. It holds the most
// recently issued refresh token so sessions survive a process restart.
type sessionFile struct {
	UserID       string    `json:"user_id"`
	RefreshToken string    `json:"refresh_token"`
	CreatedAt    time.Time `json:"created_at"`
}

// SessionStore persists refresh tokens as one JSON file per user.
type SessionStore struct {
	dir    string
	issuer *TokenIssuer
	logger *slog.Logger
}

// NewSessionStore creates a session store rooted at dir.
func NewSessionStore(dir string, issuer *TokenIssuer, logger *slog.Logger) *SessionStore {
	return &SessionStore{dir: dir, issuer: issuer, logger: logger}
}

func (s *SessionStore) path(userID string) string {
	return filepath.Join(s.dir, userID+".json")
}

// Save writes the user's refresh token, replacing any previous session.
func (s *SessionStore) Save(userID, refreshToken string) error {
	data, err := json.Marshal(sessionFile{
		UserID:       userID,
		RefreshToken: refreshToken,
		CreatedAt:    time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	if err := os.WriteFile(s.path(userID), data, 0o600); err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	return nil
}

// Load returns the persisted refresh token for the user.
func (s *SessionStore) Load(userID string) (string, error) {
	data, err := os.ReadFile(s.path(userID))
	if errors.Is(err, os.ErrNotExist) {
		return "", ErrNoSession
	}
	if err != nil {
		return "", fmt.Errorf("read session: %w", err)
	}
	var sf sessionFile
	if err := json.Unmarshal(data, &sf); err != nil {
		return "", fmt.Errorf("parse session: %w", err)
	}
	return sf.RefreshToken, nil
}

// Clear removes the user's session file. A missing file is not an error.
func (s *SessionStore) Clear(userID string) error {
	err := os.Remove(s.path(userID))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove session: %w", err)
	}
	return nil
}

// Sweep removes session files whose refresh token no longer decodes, along
// with files that fail to parse. Removal errors are logged and skipped;
// the sweep is advisory cleanup, never a hard failure. Returns the number
// of sessions removed.
func (s *SessionStore) Sweep() int {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		s.logger.Warn("session sweep: read dir", "error", err)
		return 0
	}

	removed := 0
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		path := filepath.Join(s.dir, e.Name())

		stale := false
		data, err := os.ReadFile(path)
		if err != nil {
			stale = true
		} else {
			var sf sessionFile
			if err := json.Unmarshal(data, &sf); err != nil {
				stale = true
			} else if _, err := s.issuer.Decode(sf.RefreshToken, TokenTypeRefresh); err != nil {
				stale = true
			}
		}

		if stale {
			if err := os.Remove(path); err != nil {
				s.logger.Warn("session sweep: remove", "path", path, "error", err)
				continue
			}
			removed++
		}
	}
	return removed
}

// RunSweeper sweeps once immediately, then on every tick of interval until
// ctx is canceled.
func (s *SessionStore) RunSweeper(ctx context.Context, interval time.Duration) {
	if n := s.Sweep(); n > 0 {
		s.logger.Info("session sweep", "removed", n)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Sweep(); n > 0 {
				s.logger.Info("session sweep", "removed", n)
			}
		}
	}
}
