package store

import (
	"context"
	"errors"
	"time"

	"github.com/seantiz/babelpdf/internal/model"
)

// Sentinel errors shared by store implementations.
var (
	ErrNotFound          = errors.New("record not found")
	ErrDuplicateUsername = errors.New("username already exists")
)

// UserStats holds per-user storage statistics for the admin surface.
type UserStats struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	IsActive  bool      `json:"is_active"`
	FileCount int       `json:"file_count"`
	TotalSize int64     `json:"total_size"`
	CreatedAt time.Time `json:"created_at"`
}

// SystemStats holds system-wide aggregate statistics.
type SystemStats struct {
	TotalUsers  int     `json:"total_users"`
	TotalFiles  int     `json:"total_files"`
	TotalSize   int64   `json:"total_size"`
	TotalSizeMB float64 `json:"total_size_mb"`
}

// Store defines the persistence operations for accounts, configuration
// blobs, and translation history.
type Store interface {
	CreateUser(ctx context.Context, u *model.User) error
	GetUser(ctx context.Context, id string) (*model.User, error)
	GetUserByUsername(ctx context.Context, username string) (*model.User, error)
	ListUsers(ctx context.Context) ([]*model.User, error)
	UpdateLastLogin(ctx context.Context, id string, at time.Time) error
	SetUserActive(ctx context.Context, id string, active bool) error
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	// DeleteUser removes the account and its configuration row. History
	// rows are removed separately via DeleteUserHistory so the caller can
	// clean up the referenced files.
	DeleteUser(ctx context.Context, id string) error
	AdminExists(ctx context.Context) (bool, error)

	// GetConfig returns the raw settings JSON blob, or "" when the user
	// has no stored configuration.
	GetConfig(ctx context.Context, userID string) (string, error)
	PutConfig(ctx context.Context, userID, configJSON string) error

	CreateHistory(ctx context.Context, h *model.HistoryEntry) error
	GetHistory(ctx context.Context, id string) (*model.HistoryEntry, error)
	ListHistory(ctx context.Context, userID string) ([]*model.HistoryEntry, error)
	// ListAllHistory returns every entry, newest first, with usernames
	// resolved.
	ListAllHistory(ctx context.Context) ([]*model.HistoryEntry, error)
	DeleteHistory(ctx context.Context, id string) error
	// DeleteUserHistory removes all of a user's entries and returns them
	// so callers can delete the referenced files best-effort.
	DeleteUserHistory(ctx context.Context, userID string) ([]*model.HistoryEntry, error)

	GetUserStats(ctx context.Context) ([]UserStats, error)
	GetSystemStats(ctx context.Context) (*SystemStats, error)

	Close() error
}
