package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/seantiz/babelpdf/internal/model"

	_ "modernc.org/sqlite"
)

const createUsersTable = `
CREATE TABLE IF NOT EXISTS users (
    id            TEXT PRIMARY KEY,
    username      TEXT NOT NULL UNIQUE,
    password_hash TEXT NOT NULL,
    role          TEXT NOT NULL,
    is_active     INTEGER NOT NULL DEFAULT 1,
    created_at    DATETIME NOT NULL,
    last_login    DATETIME
)`

const createConfigsTable = `
CREATE TABLE IF NOT EXISTS user_configs (
    user_id     TEXT PRIMARY KEY,
    config_json TEXT NOT NULL DEFAULT '',
    updated_at  DATETIME NOT NULL
)`

const createHistoryTable = `
CREATE TABLE IF NOT EXISTS translation_history (
    id         TEXT PRIMARY KEY,
    user_id    TEXT NOT NULL,
    filename   TEXT NOT NULL,
    file_size  INTEGER NOT NULL DEFAULT 0,
    mono_path  TEXT NOT NULL DEFAULT '',
    dual_path  TEXT NOT NULL DEFAULT '',
    status     TEXT NOT NULL,
    created_at DATETIME NOT NULL
)`

// Compile-time interface satisfaction check.
var _ Store = (*SQLiteStore)(nil)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens the SQLite database at dbPath and runs migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	for _, stmt := range []string{createUsersTable, createConfigsTable, createHistoryTable} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("run migration: %w", err)
		}
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CreateUser inserts a new account. A username collision returns
// ErrDuplicateUsername.
func (s *SQLiteStore) CreateUser(ctx context.Context, u *model.User) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, username, password_hash, role, is_active, created_at, last_login)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Username, u.PasswordHash, u.Role, u.IsActive, u.CreatedAt, u.LastLogin,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrDuplicateUsername
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

const userColumns = "id, username, password_hash, role, is_active, created_at, last_login"

func scanUser(row interface{ Scan(...any) error }) (*model.User, error) {
	u := &model.User{}
	err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Role, &u.IsActive, &u.CreatedAt, &u.LastLogin)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return u, nil
}

// GetUser retrieves an account by ID.
func (s *SQLiteStore) GetUser(ctx context.Context, id string) (*model.User, error) {
	return scanUser(s.db.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id = ?", id))
}

// GetUserByUsername retrieves an account by its unique username.
func (s *SQLiteStore) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	return scanUser(s.db.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE username = ?", username))
}

// ListUsers returns all accounts ordered by creation time.
func (s *SQLiteStore) ListUsers(ctx context.Context) ([]*model.User, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+userColumns+" FROM users ORDER BY created_at ASC")
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []*model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return users, nil
}

// UpdateLastLogin records a successful login.
func (s *SQLiteStore) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	return s.execOne(ctx, "UPDATE users SET last_login = ? WHERE id = ?", at, id)
}

// SetUserActive toggles the account's active flag.
func (s *SQLiteStore) SetUserActive(ctx context.Context, id string, active bool) error {
	return s.execOne(ctx, "UPDATE users SET is_active = ? WHERE id = ?", active, id)
}

// UpdatePassword replaces the account's password hash.
func (s *SQLiteStore) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	return s.execOne(ctx, "UPDATE users SET password_hash = ? WHERE id = ?", passwordHash, id)
}

// DeleteUser removes the account and its configuration row in one
// transaction.
func (s *SQLiteStore) DeleteUser(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM user_configs WHERE user_id = ?", id); err != nil {
		return fmt.Errorf("delete user config: %w", err)
	}

	result, err := tx.ExecContext(ctx, "DELETE FROM users WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// AdminExists reports whether any admin account exists (setup completed).
func (s *SQLiteStore) AdminExists(ctx context.Context) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM users WHERE role = ?", model.RoleAdmin).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("count admins: %w", err)
	}
	return n > 0, nil
}

// GetConfig returns the raw settings JSON for a user, or "" when absent.
func (s *SQLiteStore) GetConfig(ctx context.Context, userID string) (string, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		"SELECT config_json FROM user_configs WHERE user_id = ?", userID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get config: %w", err)
	}
	return raw, nil
}

// PutConfig replaces the user's settings blob wholesale.
func (s *SQLiteStore) PutConfig(ctx context.Context, userID, configJSON string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO user_configs (user_id, config_json, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET config_json = excluded.config_json, updated_at = excluded.updated_at`,
		userID, configJSON, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("put config: %w", err)
	}
	return nil
}

// CreateHistory inserts a durable record of a finished job.
func (s *SQLiteStore) CreateHistory(ctx context.Context, h *model.HistoryEntry) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO translation_history (id, user_id, filename, file_size, mono_path, dual_path, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		h.ID, h.UserID, h.Filename, h.FileSize, h.MonoPath, h.DualPath, h.Status, h.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert history: %w", err)
	}
	return nil
}

const historyColumns = "id, user_id, filename, file_size, mono_path, dual_path, status, created_at"

func scanHistory(row interface{ Scan(...any) error }) (*model.HistoryEntry, error) {
	h := &model.HistoryEntry{}
	err := row.Scan(&h.ID, &h.UserID, &h.Filename, &h.FileSize, &h.MonoPath, &h.DualPath, &h.Status, &h.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan history: %w", err)
	}
	return h, nil
}

// GetHistory retrieves one entry by ID.
func (s *SQLiteStore) GetHistory(ctx context.Context, id string) (*model.HistoryEntry, error) {
	return scanHistory(s.db.QueryRowContext(ctx,
		"SELECT "+historyColumns+" FROM translation_history WHERE id = ?", id))
}

// ListHistory returns a user's entries, newest first.
func (s *SQLiteStore) ListHistory(ctx context.Context, userID string) ([]*model.HistoryEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+historyColumns+" FROM translation_history WHERE user_id = ? ORDER BY created_at DESC", userID)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	defer rows.Close()
	return collectHistory(rows)
}

// ListAllHistory returns every entry, newest first, with usernames resolved.
func (s *SQLiteStore) ListAllHistory(ctx context.Context) ([]*model.HistoryEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT h.id, h.user_id, u.username, h.filename, h.file_size, h.mono_path, h.dual_path, h.status, h.created_at
		 FROM translation_history h
		 LEFT JOIN users u ON u.id = h.user_id
		 ORDER BY h.created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list all history: %w", err)
	}
	defer rows.Close()

	var entries []*model.HistoryEntry
	for rows.Next() {
		h := &model.HistoryEntry{}
		var username sql.NullString
		if err := rows.Scan(&h.ID, &h.UserID, &username, &h.Filename, &h.FileSize,
			&h.MonoPath, &h.DualPath, &h.Status, &h.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		h.Username = username.String
		entries = append(entries, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}
	return entries, nil
}

// DeleteHistory removes one entry.
func (s *SQLiteStore) DeleteHistory(ctx context.Context, id string) error {
	return s.execOne(ctx, "DELETE FROM translation_history WHERE id = ?", id)
}

// DeleteUserHistory removes all of a user's entries and returns them so the
// caller can remove the referenced files.
func (s *SQLiteStore) DeleteUserHistory(ctx context.Context, userID string) ([]*model.HistoryEntry, error) {
	entries, err := s.ListHistory(ctx, userID)
	if err != nil {
		return nil, err
	}
	if _, err := s.db.ExecContext(ctx,
		"DELETE FROM translation_history WHERE user_id = ?", userID); err != nil {
		return nil, fmt.Errorf("delete user history: %w", err)
	}
	return entries, nil
}

// GetUserStats returns per-user file counts and sizes for the admin surface.
func (s *SQLiteStore) GetUserStats(ctx context.Context) ([]UserStats, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT u.id, u.username, u.role, u.is_active, u.created_at,
			COUNT(h.id), COALESCE(SUM(h.file_size), 0)
		 FROM users u
		 LEFT JOIN translation_history h ON h.user_id = u.id
		 GROUP BY u.id
		 ORDER BY u.created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("user stats: %w", err)
	}
	defer rows.Close()

	var stats []UserStats
	for rows.Next() {
		var st UserStats
		if err := rows.Scan(&st.ID, &st.Username, &st.Role, &st.IsActive,
			&st.CreatedAt, &st.FileCount, &st.TotalSize); err != nil {
			return nil, fmt.Errorf("scan user stats: %w", err)
		}
		stats = append(stats, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate user stats: %w", err)
	}
	return stats, nil
}

// GetSystemStats returns system-wide aggregate statistics.
func (s *SQLiteStore) GetSystemStats(ctx context.Context) (*SystemStats, error) {
	st := &SystemStats{}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&st.TotalUsers); err != nil {
		return nil, fmt.Errorf("count users: %w", err)
	}
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*), COALESCE(SUM(file_size), 0) FROM translation_history").
		Scan(&st.TotalFiles, &st.TotalSize)
	if err != nil {
		return nil, fmt.Errorf("history totals: %w", err)
	}
	st.TotalSizeMB = float64(st.TotalSize) / (1024 * 1024)
	return st, nil
}

// execOne runs an UPDATE/DELETE expected to touch exactly one row.
func (s *SQLiteStore) execOne(ctx context.Context, query string, args ...any) error {
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("exec: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func collectHistory(rows *sql.Rows) ([]*model.HistoryEntry, error) {
	var entries []*model.HistoryEntry
	for rows.Next() {
		h, err := scanHistory(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}
	return entries, nil
}
