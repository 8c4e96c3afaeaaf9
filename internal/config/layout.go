package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// Layout maps the on-disk data tree rooted at the configured data
// directory:
//
//	<root>/sessions/<user_id>.json       refresh-token session files
//	<root>/config/<user_id>/settings.json mirrored user settings
//	<root>/uploads/<user_id>/            uploaded source documents
//	<root>/outputs/<user_id>/<job_id>/   produced translation artifacts
type Layout struct {
	Root string
}

// NewLayout creates the data root and its fixed subdirectories.
func NewLayout(root string) (Layout, error) {
	l := Layout{Root: root}
	for _, dir := range []string{root, l.SessionsDir(), l.uploadsRoot(), l.outputsRoot(), l.configRoot()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return Layout{}, fmt.Errorf("create data dir %s: %w", dir, err)
		}
	}
	return l, nil
}

func (l Layout) uploadsRoot() string { return filepath.Join(l.Root, "uploads") }
func (l Layout) outputsRoot() string { return filepath.Join(l.Root, "outputs") }
func (l Layout) configRoot() string  { return filepath.Join(l.Root, "config") }

// SessionsDir is the directory holding per-user session files.
func (l Layout) SessionsDir() string {
	return filepath.Join(l.Root, "sessions")
}

// UserConfigDir is the per-user directory holding the settings mirror.
func (l Layout) UserConfigDir(userID string) string {
	return filepath.Join(l.configRoot(), userID)
}

// SettingsFile is the mirrored settings document for a user.
func (l Layout) SettingsFile(userID string) string {
	return filepath.Join(l.UserConfigDir(userID), "settings.json")
}

// UploadsDir is the per-user directory for uploaded source documents.
func (l Layout) UploadsDir(userID string) string {
	return filepath.Join(l.uploadsRoot(), userID)
}

// UserOutputsDir is the per-user root holding all job output directories.
func (l Layout) UserOutputsDir(userID string) string {
	return filepath.Join(l.outputsRoot(), userID)
}

// OutputDir is the per-job directory for produced artifacts, partitioned by
// job identifier to avoid collisions between concurrent translations.
func (l Layout) OutputDir(userID, jobID string) string {
	return filepath.Join(l.UserOutputsDir(userID), jobID)
}
