package settings

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Mirror writes the document to the per-user settings file. The mirror is
// written together with the relational record on every successful update;
// it exists for recovery and operator inspection, reads always prefer the
// relational record.
func Mirror(path string, d Document) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return fmt.Errorf("encode settings mirror: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write settings mirror: %w", err)
	}
	return nil
}

// LoadMirror reads a mirrored settings file. It returns false when the file
// is absent or unreadable as a settings document.
func LoadMirror(path string) (Document, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Document{}, false
	}
	d, err := Parse(data)
	if err != nil {
		return Document{}, false
	}
	return d, true
}
