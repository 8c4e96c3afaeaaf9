package model

import "time"

// HistoryEntry is the durable record of a finished job. It outlives the
// in-memory job record and owns the output files referenced by its paths.
type HistoryEntry struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Username  string    `json:"username,omitempty"`
	Filename  string    `json:"filename"`
	FileSize  int64     `json:"file_size"`
	MonoPath  string    `json:"mono_path,omitempty"`
	DualPath  string    `json:"dual_path,omitempty"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// VariantPath returns the output path for the given artifact variant.
func (h *HistoryEntry) VariantPath(variant string) string {
	switch variant {
	case VariantMono:
		return h.MonoPath
	case VariantDual:
		return h.DualPath
	default:
		return ""
	}
}
