package model

import "time"

// Job status constants.
const (
	StatusQueued     = "queued"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Output artifact variants.
const (
	VariantMono = "mono"
	VariantDual = "dual"
)

// validTransitions maps each status to the set of statuses it may transition to.
// Terminal statuses (completed, failed) have no outgoing edges.
var validTransitions = map[string]map[string]bool{
	StatusQueued: {
		StatusProcessing: true,
		StatusFailed:     true,
	},
	StatusProcessing: {
		StatusProcessing: true,
		StatusCompleted:  true,
		StatusFailed:     true,
	},
}

// ValidTransition reports whether transitioning from one status to another is allowed.
func ValidTransition(from, to string) bool {
	targets, ok := validTransitions[from]
	if !ok {
		return false
	}
	return targets[to]
}

// IsTerminal reports whether a job status is final.
func IsTerminal(status string) bool {
	return status == StatusCompleted || status == StatusFailed
}

// Job is the in-flight record of one translation request. It lives in the
// job store for the lifetime of the process; on reaching a terminal status
// it is folded into a durable HistoryEntry.
type Job struct {
	ID          string            `json:"id"`
	UserID      string            `json:"user_id"`
	Filename    string            `json:"filename"`
	FileSize    int64             `json:"file_size"`
	SourcePath  string            `json:"source_path"`
	OutputDir   string            `json:"output_dir"`
	Status      string            `json:"status"`
	Progress    int               `json:"progress"`
	OutputFiles map[string]string `json:"output_files,omitempty"`
	Error       string            `json:"error,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	FinishedAt  *time.Time        `json:"finished_at,omitempty"`
}

// PreferredOutput returns the artifact path to favor for a single-file
// download: the bilingual (dual) PDF when present, otherwise the mono PDF.
func (j *Job) PreferredOutput() (variant, path string, ok bool) {
	if p, ok := j.OutputFiles[VariantDual]; ok && p != "" {
		return VariantDual, p, true
	}
	if p, ok := j.OutputFiles[VariantMono]; ok && p != "" {
		return VariantMono, p, true
	}
	return "", "", false
}
