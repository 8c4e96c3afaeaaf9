// Package translator defines the contract with the external PDF
// translation engine. The engine is an opaque collaborator: it is handed a
// source document and a settings object and answers with a stream of
// progress events. Nothing in this package understands PDF internals.
package translator

import "context"

// EventType tags one event on the engine's progress stream.
type EventType string

// Event types emitted by the engine. Consumers must tolerate any subset
// and ordering of progress events, but finish and error are terminal: no
// further events follow them.
const (
	EventProgressStart  EventType = "progress_start"
	EventProgressUpdate EventType = "progress_update"
	EventProgressEnd    EventType = "progress_end"
	EventStageSummary   EventType = "stage_summary"
	EventFinish         EventType = "finish"
	EventError          EventType = "error"
)

// Result is carried by a finish event. Either path may be empty when the
// engine produced only one output variant.
type Result struct {
	MonoPDFPath string `json:"mono_pdf_path,omitempty"`
	DualPDFPath string `json:"dual_pdf_path,omitempty"`
}

// Event is one entry on the progress stream.
type Event struct {
	Type            EventType `json:"type"`
	OverallProgress int       `json:"overall_progress,omitempty"`
	Stage           string    `json:"stage,omitempty"`
	Result          *Result   `json:"translate_result,omitempty"`
	Message         string    `json:"error,omitempty"`
}

// Terminal reports whether no further events follow this one.
func (e Event) Terminal() bool {
	return e.Type == EventFinish || e.Type == EventError
}

// Request describes one translation to the engine.
type Request struct {
	SourcePath    string `json:"source_path"`
	OutputDir     string `json:"output_dir"`
	LangIn        string `json:"lang_in"`
	LangOut       string `json:"lang_out"`
	OutputMode    string `json:"output_mode"`
	WatermarkText string `json:"watermark_text,omitempty"`
	Threads       int    `json:"threads,omitempty"`
	RateLimit     int    `json:"rate_limit,omitempty"`

	// Provider carries the typed per-service engine configuration.
	Provider ProviderSettings `json:"-"`
}

// Translator drives one translation and exposes its progress stream. The
// returned channel is closed after a terminal event (or after the engine
// goes away without one). Implementations must not block forever on a
// slow consumer relative to ctx.
type Translator interface {
	Translate(ctx context.Context, req Request) (<-chan Event, error)
}
