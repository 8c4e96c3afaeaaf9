// Package settings defines the per-user configuration document: the
// translation service selection, PDF output options, and advanced tuning
// knobs. The document is stored wholesale as a JSON blob in the relational
// store and mirrored to a per-user file on every write.
package settings

import (
	"encoding/json"
	"fmt"
)

// Known translation service tags. The tag selects which provider settings
// variant the translator constructs; unknown tags are rejected at the
// boundary.
const (
	ServiceSiliconFlowFree = "siliconflow_free"
	ServiceOpenAI          = "openai"
	ServiceAzureOpenAI     = "azure_openai"
	ServiceGemini          = "gemini"
	ServiceDeepL           = "deepl"
	ServiceOllama          = "ollama"
	ServiceAzure           = "azure"
	ServiceDeepSeek        = "deepseek"
)

// Output modes for produced PDFs.
const (
	OutputModeMono = "mono"
	OutputModeDual = "dual"
	OutputModeBoth = "both"
)

var knownServices = map[string]bool{
	ServiceSiliconFlowFree: true,
	ServiceOpenAI:          true,
	ServiceAzureOpenAI:     true,
	ServiceGemini:          true,
	ServiceDeepL:           true,
	ServiceOllama:          true,
	ServiceAzure:           true,
	ServiceDeepSeek:        true,
}

// ServiceConfig holds the selected translation service and its credentials.
// The generic fields are interpreted per service tag when the translator
// builds its typed provider settings.
type ServiceConfig struct {
	ServiceType string `json:"service_type"`
	APIKey      string `json:"api_key,omitempty"`
	Model       string `json:"model,omitempty"`
	BaseURL     string `json:"base_url,omitempty"`
	Endpoint    string `json:"endpoint,omitempty"`
	Host        string `json:"host,omitempty"`
	APIVersion  string `json:"api_version,omitempty"`
	NumPredict  int    `json:"num_predict,omitempty"`
}

// PDFOutputConfig holds output-mode options for produced PDFs.
type PDFOutputConfig struct {
	OutputMode       string `json:"output_mode"`
	WatermarkEnabled bool   `json:"watermark_enabled"`
	WatermarkText    string `json:"watermark_text,omitempty"`
	AlternatePages   bool   `json:"alternate_pages"`
}

// AdvancedConfig holds tuning knobs passed through to the engine.
type AdvancedConfig struct {
	RateLimit         int  `json:"rate_limit"`
	EnableTerminology bool `json:"enable_terminology"`
	EngineThreads     int  `json:"engine_threads"`
}

// Document is the complete user settings record.
type Document struct {
	TranslationService ServiceConfig   `json:"translation_service"`
	PDFOutput          PDFOutputConfig `json:"pdf_output"`
	Advanced           AdvancedConfig  `json:"advanced"`
}

// Default returns the canonical empty configuration: the free service,
// bilingual output, and conservative tuning.
func Default() Document {
	return Document{
		TranslationService: ServiceConfig{
			ServiceType: ServiceSiliconFlowFree,
		},
		PDFOutput: PDFOutputConfig{
			OutputMode: OutputModeDual,
		},
		Advanced: AdvancedConfig{
			RateLimit:     10,
			EngineThreads: 4,
		},
	}
}

// Validate checks the document shape. It is called on every wholesale
// replacement and on import; stored documents that fail validation are
// replaced by Default on read.
func (d Document) Validate() error {
	if !knownServices[d.TranslationService.ServiceType] {
		return fmt.Errorf("unknown service type %q", d.TranslationService.ServiceType)
	}
	switch d.PDFOutput.OutputMode {
	case OutputModeMono, OutputModeDual, OutputModeBoth:
	default:
		return fmt.Errorf("unknown output mode %q", d.PDFOutput.OutputMode)
	}
	if d.Advanced.RateLimit < 0 {
		return fmt.Errorf("rate limit must not be negative")
	}
	if d.Advanced.EngineThreads < 1 {
		return fmt.Errorf("engine threads must be at least 1")
	}
	return nil
}

// Parse decodes and validates a settings document. Malformed or invalid
// input is a client error.
func Parse(data []byte) (Document, error) {
	d := Default()
	if err := json.Unmarshal(data, &d); err != nil {
		return Document{}, fmt.Errorf("invalid configuration format: %w", err)
	}
	if err := d.Validate(); err != nil {
		return Document{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return d, nil
}

// FromStored decodes a stored JSON blob, falling back to Default when the
// blob is empty, malformed, or fails validation. Reads never fail on a
// corrupted record.
func FromStored(raw string) Document {
	if raw == "" {
		return Default()
	}
	d, err := Parse([]byte(raw))
	if err != nil {
		return Default()
	}
	return d
}

// Encode serializes the document for storage.
func (d Document) Encode() (string, error) {
	data, err := json.Marshal(d)
	if err != nil {
		return "", fmt.Errorf("encode settings: %w", err)
	}
	return string(data), nil
}
