package translator

import (
	"fmt"

	"github.com/seantiz/babelpdf/internal/settings"
)

// ProviderSettings is the closed set of per-service engine configurations.
// Each variant has exactly one constructor path through FromService, which
// validates required fields and applies service defaults at the boundary
// instead of relying on loosely shaped field lookups downstream.
type ProviderSettings interface {
	// Service returns the service tag this configuration belongs to.
	Service() string
}

// SiliconFlowFree is the default zero-configuration service.
type SiliconFlowFree struct{}

func (SiliconFlowFree) Service() string { return settings.ServiceSiliconFlowFree }

// OpenAI targets the OpenAI chat-completion API or a compatible endpoint.
type OpenAI struct {
	APIKey  string `json:"api_key"`
	Model   string `json:"model"`
	BaseURL string `json:"base_url,omitempty"`
}

func (OpenAI) Service() string { return settings.ServiceOpenAI }

// AzureOpenAI targets an Azure-hosted OpenAI deployment.
type AzureOpenAI struct {
	APIKey     string `json:"api_key"`
	BaseURL    string `json:"base_url"`
	Model      string `json:"model"`
	APIVersion string `json:"api_version"`
}

func (AzureOpenAI) Service() string { return settings.ServiceAzureOpenAI }

// Gemini targets Google's Gemini API.
type Gemini struct {
	APIKey string `json:"api_key"`
	Model  string `json:"model"`
}

func (Gemini) Service() string { return settings.ServiceGemini }

// DeepL targets the DeepL document API.
type DeepL struct {
	AuthKey string `json:"auth_key"`
}

func (DeepL) Service() string { return settings.ServiceDeepL }

// Ollama targets a locally hosted Ollama instance.
type Ollama struct {
	Host       string `json:"host"`
	Model      string `json:"model"`
	NumPredict int    `json:"num_predict"`
}

func (Ollama) Service() string { return settings.ServiceOllama }

// AzureText targets the Azure translator text API.
type AzureText struct {
	APIKey   string `json:"api_key"`
	Endpoint string `json:"endpoint"`
}

func (AzureText) Service() string { return settings.ServiceAzure }

// DeepSeek targets the DeepSeek chat API.
type DeepSeek struct {
	APIKey string `json:"api_key"`
	Model  string `json:"model"`
}

func (DeepSeek) Service() string { return settings.ServiceDeepSeek }

// Service defaults applied when the user left a field empty.
const (
	defaultOpenAIModel     = "gpt-4o-mini"
	defaultAzureAPIVersion = "2024-06-01"
	defaultGeminiModel     = "gemini-1.5-flash"
	defaultOllamaHost      = "http://localhost:11434"
	defaultOllamaModel     = "gemma2"
	defaultOllamaPredict   = 2000
	defaultDeepSeekModel   = "deepseek-chat"
	defaultAzureEndpoint   = "https://api.translator.azure.cn"
)

// FromService builds the typed provider settings for the user's service
// configuration. Unknown tags and missing credentials are rejected here so
// no half-configured provider ever reaches the engine.
func FromService(sc settings.ServiceConfig) (ProviderSettings, error) {
	switch sc.ServiceType {
	case settings.ServiceSiliconFlowFree, "":
		return SiliconFlowFree{}, nil

	case settings.ServiceOpenAI:
		if sc.APIKey == "" {
			return nil, fmt.Errorf("openai: api key is required")
		}
		return OpenAI{
			APIKey:  sc.APIKey,
			Model:   orDefault(sc.Model, defaultOpenAIModel),
			BaseURL: sc.BaseURL,
		}, nil

	case settings.ServiceAzureOpenAI:
		if sc.APIKey == "" {
			return nil, fmt.Errorf("azure_openai: api key is required")
		}
		if sc.BaseURL == "" {
			return nil, fmt.Errorf("azure_openai: base url is required")
		}
		return AzureOpenAI{
			APIKey:     sc.APIKey,
			BaseURL:    sc.BaseURL,
			Model:      orDefault(sc.Model, defaultOpenAIModel),
			APIVersion: orDefault(sc.APIVersion, defaultAzureAPIVersion),
		}, nil

	case settings.ServiceGemini:
		if sc.APIKey == "" {
			return nil, fmt.Errorf("gemini: api key is required")
		}
		return Gemini{
			APIKey: sc.APIKey,
			Model:  orDefault(sc.Model, defaultGeminiModel),
		}, nil

	case settings.ServiceDeepL:
		if sc.APIKey == "" {
			return nil, fmt.Errorf("deepl: auth key is required")
		}
		return DeepL{AuthKey: sc.APIKey}, nil

	case settings.ServiceOllama:
		np := sc.NumPredict
		if np <= 0 {
			np = defaultOllamaPredict
		}
		return Ollama{
			Host:       orDefault(sc.Host, defaultOllamaHost),
			Model:      orDefault(sc.Model, defaultOllamaModel),
			NumPredict: np,
		}, nil

	case settings.ServiceAzure:
		if sc.APIKey == "" {
			return nil, fmt.Errorf("azure: api key is required")
		}
		return AzureText{
			APIKey:   sc.APIKey,
			Endpoint: orDefault(sc.Endpoint, defaultAzureEndpoint),
		}, nil

	case settings.ServiceDeepSeek:
		if sc.APIKey == "" {
			return nil, fmt.Errorf("deepseek: api key is required")
		}
		return DeepSeek{
			APIKey: sc.APIKey,
			Model:  orDefault(sc.Model, defaultDeepSeekModel),
		}, nil

	default:
		return nil, fmt.Errorf("unknown translation service %q", sc.ServiceType)
	}
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
