package analysis

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/llms/openai"
)

const (
	ProviderGoogleAI  = "googleai"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

var defaultModels = map[string]string{
	ProviderGoogleAI:  "gemini-2.0-flash",
	ProviderOpenAI:    "gpt-4o-mini",
	ProviderAnthropic: "claude-3-5-sonnet-latest",
}

// Config is the explicit configuration of a Client. The API key is read once
// when the first request builds the model.
type Config struct {
	Provider string
	Model    string
	APIKey   string
	// BaseURL points the OpenAI and Anthropic clients at a gateway or proxy.
	BaseURL     string
	MaxTokens   int
	Temperature float64
	// Structured declares ResponseSchema to providers that support
	// schema-constrained output. The client sets it for analysis calls only.
	Structured bool
}

func (c Config) ProviderName() string {
	provider := strings.ToLower(strings.TrimSpace(c.Provider))
	switch provider {
	case "", "gemini", "google":
		return ProviderGoogleAI
	default:
		return provider
	}
}

func (c Config) ModelName() string {
	if model := strings.TrimSpace(c.Model); model != "" {
		return model
	}
	return defaultModels[c.ProviderName()]
}

// ImagesOnly reports whether the provider accepts page images but not PDFs or
// other documents as inline parts.
func (c Config) ImagesOnly() bool {
	switch c.ProviderName() {
	case ProviderOpenAI, ProviderAnthropic:
		return true
	default:
		return false
	}
}

// ModelFactory builds the provider model for cfg.
type ModelFactory func(ctx context.Context, cfg Config) (llms.Model, error)

// NewModel is the default ModelFactory.
func NewModel(ctx context.Context, cfg Config) (llms.Model, error) {
	switch cfg.ProviderName() {
	case ProviderGoogleAI:
		return googleai.New(ctx,
			googleai.WithAPIKey(cfg.APIKey),
			googleai.WithDefaultModel(cfg.ModelName()),
		)
	case ProviderOpenAI:
		opts := []openai.Option{
			openai.WithToken(cfg.APIKey),
			openai.WithModel(cfg.ModelName()),
		}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		if cfg.Structured {
			opts = append(opts, openai.WithResponseFormat(openAIResponseFormat))
		}
		return openai.New(opts...)
	case ProviderAnthropic:
		opts := []anthropic.Option{
			anthropic.WithToken(cfg.APIKey),
			anthropic.WithModel(cfg.ModelName()),
		}
		if cfg.BaseURL != "" {
			opts = append(opts, anthropic.WithBaseURL(cfg.BaseURL))
		}
		return anthropic.New(opts...)
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Provider)
	}
}

// openAIResponseFormat is ResponseSchema in OpenAI's strict structured output
// form. Strict mode requires every property to be listed as required.
var openAIResponseFormat = &openai.ResponseFormat{
	Type: "json_schema",
	JSONSchema: &openai.ResponseFormatJSONSchema{
		Name:   "legal_document_analysis",
		Strict: true,
		Schema: &openai.ResponseFormatJSONSchemaProperty{
			Type: "object",
			Properties: map[string]*openai.ResponseFormatJSONSchemaProperty{
				"summary":             {Type: "string"},
				"pros":                stringList(),
				"cons":                stringList(),
				"potentialLoopholes":  stringList(),
				"potentialChallenges": stringList(),
				"isLegal":             {Type: "boolean"},
				"authenticity": {
					Type: "string",
					Enum: []interface{}{string(AuthenticityReal), string(AuthenticityFake), string(AuthenticityUnknown)},
				},
			},
			AdditionalProperties: false,
			Required:             []string{"summary", "pros", "cons", "potentialLoopholes", "potentialChallenges", "isLegal", "authenticity"},
		},
	},
}

func stringList() *openai.ResponseFormatJSONSchemaProperty {
	return &openai.ResponseFormatJSONSchemaProperty{
		Type:  "array",
		Items: &openai.ResponseFormatJSONSchemaProperty{Type: "string"},
	}
}
