package enricher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sony/gobreaker"

	"briefingcore/internal/domain/entity"
	"briefingcore/internal/resilience/circuitbreaker"
	"briefingcore/internal/resilience/retry"
)

// OpenAIConfig holds the tunables for the OpenAI-backed Provider.
type OpenAIConfig struct {
	Model     string
	MaxTokens int
	Timeout   time.Duration
}

// DefaultOpenAIConfig returns production defaults for the OpenAI provider.
func DefaultOpenAIConfig() OpenAIConfig {
	return OpenAIConfig{
		Model:     openai.GPT4oMini,
		MaxTokens: 2048,
		Timeout:   60 * time.Second,
	}
}

// OpenAI implements Provider against OpenAI's chat completions API, using
// strict JSON-schema response_format to obtain structured output.
type OpenAI struct {
	client         *openai.Client
	circuitBreaker *circuitbreaker.CircuitBreaker
	retryConfig    retry.Config
	config         OpenAIConfig
}

// NewOpenAI builds an OpenAI provider with the given API key.
func NewOpenAI(apiKey string) *OpenAI {
	cfg := DefaultOpenAIConfig()
	slog.Info("initialized openai enricher", slog.String("model", cfg.Model))
	return &OpenAI{
		client:         openai.NewClient(apiKey),
		circuitBreaker: circuitbreaker.New(circuitbreaker.OpenAIAPIConfig()),
		retryConfig:    retry.AIAPIConfig(),
		config:         cfg,
	}
}

func jsonSchemaFormat(name string, schema map[string]interface{}) *openai.ChatCompletionResponseFormat {
	raw, _ := json.Marshal(schema)
	return &openai.ChatCompletionResponseFormat{
		Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
		JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
			Name:   name,
			Schema: json.RawMessage(raw),
			Strict: true,
		},
	}
}

var enrichAndScoreSchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"summary": map[string]interface{}{"type": "string"},
		"topics":  map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "string"}},
		"entities": map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"people":       map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "string"}},
				"companies":    map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "string"}},
				"technologies": map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "string"}},
			},
			"required":             []string{"people", "companies", "technologies"},
			"additionalProperties": false,
		},
		"sentiment":      map[string]interface{}{"type": "string", "enum": []string{"positive", "neutral", "negative"}},
		"score":          map[string]interface{}{"type": "integer"},
		"scoreReasoning": map[string]interface{}{"type": "string"},
	},
	"required":             []string{"summary", "topics", "entities", "sentiment", "score", "scoreReasoning"},
	"additionalProperties": false,
}

// EnrichAndScore implements Provider.
func (o *OpenAI) EnrichAndScore(ctx context.Context, cc entity.CallContext, title, content, webContent, criteria string) (EnrichResult, Usage, error) {
	prompt := fmt.Sprintf("Title: %s\n\nContent:\n%s\n\nAdditional web content:\n%s\n\nScoring criteria:\n%s",
		title, content, webContent, criteria)

	var result EnrichResult
	usage, err := o.chatJSON(ctx, "enrich-and-score", prompt, jsonSchemaFormat("enrich_and_score", enrichAndScoreSchema), &result)
	return result, usage, err
}

var extractFromWebSchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"items": map[string]interface{}{
			"type": "array",
			"items": map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"title":   map[string]interface{}{"type": "string"},
					"content": map[string]interface{}{"type": "string"},
					"link":    map[string]interface{}{"type": "string"},
				},
				"required":             []string{"title", "content", "link"},
				"additionalProperties": false,
			},
		},
	},
	"required":             []string{"items"},
	"additionalProperties": false,
}

// ExtractFromWeb implements Provider.
func (o *OpenAI) ExtractFromWeb(ctx context.Context, cc entity.CallContext, markdown, prompt string) ([]WebExtractItem, Usage, error) {
	fullPrompt := fmt.Sprintf("%s\n\nPage content:\n%s", prompt, markdown)

	var wrapper struct {
		Items []WebExtractItem `json:"items"`
	}
	usage, err := o.chatJSON(ctx, "extract-from-web", fullPrompt, jsonSchemaFormat("extract_from_web", extractFromWebSchema), &wrapper)
	if err != nil {
		return nil, usage, err
	}
	return clampWebExtractItems(wrapper.Items), usage, nil
}

var extractFromEmailSchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"items": map[string]interface{}{
			"type": "array",
			"items": map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"title":   map[string]interface{}{"type": "string"},
					"summary": map[string]interface{}{"type": "string"},
					"url":     map[string]interface{}{"type": "string"},
				},
				"required":             []string{"title", "summary", "url"},
				"additionalProperties": false,
			},
		},
	},
	"required":             []string{"items"},
	"additionalProperties": false,
}

// ExtractFromEmail implements Provider.
func (o *OpenAI) ExtractFromEmail(ctx context.Context, cc entity.CallContext, subject, markdown string) ([]EmailExtractItem, Usage, error) {
	prompt := fmt.Sprintf("Subject: %s\n\nBody:\n%s", subject, markdown)

	var wrapper struct {
		Items []EmailExtractItem `json:"items"`
	}
	usage, err := o.chatJSON(ctx, "extract-from-email", prompt, jsonSchemaFormat("extract_from_email", extractFromEmailSchema), &wrapper)
	if err != nil {
		return nil, usage, err
	}
	return clampEmailExtractItems(wrapper.Items), usage, nil
}

var generateReportEmailSchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"subject": map[string]interface{}{"type": "string"},
		"summary": map[string]interface{}{"type": "string"},
	},
	"required":             []string{"subject", "summary"},
	"additionalProperties": false,
}

// GenerateReportEmail implements Provider.
func (o *OpenAI) GenerateReportEmail(ctx context.Context, cc entity.CallContext, briefingTitle, briefingDescription string, items []FormattedReportItem) (ReportEmail, Usage, error) {
	var body string
	for _, it := range items {
		body += fmt.Sprintf("- [%d] %s: %s (%s)\n", it.Score, it.Title, it.Summary, it.Link)
	}
	prompt := fmt.Sprintf("Briefing: %s\n%s\n\nItems:\n%s", briefingTitle, briefingDescription, body)

	var result ReportEmail
	usage, err := o.chatJSON(ctx, "generate-report-email", prompt, jsonSchemaFormat("generate_report_email", generateReportEmailSchema), &result)
	return result, usage, err
}

// chatJSON sends a single-turn chat completion with a strict JSON schema
// response format and decodes the content into out.
func (o *OpenAI) chatJSON(ctx context.Context, feature, prompt string, format *openai.ChatCompletionResponseFormat, out interface{}) (Usage, error) {
	ctx, cancel := context.WithTimeout(ctx, o.config.Timeout)
	defer cancel()

	var usage Usage
	var content string

	retryErr := retry.WithBackoff(ctx, o.retryConfig, func() error {
		cbResult, err := o.circuitBreaker.Execute(func() (interface{}, error) {
			return o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
				Model:          o.config.Model,
				MaxTokens:      o.config.MaxTokens,
				ResponseFormat: format,
				Messages: []openai.ChatCompletionMessage{
					{Role: openai.ChatMessageRoleUser, Content: prompt},
				},
			})
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) {
				slog.WarnContext(ctx, "openai circuit breaker open", slog.String("feature", feature))
				return fmt.Errorf("openai unavailable: circuit breaker open")
			}
			return err
		}

		resp := cbResult.(openai.ChatCompletionResponse)
		if len(resp.Choices) == 0 {
			return fmt.Errorf("openai returned no choices")
		}
		usage = Usage{
			Model:            o.config.Model,
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		}
		content = resp.Choices[0].Message.Content
		return nil
	})
	if retryErr != nil {
		return usage, fmt.Errorf("%s: %w", feature, retryErr)
	}

	if err := json.Unmarshal([]byte(content), out); err != nil {
		return usage, fmt.Errorf("%s: decoding json response: %w", feature, err)
	}
	return usage, nil
}
