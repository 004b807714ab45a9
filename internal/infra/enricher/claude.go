package enricher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/sony/gobreaker"

	"briefingcore/internal/domain/entity"
	"briefingcore/internal/resilience/circuitbreaker"
	"briefingcore/internal/resilience/retry"
)

// ClaudeConfig holds the tunables for the Claude-backed Provider.
type ClaudeConfig struct {
	Model     string
	MaxTokens int
	Timeout   time.Duration
}

// DefaultClaudeConfig returns production defaults for the Claude provider.
func DefaultClaudeConfig() ClaudeConfig {
	return ClaudeConfig{
		Model:     string(anthropic.ModelClaudeSonnet4_5_20250929),
		MaxTokens: 2048,
		Timeout:   60 * time.Second,
	}
}

// Claude implements Provider against Anthropic's Messages API, using a
// single forced tool call per schema to obtain structured JSON output.
type Claude struct {
	client         anthropic.Client
	circuitBreaker *circuitbreaker.CircuitBreaker
	retryConfig    retry.Config
	config         ClaudeConfig
}

// NewClaude builds a Claude provider with the given API key.
func NewClaude(apiKey string) *Claude {
	cfg := DefaultClaudeConfig()
	slog.Info("initialized claude enricher", slog.String("model", cfg.Model))
	return &Claude{
		client:         anthropic.NewClient(option.WithAPIKey(apiKey)),
		circuitBreaker: circuitbreaker.New(circuitbreaker.ClaudeAPIConfig()),
		retryConfig:    retry.AIAPIConfig(),
		config:         cfg,
	}
}

var enrichAndScoreTool = anthropic.ToolParam{
	Name:        "enrich_and_score",
	Description: anthropic.String("Return structured enrichment and a relevance score for an article."),
	InputSchema: anthropic.ToolInputSchemaParam{
		Properties: map[string]interface{}{
			"summary":        map[string]interface{}{"type": "string"},
			"topics":         map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "string"}},
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
			"score":          map[string]interface{}{"type": "integer", "minimum": 0, "maximum": 100},
			"scoreReasoning": map[string]interface{}{"type": "string"},
		},
		Required:             []string{"summary", "topics", "entities", "sentiment", "score", "scoreReasoning"},
		ExtraFields:          map[string]interface{}{"additionalProperties": false},
	},
}

// EnrichAndScore implements Provider.
func (c *Claude) EnrichAndScore(ctx context.Context, cc entity.CallContext, title, content, webContent, criteria string) (EnrichResult, Usage, error) {
	prompt := fmt.Sprintf("Title: %s\n\nContent:\n%s\n\nAdditional web content:\n%s\n\nScoring criteria:\n%s\n\nCall enrich_and_score with your analysis.",
		title, content, webContent, criteria)

	var result EnrichResult
	usage, err := c.callTool(ctx, cc, "enrich-and-score", prompt, enrichAndScoreTool, &result)
	return result, usage, err
}

var extractFromWebTool = anthropic.ToolParam{
	Name:        "extract_from_web",
	Description: anthropic.String("Extract distinct article items from a markdown-rendered web page."),
	InputSchema: anthropic.ToolInputSchemaParam{
		Properties: map[string]interface{}{
			"items": map[string]interface{}{
				"type": "array",
				"items": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"title":   map[string]interface{}{"type": "string"},
						"content": map[string]interface{}{"type": "string"},
						"link":    map[string]interface{}{"type": "string"},
					},
					"required":             []string{"title", "content"},
					"additionalProperties": false,
				},
			},
		},
		Required:    []string{"items"},
		ExtraFields: map[string]interface{}{"additionalProperties": false},
	},
}

// ExtractFromWeb implements Provider.
func (c *Claude) ExtractFromWeb(ctx context.Context, cc entity.CallContext, markdown, prompt string) ([]WebExtractItem, Usage, error) {
	fullPrompt := fmt.Sprintf("%s\n\nPage content:\n%s\n\nCall extract_from_web with up to %d items.", prompt, markdown, maxWebExtractItems)

	var wrapper struct {
		Items []WebExtractItem `json:"items"`
	}
	usage, err := c.callTool(ctx, cc, "extract-from-web", fullPrompt, extractFromWebTool, &wrapper)
	if err != nil {
		return nil, usage, err
	}
	return clampWebExtractItems(wrapper.Items), usage, nil
}

var extractFromEmailTool = anthropic.ToolParam{
	Name:        "extract_from_email",
	Description: anthropic.String("Extract distinct article items from a forwarded newsletter email."),
	InputSchema: anthropic.ToolInputSchemaParam{
		Properties: map[string]interface{}{
			"items": map[string]interface{}{
				"type": "array",
				"items": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"title":   map[string]interface{}{"type": "string"},
						"summary": map[string]interface{}{"type": "string"},
						"url":     map[string]interface{}{"type": "string"},
					},
					"required":             []string{"title", "summary"},
					"additionalProperties": false,
				},
			},
		},
		Required:    []string{"items"},
		ExtraFields: map[string]interface{}{"additionalProperties": false},
	},
}

// ExtractFromEmail implements Provider.
func (c *Claude) ExtractFromEmail(ctx context.Context, cc entity.CallContext, subject, markdown string) ([]EmailExtractItem, Usage, error) {
	prompt := fmt.Sprintf("Subject: %s\n\nBody:\n%s\n\nCall extract_from_email with up to %d items.", subject, markdown, maxEmailExtractItems)

	var wrapper struct {
		Items []EmailExtractItem `json:"items"`
	}
	usage, err := c.callTool(ctx, cc, "extract-from-email", prompt, extractFromEmailTool, &wrapper)
	if err != nil {
		return nil, usage, err
	}
	return clampEmailExtractItems(wrapper.Items), usage, nil
}

var generateReportEmailTool = anthropic.ToolParam{
	Name:        "generate_report_email",
	Description: anthropic.String("Write a subject line and summary paragraph for a briefing report email."),
	InputSchema: anthropic.ToolInputSchemaParam{
		Properties: map[string]interface{}{
			"subject": map[string]interface{}{"type": "string"},
			"summary": map[string]interface{}{"type": "string"},
		},
		Required:    []string{"subject", "summary"},
		ExtraFields: map[string]interface{}{"additionalProperties": false},
	},
}

// GenerateReportEmail implements Provider.
func (c *Claude) GenerateReportEmail(ctx context.Context, cc entity.CallContext, briefingTitle, briefingDescription string, items []FormattedReportItem) (ReportEmail, Usage, error) {
	var body string
	for _, it := range items {
		body += fmt.Sprintf("- [%d] %s: %s (%s)\n", it.Score, it.Title, it.Summary, it.Link)
	}
	prompt := fmt.Sprintf("Briefing: %s\n%s\n\nItems:\n%s\n\nCall generate_report_email.", briefingTitle, briefingDescription, body)

	var result ReportEmail
	usage, err := c.callTool(ctx, cc, "generate-report-email", prompt, generateReportEmailTool, &result)
	return result, usage, err
}

// callTool sends a single-turn message forcing the given tool, decodes its
// input into out, and reports usage. Circuit breaker and retry wrap every
// call identically regardless of which schema is being requested.
func (c *Claude) callTool(ctx context.Context, cc entity.CallContext, feature, prompt string, tool anthropic.ToolParam, out interface{}) (Usage, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	var usage Usage
	var rawInput json.RawMessage

	retryErr := retry.WithBackoff(ctx, c.retryConfig, func() error {
		cbResult, err := c.circuitBreaker.Execute(func() (interface{}, error) {
			return c.client.Messages.New(ctx, anthropic.MessageNewParams{
				Model:     anthropic.Model(c.config.Model),
				MaxTokens: int64(c.config.MaxTokens),
				Messages: []anthropic.MessageParam{
					anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
				},
				Tools:      []anthropic.ToolUnionParam{{OfTool: &tool}},
				ToolChoice: anthropic.ToolChoiceUnionParam{OfTool: &anthropic.ToolChoiceToolParam{Name: tool.Name}},
			})
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) {
				slog.WarnContext(ctx, "claude circuit breaker open", slog.String("feature", feature))
				return fmt.Errorf("claude unavailable: circuit breaker open")
			}
			return err
		}

		message := cbResult.(*anthropic.Message)
		usage = Usage{
			Model:            c.config.Model,
			PromptTokens:     int(message.Usage.InputTokens),
			CompletionTokens: int(message.Usage.OutputTokens),
			TotalTokens:      int(message.Usage.InputTokens + message.Usage.OutputTokens),
		}

		for _, block := range message.Content {
			if toolUse, ok := block.AsAny().(anthropic.ToolUseBlock); ok && toolUse.Name == tool.Name {
				rawInput = toolUse.Input
				return nil
			}
		}
		return fmt.Errorf("claude response did not include the requested tool call")
	})
	if retryErr != nil {
		return usage, fmt.Errorf("%s: %w", feature, retryErr)
	}

	if err := json.Unmarshal(rawInput, out); err != nil {
		return usage, fmt.Errorf("%s: decoding tool input: %w", feature, err)
	}
	return usage, nil
}
