// Package enricher implements the structured-output contract over an
// abstract language-model provider (spec.md §6, "Enricher"). Two concrete
// providers are supported — Claude and OpenAI — plus a Tracking decorator
// that records token usage asynchronously without the providers needing
// to know about billing.
package enricher

import (
	"context"

	"briefingcore/internal/domain/entity"
)

// EnrichResult is the enrichAndScore response shape (spec.md §6). Field
// names are fixed by the structured-output schema; additional properties
// are forbidden on the wire, so providers must populate every field.
type EnrichResult struct {
	Summary        string          `json:"summary"`
	Topics         []string        `json:"topics"`
	Entities       EnrichEntities  `json:"entities"`
	Sentiment      entity.Sentiment `json:"sentiment"`
	Score          int             `json:"score"`
	ScoreReasoning string          `json:"scoreReasoning"`
}

// EnrichEntities is the nested entities object of EnrichResult.
type EnrichEntities struct {
	People       []string `json:"people"`
	Companies    []string `json:"companies"`
	Technologies []string `json:"technologies"`
}

// WebExtractItem is one element of extractFromWeb's result array.
type WebExtractItem struct {
	Title   string `json:"title"`
	Content string `json:"content"`
	Link    string `json:"link,omitempty"`
}

// EmailExtractItem is one element of extractFromEmail's result array.
type EmailExtractItem struct {
	Title   string `json:"title"`
	Summary string `json:"summary"`
	URL     string `json:"url,omitempty"`
}

// ReportEmail is generateReportEmail's result shape.
type ReportEmail struct {
	Subject string `json:"subject"`
	Summary string `json:"summary"`
}

// FormattedReportItem is one item handed to generateReportEmail, already
// resolved from a Report's ReportItems + their Items.
type FormattedReportItem struct {
	Title   string
	Summary string
	Link    string
	Score   int
}

const (
	maxWebExtractItems   = 50
	maxEmailExtractItems = 5
)

// Provider is the raw language-model backend. Every call takes an explicit
// entity.CallContext so the caller's userId/trace flows into token-usage
// logging without relying on thread-local or ambient context values (the
// redesign mandate of spec.md §5/§9).
type Provider interface {
	EnrichAndScore(ctx context.Context, cc entity.CallContext, title, content, webContent, criteria string) (EnrichResult, Usage, error)
	ExtractFromWeb(ctx context.Context, cc entity.CallContext, markdown, prompt string) ([]WebExtractItem, Usage, error)
	ExtractFromEmail(ctx context.Context, cc entity.CallContext, subject, markdown string) ([]EmailExtractItem, Usage, error)
	GenerateReportEmail(ctx context.Context, cc entity.CallContext, briefingTitle, briefingDescription string, items []FormattedReportItem) (ReportEmail, Usage, error)
}

// Usage carries per-call token accounting, reported by a Provider
// implementation after each API round trip.
type Usage struct {
	Model            string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// clampWebExtractItems truncates a provider's extractFromWeb response to
// maxWebExtractItems instead of trusting the model's output.
func clampWebExtractItems(items []WebExtractItem) []WebExtractItem {
	if len(items) > maxWebExtractItems {
		return items[:maxWebExtractItems]
	}
	return items
}

// clampEmailExtractItems truncates extractFromEmail's response to
// maxEmailExtractItems.
func clampEmailExtractItems(items []EmailExtractItem) []EmailExtractItem {
	if len(items) > maxEmailExtractItems {
		return items[:maxEmailExtractItems]
	}
	return items
}
