package enricher

import (
	"context"
	"log/slog"
	"time"

	"briefingcore/internal/domain/entity"
)

// UsageRecorder persists one token-usage row per provider call. Call sites
// never block on it — Tracking fires it in its own goroutine (spec.md §6:
// "records token usage asynchronously").
type UsageRecorder interface {
	RecordUsage(ctx context.Context, userID, feature, model string, promptTokens, completionTokens, totalTokens int, success bool, errorMessage string, durationMs int64)
}

// Tracking decorates a Provider with async token-usage logging. It is the
// `Enricher = Tracking(Provider)` composition named in spec.md §9: the
// decorator owns billing/observability concerns so provider implementations
// stay focused on the API call itself.
type Tracking struct {
	inner    Provider
	recorder UsageRecorder
}

// NewTracking wraps inner with usage tracking backed by recorder.
func NewTracking(inner Provider, recorder UsageRecorder) *Tracking {
	return &Tracking{inner: inner, recorder: recorder}
}

func (t *Tracking) record(cc entity.CallContext, feature string, usage Usage, callErr error, start time.Time) {
	success := callErr == nil
	errMsg := ""
	if callErr != nil {
		errMsg = entity.TruncateErrorMessage(callErr.Error(), 1024)
	}
	durationMs := time.Since(start).Milliseconds()

	go func() {
		// Detached from the caller's context: usage must still be recorded
		// even if the caller's context is cancelled by the time the call
		// returns (e.g. worker shutdown mid-call).
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		t.recorder.RecordUsage(ctx, cc.UserID, feature, usage.Model, usage.PromptTokens, usage.CompletionTokens, usage.TotalTokens, success, errMsg, durationMs)
	}()
}

// EnrichAndScore implements Provider, tracking usage around the inner call.
func (t *Tracking) EnrichAndScore(ctx context.Context, cc entity.CallContext, title, content, webContent, criteria string) (EnrichResult, Usage, error) {
	start := time.Now()
	result, usage, err := t.inner.EnrichAndScore(ctx, cc, title, content, webContent, criteria)
	t.record(cc, "enrichAndScore", usage, err, start)
	if err != nil {
		slog.WarnContext(ctx, "enrichAndScore failed", slog.String("trace", cc.TraceID), slog.String("error", err.Error()))
	}
	return result, usage, err
}

// ExtractFromWeb implements Provider, tracking usage around the inner call.
func (t *Tracking) ExtractFromWeb(ctx context.Context, cc entity.CallContext, markdown, prompt string) ([]WebExtractItem, Usage, error) {
	start := time.Now()
	items, usage, err := t.inner.ExtractFromWeb(ctx, cc, markdown, prompt)
	t.record(cc, "extractFromWeb", usage, err, start)
	if err != nil {
		slog.WarnContext(ctx, "extractFromWeb failed", slog.String("trace", cc.TraceID), slog.String("error", err.Error()))
	}
	return items, usage, err
}

// ExtractFromEmail implements Provider, tracking usage around the inner call.
func (t *Tracking) ExtractFromEmail(ctx context.Context, cc entity.CallContext, subject, markdown string) ([]EmailExtractItem, Usage, error) {
	start := time.Now()
	items, usage, err := t.inner.ExtractFromEmail(ctx, cc, subject, markdown)
	t.record(cc, "extractFromEmail", usage, err, start)
	if err != nil {
		slog.WarnContext(ctx, "extractFromEmail failed", slog.String("trace", cc.TraceID), slog.String("error", err.Error()))
	}
	return items, usage, err
}

// GenerateReportEmail implements Provider, tracking usage around the inner call.
func (t *Tracking) GenerateReportEmail(ctx context.Context, cc entity.CallContext, briefingTitle, briefingDescription string, items []FormattedReportItem) (ReportEmail, Usage, error) {
	start := time.Now()
	result, usage, err := t.inner.GenerateReportEmail(ctx, cc, briefingTitle, briefingDescription, items)
	t.record(cc, "generateReportEmail", usage, err, start)
	if err != nil {
		slog.WarnContext(ctx, "generateReportEmail failed", slog.String("trace", cc.TraceID), slog.String("error", err.Error()))
	}
	return result, usage, err
}
