package fetcher

import (
	"context"
	"fmt"
	"time"

	"briefingcore/internal/domain/entity"
	"briefingcore/internal/infra/enricher"
	"briefingcore/internal/infra/webbody"
)

const webBodyMaxChars = 100000

// Web implements Fetcher for entity.SourceTypeWEB (spec.md §4.1): fetch
// the page body, hand the full-page markdown plus the source's
// extractionPrompt to the enricher's extractFromWeb capability, then
// resolve and normalize each result's link into a guid.
type Web struct {
	body     *webbody.Fetcher
	provider enricher.Provider
}

// NewWeb builds a WEB fetcher over the shared WebBodyFetcher and Provider.
func NewWeb(body *webbody.Fetcher, provider enricher.Provider) *Web {
	return &Web{body: body, provider: provider}
}

// Validate fetches the page once to confirm it is reachable and
// extractable, surfacing its <title>/meta-description the same way RSS
// surfaces a feed's own title/description.
func (f *Web) Validate(ctx context.Context, url string) (ValidateResult, error) {
	title, description, err := f.body.Detect(ctx, url)
	if err != nil {
		return ValidateResult{OK: false, FailureReason: err.Error()}, nil
	}
	return ValidateResult{OK: true, DetectedTitle: title, DetectedDescription: description}, nil
}

// Fetch implements Fetcher.
func (f *Web) Fetch(ctx context.Context, source *entity.Source, cc entity.CallContext) (FetchResult, error) {
	markdown, err := f.body.Fetch(ctx, source.URL)
	if err != nil {
		return FetchResult{}, fmt.Errorf("fetching web body: %w", err)
	}
	if len(markdown) > webBodyMaxChars {
		markdown = markdown[:webBodyMaxChars]
	}

	extracted, _, err := f.provider.ExtractFromWeb(ctx, cc, markdown, source.ExtractionPrompt)
	if err != nil {
		return FetchResult{}, fmt.Errorf("extracting web items: %w", err)
	}

	now := time.Now()
	items := make([]FetchedItem, 0, len(extracted))
	for _, e := range extracted {
		resolved, ok := ResolveLink(source.URL, e.Link)
		if !ok {
			continue // blank/missing link: discarded per spec.md §4.1
		}
		guid := NormalizeURL(resolved)

		items = append(items, FetchedItem{
			GUID:         guid,
			Title:        e.Title,
			Link:         resolved,
			PublishedAt:  &now,
			CleanContent: e.Content,
		})
	}

	return FetchResult{Items: items}, nil
}
