package fetcher

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/mmcdole/gofeed"
	"github.com/sony/gobreaker"

	"briefingcore/internal/domain/entity"
	"briefingcore/internal/resilience/circuitbreaker"
	"briefingcore/internal/resilience/retry"
)

// RSS implements Fetcher for entity.SourceTypeRSS using gofeed, with
// conditional-GET caching (ETag / If-Modified-Since) and circuit
// breaker/retry reliability, grounded on the teacher's feed-fetch wiring.
type RSS struct {
	client         *http.Client
	circuitBreaker *circuitbreaker.CircuitBreaker
	retryConfig    retry.Config
}

// NewRSS builds an RSS fetcher with the given HTTP client (its Timeout
// should be set to http.fetchTimeoutSec from pipeline.Config).
func NewRSS(client *http.Client) *RSS {
	return &RSS{
		client:         client,
		circuitBreaker: circuitbreaker.New(circuitbreaker.FeedFetchConfig()),
		retryConfig:    retry.FeedFetchConfig(),
	}
}

// Validate performs a best-effort feed parse to confirm url is a usable
// RSS/Atom feed, surfacing the feed's own title/description if present.
func (f *RSS) Validate(ctx context.Context, url string) (ValidateResult, error) {
	fp := gofeed.NewParser()
	fp.UserAgent = "BriefingCoreBot/1.0"
	fp.Client = f.client

	feed, err := fp.ParseURLWithContext(url, ctx)
	if err != nil {
		return ValidateResult{OK: false, FailureReason: err.Error()}, nil
	}
	return ValidateResult{OK: true, DetectedTitle: feed.Title, DetectedDescription: feed.Description}, nil
}

// Fetch retrieves and parses the feed, applying conditional-GET caching
// and the first-older-than-lastFetchedAt cutoff filter. RSS never calls
// the enricher, so cc is unused here but kept for interface uniformity.
func (f *RSS) Fetch(ctx context.Context, source *entity.Source, cc entity.CallContext) (FetchResult, error) {
	var result FetchResult

	retryErr := retry.WithBackoff(ctx, f.retryConfig, func() error {
		cbResult, err := f.circuitBreaker.Execute(func() (interface{}, error) {
			return f.doFetch(ctx, source)
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) {
				slog.WarnContext(ctx, "rss fetch circuit breaker open", slog.String("source_id", source.ID))
			}
			return err
		}
		result = cbResult.(FetchResult)
		return nil
	})
	if retryErr != nil {
		return FetchResult{}, retryErr
	}
	return result, nil
}

func (f *RSS) doFetch(ctx context.Context, source *entity.Source) (interface{}, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source.URL, nil)
	if err != nil {
		return FetchResult{}, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("User-Agent", "BriefingCoreBot/1.0")
	if source.ETag != "" {
		req.Header.Set("If-None-Match", source.ETag)
	}
	if source.LastModified != "" {
		req.Header.Set("If-Modified-Since", source.LastModified)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return FetchResult{}, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified {
		return FetchResult{ETag: source.ETag, LastModified: source.LastModified}, nil
	}
	if resp.StatusCode != http.StatusOK {
		return FetchResult{}, fmt.Errorf("http %d: %s", resp.StatusCode, resp.Status)
	}

	fp := gofeed.NewParser()
	feed, err := fp.Parse(resp.Body)
	if err != nil {
		return FetchResult{}, fmt.Errorf("parsing feed: %w", err)
	}

	items := make([]FetchedItem, 0, len(feed.Items))
	for _, it := range feed.Items {
		publishedAt := resolvePublishedAt(it)
		if source.LastFetchedAt != nil && publishedAt != nil && publishedAt.Before(*source.LastFetchedAt) {
			continue
		}

		guid := resolveGUID(it)
		raw := it.Content
		if raw == "" {
			raw = it.Description
		}

		items = append(items, FetchedItem{
			GUID:         guid,
			Title:        it.Title,
			Link:         it.Link,
			Author:       resolveAuthor(it),
			PublishedAt:  publishedAt,
			RawContent:   raw,
			CleanContent: htmlToMarkdown(ctx, source.ID, raw),
		})
	}

	return FetchResult{
		Items:        items,
		ETag:         resp.Header.Get("ETag"),
		LastModified: resp.Header.Get("Last-Modified"),
	}, nil
}

// htmlToMarkdown converts a feed item's HTML content/description to
// markdown for Item.CleanContent. A conversion failure is logged and
// falls back to the empty string; it never fails the fetch, matching
// how the rest of this fetcher treats per-item content problems.
func htmlToMarkdown(ctx context.Context, sourceID, raw string) string {
	if raw == "" {
		return ""
	}
	clean, err := htmltomarkdown.ConvertString(raw)
	if err != nil {
		slog.WarnContext(ctx, "rss: html-to-markdown conversion failed", slog.String("source_id", sourceID), slog.Any("error", err))
		return ""
	}
	return clean
}

func resolvePublishedAt(it *gofeed.Item) *time.Time {
	if it.PublishedParsed != nil {
		return it.PublishedParsed
	}
	if it.UpdatedParsed != nil {
		return it.UpdatedParsed
	}
	now := time.Now()
	return &now
}

func resolveAuthor(it *gofeed.Item) string {
	if it.Author != nil {
		return it.Author.Name
	}
	if len(it.Authors) > 0 {
		return it.Authors[0].Name
	}
	return ""
}

// resolveGUID implements the teacher's id→link→hash fallback chain for
// feeds that omit a stable guid element.
func resolveGUID(it *gofeed.Item) string {
	if it.GUID != "" {
		return it.GUID
	}
	if it.Link != "" {
		return it.Link
	}
	published := ""
	if it.PublishedParsed != nil {
		published = it.PublishedParsed.Format(time.RFC3339)
	}
	sum := sha256.Sum256([]byte(it.Title + published))
	return "sha256:" + hex.EncodeToString(sum[:])
}
