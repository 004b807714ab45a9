// Package webbody implements the WebBodyFetcher external interface
// (spec.md §6): fetch(url) → markdown?, used by the enrich pipeline's
// web-content-length fallback and by the WEB source type.
package webbody

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"

	"briefingcore/internal/resilience/circuitbreaker"
)

// Config controls WebBodyFetcher's security and performance posture.
type Config struct {
	Timeout        time.Duration
	MaxBodySize    int64
	MaxRedirects   int
	DenyPrivateIPs bool // false only in test mode, per spec.md §6
}

// DefaultConfig returns spec.md §6's 5s-timeout production default.
func DefaultConfig() Config {
	return Config{
		Timeout:        5 * time.Second,
		MaxBodySize:    10 * 1024 * 1024,
		MaxRedirects:   5,
		DenyPrivateIPs: true,
	}
}

// Fetcher implements fetch(url) → string? over HTTP GET + readability
// extraction to markdown-ish plain text.
type Fetcher struct {
	client         *http.Client
	circuitBreaker *circuitbreaker.CircuitBreaker
	config         Config
}

// New builds a Fetcher. Pass a Config with DenyPrivateIPs=false only from
// test harnesses that deliberately target loopback fixtures.
func New(config Config) *Fetcher {
	cb := circuitbreaker.New(circuitbreaker.WebScraperConfig())

	f := &Fetcher{circuitBreaker: cb, config: config}
	f.client = &http.Client{
		Timeout: config.Timeout,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
			TLSClientConfig:     &tls.Config{MinVersion: tls.VersionTLS12},
		},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= f.config.MaxRedirects {
				return fmt.Errorf("too many redirects: %d", len(via))
			}
			return validateURL(req.URL.String(), f.config.DenyPrivateIPs)
		},
	}
	return f
}

// Fetch retrieves urlStr and extracts its readable body. A nil string with
// nil error never happens — callers get either content or a descriptive
// error; the enrich worker treats any error here as "no web content
// available" and falls back to existing content, it does not fail the item.
func (f *Fetcher) Fetch(ctx context.Context, urlStr string) (string, error) {
	if err := validateURL(urlStr, f.config.DenyPrivateIPs); err != nil {
		return "", err
	}

	result, err := f.circuitBreaker.Execute(func() (interface{}, error) {
		return f.doFetch(ctx, urlStr)
	})
	if err != nil {
		return "", err
	}
	return result.(string), nil
}

func (f *Fetcher) doFetch(ctx context.Context, urlStr string) (interface{}, error) {
	htmlBytes, parsedURL, err := f.getHTML(ctx, urlStr)
	if err != nil {
		return "", err
	}

	article, err := readability.FromReader(bytes.NewReader(htmlBytes), parsedURL)
	if err != nil {
		return "", fmt.Errorf("readability extraction failed: %w", err)
	}

	if article.TextContent != "" {
		return article.TextContent, nil
	}
	if article.Content != "" {
		slog.DebugContext(ctx, "webbody: using raw content, text content was empty", slog.String("url", urlStr))
		return article.Content, nil
	}
	return "", fmt.Errorf("no readable content found at %s", urlStr)
}

// getHTML issues the shared GET request and returns the raw response body
// plus the resolved (post-redirect) URL, factored out of doFetch so Detect
// can reuse the same SSRF-guarded request path without a full readability
// pass.
func (f *Fetcher) getHTML(ctx context.Context, urlStr string) ([]byte, *url.URL, error) {
	reqCtx, cancel := context.WithTimeout(ctx, f.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, urlStr, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("User-Agent", "BriefingCoreBot/1.0")

	resp, err := f.client.Do(req)
	if err != nil {
		if reqCtx.Err() == context.DeadlineExceeded {
			return nil, nil, fmt.Errorf("fetch timed out after %v", f.config.Timeout)
		}
		if urlErr, ok := err.(*url.Error); ok && urlErr.Err != nil {
			return nil, nil, urlErr.Err
		}
		return nil, nil, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, nil, fmt.Errorf("http %d: %s", resp.StatusCode, resp.Status)
	}

	limited := io.LimitReader(resp.Body, f.config.MaxBodySize+1)
	htmlBytes, err := io.ReadAll(limited)
	if err != nil {
		return nil, nil, fmt.Errorf("reading body: %w", err)
	}
	if int64(len(htmlBytes)) > f.config.MaxBodySize {
		return nil, nil, fmt.Errorf("response body exceeds %d bytes", f.config.MaxBodySize)
	}

	return htmlBytes, resp.Request.URL, nil
}

// Detect fetches urlStr and extracts its <title> and meta-description
// without running readability's full article-extraction pass, for the WEB
// fetcher's validate(url) step (spec.md §4.1's detectedTitle/
// detectedDescription fields).
func (f *Fetcher) Detect(ctx context.Context, urlStr string) (title, description string, err error) {
	if err := validateURL(urlStr, f.config.DenyPrivateIPs); err != nil {
		return "", "", err
	}

	result, err := f.circuitBreaker.Execute(func() (interface{}, error) {
		htmlBytes, _, err := f.getHTML(ctx, urlStr)
		return htmlBytes, err
	})
	if err != nil {
		return "", "", err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(result.([]byte)))
	if err != nil {
		return "", "", fmt.Errorf("parsing html for title/description: %w", err)
	}
	title = strings.TrimSpace(doc.Find("title").First().Text())
	description, _ = doc.Find(`meta[name="description"]`).First().Attr("content")
	return title, strings.TrimSpace(description), nil
}
