package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"briefingcore/internal/domain/entity"
	"briefingcore/internal/resilience/circuitbreaker"
	"briefingcore/internal/resilience/retry"
)

const (
	redditTokenURL    = "https://www.reddit.com/api/v1/access_token"
	redditAPIBase     = "https://oauth.reddit.com"
	tokenRefreshSkew  = 60 * time.Second
)

// redditMediaHosts is the fixed, closed set of Reddit-owned media domains
// whose posts are dropped as non-article content (spec.md §4.1).
var redditMediaHosts = map[string]bool{
	"i.redd.it": true,
	"v.redd.it": true,
}

func isRedditMediaHost(domain string) bool {
	if redditMediaHosts[domain] {
		return true
	}
	return strings.HasSuffix(domain, ".reddit.com") || strings.HasSuffix(domain, ".imgur.com")
}

// RedditConfig holds the OAuth2 client-credentials and listing parameters
// for the optional REDDIT source type.
type RedditConfig struct {
	ClientID     string
	ClientSecret string
	ListingLimit int
	MaxAge       time.Duration
}

// Reddit implements Fetcher for entity.SourceTypeReddit: client-credentials
// OAuth2 with a cached, pre-emptively refreshed access token, rate-limited
// hot-listing reads, and the fixed self-post/stickied/NSFW/media-host
// filter chain from spec.md §4.1.
type Reddit struct {
	client  *http.Client
	config  RedditConfig
	limiter *rate.Limiter

	cbToken *circuitbreaker.CircuitBreaker
	cbAPI   *circuitbreaker.CircuitBreaker
	retryCfg retry.Config

	mu          sync.Mutex
	accessToken string
	expiresAt   time.Time
}

// NewReddit builds a REDDIT fetcher. It returns (nil, false) when
// credentials are absent, so callers skip registering REDDIT support
// entirely rather than registering a fetcher doomed to fail every call.
func NewReddit(client *http.Client, config RedditConfig) (*Reddit, bool) {
	if config.ClientID == "" || config.ClientSecret == "" {
		return nil, false
	}
	if config.ListingLimit <= 0 {
		config.ListingLimit = 25
	}
	if config.MaxAge <= 0 {
		config.MaxAge = 24 * time.Hour
	}
	return &Reddit{
		client:   client,
		config:   config,
		limiter:  rate.NewLimiter(rate.Every(time.Second), 1), // Reddit API: ~1 req/s sustained
		cbToken:  circuitbreaker.New(circuitbreaker.DefaultConfig("reddit-oauth")),
		cbAPI:    circuitbreaker.New(circuitbreaker.FeedFetchConfig()),
		retryCfg: retry.FeedFetchConfig(),
	}, true
}

// Validate confirms url names a subreddit this client can list.
func (f *Reddit) Validate(ctx context.Context, rawURL string) (ValidateResult, error) {
	subreddit, ok := subredditFromURL(rawURL)
	if !ok {
		return ValidateResult{OK: false, FailureReason: "not a recognizable subreddit URL"}, nil
	}
	if _, err := f.listing(ctx, subreddit); err != nil {
		return ValidateResult{OK: false, FailureReason: err.Error()}, nil
	}
	return ValidateResult{OK: true}, nil
}

// Fetch lists /r/{subreddit}/hot, filters, and maps to FetchedItem.
func (f *Reddit) Fetch(ctx context.Context, source *entity.Source, cc entity.CallContext) (FetchResult, error) {
	subreddit, ok := subredditFromURL(source.URL)
	if !ok {
		return FetchResult{}, fmt.Errorf("source url %q is not a subreddit", source.URL)
	}

	posts, err := f.listing(ctx, subreddit)
	if err != nil {
		return FetchResult{}, err
	}

	cutoff := time.Now().Add(-f.config.MaxAge)
	if source.LastFetchedAt != nil && source.LastFetchedAt.After(cutoff) {
		cutoff = *source.LastFetchedAt
	}

	items := make([]FetchedItem, 0, len(posts))
	for _, p := range posts {
		if p.IsSelf || p.Stickied || p.Over18 {
			continue
		}
		if isRedditMediaHost(p.Domain) {
			continue
		}
		createdAt := time.Unix(int64(p.CreatedUTC), 0)
		if createdAt.Before(cutoff) {
			continue
		}

		items = append(items, FetchedItem{
			GUID:        "reddit:" + p.Name,
			Title:       p.Title,
			Link:        p.URL,
			Author:      p.Author,
			PublishedAt: &createdAt,
			RawContent:  p.Selftext,
		})
	}

	return FetchResult{Items: items}, nil
}

type redditPost struct {
	Name        string  `json:"name"`
	Title       string  `json:"title"`
	URL         string  `json:"url"`
	Author      string  `json:"author"`
	Domain      string  `json:"domain"`
	Selftext    string  `json:"selftext"`
	IsSelf      bool    `json:"is_self"`
	Stickied    bool    `json:"stickied"`
	Over18      bool    `json:"over_18"`
	CreatedUTC  float64 `json:"created_utc"`
}

func (f *Reddit) listing(ctx context.Context, subreddit string) ([]redditPost, error) {
	var posts []redditPost

	retryErr := retry.WithBackoff(ctx, f.retryCfg, func() error {
		if err := f.limiter.Wait(ctx); err != nil {
			return err
		}
		token, err := f.accessTokenFor(ctx)
		if err != nil {
			return err
		}

		cbResult, err := f.cbAPI.Execute(func() (interface{}, error) {
			listingURL := fmt.Sprintf("%s/r/%s/hot?limit=%d", redditAPIBase, subreddit, f.config.ListingLimit)
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, listingURL, nil)
			if err != nil {
				return nil, err
			}
			req.Header.Set("Authorization", "Bearer "+token)
			req.Header.Set("User-Agent", "BriefingCoreBot/1.0")

			resp, err := f.client.Do(req)
			if err != nil {
				return nil, err
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				return nil, fmt.Errorf("reddit listing http %d", resp.StatusCode)
			}

			var body struct {
				Data struct {
					Children []struct {
						Data redditPost `json:"data"`
					} `json:"children"`
				} `json:"data"`
			}
			if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
				return nil, err
			}
			result := make([]redditPost, 0, len(body.Data.Children))
			for _, c := range body.Data.Children {
				result = append(result, c.Data)
			}
			return result, nil
		})
		if err != nil {
			return err
		}
		posts = cbResult.([]redditPost)
		return nil
	})
	if retryErr != nil {
		return nil, retryErr
	}
	return posts, nil
}

// accessTokenFor returns a cached token, refreshing it if it expires
// within tokenRefreshSkew.
func (f *Reddit) accessTokenFor(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.accessToken != "" && time.Now().Add(tokenRefreshSkew).Before(f.expiresAt) {
		return f.accessToken, nil
	}

	cbResult, err := f.cbToken.Execute(func() (interface{}, error) {
		form := url.Values{"grant_type": {"client_credentials"}}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, redditTokenURL, strings.NewReader(form.Encode()))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("User-Agent", "BriefingCoreBot/1.0")
		req.SetBasicAuth(f.config.ClientID, f.config.ClientSecret)

		resp, err := f.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("reddit token endpoint http %d", resp.StatusCode)
		}

		var body struct {
			AccessToken string `json:"access_token"`
			ExpiresIn   int    `json:"expires_in"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return nil, err
		}
		return body, nil
	})
	if err != nil {
		return "", fmt.Errorf("reddit oauth token request failed: %w", err)
	}

	tokenResp := cbResult.(struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	})
	f.accessToken = tokenResp.AccessToken
	f.expiresAt = time.Now().Add(time.Duration(tokenResp.ExpiresIn) * time.Second)
	return f.accessToken, nil
}

// subredditFromURL extracts "golang" from e.g. https://reddit.com/r/golang
// or https://www.reddit.com/r/golang/.
func subredditFromURL(rawURL string) (string, bool) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", false
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i, p := range parts {
		if p == "r" && i+1 < len(parts) && parts[i+1] != "" {
			return parts[i+1], true
		}
	}
	return "", false
}
