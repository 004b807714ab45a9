package fetcher

import (
	"net/url"
	"strings"
)

// trackingParamPrefixes and trackingParamExact are the fixed set spec.md §4.4 names for stripping.
var trackingParamPrefixes = []string{"utm_"}

var trackingParamExact = map[string]bool{
	"ref":     true,
	"fbclid":  true,
	"gclid":   true,
	"msclkid": true,
	"mc_cid":  true,
	"mc_eid":  true,
}

// NormalizeURL implements the shared URL-normalization helper of spec.md
// §4.4, used for WEB-source GUID derivation and duplicate detection:
// lowercase host, drop a trailing "/" from the path (unless the path is
// exactly "/"), drop tracking query params, preserve everything else.
// Invalid input returns the trimmed original, never an error — this helper
// feeds dedup keys, not validation.
func NormalizeURL(raw string) string {
	trimmed := strings.TrimSpace(raw)
	u, err := url.Parse(trimmed)
	if err != nil || u.Host == "" {
		return trimmed
	}

	u.Host = strings.ToLower(u.Host)

	if u.Path != "/" {
		u.Path = strings.TrimSuffix(u.Path, "/")
	}

	if u.RawQuery != "" {
		values := u.Query()
		for key := range values {
			lower := strings.ToLower(key)
			if trackingParamExact[lower] {
				values.Del(key)
				continue
			}
			for _, prefix := range trackingParamPrefixes {
				if strings.HasPrefix(lower, prefix) {
					values.Del(key)
					break
				}
			}
		}
		u.RawQuery = values.Encode()
	}

	return u.String()
}

// ResolveLink resolves a possibly-relative link (absolute http(s)://,
// protocol-relative "//", or path-relative) against base, as used by the
// WEB fetcher to turn an extractFromWeb result's "link" field into an
// absolute URL before normalizing it into a guid.
func ResolveLink(base, link string) (string, bool) {
	link = strings.TrimSpace(link)
	if link == "" {
		return "", false
	}

	baseURL, err := url.Parse(base)
	if err != nil {
		return "", false
	}

	ref, err := url.Parse(link)
	if err != nil {
		return "", false
	}

	resolved := baseURL.ResolveReference(ref)
	if resolved.Scheme == "" || resolved.Host == "" {
		return "", false
	}
	return resolved.String(), true
}
