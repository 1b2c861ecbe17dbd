package parse

import (
	"fmt"
	"net"
	"net/url"
	"strings"

	"article-scraper/pkg/utils"
)

// NormalizeURL returns the identity form of a URL used by the frontier.
// It lowercases scheme and host, drops default ports (80/443), turns an empty path into "/",
// trims a trailing slash from non-root paths and removes the fragment.
// The query string is kept: article sites commonly page and route through it.
// Does not modify the input *url.URL
func NormalizeURL(u *url.URL) string {
	if u == nil {
		return ""
	}
	normalized := *u

	normalized.Scheme = strings.ToLower(normalized.Scheme)
	normalized.Host = strings.ToLower(normalized.Host)

	if host, port, err := net.SplitHostPort(normalized.Host); err == nil {
		if (normalized.Scheme == "http" && port == "80") ||
			(normalized.Scheme == "https" && port == "443") {
			normalized.Host = host
		}
	}

	if normalized.Path == "" {
		normalized.Path = "/"
		normalized.RawPath = ""
	} else if len(normalized.Path) > 1 && strings.HasSuffix(normalized.Path, "/") {
		normalized.Path = strings.TrimSuffix(normalized.Path, "/")
		normalized.RawPath = strings.TrimSuffix(normalized.RawPath, "/")
	}

	normalized.Fragment = ""
	normalized.RawFragment = ""
	normalized.ForceQuery = false

	return normalized.String()
}

// ParseAndNormalize parses an absolute http(s) URL and returns its normalized form.
// Errors wrap utils.ErrParse.
func ParseAndNormalize(urlStr string) (string, *url.URL, error) {
	parsed, err := url.Parse(strings.TrimSpace(urlStr))
	if err != nil {
		return "", nil, fmt.Errorf("%w: URL '%s': %w", utils.ErrParse, urlStr, err)
	}
	if !parsed.IsAbs() || parsed.Host == "" {
		return "", nil, fmt.Errorf("%w: URL '%s' is not absolute", utils.ErrParse, urlStr)
	}
	return NormalizeURL(parsed), parsed, nil
}
