package parse

import (
	"fmt"
	"net"
	"net/url"
	"regexp"
	"strings"

	"article-scraper/pkg/utils"
)

// Scope decides which discovered links belong to the crawl.
// A link is in scope when its scheme is http(s), its host equals the configured domain
// and its normalized form matches none of the exclusion patterns.
type Scope struct {
	domain   string
	excludes []*regexp.Regexp
}

// NewScope builds a scope for a domain ("host" or "host:port").
func NewScope(domain string, excludePatterns []string) (*Scope, error) {
	compiled, err := utils.CompileRegexPatterns(excludePatterns)
	if err != nil {
		return nil, err
	}
	return &Scope{domain: canonicalHost("http", domain), excludes: compiled}, nil
}

// Domain returns the configured domain in canonical form
func (s *Scope) Domain() string {
	return s.domain
}

// InScope reports whether an already parsed absolute URL belongs to the crawl.
func (s *Scope) InScope(u *url.URL) bool {
	return s.Check(u) == nil
}

// Check returns nil for in-scope URLs, otherwise an error wrapping utils.ErrScopeViolation.
func (s *Scope) Check(u *url.URL) error {
	if u == nil {
		return fmt.Errorf("%w: nil URL", utils.ErrScopeViolation)
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return fmt.Errorf("%w: scheme '%s'", utils.ErrScopeViolation, u.Scheme)
	}
	if host := canonicalHost(scheme, u.Host); host != s.domain {
		return fmt.Errorf("%w: host '%s' is not '%s'", utils.ErrScopeViolation, host, s.domain)
	}
	if len(s.excludes) > 0 && utils.MatchesAny(s.excludes, NormalizeURL(u)) {
		return fmt.Errorf("%w: '%s' matches an exclude pattern", utils.ErrScopeViolation, u.String())
	}
	return nil
}

// canonicalHost lowercases a host and drops the default port for the scheme.
func canonicalHost(scheme, hostport string) string {
	hostport = strings.ToLower(hostport)
	host, port, err := net.SplitHostPort(hostport)
	if err != nil {
		return hostport
	}
	if (scheme == "http" && port == "80") || (scheme == "https" && port == "443") {
		return host
	}
	return hostport
}
