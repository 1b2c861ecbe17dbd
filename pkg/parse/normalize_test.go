package parse

import (
	"errors"
	"net/url"
	"testing"

	"article-scraper/pkg/utils"
)

func TestNormalizeURL_NilInput(t *testing.T) {
	result := NormalizeURL(nil)
	if result != "" {
		t.Errorf("NormalizeURL(nil) = %q, want empty string", result)
	}
}

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"UppercaseHost", "http://WWW.Example.COM/Path", "http://www.example.com/Path"},
		{"HTTPDefaultPort", "http://example.com:80/a", "http://example.com/a"},
		{"HTTPSDefaultPort", "https://example.com:443/a", "https://example.com/a"},
		{"NonDefaultPort", "http://example.com:8080/a", "http://example.com:8080/a"},
		{"EmptyPath", "http://example.com", "http://example.com/"},
		{"RootPath", "http://example.com/", "http://example.com/"},
		{"TrailingSlash", "http://example.com/news/", "http://example.com/news"},
		{"Fragment", "http://example.com/a#comments", "http://example.com/a"},
		{"QueryKept", "http://example.com/list?page=2", "http://example.com/list?page=2"},
		{"QueryAndFragment", "http://example.com/list/?page=2#top", "http://example.com/list?page=2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parsed, err := url.Parse(tt.input)
			if err != nil {
				t.Fatalf("url.Parse(%q): %v", tt.input, err)
			}
			result := NormalizeURL(parsed)
			if result != tt.expected {
				t.Errorf("NormalizeURL(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestNormalizeURL_DoesNotModifyInput(t *testing.T) {
	parsed, _ := url.Parse("http://EXAMPLE.com/a/#x")
	_ = NormalizeURL(parsed)
	if parsed.Host != "EXAMPLE.com" || parsed.Fragment != "x" || parsed.Path != "/a/" {
		t.Errorf("input URL was modified: %+v", parsed)
	}
}

func TestParseAndNormalize(t *testing.T) {
	normalized, parsed, err := ParseAndNormalize("  http://Example.com/story/  ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if normalized != "http://example.com/story" {
		t.Errorf("normalized = %q", normalized)
	}
	if parsed.Host != "Example.com" {
		t.Errorf("parsed host = %q, want original casing", parsed.Host)
	}
}

func TestParseAndNormalize_Errors(t *testing.T) {
	for _, input := range []string{"/relative/path", "mailto:someone@example.com", "http://[::1"} {
		_, _, err := ParseAndNormalize(input)
		if !errors.Is(err, utils.ErrParse) {
			t.Errorf("ParseAndNormalize(%q) error = %v, want ErrParse", input, err)
		}
	}
}
