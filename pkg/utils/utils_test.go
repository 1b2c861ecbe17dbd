package utils

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"
)

// --- CategorizeError Tests ---

func TestCategorizeError_NilError(t *testing.T) {
	result := CategorizeError(nil)
	if result != "None" {
		t.Errorf("CategorizeError(nil) = %q, want %q", result, "None")
	}
}

func TestCategorizeError_SentinelErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{"ContentType", fmt.Errorf("%w: %w: got image/png", ErrFetch, ErrContentType), "Fetch_ContentType"},
		{"BodyTooLarge", fmt.Errorf("%w: %w", ErrFetch, ErrBodyTooLarge), "Fetch_BodyTooLarge"},
		{"SemaphoreTimeout", ErrSemaphoreTimeout, "Resource_SemaphoreTimeout"},
		{"RequestCreation", ErrRequestCreation, "Internal_RequestCreation"},
		{"ResponseBodyRead", ErrResponseBodyRead, "Network_BodyRead"},
		{"ConfigValidation", ErrConfigValidation, "Config_Validation"},
		{"ServerHTTPError", ErrServerHTTPError, "HTTP_5xx"},
		{"OtherHTTPError", ErrOtherHTTPError, "HTTP_OtherStatus"},
		{"ScopeViolation", ErrScopeViolation, "Policy_Scope"},
		{"Database", ErrDatabase, "Database_Other"},
		{"Filesystem", ErrFilesystem, "Filesystem_Other"},
		{"FrontierIO", fmt.Errorf("%w: rename queue.txt", ErrFrontier), "Frontier_IO"},
		{"FrontierDB", fmt.Errorf("%w: %w", ErrFrontier, ErrDatabase), "Frontier_Database"},
		{"ParseHTML", fmt.Errorf("%w: HTML document", ErrParse), "Parse_HTML"},
		{"ParseURL", fmt.Errorf("%w: bad URL", ErrParse), "Parse_URL"},
		{"FetchOther", fmt.Errorf("%w: something odd", ErrFetch), "Fetch_Other"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CategorizeError(tt.err)
			if result != tt.expected {
				t.Errorf("CategorizeError(%v) = %q, want %q", tt.err, result, tt.expected)
			}
		})
	}
}

func TestCategorizeError_ClientHTTPCodes(t *testing.T) {
	tests := []struct {
		status   int
		expected string
	}{
		{404, "HTTP_404"},
		{403, "HTTP_403"},
		{401, "HTTP_401"},
		{429, "HTTP_429"},
		{418, "HTTP_4xx"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			err := fmt.Errorf("%w: %w: status %d Whatever", ErrFetch, ErrClientHTTPError, tt.status)
			if result := CategorizeError(err); result != tt.expected {
				t.Errorf("CategorizeError() = %q, want %q", result, tt.expected)
			}
		})
	}
}

func TestCategorizeError_RetryFailed(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{"server", fmt.Errorf("%w: %w", ErrRetryFailed, fmt.Errorf("%w: status 503", ErrServerHTTPError)), "RetryFailed_HTTPServer"},
		{"client", fmt.Errorf("%w: %w", ErrRetryFailed, fmt.Errorf("%w: status 429", ErrClientHTTPError)), "RetryFailed_HTTPClient"},
		{"refused", fmt.Errorf("%w: %w", ErrRetryFailed, errors.New("dial tcp: connection refused")), "RetryFailed_NetworkConnectionRefused"},
		{"other", fmt.Errorf("%w: %w", ErrRetryFailed, errors.New("weird")), "RetryFailed_NetworkOther"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if result := CategorizeError(tt.err); result != tt.expected {
				t.Errorf("CategorizeError() = %q, want %q", result, tt.expected)
			}
		})
	}
}

func TestCategorizeError_WriteErrors(t *testing.T) {
	exists := fmt.Errorf("%w: %w", ErrWrite, os.ErrExist)
	if got := CategorizeError(exists); got != "Write_Exists" {
		t.Errorf("CategorizeError(exists) = %q, want Write_Exists", got)
	}
	perm := fmt.Errorf("%w: %w", ErrWrite, os.ErrPermission)
	if got := CategorizeError(perm); got != "Write_Permission" {
		t.Errorf("CategorizeError(perm) = %q, want Write_Permission", got)
	}
}

func TestCategorizeError_Fallbacks(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{"canceled", fmt.Errorf("fetch aborted: %w", context.Canceled), "System_ContextCanceled"},
		{"deadline", context.DeadlineExceeded, "System_ContextDeadlineExceeded"},
		{"dns", errors.New("lookup x: no such host"), "Network_DNSLookup"},
		{"reset", errors.New("read: connection reset by peer"), "Network_ConnectionReset"},
		{"unknown", errors.New("mystery"), "Unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if result := CategorizeError(tt.err); result != tt.expected {
				t.Errorf("CategorizeError() = %q, want %q", result, tt.expected)
			}
		})
	}
}

// --- Helpers ---

func TestWrapErrorf(t *testing.T) {
	err := WrapErrorf(ErrConfigValidation, "field %s", "base_url")
	if !errors.Is(err, ErrConfigValidation) {
		t.Fatalf("WrapErrorf result does not wrap sentinel: %v", err)
	}
	if !strings.Contains(err.Error(), "field base_url") {
		t.Errorf("unexpected message: %q", err.Error())
	}
}

func TestSanitizePathComponent(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"www.sciencealert.com", "www.sciencealert.com"},
		{"host:8080", "host_8080"},
		{"a//b??c", "a_b_c"},
		{"___", "site"},
		{"", "site"},
	}
	for _, tt := range tests {
		if got := SanitizePathComponent(tt.in); got != tt.want {
			t.Errorf("SanitizePathComponent(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}

	long := strings.Repeat("x", 250)
	if got := SanitizePathComponent(long); len(got) != maxPathComponentLength {
		t.Errorf("long component length = %d, want %d", len(got), maxPathComponentLength)
	}
}

func TestCompileRegexPatterns(t *testing.T) {
	patterns, err := CompileRegexPatterns([]string{`/tag/`, "", `\.pdf$`})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(patterns) != 2 {
		t.Fatalf("compiled %d patterns, want 2", len(patterns))
	}
	if !MatchesAny(patterns, "http://x/tag/space") {
		t.Error("expected /tag/ to match")
	}
	if MatchesAny(patterns, "http://x/article") {
		t.Error("did not expect article URL to match")
	}

	_, err = CompileRegexPatterns([]string{"("})
	if !errors.Is(err, ErrConfigValidation) {
		t.Errorf("invalid pattern error = %v, want ErrConfigValidation", err)
	}
}

func TestContentHashes(t *testing.T) {
	a := ContentSHA256("hello")
	if a != "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824" {
		t.Errorf("ContentSHA256(hello) = %s", a)
	}
	if ContentFingerprint("hello") == ContentFingerprint("hello!") {
		t.Error("fingerprints of different content should differ")
	}
	if ContentFingerprint("same") != ContentFingerprint("same") {
		t.Error("fingerprint must be deterministic")
	}
}
