package utils

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
)

// --- Sentinel Errors for Categorization ---
var (
	// Top-level pipeline failure kinds
	ErrFetch = errors.New("fetch error") // Transport failure, non-2xx, timeout or non-HTML body
	ErrParse = errors.New("parse error") // Markup or URL could not be parsed
	ErrWrite = errors.New("write error") // Corpus record could not be written

	ErrRetryFailed      = errors.New("request failed after all retries") // Wraps the last underlying error
	ErrClientHTTPError  = errors.New("client HTTP error (4xx)")          // Wraps original error/status
	ErrServerHTTPError  = errors.New("server HTTP error (5xx)")          // Wraps original error/status
	ErrOtherHTTPError   = errors.New("other HTTP error (non-2xx)")       // Wraps original error/status
	ErrContentType      = errors.New("unsupported content type")
	ErrBodyTooLarge     = errors.New("response body exceeds size limit")
	ErrRequestCreation  = errors.New("failed to create HTTP request")
	ErrResponseBodyRead = errors.New("failed to read response body")
	ErrSemaphoreTimeout = errors.New("timeout acquiring semaphore")
	ErrScopeViolation   = errors.New("URL out of scope (domain/pattern)")
	ErrFrontier         = errors.New("frontier state error") // Wraps load/persist failures of the frontier
	ErrFilesystem       = errors.New("filesystem error")     // Wraps os errors
	ErrDatabase         = errors.New("database error")       // Wraps badger errors
	ErrConfigValidation = errors.New("configuration validation error")
)

// WrapErrorf wraps a sentinel with a formatted message so errors.Is still matches the sentinel.
func WrapErrorf(sentinel error, format string, args ...any) error {
	return fmt.Errorf("%w: %s", sentinel, fmt.Sprintf(format, args...))
}

// CategorizeError maps an error to a predefined category string for logging.
func CategorizeError(err error) string {
	if err == nil {
		return "None"
	}

	// Check the most specific sentinels first; ErrFetch usually wraps one of them
	switch {
	case errors.Is(err, ErrRetryFailed):
		return categorizeRetryFailure(err)
	case errors.Is(err, ErrClientHTTPError):
		errMsg := err.Error()
		for _, code := range []string{"404", "403", "401", "429"} {
			if strings.Contains(errMsg, " "+code+" ") {
				return "HTTP_" + code
			}
		}
		return "HTTP_4xx"
	case errors.Is(err, ErrServerHTTPError):
		return "HTTP_5xx"
	case errors.Is(err, ErrOtherHTTPError):
		return "HTTP_OtherStatus"
	case errors.Is(err, ErrContentType):
		return "Fetch_ContentType"
	case errors.Is(err, ErrBodyTooLarge):
		return "Fetch_BodyTooLarge"
	case errors.Is(err, ErrResponseBodyRead):
		return "Network_BodyRead"
	case errors.Is(err, ErrRequestCreation):
		return "Internal_RequestCreation"
	case errors.Is(err, ErrSemaphoreTimeout):
		return "Resource_SemaphoreTimeout"
	case errors.Is(err, ErrScopeViolation):
		return "Policy_Scope"
	case errors.Is(err, ErrParse):
		errMsg := err.Error()
		if strings.Contains(errMsg, "URL") {
			return "Parse_URL"
		}
		if strings.Contains(errMsg, "HTML") {
			return "Parse_HTML"
		}
		return "Parse_Other"
	case errors.Is(err, ErrWrite):
		if errors.Is(err, os.ErrExist) {
			return "Write_Exists"
		}
		if errors.Is(err, os.ErrPermission) {
			return "Write_Permission"
		}
		return "Write_Other"
	case errors.Is(err, ErrFrontier):
		if errors.Is(err, ErrDatabase) {
			return "Frontier_Database"
		}
		return "Frontier_IO"
	case errors.Is(err, ErrFilesystem):
		if errors.Is(err, os.ErrPermission) {
			return "Filesystem_Permission"
		}
		if errors.Is(err, os.ErrNotExist) {
			return "Filesystem_NotExist"
		}
		if errors.Is(err, os.ErrExist) {
			return "Filesystem_Exist"
		}
		return "Filesystem_Other"
	case errors.Is(err, ErrDatabase):
		return "Database_Other"
	case errors.Is(err, ErrConfigValidation):
		return "Config_Validation"
	}

	// --- Fallback checks for common underlying error types/strings ---
	if errors.Is(err, context.Canceled) {
		return "System_ContextCanceled"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "System_ContextDeadlineExceeded"
	}
	category := categorizeNetworkError(err, "Network_")
	if category == "Unknown" && errors.Is(err, ErrFetch) {
		return "Fetch_Other"
	}
	return category
}

// categorizeRetryFailure inspects the error that exhausted the retry budget.
// The retry error joins ErrRetryFailed with the last attempt's error, so errors.Is sees both.
func categorizeRetryFailure(err error) string {
	if errors.Is(err, ErrServerHTTPError) {
		return "RetryFailed_HTTPServer"
	}
	if errors.Is(err, ErrClientHTTPError) {
		return "RetryFailed_HTTPClient"
	}
	category := categorizeNetworkError(err, "RetryFailed_Network")
	if category == "Unknown" {
		return "RetryFailed_NetworkOther"
	}
	return category
}

// categorizeNetworkError classifies transport errors by type and message.
func categorizeNetworkError(err error, prefix string) string {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return prefix + "Timeout"
	}
	lowerErrMsg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(lowerErrMsg, "timeout"), strings.Contains(lowerErrMsg, "deadline exceeded"):
		return prefix + "Timeout"
	case strings.Contains(lowerErrMsg, "connection refused"):
		return prefix + "ConnectionRefused"
	case strings.Contains(lowerErrMsg, "no such host"):
		return prefix + "DNSLookup"
	case strings.Contains(lowerErrMsg, "tls"), strings.Contains(lowerErrMsg, "certificate"):
		return prefix + "TLS"
	case strings.Contains(lowerErrMsg, "reset by peer"):
		return prefix + "ConnectionReset"
	}
	return "Unknown"
}
