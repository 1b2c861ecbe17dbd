package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"article-scraper/pkg/config"
	"article-scraper/pkg/utils"
)

// Page is a successfully fetched HTML response
type Page struct {
	RequestURL  string   // URL as requested
	FinalURL    *url.URL // URL after redirects; relative links resolve against it
	StatusCode  int
	ContentType string
	Body        []byte
}

// PageFetcher retrieves HTML pages. Implemented by *Fetcher; tests substitute their own.
type PageFetcher interface {
	Fetch(ctx context.Context, pageURL string) (*Page, error)
}

// Fetcher performs HTTP GETs with retry, a global concurrency limit and HTML-only acceptance
type Fetcher struct {
	client  *http.Client
	cfg     *config.AppConfig
	log     *logrus.Entry
	limiter *semaphore.Weighted // Bounds in-flight requests across all workers
}

// NewFetcher creates a new Fetcher. A nil client gets one built from cfg.HTTPClientSettings.
func NewFetcher(client *http.Client, cfg *config.AppConfig, log *logrus.Entry) *Fetcher {
	if client == nil {
		client = NewClient(cfg.HTTPClientSettings, log)
	}
	maxRequests := int64(cfg.MaxRequests)
	if maxRequests <= 0 {
		maxRequests = 1
	}
	return &Fetcher{
		client:  client,
		cfg:     cfg,
		log:     log,
		limiter: semaphore.NewWeighted(maxRequests),
	}
}

// Fetch GETs pageURL and returns its body when the response is a 2xx HTML document.
// Every failure wraps utils.ErrFetch; context errors are additionally kept in the chain.
func (f *Fetcher) Fetch(ctx context.Context, pageURL string) (*Page, error) {
	if f.cfg.PerPageTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.cfg.PerPageTimeout)
		defer cancel()
	}

	release, err := f.acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", utils.ErrFetch, err)
	}
	defer release()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w: '%s': %w", utils.ErrFetch, utils.ErrRequestCreation, pageURL, err)
	}
	req.Header.Set("User-Agent", f.cfg.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.5")

	resp, err := f.FetchWithRetry(ctx, req)
	if err != nil {
		if resp != nil {
			drainAndClose(resp)
		}
		return nil, fmt.Errorf("%w: %w", utils.ErrFetch, err)
	}
	defer drainAndClose(resp)

	contentType := resp.Header.Get("Content-Type")
	if !isHTMLContentType(contentType) {
		return nil, fmt.Errorf("%w: %w: '%s' for %s", utils.ErrFetch, utils.ErrContentType, contentType, pageURL)
	}

	body, err := f.readBody(resp)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", utils.ErrFetch, err)
	}

	return &Page{
		RequestURL:  pageURL,
		FinalURL:    resp.Request.URL,
		StatusCode:  resp.StatusCode,
		ContentType: contentType,
		Body:        body,
	}, nil
}

// acquire takes one request slot, giving up after the configured semaphore timeout.
func (f *Fetcher) acquire(ctx context.Context) (func(), error) {
	acquireCtx := ctx
	if f.cfg.SemaphoreTimeout > 0 {
		var cancel context.CancelFunc
		acquireCtx, cancel = context.WithTimeout(ctx, f.cfg.SemaphoreTimeout)
		defer cancel()
	}
	if err := f.limiter.Acquire(acquireCtx, 1); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err() // Caller's context ended; not a semaphore problem
		}
		return nil, fmt.Errorf("%w: %w", utils.ErrSemaphoreTimeout, err)
	}
	return func() { f.limiter.Release(1) }, nil
}

// readBody reads the response body, enforcing MaxPageSizeBytes when set.
func (f *Fetcher) readBody(resp *http.Response) ([]byte, error) {
	reader := io.Reader(resp.Body)
	limit := f.cfg.MaxPageSizeBytes
	if limit > 0 {
		reader = io.LimitReader(resp.Body, limit+1)
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", utils.ErrResponseBodyRead, err)
	}
	if limit > 0 && int64(len(body)) > limit {
		return nil, fmt.Errorf("%w: more than %d bytes", utils.ErrBodyTooLarge, limit)
	}
	return body, nil
}

// FetchWithRetry executes req, retrying network errors, 5xx and 429 with exponential backoff and jitter.
// On a non-retryable non-2xx status the response is returned together with the error; the caller must close it.
func (f *Fetcher) FetchWithRetry(ctx context.Context, req *http.Request) (*http.Response, error) {
	var lastErr error
	var currentResp *http.Response

	reqLog := f.log.WithField("url", req.URL.String())
	maxRetries := f.cfg.MaxRetries

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if ctx.Err() != nil {
			if lastErr != nil {
				return nil, fmt.Errorf("%w before attempt %d after error: %w", ctx.Err(), attempt, lastErr)
			}
			return nil, fmt.Errorf("context cancelled before first attempt: %w", ctx.Err())
		}

		if attempt > 0 {
			delay := f.backoffDelay(attempt)
			reqLog.WithFields(logrus.Fields{"attempt": attempt, "max_retries": maxRetries, "delay": delay}).Warn("Retrying request...")

			timer := time.NewTimer(delay)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return nil, fmt.Errorf("%w during retry delay after error: %w", ctx.Err(), lastErr)
			}
		}

		currentResp, lastErr = f.client.Do(req.WithContext(ctx))

		// --- Network-level errors ---
		if lastErr != nil {
			if currentResp != nil {
				drainAndClose(currentResp)
			}
			if errors.Is(lastErr, context.Canceled) || errors.Is(lastErr, context.DeadlineExceeded) {
				reqLog.Warnf("Context cancelled/timed out during HTTP request: %v", lastErr)
				return nil, lastErr
			}
			reqLog.WithField("attempt", attempt).Warnf("Network error: %v", lastErr)
			continue
		}

		// --- HTTP status handling ---
		statusCode := currentResp.StatusCode
		resLog := reqLog.WithFields(logrus.Fields{"status_code": statusCode, "attempt": attempt})

		switch {
		case statusCode >= 200 && statusCode < 300:
			resLog.Debug("Successfully fetched")
			return currentResp, nil

		case statusCode >= 500:
			resLog.Warn("Server error, retrying...")
			lastErr = fmt.Errorf("%w: status %d %s", utils.ErrServerHTTPError, statusCode, currentResp.Status)
			drainAndClose(currentResp)
			continue

		case statusCode == http.StatusTooManyRequests:
			resLog.Warn("Received 429 Too Many Requests, retrying...")
			lastErr = fmt.Errorf("%w: status %d %s", utils.ErrClientHTTPError, statusCode, currentResp.Status)
			drainAndClose(currentResp)
			continue

		case statusCode >= 400 && statusCode < 500:
			resLog.Debug("Client error (4xx), not retrying")
			return currentResp, fmt.Errorf("%w: status %d %s", utils.ErrClientHTTPError, statusCode, currentResp.Status)

		default:
			resLog.Debugf("Non-retryable status: %d", statusCode)
			return currentResp, fmt.Errorf("%w: status %d %s", utils.ErrOtherHTTPError, statusCode, currentResp.Status)
		}
	}

	reqLog.Warnf("All %d fetch attempts failed. Last error: %v", maxRetries+1, lastErr)
	if lastErr == nil {
		return nil, utils.ErrRetryFailed
	}
	return nil, fmt.Errorf("%w: %w", utils.ErrRetryFailed, lastErr)
}

// backoffDelay returns initial * 2^(attempt-1), capped at MaxRetryDelay, with +/-10% jitter.
func (f *Fetcher) backoffDelay(attempt int) time.Duration {
	backoff := float64(f.cfg.InitialRetryDelay) * math.Pow(2, float64(attempt-1))
	delay := time.Duration(backoff)
	if f.cfg.MaxRetryDelay > 0 && (delay <= 0 || delay > f.cfg.MaxRetryDelay) {
		delay = f.cfg.MaxRetryDelay
	}
	if delay <= 0 {
		return 0
	}

	var jitter time.Duration
	if spread := int64(delay) / 5; spread > 0 {
		jitter = time.Duration(rand.Int63n(spread)) - delay/10
	}
	if finalDelay := delay + jitter; finalDelay > 0 {
		return finalDelay
	}
	return 0
}

// isHTMLContentType accepts text/html and XHTML; an absent header is rejected.
func isHTMLContentType(contentType string) bool {
	if contentType == "" {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	}
	return mediaType == "text/html" || mediaType == "application/xhtml+xml"
}

// drainAndClose discards the rest of a body so the connection can be reused.
func drainAndClose(resp *http.Response) {
	if resp == nil || resp.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	resp.Body.Close()
}
