package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"article-scraper/pkg/utils"
)

// Defaults for the article gate
const (
	DefaultMinBodyWords        = 150
	DefaultArticleTypeProperty = "og:type"
	DefaultArticleTypeValue    = "article"
	DefaultBodySelector        = "div.article-fulltext"
	DefaultTitleSelector       = "title"
	DefaultDateSelector        = "div.author-name-date span"
	DefaultDateMetaProperty    = "article:published_time"
	DefaultKeywordsMetaName    = "keywords"
	DefaultUserAgent           = "Mozilla/5.0 (compatible; article-scraper/1.0)"
)

// DefaultStripSelectors are removed from the body before the word count
var DefaultStripSelectors = []string{"script", "style", "a"}

// Validate checks AppConfig fields and applies defaults.
// Returns collected warnings and any fatal error.
// Modifies receiver in place to apply defaults.
func (c *AppConfig) Validate() (warnings []string, err error) {
	// Required: BaseURL
	if c.BaseURL == "" {
		return nil, fmt.Errorf("%w: base_url is required", utils.ErrConfigValidation)
	}
	base, parseErr := url.ParseRequestURI(c.BaseURL)
	if parseErr != nil {
		return nil, fmt.Errorf("%w: base_url '%s' is not an absolute URL: %v", utils.ErrConfigValidation, c.BaseURL, parseErr)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("%w: base_url scheme must be http or https, got '%s'", utils.ErrConfigValidation, base.Scheme)
	}

	// Domain defaults to the base URL host (including any explicit port)
	if c.Domain == "" {
		c.Domain = strings.ToLower(base.Host)
		warnings = append(warnings, fmt.Sprintf("domain is empty, defaulting to base_url host '%s'", c.Domain))
	} else {
		c.Domain = strings.ToLower(c.Domain)
	}
	if !strings.EqualFold(base.Host, c.Domain) {
		return warnings, fmt.Errorf("%w: base_url host '%s' does not match domain '%s'", utils.ErrConfigValidation, base.Host, c.Domain)
	}

	// OutputDir
	if c.OutputDir == "" {
		c.OutputDir = "./" + utils.SanitizePathComponent(c.Domain)
		warnings = append(warnings, fmt.Sprintf("output_dir is empty, defaulting to '%s'", c.OutputDir))
	}

	// MaxCorpusSize
	if c.MaxCorpusSize < 0 {
		warnings = append(warnings, "max_corpus_size cannot be negative, setting to 0 (unlimited)")
		c.MaxCorpusSize = 0
	}

	// MinBodyWords
	if c.MinBodyWords <= 0 {
		c.MinBodyWords = DefaultMinBodyWords
	}

	// NumWorkers
	if c.NumWorkers <= 0 {
		warnings = append(warnings, "num_workers should be > 0, defaulting to 10")
		c.NumWorkers = 10
	}

	// MaxRequests
	if c.MaxRequests <= 0 {
		c.MaxRequests = c.NumWorkers
	}

	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}

	// ExcludePathPatterns
	if _, reErr := utils.CompileRegexPatterns(c.ExcludePathPatterns); reErr != nil {
		return warnings, reErr
	}

	// FrontierBackend
	switch c.FrontierBackend {
	case "":
		c.FrontierBackend = FrontierBackendFile
	case FrontierBackendFile, FrontierBackendBadger:
	default:
		return warnings, fmt.Errorf("%w: frontier_backend must be '%s' or '%s', got '%s'",
			utils.ErrConfigValidation, FrontierBackendFile, FrontierBackendBadger, c.FrontierBackend)
	}
	if c.BloomExpectedURLs == 0 {
		c.BloomExpectedURLs = 100000
	}
	if c.BloomFalsePositive <= 0 || c.BloomFalsePositive >= 1 {
		if c.BloomFalsePositive != 0 {
			warnings = append(warnings, "bloom_false_positive_rate must be in (0,1), defaulting to 0.01")
		}
		c.BloomFalsePositive = 0.01
	}
	if c.BadgerGCInterval <= 0 {
		c.BadgerGCInterval = 10 * time.Minute
	}

	// MaxPasses
	if c.MaxPasses < 0 {
		warnings = append(warnings, "max_passes cannot be negative, setting to 0 (unlimited)")
		c.MaxPasses = 0
	}

	// PersistInterval
	if c.PersistInterval < 0 {
		warnings = append(warnings, "persist_interval cannot be negative, persisting after every URL")
		c.PersistInterval = 0
	}

	if c.ProgressInterval <= 0 {
		c.ProgressInterval = 30 * time.Second
	}

	// PerPageTimeout
	if c.PerPageTimeout < 0 {
		warnings = append(warnings, "per_page_timeout cannot be negative, disabling timeout")
		c.PerPageTimeout = 0
	}

	// GlobalCrawlTimeout
	if c.GlobalCrawlTimeout < 0 {
		warnings = append(warnings, "global_crawl_timeout cannot be negative, disabling timeout")
		c.GlobalCrawlTimeout = 0
	}

	if c.SemaphoreTimeout <= 0 {
		c.SemaphoreTimeout = 30 * time.Second
	}

	// MaxRetries
	if c.MaxRetries < 0 {
		warnings = append(warnings, "max_retries cannot be negative, setting to 0")
		c.MaxRetries = 0
	}
	if c.MaxRetries > 0 {
		if c.InitialRetryDelay <= 0 {
			c.InitialRetryDelay = 1 * time.Second
		}
		if c.MaxRetryDelay <= 0 {
			c.MaxRetryDelay = 10 * time.Second
		}
	}
	if c.InitialRetryDelay > c.MaxRetryDelay && c.MaxRetryDelay > 0 {
		warnings = append(warnings, fmt.Sprintf(
			"initial_retry_delay (%v) > max_retry_delay (%v), using max_retry_delay for initial",
			c.InitialRetryDelay, c.MaxRetryDelay))
		c.InitialRetryDelay = c.MaxRetryDelay
	}

	// MaxPageSizeBytes
	if c.MaxPageSizeBytes < 0 {
		warnings = append(warnings, "max_page_size_bytes cannot be negative, setting to 0 (unlimited)")
		c.MaxPageSizeBytes = 0
	}

	if c.EnableOutputMapping && c.OutputMappingFile == "" {
		warnings = append(warnings,
			"'enable_output_mapping' is true but 'output_mapping_filename' is empty. Defaulting to 'url_to_file_map.tsv'")
		c.OutputMappingFile = "url_to_file_map.tsv"
	}
	if c.EnableMetadataYAML && c.MetadataYAMLFilename == "" {
		warnings = append(warnings,
			"'enable_metadata_yaml' is true but 'metadata_yaml_filename' is empty. Defaulting to 'metadata.yaml'")
		c.MetadataYAMLFilename = "metadata.yaml"
	}

	c.Extraction.applyDefaults()
	c.validateHTTPClientSettings()

	return warnings, nil
}

// applyDefaults fills unset selectors with the defaults of the article gate.
func (e *ExtractionConfig) applyDefaults() {
	if e.ArticleTypeProperty == "" {
		e.ArticleTypeProperty = DefaultArticleTypeProperty
	}
	if e.ArticleTypeValue == "" {
		e.ArticleTypeValue = DefaultArticleTypeValue
	}
	if e.BodySelector == "" {
		e.BodySelector = DefaultBodySelector
	}
	if e.StripSelectors == nil {
		e.StripSelectors = append([]string(nil), DefaultStripSelectors...)
	}
	if e.TitleSelector == "" {
		e.TitleSelector = DefaultTitleSelector
	}
	if e.DateSelector == "" {
		e.DateSelector = DefaultDateSelector
	}
	if e.DateMetaProperty == "" {
		e.DateMetaProperty = DefaultDateMetaProperty
	}
	if e.KeywordsMetaName == "" {
		e.KeywordsMetaName = DefaultKeywordsMetaName
	}
}

// validateHTTPClientSettings applies defaults to HTTP client settings.
func (c *AppConfig) validateHTTPClientSettings() {
	h := &c.HTTPClientSettings
	if h.Timeout <= 0 {
		h.Timeout = 45 * time.Second
	}
	if h.MaxIdleConns <= 0 {
		h.MaxIdleConns = 100
	}
	if h.MaxIdleConnsPerHost <= 0 {
		h.MaxIdleConnsPerHost = c.NumWorkers
	}
	if h.IdleConnTimeout <= 0 {
		h.IdleConnTimeout = 90 * time.Second
	}
	if h.TLSHandshakeTimeout <= 0 {
		h.TLSHandshakeTimeout = 10 * time.Second
	}
	if h.ExpectContinueTimeout <= 0 {
		h.ExpectContinueTimeout = 1 * time.Second
	}
	if h.DialerTimeout <= 0 {
		h.DialerTimeout = 15 * time.Second
	}
	if h.DialerKeepAlive <= 0 {
		h.DialerKeepAlive = 30 * time.Second
	}
	if h.MaxRedirects <= 0 {
		h.MaxRedirects = 10
	}
}
