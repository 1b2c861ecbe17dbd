package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"article-scraper/pkg/utils"
)

// Frontier backends
const (
	FrontierBackendFile   = "file"   // In-memory sets, persisted as line files
	FrontierBackendBadger = "badger" // BadgerDB index fronted by a bloom filter
)

// ExtractionConfig holds the selectors that define what an article page looks like
type ExtractionConfig struct {
	ArticleTypeProperty string   `yaml:"article_type_property,omitempty"` // meta[property=...] carrying the page type
	ArticleTypeValue    string   `yaml:"article_type_value,omitempty"`    // Required value of that meta tag
	BodySelector        string   `yaml:"body_selector,omitempty"`         // Container holding the article text
	StripSelectors      []string `yaml:"strip_selectors,omitempty"`       // Elements removed before counting words
	TitleSelector       string   `yaml:"title_selector,omitempty"`
	DateSelector        string   `yaml:"date_selector,omitempty"`
	DateMetaProperty    string   `yaml:"date_meta_property,omitempty"` // Fallback when DateSelector finds nothing
	KeywordsMetaName    string   `yaml:"keywords_meta_name,omitempty"`
}

// AppConfig holds the application configuration for one site crawl
type AppConfig struct {
	BaseURL              string        `yaml:"base_url"`
	Domain               string        `yaml:"domain"`
	OutputDir            string        `yaml:"output_dir"`
	StateDir             string        `yaml:"state_dir,omitempty"` // Defaults to OutputDir
	MaxCorpusSize        int           `yaml:"max_corpus_size"`     // 0 = unlimited
	MinBodyWords         int           `yaml:"min_body_words"`
	NumWorkers           int           `yaml:"num_workers"`
	MaxRequests          int           `yaml:"max_requests,omitempty"` // Concurrent HTTP requests across workers
	UserAgent            string        `yaml:"user_agent"`
	ExcludePathPatterns  []string      `yaml:"exclude_path_patterns,omitempty"` // Regexes; matching links never enter the frontier
	FrontierBackend      string        `yaml:"frontier_backend,omitempty"`
	BloomExpectedURLs    uint          `yaml:"bloom_expected_urls,omitempty"`
	BloomFalsePositive   float64       `yaml:"bloom_false_positive_rate,omitempty"`
	BadgerGCInterval     time.Duration `yaml:"badger_gc_interval,omitempty"`
	MaxPasses            int           `yaml:"max_passes,omitempty"`           // 0 = until the frontier is empty
	FollowLinksInPass    *bool         `yaml:"follow_links_in_pass,omitempty"` // nil = true
	PersistInterval      time.Duration `yaml:"persist_interval,omitempty"`     // 0 = after every processed URL (coalesced)
	ProgressInterval     time.Duration `yaml:"progress_interval,omitempty"`
	PerPageTimeout       time.Duration `yaml:"per_page_timeout,omitempty"` // Timeout for fetching a single page (0 = no timeout)
	GlobalCrawlTimeout   time.Duration `yaml:"global_crawl_timeout,omitempty"`
	SemaphoreTimeout     time.Duration `yaml:"semaphore_acquire_timeout,omitempty"`
	MaxRetries           int           `yaml:"max_retries,omitempty"`
	InitialRetryDelay    time.Duration `yaml:"initial_retry_delay,omitempty"`
	MaxRetryDelay        time.Duration `yaml:"max_retry_delay,omitempty"`
	MaxPageSizeBytes     int64         `yaml:"max_page_size_bytes,omitempty"`
	ContinueDocIDs       *bool         `yaml:"continue_doc_ids,omitempty"` // nil = true
	EnableOutputMapping  bool          `yaml:"enable_output_mapping,omitempty"`
	OutputMappingFile    string        `yaml:"output_mapping_filename,omitempty"`
	EnableMetadataYAML   bool          `yaml:"enable_metadata_yaml,omitempty"`
	MetadataYAMLFilename string        `yaml:"metadata_yaml_filename,omitempty"`

	Extraction         ExtractionConfig `yaml:"extraction,omitempty"`
	HTTPClientSettings HTTPClientConfig `yaml:"http_client_settings,omitempty"`
}

// HTTPClientConfig holds settings for the shared HTTP client
type HTTPClientConfig struct {
	Timeout               time.Duration `yaml:"timeout,omitempty"`                 // Overall request timeout
	MaxIdleConns          int           `yaml:"max_idle_conns,omitempty"`          // Max total idle connections
	MaxIdleConnsPerHost   int           `yaml:"max_idle_conns_per_host,omitempty"` // Max idle connections per host
	IdleConnTimeout       time.Duration `yaml:"idle_conn_timeout,omitempty"`
	TLSHandshakeTimeout   time.Duration `yaml:"tls_handshake_timeout,omitempty"`
	ExpectContinueTimeout time.Duration `yaml:"expect_continue_timeout,omitempty"`
	ForceAttemptHTTP2     *bool         `yaml:"force_attempt_http2,omitempty"` // nil=default, true=force, false=disable
	DialerTimeout         time.Duration `yaml:"dialer_timeout,omitempty"`
	DialerKeepAlive       time.Duration `yaml:"dialer_keep_alive,omitempty"`
	MaxRedirects          int           `yaml:"max_redirects,omitempty"`
}

// LoadFromFile reads and parses a YAML config file. Validation is left to the caller.
func LoadFromFile(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read config '%s': %w", utils.ErrFilesystem, path, err)
	}

	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: parse config '%s': %w", utils.ErrConfigValidation, path, err)
	}
	return &cfg, nil
}

// EffectiveStateDir returns where frontier state lives
func (c *AppConfig) EffectiveStateDir() string {
	if c.StateDir != "" {
		return c.StateDir
	}
	return c.OutputDir
}

// ShouldFollowLinksInPass reports whether links discovered during a pass are processed in that same pass
func (c *AppConfig) ShouldFollowLinksInPass() bool {
	if c.FollowLinksInPass != nil {
		return *c.FollowLinksInPass
	}
	return true
}

// ShouldContinueDocIDs reports whether a resumed crawl continues numbering after the highest saved document
func (c *AppConfig) ShouldContinueDocIDs() bool {
	if c.ContinueDocIDs != nil {
		return *c.ContinueDocIDs
	}
	return true
}

// BadgerDBPath returns the directory of the badger-backed frontier for this domain
func (c *AppConfig) BadgerDBPath() string {
	return filepath.Join(c.EffectiveStateDir(), utils.SanitizePathComponent(c.Domain)+"_frontier_db")
}
