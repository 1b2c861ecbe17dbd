package models

import "time"

// WorkItem represents a URL and the link depth at which it was discovered
type WorkItem struct {
	URL   string
	Depth int
}

// Document is an accepted article. It is built only after every gate check and
// metadata lookup succeeded, and is never modified afterwards.
type Document struct {
	ID          uint64
	URL         string
	Title       string
	Keywords    string
	PublishDate string
	Body        string
	WordCount   int
}

// FrontierSnapshot is a point-in-time copy of the frontier sets.
// Queued and Visited are disjoint and sorted.
type FrontierSnapshot struct {
	Queued  []string
	Visited []string
}

// CrawlMetadata holds the manifest for one crawl run.
type CrawlMetadata struct {
	RunID          string             `yaml:"run_id"`
	Domain         string             `yaml:"domain"`
	BaseURL        string             `yaml:"base_url"`
	Resumed        bool               `yaml:"resumed"`
	CrawlStartTime time.Time          `yaml:"crawl_start_time"`
	CrawlEndTime   time.Time          `yaml:"crawl_end_time"`
	PagesProcessed int64              `yaml:"pages_processed"`
	DocumentsSaved int                `yaml:"documents_saved"`
	Documents      []DocumentMetadata `yaml:"documents"`
}

// DocumentMetadata holds manifest information for a single saved document.
type DocumentMetadata struct {
	ID            uint64    `yaml:"id"`
	URL           string    `yaml:"url"`
	LocalFilePath string    `yaml:"local_file_path"` // Relative to output_dir
	Title         string    `yaml:"title"`
	PublishDate   string    `yaml:"publish_date"`
	KeywordCount  int       `yaml:"keyword_count"`
	WordCount     int       `yaml:"word_count"`
	Depth         int       `yaml:"depth"`
	ProcessedAt   time.Time `yaml:"processed_at"`
	ContentHash   string    `yaml:"content_hash"` // SHA-256 of the body
	Fingerprint   string    `yaml:"fingerprint"`  // xxhash of the body
}
