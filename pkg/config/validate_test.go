package config

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"article-scraper/pkg/utils"
)

func TestAppConfig_Validate_Defaults(t *testing.T) {
	cfg := AppConfig{BaseURL: "http://www.sciencealert.com/"}
	warnings, err := cfg.Validate()

	require.NoError(t, err)
	assert.NotEmpty(t, warnings)

	assert.Equal(t, "www.sciencealert.com", cfg.Domain)
	assert.Equal(t, "./www.sciencealert.com", cfg.OutputDir)
	assert.Equal(t, cfg.OutputDir, cfg.EffectiveStateDir())
	assert.Equal(t, 150, cfg.MinBodyWords)
	assert.Equal(t, 10, cfg.NumWorkers)
	assert.Equal(t, 10, cfg.MaxRequests)
	assert.Equal(t, 0, cfg.MaxCorpusSize)
	assert.Equal(t, DefaultUserAgent, cfg.UserAgent)
	assert.Equal(t, FrontierBackendFile, cfg.FrontierBackend)
	assert.Equal(t, uint(100000), cfg.BloomExpectedURLs)
	assert.Equal(t, 0.01, cfg.BloomFalsePositive)
	assert.Equal(t, 30*time.Second, cfg.ProgressInterval)
	assert.Equal(t, 30*time.Second, cfg.SemaphoreTimeout)
	assert.True(t, cfg.ShouldFollowLinksInPass())
	assert.True(t, cfg.ShouldContinueDocIDs())

	// Extraction defaults
	assert.Equal(t, "og:type", cfg.Extraction.ArticleTypeProperty)
	assert.Equal(t, "article", cfg.Extraction.ArticleTypeValue)
	assert.Equal(t, "div.article-fulltext", cfg.Extraction.BodySelector)
	assert.Equal(t, []string{"script", "style", "a"}, cfg.Extraction.StripSelectors)
	assert.Equal(t, "div.author-name-date span", cfg.Extraction.DateSelector)
	assert.Equal(t, "keywords", cfg.Extraction.KeywordsMetaName)

	// HTTP client defaults
	assert.Equal(t, 45*time.Second, cfg.HTTPClientSettings.Timeout)
	assert.Equal(t, 100, cfg.HTTPClientSettings.MaxIdleConns)
	assert.Equal(t, 10, cfg.HTTPClientSettings.MaxIdleConnsPerHost)
	assert.Equal(t, 10, cfg.HTTPClientSettings.MaxRedirects)
}

func TestAppConfig_Validate_RequiresBaseURL(t *testing.T) {
	cfg := AppConfig{}
	_, err := cfg.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, utils.ErrConfigValidation)
}

func TestAppConfig_Validate_RejectsBadBaseURL(t *testing.T) {
	tests := []struct {
		name    string
		baseURL string
	}{
		{"relative", "/just/a/path"},
		{"ftp scheme", "ftp://example.com/"},
		{"garbage", "::not a url"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := AppConfig{BaseURL: tt.baseURL}
			_, err := cfg.Validate()
			assert.ErrorIs(t, err, utils.ErrConfigValidation)
		})
	}
}

func TestAppConfig_Validate_DomainMismatch(t *testing.T) {
	cfg := AppConfig{BaseURL: "http://www.sciencealert.com/", Domain: "example.com"}
	_, err := cfg.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, utils.ErrConfigValidation)
	assert.Contains(t, err.Error(), "does not match domain")
}

func TestAppConfig_Validate_DomainCaseInsensitive(t *testing.T) {
	cfg := AppConfig{BaseURL: "http://WWW.Example.com/", Domain: "www.EXAMPLE.com"}
	_, err := cfg.Validate()
	require.NoError(t, err)
	assert.Equal(t, "www.example.com", cfg.Domain)
}

func TestAppConfig_Validate_FrontierBackend(t *testing.T) {
	cfg := AppConfig{BaseURL: "http://example.com/", FrontierBackend: "badger"}
	_, err := cfg.Validate()
	require.NoError(t, err)
	assert.Equal(t, FrontierBackendBadger, cfg.FrontierBackend)

	bad := AppConfig{BaseURL: "http://example.com/", FrontierBackend: "redis"}
	_, err = bad.Validate()
	assert.ErrorIs(t, err, utils.ErrConfigValidation)
}

func TestAppConfig_Validate_InvalidExcludePattern(t *testing.T) {
	cfg := AppConfig{BaseURL: "http://example.com/", ExcludePathPatterns: []string{"[unclosed"}}
	_, err := cfg.Validate()
	assert.ErrorIs(t, err, utils.ErrConfigValidation)
}

func TestAppConfig_Validate_NegativeValues(t *testing.T) {
	cfg := AppConfig{
		BaseURL:            "http://example.com/",
		MaxCorpusSize:      -1,
		MaxPasses:          -2,
		PersistInterval:    -time.Second,
		PerPageTimeout:     -time.Second,
		GlobalCrawlTimeout: -time.Second,
		MaxRetries:         -1,
		MaxPageSizeBytes:   -5,
	}
	warnings, err := cfg.Validate()
	require.NoError(t, err)

	assert.Equal(t, 0, cfg.MaxCorpusSize)
	assert.Equal(t, 0, cfg.MaxPasses)
	assert.Equal(t, time.Duration(0), cfg.PersistInterval)
	assert.Equal(t, time.Duration(0), cfg.PerPageTimeout)
	assert.Equal(t, time.Duration(0), cfg.GlobalCrawlTimeout)
	assert.Equal(t, 0, cfg.MaxRetries)
	assert.Equal(t, int64(0), cfg.MaxPageSizeBytes)

	joined := strings.Join(warnings, "\n")
	assert.Contains(t, joined, "max_corpus_size")
	assert.Contains(t, joined, "max_retries")
}

func TestAppConfig_Validate_RetryDelays(t *testing.T) {
	cfg := AppConfig{
		BaseURL:           "http://example.com/",
		MaxRetries:        2,
		InitialRetryDelay: 20 * time.Second,
		MaxRetryDelay:     5 * time.Second,
	}
	warnings, err := cfg.Validate()
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, cfg.InitialRetryDelay)
	assert.Contains(t, strings.Join(warnings, "\n"), "initial_retry_delay")
}

func TestAppConfig_Validate_OutputFilenames(t *testing.T) {
	cfg := AppConfig{BaseURL: "http://example.com/", EnableOutputMapping: true, EnableMetadataYAML: true}
	_, err := cfg.Validate()
	require.NoError(t, err)
	assert.Equal(t, "url_to_file_map.tsv", cfg.OutputMappingFile)
	assert.Equal(t, "metadata.yaml", cfg.MetadataYAMLFilename)
}

func TestAppConfig_Validate_KeepsExplicitStripSelectors(t *testing.T) {
	cfg := AppConfig{
		BaseURL:    "http://example.com/",
		Extraction: ExtractionConfig{StripSelectors: []string{}},
	}
	_, err := cfg.Validate()
	require.NoError(t, err)
	assert.Empty(t, cfg.Extraction.StripSelectors)
}
