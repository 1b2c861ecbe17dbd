package extract

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"article-scraper/pkg/config"
	"article-scraper/pkg/fetch"
	"article-scraper/pkg/idgen"
	"article-scraper/pkg/parse"
	"article-scraper/pkg/utils"
)

const site = "http://example.com"

func testLogger() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return logrus.NewEntry(log)
}

// fakeFetcher serves canned HTML by URL; unknown URLs fail like a 404
type fakeFetcher struct {
	pages map[string]string
	calls atomic.Int32
}

func (f *fakeFetcher) Fetch(_ context.Context, pageURL string) (*fetch.Page, error) {
	f.calls.Add(1)
	html, ok := f.pages[pageURL]
	if !ok {
		return nil, fmt.Errorf("%w: %w: status 404 Not Found ", utils.ErrFetch, utils.ErrClientHTTPError)
	}
	parsed, _ := url.Parse(pageURL)
	return &fetch.Page{RequestURL: pageURL, FinalURL: parsed, StatusCode: 200, ContentType: "text/html", Body: []byte(html)}, nil
}

// pageDef describes a synthetic page
type pageDef struct {
	ogType   string
	words    int
	title    string
	date     string
	keywords string
	links    []string
	noBody   bool
}

func articlePage(words int) pageDef {
	return pageDef{
		ogType:   "article",
		words:    words,
		title:    "Astronomers Spot a Rogue Planet",
		date:     "Monday, 3 April 2017",
		keywords: "space, planets, astronomy",
	}
}

func (s pageDef) html() string {
	var b strings.Builder
	b.WriteString("<html><head>")
	if s.title != "" {
		fmt.Fprintf(&b, "<title>%s</title>", s.title)
	}
	if s.ogType != "" {
		fmt.Fprintf(&b, `<meta property="og:type" content="%s">`, s.ogType)
	}
	if s.keywords != "" {
		fmt.Fprintf(&b, `<meta name="keywords" content="%s">`, s.keywords)
	}
	b.WriteString("</head><body>")
	if s.date != "" {
		fmt.Fprintf(&b, `<div class="author-name-date floatstyle">By Staff <span>%s</span></div>`, s.date)
	}
	for _, l := range s.links {
		fmt.Fprintf(&b, `<a href="%s">link</a>`, l)
	}
	if !s.noBody {
		b.WriteString(`<div class="article-fulltext"><p>`)
		b.WriteString(strings.TrimSpace(strings.Repeat("word ", s.words)))
		b.WriteString(`</p><script>var ignored = "a b c d e f";</script><a href="/inline">anchor text ignored</a></div>`)
	}
	b.WriteString("</body></html>")
	return b.String()
}

func goqueryDoc(html string) (*goquery.Document, error) {
	return goquery.NewDocumentFromReader(strings.NewReader(html))
}

func testConfig(t *testing.T) *config.AppConfig {
	t.Helper()
	cfg := &config.AppConfig{BaseURL: site + "/"}
	_, err := cfg.Validate()
	require.NoError(t, err)
	return cfg
}

func newTestPipeline(t *testing.T, pages map[string]string, admit AdmitFunc) (*Pipeline, *fakeFetcher, *idgen.Allocator) {
	t.Helper()
	cfg := testConfig(t)
	scope, err := parse.NewScope(cfg.Domain, nil)
	require.NoError(t, err)
	ff := &fakeFetcher{pages: pages}
	ids := idgen.NewAllocator(0)
	return NewPipeline(ff, scope, cfg, ids, admit, testLogger()), ff, ids
}

func TestProcess_LinkDiscoveryScenario(t *testing.T) {
	a := pageDef{noBody: true, links: []string{"/b", "http://example.com/c#frag", "http://other.org/d", "mailto:x@example.com", "/b/"}}
	p, _, _ := newTestPipeline(t, map[string]string{site + "/a": a.html()}, nil)

	res := p.Process(context.Background(), site+"/a")
	assert.Equal(t, OutcomeLinksOnly, res.Outcome)
	assert.Equal(t, ReasonNotArticle, res.Reason)
	assert.Equal(t, []string{site + "/b", site + "/c"}, res.Links)
	assert.Nil(t, res.Document)
}

func TestProcess_EveryLinkIsOnDomain(t *testing.T) {
	pg := articlePage(200)
	pg.links = []string{"/x", "//cdn.example.com/y", "https://example.com:443/z", "http://EXAMPLE.com/w", "ftp://example.com/f"}
	p, _, _ := newTestPipeline(t, map[string]string{site + "/a": pg.html()}, nil)

	res := p.Process(context.Background(), site+"/a")
	require.NotEmpty(t, res.Links)
	for _, link := range res.Links {
		u, err := url.Parse(link)
		require.NoError(t, err)
		assert.Equal(t, "example.com", u.Host, link)
	}
	assert.Contains(t, res.Links, site+"/inline") // Links inside the body still count
}

func TestProcess_AcceptedArticle(t *testing.T) {
	p, _, ids := newTestPipeline(t, map[string]string{site + "/story": articlePage(200).html()}, nil)

	res := p.Process(context.Background(), site+"/story")
	require.Equal(t, OutcomeAccepted, res.Outcome)
	require.NotNil(t, res.Document)

	doc := res.Document
	assert.Equal(t, uint64(1), doc.ID)
	assert.Equal(t, ids.Last(), doc.ID)
	assert.Equal(t, site+"/story", doc.URL)
	assert.Equal(t, "Astronomers Spot a Rogue Planet", doc.Title)
	assert.Equal(t, "Monday, 3 April 2017", doc.PublishDate)
	assert.Equal(t, "space, planets, astronomy", doc.Keywords)
	assert.Equal(t, 200, doc.WordCount)
	assert.NotContains(t, doc.Body, "ignored")
}

func TestProcess_WordCountThreshold(t *testing.T) {
	p, _, ids := newTestPipeline(t, map[string]string{
		site + "/exact": articlePage(150).html(),
		site + "/over":  articlePage(151).html(),
	}, nil)

	res := p.Process(context.Background(), site+"/exact")
	assert.Equal(t, OutcomeLinksOnly, res.Outcome)
	assert.Equal(t, ReasonTooShort, res.Reason)
	assert.Nil(t, res.Document)
	assert.Equal(t, uint64(0), ids.Last(), "no ID consumed for a rejected page")

	res = p.Process(context.Background(), site+"/over")
	assert.Equal(t, OutcomeAccepted, res.Outcome)
	require.NotNil(t, res.Document)
	assert.Equal(t, 151, res.Document.WordCount)
}

func TestProcess_NoArticleMarkerNeverAccepted(t *testing.T) {
	pg := articlePage(5000)
	pg.ogType = "website"
	p, _, _ := newTestPipeline(t, map[string]string{site + "/long": pg.html()}, nil)

	res := p.Process(context.Background(), site+"/long")
	assert.Equal(t, OutcomeLinksOnly, res.Outcome)
	assert.Equal(t, ReasonNotArticle, res.Reason)
	assert.Nil(t, res.Document)
}

func TestProcess_MissingMetadataIsAllOrNothing(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*pageDef)
		reason string
	}{
		{"NoBody", func(s *pageDef) { s.noBody = true }, ReasonNoBody},
		{"NoTitle", func(s *pageDef) { s.title = "" }, ReasonMissingTitle},
		{"NoDate", func(s *pageDef) { s.date = "" }, ReasonMissingDate},
		{"NoKeywords", func(s *pageDef) { s.keywords = "" }, ReasonMissingKeywords},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pg := articlePage(300)
			tt.mutate(&pg)
			p, _, ids := newTestPipeline(t, map[string]string{site + "/p": pg.html()}, nil)

			res := p.Process(context.Background(), site+"/p")
			assert.Equal(t, OutcomeLinksOnly, res.Outcome)
			assert.Equal(t, tt.reason, res.Reason)
			assert.Nil(t, res.Document)
			assert.Equal(t, uint64(0), ids.Last())
		})
	}
}

func TestProcess_FetchFailureYieldsEmptyResult(t *testing.T) {
	p, _, _ := newTestPipeline(t, map[string]string{}, nil)

	res := p.Process(context.Background(), site+"/missing")
	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.Equal(t, "HTTP_404", res.Reason)
	assert.Empty(t, res.Links)
	assert.Nil(t, res.Document)
}

func TestProcess_AdmissionRejectsWhenFull(t *testing.T) {
	var admitted atomic.Int32
	admit := func() bool { return admitted.Add(1) <= 1 }
	p, _, ids := newTestPipeline(t, map[string]string{
		site + "/one": articlePage(200).html(),
		site + "/two": articlePage(200).html(),
	}, admit)

	first := p.Process(context.Background(), site+"/one")
	second := p.Process(context.Background(), site+"/two")

	assert.Equal(t, OutcomeAccepted, first.Outcome)
	assert.Equal(t, OutcomeCapped, second.Outcome)
	assert.Nil(t, second.Document)
	assert.Equal(t, uint64(1), ids.Last())
}

func TestGate_MetaFallbacks(t *testing.T) {
	html := `<html><head>
<meta property="og:type" content="Article">
<meta property="og:title" content="Fallback Title">
<meta property="article:published_time" content="2017-04-03T10:00:00Z">
<meta name="keywords" content="k1,k2">
</head><body><div class="article-fulltext">` + strings.Repeat("w ", 160) + `</div></body></html>`
	doc, err := goqueryDoc(html)
	require.NoError(t, err)

	cfg := testConfig(t)
	art, reason := NewGate(cfg.Extraction, cfg.MinBodyWords).Evaluate(doc)
	require.Empty(t, reason)
	assert.Equal(t, "Fallback Title", art.title)
	assert.Equal(t, "2017-04-03T10:00:00Z", art.date)
	assert.Equal(t, 160, art.wordCount)
}

func TestCountWords(t *testing.T) {
	assert.Equal(t, 0, CountWords(""))
	assert.Equal(t, 0, CountWords("  \n\t "))
	assert.Equal(t, 3, CountWords(" one\ttwo\n three "))
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "accepted", OutcomeAccepted.String())
	assert.Equal(t, "capped", OutcomeCapped.String())
	assert.Equal(t, "outcome(9)", Outcome(9).String())
}
