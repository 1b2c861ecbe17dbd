package extract

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"

	"article-scraper/pkg/config"
	"article-scraper/pkg/fetch"
	"article-scraper/pkg/idgen"
	"article-scraper/pkg/models"
	"article-scraper/pkg/parse"
	"article-scraper/pkg/utils"
)

// Outcome classifies what processing a URL produced
type Outcome int

const (
	OutcomeFailed    Outcome = iota // Fetch or parse failed; no links, no document
	OutcomeLinksOnly                // Page parsed but did not pass the gate
	OutcomeAccepted                 // Page passed the gate and received a document ID
	OutcomeCapped                   // Page passed the gate but the corpus is full
)

func (o Outcome) String() string {
	switch o {
	case OutcomeFailed:
		return "failed"
	case OutcomeLinksOnly:
		return "links_only"
	case OutcomeAccepted:
		return "accepted"
	case OutcomeCapped:
		return "capped"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Result is the output of processing one URL. Links are set whenever the page parsed.
// Document is set only for OutcomeAccepted.
type Result struct {
	Links    []string
	Document *models.Document
	Outcome  Outcome
	Reason   string // Error category or gate rejection reason
}

// AdmitFunc reserves room in the corpus for one more document. Returning false rejects it.
type AdmitFunc func() bool

// Pipeline fetches a page, discovers its links and classifies it as an article or not
type Pipeline struct {
	fetcher fetch.PageFetcher
	scope   *parse.Scope
	gate    *Gate
	ids     *idgen.Allocator
	admit   AdmitFunc
	log     *logrus.Entry
}

// NewPipeline wires the pipeline. A nil admit accepts every eligible page.
func NewPipeline(fetcher fetch.PageFetcher, scope *parse.Scope, cfg *config.AppConfig, ids *idgen.Allocator, admit AdmitFunc, log *logrus.Entry) *Pipeline {
	return &Pipeline{
		fetcher: fetcher,
		scope:   scope,
		gate:    NewGate(cfg.Extraction, cfg.MinBodyWords),
		ids:     ids,
		admit:   admit,
		log:     log,
	}
}

// Process runs fetch, link discovery, gate and ID assignment for pageURL.
// It never returns an error: failures are logged with their category and reported through Outcome.
func (p *Pipeline) Process(ctx context.Context, pageURL string) Result {
	taskLog := p.log.WithField("url", pageURL)
	startTime := time.Now()

	page, err := p.fetcher.Fetch(ctx, pageURL)
	if err != nil {
		category := utils.CategorizeError(err)
		taskLog.WithFields(logrus.Fields{"category": category, "duration": time.Since(startTime).String()}).Warnf("Fetch failed: %v", err)
		return Result{Outcome: OutcomeFailed, Reason: category}
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.Body))
	if err != nil {
		parseErr := fmt.Errorf("%w: HTML from '%s': %w", utils.ErrParse, pageURL, err)
		category := utils.CategorizeError(parseErr)
		taskLog.WithField("category", category).Warn(parseErr)
		return Result{Outcome: OutcomeFailed, Reason: category}
	}

	result := Result{Links: ExtractLinks(doc, page.FinalURL, p.scope, taskLog)}

	art, reason := p.gate.Evaluate(doc)
	if art == nil {
		result.Outcome = OutcomeLinksOnly
		result.Reason = reason
		taskLog.WithFields(logrus.Fields{"reason": reason, "links": len(result.Links)}).Debug("Page not accepted")
		return result
	}

	if p.admit != nil && !p.admit() {
		result.Outcome = OutcomeCapped
		result.Reason = "corpus_full"
		taskLog.Debug("Eligible article dropped, corpus is full")
		return result
	}

	result.Document = &models.Document{
		ID:          p.ids.Next(),
		URL:         pageURL,
		Title:       art.title,
		Keywords:    art.keywords,
		PublishDate: art.date,
		Body:        art.body,
		WordCount:   art.wordCount,
	}
	result.Outcome = OutcomeAccepted
	taskLog.WithFields(logrus.Fields{
		"doc_id":     result.Document.ID,
		"word_count": art.wordCount,
		"duration":   time.Since(startTime).String(),
	}).Info("Article accepted")
	return result
}
