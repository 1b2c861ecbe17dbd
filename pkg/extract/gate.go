package extract

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"article-scraper/pkg/config"
)

// Gate rejection reasons, used as log fields
const (
	ReasonNotArticle      = "not_article"
	ReasonNoBody          = "no_body"
	ReasonTooShort        = "too_short"
	ReasonMissingTitle    = "missing_title"
	ReasonMissingDate     = "missing_date"
	ReasonMissingKeywords = "missing_keywords"
)

// article holds everything the gate extracted from an eligible page
type article struct {
	title     string
	date      string
	keywords  string
	body      string
	wordCount int
}

// Gate decides whether a parsed page is an article worth keeping
type Gate struct {
	cfg      config.ExtractionConfig
	minWords int
}

// NewGate creates a gate. A page passes only with strictly more than minWords body words.
func NewGate(cfg config.ExtractionConfig, minWords int) *Gate {
	return &Gate{cfg: cfg, minWords: minWords}
}

// Evaluate runs every check and metadata lookup. It returns the extracted article, or an empty
// reason on success and one of the Reason constants on rejection. Nothing partial is returned.
func (g *Gate) Evaluate(doc *goquery.Document) (*article, string) {
	// 1. Article marker
	pageType := metaContent(doc, "property", g.cfg.ArticleTypeProperty)
	if !strings.EqualFold(pageType, g.cfg.ArticleTypeValue) {
		return nil, ReasonNotArticle
	}

	// 2. Body container
	bodySel := doc.Find(g.cfg.BodySelector).First()
	if bodySel.Length() == 0 {
		return nil, ReasonNoBody
	}

	// 3. Word count on a copy so the document itself is left intact
	bodyCopy := bodySel.Clone()
	for _, strip := range g.cfg.StripSelectors {
		if strip = strings.TrimSpace(strip); strip != "" {
			bodyCopy.Find(strip).Remove()
		}
	}
	body := cleanText(bodyCopy.Text())
	wordCount := CountWords(body)
	if wordCount <= g.minWords {
		return nil, ReasonTooShort
	}

	// 4. Metadata, all required
	title := strings.TrimSpace(doc.Find(g.cfg.TitleSelector).First().Text())
	if title == "" {
		title = metaContent(doc, "property", "og:title")
	}
	if title == "" {
		return nil, ReasonMissingTitle
	}

	date := ""
	if g.cfg.DateSelector != "" {
		date = cleanText(doc.Find(g.cfg.DateSelector).First().Text())
	}
	if date == "" && g.cfg.DateMetaProperty != "" {
		date = metaContent(doc, "property", g.cfg.DateMetaProperty)
	}
	if date == "" {
		return nil, ReasonMissingDate
	}

	keywords := metaContent(doc, "name", g.cfg.KeywordsMetaName)
	if keywords == "" {
		return nil, ReasonMissingKeywords
	}

	return &article{
		title:     collapseSpaces(title),
		date:      collapseSpaces(date),
		keywords:  collapseSpaces(keywords),
		body:      body,
		wordCount: wordCount,
	}, ""
}

// CountWords returns the number of whitespace-separated tokens in text
func CountWords(text string) int {
	return len(strings.Fields(text))
}

// metaContent returns the trimmed content of the first meta[attr=value] tag
func metaContent(doc *goquery.Document, attr, value string) string {
	if value == "" {
		return ""
	}
	content, _ := doc.Find(fmt.Sprintf(`meta[%s=%q]`, attr, value)).First().Attr("content")
	return strings.TrimSpace(content)
}

// cleanText trims every line and drops blank ones, keeping paragraph breaks as single newlines
func cleanText(text string) string {
	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if line = strings.TrimSpace(line); line != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}

// collapseSpaces folds any whitespace run into one space so header fields stay on one line
func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
