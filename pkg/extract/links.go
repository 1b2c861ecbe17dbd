package extract

import (
	"net/url"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"

	"article-scraper/pkg/parse"
)

// ExtractLinks finds every a[href] in doc, resolves it against the page's final URL and keeps
// the ones inside scope. Results are normalized, deduplicated and sorted.
func ExtractLinks(doc *goquery.Document, finalURL *url.URL, scope *parse.Scope, taskLog *logrus.Entry) []string {
	found := make(map[string]struct{})

	doc.Find("a[href]").Each(func(index int, element *goquery.Selection) {
		href, exists := element.Attr("href")
		href = strings.TrimSpace(href)
		if !exists || href == "" || strings.HasPrefix(href, "#") {
			return // Skip empty and same-page anchors
		}

		// Resolve URL relative to the page's final URL
		linkURL, parseErr := finalURL.Parse(href)
		if parseErr != nil {
			taskLog.Debugf("Skipping invalid link href '%s': %v", href, parseErr)
			return
		}

		// Scheme, domain and exclude patterns
		if scopeErr := scope.Check(linkURL); scopeErr != nil {
			return
		}

		found[parse.NormalizeURL(linkURL)] = struct{}{}
	})

	links := make([]string, 0, len(found))
	for link := range found {
		links = append(links, link)
	}
	sort.Strings(links)
	taskLog.Debugf("Found %d unique in-scope links", len(links))
	return links
}
