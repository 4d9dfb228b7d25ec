package search

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/pkg/errors"

	"github.com/smhanov/sift"
)

// DuckDuckGoEndpoint is the lite HTML interface, which is more stable for
// scraping than the main site.
const DuckDuckGoEndpoint = "https://lite.duckduckgo.com/lite/"

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// ddgRateLimit enforces a global rate limit of one query per interval across
// all DuckDuckGo instances and goroutines.
var ddgRateLimit = struct {
	mu       sync.Mutex
	last     time.Time
	interval time.Duration
}{interval: time.Second}

func ddgWait(ctx context.Context) error {
	// Reserve a slot under the lock; sleep outside it.
	ddgRateLimit.mu.Lock()
	slot := ddgRateLimit.last.Add(ddgRateLimit.interval)
	if now := time.Now(); slot.Before(now) {
		slot = now
	}
	ddgRateLimit.last = slot
	ddgRateLimit.mu.Unlock()

	wait := time.Until(slot)
	if wait <= 0 {
		return nil
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// DuckDuckGo implements a keyless searcher over DuckDuckGo's lite HTML page.
type DuckDuckGo struct {
	Endpoint string
	client   *http.Client
}

// NewDuckDuckGo creates a DuckDuckGo searcher with a modest timeout.
func NewDuckDuckGo() *DuckDuckGo {
	return NewDuckDuckGoWithClient(&http.Client{Timeout: 15 * time.Second})
}

// NewDuckDuckGoWithClient creates a DuckDuckGo searcher using the supplied HTTP client.
// This is useful for overriding the default timeout.
func NewDuckDuckGoWithClient(client *http.Client) *DuckDuckGo {
	return &DuckDuckGo{Endpoint: DuckDuckGoEndpoint, client: clientOrDefault(client)}
}

// Search posts the query to the lite page and parses the result table.
func (d *DuckDuckGo) Search(ctx context.Context, query string, maxResults int) ([]sift.SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, errors.New("duckduckgo: query is empty")
	}
	if err := ddgWait(ctx); err != nil {
		return nil, err
	}

	form := url.Values{}
	form.Set("q", query)

	resp, err := doWithBackoff(ctx, d.client, "duckduckgo", func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.Endpoint, strings.NewReader(form.Encode()))
		if err != nil {
			return nil, errors.Wrap(err, "duckduckgo: build request")
		}
		req.Header.Set("User-Agent", userAgent)
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return req, nil
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError("duckduckgo", resp)
	}
	return parseLiteResults(resp.Body, limit(maxResults))
}

// parseLiteResults reads result links and their snippets from the lite
// page. Links and snippets appear in the same order, one snippet per link.
// When the page has no result-link anchors, every external link is used.
func parseLiteResults(r io.Reader, n int) ([]sift.SearchResult, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, unavailable("duckduckgo", http.StatusOK, errors.Wrap(err, "parse page"))
	}

	snippets := doc.Find("td.result-snippet").Map(func(_ int, s *goquery.Selection) string {
		return collapseSpace(s.Text())
	})

	results := make([]sift.SearchResult, 0, n)
	doc.Find("a.result-link").EachWithBreak(func(i int, s *goquery.Selection) bool {
		href, _ := s.Attr("href")
		link := resolveRedirect(href)
		title := collapseSpace(s.Text())
		// Skip ad results or empty results
		if link == "" || title == "" || isDuckDuckGoLink(link) {
			return true
		}
		res := sift.SearchResult{Title: title, Link: link}
		if i < len(snippets) {
			res.Snippet = snippets[i]
		}
		results = append(results, res)
		return len(results) < n
	})
	if len(results) > 0 {
		return results, nil
	}
	return fallbackResults(doc, n), nil
}

// fallbackResults collects external links with a plausible title.
func fallbackResults(doc *goquery.Document, n int) []sift.SearchResult {
	results := make([]sift.SearchResult, 0, n)
	seen := make(map[string]bool)
	doc.Find("a[href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href, _ := s.Attr("href")
		link := resolveRedirect(href)
		title := collapseSpace(s.Text())
		if link == "" || isDuckDuckGoLink(link) || len(title) < 5 || seen[link] {
			return true
		}
		seen[link] = true
		results = append(results, sift.SearchResult{Title: title, Link: link})
		return len(results) < n
	})
	return results
}

// resolveRedirect unwraps DuckDuckGo's /l/?uddg= redirect links and drops
// relative or script links.
func resolveRedirect(href string) string {
	href = strings.TrimSpace(href)
	if strings.HasPrefix(href, "//") {
		href = "https:" + href
	}
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if target := u.Query().Get("uddg"); target != "" && strings.HasSuffix(u.Hostname(), "duckduckgo.com") {
		return target
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	return href
}

func isDuckDuckGoLink(link string) bool {
	u, err := url.Parse(link)
	return err != nil || strings.HasSuffix(u.Hostname(), "duckduckgo.com")
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
