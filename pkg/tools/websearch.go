package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"
)

// ddgRateLimit enforces a global rate limit of 1 query per second across all
// WebSearchTool instances and goroutines.
var ddgRateLimit struct {
	mu   sync.Mutex
	last time.Time
}

// WebSearchTool searches the web through DuckDuckGo's HTML lite interface.
type WebSearchTool struct {
	endpoint string
	client   *http.Client
	topK     int
}

// NewWebSearch creates a web search tool with a modest timeout.
func NewWebSearch(topK int) *WebSearchTool {
	return &WebSearchTool{
		endpoint: "https://lite.duckduckgo.com/lite/",
		client:   &http.Client{Timeout: 15 * time.Second},
		topK:     topK,
	}
}

// NewWebSearchWithClient creates a web search tool against a custom endpoint
// using the supplied HTTP client. Used in tests.
func NewWebSearchWithClient(endpoint string, client *http.Client, topK int) *WebSearchTool {
	return &WebSearchTool{endpoint: endpoint, client: client, topK: topK}
}

// Name returns the name of the tool
func (t *WebSearchTool) Name() string { return "web_search" }

// Description returns the description of the tool
func (t *WebSearchTool) Description() string {
	return "Searches the web for current information. Returns result titles, URLs and snippets."
}

// Schema returns the argument schema of the tool
func (t *WebSearchTool) Schema() json.RawMessage { return querySchema }

// Run executes the search and formats the results as a numbered list.
func (t *WebSearchTool) Run(ctx context.Context, args json.RawMessage) (string, error) {
	var a queryArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return "", err
	}
	results, err := t.search(ctx, a.Query)
	if err != nil {
		return "", err
	}
	if len(results) == 0 {
		return "No results found.", nil
	}
	var b strings.Builder
	for i, r := range results {
		fmt.Fprintf(&b, "%d. %s\n   %s\n", i+1, r.Title, r.URL)
		if r.Snippet != "" {
			fmt.Fprintf(&b, "   %s\n", r.Snippet)
		}
	}
	return b.String(), nil
}

// searchResult is a single scraped result.
type searchResult struct {
	Title   string
	URL     string
	Snippet string
}

// search scrapes the DuckDuckGo lite HTML page for results.
func (t *WebSearchTool) search(ctx context.Context, query string) ([]searchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, errors.New("query is empty")
	}

	// Enforce global 1 QPS rate limit. The window is re-checked after every
	// re-lock so concurrent waiters cannot claim the same slot.
	ddgRateLimit.mu.Lock()
	for {
		wait := time.Until(ddgRateLimit.last.Add(time.Second))
		if wait <= 0 {
			break
		}
		ddgRateLimit.mu.Unlock()
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		ddgRateLimit.mu.Lock()
	}
	ddgRateLimit.last = time.Now()
	ddgRateLimit.mu.Unlock()

	formData := url.Values{}
	formData.Set("q", query)

	var resp *http.Response
	delay := 1 * time.Second
	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, strings.NewReader(formData.Encode()))
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		resp, err = t.client.Do(req)
		if err != nil {
			return nil, err
		}

		if resp.StatusCode != http.StatusTooManyRequests {
			break
		}
		resp.Body.Close()

		// Back off and retry on 429, doubling the delay each time up to 30 s.
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
		if delay < 30*time.Second {
			delay *= 2
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("web search http %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	return t.parseHTMLResults(string(body)), nil
}

var (
	// <a ... class='result-link' ... href='URL'>TITLE</a>, either attribute order
	ddgLinkPattern  = regexp.MustCompile(`<a[^>]*class=['"]result-link['"][^>]*href=['"]([^'"]+)['"][^>]*>([^<]+)</a>`)
	ddgLinkPattern2 = regexp.MustCompile(`<a[^>]*href=['"]([^'"]+)['"][^>]*class=['"]result-link['"][^>]*>([^<]+)</a>`)
	// <td class="result-snippet">SNIPPET</td>
	ddgSnippetPattern = regexp.MustCompile(`<td[^>]*class=['"]result-snippet['"][^>]*>([^<]+(?:<[^>]+>[^<]*</[^>]+>)*[^<]*)</td>`)
)

// parseHTMLResults extracts search results from the DuckDuckGo lite HTML.
// The lite page has a simple structure with result links and snippets.
func (t *WebSearchTool) parseHTMLResults(html string) []searchResult {
	var results []searchResult

	matches := ddgLinkPattern.FindAllStringSubmatch(html, -1)
	if len(matches) == 0 {
		matches = ddgLinkPattern2.FindAllStringSubmatch(html, -1)
	}
	snippetMatches := ddgSnippetPattern.FindAllStringSubmatch(html, -1)

	for i, match := range matches {
		if len(match) < 3 {
			continue
		}

		urlStr := strings.TrimSpace(match[1])
		title := cleanHTML(strings.TrimSpace(match[2]))

		snippet := ""
		if i < len(snippetMatches) && len(snippetMatches[i]) > 1 {
			snippet = cleanHTML(snippetMatches[i][1])
		}

		if urlStr == "" || title == "" {
			continue
		}

		results = append(results, searchResult{Title: title, URL: urlStr, Snippet: snippet})
		if len(results) >= t.topK {
			break
		}
	}

	// If the regex approach didn't match, fall back to scanning plain links.
	if len(results) == 0 {
		results = t.fallbackParse(html)
	}

	return results
}

var anyLinkPattern = regexp.MustCompile(`<a[^>]+href=['"]([^'"]+)['"][^>]*>([^<]+)</a>`)

// fallbackParse tries a simpler approach to extract links
func (t *WebSearchTool) fallbackParse(html string) []searchResult {
	var results []searchResult

	seen := make(map[string]bool)
	for _, match := range anyLinkPattern.FindAllStringSubmatch(html, -1) {
		if len(match) < 3 {
			continue
		}

		urlStr := strings.TrimSpace(match[1])
		title := cleanHTML(strings.TrimSpace(match[2]))

		// Skip DuckDuckGo internal links and navigation.
		if strings.Contains(urlStr, "duckduckgo.com") ||
			strings.HasPrefix(urlStr, "/") ||
			strings.HasPrefix(urlStr, "#") ||
			strings.HasPrefix(urlStr, "javascript:") {
			continue
		}
		if len(title) < 5 {
			continue
		}
		if seen[urlStr] {
			continue
		}
		seen[urlStr] = true

		results = append(results, searchResult{Title: title, URL: urlStr})
		if len(results) >= t.topK {
			break
		}
	}

	return results
}

var htmlTagPattern = regexp.MustCompile(`<[^>]+>`)

// cleanHTML removes HTML tags and decodes common entities
func cleanHTML(s string) string {
	s = htmlTagPattern.ReplaceAllString(s, "")

	s = strings.ReplaceAll(s, "&amp;", "&")
	s = strings.ReplaceAll(s, "&lt;", "<")
	s = strings.ReplaceAll(s, "&gt;", ">")
	s = strings.ReplaceAll(s, "&quot;", "\"")
	s = strings.ReplaceAll(s, "&#39;", "'")
	s = strings.ReplaceAll(s, "&nbsp;", " ")

	return strings.TrimSpace(s)
}
