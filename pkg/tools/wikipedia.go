package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"
)

// WikipediaTool looks up general knowledge through the MediaWiki API.
type WikipediaTool struct {
	endpoint string
	client   *http.Client
	topK     int
	maxChars int
}

// NewWikipedia creates a Wikipedia lookup tool.
func NewWikipedia(topK, maxChars int) *WikipediaTool {
	return &WikipediaTool{
		endpoint: "https://en.wikipedia.org/w/api.php",
		client:   &http.Client{Timeout: 10 * time.Second},
		topK:     topK,
		maxChars: maxChars,
	}
}

// NewWikipediaWithClient creates a Wikipedia tool against a custom endpoint
// using the supplied HTTP client. Used in tests.
func NewWikipediaWithClient(endpoint string, client *http.Client, topK, maxChars int) *WikipediaTool {
	return &WikipediaTool{endpoint: endpoint, client: client, topK: topK, maxChars: maxChars}
}

// Name returns the name of the tool
func (t *WikipediaTool) Name() string { return "wikipedia" }

// Description returns the description of the tool
func (t *WikipediaTool) Description() string {
	return "Searches Wikipedia for general knowledge and returns article summaries."
}

// Schema returns the argument schema of the tool
func (t *WikipediaTool) Schema() json.RawMessage { return querySchema }

// wikiResponse is the subset of the MediaWiki query response we consume.
type wikiResponse struct {
	Query struct {
		Pages map[string]struct {
			PageID  int    `json:"pageid"`
			Index   int    `json:"index"`
			Title   string `json:"title"`
			Extract string `json:"extract"`
		} `json:"pages"`
	} `json:"query"`
}

// Run searches Wikipedia and returns intro extracts of the top pages.
func (t *WikipediaTool) Run(ctx context.Context, args json.RawMessage) (string, error) {
	var a queryArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return "", err
	}
	if strings.TrimSpace(a.Query) == "" {
		return "", errors.New("query is empty")
	}

	params := url.Values{}
	params.Set("action", "query")
	params.Set("format", "json")
	params.Set("generator", "search")
	params.Set("gsrsearch", a.Query)
	params.Set("gsrlimit", fmt.Sprint(t.topK))
	params.Set("prop", "extracts")
	params.Set("exintro", "1")
	params.Set("explaintext", "1")
	params.Set("exlimit", "max")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "sleuth/1.0 (https://github.com/sleuth-ai/sleuth)")

	resp, err := t.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("wikipedia http %d", resp.StatusCode)
	}

	var wr wikiResponse
	if err := json.NewDecoder(resp.Body).Decode(&wr); err != nil {
		return "", err
	}
	if len(wr.Query.Pages) == 0 {
		return "No results found.", nil
	}

	// The pages map is keyed by page id; the search rank is the index field.
	type page struct {
		index   int
		title   string
		extract string
	}
	pages := make([]page, 0, len(wr.Query.Pages))
	for _, p := range wr.Query.Pages {
		pages = append(pages, page{index: p.Index, title: p.Title, extract: p.Extract})
	}
	sort.Slice(pages, func(i, j int) bool { return pages[i].index < pages[j].index })

	var b strings.Builder
	for i, p := range pages {
		if i >= t.topK {
			break
		}
		extract := p.extract
		if len(extract) > t.maxChars {
			extract = truncateRunes(extract, t.maxChars) + "..."
		}
		fmt.Fprintf(&b, "Page: %s\nSummary: %s\n\n", p.title, extract)
	}
	return strings.TrimSpace(b.String()), nil
}
