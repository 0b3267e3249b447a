package tools

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ArxivTool searches academic papers through the arXiv Atom API.
type ArxivTool struct {
	endpoint string
	client   *http.Client
	topK     int
	maxChars int
}

// NewArxiv creates an arXiv paper lookup tool.
func NewArxiv(topK, maxChars int) *ArxivTool {
	return &ArxivTool{
		endpoint: "https://export.arxiv.org/api/query",
		client:   &http.Client{Timeout: 10 * time.Second},
		topK:     topK,
		maxChars: maxChars,
	}
}

// NewArxivWithClient creates an arXiv tool against a custom endpoint using
// the supplied HTTP client. Used in tests.
func NewArxivWithClient(endpoint string, client *http.Client, topK, maxChars int) *ArxivTool {
	return &ArxivTool{endpoint: endpoint, client: client, topK: topK, maxChars: maxChars}
}

// Name returns the name of the tool
func (t *ArxivTool) Name() string { return "arxiv" }

// Description returns the description of the tool
func (t *ArxivTool) Description() string {
	return "Searches arXiv for academic papers and returns titles, authors and abstracts."
}

// Schema returns the argument schema of the tool
func (t *ArxivTool) Schema() json.RawMessage { return querySchema }

// atomFeed is the subset of the arXiv Atom response we consume.
type atomFeed struct {
	Entries []atomEntry `xml:"entry"`
}

type atomEntry struct {
	Title     string `xml:"title"`
	Summary   string `xml:"summary"`
	Published string `xml:"published"`
	Authors   []struct {
		Name string `xml:"name"`
	} `xml:"author"`
	ID string `xml:"id"`
}

// Run queries the arXiv API and formats the matching papers.
func (t *ArxivTool) Run(ctx context.Context, args json.RawMessage) (string, error) {
	var a queryArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return "", err
	}
	if strings.TrimSpace(a.Query) == "" {
		return "", errors.New("query is empty")
	}

	params := url.Values{}
	params.Set("search_query", "all:"+a.Query)
	params.Set("start", "0")
	params.Set("max_results", fmt.Sprint(t.topK))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return "", err
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("arxiv http %d", resp.StatusCode)
	}

	var feed atomFeed
	if err := xml.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return "", err
	}
	if len(feed.Entries) == 0 {
		return "No results found.", nil
	}

	var b strings.Builder
	for i, e := range feed.Entries {
		if i >= t.topK {
			break
		}
		authors := make([]string, 0, len(e.Authors))
		for _, au := range e.Authors {
			authors = append(authors, au.Name)
		}
		summary := strings.Join(strings.Fields(e.Summary), " ")
		if len(summary) > t.maxChars {
			summary = truncateRunes(summary, t.maxChars) + "..."
		}
		published := e.Published
		if len(published) >= 10 {
			published = published[:10]
		}
		fmt.Fprintf(&b, "Title: %s\nAuthors: %s\nPublished: %s\nLink: %s\nAbstract: %s\n\n",
			strings.TrimSpace(e.Title), strings.Join(authors, ", "), published, e.ID, summary)
	}
	return strings.TrimSpace(b.String()), nil
}
