package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"
)

const maxFetchBytes = 32 * 1024 // 32KB limit to avoid overwhelming LLM context

// FetchPageTool downloads a URL and returns its plain text. It lets the model
// read a full page when search snippets are insufficient.
type FetchPageTool struct {
	client *http.Client
}

// NewFetchPage creates a page fetcher with a modest timeout.
func NewFetchPage() *FetchPageTool {
	return &FetchPageTool{client: &http.Client{Timeout: 15 * time.Second}}
}

// NewFetchPageWithClient creates a page fetcher using the supplied HTTP client.
func NewFetchPageWithClient(client *http.Client) *FetchPageTool {
	return &FetchPageTool{client: client}
}

// Name returns the name of the tool
func (t *FetchPageTool) Name() string { return "fetch_page" }

// Description returns the description of the tool
func (t *FetchPageTool) Description() string {
	return "Downloads a web page by URL and returns its readable text. Use after a search to read a promising result in full."
}

// Schema returns the argument schema of the tool
func (t *FetchPageTool) Schema() json.RawMessage {
	return json.RawMessage(`{
	"type": "object",
	"properties": {
		"url": {"type": "string", "description": "The URL to fetch"}
	},
	"required": ["url"]
}`)
}

// Run downloads the URL content, strips HTML to plain text, and truncates.
func (t *FetchPageTool) Run(ctx context.Context, args json.RawMessage) (string, error) {
	var a struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(args, &a); err != nil {
		return "", err
	}
	trimmed := strings.TrimSpace(a.URL)
	if trimmed == "" {
		return "", errors.New("fetch url is empty")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, trimmed, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")

	resp, err := t.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch http %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	text := stripHTML(string(body))
	if len(text) > maxFetchBytes {
		text = truncateRunes(text, maxFetchBytes) + "\n[TRUNCATED]"
	}
	return text, nil
}

var (
	reScript     = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	reStyle      = regexp.MustCompile(`(?is)<style[^>]*>.*?</style>`)
	reNav        = regexp.MustCompile(`(?is)<nav[^>]*>.*?</nav>`)
	reHeader     = regexp.MustCompile(`(?is)<header[^>]*>.*?</header>`)
	reFooter     = regexp.MustCompile(`(?is)<footer[^>]*>.*?</footer>`)
	reWhitespace = regexp.MustCompile(`[ \t]+`)
	reBlankLines = regexp.MustCompile(`\n{3,}`)
)

// stripHTML removes scripts, styles, nav/header/footer, then all tags.
func stripHTML(html string) string {
	s := reScript.ReplaceAllString(html, "")
	s = reStyle.ReplaceAllString(s, "")
	s = reNav.ReplaceAllString(s, "")
	s = reHeader.ReplaceAllString(s, "")
	s = reFooter.ReplaceAllString(s, "")
	s = htmlTagPattern.ReplaceAllString(s, " ")
	s = reWhitespace.ReplaceAllString(s, " ")
	s = reBlankLines.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
