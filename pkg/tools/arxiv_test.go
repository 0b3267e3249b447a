package tools

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const arxivFeed = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <entry>
    <id>http://arxiv.org/abs/1706.03762v7</id>
    <published>2017-06-12T17:57:34Z</published>
    <title>Attention Is All You Need</title>
    <summary>The dominant sequence transduction models are based on complex
  recurrent or convolutional neural networks.</summary>
    <author><name>Ashish Vaswani</name></author>
    <author><name>Noam Shazeer</name></author>
  </entry>
  <entry>
    <id>http://arxiv.org/abs/1810.04805v2</id>
    <published>2018-10-11T00:50:01Z</published>
    <title>BERT: Pre-training of Deep Bidirectional Transformers</title>
    <summary>We introduce a new language representation model called BERT.</summary>
    <author><name>Jacob Devlin</name></author>
  </entry>
</feed>`

func TestArxiv_Run(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("search_query")
		require.Equal(t, "2", r.URL.Query().Get("max_results"))
		w.Header().Set("Content-Type", "application/atom+xml")
		w.Write([]byte(arxivFeed))
	}))
	defer srv.Close()

	tool := NewArxivWithClient(srv.URL, srv.Client(), 2, 1000)
	out, err := tool.Run(context.Background(), json.RawMessage(`{"query":"transformers"}`))
	require.NoError(t, err)
	require.Equal(t, "all:transformers", gotQuery)

	require.Contains(t, out, "Title: Attention Is All You Need")
	require.Contains(t, out, "Authors: Ashish Vaswani, Noam Shazeer")
	require.Contains(t, out, "Published: 2017-06-12")
	require.Contains(t, out, "Link: http://arxiv.org/abs/1706.03762v7")
	require.Contains(t, out, "Title: BERT")
	// Newlines inside the Atom summary collapse to single spaces.
	require.Contains(t, out, "based on complex recurrent or convolutional")
}

func TestArxiv_TruncatesSummaries(t *testing.T) {
	long := strings.Repeat("y", 400)
	feed := `<?xml version="1.0"?><feed xmlns="http://www.w3.org/2005/Atom"><entry>
<id>http://arxiv.org/abs/0000.0000</id><published>2020-01-01T00:00:00Z</published>
<title>Long paper</title><summary>` + long + `</summary>
<author><name>A. Author</name></author></entry></feed>`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(feed))
	}))
	defer srv.Close()

	tool := NewArxivWithClient(srv.URL, srv.Client(), 1, 50)
	out, err := tool.Run(context.Background(), json.RawMessage(`{"query":"long"}`))
	require.NoError(t, err)
	require.Contains(t, out, strings.Repeat("y", 50)+"...")
	require.NotContains(t, out, strings.Repeat("y", 51))
}

func TestArxiv_NoResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<?xml version="1.0"?><feed xmlns="http://www.w3.org/2005/Atom"></feed>`))
	}))
	defer srv.Close()

	tool := NewArxivWithClient(srv.URL, srv.Client(), 2, 1000)
	out, err := tool.Run(context.Background(), json.RawMessage(`{"query":"zxqvw"}`))
	require.NoError(t, err)
	require.Equal(t, "No results found.", out)
}

func TestArxiv_EmptyQuery(t *testing.T) {
	tool := NewArxiv(2, 1000)
	_, err := tool.Run(context.Background(), json.RawMessage(`{"query":""}`))
	require.Error(t, err)
}
