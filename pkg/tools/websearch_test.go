package tools

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const liteResultsPage = `<html><body><table>
<tr><td><a rel="nofollow" class='result-link' href='https://example.com/fusion'>Fusion energy breakthrough</a></td></tr>
<tr><td class='result-snippet'>Scientists report net energy gain in a fusion reaction.</td></tr>
<tr><td><a rel="nofollow" class='result-link' href='https://example.org/tokamak'>Tokamak designs &amp; results</a></td></tr>
<tr><td class='result-snippet'>An overview of tokamak reactor designs.</td></tr>
<tr><td><a rel="nofollow" class='result-link' href='https://example.net/third'>Third result beyond top_k</a></td></tr>
</table></body></html>`

func TestWebSearch_Run(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		gotQuery = r.PostForm.Get("q")
		w.Write([]byte(liteResultsPage))
	}))
	defer srv.Close()

	tool := NewWebSearchWithClient(srv.URL, srv.Client(), 2)
	out, err := tool.Run(context.Background(), json.RawMessage(`{"query":"fusion energy"}`))
	require.NoError(t, err)
	require.Equal(t, "fusion energy", gotQuery)

	require.Contains(t, out, "1. Fusion energy breakthrough")
	require.Contains(t, out, "https://example.com/fusion")
	require.Contains(t, out, "net energy gain")
	require.Contains(t, out, "Tokamak designs & results")
	require.NotContains(t, out, "Third result")
}

func TestWebSearch_EmptyQuery(t *testing.T) {
	tool := NewWebSearch(2)
	_, err := tool.Run(context.Background(), json.RawMessage(`{"query":"  "}`))
	require.Error(t, err)
}

func TestWebSearch_NoResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html><body>nothing here</body></html>"))
	}))
	defer srv.Close()

	tool := NewWebSearchWithClient(srv.URL, srv.Client(), 2)
	out, err := tool.Run(context.Background(), json.RawMessage(`{"query":"gibberish"}`))
	require.NoError(t, err)
	require.Equal(t, "No results found.", out)
}

func TestWebSearch_RetriesAfter429(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(liteResultsPage))
	}))
	defer srv.Close()

	tool := NewWebSearchWithClient(srv.URL, srv.Client(), 2)
	out, err := tool.Run(context.Background(), json.RawMessage(`{"query":"fusion energy"}`))
	require.NoError(t, err)
	require.Equal(t, 2, calls)
	require.Contains(t, out, "1. Fusion energy breakthrough")
}

func TestWebSearch_ConcurrentCallsAreRateLimited(t *testing.T) {
	var mu sync.Mutex
	var hits []time.Time
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		hits = append(hits, time.Now())
		mu.Unlock()
		w.Write([]byte(liteResultsPage))
	}))
	defer srv.Close()

	tool := NewWebSearchWithClient(srv.URL, srv.Client(), 1)
	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := tool.Run(context.Background(), json.RawMessage(`{"query":"spacing"}`))
			require.NoError(t, err)
		}()
	}
	wg.Wait()

	require.Len(t, hits, 3)
	sort.Slice(hits, func(i, j int) bool { return hits[i].Before(hits[j]) })
	for i := 1; i < len(hits); i++ {
		require.GreaterOrEqual(t, hits[i].Sub(hits[i-1]), 900*time.Millisecond)
	}
}

func TestParseHTMLResults_FallbackLinks(t *testing.T) {
	page := `<html><body>
<a href="/internal">internal nav</a>
<a href="https://duckduckgo.com/about">about</a>
<a href="https://example.com/page">A promising external page</a>
<a href="https://example.com/page">A promising external page</a>
</body></html>`
	tool := NewWebSearchWithClient("http://unused", nil, 5)
	results := tool.parseHTMLResults(page)
	require.Len(t, results, 1)
	require.Equal(t, "https://example.com/page", results[0].URL)
	require.Equal(t, "A promising external page", results[0].Title)
}

func TestCleanHTML(t *testing.T) {
	require.Equal(t, "a & b", cleanHTML("  <b>a</b> &amp; b "))
	require.Equal(t, `say "hi"`, cleanHTML("say &quot;hi&quot;"))
}
