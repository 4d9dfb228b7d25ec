package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smhanov/sift"
)

func TestMain(m *testing.M) {
	firstBackoff = time.Millisecond
	ddgRateLimit.interval = 0
	os.Exit(m.Run())
}

func TestSerperSearch(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "secret", r.Header.Get("X-API-KEY"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		fmt.Fprint(w, `{"organic":[
			{"title":"France","snippet":"Paris is the capital...","link":"https://x.test"},
			{"title":"Paris","snippet":"City","link":"https://y.test"},
			{"title":"Extra","snippet":"","link":"https://z.test"}]}`)
	}))
	defer srv.Close()

	s := NewSerper("secret")
	s.Endpoint = srv.URL
	results, err := s.Search(context.Background(), "capital of France", 2)
	require.NoError(t, err)
	assert.Equal(t, []sift.SearchResult{
		{Title: "France", Snippet: "Paris is the capital...", Link: "https://x.test"},
		{Title: "Paris", Snippet: "City", Link: "https://y.test"},
	}, results)
	assert.Equal(t, map[string]any{"q": "capital of France", "num": 2.0}, got)
}

func TestSerperErrors(t *testing.T) {
	_, err := NewSerper(" ").Search(context.Background(), "q", 5)
	assert.True(t, errors.Is(err, sift.ErrConfiguration))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusForbidden)
	}))
	defer srv.Close()

	s := NewSerper("secret")
	s.Endpoint = srv.URL
	_, err = s.Search(context.Background(), "q", 5)
	require.Error(t, err)
	assert.True(t, errors.Is(err, sift.ErrProviderUnavailable))
	var perr *sift.ProviderError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, http.StatusForbidden, perr.StatusCode)
	assert.Contains(t, err.Error(), "quota exceeded")
}

func TestRateLimitRetryIsBounded(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	s := NewSerper("secret")
	s.Endpoint = srv.URL
	_, err := s.Search(context.Background(), "q", 5)
	assert.True(t, errors.Is(err, sift.ErrProviderUnavailable))
	assert.Equal(t, int32(maxRateLimitRetries+1), atomic.LoadInt32(&calls))
}

func TestRateLimitRetrySucceeds(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, `{"results":[{"title":"T","url":"https://t.test","content":"C"}]}`)
	}))
	defer srv.Close()

	tv := NewTavily("key", "")
	tv.Endpoint = srv.URL
	assert.Equal(t, "basic", tv.Depth)
	results, err := tv.Search(context.Background(), "q", 5)
	require.NoError(t, err)
	assert.Equal(t, []sift.SearchResult{{Title: "T", Link: "https://t.test", Snippet: "C"}}, results)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestTavilyRequest(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		fmt.Fprint(w, `{"results":[]}`)
	}))
	defer srv.Close()

	tv := NewTavily("key", "advanced")
	tv.Endpoint = srv.URL
	results, err := tv.Search(context.Background(), "q", 0)
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Equal(t, "advanced", got["search_depth"])
	assert.Equal(t, float64(DefaultMaxResults), got["max_results"])

	_, err = NewTavily("", "").Search(context.Background(), "q", 5)
	assert.True(t, errors.Is(err, sift.ErrConfiguration))
}

func TestBraveSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "brave-test-key", r.Header.Get("X-Subscription-Token"))
		assert.Equal(t, "capital of France", r.URL.Query().Get("q"))
		assert.Equal(t, "1", r.URL.Query().Get("count"))
		w.Header().Set("X-RateLimit-Remaining", "5, 1000")
		fmt.Fprint(w, `{"web":{"results":[
			{"title":"France","url":"https://x.test","description":"Paris"},
			{"title":"Other","url":"https://y.test","description":"More"}]}}`)
	}))
	defer srv.Close()

	b := NewBrave("brave-test-key")
	b.Endpoint = srv.URL
	results, err := b.Search(context.Background(), "capital of France", 1)
	require.NoError(t, err)
	assert.Equal(t, []sift.SearchResult{{Title: "France", Link: "https://x.test", Snippet: "Paris"}}, results)

	_, err = NewBrave("").Search(context.Background(), "q", 5)
	assert.True(t, errors.Is(err, sift.ErrConfiguration))
}

func TestBraveDelays(t *testing.T) {
	h := http.Header{}
	assert.Equal(t, time.Second, braveRetryDelay(h))
	h.Set("X-RateLimit-Reset", "3, 1419704")
	assert.Equal(t, 3*time.Second, braveRetryDelay(h))

	h = http.Header{}
	assert.Equal(t, time.Second, braveNextDelay(h))
	h.Set("X-RateLimit-Remaining", "0, 100")
	assert.Equal(t, time.Second, braveNextDelay(h))
	h.Set("X-RateLimit-Remaining", "2, 100")
	assert.Equal(t, time.Duration(0), braveNextDelay(h))
}

func TestBraveGateHonoursContext(t *testing.T) {
	g := &braveKeyGate{readyAt: time.Now().Add(time.Hour)}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.True(t, errors.Is(g.waitAndLock(ctx), context.DeadlineExceeded))
}

const litePage = `<html><body><table>
<tr><td>1.</td><td><a rel="nofollow" href="//duckduckgo.com/l/?uddg=https%3A%2F%2Fx.test%2Fparis&amp;rut=abc" class='result-link'>Paris &amp; France</a></td></tr>
<tr><td></td><td class='result-snippet'>Paris is the   capital of <b>France</b>.</td></tr>
<tr><td>2.</td><td><a rel="nofollow" href="https://y.test/" class='result-link'>Second result</a></td></tr>
<tr><td></td><td class='result-snippet'>Another snippet</td></tr>
<tr><td>3.</td><td><a rel="nofollow" href="https://z.test/" class='result-link'>Third result</a></td></tr>
<tr><td></td><td class='result-snippet'>Third snippet</td></tr>
</table></body></html>`

func TestParseLiteResults(t *testing.T) {
	results, err := parseLiteResults(strings.NewReader(litePage), 2)
	require.NoError(t, err)
	assert.Equal(t, []sift.SearchResult{
		{Title: "Paris & France", Link: "https://x.test/paris", Snippet: "Paris is the capital of France."},
		{Title: "Second result", Link: "https://y.test/", Snippet: "Another snippet"},
	}, results)
}

func TestParseLiteFallback(t *testing.T) {
	page := `<html><body>
<a href="/settings">Settings page</a>
<a href="https://duckduckgo.com/about">About DuckDuckGo</a>
<a href="https://a.test/one">First external</a>
<a href="https://a.test/one">First external again</a>
<a href="https://b.test/">ok</a>
<a href="https://c.test/">Second external</a>
</body></html>`
	results, err := parseLiteResults(strings.NewReader(page), 5)
	require.NoError(t, err)
	assert.Equal(t, []sift.SearchResult{
		{Title: "First external", Link: "https://a.test/one"},
		{Title: "Second external", Link: "https://c.test/"},
	}, results)
}

func TestDuckDuckGoSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "capital of France", r.PostForm.Get("q"))
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		io.WriteString(w, litePage)
	}))
	defer srv.Close()

	d := NewDuckDuckGo()
	d.Endpoint = srv.URL
	results, err := d.Search(context.Background(), "capital of France", 5)
	require.NoError(t, err)
	assert.Len(t, results, 3)

	_, err = d.Search(context.Background(), "  ", 5)
	assert.Error(t, err)
}

func TestDuckDuckGoGateHonoursContext(t *testing.T) {
	ddgRateLimit.mu.Lock()
	ddgRateLimit.interval = time.Hour
	ddgRateLimit.last = time.Time{}
	ddgRateLimit.mu.Unlock()
	defer func() {
		ddgRateLimit.mu.Lock()
		ddgRateLimit.interval = 0
		ddgRateLimit.last = time.Time{}
		ddgRateLimit.mu.Unlock()
	}()

	require.NoError(t, ddgWait(context.Background()))

	// A patient caller waits for its slot while an impatient one gives up.
	patient, cancelPatient := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ddgWait(patient) }()
	time.Sleep(10 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	start := time.Now()
	assert.True(t, errors.Is(ddgWait(ctx), context.DeadlineExceeded))
	assert.Less(t, time.Since(start), time.Second)

	cancelPatient()
	assert.True(t, errors.Is(<-done, context.Canceled))
}

func TestSearchHonoursCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	s := NewSerper("secret")
	s.Endpoint = srv.URL
	_, err := s.Search(ctx, "q", 5)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestNilClientUsesDefault(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Subscription-Token") != "" {
			fmt.Fprint(w, `{"web":{"results":[{"title":"B","url":"https://b.test","description":"b"}]}}`)
			return
		}
		fmt.Fprint(w, `{"organic":[{"title":"S","snippet":"s","link":"https://s.test"}]}`)
	}))
	defer srv.Close()

	s := NewSerperWithClient("secret", nil)
	require.NotNil(t, s.client)
	assert.Equal(t, defaultTimeout, s.client.Timeout)
	s.Endpoint = srv.URL
	results, err := s.Search(context.Background(), "q", 5)
	require.NoError(t, err)
	assert.Len(t, results, 1)

	results, err = (&Serper{APIKey: "secret", Endpoint: srv.URL}).Search(context.Background(), "q", 5)
	require.NoError(t, err)
	assert.Len(t, results, 1)

	results, err = (&Brave{APIKey: "nil-client-key", Endpoint: srv.URL}).Search(context.Background(), "q", 5)
	require.NoError(t, err)
	assert.Equal(t, []sift.SearchResult{{Title: "B", Link: "https://b.test", Snippet: "b"}}, results)
}
