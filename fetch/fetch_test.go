package fetch

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smhanov/sift"
)

const page = `<!DOCTYPE html>
<html><head><title>Paris</title><style>body { color: red; }</style>
<script>var tracking = "ignore me";</script></head>
<body>
<header><a href="/">Home</a> | Menu</header>
<nav><ul><li>Link one</li><li>Link two</li></ul></nav>
<main>
<h1>Paris</h1>
<p>Paris is the   capital
 of France.</p>
<p>Population: 2.1&nbsp;million &amp; growing.</p>
<noscript>Enable JavaScript</noscript>
</main>
<footer>Copyright 2024</footer>
</body></html>`

func TestExtractors(t *testing.T) {
	for name, ex := range map[string]TextExtractor{
		"dom":   DOMExtractor{},
		"regex": RegexExtractor{},
	} {
		t.Run(name, func(t *testing.T) {
			text, err := ex.ExtractText([]byte(page))
			require.NoError(t, err)
			assert.Contains(t, text, "Paris is the capital of France.")
			assert.Contains(t, text, "Population: 2.1 million & growing.")
			for _, unwanted := range []string{"tracking", "color: red", "Menu", "Link one", "Copyright", "Enable JavaScript", "<p>"} {
				assert.NotContains(t, text, unwanted)
			}
			for _, line := range strings.Split(text, "\n") {
				assert.NotEmpty(t, line)
				assert.Equal(t, strings.TrimSpace(line), line)
			}
		})
	}
}

func TestDOMExtractorKeepsBlocksOnSeparateLines(t *testing.T) {
	text, err := DOMExtractor{}.ExtractText([]byte("<div>one</div><div>two</div><p>three <b>four</b></p>"))
	require.NoError(t, err)
	assert.Equal(t, "one\ntwo\nthree four", text)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "héll", Truncate("héllo", 4))
	assert.Equal(t, "héllo", Truncate("héllo", 10))
	assert.Equal(t, "", Truncate("héllo", 0))
	assert.Equal(t, "日本", Truncate("日本語", 2))
}

func TestHTTPFetcher(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/page":
			assert.NotEmpty(t, r.Header.Get("User-Agent"))
			fmt.Fprint(w, page)
		case "/moved":
			http.Redirect(w, r, "/page", http.StatusFound)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	f := NewHTTP()

	text, err := f.Fetch(context.Background(), srv.URL+"/page", 4000)
	require.NoError(t, err)
	assert.Contains(t, text, "Paris is the capital of France.")

	text, err = f.Fetch(context.Background(), " "+srv.URL+"/moved ", 5)
	require.NoError(t, err)
	assert.Equal(t, "Paris", text)

	_, err = f.Fetch(context.Background(), srv.URL+"/missing", 4000)
	require.Error(t, err)
	assert.True(t, errors.Is(err, sift.ErrProviderUnavailable))
	var perr *sift.ProviderError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, http.StatusNotFound, perr.StatusCode)

	_, err = f.Fetch(context.Background(), "  ", 4000)
	assert.Error(t, err)
}

func TestHTTPFetcherRegex(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<p>plain &lt;text&gt;</p>")
	}))
	defer srv.Close()

	text, err := NewHTTPWithClient(srv.Client(), RegexExtractor{}).Fetch(context.Background(), srv.URL, 0)
	require.NoError(t, err)
	assert.Equal(t, "plain <text>", text)
}

func TestHTTPFetcherUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewHTTP().Fetch(context.Background(), url, 100)
	assert.True(t, errors.Is(err, sift.ErrProviderUnavailable))
}

func TestPlaceholder(t *testing.T) {
	assert.Equal(t, "[ERROR fetching https://x.test: timeout]", Placeholder("https://x.test", errors.New("timeout")))
}

func TestNilClientUsesDefault(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<p>hello</p>")
	}))
	defer srv.Close()

	f := NewHTTPWithClient(nil, nil)
	require.NotNil(t, f.client)
	assert.Equal(t, DefaultTimeout, f.client.Timeout)

	text, err := f.Fetch(context.Background(), srv.URL, 100)
	require.NoError(t, err)
	assert.Equal(t, "hello", text)

	text, err = (&HTTPFetcher{}).Fetch(context.Background(), srv.URL, 100)
	require.NoError(t, err)
	assert.Equal(t, "hello", text)
}
