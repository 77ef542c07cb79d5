package collyfetcher

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/xfix/internal/fetcher"
	"github.com/JakeFAU/xfix/internal/xfix"
)

const pageHTML = `<html><head>
<meta property="og:title" content="Jane on X: &quot;ignored title text&quot;">
<meta property="og:description" content="Shipping the new scheduler today &amp; it is fast">
</head><body></body></html>`

func TestFetcherExtractsOpenGraph(t *testing.T) {
	t.Parallel()

	var gotUA, gotAccept string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.UserAgent()
		gotAccept = r.Header.Get("Accept")
		_, _ = w.Write([]byte(pageHTML))
	}))
	t.Cleanup(srv.Close)

	f := New(Config{Timeout: time.Second})
	content, err := f.Fetch(context.Background(), fetcher.Target{
		URL:    srv.URL + "/jane/status/123",
		PostID: "123",
		Author: "jane",
	})
	require.NoError(t, err)
	require.Equal(t, "jane", content.Author)
	require.Equal(t, "Shipping the new scheduler today & it is fast", content.Text)
	require.Equal(t, fetcher.BrowserUserAgent, gotUA)
	require.Contains(t, gotAccept, "text/html")
}

func TestFetcherFollowsRedirects(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/old", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/new", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/new", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(pageHTML))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	f := New(Config{Timeout: time.Second})
	_, err := f.Fetch(context.Background(), fetcher.Target{URL: srv.URL + "/old"})
	require.NoError(t, err)
}

func TestFetcherClassifiesStatus(t *testing.T) {
	t.Parallel()

	cases := map[int]xfix.FetchKind{
		http.StatusNotFound:            xfix.KindNotFound,
		http.StatusTooManyRequests:     xfix.KindRateLimited,
		http.StatusForbidden:           xfix.KindRateLimited,
		http.StatusInternalServerError: xfix.KindNetwork,
	}
	for code, want := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(code)
		}))
		f := New(Config{Timeout: time.Second})
		_, err := f.Fetch(context.Background(), fetcher.Target{URL: srv.URL + "/a/status/1"})
		srv.Close()
		require.Error(t, err)
		require.Equal(t, want, xfix.KindOf(err), "status %d", code)
	}
}

func TestFetcherRejectsShortMeta(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<meta property="og:description" content="X">`))
	}))
	t.Cleanup(srv.Close)

	f := New(Config{Timeout: time.Second})
	_, err := f.Fetch(context.Background(), fetcher.Target{URL: srv.URL})
	require.Equal(t, xfix.KindParse, xfix.KindOf(err))
}

func TestFetcherCanceledContext(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {
		<-release
	}))
	t.Cleanup(func() {
		close(release)
		srv.Close()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	f := New(Config{Timeout: 5 * time.Second})
	_, err := f.Fetch(ctx, fetcher.Target{URL: srv.URL})
	require.Error(t, err)
	require.Equal(t, xfix.KindNetwork, xfix.KindOf(err))
	require.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestConfigureCollectorHooks(t *testing.T) {
	t.Parallel()

	f := New(Config{})
	var result pageResult
	hooks := &stubHooks{}
	f.configureCollectorHooks(hooks, &result)
	require.NotNil(t, hooks.onRequest)
	require.NotNil(t, hooks.onResponse)
	require.NotNil(t, hooks.onError)

	collyReq := &colly.Request{Headers: &http.Header{}}
	hooks.onRequest(collyReq)
	require.Equal(t, "1", collyReq.Headers.Get("DNT"))

	hooks.onResponse(&colly.Response{StatusCode: http.StatusOK, Body: []byte("body")})
	require.Equal(t, http.StatusOK, result.status)
	require.Equal(t, "body", string(result.body))

	hooks.onError(nil, errors.New("boom"))
	require.EqualError(t, result.err, "boom")
}

type stubHooks struct {
	onRequest  colly.RequestCallback
	onResponse colly.ResponseCallback
	onError    colly.ErrorCallback
}

func (s *stubHooks) OnRequest(cb colly.RequestCallback) {
	s.onRequest = cb
}

func (s *stubHooks) OnResponse(cb colly.ResponseCallback) {
	s.onResponse = cb
}

func (s *stubHooks) OnError(cb colly.ErrorCallback) {
	s.onError = cb
}
