package headless

import (
	"net/http"
	"testing"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/xfix/internal/fetcher"
)

func TestNewChromedpValidation(t *testing.T) {
	t.Parallel()

	_, err := NewChromedp(Config{NavigationTimeout: -1})
	require.Error(t, err)

	f, err := NewChromedp(Config{})
	require.NoError(t, err)
	t.Cleanup(f.Close)
	require.Equal(t, fetcher.BrowserUserAgent, f.cfg.UserAgent)
	require.Equal(t, time.Second, f.cfg.Settle)
	require.Equal(t, "headless", f.Name())
}

func TestFetcherNavTimeoutDefault(t *testing.T) {
	t.Parallel()

	f := &Fetcher{}
	require.Equal(t, 45*time.Second, f.navTimeout())
	f.cfg.NavigationTimeout = time.Second
	require.Equal(t, time.Second, f.navTimeout())
}

func TestResponseMetaTracksDocumentStatus(t *testing.T) {
	t.Parallel()

	meta := newResponseMeta()
	require.Equal(t, http.StatusOK, meta.statusOrOK())

	meta.captureEvent(&network.EventResponseReceived{
		Type:     network.ResourceTypeScript,
		Response: &network.Response{Status: 500},
	})
	require.Equal(t, http.StatusOK, meta.statusOrOK())

	meta.captureEvent(&network.EventResponseReceived{
		Type:     network.ResourceTypeDocument,
		Response: &network.Response{Status: 404, URL: "https://x.com/a/status/1"},
	})
	require.Equal(t, http.StatusNotFound, meta.statusOrOK())
}
