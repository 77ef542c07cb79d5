package fetcher

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/xfix/internal/xfix"
)

func TestExtractPostID(t *testing.T) {
	t.Parallel()

	id, ok := ExtractPostID("https://x.com/jane/status/1881234567890?s=20")
	require.True(t, ok)
	require.Equal(t, "1881234567890", id)

	_, ok = ExtractPostID("https://x.com/jane/status/")
	require.False(t, ok)
}

func TestExtractAuthor(t *testing.T) {
	t.Parallel()

	require.Equal(t, "jane", ExtractAuthor("https://x.com/jane/status/1"))
	require.Equal(t, "bob", ExtractAuthor("https://mobile.twitter.com/bob/status/2"))
	require.Empty(t, ExtractAuthor("https://example.com/jane/status/1"))
}

func TestCanonicalURL(t *testing.T) {
	t.Parallel()

	require.Equal(t, "https://twitter.com/jane/status/1", CanonicalURL("https://x.com/jane/status/1"))
	require.Equal(t, "https://twitter.com/jane/status/1", CanonicalURL("https://twitter.com/jane/status/1"))
}

func TestClassifyStatus(t *testing.T) {
	t.Parallel()

	require.Equal(t, xfix.KindNotFound, ClassifyStatus(http.StatusNotFound))
	require.Equal(t, xfix.KindRateLimited, ClassifyStatus(http.StatusTooManyRequests))
	require.Equal(t, xfix.KindRateLimited, ClassifyStatus(http.StatusForbidden))
	require.Equal(t, xfix.KindNetwork, ClassifyStatus(http.StatusBadGateway))
	require.Equal(t, xfix.KindNetwork, ClassifyStatus(http.StatusAccepted))
}
