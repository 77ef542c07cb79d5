package clipjot

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/xfix/internal/xfix"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := New(Config{BaseURL: srv.URL + "/", Token: "tok"}, srv.Client())
	require.NoError(t, err)
	return c
}

func TestNewValidation(t *testing.T) {
	t.Parallel()

	_, err := New(Config{Token: "t"}, nil)
	require.Error(t, err)
	_, err = New(Config{BaseURL: "http://x"}, nil)
	require.Error(t, err)
}

func TestSync(t *testing.T) {
	t.Parallel()

	var got map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/v1/bookmarks/sync", r.URL.Path)
		require.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = io.WriteString(w, `{"bookmarks":[{"id":7,"url":"https://x.com/a/status/1","title":null,
			"comment":null,"tags":[{"id":1,"name":"x"}],"client_name":"ext","created_at":"2026-01-01T00:00:00Z"}],
			"cursor":"c2","has_more":true,"waited":true}`)
	})

	cursor := "c1"
	page, err := c.Sync(context.Background(), &cursor, 50, true)
	require.NoError(t, err)
	require.Equal(t, map[string]any{"cursor": "c1", "limit": float64(50), "wait": true}, got)
	require.Len(t, page.Bookmarks, 1)
	b := page.Bookmarks[0]
	require.Equal(t, int64(7), b.ID)
	require.Nil(t, b.Title)
	require.Equal(t, []xfix.Tag{{ID: 1, Name: "x"}}, b.Tags)
	require.Equal(t, "c2", *page.Cursor)
	require.True(t, page.HasMore)
	require.True(t, page.Waited)
}

func TestSyncNilCursorSentAsNull(t *testing.T) {
	t.Parallel()

	var raw map[string]json.RawMessage
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&raw)
		_, _ = io.WriteString(w, `{"bookmarks":[],"cursor":null,"has_more":false}`)
	})
	page, err := c.Sync(context.Background(), nil, 10, false)
	require.NoError(t, err)
	require.Equal(t, "null", string(raw["cursor"]))
	require.Nil(t, page.Cursor)
	require.Empty(t, page.Bookmarks)
}

func TestSyncUnauthorized(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"error":"Invalid or expired token","code":"INVALID_TOKEN"}`)
	})
	_, err := c.Sync(context.Background(), nil, 10, false)
	require.True(t, errors.Is(err, ErrUnauthorized))
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, "INVALID_TOKEN", apiErr.Code)
}

func TestSyncTimeout(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {
		<-release
	}))
	t.Cleanup(func() {
		close(release)
		srv.Close()
	})
	c, err := New(Config{BaseURL: srv.URL, Token: "t", SyncTimeout: 30 * time.Millisecond}, srv.Client())
	require.NoError(t, err)
	_, err = c.Sync(context.Background(), nil, 1, true)
	require.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestEditOmitsNilFields(t *testing.T) {
	t.Parallel()

	var raw map[string]json.RawMessage
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/bookmarks/edit", r.URL.Path)
		_ = json.NewDecoder(r.Body).Decode(&raw)
		_, _ = io.WriteString(w, `{"id":7,"url":"u","title":"New","comment":null,"tags":[],"created_at":"t"}`)
	})

	title := "New"
	b, err := c.Edit(context.Background(), xfix.BookmarkEdit{ID: 7, Title: &title})
	require.NoError(t, err)
	require.Equal(t, "New", b.TitleValue())
	require.Contains(t, raw, "title")
	require.NotContains(t, raw, "comment")
	require.Equal(t, "7", string(raw["id"]))
}

func TestEditServerError(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	})
	_, err := c.Edit(context.Background(), xfix.BookmarkEdit{ID: 1})
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, http.StatusBadGateway, apiErr.Status)
	require.Equal(t, "boom", apiErr.Message)
	require.False(t, errors.Is(err, ErrUnauthorized))
}

func TestEditPacing(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"id":1,"url":"u","created_at":"t"}`)
	}))
	t.Cleanup(srv.Close)
	c, err := New(Config{BaseURL: srv.URL, Token: "t", EditRPS: 20}, srv.Client())
	require.NoError(t, err)

	start := time.Now()
	for range 3 {
		_, err := c.Edit(context.Background(), xfix.BookmarkEdit{ID: 1})
		require.NoError(t, err)
	}
	require.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
}
