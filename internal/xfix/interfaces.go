package xfix

import (
	"context"
	"time"
)

// Fetcher retrieves post content for a URL. A failure is always a
// *FetchError.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (Content, error)
}

// BookmarkStore is the remote bookmark collaborator.
type BookmarkStore interface {
	Sync(ctx context.Context, cursor *string, limit int, wait bool) (SyncPage, error)
	Edit(ctx context.Context, edit BookmarkEdit) (Bookmark, error)
}

// Enricher turns post content into a title and summary.
type Enricher interface {
	Enrich(ctx context.Context, content Content) (Enrichment, error)
}

// Pacer spaces outbound fetches and escalates delay on failure.
type Pacer interface {
	Wait(ctx context.Context) error
	RecordSuccess()
	RecordError() time.Duration
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}
