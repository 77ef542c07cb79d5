package xfix

// Content is the normalized body of a post returned by a successful fetch.
type Content struct {
	Author            string
	AuthorDisplayName string
	Text              string
	SourceURL         string
	Likes             *int
	Reposts           *int
	Replies           *int
	Views             *int
}

// Bookmark is a single item delivered by the remote bookmark store.
type Bookmark struct {
	ID         int64   `json:"id"`
	URL        string  `json:"url"`
	Title      *string `json:"title"`
	Comment    *string `json:"comment"`
	Tags       []Tag   `json:"tags"`
	ClientName *string `json:"client_name"`
	CreatedAt  string  `json:"created_at"`
	UpdatedAt  *string `json:"updated_at"`
}

// Tag is a bookmark label.
type Tag struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// TitleValue returns the title or "" when absent.
func (b Bookmark) TitleValue() string {
	if b.Title == nil {
		return ""
	}
	return *b.Title
}

// CommentValue returns the comment or "" when absent.
func (b Bookmark) CommentValue() string {
	if b.Comment == nil {
		return ""
	}
	return *b.Comment
}

// SyncPage is one long-poll response from the bookmark store.
type SyncPage struct {
	Bookmarks []Bookmark
	Cursor    *string
	HasMore   bool
	Waited    bool
}

// Enrichment is the parsed output of the text-generation backend. Either
// field may be nil when the model omitted it.
type Enrichment struct {
	Title   *string
	Summary *string
}

// BookmarkEdit is a partial update; nil fields are left unchanged remotely.
type BookmarkEdit struct {
	ID      int64
	Title   *string
	Comment *string
}
