package fetcher

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/JakeFAU/xfix/internal/xfix"
)

// DefaultFxTwitterURL is the public rich-data API.
const DefaultFxTwitterURL = "https://api.fxtwitter.com"

const fxTwitterName = "fxtwitter"

type fxTwitterResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Tweet   struct {
		Text     string `json:"text"`
		Likes    *int   `json:"likes"`
		Retweets *int   `json:"retweets"`
		Replies  *int   `json:"replies"`
		Views    *int   `json:"views"`
		Author   struct {
			ScreenName string `json:"screen_name"`
			Name       string `json:"name"`
		} `json:"author"`
	} `json:"tweet"`
}

// FxTwitter fetches posts as JSON from an fxtwitter-compatible API.
type FxTwitter struct {
	client  *http.Client
	baseURL string
}

// NewFxTwitter builds the strategy. An empty baseURL uses DefaultFxTwitterURL.
func NewFxTwitter(client *http.Client, baseURL string) *FxTwitter {
	if client == nil {
		client = http.DefaultClient
	}
	if baseURL == "" {
		baseURL = DefaultFxTwitterURL
	}
	return &FxTwitter{client: client, baseURL: strings.TrimRight(baseURL, "/")}
}

// Name implements Strategy.
func (f *FxTwitter) Name() string { return fxTwitterName }

// Fetch implements Strategy.
func (f *FxTwitter) Fetch(ctx context.Context, target Target) (xfix.Content, error) {
	if target.Author == "" || target.PostID == "" {
		return xfix.Content{}, xfix.NewFetchError(xfix.KindParse, fxTwitterName, "no author or post id in url", nil)
	}
	endpoint := f.baseURL + "/" + url.PathEscape(target.Author) + "/status/" + target.PostID

	var body fxTwitterResponse
	headers := http.Header{"User-Agent": []string{BrowserUserAgent}}
	if err := getJSON(ctx, f.client, fxTwitterName, endpoint, headers, &body); err != nil {
		return xfix.Content{}, err
	}
	if body.Code != http.StatusOK {
		msg := body.Message
		if msg == "" {
			msg = "unknown fxtwitter error"
		}
		return xfix.Content{}, xfix.NewFetchError(xfix.KindNotFound, fxTwitterName, msg, nil)
	}
	if body.Tweet.Text == "" {
		return xfix.Content{}, xfix.NewFetchError(xfix.KindParse, fxTwitterName, "no text in response", nil)
	}

	author := body.Tweet.Author.ScreenName
	if author == "" {
		author = target.Author
	}
	return xfix.Content{
		Author:            author,
		AuthorDisplayName: body.Tweet.Author.Name,
		Text:              body.Tweet.Text,
		SourceURL:         target.URL,
		Likes:             body.Tweet.Likes,
		Reposts:           body.Tweet.Retweets,
		Replies:           body.Tweet.Replies,
		Views:             body.Tweet.Views,
	}, nil
}
