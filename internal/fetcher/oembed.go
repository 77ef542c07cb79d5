package fetcher

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/xfix/internal/xfix"
)

// DefaultOEmbedURL is the platform's public embed endpoint.
const DefaultOEmbedURL = "https://publish.twitter.com/oembed"

const oEmbedName = "oembed"

type oEmbedResponse struct {
	HTML       string `json:"html"`
	AuthorName string `json:"author_name"`
}

// OEmbed extracts post text from the official embed snippet.
type OEmbed struct {
	client   *http.Client
	endpoint string
}

// NewOEmbed builds the strategy. An empty endpoint uses DefaultOEmbedURL.
func NewOEmbed(client *http.Client, endpoint string) *OEmbed {
	if client == nil {
		client = http.DefaultClient
	}
	if endpoint == "" {
		endpoint = DefaultOEmbedURL
	}
	return &OEmbed{client: client, endpoint: endpoint}
}

// Name implements Strategy.
func (o *OEmbed) Name() string { return oEmbedName }

// Fetch implements Strategy.
func (o *OEmbed) Fetch(ctx context.Context, target Target) (xfix.Content, error) {
	endpoint := o.endpoint + "?url=" + url.QueryEscape(CanonicalURL(target.URL))

	var body oEmbedResponse
	if err := getJSON(ctx, o.client, oEmbedName, endpoint, nil, &body); err != nil {
		return xfix.Content{}, err
	}

	text, err := FirstParagraphText(body.HTML)
	if err != nil {
		return xfix.Content{}, xfix.NewFetchError(xfix.KindParse, oEmbedName, "invalid embed html", err)
	}
	if text == "" {
		return xfix.Content{}, xfix.NewFetchError(xfix.KindParse, oEmbedName, "no text in embed html", nil)
	}

	author := target.Author
	if author == "" {
		author = "unknown"
	}
	return xfix.Content{
		Author:            author,
		AuthorDisplayName: body.AuthorName,
		Text:              text,
		SourceURL:         target.URL,
	}, nil
}

// FirstParagraphText returns the text of the first <p> in fragment with
// inner markup removed and entities decoded.
func FirstParagraphText(fragment string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(doc.Find("p").First().Text()), nil
}
