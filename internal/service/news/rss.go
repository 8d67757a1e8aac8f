package news

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/mmcdole/gofeed"

	"PriceCast/internal/domain/models"
	domrepo "PriceCast/internal/domain/repository"
	pkghttp "PriceCast/pkg/http"
)

// DefaultFeedURLTemplate is a headline search feed; {query} is replaced with
// the escaped search term.
const DefaultFeedURLTemplate = "https://news.google.com/rss/search?q={query}&hl=en-US&gl=US&ceid=US:en"

// Feed reads item titles from an RSS/Atom search feed. It needs no credential.
type Feed struct {
	urlTemplate string
	client      *pkghttp.Client
	parser      *gofeed.Parser
}

func NewFeed(urlTemplate string, client *pkghttp.Client) *Feed {
	if urlTemplate == "" {
		urlTemplate = DefaultFeedURLTemplate
	}
	if client == nil {
		client = pkghttp.NewClient()
	}
	return &Feed{urlTemplate: urlTemplate, client: client, parser: gofeed.NewParser()}
}

func (f *Feed) Source() models.SentimentSource { return models.SentimentFeed }
func (f *Feed) Configured() bool               { return f.urlTemplate != "" }

func (f *Feed) Search(ctx context.Context, query string, limit int) ([]string, error) {
	feedURL := strings.ReplaceAll(f.urlTemplate, "{query}", url.QueryEscape(query))

	var body []byte
	if err := f.client.SendAndParse(ctx, &pkghttp.RequestOptions{
		Method:  pkghttp.MethodGet,
		URL:     feedURL,
		Headers: map[string]string{"Accept": "application/rss+xml, application/atom+xml, application/xml"},
	}, &body); err != nil {
		return nil, fmt.Errorf("feed fetch: %w", err)
	}

	feed, err := f.parser.ParseString(string(body))
	if err != nil {
		return nil, fmt.Errorf("feed parse: %w", err)
	}
	titles := make([]string, 0, len(feed.Items))
	for _, item := range feed.Items {
		if t := strings.TrimSpace(item.Title); t != "" {
			titles = append(titles, t)
		}
	}
	return capItems(titles, limit), nil
}

var _ domrepo.TextSource = (*Feed)(nil)
