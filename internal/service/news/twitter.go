package news

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"PriceCast/internal/domain/models"
	domrepo "PriceCast/internal/domain/repository"
	pkghttp "PriceCast/pkg/http"
)

const DefaultTwitterBaseURL = "https://api.twitter.com"

// The recent search endpoint rejects max_results outside [10, 100].
const (
	twitterMinResults = 10
	twitterMaxResults = 100
)

// Twitter searches recent posts through the v2 recent search endpoint.
type Twitter struct {
	bearer  string
	baseURL string
	client  *pkghttp.Client
}

func NewTwitter(bearer, baseURL string, client *pkghttp.Client) *Twitter {
	if baseURL == "" {
		baseURL = DefaultTwitterBaseURL
	}
	if client == nil {
		client = pkghttp.NewClient()
	}
	return &Twitter{bearer: bearer, baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

func (t *Twitter) Source() models.SentimentSource { return models.SentimentSocial }
func (t *Twitter) Configured() bool               { return t.bearer != "" }

type tweetSearchResponse struct {
	Data []struct {
		ID   string `json:"id"`
		Text string `json:"text"`
	} `json:"data"`
	Meta struct {
		ResultCount int `json:"result_count"`
	} `json:"meta"`
}

func (t *Twitter) Search(ctx context.Context, query string, limit int) ([]string, error) {
	if !t.Configured() {
		return nil, fmt.Errorf("twitter: bearer token not configured")
	}
	maxResults := min(max(limit, twitterMinResults), twitterMaxResults)

	var resp tweetSearchResponse
	err := t.client.SendAndParse(ctx, &pkghttp.RequestOptions{
		Method:  pkghttp.MethodGet,
		URL:     t.baseURL + "/2/tweets/search/recent",
		Headers: map[string]string{"Authorization": "Bearer " + t.bearer},
		QueryParams: map[string][]string{
			"query":       {query},
			"max_results": {strconv.Itoa(maxResults)},
		},
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("twitter search: %w", err)
	}

	texts := make([]string, 0, len(resp.Data))
	for _, d := range resp.Data {
		if s := strings.TrimSpace(d.Text); s != "" {
			texts = append(texts, s)
		}
	}
	return capItems(texts, limit), nil
}

var _ domrepo.TextSource = (*Twitter)(nil)
