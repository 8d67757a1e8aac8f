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

const DefaultNewsAPIBaseURL = "https://newsapi.org"

// NewsAPI searches recent article titles through the NewsAPI /v2/everything endpoint.
type NewsAPI struct {
	apiKey  string
	baseURL string
	client  *pkghttp.Client
}

func NewNewsAPI(apiKey, baseURL string, client *pkghttp.Client) *NewsAPI {
	if baseURL == "" {
		baseURL = DefaultNewsAPIBaseURL
	}
	if client == nil {
		client = pkghttp.NewClient()
	}
	return &NewsAPI{apiKey: apiKey, baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

func (n *NewsAPI) Source() models.SentimentSource { return models.SentimentNews }
func (n *NewsAPI) Configured() bool               { return n.apiKey != "" }

type newsAPIResponse struct {
	Status   string `json:"status"`
	Code     string `json:"code"`
	Message  string `json:"message"`
	Articles []struct {
		Title       string `json:"title"`
		Description string `json:"description"`
	} `json:"articles"`
}

func (n *NewsAPI) Search(ctx context.Context, query string, limit int) ([]string, error) {
	if !n.Configured() {
		return nil, fmt.Errorf("newsapi: api key not configured")
	}
	var resp newsAPIResponse
	err := n.client.SendAndParse(ctx, &pkghttp.RequestOptions{
		Method:  pkghttp.MethodGet,
		URL:     n.baseURL + "/v2/everything",
		Headers: map[string]string{"X-Api-Key": n.apiKey},
		QueryParams: map[string][]string{
			"q":        {query},
			"language": {"en"},
			"sortBy":   {"relevancy"},
			"pageSize": {strconv.Itoa(limit)},
		},
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("newsapi search: %w", err)
	}
	if resp.Status != "" && resp.Status != "ok" {
		return nil, fmt.Errorf("newsapi search: %s: %s", resp.Code, resp.Message)
	}

	titles := make([]string, 0, len(resp.Articles))
	for _, a := range resp.Articles {
		if t := strings.TrimSpace(a.Title); t != "" {
			titles = append(titles, t)
		}
	}
	return capItems(titles, limit), nil
}

func capItems(items []string, limit int) []string {
	if limit > 0 && len(items) > limit {
		return items[:limit]
	}
	return items
}

var _ domrepo.TextSource = (*NewsAPI)(nil)
