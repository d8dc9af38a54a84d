package providers

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aleksgain/crypto-market-analyzer/internal/domain/models"
	httpclient "github.com/aleksgain/crypto-market-analyzer/pkg/http"
	"github.com/aleksgain/crypto-market-analyzer/pkg/logger"
)

// HeadlineScorer assigns a polarity in [-1, 1] to a headline.
type HeadlineScorer interface {
	Score(headline string) float64
}

// HeadlineClassifier assigns a news category to a headline.
type HeadlineClassifier interface {
	Classify(headline string) string
}

// NewsRequest asks for recent articles matching a query. Category, when
// set, is stamped on the returned items; otherwise the classifier decides.
type NewsRequest struct {
	Query    string
	Category string
	PageSize int
}

type newsResponse struct {
	Status   string `json:"status"`
	Articles []struct {
		Title  string `json:"title"`
		URL    string `json:"url"`
		Source struct {
			Name string `json:"name"`
		} `json:"source"`
		PublishedAt time.Time `json:"publishedAt"`
	} `json:"articles"`
}

// News fetches and scores articles from a NewsAPI-compatible endpoint.
// Items carry a lexicon score on arrival; model scoring happens later and
// separately.
type News struct {
	http       *httpclient.Client
	baseURL    string
	apiKey     string
	scorer     HeadlineScorer
	classifier HeadlineClassifier
	l          *logger.Logger
}

func NewNews(baseURL, apiKey string, timeout time.Duration, scorer HeadlineScorer, classifier HeadlineClassifier, l *logger.Logger) *News {
	if l == nil {
		l = logger.Nop()
	}
	return &News{
		http:       httpclient.NewClient(httpclient.WithTimeout(timeout)),
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		scorer:     scorer,
		classifier: classifier,
		l:          l,
	}
}

func (n *News) Call(ctx context.Context, payload interface{}) (interface{}, error) {
	req, ok := payload.(NewsRequest)
	if !ok {
		return nil, fmt.Errorf("news: unsupported payload %T", payload)
	}
	return n.fetch(ctx, req)
}

func (n *News) fetch(ctx context.Context, req NewsRequest) ([]models.NewsItem, error) {
	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}

	var resp newsResponse
	opts := &httpclient.RequestOptions{
		Method: httpclient.MethodGet,
		URL:    n.baseURL + "/v2/everything",
		Headers: map[string]string{
			"X-Api-Key": n.apiKey,
		},
		QueryParams: map[string][]string{
			"q":        {req.Query},
			"language": {"en"},
			"sortBy":   {"publishedAt"},
			"pageSize": {strconv.Itoa(pageSize)},
		},
	}
	if err := n.http.SendAndParse(ctx, opts, &resp); err != nil {
		return nil, fmt.Errorf("news query %q: %w", req.Query, err)
	}

	items := make([]models.NewsItem, 0, len(resp.Articles))
	for _, a := range resp.Articles {
		if a.Title == "" {
			continue
		}
		category := req.Category
		if category == "" && n.classifier != nil {
			category = n.classifier.Classify(a.Title)
		}
		item := models.NewsItem{
			Title:       a.Title,
			Source:      a.Source.Name,
			URL:         a.URL,
			Category:    category,
			PublishedAt: a.PublishedAt.UTC(),
		}
		if n.scorer != nil {
			item.SentimentScore = n.scorer.Score(a.Title)
		}
		items = append(items, item)
	}

	n.l.Debug("fetched news",
		logger.String("query", req.Query),
		logger.Int("items", len(items)))
	return items, nil
}
