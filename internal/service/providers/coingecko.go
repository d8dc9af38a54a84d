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

// Service names used to key rate buckets and call queues.
const (
	ServiceCoinGecko = "coingecko"
	ServiceNews      = "news"
	ServiceOpenAI    = "openai"
)

// symbolIDs maps ticker symbols to CoinGecko coin ids. Unknown symbols fall
// back to their lowercased form.
var symbolIDs = map[string]string{
	"BTC":   "bitcoin",
	"ETH":   "ethereum",
	"SOL":   "solana",
	"XRP":   "ripple",
	"ADA":   "cardano",
	"DOGE":  "dogecoin",
	"DOT":   "polkadot",
	"AVAX":  "avalanche-2",
	"LINK":  "chainlink",
	"MATIC": "matic-network",
}

func coinID(symbol string) string {
	if id, ok := symbolIDs[strings.ToUpper(symbol)]; ok {
		return id
	}
	return strings.ToLower(symbol)
}

// PriceRequest asks for the current quote of one symbol.
type PriceRequest struct {
	Symbol string
}

// HistoryRequest asks for daily closing prices over the trailing window.
type HistoryRequest struct {
	Symbol string
	Days   int
}

// HistoryResult is a chronologically ordered series of daily closes.
type HistoryResult struct {
	Symbol string
	Prices []float64
}

type coinResponse struct {
	MarketData struct {
		CurrentPrice struct {
			USD float64 `json:"usd"`
		} `json:"current_price"`
		MarketCap struct {
			USD float64 `json:"usd"`
		} `json:"market_cap"`
		TotalVolume struct {
			USD float64 `json:"usd"`
		} `json:"total_volume"`
		PriceChange24h float64 `json:"price_change_percentage_24h"`
	} `json:"market_data"`
}

type marketChartResponse struct {
	Prices [][2]float64 `json:"prices"`
}

// CoinGecko fetches quotes and price history from the CoinGecko REST API.
type CoinGecko struct {
	http    *httpclient.Client
	baseURL string
	apiKey  string
	l       *logger.Logger
	now     func() time.Time
}

func NewCoinGecko(baseURL, apiKey string, timeout time.Duration, l *logger.Logger) *CoinGecko {
	if l == nil {
		l = logger.Nop()
	}
	return &CoinGecko{
		http:    httpclient.NewClient(httpclient.WithTimeout(timeout)),
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		l:       l,
		now:     time.Now,
	}
}

// Call dispatches a queued payload to the matching endpoint.
func (c *CoinGecko) Call(ctx context.Context, payload interface{}) (interface{}, error) {
	switch p := payload.(type) {
	case PriceRequest:
		return c.fetchPrice(ctx, p.Symbol)
	case HistoryRequest:
		return c.fetchHistory(ctx, p.Symbol, p.Days)
	default:
		return nil, fmt.Errorf("coingecko: unsupported payload %T", payload)
	}
}

func (c *CoinGecko) fetchPrice(ctx context.Context, symbol string) (*models.PriceSnapshot, error) {
	var resp coinResponse
	opts := &httpclient.RequestOptions{
		Method:  httpclient.MethodGet,
		URL:     fmt.Sprintf("%s/api/v3/coins/%s", c.baseURL, coinID(symbol)),
		Headers: c.headers(),
		QueryParams: map[string][]string{
			"localization":   {"false"},
			"tickers":        {"false"},
			"community_data": {"false"},
			"developer_data": {"false"},
		},
	}
	if err := c.http.SendAndParse(ctx, opts, &resp); err != nil {
		return nil, fmt.Errorf("coingecko price %s: %w", symbol, err)
	}

	snap := &models.PriceSnapshot{
		Symbol:         strings.ToUpper(symbol),
		Price:          resp.MarketData.CurrentPrice.USD,
		MarketCap:      resp.MarketData.MarketCap.USD,
		Volume24h:      resp.MarketData.TotalVolume.USD,
		PriceChange24h: resp.MarketData.PriceChange24h,
		ObservedAt:     c.now().UTC(),
	}
	c.l.Debug("fetched price",
		logger.String("symbol", snap.Symbol),
		logger.Float64("price", snap.Price))
	return snap, nil
}

func (c *CoinGecko) fetchHistory(ctx context.Context, symbol string, days int) (*HistoryResult, error) {
	var resp marketChartResponse
	opts := &httpclient.RequestOptions{
		Method:  httpclient.MethodGet,
		URL:     fmt.Sprintf("%s/api/v3/coins/%s/market_chart", c.baseURL, coinID(symbol)),
		Headers: c.headers(),
		QueryParams: map[string][]string{
			"vs_currency": {"usd"},
			"days":        {strconv.Itoa(days)},
			"interval":    {"daily"},
		},
	}
	if err := c.http.SendAndParse(ctx, opts, &resp); err != nil {
		return nil, fmt.Errorf("coingecko history %s: %w", symbol, err)
	}

	prices := make([]float64, 0, len(resp.Prices))
	for _, point := range resp.Prices {
		prices = append(prices, point[1])
	}
	return &HistoryResult{Symbol: strings.ToUpper(symbol), Prices: prices}, nil
}

func (c *CoinGecko) headers() map[string]string {
	h := map[string]string{"Accept": "application/json"}
	if c.apiKey != "" {
		h["x-cg-demo-api-key"] = c.apiKey
	}
	return h
}
