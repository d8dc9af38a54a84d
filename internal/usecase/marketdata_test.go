package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aleksgain/crypto-market-analyzer/internal/domain/models"
	"github.com/aleksgain/crypto-market-analyzer/internal/service/callqueue"
	"github.com/aleksgain/crypto-market-analyzer/internal/service/providers"
	"github.com/aleksgain/crypto-market-analyzer/internal/service/ratelimit"
	"github.com/aleksgain/crypto-market-analyzer/pkg/cache"
	"github.com/aleksgain/crypto-market-analyzer/pkg/config"
)

type countingCaller struct {
	mu    sync.Mutex
	calls int
	fn    func(ctx context.Context, payload interface{}) (interface{}, error)
}

func (c *countingCaller) Call(ctx context.Context, payload interface{}) (interface{}, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	return c.fn(ctx, payload)
}

func (c *countingCaller) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

type countingPriceStore struct {
	mu        sync.Mutex
	snapshots []models.PriceSnapshot
}

func (s *countingPriceStore) PutSnapshot(ctx context.Context, snap models.PriceSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots = append(s.snapshots, snap)
	return nil
}

func (s *countingPriceStore) GetPriceHistory(ctx context.Context, symbol string, window time.Duration) ([]models.PriceSnapshot, error) {
	return nil, nil
}

func (s *countingPriceStore) GetActualPrice(ctx context.Context, symbol string, atDate time.Time) (float64, bool, error) {
	return 0, false, nil
}

type countingNewsStore struct {
	mu    sync.Mutex
	items []models.NewsItem
}

func (s *countingNewsStore) PutNewsItem(ctx context.Context, item models.NewsItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(s.items, item)
	return nil
}

func (s *countingNewsStore) GetNewsItems(ctx context.Context, since time.Time, limit int) ([]models.NewsItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.NewsItem(nil), s.items...), nil
}

func marketTestConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Prediction.Symbols = []string{"BTC", "ETH"}
	cfg.CoinGecko.MaxAttempts = 2
	cfg.News.MaxAttempts = 2
	cfg.Cache.PriceTTL = time.Minute
	cfg.Cache.HistoryTTL = time.Minute
	cfg.Cache.NewsTTL = time.Minute
	cfg.Sentiment.LookbackHours = 24
	cfg.Sentiment.MaxItemsPerSymbol = 30
	cfg.Sentiment.Categories = map[string]config.Category{
		"crypto": {Weight: 1.0, Keywords: []string{"bitcoin"}},
	}
	return cfg
}

func startMarketQueue(t *testing.T, caller callqueue.Caller) *callqueue.Queue {
	t.Helper()
	limiter := ratelimit.New()
	limiter.Configure(providers.ServiceCoinGecko, 100, 100)
	limiter.Configure(providers.ServiceNews, 100, 100)
	queue := callqueue.New(callqueue.Config{PollInterval: 5 * time.Millisecond}, limiter, nil, nil)
	queue.Register(providers.ServiceCoinGecko, caller, time.Second)
	queue.Register(providers.ServiceNews, caller, time.Second)
	queue.Start()
	t.Cleanup(queue.Stop)
	return queue
}

func TestCurrentPriceReadThrough(t *testing.T) {
	caller := &countingCaller{fn: func(ctx context.Context, payload interface{}) (interface{}, error) {
		req := payload.(providers.PriceRequest)
		return &models.PriceSnapshot{Symbol: req.Symbol, Price: 100, ObservedAt: time.Now()}, nil
	}}
	queue := startMarketQueue(t, caller)
	m := NewMarketDataService(queue, &countingPriceStore{}, &countingNewsStore{},
		cache.NewMemoryCache(), marketTestConfig(), nil)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		snap, err := m.CurrentPrice(ctx, "BTC")
		if err != nil {
			t.Fatalf("CurrentPrice: %v", err)
		}
		if snap.Price != 100 {
			t.Fatalf("price = %f", snap.Price)
		}
	}
	if got := caller.count(); got != 1 {
		t.Fatalf("upstream calls = %d, want 1 (cache should serve repeats)", got)
	}
}

func TestCollectPricesContinuesPastFailures(t *testing.T) {
	caller := &countingCaller{fn: func(ctx context.Context, payload interface{}) (interface{}, error) {
		req := payload.(providers.PriceRequest)
		if req.Symbol == "BTC" {
			return nil, errors.New("boom")
		}
		return &models.PriceSnapshot{Symbol: req.Symbol, Price: 50, ObservedAt: time.Now()}, nil
	}}
	queue := startMarketQueue(t, caller)
	store := &countingPriceStore{}
	m := NewMarketDataService(queue, store, &countingNewsStore{},
		cache.NewMemoryCache(), marketTestConfig(), nil)

	err := m.CollectPrices(context.Background())
	if err == nil {
		t.Fatal("expected first symbol's error to surface")
	}
	if len(store.snapshots) != 1 || store.snapshots[0].Symbol != "ETH" {
		t.Fatalf("snapshots = %+v, want only ETH", store.snapshots)
	}
}

func TestCollectNewsStoresAndInvalidatesCache(t *testing.T) {
	caller := &countingCaller{fn: func(ctx context.Context, payload interface{}) (interface{}, error) {
		req := payload.(providers.NewsRequest)
		return []models.NewsItem{{
			Title: "Bitcoin climbs", Category: req.Category,
			URL: "http://a", PublishedAt: time.Now().UTC(), SentimentScore: 0.4,
		}}, nil
	}}
	queue := startMarketQueue(t, caller)
	store := &countingNewsStore{}
	m := NewMarketDataService(queue, &countingPriceStore{}, store,
		cache.NewMemoryCache(), marketTestConfig(), nil)

	ctx := context.Background()
	if err := m.CollectNews(ctx); err != nil {
		t.Fatalf("CollectNews: %v", err)
	}
	if len(store.items) != 1 {
		t.Fatalf("stored items = %d, want 1", len(store.items))
	}

	items, err := m.RecentNews(ctx)
	if err != nil {
		t.Fatalf("RecentNews: %v", err)
	}
	if len(items) != 1 || items[0].Category != "crypto" {
		t.Fatalf("items = %+v", items)
	}
}
