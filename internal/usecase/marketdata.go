package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/aleksgain/crypto-market-analyzer/internal/domain/models"
	"github.com/aleksgain/crypto-market-analyzer/internal/domain/repository"
	"github.com/aleksgain/crypto-market-analyzer/internal/service/callqueue"
	"github.com/aleksgain/crypto-market-analyzer/internal/service/providers"
	"github.com/aleksgain/crypto-market-analyzer/pkg/cache"
	"github.com/aleksgain/crypto-market-analyzer/pkg/config"
	"github.com/aleksgain/crypto-market-analyzer/pkg/logger"
)

// MarketDataService routes all upstream fetches through the rate-gated call
// queue and keeps hot reads in cache. It owns the collection jobs that feed
// the stores.
type MarketDataService struct {
	queue      *callqueue.Queue
	priceStore repository.PriceStore
	newsStore  repository.NewsStore
	cache      cache.Service
	cfg        *config.Config
	l          *logger.Logger
}

func NewMarketDataService(
	queue *callqueue.Queue,
	priceStore repository.PriceStore,
	newsStore repository.NewsStore,
	cacheSvc cache.Service,
	cfg *config.Config,
	l *logger.Logger,
) *MarketDataService {
	if l == nil {
		l = logger.Nop()
	}
	return &MarketDataService{
		queue:      queue,
		priceStore: priceStore,
		newsStore:  newsStore,
		cache:      cacheSvc,
		cfg:        cfg,
		l:          l,
	}
}

// CurrentPrice returns the latest quote for a symbol, cache first.
func (m *MarketDataService) CurrentPrice(ctx context.Context, symbol string) (*models.PriceSnapshot, error) {
	key := cache.Key("price", symbol)
	var cached models.PriceSnapshot
	if err := m.cache.Get(ctx, key, &cached); err == nil {
		return &cached, nil
	}

	handle, err := m.queue.Enqueue(providers.ServiceCoinGecko,
		providers.PriceRequest{Symbol: symbol}, m.cfg.CoinGecko.MaxAttempts)
	if err != nil {
		return nil, err
	}
	out, err := handle.Wait(ctx)
	if err != nil {
		return nil, err
	}
	snap := out.(*models.PriceSnapshot)

	if err := m.cache.Set(ctx, key, snap, m.cfg.Cache.PriceTTL); err != nil {
		m.l.Warn("cache price", logger.Error(err))
	}
	return snap, nil
}

// PriceHistory returns daily closes for the trailing window, oldest first.
func (m *MarketDataService) PriceHistory(ctx context.Context, symbol string, days int) ([]float64, error) {
	key := cache.Key("history", symbol, days)
	var cached []float64
	if err := m.cache.Get(ctx, key, &cached); err == nil {
		return cached, nil
	}

	handle, err := m.queue.Enqueue(providers.ServiceCoinGecko,
		providers.HistoryRequest{Symbol: symbol, Days: days}, m.cfg.CoinGecko.MaxAttempts)
	if err != nil {
		return nil, err
	}
	out, err := handle.Wait(ctx)
	if err != nil {
		return nil, err
	}
	hist := out.(*providers.HistoryResult)

	if err := m.cache.Set(ctx, key, hist.Prices, m.cfg.Cache.HistoryTTL); err != nil {
		m.l.Warn("cache history", logger.Error(err))
	}
	return hist.Prices, nil
}

// RecentNews returns scored items within the configured lookback window.
func (m *MarketDataService) RecentNews(ctx context.Context) ([]models.NewsItem, error) {
	key := cache.Key("news", "recent")
	var cached []models.NewsItem
	if err := m.cache.Get(ctx, key, &cached); err == nil {
		return cached, nil
	}

	since := time.Now().UTC().Add(-time.Duration(m.cfg.Sentiment.LookbackHours) * time.Hour)
	items, err := m.newsStore.GetNewsItems(ctx, since, m.cfg.Sentiment.MaxItemsPerSymbol)
	if err != nil {
		return nil, err
	}
	if err := m.cache.Set(ctx, key, items, m.cfg.Cache.NewsTTL); err != nil {
		m.l.Warn("cache news", logger.Error(err))
	}
	return items, nil
}

// CollectPrices fetches and persists a quote per configured symbol. One
// symbol failing does not abort the rest.
func (m *MarketDataService) CollectPrices(ctx context.Context) error {
	var firstErr error
	for _, symbol := range m.cfg.Prediction.Symbols {
		snap, err := m.fetchAndStorePrice(ctx, symbol)
		if err != nil {
			m.l.Error("collect price",
				logger.String("symbol", symbol),
				logger.Error(err))
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		m.l.Info("price collected",
			logger.String("symbol", snap.Symbol),
			logger.Float64("price", snap.Price))
	}
	return firstErr
}

func (m *MarketDataService) fetchAndStorePrice(ctx context.Context, symbol string) (*models.PriceSnapshot, error) {
	handle, err := m.queue.Enqueue(providers.ServiceCoinGecko,
		providers.PriceRequest{Symbol: symbol}, m.cfg.CoinGecko.MaxAttempts)
	if err != nil {
		return nil, err
	}
	out, err := handle.Wait(ctx)
	if err != nil {
		return nil, err
	}
	snap := out.(*models.PriceSnapshot)

	if err := m.priceStore.PutSnapshot(ctx, *snap); err != nil {
		return nil, fmt.Errorf("store snapshot: %w", err)
	}
	if err := m.cache.Set(ctx, cache.Key("price", symbol), snap, m.cfg.Cache.PriceTTL); err != nil {
		m.l.Warn("cache price", logger.Error(err))
	}
	return snap, nil
}

// CollectNews fetches articles per category, optionally enriches them with
// model scores, and persists the result.
func (m *MarketDataService) CollectNews(ctx context.Context) error {
	var firstErr error
	for category, cat := range m.cfg.Sentiment.Categories {
		if len(cat.Keywords) == 0 {
			continue
		}
		items, err := m.fetchNews(ctx, cat.Keywords[0], category)
		if err != nil {
			m.l.Error("collect news",
				logger.String("category", category),
				logger.Error(err))
			if firstErr == nil {
				firstErr = err
			}
			continue
		}

		items = m.enrichWithModelScores(ctx, items)

		stored := 0
		for i := range items {
			if err := m.newsStore.PutNewsItem(ctx, items[i]); err != nil {
				m.l.Error("store news item", logger.Error(err))
				continue
			}
			stored++
		}
		m.l.Info("news collected",
			logger.String("category", category),
			logger.Int("stored", stored))
	}

	if err := m.cache.Delete(ctx, cache.Key("news", "recent")); err != nil {
		m.l.Warn("invalidate news cache", logger.Error(err))
	}
	return firstErr
}

func (m *MarketDataService) fetchNews(ctx context.Context, query, category string) ([]models.NewsItem, error) {
	handle, err := m.queue.Enqueue(providers.ServiceNews,
		providers.NewsRequest{Query: query, Category: category}, m.cfg.News.MaxAttempts)
	if err != nil {
		return nil, err
	}
	out, err := handle.Wait(ctx)
	if err != nil {
		return nil, err
	}
	return out.([]models.NewsItem), nil
}

// enrichWithModelScores asks the model service to rate each headline. A
// failed rating leaves the lexicon score in place.
func (m *MarketDataService) enrichWithModelScores(ctx context.Context, items []models.NewsItem) []models.NewsItem {
	if m.cfg.OpenAI.APIKey == "" {
		return items
	}
	limit := m.cfg.Sentiment.MaxItemsPerSymbol
	for i := range items {
		if i >= limit {
			break
		}
		handle, err := m.queue.Enqueue(providers.ServiceOpenAI,
			providers.ScoreRequest{Headline: items[i].Title}, m.cfg.OpenAI.MaxAttempts)
		if err != nil {
			m.l.Warn("enqueue model score", logger.Error(err))
			continue
		}
		out, err := handle.Wait(ctx)
		if err != nil {
			m.l.Warn("model score",
				logger.String("title", items[i].Title),
				logger.Error(err))
			continue
		}
		res := out.(*providers.ScoreResult)
		score := res.Score
		items[i].AIScore = &score
		items[i].AIExplanation = res.Explanation
	}
	return items
}
