package di

import (
	"context"
	"fmt"
	"time"

	"github.com/aleksgain/crypto-market-analyzer/internal/domain/repository"
	internalrepo "github.com/aleksgain/crypto-market-analyzer/internal/repository"
	"github.com/aleksgain/crypto-market-analyzer/internal/service/callqueue"
	"github.com/aleksgain/crypto-market-analyzer/internal/service/providers"
	"github.com/aleksgain/crypto-market-analyzer/internal/service/ratelimit"
	"github.com/aleksgain/crypto-market-analyzer/internal/services/sentiment"
	"github.com/aleksgain/crypto-market-analyzer/internal/services/technical"
	"github.com/aleksgain/crypto-market-analyzer/internal/usecase"
	"github.com/aleksgain/crypto-market-analyzer/pkg/cache"
	pkgch "github.com/aleksgain/crypto-market-analyzer/pkg/clickhouse"
	"github.com/aleksgain/crypto-market-analyzer/pkg/config"
	pkgkafka "github.com/aleksgain/crypto-market-analyzer/pkg/kafka"
	applogger "github.com/aleksgain/crypto-market-analyzer/pkg/logger"
	"github.com/aleksgain/crypto-market-analyzer/pkg/metrics"
	"github.com/aleksgain/crypto-market-analyzer/pkg/server"
)

// ProvideLogger creates the application logger from config.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	return applogger.New(&applogger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideClickHouseClient creates a ClickHouse client and ensures the
// schema exists.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.InitSchema(ctx, internalrepo.Schema(cfg.ClickHouse.Database)); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return client, nil
}

// ProvideCache creates a Redis cache when enabled, an in-process cache
// otherwise.
func ProvideCache(cfg *config.Config) (cache.Service, error) {
	if !cfg.Redis.Enabled {
		return cache.NewMemoryCache(), nil
	}
	return cache.NewRedisCache(
		cache.WithAddr(cfg.Redis.Addr),
		cache.WithPassword(cfg.Redis.Password),
		cache.WithDB(cfg.Redis.DB),
	)
}

// ProvidePublisher creates a Kafka publisher when enabled; predictions are
// otherwise only persisted.
func ProvidePublisher(cfg *config.Config, l *applogger.Logger) (repository.Publisher, func(), error) {
	if !cfg.Kafka.Enabled {
		return internalrepo.NopPublisher{}, func() {}, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithMaxAttempts(cfg.Kafka.MaxAttempts),
		pkgkafka.WithWriteTimeout(cfg.Kafka.WriteTimeout),
		pkgkafka.WithBatch(cfg.Kafka.BatchSize, cfg.Kafka.Linger),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("kafka producer: %w", err)
	}
	cleanup := func() { _ = producer.Close() }
	return internalrepo.NewKafkaPublisher(producer, cfg.Kafka.Topic, l), cleanup, nil
}

// ProvideStore creates the ClickHouse-backed stores.
func ProvideStore(client *pkgch.Client, cfg *config.Config, l *applogger.Logger) *internalrepo.Store {
	return internalrepo.NewStore(client, cfg.ClickHouse.Database, l)
}

// ProvideLimiter configures one token bucket per upstream service.
func ProvideLimiter(cfg *config.Config) *ratelimit.Limiter {
	limiter := ratelimit.New()
	limiter.Configure(providers.ServiceCoinGecko, cfg.CoinGecko.Bucket.Capacity, cfg.CoinGecko.Bucket.RefillPerSecond)
	limiter.Configure(providers.ServiceNews, cfg.News.Bucket.Capacity, cfg.News.Bucket.RefillPerSecond)
	limiter.Configure(providers.ServiceOpenAI, cfg.OpenAI.Bucket.Capacity, cfg.OpenAI.Bucket.RefillPerSecond)
	return limiter
}

// ProvideAggregator creates the sentiment aggregator from configured
// category weights.
func ProvideAggregator(cfg *config.Config) *sentiment.Aggregator {
	categories := make(map[string]sentiment.CategoryWeight, len(cfg.Sentiment.Categories))
	for name, cat := range cfg.Sentiment.Categories {
		categories[name] = sentiment.CategoryWeight{Keywords: cat.Keywords, Weight: cat.Weight}
	}
	return sentiment.NewAggregator(categories, cfg.Sentiment.NeutralBand)
}

// ProvideTechnicalEngine creates the indicator engine.
func ProvideTechnicalEngine(cfg *config.Config) *technical.Engine {
	return technical.New(technical.Config{
		ShortSMA:        cfg.Technical.ShortSMA,
		LongSMA:         cfg.Technical.LongSMA,
		RSIPeriod:       cfg.Technical.RSIPeriod,
		BollingerWindow: cfg.Technical.BollingerWindow,
		LevelLookback:   cfg.Technical.LevelLookback,
	})
}

// ProvideQueue creates the call queue with all upstream services
// registered. The queue is not started here; the app owns its lifecycle.
func ProvideQueue(cfg *config.Config, limiter *ratelimit.Limiter, m repository.Metrics, agg *sentiment.Aggregator, l *applogger.Logger) *callqueue.Queue {
	queue := callqueue.New(callqueue.Config{
		PollInterval: cfg.Scheduler.PollInterval,
		BackoffBase:  cfg.Scheduler.BackoffBase,
		BackoffMax:   cfg.Scheduler.BackoffMax,
		QueueSize:    cfg.Scheduler.QueueSize,
	}, limiter, m, l)

	coingecko := providers.NewCoinGecko(cfg.CoinGecko.BaseURL, cfg.CoinGecko.APIKey, cfg.CoinGecko.Timeout, l)
	queue.Register(providers.ServiceCoinGecko, coingecko, cfg.CoinGecko.Timeout)

	news := providers.NewNews(cfg.News.BaseURL, cfg.News.APIKey, cfg.News.Timeout,
		sentiment.NewLexicon(), agg, l)
	queue.Register(providers.ServiceNews, news, cfg.News.Timeout)

	if cfg.OpenAI.APIKey != "" {
		openai := providers.NewOpenAI(cfg.OpenAI.BaseURL, cfg.OpenAI.APIKey, cfg.OpenAI.Model, cfg.OpenAI.Timeout, l)
		queue.Register(providers.ServiceOpenAI, openai, cfg.OpenAI.Timeout)
	}
	return queue
}

// ProvideMarketData creates the market data service.
func ProvideMarketData(queue *callqueue.Queue, store *internalrepo.Store, cacheSvc cache.Service, cfg *config.Config, l *applogger.Logger) *usecase.MarketDataService {
	return usecase.NewMarketDataService(queue, store, store, cacheSvc, cfg, l)
}

// ProvidePredictionEngine creates the prediction engine.
func ProvidePredictionEngine(
	market *usecase.MarketDataService,
	engine *technical.Engine,
	agg *sentiment.Aggregator,
	store *internalrepo.Store,
	pub repository.Publisher,
	m repository.Metrics,
	cfg *config.Config,
	l *applogger.Logger,
) *usecase.PredictionEngine {
	return usecase.NewPredictionEngine(market, engine, agg, store, pub, m, cfg, l)
}

// ProvideAccuracyTracker creates the accuracy tracker.
func ProvideAccuracyTracker(store *internalrepo.Store, m repository.Metrics, l *applogger.Logger) *usecase.AccuracyTracker {
	return usecase.NewAccuracyTracker(store, store, m, l)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	queue *callqueue.Queue,
	market *usecase.MarketDataService,
	predictions *usecase.PredictionEngine,
	accuracy *usecase.AccuracyTracker,
	chClient *pkgch.Client,
	l *applogger.Logger,
) *server.App {
	return server.New(cfg, queue, market, predictions, accuracy, chClient, l)
}
