package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aleksgain/crypto-market-analyzer/internal/domain/models"
	"github.com/aleksgain/crypto-market-analyzer/internal/domain/repository"
	"github.com/aleksgain/crypto-market-analyzer/internal/services/sentiment"
	"github.com/aleksgain/crypto-market-analyzer/internal/services/technical"
	"github.com/aleksgain/crypto-market-analyzer/pkg/config"
	"github.com/aleksgain/crypto-market-analyzer/pkg/logger"
	"github.com/aleksgain/crypto-market-analyzer/pkg/util"
)

// ErrNoSignal is returned when neither a sentiment nor a technical factor
// is available for a symbol.
var ErrNoSignal = errors.New("no signal available")

// MarketData is the slice of market data access the prediction flow needs.
type MarketData interface {
	CurrentPrice(ctx context.Context, symbol string) (*models.PriceSnapshot, error)
	PriceHistory(ctx context.Context, symbol string, days int) ([]float64, error)
	RecentNews(ctx context.Context) ([]models.NewsItem, error)
}

// TechnicalAnalyzer derives indicator signals from a price series.
type TechnicalAnalyzer interface {
	Analyze(symbol string, prices []float64) (*models.TechnicalSignalSet, error)
}

// SentimentAggregator folds news items into one market sentiment reading.
type SentimentAggregator interface {
	Aggregate(items []models.NewsItem) sentiment.Result
}

// PredictionEngine fuses the sentiment and technical factors into price
// predictions per symbol and horizon.
type PredictionEngine struct {
	market     MarketData
	analyzer   TechnicalAnalyzer
	aggregator SentimentAggregator
	store      repository.PredictionStore
	publisher  repository.Publisher
	metrics    repository.Metrics
	cfg        *config.Config
	l          *logger.Logger
	now        func() time.Time
}

func NewPredictionEngine(
	market MarketData,
	analyzer TechnicalAnalyzer,
	aggregator SentimentAggregator,
	store repository.PredictionStore,
	publisher repository.Publisher,
	metrics repository.Metrics,
	cfg *config.Config,
	l *logger.Logger,
) *PredictionEngine {
	if metrics == nil {
		metrics = repository.NopMetrics{}
	}
	if l == nil {
		l = logger.Nop()
	}
	return &PredictionEngine{
		market:     market,
		analyzer:   analyzer,
		aggregator: aggregator,
		store:      store,
		publisher:  publisher,
		metrics:    metrics,
		cfg:        cfg,
		l:          l,
		now:        time.Now,
	}
}

// historyDays is the fetch window for technical analysis: enough for the
// longest indicator plus headroom for provider gaps.
func (e *PredictionEngine) historyDays() int {
	return e.cfg.Technical.LongSMA + 10
}

// GeneratePredictions runs one prediction round over all configured symbols
// and horizons. Symbols with no usable signal are skipped, not failed.
func (e *PredictionEngine) GeneratePredictions(ctx context.Context) ([]models.PredictionRecord, error) {
	sentScore, sentAvailable := e.marketSentiment(ctx)

	var records []models.PredictionRecord
	var firstErr error
	for _, symbol := range e.cfg.Prediction.Symbols {
		recs, err := e.predictSymbol(ctx, symbol, sentScore, sentAvailable)
		if err != nil {
			e.l.Error("predict symbol",
				logger.String("symbol", symbol),
				logger.Error(err))
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		records = append(records, recs...)
	}
	return records, firstErr
}

func (e *PredictionEngine) marketSentiment(ctx context.Context) (float64, bool) {
	news, err := e.market.RecentNews(ctx)
	if err != nil {
		e.l.Warn("recent news unavailable", logger.Error(err))
		return 0, false
	}
	if len(news) == 0 {
		return 0, false
	}
	res := e.aggregator.Aggregate(news)
	e.l.Debug("market sentiment",
		logger.Float64("score", res.Score),
		logger.Int("items", res.ItemCount))
	return res.Score, true
}

func (e *PredictionEngine) predictSymbol(ctx context.Context, symbol string, sentScore float64, sentAvailable bool) ([]models.PredictionRecord, error) {
	snap, err := e.market.CurrentPrice(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("current price: %w", err)
	}

	techFactor, techAvailable := 0.0, false
	if prices, err := e.market.PriceHistory(ctx, symbol, e.historyDays()); err != nil {
		e.l.Warn("price history unavailable",
			logger.String("symbol", symbol),
			logger.Error(err))
	} else if set, err := e.analyzer.Analyze(symbol, prices); err != nil {
		if !errors.Is(err, technical.ErrInsufficientHistory) {
			return nil, fmt.Errorf("analyze: %w", err)
		}
		e.l.Warn("insufficient history", logger.String("symbol", symbol))
	} else {
		techFactor, techAvailable = set.Factor, true
	}

	var records []models.PredictionRecord
	for _, days := range e.cfg.Prediction.HorizonDays {
		rec, err := e.predict(symbol, snap.Price, sentScore, sentAvailable, techFactor, techAvailable, days)
		if err != nil {
			if errors.Is(err, ErrNoSignal) {
				e.l.Warn("prediction skipped",
					logger.String("symbol", symbol),
					logger.Int("horizon_days", days))
				continue
			}
			return nil, err
		}

		if err := e.store.PutPrediction(ctx, rec); err != nil {
			return nil, fmt.Errorf("store prediction: %w", err)
		}
		if e.publisher != nil {
			if err := e.publisher.PublishPrediction(ctx, rec); err != nil {
				e.l.Error("publish prediction", logger.Error(err))
			}
		}
		e.metrics.RecordPrediction(symbol)
		records = append(records, rec)

		e.l.Info("prediction made",
			logger.String("symbol", symbol),
			logger.Int("horizon_days", days),
			logger.Float64("predicted", rec.PredictedPrice),
			logger.Float64("confidence", rec.Confidence))
	}
	return records, nil
}

// predict fuses the two factors for one horizon. When one factor is
// unavailable its weight is redistributed to the other, so the weights in
// use always sum to 1.
func (e *PredictionEngine) predict(symbol string, price, sentScore float64, sentAvailable bool, techFactor float64, techAvailable bool, horizonDays int) (models.PredictionRecord, error) {
	if !sentAvailable && !techAvailable {
		return models.PredictionRecord{}, ErrNoSignal
	}

	wS := e.cfg.Prediction.SentimentWeight
	wT := 1 - wS
	switch {
	case !sentAvailable:
		wS, wT = 0, 1
	case !techAvailable:
		wS, wT = 1, 0
	}

	blend := wS*sentScore + wT*techFactor
	predicted := price * (1 + e.cfg.HorizonScale(horizonDays)*blend)

	direction := models.DirectionUp
	if predicted < price {
		direction = models.DirectionDown
	}

	confidence := e.cfg.Prediction.BaseConfidence + abs(blend)*e.cfg.Prediction.ConfidenceGain
	if sentAvailable && techAvailable && sentScore*techFactor > 0 {
		confidence += e.cfg.Prediction.AgreementBonus
	}
	if confidence > 1 {
		confidence = 1
	}

	predictionDate := util.DayFloor(e.now().UTC())
	return models.PredictionRecord{
		Symbol:          symbol,
		HorizonDays:     horizonDays,
		PredictionDate:  predictionDate,
		TargetDate:      predictionDate.AddDate(0, 0, horizonDays),
		CurrentPrice:    price,
		PredictedPrice:  predicted,
		Direction:       direction,
		SentimentFactor: sentScore,
		TechnicalFactor: techFactor,
		Confidence:      confidence,
		UsedSentiment:   sentAvailable,
		UsedTechnical:   techAvailable,
	}, nil
}

// TechnicalSnapshot exposes the raw indicator view for one symbol.
func (e *PredictionEngine) TechnicalSnapshot(ctx context.Context, symbol string) (*models.TechnicalSignalSet, error) {
	prices, err := e.market.PriceHistory(ctx, symbol, e.historyDays())
	if err != nil {
		return nil, err
	}
	return e.analyzer.Analyze(symbol, prices)
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
