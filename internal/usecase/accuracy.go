package usecase

import (
	"context"
	"time"

	"github.com/aleksgain/crypto-market-analyzer/internal/domain/models"
	"github.com/aleksgain/crypto-market-analyzer/internal/domain/repository"
	"github.com/aleksgain/crypto-market-analyzer/pkg/logger"
)

// AccuracyTracker reconciles matured predictions against realized prices.
// A prediction is resolved at most once; predictions whose realized price is
// not yet observable stay pending for the next scan.
type AccuracyTracker struct {
	predictions repository.PredictionStore
	prices      repository.PriceStore
	metrics     repository.Metrics
	l           *logger.Logger
	now         func() time.Time
}

func NewAccuracyTracker(
	predictions repository.PredictionStore,
	prices repository.PriceStore,
	metrics repository.Metrics,
	l *logger.Logger,
) *AccuracyTracker {
	if metrics == nil {
		metrics = repository.NopMetrics{}
	}
	if l == nil {
		l = logger.Nop()
	}
	return &AccuracyTracker{
		predictions: predictions,
		prices:      prices,
		metrics:     metrics,
		l:           l,
		now:         time.Now,
	}
}

// Reconcile scans matured unresolved predictions and records their error
// rate. Returns the number of predictions resolved in this pass.
func (t *AccuracyTracker) Reconcile(ctx context.Context) (int, error) {
	pending, err := t.predictions.GetMaturedUnresolved(ctx, t.now().UTC())
	if err != nil {
		return 0, err
	}

	resolved := 0
	for _, p := range pending {
		actual, ok, err := t.prices.GetActualPrice(ctx, p.Symbol, p.TargetDate)
		if err != nil {
			t.l.Error("actual price lookup",
				logger.String("symbol", p.Symbol),
				logger.Error(err))
			continue
		}
		if !ok || actual <= 0 {
			// No usable price near the target date yet. Leave the
			// prediction pending.
			t.l.Debug("accuracy deferred",
				logger.String("symbol", p.Symbol),
				logger.Int("horizon_days", p.HorizonDays))
			continue
		}

		rec := models.AccuracyRecord{
			Symbol:         p.Symbol,
			HorizonDays:    p.HorizonDays,
			PredictionDate: p.PredictionDate,
			TargetDate:     p.TargetDate,
			PredictedPrice: p.PredictedPrice,
			ActualPrice:    actual,
			ErrorRate:      abs(actual-p.PredictedPrice) / actual,
		}
		if err := t.predictions.PutAccuracyRecord(ctx, rec); err != nil {
			t.l.Error("store accuracy record",
				logger.String("symbol", p.Symbol),
				logger.Error(err))
			continue
		}
		t.metrics.RecordAccuracyResolved()
		resolved++

		t.l.Info("accuracy resolved",
			logger.String("symbol", p.Symbol),
			logger.Int("horizon_days", p.HorizonDays),
			logger.Float64("error_rate", rec.ErrorRate))
	}
	return resolved, nil
}

// Summaries returns per (symbol, horizon) accuracy aggregates.
func (t *AccuracyTracker) Summaries(ctx context.Context) ([]models.AccuracySummary, error) {
	return t.predictions.GetAccuracySummaries(ctx)
}
