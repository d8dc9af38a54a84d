package repository

import (
	"context"
	"time"

	"github.com/aleksgain/crypto-market-analyzer/internal/domain/models"
)

// PriceStore persists and serves price snapshots.
type PriceStore interface {
	PutSnapshot(ctx context.Context, s models.PriceSnapshot) error
	// GetPriceHistory returns closing snapshots for the window, oldest first.
	GetPriceHistory(ctx context.Context, symbol string, window time.Duration) ([]models.PriceSnapshot, error)
	// GetActualPrice returns the snapshot price closest to atDate, or
	// ok=false when no usable snapshot exists near that date.
	GetActualPrice(ctx context.Context, symbol string, atDate time.Time) (float64, bool, error)
}

// NewsStore persists and serves scored news items.
type NewsStore interface {
	PutNewsItem(ctx context.Context, item models.NewsItem) error
	GetNewsItems(ctx context.Context, since time.Time, limit int) ([]models.NewsItem, error)
}

// PredictionStore persists predictions and their accuracy reconciliation.
type PredictionStore interface {
	PutPrediction(ctx context.Context, rec models.PredictionRecord) error
	// GetMaturedUnresolved returns predictions whose target date has passed
	// and for which no accuracy record exists yet.
	GetMaturedUnresolved(ctx context.Context, now time.Time) ([]models.PredictionRecord, error)
	PutAccuracyRecord(ctx context.Context, rec models.AccuracyRecord) error
	GetAccuracySummaries(ctx context.Context) ([]models.AccuracySummary, error)
}

// Publisher emits prediction events for downstream consumers.
type Publisher interface {
	PublishPrediction(ctx context.Context, rec models.PredictionRecord) error
}

// Metrics abstracts operational metrics recording.
type Metrics interface {
	RecordCall(service, outcome string)
	RecordTokenDenied(service string)
	RecordRetry(service string)
	RecordTerminalFailure(service, kind string)
	RecordQueueDepth(service string, depth int)
	RecordCallLatency(service string, seconds float64)
	RecordPrediction(symbol string)
	RecordAccuracyResolved()
}

// NopMetrics discards all recordings. Useful in tests.
type NopMetrics struct{}

func (NopMetrics) RecordCall(string, string)            {}
func (NopMetrics) RecordTokenDenied(string)             {}
func (NopMetrics) RecordRetry(string)                   {}
func (NopMetrics) RecordTerminalFailure(string, string) {}
func (NopMetrics) RecordQueueDepth(string, int)         {}
func (NopMetrics) RecordCallLatency(string, float64)    {}
func (NopMetrics) RecordPrediction(string)              {}
func (NopMetrics) RecordAccuracyResolved()              {}
