package models

import "time"

// Direction of a prediction relative to the current price.
type Direction string

const (
	DirectionUp   Direction = "up"
	DirectionDown Direction = "down"
)

// PredictionRecord is one emitted price prediction. Immutable after
// creation; reconciled against the realized price once TargetDate passes.
type PredictionRecord struct {
	Symbol          string
	HorizonDays     int
	PredictionDate  time.Time
	TargetDate      time.Time
	CurrentPrice    float64
	PredictedPrice  float64
	Direction       Direction
	SentimentFactor float64
	TechnicalFactor float64
	Confidence      float64
	// UsedSentiment/UsedTechnical report which factors were available when
	// the prediction was made; consumers must tolerate partial signals.
	UsedSentiment bool
	UsedTechnical bool
}

// AccuracyRecord compares a matured prediction to the observed price.
type AccuracyRecord struct {
	Symbol         string
	HorizonDays    int
	PredictionDate time.Time
	TargetDate     time.Time
	PredictedPrice float64
	ActualPrice    float64
	ErrorRate      float64 // |actual - predicted| / actual
}

// AccuracySummary aggregates accuracy records per (symbol, horizon).
type AccuracySummary struct {
	Symbol      string
	HorizonDays int
	AvgError    float64
	Count       int
}
