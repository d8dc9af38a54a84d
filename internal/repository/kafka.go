package repository

import (
	"context"
	"time"

	"github.com/aleksgain/crypto-market-analyzer/internal/domain/models"
	"github.com/aleksgain/crypto-market-analyzer/pkg/kafka"
	"github.com/aleksgain/crypto-market-analyzer/pkg/logger"
)

// PredictionEvent is the wire shape of a published prediction. Events key
// on symbol so one symbol's predictions stay ordered per partition.
type PredictionEvent struct {
	Symbol          string    `json:"symbol"`
	HorizonDays     int       `json:"horizon_days"`
	PredictionDate  time.Time `json:"prediction_date"`
	TargetDate      time.Time `json:"target_date"`
	CurrentPrice    float64   `json:"current_price"`
	PredictedPrice  float64   `json:"predicted_price"`
	Direction       string    `json:"direction"`
	SentimentFactor float64   `json:"sentiment_factor"`
	TechnicalFactor float64   `json:"technical_factor"`
	Confidence      float64   `json:"confidence"`
	UsedSentiment   bool      `json:"used_sentiment"`
	UsedTechnical   bool      `json:"used_technical"`
}

// KafkaPublisher emits prediction events to a Kafka topic.
type KafkaPublisher struct {
	producer *kafka.Producer
	topic    string
	l        *logger.Logger
}

func NewKafkaPublisher(producer *kafka.Producer, topic string, l *logger.Logger) *KafkaPublisher {
	if l == nil {
		l = logger.Nop()
	}
	return &KafkaPublisher{producer: producer, topic: topic, l: l}
}

func (p *KafkaPublisher) PublishPrediction(ctx context.Context, rec models.PredictionRecord) error {
	event := PredictionEvent{
		Symbol:          rec.Symbol,
		HorizonDays:     rec.HorizonDays,
		PredictionDate:  rec.PredictionDate,
		TargetDate:      rec.TargetDate,
		CurrentPrice:    rec.CurrentPrice,
		PredictedPrice:  rec.PredictedPrice,
		Direction:       string(rec.Direction),
		SentimentFactor: rec.SentimentFactor,
		TechnicalFactor: rec.TechnicalFactor,
		Confidence:      rec.Confidence,
		UsedSentiment:   rec.UsedSentiment,
		UsedTechnical:   rec.UsedTechnical,
	}
	if err := p.producer.Publish(ctx, p.topic, []byte(rec.Symbol), event); err != nil {
		return err
	}
	p.l.Debug("prediction published",
		logger.String("symbol", rec.Symbol),
		logger.Int("horizon_days", rec.HorizonDays))
	return nil
}

// NopPublisher drops events. Used when Kafka is disabled.
type NopPublisher struct{}

func (NopPublisher) PublishPrediction(context.Context, models.PredictionRecord) error {
	return nil
}
