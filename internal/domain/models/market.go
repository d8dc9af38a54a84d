package models

import "time"

// PriceSnapshot is one observed market quote. Immutable once created.
type PriceSnapshot struct {
	Symbol         string
	Price          float64
	MarketCap      float64
	Volume24h      float64
	PriceChange24h float64
	ObservedAt     time.Time
}

// NewsItem is a scored news article. SentimentScore is lexicon-based;
// AIScore, when present, is model-based and takes precedence during
// aggregation. Both are in [-1, 1].
type NewsItem struct {
	Title          string
	Source         string
	URL            string
	Category       string
	PublishedAt    time.Time
	SentimentScore float64
	AIScore        *float64
	AIExplanation  string
}

// EffectiveScore returns the score used for aggregation.
func (n *NewsItem) EffectiveScore() float64 {
	if n.AIScore != nil {
		return *n.AIScore
	}
	return n.SentimentScore
}
