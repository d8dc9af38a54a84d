package sentiment

import (
	"strings"

	"github.com/aleksgain/crypto-market-analyzer/internal/domain/models"
)

// CategoryWeight configures one news category: its relevance weight and the
// keywords used to classify uncategorized headlines.
type CategoryWeight struct {
	Keywords []string
	Weight   float64
}

// Result is an aggregated sentiment reading over a set of news items.
type Result struct {
	Score     float64
	Label     models.Signal
	ItemCount int
}

// Aggregator folds scored news items into a single market sentiment factor.
// Aggregation is order-independent and pure.
type Aggregator struct {
	categories  map[string]CategoryWeight
	neutralBand float64
}

func NewAggregator(categories map[string]CategoryWeight, neutralBand float64) *Aggregator {
	return &Aggregator{categories: categories, neutralBand: neutralBand}
}

// Classify maps a headline to the first category whose keyword list matches.
// Returns the empty string when nothing matches.
func (a *Aggregator) Classify(headline string) string {
	text := strings.ToLower(headline)
	best, bestWeight := "", 0.0
	for name, cat := range a.categories {
		for _, kw := range cat.Keywords {
			if strings.Contains(text, kw) {
				if cat.Weight > bestWeight {
					best, bestWeight = name, cat.Weight
				}
				break
			}
		}
	}
	return best
}

// Aggregate computes the category-weighted mean of effective item scores.
// Model-based scores take precedence over lexicon scores per item. An empty
// input aggregates to a neutral zero.
func (a *Aggregator) Aggregate(items []models.NewsItem) Result {
	if len(items) == 0 {
		return Result{Score: 0, Label: models.SignalNeutral}
	}

	var weightedSum, weightTotal float64
	for i := range items {
		w := a.weightFor(items[i].Category)
		weightedSum += w * items[i].EffectiveScore()
		weightTotal += w
	}
	if weightTotal == 0 {
		return Result{Score: 0, Label: models.SignalNeutral, ItemCount: len(items)}
	}

	score := weightedSum / weightTotal
	return Result{Score: score, Label: a.label(score), ItemCount: len(items)}
}

func (a *Aggregator) weightFor(category string) float64 {
	if cat, ok := a.categories[category]; ok {
		return cat.Weight
	}
	return 1.0
}

func (a *Aggregator) label(score float64) models.Signal {
	switch {
	case score > a.neutralBand:
		return models.SignalBullish
	case score < -a.neutralBand:
		return models.SignalBearish
	default:
		return models.SignalNeutral
	}
}
