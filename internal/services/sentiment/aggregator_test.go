package sentiment

import (
	"math"
	"math/rand"
	"testing"

	"github.com/aleksgain/crypto-market-analyzer/internal/domain/models"
)

func testCategories() map[string]CategoryWeight {
	return map[string]CategoryWeight{
		"crypto":       {Weight: 1.0, Keywords: []string{"bitcoin", "ethereum", "crypto"}},
		"economic":     {Weight: 0.8, Keywords: []string{"inflation", "federal reserve"}},
		"geopolitical": {Weight: 0.6, Keywords: []string{"sanctions", "tariffs"}},
	}
}

func TestAggregateEmpty(t *testing.T) {
	agg := NewAggregator(testCategories(), 0.1)
	res := agg.Aggregate(nil)
	if res.Score != 0 || res.Label != models.SignalNeutral {
		t.Fatalf("empty aggregate = %+v, want neutral zero", res)
	}
}

func TestAggregateMixedNeutral(t *testing.T) {
	agg := NewAggregator(testCategories(), 0.1)
	items := make([]models.NewsItem, 0, 10)
	for i := 0; i < 7; i++ {
		items = append(items, models.NewsItem{Title: "a", Category: "crypto", SentimentScore: 0.3})
	}
	for i := 0; i < 3; i++ {
		items = append(items, models.NewsItem{Title: "b", Category: "crypto", SentimentScore: -0.5})
	}
	res := agg.Aggregate(items)
	if math.Abs(res.Score-0.06) > 1e-9 {
		t.Fatalf("score = %f, want 0.06", res.Score)
	}
	if res.Label != models.SignalNeutral {
		t.Fatalf("label = %s, want neutral inside ±0.1 band", res.Label)
	}
}

func TestAggregateCategoryWeights(t *testing.T) {
	agg := NewAggregator(testCategories(), 0.1)
	items := []models.NewsItem{
		{Category: "crypto", SentimentScore: 1.0},
		{Category: "geopolitical", SentimentScore: -1.0},
	}
	res := agg.Aggregate(items)
	// (1.0 - 0.6) / 1.6
	if math.Abs(res.Score-0.25) > 1e-9 {
		t.Fatalf("score = %f, want 0.25", res.Score)
	}
	if res.Label != models.SignalBullish {
		t.Fatalf("label = %s, want bullish", res.Label)
	}
}

func TestAggregateOrderInvariant(t *testing.T) {
	agg := NewAggregator(testCategories(), 0.1)
	items := []models.NewsItem{
		{Category: "crypto", SentimentScore: 0.8},
		{Category: "economic", SentimentScore: -0.4},
		{Category: "geopolitical", SentimentScore: 0.1},
		{Category: "unknown", SentimentScore: -0.9},
	}
	want := agg.Aggregate(items).Score

	r := rand.New(rand.NewSource(1))
	for i := 0; i < 10; i++ {
		shuffled := append([]models.NewsItem(nil), items...)
		r.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })
		if got := agg.Aggregate(shuffled).Score; math.Abs(got-want) > 1e-12 {
			t.Fatalf("aggregate depends on order: %f vs %f", got, want)
		}
	}
}

func TestAIScorePrecedence(t *testing.T) {
	agg := NewAggregator(testCategories(), 0.1)
	ai := -0.8
	items := []models.NewsItem{
		{Category: "crypto", SentimentScore: 0.9, AIScore: &ai},
	}
	res := agg.Aggregate(items)
	if res.Score != -0.8 {
		t.Fatalf("score = %f, want model score -0.8", res.Score)
	}
}

func TestClassify(t *testing.T) {
	agg := NewAggregator(testCategories(), 0.1)
	if got := agg.Classify("Bitcoin rallies as ETF inflows grow"); got != "crypto" {
		t.Fatalf("classify = %q, want crypto", got)
	}
	if got := agg.Classify("Federal Reserve holds rates steady"); got != "economic" {
		t.Fatalf("classify = %q, want economic", got)
	}
	if got := agg.Classify("Local sports roundup"); got != "" {
		t.Fatalf("classify = %q, want empty", got)
	}
}

func TestLexiconScore(t *testing.T) {
	lex := NewLexicon()
	if s := lex.Score("Bitcoin surges to record high on ETF approval"); s <= 0 {
		t.Fatalf("score = %f, want positive", s)
	}
	if s := lex.Score("Exchange hack triggers sell-off and liquidation"); s >= 0 {
		t.Fatalf("score = %f, want negative", s)
	}
	if s := lex.Score("Quarterly report published"); s != 0 {
		t.Fatalf("score = %f, want 0 for no matches", s)
	}
}
