package providers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aleksgain/crypto-market-analyzer/internal/domain/models"
)

type staticScorer struct{ score float64 }

func (s staticScorer) Score(string) float64 { return s.score }

type staticClassifier struct{ category string }

func (c staticClassifier) Classify(string) string { return c.category }

func TestCoinGeckoPrice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v3/coins/bitcoin" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.Header.Get("x-cg-demo-api-key") != "k" {
			t.Errorf("missing api key header")
		}
		w.Write([]byte(`{"market_data":{
			"current_price":{"usd":50000.5},
			"market_cap":{"usd":1000000},
			"total_volume":{"usd":50000},
			"price_change_percentage_24h":2.5}}`))
	}))
	defer srv.Close()

	cg := NewCoinGecko(srv.URL, "k", time.Second, nil)
	out, err := cg.Call(context.Background(), PriceRequest{Symbol: "btc"})
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	snap := out.(*models.PriceSnapshot)
	if snap.Symbol != "BTC" || snap.Price != 50000.5 || snap.PriceChange24h != 2.5 {
		t.Fatalf("snapshot = %+v", snap)
	}
	if snap.ObservedAt.IsZero() {
		t.Fatal("ObservedAt not stamped")
	}
}

func TestCoinGeckoHistory(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v3/coins/ethereum/market_chart" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("days"); got != "60" {
			t.Errorf("days = %s", got)
		}
		w.Write([]byte(`{"prices":[[1700000000000,100],[1700086400000,102],[1700172800000,101]]}`))
	}))
	defer srv.Close()

	cg := NewCoinGecko(srv.URL, "", time.Second, nil)
	out, err := cg.Call(context.Background(), HistoryRequest{Symbol: "ETH", Days: 60})
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	hist := out.(*HistoryResult)
	want := []float64{100, 102, 101}
	if len(hist.Prices) != len(want) {
		t.Fatalf("prices = %v", hist.Prices)
	}
	for i := range want {
		if hist.Prices[i] != want[i] {
			t.Fatalf("prices[%d] = %f, want %f", i, hist.Prices[i], want[i])
		}
	}
}

func TestCoinGeckoUnsupportedPayload(t *testing.T) {
	cg := NewCoinGecko("http://localhost", "", time.Second, nil)
	if _, err := cg.Call(context.Background(), "bogus"); err == nil {
		t.Fatal("expected error for unsupported payload")
	}
}

func TestNewsFetchScoresAndClassifies(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Api-Key") != "nk" {
			t.Errorf("missing api key header")
		}
		w.Write([]byte(`{"status":"ok","articles":[
			{"title":"Bitcoin rallies","url":"http://a","source":{"name":"Feed"},"publishedAt":"2026-08-28T10:00:00Z"},
			{"title":"","url":"http://b","source":{"name":"Feed"},"publishedAt":"2026-08-28T11:00:00Z"}
		]}`))
	}))
	defer srv.Close()

	n := NewNews(srv.URL, "nk", time.Second, staticScorer{score: 0.4}, staticClassifier{category: "crypto"}, nil)
	out, err := n.Call(context.Background(), NewsRequest{Query: "bitcoin"})
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	items := out.([]models.NewsItem)
	if len(items) != 1 {
		t.Fatalf("items = %d, want 1 (untitled dropped)", len(items))
	}
	if items[0].SentimentScore != 0.4 || items[0].Category != "crypto" {
		t.Fatalf("item = %+v", items[0])
	}
}

func TestNewsExplicitCategoryWins(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"ok","articles":[
			{"title":"Fed holds rates","url":"http://a","source":{"name":"Feed"},"publishedAt":"2026-08-28T10:00:00Z"}
		]}`))
	}))
	defer srv.Close()

	n := NewNews(srv.URL, "", time.Second, nil, staticClassifier{category: "crypto"}, nil)
	out, err := n.Call(context.Background(), NewsRequest{Query: "rates", Category: "economic"})
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	items := out.([]models.NewsItem)
	if items[0].Category != "economic" {
		t.Fatalf("category = %s, want explicit economic", items[0].Category)
	}
}

func TestOpenAIScore(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer ok" {
			t.Errorf("missing bearer token")
		}
		w.Write([]byte(`{"choices":[{"message":{"content":"{\"score\":0.7,\"explanation\":\"bullish inflows\"}"}}]}`))
	}))
	defer srv.Close()

	o := NewOpenAI(srv.URL, "ok", "gpt-4o-mini", time.Second, nil)
	out, err := o.Call(context.Background(), ScoreRequest{Headline: "ETF inflows grow"})
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	res := out.(*ScoreResult)
	if res.Score != 0.7 || res.Explanation == "" {
		t.Fatalf("result = %+v", res)
	}
}

func TestParseScoreClamps(t *testing.T) {
	res, err := parseScore(`{"score": 3.5, "explanation": "x"}`)
	if err != nil {
		t.Fatalf("parseScore: %v", err)
	}
	if res.Score != 1 {
		t.Fatalf("score = %f, want clamped to 1", res.Score)
	}
	if _, err := parseScore("not json"); err == nil {
		t.Fatal("expected parse error")
	}
}
