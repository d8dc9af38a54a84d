package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const minimalConfig = `
coingecko:
  base_url: https://api.coingecko.com
news:
  base_url: https://newsapi.org
openai:
  base_url: https://api.openai.com
prediction:
  symbols: [BTC]
`

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "console" {
		t.Fatalf("logging defaults = %+v", cfg.Logging)
	}
	if cfg.Scheduler.BackoffBase != time.Second || cfg.Scheduler.BackoffMax != 60*time.Second {
		t.Fatalf("scheduler defaults = %+v", cfg.Scheduler)
	}
	if cfg.CoinGecko.Bucket.Capacity != 10 || cfg.CoinGecko.Bucket.RefillPerSecond != 0.5 {
		t.Fatalf("bucket defaults = %+v", cfg.CoinGecko.Bucket)
	}
	if len(cfg.Prediction.HorizonDays) != 3 {
		t.Fatalf("horizon defaults = %v", cfg.Prediction.HorizonDays)
	}
	if len(cfg.Sentiment.Categories) != 3 {
		t.Fatalf("category defaults = %v", cfg.Sentiment.Categories)
	}
	if w := cfg.Sentiment.Categories["economic"].Weight; w != 0.8 {
		t.Fatalf("economic weight = %f, want 0.8", w)
	}
}

func TestLoadRejectsMissingSymbols(t *testing.T) {
	const noSymbols = `
coingecko:
  base_url: https://api.coingecko.com
news:
  base_url: https://newsapi.org
openai:
  base_url: https://api.openai.com
`
	if _, err := Load(writeConfig(t, noSymbols)); err == nil {
		t.Fatal("expected validation error for empty symbols")
	}
}

func TestLoadRejectsInvertedSMAs(t *testing.T) {
	cfgYAML := minimalConfig + `
technical:
  short_sma: 50
  long_sma: 20
`
	if _, err := Load(writeConfig(t, cfgYAML)); err == nil {
		t.Fatal("expected validation error for short_sma >= long_sma")
	}
}

func TestHorizonScale(t *testing.T) {
	const scaleConfig = `
coingecko:
  base_url: https://api.coingecko.com
news:
  base_url: https://newsapi.org
openai:
  base_url: https://api.openai.com
prediction:
  symbols: [BTC]
  scale_per_day: 0.01
  horizon_scale:
    30: 0.25
`
	cfg, err := Load(writeConfig(t, scaleConfig))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s := cfg.HorizonScale(30); s != 0.25 {
		t.Fatalf("scale(30) = %f, want table entry 0.25", s)
	}
	if s := cfg.HorizonScale(7); s != 0.07 {
		t.Fatalf("scale(7) = %f, want linear 0.07", s)
	}
}

func TestTechnicalWeightComplementsSentiment(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if sum := cfg.Prediction.SentimentWeight + cfg.TechnicalWeight(); sum != 1 {
		t.Fatalf("weights sum = %f, want 1", sum)
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	t.Setenv("COINGECKO_API_KEY", "cg-key")
	t.Setenv("SYMBOLS", "BTC,ETH")
	t.Setenv("PREDICTION_INTERVALS", "1,14")

	cfg, err := LoadWithEnv(writeConfig(t, minimalConfig))
	if err != nil {
		t.Fatalf("LoadWithEnv: %v", err)
	}
	if cfg.CoinGecko.APIKey != "cg-key" {
		t.Fatalf("api key = %q", cfg.CoinGecko.APIKey)
	}
	if len(cfg.Prediction.Symbols) != 2 {
		t.Fatalf("symbols = %v", cfg.Prediction.Symbols)
	}
	if len(cfg.Prediction.HorizonDays) != 2 || cfg.Prediction.HorizonDays[1] != 14 {
		t.Fatalf("horizons = %v", cfg.Prediction.HorizonDays)
	}
}
