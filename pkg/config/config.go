package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Bucket configures a token-bucket rate gate for one upstream service.
type Bucket struct {
	Capacity        float64 `yaml:"capacity" default:"10" validate:"gt=0"`
	RefillPerSecond float64 `yaml:"refill_per_second" default:"0.5" validate:"gt=0"`
}

// Provider configures one upstream API client and its retry policy.
type Provider struct {
	BaseURL     string        `yaml:"base_url" validate:"required,url"`
	APIKey      string        `yaml:"api_key"`
	Timeout     time.Duration `yaml:"timeout" default:"10s"`
	MaxAttempts int           `yaml:"max_attempts" default:"3" validate:"gte=1"`
	Bucket      Bucket        `yaml:"bucket"`
}

// Category weights news relevance for sentiment aggregation.
type Category struct {
	Keywords []string `yaml:"keywords"`
	Weight   float64  `yaml:"weight" default:"1.0" validate:"gt=0"`
}

type Config struct {
	Environment string `yaml:"environment" default:"development"`

	Logging struct {
		Level  string `yaml:"level" default:"info"`
		Format string `yaml:"format" default:"console" validate:"oneof=console json"`
		Output string `yaml:"output" default:"stdout"`
	} `yaml:"logging"`

	ClickHouse struct {
		Host             string        `yaml:"host" default:"localhost"`
		Port             int           `yaml:"port" default:"9000"`
		Database         string        `yaml:"database" default:"cryptoanalyzer"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout     time.Duration `yaml:"write_timeout" default:"10s"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"30s"`
	} `yaml:"clickhouse"`

	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Addr     string `yaml:"addr" default:"localhost:6379"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`

	Kafka struct {
		Enabled      bool          `yaml:"enabled"`
		Brokers      []string      `yaml:"brokers"`
		Topic        string        `yaml:"topic" default:"predictions"`
		RequiredAcks int           `yaml:"required_acks" default:"-1"`
		Compression  string        `yaml:"compression" default:"gzip"`
		MaxAttempts  int           `yaml:"max_attempts" default:"3"`
		BatchSize    int           `yaml:"batch_size" default:"100"`
		Linger       time.Duration `yaml:"linger" default:"1s"`
		WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
	} `yaml:"kafka"`

	CoinGecko Provider `yaml:"coingecko"`
	News      Provider `yaml:"news"`
	OpenAI    struct {
		Provider `yaml:",inline"`
		Model    string `yaml:"model" default:"gpt-4o-mini"`
	} `yaml:"openai"`

	// Scheduler drives the per-service call queues.
	Scheduler struct {
		PollInterval time.Duration `yaml:"poll_interval" default:"100ms"`
		BackoffBase  time.Duration `yaml:"backoff_base" default:"1s"`
		BackoffMax   time.Duration `yaml:"backoff_max" default:"60s"`
		QueueSize    int           `yaml:"queue_size" default:"256"`
	} `yaml:"scheduler"`

	Prediction struct {
		Symbols         []string        `yaml:"symbols" validate:"min=1"`
		HorizonDays     []int           `yaml:"horizon_days"`
		HorizonScale    map[int]float64 `yaml:"horizon_scale"`
		ScalePerDay     float64         `yaml:"scale_per_day" default:"0.01"`
		SentimentWeight float64         `yaml:"sentiment_weight" default:"0.6" validate:"gte=0,lte=1"`
		BaseConfidence  float64         `yaml:"base_confidence" default:"0.5" validate:"gte=0,lte=1"`
		ConfidenceGain  float64         `yaml:"confidence_gain" default:"0.5" validate:"gte=0"`
		AgreementBonus  float64         `yaml:"agreement_bonus" default:"0.1" validate:"gte=0"`
	} `yaml:"prediction"`

	Technical struct {
		ShortSMA        int `yaml:"short_sma" default:"20" validate:"gt=0"`
		LongSMA         int `yaml:"long_sma" default:"50" validate:"gt=0"`
		RSIPeriod       int `yaml:"rsi_period" default:"14" validate:"gt=0"`
		BollingerWindow int `yaml:"bollinger_window" default:"20" validate:"gt=0"`
		LevelLookback   int `yaml:"level_lookback" default:"20" validate:"gt=0"`
	} `yaml:"technical"`

	Sentiment struct {
		Categories        map[string]Category `yaml:"categories"`
		NeutralBand       float64             `yaml:"neutral_band" default:"0.1" validate:"gte=0"`
		LookbackHours     int                 `yaml:"lookback_hours" default:"24" validate:"gt=0"`
		MaxItemsPerSymbol int                 `yaml:"max_items_per_symbol" default:"30" validate:"gt=0"`
	} `yaml:"sentiment"`

	Cache struct {
		PriceTTL   time.Duration `yaml:"price_ttl" default:"60s"`
		HistoryTTL time.Duration `yaml:"history_ttl" default:"15m"`
		NewsTTL    time.Duration `yaml:"news_ttl" default:"10m"`
	} `yaml:"cache"`

	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Addr    string `yaml:"addr" default:":9091"`
	} `yaml:"metrics"`

	Jobs struct {
		Prices      string `yaml:"prices" default:"@every 5m"`
		News        string `yaml:"news" default:"@every 30m"`
		Predictions string `yaml:"predictions" default:"@every 1h"`
		Accuracy    string `yaml:"accuracy" default:"@every 1h"`
	} `yaml:"jobs"`
}

var validate = validator.New()

// Load reads and parses a YAML configuration file, applies defaults and
// validates the result.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}
	c.applyDerived()

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides secrets with environment
// variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("COINGECKO_API_KEY"); v != "" {
		c.CoinGecko.APIKey = v
	}
	if v := os.Getenv("NEWS_API_KEY"); v != "" {
		c.News.APIKey = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		c.OpenAI.APIKey = v
	}
	if v := os.Getenv("CLICKHOUSE_PASSWORD"); v != "" {
		c.ClickHouse.Password = v
	}
	if v := os.Getenv("SYMBOLS"); v != "" {
		c.Prediction.Symbols = strings.Split(v, ",")
	}
	if v := os.Getenv("PREDICTION_INTERVALS"); v != "" {
		horizons := make([]int, 0, 4)
		for _, s := range strings.Split(v, ",") {
			d, err := strconv.Atoi(strings.TrimSpace(s))
			if err != nil {
				return nil, fmt.Errorf("PREDICTION_INTERVALS: %w", err)
			}
			horizons = append(horizons, d)
		}
		c.Prediction.HorizonDays = horizons
	}

	return c, nil
}

// applyDerived fills slice and map fields the defaults library cannot express.
func (c *Config) applyDerived() {
	if len(c.Prediction.HorizonDays) == 0 {
		c.Prediction.HorizonDays = []int{1, 7, 30}
	}
	if len(c.Sentiment.Categories) == 0 {
		c.Sentiment.Categories = map[string]Category{
			"crypto":       {Weight: 1.0, Keywords: []string{"bitcoin", "ethereum", "cryptocurrency", "crypto market", "blockchain"}},
			"economic":     {Weight: 0.8, Keywords: []string{"inflation", "interest rates", "federal reserve", "recession", "stock market"}},
			"geopolitical": {Weight: 0.6, Keywords: []string{"trade war", "sanctions", "tariffs", "regulation"}},
		}
	}
}

// HorizonScale returns the admissible swing for a horizon in days. An entry
// in the scale table wins; otherwise the swing grows linearly per day.
func (c *Config) HorizonScale(days int) float64 {
	if s, ok := c.Prediction.HorizonScale[days]; ok {
		return s
	}
	return c.Prediction.ScalePerDay * float64(days)
}

// TechnicalWeight is the complement of the sentiment fusion weight, so the
// two always sum to 1.
func (c *Config) TechnicalWeight() float64 {
	return 1 - c.Prediction.SentimentWeight
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	for _, d := range c.Prediction.HorizonDays {
		if d <= 0 {
			return fmt.Errorf("prediction.horizon_days must be positive, got %d", d)
		}
	}
	if c.Technical.ShortSMA >= c.Technical.LongSMA {
		return fmt.Errorf("technical.short_sma (%d) must be below long_sma (%d)",
			c.Technical.ShortSMA, c.Technical.LongSMA)
	}
	if c.Scheduler.BackoffBase > c.Scheduler.BackoffMax {
		return fmt.Errorf("scheduler.backoff_base exceeds backoff_max")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	return nil
}
