package technical

import (
	"errors"
	"math"

	"github.com/aleksgain/crypto-market-analyzer/internal/domain/models"
)

// ErrInsufficientHistory is returned when the price series is too short to
// compute any indicator.
var ErrInsufficientHistory = errors.New("insufficient price history")

const (
	macdSlowSpan = 26

	rsiOverbought = 70.0
	rsiOversold   = 30.0

	// Histogram readings smaller than this fraction of the last price are
	// treated as noise.
	histogramNeutralFrac = 0.0005
)

// Vote weights per indicator. The histogram is a derivative of the MACD
// line and carries half weight.
const (
	smaWeight       = 1.0
	macdWeight      = 1.0
	histogramWeight = 0.5
	rsiWeight       = 1.0
	bollingerWeight = 1.0

	totalWeight = smaWeight + macdWeight + histogramWeight + rsiWeight + bollingerWeight
)

// Config holds the indicator windows.
type Config struct {
	ShortSMA        int
	LongSMA         int
	RSIPeriod       int
	BollingerWindow int
	LevelLookback   int
}

func (c *Config) setDefaults() {
	if c.ShortSMA <= 0 {
		c.ShortSMA = 20
	}
	if c.LongSMA <= 0 {
		c.LongSMA = 50
	}
	if c.RSIPeriod <= 0 {
		c.RSIPeriod = 14
	}
	if c.BollingerWindow <= 0 {
		c.BollingerWindow = 20
	}
	if c.LevelLookback <= 0 {
		c.LevelLookback = 20
	}
}

// Engine derives indicator values and trading signals from a price series.
// All methods are pure functions of their inputs.
type Engine struct {
	cfg Config
}

func New(cfg Config) *Engine {
	cfg.setDefaults()
	return &Engine{cfg: cfg}
}

// Analyze computes the full indicator set for a chronologically ordered
// price series (oldest first) and fuses the per-indicator signals into an
// overall signal. Indicators whose window exceeds the available history
// report a neutral signal instead of failing.
func (e *Engine) Analyze(symbol string, prices []float64) (*models.TechnicalSignalSet, error) {
	if len(prices) < 2 {
		return nil, ErrInsufficientHistory
	}
	lastPrice := prices[len(prices)-1]

	set := &models.TechnicalSignalSet{
		Symbol: symbol,
		Signals: models.IndicatorSignals{
			SMATrend:      models.SignalNeutral,
			MACD:          models.SignalNeutral,
			MACDHistogram: models.SignalNeutral,
			RSI:           models.SignalNeutral,
			Bollinger:     models.SignalNeutral,
		},
	}

	if short, err := sma(prices, e.cfg.ShortSMA); err == nil {
		if long, err := sma(prices, e.cfg.LongSMA); err == nil {
			set.Values.SMAShort = short
			set.Values.SMALong = long
			switch {
			case short > long:
				set.Signals.SMATrend = models.SignalBullish
			case short < long:
				set.Signals.SMATrend = models.SignalBearish
			}
		}
	}

	if len(prices) >= macdSlowSpan {
		macd, signal, hist := macdSeries(prices)
		last := len(prices) - 1
		ema12 := emaSeries(prices, 12)
		ema26 := emaSeries(prices, 26)
		set.Values.EMA12 = ema12[last]
		set.Values.EMA26 = ema26[last]
		set.Values.MACD = macd[last]
		set.Values.MACDSignal = signal[last]
		set.Values.MACDHistogram = hist[last]

		switch {
		case macd[last] > signal[last]:
			set.Signals.MACD = models.SignalBullish
		case macd[last] < signal[last]:
			set.Signals.MACD = models.SignalBearish
		}

		if math.Abs(hist[last]) > histogramNeutralFrac*lastPrice {
			if hist[last] > 0 {
				set.Signals.MACDHistogram = models.SignalBullish
			} else {
				set.Signals.MACDHistogram = models.SignalBearish
			}
		}
	}

	if v, err := rsi(prices, e.cfg.RSIPeriod); err == nil {
		set.Values.RSI = v
		switch {
		case v >= rsiOverbought:
			set.Signals.RSI = models.SignalOverbought
		case v <= rsiOversold:
			set.Signals.RSI = models.SignalOversold
		}
	}

	if upper, mid, lower, err := bollinger(prices, e.cfg.BollingerWindow); err == nil {
		set.Values.BollingerUpper = upper
		set.Values.BollingerMid = mid
		set.Values.BollingerLower = lower
		switch {
		case lastPrice > upper:
			set.Signals.Bollinger = models.SignalOverbought
		case lastPrice < lower:
			set.Signals.Bollinger = models.SignalOversold
		}
	}

	if support, resistance, err := levels(prices, e.cfg.LevelLookback); err == nil {
		set.Values.Support = support
		set.Values.Resistance = resistance
	}

	net := netVote(set.Signals)
	set.Factor = net / totalWeight
	set.Overall = models.OverallSignal{
		Signal:   overallLabel(net),
		Strength: math.Abs(net) / totalWeight,
	}
	return set, nil
}

// netVote sums the directional votes. Overbought counts bearish and
// oversold counts bullish, reflecting mean reversion.
func netVote(s models.IndicatorSignals) float64 {
	net := 0.0
	net += directional(s.SMATrend) * smaWeight
	net += directional(s.MACD) * macdWeight
	net += directional(s.MACDHistogram) * histogramWeight
	net += directional(s.RSI) * rsiWeight
	net += directional(s.Bollinger) * bollingerWeight
	return net
}

func directional(s models.Signal) float64 {
	switch s {
	case models.SignalBullish, models.SignalOversold:
		return 1
	case models.SignalBearish, models.SignalOverbought:
		return -1
	default:
		return 0
	}
}

func overallLabel(net float64) models.Signal {
	switch {
	case net > 0:
		return models.SignalBullish
	case net < 0:
		return models.SignalBearish
	default:
		return models.SignalNeutral
	}
}
