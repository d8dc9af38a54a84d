package models

// Signal is a qualitative indicator label.
type Signal string

const (
	SignalBullish    Signal = "bullish"
	SignalBearish    Signal = "bearish"
	SignalNeutral    Signal = "neutral"
	SignalOverbought Signal = "overbought"
	SignalOversold   Signal = "oversold"
)

// IndicatorValues holds the raw indicator numbers for a symbol. A nil entry
// in pointers would be awkward across the board, so unavailable indicators
// stay at zero and are flagged via the label set instead.
type IndicatorValues struct {
	SMAShort       float64
	SMALong        float64
	EMA12          float64
	EMA26          float64
	MACD           float64
	MACDSignal     float64
	MACDHistogram  float64
	RSI            float64
	BollingerUpper float64
	BollingerMid   float64
	BollingerLower float64
	Support        float64
	Resistance     float64
}

// IndicatorSignals holds the qualitative labels derived per indicator.
type IndicatorSignals struct {
	SMATrend      Signal
	MACD          Signal
	MACDHistogram Signal
	RSI           Signal
	Bollinger     Signal
}

// OverallSignal is the weighted vote across all indicator labels.
type OverallSignal struct {
	Signal   Signal
	Strength float64 // |netVote| / totalIndicators, in [0, 1]
}

// TechnicalSignalSet is the full deterministic output of the technical
// analysis engine for one price series.
type TechnicalSignalSet struct {
	Symbol  string
	Values  IndicatorValues
	Signals IndicatorSignals
	Overall OverallSignal
	// Factor is netVote / totalIndicators, in [-1, 1]. Feeds the
	// prediction blend as the technical factor.
	Factor float64
}
