package technical

import (
	"errors"
	"math"
)

var errNotEnoughData = errors.New("not enough data")

// sma computes the simple moving average of the trailing window.
func sma(prices []float64, period int) (float64, error) {
	if period <= 0 {
		return 0, errors.New("period must be positive")
	}
	if len(prices) < period {
		return 0, errNotEnoughData
	}
	sum := 0.0
	for i := len(prices) - period; i < len(prices); i++ {
		sum += prices[i]
	}
	return sum / float64(period), nil
}

// emaSeries computes the exponential moving average over the whole series
// with smoothing 2/(span+1), seeded at the first price.
func emaSeries(prices []float64, span int) []float64 {
	if len(prices) == 0 {
		return nil
	}
	alpha := 2.0 / (float64(span) + 1.0)
	out := make([]float64, len(prices))
	out[0] = prices[0]
	for i := 1; i < len(prices); i++ {
		out[i] = alpha*prices[i] + (1-alpha)*out[i-1]
	}
	return out
}

// macdSeries returns the MACD line, its signal line and the histogram.
func macdSeries(prices []float64) (macd, signal, hist []float64) {
	if len(prices) == 0 {
		return nil, nil, nil
	}
	ema12 := emaSeries(prices, 12)
	ema26 := emaSeries(prices, 26)
	macd = make([]float64, len(prices))
	for i := range prices {
		macd[i] = ema12[i] - ema26[i]
	}
	signal = emaSeries(macd, 9)
	hist = make([]float64, len(prices))
	for i := range prices {
		hist[i] = macd[i] - signal[i]
	}
	return macd, signal, hist
}

// rsi computes the Wilder-smoothed RSI over the given period. Requires at
// least period+1 prices.
func rsi(prices []float64, period int) (float64, error) {
	if period <= 0 {
		return 0, errors.New("period must be positive")
	}
	if len(prices) < period+1 {
		return 0, errNotEnoughData
	}

	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		change := prices[i] - prices[i-1]
		if change > 0 {
			avgGain += change
		} else {
			avgLoss -= change
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)

	for i := period + 1; i < len(prices); i++ {
		change := prices[i] - prices[i-1]
		gain, loss := 0.0, 0.0
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
	}

	if avgLoss == 0 {
		return 100.0, nil
	}
	rs := avgGain / avgLoss
	return 100.0 - 100.0/(1.0+rs), nil
}

// bollinger computes the middle band (SMA), and upper/lower bands at
// ±2 standard deviations over the window.
func bollinger(prices []float64, window int) (upper, mid, lower float64, err error) {
	mid, err = sma(prices, window)
	if err != nil {
		return 0, 0, 0, err
	}
	variance := 0.0
	for i := len(prices) - window; i < len(prices); i++ {
		d := prices[i] - mid
		variance += d * d
	}
	stdev := math.Sqrt(variance / float64(window))
	return mid + 2*stdev, mid, mid - 2*stdev, nil
}

// levels returns the local minimum (support) and maximum (resistance) over
// the trailing lookback window.
func levels(prices []float64, lookback int) (support, resistance float64, err error) {
	if len(prices) == 0 {
		return 0, 0, errNotEnoughData
	}
	start := len(prices) - lookback
	if start < 0 {
		start = 0
	}
	support = math.Inf(1)
	resistance = math.Inf(-1)
	for i := start; i < len(prices); i++ {
		if prices[i] < support {
			support = prices[i]
		}
		if prices[i] > resistance {
			resistance = prices[i]
		}
	}
	return support, resistance, nil
}
