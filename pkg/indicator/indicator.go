// Package indicator computes the technical series used by the regime
// classifier and the martingale strategies. Positions inside an indicator's
// lookback window are reported as NaN.
package indicator

import (
	"math"

	"github.com/markcheno/go-talib"
)

// MACD calculates Moving Average Convergence/Divergence.
// Returns MACD, signal and histogram.
func MACD(input []float64, fastPeriod, slowPeriod, signalPeriod int) ([]float64, []float64, []float64) {
	macd, signal, hist := talib.Macd(input, fastPeriod, slowPeriod, signalPeriod)
	lookback := slowPeriod + signalPeriod - 2
	return undefine(macd, lookback), undefine(signal, lookback), undefine(hist, lookback)
}

// RSI calculates the Relative Strength Index
func RSI(input []float64, period int) []float64 {
	return undefine(talib.Rsi(input, period), period)
}

// SMA calculates the Simple Moving Average
func SMA(input []float64, period int) []float64 {
	return undefine(talib.Sma(input, period), period-1)
}

// TrueRange returns max(high-low, |high-prevClose|, |low-prevClose|) per bar.
// The first bar has no previous close and uses high-low.
func TrueRange(high, low, close []float64) []float64 {
	tr := make([]float64, len(close))
	for i := range close {
		tr[i] = high[i] - low[i]
		if i == 0 {
			continue
		}
		prev := close[i-1]
		tr[i] = math.Max(tr[i], math.Max(math.Abs(high[i]-prev), math.Abs(low[i]-prev)))
	}
	return tr
}

// ATR is the simple rolling mean of TrueRange over period bars. The first
// period-1 values are undefined.
func ATR(high, low, close []float64, period int) []float64 {
	return SMA(TrueRange(high, low, close), period)
}

// undefine replaces the first lookback values with NaN. talib leaves them
// as zero, which is indistinguishable from a real reading.
func undefine(values []float64, lookback int) []float64 {
	for i := 0; i < lookback && i < len(values); i++ {
		values[i] = math.NaN()
	}
	return values
}
