package metric

import (
	"math"
	"time"

	"gonum.org/v1/gonum/stat"
)

const (
	// TradingDaysPerYear annualizes daily figures
	TradingDaysPerYear = 252

	// DefaultRiskFreeRate is the annual risk-free rate used by Sharpe
	DefaultRiskFreeRate = 0.01
)

// Mean calculates the arithmetic mean of the values.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return stat.Mean(values, nil)
}

// Payoff calculates the ratio of average wins to average losses.
// Returns the absolute value of the ratio.
func Payoff(values []float64) float64 {
	wins, losses := partitionResults(values)

	if len(losses) == 0 || len(wins) == 0 {
		return math.NaN()
	}

	avgLoss := stat.Mean(losses, nil)
	if avgLoss == 0 {
		return math.NaN()
	}

	return math.Abs(stat.Mean(wins, nil) / avgLoss)
}

// ProfitFactor calculates the ratio of total profits to total losses.
// NaN when there are no losses.
func ProfitFactor(values []float64) float64 {
	var totalWins, totalLosses float64

	for _, value := range values {
		if value >= 0 {
			totalWins += value
		} else {
			totalLosses += value
		}
	}

	if totalLosses == 0 {
		return math.NaN()
	}

	return math.Abs(totalWins / totalLosses)
}

// WinRate is the share of non-negative values, in [0, 1]
func WinRate(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	wins, _ := partitionResults(values)
	return float64(len(wins)) / float64(len(values))
}

func partitionResults(values []float64) (wins []float64, losses []float64) {
	for _, value := range values {
		if value >= 0 {
			wins = append(wins, value)
		} else {
			losses = append(losses, math.Abs(value))
		}
	}
	return wins, losses
}

// DailyReturns groups an equity curve by calendar day, in the zone of each
// timestamp, and returns the change of each day's closing value over the
// previous day's. The first day is measured against initial.
func DailyReturns(initial float64, times []time.Time, values []float64) []float64 {
	n := min(len(times), len(values))
	if n == 0 {
		return nil
	}

	returns := make([]float64, 0)
	previous := initial

	for i := 0; i < n; i++ {
		lastOfDay := i == n-1 || !sameDay(times[i], times[i+1])
		if !lastOfDay {
			continue
		}

		if previous != 0 {
			returns = append(returns, values[i]/previous-1)
		} else {
			returns = append(returns, 0)
		}
		previous = values[i]
	}

	return returns
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// Sharpe computes the annualized Sharpe ratio of periodic returns. The annual
// riskFree rate is converted to the period rate, excess returns use the
// population standard deviation, and the ratio is scaled by sqrt(periods).
// Returns NaN when there are no returns or they do not vary.
func Sharpe(returns []float64, riskFree float64, periods int) float64 {
	if len(returns) == 0 || periods <= 0 {
		return math.NaN()
	}

	rate := math.Pow(1+riskFree, 1/float64(periods)) - 1

	excess := make([]float64, len(returns))
	for i, r := range returns {
		excess[i] = r - rate
	}

	mean := stat.Mean(excess, nil)
	std := math.Sqrt(stat.PopVariance(excess, nil))
	if std == 0 || math.IsNaN(std) {
		return math.NaN()
	}

	return mean / std * math.Sqrt(float64(periods))
}

// MaxDrawdown returns the largest peak-to-trough decline of values as a
// percentage of the peak, with the indexes of that peak and trough. A curve
// that never declines yields zero with both indexes at 0.
func MaxDrawdown(values []float64) (drawdown float64, peakIdx, troughIdx int) {
	if len(values) == 0 {
		return 0, 0, 0
	}

	peak, currentPeak := values[0], 0
	for i, value := range values {
		if value > peak {
			peak, currentPeak = value, i
			continue
		}
		if peak <= 0 {
			continue
		}
		if dd := (peak - value) / peak * 100; dd > drawdown {
			drawdown, peakIdx, troughIdx = dd, currentPeak, i
		}
	}

	return drawdown, peakIdx, troughIdx
}
