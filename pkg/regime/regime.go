// Package regime labels a trading day as one of four coarse market regimes
// from a short window of daily bars.
package regime

import (
	"errors"
	"fmt"
	"strings"
)

// Regime is the market condition attached to a (symbol, date) pair
type Regime int

const (
	Unknown Regime = iota
	Uptrend
	Ranging
	HighVolatility
	Downtrend
)

// ErrInsufficientData is returned when the target date has no daily bar
var ErrInsufficientData = errors.New("insufficient data for prediction")

// HighVolatilityFactor is how far the past-week ATR mean must exceed the
// window mean before the week is considered highly volatile.
const HighVolatilityFactor = 1.5

var names = map[Regime]string{
	Unknown:        "Unknown",
	Uptrend:        "Uptrend",
	Ranging:        "Ranging",
	HighVolatility: "High Volatility",
	Downtrend:      "Downtrend",
}

func (r Regime) String() string {
	if name, ok := names[r]; ok {
		return name
	}
	return fmt.Sprintf("Regime(%d)", int(r))
}

// Parse converts a label such as "High Volatility" or "high_volatility" back to a Regime
func Parse(s string) (Regime, error) {
	norm := strings.ToLower(strings.NewReplacer("_", " ", "-", " ").Replace(strings.TrimSpace(s)))
	for r, name := range names {
		if r != Unknown && strings.ToLower(name) == norm {
			return r, nil
		}
	}
	return Unknown, fmt.Errorf("unknown regime %q", s)
}

// All returns the four classifiable regimes in a stable order
func All() []Regime {
	return []Regime{Uptrend, Ranging, HighVolatility, Downtrend}
}

// Stats are the aggregates a classification is computed from
type Stats struct {
	PastATRMean   float64
	ATRMeanAll    float64
	PastCloseMean float64
	SMAAtDate     float64
}

// Classify applies the regime rules in order; the first match wins.
func Classify(s Stats) Regime {
	switch {
	case s.PastATRMean > s.ATRMeanAll*HighVolatilityFactor:
		return HighVolatility
	case s.PastCloseMean > s.SMAAtDate && s.PastATRMean < s.ATRMeanAll:
		return Uptrend
	case s.PastCloseMean < s.SMAAtDate && s.PastATRMean > s.ATRMeanAll:
		return Downtrend
	default:
		return Ranging
	}
}
