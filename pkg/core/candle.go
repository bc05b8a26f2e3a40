package core

import (
	"fmt"
	"math"
	"strconv"
	"time"
)

// Candle represents a trading candle with OHLCV data
type Candle struct {
	Pair      string    `json:"pair"`
	Time      time.Time `json:"time"`
	UpdatedAt time.Time `json:"updated_at"`
	Open      float64   `json:"open"`
	Close     float64   `json:"close"`
	Low       float64   `json:"low"`
	High      float64   `json:"high"`
	Volume    float64   `json:"volume"`
	Complete  bool      `json:"complete"`
}

// Validate reports whether every price field is a finite, strictly positive number
func (c Candle) Validate() error {
	prices := map[string]float64{"open": c.Open, "high": c.High, "low": c.Low, "close": c.Close}
	for name, value := range prices {
		if math.IsNaN(value) || math.IsInf(value, 0) || value <= 0 {
			return fmt.Errorf("%w: %s=%v", ErrInvalidData, name, value)
		}
	}

	if math.IsNaN(c.Volume) || c.Volume < 0 {
		return fmt.Errorf("%w: volume=%v", ErrInvalidData, c.Volume)
	}

	return nil
}

// ToSlice converts a candle to a string slice for serialization
// with the specified decimal precision
func (c Candle) ToSlice(precision int) []string {
	return []string{
		fmt.Sprintf("%d", c.Time.Unix()),
		strconv.FormatFloat(c.Open, 'f', precision, 64),
		strconv.FormatFloat(c.Close, 'f', precision, 64),
		strconv.FormatFloat(c.Low, 'f', precision, 64),
		strconv.FormatFloat(c.High, 'f', precision, 64),
		strconv.FormatFloat(c.Volume, 'f', precision, 64),
	}
}

// ValidateCandles rejects a whole series when any bar has a null, zero or
// negative price, or when bars are not strictly increasing in time.
func ValidateCandles(candles []Candle) error {
	for i, candle := range candles {
		if err := candle.Validate(); err != nil {
			return fmt.Errorf("%s bar %d (%s): %w", candle.Pair, i, candle.Time.Format(time.RFC3339), err)
		}

		if i > 0 && !candle.Time.After(candles[i-1].Time) {
			return fmt.Errorf("%w: %s bar %d (%s) out of order", ErrInvalidData, candle.Pair, i,
				candle.Time.Format(time.RFC3339))
		}
	}

	return nil
}
