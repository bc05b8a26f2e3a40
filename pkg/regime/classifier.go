package regime

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/raykavin/martinrun/pkg/core"
	"github.com/raykavin/martinrun/pkg/indicator"
	"github.com/raykavin/martinrun/pkg/logger"
	"gonum.org/v1/gonum/stat"
)

const (
	// LookbackDays is how far before the target date daily bars are requested
	LookbackDays = 51
	// PastWeekBars is the number of bars, ending on the target date, that form the recent window
	PastWeekBars = 7
	// SMAPeriod and ATRPeriod are the rolling window sizes
	SMAPeriod = 5
	ATRPeriod = 5

	Timeframe = "1d"
)

// Classifier fetches daily bars and labels a symbol's regime on a date
type Classifier struct {
	feeder   core.Feeder
	location *time.Location
	log      logger.Logger
}

// NewClassifier creates a classifier. A nil location means UTC.
func NewClassifier(feeder core.Feeder, location *time.Location, log logger.Logger) *Classifier {
	if location == nil {
		location = time.UTC
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Classifier{feeder: feeder, location: location, log: log}
}

// Predict labels symbol on date using daily bars from date-51d to date
func (c *Classifier) Predict(ctx context.Context, symbol string, date time.Time) (Regime, Stats, error) {
	day := truncateDay(date, c.location)
	start := day.AddDate(0, 0, -LookbackDays)
	end := day.Add(24*time.Hour - time.Millisecond)

	candles, err := c.feeder.CandlesByPeriod(ctx, symbol, Timeframe, start, end)
	if err != nil {
		return Unknown, Stats{}, fmt.Errorf("fetch daily bars for %s: %w", symbol, err)
	}

	if err := core.ValidateCandles(candles); err != nil {
		return Unknown, Stats{}, err
	}

	stats, err := Compute(candles, day, c.location)
	if err != nil {
		return Unknown, Stats{}, fmt.Errorf("%s on %s: %w", symbol, day.Format(time.DateOnly), err)
	}

	r := Classify(stats)
	c.log.WithFields(map[string]any{
		"symbol":          symbol,
		"date":            day.Format(time.DateOnly),
		"regime":          r.String(),
		"past_atr_mean":   stats.PastATRMean,
		"atr_mean":        stats.ATRMeanAll,
		"past_close_mean": stats.PastCloseMean,
		"sma":             stats.SMAAtDate,
	}).Debug("regime classified")

	return r, stats, nil
}

// Compute derives the classification aggregates from an ordered series of
// daily bars. Bars dated after the target day are ignored.
func Compute(candles []core.Candle, date time.Time, location *time.Location) (Stats, error) {
	if location == nil {
		location = time.UTC
	}
	day := truncateDay(date, location)

	target := -1
	for i, candle := range candles {
		bar := truncateDay(candle.Time, location)
		if bar.Equal(day) {
			target = i
		}
		if bar.After(day) {
			break
		}
	}
	if target < 0 {
		return Stats{}, ErrInsufficientData
	}

	window := candles[:target+1]
	closes := make([]float64, len(window))
	highs := make([]float64, len(window))
	lows := make([]float64, len(window))
	for i, candle := range window {
		closes[i], highs[i], lows[i] = candle.Close, candle.High, candle.Low
	}

	sma := indicator.SMA(closes, SMAPeriod)
	atr := indicator.ATR(highs, lows, closes, ATRPeriod)

	from := max(0, len(window)-PastWeekBars)

	return Stats{
		PastATRMean:   mean(core.Defined(atr[from:])),
		ATRMeanAll:    mean(core.Defined(atr)),
		PastCloseMean: stat.Mean(closes[from:], nil),
		SMAAtDate:     sma[target],
	}, nil
}

func truncateDay(t time.Time, location *time.Location) time.Time {
	t = t.In(location)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, location)
}

// mean of an empty slice is NaN, so every comparison in Classify is false
// and the week falls through to Ranging.
func mean(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	return stat.Mean(values, nil)
}
