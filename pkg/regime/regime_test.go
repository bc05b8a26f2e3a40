package regime

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/raykavin/martinrun/pkg/core"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tt := []struct {
		name     string
		stats    Stats
		expected Regime
	}{
		{"high volatility short-circuits", Stats{PastATRMean: 2.0, ATRMeanAll: 1.0, PastCloseMean: 110, SMAAtDate: 100}, HighVolatility},
		{"uptrend", Stats{PastATRMean: 0.5, ATRMeanAll: 1.0, PastCloseMean: 110, SMAAtDate: 100}, Uptrend},
		{"downtrend", Stats{PastATRMean: 1.2, ATRMeanAll: 1.0, PastCloseMean: 90, SMAAtDate: 100}, Downtrend},
		{"downtrend at upper bound", Stats{PastATRMean: 1.5, ATRMeanAll: 1.0, PastCloseMean: 90, SMAAtDate: 100}, Downtrend},
		{"ranging: rising with high atr", Stats{PastATRMean: 1.2, ATRMeanAll: 1.0, PastCloseMean: 110, SMAAtDate: 100}, Ranging},
		{"ranging: falling with low atr", Stats{PastATRMean: 0.5, ATRMeanAll: 1.0, PastCloseMean: 90, SMAAtDate: 100}, Ranging},
		{"ranging: equal close mean", Stats{PastATRMean: 0.5, ATRMeanAll: 1.0, PastCloseMean: 100, SMAAtDate: 100}, Ranging},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.expected, Classify(tc.stats))
		})
	}
}

func TestParse(t *testing.T) {
	for _, r := range All() {
		parsed, err := Parse(r.String())
		require.NoError(t, err)
		require.Equal(t, r, parsed)
	}

	parsed, err := Parse("high_volatility")
	require.NoError(t, err)
	require.Equal(t, HighVolatility, parsed)

	_, err = Parse("sideways")
	require.Error(t, err)
}

type fakeFeeder struct {
	candles []core.Candle
	err     error
	start   time.Time
	end     time.Time
}

func (f *fakeFeeder) AssetsInfo(string) core.AssetInfo { return core.AssetInfo{} }

func (f *fakeFeeder) CandlesByPeriod(_ context.Context, _, _ string, start, end time.Time) ([]core.Candle, error) {
	f.start, f.end = start, end
	return f.candles, f.err
}

func dailyBars(start time.Time, closes ...float64) []core.Candle {
	candles := make([]core.Candle, len(closes))
	for i, c := range closes {
		candles[i] = core.Candle{
			Pair:  "BTCUSDT",
			Time:  start.AddDate(0, 0, i),
			Open:  c,
			High:  c + 1,
			Low:   c - 1,
			Close: c,
		}
	}
	return candles
}

func TestCompute(t *testing.T) {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	candles := dailyBars(start, 10, 11, 12, 13, 14, 15, 16, 17, 18, 19)

	stats, err := Compute(candles, start.AddDate(0, 0, 9), time.UTC)
	require.NoError(t, err)

	// SMA5 on the last bar: mean(15..19)
	require.InDelta(t, 17.0, stats.SMAAtDate, 1e-9)
	// past week: closes 13..19
	require.InDelta(t, 16.0, stats.PastCloseMean, 1e-9)
	// TR is 2 on every bar (high-low=2, gaps of 1 stay below it)
	require.InDelta(t, 2.0, stats.ATRMeanAll, 1e-9)
	require.InDelta(t, 2.0, stats.PastATRMean, 1e-9)
}

func TestCompute_IgnoresBarsAfterDate(t *testing.T) {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	candles := dailyBars(start, 10, 11, 12, 13, 14, 15, 16, 100, 200)

	stats, err := Compute(candles, start.AddDate(0, 0, 6), time.UTC)
	require.NoError(t, err)
	require.InDelta(t, 14.0, stats.SMAAtDate, 1e-9)
}

func TestCompute_MissingDate(t *testing.T) {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	candles := dailyBars(start, 10, 11, 12)

	_, err := Compute(candles, start.AddDate(0, 1, 0), time.UTC)
	require.ErrorIs(t, err, ErrInsufficientData)
}

func TestClassifier_Predict(t *testing.T) {
	date := time.Date(2024, 3, 18, 15, 30, 0, 0, time.UTC)
	day := time.Date(2024, 3, 18, 0, 0, 0, 0, time.UTC)

	closes := make([]float64, 0, 52)
	for i := 0; i < 45; i++ {
		closes = append(closes, 100)
	}
	for i := 0; i < 7; i++ {
		closes = append(closes, 100+float64(i)*3)
	}
	feeder := &fakeFeeder{candles: dailyBars(day.AddDate(0, 0, -51), closes...)}

	classifier := NewClassifier(feeder, nil, nil)
	r, stats, err := classifier.Predict(context.Background(), "BTCUSDT", date)
	require.NoError(t, err)
	require.Equal(t, day.AddDate(0, 0, -LookbackDays), feeder.start)
	require.True(t, feeder.end.After(day))
	require.Equal(t, Classify(stats), r)

	// idempotent for the same inputs
	again, againStats, err := classifier.Predict(context.Background(), "BTCUSDT", date)
	require.NoError(t, err)
	require.Equal(t, r, again)
	require.Equal(t, stats, againStats)
}

func TestClassifier_Predict_Errors(t *testing.T) {
	day := time.Date(2024, 3, 18, 0, 0, 0, 0, time.UTC)

	t.Run("feeder error", func(t *testing.T) {
		boom := errors.New("boom")
		_, _, err := NewClassifier(&fakeFeeder{err: boom}, nil, nil).Predict(context.Background(), "BTCUSDT", day)
		require.ErrorIs(t, err, boom)
	})

	t.Run("missing date", func(t *testing.T) {
		feeder := &fakeFeeder{candles: dailyBars(day.AddDate(0, 0, -10), 10, 11, 12)}
		r, _, err := NewClassifier(feeder, nil, nil).Predict(context.Background(), "BTCUSDT", day)
		require.ErrorIs(t, err, ErrInsufficientData)
		require.Equal(t, Unknown, r)
	})

	t.Run("invalid bars", func(t *testing.T) {
		bars := dailyBars(day.AddDate(0, 0, -2), 10, 11, 12)
		bars[1].Low = 0
		_, _, err := NewClassifier(&fakeFeeder{candles: bars}, nil, nil).Predict(context.Background(), "BTCUSDT", day)
		require.ErrorIs(t, err, core.ErrInvalidData)
	})
}
