package exchange

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raykavin/martinrun/pkg/core"
)

func writeCSV(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "candles.csv")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o600))
	return path
}

// hourly candles for two full days plus a partial third one
func hourlyLines(header bool) []string {
	var lines []string
	if header {
		lines = append(lines, "time,open,close,low,high,volume")
	}
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 50; i++ {
		ts := start.Add(time.Duration(i) * time.Hour).Unix()
		price := float64(100 + i)
		lines = append(lines, fmt.Sprintf("%d,%.1f,%.1f,%.1f,%.1f,1", ts, price, price+0.5, price-1, price+1))
	}
	return lines
}

func TestCSVFeed_Resample(t *testing.T) {
	path := writeCSV(t, hourlyLines(true)...)

	feed, err := NewCSVFeed("1d", PairFeed{Pair: "BTCUSDT", File: path, Timeframe: "1h"})
	require.NoError(t, err)

	hourly := feed.CandlePairTimeFrame["BTCUSDT--1h"]
	require.Len(t, hourly, 50)

	daily := feed.CandlePairTimeFrame["BTCUSDT--1d"]
	require.Len(t, daily, 2)

	first := daily[0]
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), first.Time)
	assert.Equal(t, 100.0, first.Open)
	assert.Equal(t, 123.5, first.Close)
	assert.Equal(t, 99.0, first.Low)
	assert.Equal(t, 124.0, first.High)
	assert.Equal(t, 24.0, first.Volume)
	assert.True(t, first.Complete)

	assert.Equal(t, 124.0, daily[1].Open)
	assert.Equal(t, 147.5, daily[1].Close)
}

func TestCSVFeed_NoHeader(t *testing.T) {
	path := writeCSV(t, hourlyLines(false)...)

	feed, err := NewCSVFeed("1h", PairFeed{Pair: "BTCUSDT", File: path, Timeframe: "1h"})
	require.NoError(t, err)
	assert.Len(t, feed.CandlePairTimeFrame["BTCUSDT--1h"], 50)
}

func TestCSVFeed_MillisecondTimestamps(t *testing.T) {
	path := writeCSV(t,
		"time,open,close,low,high,volume",
		"1710806400000,10,11,9,12,3",
	)

	feed, err := NewCSVFeed("1m", PairFeed{Pair: "BTCUSDT", File: path, Timeframe: "1m"})
	require.NoError(t, err)

	candles := feed.CandlePairTimeFrame["BTCUSDT--1m"]
	require.Len(t, candles, 1)
	assert.Equal(t, time.Date(2024, 3, 19, 0, 0, 0, 0, time.UTC), candles[0].Time)
}

func TestCSVFeed_CandlesByPeriod(t *testing.T) {
	path := writeCSV(t, hourlyLines(true)...)
	feed, err := NewCSVFeed("1d", PairFeed{Pair: "BTCUSDT", File: path, Timeframe: "1h"})
	require.NoError(t, err)

	start := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	end := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	candles, err := feed.CandlesByPeriod(context.Background(), "BTCUSDT", "1h", start, end)
	require.NoError(t, err)
	require.Len(t, candles, 3)
	assert.Equal(t, start, candles[0].Time)
	assert.Equal(t, end, candles[2].Time)

	_, err = feed.CandlesByPeriod(context.Background(), "ETHUSDT", "1h", start, end)
	assert.ErrorIs(t, err, ErrUnknownPair)
}

func TestCSVFeed_InvalidFiles(t *testing.T) {
	missingColumn := writeCSV(t, "time,open,close", "1710806400,1,2")
	_, err := NewCSVFeed("1m", PairFeed{Pair: "BTCUSDT", File: missingColumn, Timeframe: "1m"})
	assert.ErrorIs(t, err, core.ErrInvalidData)

	badNumber := writeCSV(t, "time,open,close,low,high,volume", "1710806400,x,2,1,3,1")
	_, err = NewCSVFeed("1m", PairFeed{Pair: "BTCUSDT", File: badNumber, Timeframe: "1m"})
	assert.Error(t, err)

	_, err = NewCSVFeed("1m", PairFeed{Pair: "BTCUSDT", File: "does-not-exist.csv", Timeframe: "1m"})
	assert.Error(t, err)
}

func TestPeriodBoundaries(t *testing.T) {
	midnight := time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)

	last, err := isLastCandlePeriod(midnight.Add(-time.Minute), "1m", "1d")
	require.NoError(t, err)
	assert.True(t, last)

	first, err := isFirstCandlePeriod(midnight, "1m", "1d")
	require.NoError(t, err)
	assert.True(t, first)

	_, err = isTimeOnPeriodBoundary(midnight, "3d")
	assert.Error(t, err)
}
