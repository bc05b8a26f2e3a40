package backtesting

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raykavin/martinrun/pkg/core"
	"github.com/raykavin/martinrun/pkg/exchange"
)

type hourlyFeeder struct {
	calls int
	err   error
}

func (f *hourlyFeeder) AssetsInfo(pair string) core.AssetInfo { return exchange.DefaultAssetInfo(pair) }

func (f *hourlyFeeder) CandlesByPeriod(_ context.Context, pair, _ string, start, end time.Time) ([]core.Candle, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}

	var candles []core.Candle
	for t := start; !t.After(end); t = t.Add(time.Hour) {
		price := float64(100 + t.Hour())
		candles = append(candles, core.Candle{
			Pair: pair, Time: t,
			Open: price, High: price + 1, Low: price - 1, Close: price, Volume: 10, Complete: true,
		})
	}
	return candles, nil
}

func TestDownloader_Download(t *testing.T) {
	feeder := &hourlyFeeder{}
	output := filepath.Join(t.TempDir(), "btc.csv")
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	err := NewDownloader(feeder).Download(context.Background(), "BTCUSDT", "1h", output,
		WithInterval(start, start.AddDate(0, 0, 1)))
	require.NoError(t, err)
	assert.Equal(t, 1, feeder.calls)

	// the file is readable by the CSV source
	feed, err := exchange.NewCSVFeed("1h", exchange.PairFeed{Pair: "BTCUSDT", File: output, Timeframe: "1h"})
	require.NoError(t, err)

	candles, err := feed.CandlesByPeriod(context.Background(), "BTCUSDT", "1h", start, start.AddDate(0, 0, 1))
	require.NoError(t, err)
	require.Len(t, candles, 25)
	assert.True(t, candles[0].Time.Equal(start))
	assert.InDelta(t, 105.0, candles[5].Close, 1e-9)
	assert.InDelta(t, 106.0, candles[5].High, 1e-9)
}

func TestDownloader_FeederError(t *testing.T) {
	feeder := &hourlyFeeder{err: errors.New("boom")}
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	err := NewDownloader(feeder).Download(context.Background(), "BTCUSDT", "1h",
		filepath.Join(t.TempDir(), "btc.csv"), WithInterval(start, start.AddDate(0, 0, 1)))
	require.Error(t, err)
}

func TestDownloader_InvalidTimeframe(t *testing.T) {
	err := NewDownloader(&hourlyFeeder{}).Download(context.Background(), "BTCUSDT", "fortnight",
		filepath.Join(t.TempDir(), "btc.csv"), WithDays(1))
	require.Error(t, err)
}
