package exchange

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raykavin/martinrun/pkg/core"
	"github.com/raykavin/martinrun/pkg/storage"
)

type countingFeeder struct {
	candles []core.Candle
	err     error
	calls   int
}

func (f *countingFeeder) AssetsInfo(pair string) core.AssetInfo { return DefaultAssetInfo(pair) }

func (f *countingFeeder) CandlesByPeriod(_ context.Context, _, _ string, _, _ time.Time) ([]core.Candle, error) {
	f.calls++
	return f.candles, f.err
}

func TestCachedFeed_HitAfterMiss(t *testing.T) {
	store, err := storage.FromMemory()
	require.NoError(t, err)
	defer store.Close()

	source := &countingFeeder{candles: []core.Candle{candleAt(0, 10), candleAt(1, 11)}}
	feed := NewCachedFeed(source, store, nil)

	start := time.Date(2024, 3, 19, 0, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)

	first, err := feed.CandlesByPeriod(context.Background(), "BTCUSDT", "1m", start, end)
	require.NoError(t, err)
	second, err := feed.CandlesByPeriod(context.Background(), "BTCUSDT", "1m", start, end)
	require.NoError(t, err)

	assert.Equal(t, 1, source.calls)
	require.Len(t, second, 2)
	assert.True(t, first[1].Time.Equal(second[1].Time))
	assert.Equal(t, first[1].Close, second[1].Close)

	_, err = feed.CandlesByPeriod(context.Background(), "BTCUSDT", "1m", start, end.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 2, source.calls)

	assert.Equal(t, "BTC", feed.AssetsInfo("BTCUSDT").BaseAsset)
}

func TestCachedFeed_InvalidWindowNotStored(t *testing.T) {
	store, err := storage.FromMemory()
	require.NoError(t, err)
	defer store.Close()

	bad := candleAt(0, 10)
	bad.Low = 0
	source := &countingFeeder{candles: []core.Candle{bad}}
	feed := NewCachedFeed(source, store, nil)

	start := time.Date(2024, 3, 19, 0, 0, 0, 0, time.UTC)
	_, err = feed.CandlesByPeriod(context.Background(), "BTCUSDT", "1m", start, start.Add(time.Hour))
	assert.ErrorIs(t, err, core.ErrInvalidData)

	keys, err := store.Keys()
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestCachedFeed_SourceError(t *testing.T) {
	store, err := storage.FromMemory()
	require.NoError(t, err)
	defer store.Close()

	boom := errors.New("boom")
	feed := NewCachedFeed(&countingFeeder{err: boom}, store, nil)

	start := time.Date(2024, 3, 19, 0, 0, 0, 0, time.UTC)
	_, err = feed.CandlesByPeriod(context.Background(), "BTCUSDT", "1m", start, start.Add(time.Hour))
	assert.ErrorIs(t, err, boom)
}
