package martinrun

import (
	"bytes"
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raykavin/martinrun/internal/config"
	"github.com/raykavin/martinrun/pkg/batch"
	"github.com/raykavin/martinrun/pkg/core"
	"github.com/raykavin/martinrun/pkg/exchange"
	"github.com/raykavin/martinrun/pkg/logger"
	"github.com/raykavin/martinrun/pkg/regime"
	"github.com/raykavin/martinrun/pkg/storage"
)

// flatFeeder serves flat daily bars and a minute series that rises after an
// hour of flat prices
type flatFeeder struct {
	calls int
}

func (f *flatFeeder) AssetsInfo(pair string) core.AssetInfo { return exchange.DefaultAssetInfo(pair) }

func (f *flatFeeder) CandlesByPeriod(_ context.Context, pair, timeframe string, start, end time.Time) ([]core.Candle, error) {
	f.calls++

	step := time.Minute
	if timeframe == regime.Timeframe {
		step = 24 * time.Hour
	}

	var candles []core.Candle
	for i, t := 0, start; !t.After(end) && i < 120; i, t = i+1, t.Add(step) {
		price := 100.0
		if step == time.Minute && i >= 60 {
			price += float64(i - 59)
		}
		candles = append(candles, core.Candle{
			Pair: pair, Time: t,
			Open: price, High: price + 1, Low: price - 1, Close: price, Volume: 1, Complete: true,
		})
	}
	return candles, nil
}

type recordingNotifier struct {
	messages []string
}

func (r *recordingNotifier) Notify(text string) { r.messages = append(r.messages, text) }

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()

	input := filepath.Join(dir, "entries.json")
	require.NoError(t, os.WriteFile(input, []byte(`{"2024-03-18": "PEPEFDUSD"}`), 0o600))

	return &config.Config{
		Input:      input,
		Output:     filepath.Join(dir, "report.csv"),
		Capital:    1000,
		Commission: 0.001,
		StopAware:  true,
		Timezone:   "UTC",
	}
}

func TestBacktester_Run(t *testing.T) {
	cfg := testConfig(t)
	feeder := &flatFeeder{}
	notifier := &recordingNotifier{}
	summary := &bytes.Buffer{}

	bt, err := NewBacktester(context.Background(), cfg,
		WithFeeder(feeder),
		WithNotifier(notifier),
		WithOutput(summary),
		WithProgressOutput(nil),
		WithLogger(logger.Nop()),
	)
	require.NoError(t, err)
	defer bt.Close()

	outcomes, err := bt.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, outcomes, 1)

	assert.Equal(t, batch.StatusOK, outcomes[0].Status)
	assert.Equal(t, regime.Ranging, outcomes[0].Regime)
	assert.Equal(t, "multifactor", outcomes[0].Variant)
	assert.Equal(t, 2, feeder.calls)

	file, err := os.Open(cfg.Output)
	require.NoError(t, err)
	defer file.Close()

	rows, err := csv.NewReader(file).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, batch.Header(true), rows[0])
	assert.Equal(t, "PEPEFDUSD", rows[1][0])

	require.Len(t, notifier.messages, 1)
	assert.Contains(t, notifier.messages[0], "Ranging")
	assert.Contains(t, summary.String(), "TOTAL")
}

func TestBacktester_CachesWindows(t *testing.T) {
	cfg := testConfig(t)
	feeder := &flatFeeder{}

	db, err := storage.FromMemory()
	require.NoError(t, err)
	defer db.Close()

	bt, err := NewBacktester(context.Background(), cfg,
		WithFeeder(feeder),
		WithStorage(db),
		WithOutput(&bytes.Buffer{}),
		WithProgressOutput(nil),
		WithLogger(logger.Nop()),
	)
	require.NoError(t, err)

	_, err = bt.Run(context.Background())
	require.NoError(t, err)
	_, err = bt.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, feeder.calls)
	// the caller owns the storage
	require.NoError(t, bt.Close())
	_, err = db.Keys()
	require.NoError(t, err)
}

func TestBacktester_Classify(t *testing.T) {
	bt, err := NewBacktester(context.Background(), testConfig(t),
		WithFeeder(&flatFeeder{}),
		WithLogger(logger.Nop()),
	)
	require.NoError(t, err)

	r, stats, err := bt.Classify(context.Background(), "PEPEFDUSD", time.Date(2024, 3, 18, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, regime.Ranging, r)
	assert.InDelta(t, 100, stats.PastCloseMean, 1e-9)
}

func TestBacktester_StopsOnCancel(t *testing.T) {
	bt, err := NewBacktester(context.Background(), testConfig(t),
		WithFeeder(&flatFeeder{}),
		WithOutput(&bytes.Buffer{}),
		WithProgressOutput(nil),
		WithLogger(logger.Nop()),
	)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	outcomes, err := bt.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, outcomes)
}
