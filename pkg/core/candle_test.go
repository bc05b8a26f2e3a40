package core

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCandle_Validate(t *testing.T) {
	base := Candle{Pair: "BTCUSDT", Open: 10, High: 12, Low: 9, Close: 11, Volume: 1}
	require.NoError(t, base.Validate())

	tt := []struct {
		name   string
		mutate func(c *Candle)
	}{
		{"zero open", func(c *Candle) { c.Open = 0 }},
		{"nan close", func(c *Candle) { c.Close = math.NaN() }},
		{"negative low", func(c *Candle) { c.Low = -1 }},
		{"inf high", func(c *Candle) { c.High = math.Inf(1) }},
		{"nan volume", func(c *Candle) { c.Volume = math.NaN() }},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			c := base
			tc.mutate(&c)
			require.ErrorIs(t, c.Validate(), ErrInvalidData)
		})
	}
}

func TestValidateCandles(t *testing.T) {
	now := time.Date(2024, 3, 18, 0, 0, 0, 0, time.UTC)
	candles := []Candle{
		{Pair: "BTCUSDT", Time: now, Open: 1, High: 1, Low: 1, Close: 1},
		{Pair: "BTCUSDT", Time: now.Add(time.Minute), Open: 1, High: 1, Low: 1, Close: 1},
	}
	require.NoError(t, ValidateCandles(candles))

	t.Run("out of order", func(t *testing.T) {
		swapped := []Candle{candles[1], candles[0]}
		require.ErrorIs(t, ValidateCandles(swapped), ErrInvalidData)
	})

	t.Run("zero price", func(t *testing.T) {
		bad := append([]Candle{}, candles...)
		bad[1].Close = 0
		err := ValidateCandles(bad)
		require.ErrorIs(t, err, ErrInvalidData)
		require.Contains(t, err.Error(), "bar 1")
	})
}

func TestDataframe_Sample(t *testing.T) {
	df := Dataframe{
		Pair:     "BTCUSDT",
		Close:    Series[float64]{1, 2, 3, 4},
		Open:     Series[float64]{1, 2, 3, 4},
		High:     Series[float64]{1, 2, 3, 4},
		Low:      Series[float64]{1, 2, 3, 4},
		Volume:   Series[float64]{1, 2, 3, 4},
		Time:     make([]time.Time, 4),
		Metadata: map[string]Series[float64]{"x": {5, 6, 7, 8}},
	}

	sample := df.Sample(2)
	require.Equal(t, 2, sample.Len())
	require.Equal(t, []float64{3, 4}, sample.Close.Values())
	require.Equal(t, []float64{7, 8}, sample.Metadata["x"].Values())
	require.Equal(t, 4, df.Sample(10).Len())
}

func TestDefined(t *testing.T) {
	require.Equal(t, []float64{1, 3}, Defined([]float64{math.NaN(), 1, math.NaN(), 3}))
	require.Empty(t, Defined(nil))
}
