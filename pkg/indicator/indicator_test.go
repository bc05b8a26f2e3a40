package indicator

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTrueRange(t *testing.T) {
	high := []float64{10, 12, 11}
	low := []float64{8, 11, 7}
	closes := []float64{9, 11.5, 8}

	tr := TrueRange(high, low, closes)
	require.Equal(t, []float64{2, 3, 4.5}, tr)
}

func TestATR(t *testing.T) {
	high := []float64{2, 2, 2, 2, 2, 2}
	low := []float64{1, 1, 1, 1, 1, 1}
	closes := []float64{1.5, 1.5, 1.5, 1.5, 1.5, 1.5}

	atr := ATR(high, low, closes, 5)
	require.Len(t, atr, 6)
	for i := 0; i < 4; i++ {
		require.True(t, math.IsNaN(atr[i]), "index %d", i)
	}
	require.InDelta(t, 1.0, atr[4], 1e-9)
	require.InDelta(t, 1.0, atr[5], 1e-9)
}

func TestSMA(t *testing.T) {
	sma := SMA([]float64{1, 2, 3, 4, 5, 6}, 5)
	require.True(t, math.IsNaN(sma[3]))
	require.InDelta(t, 3.0, sma[4], 1e-9)
	require.InDelta(t, 4.0, sma[5], 1e-9)
}

func TestMACD_Lookback(t *testing.T) {
	input := make([]float64, 60)
	for i := range input {
		input[i] = 100 + float64(i)
	}

	macd, signal, _ := MACD(input, 12, 26, 9)
	require.True(t, math.IsNaN(macd[32]))
	require.False(t, math.IsNaN(macd[33]))
	require.False(t, math.IsNaN(signal[33]))
	require.Greater(t, macd[59], 0.0)
}

func TestRSI(t *testing.T) {
	input := make([]float64, 30)
	for i := range input {
		input[i] = 100 - float64(i)
	}

	rsi := RSI(input, 14)
	require.True(t, math.IsNaN(rsi[13]))
	require.Less(t, rsi[29], 40.0)
}
