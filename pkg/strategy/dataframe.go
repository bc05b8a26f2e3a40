package strategy

import "github.com/raykavin/martinrun/pkg/core"

// DataframeManager maintains the growing dataframe for one pair
type DataframeManager struct {
	dataframe *core.Dataframe
}

// NewDataframeManager creates a new dataframe manager for a given trading pair
func NewDataframeManager(pair string) *DataframeManager {
	return &DataframeManager{
		dataframe: &core.Dataframe{
			Pair:     pair,
			Metadata: make(map[string]core.Series[float64]),
		},
	}
}

// GetSample returns the last size bars
func (dm *DataframeManager) GetSample(size int) core.Dataframe {
	return dm.dataframe.Sample(size)
}

// UpdateDataFrame appends a candle, or replaces the last bar when the candle
// shares its timestamp
func (dm *DataframeManager) UpdateDataFrame(candle core.Candle) {
	df := dm.dataframe
	if last := len(df.Time) - 1; last >= 0 && candle.Time.Equal(df.Time[last]) {
		df.Close[last] = candle.Close
		df.Open[last] = candle.Open
		df.High[last] = candle.High
		df.Low[last] = candle.Low
		df.Volume[last] = candle.Volume
		return
	}

	df.Close = append(df.Close, candle.Close)
	df.Open = append(df.Open, candle.Open)
	df.High = append(df.High, candle.High)
	df.Low = append(df.Low, candle.Low)
	df.Volume = append(df.Volume, candle.Volume)
	df.Time = append(df.Time, candle.Time)
	df.LastUpdate = candle.Time
}

// HasSufficientData checks if the dataframe has enough data based on the warmup period
func (dm *DataframeManager) HasSufficientData(warmupPeriod int) bool {
	return len(dm.dataframe.Close) >= warmupPeriod
}

// IsLateCandle checks if a candle is older than the latest one in the dataframe
func (dm *DataframeManager) IsLateCandle(candle core.Candle) bool {
	return len(dm.dataframe.Time) > 0 && candle.Time.Before(dm.dataframe.Time[len(dm.dataframe.Time)-1])
}
