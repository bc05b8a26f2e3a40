package core

import (
	"context"
	"time"
)

// Feeder supplies historical bars for a pair and timeframe
type Feeder interface {
	AssetsInfo(pair string) AssetInfo
	CandlesByPeriod(ctx context.Context, pair, timeframe string, start, end time.Time) ([]Candle, error)
}

// Broker is the order-side view a strategy gets of its account
type Broker interface {
	Account() (Account, error)
	Position(pair string) (asset, quote float64, err error)
	AveragePrice(pair string) float64
	Equity() float64
	CreateOrderMarket(side SideType, pair string, size float64) (Order, error)
}

type Strategy interface {
	// Timeframe is the time interval in which the strategy will be executed. eg: 1m, 1h, 1d
	Timeframe() string
	// WarmupPeriod is the number of bars required before OnCandle is called.
	WarmupPeriod() int
	// Indicators will be executed for each new candle, in order to fill indicators before `OnCandle` function is called.
	Indicators(df *Dataframe)
	// OnCandle will be executed for each new candle, after indicators are filled.
	OnCandle(df *Dataframe, broker Broker)
}

type Notifier interface {
	Notify(string)
}

// CandleStorage caches candle windows keyed by pair, timeframe and range
type CandleStorage interface {
	Candles(key string) ([]Candle, bool, error)
	SaveCandles(key string, candles []Candle) error
	Close() error
}
