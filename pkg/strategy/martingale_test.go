package strategy

import (
	"errors"
	"testing"
	"time"

	"github.com/raykavin/martinrun/pkg/core"
	"github.com/raykavin/martinrun/pkg/logger"
	"github.com/stretchr/testify/require"
)

type fakeBroker struct {
	asset, cash, avg float64
	last             float64
	fail             bool
	orders           []core.Order
}

func (b *fakeBroker) Account() (core.Account, error) { return core.Account{}, nil }

func (b *fakeBroker) Position(string) (float64, float64, error) { return b.asset, b.cash, nil }

func (b *fakeBroker) AveragePrice(string) float64 { return b.avg }

func (b *fakeBroker) Equity() float64 { return b.cash + b.asset*b.last }

func (b *fakeBroker) CreateOrderMarket(side core.SideType, pair string, size float64) (core.Order, error) {
	if b.fail {
		return core.Order{}, errors.New("insufficient funds")
	}
	b.avg = (b.avg*b.asset + b.last*size) / (b.asset + size)
	b.asset += size
	b.cash -= size * b.last
	order := core.Order{Pair: pair, Side: side, Price: b.last, Quantity: size}
	b.orders = append(b.orders, order)
	return order, nil
}

func frame(close float64, macd, signal float64) *core.Dataframe {
	return &core.Dataframe{
		Pair:  "BTCUSDT",
		Close: core.Series[float64]{close},
		Time:  []time.Time{t0},
		Metadata: map[string]core.Series[float64]{
			metaMACD:       {macd},
			metaMACDSignal: {signal},
			metaRSI:        {30},
		},
	}
}

func TestMartingale_OnCandle(t *testing.T) {
	broker := &fakeBroker{cash: 1000, last: 100}
	m := NewMartingale("BTCUSDT", NewTimeLimited(DefaultParams(TimeLimited, true)), logger.Nop())

	m.OnCandle(frame(100, 1, 0), broker)
	require.Len(t, broker.orders, 1)
	require.InDelta(t, 0.1, broker.asset, 1e-12)
	require.Equal(t, Long, m.Position().State())

	broker.last = 97
	m.OnCandle(frame(97, -1, 0), broker)
	require.Len(t, broker.orders, 2)
	require.InDelta(t, 0.3, broker.asset, 1e-12)
	require.Equal(t, 1, m.Position().AddCount)
	require.Equal(t, broker.avg, m.Position().AvgPrice)
}

func TestMartingale_RejectedOrderKeepsState(t *testing.T) {
	broker := &fakeBroker{cash: 1000, last: 100, fail: true}
	m := NewMartingale("BTCUSDT", NewReverse(DefaultParams(Reverse, true)), logger.Nop())

	m.OnCandle(frame(100, 1, 0), broker)
	require.Empty(t, broker.orders)
	require.Equal(t, Position{}, m.Position())
}

func TestMartingale_MarkExited(t *testing.T) {
	broker := &fakeBroker{cash: 1000, last: 100}
	m := NewMartingale("BTCUSDT", NewReverse(DefaultParams(Reverse, true)), logger.Nop())

	m.OnCandle(frame(100, 1, 0), broker)
	require.Len(t, broker.orders, 1)

	closeTime := t0.Add(time.Hour)
	broker.asset, broker.avg = 0, 0
	m.MarkExited(closeTime)
	before := m.Position()

	m.OnCandle(frame(100, 1, 0), broker)
	require.Len(t, broker.orders, 1)
	require.Equal(t, before, m.Position())
	require.Equal(t, closeTime, m.Position().CloseTime)
	require.Equal(t, 1, m.Position().Entries())
}

func TestMartingale_WarmupPeriod(t *testing.T) {
	m := NewMartingale("BTCUSDT", NewReverse(DefaultParams(Reverse, true)), nil)
	require.Equal(t, 34, m.WarmupPeriod())
	require.Equal(t, "1m", m.Timeframe())
}

func TestController_FeedsStrategyAfterWarmup(t *testing.T) {
	broker := &fakeBroker{cash: 1000}
	m := NewMartingale("BTCUSDT", NewReverse(DefaultParams(Reverse, true)), logger.Nop())
	controller := NewStrategyController("BTCUSDT", m, broker, logger.Nop())
	controller.Start()

	for i := 0; i < 60; i++ {
		price := 100 + float64(i)*0.1
		broker.last = price
		controller.OnCandle(core.Candle{
			Pair: "BTCUSDT", Time: t0.Add(time.Duration(i) * time.Minute),
			Open: price, High: price, Low: price, Close: price, Complete: true,
		})
		if i < m.WarmupPeriod()-1 {
			require.Empty(t, broker.orders, "bar %d", i)
		}
	}

	require.NotEmpty(t, broker.orders)
	require.Equal(t, core.SideTypeBuy, broker.orders[0].Side)
}
