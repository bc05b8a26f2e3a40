package backtesting

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/samber/lo"

	"github.com/raykavin/martinrun/pkg/core"
	"github.com/raykavin/martinrun/pkg/exchange"
	"github.com/raykavin/martinrun/pkg/logger"
	"github.com/raykavin/martinrun/pkg/metric"
	"github.com/raykavin/martinrun/pkg/strategy"
)

const (
	DefaultCapital    = 1000.0
	DefaultCommission = 0.001

	progressEvery = 10000
)

// ErrNoCandles is returned when a run has no bars to replay
var ErrNoCandles = errors.New("no candles")

// Result summarizes one backtest run
type Result struct {
	Pair          string
	Variant       string
	Bars          int
	StartValue    float64
	EndValue      float64
	SharpeRatio   float64
	MaxDrawdown   float64
	Entries       int
	LastEntryTime time.Time
	CloseTime     time.Time
	Exited        bool
	Fees          float64
	Orders        []core.Order
}

// Return is the change of the account value over the run, in percent
func (r Result) Return() float64 {
	if r.StartValue == 0 {
		return 0
	}
	return (r.EndValue - r.StartValue) / r.StartValue * 100
}

// Runner replays candles through a paper wallet and a martingale strategy
type Runner struct {
	capital    float64
	commission float64
	stopAware  bool
	sampleSize int
	log        logger.Logger
}

// RunnerOption configures a Runner
type RunnerOption func(*Runner)

// WithCapital sets the starting quote balance
func WithCapital(capital float64) RunnerOption {
	return func(r *Runner) {
		r.capital = capital
	}
}

// WithCommission sets the taker fee charged on every fill
func WithCommission(commission float64) RunnerOption {
	return func(r *Runner) {
		r.commission = commission
	}
}

// WithStopAware enables the take-profit/stop-loss exit guard
func WithStopAware(enabled bool) RunnerOption {
	return func(r *Runner) {
		r.stopAware = enabled
	}
}

// WithSampleSize sets the number of trailing bars indicators are computed on.
// Zero or less keeps the default.
func WithSampleSize(size int) RunnerOption {
	return func(r *Runner) {
		if size > 0 {
			r.sampleSize = size
		}
	}
}

// WithLogger sets the runner logger
func WithLogger(log logger.Logger) RunnerOption {
	return func(r *Runner) {
		r.log = log
	}
}

// NewRunner creates a runner with 1000 quote capital and a 0.1% fee
func NewRunner(options ...RunnerOption) *Runner {
	runner := &Runner{
		capital:    DefaultCapital,
		commission: DefaultCommission,
		sampleSize: strategy.DefaultSampleSize,
		log:        logger.Nop(),
	}
	for _, option := range options {
		option(runner)
	}
	return runner
}

// StopAware reports whether the exit guard is enabled
func (r *Runner) StopAware() bool { return r.stopAware }

// Run replays candles of pair bar by bar. Each bar first updates the wallet,
// then runs the exit guard, then the strategy, and finally records equity.
func (r *Runner) Run(ctx context.Context, pair string, candles []core.Candle, strat *strategy.Martingale) (Result, error) {
	if len(candles) == 0 {
		return Result{}, fmt.Errorf("%s: %w", pair, ErrNoCandles)
	}

	if err := core.ValidateCandles(candles); err != nil {
		return Result{}, err
	}

	_, quote := exchange.SplitAssetQuote(pair)
	if quote == "" {
		return Result{}, fmt.Errorf("%w: %s", exchange.ErrInvalidAsset, pair)
	}

	log := r.log.WithFields(map[string]any{"pair": pair, "variant": strat.Variant().String()})

	wallet := exchange.NewPaperWallet(quote,
		exchange.WithPaperAsset(quote, r.capital),
		exchange.WithPaperFee(r.commission),
		exchange.WithPaperLogger(log),
	)

	controller := strategy.NewStrategyController(pair, strat, wallet, log)
	controller.SetSampleSize(r.sampleSize)
	controller.Start()

	log.Infof("replaying %d candles from %s", len(candles), candles[0].Time.Format(time.RFC3339))

	for i, candle := range candles {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}

		wallet.OnCandle(candle)

		if r.stopAware {
			if err := r.exitGuard(pair, candle, wallet, strat, log); err != nil {
				return Result{}, err
			}
		}

		controller.OnCandle(candle)
		wallet.Snapshot(candle)

		if (i+1)%progressEvery == 0 {
			log.Debugf("processed %d/%d candles", i+1, len(candles))
		}
	}

	return r.result(pair, candles, wallet, strat), nil
}

// exitGuard closes a long position whose bar touched the stop-loss or the
// take-profit price. Stop-loss wins when both are touched. A bar that opens
// past a level fills at its open.
func (r *Runner) exitGuard(pair string, candle core.Candle, wallet *exchange.PaperWallet,
	strat *strategy.Martingale, log logger.Logger) error {

	position := strat.Position()
	if position.Exited {
		return nil
	}

	size, _, err := wallet.Position(pair)
	if err != nil {
		return err
	}
	if size <= 0 {
		return nil
	}

	params := strat.Variant().Params()
	avg := wallet.AveragePrice(pair)

	var (
		price     float64
		orderType core.OrderType
	)

	stop, target := avg*(1-params.StopLoss/100), avg*(1+params.TakeProfit/100)

	switch {
	case params.StopLoss > 0 && candle.Low <= stop:
		price, orderType = math.Min(stop, candle.Open), core.OrderTypeStopLoss
	case params.TakeProfit > 0 && candle.High >= target:
		price, orderType = math.Max(target, candle.Open), core.OrderTypeTakeProfit
	default:
		return nil
	}

	order, ok, err := wallet.Liquidate(pair, price, orderType, candle.Time)
	if err != nil {
		return fmt.Errorf("liquidating %s: %w", pair, err)
	}
	if !ok {
		return nil
	}

	strat.MarkExited(candle.Time)
	log.WithFields(map[string]any{
		"type":     string(orderType),
		"price":    order.Price,
		"quantity": order.Quantity,
	}).Info("position closed")

	return nil
}

func (r *Runner) result(pair string, candles []core.Candle, wallet *exchange.PaperWallet,
	strat *strategy.Martingale) Result {

	position := strat.Position()
	endValue := wallet.Equity()

	curve := wallet.EquityValues()
	times := lo.Map(curve, func(v exchange.AssetValue, _ int) time.Time { return v.Time })
	values := lo.Map(curve, func(v exchange.AssetValue, _ int) float64 { return v.Value })

	sharpe := metric.Sharpe(
		metric.DailyReturns(wallet.InitialValue(), times, values),
		metric.DefaultRiskFreeRate,
		metric.TradingDaysPerYear,
	)
	drawdown, peak, trough := wallet.MaxDrawdown()

	result := Result{
		Pair:          pair,
		Variant:       strat.Variant().String(),
		Bars:          len(candles),
		StartValue:    wallet.InitialValue(),
		EndValue:      endValue,
		SharpeRatio:   sharpe,
		MaxDrawdown:   drawdown,
		Entries:       position.Entries(),
		LastEntryTime: position.LastEntryTime,
		CloseTime:     position.CloseTime,
		Exited:        position.Exited,
		Fees:          wallet.Fees(),
		Orders:        wallet.Orders(),
	}

	r.log.WithFields(map[string]any{
		"pair":         pair,
		"end_value":    result.EndValue,
		"sharpe":       result.SharpeRatio,
		"max_drawdown": result.MaxDrawdown,
		"peak":         peak,
		"trough":       trough,
		"entries":      result.Entries,
	}).Info("backtest finished")

	return result
}
