package batch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/raykavin/martinrun/pkg/backtesting"
	"github.com/raykavin/martinrun/pkg/core"
	"github.com/raykavin/martinrun/pkg/logger"
	"github.com/raykavin/martinrun/pkg/regime"
	"github.com/raykavin/martinrun/pkg/strategy"
)

const (
	// ReplayTimeframe is the bar size backtests run on
	ReplayTimeframe = "1m"

	// DefaultMaxEntries caps batches without stop-loss exits
	DefaultMaxEntries = 180

	windowOffsetDays = 1
	windowEndDays    = 31
)

// Status of a batch entry
type Status string

const (
	StatusOK      Status = "ok"
	StatusSkipped Status = "skipped"
	StatusFailed  Status = "failed"
)

// ErrUnknownSymbol marks entries whose symbol the data source does not list
var ErrUnknownSymbol = errors.New("unknown symbol")

// Outcome is the result of one entry. Result is only set when Status is ok.
type Outcome struct {
	Entry
	Regime  regime.Regime
	Variant string
	Status  Status
	Reason  string
	Result  backtesting.Result
}

// Classifier labels a symbol's regime on a date
type Classifier interface {
	Predict(ctx context.Context, symbol string, date time.Time) (regime.Regime, regime.Stats, error)
}

// DefaultVariants maps each regime to the variant it trades with
func DefaultVariants() map[regime.Regime]strategy.Kind {
	return map[regime.Regime]strategy.Kind{
		regime.Uptrend:        strategy.Reverse,
		regime.Ranging:        strategy.Multifactor,
		regime.HighVolatility: strategy.TimeLimited,
		regime.Downtrend:      strategy.RiskLimited,
	}
}

// Driver classifies and backtests batch entries one after another
type Driver struct {
	feeder     core.Feeder
	classifier Classifier
	runner     *backtesting.Runner
	variants   map[regime.Regime]strategy.Kind
	params     map[strategy.Kind]strategy.Params
	maxEntries int
	location   *time.Location
	isListed   func(symbol string) bool
	notifier   core.Notifier
	progress   io.Writer
	log        logger.Logger
}

// Option configures a Driver
type Option func(*Driver)

// WithClassifier replaces the default classifier built on the feeder
func WithClassifier(classifier Classifier) Option {
	return func(d *Driver) {
		d.classifier = classifier
	}
}

// WithVariants overrides the regime to variant mapping
func WithVariants(variants map[regime.Regime]strategy.Kind) Option {
	return func(d *Driver) {
		for r, kind := range variants {
			d.variants[r] = kind
		}
	}
}

// WithParams overrides the parameters of one variant
func WithParams(kind strategy.Kind, params strategy.Params) Option {
	return func(d *Driver) {
		d.params[kind] = params
	}
}

// WithMaxEntries caps the number of entries processed. Zero or less means
// no cap.
func WithMaxEntries(n int) Option {
	return func(d *Driver) {
		d.maxEntries = n
	}
}

// WithLocation sets the timezone used for dates and windows
func WithLocation(loc *time.Location) Option {
	return func(d *Driver) {
		d.location = loc
	}
}

// WithSymbolCheck sets a preflight check; entries whose symbol fails it are
// recorded as failed without fetching data
func WithSymbolCheck(isListed func(symbol string) bool) Option {
	return func(d *Driver) {
		d.isListed = isListed
	}
}

// WithNotifier sends the batch summary when the batch ends
func WithNotifier(notifier core.Notifier) Option {
	return func(d *Driver) {
		d.notifier = notifier
	}
}

// WithProgressOutput redirects the progress bar. nil disables it.
func WithProgressOutput(w io.Writer) Option {
	return func(d *Driver) {
		d.progress = w
	}
}

// WithLogger sets the driver logger
func WithLogger(log logger.Logger) Option {
	return func(d *Driver) {
		d.log = log
	}
}

// NewDriver creates a driver reading bars from feeder and replaying them with runner
func NewDriver(feeder core.Feeder, runner *backtesting.Runner, options ...Option) *Driver {
	driver := &Driver{
		feeder:   feeder,
		runner:   runner,
		variants: DefaultVariants(),
		params:   make(map[strategy.Kind]strategy.Params),
		location: time.UTC,
		progress: os.Stderr,
		log:      logger.Nop(),
	}

	if !runner.StopAware() {
		driver.maxEntries = DefaultMaxEntries
	}

	for _, option := range options {
		option(driver)
	}

	if driver.classifier == nil {
		driver.classifier = regime.NewClassifier(feeder, driver.location, driver.log)
	}

	return driver
}

// StopAware reports which report layout the driver produces
func (d *Driver) StopAware() bool { return d.runner.StopAware() }

func (d *Driver) paramsFor(kind strategy.Kind) strategy.Params {
	if params, ok := d.params[kind]; ok {
		return params
	}
	return strategy.DefaultParams(kind, d.runner.StopAware())
}

// Run processes entries in order. Per-entry errors become failed or skipped
// outcomes; only cancellation stops the batch early, returning the outcomes
// gathered so far with the context error.
func (d *Driver) Run(ctx context.Context, entries []Entry) ([]Outcome, error) {
	if d.maxEntries > 0 && len(entries) > d.maxEntries {
		d.log.Infof("reached %d entries, ignoring %d more", d.maxEntries, len(entries)-d.maxEntries)
		entries = entries[:d.maxEntries]
	}

	unlisted := d.preflight(entries)

	progress := io.Discard
	if d.progress != nil {
		progress = d.progress
	}
	bar := progressbar.NewOptions(len(entries),
		progressbar.OptionSetWriter(progress),
		progressbar.OptionSetDescription("backtesting"),
		progressbar.OptionShowCount(),
	)

	outcomes := make([]Outcome, 0, len(entries))
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return outcomes, err
		}

		var outcome Outcome
		if unlisted[entry.Symbol] {
			outcome = failed(entry, fmt.Errorf("%w: %s", ErrUnknownSymbol, entry.Symbol))
		} else {
			outcome = d.runEntry(ctx, entry)
		}

		if err := ctx.Err(); err != nil {
			return outcomes, err
		}

		d.logOutcome(outcome)
		outcomes = append(outcomes, outcome)
		_ = bar.Add(1)
	}
	_ = bar.Finish()

	if d.notifier != nil {
		d.notifier.Notify(Summary(outcomes, d.StopAware()))
	}

	return outcomes, nil
}

// preflight returns the distinct symbols that fail the symbol check
func (d *Driver) preflight(entries []Entry) map[string]bool {
	unlisted := make(map[string]bool)
	symbols := Symbols(entries)

	d.log.WithField("symbols", len(symbols)).Infof("running %d entries", len(entries))
	if d.isListed == nil {
		return unlisted
	}

	for _, symbol := range symbols {
		if !d.isListed(symbol) {
			unlisted[symbol] = true
			d.log.WithField("symbol", symbol).Warn("symbol is not listed")
		}
	}
	return unlisted
}

func (d *Driver) runEntry(ctx context.Context, entry Entry) Outcome {
	log := d.log.WithFields(map[string]any{"symbol": entry.Symbol, "date": entry.Key()})

	r, stats, err := d.classifier.Predict(ctx, entry.Symbol, entry.Date)
	if errors.Is(err, regime.ErrInsufficientData) {
		return skipped(entry, err)
	}
	if err != nil {
		return failed(entry, err)
	}
	log.WithFields(map[string]any{
		"regime":          r.String(),
		"past_atr_mean":   stats.PastATRMean,
		"atr_mean":        stats.ATRMeanAll,
		"past_close_mean": stats.PastCloseMean,
		"sma":             stats.SMAAtDate,
	}).Debug("classified")

	kind, ok := d.variants[r]
	if !ok {
		outcome := failed(entry, fmt.Errorf("no variant for regime %s", r))
		outcome.Regime = r
		return outcome
	}

	params := d.paramsFor(kind)
	if err := params.Validate(); err != nil {
		outcome := failed(entry, err)
		outcome.Regime, outcome.Variant = r, kind.String()
		return outcome
	}

	start := entry.Date.AddDate(0, 0, windowOffsetDays)
	end := entry.Date.AddDate(0, 0, windowEndDays)

	outcome := Outcome{Entry: entry, Regime: r, Variant: kind.String()}

	candles, err := d.feeder.CandlesByPeriod(ctx, entry.Symbol, ReplayTimeframe, start, end)
	if err != nil {
		return withError(outcome, StatusFailed, err)
	}

	strat := strategy.NewMartingale(entry.Symbol, strategy.NewVariant(kind, params), log)
	result, err := d.runner.Run(ctx, entry.Symbol, candles, strat)
	if errors.Is(err, backtesting.ErrNoCandles) {
		return withError(outcome, StatusSkipped, err)
	}
	if err != nil {
		return withError(outcome, StatusFailed, err)
	}

	outcome.Status = StatusOK
	outcome.Result = result
	return outcome
}

func (d *Driver) logOutcome(outcome Outcome) {
	log := d.log.WithFields(map[string]any{
		"symbol": outcome.Symbol,
		"date":   outcome.Key(),
		"regime": outcome.Regime.String(),
		"status": string(outcome.Status),
	})

	switch outcome.Status {
	case StatusOK:
		log.WithFields(map[string]any{
			"end_value":    outcome.Result.EndValue,
			"sharpe":       outcome.Result.SharpeRatio,
			"max_drawdown": outcome.Result.MaxDrawdown,
			"trade_time":   outcome.Result.Entries,
		}).Info("entry done")
	case StatusSkipped:
		log.Warn(outcome.Reason)
	default:
		log.Error(outcome.Reason)
	}
}

func skipped(entry Entry, err error) Outcome {
	return withError(Outcome{Entry: entry}, StatusSkipped, err)
}

func failed(entry Entry, err error) Outcome {
	return withError(Outcome{Entry: entry}, StatusFailed, err)
}

func withError(outcome Outcome, status Status, err error) Outcome {
	outcome.Status = status
	outcome.Reason = err.Error()
	return outcome
}
