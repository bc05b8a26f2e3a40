// Package martinrun wires configuration, data feeds, the batch driver and
// notifiers into a single backtester.
package martinrun

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/raykavin/martinrun/internal/config"
	"github.com/raykavin/martinrun/pkg/backtesting"
	"github.com/raykavin/martinrun/pkg/batch"
	"github.com/raykavin/martinrun/pkg/core"
	"github.com/raykavin/martinrun/pkg/exchange"
	"github.com/raykavin/martinrun/pkg/logger"
	"github.com/raykavin/martinrun/pkg/regime"
	"github.com/raykavin/martinrun/pkg/storage"
)

// Backtester runs a batch of dated entries end to end
type Backtester struct {
	config   *config.Config
	location *time.Location
	feeder   core.Feeder
	storage  core.CandleStorage
	notifier *notifiers
	isListed func(symbol string) bool
	output   io.Writer
	progress io.Writer
	log      logger.Logger

	ownsStorage bool
}

// NewBacktester builds the feeder, the candle cache and the notifiers from
// cfg unless they are provided as options
func NewBacktester(ctx context.Context, cfg *config.Config, options ...Option) (*Backtester, error) {
	location, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	bt := &Backtester{
		config:   cfg,
		location: location,
		notifier: &notifiers{},
		output:   os.Stdout,
		progress: os.Stderr,
		log:      DefaultLog,
	}

	for _, option := range options {
		option(bt)
	}

	if bt.feeder == nil {
		if err := initializeFeeder(ctx, bt); err != nil {
			return nil, err
		}
	}

	if err := initializeStorage(bt); err != nil {
		return nil, err
	}
	if bt.storage != nil {
		bt.feeder = exchange.NewCachedFeed(bt.feeder, bt.storage, bt.log)
	}

	if err := initializeNotifications(bt); err != nil {
		return nil, err
	}

	return bt, nil
}

// initializeStorage opens the candle cache configured in cfg
func initializeStorage(bt *Backtester) error {
	if bt.storage != nil || !bt.config.Cache.Enabled {
		return nil
	}

	var options []storage.Option
	if bt.config.Cache.TTL > 0 {
		options = append(options, storage.WithTTL(bt.config.Cache.TTL))
	}

	db, err := storage.FromFile(bt.config.Cache.Path, options...)
	if err != nil {
		return err
	}

	bt.storage = db
	bt.ownsStorage = true
	bt.log.WithField("path", bt.config.Cache.Path).Info("[SETUP] Using candle cache")
	return nil
}

func (bt *Backtester) runner() *backtesting.Runner {
	return backtesting.NewRunner(
		backtesting.WithCapital(bt.config.Capital),
		backtesting.WithCommission(bt.config.Commission),
		backtesting.WithStopAware(bt.config.StopAware),
		backtesting.WithSampleSize(bt.config.SampleSize),
		backtesting.WithLogger(bt.log),
	)
}

func (bt *Backtester) driver() (*batch.Driver, error) {
	variants, err := bt.config.VariantMap()
	if err != nil {
		return nil, err
	}

	options := []batch.Option{
		batch.WithVariants(variants),
		batch.WithLocation(bt.location),
		batch.WithProgressOutput(bt.progress),
		batch.WithLogger(bt.log),
	}

	for kind, params := range bt.config.Params {
		options = append(options, batch.WithParams(kind, params))
	}

	if bt.config.MaxEntries != 0 {
		options = append(options, batch.WithMaxEntries(bt.config.MaxEntries))
	}

	if bt.isListed != nil {
		options = append(options, batch.WithSymbolCheck(bt.isListed))
	}

	if bt.notifier.Len() > 0 {
		options = append(options, batch.WithNotifier(bt.notifier))
	}

	return batch.NewDriver(bt.feeder, bt.runner(), options...), nil
}

// Run backtests every entry of the configured input file, writes the CSV
// report and prints the summary. On cancellation the rows gathered so far
// are still written.
func (bt *Backtester) Run(ctx context.Context) ([]batch.Outcome, error) {
	entries, err := batch.LoadEntries(bt.config.Input, bt.location)
	if err != nil {
		return nil, err
	}

	return bt.RunEntries(ctx, entries)
}

// RunEntries is Run for entries that are already loaded
func (bt *Backtester) RunEntries(ctx context.Context, entries []batch.Entry) ([]batch.Outcome, error) {
	driver, err := bt.driver()
	if err != nil {
		return nil, err
	}

	outcomes, runErr := driver.Run(ctx, entries)

	if bt.config.Output != "" {
		if err := batch.SaveCSV(bt.config.Output, outcomes, bt.config.StopAware); err != nil {
			return outcomes, errors.Join(runErr, err)
		}
		bt.log.WithFields(map[string]any{
			"path": bt.config.Output,
			"rows": len(outcomes),
		}).Info("report saved")
	} else if err := batch.WriteCSV(bt.output, outcomes, bt.config.StopAware); err != nil {
		return outcomes, errors.Join(runErr, err)
	}

	if err := batch.Render(bt.output, outcomes, bt.config.StopAware); err != nil {
		return outcomes, errors.Join(runErr, err)
	}

	return outcomes, runErr
}

// Classify labels the market regime of symbol on date
func (bt *Backtester) Classify(ctx context.Context, symbol string, date time.Time) (regime.Regime, regime.Stats, error) {
	classifier := regime.NewClassifier(bt.feeder, bt.location, bt.log)
	return classifier.Predict(ctx, symbol, date)
}

// Feeder returns the feeder bars are read from, cache included
func (bt *Backtester) Feeder() core.Feeder { return bt.feeder }

// Close releases the candle cache opened by NewBacktester
func (bt *Backtester) Close() error {
	if bt.ownsStorage && bt.storage != nil {
		if err := bt.storage.Close(); err != nil {
			return fmt.Errorf("failed to close candle cache: %w", err)
		}
	}
	return nil
}
