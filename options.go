package martinrun

import (
	"io"

	"github.com/raykavin/martinrun/pkg/core"
	"github.com/raykavin/martinrun/pkg/logger"
)

// Option is a functional option for configuring a Backtester
type Option func(*Backtester)

// WithFeeder sets the bar source, skipping the one described by the config
func WithFeeder(feeder core.Feeder) Option {
	return func(bt *Backtester) {
		bt.feeder = feeder
	}
}

// WithStorage sets the candle cache. The caller keeps ownership and closes it.
func WithStorage(storage core.CandleStorage) Option {
	return func(bt *Backtester) {
		bt.storage = storage
	}
}

// WithNotifier registers a notifier that receives the batch summary
func WithNotifier(notifier core.Notifier) Option {
	return func(bt *Backtester) {
		bt.notifier.Add(notifier)
	}
}

// WithSymbolCheck sets the preflight check run on every distinct symbol
func WithSymbolCheck(isListed func(symbol string) bool) Option {
	return func(bt *Backtester) {
		bt.isListed = isListed
	}
}

// WithOutput sets where the summary (and the CSV when no output path is
// configured) is written
func WithOutput(w io.Writer) Option {
	return func(bt *Backtester) {
		bt.output = w
	}
}

// WithProgressOutput redirects the progress bar. nil disables it.
func WithProgressOutput(w io.Writer) Option {
	return func(bt *Backtester) {
		bt.progress = w
	}
}

// WithLogger sets the logger
func WithLogger(log logger.Logger) Option {
	return func(bt *Backtester) {
		bt.log = log
	}
}
