package martinrun

import (
	"context"
	"fmt"

	"github.com/raykavin/martinrun/internal/config"
	"github.com/raykavin/martinrun/pkg/batch"
	"github.com/raykavin/martinrun/pkg/exchange"
	"github.com/raykavin/martinrun/pkg/exchange/binance"
	"github.com/raykavin/martinrun/pkg/regime"
)

// initializeFeeder builds the bar source selected in the config
func initializeFeeder(ctx context.Context, bt *Backtester) error {
	switch bt.config.Source.Type {
	case config.SourceCSV:
		feeds := make([]exchange.PairFeed, 0, len(bt.config.Source.Files))
		for pair, file := range bt.config.Source.Files {
			feeds = append(feeds, exchange.PairFeed{
				Pair:      pair,
				File:      file,
				Timeframe: batch.ReplayTimeframe,
			})
		}

		// daily bars for the classifier are resampled from the 1m files
		feed, err := exchange.NewCSVFeed(regime.Timeframe, feeds...)
		if err != nil {
			return fmt.Errorf("failed to load csv source: %w", err)
		}
		bt.feeder = feed
		if bt.isListed == nil {
			bt.isListed = func(symbol string) bool {
				_, ok := feed.Feeds[symbol]
				return ok
			}
		}
		bt.log.WithField("pairs", len(feeds)).Info("[SETUP] Using CSV source")

	case config.SourceBinance:
		settings := bt.config.Binance
		options := []binance.SpotOption{
			binance.WithLogger(bt.log),
			binance.WithLocation(bt.location),
			binance.WithMaxRetries(settings.MaxRetries),
		}
		if settings.APIKey != "" {
			options = append(options, binance.WithCredentials(settings.APIKey, settings.SecretKey))
		}
		if settings.UseTestnet {
			options = append(options, binance.WithTestNet())
		}
		if settings.BaseURL != "" {
			options = append(options, binance.WithBaseURL(settings.BaseURL))
		}
		if settings.RateLimit > 0 {
			options = append(options, binance.WithRateLimit(settings.RateLimit, 1))
		}

		spot, err := binance.NewSpot(ctx, options...)
		if err != nil {
			return err
		}
		bt.feeder = spot
		if bt.isListed == nil {
			bt.isListed = spot.IsListed
		}

	default:
		return fmt.Errorf("%w: unknown source %q", config.ErrInvalidConfig, bt.config.Source.Type)
	}

	return nil
}
