package exchange

import (
	"context"
	"fmt"
	"time"

	"github.com/raykavin/martinrun/pkg/core"
	"github.com/raykavin/martinrun/pkg/logger"
	"github.com/raykavin/martinrun/pkg/storage"
)

// CachedFeed serves candle windows from storage and falls back to the wrapped
// feeder on a miss. Only validated windows are stored.
type CachedFeed struct {
	core.Feeder
	storage core.CandleStorage
	log     logger.Logger
}

// NewCachedFeed wraps feeder with storage
func NewCachedFeed(feeder core.Feeder, storage core.CandleStorage, log logger.Logger) *CachedFeed {
	if log == nil {
		log = logger.Nop()
	}
	return &CachedFeed{Feeder: feeder, storage: storage, log: log}
}

// CandlesByPeriod returns the cached window when present, otherwise fetches
// and stores it
func (c *CachedFeed) CandlesByPeriod(ctx context.Context, pair, timeframe string,
	start, end time.Time) ([]core.Candle, error) {

	key := storage.CandleKey(pair, timeframe, start, end)
	log := c.log.WithField("key", key)

	candles, ok, err := c.storage.Candles(key)
	if err != nil {
		log.WithError(err).Warn("candle cache read failed")
	} else if ok {
		log.Debug("candle cache hit")
		return relocate(candles, start.Location()), nil
	}

	candles, err = c.Feeder.CandlesByPeriod(ctx, pair, timeframe, start, end)
	if err != nil {
		return nil, err
	}

	if err := core.ValidateCandles(candles); err != nil {
		return nil, fmt.Errorf("%s %s: %w", pair, timeframe, err)
	}

	if err := c.storage.SaveCandles(key, candles); err != nil {
		log.WithError(err).Warn("candle cache write failed")
	}

	return candles, nil
}

// relocate restores the caller's zone, which JSON round trips lose
func relocate(candles []core.Candle, loc *time.Location) []core.Candle {
	for i := range candles {
		candles[i].Time = candles[i].Time.In(loc)
		candles[i].UpdatedAt = candles[i].UpdatedAt.In(loc)
	}
	return candles
}
