package binance

import (
	"fmt"
	"strconv"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/jpillora/backoff"

	"github.com/raykavin/martinrun/pkg/core"
)

const (
	// MaxKlinesPerRequest is the largest page the klines endpoint serves
	MaxKlinesPerRequest = 1000

	DefaultMaxRetries = 5
	DefaultRateLimit  = 10
)

// ErrMaxRetries is returned when a request keeps failing after every retry
var ErrMaxRetries = fmt.Errorf("max retries reached")

// setupBackoffRetry creates a backoff with sensible defaults
func setupBackoffRetry() *backoff.Backoff {
	return &backoff.Backoff{
		Min:    100 * time.Millisecond,
		Max:    1 * time.Second,
		Factor: 2,
		Jitter: true,
	}
}

func parseFloat(value string) float64 {
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0
	}
	return f
}

// convertKlineToCandle maps a kline to a candle with times in loc. Zero or
// unparsable prices become 0 and are rejected later by validation.
func convertKlineToCandle(pair string, k binance.Kline, loc *time.Location) core.Candle {
	return core.Candle{
		Pair:      pair,
		Time:      time.Unix(0, k.OpenTime*int64(time.Millisecond)).In(loc),
		UpdatedAt: time.Unix(0, k.CloseTime*int64(time.Millisecond)).In(loc),
		Open:      parseFloat(k.Open),
		Close:     parseFloat(k.Close),
		High:      parseFloat(k.High),
		Low:       parseFloat(k.Low),
		Volume:    parseFloat(k.Volume),
		Complete:  true,
	}
}

// filterFloat reads a numeric exchange filter value, which the API sends as a string
func filterFloat(filter map[string]interface{}, key string) float64 {
	raw, ok := filter[key].(string)
	if !ok {
		return 0
	}
	return parseFloat(raw)
}

func convertSymbolInfo(info binance.Symbol) core.AssetInfo {
	assetInfo := core.AssetInfo{
		BaseAsset:          info.BaseAsset,
		QuoteAsset:         info.QuoteAsset,
		BaseAssetPrecision: info.BaseAssetPrecision,
		QuotePrecision:     info.QuotePrecision,
	}

	for _, filter := range info.Filters {
		switch filter["filterType"] {
		case string(binance.SymbolFilterTypeLotSize):
			assetInfo.MinQuantity = filterFloat(filter, "minQty")
			assetInfo.MaxQuantity = filterFloat(filter, "maxQty")
			assetInfo.StepSize = filterFloat(filter, "stepSize")
		case string(binance.SymbolFilterTypePriceFilter):
			assetInfo.TickSize = filterFloat(filter, "tickSize")
		}
	}

	return assetInfo
}
