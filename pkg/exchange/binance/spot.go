package binance

import (
	"context"
	"fmt"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/xhit/go-str2duration/v2"
	"golang.org/x/time/rate"

	"github.com/raykavin/martinrun/pkg/core"
	"github.com/raykavin/martinrun/pkg/exchange"
	"github.com/raykavin/martinrun/pkg/logger"
)

// Spot is a read-only Binance spot market data client
type Spot struct {
	client     *binance.Client
	apiKey     string
	secretKey  string
	baseURL    string
	log        logger.Logger
	limiter    *rate.Limiter
	location   *time.Location
	maxRetries int
	pageLimit  int
	assetsInfo map[string]core.AssetInfo
}

// SpotOption configures a Spot client
type SpotOption func(*Spot)

// WithCredentials sets the API credentials. Klines are public, so they are optional.
func WithCredentials(key, secret string) SpotOption {
	return func(s *Spot) {
		s.apiKey = key
		s.secretKey = secret
	}
}

// WithTestNet enables the Binance testnet
func WithTestNet() SpotOption {
	return func(_ *Spot) {
		binance.UseTestnet = true
	}
}

// WithBaseURL points the REST client at another endpoint
func WithBaseURL(url string) SpotOption {
	return func(s *Spot) {
		s.baseURL = url
	}
}

// WithLogger sets the client logger
func WithLogger(log logger.Logger) SpotOption {
	return func(s *Spot) {
		s.log = log
	}
}

// WithRateLimit caps outgoing requests per second
func WithRateLimit(perSecond float64, burst int) SpotOption {
	return func(s *Spot) {
		s.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// WithMaxRetries sets how many times a failed request is retried
func WithMaxRetries(retries int) SpotOption {
	return func(s *Spot) {
		s.maxRetries = retries
	}
}

// WithLocation sets the timezone candle times are reported in
func WithLocation(loc *time.Location) SpotOption {
	return func(s *Spot) {
		s.location = loc
	}
}

// WithPageLimit sets the klines page size, at most MaxKlinesPerRequest
func WithPageLimit(limit int) SpotOption {
	return func(s *Spot) {
		if limit > 0 && limit <= MaxKlinesPerRequest {
			s.pageLimit = limit
		}
	}
}

// NewSpot connects to Binance and loads the trading rules of every listed pair
func NewSpot(ctx context.Context, options ...SpotOption) (*Spot, error) {
	spot := &Spot{
		log:        logger.Nop(),
		limiter:    rate.NewLimiter(rate.Every(time.Second/DefaultRateLimit), 1),
		location:   time.UTC,
		maxRetries: DefaultMaxRetries,
		pageLimit:  MaxKlinesPerRequest,
		assetsInfo: make(map[string]core.AssetInfo),
	}

	for _, option := range options {
		option(spot)
	}

	spot.client = binance.NewClient(spot.apiKey, spot.secretKey)
	if spot.baseURL != "" {
		spot.client.BaseURL = spot.baseURL
	}

	if err := spot.retry(ctx, func() error {
		return spot.client.NewPingService().Do(ctx)
	}); err != nil {
		return nil, fmt.Errorf("binance ping fail: %w", err)
	}

	var exchangeInfo *binance.ExchangeInfo
	err := spot.retry(ctx, func() (err error) {
		exchangeInfo, err = spot.client.NewExchangeInfoService().Do(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get exchange info: %w", err)
	}

	pairs := make(map[string]exchange.AssetQuote, len(exchangeInfo.Symbols))
	for _, info := range exchangeInfo.Symbols {
		spot.assetsInfo[info.Symbol] = convertSymbolInfo(info)
		pairs[info.Symbol] = exchange.AssetQuote{Asset: info.BaseAsset, Quote: info.QuoteAsset}
	}
	exchange.RegisterPairs(pairs)

	spot.log.WithField("pairs", len(pairs)).Info("[SETUP] Using Binance Spot exchange")
	return spot, nil
}

// AssetsInfo returns the trading rules of pair
func (s *Spot) AssetsInfo(pair string) core.AssetInfo {
	if info, ok := s.assetsInfo[pair]; ok {
		return info
	}
	return exchange.DefaultAssetInfo(pair)
}

// IsListed reports whether the exchange lists pair
func (s *Spot) IsListed(pair string) bool {
	_, ok := s.assetsInfo[pair]
	return ok
}

// retry runs fn until it succeeds, the context ends or maxRetries is exhausted.
// Every attempt waits for the rate limiter first.
func (s *Spot) retry(ctx context.Context, fn func() error) error {
	retry := setupBackoffRetry()

	var lastErr error
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		if err := s.limiter.Wait(ctx); err != nil {
			return err
		}

		if lastErr = fn(); lastErr == nil {
			return nil
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}
		if attempt == s.maxRetries {
			break
		}

		wait := retry.Duration()
		s.log.WithError(lastErr).
			WithField("attempt", attempt+1).
			Warnf("binance request failed, retrying in %s", wait)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}

	return fmt.Errorf("%w: %v", ErrMaxRetries, lastErr)
}

// CandlesByPeriod returns every candle of pair with open time in [start, end],
// paging through the klines endpoint.
func (s *Spot) CandlesByPeriod(ctx context.Context, pair, period string,
	start, end time.Time) ([]core.Candle, error) {

	step, err := str2duration.ParseDuration(period)
	if err != nil {
		return nil, fmt.Errorf("invalid period %q: %w", period, err)
	}

	endMs := end.UnixMilli()
	cursor := start.UnixMilli()
	candles := make([]core.Candle, 0)

	for cursor <= endMs {
		var data []*binance.Kline
		err := s.retry(ctx, func() (err error) {
			data, err = s.client.NewKlinesService().
				Symbol(pair).
				Interval(period).
				StartTime(cursor).
				EndTime(endMs).
				Limit(s.pageLimit).
				Do(ctx)
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("fetching %s klines: %w", pair, err)
		}

		if len(data) == 0 {
			break
		}

		for _, d := range data {
			if d.OpenTime < cursor {
				continue
			}
			candles = append(candles, convertKlineToCandle(pair, *d, s.location))
		}

		s.log.WithFields(map[string]any{
			"pair":  pair,
			"total": len(candles),
		}).Debugf("fetched %d klines", len(data))

		if len(data) < s.pageLimit {
			break
		}
		cursor = data[len(data)-1].OpenTime + step.Milliseconds()
	}

	return candles, nil
}
