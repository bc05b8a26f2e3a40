package exchange

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"time"

	"github.com/samber/lo"
	"github.com/xhit/go-str2duration/v2"

	"github.com/raykavin/martinrun/pkg/core"
)

var (
	ErrUnknownPair = errors.New("pair not loaded")

	defaultHeaderMap = map[string]int{
		"time": 0, "open": 1, "close": 2, "low": 3, "high": 4, "volume": 5,
	}
)

// PairFeed points a pair to a CSV file of candles in the given timeframe
type PairFeed struct {
	Pair      string
	File      string
	Timeframe string
}

// CSVFeed serves candles loaded from CSV files, resampled to a target timeframe
type CSVFeed struct {
	Feeds               map[string]PairFeed
	CandlePairTimeFrame map[string][]core.Candle
}

// AssetsInfo returns unrestricted trading rules for pair
func (c CSVFeed) AssetsInfo(pair string) core.AssetInfo {
	return DefaultAssetInfo(pair)
}

// parseHeaders maps column names to indexes. Files without a header row
// use the default column order.
func parseHeaders(headers []string) (headerMap map[string]int, hasHeader bool, err error) {
	if len(headers) == 0 {
		return nil, false, fmt.Errorf("%w: empty header", core.ErrInvalidData)
	}

	if _, err := strconv.ParseInt(headers[0], 10, 64); err == nil {
		return defaultHeaderMap, false, nil
	}

	headerMap = make(map[string]int, len(headers))
	for index, header := range headers {
		headerMap[header] = index
	}

	for column := range defaultHeaderMap {
		if _, ok := headerMap[column]; !ok {
			return nil, true, fmt.Errorf("%w: missing column %q", core.ErrInvalidData, column)
		}
	}

	return headerMap, true, nil
}

// NewCSVFeed loads every feed and resamples it to targetTimeframe. Both the
// source and the target timeframes can be queried afterwards.
func NewCSVFeed(targetTimeframe string, feeds ...PairFeed) (*CSVFeed, error) {
	csvFeed := &CSVFeed{
		Feeds:               make(map[string]PairFeed),
		CandlePairTimeFrame: make(map[string][]core.Candle),
	}

	for _, feed := range feeds {
		csvFeed.Feeds[feed.Pair] = feed

		candles, err := readCandlesFromCSV(feed)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", feed.File, err)
		}

		csvFeed.CandlePairTimeFrame[csvFeed.feedTimeframeKey(feed.Pair, feed.Timeframe)] = candles

		if err := csvFeed.resample(feed.Pair, feed.Timeframe, targetTimeframe); err != nil {
			return nil, err
		}
	}

	return csvFeed, nil
}

func readCandlesFromCSV(feed PairFeed) ([]core.Candle, error) {
	csvFile, err := os.Open(feed.File)
	if err != nil {
		return nil, err
	}
	defer csvFile.Close()

	csvLines, err := csv.NewReader(csvFile).ReadAll()
	if err != nil {
		return nil, err
	}

	if len(csvLines) == 0 {
		return nil, nil
	}

	headerMap, hasHeader, err := parseHeaders(csvLines[0])
	if err != nil {
		return nil, err
	}
	if hasHeader {
		csvLines = csvLines[1:]
	}

	candles := make([]core.Candle, 0, len(csvLines))
	for i, line := range csvLines {
		candle, err := parseCandleFromLine(line, headerMap, feed.Pair)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", i+1, err)
		}
		candles = append(candles, candle)
	}

	return candles, nil
}

// parseTimestamp accepts unix seconds or unix milliseconds
func parseTimestamp(value string) (time.Time, error) {
	timestamp, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return time.Time{}, err
	}

	if timestamp > 1e12 {
		return time.UnixMilli(timestamp).UTC(), nil
	}
	return time.Unix(timestamp, 0).UTC(), nil
}

func parseCandleFromLine(line []string, headerMap map[string]int, pair string) (core.Candle, error) {
	column := func(name string) (string, error) {
		index := headerMap[name]
		if index >= len(line) {
			return "", fmt.Errorf("%w: missing %s", core.ErrInvalidData, name)
		}
		return line[index], nil
	}

	raw, err := column("time")
	if err != nil {
		return core.Candle{}, err
	}
	openTime, err := parseTimestamp(raw)
	if err != nil {
		return core.Candle{}, err
	}

	candle := core.Candle{
		Pair:      pair,
		Time:      openTime,
		UpdatedAt: openTime,
		Complete:  true,
	}

	fields := []struct {
		name   string
		target *float64
	}{
		{"open", &candle.Open},
		{"close", &candle.Close},
		{"low", &candle.Low},
		{"high", &candle.High},
		{"volume", &candle.Volume},
	}

	for _, field := range fields {
		raw, err := column(field.name)
		if err != nil {
			return core.Candle{}, err
		}
		if *field.target, err = strconv.ParseFloat(raw, 64); err != nil {
			return core.Candle{}, err
		}
	}

	return candle, nil
}

func (c CSVFeed) feedTimeframeKey(pair, timeframe string) string {
	return fmt.Sprintf("%s--%s", pair, timeframe)
}

func isFirstCandlePeriod(t time.Time, fromTimeframe, targetTimeframe string) (bool, error) {
	fromDuration, err := str2duration.ParseDuration(fromTimeframe)
	if err != nil {
		return false, err
	}

	prev := t.Add(-fromDuration).UTC()
	return isLastCandlePeriod(prev, fromTimeframe, targetTimeframe)
}

func isLastCandlePeriod(t time.Time, fromTimeframe, targetTimeframe string) (bool, error) {
	if fromTimeframe == targetTimeframe {
		return true, nil
	}

	fromDuration, err := str2duration.ParseDuration(fromTimeframe)
	if err != nil {
		return false, err
	}

	next := t.Add(fromDuration).UTC()
	return isTimeOnPeriodBoundary(next, targetTimeframe)
}

func isTimeOnPeriodBoundary(t time.Time, targetTimeframe string) (bool, error) {
	switch targetTimeframe {
	case "1m":
		return t.Second() == 0, nil
	case "5m":
		return t.Minute()%5 == 0 && t.Second() == 0, nil
	case "15m":
		return t.Minute()%15 == 0 && t.Second() == 0, nil
	case "30m":
		return t.Minute()%30 == 0 && t.Second() == 0, nil
	case "1h":
		return t.Minute() == 0 && t.Second() == 0, nil
	case "4h":
		return t.Hour()%4 == 0 && t.Minute() == 0 && t.Second() == 0, nil
	case "1d":
		return t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0, nil
	default:
		return false, fmt.Errorf("invalid timeframe: %s", targetTimeframe)
	}
}

func (c *CSVFeed) resample(pair, sourceTimeframe, targetTimeframe string) error {
	if sourceTimeframe == targetTimeframe {
		return nil
	}

	sourceCandles := c.CandlePairTimeFrame[c.feedTimeframeKey(pair, sourceTimeframe)]
	if len(sourceCandles) == 0 {
		return nil
	}

	startIdx, err := findFirstPeriodCandle(sourceCandles, sourceTimeframe, targetTimeframe)
	if err != nil {
		return err
	}

	targetCandles, err := resampleCandles(sourceCandles[startIdx:], sourceTimeframe, targetTimeframe)
	if err != nil {
		return err
	}

	c.CandlePairTimeFrame[c.feedTimeframeKey(pair, targetTimeframe)] = targetCandles
	return nil
}

func findFirstPeriodCandle(candles []core.Candle, sourceTimeframe, targetTimeframe string) (int, error) {
	for i := range candles {
		isFirst, err := isFirstCandlePeriod(candles[i].Time, sourceTimeframe, targetTimeframe)
		if err != nil {
			return 0, err
		}
		if isFirst {
			return i, nil
		}
	}
	return 0, nil
}

// resampleCandles groups source candles by target period. A trailing partial
// period is dropped.
func resampleCandles(sourceCandles []core.Candle, sourceTimeframe, targetTimeframe string) ([]core.Candle, error) {
	targetCandles := make([]core.Candle, 0, len(sourceCandles)/4)

	var current core.Candle
	inPeriod := false

	for _, candle := range sourceCandles {
		isLast, err := isLastCandlePeriod(candle.Time, sourceTimeframe, targetTimeframe)
		if err != nil {
			return nil, err
		}

		if !inPeriod {
			current = candle
			inPeriod = true
		} else {
			current.High = math.Max(current.High, candle.High)
			current.Low = math.Min(current.Low, candle.Low)
			current.Close = candle.Close
			current.Volume += candle.Volume
			current.UpdatedAt = candle.UpdatedAt
		}

		if isLast {
			current.Complete = true
			targetCandles = append(targetCandles, current)
			inPeriod = false
		}
	}

	return targetCandles, nil
}

// CandlesByPeriod returns the loaded candles of pair with open time in [start, end]
func (c CSVFeed) CandlesByPeriod(_ context.Context, pair, timeframe string, start, end time.Time) ([]core.Candle, error) {
	candles, ok := c.CandlePairTimeFrame[c.feedTimeframeKey(pair, timeframe)]
	if !ok {
		return nil, fmt.Errorf("%w: %s %s", ErrUnknownPair, pair, timeframe)
	}

	return lo.Filter(candles, func(candle core.Candle, _ int) bool {
		return !candle.Time.Before(start) && !candle.Time.After(end)
	}), nil
}
