package backtesting

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/xhit/go-str2duration/v2"

	"github.com/raykavin/martinrun/pkg/core"
	"github.com/raykavin/martinrun/pkg/logger"
)

const batchSize = 500

var csvHeaders = []string{"time", "open", "close", "low", "high", "volume"}

// Downloader saves historical candles of a feeder to CSV files readable by
// exchange.CSVFeed
type Downloader struct {
	exchange core.Feeder
	log      logger.Logger
	progress io.Writer
}

// DownloaderOption configures a Downloader
type DownloaderOption func(*Downloader)

// WithDownloadLogger sets the downloader logger
func WithDownloadLogger(log logger.Logger) DownloaderOption {
	return func(d *Downloader) {
		d.log = log
	}
}

// WithProgressOutput redirects the progress bar. nil disables it.
func WithProgressOutput(w io.Writer) DownloaderOption {
	return func(d *Downloader) {
		d.progress = w
	}
}

// NewDownloader creates a downloader reading from exchange
func NewDownloader(exchange core.Feeder, options ...DownloaderOption) Downloader {
	downloader := Downloader{
		exchange: exchange,
		log:      logger.Nop(),
		progress: os.Stderr,
	}
	for _, option := range options {
		option(&downloader)
	}
	return downloader
}

// Parameters defines the time range for data download
type Parameters struct {
	Start time.Time
	End   time.Time
}

// Option configures download parameters
type Option func(*Parameters)

// WithInterval sets specific start and end times for the download
func WithInterval(start, end time.Time) Option {
	return func(parameters *Parameters) {
		parameters.Start = start
		parameters.End = end
	}
}

// WithDays sets the download period to a number of days up to now
func WithDays(days int) Option {
	return func(parameters *Parameters) {
		parameters.Start = time.Now().AddDate(0, 0, -days)
		parameters.End = time.Now()
	}
}

func calculateCandleCount(start, end time.Time, timeframe string) (int, time.Duration, error) {
	interval, err := str2duration.ParseDuration(timeframe)
	if err != nil {
		return 0, 0, err
	}
	return int(end.Sub(start) / interval), interval, nil
}

// Download fetches the candles of pair and writes them to outputPath
func (d Downloader) Download(ctx context.Context, pair, timeframe, outputPath string, options ...Option) error {
	parameters := initializeParameters()
	for _, option := range options {
		option(parameters)
	}
	normalizeTimeParameters(parameters)

	candleCount, interval, err := calculateCandleCount(parameters.Start, parameters.End, timeframe)
	if err != nil {
		return err
	}
	candleCount++

	recordFile, err := os.Create(outputPath)
	if err != nil {
		return err
	}
	defer recordFile.Close()

	log := d.log.WithFields(map[string]any{"pair": pair, "timeframe": timeframe})
	log.Infof("Downloading %d candles", candleCount)

	writer := csv.NewWriter(recordFile)
	assetInfo := d.exchange.AssetsInfo(pair)

	progress := io.Discard
	if d.progress != nil {
		progress = d.progress
	}
	progressBar := progressbar.NewOptions64(int64(candleCount),
		progressbar.OptionSetWriter(progress),
		progressbar.OptionSetDescription(pair),
		progressbar.OptionShowCount(),
		progressbar.OptionThrottle(65*time.Millisecond),
	)

	if err := writer.Write(csvHeaders); err != nil {
		return err
	}

	missingCandles, err := d.downloadCandleBatches(ctx, pair, timeframe, parameters, interval,
		assetInfo.QuotePrecision, writer, progressBar)
	if err != nil {
		return err
	}

	if err = progressBar.Close(); err != nil {
		log.Warnf("Failed to close progress bar: %s", err.Error())
	}

	if missingCandles > 0 {
		log.Warnf("%d missing candles", missingCandles)
	}

	writer.Flush()
	log.Info("Done!")
	return writer.Error()
}

// initializeParameters defaults to the last month
func initializeParameters() *Parameters {
	now := time.Now()
	return &Parameters{
		Start: now.AddDate(0, -1, 0),
		End:   now,
	}
}

// normalizeTimeParameters moves start to the beginning of its day and caps end at now
func normalizeTimeParameters(parameters *Parameters) {
	parameters.Start = time.Date(
		parameters.Start.Year(),
		parameters.Start.Month(),
		parameters.Start.Day(),
		0, 0, 0, 0, time.UTC,
	)

	if now := time.Now(); parameters.End.After(now) {
		parameters.End = now
	}
}

func (d Downloader) downloadCandleBatches(
	ctx context.Context,
	pair string,
	timeframe string,
	parameters *Parameters,
	interval time.Duration,
	precision int,
	writer *csv.Writer,
	progressBar *progressbar.ProgressBar,
) (int, error) {
	missingCandles := 0

	for batchStart := parameters.Start; batchStart.Before(parameters.End); batchStart = batchStart.Add(interval * batchSize) {
		batchEnd := calculateBatchEnd(batchStart, interval, parameters.End)
		isLastBatch := batchEnd.Equal(parameters.End)

		candles, err := d.exchange.CandlesByPeriod(ctx, pair, timeframe, batchStart, batchEnd)
		if err != nil {
			return missingCandles, err
		}

		if err := writeCandles(writer, candles, precision); err != nil {
			return missingCandles, err
		}

		if !isLastBatch && len(candles) < batchSize {
			missingCandles += batchSize - len(candles)
		}

		if err := progressBar.Add(len(candles)); err != nil {
			d.log.Warnf("Failed to update progress bar: %s", err.Error())
		}
	}

	return missingCandles, nil
}

// calculateBatchEnd stops one second short of the next batch start
func calculateBatchEnd(batchStart time.Time, interval time.Duration, totalEnd time.Time) time.Time {
	potentialEnd := batchStart.Add(interval * batchSize)
	if potentialEnd.Before(totalEnd) {
		return potentialEnd.Add(-1 * time.Second)
	}
	return totalEnd
}

func writeCandles(writer *csv.Writer, candles []core.Candle, precision int) error {
	for _, candle := range candles {
		if err := writer.Write(candle.ToSlice(precision)); err != nil {
			return err
		}
	}
	return nil
}
