package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/raykavin/martinrun"
	"github.com/raykavin/martinrun/internal/config"
	"github.com/raykavin/martinrun/pkg/backtesting"
	"github.com/raykavin/martinrun/pkg/batch"
	"github.com/raykavin/martinrun/pkg/exchange/binance"
)

// Command line flags
var (
	configPath string

	// Run command flags
	inputFile  string
	reportFile string
	stopAware  bool

	// Classify command flags
	symbol string
	date   string

	// Download command flags
	pair       string
	days       int
	startDate  string
	endDate    string
	timeframe  string
	outputFile string
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd := &cobra.Command{
		Use:     "martinrun",
		Short:   "Regime-conditioned martingale backtesting",
		Version: "1.0.0",
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (e.g. ./martinrun.yaml)")

	rootCmd.AddCommand(buildRunCmd(), buildClassifyCmd(), buildDownloadCmd())

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func buildRunCmd() *cobra.Command {
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Classify and backtest every entry of a batch file",
		RunE:  runBatch,
	}

	runCmd.Flags().StringVarP(&inputFile, "input", "i", "", "Batch file mapping dates to symbols (e.g. ./entries.json)")
	runCmd.Flags().StringVarP(&reportFile, "output", "o", "", "Report CSV path (e.g. ./report.csv)")
	runCmd.Flags().BoolVar(&stopAware, "stop-aware", true, "Enable take-profit/stop-loss exits")

	return runCmd
}

func buildClassifyCmd() *cobra.Command {
	classifyCmd := &cobra.Command{
		Use:   "classify",
		Short: "Print the market regime of a symbol on a date",
		RunE:  runClassify,
	}

	classifyCmd.Flags().StringVarP(&symbol, "symbol", "s", "", "Symbol (e.g. BTCUSDT)")
	classifyCmd.Flags().StringVarP(&date, "date", "d", "", "Date (e.g. 2024-03-18)")

	classifyCmd.MarkFlagRequired("symbol")
	classifyCmd.MarkFlagRequired("date")

	return classifyCmd
}

func buildDownloadCmd() *cobra.Command {
	downloadCmd := &cobra.Command{
		Use:   "download",
		Short: "Download historical data",
		RunE:  runDownload,
	}

	downloadCmd.Flags().StringVarP(&pair, "pair", "p", "", "Trading pair (e.g. BTCUSDT)")
	downloadCmd.Flags().IntVarP(&days, "days", "d", 0, "Number of days to download (default 30 days)")
	downloadCmd.Flags().StringVarP(&startDate, "start", "s", "", "Start date (e.g. 2021-12-01)")
	downloadCmd.Flags().StringVarP(&endDate, "end", "e", "", "End date (e.g. 2020-12-31)")
	downloadCmd.Flags().StringVarP(&timeframe, "timeframe", "t", "1m", "Timeframe (e.g. 1h)")
	downloadCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file path (e.g. ./btc.csv)")

	downloadCmd.MarkFlagRequired("pair")
	downloadCmd.MarkFlagRequired("output")

	return downloadCmd
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	// variant defaults depend on the build, so the flag goes through the
	// environment and is resolved together with the config file
	if flag := cmd.Flags().Lookup("stop-aware"); flag != nil && flag.Changed {
		if err := os.Setenv(config.EnvPrefix+"_STOP_AWARE", strconv.FormatBool(stopAware)); err != nil {
			return nil, err
		}
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	if inputFile != "" {
		cfg.Input = inputFile
	}
	if reportFile != "" {
		cfg.Output = reportFile
	}

	return cfg, nil
}

func runBatch(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	bt, err := martinrun.NewBacktester(cmd.Context(), cfg, martinrun.WithOutput(cmd.OutOrStdout()))
	if err != nil {
		return err
	}
	defer bt.Close()

	_, err = bt.Run(cmd.Context())
	return err
}

func runClassify(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	day, err := time.ParseInLocation(batch.DateLayout, date, loc)
	if err != nil {
		return fmt.Errorf("invalid date format: %w", err)
	}

	bt, err := martinrun.NewBacktester(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer bt.Close()

	r, stats, err := bt.Classify(cmd.Context(), symbol, day)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s %s: %s (past ATR %.6f, ATR mean %.6f, past close %.6f, SMA %.6f)\n",
		symbol, date, r, stats.PastATRMean, stats.ATRMeanAll, stats.PastCloseMean, stats.SMAAtDate)
	return nil
}

func runDownload(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	options, err := buildDownloadOptions()
	if err != nil {
		return err
	}

	spotOptions := []binance.SpotOption{
		binance.WithLogger(martinrun.DefaultLog),
		binance.WithMaxRetries(cfg.Binance.MaxRetries),
	}
	if cfg.Binance.APIKey != "" {
		spotOptions = append(spotOptions, binance.WithCredentials(cfg.Binance.APIKey, cfg.Binance.SecretKey))
	}
	if cfg.Binance.BaseURL != "" {
		spotOptions = append(spotOptions, binance.WithBaseURL(cfg.Binance.BaseURL))
	}

	exc, err := binance.NewSpot(cmd.Context(), spotOptions...)
	if err != nil {
		return err
	}

	return backtesting.NewDownloader(exc,
		backtesting.WithDownloadLogger(martinrun.DefaultLog),
		backtesting.WithProgressOutput(os.Stderr),
	).Download(cmd.Context(), pair, timeframe, outputFile, options...)
}

func buildDownloadOptions() ([]backtesting.Option, error) {
	var options []backtesting.Option

	if days > 0 {
		options = append(options, backtesting.WithDays(days))
	}

	if startDate != "" || endDate != "" {
		if startDate == "" || endDate == "" {
			return nil, fmt.Errorf("START and END dates must be provided together")
		}

		start, err := time.Parse(batch.DateLayout, startDate)
		if err != nil {
			return nil, fmt.Errorf("invalid start date format: %w", err)
		}

		end, err := time.Parse(batch.DateLayout, endDate)
		if err != nil {
			return nil, fmt.Errorf("invalid end date format: %w", err)
		}

		options = append(options, backtesting.WithInterval(start, end))
	}

	return options, nil
}
