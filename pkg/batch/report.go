package batch

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/aybabtme/uniplot/histogram"
	"github.com/olekukonko/tablewriter"
	"github.com/samber/lo"

	"github.com/raykavin/martinrun/pkg/metric"
	"github.com/raykavin/martinrun/pkg/regime"
)

// TimeLayout formats entry and close times in the report
const TimeLayout = "2006-01-02 15:04:05"

const bootstrapSamples = 10000

// Header returns the report columns of either build
func Header(stopAware bool) []string {
	if stopAware {
		return []string{"symbol", "start_date", "end_value", "max_drawdown", "trade_time",
			"last_entry_time", "close_time", "regime", "status", "reason"}
	}
	return []string{"symbol", "start_date", "end_value", "sharpe_ratio", "trade_time",
		"last_entry_time", "regime", "status", "reason"}
}

func formatFloat(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(TimeLayout)
}

func regimeLabel(r regime.Regime) string {
	if r == regime.Unknown {
		return ""
	}
	return r.String()
}

// Record renders one outcome as a report row. Values that do not exist for
// skipped or failed entries, or undefined metrics, are left empty.
func Record(outcome Outcome, stopAware bool) []string {
	var endValue, metricValue, tradeTime, lastEntry, closeTime string

	if outcome.Status == StatusOK {
		result := outcome.Result
		endValue = formatFloat(result.EndValue)
		tradeTime = strconv.Itoa(result.Entries)
		lastEntry = formatTime(result.LastEntryTime)
		closeTime = formatTime(result.CloseTime)
		if stopAware {
			metricValue = formatFloat(result.MaxDrawdown)
		} else {
			metricValue = formatFloat(result.SharpeRatio)
		}
	}

	row := []string{outcome.Symbol, outcome.Key(), endValue, metricValue, tradeTime, lastEntry}
	if stopAware {
		row = append(row, closeTime)
	}
	return append(row, regimeLabel(outcome.Regime), string(outcome.Status), outcome.Reason)
}

// WriteCSV writes the header and one row per outcome
func WriteCSV(w io.Writer, outcomes []Outcome, stopAware bool) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(Header(stopAware)); err != nil {
		return err
	}

	for _, outcome := range outcomes {
		if err := writer.Write(Record(outcome, stopAware)); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

// SaveCSV writes the report to path
func SaveCSV(path string, outcomes []Outcome, stopAware bool) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}

	if err := WriteCSV(file, outcomes, stopAware); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

// Returns lists the percent return of every successful outcome
func Returns(outcomes []Outcome) []float64 {
	ok := lo.Filter(outcomes, func(o Outcome, _ int) bool { return o.Status == StatusOK })
	return lo.Map(ok, func(o Outcome, _ int) float64 { return o.Result.Return() })
}

type regimeRow struct {
	runs, ok, skipped, failed int
	returns                   []float64
	metric                    []float64
}

func (r *regimeRow) add(outcome Outcome, stopAware bool) {
	r.runs++
	switch outcome.Status {
	case StatusOK:
		r.ok++
		r.returns = append(r.returns, outcome.Result.Return())
		value := outcome.Result.SharpeRatio
		if stopAware {
			value = outcome.Result.MaxDrawdown
		}
		if !math.IsNaN(value) {
			r.metric = append(r.metric, value)
		}
	case StatusSkipped:
		r.skipped++
	default:
		r.failed++
	}
}

func (r *regimeRow) cells(label string) []string {
	winRate := "-"
	if len(r.returns) > 0 {
		winRate = fmt.Sprintf("%.1f %%", metric.WinRate(r.returns)*100)
	}
	avgMetric := "-"
	if len(r.metric) > 0 {
		avgMetric = fmt.Sprintf("%.3f", metric.Mean(r.metric))
	}

	return []string{
		label,
		strconv.Itoa(r.runs),
		strconv.Itoa(r.ok),
		strconv.Itoa(r.skipped),
		strconv.Itoa(r.failed),
		fmt.Sprintf("%.2f %%", metric.Mean(r.returns)),
		winRate,
		ratio(metric.Payoff(r.returns)),
		ratio(metric.ProfitFactor(r.returns)),
		avgMetric,
	}
}

// ratio formats an optional ratio, "-" when undefined
func ratio(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "-"
	}
	return fmt.Sprintf("%.3f", v)
}

// Summary renders per-regime statistics and a bootstrap confidence interval
// of the mean return
func Summary(outcomes []Outcome, stopAware bool) string {
	buffer := &strings.Builder{}
	table := tablewriter.NewWriter(buffer)

	metricHeader := "Avg Sharpe"
	if stopAware {
		metricHeader = "Avg Max DD %"
	}
	table.SetHeader([]string{"Regime", "Runs", "OK", "Skipped", "Failed", "Avg Return", "% Win", "Payoff", "Pr Fact.", metricHeader})
	table.SetFooterAlignment(tablewriter.ALIGN_RIGHT)

	rows := make(map[regime.Regime]*regimeRow)
	total := &regimeRow{}
	for _, outcome := range outcomes {
		row, ok := rows[outcome.Regime]
		if !ok {
			row = &regimeRow{}
			rows[outcome.Regime] = row
		}
		row.add(outcome, stopAware)
		total.add(outcome, stopAware)
	}

	for _, r := range append(regime.All(), regime.Unknown) {
		row, ok := rows[r]
		if !ok {
			continue
		}
		label := r.String()
		if r == regime.Unknown {
			label = "Unclassified"
		}
		table.Append(row.cells(label))
	}

	table.SetFooter(total.cells("TOTAL"))
	table.Render()

	if len(total.returns) > 1 {
		interval := metric.Bootstrap(total.returns, metric.Mean, bootstrapSamples, 0.95)
		fmt.Fprintf(buffer, "RETURN (95%% CI): %.2f%% (%.2f%% ~ %.2f%%)\n",
			interval.Mean, interval.Lower, interval.Upper)
	}

	return buffer.String()
}

// Render writes the summary and a histogram of returns to w
func Render(w io.Writer, outcomes []Outcome, stopAware bool) error {
	if _, err := fmt.Fprintln(w, Summary(outcomes, stopAware)); err != nil {
		return err
	}

	returns := Returns(outcomes)
	if len(lo.Uniq(returns)) < 2 {
		return nil
	}

	fmt.Fprintln(w, "------ RETURN % -------")
	hist := histogram.Hist(15, returns)
	if err := histogram.Fprint(w, hist, histogram.Linear(10)); err != nil {
		return err
	}
	_, err := fmt.Fprintln(w)
	return err
}
