package strategy

import (
	"math"
	"time"

	"github.com/raykavin/martinrun/pkg/core"
	"github.com/raykavin/martinrun/pkg/indicator"
	"github.com/raykavin/martinrun/pkg/logger"
)

const (
	metaMACD       = "macd"
	metaMACDSignal = "macd_signal"
	metaRSI        = "rsi"
)

// Martingale runs a Variant as a core.Strategy against a broker
type Martingale struct {
	pair     string
	variant  *Variant
	position Position
	log      logger.Logger
}

// NewMartingale wraps variant for pair
func NewMartingale(pair string, variant *Variant, log logger.Logger) *Martingale {
	if log == nil {
		log = logger.Nop()
	}
	return &Martingale{
		pair:    pair,
		variant: variant,
		log:     log.WithFields(map[string]any{"pair": pair, "variant": variant.String()}),
	}
}

func (m *Martingale) Timeframe() string { return "1m" }

// WarmupPeriod is the number of bars MACD and RSI need for a first value
func (m *Martingale) WarmupPeriod() int {
	p := m.variant.Params()
	return max(p.MACDSlow+p.MACDSignal-1, p.RSIPeriod+1)
}

func (m *Martingale) Indicators(df *core.Dataframe) {
	p := m.variant.Params()
	macd, signal, _ := indicator.MACD(df.Close, p.MACDFast, p.MACDSlow, p.MACDSignal)
	df.Metadata[metaMACD] = macd
	df.Metadata[metaMACDSignal] = signal
	df.Metadata[metaRSI] = indicator.RSI(df.Close, p.RSIPeriod)
}

func (m *Martingale) OnCandle(df *core.Dataframe, broker core.Broker) {
	if m.position.Exited {
		return
	}

	asset, quote, err := broker.Position(m.pair)
	if err != nil {
		m.log.WithError(err).Error("failed to read position")
		return
	}

	m.position.Size = asset
	if asset > 0 {
		m.position.AvgPrice = broker.AveragePrice(m.pair)
	}

	sig := Signal{
		Time:       df.Time[len(df.Time)-1],
		Close:      df.Close.Last(0),
		MACD:       df.Metadata[metaMACD].Last(0),
		MACDSignal: df.Metadata[metaMACDSignal].Last(0),
		RSI:        df.Metadata[metaRSI].Last(0),
		Equity:     broker.Equity(),
		Cash:       quote,
	}
	if math.IsNaN(sig.MACD) || math.IsNaN(sig.MACDSignal) {
		return
	}

	next, intent := m.variant.Step(m.position, sig)
	if intent == nil {
		m.position = next
		return
	}

	order, err := broker.CreateOrderMarket(core.SideTypeBuy, m.pair, intent.Size)
	if err != nil {
		m.log.WithError(err).Debugf("%s of %.8f rejected", intent.Kind, intent.Size)
		return
	}

	next.AvgPrice = broker.AveragePrice(m.pair)
	m.position = next

	m.log.WithFields(map[string]any{
		"kind":      intent.Kind.String(),
		"size":      order.Quantity,
		"price":     order.Price,
		"add_count": next.AddCount,
	}).Debug("position updated")
}

// Position returns a copy of the current bookkeeping record
func (m *Martingale) Position() Position { return m.position }

// Variant returns the rule set this strategy runs
func (m *Martingale) Variant() *Variant { return m.variant }

// MarkExited flags the position as closed by an external exit at t. No
// further bar changes the position afterwards.
func (m *Martingale) MarkExited(t time.Time) {
	m.position.Exited = true
	m.position.CloseTime = t
	m.position.Size = 0
}
