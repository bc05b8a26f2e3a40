package strategy

import (
	"fmt"
	"strings"
)

// Kind identifies one of the four martingale variants
type Kind int

const (
	Reverse Kind = iota
	Multifactor
	TimeLimited
	RiskLimited
)

var kindNames = map[Kind]string{
	Reverse:     "reverse",
	Multifactor: "multifactor",
	TimeLimited: "time_limited",
	RiskLimited: "risk_limited",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// ParseKind accepts names such as "reverse" or "time-limited"
func ParseKind(s string) (Kind, error) {
	norm := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_")
	for k, name := range kindNames {
		if name == norm {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown strategy variant %q", s)
}

// Params configures a variant. Percent values are expressed as whole
// percentages (2 means 2%).
type Params struct {
	MACDFast   int `mapstructure:"macd_fast"`
	MACDSlow   int `mapstructure:"macd_slow"`
	MACDSignal int `mapstructure:"macd_signal"`

	RSIPeriod int `mapstructure:"rsi_period"`
	// RSIEntryBelow gates entries on RSI < level. Zero disables the filter.
	RSIEntryBelow float64 `mapstructure:"rsi_entry_below"`

	FixedSize   bool    `mapstructure:"fixed_size"`
	FixedUnits  float64 `mapstructure:"fixed_units"`
	SizePercent float64 `mapstructure:"size_percent"`

	Multiplier   float64 `mapstructure:"multiplier"`
	AddThreshold float64 `mapstructure:"add_threshold"`
	// MaxAdds caps add-ons per position. Zero or less means no cap.
	MaxAdds int `mapstructure:"max_adds"`
	// AddFromEntry measures Multifactor losses from the initial entry price
	// instead of the average price.
	AddFromEntry bool `mapstructure:"add_from_entry"`

	TakeProfit float64 `mapstructure:"take_profit"`
	StopLoss   float64 `mapstructure:"stop_loss"`
}

// Validate rejects parameter sets no variant can run with
func (p Params) Validate() error {
	switch {
	case p.MACDFast <= 0 || p.MACDSlow <= 0 || p.MACDSignal <= 0:
		return fmt.Errorf("macd periods must be positive: %d/%d/%d", p.MACDFast, p.MACDSlow, p.MACDSignal)
	case p.RSIPeriod <= 0:
		return fmt.Errorf("rsi period must be positive: %d", p.RSIPeriod)
	case p.FixedSize && p.FixedUnits <= 0:
		return fmt.Errorf("fixed units must be positive: %v", p.FixedUnits)
	case !p.FixedSize && p.SizePercent <= 0:
		return fmt.Errorf("size percent must be positive: %v", p.SizePercent)
	case p.Multiplier <= 0:
		return fmt.Errorf("multiplier must be positive: %v", p.Multiplier)
	case p.AddThreshold < 0 || p.TakeProfit < 0 || p.StopLoss < 0:
		return fmt.Errorf("thresholds must not be negative")
	}
	return nil
}

func baseParams() Params {
	return Params{
		MACDFast:     12,
		MACDSlow:     26,
		MACDSignal:   9,
		RSIPeriod:    14,
		SizePercent:  1,
		Multiplier:   2,
		AddThreshold: 2,
		MaxAdds:      6,
		TakeProfit:   60,
		StopLoss:     8,
	}
}

// DefaultParams returns the parameters a variant runs with when nothing is
// overridden. stopAware selects the build with take-profit/stop-loss exits;
// the other build sizes more aggressively and never exits.
func DefaultParams(kind Kind, stopAware bool) Params {
	p := baseParams()

	switch kind {
	case Reverse:
		p.MaxAdds = 0
		if stopAware {
			p.TakeProfit, p.StopLoss = 8, 25
		}
	case Multifactor:
		p.RSIEntryBelow = 40
		p.AddFromEntry = !stopAware
	case RiskLimited:
		p.FixedUnits = 0.5
	}

	if !stopAware {
		p.SizePercent = 5
		p.AddThreshold = 5
		if p.MaxAdds > 0 {
			p.MaxAdds = 8
		}
		p.TakeProfit, p.StopLoss = 0, 0
	}

	return p
}
