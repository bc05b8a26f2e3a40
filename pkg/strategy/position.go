package strategy

import "time"

// State of a strategy's single long position
type State int

const (
	Flat State = iota
	Long
)

func (s State) String() string {
	if s == Long {
		return "long"
	}
	return "flat"
}

// Position is the bookkeeping record a variant transitions on every bar.
// EntryPrice is the add reference for variants that move it on each add;
// AvgPrice is the broker's running average fill price.
type Position struct {
	Size          float64
	AvgPrice      float64
	EntryPrice    float64
	AddCount      int
	Entered       bool
	LastEntryTime time.Time
	CloseTime     time.Time
	Exited        bool
}

// State returns Long while any size is held
func (p Position) State() State {
	if p.Size > 0 {
		return Long
	}
	return Flat
}

// Entries is the number of buys made during the run: the initial entry plus
// every add, or zero when the strategy never entered.
func (p Position) Entries() int {
	if !p.Entered {
		return 0
	}
	return p.AddCount + 1
}

// Signal is the per-bar input of a transition
type Signal struct {
	Time       time.Time
	Close      float64
	MACD       float64
	MACDSignal float64
	RSI        float64
	Equity     float64
	Cash       float64
}

// IntentKind tells whether a buy opens a position or adds to it
type IntentKind int

const (
	IntentEntry IntentKind = iota
	IntentAdd
)

func (k IntentKind) String() string {
	if k == IntentAdd {
		return "add"
	}
	return "entry"
}

// Intent is a market buy the adapter must place for a transition to hold
type Intent struct {
	Kind IntentKind
	Size float64
}
