package strategy

// Variant is one martingale position-management rule set. All four variants
// share the same transition shape and differ only in the hooks below.
type Variant struct {
	kind   Kind
	params Params

	// entryFilter adds conditions on top of MACD line > signal
	entryFilter func(p Params, sig Signal) bool
	// addTrigger decides whether the current bar calls for an add-on
	addTrigger func(p Params, pos Position, sig Signal) bool
	// inclusiveCash accepts adds whose cost equals the available cash
	inclusiveCash bool
	// fixedSizing allows FixedSize/FixedUnits to replace percent sizing
	fixedSizing bool
	// moveReference re-anchors EntryPrice to the price of every add
	moveReference bool
}

// NewReverse adds to winners: every further gain of AddThreshold% over the
// average price doubles down, with no cap on the number of adds. When
// TakeProfit is set, adds stop once the gain reaches it.
func NewReverse(p Params) *Variant {
	return &Variant{
		kind:   Reverse,
		params: p,
		addTrigger: func(p Params, pos Position, sig Signal) bool {
			gain := percentChange(pos.AvgPrice, sig.Close)
			if p.TakeProfit > 0 && gain >= p.TakeProfit {
				return false
			}
			return gain >= p.AddThreshold
		},
		fixedSizing: true,
	}
}

// NewMultifactor enters on MACD confirmation with an RSI filter and adds when
// the loss against the average price reaches AddThreshold%. With AddFromEntry
// the loss is measured from the initial entry price, which adds never move.
func NewMultifactor(p Params) *Variant {
	return &Variant{
		kind:   Multifactor,
		params: p,
		entryFilter: func(p Params, sig Signal) bool {
			return p.RSIEntryBelow <= 0 || sig.RSI < p.RSIEntryBelow
		},
		addTrigger: func(p Params, pos Position, sig Signal) bool {
			reference := pos.AvgPrice
			if p.AddFromEntry {
				reference = pos.EntryPrice
			}
			return -percentChange(reference, sig.Close) >= p.AddThreshold
		},
	}
}

// NewTimeLimited adds when price drops AddThreshold% below the last fill,
// stepping its reference down with every add.
func NewTimeLimited(p Params) *Variant {
	return &Variant{
		kind:   TimeLimited,
		params: p,
		addTrigger: func(p Params, pos Position, sig Signal) bool {
			return -percentChange(pos.EntryPrice, sig.Close) >= p.AddThreshold
		},
		moveReference: true,
	}
}

// NewRiskLimited adds when price drops AddThreshold% below the running
// average price and accepts adds that spend the exact remaining cash.
func NewRiskLimited(p Params) *Variant {
	return &Variant{
		kind:   RiskLimited,
		params: p,
		addTrigger: func(p Params, pos Position, sig Signal) bool {
			return -percentChange(pos.AvgPrice, sig.Close) >= p.AddThreshold
		},
		inclusiveCash: true,
		fixedSizing:   true,
		moveReference: true,
	}
}

// NewVariant builds the variant for kind
func NewVariant(kind Kind, p Params) *Variant {
	switch kind {
	case Multifactor:
		return NewMultifactor(p)
	case TimeLimited:
		return NewTimeLimited(p)
	case RiskLimited:
		return NewRiskLimited(p)
	default:
		return NewReverse(p)
	}
}

func (v *Variant) Kind() Kind { return v.kind }

func (v *Variant) Params() Params { return v.params }

func (v *Variant) String() string { return v.kind.String() }

// Step is the pure per-bar transition. It returns the position that holds if
// the returned intent (if any) is filled; callers keep the old position when
// the fill is rejected.
func (v *Variant) Step(pos Position, sig Signal) (Position, *Intent) {
	if pos.Exited {
		return pos, nil
	}

	if pos.State() == Flat {
		return v.enter(pos, sig)
	}

	return v.add(pos, sig)
}

func (v *Variant) enter(pos Position, sig Signal) (Position, *Intent) {
	if !(sig.MACD > sig.MACDSignal) {
		return pos, nil
	}
	if v.entryFilter != nil && !v.entryFilter(v.params, sig) {
		return pos, nil
	}

	size := v.entrySize(sig)
	if size <= 0 {
		return pos, nil
	}

	next := pos
	next.Size = size
	next.AvgPrice = sig.Close
	next.EntryPrice = sig.Close
	next.AddCount = 0
	next.Entered = true
	next.LastEntryTime = sig.Time

	return next, &Intent{Kind: IntentEntry, Size: size}
}

func (v *Variant) add(pos Position, sig Signal) (Position, *Intent) {
	if v.params.MaxAdds > 0 && pos.AddCount >= v.params.MaxAdds {
		return pos, nil
	}
	if !v.addTrigger(v.params, pos, sig) {
		return pos, nil
	}

	size := pos.Size * v.params.Multiplier
	if !v.affordable(sig.Cash, size*sig.Close) {
		return pos, nil
	}

	next := pos
	next.AvgPrice = (pos.AvgPrice*pos.Size + sig.Close*size) / (pos.Size + size)
	next.Size = pos.Size + size
	next.AddCount++
	next.LastEntryTime = sig.Time
	if v.moveReference {
		next.EntryPrice = sig.Close
	}

	return next, &Intent{Kind: IntentAdd, Size: size}
}

func (v *Variant) entrySize(sig Signal) float64 {
	if v.fixedSizing && v.params.FixedSize {
		return v.params.FixedUnits
	}
	if sig.Close <= 0 {
		return 0
	}
	return sig.Equity * (v.params.SizePercent / 100) / sig.Close
}

func (v *Variant) affordable(cash, cost float64) bool {
	if v.inclusiveCash {
		return cash >= cost
	}
	return cash > cost
}

func percentChange(ref, price float64) float64 {
	if ref == 0 {
		return 0
	}
	return (price - ref) / ref * 100
}
