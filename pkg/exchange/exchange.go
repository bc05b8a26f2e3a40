package exchange

import (
	"errors"
	"fmt"
	"math"

	"github.com/raykavin/martinrun/pkg/core"
)

var (
	ErrInvalidQuantity   = errors.New("invalid quantity")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrInvalidAsset      = errors.New("invalid asset")
	ErrNoPrice           = errors.New("no price for pair")
)

// OrderError wraps a rejected order
type OrderError struct {
	Err      error
	Pair     string
	Quantity float64
}

func (o *OrderError) Error() string {
	return fmt.Sprintf("order error: %v, pair: %s, quantity: %f", o.Err, o.Pair, o.Quantity)
}

func (o *OrderError) Unwrap() error { return o.Err }

// DefaultAssetInfo describes a pair with unrestricted quantities and 8 digit precision
func DefaultAssetInfo(pair string) core.AssetInfo {
	asset, quote := SplitAssetQuote(pair)
	return core.AssetInfo{
		BaseAsset:          asset,
		QuoteAsset:         quote,
		MaxQuantity:        math.MaxFloat64,
		StepSize:           0.00000001,
		TickSize:           0.00000001,
		QuotePrecision:     8,
		BaseAssetPrecision: 8,
	}
}
