package exchange

import (
	"strings"
	"sync"
)

// AssetQuote is the base/quote split of a pair
type AssetQuote struct {
	Asset string `json:"asset"`
	Quote string `json:"quote"`
}

var (
	pairsMu sync.RWMutex
	pairs   = make(map[string]AssetQuote)

	// quote assets tried, longest first, when a pair is not registered
	knownQuotes = []string{"FDUSD", "USDT", "USDC", "BUSD", "TUSD", "BTC", "ETH", "BNB", "EUR", "TRY"}
)

// RegisterPairs records exchange-provided splits, replacing earlier entries
func RegisterPairs(m map[string]AssetQuote) {
	pairsMu.Lock()
	defer pairsMu.Unlock()

	for pair, aq := range m {
		pairs[strings.ToUpper(pair)] = aq
	}
}

// SplitAssetQuote splits a trading pair into asset and quote parts. Returns
// empty strings when the pair cannot be split.
func SplitAssetQuote(pair string) (asset, quote string) {
	pair = strings.ToUpper(pair)

	pairsMu.RLock()
	aq, ok := pairs[pair]
	pairsMu.RUnlock()
	if ok {
		return aq.Asset, aq.Quote
	}

	for _, q := range knownQuotes {
		if len(pair) > len(q) && strings.HasSuffix(pair, q) {
			return pair[:len(pair)-len(q)], q
		}
	}

	return "", ""
}
