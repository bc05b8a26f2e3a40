package core

// Account represents a trading account with multiple asset balances
type Account struct {
	Balances []Balance
}

// GetBalance retrieves the balance for a specific asset and quote pair.
// If a balance is not found for either ticker, an empty Balance is returned.
func (a Account) GetBalance(assetTick, quoteTick string) (Balance, Balance) {
	var assetBalance, quoteBalance Balance

	for _, balance := range a.Balances {
		switch balance.Asset {
		case assetTick:
			assetBalance = balance
		case quoteTick:
			quoteBalance = balance
		}
	}

	return assetBalance, quoteBalance
}
