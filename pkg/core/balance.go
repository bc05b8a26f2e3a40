package core

// Balance represents the available funds for a specific asset
type Balance struct {
	Asset string
	Free  float64
	Lock  float64
}

// Total returns free plus locked funds
func (b Balance) Total() float64 { return b.Free + b.Lock }
