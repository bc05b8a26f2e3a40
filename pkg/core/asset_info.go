package core

// AssetInfo contains market information about a trading pair
type AssetInfo struct {
	BaseAsset  string
	QuoteAsset string

	MinQuantity float64
	MaxQuantity float64
	StepSize    float64
	TickSize    float64

	QuotePrecision     int
	BaseAssetPrecision int
}
