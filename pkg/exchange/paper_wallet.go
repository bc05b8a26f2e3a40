package exchange

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/raykavin/martinrun/pkg/core"
	"github.com/raykavin/martinrun/pkg/logger"
	"github.com/raykavin/martinrun/pkg/metric"
)

// AssetValue is the value of a holding at a point in time
type AssetValue struct {
	Time  time.Time
	Value float64
}

type assetInfo struct {
	Free float64
	Lock float64
}

// PaperWallet is a simulated spot account. Market orders fill immediately at
// the last seen close, charged with the taker fee in the quote asset.
type PaperWallet struct {
	mu sync.RWMutex

	log          logger.Logger
	baseCoin     string
	counter      int64
	takerFee     float64
	initialValue float64

	orders       []core.Order
	assets       map[string]*assetInfo
	avgLongPrice map[string]float64
	fees         float64

	lastCandle map[string]core.Candle

	equityValues []AssetValue
}

// PaperWalletOption configures a PaperWallet
type PaperWalletOption func(*PaperWallet)

// WithPaperAsset adds an initial balance
func WithPaperAsset(asset string, amount float64) PaperWalletOption {
	return func(wallet *PaperWallet) {
		wallet.assets[asset] = &assetInfo{Free: amount}
	}
}

// WithPaperFee sets the taker fee as a fraction of traded value (0.001 = 0.1%)
func WithPaperFee(taker float64) PaperWalletOption {
	return func(wallet *PaperWallet) {
		wallet.takerFee = taker
	}
}

// WithPaperLogger sets the wallet logger
func WithPaperLogger(log logger.Logger) PaperWalletOption {
	return func(wallet *PaperWallet) {
		wallet.log = log
	}
}

// NewPaperWallet creates a wallet whose equity is measured in baseCoin
func NewPaperWallet(baseCoin string, options ...PaperWalletOption) *PaperWallet {
	wallet := &PaperWallet{
		log:          logger.Nop(),
		baseCoin:     baseCoin,
		assets:       make(map[string]*assetInfo),
		avgLongPrice: make(map[string]float64),
		lastCandle:   make(map[string]core.Candle),
	}

	for _, option := range options {
		option(wallet)
	}

	wallet.ensureAssetExists(baseCoin)
	wallet.initialValue = wallet.assets[baseCoin].Free

	wallet.log.Debugf("paper wallet funded with %f %s", wallet.initialValue, baseCoin)
	return wallet
}

func (p *PaperWallet) nextID() int64 {
	p.counter++
	return p.counter
}

// InitialValue is the starting balance in the base coin
func (p *PaperWallet) InitialValue() float64 { return p.initialValue }

// Orders returns every filled order
func (p *PaperWallet) Orders() []core.Order {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]core.Order(nil), p.orders...)
}

// Fees returns the total fees paid
func (p *PaperWallet) Fees() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.fees
}

// EquityValues returns the equity curve, one point per snapshotted candle
func (p *PaperWallet) EquityValues() []AssetValue {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]AssetValue(nil), p.equityValues...)
}

// MaxDrawdown returns the largest peak-to-trough decline of the equity curve
// as a percentage of the peak, with the peak and trough times. The starting
// balance counts as a peak at the time of the first point.
func (p *PaperWallet) MaxDrawdown() (float64, time.Time, time.Time) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if len(p.equityValues) == 0 {
		return 0, time.Time{}, time.Time{}
	}

	start := AssetValue{Time: p.equityValues[0].Time, Value: p.initialValue}
	curve := append([]AssetValue{start}, p.equityValues...)

	values := lo.Map(curve, func(v AssetValue, _ int) float64 { return v.Value })
	drawdown, peak, trough := metric.MaxDrawdown(values)
	if drawdown == 0 {
		return 0, time.Time{}, time.Time{}
	}
	return drawdown, curve[peak].Time, curve[trough].Time
}

func (p *PaperWallet) ensureAssetExists(asset string) {
	if _, ok := p.assets[asset]; !ok {
		p.assets[asset] = &assetInfo{}
	}
}

// OnCandle records the latest price of a pair
func (p *PaperWallet) OnCandle(candle core.Candle) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.lastCandle[candle.Pair] = candle
}

// Snapshot appends the current equity to the curve for a complete candle.
// Call it once the candle's fills are done.
func (p *PaperWallet) Snapshot(candle core.Candle) {
	if !candle.Complete {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.equityValues = append(p.equityValues, AssetValue{Time: candle.Time, Value: p.equity()})
}

func (p *PaperWallet) equity() float64 {
	var total float64
	for asset, info := range p.assets {
		amount := info.Free + info.Lock
		if asset == p.baseCoin {
			total += amount
			continue
		}
		if candle, ok := p.lastCandle[asset+p.baseCoin]; ok {
			total += amount * candle.Close
		}
	}
	return total
}

// Equity is the account value in the base coin at the last seen prices
func (p *PaperWallet) Equity() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.equity()
}

// AveragePrice is the average fill price of the open long position in pair
func (p *PaperWallet) AveragePrice(pair string) float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.avgLongPrice[pair]
}

// Account returns every balance held
func (p *PaperWallet) Account() (core.Account, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.account(), nil
}

func (p *PaperWallet) account() core.Account {
	balances := make([]core.Balance, 0, len(p.assets))
	for asset, info := range p.assets {
		balances = append(balances, core.Balance{Asset: asset, Free: info.Free, Lock: info.Lock})
	}
	return core.Account{Balances: balances}
}

// Position returns the asset and quote holdings of pair
func (p *PaperWallet) Position(pair string) (asset, quote float64, err error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	assetTick, quoteTick := SplitAssetQuote(pair)
	if assetTick == "" {
		return 0, 0, fmt.Errorf("%w: %s", ErrInvalidAsset, pair)
	}

	assetBalance, quoteBalance := p.account().GetBalance(assetTick, quoteTick)
	return assetBalance.Total(), quoteBalance.Total(), nil
}

// CreateOrderMarket fills size units of pair at the last close
func (p *PaperWallet) CreateOrderMarket(side core.SideType, pair string, size float64) (core.Order, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	candle, ok := p.lastCandle[pair]
	if !ok {
		return core.Order{}, fmt.Errorf("%w: %s", ErrNoPrice, pair)
	}

	return p.fill(side, core.OrderTypeMarket, pair, size, candle.Close, candle.Time)
}

// Liquidate sells the whole long holding of pair at price, as a triggered
// take-profit or stop-loss would. It returns false when nothing is held.
func (p *PaperWallet) Liquidate(pair string, price float64, orderType core.OrderType, at time.Time) (core.Order, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	asset, _ := SplitAssetQuote(pair)
	info, ok := p.assets[asset]
	if !ok || info.Free <= 0 {
		return core.Order{}, false, nil
	}

	order, err := p.fill(core.SideTypeSell, orderType, pair, info.Free, price, at)
	if err != nil {
		return core.Order{}, false, err
	}
	return order, true, nil
}

func (p *PaperWallet) fill(side core.SideType, orderType core.OrderType, pair string,
	size, price float64, at time.Time) (core.Order, error) {

	if size <= 0 || math.IsNaN(size) {
		return core.Order{}, ErrInvalidQuantity
	}

	asset, quote := SplitAssetQuote(pair)
	if asset == "" {
		return core.Order{}, fmt.Errorf("%w: %s", ErrInvalidAsset, pair)
	}
	p.ensureAssetExists(asset)
	p.ensureAssetExists(quote)

	value := size * price
	fee := value * p.takerFee

	switch side {
	case core.SideTypeBuy:
		if p.assets[quote].Free < value+fee {
			return core.Order{}, &OrderError{Err: ErrInsufficientFunds, Pair: pair, Quantity: size}
		}
		held := p.assets[asset].Free
		p.avgLongPrice[pair] = (p.avgLongPrice[pair]*held + value) / (held + size)
		p.assets[quote].Free -= value + fee
		p.assets[asset].Free += size

	case core.SideTypeSell:
		held := p.assets[asset].Free
		if held < size {
			return core.Order{}, &OrderError{Err: ErrInsufficientFunds, Pair: pair, Quantity: size}
		}
		profit := value - size*p.avgLongPrice[pair]
		p.log.WithFields(map[string]any{"pair": pair, "profit": profit}).Debugf("closing %f at %f", size, price)

		p.assets[asset].Free -= size
		p.assets[quote].Free += value - fee
		if p.assets[asset].Free <= 0 {
			p.assets[asset].Free = 0
			delete(p.avgLongPrice, pair)
		}

	default:
		return core.Order{}, fmt.Errorf("unknown side %q", side)
	}

	p.fees += fee

	order := core.Order{
		ID:        p.nextID(),
		Pair:      pair,
		Side:      side,
		Type:      orderType,
		Status:    core.OrderStatusTypeFilled,
		Price:     price,
		Quantity:  size,
		Fee:       fee,
		CreatedAt: at,
	}
	p.orders = append(p.orders, order)

	return order, nil
}
