package core

import (
	"fmt"
	"time"
)

// SideType represents the direction of an order (BUY or SELL)
type SideType string

// OrderType represents the type of order
type OrderType string

// OrderStatusType represents the status of an order
type OrderStatusType string

const (
	SideTypeBuy  SideType = "BUY"
	SideTypeSell SideType = "SELL"
)

const (
	OrderTypeMarket     OrderType = "MARKET"
	OrderTypeStopLoss   OrderType = "STOP_LOSS"
	OrderTypeTakeProfit OrderType = "TAKE_PROFIT"
)

const (
	OrderStatusTypeFilled OrderStatusType = "FILLED"
)

// Order is a filled paper order
type Order struct {
	ID       int64           `json:"id"`
	Pair     string          `json:"pair"`
	Side     SideType        `json:"side"`
	Type     OrderType       `json:"type"`
	Status   OrderStatusType `json:"status"`
	Price    float64         `json:"price"`
	Quantity float64         `json:"quantity"`
	Fee      float64         `json:"fee"`

	CreatedAt time.Time `json:"created_at"`
}

// Value returns price * quantity
func (o Order) Value() float64 {
	return o.Price * o.Quantity
}

func (o Order) String() string {
	return fmt.Sprintf("[%s] %s %s | ID: %d, Type: %s, %f x $%f (~$%.2f)",
		o.Status, o.Side, o.Pair, o.ID, o.Type, o.Quantity, o.Price, o.Quantity*o.Price)
}
