package orderproc

import (
	"github.com/shopspring/decimal"
)

type Side int8

const (
	Buy  Side = 1
	Sell Side = 2
)

func (s Side) String() string {
	switch s {
	case Buy:
		return "buy"
	case Sell:
		return "sell"
	}
	return "unknown"
}

// Opposite returns the other side of the book.
func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

// OrderStatus tracks the fill progress of a resting order.
type OrderStatus string

const (
	OrderStatusNew     OrderStatus = "new"
	OrderStatusPartial OrderStatus = "partial"
	OrderStatusFilled  OrderStatus = "filled"
)

// EventStatus is the processing state of an OrderEvent as it moves
// through the pipeline stages.
type EventStatus string

const (
	EventStatusNewOrder     EventStatus = "new_order"
	EventStatusValidated    EventStatus = "validated"
	EventStatusRiskApproved EventStatus = "risk_approved"
	EventStatusMatched      EventStatus = "matched"
	EventStatusPending      EventStatus = "pending"
	EventStatusRejected     EventStatus = "rejected"
)

// Order represents the state of an order resting in the order book.
// Quantity only ever decreases while resting; the order is removed from
// the book the moment it reaches zero.
type Order struct {
	ID        string          `json:"id"`
	Symbol    string          `json:"symbol"`
	Side      Side            `json:"side"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int64           `json:"quantity"` // Remaining quantity
	TraderID  string          `json:"trader_id"`
	Timestamp int64           `json:"timestamp"` // Unix nano, creation time
	Status    OrderStatus     `json:"status"`

	// Intrusive linked list pointers (ignored by JSON)
	next *Order
	prev *Order
}

// TradeExecution is the result of matching two orders. Immutable once
// created. TradeID is a strictly increasing counter, a separate namespace
// from order IDs.
type TradeExecution struct {
	TradeID           uint64          `json:"trade_id"`
	BuyOrderID        string          `json:"buy_order_id"`
	SellOrderID       string          `json:"sell_order_id"`
	Symbol            string          `json:"symbol"`
	ExecutionPrice    decimal.Decimal `json:"execution_price"` // Maker's price
	ExecutionQuantity int64           `json:"execution_quantity"`
	Timestamp         int64           `json:"timestamp"` // Unix nano
	BuyTraderID       string          `json:"buy_trader_id"`
	SellTraderID      string          `json:"sell_trader_id"`
}

// OrderEvent is the payload carried by a ring buffer slot. Slots are
// recycled, so producers must overwrite every field before committing;
// the stage handlers then enrich the event in place.
type OrderEvent struct {
	OrderID   string
	Symbol    string
	Side      Side
	Price     decimal.Decimal
	Quantity  int64
	TraderID  string
	Timestamp int64 // Unix nano, submission time

	Status         EventStatus
	Reason         string // Set when Status is EventStatusRejected
	ExecutionPrice decimal.Decimal
	Trades         []*TradeExecution
}

// BookUpdateType identifies how a book update changed resting liquidity.
type BookUpdateType string

const (
	// BookUpdateOpen means an order (or its residual) was added to the book.
	BookUpdateOpen BookUpdateType = "open"
	// BookUpdateMatch means a maker order's quantity was consumed by a trade.
	BookUpdateMatch BookUpdateType = "match"
)

// BookUpdate describes a single change to one side's liquidity at a price
// level. Side is always the side whose resting quantity changed: for a
// match that is the maker's side, not the incoming order's.
type BookUpdate struct {
	Type     BookUpdateType
	Symbol   string
	Side     Side
	Price    decimal.Decimal
	SizeDiff int64 // Positive for open, negative for match
}
