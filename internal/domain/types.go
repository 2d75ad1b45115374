// Package domain defines the core value types shared by the quote source,
// the reconciler, the brokers and the decision journal.
package domain

import (
	"errors"
	"math"
	"strings"
	"time"
)

// ErrEmptyTicker is returned when a ticker is empty or only whitespace.
var ErrEmptyTicker = errors.New("ticker must not be empty")

// ValidateTicker checks that ticker is usable in a quote or order request.
// Tickers are otherwise opaque and used verbatim.
func ValidateTicker(ticker string) error {
	if strings.TrimSpace(ticker) == "" {
		return ErrEmptyTicker
	}
	return nil
}

// ---------------------------------------------------------------------------
// Price signal
// ---------------------------------------------------------------------------

// PriceSignal holds the two quotes a target quantity is derived from.
type PriceSignal struct {
	PreviousClose      float64 `json:"previousClose"`
	LastTradePriceOnly float64 `json:"lastTradePriceOnly"`
}

// TargetQuantity returns previousClose - lastTradePriceOnly truncated toward
// zero. Positive means accumulate, negative means reduce, zero means hold.
// Differences beyond the int64 range saturate at ±math.MaxInt64 and a NaN
// difference yields 0.
func TargetQuantity(s PriceSignal) int64 {
	diff := math.Trunc(s.PreviousClose - s.LastTradePriceOnly)
	switch {
	case math.IsNaN(diff):
		return 0
	case diff >= math.MaxInt64:
		return math.MaxInt64
	case diff <= -math.MaxInt64:
		return -math.MaxInt64
	}
	return int64(diff)
}

// ---------------------------------------------------------------------------
// Decision
// ---------------------------------------------------------------------------

// Action is the kind of order a decision calls for.
type Action string

const (
	ActionNone Action = "no_action"
	ActionBuy  Action = "buy"
	ActionSell Action = "sell"
)

// Decision is the outcome of reconciling a target against a holding.
// Quantity is zero for ActionNone and positive otherwise.
type Decision struct {
	Action   Action `json:"action"`
	Quantity int64  `json:"quantity,omitempty"`
}

// NoAction returns a decision that submits nothing.
func NoAction() Decision { return Decision{Action: ActionNone} }

// Buy returns a decision to buy qty shares.
func Buy(qty int64) Decision { return Decision{Action: ActionBuy, Quantity: qty} }

// Sell returns a decision to sell qty shares.
func Sell(qty int64) Decision { return Decision{Action: ActionSell, Quantity: qty} }

// IsNoAction reports whether the decision submits nothing.
func (d Decision) IsNoAction() bool { return d.Action == ActionNone }

// Side maps a buy or sell decision to the order side. It returns false for
// ActionNone.
func (d Decision) Side() (OrderSide, bool) {
	switch d.Action {
	case ActionBuy:
		return OrderSideBuy, true
	case ActionSell:
		return OrderSideSell, true
	default:
		return "", false
	}
}

// ---------------------------------------------------------------------------
// Orders and positions
// ---------------------------------------------------------------------------

// OrderSide is the direction of an order.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

// OrderStatus is the lifecycle state reported by a broker.
type OrderStatus string

const (
	OrderStatusNew       OrderStatus = "new"
	OrderStatusAccepted  OrderStatus = "accepted"
	OrderStatusFilled    OrderStatus = "filled"
	OrderStatusCancelled OrderStatus = "cancelled"
	OrderStatusRejected  OrderStatus = "rejected"
)

// Order is a whole-share market order for a single ticker.
type Order struct {
	ID        string      `json:"id,omitempty"`
	Ticker    string      `json:"ticker"`
	Side      OrderSide   `json:"side"`
	Quantity  int64       `json:"quantity"`
	Status    OrderStatus `json:"status,omitempty"`
	CreatedAt time.Time   `json:"createdAt,omitempty"`
}

// NewOrder builds the order that carries out d. It returns nil for
// ActionNone.
func NewOrder(ticker string, d Decision) *Order {
	side, ok := d.Side()
	if !ok {
		return nil
	}
	return &Order{
		Ticker:   ticker,
		Side:     side,
		Quantity: d.Quantity,
	}
}

// Position is the quantity of a ticker currently held.
type Position struct {
	Ticker   string `json:"ticker"`
	Quantity int64  `json:"quantity"`
}

// QuantityOf returns the held quantity of ticker, or 0 when there is no
// position for it.
func QuantityOf(positions []Position, ticker string) int64 {
	for _, p := range positions {
		if p.Ticker == ticker {
			return p.Quantity
		}
	}
	return 0
}

// ---------------------------------------------------------------------------
// Journal
// ---------------------------------------------------------------------------

// DecisionRecord is one completed decision cycle as kept by the journal.
type DecisionRecord struct {
	ID        int64     `json:"id"`
	Ticker    string    `json:"ticker"`
	Current   int64     `json:"current"`
	Target    int64     `json:"target"`
	Decision  Decision  `json:"decision"`
	OrderID   string    `json:"orderId,omitempty"`
	Broker    string    `json:"broker"`
	DryRun    bool      `json:"dryRun,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}
