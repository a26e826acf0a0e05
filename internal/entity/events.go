package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderPlaced is emitted once the checkout transaction has committed.
type OrderPlaced struct {
	OrderID     string          `json:"order_id"`
	OrderNumber string          `json:"order_number"`
	UserID      string          `json:"user_id"`
	Items       []OrderItem     `json:"items"`
	FinalAmount decimal.Decimal `json:"final_amount"`
	PlacedAt    time.Time       `json:"placed_at"`
}

func (e OrderPlaced) EventType() string { return "OrderPlaced" }

// OrderStatusChanged is emitted on every forward status transition.
type OrderStatusChanged struct {
	OrderID   string      `json:"order_id"`
	From      OrderStatus `json:"from"`
	To        OrderStatus `json:"to"`
	ChangedAt time.Time   `json:"changed_at"`
}

func (e OrderStatusChanged) EventType() string { return "OrderStatusChanged" }

// OrderCancelledEvent is emitted when an order is cancelled and its stock restored.
type OrderCancelledEvent struct {
	OrderID     string      `json:"order_id"`
	From        OrderStatus `json:"from"`
	Reason      string      `json:"reason"`
	Items       []OrderItem `json:"items"`
	CancelledAt time.Time   `json:"cancelled_at"`
}

func (e OrderCancelledEvent) EventType() string { return "OrderCancelled" }
