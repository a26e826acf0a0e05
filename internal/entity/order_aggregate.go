package entity

import (
	"encoding/json"
	"fmt"
	"time"
)

// StatusChange is one entry in an order's status history.
type StatusChange struct {
	Status OrderStatus `json:"status"`
	At     time.Time   `json:"at"`
	Reason string      `json:"reason,omitempty"`
}

var _ Aggregate = (*OrderAggregate)(nil)

// OrderAggregate manages the lifecycle view of an Order by replaying events.
type OrderAggregate struct {
	AggregateBase
	OrderNumber string         `json:"order_number"`
	Status      OrderStatus    `json:"status"`
	History     []StatusChange `json:"history"`
	PlacedAt    time.Time      `json:"placed_at"`
}

// NewOrderAggregate creates an empty OrderAggregate ready for rehydration.
func NewOrderAggregate(id string) *OrderAggregate {
	return &OrderAggregate{
		AggregateBase: AggregateBase{ID: id, Version: 0},
	}
}

// ApplyEvent mutates the aggregate state based on the event.
func (a *OrderAggregate) ApplyEvent(e Event) error {
	switch e := e.(type) {
	case OrderPlaced:
		a.OrderNumber = e.OrderNumber
		a.Status = OrderPending
		a.PlacedAt = e.PlacedAt
		a.History = append(a.History, StatusChange{Status: OrderPending, At: e.PlacedAt})
	case OrderStatusChanged:
		if a.Status != e.From {
			return fmt.Errorf("status change from %s does not match current status %s", e.From, a.Status)
		}
		a.Status = e.To
		a.History = append(a.History, StatusChange{Status: e.To, At: e.ChangedAt})
	case OrderCancelledEvent:
		a.Status = OrderCancelled
		a.History = append(a.History, StatusChange{Status: OrderCancelled, At: e.CancelledAt, Reason: e.Reason})
	default:
		return fmt.Errorf("unknown event type for OrderAggregate: %s", e.EventType())
	}
	a.Version++
	return nil
}

// Rehydrate rebuilds the aggregate from a list of records.
func (a *OrderAggregate) Rehydrate(records []EventStoreRecord) error {
	return Replay(a, records, decodeOrderEvent)
}

func decodeOrderEvent(rec EventStoreRecord) (Event, error) {
	switch rec.EventType {
	case "OrderPlaced":
		return decodeAs[OrderPlaced](rec)
	case "OrderStatusChanged":
		return decodeAs[OrderStatusChanged](rec)
	case "OrderCancelled":
		return decodeAs[OrderCancelledEvent](rec)
	default:
		return nil, fmt.Errorf("unknown event type in stream: %s", rec.EventType)
	}
}

func decodeAs[T Event](rec EventStoreRecord) (Event, error) {
	var event T
	if err := json.Unmarshal(rec.Payload, &event); err != nil {
		return nil, fmt.Errorf("failed to decode %s event: %w", rec.EventType, err)
	}
	return event, nil
}
