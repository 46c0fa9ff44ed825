package domain

import "time"

// EventType names an order lifecycle event.
type EventType string

const (
	EventOrderCreated       EventType = "order.created"
	EventOrderStatusUpdated EventType = "order.status_updated"
	EventOrderCancelled     EventType = "order.cancelled"
	EventOrderShipped       EventType = "order.tracking_added"
	EventPaymentUpdated     EventType = "order.payment_updated"
	EventOrderDeleted       EventType = "order.deleted"
)

// Event is published after an order change has been persisted.
type Event struct {
	ID            string        `json:"id"`
	Type          EventType     `json:"type"`
	OrderID       string        `json:"orderId"`
	OwnerID       string        `json:"userId"`
	Status        OrderStatus   `json:"orderStatus"`
	PaymentStatus PaymentStatus `json:"paymentStatus"`
	TotalAmount   float64       `json:"totalAmount"`
	OccurredAt    time.Time     `json:"occurredAt"`
}

// NewEvent snapshots the order for an event of type t.
func NewEvent(id string, t EventType, o *Order, now time.Time) Event {
	return Event{
		ID:            id,
		Type:          t,
		OrderID:       o.PublicID,
		OwnerID:       o.OwnerID,
		Status:        o.OrderStatus,
		PaymentStatus: o.PaymentStatus,
		TotalAmount:   o.TotalAmount,
		OccurredAt:    now,
	}
}
