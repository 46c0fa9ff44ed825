package domain

import (
	"slices"
	"time"
)

// OrderStatus represents the fulfilment state of an order.
type OrderStatus string

const (
	// OrderStatusPending is the initial status of every order.
	OrderStatusPending        OrderStatus = "pending"
	OrderStatusConfirmed      OrderStatus = "confirmed"
	OrderStatusProcessing     OrderStatus = "processing"
	OrderStatusShipped        OrderStatus = "shipped"
	OrderStatusOutForDelivery OrderStatus = "out_for_delivery"
	OrderStatusDelivered      OrderStatus = "delivered"
	OrderStatusCancelled      OrderStatus = "cancelled"
	OrderStatusReturned       OrderStatus = "returned"
	OrderStatusRefunded       OrderStatus = "refunded"
)

var orderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusConfirmed,
	OrderStatusProcessing,
	OrderStatusShipped,
	OrderStatusOutForDelivery,
	OrderStatusDelivered,
	OrderStatusCancelled,
	OrderStatusReturned,
	OrderStatusRefunded,
}

// Valid reports whether s is a known order status.
func (s OrderStatus) Valid() bool {
	return slices.Contains(orderStatuses, s)
}

// PaymentStatus is the settlement state of the order as a whole.
type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusFailed   PaymentStatus = "failed"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

// Valid reports whether s is a known payment status.
func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusPaid, PaymentStatusFailed, PaymentStatusRefunded:
		return true
	}
	return false
}

// PaymentMethod is how the customer chose to pay.
type PaymentMethod string

const (
	PaymentMethodCOD        PaymentMethod = "cod"
	PaymentMethodCard       PaymentMethod = "card"
	PaymentMethodUPI        PaymentMethod = "upi"
	PaymentMethodNetBanking PaymentMethod = "netbanking"
)

// Valid reports whether m is a supported payment method.
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodCOD, PaymentMethodCard, PaymentMethodUPI, PaymentMethodNetBanking:
		return true
	}
	return false
}

// PaymentRecordStatus is the status stored on the payment details record.
// It uses a wider vocabulary than PaymentStatus.
type PaymentRecordStatus string

const (
	PaymentRecordPending   PaymentRecordStatus = "pending"
	PaymentRecordShipped   PaymentRecordStatus = "shipped"
	PaymentRecordCompleted PaymentRecordStatus = "completed"
	PaymentRecordFailed    PaymentRecordStatus = "failed"
	PaymentRecordRefunded  PaymentRecordStatus = "refunded"
)

// LineItem is a priced product snapshot inside an order.
type LineItem struct {
	// ProductID references the catalog product.
	ProductID string `json:"productId"`
	// Name is the product name at the time of purchase.
	Name string `json:"name"`
	// UnitPrice is the price of one unit at the time of purchase.
	UnitPrice float64 `json:"unitPrice"`
	// Quantity is the number of units, at least 1.
	Quantity int `json:"quantity"`
	Size     string `json:"size,omitempty"`
	Color    string `json:"color,omitempty"`
	// Image is the product picture URL.
	Image string `json:"image,omitempty"`
	// LineTotal is UnitPrice multiplied by Quantity.
	LineTotal float64 `json:"lineTotal"`
}

// ShippingAddress is the delivery address snapshot taken when the order is placed.
type ShippingAddress struct {
	FullName   string `json:"fullName"`
	Phone      string `json:"phone"`
	Street     string `json:"street"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
	Landmark   string `json:"landmark,omitempty"`
}

// PaymentDetails records how the order is paid. No payment is executed here.
type PaymentDetails struct {
	Method        PaymentMethod       `json:"method"`
	Status        PaymentRecordStatus `json:"status"`
	TransactionID string              `json:"transactionId,omitempty"`
	PaidAmount    float64             `json:"paidAmount"`
}

// Tracking holds shipment details added by an administrator.
type Tracking struct {
	CourierName       string     `json:"courierName,omitempty"`
	TrackingNumber    string     `json:"trackingNumber,omitempty"`
	TrackingURL       string     `json:"trackingUrl,omitempty"`
	EstimatedDelivery *time.Time `json:"estimatedDelivery,omitempty"`
	ShippedAt         *time.Time `json:"shippedAt,omitempty"`
	DeliveredAt       *time.Time `json:"deliveredAt,omitempty"`
}

// TimelineEntry is one append-only record of a status change.
type TimelineEntry struct {
	Status    OrderStatus `json:"status"`
	Message   string      `json:"message"`
	Timestamp time.Time   `json:"timestamp"`
}

// Order is a customer purchase and its lifecycle history.
type Order struct {
	// ID is the storage key, assigned by the repository on Create.
	ID string `json:"id"`
	// PublicID is the customer facing reference, immutable once set.
	PublicID string `json:"orderId"`
	// OwnerID is the user who placed the order.
	OwnerID         string          `json:"userId"`
	LineItems       []LineItem      `json:"items"`
	ShippingAddress ShippingAddress `json:"shippingAddress"`
	PaymentDetails  PaymentDetails  `json:"paymentDetails"`
	OrderStatus     OrderStatus     `json:"orderStatus"`
	PaymentStatus   PaymentStatus   `json:"paymentStatus"`
	Subtotal        float64         `json:"subtotal"`
	Tax             float64         `json:"tax"`
	DeliveryCharge  float64         `json:"deliveryCharge"`
	Discount        float64         `json:"discount"`
	TotalAmount     float64         `json:"totalAmount"`
	Notes           string          `json:"notes,omitempty"`
	// IsDirectBuy marks orders placed without going through the cart.
	IsDirectBuy bool            `json:"isDirectBuy"`
	Tracking    *Tracking       `json:"tracking,omitempty"`
	Timeline    []TimelineEntry `json:"timeline"`
	// Version increments on every persisted mutation.
	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// IsOwnedBy reports whether userID placed the order.
func (o *Order) IsOwnedBy(userID string) bool {
	return userID != "" && o.OwnerID == userID
}

// LastTimelineEntry returns the most recent timeline entry, if any.
func (o *Order) LastTimelineEntry() (TimelineEntry, bool) {
	if len(o.Timeline) == 0 {
		return TimelineEntry{}, false
	}
	return o.Timeline[len(o.Timeline)-1], true
}

// Clone returns a deep copy so a failed mutation never leaks into the caller's value.
func (o *Order) Clone() *Order {
	c := *o
	c.LineItems = slices.Clone(o.LineItems)
	c.Timeline = slices.Clone(o.Timeline)
	if o.Tracking != nil {
		t := *o.Tracking
		c.Tracking = &t
	}
	return &c
}
