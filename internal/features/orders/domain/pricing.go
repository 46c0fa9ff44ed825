package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	// DefaultCountry is applied when the shipping address omits one.
	DefaultCountry = "India"
	// OrderPlacedMessage seeds the timeline of every new order.
	OrderPlacedMessage = "Order placed successfully"
)

var (
	taxRate                = decimal.RequireFromString("0.18")
	freeDeliveryThreshold  = decimal.NewFromInt(999)
	standardDeliveryCharge = decimal.NewFromInt(49)
)

// LineItemInput is a line item as submitted by the client, before pricing.
type LineItemInput struct {
	ProductID string
	Name      string
	UnitPrice float64
	Quantity  int
	Size      string
	Color     string
	Image     string
}

// NewOrderInput is everything needed to construct an order.
type NewOrderInput struct {
	LineItems       []LineItemInput
	ShippingAddress *ShippingAddress
	// PaymentMethod defaults to cash on delivery when empty.
	PaymentMethod PaymentMethod
	Discount      float64
	Notes         string
	IsDirectBuy   bool
}

// Totals is the computed money breakdown of an order.
type Totals struct {
	Subtotal       float64 `json:"subtotal"`
	Tax            float64 `json:"tax"`
	DeliveryCharge float64 `json:"deliveryCharge"`
	Discount       float64 `json:"discount"`
	TotalAmount    float64 `json:"totalAmount"`
}

// PriceLineItems computes line totals and order totals.
// Tax is 18% of the subtotal rounded to the nearest whole unit, delivery is
// free strictly above 999 and 49 otherwise.
func PriceLineItems(items []LineItemInput, discount float64) ([]LineItem, Totals, error) {
	if len(items) == 0 {
		return nil, Totals{}, NewValidationError("Order must contain at least one item")
	}
	if discount < 0 {
		return nil, Totals{}, NewValidationError("Discount cannot be negative")
	}

	priced := make([]LineItem, 0, len(items))
	subtotal := decimal.Zero
	for i, item := range items {
		if err := validateLineItem(i, item); err != nil {
			return nil, Totals{}, err
		}
		lineTotal := decimal.NewFromFloat(item.UnitPrice).Mul(decimal.NewFromInt(int64(item.Quantity)))
		subtotal = subtotal.Add(lineTotal)
		priced = append(priced, LineItem{
			ProductID: item.ProductID,
			Name:      item.Name,
			UnitPrice: item.UnitPrice,
			Quantity:  item.Quantity,
			Size:      item.Size,
			Color:     item.Color,
			Image:     item.Image,
			LineTotal: lineTotal.InexactFloat64(),
		})
	}

	tax := subtotal.Mul(taxRate).Round(0)
	delivery := standardDeliveryCharge
	if subtotal.GreaterThan(freeDeliveryThreshold) {
		delivery = decimal.Zero
	}
	disc := decimal.NewFromFloat(discount)
	total := subtotal.Add(tax).Add(delivery).Sub(disc)
	if total.IsNegative() {
		return nil, Totals{}, NewValidationError("Discount cannot exceed the order amount")
	}

	return priced, Totals{
		Subtotal:       subtotal.InexactFloat64(),
		Tax:            tax.InexactFloat64(),
		DeliveryCharge: delivery.InexactFloat64(),
		Discount:       disc.InexactFloat64(),
		TotalAmount:    total.InexactFloat64(),
	}, nil
}

func validateLineItem(i int, item LineItemInput) error {
	switch {
	case strings.TrimSpace(item.ProductID) == "":
		return NewValidationError("Item %d: product id is required", i+1)
	case strings.TrimSpace(item.Name) == "":
		return NewValidationError("Item %d: name is required", i+1)
	case item.Quantity < 1:
		return NewValidationError("Item %d: quantity must be at least 1", i+1)
	case item.UnitPrice < 0:
		return NewValidationError("Item %d: price cannot be negative", i+1)
	}
	return nil
}

func normalizeAddress(addr *ShippingAddress) (ShippingAddress, error) {
	if addr == nil {
		return ShippingAddress{}, NewValidationError("Shipping address is required")
	}
	a := *addr
	required := []struct {
		name  string
		value string
	}{
		{"fullName", a.FullName},
		{"phone", a.Phone},
		{"street", a.Street},
		{"city", a.City},
		{"state", a.State},
		{"postalCode", a.PostalCode},
	}
	for _, f := range required {
		if strings.TrimSpace(f.value) == "" {
			return ShippingAddress{}, NewValidationError("Shipping address %s is required", f.name)
		}
	}
	if strings.TrimSpace(a.Country) == "" {
		a.Country = DefaultCountry
	}
	return a, nil
}

// NewOrder validates the input, prices it and returns a pending order
// ready for its first save.
func NewOrder(ownerID, publicID string, in NewOrderInput, now time.Time) (*Order, error) {
	if len(in.LineItems) == 0 {
		return nil, NewValidationError("Order must contain at least one item")
	}
	addr, err := normalizeAddress(in.ShippingAddress)
	if err != nil {
		return nil, err
	}

	method := in.PaymentMethod
	if method == "" {
		method = PaymentMethodCOD
	}
	if !method.Valid() {
		return nil, NewValidationError("Invalid payment method: %s", method)
	}

	items, totals, err := PriceLineItems(in.LineItems, in.Discount)
	if err != nil {
		return nil, err
	}

	recordStatus := PaymentRecordCompleted
	if method == PaymentMethodCOD {
		recordStatus = PaymentRecordPending
	}

	return &Order{
		PublicID:        publicID,
		OwnerID:         ownerID,
		LineItems:       items,
		ShippingAddress: addr,
		PaymentDetails: PaymentDetails{
			Method: method,
			Status: recordStatus,
		},
		OrderStatus:    OrderStatusPending,
		PaymentStatus:  PaymentStatusPending,
		Subtotal:       totals.Subtotal,
		Tax:            totals.Tax,
		DeliveryCharge: totals.DeliveryCharge,
		Discount:       totals.Discount,
		TotalAmount:    totals.TotalAmount,
		Notes:          strings.TrimSpace(in.Notes),
		IsDirectBuy:    in.IsDirectBuy,
		Timeline: []TimelineEntry{
			{Status: OrderStatusPending, Message: OrderPlacedMessage, Timestamp: now},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}
