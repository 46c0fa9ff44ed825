package handler

import (
	"errors"
	"reflect"
	"strings"
	"time"

	"storefront/internal/features/orders/domain"

	"github.com/go-playground/validator/v10"
)

// LineItemRequest is one cart line submitted with an order.
type LineItemRequest struct {
	ProductID string  `json:"productId" validate:"max=64"`
	Name      string  `json:"name" validate:"max=200"`
	Price     float64 `json:"price"`
	Quantity  int     `json:"quantity" validate:"lte=1000"`
	Size      string  `json:"size,omitempty" validate:"max=20"`
	Color     string  `json:"color,omitempty" validate:"max=40"`
	Image     string  `json:"image,omitempty" validate:"omitempty,url"`
}

// AddressRequest is the shipping address of an order.
type AddressRequest struct {
	FullName   string `json:"fullName" validate:"max=100"`
	Phone      string `json:"phone" validate:"max=20"`
	Street     string `json:"street" validate:"max=200"`
	City       string `json:"city" validate:"max=100"`
	State      string `json:"state" validate:"max=100"`
	PostalCode string `json:"postalCode" validate:"omitempty,alphanum,max=10"`
	Country    string `json:"country,omitempty" validate:"max=100"`
	Landmark   string `json:"landmark,omitempty" validate:"max=200"`
}

// CreateOrderRequest represents the request body for placing an order.
type CreateOrderRequest struct {
	Items           []LineItemRequest `json:"items" validate:"max=100,dive"`
	ShippingAddress *AddressRequest   `json:"shippingAddress"`
	PaymentMethod   string            `json:"paymentMethod,omitempty"`
	Discount        float64           `json:"discount,omitempty"`
	Notes           string            `json:"notes,omitempty" validate:"max=500"`
	IsDirectBuy     bool              `json:"isDirectBuy,omitempty"`
}

// UpdateStatusRequest represents the request body for an admin status change.
type UpdateStatusRequest struct {
	Status  string `json:"status" validate:"required"`
	Message string `json:"message,omitempty" validate:"max=500"`
}

// CancelOrderRequest represents the optional body of a cancellation.
type CancelOrderRequest struct {
	Reason string `json:"reason,omitempty" validate:"max=500"`
}

// TrackingRequest represents the request body for attaching shipment details.
type TrackingRequest struct {
	CourierName       string     `json:"courierName,omitempty" validate:"max=100"`
	TrackingNumber    string     `json:"trackingNumber,omitempty" validate:"max=100"`
	TrackingURL       string     `json:"trackingUrl,omitempty" validate:"omitempty,url"`
	EstimatedDelivery *time.Time `json:"estimatedDelivery,omitempty"`
}

// PaymentStatusRequest represents the request body for a payment status change.
type PaymentStatusRequest struct {
	PaymentStatus string `json:"paymentStatus" validate:"required"`
	TransactionID string `json:"transactionId,omitempty" validate:"max=128"`
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validationError turns the first validator failure into a domain validation error.
func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return domain.NewValidationError("Invalid request body")
	}

	fe := verrs[0]
	field := fe.Namespace()
	if i := strings.Index(field, "."); i >= 0 {
		field = field[i+1:]
	}

	switch fe.Tag() {
	case "required":
		return domain.NewValidationError("%s is required", field)
	case "max":
		return domain.NewValidationError("%s must be at most %s characters", field, fe.Param())
	case "lte":
		return domain.NewValidationError("%s must be at most %s", field, fe.Param())
	case "url":
		return domain.NewValidationError("%s must be a valid URL", field)
	case "alphanum":
		return domain.NewValidationError("%s must be alphanumeric", field)
	default:
		return domain.NewValidationError("%s is invalid", field)
	}
}

func (r CreateOrderRequest) toInput() domain.NewOrderInput {
	in := domain.NewOrderInput{
		LineItems:     make([]domain.LineItemInput, 0, len(r.Items)),
		PaymentMethod: domain.PaymentMethod(strings.ToLower(strings.TrimSpace(r.PaymentMethod))),
		Discount:      r.Discount,
		Notes:         r.Notes,
		IsDirectBuy:   r.IsDirectBuy,
	}
	for _, item := range r.Items {
		in.LineItems = append(in.LineItems, domain.LineItemInput{
			ProductID: item.ProductID,
			Name:      item.Name,
			UnitPrice: item.Price,
			Quantity:  item.Quantity,
			Size:      item.Size,
			Color:     item.Color,
			Image:     item.Image,
		})
	}
	if a := r.ShippingAddress; a != nil {
		in.ShippingAddress = &domain.ShippingAddress{
			FullName:   a.FullName,
			Phone:      a.Phone,
			Street:     a.Street,
			City:       a.City,
			State:      a.State,
			PostalCode: a.PostalCode,
			Country:    a.Country,
			Landmark:   a.Landmark,
		}
	}
	return in
}

func (r TrackingRequest) toInput() domain.TrackingInput {
	return domain.TrackingInput{
		CourierName:       r.CourierName,
		TrackingNumber:    r.TrackingNumber,
		TrackingURL:       r.TrackingURL,
		EstimatedDelivery: r.EstimatedDelivery,
	}
}

var dateLayouts = []string{time.RFC3339, "2006-01-02"}

// parseDate accepts RFC 3339 timestamps and plain dates. An empty value yields nil.
func parseDate(name, value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, domain.NewValidationError("Invalid %s date: %s", name, value)
}

// endOfDay moves a plain date upper bound to the last instant of that day.
func endOfDay(raw string, t *time.Time) *time.Time {
	if t == nil || len(raw) != len("2006-01-02") {
		return t
	}
	end := t.Add(24*time.Hour - time.Nanosecond)
	return &end
}
