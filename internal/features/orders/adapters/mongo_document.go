package adapters

import (
	"fmt"
	"time"

	"storefront/internal/features/orders/domain"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type lineItemDocument struct {
	ProductID string  `bson:"productId"`
	Name      string  `bson:"name"`
	UnitPrice float64 `bson:"price"`
	Quantity  int     `bson:"quantity"`
	Size      string  `bson:"size,omitempty"`
	Color     string  `bson:"color,omitempty"`
	Image     string  `bson:"image,omitempty"`
	LineTotal float64 `bson:"totalPrice"`
}

type addressDocument struct {
	FullName   string `bson:"fullName"`
	Phone      string `bson:"phone"`
	Street     string `bson:"street"`
	City       string `bson:"city"`
	State      string `bson:"state"`
	PostalCode string `bson:"pincode"`
	Country    string `bson:"country"`
	Landmark   string `bson:"landmark,omitempty"`
}

type paymentDocument struct {
	Method        string  `bson:"method"`
	Status        string  `bson:"status"`
	TransactionID string  `bson:"transactionId,omitempty"`
	PaidAmount    float64 `bson:"paidAmount"`
}

type trackingDocument struct {
	CourierName       string     `bson:"courierName,omitempty"`
	TrackingNumber    string     `bson:"trackingNumber,omitempty"`
	TrackingURL       string     `bson:"trackingUrl,omitempty"`
	EstimatedDelivery *time.Time `bson:"estimatedDelivery,omitempty"`
	ShippedAt         *time.Time `bson:"shippedAt,omitempty"`
	DeliveredAt       *time.Time `bson:"deliveredAt,omitempty"`
}

type timelineDocument struct {
	Status    string    `bson:"status"`
	Message   string    `bson:"message"`
	Timestamp time.Time `bson:"timestamp"`
}

// orderDocument is the stored shape of an order in the orders collection.
type orderDocument struct {
	ID              primitive.ObjectID `bson:"_id"`
	PublicID        string             `bson:"publicId"`
	OwnerID         string             `bson:"ownerId"`
	Items           []lineItemDocument `bson:"items"`
	ShippingAddress addressDocument    `bson:"shippingAddress"`
	PaymentDetails  paymentDocument    `bson:"paymentDetails"`
	OrderStatus     string             `bson:"orderStatus"`
	PaymentStatus   string             `bson:"paymentStatus"`
	Subtotal        float64            `bson:"subtotal"`
	Tax             float64            `bson:"gst"`
	DeliveryCharge  float64            `bson:"deliveryCharge"`
	Discount        float64            `bson:"discount"`
	TotalAmount     float64            `bson:"totalAmount"`
	Notes           string             `bson:"notes,omitempty"`
	IsDirectBuy     bool               `bson:"isDirectBuy"`
	Tracking        *trackingDocument  `bson:"tracking,omitempty"`
	Timeline        []timelineDocument `bson:"orderTimeline"`
	Version         int64              `bson:"version"`
	CreatedAt       time.Time          `bson:"createdAt"`
	UpdatedAt       time.Time          `bson:"updatedAt"`
}

func toDocument(o *domain.Order) (*orderDocument, error) {
	id := primitive.NilObjectID
	if o.ID != "" {
		oid, err := primitive.ObjectIDFromHex(o.ID)
		if err != nil {
			return nil, fmt.Errorf("invalid order id %q: %w", o.ID, err)
		}
		id = oid
	}

	doc := &orderDocument{
		ID:       id,
		PublicID: o.PublicID,
		OwnerID:  o.OwnerID,
		ShippingAddress: addressDocument{
			FullName:   o.ShippingAddress.FullName,
			Phone:      o.ShippingAddress.Phone,
			Street:     o.ShippingAddress.Street,
			City:       o.ShippingAddress.City,
			State:      o.ShippingAddress.State,
			PostalCode: o.ShippingAddress.PostalCode,
			Country:    o.ShippingAddress.Country,
			Landmark:   o.ShippingAddress.Landmark,
		},
		PaymentDetails: paymentDocument{
			Method:        string(o.PaymentDetails.Method),
			Status:        string(o.PaymentDetails.Status),
			TransactionID: o.PaymentDetails.TransactionID,
			PaidAmount:    o.PaymentDetails.PaidAmount,
		},
		OrderStatus:    string(o.OrderStatus),
		PaymentStatus:  string(o.PaymentStatus),
		Subtotal:       o.Subtotal,
		Tax:            o.Tax,
		DeliveryCharge: o.DeliveryCharge,
		Discount:       o.Discount,
		TotalAmount:    o.TotalAmount,
		Notes:          o.Notes,
		IsDirectBuy:    o.IsDirectBuy,
		Version:        o.Version,
		CreatedAt:      o.CreatedAt,
		UpdatedAt:      o.UpdatedAt,
	}

	doc.Items = make([]lineItemDocument, 0, len(o.LineItems))
	for _, it := range o.LineItems {
		doc.Items = append(doc.Items, lineItemDocument(it))
	}

	doc.Timeline = make([]timelineDocument, 0, len(o.Timeline))
	for _, e := range o.Timeline {
		doc.Timeline = append(doc.Timeline, timelineDocument{
			Status:    string(e.Status),
			Message:   e.Message,
			Timestamp: e.Timestamp,
		})
	}

	if o.Tracking != nil {
		t := trackingDocument(*o.Tracking)
		doc.Tracking = &t
	}

	return doc, nil
}

func (d *orderDocument) toDomain() *domain.Order {
	o := &domain.Order{
		ID:       d.ID.Hex(),
		PublicID: d.PublicID,
		OwnerID:  d.OwnerID,
		ShippingAddress: domain.ShippingAddress{
			FullName:   d.ShippingAddress.FullName,
			Phone:      d.ShippingAddress.Phone,
			Street:     d.ShippingAddress.Street,
			City:       d.ShippingAddress.City,
			State:      d.ShippingAddress.State,
			PostalCode: d.ShippingAddress.PostalCode,
			Country:    d.ShippingAddress.Country,
			Landmark:   d.ShippingAddress.Landmark,
		},
		PaymentDetails: domain.PaymentDetails{
			Method:        domain.PaymentMethod(d.PaymentDetails.Method),
			Status:        domain.PaymentRecordStatus(d.PaymentDetails.Status),
			TransactionID: d.PaymentDetails.TransactionID,
			PaidAmount:    d.PaymentDetails.PaidAmount,
		},
		OrderStatus:    domain.OrderStatus(d.OrderStatus),
		PaymentStatus:  domain.PaymentStatus(d.PaymentStatus),
		Subtotal:       d.Subtotal,
		Tax:            d.Tax,
		DeliveryCharge: d.DeliveryCharge,
		Discount:       d.Discount,
		TotalAmount:    d.TotalAmount,
		Notes:          d.Notes,
		IsDirectBuy:    d.IsDirectBuy,
		Version:        d.Version,
		CreatedAt:      d.CreatedAt.UTC(),
		UpdatedAt:      d.UpdatedAt.UTC(),
	}

	o.LineItems = make([]domain.LineItem, 0, len(d.Items))
	for _, it := range d.Items {
		o.LineItems = append(o.LineItems, domain.LineItem(it))
	}

	o.Timeline = make([]domain.TimelineEntry, 0, len(d.Timeline))
	for _, e := range d.Timeline {
		o.Timeline = append(o.Timeline, domain.TimelineEntry{
			Status:    domain.OrderStatus(e.Status),
			Message:   e.Message,
			Timestamp: e.Timestamp.UTC(),
		})
	}

	if d.Tracking != nil {
		t := domain.Tracking(*d.Tracking)
		o.Tracking = &t
	}

	return o
}
