package domain

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// DefaultCancelReason is recorded when the canceller gives no reason.
const DefaultCancelReason = "Cancelled by user"

var cancellableStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusConfirmed,
	OrderStatusProcessing,
}

// TrackingInput carries shipment details. Empty fields leave the stored value untouched.
type TrackingInput struct {
	CourierName       string
	TrackingNumber    string
	TrackingURL       string
	EstimatedDelivery *time.Time
}

// CanCancel reports whether the order has not left the warehouse yet.
func (o *Order) CanCancel() bool {
	return slices.Contains(cancellableStatuses, o.OrderStatus)
}

// Cancel moves the order to cancelled.
func (o *Order) Cancel(reason string, now time.Time) error {
	if !o.CanCancel() {
		return NewInvalidStateError("Cannot cancel order with status: %s", o.OrderStatus)
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = DefaultCancelReason
	}
	o.OrderStatus = OrderStatusCancelled
	o.appendTimeline(OrderStatusCancelled, reason, now)
	return nil
}

// UpdateStatus sets an arbitrary known status. Any status may follow any other.
func (o *Order) UpdateStatus(status OrderStatus, message string, now time.Time) error {
	if !status.Valid() {
		return NewValidationError("Invalid order status: %s", status)
	}
	message = strings.TrimSpace(message)
	if message == "" {
		message = fmt.Sprintf("Order %s", status)
	}
	o.OrderStatus = status
	if status == OrderStatusDelivered && o.Tracking != nil && o.Tracking.DeliveredAt == nil {
		o.Tracking.DeliveredAt = &now
	}
	o.appendTimeline(status, message, now)
	return nil
}

// AddTracking merges shipment details and marks the order shipped.
func (o *Order) AddTracking(in TrackingInput, now time.Time) error {
	if in.CourierName == "" && in.TrackingNumber == "" && in.TrackingURL == "" && in.EstimatedDelivery == nil {
		return NewValidationError("Tracking information is required")
	}
	if o.Tracking == nil {
		o.Tracking = &Tracking{}
	}
	t := o.Tracking
	if in.CourierName != "" {
		t.CourierName = in.CourierName
	}
	if in.TrackingNumber != "" {
		t.TrackingNumber = in.TrackingNumber
	}
	if in.TrackingURL != "" {
		t.TrackingURL = in.TrackingURL
	}
	if in.EstimatedDelivery != nil {
		t.EstimatedDelivery = in.EstimatedDelivery
	}
	if t.ShippedAt == nil {
		t.ShippedAt = &now
	}

	message := "Order shipped"
	if t.CourierName != "" {
		message = fmt.Sprintf("Order shipped via %s", t.CourierName)
	}
	o.OrderStatus = OrderStatusShipped
	o.appendTimeline(OrderStatusShipped, message, now)
	return nil
}

// UpdatePaymentStatus records a settlement change. A paid order is marked
// completed on the payment record and its paid amount set to the total.
func (o *Order) UpdatePaymentStatus(status PaymentStatus, transactionID string, now time.Time) error {
	if !status.Valid() {
		return NewValidationError("Invalid payment status: %s", status)
	}
	o.PaymentStatus = status
	o.PaymentDetails.Status = recordStatusFor(status)
	if transactionID = strings.TrimSpace(transactionID); transactionID != "" {
		o.PaymentDetails.TransactionID = transactionID
	}
	if status == PaymentStatusPaid {
		o.PaymentDetails.PaidAmount = o.TotalAmount
	}
	o.UpdatedAt = now
	return nil
}

func recordStatusFor(status PaymentStatus) PaymentRecordStatus {
	if status == PaymentStatusPaid {
		return PaymentRecordCompleted
	}
	return PaymentRecordStatus(status)
}

func (o *Order) appendTimeline(status OrderStatus, message string, now time.Time) {
	o.Timeline = append(o.Timeline, TimelineEntry{
		Status:    status,
		Message:   message,
		Timestamp: now,
	})
	o.UpdatedAt = now
}
