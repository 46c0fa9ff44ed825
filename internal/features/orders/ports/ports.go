package ports

import (
	"context"

	"storefront/internal/core/idempotency"
	"storefront/internal/features/orders/domain"
)

// OrderService defines the primary port for order operations.
type OrderService interface {
	CreateOrder(ctx context.Context, actor domain.Actor, in domain.NewOrderInput, idempotencyKey string) (*domain.Order, error)
	GetOrder(ctx context.Context, actor domain.Actor, ref string) (*domain.Order, error)
	ListUserOrders(ctx context.Context, actor domain.Actor, q domain.ListQuery) (*domain.OrderPage, error)
	ListAllOrders(ctx context.Context, actor domain.Actor, q domain.ListQuery) (*domain.OrderPage, error)
	UpdateOrderStatus(ctx context.Context, actor domain.Actor, ref string, status domain.OrderStatus, message string) (*domain.Order, error)
	CancelOrder(ctx context.Context, actor domain.Actor, ref string, reason string) (*domain.Order, error)
	AddTrackingInfo(ctx context.Context, actor domain.Actor, ref string, in domain.TrackingInput) (*domain.Order, error)
	UpdatePaymentStatus(ctx context.Context, actor domain.Actor, ref string, status domain.PaymentStatus, transactionID string) (*domain.Order, error)
	GetOrderStats(ctx context.Context, actor domain.Actor) (*domain.Stats, error)
	GetRecentOrders(ctx context.Context, actor domain.Actor, limit int) ([]*domain.Order, error)
	DeleteOrder(ctx context.Context, actor domain.Actor, ref string) error
}

// OrderRepository defines the secondary port for order storage.
// Lookups return (nil, nil) when no order matches.
type OrderRepository interface {
	// Create assigns the storage ID and persists a new order.
	// Returns domain.ErrDuplicatePublicID when the public id is taken.
	Create(ctx context.Context, order *domain.Order) error
	FindByID(ctx context.Context, id string) (*domain.Order, error)
	// FindByPublicID restricts the match to ownerID when it is not empty.
	FindByPublicID(ctx context.Context, publicID, ownerID string) (*domain.Order, error)
	FindByUser(ctx context.Context, userID string, q domain.ListQuery) (*domain.OrderPage, error)
	FindAll(ctx context.Context, q domain.ListQuery) (*domain.OrderPage, error)
	// Update loads the order, applies mutate and saves it only if no other
	// writer got there first. Errors from mutate are returned unchanged.
	Update(ctx context.Context, id string, mutate func(*domain.Order) error) (*domain.Order, error)
	// Stats counts orders of userID, or all orders with revenue when userID is empty.
	Stats(ctx context.Context, userID string) (*domain.Stats, error)
	Recent(ctx context.Context, limit int) ([]*domain.Order, error)
	Delete(ctx context.Context, id string) error
}

// CartStore is the part of the cart domain the order flow depends on.
type CartStore interface {
	Clear(ctx context.Context, userID string) error
}

// IdempotencyStore remembers order creation requests by client supplied key.
type IdempotencyStore interface {
	Reserve(ctx context.Context, scope, key string) (idempotency.Reservation, error)
	Complete(ctx context.Context, scope, key, result string) error
	Release(ctx context.Context, scope, key string) error
}

// EventPublisher emits order lifecycle events to downstream consumers.
type EventPublisher interface {
	Publish(ctx context.Context, evt domain.Event) error
}
