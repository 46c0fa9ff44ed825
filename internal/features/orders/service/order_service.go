package service

import (
	"context"
	"encoding/hex"
	"errors"
	"time"

	"storefront/internal/core/idempotency"
	"storefront/internal/core/logger"
	"storefront/internal/features/orders/domain"
	"storefront/internal/features/orders/ports"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	msgAdminRequired    = "Admin access required"
	msgOrderNotFound    = "Order not found"
	msgUnauthorizedView = "Unauthorized to view this order"
	msgUnauthorizedEdit = "Unauthorized to cancel this order"
)

// Deps are the collaborators of OrderService. Idempotency and Publisher are optional.
type Deps struct {
	Repository  ports.OrderRepository
	Carts       ports.CartStore
	Idempotency ports.IdempotencyStore
	Publisher   ports.EventPublisher

	// CreateAttempts bounds public id regeneration on collisions.
	CreateAttempts int

	Now         func() time.Time
	NewPublicID domain.PublicIDGenerator
	NewEventID  func() string
}

// OrderService implements ports.OrderService.
type OrderService struct {
	repo        ports.OrderRepository
	carts       ports.CartStore
	idempotency ports.IdempotencyStore
	publisher   ports.EventPublisher

	createAttempts int
	now            func() time.Time
	newPublicID    domain.PublicIDGenerator
	newEventID     func() string
}

// NewOrderService creates a new OrderService.
func NewOrderService(deps Deps) *OrderService {
	s := &OrderService{
		repo:           deps.Repository,
		carts:          deps.Carts,
		idempotency:    deps.Idempotency,
		publisher:      deps.Publisher,
		createAttempts: deps.CreateAttempts,
		now:            deps.Now,
		newPublicID:    deps.NewPublicID,
		newEventID:     deps.NewEventID,
	}
	if s.createAttempts < 1 {
		s.createAttempts = 1
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	if s.newPublicID == nil {
		s.newPublicID = domain.NewPublicID
	}
	if s.newEventID == nil {
		s.newEventID = uuid.NewString
	}
	return s
}

// CreateOrder places a new order for the actor and clears their cart unless
// the order is a direct buy. A repeated idempotency key replays the first result.
func (s *OrderService) CreateOrder(ctx context.Context, actor domain.Actor, in domain.NewOrderInput, idempotencyKey string) (*domain.Order, error) {
	if actor.UserID == "" {
		return nil, domain.NewForbiddenError("Authentication required")
	}

	if idempotencyKey != "" && s.idempotency != nil {
		res, err := s.idempotency.Reserve(ctx, actor.UserID, idempotencyKey)
		if err != nil {
			return nil, domain.NewPersistenceError("service: failed to reserve idempotency key", err)
		}
		switch res.State {
		case idempotency.StateCompleted:
			return s.replay(ctx, res.Result)
		case idempotency.StatePending:
			return nil, domain.NewConflictError("A request with this idempotency key is already in progress", nil)
		}
	}

	order, err := s.place(ctx, actor, in)
	if err != nil {
		if idempotencyKey != "" && s.idempotency != nil {
			if relErr := s.idempotency.Release(ctx, actor.UserID, idempotencyKey); relErr != nil {
				logger.FromContext(ctx).Warn("Failed to release idempotency key", zap.Error(relErr))
			}
		}
		return nil, err
	}

	if idempotencyKey != "" && s.idempotency != nil {
		if err := s.idempotency.Complete(ctx, actor.UserID, idempotencyKey, order.ID); err != nil {
			logger.FromContext(ctx).Warn("Failed to record idempotency result",
				zap.String("order_id", order.PublicID),
				zap.Error(err),
			)
		}
	}

	// The order is already saved; a failed cart clear is logged, not returned.
	if !order.IsDirectBuy && s.carts != nil {
		if err := s.carts.Clear(ctx, actor.UserID); err != nil {
			logger.FromContext(ctx).Warn("Order placed but cart was not cleared",
				zap.String("order_id", order.PublicID),
				zap.String("user_id", actor.UserID),
				zap.Error(err),
			)
		}
	}

	s.publish(ctx, domain.EventOrderCreated, order)
	return order, nil
}

func (s *OrderService) place(ctx context.Context, actor domain.Actor, in domain.NewOrderInput) (*domain.Order, error) {
	for attempt := 1; attempt <= s.createAttempts; attempt++ {
		now := s.now()
		order, err := domain.NewOrder(actor.UserID, s.newPublicID(now), in, now)
		if err != nil {
			return nil, err
		}

		err = s.repo.Create(ctx, order)
		if err == nil {
			logger.FromContext(ctx).Info("Order placed",
				zap.String("order_id", order.PublicID),
				zap.String("user_id", actor.UserID),
				zap.Float64("total", order.TotalAmount),
			)
			return order, nil
		}
		if !errors.Is(err, domain.ErrDuplicatePublicID) {
			return nil, domain.NewPersistenceError("service: failed to save order", err)
		}
		logger.FromContext(ctx).Warn("Order public id collision, regenerating",
			zap.String("order_id", order.PublicID),
			zap.Int("attempt", attempt),
		)
	}
	return nil, domain.NewConflictError("Could not allocate an order id, please retry", domain.ErrDuplicatePublicID)
}

func (s *OrderService) replay(ctx context.Context, orderID string) (*domain.Order, error) {
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, domain.NewPersistenceError("service: failed to load replayed order", err)
	}
	if order == nil {
		return nil, domain.NewConflictError("Idempotency key refers to an order that no longer exists", nil)
	}
	return order, nil
}

// GetOrder returns an order visible to the actor.
func (s *OrderService) GetOrder(ctx context.Context, actor domain.Actor, ref string) (*domain.Order, error) {
	order, err := s.resolve(ctx, ref)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && !order.IsOwnedBy(actor.UserID) {
		return nil, domain.NewForbiddenError(msgUnauthorizedView)
	}
	return order, nil
}

// ListUserOrders pages through the actor's own orders.
func (s *OrderService) ListUserOrders(ctx context.Context, actor domain.Actor, q domain.ListQuery) (*domain.OrderPage, error) {
	if actor.UserID == "" {
		return nil, domain.NewForbiddenError("Authentication required")
	}
	q = q.Normalize(domain.DefaultUserPageLimit)
	q.UserID = actor.UserID
	if err := q.Validate(); err != nil {
		return nil, err
	}

	page, err := s.repo.FindByUser(ctx, actor.UserID, q)
	if err != nil {
		return nil, storeError("service: failed to list user orders", err)
	}
	return page, nil
}

// ListAllOrders pages through every order. Admin only.
func (s *OrderService) ListAllOrders(ctx context.Context, actor domain.Actor, q domain.ListQuery) (*domain.OrderPage, error) {
	if !actor.IsAdmin() {
		return nil, domain.NewForbiddenError(msgAdminRequired)
	}
	q = q.Normalize(domain.DefaultAdminPageLimit)
	if err := q.Validate(); err != nil {
		return nil, err
	}

	page, err := s.repo.FindAll(ctx, q)
	if err != nil {
		return nil, storeError("service: failed to list orders", err)
	}
	return page, nil
}

// UpdateOrderStatus sets any known status and records it on the timeline. Admin only.
func (s *OrderService) UpdateOrderStatus(ctx context.Context, actor domain.Actor, ref string, status domain.OrderStatus, message string) (*domain.Order, error) {
	if !actor.IsAdmin() {
		return nil, domain.NewForbiddenError(msgAdminRequired)
	}
	if !status.Valid() {
		return nil, domain.NewValidationError("Invalid order status: %s", status)
	}
	return s.mutate(ctx, ref, domain.EventOrderStatusUpdated, func(o *domain.Order) error {
		return o.UpdateStatus(status, message, s.now())
	})
}

// CancelOrder cancels an order that has not shipped. Owner or admin.
func (s *OrderService) CancelOrder(ctx context.Context, actor domain.Actor, ref string, reason string) (*domain.Order, error) {
	order, err := s.resolve(ctx, ref)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && !order.IsOwnedBy(actor.UserID) {
		return nil, domain.NewForbiddenError(msgUnauthorizedEdit)
	}
	return s.update(ctx, order, domain.EventOrderCancelled, func(o *domain.Order) error {
		return o.Cancel(reason, s.now())
	})
}

// AddTrackingInfo attaches shipment details and marks the order shipped. Admin only.
func (s *OrderService) AddTrackingInfo(ctx context.Context, actor domain.Actor, ref string, in domain.TrackingInput) (*domain.Order, error) {
	if !actor.IsAdmin() {
		return nil, domain.NewForbiddenError(msgAdminRequired)
	}
	return s.mutate(ctx, ref, domain.EventOrderShipped, func(o *domain.Order) error {
		return o.AddTracking(in, s.now())
	})
}

// UpdatePaymentStatus records a settlement change. Admin only.
func (s *OrderService) UpdatePaymentStatus(ctx context.Context, actor domain.Actor, ref string, status domain.PaymentStatus, transactionID string) (*domain.Order, error) {
	if !actor.IsAdmin() {
		return nil, domain.NewForbiddenError(msgAdminRequired)
	}
	if !status.Valid() {
		return nil, domain.NewValidationError("Invalid payment status: %s", status)
	}
	return s.mutate(ctx, ref, domain.EventPaymentUpdated, func(o *domain.Order) error {
		return o.UpdatePaymentStatus(status, transactionID, s.now())
	})
}

// GetOrderStats returns global statistics for admins and personal ones otherwise.
func (s *OrderService) GetOrderStats(ctx context.Context, actor domain.Actor) (*domain.Stats, error) {
	scope := actor.UserID
	if actor.IsAdmin() {
		scope = ""
	} else if scope == "" {
		return nil, domain.NewForbiddenError("Authentication required")
	}

	stats, err := s.repo.Stats(ctx, scope)
	if err != nil {
		return nil, storeError("service: failed to compute order stats", err)
	}
	return stats, nil
}

// GetRecentOrders returns the newest orders across users. Admin only.
func (s *OrderService) GetRecentOrders(ctx context.Context, actor domain.Actor, limit int) ([]*domain.Order, error) {
	if !actor.IsAdmin() {
		return nil, domain.NewForbiddenError(msgAdminRequired)
	}
	if limit < 1 {
		limit = domain.DefaultRecentLimit
	}
	if limit > domain.MaxPageLimit {
		limit = domain.MaxPageLimit
	}

	orders, err := s.repo.Recent(ctx, limit)
	if err != nil {
		return nil, storeError("service: failed to load recent orders", err)
	}
	return orders, nil
}

// DeleteOrder removes an order permanently. Admin only.
func (s *OrderService) DeleteOrder(ctx context.Context, actor domain.Actor, ref string) error {
	if !actor.IsAdmin() {
		return domain.NewForbiddenError(msgAdminRequired)
	}
	order, err := s.resolve(ctx, ref)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, order.ID); err != nil {
		return storeError("service: failed to delete order", err)
	}

	logger.FromContext(ctx).Info("Order deleted",
		zap.String("order_id", order.PublicID),
		zap.String("admin_id", actor.UserID),
	)
	s.publish(ctx, domain.EventOrderDeleted, order)
	return nil
}

// resolve finds an order by storage id or public id.
func (s *OrderService) resolve(ctx context.Context, ref string) (*domain.Order, error) {
	if ref == "" {
		return nil, domain.NewValidationError("Order ID is required")
	}

	if isObjectID(ref) {
		order, err := s.repo.FindByID(ctx, ref)
		if err != nil {
			return nil, storeError("service: failed to load order", err)
		}
		if order != nil {
			return order, nil
		}
	}

	order, err := s.repo.FindByPublicID(ctx, ref, "")
	if err != nil {
		return nil, storeError("service: failed to load order", err)
	}
	if order == nil {
		return nil, domain.NewNotFoundError(msgOrderNotFound)
	}
	return order, nil
}

func (s *OrderService) mutate(ctx context.Context, ref string, evt domain.EventType, fn func(*domain.Order) error) (*domain.Order, error) {
	order, err := s.resolve(ctx, ref)
	if err != nil {
		return nil, err
	}
	return s.update(ctx, order, evt, fn)
}

func (s *OrderService) update(ctx context.Context, order *domain.Order, evt domain.EventType, fn func(*domain.Order) error) (*domain.Order, error) {
	updated, err := s.repo.Update(ctx, order.ID, fn)
	if err != nil {
		return nil, storeError("service: failed to update order", err)
	}

	logger.FromContext(ctx).Info("Order updated",
		zap.String("order_id", updated.PublicID),
		zap.String("event", string(evt)),
		zap.String("order_status", string(updated.OrderStatus)),
		zap.String("payment_status", string(updated.PaymentStatus)),
	)
	s.publish(ctx, evt, updated)
	return updated, nil
}

func (s *OrderService) publish(ctx context.Context, t domain.EventType, order *domain.Order) {
	if s.publisher == nil {
		return
	}
	evt := domain.NewEvent(s.newEventID(), t, order, s.now())
	if err := s.publisher.Publish(ctx, evt); err != nil {
		logger.FromContext(ctx).Warn("Failed to publish order event",
			zap.String("type", string(t)),
			zap.String("order_id", order.PublicID),
			zap.Error(err),
		)
	}
}

// storeError keeps typed domain errors and wraps anything else as a persistence failure.
func storeError(message string, err error) error {
	var de *domain.Error
	if errors.As(err, &de) {
		return err
	}
	return domain.NewPersistenceError(message, err)
}

func isObjectID(ref string) bool {
	if len(ref) != 24 {
		return false
	}
	_, err := hex.DecodeString(ref)
	return err == nil
}
