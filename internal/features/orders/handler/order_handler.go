package handler

import (
	"fmt"
	"net/http"

	"storefront/internal/core/auth"
	"storefront/internal/features/orders/domain"
	"storefront/internal/features/orders/ports"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// IdempotencyHeader carries the client key that deduplicates order creation.
const IdempotencyHeader = "Idempotency-Key"

// OrderHandler handles HTTP requests related to orders.
type OrderHandler struct {
	service  ports.OrderService
	validate *validator.Validate
}

// NewOrderHandler creates a new instance of OrderHandler.
func NewOrderHandler(s ports.OrderService) *OrderHandler {
	return &OrderHandler{
		service:  s,
		validate: newValidator(),
	}
}

// RegisterRoutes mounts the order endpoints on r. Fixed paths are registered
// before /:orderId so they are not captured as order references.
func (h *OrderHandler) RegisterRoutes(r fiber.Router) {
	r.Post("/", h.CreateOrder)
	r.Get("/", h.ListAllOrders)
	r.Get("/my-orders", h.ListMyOrders)
	r.Get("/stats/orders", h.GetOrderStats)
	r.Get("/recent/orders", h.GetRecentOrders)
	r.Get("/:orderId", h.GetOrder)
	r.Delete("/:orderId", h.DeleteOrder)
	r.Post("/:orderId/cancel", h.CancelOrder)
	r.Put("/:orderId/status", h.UpdateOrderStatus)
	r.Post("/:orderId/tracking", h.AddTrackingInfo)
	r.Put("/:orderId/payment-status", h.UpdatePaymentStatus)
}

func actorFrom(c *fiber.Ctx) (domain.Actor, bool) {
	identity, ok := auth.IdentityFrom(c)
	if !ok {
		return domain.Actor{}, false
	}
	return domain.Actor{UserID: identity.UserID, Role: domain.Role(identity.Role)}, true
}

func unauthorized(c *fiber.Ctx) error {
	return fail(c, http.StatusUnauthorized, "Not authorized")
}

// bind parses the body into req and validates it. An empty body is allowed
// when optional is set.
func (h *OrderHandler) bind(c *fiber.Ctx, req interface{}, optional bool) error {
	if len(c.Body()) > 0 || !optional {
		if err := c.BodyParser(req); err != nil {
			return domain.NewValidationError("Invalid request body")
		}
	}
	if err := h.validate.Struct(req); err != nil {
		return validationError(err)
	}
	return nil
}

// CreateOrder handles POST /orders.
// @Summary Place an order
// @Description Creates an order from the submitted line items and clears the cart unless it is a direct buy.
// @Tags Orders
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param Idempotency-Key header string false "Client key that makes retries safe"
// @Param order body CreateOrderRequest true "Order details"
// @Success 201 {object} Response{data=OrderData}
// @Failure 400 {object} Response
// @Failure 401 {object} Response
// @Failure 409 {object} Response
// @Failure 500 {object} Response
// @Router /orders [post]
func (h *OrderHandler) CreateOrder(c *fiber.Ctx) error {
	actor, ok := actorFrom(c)
	if !ok {
		return unauthorized(c)
	}

	var req CreateOrderRequest
	if err := h.bind(c, &req, false); err != nil {
		return failWith(c, "create", err)
	}

	order, err := h.service.CreateOrder(c.UserContext(), actor, req.toInput(), c.Get(IdempotencyHeader))
	if err != nil {
		return failWith(c, "create", err)
	}
	return respond(c, http.StatusCreated, "Order placed successfully", OrderData{Order: order})
}

// GetOrder handles GET /orders/:orderId.
// @Summary Get an order
// @Description Returns an order by public id or storage id. Owners and admins only.
// @Tags Orders
// @Produce json
// @Security BearerAuth
// @Param orderId path string true "Order ID"
// @Success 200 {object} Response{data=OrderData}
// @Failure 403 {object} Response
// @Failure 404 {object} Response
// @Router /orders/{orderId} [get]
func (h *OrderHandler) GetOrder(c *fiber.Ctx) error {
	actor, ok := actorFrom(c)
	if !ok {
		return unauthorized(c)
	}

	order, err := h.service.GetOrder(c.UserContext(), actor, c.Params("orderId"))
	if err != nil {
		return failWith(c, "get", err)
	}
	return respond(c, http.StatusOK, "", OrderData{Order: order})
}

// ListMyOrders handles GET /orders/my-orders.
// @Summary List my orders
// @Tags Orders
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page number"
// @Param limit query int false "Page size"
// @Param status query string false "Order status"
// @Param from query string false "Created at or after (RFC 3339 or YYYY-MM-DD)"
// @Param to query string false "Created at or before (RFC 3339 or YYYY-MM-DD)"
// @Success 200 {object} Response{data=domain.OrderPage}
// @Failure 400 {object} Response
// @Router /orders/my-orders [get]
func (h *OrderHandler) ListMyOrders(c *fiber.Ctx) error {
	actor, ok := actorFrom(c)
	if !ok {
		return unauthorized(c)
	}

	q, err := listQuery(c)
	if err != nil {
		return failWith(c, "list_mine", err)
	}

	page, err := h.service.ListUserOrders(c.UserContext(), actor, q)
	if err != nil {
		return failWith(c, "list_mine", err)
	}
	return respond(c, http.StatusOK, "", page)
}

// ListAllOrders handles GET /orders.
// @Summary List all orders
// @Description Admin only.
// @Tags Orders
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page number"
// @Param limit query int false "Page size"
// @Param status query string false "Order status"
// @Param userId query string false "Owner id"
// @Param from query string false "Created at or after"
// @Param to query string false "Created at or before"
// @Success 200 {object} Response{data=domain.OrderPage}
// @Failure 403 {object} Response
// @Router /orders [get]
func (h *OrderHandler) ListAllOrders(c *fiber.Ctx) error {
	actor, ok := actorFrom(c)
	if !ok {
		return unauthorized(c)
	}

	q, err := listQuery(c)
	if err != nil {
		return failWith(c, "list_all", err)
	}
	q.UserID = c.Query("userId")

	page, err := h.service.ListAllOrders(c.UserContext(), actor, q)
	if err != nil {
		return failWith(c, "list_all", err)
	}
	return respond(c, http.StatusOK, "", page)
}

// UpdateOrderStatus handles PUT /orders/:orderId/status.
// @Summary Update order status
// @Description Admin only. Any known status may be set.
// @Tags Orders
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param orderId path string true "Order ID"
// @Param status body UpdateStatusRequest true "New status"
// @Success 200 {object} Response{data=OrderData}
// @Failure 400 {object} Response
// @Failure 403 {object} Response
// @Failure 404 {object} Response
// @Router /orders/{orderId}/status [put]
func (h *OrderHandler) UpdateOrderStatus(c *fiber.Ctx) error {
	actor, ok := actorFrom(c)
	if !ok {
		return unauthorized(c)
	}

	var req UpdateStatusRequest
	if err := h.bind(c, &req, false); err != nil {
		return failWith(c, "update_status", err)
	}

	order, err := h.service.UpdateOrderStatus(c.UserContext(), actor, c.Params("orderId"), domain.OrderStatus(req.Status), req.Message)
	if err != nil {
		return failWith(c, "update_status", err)
	}
	return respond(c, http.StatusOK, fmt.Sprintf("Order status updated to %s", order.OrderStatus), OrderData{Order: order})
}

// CancelOrder handles POST /orders/:orderId/cancel.
// @Summary Cancel an order
// @Description Owners and admins may cancel orders that have not shipped.
// @Tags Orders
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param orderId path string true "Order ID"
// @Param reason body CancelOrderRequest false "Cancellation reason"
// @Success 200 {object} Response{data=OrderData}
// @Failure 400 {object} Response
// @Failure 403 {object} Response
// @Failure 404 {object} Response
// @Router /orders/{orderId}/cancel [post]
func (h *OrderHandler) CancelOrder(c *fiber.Ctx) error {
	actor, ok := actorFrom(c)
	if !ok {
		return unauthorized(c)
	}

	var req CancelOrderRequest
	if err := h.bind(c, &req, true); err != nil {
		return failWith(c, "cancel", err)
	}

	order, err := h.service.CancelOrder(c.UserContext(), actor, c.Params("orderId"), req.Reason)
	if err != nil {
		return failWith(c, "cancel", err)
	}
	return respond(c, http.StatusOK, "Order cancelled successfully", OrderData{Order: order})
}

// AddTrackingInfo handles POST /orders/:orderId/tracking.
// @Summary Add tracking information
// @Description Admin only. Marks the order shipped.
// @Tags Orders
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param orderId path string true "Order ID"
// @Param tracking body TrackingRequest true "Shipment details"
// @Success 200 {object} Response{data=OrderData}
// @Failure 400 {object} Response
// @Failure 403 {object} Response
// @Failure 404 {object} Response
// @Router /orders/{orderId}/tracking [post]
func (h *OrderHandler) AddTrackingInfo(c *fiber.Ctx) error {
	actor, ok := actorFrom(c)
	if !ok {
		return unauthorized(c)
	}

	var req TrackingRequest
	if err := h.bind(c, &req, false); err != nil {
		return failWith(c, "add_tracking", err)
	}

	order, err := h.service.AddTrackingInfo(c.UserContext(), actor, c.Params("orderId"), req.toInput())
	if err != nil {
		return failWith(c, "add_tracking", err)
	}
	return respond(c, http.StatusOK, "Tracking information added", OrderData{Order: order})
}

// UpdatePaymentStatus handles PUT /orders/:orderId/payment-status.
// @Summary Update payment status
// @Description Admin only.
// @Tags Orders
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param orderId path string true "Order ID"
// @Param payment body PaymentStatusRequest true "Payment status"
// @Success 200 {object} Response{data=OrderData}
// @Failure 400 {object} Response
// @Failure 403 {object} Response
// @Failure 404 {object} Response
// @Router /orders/{orderId}/payment-status [put]
func (h *OrderHandler) UpdatePaymentStatus(c *fiber.Ctx) error {
	actor, ok := actorFrom(c)
	if !ok {
		return unauthorized(c)
	}

	var req PaymentStatusRequest
	if err := h.bind(c, &req, false); err != nil {
		return failWith(c, "update_payment", err)
	}

	order, err := h.service.UpdatePaymentStatus(c.UserContext(), actor, c.Params("orderId"), domain.PaymentStatus(req.PaymentStatus), req.TransactionID)
	if err != nil {
		return failWith(c, "update_payment", err)
	}
	return respond(c, http.StatusOK, fmt.Sprintf("Payment status updated to %s", order.PaymentStatus), OrderData{Order: order})
}

// GetOrderStats handles GET /orders/stats/orders.
// @Summary Order statistics
// @Description Global counts and revenue for admins, personal counts otherwise.
// @Tags Orders
// @Produce json
// @Security BearerAuth
// @Success 200 {object} Response{data=StatsData}
// @Router /orders/stats/orders [get]
func (h *OrderHandler) GetOrderStats(c *fiber.Ctx) error {
	actor, ok := actorFrom(c)
	if !ok {
		return unauthorized(c)
	}

	stats, err := h.service.GetOrderStats(c.UserContext(), actor)
	if err != nil {
		return failWith(c, "stats", err)
	}
	return respond(c, http.StatusOK, "", StatsData{Stats: stats})
}

// GetRecentOrders handles GET /orders/recent/orders.
// @Summary Recent orders
// @Description Admin only. Newest orders across all users.
// @Tags Orders
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Number of orders"
// @Success 200 {object} Response{data=OrdersData}
// @Failure 403 {object} Response
// @Router /orders/recent/orders [get]
func (h *OrderHandler) GetRecentOrders(c *fiber.Ctx) error {
	actor, ok := actorFrom(c)
	if !ok {
		return unauthorized(c)
	}

	orders, err := h.service.GetRecentOrders(c.UserContext(), actor, c.QueryInt("limit", domain.DefaultRecentLimit))
	if err != nil {
		return failWith(c, "recent", err)
	}
	return respond(c, http.StatusOK, "", OrdersData{Orders: orders})
}

// DeleteOrder handles DELETE /orders/:orderId.
// @Summary Delete an order
// @Description Admin only.
// @Tags Orders
// @Produce json
// @Security BearerAuth
// @Param orderId path string true "Order ID"
// @Success 200 {object} Response
// @Failure 403 {object} Response
// @Failure 404 {object} Response
// @Router /orders/{orderId} [delete]
func (h *OrderHandler) DeleteOrder(c *fiber.Ctx) error {
	actor, ok := actorFrom(c)
	if !ok {
		return unauthorized(c)
	}

	if err := h.service.DeleteOrder(c.UserContext(), actor, c.Params("orderId")); err != nil {
		return failWith(c, "delete", err)
	}
	return respond(c, http.StatusOK, "Order deleted successfully", nil)
}

func listQuery(c *fiber.Ctx) (domain.ListQuery, error) {
	q := domain.ListQuery{
		Page:   c.QueryInt("page", 1),
		Limit:  c.QueryInt("limit", 0),
		Status: domain.OrderStatus(c.Query("status")),
	}

	from, err := parseDate("from", c.Query("from"))
	if err != nil {
		return q, err
	}
	to, err := parseDate("to", c.Query("to"))
	if err != nil {
		return q, err
	}
	q.From = from
	q.To = endOfDay(c.Query("to"), to)
	return q, nil
}
