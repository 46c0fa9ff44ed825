package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"storefront/internal/core/auth"
	"storefront/internal/features/orders/domain"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockOrderService is a mock implementation of ports.OrderService
type MockOrderService struct {
	mock.Mock
}

func (m *MockOrderService) CreateOrder(ctx context.Context, actor domain.Actor, in domain.NewOrderInput, key string) (*domain.Order, error) {
	args := m.Called(ctx, actor, in, key)
	return orderOrNil(args)
}

func (m *MockOrderService) GetOrder(ctx context.Context, actor domain.Actor, ref string) (*domain.Order, error) {
	return orderOrNil(m.Called(ctx, actor, ref))
}

func (m *MockOrderService) ListUserOrders(ctx context.Context, actor domain.Actor, q domain.ListQuery) (*domain.OrderPage, error) {
	args := m.Called(ctx, actor, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.OrderPage), args.Error(1)
}

func (m *MockOrderService) ListAllOrders(ctx context.Context, actor domain.Actor, q domain.ListQuery) (*domain.OrderPage, error) {
	args := m.Called(ctx, actor, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.OrderPage), args.Error(1)
}

func (m *MockOrderService) UpdateOrderStatus(ctx context.Context, actor domain.Actor, ref string, status domain.OrderStatus, message string) (*domain.Order, error) {
	return orderOrNil(m.Called(ctx, actor, ref, status, message))
}

func (m *MockOrderService) CancelOrder(ctx context.Context, actor domain.Actor, ref string, reason string) (*domain.Order, error) {
	return orderOrNil(m.Called(ctx, actor, ref, reason))
}

func (m *MockOrderService) AddTrackingInfo(ctx context.Context, actor domain.Actor, ref string, in domain.TrackingInput) (*domain.Order, error) {
	return orderOrNil(m.Called(ctx, actor, ref, in))
}

func (m *MockOrderService) UpdatePaymentStatus(ctx context.Context, actor domain.Actor, ref string, status domain.PaymentStatus, txID string) (*domain.Order, error) {
	return orderOrNil(m.Called(ctx, actor, ref, status, txID))
}

func (m *MockOrderService) GetOrderStats(ctx context.Context, actor domain.Actor) (*domain.Stats, error) {
	args := m.Called(ctx, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Stats), args.Error(1)
}

func (m *MockOrderService) GetRecentOrders(ctx context.Context, actor domain.Actor, limit int) ([]*domain.Order, error) {
	args := m.Called(ctx, actor, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Order), args.Error(1)
}

func (m *MockOrderService) DeleteOrder(ctx context.Context, actor domain.Actor, ref string) error {
	return m.Called(ctx, actor, ref).Error(0)
}

func orderOrNil(args mock.Arguments) (*domain.Order, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

var (
	customer = &auth.Identity{UserID: "user-1", Role: auth.RoleUser}
	admin    = &auth.Identity{UserID: "admin-1", Role: auth.RoleAdmin}

	customerActor = domain.Actor{UserID: "user-1", Role: domain.RoleUser}
	adminActor    = domain.Actor{UserID: "admin-1", Role: domain.RoleAdmin}
)

func setupApp(service *MockOrderService, identity *auth.Identity) *fiber.App {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("requestid", "test-ray-id")
		if identity != nil {
			c.Locals(auth.LocalsKey, *identity)
		}
		return c.Next()
	})
	NewOrderHandler(service).RegisterRoutes(app.Group("/orders"))
	return app
}

func jsonRequest(method, target string, body interface{}) *http.Request {
	var r io.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, target, r)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decode(t *testing.T, resp *http.Response) Response {
	t.Helper()
	var body Response
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

// orderField reads a field of the order wrapped under data.order.
func orderField(t *testing.T, body Response, name string) interface{} {
	t.Helper()
	data, ok := body.Data.(map[string]interface{})
	require.True(t, ok, "data should be an object")
	order, ok := data["order"].(map[string]interface{})
	require.True(t, ok, "data.order should be an object")
	return order[name]
}

func sampleOrder() *domain.Order {
	return &domain.Order{
		ID:            "65f1a2b3c4d5e6f708192a3b",
		PublicID:      "ORD-123456-001",
		OwnerID:       "user-1",
		OrderStatus:   domain.OrderStatusPending,
		PaymentStatus: domain.PaymentStatusPending,
		TotalAmount:   285,
	}
}

func validCreateRequest() CreateOrderRequest {
	return CreateOrderRequest{
		Items: []LineItemRequest{{ProductID: "p1", Name: "Mug", Price: 100, Quantity: 2}},
		ShippingAddress: &AddressRequest{
			FullName: "Asha Rao", Phone: "9876543210", Street: "12 MG Road",
			City: "Bengaluru", State: "KA", PostalCode: "560001",
		},
		PaymentMethod: "UPI",
	}
}

func TestOrderHandler_CreateOrder(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		mockService := new(MockOrderService)
		app := setupApp(mockService, customer)

		match := mock.MatchedBy(func(in domain.NewOrderInput) bool {
			return len(in.LineItems) == 1 &&
				in.LineItems[0].UnitPrice == 100 &&
				in.PaymentMethod == domain.PaymentMethodUPI &&
				in.ShippingAddress != nil && in.ShippingAddress.PostalCode == "560001"
		})
		mockService.On("CreateOrder", mock.Anything, customerActor, match, "key-1").Return(sampleOrder(), nil).Once()

		req := jsonRequest("POST", "/orders", validCreateRequest())
		req.Header.Set(IdempotencyHeader, "key-1")
		resp, err := app.Test(req)

		require.NoError(t, err)
		assert.Equal(t, http.StatusCreated, resp.StatusCode)

		body := decode(t, resp)
		assert.True(t, body.Success)
		assert.Equal(t, "Order placed successfully", body.Message)
		assert.Equal(t, "test-ray-id", body.RayID)
		assert.Equal(t, "ORD-123456-001", orderField(t, body, "orderId"))
		mockService.AssertExpectations(t)
	})

	t.Run("DomainValidation", func(t *testing.T) {
		mockService := new(MockOrderService)
		app := setupApp(mockService, customer)

		mockService.On("CreateOrder", mock.Anything, customerActor, mock.Anything, "").
			Return(nil, domain.NewValidationError("Order must contain at least one item")).Once()

		resp, err := app.Test(jsonRequest("POST", "/orders", CreateOrderRequest{}))

		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		body := decode(t, resp)
		assert.False(t, body.Success)
		assert.Equal(t, "Order must contain at least one item", body.Message)
	})

	t.Run("RequestValidation", func(t *testing.T) {
		mockService := new(MockOrderService)
		app := setupApp(mockService, customer)

		reqBody := validCreateRequest()
		reqBody.Items[0].Image = "not a url"
		resp, err := app.Test(jsonRequest("POST", "/orders", reqBody))

		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "items[0].image must be a valid URL", decode(t, resp).Message)
		mockService.AssertNotCalled(t, "CreateOrder", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("MalformedBody", func(t *testing.T) {
		mockService := new(MockOrderService)
		app := setupApp(mockService, customer)

		req := httptest.NewRequest("POST", "/orders", bytes.NewBufferString("{"))
		req.Header.Set("Content-Type", "application/json")
		resp, err := app.Test(req)

		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "Invalid request body", decode(t, resp).Message)
	})

	t.Run("Conflict", func(t *testing.T) {
		mockService := new(MockOrderService)
		app := setupApp(mockService, customer)

		mockService.On("CreateOrder", mock.Anything, customerActor, mock.Anything, "key-1").
			Return(nil, domain.NewConflictError("A request with this idempotency key is already in progress", nil)).Once()

		req := jsonRequest("POST", "/orders", validCreateRequest())
		req.Header.Set(IdempotencyHeader, "key-1")
		resp, err := app.Test(req)

		require.NoError(t, err)
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
	})

	t.Run("ServerErrorHidesDetail", func(t *testing.T) {
		mockService := new(MockOrderService)
		app := setupApp(mockService, customer)

		mockService.On("CreateOrder", mock.Anything, customerActor, mock.Anything, "").
			Return(nil, domain.NewPersistenceError("service: failed to save order", errors.New("socket closed"))).Once()

		resp, err := app.Test(jsonRequest("POST", "/orders", validCreateRequest()))

		require.NoError(t, err)
		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		assert.Equal(t, "Server error", decode(t, resp).Message)
	})

	t.Run("Unauthenticated", func(t *testing.T) {
		mockService := new(MockOrderService)
		app := setupApp(mockService, nil)

		resp, err := app.Test(jsonRequest("POST", "/orders", validCreateRequest()))

		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})
}

func TestOrderHandler_GetOrder(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		mockService := new(MockOrderService)
		app := setupApp(mockService, customer)
		mockService.On("GetOrder", mock.Anything, customerActor, "ORD-123456-001").Return(sampleOrder(), nil).Once()

		resp, err := app.Test(httptest.NewRequest("GET", "/orders/ORD-123456-001", nil))

		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "65f1a2b3c4d5e6f708192a3b", orderField(t, decode(t, resp), "id"))
		mockService.AssertExpectations(t)
	})

	t.Run("Forbidden", func(t *testing.T) {
		mockService := new(MockOrderService)
		app := setupApp(mockService, customer)
		mockService.On("GetOrder", mock.Anything, customerActor, "ORD-123456-001").
			Return(nil, domain.NewForbiddenError("Unauthorized to view this order")).Once()

		resp, err := app.Test(httptest.NewRequest("GET", "/orders/ORD-123456-001", nil))

		require.NoError(t, err)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
		assert.Equal(t, "Unauthorized to view this order", decode(t, resp).Message)
	})

	t.Run("NotFound", func(t *testing.T) {
		mockService := new(MockOrderService)
		app := setupApp(mockService, customer)
		mockService.On("GetOrder", mock.Anything, customerActor, "ORD-000000-000").
			Return(nil, domain.NewNotFoundError("Order not found")).Once()

		resp, err := app.Test(httptest.NewRequest("GET", "/orders/ORD-000000-000", nil))

		require.NoError(t, err)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestOrderHandler_ListOrders(t *testing.T) {
	page := &domain.OrderPage{Orders: []*domain.Order{sampleOrder()}, Pagination: domain.NewPagination(2, 5, 6)}

	t.Run("MyOrdersParsesQuery", func(t *testing.T) {
		mockService := new(MockOrderService)
		app := setupApp(mockService, customer)

		from := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
		to := time.Date(2025, 1, 31, 23, 59, 59, 999999999, time.UTC)
		want := domain.ListQuery{Page: 2, Limit: 5, Status: domain.OrderStatusShipped, From: &from, To: &to}
		mockService.On("ListUserOrders", mock.Anything, customerActor, want).Return(page, nil).Once()

		resp, err := app.Test(httptest.NewRequest("GET", "/orders/my-orders?page=2&limit=5&status=shipped&from=2025-01-01&to=2025-01-31", nil))

		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		data := decode(t, resp).Data.(map[string]interface{})
		assert.Len(t, data["orders"], 1)
		assert.NotContains(t, data, "order")
		pagination := data["pagination"].(map[string]interface{})
		assert.Equal(t, float64(2), pagination["pages"])
		mockService.AssertExpectations(t)
	})

	t.Run("InvalidDate", func(t *testing.T) {
		mockService := new(MockOrderService)
		app := setupApp(mockService, customer)

		resp, err := app.Test(httptest.NewRequest("GET", "/orders/my-orders?from=yesterday", nil))

		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "Invalid from date: yesterday", decode(t, resp).Message)
	})

	t.Run("AllOrdersForwardsUserFilter", func(t *testing.T) {
		mockService := new(MockOrderService)
		app := setupApp(mockService, admin)

		want := domain.ListQuery{Page: 1, UserID: "user-1"}
		mockService.On("ListAllOrders", mock.Anything, adminActor, want).Return(page, nil).Once()

		resp, err := app.Test(httptest.NewRequest("GET", "/orders?userId=user-1", nil))

		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		mockService.AssertExpectations(t)
	})

	t.Run("AllOrdersForbidden", func(t *testing.T) {
		mockService := new(MockOrderService)
		app := setupApp(mockService, customer)
		mockService.On("ListAllOrders", mock.Anything, customerActor, mock.Anything).
			Return(nil, domain.NewForbiddenError("Admin access required")).Once()

		resp, err := app.Test(httptest.NewRequest("GET", "/orders", nil))

		require.NoError(t, err)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
		assert.Equal(t, "Admin access required", decode(t, resp).Message)
	})
}

func TestOrderHandler_StaticRoutesBeforeOrderID(t *testing.T) {
	mockService := new(MockOrderService)
	app := setupApp(mockService, admin)

	revenue := 10.0
	mockService.On("GetOrderStats", mock.Anything, adminActor).Return(&domain.Stats{Total: 1, Revenue: &revenue}, nil).Once()
	mockService.On("GetRecentOrders", mock.Anything, adminActor, 5).Return([]*domain.Order{sampleOrder()}, nil).Once()

	resp, err := app.Test(httptest.NewRequest("GET", "/orders/stats/orders", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest("GET", "/orders/recent/orders?limit=5", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	data := decode(t, resp).Data.(map[string]interface{})
	assert.Len(t, data["orders"], 1)

	mockService.AssertExpectations(t)
	mockService.AssertNotCalled(t, "GetOrder", mock.Anything, mock.Anything, mock.Anything)
}

func TestOrderHandler_GetOrderStats(t *testing.T) {
	t.Run("AdminPayload", func(t *testing.T) {
		mockService := new(MockOrderService)
		app := setupApp(mockService, admin)

		revenue := 1416.0
		mockService.On("GetOrderStats", mock.Anything, adminActor).
			Return(&domain.Stats{Total: 4, Pending: 1, Delivered: 2, Cancelled: 1, Revenue: &revenue}, nil).Once()

		resp, err := app.Test(httptest.NewRequest("GET", "/orders/stats/orders", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var body struct {
			Data struct {
				Stats map[string]interface{} `json:"stats"`
			} `json:"data"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, map[string]interface{}{
			"total":     float64(4),
			"pending":   float64(1),
			"delivered": float64(2),
			"cancelled": float64(1),
			"revenue":   1416.0,
		}, body.Data.Stats)
	})

	t.Run("UserRevenueIsNull", func(t *testing.T) {
		mockService := new(MockOrderService)
		app := setupApp(mockService, customer)
		mockService.On("GetOrderStats", mock.Anything, customerActor).Return(&domain.Stats{Total: 1}, nil).Once()

		resp, err := app.Test(httptest.NewRequest("GET", "/orders/stats/orders", nil))
		require.NoError(t, err)

		var body struct {
			Data struct {
				Stats map[string]interface{} `json:"stats"`
			} `json:"data"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		value, present := body.Data.Stats["revenue"]
		assert.True(t, present)
		assert.Nil(t, value)
	})
}

func TestOrderHandler_UpdateOrderStatus(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		mockService := new(MockOrderService)
		app := setupApp(mockService, admin)

		updated := sampleOrder()
		updated.OrderStatus = domain.OrderStatusConfirmed
		mockService.On("UpdateOrderStatus", mock.Anything, adminActor, "ORD-123456-001", domain.OrderStatusConfirmed, "Packed").
			Return(updated, nil).Once()

		resp, err := app.Test(jsonRequest("PUT", "/orders/ORD-123456-001/status", UpdateStatusRequest{Status: "confirmed", Message: "Packed"}))

		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		body := decode(t, resp)
		assert.Equal(t, "Order status updated to confirmed", body.Message)
		assert.Equal(t, "confirmed", orderField(t, body, "orderStatus"))
	})

	t.Run("MissingStatus", func(t *testing.T) {
		mockService := new(MockOrderService)
		app := setupApp(mockService, admin)

		resp, err := app.Test(jsonRequest("PUT", "/orders/ORD-123456-001/status", UpdateStatusRequest{}))

		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "status is required", decode(t, resp).Message)
	})
}

func TestOrderHandler_CancelOrder(t *testing.T) {
	t.Run("WithoutBody", func(t *testing.T) {
		mockService := new(MockOrderService)
		app := setupApp(mockService, customer)

		cancelled := sampleOrder()
		cancelled.OrderStatus = domain.OrderStatusCancelled
		mockService.On("CancelOrder", mock.Anything, customerActor, "ORD-123456-001", "").Return(cancelled, nil).Once()

		resp, err := app.Test(httptest.NewRequest("POST", "/orders/ORD-123456-001/cancel", nil))

		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		body := decode(t, resp)
		assert.Equal(t, "Order cancelled successfully", body.Message)
		assert.Equal(t, "cancelled", orderField(t, body, "orderStatus"))
	})

	t.Run("InvalidState", func(t *testing.T) {
		mockService := new(MockOrderService)
		app := setupApp(mockService, customer)

		mockService.On("CancelOrder", mock.Anything, customerActor, "ORD-123456-001", "Changed my mind").
			Return(nil, domain.NewInvalidStateError("Cannot cancel order with status: %s", domain.OrderStatusShipped)).Once()

		resp, err := app.Test(jsonRequest("POST", "/orders/ORD-123456-001/cancel", CancelOrderRequest{Reason: "Changed my mind"}))

		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "Cannot cancel order with status: shipped", decode(t, resp).Message)
	})
}

func TestOrderHandler_AddTrackingInfo(t *testing.T) {
	mockService := new(MockOrderService)
	app := setupApp(mockService, admin)

	shipped := sampleOrder()
	shipped.OrderStatus = domain.OrderStatusShipped
	in := domain.TrackingInput{CourierName: "Delhivery", TrackingNumber: "DL1", TrackingURL: "https://track.example.com/DL1"}
	mockService.On("AddTrackingInfo", mock.Anything, adminActor, "ORD-123456-001", in).Return(shipped, nil).Once()

	resp, err := app.Test(jsonRequest("POST", "/orders/ORD-123456-001/tracking", TrackingRequest{
		CourierName: "Delhivery", TrackingNumber: "DL1", TrackingURL: "https://track.example.com/DL1",
	}))

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode(t, resp)
	assert.Equal(t, "Tracking information added", body.Message)
	assert.Equal(t, "shipped", orderField(t, body, "orderStatus"))
	mockService.AssertExpectations(t)
}

func TestOrderHandler_UpdatePaymentStatus(t *testing.T) {
	mockService := new(MockOrderService)
	app := setupApp(mockService, admin)

	paid := sampleOrder()
	paid.PaymentStatus = domain.PaymentStatusPaid
	mockService.On("UpdatePaymentStatus", mock.Anything, adminActor, "ORD-123456-001", domain.PaymentStatusPaid, "txn_42").
		Return(paid, nil).Once()

	resp, err := app.Test(jsonRequest("PUT", "/orders/ORD-123456-001/payment-status", PaymentStatusRequest{
		PaymentStatus: "paid", TransactionID: "txn_42",
	}))

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode(t, resp)
	assert.Equal(t, "Payment status updated to paid", body.Message)
	assert.Equal(t, "paid", orderField(t, body, "paymentStatus"))
}

func TestOrderHandler_DeleteOrder(t *testing.T) {
	mockService := new(MockOrderService)
	app := setupApp(mockService, admin)
	mockService.On("DeleteOrder", mock.Anything, adminActor, "ORD-123456-001").Return(nil).Once()

	resp, err := app.Test(httptest.NewRequest("DELETE", "/orders/ORD-123456-001", nil))

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode(t, resp)
	assert.True(t, body.Success)
	assert.Nil(t, body.Data)
}
