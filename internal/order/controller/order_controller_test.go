package controller

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"bazaar/internal/auth"
	"bazaar/internal/domain"
	"bazaar/internal/dto"
	apperrors "bazaar/internal/errors"
)

type mockCreateOrderUseCase struct {
	createFunc func(ctx context.Context, req dto.CreateOrderRequest, actor domain.Actor) (*dto.CreateOrderResult, error)
}

func (m *mockCreateOrderUseCase) CreateOrder(ctx context.Context, req dto.CreateOrderRequest, actor domain.Actor) (*dto.CreateOrderResult, error) {
	return m.createFunc(ctx, req, actor)
}

type mockOrderUseCase struct {
	updateStatusFunc   func(ctx context.Context, orderID string, status string, actor domain.Actor) (*domain.Order, error)
	confirmPaymentFunc func(ctx context.Context, orderID string, actor domain.Actor) (*domain.Order, error)
	deleteFunc         func(ctx context.Context, orderID string, actor domain.Actor) error
	myOrdersFunc       func(ctx context.Context, actor domain.Actor) ([]domain.Order, error)
	shopOrdersFunc     func(ctx context.Context, shopID int, filter dto.OrderFilter, page dto.Page, actor domain.Actor) ([]domain.Order, error)
	adminOrdersFunc    func(ctx context.Context, filter dto.OrderFilter, page dto.Page, actor domain.Actor) ([]domain.Order, int, error)
}

func (m *mockOrderUseCase) UpdateOrderStatus(ctx context.Context, orderID string, status string, actor domain.Actor) (*domain.Order, error) {
	return m.updateStatusFunc(ctx, orderID, status, actor)
}

func (m *mockOrderUseCase) ConfirmPayment(ctx context.Context, orderID string, actor domain.Actor) (*domain.Order, error) {
	return m.confirmPaymentFunc(ctx, orderID, actor)
}

func (m *mockOrderUseCase) DeleteOrder(ctx context.Context, orderID string, actor domain.Actor) error {
	return m.deleteFunc(ctx, orderID, actor)
}

func (m *mockOrderUseCase) GetMyOrders(ctx context.Context, actor domain.Actor) ([]domain.Order, error) {
	return m.myOrdersFunc(ctx, actor)
}

func (m *mockOrderUseCase) ListShopOrders(ctx context.Context, shopID int, filter dto.OrderFilter, page dto.Page, actor domain.Actor) ([]domain.Order, error) {
	return m.shopOrdersFunc(ctx, shopID, filter, page, actor)
}

func (m *mockOrderUseCase) AdminListOrders(ctx context.Context, filter dto.OrderFilter, page dto.Page, actor domain.Actor) ([]domain.Order, int, error) {
	return m.adminOrdersFunc(ctx, filter, page, actor)
}

var testActor = domain.Actor{ID: "cust-1", Role: domain.RoleCustomer}

func newRouter(create *mockCreateOrderUseCase, orders *mockOrderUseCase, actor *domain.Actor) http.Handler {
	c := NewOrderController(create, orders, zap.NewNop())

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if actor != nil {
				req = req.WithContext(auth.WithActor(req.Context(), *actor))
			}
			next.ServeHTTP(w, req)
		})
	})
	c.RegisterRoutes(r)
	return r
}

func serve(handler http.Handler, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func sampleOrder(id string) *domain.Order {
	return &domain.Order{
		ID:            id,
		ShopID:        1,
		CustomerID:    "cust-1",
		Items:         []domain.OrderItem{{ProductID: "P", Qty: 2, Price: 2}},
		Total:         4,
		PaymentMethod: domain.PaymentMethodCashOnDelivery,
		Status:        domain.OrderStatusPending,
		PaymentStatus: domain.PaymentStatusPending,
		CreatedAt:     time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

// Unit Tests

func TestCreateOrder_Created(t *testing.T) {
	var gotReq dto.CreateOrderRequest
	create := &mockCreateOrderUseCase{
		createFunc: func(ctx context.Context, req dto.CreateOrderRequest, actor domain.Actor) (*dto.CreateOrderResult, error) {
			gotReq = req
			return &dto.CreateOrderResult{
				Order:       sampleOrder("O1"),
				Adjustments: []dto.Adjustment{{ProductID: "P", Requested: 5, Available: 2}},
			}, nil
		},
	}
	router := newRouter(create, &mockOrderUseCase{}, &testActor)

	rec := serve(router, http.MethodPost, "/orders",
		`{"shopId":1,"items":[{"productId":42,"qty":5,"price":2}],"total":10,"customer":{"name":"Jane"}}`)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, dto.ProductRef("42"), gotReq.Items[0].ProductID)

	var resp dto.CreateOrderResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "O1", resp.Order.ID)
	assert.False(t, resp.Duplicate)
	assert.NotEmpty(t, resp.TraceID)
	require.Len(t, resp.Adjustments, 1)
	assert.Equal(t, 2, resp.Adjustments[0].Available)
}

func TestCreateOrder_DuplicateReturnsOK(t *testing.T) {
	create := &mockCreateOrderUseCase{
		createFunc: func(ctx context.Context, req dto.CreateOrderRequest, actor domain.Actor) (*dto.CreateOrderResult, error) {
			return &dto.CreateOrderResult{Order: sampleOrder("O1"), Duplicate: true}, nil
		},
	}
	router := newRouter(create, &mockOrderUseCase{}, &testActor)

	rec := serve(router, http.MethodPost, "/orders", `{"shopId":1}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"duplicate":true`)
	assert.Contains(t, rec.Body.String(), `"adjustments":[]`)
}

func TestCreateOrder_OutOfStock(t *testing.T) {
	create := &mockCreateOrderUseCase{
		createFunc: func(ctx context.Context, req dto.CreateOrderRequest, actor domain.Actor) (*dto.CreateOrderResult, error) {
			return nil, apperrors.NewOutOfStockError("no items available",
				apperrors.StockAdjustment{ProductID: "P", Requested: 1, Available: 0})
		},
	}
	router := newRouter(create, &mockOrderUseCase{}, &testActor)

	rec := serve(router, http.MethodPost, "/orders", `{"shopId":1}`)

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	var resp dto.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "OUT_OF_STOCK", resp.Code)
	assert.Equal(t, []dto.Adjustment{{ProductID: "P", Requested: 1, Available: 0}}, resp.Adjustments)
}

func TestCreateOrder_InvalidJSONAndMissingActor(t *testing.T) {
	router := newRouter(&mockCreateOrderUseCase{}, &mockOrderUseCase{}, &testActor)
	rec := serve(router, http.MethodPost, "/orders", `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "VALIDATION_ERROR")

	anonymous := newRouter(&mockCreateOrderUseCase{}, &mockOrderUseCase{}, nil)
	rec = serve(anonymous, http.MethodPost, "/orders", `{}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"not found", apperrors.NewNotFoundError("order not found"), http.StatusNotFound, "NOT_FOUND"},
		{"forbidden", apperrors.NewForbiddenError("not your shop"), http.StatusForbidden, "FORBIDDEN"},
		{"invalid transition", apperrors.NewInvalidTransitionError("pending", "picked_up"), http.StatusConflict, "INVALID_TRANSITION"},
		{"conflict", apperrors.NewConflictError("status changed concurrently"), http.StatusConflict, "CONFLICT"},
		{"stock conflict", apperrors.NewConcurrentStockConflictError("retry", "P"), http.StatusConflict, "STOCK_CONFLICT"},
		{"deadlock", apperrors.NewDeadlockError("deadlock"), http.StatusConflict, "DEADLOCK"},
		{"internal", apperrors.NewInternalError("boom", nil), http.StatusInternalServerError, "INTERNAL_ERROR"},
		{"validation", apperrors.NewValidationError("bad", apperrors.ValidationDetail{Field: "status"}), http.StatusBadRequest, "VALIDATION_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			orders := &mockOrderUseCase{
				updateStatusFunc: func(ctx context.Context, orderID string, status string, actor domain.Actor) (*domain.Order, error) {
					return nil, tt.err
				},
			}
			router := newRouter(&mockCreateOrderUseCase{}, orders, &testActor)

			rec := serve(router, http.MethodPatch, "/orders/O1/status", `{"status":"confirmed"}`)

			assert.Equal(t, tt.status, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.code)
		})
	}
}

func TestUpdateOrderStatus_Success(t *testing.T) {
	var gotID, gotStatus string
	orders := &mockOrderUseCase{
		updateStatusFunc: func(ctx context.Context, orderID string, status string, actor domain.Actor) (*domain.Order, error) {
			gotID, gotStatus = orderID, status
			o := sampleOrder(orderID)
			o.Status = domain.OrderStatusConfirmed
			return o, nil
		},
	}
	router := newRouter(&mockCreateOrderUseCase{}, orders, &testActor)

	rec := serve(router, http.MethodPatch, "/orders/01HX/status", `{"status":"Confirmed"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "01HX", gotID)
	assert.Equal(t, "Confirmed", gotStatus)
	assert.Contains(t, rec.Body.String(), `"status":"confirmed"`)
}

func TestConfirmPaymentAndDelete(t *testing.T) {
	orders := &mockOrderUseCase{
		confirmPaymentFunc: func(ctx context.Context, orderID string, actor domain.Actor) (*domain.Order, error) {
			o := sampleOrder(orderID)
			o.PaymentStatus = domain.PaymentStatusPaid
			return o, nil
		},
		deleteFunc: func(ctx context.Context, orderID string, actor domain.Actor) error {
			return nil
		},
	}
	router := newRouter(&mockCreateOrderUseCase{}, orders, &testActor)

	rec := serve(router, http.MethodPost, "/orders/O1/payment", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"paymentStatus":"paid"`)

	rec = serve(router, http.MethodDelete, "/orders/O1", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestGetMyOrders(t *testing.T) {
	orders := &mockOrderUseCase{
		myOrdersFunc: func(ctx context.Context, actor domain.Actor) ([]domain.Order, error) {
			return []domain.Order{*sampleOrder("O1"), *sampleOrder("O2")}, nil
		},
	}
	router := newRouter(&mockCreateOrderUseCase{}, orders, &testActor)

	rec := serve(router, http.MethodGet, "/orders/me", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var resp dto.OrderListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Orders, 2)
}

func TestListShopOrders_ParsesQuery(t *testing.T) {
	var gotShop int
	var gotFilter dto.OrderFilter
	var gotPage dto.Page
	orders := &mockOrderUseCase{
		shopOrdersFunc: func(ctx context.Context, shopID int, filter dto.OrderFilter, page dto.Page, actor domain.Actor) ([]domain.Order, error) {
			gotShop, gotFilter, gotPage = shopID, filter, page
			return nil, nil
		},
	}
	router := newRouter(&mockCreateOrderUseCase{}, orders, &testActor)

	rec := serve(router, http.MethodGet,
		"/shops/3/orders?status=new&from=2026-01-01&to=2026-01-31&search=%20jane%20&page=2&pageSize=10", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 3, gotShop)
	assert.Equal(t, "new", gotFilter.Status)
	assert.Equal(t, "jane", gotFilter.Search)
	require.NotNil(t, gotFilter.From)
	require.NotNil(t, gotFilter.To)
	assert.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), *gotFilter.From)
	assert.Equal(t, time.Date(2026, 1, 31, 23, 59, 59, 999999999, time.UTC), *gotFilter.To)
	assert.Equal(t, dto.Page{Number: 2, Size: 10}, gotPage)
	assert.Contains(t, rec.Body.String(), `"orders":[]`)
}

func TestListShopOrders_InvalidQuery(t *testing.T) {
	router := newRouter(&mockCreateOrderUseCase{}, &mockOrderUseCase{}, &testActor)

	rec := serve(router, http.MethodGet, "/shops/abc/orders", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(router, http.MethodGet, "/shops/1/orders?status=shipped&pageSize=1000&from=yesterday", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `"field":"status"`)
	assert.Contains(t, body, `"field":"pageSize"`)
	assert.Contains(t, body, `"field":"from"`)
}

func TestAdminListOrders(t *testing.T) {
	var gotFilter dto.OrderFilter
	orders := &mockOrderUseCase{
		adminOrdersFunc: func(ctx context.Context, filter dto.OrderFilter, page dto.Page, actor domain.Actor) ([]domain.Order, int, error) {
			gotFilter = filter
			return []domain.Order{*sampleOrder("O1")}, 41, nil
		},
	}
	admin := domain.Actor{ID: "admin-1", Role: domain.RoleAdmin}
	router := newRouter(&mockCreateOrderUseCase{}, orders, &admin)

	rec := serve(router, http.MethodGet, "/admin/orders?shopId=7&search=corner", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 7, gotFilter.ShopID)
	assert.Equal(t, "corner", gotFilter.Search)

	var resp dto.OrderListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 41, resp.Total)
	assert.Equal(t, 1, resp.Page)
	assert.Equal(t, dto.DefaultPageSize, resp.PageSize)
}
