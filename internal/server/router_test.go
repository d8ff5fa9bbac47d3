package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"bazaar/internal/auth"
	"bazaar/internal/cleanup"
	"bazaar/internal/config"
	"bazaar/internal/domain"
	"bazaar/internal/dto"
	"bazaar/internal/metrics"
	"bazaar/internal/notification"
	"bazaar/internal/order"
	orderrepo "bazaar/internal/order/repository"
	"bazaar/internal/product"
	productrepo "bazaar/internal/product/repository"
	shoprepo "bazaar/internal/shop/repository"
)

type testApp struct {
	handler http.Handler
	jwt     *auth.JWTService
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	dir := t.TempDir()
	logger := zap.NewNop()

	orders, err := orderrepo.NewFileOrderRepository(dir)
	require.NoError(t, err)
	stock, err := productrepo.NewFileStockRepository(dir)
	require.NoError(t, err)
	shops, err := shoprepo.NewFileShopRepository(dir)
	require.NoError(t, err)

	require.NoError(t, shops.Upsert(t.Context(), domain.Shop{ID: 1, Name: "Corner", OwnerID: "owner-1"}))
	require.NoError(t, stock.Upsert(t.Context(), domain.Product{ShopID: 1, ProductID: "P", Name: "Pears", Stock: 3}))

	registry := cleanup.NewRegistry(logger)
	t.Cleanup(registry.Stop)
	m := metrics.NewOrderMetrics()

	mod := order.NewModule(order.Dependencies{
		Orders:   orders,
		Stock:    stock,
		Shops:    shops,
		Notifier: notification.NewNotifier(notification.NewLogDispatcher(logger), logger, time.Second),
		Cleanup:  registry,
		Metrics:  m,
	}, config.OrderConfig{
		DedupeWindow:           30 * time.Second,
		SiblingWindow:          2 * time.Minute,
		ReservationMaxAttempts: 2,
		CancelledRetention:     24 * time.Hour,
		TotalTolerance:         0.01,
		PropagationTimeout:     time.Second,
	}, logger)
	t.Cleanup(mod.Ledger.Wait)

	jwt := auth.NewJWTService("test-secret", time.Hour)
	handler := NewRouter(product.NewModule(stock, logger), mod.Controller, jwt, m.Handler(), logger)
	return &testApp{handler: handler, jwt: jwt}
}

func (a *testApp) do(t *testing.T, method, target, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

func (a *testApp) bearer(t *testing.T, actor domain.Actor) map[string]string {
	t.Helper()
	token, err := a.jwt.GenerateToken(actor)
	require.NoError(t, err)
	return map[string]string{"Authorization": "Bearer " + token}
}

func TestRouter_HealthAndMetrics(t *testing.T) {
	app := newTestApp(t)

	rec := app.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = app.do(t, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestRouter_GuestCheckoutThenOwnerConfirms(t *testing.T) {
	app := newTestApp(t)
	guest := map[string]string{auth.GuestHeader: "abc"}

	rec := app.do(t, http.MethodPost, "/orders",
		`{"shopId":1,"items":[{"productId":"P","qty":5,"price":2}],"total":10,"customer":{"name":"Jane"}}`, guest)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"available":3`)

	var created dto.CreateOrderResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	rec = app.do(t, http.MethodGet, "/orders/me", "", guest)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"customerId":"guest:abc"`)

	owner := app.bearer(t, domain.Actor{ID: "owner-1", Role: domain.RoleShopOwner})
	rec = app.do(t, http.MethodGet, "/shops/1/orders", "", owner)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"qty":3`)

	rec = app.do(t, http.MethodPatch, "/orders/"+created.Order.ID+"/status", `{"status":"confirmed"}`, owner)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"status":"confirmed"`)

	rec = app.do(t, http.MethodPatch, "/orders/"+created.Order.ID+"/status", `{"status":"pending"}`, owner)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = app.do(t, http.MethodPost, "/shops/1/products/stock", `{"productIds":["P"]}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"availableStock":0`)
}

func TestRouter_RejectsBadTokenAndAnonymous(t *testing.T) {
	app := newTestApp(t)

	rec := app.do(t, http.MethodGet, "/orders/me", "", map[string]string{"Authorization": "Bearer nope"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = app.do(t, http.MethodGet, "/orders/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = app.do(t, http.MethodDelete, "/orders/01H", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), `"error":"UNAUTHORIZED"`)
}
