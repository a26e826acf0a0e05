package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/egannguyen/go-kafka-ecommerce/storefront/internal/apperror"
	"github.com/egannguyen/go-kafka-ecommerce/storefront/internal/checkout"
	"github.com/egannguyen/go-kafka-ecommerce/storefront/internal/entity"
	"github.com/egannguyen/go-kafka-ecommerce/storefront/internal/idempotency"
	"github.com/egannguyen/go-kafka-ecommerce/storefront/internal/messaging"
	"github.com/egannguyen/go-kafka-ecommerce/storefront/internal/repository/memory"
	"github.com/egannguyen/go-kafka-ecommerce/storefront/internal/service"
)

type apiClient struct {
	t      *testing.T
	server *httptest.Server
}

func newAPI(t *testing.T) *apiClient {
	t.Helper()

	store := memory.NewStore()
	err := store.Repos().Products.Seed(context.Background(), []entity.Product{
		{ID: "p-a", Name: "Product A", Price: decimal.NewFromInt(300), Stock: 5, Status: entity.ProductActive},
		{ID: "p-b", Name: "Product B", Price: decimal.NewFromInt(100), Stock: 10, Status: entity.ProductActive},
	})
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	orders := service.NewOrderService(
		store,
		messaging.NewLogPublisher(logger),
		idempotency.NewMemoryStore(time.Hour),
		checkout.DefaultPolicy(),
		checkout.NewOrderNumberGenerator("ORD"),
	)
	h := NewHandler(service.NewCatalogService(store), service.NewCartService(store), service.NewAddressService(store), orders)

	server := httptest.NewServer(h.Routes())
	t.Cleanup(server.Close)
	return &apiClient{t: t, server: server}
}

// do sends a request as userID (no identity headers when empty) and decodes
// the JSON response into out when out is non-nil.
func (c *apiClient) do(method, path, userID, role string, body any, out any, headers ...string) int {
	c.t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		payload, err := json.Marshal(b)
		require.NoError(c.t, err)
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequest(method, c.server.URL+path, reader)
	require.NoError(c.t, err)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set(HeaderUserID, userID)
	}
	if role != "" {
		req.Header.Set(HeaderUserRole, role)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	resp, err := c.server.Client().Do(req)
	require.NoError(c.t, err)
	defer resp.Body.Close()

	if out != nil {
		require.NoError(c.t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func (c *apiClient) checkoutReady(userID string, productID string, qty int) string {
	c.t.Helper()

	var addr entity.Address
	status := c.do(http.MethodPost, "/api/addresses", userID, "", map[string]string{
		"full_name": "Ada", "phone": "555", "line1": "1 Main St", "city": "Pune", "postal_code": "411001", "country": "IN",
	}, &addr)
	require.Equal(c.t, http.StatusCreated, status)

	status = c.do(http.MethodPost, "/api/cart/items", userID, "", map[string]any{"product_id": productID, "quantity": qty}, nil)
	require.Equal(c.t, http.StatusOK, status)
	return addr.ID
}

func TestAPI_HealthAndCatalog(t *testing.T) {
	api := newAPI(t)

	var health map[string]string
	assert.Equal(t, http.StatusOK, api.do(http.MethodGet, "/api/health", "", "", nil, &health))
	assert.Equal(t, "ok", health["status"])

	var products []entity.Product
	assert.Equal(t, http.StatusOK, api.do(http.MethodGet, "/api/products?q=b", "", "", nil, &products))
	require.Len(t, products, 1)
	assert.Equal(t, "p-b", products[0].ID)

	var errBody errorResponse
	assert.Equal(t, http.StatusNotFound, api.do(http.MethodGet, "/api/products/nope", "", "", nil, &errBody))
	assert.Equal(t, "not_found", errBody.Error)
}

func TestAPI_IdentityAndRoles(t *testing.T) {
	api := newAPI(t)

	var errBody errorResponse
	assert.Equal(t, http.StatusUnauthorized, api.do(http.MethodGet, "/api/cart", "", "", nil, &errBody))
	assert.Equal(t, "unauthorized", errBody.Error)

	assert.Equal(t, http.StatusForbidden, api.do(http.MethodGet, "/api/admin/orders", "u1", "customer", nil, &errBody))
	assert.Equal(t, "forbidden", errBody.Error)
	assert.Equal(t, "admin role required", errBody.Message)

	errBody = errorResponse{}
	assert.Equal(t, http.StatusForbidden, api.do(http.MethodPut, "/api/admin/orders/o1/status", "u1", "", map[string]string{"status": "shipped"}, &errBody))
	assert.Equal(t, string(apperror.KindForbidden), errBody.Error)

	var orders []entity.Order
	assert.Equal(t, http.StatusOK, api.do(http.MethodGet, "/api/admin/orders", "admin-1", "admin", nil, &orders))
	assert.Empty(t, orders)

	var stock entity.Product
	assert.Equal(t, http.StatusOK, api.do(http.MethodPut, "/api/admin/products/p-a/stock", "admin-1", "admin", map[string]int{"stock_quantity": 7}, &stock))
	assert.Equal(t, 7, stock.Stock)

	assert.Equal(t, http.StatusBadRequest, api.do(http.MethodPut, "/api/admin/products/p-a/stock", "admin-1", "admin", map[string]int{}, &errBody))
	assert.Equal(t, "stock_quantity is required", errBody.Message)
}

func TestAPI_CheckoutFlow(t *testing.T) {
	api := newAPI(t)
	addrID := api.checkoutReady("u1", "p-a", 2)

	var order entity.Order
	status := api.do(http.MethodPost, "/api/orders", "u1", "", map[string]string{
		"shipping_address_id": addrID, "payment_method": "cod", "notes": "leave at door",
	}, &order, "Idempotency-Key", "key-1")
	require.Equal(t, http.StatusCreated, status)
	assert.True(t, order.FinalAmount.Equal(decimal.NewFromInt(708)))
	assert.Equal(t, entity.OrderPending, order.Status)
	assert.Equal(t, "leave at door", order.Notes)

	var replay entity.Order
	status = api.do(http.MethodPost, "/api/orders", "u1", "", map[string]string{
		"shipping_address_id": addrID, "payment_method": "cod",
	}, &replay, "Idempotency-Key", "key-1")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, order.ID, replay.ID)

	var cart entity.Cart
	api.do(http.MethodGet, "/api/cart", "u1", "", nil, &cart)
	assert.Empty(t, cart.Items)

	var product entity.Product
	api.do(http.MethodGet, "/api/products/p-a", "", "", nil, &product)
	assert.Equal(t, 3, product.Stock)

	var mine []entity.Order
	assert.Equal(t, http.StatusOK, api.do(http.MethodGet, "/api/orders", "u1", "", nil, &mine))
	assert.Len(t, mine, 1)

	var errBody errorResponse
	assert.Equal(t, http.StatusNotFound, api.do(http.MethodGet, "/api/orders/"+order.ID, "u2", "", nil, &errBody))

	var updated entity.Order
	assert.Equal(t, http.StatusOK, api.do(http.MethodPut, "/api/admin/orders/"+order.ID+"/status", "admin-1", "admin", map[string]string{"status": "confirmed"}, &updated))
	assert.Equal(t, entity.OrderConfirmed, updated.Status)

	assert.Equal(t, http.StatusBadRequest, api.do(http.MethodPut, "/api/admin/orders/"+order.ID+"/status", "admin-1", "admin", map[string]string{"status": "delivered"}, &errBody))
	assert.Equal(t, "cannot change order status from confirmed to delivered", errBody.Message)

	var cancelled entity.Order
	assert.Equal(t, http.StatusOK, api.do(http.MethodPost, "/api/orders/"+order.ID+"/cancel", "u1", "", map[string]string{"reason": "too slow"}, &cancelled))
	assert.Equal(t, entity.OrderCancelled, cancelled.Status)
	assert.Equal(t, "too slow", cancelled.CancellationReason)

	api.do(http.MethodGet, "/api/products/p-a", "", "", nil, &product)
	assert.Equal(t, 5, product.Stock)

	assert.Equal(t, http.StatusBadRequest, api.do(http.MethodPost, "/api/orders/"+order.ID+"/cancel", "u1", "", nil, &errBody))

	var history entity.OrderAggregate
	assert.Equal(t, http.StatusOK, api.do(http.MethodGet, "/api/orders/"+order.ID+"/history", "u1", "", nil, &history))
	assert.Len(t, history.History, 3)
}

func TestAPI_CheckoutFailures(t *testing.T) {
	api := newAPI(t)
	addrID := api.checkoutReady("u1", "p-a", 2)

	var errBody errorResponse
	api.do(http.MethodPut, "/api/admin/products/p-a/stock", "admin-1", "admin", map[string]int{"stock_quantity": 1}, nil)
	status := api.do(http.MethodPost, "/api/orders", "u1", "", map[string]string{
		"shipping_address_id": addrID, "payment_method": "cod",
	}, &errBody)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "invalid_request", errBody.Error)
	assert.Equal(t, "insufficient stock for Product A (available: 1, requested: 2)", errBody.Message)

	status = api.do(http.MethodPost, "/api/orders", "u1", "", map[string]string{
		"shipping_address_id": "missing", "payment_method": "cod",
	}, &errBody)
	assert.Equal(t, http.StatusNotFound, status)

	assert.Equal(t, http.StatusBadRequest, api.do(http.MethodPost, "/api/orders", "u1", "", "{not json", &errBody))
	assert.Equal(t, "invalid JSON body", errBody.Message)

	var orders []entity.Order
	api.do(http.MethodGet, "/api/orders", "u1", "", nil, &orders)
	assert.Empty(t, orders)
}

func TestAPI_CartEndpoints(t *testing.T) {
	api := newAPI(t)

	var cart entity.Cart
	require.Equal(t, http.StatusOK, api.do(http.MethodPost, "/api/cart/items", "u1", "", map[string]any{"product_id": "p-b", "quantity": 2}, &cart))
	require.Len(t, cart.Items, 1)

	require.Equal(t, http.StatusOK, api.do(http.MethodPut, "/api/cart/items/p-b", "u1", "", map[string]int{"quantity": 4}, &cart))
	assert.Equal(t, 4, cart.Items[0].Quantity)

	var errBody errorResponse
	assert.Equal(t, http.StatusNotFound, api.do(http.MethodDelete, "/api/cart/items/p-a", "u1", "", nil, &errBody))
	assert.Equal(t, http.StatusBadRequest, api.do(http.MethodPost, "/api/cart/items", "u1", "", map[string]any{"quantity": 1}, &errBody))

	require.Equal(t, http.StatusOK, api.do(http.MethodDelete, "/api/cart/items/p-b", "u1", "", nil, &cart))
	assert.Empty(t, cart.Items)

	api.do(http.MethodPost, "/api/cart/items", "u1", "", map[string]any{"product_id": "p-b", "quantity": 1}, nil)
	assert.Equal(t, http.StatusNoContent, api.do(http.MethodDelete, "/api/cart", "u1", "", nil, nil))
	api.do(http.MethodGet, "/api/cart", "u1", "", nil, &cart)
	assert.Empty(t, cart.Items)

	var addresses []entity.Address
	assert.Equal(t, http.StatusOK, api.do(http.MethodGet, "/api/addresses", "u1", "", nil, &addresses))
	assert.Empty(t, addresses)
}

func TestAPI_AdminListLimit(t *testing.T) {
	api := newAPI(t)
	for _, u := range []string{"u1", "u2"} {
		addrID := api.checkoutReady(u, "p-b", 1)
		status := api.do(http.MethodPost, "/api/orders", u, "", map[string]string{"shipping_address_id": addrID, "payment_method": "wallet"}, nil)
		require.Equal(t, http.StatusCreated, status)
	}

	var orders []entity.Order
	assert.Equal(t, http.StatusOK, api.do(http.MethodGet, "/api/admin/orders?limit=1", "admin-1", "admin", nil, &orders))
	assert.Len(t, orders, 1)

	var errBody errorResponse
	assert.Equal(t, http.StatusBadRequest, api.do(http.MethodGet, "/api/admin/orders?limit=zero", "admin-1", "admin", nil, &errBody))
}

func TestEnableCORS_Preflight(t *testing.T) {
	api := newAPI(t)

	req, err := http.NewRequest(http.MethodOptions, api.server.URL+"/api/orders", nil)
	require.NoError(t, err)
	resp, err := api.server.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Access-Control-Allow-Headers"), HeaderUserID)
}
