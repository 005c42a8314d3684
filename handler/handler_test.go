package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"commerce-api/cache"
	"commerce-api/events"
	models "commerce-api/model"
	"commerce-api/service"
	"commerce-api/store"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	adminID    = 1
	customerID = 2
)

type envelope struct {
	Success    bool            `json:"success"`
	Message    string          `json:"message"`
	Data       json.RawMessage `json:"data"`
	ErrorCode  int             `json:"errorCode"`
	ErrorType  string          `json:"errorType"`
	Errors     []string        `json:"errors"`
	Pagination *struct {
		Page      int `json:"page"`
		Limit     int `json:"limit"`
		ItemCount int `json:"itemCount"`
		PageCount int `json:"pageCount"`
	} `json:"pagination"`
}

type testServer struct {
	router *mux.Router
	store  *store.MemoryStore
}

func newTestServer(t *testing.T, limiter *rate.Limiter) *testServer {
	t.Helper()
	ctx := context.Background()
	st := store.NewMemoryStore()
	require.NoError(t, st.CreateUser(ctx, &models.User{Name: "Admin", Email: "admin@example.com", Role: models.RoleAdmin}))
	require.NoError(t, st.CreateUser(ctx, &models.User{Name: "Customer", Email: "customer@example.com", Role: models.RoleUser}))

	logger := zap.NewNop()
	tracer := noop.NewTracerProvider().Tracer("test")
	orders := service.NewOrderService(st, events.NopPublisher{}, cache.NopProductCache{}, logger, tracer)
	products := service.NewProductService(st, cache.NopProductCache{}, logger, tracer)

	r := mux.NewRouter()
	NewHandler(orders, products, st, logger, limiter).RegisterRoutes(r)
	return &testServer{router: r, store: st}
}

func (s *testServer) addProduct(t *testing.T, id, name string, count int) {
	t.Helper()
	now := time.Now()
	require.NoError(t, s.store.CreateProduct(context.Background(), &models.Product{
		ID:           id,
		Name:         name,
		Price:        decimal.RequireFromString("9.99"),
		Count:        count,
		Availability: models.AvailabilityFor(count),
		CreatedAt:    now,
		UpdatedAt:    now,
	}))
}

func (s *testServer) do(t *testing.T, method, path string, userID int64, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if userID > 0 {
		req.Header.Set(UserIDHeader, strconv.FormatInt(userID, 10))
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	}
	return rec, env
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, nil)
	rec, _ := s.do(t, http.MethodGet, "/healthz", 0, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestAuthenticate(t *testing.T) {
	s := newTestServer(t, nil)

	rec, env := s.do(t, http.MethodGet, "/api/products", 0, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, env.Success)
	assert.Equal(t, "UNAUTHORIZED", env.ErrorType)

	rec, env = s.do(t, http.MethodGet, "/api/products", 99, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, []string{"User not found"}, env.Errors)

	rec, env = s.do(t, http.MethodGet, "/api/products", customerID, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.Success)
}

func TestRequireAdmin(t *testing.T) {
	s := newTestServer(t, nil)

	rec, env := s.do(t, http.MethodGet, "/api/orders", customerID, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, []string{"Admin role required"}, env.Errors)

	rec, _ = s.do(t, http.MethodGet, "/api/orders", adminID, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCreateOrder(t *testing.T) {
	s := newTestServer(t, nil)
	s.addProduct(t, "p-1", "Keyboard", 5)

	body := map[string]interface{}{"products": []map[string]interface{}{{"id": "p-1", "count_products": 2}}}
	rec, env := s.do(t, http.MethodPost, "/api/orders", customerID, body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.True(t, env.Success)
	assert.Equal(t, "Order created successfully", env.Message)
	assert.Equal(t, "null", string(env.Data))

	rec, env = s.do(t, http.MethodGet, "/api/orders/order/1", adminID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var order models.Order
	require.NoError(t, json.Unmarshal(env.Data, &order))
	assert.Equal(t, int64(customerID), order.UserID)
	assert.Equal(t, models.StatusPending, order.Status)
	require.Len(t, order.Items, 1)
	assert.Equal(t, 5, order.Items[0].Count)
	assert.Equal(t, 2, order.Items[0].Quantity)

	rec, env = s.do(t, http.MethodGet, "/api/products/p-1", customerID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var p models.Product
	require.NoError(t, json.Unmarshal(env.Data, &p))
	assert.Equal(t, 3, p.Count)
}

func TestCreateOrder_Rejections(t *testing.T) {
	s := newTestServer(t, nil)
	s.addProduct(t, "p-1", "Keyboard", 1)

	tests := []struct {
		name      string
		body      interface{}
		status    int
		errorType string
		code      int
	}{
		{
			name:      "insufficient stock",
			body:      map[string]interface{}{"products": []map[string]interface{}{{"id": "p-1", "count_products": 2}}},
			status:    http.StatusUnprocessableEntity,
			errorType: "INSUFFICIENT_STOCK",
			code:      2001,
		},
		{
			name:      "unknown product",
			body:      map[string]interface{}{"products": []map[string]interface{}{{"id": "nope", "count_products": 1}}},
			status:    http.StatusNotFound,
			errorType: "NOT_FOUND",
			code:      404,
		},
		{
			name:      "empty request",
			body:      map[string]interface{}{"products": []interface{}{}},
			status:    http.StatusUnprocessableEntity,
			errorType: "INVALID",
			code:      407,
		},
		{
			name:      "malformed body",
			body:      "not an object",
			status:    http.StatusUnprocessableEntity,
			errorType: "INVALID",
			code:      407,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, env := s.do(t, http.MethodPost, "/api/orders", customerID, tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.False(t, env.Success)
			assert.Equal(t, tt.errorType, env.ErrorType)
			assert.Equal(t, tt.code, env.ErrorCode)
			assert.NotEmpty(t, env.Errors)
		})
	}

	p, err := s.store.GetProduct(context.Background(), "p-1")
	require.NoError(t, err)
	assert.Equal(t, 1, p.Count)
}

func TestListOrders_Pagination(t *testing.T) {
	s := newTestServer(t, nil)
	s.addProduct(t, "p-1", "Keyboard", 10)
	for i := 0; i < 3; i++ {
		body := map[string]interface{}{"products": []map[string]interface{}{{"id": "p-1", "count_products": 1}}}
		rec, _ := s.do(t, http.MethodPost, "/api/orders", customerID, body)
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec, env := s.do(t, http.MethodGet, "/api/orders?page=2&limit=2", adminID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var orders []models.Order
	require.NoError(t, json.Unmarshal(env.Data, &orders))
	assert.Len(t, orders, 1)
	require.NotNil(t, env.Pagination)
	assert.Equal(t, 2, env.Pagination.Page)
	assert.Equal(t, 3, env.Pagination.ItemCount)
	assert.Equal(t, 2, env.Pagination.PageCount)

	rec, env = s.do(t, http.MethodGet, "/api/orders/currentUser", customerID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, env.Pagination)
	assert.Equal(t, 10, env.Pagination.Limit)
	assert.Equal(t, 3, env.Pagination.ItemCount)

	rec, env = s.do(t, http.MethodGet, "/api/orders?page=abc", adminID, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "INVALID", env.ErrorType)

	// page is reported first whenever both parameters are malformed
	for i := 0; i < 20; i++ {
		rec, env = s.do(t, http.MethodGet, "/api/orders?page=x&limit=y", adminID, nil)
		require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		require.Equal(t, []string{"page must be an integer"}, env.Errors)
	}

	rec, env = s.do(t, http.MethodGet, "/api/orders/userById/42", adminID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, []string{"User not found."}, env.Errors)
}

func TestUpdateAndDeleteOrder(t *testing.T) {
	s := newTestServer(t, nil)
	s.addProduct(t, "p-1", "Keyboard", 4)
	body := map[string]interface{}{"products": []map[string]interface{}{{"id": "p-1", "count_products": 1}}}
	rec, _ := s.do(t, http.MethodPost, "/api/orders", customerID, body)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec, env := s.do(t, http.MethodPut, "/api/orders/1", adminID, map[string]string{"status": "In Progress"})
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Order updated successfully", env.Message)

	rec, env = s.do(t, http.MethodPut, "/api/orders/1", adminID, map[string]string{"status": "In Progress"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "CONFLICT", env.ErrorType)

	rec, _ = s.do(t, http.MethodPut, "/api/orders/1", adminID, map[string]string{"status": "Shipped"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec, _ = s.do(t, http.MethodPut, "/api/orders/x", adminID, map[string]string{"status": "Completed"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec, _ = s.do(t, http.MethodDelete, "/api/orders/1", adminID, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = s.do(t, http.MethodGet, "/api/orders/order/1", adminID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestProductRoutes(t *testing.T) {
	s := newTestServer(t, nil)

	create := map[string]interface{}{"name": "Mouse", "description": "wireless", "price": 12.5, "count": 3}
	rec, _ := s.do(t, http.MethodPost, "/api/products", customerID, create)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, env := s.do(t, http.MethodPost, "/api/products", adminID, create)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var p models.Product
	require.NoError(t, json.Unmarshal(env.Data, &p))
	assert.NotEmpty(t, p.ID)
	assert.True(t, p.Price.Equal(decimal.RequireFromString("12.5")))
	assert.Equal(t, models.Available, p.Availability)

	rec, env = s.do(t, http.MethodPost, "/api/products", adminID, create)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, []string{"Product with the same name already exists"}, env.Errors)

	rec, _ = s.do(t, http.MethodPost, "/api/products", adminID, map[string]interface{}{"name": "Pad", "price": "cheap"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec, env = s.do(t, http.MethodPut, "/api/products/"+p.ID, adminID, map[string]interface{}{"count": 0})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var updated models.Product
	require.NoError(t, json.Unmarshal(env.Data, &updated))
	assert.Equal(t, models.NotAvailable, updated.Availability)

	rec, env = s.do(t, http.MethodGet, "/api/products", customerID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, env.Pagination.ItemCount)

	rec, _ = s.do(t, http.MethodDelete, "/api/products/"+p.ID, adminID, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = s.do(t, http.MethodGet, "/api/products/"+p.ID, customerID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRateLimit(t *testing.T) {
	s := newTestServer(t, rate.NewLimiter(rate.Every(time.Hour), 1))

	rec, _ := s.do(t, http.MethodGet, "/api/products", customerID, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, env := s.do(t, http.MethodGet, "/api/products", customerID, nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.False(t, env.Success)

	rec, _ = s.do(t, http.MethodGet, "/healthz", 0, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
