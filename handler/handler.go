package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"commerce-api/apperr"
	models "commerce-api/model"
	"commerce-api/result"
	"commerce-api/service"
	"commerce-api/store"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Handler is the HTTP layer over the order and product services.
type Handler struct {
	orders   service.Orders
	products service.Products
	users    store.UserStore
	logger   *zap.Logger
	limiter  *rate.Limiter
}

// NewHandler returns a Handler instance. A nil limiter disables rate limiting.
func NewHandler(orders service.Orders, products service.Products, users store.UserStore, logger *zap.Logger, limiter *rate.Limiter) *Handler {
	return &Handler{orders: orders, products: products, users: users, logger: logger, limiter: limiter}
}

// RegisterRoutes registers all routes on the provided router
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.Use(h.LogRequests)
	r.HandleFunc("/healthz", h.Health).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(h.RateLimit, h.Authenticate)

	admin := func(fn http.HandlerFunc) http.Handler { return h.RequireAdmin(fn) }

	// Orders
	api.HandleFunc("/orders", h.CreateOrder).Methods(http.MethodPost)
	api.Handle("/orders", admin(h.ListOrders)).Methods(http.MethodGet)
	api.HandleFunc("/orders/currentUser", h.ListCurrentUserOrders).Methods(http.MethodGet)
	api.Handle("/orders/userById/{id}", admin(h.ListOrdersByUser)).Methods(http.MethodGet)
	api.Handle("/orders/order/{id}", admin(h.GetOrder)).Methods(http.MethodGet)
	api.Handle("/orders/{id}", admin(h.UpdateOrderStatus)).Methods(http.MethodPut)
	api.Handle("/orders/{id}", admin(h.DeleteOrder)).Methods(http.MethodDelete)

	// Products
	api.HandleFunc("/products", h.ListProducts).Methods(http.MethodGet)
	api.HandleFunc("/products/{id}", h.GetProduct).Methods(http.MethodGet)
	api.Handle("/products", admin(h.CreateProduct)).Methods(http.MethodPost)
	api.Handle("/products/{id}", admin(h.UpdateProduct)).Methods(http.MethodPut)
	api.Handle("/products/{id}", admin(h.DeleteProduct)).Methods(http.MethodDelete)
}

// --- request shapes ---
type createOrderReq struct {
	Products []models.OrderRequestItem `json:"products"`
}

type updateStatusReq struct {
	Status string `json:"status"`
}

type createProductReq struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Price       json.RawMessage `json:"price"`
	Count       int             `json:"count"`
}

// --- helpers ---
func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, err error) {
	e := apperr.From(err)
	writeJSON(w, apperr.HTTPStatus(e.Kind), result.Fail[any](e))
}

func decode(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return apperr.Invalid("Invalid request body", err.Error())
	}
	return nil
}

func pathID(r *http.Request, message string) (int64, error) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id < 1 {
		return 0, apperr.Invalid(message, "Id must be a positive integer")
	}
	return id, nil
}

func pageQuery(r *http.Request) (service.PageQuery, error) {
	q := service.PageQuery{Page: service.DefaultPage, Limit: service.DefaultLimit}
	params := []struct {
		name string
		dst  *int
	}{
		{"page", &q.Page},
		{"limit", &q.Limit},
	}
	for _, p := range params {
		raw := r.URL.Query().Get(p.name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			return q, apperr.Invalid("Invalid pagination parameters", p.name+" must be an integer")
		}
		*p.dst = n
	}
	return q, nil
}

// --- Handler ---

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// CreateOrder handles POST /api/orders
// body: { "products": [ { "id": "...", "count_products": 2 } ] }
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderReq
	if err := decode(r, &req); err != nil {
		writeErr(w, err)
		return
	}
	user := mustUser(r)
	if _, err := h.orders.CreateOrder(r.Context(), user.ID, req.Products); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, result.OK[models.Order]("Order created successfully", nil))
}

// ListOrders handles GET /api/orders?page=&limit=
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	q, err := pageQuery(r)
	if err != nil {
		writeErr(w, err)
		return
	}
	orders, page, err := h.orders.ListOrders(r.Context(), q)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result.Page("The list was loaded successfully", orders, page))
}

// ListCurrentUserOrders handles GET /api/orders/currentUser
func (h *Handler) ListCurrentUserOrders(w http.ResponseWriter, r *http.Request) {
	q, err := pageQuery(r)
	if err != nil {
		writeErr(w, err)
		return
	}
	orders, page, err := h.orders.ListOrdersByUser(r.Context(), q, mustUser(r).ID)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result.Page("The list was loaded successfully", orders, page))
}

// ListOrdersByUser handles GET /api/orders/userById/{id}
func (h *Handler) ListOrdersByUser(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "Could not get orders due to some invalid parameters")
	if err != nil {
		writeErr(w, err)
		return
	}
	q, err := pageQuery(r)
	if err != nil {
		writeErr(w, err)
		return
	}
	orders, page, err := h.orders.ListOrdersByUser(r.Context(), q, userID)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result.Page("Orders retrieved successfully", orders, page))
}

// GetOrder handles GET /api/orders/order/{id}
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "Could not get order due to some invalid parameters")
	if err != nil {
		writeErr(w, err)
		return
	}
	order, err := h.orders.GetOrder(r.Context(), id)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result.OK("Order retrieved successfully", order))
}

// UpdateOrderStatus handles PUT /api/orders/{id}
// body: { "status": "In Progress" }
func (h *Handler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "Could not update order due to some invalid parameters")
	if err != nil {
		writeErr(w, err)
		return
	}
	var req updateStatusReq
	if err := decode(r, &req); err != nil {
		writeErr(w, err)
		return
	}
	if err := h.orders.UpdateOrderStatus(r.Context(), id, req.Status); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result.OK[models.Order]("Order updated successfully", nil))
}

// DeleteOrder handles DELETE /api/orders/{id}
func (h *Handler) DeleteOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "Could not delete order due to some invalid parameters")
	if err != nil {
		writeErr(w, err)
		return
	}
	if err := h.orders.DeleteOrder(r.Context(), id); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result.OK[models.Order]("Order deleted successfully", nil))
}

// ListProducts handles GET /api/products?page=&limit=
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	q, err := pageQuery(r)
	if err != nil {
		writeErr(w, err)
		return
	}
	products, page, err := h.products.ListProducts(r.Context(), q)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result.Page("The list was loaded successfully", products, page))
}

// GetProduct handles GET /api/products/{id}
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.products.GetProduct(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result.OK("Product retrieved successfully", p))
}

// CreateProduct handles POST /api/products
// body: { "name": "...", "description": "...", "price": 10.5, "count": 3 }
func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req createProductReq
	if err := decode(r, &req); err != nil {
		writeErr(w, err)
		return
	}
	in := models.Product{Name: req.Name, Description: req.Description, Count: req.Count}
	if len(req.Price) > 0 {
		if err := in.Price.UnmarshalJSON(req.Price); err != nil {
			writeErr(w, apperr.Invalid("Could not create product due to some invalid parameters", "Price must be a number"))
			return
		}
	}
	p, err := h.products.CreateProduct(r.Context(), in)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, result.OK("Product created successfully", p))
}

// UpdateProduct handles PUT /api/products/{id}
func (h *Handler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	var patch models.ProductPatch
	if err := decode(r, &patch); err != nil {
		writeErr(w, err)
		return
	}
	p, err := h.products.UpdateProduct(r.Context(), mux.Vars(r)["id"], patch)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result.OK("Product updated successfully", p))
}

// DeleteProduct handles DELETE /api/products/{id}
func (h *Handler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := h.products.DeleteProduct(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result.OK[models.Product]("Product deleted successfully", nil))
}
