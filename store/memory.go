package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	models "commerce-api/model"
)

type memState struct {
	products  map[string]models.Product
	orders    map[int64]models.Order
	users     map[int64]models.User
	nextOrder int64
	nextUser  int64
}

func newMemState() *memState {
	return &memState{
		products: map[string]models.Product{},
		orders:   map[int64]models.Order{},
		users:    map[int64]models.User{},
	}
}

func (st *memState) clone() *memState {
	c := &memState{
		products:  make(map[string]models.Product, len(st.products)),
		orders:    make(map[int64]models.Order, len(st.orders)),
		users:     make(map[int64]models.User, len(st.users)),
		nextOrder: st.nextOrder,
		nextUser:  st.nextUser,
	}
	for k, v := range st.products {
		c.products[k] = v
	}
	for k, v := range st.orders {
		v.Items = append([]models.LineItem(nil), v.Items...)
		c.orders[k] = v
	}
	for k, v := range st.users {
		c.users[k] = v
	}
	return c
}

// MemoryStore keeps everything in process memory. Transactions are
// serialized and run against a copy of the data that replaces the live data
// only when the callback succeeds.
type MemoryStore struct {
	mu    *sync.Mutex
	state *memState
	inTx  bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{mu: &sync.Mutex{}, state: newMemState()}
}

func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) lock() func() {
	if s.inTx {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (s *MemoryStore) InTx(ctx context.Context, fn func(tx Store) error) error {
	if s.inTx {
		return fn(s)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &MemoryStore{mu: s.mu, state: s.state.clone(), inTx: true}
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.state = tx.state
	return nil
}

// --- products ---

func (s *MemoryStore) GetProduct(_ context.Context, id string) (*models.Product, error) {
	defer s.lock()()
	p, ok := s.state.products[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

func (s *MemoryStore) GetProductByName(_ context.Context, name string) (*models.Product, error) {
	defer s.lock()()
	for _, p := range s.state.products {
		if p.Name == name {
			return &p, nil
		}
	}
	return nil, ErrNotFound
}

// LockProducts is a no-op: transactions already hold the store lock.
func (s *MemoryStore) LockProducts(context.Context, []string) error { return nil }

func (s *MemoryStore) CreateProduct(_ context.Context, p *models.Product) error {
	defer s.lock()()
	if _, ok := s.state.products[p.ID]; ok {
		return ErrDuplicate
	}
	if s.nameTaken(p.Name, p.ID) {
		return ErrDuplicate
	}
	s.state.products[p.ID] = *p
	return nil
}

func (s *MemoryStore) nameTaken(name, exceptID string) bool {
	for id, other := range s.state.products {
		if id != exceptID && other.Name == name {
			return true
		}
	}
	return false
}

func (s *MemoryStore) UpdateProduct(_ context.Context, p *models.Product) error {
	defer s.lock()()
	if _, ok := s.state.products[p.ID]; !ok {
		return ErrNotFound
	}
	if s.nameTaken(p.Name, p.ID) {
		return ErrDuplicate
	}
	s.state.products[p.ID] = *p
	return nil
}

func (s *MemoryStore) UpdateStock(_ context.Context, id string, count int) error {
	if count < 0 {
		return fmt.Errorf("stock cannot be negative: %d", count)
	}
	defer s.lock()()
	p, ok := s.state.products[id]
	if !ok {
		return ErrNotFound
	}
	p.Count = count
	p.UpdatedAt = time.Now()
	s.state.products[id] = p
	return nil
}

func (s *MemoryStore) UpdateAvailability(_ context.Context, id string, a models.Availability) error {
	defer s.lock()()
	p, ok := s.state.products[id]
	if !ok {
		return ErrNotFound
	}
	p.Availability = a
	p.UpdatedAt = time.Now()
	s.state.products[id] = p
	return nil
}

// DeleteProduct removes the product and clears the reference held by line
// items, mirroring ON DELETE SET NULL.
func (s *MemoryStore) DeleteProduct(_ context.Context, id string) error {
	defer s.lock()()
	if _, ok := s.state.products[id]; !ok {
		return ErrNotFound
	}
	delete(s.state.products, id)
	for oid, o := range s.state.orders {
		for i := range o.Items {
			if o.Items[i].ProductID == id {
				o.Items[i].ProductID = ""
			}
		}
		s.state.orders[oid] = o
	}
	return nil
}

func (s *MemoryStore) ListProducts(_ context.Context, skip, take int) ([]models.Product, error) {
	defer s.lock()()
	all := make([]models.Product, 0, len(s.state.products))
	for _, p := range s.state.products {
		all = append(all, p)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID < all[j].ID
		}
		return all[i].CreatedAt.Before(all[j].CreatedAt)
	})
	return window(all, skip, take), nil
}

func (s *MemoryStore) CountProducts(context.Context) (int, error) {
	defer s.lock()()
	return len(s.state.products), nil
}

func (s *MemoryStore) LineItemsByProduct(_ context.Context, productID string) ([]models.LineItem, error) {
	defer s.lock()()
	out := []models.LineItem{}
	for _, o := range s.sortedOrders() {
		for _, li := range o.Items {
			if li.ProductID == productID {
				li.Product = nil
				out = append(out, li)
			}
		}
	}
	return out, nil
}

// --- orders ---

func (s *MemoryStore) CreateOrder(_ context.Context, o *models.Order) error {
	defer s.lock()()
	if _, ok := s.state.users[o.UserID]; !ok {
		return fmt.Errorf("%w: user %d", ErrMissingReference, o.UserID)
	}
	s.state.nextOrder++
	o.ID = s.state.nextOrder
	items := make([]models.LineItem, len(o.Items))
	for i := range o.Items {
		o.Items[i].OrderID = o.ID
		items[i] = o.Items[i]
		items[i].Product = nil
	}
	stored := *o
	stored.Items = items
	s.state.orders[o.ID] = stored
	return nil
}

// withProducts returns a copy of o whose line items point at current products.
func (s *MemoryStore) withProducts(o models.Order) models.Order {
	items := make([]models.LineItem, len(o.Items))
	for i, li := range o.Items {
		if p, ok := s.state.products[li.ProductID]; ok && li.ProductID != "" {
			li.Product = &p
		}
		items[i] = li
	}
	o.Items = items
	return o
}

func (s *MemoryStore) GetOrder(_ context.Context, id int64) (*models.Order, error) {
	defer s.lock()()
	o, ok := s.state.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	o = s.withProducts(o)
	return &o, nil
}

func (s *MemoryStore) sortedOrders() []models.Order {
	all := make([]models.Order, 0, len(s.state.orders))
	for _, o := range s.state.orders {
		all = append(all, o)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	return all
}

func (s *MemoryStore) ListOrders(_ context.Context, skip, take int) ([]models.Order, error) {
	defer s.lock()()
	page := window(s.sortedOrders(), skip, take)
	for i := range page {
		page[i] = s.withProducts(page[i])
	}
	return page, nil
}

func (s *MemoryStore) ListOrdersByUser(_ context.Context, skip, take int, userID int64) ([]models.Order, error) {
	defer s.lock()()
	var mine []models.Order
	for _, o := range s.sortedOrders() {
		if o.UserID == userID {
			mine = append(mine, o)
		}
	}
	page := window(mine, skip, take)
	for i := range page {
		page[i] = s.withProducts(page[i])
	}
	return page, nil
}

func (s *MemoryStore) CountOrders(context.Context) (int, error) {
	defer s.lock()()
	return len(s.state.orders), nil
}

func (s *MemoryStore) CountOrdersByUser(_ context.Context, userID int64) (int, error) {
	defer s.lock()()
	n := 0
	for _, o := range s.state.orders {
		if o.UserID == userID {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) UpdateOrderStatus(_ context.Context, id int64, status models.OrderStatus, updatedAt time.Time) error {
	defer s.lock()()
	o, ok := s.state.orders[id]
	if !ok {
		return ErrNotFound
	}
	o.Status = status
	o.UpdatedAt = updatedAt
	s.state.orders[id] = o
	return nil
}

func (s *MemoryStore) DeleteOrder(_ context.Context, id int64) error {
	defer s.lock()()
	if _, ok := s.state.orders[id]; !ok {
		return ErrNotFound
	}
	delete(s.state.orders, id)
	return nil
}

// --- users ---

func (s *MemoryStore) GetUser(_ context.Context, id int64) (*models.User, error) {
	defer s.lock()()
	u, ok := s.state.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

func (s *MemoryStore) CreateUser(_ context.Context, u *models.User) error {
	defer s.lock()()
	for _, other := range s.state.users {
		if other.Email == u.Email {
			return ErrDuplicate
		}
	}
	s.state.nextUser++
	u.ID = s.state.nextUser
	s.state.users[u.ID] = *u
	return nil
}

// window returns items[skip:skip+take], clamped to the slice.
func window[T any](items []T, skip, take int) []T {
	if skip < 0 {
		skip = 0
	}
	if skip >= len(items) {
		return []T{}
	}
	end := len(items)
	if take >= 0 && skip+take < end {
		end = skip + take
	}
	out := make([]T, end-skip)
	copy(out, items[skip:end])
	return out
}
