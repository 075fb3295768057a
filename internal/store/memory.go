package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"finmark/internal/models"
)

// MemoryStore keeps every table in process memory. It satisfies the same
// repository contracts as Store and backs tests and DB_DRIVER=memory.
type MemoryStore struct {
	mu sync.RWMutex

	users    map[string]*models.User
	products map[string]*models.Product
	orders   map[string]*models.Order
	events   map[string]string

	// insertion order, used for newest-first listings
	userSeq    []string
	productSeq []string
	orderSeq   []string
}

type memTxKey struct{}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:    make(map[string]*models.User),
		products: make(map[string]*models.Product),
		orders:   make(map[string]*models.Order),
		events:   make(map[string]string),
	}
}

func inMemTx(ctx context.Context) bool {
	b, _ := ctx.Value(memTxKey{}).(bool)
	return b
}

func (m *MemoryStore) rlock(ctx context.Context) {
	if !inMemTx(ctx) {
		m.mu.RLock()
	}
}

func (m *MemoryStore) runlock(ctx context.Context) {
	if !inMemTx(ctx) {
		m.mu.RUnlock()
	}
}

func (m *MemoryStore) wlock(ctx context.Context) {
	if !inMemTx(ctx) {
		m.mu.Lock()
	}
}

func (m *MemoryStore) wunlock(ctx context.Context) {
	if !inMemTx(ctx) {
		m.mu.Unlock()
	}
}

// Ping always succeeds
func (m *MemoryStore) Ping(ctx context.Context) error { return nil }

// WithTransaction holds the write lock for the whole of fn and restores the
// previous state when fn fails.
func (m *MemoryStore) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if inMemTx(ctx) {
		return fn(ctx)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	snap := m.snapshot()
	if err := fn(context.WithValue(ctx, memTxKey{}, true)); err != nil {
		m.restore(snap)
		return err
	}
	return nil
}

type memSnapshot struct {
	users      map[string]*models.User
	products   map[string]*models.Product
	orders     map[string]*models.Order
	events     map[string]string
	userSeq    []string
	productSeq []string
	orderSeq   []string
}

// Stored records are replaced, never mutated in place, so copying the maps is enough.
func (m *MemoryStore) snapshot() memSnapshot {
	s := memSnapshot{
		users:      make(map[string]*models.User, len(m.users)),
		products:   make(map[string]*models.Product, len(m.products)),
		orders:     make(map[string]*models.Order, len(m.orders)),
		events:     make(map[string]string, len(m.events)),
		userSeq:    append([]string(nil), m.userSeq...),
		productSeq: append([]string(nil), m.productSeq...),
		orderSeq:   append([]string(nil), m.orderSeq...),
	}
	for k, v := range m.users {
		s.users[k] = v
	}
	for k, v := range m.products {
		s.products[k] = v
	}
	for k, v := range m.orders {
		s.orders[k] = v
	}
	for k, v := range m.events {
		s.events[k] = v
	}
	return s
}

func (m *MemoryStore) restore(s memSnapshot) {
	m.users = s.users
	m.products = s.products
	m.orders = s.orders
	m.events = s.events
	m.userSeq = s.userSeq
	m.productSeq = s.productSeq
	m.orderSeq = s.orderSeq
}

func cloneUser(u *models.User) *models.User {
	cp := *u
	cp.ShippingAddresses = append(models.ShippingAddresses(nil), u.ShippingAddresses...)
	if u.LastLogin != nil {
		t := *u.LastLogin
		cp.LastLogin = &t
	}
	return &cp
}

func cloneProduct(p *models.Product) *models.Product {
	cp := *p
	cp.Images = append(models.StringList(nil), p.Images...)
	if p.Specifications != nil {
		cp.Specifications = make(models.StringMap, len(p.Specifications))
		for k, v := range p.Specifications {
			cp.Specifications[k] = v
		}
	}
	return &cp
}

func cloneOrder(o *models.Order) *models.Order {
	cp := *o
	cp.Items = append(models.OrderItems(nil), o.Items...)
	if o.EstimatedDelivery != nil {
		t := *o.EstimatedDelivery
		cp.EstimatedDelivery = &t
	}
	if o.ActualDelivery != nil {
		t := *o.ActualDelivery
		cp.ActualDelivery = &t
	}
	return &cp
}

func page(n, offset, limit int) (int, int) {
	if offset < 0 {
		offset = 0
	}
	if offset > n {
		offset = n
	}
	end := n
	if limit > 0 && offset+limit < n {
		end = offset + limit
	}
	return offset, end
}

// Users

func (m *MemoryStore) CreateUser(ctx context.Context, user *models.User) error {
	m.wlock(ctx)
	defer m.wunlock(ctx)

	for _, u := range m.users {
		if u.Email == user.Email {
			return fmt.Errorf("%w: users_email_key", ErrDuplicate)
		}
	}
	now := time.Now()
	user.CreatedAt, user.UpdatedAt = now, now
	m.users[user.ID] = cloneUser(user)
	m.userSeq = append(m.userSeq, user.ID)
	return nil
}

func (m *MemoryStore) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	m.rlock(ctx)
	defer m.runlock(ctx)

	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneUser(u), nil
}

// GetUserForUpdate is GetUserByID; the transaction already holds the write lock.
func (m *MemoryStore) GetUserForUpdate(ctx context.Context, id string) (*models.User, error) {
	return m.GetUserByID(ctx, id)
}

func (m *MemoryStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	m.rlock(ctx)
	defer m.runlock(ctx)

	for _, u := range m.users {
		if u.Email == email {
			return cloneUser(u), nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) UpdateUser(ctx context.Context, user *models.User) error {
	m.wlock(ctx)
	defer m.wunlock(ctx)

	cur, ok := m.users[user.ID]
	if !ok {
		return ErrNotFound
	}
	for id, u := range m.users {
		if id != user.ID && u.Email == user.Email {
			return fmt.Errorf("%w: users_email_key", ErrDuplicate)
		}
	}
	user.CreatedAt = cur.CreatedAt
	user.LastLogin = cur.LastLogin
	user.UpdatedAt = time.Now()
	m.users[user.ID] = cloneUser(user)
	return nil
}

func (m *MemoryStore) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	m.wlock(ctx)
	defer m.wunlock(ctx)

	u, ok := m.users[id]
	if !ok {
		return ErrNotFound
	}
	cp := cloneUser(u)
	cp.LastLogin = &at
	m.users[id] = cp
	return nil
}

func (m *MemoryStore) ListUsers(ctx context.Context, offset, limit int) ([]models.User, int, error) {
	m.rlock(ctx)
	defer m.runlock(ctx)

	all := make([]models.User, 0, len(m.userSeq))
	for i := len(m.userSeq) - 1; i >= 0; i-- {
		all = append(all, *cloneUser(m.users[m.userSeq[i]]))
	}
	from, to := page(len(all), offset, limit)
	return all[from:to], len(all), nil
}

// Products

func (m *MemoryStore) CreateProduct(ctx context.Context, p *models.Product) error {
	m.wlock(ctx)
	defer m.wunlock(ctx)

	if _, ok := m.products[p.ProductID]; ok {
		return fmt.Errorf("%w: products_product_id_key", ErrDuplicate)
	}
	now := time.Now()
	p.CreatedAt, p.UpdatedAt = now, now
	m.products[p.ProductID] = cloneProduct(p)
	m.productSeq = append(m.productSeq, p.ProductID)
	return nil
}

func (m *MemoryStore) GetProduct(ctx context.Context, productID string) (*models.Product, error) {
	m.rlock(ctx)
	defer m.runlock(ctx)

	p, ok := m.products[productID]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneProduct(p), nil
}

// GetProductForUpdate is GetProduct; the transaction already holds the write lock.
func (m *MemoryStore) GetProductForUpdate(ctx context.Context, productID string) (*models.Product, error) {
	return m.GetProduct(ctx, productID)
}

func (m *MemoryStore) GetProductsByIDs(ctx context.Context, ids []string) ([]models.Product, error) {
	m.rlock(ctx)
	defer m.runlock(ctx)

	out := []models.Product{}
	for _, id := range ids {
		if p, ok := m.products[id]; ok {
			out = append(out, *cloneProduct(p))
		}
	}
	return out, nil
}

func (m *MemoryStore) UpdateProduct(ctx context.Context, p *models.Product) error {
	m.wlock(ctx)
	defer m.wunlock(ctx)

	cur, ok := m.products[p.ProductID]
	if !ok {
		return ErrNotFound
	}
	p.ID = cur.ID
	p.CreatedAt = cur.CreatedAt
	p.UpdatedAt = time.Now()
	m.products[p.ProductID] = cloneProduct(p)
	return nil
}

func (m *MemoryStore) AdjustStock(ctx context.Context, productID string, delta int) (int, error) {
	m.wlock(ctx)
	defer m.wunlock(ctx)

	cur, ok := m.products[productID]
	if !ok {
		return 0, ErrNotFound
	}
	if cur.StockQuantity+delta < 0 {
		return 0, fmt.Errorf("%w: %s", ErrInsufficientStock, productID)
	}
	cp := cloneProduct(cur)
	cp.StockQuantity += delta
	cp.UpdatedAt = time.Now()
	m.products[productID] = cp
	return cp.StockQuantity, nil
}

func matchesProduct(p *models.Product, f models.ProductFilter) bool {
	if !p.IsActive {
		return false
	}
	if f.Category != "" && p.Category != f.Category {
		return false
	}
	if f.InStock && p.StockQuantity <= 0 {
		return false
	}
	if f.Search != "" {
		q := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(p.Name), q) &&
			!strings.Contains(strings.ToLower(p.Description), q) &&
			!strings.Contains(strings.ToLower(p.ProductID), q) {
			return false
		}
	}
	return true
}

func (m *MemoryStore) ListProducts(ctx context.Context, f models.ProductFilter) ([]models.Product, int, error) {
	m.rlock(ctx)
	defer m.runlock(ctx)

	all := []models.Product{}
	for i := len(m.productSeq) - 1; i >= 0; i-- {
		p := m.products[m.productSeq[i]]
		if matchesProduct(p, f) {
			all = append(all, *cloneProduct(p))
		}
	}
	from, to := page(len(all), f.Offset, f.Limit)
	return all[from:to], len(all), nil
}

func (m *MemoryStore) LowStockProducts(ctx context.Context) ([]models.Product, error) {
	m.rlock(ctx)
	defer m.runlock(ctx)

	out := []models.Product{}
	for _, p := range m.products {
		if p.IsActive && p.LowStock() {
			out = append(out, *cloneProduct(p))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StockQuantity != out[j].StockQuantity {
			return out[i].StockQuantity < out[j].StockQuantity
		}
		return out[i].ProductID < out[j].ProductID
	})
	return out, nil
}

func (m *MemoryStore) CountProducts(ctx context.Context) (int, error) {
	m.rlock(ctx)
	defer m.runlock(ctx)

	n := 0
	for _, p := range m.products {
		if p.IsActive {
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) Categories(ctx context.Context) ([]string, error) {
	m.rlock(ctx)
	defer m.runlock(ctx)

	seen := map[string]bool{}
	out := []string{}
	for _, p := range m.products {
		if p.IsActive && !seen[p.Category] {
			seen[p.Category] = true
			out = append(out, p.Category)
		}
	}
	sort.Strings(out)
	return out, nil
}

// Orders

func (m *MemoryStore) CreateOrder(ctx context.Context, order *models.Order) error {
	m.wlock(ctx)
	defer m.wunlock(ctx)

	for _, o := range m.orders {
		if o.OrderNumber == order.OrderNumber {
			return fmt.Errorf("%w: orders_order_number_key", ErrDuplicate)
		}
		if order.IdempotencyKey != "" && o.UserID == order.UserID && o.IdempotencyKey == order.IdempotencyKey {
			return fmt.Errorf("%w: orders_user_id_idempotency_key_key", ErrDuplicate)
		}
	}
	now := time.Now()
	order.CreatedAt, order.UpdatedAt = now, now
	m.orders[order.ID] = cloneOrder(order)
	m.orderSeq = append(m.orderSeq, order.ID)
	return nil
}

func (m *MemoryStore) GetOrderByID(ctx context.Context, id string) (*models.Order, error) {
	m.rlock(ctx)
	defer m.runlock(ctx)

	o, ok := m.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneOrder(o), nil
}

// GetOrderForUpdate is GetOrderByID; the transaction already holds the write lock.
func (m *MemoryStore) GetOrderForUpdate(ctx context.Context, id string) (*models.Order, error) {
	return m.GetOrderByID(ctx, id)
}

func (m *MemoryStore) GetOrderByIdempotencyKey(ctx context.Context, userID, key string) (*models.Order, error) {
	m.rlock(ctx)
	defer m.runlock(ctx)

	for _, o := range m.orders {
		if o.UserID == userID && o.IdempotencyKey == key {
			return cloneOrder(o), nil
		}
	}
	return nil, nil
}

func (m *MemoryStore) UpdateOrder(ctx context.Context, order *models.Order) error {
	m.wlock(ctx)
	defer m.wunlock(ctx)

	cur, ok := m.orders[order.ID]
	if !ok {
		return ErrNotFound
	}
	cp := cloneOrder(cur)
	cp.Status = order.Status
	cp.PaymentStatus = order.PaymentStatus
	cp.Notes = order.Notes
	cp.ActualDelivery = order.ActualDelivery
	cp.UpdatedAt = time.Now()
	order.UpdatedAt = cp.UpdatedAt
	m.orders[order.ID] = cp
	return nil
}

func (m *MemoryStore) ListOrders(ctx context.Context, f models.OrderFilter) ([]models.Order, int, error) {
	m.rlock(ctx)
	defer m.runlock(ctx)

	all := []models.Order{}
	for i := len(m.orderSeq) - 1; i >= 0; i-- {
		o := m.orders[m.orderSeq[i]]
		if f.UserID != "" && o.UserID != f.UserID {
			continue
		}
		if f.Status != "" && o.Status != f.Status {
			continue
		}
		all = append(all, *cloneOrder(o))
	}
	from, to := page(len(all), f.Offset, f.Limit)
	return all[from:to], len(all), nil
}

func (m *MemoryStore) OrderStats(ctx context.Context, from, to *time.Time) (*models.OrderStats, error) {
	m.rlock(ctx)
	defer m.runlock(ctx)

	stats := &models.OrderStats{}
	byStatus := map[string]int{}
	byPayment := map[string]int{}
	for _, o := range m.orders {
		if from != nil && o.CreatedAt.Before(*from) {
			continue
		}
		if to != nil && o.CreatedAt.After(*to) {
			continue
		}
		stats.TotalOrders++
		stats.TotalRevenue = stats.TotalRevenue.Add(o.OrderTotal)
		byStatus[string(o.Status)]++
		byPayment[string(o.PaymentStatus)]++
	}
	stats.StatusBreakdown = breakdown(byStatus)
	stats.PaymentBreakdown = breakdown(byPayment)
	return stats, nil
}

func breakdown(counts map[string]int) []models.StatusCount {
	out := make([]models.StatusCount, 0, len(counts))
	for k, n := range counts {
		out = append(out, models.StatusCount{Key: k, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Processed events

func (m *MemoryStore) IsEventProcessed(ctx context.Context, eventID string) (bool, error) {
	m.rlock(ctx)
	defer m.runlock(ctx)
	_, ok := m.events[eventID]
	return ok, nil
}

func (m *MemoryStore) MarkEventProcessed(ctx context.Context, eventID, eventType string) error {
	m.wlock(ctx)
	defer m.wunlock(ctx)
	m.events[eventID] = eventType
	return nil
}
