package repository

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"grocery-delivery/internal/domain"
)

// MemoryOrderRepository backs tests and the memory dev store. Every read returns a copy.
type MemoryOrderRepository struct {
	mu       sync.RWMutex
	nextID   int64
	orders   map[int64]*domain.Order
	timeline map[int64][]domain.StatusEntry
	now      func() time.Time
}

func NewMemoryOrderRepository() *MemoryOrderRepository {
	return &MemoryOrderRepository{
		orders:   make(map[int64]*domain.Order),
		timeline: make(map[int64][]domain.StatusEntry),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Seed stores o as-is (including its ID); used to set up fixtures.
func (r *MemoryOrderRepository) Seed(o domain.Order) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if o.CreatedAt.IsZero() {
		o.CreatedAt = r.now()
	}
	if o.UpdatedAt.IsZero() {
		o.UpdatedAt = o.CreatedAt
	}
	if o.ID > r.nextID {
		r.nextID = o.ID
	}
	cp := copyOrder(o)
	r.orders[o.ID] = &cp
	r.timeline[o.ID] = append(r.timeline[o.ID], domain.StatusEntry{Status: o.Status, ChangedBy: o.OwnerUserID, ChangedAt: o.CreatedAt})
}

func (r *MemoryOrderRepository) CreateOrder(_ context.Context, o domain.Order) (domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	now := r.now()
	o.ID = r.nextID
	o.CreatedAt = now
	o.UpdatedAt = now
	cp := copyOrder(o)
	r.orders[o.ID] = &cp
	r.timeline[o.ID] = []domain.StatusEntry{{Status: o.Status, ChangedBy: o.OwnerUserID, ChangedAt: now}}
	return copyOrder(o), nil
}

func (r *MemoryOrderRepository) GetOrder(_ context.Context, id int64) (domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	o, ok := r.orders[id]
	if !ok {
		return domain.Order{}, domain.NotFoundError("order " + strconv.FormatInt(id, 10))
	}
	return copyOrder(*o), nil
}

func (r *MemoryOrderRepository) ListOrdersForUser(_ context.Context, userID string) ([]domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Order, 0)
	for _, o := range r.orders {
		if o.OwnerUserID == userID {
			out = append(out, copyOrder(*o))
		}
	}
	sortNewestFirst(out)
	return out, nil
}

func (r *MemoryOrderRepository) ListOrders(_ context.Context, limit, offset int) ([]domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	all := make([]domain.Order, 0, len(r.orders))
	for _, o := range r.orders {
		all = append(all, copyOrder(*o))
	}
	sortNewestFirst(all)
	if offset > len(all) {
		offset = len(all)
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

func (r *MemoryOrderRepository) UpdateStatusTx(_ context.Context, id int64, to domain.Status, changedBy string) (domain.Status, domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return "", domain.Order{}, domain.NotFoundError("order " + strconv.FormatInt(id, 10))
	}
	from := o.Status
	if !domain.CanTransition(from, to) {
		return from, domain.Order{}, &domain.InvalidTransitionError{From: from, To: to}
	}
	o.Status = to
	o.UpdatedAt = r.now()
	r.timeline[id] = append(r.timeline[id], domain.StatusEntry{Status: to, ChangedBy: changedBy, ChangedAt: o.UpdatedAt})
	return from, copyOrder(*o), nil
}

func (r *MemoryOrderRepository) GetTimeline(_ context.Context, id int64) ([]domain.StatusEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if _, ok := r.orders[id]; !ok {
		return nil, domain.NotFoundError("order " + strconv.FormatInt(id, 10))
	}
	return append([]domain.StatusEntry(nil), r.timeline[id]...), nil
}

func sortNewestFirst(orders []domain.Order) {
	sort.Slice(orders, func(i, j int) bool {
		if orders[i].CreatedAt.Equal(orders[j].CreatedAt) {
			return orders[i].ID > orders[j].ID
		}
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})
}

func copyOrder(o domain.Order) domain.Order {
	o.Items = append([]domain.OrderItem(nil), o.Items...)
	if o.Payment.ChangeFor != nil {
		v := *o.Payment.ChangeFor
		o.Payment.ChangeFor = &v
	}
	return o
}

// MemoryCatalog is a fixed product list.
type MemoryCatalog struct {
	mu       sync.RWMutex
	products map[int64]domain.Product
}

func NewMemoryCatalog(products ...domain.Product) *MemoryCatalog {
	c := &MemoryCatalog{products: make(map[int64]domain.Product)}
	for _, p := range products {
		c.products[p.ID] = p
	}
	return c
}

// SetPrice changes the current price; existing orders keep their snapshot.
func (c *MemoryCatalog) SetPrice(id, price int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p := c.products[id]
	p.Price = price
	c.products[id] = p
}

func (c *MemoryCatalog) Product(_ context.Context, id int64) (domain.Product, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.products[id]
	if !ok {
		return domain.Product{}, domain.NotFoundError("product " + strconv.FormatInt(id, 10))
	}
	return p, nil
}

func NewMemory(products ...domain.Product) *Repository {
	return &Repository{
		OrderRepo: NewMemoryOrderRepository(),
		Catalog:   NewMemoryCatalog(products...),
	}
}
