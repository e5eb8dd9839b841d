package repository

import (
	"context"
	"sort"
	"sync"

	"grocery-delivery/internal/domain"
)

type MemorySubscriptionStore struct {
	mu    sync.RWMutex
	seq   int
	byEP  map[string]domain.PushSubscription
	order map[string]int
}

func NewMemorySubscriptionStore() *MemorySubscriptionStore {
	return &MemorySubscriptionStore{
		byEP:  make(map[string]domain.PushSubscription),
		order: make(map[string]int),
	}
}

func (m *MemorySubscriptionStore) Save(_ context.Context, sub domain.PushSubscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byEP[sub.Endpoint]; !ok {
		m.seq++
		m.order[sub.Endpoint] = m.seq
	}
	m.byEP[sub.Endpoint] = sub
	return nil
}

func (m *MemorySubscriptionStore) ForUser(_ context.Context, userID string) ([]domain.PushSubscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []domain.PushSubscription
	for _, s := range m.byEP {
		if s.UserID == userID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return m.order[out[i].Endpoint] < m.order[out[j].Endpoint] })
	return out, nil
}

func (m *MemorySubscriptionStore) Delete(_ context.Context, endpoint string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.byEP, endpoint)
	delete(m.order, endpoint)
	return nil
}
