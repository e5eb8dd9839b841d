package registry

import (
	"context"
	"sort"
	"sync"

	"grocery-delivery/internal/metrics"
)

// Socket is one authenticated tracking connection.
type Socket interface {
	ID() string
	// Tracks reports whether updates for orderID should go to this socket. Sockets opened
	// without an order filter track every order of their user.
	Tracks(orderID int64) bool
	Send(ctx context.Context, msg []byte) error
	Close(code int, reason string) error
}

// Registry maps user ids to their live sockets. A user may hold several (tabs, devices).
type Registry struct {
	mu     sync.RWMutex
	byUser map[string]map[string]Socket
	count  int
}

func New() *Registry {
	return &Registry{byUser: make(map[string]map[string]Socket)}
}

// Register is idempotent per socket id.
func (r *Registry) Register(userID string, s Socket) {
	r.mu.Lock()
	defer r.mu.Unlock()
	conns, ok := r.byUser[userID]
	if !ok {
		conns = make(map[string]Socket)
		r.byUser[userID] = conns
	}
	if _, exists := conns[s.ID()]; exists {
		return
	}
	conns[s.ID()] = s
	r.count++
	metrics.LiveConnections.Inc()
}

// Unregister is a no-op for unknown sockets. Users with no sockets left are dropped.
func (r *Registry) Unregister(userID string, s Socket) {
	r.mu.Lock()
	defer r.mu.Unlock()
	conns, ok := r.byUser[userID]
	if !ok {
		return
	}
	if _, exists := conns[s.ID()]; !exists {
		return
	}
	delete(conns, s.ID())
	r.count--
	metrics.LiveConnections.Dec()
	if len(conns) == 0 {
		delete(r.byUser, userID)
	}
}

// LiveSocketsFor returns a snapshot; callers may send on it without holding the lock.
func (r *Registry) LiveSocketsFor(userID string) []Socket {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conns := r.byUser[userID]
	if len(conns) == 0 {
		return nil
	}
	out := make([]Socket, 0, len(conns))
	for _, s := range conns {
		out = append(out, s)
	}
	return out
}

func (r *Registry) Users() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.byUser))
	for u := range r.byUser {
		out = append(out, u)
	}
	sort.Strings(out)
	return out
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.count
}

// CloseAll closes every socket and empties the registry. Used on shutdown.
func (r *Registry) CloseAll(code int, reason string) {
	r.mu.Lock()
	all := r.byUser
	r.byUser = make(map[string]map[string]Socket)
	metrics.LiveConnections.Sub(float64(r.count))
	r.count = 0
	r.mu.Unlock()

	for _, conns := range all {
		for _, s := range conns {
			_ = s.Close(code, reason)
		}
	}
}
