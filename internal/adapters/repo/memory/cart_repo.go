package memory

import (
	"context"
	"sync"

	"github.com/phenrril/attarstore/internal/domain"
)

// CartRepo keeps carts for the life of the process.
type CartRepo struct {
	mu    sync.RWMutex
	carts map[string]domain.CartSnapshot
}

func NewCartRepo() *CartRepo { return &CartRepo{carts: map[string]domain.CartSnapshot{}} }

var _ domain.CartPersistence = (*CartRepo)(nil)

func (r *CartRepo) Save(_ context.Context, snap domain.CartSnapshot) error {
	items := make([]domain.CartLineItem, len(snap.Items))
	copy(items, snap.Items)
	snap.Items = items
	r.mu.Lock()
	r.carts[snap.SessionID] = snap
	r.mu.Unlock()
	return nil
}

func (r *CartRepo) Load(_ context.Context, sessionID string) (*domain.CartSnapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	snap, ok := r.carts[sessionID]
	if !ok {
		return nil, domain.ErrCartEmpty
	}
	items := make([]domain.CartLineItem, len(snap.Items))
	copy(items, snap.Items)
	snap.Items = items
	return &snap, nil
}
