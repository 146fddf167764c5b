package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/phenrril/attarstore/internal/domain"
)

const cartSaveTimeout = 10 * time.Second

// CartStore is the session cart. Mutations apply in memory first; the
// resulting snapshot is then saved in the background, newest snapshot wins.
// A failed save is logged and the in-memory cart stays authoritative.
type CartStore struct {
	notifier

	sessionID string
	persist   domain.CartPersistence
	now       func() time.Time

	mu    sync.RWMutex
	items []domain.CartLineItem

	qmu     sync.Mutex
	closed  bool
	pending chan domain.CartSnapshot
	stopped chan struct{}
}

// NewCartStore starts a cart for sessionID (a new uuid when empty). persist
// may be nil for a cart that is never saved. The saver goroutine starts with
// the first mutation.
func NewCartStore(persist domain.CartPersistence, sessionID string) *CartStore {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	return &CartStore{
		sessionID: sessionID,
		persist:   persist,
		now:       time.Now,
		stopped:   make(chan struct{}),
	}
}

func (s *CartStore) SessionID() string { return s.sessionID }

// Restore loads the saved cart once at session start.
func (s *CartStore) Restore(ctx context.Context) error {
	if s.persist == nil {
		return nil
	}
	snap, err := s.persist.Load(ctx, s.sessionID)
	if errors.Is(err, domain.ErrCartEmpty) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("restore cart %s: %w", s.sessionID, err)
	}
	if snap == nil {
		return nil
	}

	items := make([]domain.CartLineItem, 0, len(snap.Items))
	pos := map[string]int{}
	for _, it := range snap.Items {
		if it.Quantity < 1 || it.VariantID == "" {
			continue
		}
		if i, ok := pos[it.VariantID]; ok {
			items[i].Quantity += it.Quantity
			continue
		}
		pos[it.VariantID] = len(items)
		items = append(items, it)
	}
	s.mu.Lock()
	s.items = items
	s.mu.Unlock()
	s.notify()
	return nil
}

func (s *CartStore) AddItem(p domain.Product, quantity int) error {
	if quantity < 1 {
		return fmt.Errorf("add %s: %w", p.VariantID, domain.ErrInvalidQuantity)
	}
	variant := p.VariantID
	if variant == "" {
		variant = p.ID
	}
	s.mutate(func(items []domain.CartLineItem) []domain.CartLineItem {
		if i := indexOf(items, variant); i >= 0 {
			items[i].Quantity += quantity
			return items
		}
		return append(items, domain.CartLineItem{
			ProductID: p.ID,
			VariantID: variant,
			Name:      p.Name,
			Price:     p.Price,
			UnitPrice: p.UnitPrice,
			Image:     p.Image(),
			Quantity:  quantity,
		})
	})
	return nil
}

// SetQuantity sets the quantity of a line; zero removes it.
func (s *CartStore) SetQuantity(variantID string, quantity int) error {
	if quantity < 0 {
		return fmt.Errorf("set %s: %w", variantID, domain.ErrInvalidQuantity)
	}
	var err error
	s.mutate(func(items []domain.CartLineItem) []domain.CartLineItem {
		i := indexOf(items, variantID)
		if i < 0 {
			err = fmt.Errorf("cart item %s: %w", variantID, domain.ErrNotFound)
			return nil
		}
		if quantity == 0 {
			return append(items[:i], items[i+1:]...)
		}
		items[i].Quantity = quantity
		return items
	})
	return err
}

// RemoveItem is a no-op for a variant that is not in the cart.
func (s *CartStore) RemoveItem(variantID string) {
	s.mutate(func(items []domain.CartLineItem) []domain.CartLineItem {
		i := indexOf(items, variantID)
		if i < 0 {
			return nil
		}
		return append(items[:i], items[i+1:]...)
	})
}

func (s *CartStore) Clear() {
	s.mutate(func(items []domain.CartLineItem) []domain.CartLineItem {
		return []domain.CartLineItem{}
	})
}

func (s *CartStore) Items() []domain.CartLineItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.CartLineItem, len(s.items))
	copy(out, s.items)
	return out
}

func (s *CartStore) TotalItems() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, it := range s.items {
		n += it.Quantity
	}
	return n
}

// TotalPrice uses the unit prices captured when each item was added.
func (s *CartStore) TotalPrice() decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	total := decimal.Zero
	for _, it := range s.items {
		total = total.Add(it.Subtotal())
	}
	return total
}

func (s *CartStore) Snapshot() domain.CartSnapshot {
	return domain.CartSnapshot{SessionID: s.sessionID, Items: s.Items(), UpdatedAt: s.now().UTC()}
}

// Close flushes the last pending save and stops the saver.
func (s *CartStore) Close(ctx context.Context) error {
	s.qmu.Lock()
	if !s.closed {
		s.closed = true
		if s.pending != nil {
			close(s.pending)
		} else {
			close(s.stopped)
		}
	}
	s.qmu.Unlock()
	select {
	case <-s.stopped:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// mutate applies fn to a working copy of the items. A nil result means
// nothing changed. Snapshots are queued under mu so saves keep mutation order.
func (s *CartStore) mutate(fn func([]domain.CartLineItem) []domain.CartLineItem) {
	s.mu.Lock()
	work := make([]domain.CartLineItem, len(s.items))
	copy(work, s.items)
	next := fn(work)
	if next == nil {
		s.mu.Unlock()
		return
	}
	s.items = next
	snap := domain.CartSnapshot{SessionID: s.sessionID, UpdatedAt: s.now().UTC()}
	snap.Items = make([]domain.CartLineItem, len(next))
	copy(snap.Items, next)
	s.enqueue(snap)
	s.mu.Unlock()

	s.notify()
}

func (s *CartStore) enqueue(snap domain.CartSnapshot) {
	if s.persist == nil {
		return
	}
	s.qmu.Lock()
	defer s.qmu.Unlock()
	if s.closed {
		return
	}
	if s.pending == nil {
		s.pending = make(chan domain.CartSnapshot, 1)
		go s.saver(s.pending)
	}
	select {
	case <-s.pending:
	default:
	}
	s.pending <- snap
}

func (s *CartStore) saver(pending <-chan domain.CartSnapshot) {
	defer close(s.stopped)
	for snap := range pending {
		ctx, cancel := context.WithTimeout(context.Background(), cartSaveTimeout)
		if err := s.persist.Save(ctx, snap); err != nil {
			log.Warn().Err(err).Str("session_id", snap.SessionID).Int("items", len(snap.Items)).Msg("cart save failed")
		}
		cancel()
	}
}

func indexOf(items []domain.CartLineItem, variantID string) int {
	for i, it := range items {
		if it.VariantID == variantID {
			return i
		}
	}
	return -1
}
