package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/phenrril/attarstore/internal/domain"
)

type session struct {
	cart *CartStore
	seen time.Time
}

// Sessions hands out one CartStore per session id. A cart is restored from
// persistence the first time its session is seen; idle carts are flushed and
// dropped by Sweep.
type Sessions struct {
	persist domain.CartPersistence
	now     func() time.Time
	restore singleflight.Group

	mu    sync.Mutex
	carts map[string]*session
}

func NewSessions(persist domain.CartPersistence) *Sessions {
	return &Sessions{persist: persist, now: time.Now, carts: map[string]*session{}}
}

// Cart returns the cart for sessionID, starting a new session when the id is
// empty. Restoring runs outside the registry lock, once per id.
func (s *Sessions) Cart(ctx context.Context, sessionID string) *CartStore {
	if sessionID == "" {
		c := NewCartStore(s.persist, "")
		s.mu.Lock()
		s.carts[c.SessionID()] = &session{cart: c, seen: s.now()}
		s.mu.Unlock()
		return c
	}
	if c := s.lookup(sessionID); c != nil {
		return c
	}

	v, _, _ := s.restore.Do(sessionID, func() (any, error) {
		if c := s.lookup(sessionID); c != nil {
			return c, nil
		}
		c := NewCartStore(s.persist, sessionID)
		if err := c.Restore(ctx); err != nil {
			log.Warn().Err(err).Str("session_id", sessionID).Msg("cart restore failed, starting empty")
		}
		s.mu.Lock()
		s.carts[sessionID] = &session{cart: c, seen: s.now()}
		s.mu.Unlock()
		return c, nil
	})
	return v.(*CartStore)
}

func (s *Sessions) lookup(sessionID string) *CartStore {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.carts[sessionID]; ok {
		e.seen = s.now()
		return e.cart
	}
	return nil
}

// End closes and forgets a session's cart.
func (s *Sessions) End(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	e, ok := s.carts[sessionID]
	delete(s.carts, sessionID)
	s.mu.Unlock()
	if !ok {
		return nil
	}
	return e.cart.Close(ctx)
}

func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.carts)
}

// Sweep flushes and drops carts not touched for longer than idle. A dropped
// session is restored from persistence when it comes back.
func (s *Sessions) Sweep(ctx context.Context, idle time.Duration) (int, error) {
	cutoff := s.now().Add(-idle)
	s.mu.Lock()
	var stale []*CartStore
	for id, e := range s.carts {
		if e.seen.Before(cutoff) {
			stale = append(stale, e.cart)
			delete(s.carts, id)
		}
	}
	s.mu.Unlock()
	return len(stale), closeAll(ctx, stale)
}

// Run sweeps every interval until ctx is done.
func (s *Sessions) Run(ctx context.Context, interval, idle time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := s.Sweep(ctx, idle)
			if err != nil {
				log.Warn().Err(err).Msg("session sweep")
			}
			if n > 0 {
				log.Debug().Int("evicted", n).Int("open", s.Len()).Msg("session sweep")
			}
		}
	}
}

// Close flushes every open cart.
func (s *Sessions) Close(ctx context.Context) error {
	s.mu.Lock()
	carts := make([]*CartStore, 0, len(s.carts))
	for _, e := range s.carts {
		carts = append(carts, e.cart)
	}
	s.carts = map[string]*session{}
	s.mu.Unlock()
	return closeAll(ctx, carts)
}

func closeAll(ctx context.Context, carts []*CartStore) error {
	var errs []error
	for _, c := range carts {
		if err := c.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
