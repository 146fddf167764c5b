package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/phenrril/attarstore/internal/domain"
)

func strPtr(s string) *string { return &s }

func rawProduct(id any, name, kind, category string, price any) domain.RawProduct {
	r := domain.RawProduct{ProductID: id, ProductName: name, ProductType: kind, Price: price}
	if category != "" {
		r.Category = strPtr(category)
	}
	return r
}

// fakeAPI serves a fixed list of raw products.
type fakeAPI struct {
	mu       sync.Mutex
	products []domain.RawProduct
	listErr  error
	calls    int
}

func (f *fakeAPI) ListProducts(ctx context.Context) ([]domain.RawProduct, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]domain.RawProduct, len(f.products))
	copy(out, f.products)
	return out, nil
}

func (f *fakeAPI) GetProduct(ctx context.Context, id string) (*domain.RawProduct, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.products {
		if fmt.Sprint(f.products[i].ProductID) == id {
			p := f.products[i]
			return &p, nil
		}
	}
	return nil, fmt.Errorf("product %s: %w", id, domain.ErrNotFound)
}

// fakePersistence records every saved snapshot.
type fakePersistence struct {
	mu      sync.Mutex
	saved   []domain.CartSnapshot
	stored  map[string]domain.CartSnapshot
	saveErr error
	loadErr error
}

func newFakePersistence() *fakePersistence {
	return &fakePersistence{stored: map[string]domain.CartSnapshot{}}
}

func (f *fakePersistence) Save(ctx context.Context, snap domain.CartSnapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = append(f.saved, snap)
	if f.saveErr != nil {
		return f.saveErr
	}
	f.stored[snap.SessionID] = snap
	return nil
}

func (f *fakePersistence) Load(ctx context.Context, sessionID string) (*domain.CartSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	snap, ok := f.stored[sessionID]
	if !ok {
		return nil, domain.ErrCartEmpty
	}
	return &snap, nil
}

func (f *fakePersistence) last() (domain.CartSnapshot, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.saved) == 0 {
		return domain.CartSnapshot{}, false
	}
	return f.saved[len(f.saved)-1], true
}

// fakeEmails counts backend calls.
type fakeEmails struct {
	mu      sync.Mutex
	calls   int
	target  domain.EmailTarget
	subject string
	count   int
	err     error
}

func (f *fakeEmails) SendBulkEmail(ctx context.Context, subject, htmlBody string, target domain.EmailTarget) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.subject = subject
	f.target = target
	if f.err != nil {
		return 0, f.err
	}
	return f.count, nil
}

func (f *fakeEmails) RecipientCount(ctx context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	return f.count, nil
}

var errBackend = errors.New("connection refused")
