package usecase

import (
	"fmt"
	"sync"

	"github.com/phenrril/attarstore/internal/domain"
)

// CatalogStore holds one page's product snapshot. A Replace swaps the whole
// snapshot; derived views are recomputed on every call.
type CatalogStore struct {
	notifier

	mu       sync.RWMutex
	products []domain.Product
	byID     map[string]int
}

func NewCatalogStore() *CatalogStore {
	return &CatalogStore{byID: map[string]int{}}
}

func (s *CatalogStore) Replace(products []domain.Product) error {
	idx, err := indexByID(products)
	if err != nil {
		return fmt.Errorf("replace catalog: %w", err)
	}
	snap := make([]domain.Product, len(products))
	for i, p := range products {
		snap[i] = p.Clone()
	}

	s.mu.Lock()
	s.products = snap
	s.byID = idx
	s.mu.Unlock()

	s.notify()
	return nil
}

func (s *CatalogStore) All() []domain.Product {
	return s.filter(func(domain.Product) bool { return true })
}

func (s *CatalogStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.products)
}

func (s *CatalogStore) FilterByKind(kind domain.Kind) []domain.Product {
	if kind == domain.KindAll || kind == "" {
		return s.All()
	}
	return s.filter(func(p domain.Product) bool { return p.Kind == kind })
}

// FilterByCategory matches exactly; uncategorized products never match.
func (s *CatalogStore) FilterByCategory(category string) []domain.Product {
	if category == "" {
		return []domain.Product{}
	}
	return s.filter(func(p domain.Product) bool { return p.Category == category })
}

func (s *CatalogStore) FindByID(id string) (domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.byID[id]
	if !ok {
		return domain.Product{}, fmt.Errorf("product %s: %w", id, domain.ErrNotFound)
	}
	return s.products[i].Clone(), nil
}

// Section is a category view truncated to limit (limit <= 0 means no limit).
func (s *CatalogStore) Section(category string, limit int) []domain.Product {
	return truncate(s.FilterByCategory(category), limit)
}

// Featured returns the first product of category, falling back to the first
// product of the snapshot.
func (s *CatalogStore) Featured(category string) (domain.Product, error) {
	if list := s.FilterByCategory(category); len(list) > 0 {
		return list[0], nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.products) == 0 {
		return domain.Product{}, fmt.Errorf("featured product: %w", domain.ErrNotFound)
	}
	return s.products[0].Clone(), nil
}

func (s *CatalogStore) Related(id string, limit int) []domain.Product {
	return truncate(s.filter(func(p domain.Product) bool { return p.ID != id }), limit)
}

// Categories lists distinct non-empty categories in first-seen order.
func (s *CatalogStore) Categories() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := map[string]struct{}{}
	cats := []string{}
	for _, p := range s.products {
		if p.Category == "" {
			continue
		}
		if _, ok := seen[p.Category]; ok {
			continue
		}
		seen[p.Category] = struct{}{}
		cats = append(cats, p.Category)
	}
	return cats
}

func (s *CatalogStore) filter(keep func(domain.Product) bool) []domain.Product {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		if keep(p) {
			out = append(out, p.Clone())
		}
	}
	return out
}

func indexByID(products []domain.Product) (map[string]int, error) {
	idx := make(map[string]int, len(products))
	for i, p := range products {
		if _, dup := idx[p.ID]; dup {
			return nil, fmt.Errorf("%w: %s", domain.ErrDuplicateID, p.ID)
		}
		idx[p.ID] = i
	}
	return idx, nil
}

func truncate(list []domain.Product, limit int) []domain.Product {
	if limit > 0 && len(list) > limit {
		return list[:limit]
	}
	return list
}
