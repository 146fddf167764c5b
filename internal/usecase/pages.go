package usecase

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/phenrril/attarstore/internal/domain"
)

const (
	CategoryBestSellers = "Our Best Sellers"
	CategoryFamous      = "Famous Fragrances"
	CategoryReordered   = "Cherished by You"

	homeSectionSize = 4
	relatedSize     = 3
)

// CatalogPage owns one catalog snapshot and the loader that fills it. Each
// page instance is independent; Unmount discards pending results.
type CatalogPage struct {
	Store *CatalogStore

	api    domain.ProductAPI
	norm   Normalizer
	loader *Loader[[]domain.Product]

	mu  sync.RWMutex
	err error
}

func NewCatalogPage(api domain.ProductAPI, norm Normalizer) *CatalogPage {
	p := &CatalogPage{Store: NewCatalogStore(), api: api, norm: norm}
	p.loader = NewLoader(p.commit, p.fail)
	return p
}

func (p *CatalogPage) Mount(ctx context.Context) *Load { return p.Refresh(ctx) }

func (p *CatalogPage) Refresh(ctx context.Context) *Load {
	return p.loader.Start(ctx, func(ctx context.Context) ([]domain.Product, error) {
		raws, err := p.api.ListProducts(ctx)
		if err != nil {
			return nil, err
		}
		products, err := p.norm.NormalizeAll(raws)
		if err != nil {
			return nil, err
		}
		if _, err := indexByID(products); err != nil {
			return nil, err
		}
		return products, nil
	})
}

func (p *CatalogPage) Unmount() { p.loader.Dispose() }

func (p *CatalogPage) State() LoadState { return p.loader.State() }

// Err is the error of the last finished load, nil after a successful one.
func (p *CatalogPage) Err() error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.err
}

func (p *CatalogPage) Filter(kind domain.Kind) []domain.Product {
	return p.Store.FilterByKind(kind)
}

func (p *CatalogPage) commit(products []domain.Product) {
	err := p.Store.Replace(products)
	if err != nil {
		log.Error().Err(err).Msg("catalog replace")
	}
	p.setErr(err)
}

func (p *CatalogPage) fail(err error) {
	log.Warn().Err(err).Msg("catalog load failed")
	p.setErr(err)
}

func (p *CatalogPage) setErr(err error) {
	p.mu.Lock()
	p.err = err
	p.mu.Unlock()
}

type HomeSections struct {
	BestSellers []domain.Product `json:"best_sellers"`
	Famous      []domain.Product `json:"famous"`
	Reordered   []domain.Product `json:"most_reordered"`
	Featured    *domain.Product  `json:"featured,omitempty"`
}

// Home derives the landing page sections from the page snapshot.
func (p *CatalogPage) Home() HomeSections {
	h := HomeSections{
		BestSellers: p.Store.Section(CategoryBestSellers, homeSectionSize),
		Famous:      p.Store.Section(CategoryFamous, homeSectionSize),
		Reordered:   p.Store.Section(CategoryReordered, homeSectionSize),
	}
	if f, err := p.Store.Featured(CategoryBestSellers); err == nil {
		h.Featured = &f
	}
	return h
}

type ProductDetail struct {
	Product domain.Product   `json:"product"`
	Related []domain.Product `json:"related"`

	catalog []domain.Product
}

// ProductDetailPage loads one product plus the catalog used for related
// products. Navigating to another product supersedes the previous load.
type ProductDetailPage struct {
	Related *CatalogStore

	api    domain.ProductAPI
	norm   Normalizer
	loader *Loader[ProductDetail]

	mu     sync.RWMutex
	detail *ProductDetail
	err    error
}

func NewProductDetailPage(api domain.ProductAPI, norm Normalizer) *ProductDetailPage {
	p := &ProductDetailPage{Related: NewCatalogStore(), api: api, norm: norm}
	p.loader = NewLoader(p.commit, p.fail)
	return p
}

func (p *ProductDetailPage) Show(ctx context.Context, id string) *Load {
	return p.loader.Start(ctx, func(ctx context.Context) (ProductDetail, error) {
		var (
			raw  *domain.RawProduct
			raws []domain.RawProduct
		)
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			r, err := p.api.GetProduct(gctx, id)
			raw = r
			return err
		})
		g.Go(func() error {
			rs, err := p.api.ListProducts(gctx)
			raws = rs
			return err
		})
		if err := g.Wait(); err != nil {
			return ProductDetail{}, err
		}
		if raw == nil {
			return ProductDetail{}, fmt.Errorf("product %s: %w", id, domain.ErrNotFound)
		}
		prod, err := p.norm.Normalize(*raw)
		if err != nil {
			return ProductDetail{}, err
		}
		all, err := p.norm.NormalizeAll(raws)
		if err != nil {
			return ProductDetail{}, err
		}
		if _, err := indexByID(all); err != nil {
			return ProductDetail{}, err
		}
		related := make([]domain.Product, 0, relatedSize)
		for _, other := range all {
			if len(related) == relatedSize {
				break
			}
			if other.ID != prod.ID {
				related = append(related, other)
			}
		}
		return ProductDetail{Product: prod, Related: related, catalog: all}, nil
	})
}

func (p *ProductDetailPage) Unmount() { p.loader.Dispose() }

func (p *ProductDetailPage) State() LoadState { return p.loader.State() }

func (p *ProductDetailPage) Detail() (*ProductDetail, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.detail, p.err
}

func (p *ProductDetailPage) commit(d ProductDetail) {
	if err := p.Related.Replace(d.catalog); err != nil {
		p.fail(err)
		return
	}
	d.catalog = nil
	p.mu.Lock()
	p.detail = &d
	p.err = nil
	p.mu.Unlock()
}

func (p *ProductDetailPage) fail(err error) {
	log.Warn().Err(err).Msg("product detail load failed")
	p.mu.Lock()
	p.detail = nil
	p.err = err
	p.mu.Unlock()
}
