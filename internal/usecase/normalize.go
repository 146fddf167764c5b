package usecase

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cast"

	"github.com/phenrril/attarstore/internal/domain"
)

const (
	DefaultCurrencySymbol = "₹"
	DefaultPlaceholder    = "/placeholder.png"
)

// Normalizer maps backend records into domain.Product. The zero value uses
// the default currency symbol and placeholder image.
type Normalizer struct {
	CurrencySymbol string
	Placeholder    string
}

var defaultNormalizer = Normalizer{}

func NormalizeProduct(raw domain.RawProduct) (domain.Product, error) {
	return defaultNormalizer.Normalize(raw)
}

func NormalizeProducts(raws []domain.RawProduct) ([]domain.Product, error) {
	return defaultNormalizer.NormalizeAll(raws)
}

func (n Normalizer) Normalize(raw domain.RawProduct) (domain.Product, error) {
	id := idString(raw.ProductID)
	if id == "" {
		return domain.Product{}, &domain.MalformedRecordError{Field: "product_id"}
	}
	name := strings.TrimSpace(raw.ProductName)
	if name == "" {
		return domain.Product{}, &domain.MalformedRecordError{Field: "product_name"}
	}

	amount := n.unitPrice(raw)
	desc := deref(raw.Description)
	p := domain.Product{
		ID:               id,
		Name:             name,
		Kind:             kindOf(raw.ProductType),
		Price:            n.FormatPrice(amount),
		UnitPrice:        amount,
		Images:           n.images(raw.Media),
		Category:         strings.TrimSpace(deref(raw.Category)),
		DescriptionShort: desc,
		DescriptionLong:  desc,
		Ingredients:      deref(raw.Ingredients),
		Usage:            deref(raw.HowToUse),
		VariantID:        id,
	}
	if len(raw.Variants) > 0 {
		if vid := idString(raw.Variants[0].VariantID); vid != "" {
			p.VariantID = vid
		}
	}
	return p, nil
}

// NormalizeAll fails on the first malformed record; a partial catalog is
// never returned.
func (n Normalizer) NormalizeAll(raws []domain.RawProduct) ([]domain.Product, error) {
	out := make([]domain.Product, 0, len(raws))
	for i, raw := range raws {
		p, err := n.Normalize(raw)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		out = append(out, p)
	}
	return out, nil
}

func (n Normalizer) FormatPrice(amount decimal.Decimal) string {
	sym := n.CurrencySymbol
	if sym == "" {
		sym = DefaultCurrencySymbol
	}
	return sym + amount.String()
}

// flat price wins unless zero, then the first variant, then zero
func (n Normalizer) unitPrice(raw domain.RawProduct) decimal.Decimal {
	if flat, ok := parsePrice(raw.Price); ok && !flat.IsZero() {
		return flat
	}
	if len(raw.Variants) > 0 {
		if v, ok := parsePrice(raw.Variants[0].Price); ok {
			return v
		}
	}
	return decimal.Zero
}

func (n Normalizer) images(media []domain.RawMedia) []string {
	urls := make([]string, 0, len(media))
	for _, m := range media {
		if src := strings.TrimSpace(m.Src); src != "" {
			urls = append(urls, src)
		}
	}
	if len(urls) == 0 {
		ph := n.Placeholder
		if ph == "" {
			ph = DefaultPlaceholder
		}
		urls = append(urls, ph)
	}
	return urls
}

// kindOf maps the backend tag; only the exact "attar" is an attar.
func kindOf(tag string) domain.Kind {
	if tag == "attar" {
		return domain.KindAttar
	}
	return domain.KindPerfume
}

func parsePrice(v any) (decimal.Decimal, bool) {
	switch t := v.(type) {
	case nil:
		return decimal.Zero, false
	case float64:
		return decimal.NewFromFloat(t), true
	case decimal.Decimal:
		return t, true
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		return decimal.Zero, false
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

func idString(v any) string {
	if f, ok := v.(float64); ok {
		return decimal.NewFromFloat(f).String()
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(s)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
