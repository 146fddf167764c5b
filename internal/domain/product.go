package domain

import (
	"slices"

	"github.com/shopspring/decimal"
)

type Kind string

const (
	KindAll     Kind = "All"
	KindPerfume Kind = "Perfume"
	KindAttar   Kind = "Attar"
)

// RawProduct is the product record as the store backend sends it. Ids and
// prices arrive as numbers or strings depending on the endpoint.
type RawProduct struct {
	ProductID   any          `json:"product_id"`
	ProductName string       `json:"product_name"`
	ProductType string       `json:"product_type"`
	Price       any          `json:"price,omitempty"`
	Variants    []RawVariant `json:"variants,omitempty"`
	Media       []RawMedia   `json:"media,omitempty"`
	Category    *string      `json:"category,omitempty"`
	Description *string      `json:"description,omitempty"`
	Ingredients *string      `json:"ingredients,omitempty"`
	HowToUse    *string      `json:"how_to_use,omitempty"`
}

type RawVariant struct {
	VariantID any `json:"variant_id"`
	Price     any `json:"price"`
}

type RawMedia struct {
	Src string `json:"src"`
}

// Product is the normalized view model. It is never mutated after
// normalization; stores hand out copies.
type Product struct {
	ID               string          `json:"id"`
	Name             string          `json:"name"`
	Kind             Kind            `json:"kind"`
	Price            string          `json:"price"`
	UnitPrice        decimal.Decimal `json:"unit_price"`
	Images           []string        `json:"images"`
	Category         string          `json:"category,omitempty"`
	DescriptionShort string          `json:"description_short"`
	DescriptionLong  string          `json:"description_long"`
	Ingredients      string          `json:"ingredients"`
	Usage            string          `json:"usage"`
	VariantID        string          `json:"variant_id"`
}

// Clone copies p including its image list.
func (p Product) Clone() Product {
	p.Images = slices.Clone(p.Images)
	return p
}

func (p Product) Uncategorized() bool { return p.Category == "" }

// Image returns the primary image.
func (p Product) Image() string {
	if len(p.Images) == 0 {
		return ""
	}
	return p.Images[0]
}
