package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// CartLineItem references a product by id and keeps the display fields as
// they were when the item was added.
type CartLineItem struct {
	ProductID string          `json:"product_id"`
	VariantID string          `json:"variant_id"`
	Name      string          `json:"name"`
	Price     string          `json:"price"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Image     string          `json:"image"`
	Quantity  int             `json:"quantity"`
}

func (it CartLineItem) Subtotal() decimal.Decimal {
	return it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity)))
}

type CartSnapshot struct {
	SessionID string         `json:"session_id"`
	Items     []CartLineItem `json:"items"`
	UpdatedAt time.Time      `json:"updated_at"`
}
