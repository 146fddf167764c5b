package domain

import "context"

type ProductAPI interface {
	ListProducts(ctx context.Context) ([]RawProduct, error)
	GetProduct(ctx context.Context, id string) (*RawProduct, error)
}

// CartPersistence stores one snapshot per session. Load returns ErrCartEmpty
// when nothing was saved.
type CartPersistence interface {
	Save(ctx context.Context, snap CartSnapshot) error
	Load(ctx context.Context, sessionID string) (*CartSnapshot, error)
}

type EmailTarget struct {
	All            bool
	RecipientEmail string
}

type EmailAPI interface {
	SendBulkEmail(ctx context.Context, subject, htmlBody string, target EmailTarget) (int, error)
	RecipientCount(ctx context.Context) (int, error)
}
