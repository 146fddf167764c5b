package postgres

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/phenrril/attarstore/internal/domain"
)

// CartRecord is one saved cart. The repo only needs gorm, so the same table
// works on the sqlite driver used for local runs.
type CartRecord struct {
	SessionID string                `gorm:"primaryKey;size:64"`
	Items     []domain.CartLineItem `gorm:"type:jsonb;serializer:json"`
	ItemCount int                   `gorm:"type:int;default:0"`
	UpdatedAt time.Time
}

func (CartRecord) TableName() string { return "carts" }

type CartRepo struct{ db *gorm.DB }

func NewCartRepo(db *gorm.DB) *CartRepo { return &CartRepo{db: db} }

var _ domain.CartPersistence = (*CartRepo)(nil)

func (r *CartRepo) Migrate() error {
	return r.db.AutoMigrate(&CartRecord{})
}

func (r *CartRepo) Save(ctx context.Context, snap domain.CartSnapshot) error {
	n := 0
	for _, it := range snap.Items {
		n += it.Quantity
	}
	rec := CartRecord{SessionID: snap.SessionID, Items: snap.Items, ItemCount: n, UpdatedAt: snap.UpdatedAt}
	if rec.Items == nil {
		rec.Items = []domain.CartLineItem{}
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = time.Now().UTC()
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "session_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"items", "item_count", "updated_at"}),
	}).Create(&rec).Error
}

func (r *CartRepo) Load(ctx context.Context, sessionID string) (*domain.CartSnapshot, error) {
	var rec CartRecord
	if err := r.db.WithContext(ctx).First(&rec, "session_id = ?", sessionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrCartEmpty
		}
		return nil, err
	}
	return &domain.CartSnapshot{SessionID: rec.SessionID, Items: rec.Items, UpdatedAt: rec.UpdatedAt}, nil
}

func (r *CartRepo) Delete(ctx context.Context, sessionID string) error {
	return r.db.WithContext(ctx).Where("session_id = ?", sessionID).Delete(&CartRecord{}).Error
}

// PurgeOlderThan drops carts not touched since cutoff.
func (r *CartRepo) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Where("updated_at < ?", cutoff).Delete(&CartRecord{})
	return res.RowsAffected, res.Error
}
