package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/phenrril/attarstore/internal/domain"
)

const keyPrefix = "attarstore:cart:"

// CartRepo stores each cart as a JSON string with a sliding TTL.
type CartRepo struct {
	rdb *goredis.Client
	ttl time.Duration
}

func NewCartRepo(rdb *goredis.Client, ttl time.Duration) *CartRepo {
	return &CartRepo{rdb: rdb, ttl: ttl}
}

var _ domain.CartPersistence = (*CartRepo)(nil)

func (r *CartRepo) Save(ctx context.Context, snap domain.CartSnapshot) error {
	buf, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return r.rdb.Set(ctx, keyPrefix+snap.SessionID, buf, r.ttl).Err()
}

func (r *CartRepo) Load(ctx context.Context, sessionID string) (*domain.CartSnapshot, error) {
	buf, err := r.rdb.Get(ctx, keyPrefix+sessionID).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, domain.ErrCartEmpty
	}
	if err != nil {
		return nil, err
	}
	var snap domain.CartSnapshot
	if err := json.Unmarshal(buf, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}
