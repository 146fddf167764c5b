package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phenrril/attarstore/internal/domain"
)

func TestCartRepo(t *testing.T) {
	repo := NewCartRepo()
	ctx := context.Background()

	_, err := repo.Load(ctx, "s1")
	assert.ErrorIs(t, err, domain.ErrCartEmpty)

	items := []domain.CartLineItem{{ProductID: "1", VariantID: "v1", Quantity: 2}}
	require.NoError(t, repo.Save(ctx, domain.CartSnapshot{SessionID: "s1", Items: items}))
	items[0].Quantity = 99

	got, err := repo.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 2, got.Items[0].Quantity)

	got.Items[0].Quantity = 50
	again, err := repo.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 2, again.Items[0].Quantity)
}
