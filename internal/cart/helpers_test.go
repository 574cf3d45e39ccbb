package cart

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/gomarketplace/pkg/kv/memory"
)

func newTestStore(t *testing.T, kvStore *memory.Store, mutate func(*StoreParams)) *Store {
	t.Helper()
	params := StoreParams{KV: kvStore, PersistTimeout: time.Second}
	if mutate != nil {
		mutate(&params)
	}
	s, err := NewStore(params)
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = s.Close(ctx)
	})
	return s
}

func newReadyStore(t *testing.T) (*Store, *memory.Store) {
	t.Helper()
	kvStore := memory.New()
	s := newTestStore(t, kvStore, nil)
	require.NoError(t, s.Initialize(context.Background()))
	return s, kvStore
}

func shirt() Product {
	return Product{ID: "a", Title: "Shirt", ImageURL: "u", Price: decimal.NewFromInt(10)}
}

// assertItemsEqual compares line items field by field; prices compare by
// value because decimal keeps its scale.
func assertItemsEqual(t *testing.T, want, got []LineItem) {
	t.Helper()
	require.Len(t, got, len(want))
	for i := range want {
		assert.Equal(t, want[i].ID, got[i].ID, "item %d id", i)
		assert.Equal(t, want[i].Title, got[i].Title, "item %d title", i)
		assert.Equal(t, want[i].ImageURL, got[i].ImageURL, "item %d image_url", i)
		assert.Equal(t, want[i].Quantity, got[i].Quantity, "item %d quantity", i)
		assert.True(t, want[i].Price.Equal(got[i].Price), "item %d price want %s got %s", i, want[i].Price, got[i].Price)
	}
}

func persisted(t *testing.T, kvStore *memory.Store) []LineItem {
	t.Helper()
	raw, ok, err := kvStore.Get(context.Background(), StorageKey)
	require.NoError(t, err)
	require.True(t, ok, "cart snapshot not persisted")
	items, err := DecodeItems(raw)
	require.NoError(t, err)
	return items
}
